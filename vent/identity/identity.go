// Package identity decides who is acting on a request: a signed-in user or
// an anonymous guest carrying a client-generated id.
package identity

import (
	"errors"
	"strings"
)

// MaxGuestIDLen bounds the X-Guest-Id header value.
const MaxGuestIDLen = 128

var (
	ErrMissingIdentity = errors.New("Missing identity")
	ErrGuestIDTooLong  = errors.New("Guest id too long")
)

// Kind tells users and guests apart.
type Kind string

const (
	KindUser  Kind = "user"
	KindGuest Kind = "guest"
)

// Actor is the resolved identity of a request.
type Actor struct {
	Kind Kind
	ID   string
}

// Resolve prefers the authenticated user id and falls back to the trimmed
// guest id. It has no side effects.
func Resolve(userID, guestID string) (Actor, error) {
	if userID != "" {
		return Actor{Kind: KindUser, ID: userID}, nil
	}
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return Actor{}, ErrMissingIdentity
	}
	if len(guestID) > MaxGuestIDLen {
		return Actor{}, ErrGuestIDTooLong
	}
	return Actor{Kind: KindGuest, ID: guestID}, nil
}

// IsUser reports whether the actor is a signed-in user.
func (a Actor) IsUser() bool { return a.Kind == KindUser }

// UserID returns the user id, or "" for guests.
func (a Actor) UserID() string {
	if a.IsUser() {
		return a.ID
	}
	return ""
}

// Key is the storage key used to keep one reaction per actor. User and guest
// namespaces never collide.
func (a Actor) Key() string {
	if a.IsUser() {
		return "u:" + a.ID
	}
	return "g:" + a.ID
}

// Package author resolves who a rant or reply is attributed to.
package author

import (
	"math/rand/v2"
)

// Mode is how a piece of content is attributed.
type Mode string

const (
	Public    Mode = "public"
	Anonymous Mode = "anonymous"
)

// Author is the attribution snapshot stored on rants and reply nodes.
// Public content carries the user id and name; anonymous content carries a
// throwaway alias.
type Author struct {
	AuthorMode   Mode    `gorm:"size:16;not null;default:'anonymous'" json:"authorMode"`
	AuthorUserID *string `gorm:"size:36;index" json:"authorUserId"`
	AuthorName   *string `gorm:"size:24" json:"authorName"`
	AnonAlias    *string `gorm:"size:48" json:"anonAlias"`
}

// Member is the signed-in requester, if any.
type Member struct {
	ID   string
	Name string
}

var moods = [...]string{
	"Tired", "BurntOut", "Salty", "Quiet", "Noisy",
	"Overthinking", "Confused", "Unbothered", "Stressed", "Chaotic",
}

var animals = [...]string{
	"Panda", "Fox", "Otter", "Crow", "Koala",
	"Lynx", "Dolphin", "Cat", "Wolf", "Hawk",
}

// Intn returns a value in [0, n). rand.IntN satisfies it.
type Intn func(n int) int

// Alias builds a "<Mood> <Animal>" display name. Aliases are flavor only and
// may repeat across items.
func Alias(intn Intn) string {
	if intn == nil {
		intn = rand.IntN
	}
	return moods[intn(len(moods))] + " " + animals[intn(len(animals))]
}

// Resolve applies the attribution rules: public is honored only for a
// signed-in member, anything else becomes anonymous with a fresh alias.
func Resolve(requested Mode, m *Member, intn Intn) Author {
	if requested == Public && m != nil && m.ID != "" {
		id, name := m.ID, m.Name
		return Author{AuthorMode: Public, AuthorUserID: &id, AuthorName: &name}
	}
	alias := Alias(intn)
	return Author{AuthorMode: Anonymous, AnonAlias: &alias}
}

// IsAuthor reports whether userID is the public author of the content.
func (a Author) IsAuthor(userID string) bool {
	return userID != "" && a.AuthorUserID != nil && *a.AuthorUserID == userID
}

// UserID returns the public author's id or "".
func (a Author) UserID() string {
	if a.AuthorUserID == nil {
		return ""
	}
	return *a.AuthorUserID
}

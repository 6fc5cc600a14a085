package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ventwave/ventboard/vent/author"
	"github.com/ventwave/ventboard/vent/thread"
)

// ReactionKind is one of the fixed emoji reactions.
type ReactionKind string

const (
	ReactFeel ReactionKind = "feel"
	ReactRage ReactionKind = "rage"
	ReactHug  ReactionKind = "hug"
	ReactLol  ReactionKind = "lol"
)

// ReactionKinds lists every kind in display order.
var ReactionKinds = []ReactionKind{ReactFeel, ReactRage, ReactHug, ReactLol}

func (k ReactionKind) Valid() bool {
	switch k {
	case ReactFeel, ReactRage, ReactHug, ReactLol:
		return true
	}
	return false
}

// Column is the rants table counter column for k.
func (k ReactionKind) Column() string {
	if !k.Valid() {
		return ""
	}
	return "react_" + string(k)
}

// ReactionCounts holds one counter per kind.
type ReactionCounts struct {
	Feel int64 `gorm:"not null;default:0" json:"feel"`
	Rage int64 `gorm:"not null;default:0" json:"rage"`
	Hug  int64 `gorm:"not null;default:0" json:"hug"`
	Lol  int64 `gorm:"not null;default:0" json:"lol"`
}

// Get returns the counter for k.
func (c ReactionCounts) Get(k ReactionKind) int64 {
	switch k {
	case ReactFeel:
		return c.Feel
	case ReactRage:
		return c.Rage
	case ReactHug:
		return c.Hug
	case ReactLol:
		return c.Lol
	}
	return 0
}

// Total sums all counters.
func (c ReactionCounts) Total() int64 {
	return c.Feel + c.Rage + c.Hug + c.Lol
}

// CosmeticsSnapshot is the author's loadout captured when the rant was posted.
type CosmeticsSnapshot struct {
	Theme  string `gorm:"size:64;not null" json:"theme"`
	Glow   string `gorm:"size:64;not null" json:"glow"`
	Effect string `gorm:"size:64;not null" json:"effect"`
}

// SnapshotOf captures the visible parts of a loadout.
func SnapshotOf(l Loadout) CosmeticsSnapshot {
	l = l.WithDefaults()
	return CosmeticsSnapshot{Theme: l.RantTheme, Glow: l.NameGlow, Effect: l.RantEffect}
}

// Rant is a top-level post. Replies are stored inline as a JSON arena and
// written with optimistic locking on Version.
type Rant struct {
	ID   string `gorm:"primaryKey;size:36" json:"id"`
	Text string `gorm:"type:text;not null" json:"text"`
	Mood string `gorm:"size:32;not null;default:'neutral'" json:"mood"`
	Tags datatypes.JSONSlice[string] `json:"tags"`
	author.Author
	Cosmetics  CosmeticsSnapshot              `gorm:"embedded;embeddedPrefix:cosmetic_" json:"cosmetics"`
	Reactions  ReactionCounts                 `gorm:"embedded;embeddedPrefix:react_" json:"reactions"`
	Replies    datatypes.JSONType[thread.Tree] `json:"-"`
	ReplyCount int                            `gorm:"not null;default:0" json:"replyCount"`
	Version    int64                          `gorm:"not null;default:0" json:"-"`
	CreatedAt  time.Time                      `gorm:"index:idx_rant_created" json:"createdAt"`
	UpdatedAt  time.Time                      `json:"updatedAt"`

	// Score24h is the trending score, filled from the cache when served.
	Score24h float64 `gorm:"-" json:"score24h"`
}

func (r *Rant) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Tags == nil {
		r.Tags = datatypes.JSONSlice[string]{}
	}
	return nil
}

// Tree returns the reply arena, initialised when the rant has none yet.
func (r *Rant) Tree() thread.Tree {
	t := r.Replies.Data()
	if t.Nodes == nil {
		return thread.New()
	}
	return t
}

// Reaction records one actor's current reaction to a rant. ActorKey is
// "u:<userID>" or "g:<guestID>" and is unique per rant.
type Reaction struct {
	ID        int64        `gorm:"primaryKey;autoIncrement" json:"-"`
	RantID    string       `gorm:"uniqueIndex:idx_reaction_actor;size:36;not null" json:"rantId"`
	ActorKey  string       `gorm:"uniqueIndex:idx_reaction_actor;size:140;not null" json:"-"`
	UserID    *string      `gorm:"size:36;index" json:"userId"`
	GuestID   *string      `gorm:"size:128" json:"-"`
	Kind      ReactionKind `gorm:"size:8;not null" json:"kind"`
	CreatedAt time.Time    `gorm:"index:idx_reaction_created" json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

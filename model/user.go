package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User status values.
const (
	UserStatusBanned = 0
	UserStatusNormal = 1
)

// Loadout is the equipped cosmetic item key per slot.
type Loadout struct {
	RantTheme    string `gorm:"size:64;not null" json:"rantTheme"`
	ProfileTheme string `gorm:"size:64;not null" json:"profileTheme"`
	NameGlow     string `gorm:"size:64;not null" json:"nameGlow"`
	RantEffect   string `gorm:"size:64;not null" json:"rantEffect"`
}

// DefaultLoadout returns the free items every account starts with.
func DefaultLoadout() Loadout {
	return Loadout{
		RantTheme:    DefaultItemKey(SlotRantTheme),
		ProfileTheme: DefaultItemKey(SlotProfileTheme),
		NameGlow:     DefaultItemKey(SlotNameGlow),
		RantEffect:   DefaultItemKey(SlotRantEffect),
	}
}

// Get returns the key equipped in slot, or "" for an unknown slot.
func (l Loadout) Get(slot Slot) string {
	switch slot {
	case SlotRantTheme:
		return l.RantTheme
	case SlotProfileTheme:
		return l.ProfileTheme
	case SlotNameGlow:
		return l.NameGlow
	case SlotRantEffect:
		return l.RantEffect
	}
	return ""
}

// WithDefaults fills empty slots with their default keys.
func (l Loadout) WithDefaults() Loadout {
	d := DefaultLoadout()
	if l.RantTheme == "" {
		l.RantTheme = d.RantTheme
	}
	if l.ProfileTheme == "" {
		l.ProfileTheme = d.ProfileTheme
	}
	if l.NameGlow == "" {
		l.NameGlow = d.NameGlow
	}
	if l.RantEffect == "" {
		l.RantEffect = d.RantEffect
	}
	return l
}

// DailyEarnings tracks how much Vent Energy was granted on DateKey (UTC, YYYY-MM-DD).
type DailyEarnings struct {
	DateKey     string `gorm:"size:10;not null;default:''" json:"dateKey"`
	EarnedToday int64  `gorm:"not null;default:0" json:"earnedToday"`
}

// User is an account. Exactly one credential path is set at sign-up; a
// Google identity may later be linked to a password account by email.
type User struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	Username     string        `gorm:"size:24;not null" json:"username"`
	Email        string        `gorm:"uniqueIndex;size:254;not null" json:"email"`
	PasswordHash *string       `gorm:"size:72" json:"-"`
	GoogleID     *string       `gorm:"uniqueIndex;size:64" json:"-"`
	Status       int           `gorm:"not null;default:1" json:"-"`
	VentEnergy   int64         `gorm:"not null;default:0" json:"ventEnergy"`
	Equipped     Loadout       `gorm:"embedded;embeddedPrefix:equip_" json:"equipped"`
	VEDaily      DailyEarnings `gorm:"embedded;embeddedPrefix:ve_daily_" json:"-"`
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Equipped = u.Equipped.WithDefaults()
	return nil
}

// OwnedItem is one inventory entry. The (user, item) pair is unique so a
// concurrent double purchase fails at the storage layer.
type OwnedItem struct {
	ID      int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID  string    `gorm:"uniqueIndex:idx_owned_user_item;size:36;not null" json:"-"`
	ItemKey string    `gorm:"uniqueIndex:idx_owned_user_item;size:64;not null" json:"itemKey"`
	OwnedAt time.Time `gorm:"index;not null" json:"ownedAt"`
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

// Slot is an equip category. A catalog item's Type is the slot it fits.
type Slot string

const (
	SlotRantTheme    Slot = "rantTheme"
	SlotProfileTheme Slot = "profileTheme"
	SlotNameGlow     Slot = "nameGlow"
	SlotRantEffect   Slot = "rantEffect"
)

// Slots lists every slot in display order.
var Slots = []Slot{SlotRantTheme, SlotProfileTheme, SlotNameGlow, SlotRantEffect}

// Valid reports whether s is a known slot.
func (s Slot) Valid() bool {
	switch s {
	case SlotRantTheme, SlotProfileTheme, SlotNameGlow, SlotRantEffect:
		return true
	}
	return false
}

// Column is the users table column holding the slot's equipped key.
func (s Slot) Column() string {
	switch s {
	case SlotRantTheme:
		return "equip_rant_theme"
	case SlotProfileTheme:
		return "equip_profile_theme"
	case SlotNameGlow:
		return "equip_name_glow"
	case SlotRantEffect:
		return "equip_rant_effect"
	}
	return ""
}

// DefaultItemKey is the free item occupying slot when nothing else is equipped.
func DefaultItemKey(s Slot) string {
	switch s {
	case SlotRantTheme:
		return "theme.midnight"
	case SlotProfileTheme:
		return "profile.midnight"
	case SlotNameGlow:
		return "glow.none"
	case SlotRantEffect:
		return "effect.none"
	}
	return ""
}

// Rarity tiers.
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// StoreItem is a catalog entry. Keys are stable and globally unique.
type StoreItem struct {
	Key       string            `gorm:"primaryKey;size:64" json:"key"`
	Name      string            `gorm:"size:64;not null" json:"name"`
	Desc      string            `gorm:"size:255" json:"desc"`
	Type      Slot              `gorm:"size:32;not null;index" json:"type"`
	PriceVE   int64             `gorm:"not null" json:"priceVE"`
	Rarity    string            `gorm:"size:16;not null" json:"rarity"`
	Data      datatypes.JSONMap `json:"data"`
	IsActive  bool              `gorm:"not null;index" json:"isActive"`
	Position  int               `gorm:"not null" json:"-"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
}

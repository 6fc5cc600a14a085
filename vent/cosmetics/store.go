package cosmetics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ventwave/ventboard/audit"
	dbadapter "github.com/ventwave/ventboard/db"
	"github.com/ventwave/ventboard/metrics"
	"github.com/ventwave/ventboard/model"
)

var (
	ErrUserNotFound = errors.New("Not found")
	ErrKeyRequired  = errors.New("itemKey required")
	ErrAlreadyOwned = errors.New("Already owned")
	ErrNotEnoughVE  = errors.New("Not enough VE")
	ErrInvalidSlot  = errors.New("Invalid slot")
	ErrNotOwned     = errors.New("Not owned")
	ErrWrongType    = errors.New("Wrong item type for slot")
)

// Inventory is a user's balance, owned items (newest first) and loadout.
type Inventory struct {
	VentEnergy int64             `json:"ventEnergy"`
	Inventory  []model.OwnedItem `json:"inventory"`
	Equipped   model.Loadout     `json:"equipped"`
}

// Store applies purchases and equips.
type Store struct {
	db      *gorm.DB
	catalog *Catalog
	journal *audit.Service
	logger  *zap.Logger
	now     func() time.Time
}

// NewStore creates a Store. journal may be nil.
func NewStore(db *gorm.DB, catalog *Catalog, journal *audit.Service, logger *zap.Logger) *Store {
	return &Store{db: db, catalog: catalog, journal: journal, logger: logger, now: time.Now}
}

// Inventory loads the user's store state.
func (s *Store) Inventory(ctx context.Context, userID string) (*Inventory, error) {
	db := s.db.WithContext(ctx)
	var u model.User
	err := db.Select("id", "vent_energy", "equip_rant_theme", "equip_profile_theme", "equip_name_glow", "equip_rant_effect").
		Where("id = ?", userID).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load user: %w", err)
	}
	owned := []model.OwnedItem{}
	if err := db.Where("user_id = ?", userID).
		Order("owned_at DESC").Order("id DESC").Find(&owned).Error; err != nil {
		return nil, fmt.Errorf("store: load inventory: %w", err)
	}
	return &Inventory{VentEnergy: u.VentEnergy, Inventory: owned, Equipped: u.Equipped.WithDefaults()}, nil
}

// Buy charges the item's price and adds it to the inventory. It never
// equips the item.
//
// The charge only applies while the balance covers the price, and the
// inventory's unique (user, item) index rejects a concurrent second
// purchase, rolling its charge back.
func (s *Store) Buy(ctx context.Context, userID, key string) (*Inventory, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	var price int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.catalog.item(tx, key)
		if err != nil {
			return err
		}
		price = item.PriceVE

		var n int64
		if err := tx.Model(&model.OwnedItem{}).
			Where("user_id = ? AND item_key = ?", userID, key).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyOwned
		}

		res := tx.Model(&model.User{}).
			Where("id = ? AND vent_energy >= ?", userID, price).
			Update("vent_energy", gorm.Expr("vent_energy - ?", price))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Model(&model.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrUserNotFound
			}
			return ErrNotEnoughVE
		}

		if err := tx.Create(&model.OwnedItem{UserID: userID, ItemKey: key, OwnedAt: s.now()}).Error; err != nil {
			if dbadapter.IsUniqueViolation(err) {
				return ErrAlreadyOwned
			}
			return err
		}
		return nil
	})
	if err != nil {
		metrics.Store("buy", outcome(err))
		return nil, wrap("buy", err)
	}
	metrics.Store("buy", "ok")

	inv, err := s.Inventory(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance := inv.VentEnergy
	s.journal.Log(ctx, audit.Entry{
		UserID:  userID,
		Action:  model.ActionPurchase,
		Amount:  -price,
		Balance: &balance,
		Detail:  map[string]string{"item": key},
	})
	return inv, nil
}

// Equip puts key into slot. An empty key, or the slot's default key, resets
// the slot without an ownership check. Equipping never touches the balance.
func (s *Store) Equip(ctx context.Context, userID string, slot model.Slot, key string) (*Inventory, error) {
	if !slot.Valid() {
		return nil, ErrInvalidSlot
	}
	if key == "" {
		key = model.DefaultItemKey(slot)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if key != model.DefaultItemKey(slot) {
			var n int64
			if err := tx.Model(&model.OwnedItem{}).
				Where("user_id = ? AND item_key = ?", userID, key).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrNotOwned
			}
			item, err := s.catalog.item(tx, key)
			if err != nil {
				return err
			}
			if item.Type != slot {
				return ErrWrongType
			}
		}
		res := tx.Model(&model.User{}).Where("id = ?", userID).Update(slot.Column(), key)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		metrics.Store("equip", outcome(err))
		return nil, wrap("equip", err)
	}
	metrics.Store("equip", "ok")

	inv, err := s.Inventory(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.journal.Log(ctx, audit.Entry{
		UserID: userID,
		Action: model.ActionEquip,
		Detail: map[string]string{"slot": string(slot), "item": key},
	})
	return inv, nil
}

var domainErrors = []error{
	ErrItemNotFound, ErrUserNotFound, ErrAlreadyOwned, ErrNotEnoughVE,
	ErrNotOwned, ErrWrongType, ErrInvalidSlot, ErrKeyRequired,
}

func isDomain(err error) bool {
	for _, e := range domainErrors {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrNotEnoughVE):
		return "insufficient"
	case errors.Is(err, ErrAlreadyOwned):
		return "owned"
	case isDomain(err):
		return "rejected"
	}
	return "error"
}

func wrap(op string, err error) error {
	if isDomain(err) {
		return err
	}
	return fmt.Errorf("store: %s: %w", op, err)
}

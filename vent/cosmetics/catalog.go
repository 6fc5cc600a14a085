// Package cosmetics sells catalog items for Vent Energy and manages what each
// user has equipped.
package cosmetics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ventwave/ventboard/cache"
	"github.com/ventwave/ventboard/model"
)

const (
	catalogCacheKey = "store:items"
	catalogCacheTTL = 10 * time.Minute
)

var ErrItemNotFound = errors.New("Item not found")

// Catalog serves the store's item list.
type Catalog struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *zap.Logger
}

// NewCatalog creates a Catalog. c may be nil to disable caching.
func NewCatalog(db *gorm.DB, c cache.Cache, logger *zap.Logger) *Catalog {
	return &Catalog{db: db, cache: c, logger: logger}
}

// Seed upserts items by key, so it is safe to run on every start.
func (c *Catalog) Seed(ctx context.Context, items []model.StoreItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "desc", "type", "price_ve", "rarity", "data", "is_active", "position", "updated_at",
		}),
	}).Create(&items).Error
	if err != nil {
		return 0, fmt.Errorf("catalog: seed: %w", err)
	}
	c.Invalidate(ctx)
	return len(items), nil
}

// Invalidate drops the cached item list.
func (c *Catalog) Invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Del(ctx, catalogCacheKey); err != nil {
		c.logger.Warn("catalog cache invalidate failed", zap.Error(err))
	}
}

// Active lists purchasable items in catalog order.
func (c *Catalog) Active(ctx context.Context) ([]model.StoreItem, error) {
	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, catalogCacheKey); err == nil {
			var items []model.StoreItem
			if err := json.Unmarshal([]byte(raw), &items); err == nil {
				return items, nil
			}
		}
	}

	items := []model.StoreItem{}
	if err := c.db.WithContext(ctx).Where("is_active = ?", true).
		Order("position ASC").Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	if c.cache != nil {
		if raw, err := json.Marshal(items); err == nil {
			if err := c.cache.Set(ctx, catalogCacheKey, string(raw), catalogCacheTTL); err != nil {
				c.logger.Warn("catalog cache store failed", zap.Error(err))
			}
		}
	}
	return items, nil
}

// Item returns an active item by key.
func (c *Catalog) Item(ctx context.Context, key string) (*model.StoreItem, error) {
	return c.item(c.db.WithContext(ctx), key)
}

func (c *Catalog) item(db *gorm.DB, key string) (*model.StoreItem, error) {
	var it model.StoreItem
	err := db.Where(map[string]interface{}{"key": key, "is_active": true}).Take(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: item: %w", err)
	}
	return &it, nil
}

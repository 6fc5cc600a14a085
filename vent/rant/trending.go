package rant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ventwave/ventboard/cache"
	"github.com/ventwave/ventboard/config"
	"github.com/ventwave/ventboard/model"
	"github.com/ventwave/ventboard/plugin/hook"
)

// TrendingKey is the sorted set holding each rant's engagement score.
const TrendingKey = "rants:trending"

// Trending ranks rants by reactions and replies received within a rolling
// window. Hooks bump scores as activity happens; Rebuild recomputes the set
// from the database so old activity falls out of the window.
type Trending struct {
	db     *gorm.DB
	cache  cache.Cache
	rants  *Service
	logger *zap.Logger
	window time.Duration
	limit  int
	now    func() time.Time
}

// NewTrending creates a Trending ranker.
func NewTrending(db *gorm.DB, c cache.Cache, rants *Service, feed config.FeedConfig, logger *zap.Logger) *Trending {
	window := feed.TrendingWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	limit := feed.TrendingLimit
	if limit <= 0 {
		limit = 20
	}
	return &Trending{db: db, cache: c, rants: rants, logger: logger, window: window, limit: limit, now: time.Now}
}

// SetClock overrides the time source.
func (t *Trending) SetClock(now func() time.Time) { t.now = now }

// Bump adds delta to the rant's score.
func (t *Trending) Bump(ctx context.Context, rantID string, delta float64) {
	if _, err := t.cache.ZIncrBy(ctx, TrendingKey, delta, rantID); err != nil {
		t.logger.Warn("trending bump failed", zap.String("rant_id", rantID), zap.Error(err))
	}
}

// Score returns the rant's current score, 0 when it has none.
func (t *Trending) Score(ctx context.Context, rantID string) float64 {
	s, err := t.cache.ZScore(ctx, TrendingKey, rantID)
	if err != nil {
		return 0
	}
	return s
}

// Top returns the highest scoring rants, best first.
func (t *Trending) Top(ctx context.Context) ([]*model.Rant, error) {
	ids, err := t.cache.ZRevRange(ctx, TrendingKey, 0, int64(t.limit-1))
	if err != nil && !cache.IsNotFound(err) {
		return nil, fmt.Errorf("trending: %w", err)
	}
	rants, err := t.rants.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range rants {
		r.Score24h = t.Score(ctx, r.ID)
	}
	return rants, nil
}

type rantCount struct {
	RantID string
	N      int64
}

// Rebuild recomputes every score from reactions and replies created inside
// the window and swaps the result in under TrendingKey, so readers never see
// a partial ranking. Bumps that land while the rebuild runs are overwritten;
// their activity is counted again by the next rebuild. It returns the number
// of ranked rants.
func (t *Trending) Rebuild(ctx context.Context) (int, error) {
	since := t.now().Add(-t.window)
	db := t.db.WithContext(ctx)
	scores := map[string]float64{}

	var reacts []rantCount
	if err := db.Model(&model.Reaction{}).
		Select("rant_id, COUNT(*) AS n").
		Where("created_at >= ?", since).
		Group("rant_id").Scan(&reacts).Error; err != nil {
		return 0, fmt.Errorf("trending: count reactions: %w", err)
	}
	for _, rc := range reacts {
		scores[rc.RantID] += float64(rc.N)
	}

	// Only rants touched inside the window can hold recent replies.
	var touched []*model.Rant
	if err := db.Select("id", "replies").
		Where("updated_at >= ? AND reply_count > 0", since).
		Find(&touched).Error; err != nil {
		return 0, fmt.Errorf("trending: load replies: %w", err)
	}
	for _, r := range touched {
		tree := r.Tree()
		for _, n := range tree.Nodes {
			if !n.CreatedAt.Before(since) {
				scores[r.ID]++
			}
		}
	}

	if len(scores) == 0 {
		if err := t.cache.Del(ctx, TrendingKey); err != nil {
			return 0, fmt.Errorf("trending: reset: %w", err)
		}
		return 0, nil
	}
	tmp := TrendingKey + ":build:" + uuid.NewString()
	for id, score := range scores {
		if err := t.cache.ZAdd(ctx, tmp, score, id); err != nil {
			_ = t.cache.Del(ctx, tmp)
			return 0, fmt.Errorf("trending: store: %w", err)
		}
	}
	if err := t.cache.Rename(ctx, tmp, TrendingKey); err != nil {
		_ = t.cache.Del(ctx, tmp)
		return 0, fmt.Errorf("trending: swap: %w", err)
	}
	return len(scores), nil
}

// RegisterHooks keeps trending scores current: a first reaction or any reply
// adds one point. Kind switches do not count.
func (t *Trending) RegisterHooks(hc *hook.HookCenter) {
	hc.Register(hook.AfterReaction, 100, "trending", func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		if ev, ok := data.(hook.ReactionEvent); ok && ev.IsNew() {
			t.Bump(ctx, ev.RantID, 1)
		}
		return data, nil
	})
	hc.Register(hook.AfterReply, 100, "trending", func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		if ev, ok := data.(hook.ReplyEvent); ok && ev.Rant != nil {
			t.Bump(ctx, ev.Rant.ID, 1)
		}
		return data, nil
	})
}

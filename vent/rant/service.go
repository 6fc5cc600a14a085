// Package rant owns the rant aggregate: posting, reading and replying.
// Reactions live in package reaction; both write the same rows.
package rant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ventwave/ventboard/config"
	"github.com/ventwave/ventboard/metrics"
	"github.com/ventwave/ventboard/model"
	"github.com/ventwave/ventboard/plugin/hook"
	"github.com/ventwave/ventboard/vent/author"
	"github.com/ventwave/ventboard/vent/ledger"
	"github.com/ventwave/ventboard/vent/thread"
)

const (
	MinTextLen = 10
	MaxTextLen = 1200
	MaxTags    = 5

	maxTagLen    = 32
	maxMoodLen   = 32
	defaultMood  = "neutral"
	defaultLimit = 50
	// replyAttempts bounds the optimistic retry loop on the version column.
	replyAttempts = 8
)

var (
	ErrTooShort       = errors.New("Rant too short")
	ErrTooLong        = errors.New("Rant too long")
	ErrNotFound       = errors.New("Not found")
	ErrRejected       = errors.New("Rant rejected")
	ErrReplyRequired  = errors.New("Reply required")
	ErrReplyTooLong   = errors.New("Reply too long")
	ErrParentNotFound = thread.ErrNodeNotFound
	ErrContention     = errors.New("Rant is busy, retry")
)

// CreateInput is a new rant as submitted by a client.
type CreateInput struct {
	Text string
	Mood string
	Tags []string
	Mode author.Mode
}

// View is a rant with its reply tree expanded for clients.
type View struct {
	*model.Rant
	Replies []thread.Reply `json:"replies"`
}

func viewOf(r *model.Rant) *View {
	t := r.Tree()
	return &View{Rant: r, Replies: t.Nested()}
}

// Service posts and reads rants.
type Service struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	hooks  *hook.HookCenter
	logger *zap.Logger
	limit  int
	now    func() time.Time
	intn   author.Intn
}

// New creates a Service. hooks may be nil.
func New(db *gorm.DB, l *ledger.Ledger, hooks *hook.HookCenter, feed config.FeedConfig, logger *zap.Logger) *Service {
	limit := feed.ListLimit
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Service{db: db, ledger: l, hooks: hooks, logger: logger, limit: limit, now: time.Now}
}

// SetAliasSource overrides the random source used for anonymous aliases.
func (s *Service) SetAliasSource(intn author.Intn) { s.intn = intn }

// SetClock overrides the time source used for reply timestamps.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// NormalizeMood trims and lower-cases a mood, falling back to "neutral".
func NormalizeMood(mood string) string {
	mood = strings.ToLower(strings.TrimSpace(mood))
	if mood == "" {
		return defaultMood
	}
	if utf8.RuneCountInString(mood) > maxMoodLen {
		mood = string([]rune(mood)[:maxMoodLen])
	}
	return mood
}

// NormalizeTags lower-cases and trims tags, drops empty and repeated ones and
// keeps at most MaxTags.
func NormalizeTags(tags []string) []string {
	out := lo.FilterMap(tags, func(t string, _ int) (string, bool) {
		t = strings.ToLower(strings.TrimSpace(t))
		if utf8.RuneCountInString(t) > maxTagLen {
			t = string([]rune(t)[:maxTagLen])
		}
		return t, t != ""
	})
	out = lo.Uniq(out)
	if len(out) > MaxTags {
		out = out[:MaxTags]
	}
	return out
}

// member loads the signed-in requester. An unknown id is treated as a guest.
func (s *Service) member(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, nil
	}
	var u model.User
	err := s.db.WithContext(ctx).
		Select("id", "username", "equip_rant_theme", "equip_profile_theme", "equip_name_glow", "equip_rant_effect").
		Where("id = ?", userID).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rant: load user: %w", err)
	}
	return &u, nil
}

func memberOf(u *model.User) *author.Member {
	if u == nil {
		return nil
	}
	return &author.Member{ID: u.ID, Name: u.Username}
}

// Create posts a rant. A signed-in author gets their equipped cosmetics frozen
// onto the rant and the rant-created reward, whichever mode they post in.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*View, error) {
	text := strings.TrimSpace(in.Text)
	switch n := utf8.RuneCountInString(text); {
	case n < MinTextLen:
		return nil, ErrTooShort
	case n > MaxTextLen:
		return nil, ErrTooLong
	}

	u, err := s.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	loadout := model.DefaultLoadout()
	if u != nil {
		loadout = u.Equipped
	}
	r := &model.Rant{
		Text:      text,
		Mood:      NormalizeMood(in.Mood),
		Tags:      datatypes.JSONSlice[string](NormalizeTags(in.Tags)),
		Author:    author.Resolve(in.Mode, memberOf(u), s.intn),
		Cosmetics: model.SnapshotOf(loadout),
		Replies:   datatypes.NewJSONType(thread.New()),
	}

	if s.hooks != nil {
		if _, err := s.hooks.Trigger(ctx, hook.BeforeRantCreate, r); errors.Is(err, hook.ErrInterrupt) {
			return nil, ErrRejected
		}
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, fmt.Errorf("rant: create: %w", err)
	}
	metrics.RantCreated(string(r.AuthorMode))

	if u != nil {
		s.ledger.Award(ctx, u.ID, s.ledger.RantCreated())
	}
	if s.hooks != nil {
		_, _ = s.hooks.Trigger(ctx, hook.AfterRantCreate, r)
	}
	return viewOf(r), nil
}

// List returns the newest rants without their reply trees.
func (s *Service) List(ctx context.Context) ([]*model.Rant, error) {
	var rants []*model.Rant
	err := s.db.WithContext(ctx).Omit("replies").
		Order("created_at DESC").Limit(s.limit).Find(&rants).Error
	if err != nil {
		return nil, fmt.Errorf("rant: list: %w", err)
	}
	return rants, nil
}

// ByIDs loads rants without reply trees, keeping the order of ids and
// skipping ids that no longer exist.
func (s *Service) ByIDs(ctx context.Context, ids []string) ([]*model.Rant, error) {
	if len(ids) == 0 {
		return []*model.Rant{}, nil
	}
	var rants []*model.Rant
	if err := s.db.WithContext(ctx).Omit("replies").Where("id IN ?", ids).Find(&rants).Error; err != nil {
		return nil, fmt.Errorf("rant: by ids: %w", err)
	}
	byID := lo.KeyBy(rants, func(r *model.Rant) string { return r.ID })
	return lo.FilterMap(ids, func(id string, _ int) (*model.Rant, bool) {
		r, ok := byID[id]
		return r, ok
	}), nil
}

// Get returns one rant with its full reply tree.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	r, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return viewOf(r), nil
}

func (s *Service) load(db *gorm.DB, id string) (*model.Rant, error) {
	var r model.Rant
	err := db.Where("id = ?", id).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rant: load: %w", err)
	}
	return &r, nil
}

// Reply adds a reply to the rant, at the top level when parentID is empty or
// under the reply parentID otherwise, and returns the updated rant.
//
// The tree is rewritten with a compare-and-swap on the version column so a
// concurrent reply is never lost; reaction counters are not touched.
func (s *Service) Reply(ctx context.Context, rantID, parentID, text string, mode author.Mode, userID string) (*View, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrReplyRequired
	}
	if utf8.RuneCountInString(text) > thread.MaxTextLen {
		return nil, ErrReplyTooLong
	}
	depth := "top"
	if parentID != "" {
		depth = "nested"
	}

	u, err := s.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	node := thread.NewNode(text, author.Resolve(mode, memberOf(u), s.intn), s.now().UTC())

	db := s.db.WithContext(ctx)
	var r *model.Rant
	for attempt := 0; ; attempt++ {
		if attempt == replyAttempts {
			metrics.Reply(depth, "contention")
			return nil, ErrContention
		}
		r, err = s.load(db, rantID)
		if err != nil {
			return nil, err
		}
		tree := r.Tree()
		if parentID == "" {
			tree.AppendTopLevel(node)
		} else if err := tree.AppendChild(parentID, node); err != nil {
			metrics.Reply(depth, "parent_missing")
			return nil, ErrParentNotFound
		}

		upd := db.Model(&model.Rant{}).
			Where("id = ? AND version = ?", r.ID, r.Version).
			UpdateColumns(map[string]interface{}{
				"replies":     datatypes.NewJSONType(tree),
				"reply_count": tree.Len(),
				"version":     r.Version + 1,
				"updated_at":  s.now(),
			})
		if upd.Error != nil {
			return nil, fmt.Errorf("rant: reply: %w", upd.Error)
		}
		if upd.RowsAffected == 1 {
			r.Replies = datatypes.NewJSONType(tree)
			r.ReplyCount = tree.Len()
			r.Version++
			break
		}
	}
	metrics.Reply(depth, "ok")

	if u != nil {
		s.ledger.Award(ctx, u.ID, s.ledger.ReplyCreated())
	}
	if s.hooks != nil {
		_, _ = s.hooks.Trigger(ctx, hook.AfterReply, hook.ReplyEvent{Rant: r, ReplyID: node.ID, ParentID: parentID})
	}
	return viewOf(r), nil
}

// Package reaction keeps at most one reaction per actor per rant and keeps
// the rant's per-kind counters in step with it.
package reaction

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	dbadapter "github.com/ventwave/ventboard/db"
	"github.com/ventwave/ventboard/metrics"
	"github.com/ventwave/ventboard/model"
	"github.com/ventwave/ventboard/plugin/hook"
	"github.com/ventwave/ventboard/vent/identity"
	"github.com/ventwave/ventboard/vent/ledger"
)

var (
	ErrInvalidKind  = errors.New("Invalid reaction")
	ErrRantNotFound = errors.New("Rant not found")
	// ErrReactionConflict means a concurrent request for the same actor won;
	// the client may retry.
	ErrReactionConflict = errors.New("Reaction changed concurrently, retry")
)

// Outcomes reported in Result.
const (
	OutcomeNew       = "new"
	OutcomeSwitched  = "switched"
	OutcomeUnchanged = "unchanged"
)

// Result is the state after a React call.
type Result struct {
	RantID    string               `json:"rantId"`
	Kind      model.ReactionKind   `json:"kind"`
	Outcome   string               `json:"outcome"`
	Reactions model.ReactionCounts `json:"reactions"`
}

// Register applies reactions.
type Register struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	hooks  *hook.HookCenter
	logger *zap.Logger
}

// New creates a Register. hooks may be nil.
func New(db *gorm.DB, l *ledger.Ledger, hooks *hook.HookCenter, logger *zap.Logger) *Register {
	return &Register{db: db, ledger: l, hooks: hooks, logger: logger}
}

// React records actor's reaction of kind on the rant.
//
// A first reaction inserts a record and increments the kind's counter, and
// is the only path that pays rewards. Repeating the same kind is a no-op.
// Switching kinds moves one count from the old kind to the new one.
func (r *Register) React(ctx context.Context, rantID string, actor identity.Actor, kind model.ReactionKind) (*Result, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	res := &Result{RantID: rantID, Kind: kind}
	var authorID string
	var oldKind model.ReactionKind

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rant model.Rant
		err := tx.Select("id", "author_user_id").Where("id = ?", rantID).Take(&rant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRantNotFound
		}
		if err != nil {
			return err
		}
		authorID = rant.Author.UserID()

		var existing model.Reaction
		err = tx.Where("rant_id = ? AND actor_key = ?", rantID, actor.Key()).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := r.insert(tx, rantID, actor, kind); err != nil {
				return err
			}
			res.Outcome = OutcomeNew
		case err != nil:
			return err
		case existing.Kind == kind:
			res.Outcome = OutcomeUnchanged
		default:
			oldKind = existing.Kind
			if err := r.switchKind(tx, &existing, kind); err != nil {
				return err
			}
			res.Outcome = OutcomeSwitched
		}

		var counts model.Rant
		if err := tx.Select("id", "react_feel", "react_rage", "react_hug", "react_lol").
			Where("id = ?", rantID).Take(&counts).Error; err != nil {
			return err
		}
		res.Reactions = counts.Reactions
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrReactionConflict) {
			metrics.Reaction(string(kind), "conflict")
		}
		if errors.Is(err, ErrRantNotFound) || errors.Is(err, ErrReactionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("reaction: %w", err)
	}
	metrics.Reaction(string(kind), res.Outcome)

	if res.Outcome == OutcomeNew {
		r.reward(ctx, authorID, actor)
	}
	if res.Outcome != OutcomeUnchanged && r.hooks != nil {
		_, _ = r.hooks.Trigger(ctx, hook.AfterReaction, hook.ReactionEvent{
			RantID:  rantID,
			Kind:    kind,
			OldKind: oldKind,
			UserID:  actor.UserID(),
			Counts:  res.Reactions,
		})
	}
	return res, nil
}

func (r *Register) insert(tx *gorm.DB, rantID string, actor identity.Actor, kind model.ReactionKind) error {
	rec := &model.Reaction{RantID: rantID, ActorKey: actor.Key(), Kind: kind}
	if actor.IsUser() {
		id := actor.ID
		rec.UserID = &id
	} else {
		id := actor.ID
		rec.GuestID = &id
	}
	if err := tx.Create(rec).Error; err != nil {
		if dbadapter.IsUniqueViolation(err) {
			return ErrReactionConflict
		}
		return err
	}
	return tx.Model(&model.Rant{}).Where("id = ?", rantID).
		UpdateColumn(kind.Column(), gorm.Expr(kind.Column()+" + 1")).Error
}

func (r *Register) switchKind(tx *gorm.DB, existing *model.Reaction, kind model.ReactionKind) error {
	old := existing.Kind
	upd := tx.Model(&model.Reaction{}).
		Where("id = ? AND kind = ?", existing.ID, old).
		Updates(map[string]interface{}{"kind": kind})
	if upd.Error != nil {
		return upd.Error
	}
	if upd.RowsAffected == 0 {
		return ErrReactionConflict
	}
	oldCol, newCol := old.Column(), kind.Column()
	cols := map[string]interface{}{
		newCol: gorm.Expr(newCol + " + 1"),
	}
	if oldCol != "" {
		cols[oldCol] = gorm.Expr("CASE WHEN " + oldCol + " > 0 THEN " + oldCol + " - 1 ELSE 0 END")
	}
	existing.Kind = kind
	return tx.Model(&model.Rant{}).Where("id = ?", existing.RantID).UpdateColumns(cols).Error
}

// reward pays the author for being reacted to and the actor for reacting.
// Self-reactions pay nothing; anonymous authors and guests receive nothing.
func (r *Register) reward(ctx context.Context, authorID string, actor identity.Actor) {
	actorUser := actor.UserID()
	if authorID != "" && authorID != actorUser {
		r.ledger.Award(ctx, authorID, r.ledger.ReactionReceived())
	}
	if actorUser != "" && actorUser != authorID {
		r.ledger.Award(ctx, actorUser, r.ledger.ReactionGiven())
	}
}

// Current returns the actor's reaction kind on the rant, or "".
func (r *Register) Current(ctx context.Context, rantID string, actor identity.Actor) (model.ReactionKind, error) {
	var rec model.Reaction
	err := r.db.WithContext(ctx).Select("kind").
		Where("rant_id = ? AND actor_key = ?", rantID, actor.Key()).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reaction: %w", err)
	}
	return rec.Kind, nil
}

// Package ledger credits Vent Energy under a per-user daily cap.
//
// Each grant is a compare-and-swap on the user's balance and daily counter,
// so concurrent grants never lose updates or overshoot the cap.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ventwave/ventboard/audit"
	"github.com/ventwave/ventboard/config"
	"github.com/ventwave/ventboard/metrics"
	"github.com/ventwave/ventboard/model"
)

// Grant reasons.
const (
	ReasonRantCreated      = "rant_created"
	ReasonReplyCreated     = "reply_created"
	ReasonReactionReceived = "reaction_received"
	ReasonReactionGiven    = "reaction_given"
	ReasonAdmin            = "admin_adjust"
)

const maxAttempts = 16

var (
	ErrUserNotFound = errors.New("User not found")
	ErrContention   = errors.New("ledger: too much contention")
	ErrNegative     = errors.New("Balance cannot go negative")
)

// Reward is one configured credit.
type Reward struct {
	Reason string
	Amount int64
	Cap    int64 // 0 means the default daily cap
}

// DateKey is the UTC calendar day used to bucket daily earnings.
func DateKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// Ledger applies grants and admin adjustments.
type Ledger struct {
	db      *gorm.DB
	rw      config.RewardsConfig
	journal *audit.Service
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Ledger. journal may be nil.
func New(db *gorm.DB, rw config.RewardsConfig, journal *audit.Service, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, rw: rw, journal: journal, logger: logger, now: time.Now}
}

// SetClock overrides the time source.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

func (l *Ledger) RantCreated() Reward {
	return Reward{Reason: ReasonRantCreated, Amount: int64(l.rw.RantCreated)}
}

func (l *Ledger) ReplyCreated() Reward {
	return Reward{Reason: ReasonReplyCreated, Amount: int64(l.rw.ReplyCreated)}
}

func (l *Ledger) ReactionReceived() Reward {
	return Reward{Reason: ReasonReactionReceived, Amount: int64(l.rw.ReactionReceived)}
}

func (l *Ledger) ReactionGiven() Reward {
	return Reward{Reason: ReasonReactionGiven, Amount: int64(l.rw.ReactionGiven), Cap: int64(l.rw.ReactionGivenDailyCap)}
}

// DailyCap is the default cap applied when a grant names none.
func (l *Ledger) DailyCap() int64 {
	if l.rw.DailyCap <= 0 {
		return int64(config.DefaultRewards().DailyCap)
	}
	return int64(l.rw.DailyCap)
}

// Grant credits up to amount to the user, limited so that the amount earned
// today never exceeds cap. It returns how much was actually credited.
// A non-positive amount or an empty user id is a no-op.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int64, reason string, cap int64) (int64, error) {
	if userID == "" || amount <= 0 {
		return 0, nil
	}
	if cap <= 0 {
		cap = l.DailyCap()
	}
	db := l.db.WithContext(ctx)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var u model.User
		err := db.Select("id", "vent_energy", "ve_daily_date_key", "ve_daily_earned_today").
			Where("id = ?", userID).Take(&u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("ledger: load user: %w", err)
		}

		today := DateKey(l.now())
		earned := u.VEDaily.EarnedToday
		if u.VEDaily.DateKey != today {
			earned = 0
		}
		add := min(amount, max(0, cap-earned))
		if add == 0 {
			metrics.VEGranted(reason, 0, amount)
			return 0, nil
		}

		res := db.Model(&model.User{}).
			Where("id = ? AND vent_energy = ? AND ve_daily_date_key = ? AND ve_daily_earned_today = ?",
				u.ID, u.VentEnergy, u.VEDaily.DateKey, u.VEDaily.EarnedToday).
			Updates(map[string]interface{}{
				"vent_energy":           u.VentEnergy + add,
				"ve_daily_date_key":     today,
				"ve_daily_earned_today": earned + add,
			})
		if res.Error != nil {
			return 0, fmt.Errorf("ledger: apply grant: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			balance := u.VentEnergy + add
			metrics.VEGranted(reason, add, amount-add)
			l.journal.Log(ctx, audit.Entry{
				UserID:  userID,
				Action:  model.ActionVEGrant,
				Amount:  add,
				Balance: &balance,
				Detail:  map[string]interface{}{"reason": reason, "requested": amount, "cap": cap},
			})
			return add, nil
		}
	}
	return 0, ErrContention
}

// Award applies a configured reward and swallows failures: rewards never
// undo or fail the action that earned them.
func (l *Ledger) Award(ctx context.Context, userID string, r Reward) int64 {
	if userID == "" {
		return 0
	}
	added, err := l.Grant(ctx, userID, r.Amount, r.Reason, r.Cap)
	if err != nil {
		l.logger.Warn("reward grant failed",
			zap.String("user_id", userID),
			zap.String("reason", r.Reason),
			zap.Int64("amount", r.Amount),
			zap.Error(err))
		return 0
	}
	return added
}

// Adjust changes a balance by delta outside the daily cap. The balance may
// not drop below zero.
func (l *Ledger) Adjust(ctx context.Context, userID string, delta int64, note string) (int64, error) {
	db := l.db.WithContext(ctx)
	q := db.Model(&model.User{}).Where("id = ?", userID)
	if delta < 0 {
		q = q.Where("vent_energy >= ?", -delta)
	}
	res := q.Update("vent_energy", gorm.Expr("vent_energy + ?", delta))
	if res.Error != nil {
		return 0, fmt.Errorf("ledger: adjust: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.Model(&model.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
			return 0, fmt.Errorf("ledger: adjust: %w", err)
		}
		if n == 0 {
			return 0, ErrUserNotFound
		}
		return 0, ErrNegative
	}
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}
	l.journal.Log(ctx, audit.Entry{
		UserID:  userID,
		Action:  model.ActionVEAdjust,
		Amount:  delta,
		Balance: &balance,
		Detail:  map[string]string{"note": note},
	})
	return balance, nil
}

// Balance returns the user's current Vent Energy.
func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	var u model.User
	err := l.db.WithContext(ctx).Select("id", "vent_energy").Where("id = ?", userID).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: balance: %w", err)
	}
	return u.VentEnergy, nil
}

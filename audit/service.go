package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ventwave/ventboard/model"
)

const (
	batchSize     = 100
	flushInterval = 2 * time.Second
)

// Entry holds one journal event to be logged.
type Entry struct {
	UserID  string
	Action  string
	Amount  int64
	Balance *int64
	Detail  interface{}
}

// Service writes journal entries asynchronously in batches.
type Service struct {
	db       *gorm.DB
	ch       chan *model.AuditLog
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates a new audit Service and starts its background worker.
// bufSize bounds the queue; entries beyond it are dropped with a warning.
func New(db *gorm.DB, bufSize int, logger *zap.Logger) *Service {
	if bufSize <= 0 {
		bufSize = 1024
	}
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, bufSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an entry for async DB write. Trace id and client IP are
// taken from ctx when present. Log never blocks and is safe on a nil Service.
func (svc *Service) Log(ctx context.Context, entry Entry) {
	if svc == nil {
		return
	}
	tr := TraceFrom(ctx)
	record := &model.AuditLog{
		TraceID: tr.ID,
		Action:  entry.Action,
		Amount:  entry.Amount,
		Balance: entry.Balance,
		IP:      tr.IP,
	}
	if entry.UserID != "" {
		uid := entry.UserID
		record.UserID = &uid
	}
	if entry.Detail != nil {
		if raw, err := json.Marshal(entry.Detail); err == nil {
			record.Detail = datatypes.JSON(raw)
		}
	}
	select {
	case <-svc.stopCh:
		return
	default:
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", entry.Action), zap.String("user_id", entry.UserID))
	}
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

// Prune deletes entries older than the retention window.
func (svc *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res := svc.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.AuditLog{})
	return res.RowsAffected, res.Error
}

// Recent returns the newest entries, optionally for one user.
func (svc *Service) Recent(ctx context.Context, userID string, limit int) ([]model.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := svc.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var out []model.AuditLog
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Error(err), zap.Int("entries", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

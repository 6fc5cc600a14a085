package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks.
type TaskFn func()

// Task kinds reported by Tasks.
const (
	KindTicker = "ticker"
	KindCron   = "cron"
)

// TaskInfo describes a registered task for admin listing.
type TaskInfo struct {
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Schedule string    `json:"schedule"`
	Runs     int64     `json:"runs"`
	LastRun  time.Time `json:"lastRun"`
	Next     time.Time `json:"next,omitempty"`
}

// Scheduler manages interval tickers and cron entries. Cron specs use the
// standard five-field format and are evaluated in UTC.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	crons   map[string]*cronEntry
	cron    *cron.Cron
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped bool
}

type stats struct {
	runs    int64
	lastRun time.Time
}

type tickerEntry struct {
	interval time.Duration
	fn       TaskFn
	ticker   *time.Ticker
	stopCh   chan struct{}
	stats
}

type cronEntry struct {
	spec string
	id   cron.EntryID
	fn   TaskFn
	stats
}

// New creates a new Scheduler and starts its cron runner.
func New(logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		tickers: make(map[string]*tickerEntry),
		crons:   make(map[string]*cronEntry),
		cron:    cron.New(cron.WithLocation(time.UTC)),
		stopCh:  make(chan struct{}),
		logger:  logger,
	}
	s.cron.Start()
	return s
}

// run executes fn for the named task, recording stats and recovering panics.
func (s *Scheduler) run(name string, st *stats, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
		}
	}()
	s.mu.Lock()
	st.runs++
	st.lastRun = time.Now()
	s.mu.Unlock()
	fn()
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.removeLocked(name)

	entry := &tickerEntry{
		interval: interval,
		fn:       fn,
		ticker:   time.NewTicker(interval),
		stopCh:   make(chan struct{}),
	}
	s.tickers[name] = entry

	go func() {
		defer entry.ticker.Stop()
		for {
			select {
			case <-entry.ticker.C:
				select {
				case <-entry.stopCh:
					return
				case <-s.stopCh:
					return
				default:
				}
				s.run(name, &entry.stats, fn)
			case <-entry.stopCh:
				return
			case <-s.stopCh:
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddCron registers fn under a cron spec such as "0 4 * * *".
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddCron(name, spec string, fn TaskFn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return fmt.Errorf("scheduler: stopped")
	}
	entry := &cronEntry{spec: spec, fn: fn}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, &entry.stats, fn) })
	if err != nil {
		return fmt.Errorf("scheduler: cron %q: %w", name, err)
	}
	s.removeLocked(name)
	entry.id = id
	s.crons[name] = entry
	s.logger.Info("scheduler cron registered", zap.String("name", name), zap.String("spec", spec))
	return nil
}

// RunNow executes the named task synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) bool {
	s.mu.Lock()
	var (
		fn TaskFn
		st *stats
	)
	if t, ok := s.tickers[name]; ok {
		fn, st = t.fn, &t.stats
	} else if c, ok := s.crons[name]; ok {
		fn, st = c.fn, &c.stats
	}
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	s.run(name, st, fn)
	return true
}

func (s *Scheduler) removeLocked(name string) {
	if entry, ok := s.tickers[name]; ok {
		close(entry.stopCh)
		delete(s.tickers, name)
	}
	if entry, ok := s.crons[name]; ok {
		s.cron.Remove(entry.id)
		delete(s.crons, name)
	}
}

// Remove stops and removes a task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
}

// Stop stops all tasks and waits for running cron jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// Tasks returns every registered task sorted by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tickers)+len(s.crons))
	for name, t := range s.tickers {
		out = append(out, TaskInfo{
			Name: name, Kind: KindTicker, Schedule: t.interval.String(),
			Runs: t.runs, LastRun: t.lastRun,
		})
	}
	for name, c := range s.crons {
		out = append(out, TaskInfo{
			Name: name, Kind: KindCron, Schedule: c.spec,
			Runs: c.runs, LastRun: c.lastRun, Next: s.cron.Entry(c.id).Next,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

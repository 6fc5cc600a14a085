package hook

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ventwave/ventboard/model"
)

// ErrInterrupt signals that a Hook handler wants to stop further processing.
var ErrInterrupt = errors.New("hook interrupted")

// HookFn is a hook handler function.
// Returns (modified data, nil) to continue, or (data, ErrInterrupt) to stop.
type HookFn func(ctx context.Context, event string, data interface{}) (interface{}, error)

type hookEntry struct {
	priority int
	fn       HookFn
	name     string
}

// HookCenter manages event hook registrations.
type HookCenter struct {
	mu     sync.RWMutex
	hooks  map[string][]*hookEntry
	logger *zap.Logger
}

// NewHookCenter creates a new HookCenter. A nil logger discards hook panics.
func NewHookCenter(logger *zap.Logger) *HookCenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HookCenter{hooks: make(map[string][]*hookEntry), logger: logger}
}

// Register adds a HookFn for the given event with the given priority (lower runs first).
// name is used for Unregister.
func (hc *HookCenter) Register(event string, priority int, name string, fn HookFn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	entries := hc.hooks[event]
	entries = append(entries, &hookEntry{priority: priority, fn: fn, name: name})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	hc.hooks[event] = entries
}

// Unregister removes all hooks with the given name for the given event.
func (hc *HookCenter) Unregister(event, name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	entries := hc.hooks[event]
	n := 0
	for _, e := range entries {
		if e.name != name {
			entries[n] = e
			n++
		}
	}
	hc.hooks[event] = entries[:n]
}

// UnregisterAll removes all hooks registered with the given name across all events.
func (hc *HookCenter) UnregisterAll(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for event, entries := range hc.hooks {
		n := 0
		for _, e := range entries {
			if e.name != name {
				entries[n] = e
				n++
			}
		}
		hc.hooks[event] = entries[:n]
	}
}

// Trigger executes all registered hooks for event in priority order.
// Data flows through each handler, allowing modification.
// If any handler returns ErrInterrupt, execution stops. A panicking handler
// is logged and skipped with the data unchanged.
func (hc *HookCenter) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	hc.mu.RLock()
	entries := make([]*hookEntry, len(hc.hooks[event]))
	copy(entries, hc.hooks[event])
	hc.mu.RUnlock()

	for _, e := range entries {
		out, err := hc.call(ctx, e, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err != nil {
			hc.logger.Warn("hook failed",
				zap.String("event", event), zap.String("hook", e.name), zap.Error(err))
		}
		data = out
	}
	return data, nil
}

func (hc *HookCenter) call(ctx context.Context, e *hookEntry, event string, data interface{}) (out interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			hc.logger.Error("hook panicked",
				zap.String("event", event), zap.String("hook", e.name), zap.Any("recover", r))
			out, err = data, nil
		}
	}()
	return e.fn(ctx, event, data)
}

// Count returns how many hooks are registered for event.
func (hc *HookCenter) Count(event string) int {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return len(hc.hooks[event])
}

// ---- Hook events ----

const (
	// BeforeRantCreate receives *model.Rant before it is stored; ErrInterrupt rejects it.
	BeforeRantCreate = "before_rant_create"
	// AfterRantCreate receives *model.Rant.
	AfterRantCreate = "after_rant_create"
	// AfterReply receives ReplyEvent.
	AfterReply = "after_reply"
	// AfterReaction receives ReactionEvent.
	AfterReaction = "after_reaction"
)

// ReplyEvent is the payload of AfterReply.
type ReplyEvent struct {
	Rant     *model.Rant
	ReplyID  string
	ParentID string // empty for top-level replies
}

// ReactionEvent is the payload of AfterReaction.
type ReactionEvent struct {
	RantID  string
	Kind    model.ReactionKind
	OldKind model.ReactionKind // empty when the reaction is new
	UserID  string             // empty for guests
	Counts  model.ReactionCounts
}

// IsNew reports whether the event records a first reaction rather than a switch.
func (e ReactionEvent) IsNew() bool { return e.OldKind == "" }

package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ventwave/ventboard/cache"
	"github.com/ventwave/ventboard/metrics"
	"github.com/ventwave/ventboard/model"
	"github.com/ventwave/ventboard/plugin/hook"
)

const (
	FeedChannel     = "feed"
	AnnounceChannel = "announce"
)

// Feed event types.
const (
	EventRantCreated = "rant.created"
	EventReacted     = "rant.reacted"
	EventReplied     = "rant.replied"
)

// FeedEvent is one live feed update.
type FeedEvent struct {
	Type       string                `json:"type"`
	RantID     string                `json:"rantId"`
	Rant       *model.Rant           `json:"rant,omitempty"`
	Reactions  *model.ReactionCounts `json:"reactions,omitempty"`
	ReplyID    string                `json:"replyId,omitempty"`
	ParentID   string                `json:"parentId,omitempty"`
	ReplyCount int                   `json:"replyCount,omitempty"`
}

// Handler handles the SSE endpoint.
type Handler struct {
	pubsub    cache.PubSub
	logger    *zap.Logger
	keepalive time.Duration
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, logger: logger, keepalive: 30 * time.Second}
}

// ServeSSE handles GET /sse.
// The feed is public, so no token is required. Each message is sent with
// its channel name as the event name.
func (h *Handler) ServeSSE(c *gin.Context) {
	// Set SSE headers.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, FeedChannel, AnnounceChannel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	metrics.SSEConnected()
	defer metrics.SSEDisconnected()

	// Send initial connected event.
	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", msg.Channel, msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

// Announce publishes an announcement message to all SSE subscribers.
func (h *Handler) Announce(ctx context.Context, message string) error {
	raw, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return err
	}
	return h.pubsub.Publish(ctx, AnnounceChannel, string(raw))
}

// Publish sends a feed event to all subscribers. Failures are logged only.
func (h *Handler) Publish(ctx context.Context, ev FeedEvent) {
	raw, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("sse encode failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	if err := h.pubsub.Publish(ctx, FeedChannel, string(raw)); err != nil {
		h.logger.Warn("sse publish failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

// RegisterHooks forwards rant activity to the live feed.
func (h *Handler) RegisterHooks(hc *hook.HookCenter) {
	hc.Register(hook.AfterRantCreate, 200, "sse", func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		if r, ok := data.(*model.Rant); ok {
			h.Publish(ctx, FeedEvent{Type: EventRantCreated, RantID: r.ID, Rant: r})
		}
		return data, nil
	})
	hc.Register(hook.AfterReaction, 200, "sse", func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		if ev, ok := data.(hook.ReactionEvent); ok {
			counts := ev.Counts
			h.Publish(ctx, FeedEvent{Type: EventReacted, RantID: ev.RantID, Reactions: &counts})
		}
		return data, nil
	})
	hc.Register(hook.AfterReply, 200, "sse", func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		if ev, ok := data.(hook.ReplyEvent); ok && ev.Rant != nil {
			h.Publish(ctx, FeedEvent{
				Type:       EventReplied,
				RantID:     ev.Rant.ID,
				ReplyID:    ev.ReplyID,
				ParentID:   ev.ParentID,
				ReplyCount: ev.Rant.ReplyCount,
			})
		}
		return data, nil
	})
}

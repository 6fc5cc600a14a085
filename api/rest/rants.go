package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	mw "github.com/ventwave/ventboard/middleware"
	"github.com/ventwave/ventboard/model"
	"github.com/ventwave/ventboard/vent/author"
	"github.com/ventwave/ventboard/vent/identity"
	"github.com/ventwave/ventboard/vent/rant"
	"github.com/ventwave/ventboard/vent/reaction"
)

// GuestIDHeader carries the client-generated guest identity.
const GuestIDHeader = "X-Guest-Id"

// RantHandler handles rant, reply and reaction endpoints.
type RantHandler struct {
	rants     *rant.Service
	trending  *rant.Trending
	reactions *reaction.Register
}

// NewRantHandler creates a new RantHandler.
func NewRantHandler(rants *rant.Service, trending *rant.Trending, reactions *reaction.Register) *RantHandler {
	return &RantHandler{rants: rants, trending: trending, reactions: reactions}
}

// List handles GET /api/rants.
func (h *RantHandler) List(c *gin.Context) {
	rants, err := h.rants.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rants": rants})
}

// Trending handles GET /api/rants/trending.
func (h *RantHandler) Trending(c *gin.Context) {
	rants, err := h.trending.Top(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rants": rants})
}

// Get handles GET /api/rants/:id.
// When the caller is identifiable, myReaction carries their current kind.
func (h *RantHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	v, err := h.rants.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	v.Score24h = h.trending.Score(ctx, v.ID)

	var mine *model.ReactionKind
	if actor, err := identity.Resolve(mw.GetUserID(c), c.GetHeader(GuestIDHeader)); err == nil {
		kind, err := h.reactions.Current(ctx, v.ID, actor)
		if err != nil {
			respondError(c, err)
			return
		}
		if kind != "" {
			mine = &kind
		}
	}
	c.JSON(http.StatusOK, gin.H{"rant": v, "myReaction": mine})
}

type createRantRequest struct {
	Text       string   `json:"text"`
	Mood       string   `json:"mood"`
	Tags       []string `json:"tags"`
	AuthorMode string   `json:"authorMode"`
}

// Create handles POST /api/rants.
// Guests may post; their rants are always anonymous.
func (h *RantHandler) Create(c *gin.Context) {
	var req createRantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, rant.ErrTooShort.Error())
		return
	}
	v, err := h.rants.Create(c.Request.Context(), mw.GetUserID(c), rant.CreateInput{
		Text: req.Text,
		Mood: req.Mood,
		Tags: req.Tags,
		Mode: author.Mode(req.AuthorMode),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rant": v})
}

type reactRequest struct {
	Key string `json:"key"`
}

// React handles POST /api/rants/:id/react.
// A signed-in user reacts as themselves; otherwise X-Guest-Id is required.
func (h *RantHandler) React(c *gin.Context) {
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, reaction.ErrInvalidKind)
		return
	}
	actor, err := identity.Resolve(mw.GetUserID(c), c.GetHeader(GuestIDHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	res, err := h.reactions.React(ctx, c.Param("id"), actor, model.ReactionKind(req.Key))
	if err != nil {
		respondError(c, err)
		return
	}
	v, err := h.rants.Get(ctx, res.RantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rant": v, "reaction": res})
}

type replyRequest struct {
	Text       string `json:"text"`
	AuthorMode string `json:"authorMode"`
}

// Reply handles POST /api/rants/:id/reply and
// POST /api/rants/:id/reply/:replyId.
func (h *RantHandler) Reply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, rant.ErrReplyRequired)
		return
	}
	v, err := h.rants.Reply(c.Request.Context(), c.Param("id"), c.Param("replyId"),
		req.Text, author.Mode(req.AuthorMode), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rant": v})
}

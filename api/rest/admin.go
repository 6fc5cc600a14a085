package rest

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ventwave/ventboard/audit"
	"github.com/ventwave/ventboard/model"
	"github.com/ventwave/ventboard/resource"
	"github.com/ventwave/ventboard/scheduler"
	"github.com/ventwave/ventboard/vent/cosmetics"
	"github.com/ventwave/ventboard/vent/ledger"
)

// Announcer broadcasts a message to live feed listeners.
type Announcer interface {
	Announce(ctx context.Context, message string) error
}

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by the AdminKey middleware.
type AdminHandler struct {
	db       *gorm.DB
	catalog  *cosmetics.Catalog
	ledger   *ledger.Ledger
	journal  *audit.Service
	sched    *scheduler.Scheduler
	announce Announcer
	dataPath string
	logger   *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	db *gorm.DB,
	catalog *cosmetics.Catalog,
	l *ledger.Ledger,
	journal *audit.Service,
	sched *scheduler.Scheduler,
	announce Announcer,
	dataPath string,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		db: db, catalog: catalog, ledger: l, journal: journal, sched: sched,
		announce: announce, dataPath: dataPath, logger: logger,
	}
}

// Stats returns row counts and the daily reward cap.
// GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	counts := map[string]int64{}
	for name, m := range map[string]interface{}{
		"users":     &model.User{},
		"rants":     &model.Rant{},
		"reactions": &model.Reaction{},
		"items":     &model.StoreItem{},
		"owned":     &model.OwnedItem{},
	} {
		var n int64
		if err := db.Model(m).Count(&n).Error; err != nil {
			respondError(c, err)
			return
		}
		counts[name] = n
	}
	c.JSON(http.StatusOK, gin.H{
		"counts":   counts,
		"dailyCap": h.ledger.DailyCap(),
	})
}

// ReseedCatalog reloads the catalog file and upserts it.
// POST /api/admin/catalog/reseed
func (h *AdminHandler) ReseedCatalog(c *gin.Context) {
	rl := resource.NewLoader(h.dataPath)
	if err := rl.Load(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.catalog.Seed(c.Request.Context(), rl.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("admin reseeded catalog", zap.Int("items", n), zap.String("source", rl.Source))
	c.JSON(http.StatusOK, gin.H{"items": n, "source": rl.Source})
}

type adjustRequest struct {
	Delta int64  `json:"delta"`
	Note  string `json:"note"`
}

// AdjustVE credits or debits a user's Vent Energy outside the daily cap.
// POST /api/admin/users/:id/ve
func (h *AdminHandler) AdjustVE(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Delta == 0 {
		badRequest(c, "delta required")
		return
	}
	userID := c.Param("id")
	balance, err := h.ledger.Adjust(c.Request.Context(), userID, req.Delta, strings.TrimSpace(req.Note))
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("admin adjusted VE",
		zap.String("user_id", userID), zap.Int64("delta", req.Delta), zap.Int64("balance", balance))
	c.JSON(http.StatusOK, gin.H{"ventEnergy": balance})
}

// BanUser bans or unbans an account. Banned accounts cannot sign in or
// refresh; sessions already issued run until they expire.
// POST /api/admin/users/:id/ban
func (h *AdminHandler) BanUser(c *gin.Context) {
	var req struct {
		Ban *bool `json:"ban"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Ban == nil {
		badRequest(c, "ban required")
		return
	}

	status := model.UserStatusNormal
	if *req.Ban {
		status = model.UserStatusBanned
	}
	result := h.db.WithContext(c.Request.Context()).Model(&model.User{}).
		Where("id = ?", c.Param("id")).Update("status", status)
	if result.Error != nil {
		respondError(c, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	h.logger.Info("admin set ban", zap.String("user_id", c.Param("id")), zap.Bool("ban", *req.Ban))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Journal returns recent ledger journal entries, optionally for one user.
// GET /api/admin/journal?user=&limit=
func (h *AdminHandler) Journal(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.journal.Recent(c.Request.Context(), c.Query("user"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ListSchedulerTasks returns all registered scheduler tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// RunSchedulerTask runs a task immediately, outside its schedule.
// POST /api/admin/scheduler/:name/run
func (h *AdminHandler) RunSchedulerTask(c *gin.Context) {
	if !h.sched.RunNow(c.Param("name")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Announce pushes a message to every live feed listener.
// POST /api/admin/announce
func (h *AdminHandler) Announce(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		badRequest(c, "message required")
		return
	}
	if err := h.announce.Announce(c.Request.Context(), strings.TrimSpace(req.Message)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	mw "github.com/ventwave/ventboard/middleware"
	"github.com/ventwave/ventboard/model"
	"github.com/ventwave/ventboard/vent/cosmetics"
)

// StoreHandler handles the cosmetics catalog and the caller's inventory.
type StoreHandler struct {
	catalog *cosmetics.Catalog
	store   *cosmetics.Store
}

// NewStoreHandler creates a new StoreHandler.
func NewStoreHandler(catalog *cosmetics.Catalog, store *cosmetics.Store) *StoreHandler {
	return &StoreHandler{catalog: catalog, store: store}
}

// Items handles GET /api/store/items.
func (h *StoreHandler) Items(c *gin.Context) {
	items, err := h.catalog.Active(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Inventory handles GET /api/me/inventory.
func (h *StoreHandler) Inventory(c *gin.Context) {
	inv, err := h.store.Inventory(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

type buyRequest struct {
	ItemKey string `json:"itemKey"`
}

// Buy handles POST /api/me/buy.
func (h *StoreHandler) Buy(c *gin.Context) {
	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, cosmetics.ErrKeyRequired)
		return
	}
	inv, err := h.store.Buy(c.Request.Context(), mw.GetUserID(c), req.ItemKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": inv})
}

type equipRequest struct {
	Slot    string `json:"slot"`
	ItemKey string `json:"itemKey"`
}

// Equip handles POST /api/me/equip.
// An empty itemKey puts the slot back to its default item.
func (h *StoreHandler) Equip(c *gin.Context) {
	var req equipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, cosmetics.ErrInvalidSlot)
		return
	}
	inv, err := h.store.Equip(c.Request.Context(), mw.GetUserID(c), model.Slot(req.Slot), req.ItemKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": inv})
}

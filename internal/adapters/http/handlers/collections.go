package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-keeper/internal/app/collections"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// CollectionHandler exposes collection CRUD and quote membership.
type CollectionHandler struct {
	manager *collections.Manager
}

// NewCollectionHandler creates a collection handler.
func NewCollectionHandler(manager *collections.Manager) *CollectionHandler {
	return &CollectionHandler{manager: manager}
}

func userID(c *gin.Context) string {
	id, _ := middleware.GetIdentity(c)
	return id.UserID
}

// owned loads the collection in the path and checks it belongs to the
// caller. It writes the error response itself.
func (h *CollectionHandler) owned(c *gin.Context) (domain.Collection, bool) {
	col, err := h.manager.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		dto.HandleError(c, err)
		return domain.Collection{}, false
	}

	return col, true
}

// List handles GET /api/v1/collections. A failed read yields an empty list.
func (h *CollectionHandler) List(c *gin.Context) {
	cols := h.manager.List(c.Request.Context(), userID(c))
	c.JSON(http.StatusOK, gin.H{"items": dto.NewCollectionResponses(cols)})
}

// Create handles POST /api/v1/collections. When quoteIds is set the
// collection is created with those quotes in one step.
func (h *CollectionHandler) Create(c *gin.Context) {
	var req dto.CreateCollectionRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	ctx := c.Request.Context()

	var (
		col domain.Collection
		err error
	)

	if len(req.QuoteIDs) > 0 {
		col, err = h.manager.CreateWithQuotes(ctx, userID(c), req.Name, req.QuoteIDs)
	} else {
		col, err = h.manager.Create(ctx, userID(c), req.Name)
	}

	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewCollectionResponse(col))
}

// Get handles GET /api/v1/collections/:id.
func (h *CollectionHandler) Get(c *gin.Context) {
	col, ok := h.owned(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.NewCollectionResponse(col))
}

// Rename handles PATCH /api/v1/collections/:id.
func (h *CollectionHandler) Rename(c *gin.Context) {
	var req dto.RenameCollectionRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	col, err := h.manager.Rename(c.Request.Context(), userID(c), c.Param("id"), req.Name)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewCollectionResponse(col))
}

// Delete handles DELETE /api/v1/collections/:id.
func (h *CollectionHandler) Delete(c *gin.Context) {
	if err := h.manager.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Items handles GET /api/v1/collections/:id/items.
func (h *CollectionHandler) Items(c *gin.Context) {
	col, ok := h.owned(c)
	if !ok {
		return
	}

	items, err := h.manager.Items(c.Request.Context(), col.ID)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": dto.NewItemResponses(items)})
}

// AddItem handles POST /api/v1/collections/:id/items.
func (h *CollectionHandler) AddItem(c *gin.Context) {
	var req dto.AddItemRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	col, ok := h.owned(c)
	if !ok {
		return
	}

	item, err := h.manager.AddQuote(c.Request.Context(), col.ID, req.QuoteID)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewItemResponse(item))
}

// RemoveItem handles DELETE /api/v1/collections/:id/items/:quoteId.
func (h *CollectionHandler) RemoveItem(c *gin.Context) {
	col, ok := h.owned(c)
	if !ok {
		return
	}

	if err := h.manager.RemoveQuote(c.Request.Context(), col.ID, c.Param("quoteId")); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Membership handles GET /api/v1/quotes/:id/collections: the caller's
// collections that contain the quote.
func (h *CollectionHandler) Membership(c *gin.Context) {
	sheet := h.manager.Membership(userID(c), c.Param("id"))
	if err := sheet.Load(c.Request.Context()); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MembershipResponse{QuoteID: sheet.QuoteID(), CollectionIDs: sheet.Selected()})
}

// ToggleMembership handles POST
// /api/v1/quotes/:id/collections/:collectionId/toggle. It behaves like the
// favorite toggle, including ?wait=true.
func (h *CollectionHandler) ToggleMembership(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	if _, err := h.manager.Get(ctx, uid, c.Param("collectionId")); err != nil {
		dto.HandleError(c, err)
		return
	}

	sheet := h.manager.Membership(uid, c.Param("id"))
	if err := sheet.Load(ctx); err != nil {
		dto.HandleError(c, err)
		return
	}

	t := sheet.Toggle(ctx, c.Param("collectionId"))
	resp := dto.ToggleResponse{QuoteID: sheet.QuoteID(), CollectionID: t.CollectionID, Selected: t.Selected}

	if !waitRequested(c) {
		c.JSON(http.StatusAccepted, resp)
		return
	}

	if err := t.Wait(); err != nil {
		dto.HandleError(c, err)
		return
	}

	resp.Outcome = t.Outcome()
	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes mounts collection and membership routes behind
// requireSession.
func (h *CollectionHandler) RegisterRoutes(rg *gin.RouterGroup, requireSession gin.HandlerFunc) {
	cols := rg.Group("/collections", requireSession)
	cols.GET("", h.List)
	cols.POST("", h.Create)
	cols.GET("/:id", h.Get)
	cols.PATCH("/:id", h.Rename)
	cols.DELETE("/:id", h.Delete)
	cols.GET("/:id/items", h.Items)
	cols.POST("/:id/items", h.AddItem)
	cols.DELETE("/:id/items/:quoteId", h.RemoveItem)

	member := rg.Group("/quotes/:id/collections", requireSession)
	member.GET("", h.Membership)
	member.POST("/:collectionId/toggle", h.ToggleMembership)
}

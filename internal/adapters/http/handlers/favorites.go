package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/app/favorites"
)

// FavoriteHandler exposes the favorites synchronizer.
type FavoriteHandler struct {
	sync *favorites.Synchronizer
}

// NewFavoriteHandler creates a favorite handler.
func NewFavoriteHandler(sync *favorites.Synchronizer) *FavoriteHandler {
	return &FavoriteHandler{sync: sync}
}

// List handles GET /api/v1/favorites, newest first with quotes embedded.
func (h *FavoriteHandler) List(c *gin.Context) {
	favs, err := h.sync.List(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": dto.NewFavoriteResponses(favs)})
}

// Toggle handles POST /api/v1/favorites/:quoteId/toggle. The flip is
// applied at once and the response is 202 with the optimistic state; with
// ?wait=true the handler waits for the write and reports its outcome, or
// the error that rolled the flip back.
func (h *FavoriteHandler) Toggle(c *gin.Context) {
	t := h.sync.ToggleFavorite(c.Request.Context(), c.Param("quoteId"))
	resp := dto.ToggleResponse{QuoteID: t.QuoteID, Selected: t.Favorite}

	if !waitRequested(c) {
		select {
		case <-t.Done():
			// Settled without a remote call, e.g. no session.
		default:
			c.JSON(http.StatusAccepted, resp)
			return
		}
	}

	if err := t.Wait(); err != nil {
		dto.HandleError(c, err)
		return
	}

	resp.Outcome = t.Outcome()
	c.JSON(http.StatusOK, resp)
}

// Refresh handles POST /api/v1/favorites/refresh and returns the refreshed
// set of favorite quote IDs.
func (h *FavoriteHandler) Refresh(c *gin.Context) {
	if err := h.sync.Refresh(c.Request.Context()); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quoteIds": h.sync.Snapshot()})
}

// waitRequested reports whether ?wait asks to block until the write settles.
func waitRequested(c *gin.Context) bool {
	wait, _ := strconv.ParseBool(c.Query("wait"))
	return wait
}

// RegisterRoutes mounts the favorite routes behind requireSession.
func (h *FavoriteHandler) RegisterRoutes(rg *gin.RouterGroup, requireSession gin.HandlerFunc) {
	favs := rg.Group("/favorites", requireSession)
	favs.GET("", h.List)
	favs.POST("/refresh", h.Refresh)
	favs.POST("/:quoteId/toggle", h.Toggle)
}

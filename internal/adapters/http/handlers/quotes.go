package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/app"
)

// QuoteHandler handles the read-only quote endpoints.
type QuoteHandler struct {
	service *app.QuoteService
}

// NewQuoteHandler creates a quote handler.
func NewQuoteHandler(service *app.QuoteService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

// List handles GET /api/v1/quotes. Without criteria it pages through all
// quotes newest first; with q, category or author it returns one page of
// search results.
func (h *QuoteHandler) List(c *gin.Context) {
	var req dto.QuoteListRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	ctx := c.Request.Context()

	if filter := req.Filter(); !filter.IsEmpty() {
		quotes, err := h.service.Search(ctx, filter)
		if err != nil {
			dto.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, dto.PaginatedResponse[dto.QuoteResponse]{Items: dto.NewQuoteResponses(quotes)})

		return
	}

	offset, err := req.GetOffset()
	if err != nil {
		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, "invalid cursor")
		return
	}

	limit := req.GetLimit()

	quotes, err := h.service.Page(ctx, offset, limit+1)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewPaginatedResponse(dto.NewQuoteResponses(quotes), offset, limit))
}

// Feed handles GET /api/v1/quotes/feed.
func (h *QuoteHandler) Feed(c *gin.Context) {
	quotes, err := h.service.Feed(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": dto.NewQuoteResponses(quotes)})
}

// Daily handles GET /api/v1/quotes/daily.
func (h *QuoteHandler) Daily(c *gin.Context) {
	q, err := h.service.QuoteOfTheDay(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(q))
}

// Categories handles GET /api/v1/quotes/categories. It never fails.
func (h *QuoteHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.service.Categories(c.Request.Context())})
}

// Get handles GET /api/v1/quotes/:id.
func (h *QuoteHandler) Get(c *gin.Context) {
	q, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(q))
}

// RegisterRoutes mounts the quote routes. They are public.
func (h *QuoteHandler) RegisterRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.GET("", h.List)
	quotes.GET("/feed", h.Feed)
	quotes.GET("/daily", h.Daily)
	quotes.GET("/categories", h.Categories)
	quotes.GET("/:id", h.Get)
}

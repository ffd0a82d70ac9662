package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// avatarField is the multipart field carrying the avatar image.
const avatarField = "avatar"

// ProfileHandler exposes the profile service.
type ProfileHandler struct {
	profiles *app.ProfileService
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(profiles *app.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Get handles GET /api/v1/profile. A user without a profile row gets 404.
func (h *ProfileHandler) Get(c *gin.Context) {
	uid := userID(c)

	p, err := h.profiles.Get(c.Request.Context(), uid)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	if p == nil {
		dto.HandleError(c, domain.NewNotFoundError("profile", uid))
		return
	}

	c.JSON(http.StatusOK, dto.NewProfileResponse(*p))
}

// Update handles PUT /api/v1/profile.
func (h *ProfileHandler) Update(c *gin.Context) {
	var req dto.ProfileRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	p, err := h.profiles.Update(c.Request.Context(), userID(c), req.Username, req.AvatarURL)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewProfileResponse(p))
}

// UploadAvatar handles POST /api/v1/profile/avatar. The image is taken
// from the "avatar" multipart field, or from the raw body for any other
// content type.
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	data, err := readAvatar(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			dto.HandleError(c, domain.NewValidationError(avatarField, "file is larger than 5 MiB"))
			return
		}

		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, "could not read avatar upload")

		return
	}

	p, err := h.profiles.UploadAvatar(c.Request.Context(), userID(c), data)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewProfileResponse(p))
}

func readAvatar(c *gin.Context) ([]byte, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return io.ReadAll(io.LimitReader(c.Request.Body, app.MaxAvatarBytes+1))
	}

	fh, err := c.FormFile(avatarField)
	if err != nil {
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(io.LimitReader(f, app.MaxAvatarBytes+1))
}

// Summary handles GET /api/v1/profile/summary.
func (h *ProfileHandler) Summary(c *gin.Context) {
	s, err := h.profiles.Summary(c.Request.Context(), userID(c))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSummaryResponse(s))
}

// RegisterRoutes mounts the profile routes behind requireSession.
func (h *ProfileHandler) RegisterRoutes(rg *gin.RouterGroup, requireSession gin.HandlerFunc) {
	profile := rg.Group("/profile", requireSession)
	profile.GET("", h.Get)
	profile.PUT("", h.Update)
	profile.POST("/avatar", h.UploadAvatar)
	profile.GET("/summary", h.Summary)
}

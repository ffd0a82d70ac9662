package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/app/session"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// AuthHandler exposes the session provider.
type AuthHandler struct {
	sessions *session.Provider
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(sessions *session.Provider) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// SignUp handles POST /api/v1/auth/signup. A 202 with pending set means
// the account waits for email confirmation.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req dto.SignUpRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	s, err := h.sessions.SignUp(c.Request.Context(), domain.Credentials{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	resp := dto.NewSessionResponse(s)
	if resp.Pending {
		c.JSON(http.StatusAccepted, resp)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// SignIn handles POST /api/v1/auth/signin.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req dto.SignInRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	s, err := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(s))
}

// SignOut handles POST /api/v1/auth/signout. Signing out without a session
// is not an error.
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context()); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RequestOTP handles POST /api/v1/auth/otp.
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req dto.OTPRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	if err := h.sessions.RequestOTP(c.Request.Context(), req.Email); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}

// VerifyOTP handles POST /api/v1/auth/otp/verify.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	s, err := h.sessions.VerifyOTP(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(s))
}

// CurrentSession handles GET /api/v1/auth/session.
func (h *AuthHandler) CurrentSession(c *gin.Context) {
	s, ok := h.sessions.Current()
	if !ok {
		dto.HandleError(c, domain.NewUnauthenticatedError(""))
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(s))
}

// SetSession handles POST /api/v1/auth/session, installing tokens the
// client obtained out of band.
func (h *AuthHandler) SetSession(c *gin.Context) {
	var req dto.SetSessionRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	s, err := h.sessions.SetSession(c.Request.Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(s))
}

// UpdatePassword handles PUT /api/v1/auth/password.
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req dto.PasswordRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	if err := h.sessions.UpdatePassword(c.Request.Context(), req.Password); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes mounts the auth routes. Only the password change needs a
// session; requireSession guards it.
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, requireSession gin.HandlerFunc) {
	auth := rg.Group("/auth")
	auth.POST("/signup", h.SignUp)
	auth.POST("/signin", h.SignIn)
	auth.POST("/signout", h.SignOut)
	auth.POST("/otp", h.RequestOTP)
	auth.POST("/otp/verify", h.VerifyOTP)
	auth.GET("/session", h.CurrentSession)
	auth.POST("/session", h.SetSession)
	auth.PUT("/password", requireSession, h.UpdatePassword)
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// AlertInbox hands out the alerts queued for a user, removing them.
type AlertInbox interface {
	Drain(userID string) []ports.Alert
}

// InboxHandler serves the per-user notification settings and alerts.
type InboxHandler struct {
	notifications *app.NotificationService
	alerts        AlertInbox
	now           func() time.Time
}

// NewInboxHandler creates an inbox handler. now defaults to time.Now.
func NewInboxHandler(notifications *app.NotificationService, alerts AlertInbox, now func() time.Time) *InboxHandler {
	if now == nil {
		now = time.Now
	}

	return &InboxHandler{notifications: notifications, alerts: alerts, now: now}
}

func (h *InboxHandler) settingsResponse(s app.NotificationSettings) dto.NotificationSettingsResponse {
	resp := dto.NotificationSettingsResponse{Enabled: s.Enabled, Time: s.Time}
	if next, ok := s.NextTrigger(h.now()); ok {
		resp.NextTrigger = &next
	}

	return resp
}

// GetSettings handles GET /api/v1/notifications/settings.
func (h *InboxHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settingsResponse(h.notifications.Get(c.Request.Context(), userID(c))))
}

// UpdateSettings handles PUT /api/v1/notifications/settings.
func (h *InboxHandler) UpdateSettings(c *gin.Context) {
	var req dto.NotificationSettingsRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	saved, err := h.notifications.Update(c.Request.Context(), userID(c), app.NotificationSettings{
		Enabled: *req.Enabled,
		Time:    req.Time,
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.settingsResponse(saved))
}

// Alerts handles GET /api/v1/alerts. Each alert is returned once.
func (h *InboxHandler) Alerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": dto.NewAlertResponses(h.alerts.Drain(userID(c)))})
}

// RegisterRoutes mounts the inbox routes behind requireSession.
func (h *InboxHandler) RegisterRoutes(rg *gin.RouterGroup, requireSession gin.HandlerFunc) {
	rg.GET("/notifications/settings", requireSession, h.GetSettings)
	rg.PUT("/notifications/settings", requireSession, h.UpdateSettings)
	rg.GET("/alerts", requireSession, h.Alerts)
}

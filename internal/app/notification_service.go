package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// notificationKeyPrefix namespaces per-user settings in the key-value store.
const notificationKeyPrefix = "notification_settings:"

// NotificationSettings controls the daily quote reminder.
type NotificationSettings struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time"`
}

// DefaultNotificationSettings is disabled at 09:00.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{Enabled: false, Time: "09:00"}
}

// clock parses Time as HH:MM.
func (n NotificationSettings) clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", n.Time)
	if err != nil {
		return 0, 0, domain.NewValidationError("time", "time must be HH:MM")
	}

	return t.Hour(), t.Minute(), nil
}

// NextTrigger returns the next daily fire time strictly after now, in now's
// location. It reports false when reminders are disabled.
func (n NotificationSettings) NextTrigger(now time.Time) (time.Time, bool) {
	if !n.Enabled {
		return time.Time{}, false
	}

	hour, minute, err := n.clock()
	if err != nil {
		return time.Time{}, false
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	return next, true
}

// NotificationService stores reminder settings per user.
type NotificationService struct {
	kv     ports.KeyValueStore
	logger *slog.Logger
}

// NewNotificationService creates a notification service.
func NewNotificationService(kv ports.KeyValueStore, logger *slog.Logger) *NotificationService {
	if kv == nil {
		panic("app: key-value store is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &NotificationService{kv: kv, logger: logger.With(slog.String("component", "app.NotificationService"))}
}

// Get returns the user's settings, or the defaults when none are stored or
// the stored value cannot be read.
func (s *NotificationService) Get(ctx context.Context, userID string) NotificationSettings {
	raw, err := s.kv.Get(ctx, notificationKeyPrefix+userID)
	if err != nil {
		if !domain.IsNotFound(err) {
			s.logger.WarnContext(ctx, "failed to read notification settings", slog.Any("error", err))
		}

		return DefaultNotificationSettings()
	}

	var settings NotificationSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		s.logger.WarnContext(ctx, "discarding corrupt notification settings", slog.Any("error", err))
		return DefaultNotificationSettings()
	}

	if _, _, err := settings.clock(); err != nil {
		return DefaultNotificationSettings()
	}

	return settings
}

// Update validates and saves the user's settings.
func (s *NotificationService) Update(ctx context.Context, userID string, settings NotificationSettings) (NotificationSettings, error) {
	if _, _, err := settings.clock(); err != nil {
		return NotificationSettings{}, err
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		return NotificationSettings{}, fmt.Errorf("encoding notification settings: %w", err)
	}

	if err := s.kv.Set(ctx, notificationKeyPrefix+userID, string(raw), 0); err != nil {
		return NotificationSettings{}, fmt.Errorf("saving notification settings: %w", err)
	}

	return settings, nil
}

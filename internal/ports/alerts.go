package ports

import (
	"context"
	"time"
)

// AlertKind classifies a user-visible alert.
type AlertKind string

const (
	// AlertError reports a failed operation the user attempted.
	AlertError AlertKind = "error"

	// AlertValidation reports input rejected before any remote call.
	AlertValidation AlertKind = "validation"
)

// Alert is a message meant for the user rather than the log.
type Alert struct {
	UserID  string    `json:"-"`
	Kind    AlertKind `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// AlertPublisher delivers alerts to whatever surface shows them to the user.
type AlertPublisher interface {
	// Publish queues an alert for the user. Implementations must not block
	// on slow readers.
	Publish(ctx context.Context, alert Alert) error
}

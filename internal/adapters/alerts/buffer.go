// Package alerts holds user-visible alerts until the client collects them.
package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// DefaultSize is the number of alerts kept per user when none is configured.
const DefaultSize = 20

// Buffer is a bounded per-user queue of alerts. When a user's queue is full
// the oldest alert is dropped.
type Buffer struct {
	size   int
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	queues map[string][]ports.Alert
}

var _ ports.AlertPublisher = (*Buffer)(nil)

// NewBuffer creates a Buffer holding up to size alerts per user.
func NewBuffer(size int, logger *slog.Logger) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Buffer{
		size:   size,
		now:    time.Now,
		logger: logger,
		queues: make(map[string][]ports.Alert),
	}
}

// Publish implements ports.AlertPublisher. It never blocks on readers.
func (b *Buffer) Publish(ctx context.Context, alert ports.Alert) error {
	if alert.At.IsZero() {
		alert.At = b.now()
	}

	b.mu.Lock()
	q := append(b.queues[alert.UserID], alert)

	dropped := 0
	if over := len(q) - b.size; over > 0 {
		dropped = over
		q = append([]ports.Alert(nil), q[over:]...)
	}

	b.queues[alert.UserID] = q
	b.mu.Unlock()

	b.logger.InfoContext(ctx, "alert queued",
		slog.String("user_id", alert.UserID),
		slog.String("kind", string(alert.Kind)),
		slog.String("title", alert.Title),
	)

	if dropped > 0 {
		b.logger.DebugContext(ctx, "alert queue full, dropped oldest", slog.Int("dropped", dropped))
	}

	return nil
}

// Drain returns the user's pending alerts, oldest first, and clears them.
func (b *Buffer) Drain(userID string) []ports.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queues[userID]
	delete(b.queues, userID)

	if q == nil {
		return []ports.Alert{}
	}

	return q
}

// Pending reports how many alerts wait for the user.
func (b *Buffer) Pending(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queues[userID])
}

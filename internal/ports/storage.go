package ports

import (
	"context"
	"time"
)

// FileStorage stores binary objects and hands back their public URL.
// Only avatar images go through it.
type FileStorage interface {
	// Upload writes content at path and returns a URL the client can load.
	Upload(ctx context.Context, path string, content []byte, contentType string) (string, error)
}

// KeyValueStore is a small string store local to the device or deployment.
// It holds the quote-of-the-day cache and notification preferences.
type KeyValueStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key. A zero ttl means no expiration.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

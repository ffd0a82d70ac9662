package ports

import (
	"context"
)

// FeatureFlags defines the contract for feature flag evaluation.
//
// Design principles:
//   - Always provide default values for graceful degradation
//   - Synchronous evaluation; the adapter owns reloading
//
// Example usage:
//
//	if flags.IsEnabled(ctx, FlagAvatarUploads, true) {
//	    return s.upload(ctx, userID, content)
//	}
type FeatureFlags interface {
	// IsEnabled checks if a boolean feature flag is enabled.
	// Returns defaultValue if the flag doesn't exist or can't be parsed.
	IsEnabled(ctx context.Context, flag string, defaultValue bool) bool

	// GetString retrieves a string feature flag value.
	GetString(ctx context.Context, flag string, defaultValue string) string

	// GetInt retrieves an integer feature flag value.
	GetInt(ctx context.Context, flag string, defaultValue int) int
}

// Flags read by the application.
const (
	// FlagAvatarUploads gates avatar uploads.
	FlagAvatarUploads = "avatar_uploads"

	// FlagShuffleFeed shuffles the home feed window.
	FlagShuffleFeed = "shuffle_feed"

	// FlagFeedSize overrides the configured home feed size.
	FlagFeedSize = "feed_size"
)

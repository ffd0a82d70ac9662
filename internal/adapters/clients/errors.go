// Package clients holds the resilient HTTP client used to reach the managed
// backend.
package clients

import "errors"

// Transport-level failures. Callers translate these to domain errors.
var (
	// ErrCircuitOpen means the breaker is rejecting calls.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last attempt's error.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

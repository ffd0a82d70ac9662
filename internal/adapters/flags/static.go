// Package flags evaluates feature flags from the features section of the
// configuration.
package flags

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// Static serves flags from a fixed map. Values are parsed on every read so
// Set takes effect immediately.
type Static struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ ports.FeatureFlags = (*Static)(nil)

// NewStatic copies values. Keys are matched case-insensitively.
func NewStatic(values map[string]string) *Static {
	s := &Static{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[strings.ToLower(k)] = strings.TrimSpace(v)
	}

	return s
}

// Set overrides a flag.
func (s *Static) Set(flag, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[strings.ToLower(flag)] = strings.TrimSpace(value)
}

func (s *Static) lookup(flag string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[strings.ToLower(flag)]

	return v, ok && v != ""
}

// IsEnabled implements ports.FeatureFlags.
func (s *Static) IsEnabled(_ context.Context, flag string, defaultValue bool) bool {
	v, ok := s.lookup(flag)
	if !ok {
		return defaultValue
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}

	return b
}

// GetString implements ports.FeatureFlags.
func (s *Static) GetString(_ context.Context, flag string, defaultValue string) string {
	if v, ok := s.lookup(flag); ok {
		return v
	}

	return defaultValue
}

// GetInt implements ports.FeatureFlags.
func (s *Static) GetInt(_ context.Context, flag string, defaultValue int) int {
	v, ok := s.lookup(flag)
	if !ok {
		return defaultValue
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}

	return n
}

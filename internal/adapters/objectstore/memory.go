package objectstore

import (
	"context"
	"slices"
	"sync"
)

// Object is a stored upload.
type Object struct {
	Content     []byte
	ContentType string
}

// Memory keeps uploads in process memory.
type Memory struct {
	base string

	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemory returns an empty store whose URLs start with base.
func NewMemory(base string) *Memory {
	if base == "" {
		base = "memory://avatars"
	}

	return &Memory{base: base, objects: make(map[string]Object)}
}

// Upload implements ports.FileStorage.
func (m *Memory) Upload(_ context.Context, path string, content []byte, contentType string) (string, error) {
	m.mu.Lock()
	m.objects[path] = Object{Content: slices.Clone(content), ContentType: contentTypeOf(content, contentType)}
	m.mu.Unlock()

	return publicURL(m.base, path)
}

// Object returns the upload stored at path.
func (m *Memory) Object(path string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[path]

	return o, ok
}

// Name implements ports.HealthChecker.
func (m *Memory) Name() string { return "storage" }

// Check implements ports.HealthChecker.
func (m *Memory) Check(context.Context) error { return nil }

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// MockFileStorage is a mock of ports.FileStorage.
type MockFileStorage struct {
	mock.Mock
}

var _ ports.FileStorage = (*MockFileStorage)(nil)

// NewMockFileStorage creates a MockFileStorage that asserts its expectations on cleanup.
func NewMockFileStorage(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockFileStorage {
	m := &MockFileStorage{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockFileStorage) Upload(ctx context.Context, path string, content []byte, contentType string) (string, error) {
	args := m.Called(ctx, path, content, contentType)
	return args.String(0), args.Error(1)
}

// MockKeyValueStore is a mock of ports.KeyValueStore.
type MockKeyValueStore struct {
	mock.Mock
}

var _ ports.KeyValueStore = (*MockKeyValueStore)(nil)

// NewMockKeyValueStore creates a MockKeyValueStore that asserts its expectations on cleanup.
func NewMockKeyValueStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockKeyValueStore {
	m := &MockKeyValueStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockKeyValueStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockKeyValueStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// MockAlertPublisher is a mock of ports.AlertPublisher.
type MockAlertPublisher struct {
	mock.Mock
}

var _ ports.AlertPublisher = (*MockAlertPublisher)(nil)

// NewMockAlertPublisher creates a MockAlertPublisher that asserts its expectations on cleanup.
func NewMockAlertPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAlertPublisher {
	m := &MockAlertPublisher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockAlertPublisher) Publish(ctx context.Context, alert ports.Alert) error {
	return m.Called(ctx, alert).Error(0)
}

// MockFeatureFlags is a mock of ports.FeatureFlags.
type MockFeatureFlags struct {
	mock.Mock
}

var _ ports.FeatureFlags = (*MockFeatureFlags)(nil)

// NewMockFeatureFlags creates a MockFeatureFlags that asserts its expectations on cleanup.
func NewMockFeatureFlags(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockFeatureFlags {
	m := &MockFeatureFlags{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockFeatureFlags) IsEnabled(ctx context.Context, flag string, defaultValue bool) bool {
	return m.Called(ctx, flag, defaultValue).Bool(0)
}

func (m *MockFeatureFlags) GetString(ctx context.Context, flag string, defaultValue string) string {
	return m.Called(ctx, flag, defaultValue).String(0)
}

func (m *MockFeatureFlags) GetInt(ctx context.Context, flag string, defaultValue int) int {
	return m.Called(ctx, flag, defaultValue).Int(0)
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// MockAuthProvider is a mock of ports.AuthProvider.
type MockAuthProvider struct {
	mock.Mock
}

var _ ports.AuthProvider = (*MockAuthProvider)(nil)

// NewMockAuthProvider creates a MockAuthProvider that asserts its expectations on cleanup.
func NewMockAuthProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAuthProvider {
	m := &MockAuthProvider{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockAuthProvider) SignUp(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	args := m.Called(ctx, creds)
	return args.Get(0).(domain.Session), args.Error(1)
}

func (m *MockAuthProvider) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(domain.Session), args.Error(1)
}

func (m *MockAuthProvider) SignOut(ctx context.Context, session domain.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockAuthProvider) RequestOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockAuthProvider) VerifyOTP(ctx context.Context, email, code string) (domain.Session, error) {
	args := m.Called(ctx, email, code)
	return args.Get(0).(domain.Session), args.Error(1)
}

func (m *MockAuthProvider) UpdatePassword(ctx context.Context, session domain.Session, newPassword string) error {
	return m.Called(ctx, session, newPassword).Error(0)
}

func (m *MockAuthProvider) Restore(ctx context.Context, accessToken, refreshToken string) (domain.Session, error) {
	args := m.Called(ctx, accessToken, refreshToken)
	return args.Get(0).(domain.Session), args.Error(1)
}

func (m *MockAuthProvider) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(domain.Session), args.Error(1)
}

package localauth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// Account is a stored user. PasswordHash is empty for accounts created
// through a one-time code.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

func (a Account) identity() domain.Identity {
	return domain.Identity{UserID: a.ID, Email: a.Email, DisplayName: a.DisplayName}
}

// Accounts persists users, pending one-time codes and refresh tokens.
// Codes and tokens are stored hashed.
type Accounts interface {
	// CreateAccount inserts a user.
	// Returns domain.ErrConflict if the email is taken.
	CreateAccount(ctx context.Context, account Account) error

	// AccountByEmail returns domain.ErrNotFound for an unknown email.
	AccountByEmail(ctx context.Context, email string) (Account, error)

	// AccountByID returns domain.ErrNotFound for an unknown id.
	AccountByID(ctx context.Context, id string) (Account, error)

	SetPasswordHash(ctx context.Context, userID, hash string) error

	// SaveOTP replaces any pending code for the email.
	SaveOTP(ctx context.Context, email, codeHash string, expiresAt time.Time) error

	// TakeOTP returns and removes the pending code for the email.
	// Returns domain.ErrNotFound if none is pending.
	TakeOTP(ctx context.Context, email string) (codeHash string, expiresAt time.Time, err error)

	SaveRefreshToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error

	// TakeRefreshToken returns and removes a refresh token so that each
	// one is used once. Returns domain.ErrNotFound for unknown tokens.
	TakeRefreshToken(ctx context.Context, tokenHash string) (userID string, expiresAt time.Time, err error)

	DeleteRefreshToken(ctx context.Context, tokenHash string) error
}

// normalizeEmail is applied to every email before it reaches Accounts.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type pending struct {
	hash      string
	userID    string
	expiresAt time.Time
}

// MemoryAccounts is an Accounts kept in process memory.
type MemoryAccounts struct {
	mu      sync.Mutex
	byID    map[string]Account
	byEmail map[string]string
	otps    map[string]pending
	refresh map[string]pending
}

var _ Accounts = (*MemoryAccounts)(nil)

// NewMemoryAccounts returns an empty account store.
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
		otps:    make(map[string]pending),
		refresh: make(map[string]pending),
	}
}

// CreateAccount implements Accounts.
func (m *MemoryAccounts) CreateAccount(_ context.Context, a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[a.Email]; ok {
		return domain.NewConflictError("account", "email is already registered")
	}

	m.byID[a.ID] = a
	m.byEmail[a.Email] = a.ID

	return nil
}

// AccountByEmail implements Accounts.
func (m *MemoryAccounts) AccountByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[email]
	if !ok {
		return Account{}, domain.NewNotFoundError("account", "")
	}

	return m.byID[id], nil
}

// AccountByID implements Accounts.
func (m *MemoryAccounts) AccountByID(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return Account{}, domain.NewNotFoundError("account", id)
	}

	return a, nil
}

// SetPasswordHash implements Accounts.
func (m *MemoryAccounts) SetPasswordHash(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[userID]
	if !ok {
		return domain.NewNotFoundError("account", userID)
	}

	a.PasswordHash = hash
	m.byID[userID] = a

	return nil
}

// SaveOTP implements Accounts.
func (m *MemoryAccounts) SaveOTP(_ context.Context, email, codeHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.otps[email] = pending{hash: codeHash, expiresAt: expiresAt}

	return nil
}

// TakeOTP implements Accounts.
func (m *MemoryAccounts) TakeOTP(_ context.Context, email string) (string, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.otps[email]
	if !ok {
		return "", time.Time{}, domain.NewNotFoundError("otp", "")
	}

	delete(m.otps, email)

	return p.hash, p.expiresAt, nil
}

// SaveRefreshToken implements Accounts.
func (m *MemoryAccounts) SaveRefreshToken(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refresh[tokenHash] = pending{userID: userID, expiresAt: expiresAt}

	return nil
}

// TakeRefreshToken implements Accounts.
func (m *MemoryAccounts) TakeRefreshToken(_ context.Context, tokenHash string) (string, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.refresh[tokenHash]
	if !ok {
		return "", time.Time{}, domain.NewNotFoundError("refresh token", "")
	}

	delete(m.refresh, tokenHash)

	return p.userID, p.expiresAt, nil
}

// DeleteRefreshToken implements Accounts.
func (m *MemoryAccounts) DeleteRefreshToken(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.refresh, tokenHash)

	return nil
}

// Package session holds the signed-in identity for the process and tells
// interested components when it changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// subscriberBuffer is how many events a subscriber may fall behind before
// the oldest pending event is dropped.
const subscriberBuffer = 8

// DefaultRefreshWindow is how long before expiry a session is refreshed.
const DefaultRefreshWindow = time.Minute

// EventKind names a session transition.
type EventKind string

const (
	SignedIn       EventKind = "signed_in"
	SignedOut      EventKind = "signed_out"
	TokenRefreshed EventKind = "token_refreshed"
	UserUpdated    EventKind = "user_updated"
)

// Event is published on every session change. Identity is the zero value
// after SignedOut.
type Event struct {
	Kind     EventKind
	Identity domain.Identity
}

// ProviderConfig contains the dependencies of a Provider.
type ProviderConfig struct {
	Auth   ports.AuthProvider
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// RefreshWindow defaults to DefaultRefreshWindow.
	RefreshWindow time.Duration
}

// Provider owns the current session. Reads are snapshots and never block
// on the network.
type Provider struct {
	auth          ports.AuthProvider
	logger        *slog.Logger
	now           func() time.Time
	refreshWindow time.Duration

	mu      sync.RWMutex
	current domain.Session
	nextSub int
	subs    map[int]chan Event
}

// NewProvider creates a signed-out provider.
func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.Auth == nil {
		panic("session: auth provider is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	window := cfg.RefreshWindow
	if window <= 0 {
		window = DefaultRefreshWindow
	}

	return &Provider{
		auth:          cfg.Auth,
		logger:        logger.With(slog.String("component", "session.Provider")),
		now:           now,
		refreshWindow: window,
		subs:          make(map[int]chan Event),
	}
}

// Current returns the session, if any.
func (p *Provider) Current() (domain.Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.current, p.current.Valid()
}

// Identity returns the signed-in identity, if any.
func (p *Provider) Identity() (domain.Identity, bool) {
	s, ok := p.Current()
	return s.Identity, ok
}

// AccessToken returns the bearer token for backend calls, empty when signed out.
func (p *Provider) AccessToken() string {
	s, _ := p.Current()
	return s.AccessToken
}

// Subscribe registers for session events. The returned function
// unsubscribes and closes the channel.
func (p *Provider) Subscribe() (<-chan Event, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++

	ch := make(chan Event, subscriberBuffer)
	p.subs[id] = ch

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()

			delete(p.subs, id)
			close(ch)
		})
	}
}

// publishLocked must be called with mu held for writing.
func (p *Provider) publishLocked(ev Event) {
	for _, ch := range p.subs {
		for {
			select {
			case ch <- ev:
			default:
				// Full: drop the oldest pending event and try again.
				select {
				case <-ch:
				default:
				}

				continue
			}

			break
		}
	}
}

func (p *Provider) set(ctx context.Context, s domain.Session, kind EventKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.setLocked(ctx, s, kind)
}

func (p *Provider) setLocked(ctx context.Context, s domain.Session, kind EventKind) {
	p.current = s
	p.publishLocked(Event{Kind: kind, Identity: s.Identity})

	p.logger.InfoContext(ctx, "session changed",
		slog.String("event", string(kind)),
		slog.String("user_id", s.Identity.UserID),
	)
}

func (p *Provider) clear(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.current.Valid() {
		return
	}

	p.current = domain.Session{}
	p.publishLocked(Event{Kind: SignedOut})

	p.logger.InfoContext(ctx, "session changed", slog.String("event", string(SignedOut)))
}

// SignUp creates an account. When the backend signs the new user in
// immediately the session is adopted; when it requires email confirmation
// first the returned session is empty.
func (p *Provider) SignUp(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	creds.DisplayName = strings.TrimSpace(creds.DisplayName)

	if err := creds.ValidateSignUp(); err != nil {
		return domain.Session{}, err
	}

	s, err := p.auth.SignUp(ctx, creds)
	if err != nil {
		return domain.Session{}, fmt.Errorf("signing up: %w", err)
	}

	if s.Valid() {
		p.set(ctx, s, SignedIn)
	}

	return s, nil
}

// SignIn exchanges credentials for a session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	creds := domain.Credentials{Email: strings.TrimSpace(email), Password: password}
	if err := creds.Validate(); err != nil {
		return domain.Session{}, err
	}

	s, err := p.auth.SignIn(ctx, creds.Email, creds.Password)
	if err != nil {
		return domain.Session{}, fmt.Errorf("signing in: %w", err)
	}

	p.set(ctx, s, SignedIn)

	return s, nil
}

// SignOut revokes the session remotely and clears it locally. The local
// session is cleared even when revocation fails.
func (p *Provider) SignOut(ctx context.Context) error {
	s, ok := p.Current()
	if !ok {
		return nil
	}

	err := p.auth.SignOut(ctx, s)
	p.clear(ctx)

	if err != nil {
		p.logger.WarnContext(ctx, "remote sign out failed", slog.Any("error", err))
		return fmt.Errorf("signing out: %w", err)
	}

	return nil
}

// RequestOTP sends a one-time sign-in code.
func (p *Provider) RequestOTP(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}

	if err := p.auth.RequestOTP(ctx, email); err != nil {
		return fmt.Errorf("requesting otp: %w", err)
	}

	return nil
}

// VerifyOTP signs in with a one-time code.
func (p *Provider) VerifyOTP(ctx context.Context, email, code string) (domain.Session, error) {
	email = strings.TrimSpace(email)
	if err := domain.ValidateEmail(email); err != nil {
		return domain.Session{}, err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Session{}, domain.NewValidationError("code", "code is required")
	}

	s, err := p.auth.VerifyOTP(ctx, email, code)
	if err != nil {
		return domain.Session{}, fmt.Errorf("verifying otp: %w", err)
	}

	p.set(ctx, s, SignedIn)

	return s, nil
}

// UpdatePassword changes the signed-in user's password.
func (p *Provider) UpdatePassword(ctx context.Context, newPassword string) error {
	s, ok := p.Current()
	if !ok {
		return domain.NewUnauthenticatedError("update password")
	}

	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}

	if err := p.auth.UpdatePassword(ctx, s, newPassword); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	p.set(ctx, s, UserUpdated)

	return nil
}

// SetSession adopts tokens delivered out of band, such as a magic-link
// redirect.
func (p *Provider) SetSession(ctx context.Context, accessToken, refreshToken string) (domain.Session, error) {
	if strings.TrimSpace(accessToken) == "" {
		return domain.Session{}, domain.NewValidationError("access_token", "access token is required")
	}

	if strings.TrimSpace(refreshToken) == "" {
		return domain.Session{}, domain.NewValidationError("refresh_token", "refresh token is required")
	}

	s, err := p.auth.Restore(ctx, accessToken, refreshToken)
	if err != nil {
		return domain.Session{}, fmt.Errorf("restoring session: %w", err)
	}

	p.set(ctx, s, SignedIn)

	return s, nil
}

// RefreshIfExpiring trades the refresh token for a new session when the
// access token is within the refresh window. A rejected refresh token signs
// the user out. It reports whether a refresh happened.
func (p *Provider) RefreshIfExpiring(ctx context.Context) (bool, error) {
	s, ok := p.Current()
	if !ok || s.ExpiresAt.IsZero() || s.RefreshToken == "" {
		return false, nil
	}

	if !s.Expired(p.now().Add(p.refreshWindow)) {
		return false, nil
	}

	next, err := p.auth.Refresh(ctx, s.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			p.clear(ctx)
		}

		return false, fmt.Errorf("refreshing session: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Sign-out or another sign-in while the refresh was in flight wins.
	if p.current.RefreshToken != s.RefreshToken {
		return false, nil
	}

	p.setLocked(ctx, next, TokenRefreshed)

	return true, nil
}

// Run refreshes the session on every tick until ctx is done.
func (p *Provider) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.RefreshIfExpiring(ctx); err != nil {
				p.logger.WarnContext(ctx, "session refresh failed", slog.Any("error", err))
			}
		}
	}
}

// Package localauth is the identity provider used with the SQL and memory
// backends. Passwords are bcrypt hashed, access tokens are HS256 JWTs and
// refresh tokens are opaque, single-use and stored hashed.
package localauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// Defaults applied when Config leaves a duration unset.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
	DefaultOTPTTL     = 10 * time.Minute
	DefaultIssuer     = "quote-keeper"
)

// CodeSender delivers one-time codes.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}

// LogSender writes codes to the log. It is meant for local runs only.
type LogSender struct {
	Logger *slog.Logger
}

// SendCode implements CodeSender.
func (s LogSender) SendCode(ctx context.Context, email, code string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "one-time sign-in code issued", slog.String("email", email), slog.String("code", code))

	return nil
}

// Config holds the provider's collaborators and token lifetimes.
type Config struct {
	Accounts   Accounts
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	OTPTTL     time.Duration
	Sender     CodeSender
	Logger     *slog.Logger
	Now        func() time.Time

	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int
}

// Provider implements ports.AuthProvider on top of Accounts.
type Provider struct {
	accounts   Accounts
	signer     signer
	accessTTL  time.Duration
	refreshTTL time.Duration
	otpTTL     time.Duration
	sender     CodeSender
	logger     *slog.Logger
	now        func() time.Time
	cost       int
}

var _ ports.AuthProvider = (*Provider)(nil)

// New creates a Provider. It returns an error when no signing secret is
// configured.
func New(cfg Config) (*Provider, error) {
	if cfg.Accounts == nil {
		return nil, errors.New("localauth: accounts store is required")
	}

	if cfg.Secret == "" {
		return nil, errors.New("localauth: signing secret is required")
	}

	p := &Provider{
		accounts:   cfg.Accounts,
		accessTTL:  cmpOr(cfg.AccessTTL, DefaultAccessTTL),
		refreshTTL: cmpOr(cfg.RefreshTTL, DefaultRefreshTTL),
		otpTTL:     cmpOr(cfg.OTPTTL, DefaultOTPTTL),
		sender:     cfg.Sender,
		logger:     cfg.Logger,
		now:        cfg.Now,
		cost:       cfg.HashCost,
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	if p.now == nil {
		p.now = time.Now
	}

	if p.sender == nil {
		p.sender = LogSender{Logger: p.logger}
	}

	if p.cost == 0 {
		p.cost = bcrypt.DefaultCost
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}

	p.signer = signer{secret: []byte(cfg.Secret), issuer: issuer, now: p.now}

	return p, nil
}

func cmpOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}

	return def
}

var errBadCredentials = domain.NewForbiddenError("sign in", "invalid email or password")

func (p *Provider) issue(ctx context.Context, a Account) (domain.Session, error) {
	access, exp, err := p.signer.sign(a, p.accessTTL)
	if err != nil {
		return domain.Session{}, err
	}

	refresh, err := opaqueToken()
	if err != nil {
		return domain.Session{}, err
	}

	if err := p.accounts.SaveRefreshToken(ctx, hashToken(refresh), a.ID, p.now().Add(p.refreshTTL)); err != nil {
		return domain.Session{}, fmt.Errorf("store refresh token: %w", err)
	}

	return domain.Session{
		Identity:     a.identity(),
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
	}, nil
}

// SignUp implements ports.AuthProvider.
func (p *Provider) SignUp(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	if err := creds.ValidateSignUp(); err != nil {
		return domain.Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), p.cost)
	if err != nil {
		return domain.Session{}, fmt.Errorf("hash password: %w", err)
	}

	a := Account{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(creds.Email),
		PasswordHash: string(hash),
		DisplayName:  creds.DisplayName,
		CreatedAt:    p.now().UTC(),
	}

	if err := p.accounts.CreateAccount(ctx, a); err != nil {
		return domain.Session{}, err
	}

	p.logger.InfoContext(ctx, "account created", slog.String("user_id", a.ID))

	return p.issue(ctx, a)
}

// SignIn implements ports.AuthProvider. Unknown emails and wrong passwords
// fail the same way.
func (p *Provider) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	a, err := p.accounts.AccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Session{}, errBadCredentials
		}

		return domain.Session{}, err
	}

	if a.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return domain.Session{}, errBadCredentials
	}

	return p.issue(ctx, a)
}

// SignOut implements ports.AuthProvider by revoking the refresh token.
func (p *Provider) SignOut(ctx context.Context, session domain.Session) error {
	if session.RefreshToken == "" {
		return nil
	}

	return p.accounts.DeleteRefreshToken(ctx, hashToken(session.RefreshToken))
}

// RequestOTP implements ports.AuthProvider.
func (p *Provider) RequestOTP(ctx context.Context, email string) error {
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}

	code, err := otpCode()
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), p.cost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	email = normalizeEmail(email)

	if err := p.accounts.SaveOTP(ctx, email, string(hash), p.now().Add(p.otpTTL)); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	return p.sender.SendCode(ctx, email, code)
}

// VerifyOTP implements ports.AuthProvider. A verified code for an unknown
// email creates a password-less account.
func (p *Provider) VerifyOTP(ctx context.Context, email, code string) (domain.Session, error) {
	email = normalizeEmail(email)
	invalid := domain.NewForbiddenError("verify code", "code is invalid or expired")

	hash, expiresAt, err := p.accounts.TakeOTP(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Session{}, invalid
		}

		return domain.Session{}, err
	}

	if !p.now().Before(expiresAt) || bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) != nil {
		return domain.Session{}, invalid
	}

	a, err := p.accounts.AccountByEmail(ctx, email)
	if domain.IsNotFound(err) {
		a = Account{ID: uuid.NewString(), Email: email, CreatedAt: p.now().UTC()}
		err = p.accounts.CreateAccount(ctx, a)
	}

	if err != nil {
		return domain.Session{}, err
	}

	return p.issue(ctx, a)
}

// account resolves the account behind a live access token.
func (p *Provider) account(ctx context.Context, accessToken string) (Account, error) {
	claims, err := p.signer.verify(accessToken)
	if err != nil {
		return Account{}, domain.NewForbiddenError("authenticate", err.Error())
	}

	a, err := p.accounts.AccountByID(ctx, claims.Subject)
	if err != nil {
		if domain.IsNotFound(err) {
			return Account{}, domain.NewForbiddenError("authenticate", "account no longer exists")
		}

		return Account{}, err
	}

	return a, nil
}

// UpdatePassword implements ports.AuthProvider.
func (p *Provider) UpdatePassword(ctx context.Context, session domain.Session, newPassword string) error {
	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}

	a, err := p.account(ctx, session.AccessToken)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return p.accounts.SetPasswordHash(ctx, a.ID, string(hash))
}

// Restore implements ports.AuthProvider. A still-valid access token is
// kept; an expired one is replaced through the refresh token.
func (p *Provider) Restore(ctx context.Context, accessToken, refreshToken string) (domain.Session, error) {
	claims, err := p.signer.verify(accessToken)

	switch {
	case err == nil:
		a, err := p.account(ctx, accessToken)
		if err != nil {
			return domain.Session{}, err
		}

		return domain.Session{
			Identity:     a.identity(),
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    claims.ExpiresAt.Time,
		}, nil
	case errors.Is(err, errTokenExpired) && refreshToken != "":
		return p.Refresh(ctx, refreshToken)
	default:
		return domain.Session{}, domain.NewForbiddenError("restore session", err.Error())
	}
}

// Refresh implements ports.AuthProvider. The presented token is consumed
// and a new pair is issued.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	invalid := domain.NewForbiddenError("refresh session", "refresh token is invalid or expired")

	userID, expiresAt, err := p.accounts.TakeRefreshToken(ctx, hashToken(refreshToken))
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Session{}, invalid
		}

		return domain.Session{}, err
	}

	if !p.now().Before(expiresAt) {
		return domain.Session{}, invalid
	}

	a, err := p.accounts.AccountByID(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Session{}, invalid
		}

		return domain.Session{}, err
	}

	return p.issue(ctx, a)
}

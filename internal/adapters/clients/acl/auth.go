package acl

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

type authUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		DisplayName string `json:"display_name"`
		FullName    string `json:"full_name"`
		AvatarURL   string `json:"avatar_url"`
	} `json:"user_metadata"`
}

func (u authUser) identity() domain.Identity {
	name := u.UserMetadata.DisplayName
	if name == "" {
		name = u.UserMetadata.FullName
	}

	return domain.Identity{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: name,
		AvatarURL:   u.UserMetadata.AvatarURL,
	}
}

// authSession is a token grant. Sign-up without auto-confirm returns a bare
// user instead, which lands in the embedded fields.
type authSession struct {
	authUser

	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *authUser `json:"user"`
}

func (b *Backend) toSession(s *authSession) (domain.Session, error) {
	if s.AccessToken == "" {
		// Confirmation pending: the account exists but nobody is signed in.
		return domain.Session{}, nil
	}

	if s.User == nil || s.User.ID == "" {
		return domain.Session{}, domain.NewUnavailableError(serviceName, "token grant without a user")
	}

	expires := time.Unix(s.ExpiresAt, 0).UTC()
	if s.ExpiresAt == 0 {
		expires = b.now().Add(time.Duration(s.ExpiresIn) * time.Second).UTC()
	}

	return domain.Session{
		Identity:     s.User.identity(),
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expires,
	}, nil
}

func (b *Backend) grant(ctx context.Context, r Request, t Target) (domain.Session, error) {
	var s authSession
	if err := b.Fetch(ctx, r, t, &s); err != nil {
		return domain.Session{}, err
	}

	return b.toSession(&s)
}

// SignUp implements ports.AuthProvider.
func (b *Backend) SignUp(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	s, err := b.grant(ctx, Request{
		Method: http.MethodPost,
		Path:   authPrefix + "/signup",
		Body: map[string]any{
			"email":    creds.Email,
			"password": creds.Password,
			"data":     map[string]string{"display_name": creds.DisplayName},
		},
	}, Target{Operation: "sign up", Entity: "account", ID: creds.Email})
	if err != nil {
		return domain.Session{}, err
	}

	if !s.Valid() {
		b.logger.InfoContext(ctx, "sign up awaiting email confirmation")
	}

	return s, nil
}

// SignIn implements ports.AuthProvider.
func (b *Backend) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	return b.grant(ctx, Request{
		Method: http.MethodPost,
		Path:   authPrefix + "/token",
		Query:  url.Values{"grant_type": {"password"}},
		Body:   map[string]string{"email": email, "password": password},
	}, Target{Operation: "sign in", Entity: "account", ID: email})
}

// SignOut implements ports.AuthProvider. A token the backend no longer
// accepts is already signed out.
func (b *Backend) SignOut(ctx context.Context, session domain.Session) error {
	if session.AccessToken == "" {
		return nil
	}

	err := b.Exec(withBearer(ctx, session.AccessToken), Request{
		Method: http.MethodPost,
		Path:   authPrefix + "/logout",
	}, Target{Operation: "sign out", Entity: "session"})
	if domain.IsForbidden(err) {
		return nil
	}

	return err
}

// RequestOTP implements ports.AuthProvider. Unknown addresses get an account.
func (b *Backend) RequestOTP(ctx context.Context, email string) error {
	return b.Exec(ctx, Request{
		Method: http.MethodPost,
		Path:   authPrefix + "/otp",
		Body:   map[string]any{"email": email, "create_user": true},
	}, Target{Operation: "request otp", Entity: "account", ID: email})
}

// VerifyOTP implements ports.AuthProvider.
func (b *Backend) VerifyOTP(ctx context.Context, email, code string) (domain.Session, error) {
	return b.grant(ctx, Request{
		Method: http.MethodPost,
		Path:   authPrefix + "/verify",
		Body:   map[string]string{"type": "email", "email": email, "token": code},
	}, Target{Operation: "verify otp", Entity: "account", ID: email})
}

// UpdatePassword implements ports.AuthProvider.
func (b *Backend) UpdatePassword(ctx context.Context, session domain.Session, newPassword string) error {
	return b.Exec(withBearer(ctx, session.AccessToken), Request{
		Method: http.MethodPut,
		Path:   authPrefix + "/user",
		Body:   map[string]string{"password": newPassword},
	}, Target{Operation: "update password", Entity: "account", ID: session.Identity.UserID})
}

// Restore implements ports.AuthProvider. The access token is checked by
// fetching its user; once it has lapsed the refresh token takes over.
func (b *Backend) Restore(ctx context.Context, accessToken, refreshToken string) (domain.Session, error) {
	var u authUser

	err := b.Fetch(withBearer(ctx, accessToken), Request{
		Method: http.MethodGet,
		Path:   authPrefix + "/user",
	}, Target{Operation: "restore session", Entity: "session"}, &u)
	if err != nil {
		if domain.IsForbidden(err) && refreshToken != "" {
			b.logger.DebugContext(ctx, "access token rejected, refreshing", slog.Any("error", err))
			return b.Refresh(ctx, refreshToken)
		}

		return domain.Session{}, err
	}

	return domain.Session{
		Identity:     u.identity(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    tokenExpiry(accessToken),
	}, nil
}

// tokenExpiry reads exp without verifying the signature; the backend just
// vouched for the token.
func tokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}

	return claims.ExpiresAt.UTC()
}

// Refresh implements ports.AuthProvider.
func (b *Backend) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	return b.grant(ctx, Request{
		Method: http.MethodPost,
		Path:   authPrefix + "/token",
		Query:  url.Values{"grant_type": {"refresh_token"}},
		Body:   map[string]string{"refresh_token": refreshToken},
	}, Target{Operation: "refresh session", Entity: "session"})
}

package ports

import (
	"context"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// AuthProvider is the backend's identity service. It issues and revokes
// sessions; holding the current session is the session provider's job.
type AuthProvider interface {
	// SignUp creates an account and returns its first session.
	// Returns domain.ErrConflict if the email is already registered.
	SignUp(ctx context.Context, creds domain.Credentials) (domain.Session, error)

	// SignIn exchanges an email and password for a session.
	// Returns domain.ErrForbidden for bad credentials.
	SignIn(ctx context.Context, email, password string) (domain.Session, error)

	// SignOut revokes the session's tokens.
	SignOut(ctx context.Context, session domain.Session) error

	// RequestOTP sends a one-time code to the email address.
	RequestOTP(ctx context.Context, email string) error

	// VerifyOTP exchanges a one-time code for a session.
	// Returns domain.ErrForbidden if the code is wrong or expired.
	VerifyOTP(ctx context.Context, email, code string) (domain.Session, error)

	// UpdatePassword changes the password of the session's user.
	UpdatePassword(ctx context.Context, session domain.Session, newPassword string) error

	// Restore rebuilds a session from tokens received out of band, such as a
	// magic-link redirect.
	Restore(ctx context.Context, accessToken, refreshToken string) (domain.Session, error)

	// Refresh trades a refresh token for a new session.
	Refresh(ctx context.Context, refreshToken string) (domain.Session, error)
}

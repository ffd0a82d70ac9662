package domain

import (
	"net/mail"
	"strings"
	"time"
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

// Identity is the signed-in user as known to the application.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Session is an authenticated identity plus the tokens the backend issued.
type Session struct {
	Identity     Identity
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the session carries an identity.
func (s Session) Valid() bool {
	return s.Identity.UserID != ""
}

// Expired reports whether the access token has lapsed at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// ValidateEmail checks address syntax.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return NewValidationError("email", "email is required")
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return NewValidationError("email", "email is not a valid address")
	}

	return nil
}

// ValidatePassword checks the minimum password rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return NewValidationError("password", "password must be at least 6 characters")
	}

	return nil
}

// Credentials is an email and password pair for sign-up and sign-in.
type Credentials struct {
	Email       string
	Password    string
	DisplayName string
}

// Validate checks credentials for sign-in. Sign-up additionally requires a
// display name, see ValidateSignUp.
func (c Credentials) Validate() error {
	if err := ValidateEmail(c.Email); err != nil {
		return err
	}

	return ValidatePassword(c.Password)
}

// ValidateSignUp checks credentials for account creation.
func (c Credentials) ValidateSignUp() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if strings.TrimSpace(c.DisplayName) == "" {
		return NewValidationError("display_name", "display name is required")
	}

	return nil
}

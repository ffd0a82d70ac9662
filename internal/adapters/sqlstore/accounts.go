package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/localauth"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// Accounts is the SQL implementation of localauth.Accounts, on the users,
// otp_codes and refresh_tokens tables.
type Accounts struct {
	db *sqlx.DB
}

var _ localauth.Accounts = (*Accounts)(nil)

// NewAccounts wraps an open, migrated database.
func NewAccounts(db *sqlx.DB) *Accounts {
	return &Accounts{db: db}
}

func (a *Accounts) q(query string) string { return a.db.Rebind(query) }

type accountRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	DisplayName  string    `db:"display_name"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r accountRow) toAccount() localauth.Account {
	return localauth.Account{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		DisplayName:  r.DisplayName,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

// CreateAccount implements localauth.Accounts.
func (a *Accounts) CreateAccount(ctx context.Context, acc localauth.Account) error {
	_, err := a.db.ExecContext(ctx, a.q(`
		INSERT INTO users (id, email, password_hash, display_name, created_at) VALUES (?, ?, ?, ?, ?)
	`), acc.ID, acc.Email, acc.PasswordHash, acc.DisplayName, acc.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.NewConflictError("account", "email is already registered")
		}

		return fmt.Errorf("create account: %w", err)
	}

	return nil
}

const accountColumns = `id, email, password_hash, display_name, created_at`

// AccountByEmail implements localauth.Accounts.
func (a *Accounts) AccountByEmail(ctx context.Context, email string) (localauth.Account, error) {
	var r accountRow
	if err := a.db.GetContext(ctx, &r, a.q(`SELECT `+accountColumns+` FROM users WHERE email = ?`), email); err != nil {
		return localauth.Account{}, translate(err, "account", "")
	}

	return r.toAccount(), nil
}

// AccountByID implements localauth.Accounts.
func (a *Accounts) AccountByID(ctx context.Context, id string) (localauth.Account, error) {
	var r accountRow
	if err := a.db.GetContext(ctx, &r, a.q(`SELECT `+accountColumns+` FROM users WHERE id = ?`), id); err != nil {
		return localauth.Account{}, translate(err, "account", id)
	}

	return r.toAccount(), nil
}

// SetPasswordHash implements localauth.Accounts.
func (a *Accounts) SetPasswordHash(ctx context.Context, userID, hash string) error {
	if _, err := a.db.ExecContext(ctx, a.q(`UPDATE users SET password_hash = ? WHERE id = ?`), hash, userID); err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	return nil
}

// SaveOTP implements localauth.Accounts.
func (a *Accounts) SaveOTP(ctx context.Context, email, codeHash string, expiresAt time.Time) error {
	return a.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM otp_codes WHERE email = ?`), email); err != nil {
			return fmt.Errorf("clear code: %w", err)
		}

		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO otp_codes (email, code_hash, expires_at) VALUES (?, ?, ?)`),
			email, codeHash, expiresAt.UTC())
		if err != nil {
			return fmt.Errorf("save code: %w", err)
		}

		return nil
	})
}

type pendingRow struct {
	Hash      string    `db:"hash"`
	ExpiresAt time.Time `db:"expires_at"`
}

// TakeOTP implements localauth.Accounts.
func (a *Accounts) TakeOTP(ctx context.Context, email string) (string, time.Time, error) {
	var r pendingRow

	err := a.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &r, tx.Rebind(`SELECT code_hash AS hash, expires_at FROM otp_codes WHERE email = ?`), email)
		if err != nil {
			return translate(err, "otp", "")
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM otp_codes WHERE email = ?`), email); err != nil {
			return fmt.Errorf("consume code: %w", err)
		}

		return nil
	})
	if err != nil {
		return "", time.Time{}, err
	}

	return r.Hash, r.ExpiresAt, nil
}

// SaveRefreshToken implements localauth.Accounts.
func (a *Accounts) SaveRefreshToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := a.db.ExecContext(ctx, a.q(`INSERT INTO refresh_tokens (token_hash, user_id, expires_at) VALUES (?, ?, ?)`),
		tokenHash, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}

	return nil
}

// TakeRefreshToken implements localauth.Accounts.
func (a *Accounts) TakeRefreshToken(ctx context.Context, tokenHash string) (string, time.Time, error) {
	var r struct {
		UserID    string    `db:"user_id"`
		ExpiresAt time.Time `db:"expires_at"`
	}

	err := a.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &r, tx.Rebind(`SELECT user_id, expires_at FROM refresh_tokens WHERE token_hash = ?`), tokenHash)
		if err != nil {
			return translate(err, "refresh token", "")
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM refresh_tokens WHERE token_hash = ?`), tokenHash)
		if err != nil {
			return fmt.Errorf("consume refresh token: %w", err)
		}

		// A concurrent refresh already consumed it.
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.NewNotFoundError("refresh token", "")
		}

		return nil
	})
	if err != nil {
		return "", time.Time{}, err
	}

	return r.UserID, r.ExpiresAt, nil
}

// DeleteRefreshToken implements localauth.Accounts.
func (a *Accounts) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	if _, err := a.db.ExecContext(ctx, a.q(`DELETE FROM refresh_tokens WHERE token_hash = ?`), tokenHash); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	return nil
}

func (a *Accounts) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return withTx(ctx, a.db, fn)
}

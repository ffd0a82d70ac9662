package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

type profileRow struct {
	ID        string    `db:"id"`
	Username  string    `db:"username"`
	AvatarURL string    `db:"avatar_url"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GetProfile implements ports.ProfileStore.
func (s *Store) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var r profileRow

	err := s.db.GetContext(ctx, &r, s.q(`SELECT id, username, avatar_url, updated_at FROM profiles WHERE id = ?`), userID)
	if err != nil {
		return domain.Profile{}, translate(err, "profile", userID)
	}

	return domain.Profile{ID: r.ID, Username: r.Username, AvatarURL: r.AvatarURL, UpdatedAt: r.UpdatedAt.UTC()}, nil
}

// UpsertProfile implements ports.ProfileStore. The dialects disagree on
// upsert syntax, so it is an existence check and an insert or update in one
// transaction.
func (s *Store) UpsertProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.timestamp()
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM profiles WHERE id = ?`), p.ID); err != nil {
			return fmt.Errorf("look up profile: %w", err)
		}

		query := `INSERT INTO profiles (username, avatar_url, updated_at, id) VALUES (?, ?, ?, ?)`
		if n > 0 {
			query = `UPDATE profiles SET username = ?, avatar_url = ?, updated_at = ? WHERE id = ?`
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(query), p.Username, p.AvatarURL, p.UpdatedAt, p.ID); err != nil {
			return fmt.Errorf("write profile: %w", err)
		}

		return nil
	})
	if err != nil {
		return domain.Profile{}, err
	}

	return p, nil
}

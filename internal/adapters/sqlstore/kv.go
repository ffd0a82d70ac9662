package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

type kvRow struct {
	Value     string       `db:"kv_value"`
	ExpiresAt sql.NullTime `db:"expires_at"`
}

// Get implements ports.KeyValueStore. Expired rows read as missing and are
// left for the next Set to replace.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var r kvRow

	err := s.db.GetContext(ctx, &r, s.q(`SELECT kv_value, expires_at FROM kv WHERE kv_key = ?`), key)
	if err != nil {
		return "", translate(err, "key", key)
	}

	if r.ExpiresAt.Valid && !s.now().Before(r.ExpiresAt.Time) {
		return "", domain.NewNotFoundError("key", key)
	}

	return r.Value, nil
}

// Set implements ports.KeyValueStore.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expires sql.NullTime
	if ttl > 0 {
		expires = sql.NullTime{Time: s.timestamp().Add(ttl), Valid: true}
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM kv WHERE kv_key = ?`), key); err != nil {
			return fmt.Errorf("clear key: %w", err)
		}

		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO kv (kv_key, kv_value, expires_at) VALUES (?, ?, ?)`),
			key, value, expires)
		if err != nil {
			return fmt.Errorf("set key: %w", err)
		}

		return nil
	})
}

// Delete implements ports.KeyValueStore.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM kv WHERE kv_key = ?`), key); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}

	return nil
}

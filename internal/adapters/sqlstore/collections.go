package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

type collectionRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (r collectionRow) toDomain() domain.Collection {
	return domain.Collection{ID: r.ID, UserID: r.UserID, Name: r.Name, CreatedAt: r.CreatedAt.UTC()}
}

// ListCollections implements ports.CollectionStore.
func (s *Store) ListCollections(ctx context.Context, userID string) ([]domain.Collection, error) {
	var rows []collectionRow

	err := s.db.SelectContext(ctx, &rows, s.q(`
		SELECT id, user_id, name, created_at FROM collections
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	out := make([]domain.Collection, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}

	return out, nil
}

// GetCollection implements ports.CollectionStore.
func (s *Store) GetCollection(ctx context.Context, id string) (domain.Collection, error) {
	var r collectionRow

	err := s.db.GetContext(ctx, &r, s.q(`SELECT id, user_id, name, created_at FROM collections WHERE id = ?`), id)
	if err != nil {
		return domain.Collection{}, translate(err, "collection", id)
	}

	return r.toDomain(), nil
}

// CreateCollection implements ports.CollectionStore.
func (s *Store) CreateCollection(ctx context.Context, userID, name string) (domain.Collection, error) {
	c := domain.Collection{ID: uuid.NewString(), UserID: userID, Name: name, CreatedAt: s.timestamp()}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO collections (id, user_id, name, created_at) VALUES (?, ?, ?, ?)
	`), c.ID, c.UserID, c.Name, c.CreatedAt)
	if err != nil {
		return domain.Collection{}, translate(err, "collection", c.ID)
	}

	return c, nil
}

// RenameCollection implements ports.CollectionStore.
func (s *Store) RenameCollection(ctx context.Context, id, name string) (domain.Collection, error) {
	if _, err := s.db.ExecContext(ctx, s.q(`UPDATE collections SET name = ? WHERE id = ?`), name, id); err != nil {
		return domain.Collection{}, fmt.Errorf("rename collection: %w", err)
	}

	// RowsAffected is unreliable on mysql for unchanged values; the read
	// reports a missing row.
	return s.GetCollection(ctx, id)
}

// DeleteCollection implements ports.CollectionStore. Items are deleted in
// the same transaction so a database without enforced foreign keys stays
// consistent.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM collection_items WHERE collection_id = ?`), id); err != nil {
			return fmt.Errorf("delete collection items: %w", err)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM collections WHERE id = ?`), id); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}

		return nil
	})
}

// CountCollections implements ports.CollectionStore.
func (s *Store) CountCollections(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM collections WHERE user_id = ?`), userID); err != nil {
		return 0, fmt.Errorf("count collections: %w", err)
	}

	return n, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return withTx(ctx, s.db, fn)
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

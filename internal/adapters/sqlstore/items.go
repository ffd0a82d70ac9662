package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

type itemRow struct {
	ID           string    `db:"id"`
	CollectionID string    `db:"collection_id"`
	QuoteID      string    `db:"quote_id"`
	CreatedAt    time.Time `db:"created_at"`
	joinedQuote
}

// ListItems implements ports.CollectionItemStore.
func (s *Store) ListItems(ctx context.Context, collectionID string) ([]domain.CollectionItem, error) {
	var rows []itemRow

	err := s.db.SelectContext(ctx, &rows, s.q(`
		SELECT ci.id, ci.collection_id, ci.quote_id, ci.created_at, `+joinedQuoteColumns+`
		FROM collection_items ci
		LEFT JOIN quotes q ON q.id = ci.quote_id
		WHERE ci.collection_id = ?
		ORDER BY ci.created_at DESC, ci.id DESC
	`), collectionID)
	if err != nil {
		return nil, fmt.Errorf("list collection items: %w", err)
	}

	out := make([]domain.CollectionItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.CollectionItem{
			ID:           r.ID,
			CollectionID: r.CollectionID,
			QuoteID:      r.QuoteID,
			CreatedAt:    r.CreatedAt.UTC(),
			Quote:        r.joinedQuote.toDomain(),
		})
	}

	return out, nil
}

// CollectionIDsForQuote implements ports.CollectionItemStore.
func (s *Store) CollectionIDsForQuote(ctx context.Context, quoteID string) ([]string, error) {
	ids := []string{}

	err := s.db.SelectContext(ctx, &ids, s.q(`
		SELECT DISTINCT collection_id FROM collection_items WHERE quote_id = ? ORDER BY collection_id
	`), quoteID)
	if err != nil {
		return nil, fmt.Errorf("list collections for quote: %w", err)
	}

	return ids, nil
}

// AddItem implements ports.CollectionItemStore.
func (s *Store) AddItem(ctx context.Context, collectionID, quoteID string) (domain.CollectionItem, error) {
	it := domain.CollectionItem{
		ID:           uuid.NewString(),
		CollectionID: collectionID,
		QuoteID:      quoteID,
		CreatedAt:    s.timestamp(),
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO collection_items (id, collection_id, quote_id, created_at) VALUES (?, ?, ?, ?)
	`), it.ID, it.CollectionID, it.QuoteID, it.CreatedAt)
	if err != nil {
		return domain.CollectionItem{}, translate(err, "collection_item", collectionID)
	}

	return it, nil
}

// RemoveItem implements ports.CollectionItemStore.
func (s *Store) RemoveItem(ctx context.Context, collectionID, quoteID string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM collection_items WHERE collection_id = ? AND quote_id = ?
	`), collectionID, quoteID)
	if err != nil {
		return fmt.Errorf("remove collection item: %w", err)
	}

	return nil
}

// RemoveQuoteFromCollections implements ports.CollectionItemStore.
func (s *Store) RemoveQuoteFromCollections(ctx context.Context, quoteID string, collectionIDs []string) (int, error) {
	if len(collectionIDs) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`DELETE FROM collection_items WHERE quote_id = ? AND collection_id IN (?)`, quoteID, collectionIDs)
	if err != nil {
		return 0, fmt.Errorf("build cascade delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, fmt.Errorf("remove quote from collections: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count removed items: %w", err)
	}

	return int(n), nil
}

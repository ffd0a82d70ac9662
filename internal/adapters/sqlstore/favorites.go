package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// joinedQuote holds the LEFT JOINed quote columns of a favorite or item.
// They are all NULL when the quote row is gone.
type joinedQuote struct {
	QuoteRowID sql.NullString `db:"q_id"`
	Text       sql.NullString `db:"q_text"`
	Author     sql.NullString `db:"q_author"`
	Category   sql.NullString `db:"q_category"`
	CreatedAt  sql.NullTime   `db:"q_created_at"`
}

const joinedQuoteColumns = `q.id AS q_id, q.text AS q_text, q.author AS q_author,
	q.category AS q_category, q.created_at AS q_created_at`

func (j joinedQuote) toDomain() *domain.Quote {
	if !j.QuoteRowID.Valid {
		return nil
	}

	q := quoteRow{
		ID:        j.QuoteRowID.String,
		Text:      j.Text.String,
		Author:    j.Author.String,
		Category:  j.Category.String,
		CreatedAt: j.CreatedAt.Time,
	}.toDomain()

	return &q
}

type favoriteRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	QuoteID   string    `db:"quote_id"`
	CreatedAt time.Time `db:"created_at"`
	joinedQuote
}

// ListFavorites implements ports.FavoriteStore.
func (s *Store) ListFavorites(ctx context.Context, userID string) ([]domain.Favorite, error) {
	var rows []favoriteRow

	err := s.db.SelectContext(ctx, &rows, s.q(`
		SELECT f.id, f.user_id, f.quote_id, f.created_at, `+joinedQuoteColumns+`
		FROM favorites f
		LEFT JOIN quotes q ON q.id = f.quote_id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC, f.id DESC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}

	out := make([]domain.Favorite, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Favorite{
			ID:        r.ID,
			UserID:    r.UserID,
			QuoteID:   r.QuoteID,
			CreatedAt: r.CreatedAt.UTC(),
			Quote:     r.joinedQuote.toDomain(),
		})
	}

	return out, nil
}

// AddFavorite implements ports.FavoriteStore.
func (s *Store) AddFavorite(ctx context.Context, userID, quoteID string) (domain.Favorite, error) {
	f := domain.Favorite{
		ID:        uuid.NewString(),
		UserID:    userID,
		QuoteID:   quoteID,
		CreatedAt: s.timestamp(),
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO favorites (id, user_id, quote_id, created_at) VALUES (?, ?, ?, ?)
	`), f.ID, f.UserID, f.QuoteID, f.CreatedAt)
	if err != nil {
		return domain.Favorite{}, translate(err, "favorite", quoteID)
	}

	return f, nil
}

// RemoveFavorite implements ports.FavoriteStore.
func (s *Store) RemoveFavorite(ctx context.Context, userID, quoteID string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM favorites WHERE user_id = ? AND quote_id = ?`), userID, quoteID)
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}

	return nil
}

// CountFavorites implements ports.FavoriteStore.
func (s *Store) CountFavorites(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM favorites WHERE user_id = ?`), userID); err != nil {
		return 0, fmt.Errorf("count favorites: %w", err)
	}

	return n, nil
}

package sqlstore

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

const quoteColumns = `id, text, author, category, created_at`

type quoteRow struct {
	ID        string    `db:"id"`
	Text      string    `db:"text"`
	Author    string    `db:"author"`
	Category  string    `db:"category"`
	CreatedAt time.Time `db:"created_at"`
}

func (r quoteRow) toDomain() domain.Quote {
	q := domain.Quote{
		ID:        r.ID,
		Text:      r.Text,
		Author:    r.Author,
		Category:  r.Category,
		CreatedAt: r.CreatedAt.UTC(),
	}

	if q.Author == "" {
		q.Author = domain.UnknownAuthor
	}

	if q.Category == "" {
		q.Category = domain.GeneralCategory
	}

	return q
}

func quotesToDomain(rows []quoteRow) []domain.Quote {
	out := make([]domain.Quote, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}

	return out
}

// ListQuotes implements ports.QuoteStore.
func (s *Store) ListQuotes(ctx context.Context, page ports.Page) ([]domain.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes ORDER BY created_at DESC, id DESC`

	var args []any

	// Not every dialect accepts OFFSET without LIMIT.
	if page.Limit > 0 || page.Offset > 0 {
		limit := page.Limit
		if limit <= 0 {
			limit = math.MaxInt32
		}

		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(page.Offset, 0))
	}

	var rows []quoteRow
	if err := s.db.SelectContext(ctx, &rows, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}

	return quotesToDomain(rows), nil
}

// CountQuotes implements ports.QuoteStore.
func (s *Store) CountQuotes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM quotes`); err != nil {
		return 0, fmt.Errorf("count quotes: %w", err)
	}

	return n, nil
}

// GetQuote implements ports.QuoteStore.
func (s *Store) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	var r quoteRow

	err := s.db.GetContext(ctx, &r, s.q(`SELECT `+quoteColumns+` FROM quotes WHERE id = ?`), id)
	if err != nil {
		return domain.Quote{}, translate(err, "quote", id)
	}

	return r.toDomain(), nil
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// SearchQuotes implements ports.QuoteStore. Matching is case-insensitive;
// the query matches text, author or category.
func (s *Store) SearchQuotes(ctx context.Context, f domain.QuoteFilter) ([]domain.Quote, error) {
	var (
		where []string
		args  []any
	)

	if q := strings.TrimSpace(f.Query); q != "" {
		p := likePattern(q)
		where = append(where, `(LOWER(text) LIKE ? OR LOWER(author) LIKE ? OR LOWER(category) LIKE ?)`)
		args = append(args, p, p, p)
	}

	if c := strings.TrimSpace(f.Category); c != "" {
		where = append(where, `LOWER(category) = ?`)
		args = append(args, strings.ToLower(c))
	}

	if a := strings.TrimSpace(f.Author); a != "" {
		where = append(where, `LOWER(author) LIKE ?`)
		args = append(args, likePattern(a))
	}

	query := `SELECT ` + quoteColumns + ` FROM quotes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	query += ` ORDER BY created_at DESC, id DESC`

	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	var rows []quoteRow
	if err := s.db.SelectContext(ctx, &rows, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("search quotes: %w", err)
	}

	return quotesToDomain(rows), nil
}

// ListCategories implements ports.QuoteStore.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	var raw []string
	if err := s.db.SelectContext(ctx, &raw, `SELECT DISTINCT category FROM quotes`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c == "" {
			c = domain.GeneralCategory
		}

		out = append(out, c)
	}

	slices.Sort(out)

	return slices.Compact(out), nil
}

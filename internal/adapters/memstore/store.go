// Package memstore is an in-process implementation of the remote store,
// the key-value store and the health check. It is the default backend for
// local runs and backs the integration suite.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// Store keeps every table in maps guarded by one lock.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	quotes      map[string]domain.Quote
	favorites   map[string]domain.Favorite
	collections map[string]domain.Collection
	items       map[string]domain.CollectionItem
	profiles    map[string]domain.Profile
	kv          map[string]kvEntry
}

type kvEntry struct {
	value     string
	expiresAt time.Time
}

var (
	_ ports.Store         = (*Store)(nil)
	_ ports.KeyValueStore = (*Store)(nil)
	_ ports.HealthChecker = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithQuotes seeds the quotes table.
func WithQuotes(quotes ...domain.Quote) Option {
	return func(s *Store) {
		for _, q := range quotes {
			s.quotes[q.ID] = q
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:         time.Now,
		quotes:      make(map[string]domain.Quote),
		favorites:   make(map[string]domain.Favorite),
		collections: make(map[string]domain.Collection),
		items:       make(map[string]domain.CollectionItem),
		profiles:    make(map[string]domain.Profile),
		kv:          make(map[string]kvEntry),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memstore" }

// Check implements ports.HealthChecker.
func (s *Store) Check(context.Context) error { return nil }

func newestFirst[T any](created func(T) time.Time, id func(T) string) func(a, b T) int {
	return func(a, b T) int {
		if c := created(b).Compare(created(a)); c != 0 {
			return c
		}

		return cmp.Compare(id(b), id(a))
	}
}

var quotesNewestFirst = newestFirst(
	func(q domain.Quote) time.Time { return q.CreatedAt },
	func(q domain.Quote) string { return q.ID },
)

func (s *Store) sortedQuotes() []domain.Quote {
	out := make([]domain.Quote, 0, len(s.quotes))
	for _, q := range s.quotes {
		out = append(out, q)
	}

	slices.SortFunc(out, quotesNewestFirst)

	return out
}

func window[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return []T{}
	}

	rows = rows[max(offset, 0):]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	return rows
}

// ListQuotes implements ports.QuoteStore.
func (s *Store) ListQuotes(_ context.Context, page ports.Page) ([]domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return window(s.sortedQuotes(), page.Offset, page.Limit), nil
}

// CountQuotes implements ports.QuoteStore.
func (s *Store) CountQuotes(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.quotes), nil
}

// GetQuote implements ports.QuoteStore.
func (s *Store) GetQuote(_ context.Context, id string) (domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[id]
	if !ok {
		return domain.Quote{}, domain.NewNotFoundError("quote", id)
	}

	return q, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// SearchQuotes implements ports.QuoteStore.
func (s *Store) SearchQuotes(_ context.Context, f domain.QuoteFilter) ([]domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.TrimSpace(f.Query)
	category := strings.TrimSpace(f.Category)
	author := strings.TrimSpace(f.Author)

	var out []domain.Quote

	for _, q := range s.sortedQuotes() {
		if query != "" && !containsFold(q.Text, query) && !containsFold(q.Author, query) && !containsFold(q.Category, query) {
			continue
		}

		if category != "" && !strings.EqualFold(q.Category, category) {
			continue
		}

		if author != "" && !containsFold(q.Author, author) {
			continue
		}

		out = append(out, q)
	}

	return window(out, 0, f.Limit), nil
}

// ListCategories implements ports.QuoteStore.
func (s *Store) ListCategories(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, q := range s.quotes {
		seen[q.Category] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}

	slices.Sort(out)

	return out, nil
}

func (s *Store) quoteRef(id string) *domain.Quote {
	q, ok := s.quotes[id]
	if !ok {
		return nil
	}

	return &q
}

// ListFavorites implements ports.FavoriteStore.
func (s *Store) ListFavorites(_ context.Context, userID string) ([]domain.Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Favorite{}

	for _, f := range s.favorites {
		if f.UserID != userID {
			continue
		}

		f.Quote = s.quoteRef(f.QuoteID)
		out = append(out, f)
	}

	slices.SortFunc(out, newestFirst(
		func(f domain.Favorite) time.Time { return f.CreatedAt },
		func(f domain.Favorite) string { return f.ID },
	))

	return out, nil
}

// AddFavorite implements ports.FavoriteStore.
func (s *Store) AddFavorite(_ context.Context, userID, quoteID string) (domain.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.favorites {
		if f.UserID == userID && f.QuoteID == quoteID {
			return domain.Favorite{}, domain.NewConflictError("favorite", "quote is already a favorite")
		}
	}

	f := domain.Favorite{ID: uuid.NewString(), UserID: userID, QuoteID: quoteID, CreatedAt: s.now().UTC()}
	s.favorites[f.ID] = f

	return f, nil
}

// RemoveFavorite implements ports.FavoriteStore.
func (s *Store) RemoveFavorite(_ context.Context, userID, quoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range s.favorites {
		if f.UserID == userID && f.QuoteID == quoteID {
			delete(s.favorites, id)
		}
	}

	return nil
}

// CountFavorites implements ports.FavoriteStore.
func (s *Store) CountFavorites(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0

	for _, f := range s.favorites {
		if f.UserID == userID {
			n++
		}
	}

	return n, nil
}

// ListCollections implements ports.CollectionStore.
func (s *Store) ListCollections(_ context.Context, userID string) ([]domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Collection{}

	for _, c := range s.collections {
		if c.UserID == userID {
			out = append(out, c)
		}
	}

	slices.SortFunc(out, newestFirst(
		func(c domain.Collection) time.Time { return c.CreatedAt },
		func(c domain.Collection) string { return c.ID },
	))

	return out, nil
}

// GetCollection implements ports.CollectionStore.
func (s *Store) GetCollection(_ context.Context, id string) (domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[id]
	if !ok {
		return domain.Collection{}, domain.NewNotFoundError("collection", id)
	}

	return c, nil
}

// CreateCollection implements ports.CollectionStore.
func (s *Store) CreateCollection(_ context.Context, userID, name string) (domain.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := domain.Collection{ID: uuid.NewString(), UserID: userID, Name: name, CreatedAt: s.now().UTC()}
	s.collections[c.ID] = c

	return c, nil
}

// RenameCollection implements ports.CollectionStore.
func (s *Store) RenameCollection(_ context.Context, id, name string) (domain.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[id]
	if !ok {
		return domain.Collection{}, domain.NewNotFoundError("collection", id)
	}

	c.Name = name
	s.collections[id] = c

	return c, nil
}

// DeleteCollection implements ports.CollectionStore. Items of the
// collection go with it.
func (s *Store) DeleteCollection(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, id)

	for itemID, it := range s.items {
		if it.CollectionID == id {
			delete(s.items, itemID)
		}
	}

	return nil
}

// CountCollections implements ports.CollectionStore.
func (s *Store) CountCollections(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0

	for _, c := range s.collections {
		if c.UserID == userID {
			n++
		}
	}

	return n, nil
}

// ListItems implements ports.CollectionItemStore.
func (s *Store) ListItems(_ context.Context, collectionID string) ([]domain.CollectionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.CollectionItem{}

	for _, it := range s.items {
		if it.CollectionID != collectionID {
			continue
		}

		it.Quote = s.quoteRef(it.QuoteID)
		out = append(out, it)
	}

	slices.SortFunc(out, newestFirst(
		func(it domain.CollectionItem) time.Time { return it.CreatedAt },
		func(it domain.CollectionItem) string { return it.ID },
	))

	return out, nil
}

// CollectionIDsForQuote implements ports.CollectionItemStore.
func (s *Store) CollectionIDsForQuote(_ context.Context, quoteID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []string{}

	for _, it := range s.items {
		if it.QuoteID == quoteID {
			out = append(out, it.CollectionID)
		}
	}

	slices.Sort(out)

	return slices.Compact(out), nil
}

// AddItem implements ports.CollectionItemStore.
func (s *Store) AddItem(_ context.Context, collectionID, quoteID string) (domain.CollectionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collectionID]; !ok {
		return domain.CollectionItem{}, domain.NewNotFoundError("collection", collectionID)
	}

	for _, it := range s.items {
		if it.CollectionID == collectionID && it.QuoteID == quoteID {
			return domain.CollectionItem{}, domain.NewConflictError("collection_item", "quote is already in the collection")
		}
	}

	it := domain.CollectionItem{
		ID:           uuid.NewString(),
		CollectionID: collectionID,
		QuoteID:      quoteID,
		CreatedAt:    s.now().UTC(),
	}
	s.items[it.ID] = it

	return it, nil
}

// RemoveItem implements ports.CollectionItemStore.
func (s *Store) RemoveItem(_ context.Context, collectionID, quoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, it := range s.items {
		if it.CollectionID == collectionID && it.QuoteID == quoteID {
			delete(s.items, id)
		}
	}

	return nil
}

// RemoveQuoteFromCollections implements ports.CollectionItemStore.
func (s *Store) RemoveQuoteFromCollections(_ context.Context, quoteID string, collectionIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for id, it := range s.items {
		if it.QuoteID == quoteID && slices.Contains(collectionIDs, it.CollectionID) {
			delete(s.items, id)
			n++
		}
	}

	return n, nil
}

// GetProfile implements ports.ProfileStore.
func (s *Store) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return domain.Profile{}, domain.NewNotFoundError("profile", userID)
	}

	return p, nil
}

// UpsertProfile implements ports.ProfileStore.
func (s *Store) UpsertProfile(_ context.Context, p domain.Profile) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now().UTC()
	}

	s.profiles[p.ID] = p

	return p, nil
}

// Get implements ports.KeyValueStore.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.kv[key]
	if !ok || (!e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)) {
		return "", domain.NewNotFoundError("key", key)
	}

	return e.value, nil
}

// Set implements ports.KeyValueStore.
func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := kvEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.kv[key] = e

	return nil
}

// Delete implements ports.KeyValueStore.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.kv, key)

	return nil
}

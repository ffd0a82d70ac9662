// Package app contains application services that orchestrate use cases.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// DailyQuoteKey is the key-value entry caching the quote of the day.
const DailyQuoteKey = "daily_quote_cache"

// Quote service defaults.
const (
	DefaultFeedSize    = 15
	DefaultSearchLimit = 100
	DefaultDailyTTL    = 24 * time.Hour
)

// QuoteService orchestrates quote browsing use cases.
// It depends on port interfaces, not concrete implementations.
type QuoteService struct {
	quotes      ports.QuoteStore
	cache       ports.KeyValueStore
	flags       ports.FeatureFlags
	logger      *slog.Logger
	feedSize    int
	searchLimit int
	dailyTTL    time.Duration
	loc         *time.Location
	now         func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

// QuoteServiceConfig contains configuration for the quote service.
type QuoteServiceConfig struct {
	Quotes ports.QuoteStore
	Cache  ports.KeyValueStore
	Flags  ports.FeatureFlags
	Logger *slog.Logger

	FeedSize    int
	SearchLimit int
	DailyTTL    time.Duration

	// Location decides when "today" starts for the quote of the day.
	Location *time.Location

	Now  func() time.Time
	Rand *rand.Rand
}

// NewQuoteService creates a new quote service with the provided dependencies.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Quotes == nil {
		panic("app: quote store is required")
	}

	if cfg.Cache == nil {
		panic("app: key-value store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &QuoteService{
		quotes:      cfg.Quotes,
		cache:       cfg.Cache,
		flags:       cfg.Flags,
		logger:      logger.With(slog.String("component", "app.QuoteService")),
		feedSize:    cfg.FeedSize,
		searchLimit: cfg.SearchLimit,
		dailyTTL:    cfg.DailyTTL,
		loc:         cfg.Location,
		now:         cfg.Now,
		rand:        cfg.Rand,
	}

	if s.feedSize <= 0 {
		s.feedSize = DefaultFeedSize
	}

	if s.searchLimit <= 0 {
		s.searchLimit = DefaultSearchLimit
	}

	if s.dailyTTL <= 0 {
		s.dailyTTL = DefaultDailyTTL
	}

	if s.loc == nil {
		s.loc = time.Local
	}

	if s.now == nil {
		s.now = time.Now
	}

	if s.rand == nil {
		s.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return s
}

func (s *QuoteService) intN(n int) int {
	s.randMu.Lock()
	defer s.randMu.Unlock()

	return s.rand.IntN(n)
}

func (s *QuoteService) shuffle(quotes []domain.Quote) {
	s.randMu.Lock()
	defer s.randMu.Unlock()

	s.rand.Shuffle(len(quotes), func(i, j int) {
		quotes[i], quotes[j] = quotes[j], quotes[i]
	})
}

func (s *QuoteService) isEnabled(ctx context.Context, flag string, def bool) bool {
	if s.flags == nil {
		return def
	}

	return s.flags.IsEnabled(ctx, flag, def)
}

func (s *QuoteService) size(ctx context.Context) int {
	if s.flags == nil {
		return s.feedSize
	}

	if n := s.flags.GetInt(ctx, ports.FlagFeedSize, s.feedSize); n > 0 {
		return n
	}

	return s.feedSize
}

// Feed returns a random window of consecutive quotes, shuffled.
func (s *QuoteService) Feed(ctx context.Context) ([]domain.Quote, error) {
	size := s.size(ctx)

	total, err := s.quotes.CountQuotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting quotes: %w", err)
	}

	if total == 0 {
		return []domain.Quote{}, nil
	}

	offset := 0
	if total > size {
		offset = s.intN(total - size + 1)
	}

	quotes, err := s.quotes.ListQuotes(ctx, ports.Page{Offset: offset, Limit: size})
	if err != nil {
		return nil, fmt.Errorf("listing quotes: %w", err)
	}

	if s.isEnabled(ctx, ports.FlagShuffleFeed, true) {
		s.shuffle(quotes)
	}

	s.logger.DebugContext(ctx, "built feed",
		slog.Int("offset", offset),
		slog.Int("count", len(quotes)),
	)

	return quotes, nil
}

// Search matches quotes by free text, category, or author, newest first.
// An empty filter returns the newest quotes.
func (s *QuoteService) Search(ctx context.Context, filter domain.QuoteFilter) ([]domain.Quote, error) {
	if filter.Limit <= 0 || filter.Limit > s.searchLimit {
		filter.Limit = s.searchLimit
	}

	var (
		quotes []domain.Quote
		err    error
	)

	if filter.IsEmpty() {
		quotes, err = s.quotes.ListQuotes(ctx, ports.Page{Limit: filter.Limit})
	} else {
		quotes, err = s.quotes.SearchQuotes(ctx, filter)
	}

	if err != nil {
		return nil, fmt.Errorf("searching quotes: %w", err)
	}

	return quotes, nil
}

// Page returns up to limit quotes, newest first, starting at offset.
func (s *QuoteService) Page(ctx context.Context, offset, limit int) ([]domain.Quote, error) {
	if limit <= 0 || limit > s.searchLimit {
		limit = s.searchLimit
	}

	quotes, err := s.quotes.ListQuotes(ctx, ports.Page{Offset: max(offset, 0), Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("listing quotes: %w", err)
	}

	return quotes, nil
}

// ByCategory returns the newest quotes in a category.
func (s *QuoteService) ByCategory(ctx context.Context, category string) ([]domain.Quote, error) {
	return s.Search(ctx, domain.QuoteFilter{Category: category})
}

// Categories returns the categories present in the store, falling back to
// the built-in list when the store has none or cannot be read.
func (s *QuoteService) Categories(ctx context.Context) []string {
	cats, err := s.quotes.ListCategories(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list categories", slog.Any("error", err))
	}

	if len(cats) == 0 {
		return append([]string(nil), domain.Categories...)
	}

	return cats
}

// Get retrieves a specific quote by its identifier.
func (s *QuoteService) Get(ctx context.Context, id string) (domain.Quote, error) {
	q, err := s.quotes.GetQuote(ctx, id)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("getting quote: %w", err)
	}

	return q, nil
}

type cachedQuote struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

type dailyQuote struct {
	Date  string      `json:"date"`
	Quote cachedQuote `json:"quote"`
}

// QuoteOfTheDay returns the same quote for the whole calendar day in the
// configured location. Cache failures are logged and never fail the call.
func (s *QuoteService) QuoteOfTheDay(ctx context.Context) (domain.Quote, error) {
	today := s.now().In(s.loc).Format(time.DateOnly)

	if q, ok := s.cachedDaily(ctx, today); ok {
		return q, nil
	}

	total, err := s.quotes.CountQuotes(ctx)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("counting quotes: %w", err)
	}

	if total == 0 {
		return domain.Quote{}, domain.NewNotFoundError("quote", "daily")
	}

	quotes, err := s.quotes.ListQuotes(ctx, ports.Page{Offset: s.intN(total), Limit: 1})
	if err != nil {
		return domain.Quote{}, fmt.Errorf("picking daily quote: %w", err)
	}

	if len(quotes) == 0 {
		return domain.Quote{}, domain.NewNotFoundError("quote", "daily")
	}

	q := quotes[0]
	s.storeDaily(ctx, today, q)

	return q, nil
}

func (s *QuoteService) cachedDaily(ctx context.Context, today string) (domain.Quote, bool) {
	raw, err := s.cache.Get(ctx, DailyQuoteKey)
	if err != nil {
		if !domain.IsNotFound(err) {
			s.logger.WarnContext(ctx, "failed to read daily quote cache", slog.Any("error", err))
		}

		return domain.Quote{}, false
	}

	var entry dailyQuote
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.logger.WarnContext(ctx, "discarding corrupt daily quote cache", slog.Any("error", err))
		return domain.Quote{}, false
	}

	if entry.Date != today {
		return domain.Quote{}, false
	}

	q, err := domain.NewQuote(entry.Quote.ID, entry.Quote.Text, entry.Quote.Author, entry.Quote.Category, entry.Quote.CreatedAt)
	if err != nil {
		return domain.Quote{}, false
	}

	return q, true
}

func (s *QuoteService) storeDaily(ctx context.Context, today string, q domain.Quote) {
	raw, err := json.Marshal(dailyQuote{
		Date: today,
		Quote: cachedQuote{
			ID:        q.ID,
			Text:      q.Text,
			Author:    q.Author,
			Category:  q.Category,
			CreatedAt: q.CreatedAt,
		},
	})
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, DailyQuoteKey, string(raw), s.dailyTTL); err != nil {
		s.logger.WarnContext(ctx, "failed to cache daily quote", slog.Any("error", err))
	}
}

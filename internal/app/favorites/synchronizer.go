// Package favorites keeps the signed-in user's favorite quote ids in memory
// and writes toggles through to the remote store optimistically.
package favorites

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quote-keeper/internal/app/optimistic"
	"github.com/jsamuelsen/quote-keeper/internal/app/session"
	"github.com/jsamuelsen/quote-keeper/internal/app/txn"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/platform/metrics"
	"github.com/jsamuelsen/quote-keeper/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// Alert text shown when a favorite write fails.
const (
	AlertTitle   = "Error"
	AlertMessage = "Failed to update favorite"
)

// Sessions is the part of the session provider the synchronizer reads.
type Sessions interface {
	Identity() (domain.Identity, bool)
	Subscribe() (<-chan session.Event, func())
}

// Config contains the dependencies of a Synchronizer.
type Config struct {
	Sessions    Sessions
	Favorites   ports.FavoriteStore
	Collections ports.CollectionStore
	Items       ports.CollectionItemStore
	Alerts      ports.AlertPublisher
	Mode        optimistic.Mode
	Logger      *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Synchronizer mirrors the favorites relation for the current identity.
type Synchronizer struct {
	sessions    Sessions
	favorites   ports.FavoriteStore
	collections ports.CollectionStore
	items       ports.CollectionItemStore
	alerts      ports.AlertPublisher
	logger      *slog.Logger
	now         func() time.Time

	set    *optimistic.Set
	writes *optimistic.Chain
}

// New creates a Synchronizer with an empty set.
func New(cfg Config) *Synchronizer {
	if cfg.Sessions == nil || cfg.Favorites == nil || cfg.Collections == nil || cfg.Items == nil {
		panic("favorites: sessions and stores are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	mode := cfg.Mode
	if mode == "" {
		mode = optimistic.LastCompleted
	}

	return &Synchronizer{
		sessions:    cfg.Sessions,
		favorites:   cfg.Favorites,
		collections: cfg.Collections,
		items:       cfg.Items,
		alerts:      cfg.Alerts,
		logger:      logger.With(slog.String("component", "favorites.Synchronizer")),
		now:         now,
		set:         optimistic.New(mode),
		writes:      optimistic.NewChain(),
	}
}

// Mode reports how racing completions are reconciled.
func (s *Synchronizer) Mode() optimistic.Mode {
	return s.set.Mode()
}

// IsFavorite reports whether the quote is in the current set.
func (s *Synchronizer) IsFavorite(quoteID string) bool {
	return s.set.Contains(quoteID)
}

// Snapshot returns the favorite quote ids, sorted.
func (s *Synchronizer) Snapshot() []string {
	return s.set.Snapshot()
}

// bind attaches the set to the current identity, clearing it on change.
func (s *Synchronizer) bind() (domain.Identity, bool) {
	id, ok := s.sessions.Identity()
	if s.set.Bind(id.UserID) {
		metrics.FavoritesTracked.Set(0)
	}

	return id, ok
}

// Refresh replaces the set with the remote favorites of the current
// identity. Signed out, the set is emptied. On error the set is left as it
// was and the error is logged and returned.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	ctx, span := telemetry.Tracer().Start(ctx, "favorites.Refresh")
	defer span.End()

	id, ok := s.bind()
	if !ok {
		metrics.FavoriteRefreshesTotal.WithLabelValues("signed_out").Inc()
		return nil
	}

	span.SetAttributes(attribute.String("user.id", id.UserID))

	tok := s.set.BeginRefresh()

	favs, err := s.favorites.ListFavorites(ctx, id.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list favorites failed")
		metrics.FavoriteRefreshesTotal.WithLabelValues("error").Inc()
		s.logger.ErrorContext(ctx, "failed to refresh favorites",
			slog.String("user_id", id.UserID),
			slog.Any("error", err),
		)

		return fmt.Errorf("listing favorites: %w", err)
	}

	ids := make([]string, 0, len(favs))
	for _, f := range favs {
		ids = append(ids, f.QuoteID)
	}

	if !s.set.ApplyRefresh(tok, ids) {
		metrics.FavoriteRefreshesTotal.WithLabelValues("stale").Inc()
		metrics.StaleCompletionsTotal.WithLabelValues("refresh").Inc()
		s.logger.DebugContext(ctx, "discarded refresh for previous identity")

		return nil
	}

	metrics.FavoriteRefreshesTotal.WithLabelValues("applied").Inc()
	metrics.FavoritesTracked.Set(float64(s.set.Len()))

	return nil
}

// List returns the current identity's favorites joined to their quotes.
func (s *Synchronizer) List(ctx context.Context) ([]domain.Favorite, error) {
	id, ok := s.sessions.Identity()
	if !ok {
		return nil, domain.NewUnauthenticatedError("list favorites")
	}

	favs, err := s.favorites.ListFavorites(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}

	return favs, nil
}

// Toggle is a favorite flip whose remote write may still be running.
type Toggle struct {
	// QuoteID is the quote that was toggled.
	QuoteID string

	// Favorite is the optimistic state, already visible through IsFavorite.
	Favorite bool

	done    <-chan struct{}
	err     error
	outcome string
}

func settledToggle(quoteID string, err error, outcome string) *Toggle {
	done := make(chan struct{})
	close(done)

	return &Toggle{QuoteID: quoteID, done: done, err: err, outcome: outcome}
}

// Done is closed when the remote write has settled.
func (t *Toggle) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the remote write settles and returns its error.
func (t *Toggle) Wait() error {
	<-t.done
	return t.err
}

// Outcome returns the settled outcome label. Only meaningful after Done.
func (t *Toggle) Outcome() string {
	return t.outcome
}

// ToggleFavorite flips the quote in the set and writes the change to the
// store in the background. The write outlives ctx's cancellation.
func (s *Synchronizer) ToggleFavorite(ctx context.Context, quoteID string) *Toggle {
	id, ok := s.bind()
	if !ok {
		metrics.FavoriteTogglesTotal.WithLabelValues("none", metrics.OutcomeNoSession).Inc()
		return settledToggle(quoteID, domain.NewUnauthenticatedError("toggle favorite"), metrics.OutcomeNoSession)
	}

	tok := s.set.Flip(quoteID)
	metrics.FavoritesTracked.Set(float64(s.set.Len()))

	t := &Toggle{QuoteID: quoteID, Favorite: !tok.Was}

	bg := context.WithoutCancel(ctx)
	t.done = s.writes.Go(quoteID, func() {
		t.outcome, t.err = s.settle(bg, id.UserID, tok)
	})

	return t
}

// Wait blocks until every in-flight toggle has settled.
func (s *Synchronizer) Wait() {
	s.writes.Wait()
}

func direction(tok optimistic.Token) string {
	if tok.Was {
		return "remove"
	}

	return "add"
}

func (s *Synchronizer) settle(ctx context.Context, userID string, tok optimistic.Token) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "favorites.Toggle", trace.WithAttributes(
		attribute.String("quote.id", tok.ID),
		attribute.String("direction", direction(tok)),
	))
	defer span.End()

	err := s.write(ctx, userID, tok)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "favorite write failed")
	}

	label := metrics.OutcomeApplied

	switch s.set.Settle(tok, err) {
	case optimistic.Confirmed:
	case optimistic.RolledBack:
		label = metrics.OutcomeRolledBack
		s.logger.ErrorContext(ctx, "favorite update failed, reverted",
			slog.String("quote_id", tok.ID),
			slog.Bool("favorite", tok.Was),
			slog.Any("error", err),
		)
		s.alert(ctx, userID)
	case optimistic.Discarded:
		label = metrics.OutcomeDiscarded
		metrics.StaleCompletionsTotal.WithLabelValues("favorite").Inc()
		s.logger.DebugContext(ctx, "discarded stale favorite completion",
			slog.String("quote_id", tok.ID),
			slog.Uint64("version", tok.Version),
		)
	}

	metrics.FavoriteTogglesTotal.WithLabelValues(direction(tok), label).Inc()
	metrics.FavoritesTracked.Set(float64(s.set.Len()))

	return label, err
}

func (s *Synchronizer) write(ctx context.Context, userID string, tok optimistic.Token) error {
	if !tok.Was {
		_, err := s.favorites.AddFavorite(ctx, userID, tok.ID)
		if err != nil && !domain.IsConflict(err) {
			return fmt.Errorf("adding favorite: %w", err)
		}

		return nil
	}

	return s.unfavorite(ctx, userID, tok.ID)
}

// unfavorite deletes the favorite and then, best effort, every collection
// item of the user's collections that points at the quote.
func (s *Synchronizer) unfavorite(ctx context.Context, userID, quoteID string) error {
	tx := txn.New("unfavorite")

	_ = tx.Add(txn.Func("delete favorite", func(ctx context.Context) error {
		return s.favorites.RemoveFavorite(ctx, userID, quoteID)
	}, nil))

	_ = tx.AddBestEffort(txn.Func("delete collection items", func(ctx context.Context) error {
		cols, err := s.collections.ListCollections(ctx, userID)
		if err != nil {
			return fmt.Errorf("listing collections: %w", err)
		}

		if len(cols) == 0 {
			return nil
		}

		ids := make([]string, len(cols))
		for i, c := range cols {
			ids[i] = c.ID
		}

		n, err := s.items.RemoveQuoteFromCollections(ctx, quoteID, ids)
		if err != nil {
			return err
		}

		metrics.CascadeRemovedItemsTotal.Add(float64(n))

		return nil
	}, nil))

	res, err := tx.Commit(ctx)
	if err != nil {
		return err
	}

	if res.Partial() {
		metrics.CascadeFailuresTotal.Inc()
		s.logger.WarnContext(ctx, "favorite removed but collection items remain",
			slog.String("quote_id", quoteID),
			slog.Any("error", res.FailureError()),
		)
	}

	return nil
}

func (s *Synchronizer) alert(ctx context.Context, userID string) {
	if s.alerts == nil {
		return
	}

	err := s.alerts.Publish(ctx, ports.Alert{
		UserID:  userID,
		Kind:    ports.AlertError,
		Title:   AlertTitle,
		Message: AlertMessage,
		At:      s.now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish alert", slog.Any("error", err))
		return
	}

	metrics.AlertsPublishedTotal.WithLabelValues(string(ports.AlertError)).Inc()
}

// Run refreshes once, then again on every session event, until ctx is
// done. Refresh errors are logged and otherwise ignored.
func (s *Synchronizer) Run(ctx context.Context) {
	events, unsubscribe := s.sessions.Subscribe()
	defer unsubscribe()

	_ = s.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			s.logger.DebugContext(ctx, "session event", slog.String("event", string(ev.Kind)))
			_ = s.Refresh(ctx)
		}
	}
}

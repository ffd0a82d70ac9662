package collections

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/app/optimistic"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/platform/metrics"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// Alert text shown when a membership write fails.
const (
	AlertTitle   = "Error"
	AlertMessage = "Failed to update collection."
)

// Membership tracks which of a user's collections contain one quote and
// toggles membership optimistically. A sheet starts empty; Load it before
// reading or toggling.
type Membership struct {
	m       *Manager
	userID  string
	quoteID string
	key     string
	set     *optimistic.Set
	pending sync.WaitGroup
}

func newMembership(m *Manager, userID, quoteID string) *Membership {
	set := optimistic.New(m.mode)
	set.Bind(userID)

	return &Membership{
		m:       m,
		userID:  userID,
		quoteID: quoteID,
		key:     userID + "\x00" + quoteID,
		set:     set,
	}
}

// QuoteID returns the quote the sheet is for.
func (s *Membership) QuoteID() string {
	return s.quoteID
}

// Load replaces the selection with the user's collections that contain the
// quote. It first waits for membership writes already queued for this user
// and quote, from any sheet, so the read includes them.
func (s *Membership) Load(ctx context.Context) error {
	select {
	case <-s.m.writes.Idle(s.key):
	case <-ctx.Done():
		return fmt.Errorf("loading membership: %w", ctx.Err())
	}

	tok := s.set.BeginRefresh()

	cols, ids, err := app.Parallel2(ctx,
		func(ctx context.Context) ([]domain.Collection, error) {
			return s.m.collections.ListCollections(ctx, s.userID)
		},
		func(ctx context.Context) ([]string, error) {
			return s.m.items.CollectionIDsForQuote(ctx, s.quoteID)
		},
	)
	if err != nil {
		s.m.logger.ErrorContext(ctx, "failed to load collection membership",
			slog.String("quote_id", s.quoteID),
			slog.Any("error", err),
		)

		return fmt.Errorf("loading membership: %w", err)
	}

	owned := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		owned[c.ID] = struct{}{}
	}

	selected := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := owned[id]; ok {
			selected = append(selected, id)
		}
	}

	s.set.ApplyRefresh(tok, selected)

	return nil
}

// Selected returns the ids of collections containing the quote, sorted.
func (s *Membership) Selected() []string {
	return s.set.Snapshot()
}

// IsSelected reports whether the collection contains the quote.
func (s *Membership) IsSelected(collectionID string) bool {
	return s.set.Contains(collectionID)
}

// Toggle is a membership flip whose remote write may still be running.
type Toggle struct {
	CollectionID string

	// Selected is the optimistic state.
	Selected bool

	done    <-chan struct{}
	err     error
	outcome string
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

// Toggle flips membership of the quote in the collection and writes it in
// the background. On failure the flip is reverted and an alert published.
func (s *Membership) Toggle(ctx context.Context, collectionID string) *Toggle {
	tok := s.set.Flip(collectionID)
	t := &Toggle{CollectionID: collectionID, Selected: !tok.Was}

	s.pending.Add(1)

	bg := context.WithoutCancel(ctx)
	t.done = s.m.writes.Go(s.key, func() {
		defer s.pending.Done()
		t.outcome, t.err = s.settle(bg, tok)
	})

	return t
}

// Wait blocks until every toggle made on this sheet has settled.
func (s *Membership) Wait() {
	s.pending.Wait()
}

func (s *Membership) settle(ctx context.Context, tok optimistic.Token) (string, error) {
	var err error
	if tok.Was {
		err = s.m.items.RemoveItem(ctx, tok.ID, s.quoteID)
	} else {
		_, err = s.m.items.AddItem(ctx, tok.ID, s.quoteID)
		if domain.IsConflict(err) {
			err = nil
		}
	}

	label := metrics.OutcomeApplied

	switch s.set.Settle(tok, err) {
	case optimistic.Confirmed:
	case optimistic.RolledBack:
		label = metrics.OutcomeRolledBack
		s.m.logger.ErrorContext(ctx, "membership update failed, reverted",
			slog.String("collection_id", tok.ID),
			slog.String("quote_id", s.quoteID),
			slog.Any("error", err),
		)
		s.alert(ctx)
	case optimistic.Discarded:
		label = metrics.OutcomeDiscarded
		metrics.StaleCompletionsTotal.WithLabelValues("membership").Inc()
	}

	metrics.MembershipTogglesTotal.WithLabelValues(label).Inc()

	return label, err
}

func (s *Membership) alert(ctx context.Context) {
	if s.m.alerts == nil {
		return
	}

	err := s.m.alerts.Publish(ctx, ports.Alert{
		UserID:  s.userID,
		Kind:    ports.AlertError,
		Title:   AlertTitle,
		Message: AlertMessage,
		At:      s.m.now(),
	})
	if err != nil {
		s.m.logger.WarnContext(ctx, "failed to publish alert", slog.Any("error", err))
		return
	}

	metrics.AlertsPublishedTotal.WithLabelValues(string(ports.AlertError)).Inc()
}

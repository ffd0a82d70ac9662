//go:build integration

package integration

import (
	"context"
	"sync"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/memstore"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

type writeOp int

const (
	favoriteOp writeOp = iota
	itemOp
	cascadeOp
)

type failure struct {
	op      writeOp
	quoteID string
}

// gatedStore is a memory store whose writes can be held back and released
// in order, and made to fail once per armed failure.
type gatedStore struct {
	*memstore.Store

	mu       sync.Mutex
	gate     chan struct{}
	failures map[failure]int
}

func newGatedStore(s *memstore.Store) *gatedStore {
	return &gatedStore{Store: s, failures: make(map[failure]int)}
}

func (g *gatedStore) hold() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.gate == nil {
		g.gate = make(chan struct{})
	}
}

func (g *gatedStore) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.gate != nil {
		close(g.gate)
		g.gate = nil
	}
}

func (g *gatedStore) failNext(op writeOp, quoteID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures[failure{op, quoteID}]++
}

// enter waits for the gate, then reports whether this write must fail.
func (g *gatedStore) enter(op writeOp, quoteID string) error {
	g.mu.Lock()
	gate := g.gate
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := failure{op, quoteID}
	if g.failures[key] == 0 {
		return nil
	}

	g.failures[key]--

	return domain.NewUnavailableError("backend", "connection reset")
}

func (g *gatedStore) AddFavorite(ctx context.Context, userID, quoteID string) (domain.Favorite, error) {
	if err := g.enter(favoriteOp, quoteID); err != nil {
		return domain.Favorite{}, err
	}

	return g.Store.AddFavorite(ctx, userID, quoteID)
}

func (g *gatedStore) RemoveFavorite(ctx context.Context, userID, quoteID string) error {
	if err := g.enter(favoriteOp, quoteID); err != nil {
		return err
	}

	return g.Store.RemoveFavorite(ctx, userID, quoteID)
}

func (g *gatedStore) AddItem(ctx context.Context, collectionID, quoteID string) (domain.CollectionItem, error) {
	if err := g.enter(itemOp, quoteID); err != nil {
		return domain.CollectionItem{}, err
	}

	return g.Store.AddItem(ctx, collectionID, quoteID)
}

func (g *gatedStore) RemoveItem(ctx context.Context, collectionID, quoteID string) error {
	if err := g.enter(itemOp, quoteID); err != nil {
		return err
	}

	return g.Store.RemoveItem(ctx, collectionID, quoteID)
}

func (g *gatedStore) RemoveQuoteFromCollections(ctx context.Context, quoteID string, collectionIDs []string) (int, error) {
	if err := g.enter(cascadeOp, ""); err != nil {
		return 0, err
	}

	return g.Store.RemoveQuoteFromCollections(ctx, quoteID, collectionIDs)
}

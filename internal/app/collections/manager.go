// Package collections manages user-named groupings of quotes and the
// per-quote membership sheet used to add a quote to several collections.
package collections

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/app/optimistic"
	"github.com/jsamuelsen/quote-keeper/internal/app/txn"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// DefaultAddConcurrency bounds parallel inserts when creating a collection
// from a selection of quotes.
const DefaultAddConcurrency = 4

// Config contains the dependencies of a Manager.
type Config struct {
	Collections ports.CollectionStore
	Items       ports.CollectionItemStore
	Alerts      ports.AlertPublisher
	Executor    *app.Executor
	Mode        optimistic.Mode
	Logger      *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// AddConcurrency defaults to DefaultAddConcurrency.
	AddConcurrency int
}

// Manager performs collection CRUD. Mutations are not optimistic: they
// surface the store's error to the caller.
type Manager struct {
	collections    ports.CollectionStore
	items          ports.CollectionItemStore
	alerts         ports.AlertPublisher
	exec           *app.Executor
	mode           optimistic.Mode
	logger         *slog.Logger
	now            func() time.Time
	addConcurrency int

	// writes serializes membership writes per user and quote.
	writes *optimistic.Chain
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	if cfg.Collections == nil || cfg.Items == nil {
		panic("collections: stores are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exec := cfg.Executor
	if exec == nil {
		exec = app.NewExecutor(logger)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	limit := cfg.AddConcurrency
	if limit <= 0 {
		limit = DefaultAddConcurrency
	}

	mode := cfg.Mode
	if mode == "" {
		mode = optimistic.LastCompleted
	}

	return &Manager{
		collections:    cfg.Collections,
		items:          cfg.Items,
		alerts:         cfg.Alerts,
		exec:           exec,
		mode:           mode,
		logger:         logger.With(slog.String("component", "collections.Manager")),
		now:            now,
		addConcurrency: limit,
		writes:         optimistic.NewChain(),
	}
}

// List returns the user's collections, newest first. Errors are logged and
// yield an empty list.
func (m *Manager) List(ctx context.Context, userID string) []domain.Collection {
	cols, err := m.collections.ListCollections(ctx, userID)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to list collections",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)

		return []domain.Collection{}
	}

	return cols
}

// Count returns how many collections the user owns.
func (m *Manager) Count(ctx context.Context, userID string) (int, error) {
	n, err := m.collections.CountCollections(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("counting collections: %w", err)
	}

	return n, nil
}

type createInput struct {
	UserID string
	Name   string
}

// Create inserts a collection named name for the user. A blank name is
// rejected without contacting the store.
func (m *Manager) Create(ctx context.Context, userID, name string) (domain.Collection, error) {
	return app.Execute(ctx, m.exec, app.Operation[createInput, domain.Collection, domain.Collection, domain.Collection]{
		Name: "create_collection",
		Validate: func(_ context.Context, in createInput) error {
			if strings.TrimSpace(in.UserID) == "" {
				return domain.NewUnauthenticatedError("create collection")
			}

			_, err := domain.NormalizeCollectionName(in.Name)

			return err
		},
		Perform: func(ctx context.Context, in createInput) (domain.Collection, error) {
			name, _ := domain.NormalizeCollectionName(in.Name)
			return m.collections.CreateCollection(ctx, in.UserID, name)
		},
		Verify: func(_ context.Context, in createInput, c domain.Collection) (domain.Collection, error) {
			if c.ID == "" || c.UserID != in.UserID {
				return domain.Collection{}, domain.NewConflictError("collection", "store returned an unexpected row")
			}

			return c, nil
		},
		Respond: func(_ context.Context, _ createInput, c domain.Collection) (domain.Collection, error) {
			return c, nil
		},
	}, createInput{UserID: userID, Name: name})
}

type renameInput struct {
	UserID       string
	CollectionID string
	Name         string
}

// Rename changes a collection's name. Only the owner may rename it.
func (m *Manager) Rename(ctx context.Context, userID, collectionID, name string) (domain.Collection, error) {
	return app.Execute(ctx, m.exec, app.Operation[renameInput, domain.Collection, domain.Collection, domain.Collection]{
		Name: "rename_collection",
		Validate: func(ctx context.Context, in renameInput) error {
			if _, err := domain.NormalizeCollectionName(in.Name); err != nil {
				return err
			}

			return m.checkOwner(ctx, in.UserID, in.CollectionID, "rename collection")
		},
		Perform: func(ctx context.Context, in renameInput) (domain.Collection, error) {
			name, _ := domain.NormalizeCollectionName(in.Name)
			return m.collections.RenameCollection(ctx, in.CollectionID, name)
		},
		Verify: func(_ context.Context, in renameInput, c domain.Collection) (domain.Collection, error) {
			if c.ID != in.CollectionID {
				return domain.Collection{}, domain.NewConflictError("collection", "store renamed a different row")
			}

			return c, nil
		},
		Respond: func(_ context.Context, _ renameInput, c domain.Collection) (domain.Collection, error) {
			return c, nil
		},
	}, renameInput{UserID: userID, CollectionID: collectionID, Name: name})
}

type deleteInput struct {
	UserID       string
	CollectionID string
}

// Delete removes a collection. Its items are removed by the store.
func (m *Manager) Delete(ctx context.Context, userID, collectionID string) error {
	_, err := app.Execute(ctx, m.exec, app.Operation[deleteInput, struct{}, struct{}, struct{}]{
		Name: "delete_collection",
		Validate: func(ctx context.Context, in deleteInput) error {
			return m.checkOwner(ctx, in.UserID, in.CollectionID, "delete collection")
		},
		Perform: func(ctx context.Context, in deleteInput) (struct{}, error) {
			return struct{}{}, m.collections.DeleteCollection(ctx, in.CollectionID)
		},
	}, deleteInput{UserID: userID, CollectionID: collectionID})

	return err
}

// Get returns one of the user's collections. Someone else's collection is
// reported as forbidden.
func (m *Manager) Get(ctx context.Context, userID, collectionID string) (domain.Collection, error) {
	c, err := m.collections.GetCollection(ctx, collectionID)
	if err != nil {
		return domain.Collection{}, err
	}

	if c.UserID != userID {
		return domain.Collection{}, domain.NewForbiddenError("get collection", "collection belongs to another user")
	}

	return c, nil
}

func (m *Manager) checkOwner(ctx context.Context, userID, collectionID, operation string) error {
	c, err := m.collections.GetCollection(ctx, collectionID)
	if err != nil {
		return err
	}

	if c.UserID != userID {
		return domain.NewForbiddenError(operation, "collection belongs to another user")
	}

	return nil
}

// Items returns the collection's items joined to their quotes.
func (m *Manager) Items(ctx context.Context, collectionID string) ([]domain.CollectionItem, error) {
	items, err := m.items.ListItems(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	return items, nil
}

// AddQuote inserts the quote into the collection. A duplicate surfaces as
// domain.ErrConflict from the store.
func (m *Manager) AddQuote(ctx context.Context, collectionID, quoteID string) (domain.CollectionItem, error) {
	item, err := m.items.AddItem(ctx, collectionID, quoteID)
	if err != nil {
		return domain.CollectionItem{}, fmt.Errorf("adding quote to collection: %w", err)
	}

	return item, nil
}

// RemoveQuote deletes the quote from the collection.
func (m *Manager) RemoveQuote(ctx context.Context, collectionID, quoteID string) error {
	if err := m.items.RemoveItem(ctx, collectionID, quoteID); err != nil {
		return fmt.Errorf("removing quote from collection: %w", err)
	}

	return nil
}

// CreateWithQuotes creates a collection holding the selected quotes. If any
// insert fails the new collection is deleted again.
func (m *Manager) CreateWithQuotes(ctx context.Context, userID, name string, quoteIDs []string) (domain.Collection, error) {
	if len(quoteIDs) == 0 {
		return domain.Collection{}, domain.NewValidationError("quote_ids", "select at least one quote")
	}

	if _, err := domain.NormalizeCollectionName(name); err != nil {
		return domain.Collection{}, err
	}

	var created domain.Collection

	tx := txn.New("create collection with quotes")

	_ = tx.Add(txn.Func("create collection",
		func(ctx context.Context) error {
			c, err := m.Create(ctx, userID, name)
			created = c

			return err
		},
		func(ctx context.Context) error {
			return m.collections.DeleteCollection(ctx, created.ID)
		},
	))

	_ = tx.Add(txn.Func("add quotes", func(ctx context.Context) error {
		fns := make([]func(context.Context) (domain.CollectionItem, error), len(quoteIDs))
		for i, quoteID := range quoteIDs {
			fns[i] = func(ctx context.Context) (domain.CollectionItem, error) {
				return m.items.AddItem(ctx, created.ID, quoteID)
			}
		}

		_, err := app.ParallelLimit(ctx, m.addConcurrency, fns...)

		return err
	}, nil))

	res, err := tx.Commit(ctx)
	if err != nil {
		for _, rbErr := range res.RollbackErrors {
			m.logger.ErrorContext(ctx, "failed to remove partially created collection",
				slog.String("collection_id", created.ID),
				slog.Any("error", rbErr),
			)
		}

		return domain.Collection{}, err
	}

	return created, nil
}

// CreateAndAdd creates a collection from the membership sheet and puts the
// quote in it.
func (m *Manager) CreateAndAdd(ctx context.Context, userID, name, quoteID string) (domain.Collection, error) {
	c, err := m.Create(ctx, userID, name)
	if err != nil {
		return domain.Collection{}, err
	}

	if _, err := m.AddQuote(ctx, c.ID, quoteID); err != nil {
		return c, err
	}

	return c, nil
}

// Membership returns a new, unloaded membership sheet for one of the
// user's quotes. Sheets do not share selection state; their writes for the
// same quote are applied in toggle order.
func (m *Manager) Membership(userID, quoteID string) *Membership {
	return newMembership(m, userID, quoteID)
}

// Wait blocks until every membership write has settled.
func (m *Manager) Wait() {
	m.writes.Wait()
}

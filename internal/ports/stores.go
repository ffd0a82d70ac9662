package ports

import (
	"context"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// Page selects a window of an ordered result set.
type Page struct {
	Offset int
	Limit  int
}

// QuoteStore reads the quotes table. Quotes are read-only to the application.
type QuoteStore interface {
	// ListQuotes returns a window of quotes, newest first.
	ListQuotes(ctx context.Context, page Page) ([]domain.Quote, error)

	// CountQuotes returns the total number of quotes.
	CountQuotes(ctx context.Context) (int, error)

	// GetQuote returns a single quote.
	// Returns domain.ErrNotFound if the quote does not exist.
	GetQuote(ctx context.Context, id string) (domain.Quote, error)

	// SearchQuotes returns quotes matching filter, newest first, capped at filter.Limit.
	SearchQuotes(ctx context.Context, filter domain.QuoteFilter) ([]domain.Quote, error)

	// ListCategories returns the distinct categories present in the store.
	ListCategories(ctx context.Context) ([]string, error)
}

// FavoriteStore owns the favorites relation.
type FavoriteStore interface {
	// ListFavorites returns the user's favorites joined to their quotes, newest first.
	ListFavorites(ctx context.Context, userID string) ([]domain.Favorite, error)

	// AddFavorite inserts a favorite row.
	// Returns domain.ErrConflict if the pair already exists.
	AddFavorite(ctx context.Context, userID, quoteID string) (domain.Favorite, error)

	// RemoveFavorite deletes the favorite row for the pair. Deleting a
	// missing row is not an error.
	RemoveFavorite(ctx context.Context, userID, quoteID string) error

	// CountFavorites returns how many favorites the user has.
	CountFavorites(ctx context.Context, userID string) (int, error)
}

// CollectionStore owns the collections table.
type CollectionStore interface {
	// ListCollections returns the user's collections, newest first.
	ListCollections(ctx context.Context, userID string) ([]domain.Collection, error)

	// GetCollection returns a single collection.
	// Returns domain.ErrNotFound if the collection does not exist.
	GetCollection(ctx context.Context, id string) (domain.Collection, error)

	// CreateCollection inserts a collection and returns the stored row.
	CreateCollection(ctx context.Context, userID, name string) (domain.Collection, error)

	// RenameCollection updates the name and returns the stored row.
	// Returns domain.ErrNotFound if the collection does not exist.
	RenameCollection(ctx context.Context, id, name string) (domain.Collection, error)

	// DeleteCollection removes the collection row. Dependent items are the
	// store's responsibility.
	DeleteCollection(ctx context.Context, id string) error

	// CountCollections returns how many collections the user owns.
	CountCollections(ctx context.Context, userID string) (int, error)
}

// CollectionItemStore owns the collection_items relation.
type CollectionItemStore interface {
	// ListItems returns the items of a collection joined to their quotes, newest first.
	ListItems(ctx context.Context, collectionID string) ([]domain.CollectionItem, error)

	// CollectionIDsForQuote returns the ids of collections containing the quote.
	CollectionIDsForQuote(ctx context.Context, quoteID string) ([]string, error)

	// AddItem inserts a collection item. The store's uniqueness constraint,
	// if any, surfaces as domain.ErrConflict.
	AddItem(ctx context.Context, collectionID, quoteID string) (domain.CollectionItem, error)

	// RemoveItem deletes the item for the pair.
	RemoveItem(ctx context.Context, collectionID, quoteID string) error

	// RemoveQuoteFromCollections deletes every item referencing quoteID whose
	// collection is in collectionIDs, returning how many rows went away.
	RemoveQuoteFromCollections(ctx context.Context, quoteID string, collectionIDs []string) (int, error)
}

// ProfileStore owns the profiles table.
type ProfileStore interface {
	// GetProfile returns the profile for the user.
	// Returns domain.ErrNotFound if no row exists.
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)

	// UpsertProfile inserts or replaces the profile and returns the stored row.
	UpsertProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error)
}

// Store is the full remote relational store. Each backend adapter
// implements all of it.
type Store interface {
	QuoteStore
	FavoriteStore
	CollectionStore
	CollectionItemStore
	ProfileStore
}

package domain

import (
	"strings"
	"time"
)

// MaxCollectionNameLength bounds user-supplied collection names.
const MaxCollectionNameLength = 100

// Collection is a named grouping of favorited quotes owned by one identity.
type Collection struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// CollectionItem places a quote in a collection. An item must not outlive
// the owner's favorite for the same quote.
type CollectionItem struct {
	ID           string
	CollectionID string
	QuoteID      string
	CreatedAt    time.Time

	// Quote is populated when the store joins the item to its quote.
	Quote *Quote
}

// NormalizeCollectionName trims name and checks it is usable.
func NormalizeCollectionName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", NewValidationError("name", "collection name cannot be empty")
	}

	if len([]rune(trimmed)) > MaxCollectionNameLength {
		return "", NewValidationError("name", "collection name is too long")
	}

	return trimmed, nil
}

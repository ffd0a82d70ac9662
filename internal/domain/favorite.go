package domain

import "time"

// Favorite relates an identity to a quote. At most one exists per pair.
type Favorite struct {
	ID        string
	UserID    string
	QuoteID   string
	CreatedAt time.Time

	// Quote is populated when the store joins the favorite to its quote.
	Quote *Quote
}

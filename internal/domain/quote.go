package domain

import (
	"strings"
	"time"
)

// Defaults applied when the store returns a quote without attribution.
const (
	UnknownAuthor   = "Unknown"
	GeneralCategory = "General"
)

// Quote is a short attributed text. Quotes are seeded out of band and are
// read-only to the application.
type Quote struct {
	// ID is the store-assigned identifier.
	ID string

	// Text is the quotation itself. Never empty.
	Text string

	// Author is who said or wrote the quote. Normalized to UnknownAuthor.
	Author string

	// Category groups quotes for browsing. Normalized to GeneralCategory.
	Category string

	CreatedAt time.Time
}

// NewQuote builds a normalized quote from raw store values.
// It rejects rows without an identifier or text.
func NewQuote(id, text, author, category string, createdAt time.Time) (Quote, error) {
	q := Quote{
		ID:        strings.TrimSpace(id),
		Text:      strings.TrimSpace(text),
		Author:    strings.TrimSpace(author),
		Category:  strings.TrimSpace(category),
		CreatedAt: createdAt,
	}

	if q.ID == "" {
		return Quote{}, NewValidationError("id", "quote id is required")
	}

	if q.Text == "" {
		return Quote{}, NewValidationError("text", "quote text is required")
	}

	if q.Author == "" {
		q.Author = UnknownAuthor
	}

	if q.Category == "" {
		q.Category = GeneralCategory
	}

	return q, nil
}

// Categories lists the browsable categories shown before any quote is loaded.
var Categories = []string{
	"Motivation",
	"Love",
	"Success",
	"Wisdom",
	"Humor",
	"Philosophy",
	"Leadership",
	"Science",
	"Mindfulness",
	"Creativity",
}

// QuoteFilter narrows a quote search. Query matches text, author, or category
// case-insensitively; Category and Author match their field only.
type QuoteFilter struct {
	Query    string
	Category string
	Author   string
	Limit    int
}

// IsEmpty reports whether no criteria are set.
func (f QuoteFilter) IsEmpty() bool {
	return strings.TrimSpace(f.Query) == "" &&
		strings.TrimSpace(f.Category) == "" &&
		strings.TrimSpace(f.Author) == ""
}

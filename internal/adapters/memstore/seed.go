package memstore

import (
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

var seedEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// SeedQuotes returns the starter catalog loaded by local runs.
func SeedQuotes() []domain.Quote {
	rows := []struct{ text, author, category string }{
		{"The only way to do great work is to love what you do.", "Steve Jobs", "Motivation"},
		{"Life is what happens when you're busy making other plans.", "John Lennon", "Life"},
		{"The unexamined life is not worth living.", "Socrates", "Wisdom"},
		{"Love all, trust a few, do wrong to none.", "William Shakespeare", "Love"},
		{"Happiness depends upon ourselves.", "Aristotle", "Happiness"},
		{"A friend is someone who knows all about you and still loves you.", "Elbert Hubbard", "Friendship"},
		{"It does not matter how slowly you go as long as you do not stop.", "Confucius", "Success"},
		{"Everything you can imagine is real.", "Pablo Picasso", "Inspiration"},
		{"Knowing yourself is the beginning of all wisdom.", "Aristotle", "Wisdom"},
		{"Where there is love there is life.", "Mahatma Gandhi", "Love"},
		{"Be yourself; everyone else is already taken.", "Oscar Wilde", "Life"},
		{"Well begun is half done.", "", ""},
	}

	out := make([]domain.Quote, 0, len(rows))

	for i, r := range rows {
		q, err := domain.NewQuote(
			"seed-"+string(rune('a'+i)),
			r.text, r.author, r.category,
			seedEpoch.Add(time.Duration(i)*time.Hour),
		)
		if err != nil {
			continue
		}

		out = append(out, q)
	}

	return out
}

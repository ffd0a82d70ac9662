package acl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// pgTime accepts the timestamp shapes PostgREST emits for timestamptz and
// timestamp columns.
type pgTime struct{ time.Time }

var pgTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999",
}

func (t *pgTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}

	for _, layout := range pgTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}

	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

// flexID accepts string and numeric primary keys.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}

		*id = flexID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}

	*id = flexID(n.String())

	return nil
}

const quoteColumns = "id,text,author,category,created_at"

type quoteDTO struct {
	ID        flexID  `json:"id"`
	Text      string  `json:"text"`
	Author    *string `json:"author"`
	Category  *string `json:"category"`
	CreatedAt pgTime  `json:"created_at"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func quoteFromDTO(d *quoteDTO) (domain.Quote, error) {
	return domain.NewQuote(string(d.ID), d.Text, deref(d.Author), deref(d.Category), d.CreatedAt.Time)
}

// joinedQuote translates an embedded quote. A missing embed, as after the
// quote was deleted, yields nil.
func joinedQuote(d *quoteDTO) (*domain.Quote, error) {
	if d == nil {
		return nil, nil
	}

	q, err := quoteFromDTO(d)
	if err != nil {
		return nil, err
	}

	return &q, nil
}

var favoriteColumns = "id,user_id,quote_id,created_at,quote:quotes(" + quoteColumns + ")"

type favoriteDTO struct {
	ID        flexID    `json:"id"`
	UserID    string    `json:"user_id"`
	QuoteID   flexID    `json:"quote_id"`
	CreatedAt pgTime    `json:"created_at"`
	Quote     *quoteDTO `json:"quote,omitempty"`
}

func favoriteFromDTO(d *favoriteDTO) (domain.Favorite, error) {
	if d.ID == "" || d.UserID == "" || d.QuoteID == "" {
		return domain.Favorite{}, domain.NewValidationError("favorite", "favorite row is incomplete")
	}

	q, err := joinedQuote(d.Quote)
	if err != nil {
		return domain.Favorite{}, err
	}

	return domain.Favorite{
		ID:        string(d.ID),
		UserID:    d.UserID,
		QuoteID:   string(d.QuoteID),
		CreatedAt: d.CreatedAt.Time,
		Quote:     q,
	}, nil
}

const collectionColumns = "id,user_id,name,created_at"

type collectionDTO struct {
	ID        flexID `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	CreatedAt pgTime `json:"created_at"`
}

func collectionFromDTO(d *collectionDTO) (domain.Collection, error) {
	if d.ID == "" || d.UserID == "" {
		return domain.Collection{}, domain.NewValidationError("collection", "collection row is incomplete")
	}

	return domain.Collection{
		ID:        string(d.ID),
		UserID:    d.UserID,
		Name:      d.Name,
		CreatedAt: d.CreatedAt.Time,
	}, nil
}

var itemColumns = "id,collection_id,quote_id,created_at,quote:quotes(" + quoteColumns + ")"

type itemDTO struct {
	ID           flexID    `json:"id"`
	CollectionID flexID    `json:"collection_id"`
	QuoteID      flexID    `json:"quote_id"`
	CreatedAt    pgTime    `json:"created_at"`
	Quote        *quoteDTO `json:"quote,omitempty"`
}

func itemFromDTO(d *itemDTO) (domain.CollectionItem, error) {
	if d.ID == "" || d.CollectionID == "" || d.QuoteID == "" {
		return domain.CollectionItem{}, domain.NewValidationError("collection_item", "collection item row is incomplete")
	}

	q, err := joinedQuote(d.Quote)
	if err != nil {
		return domain.CollectionItem{}, err
	}

	return domain.CollectionItem{
		ID:           string(d.ID),
		CollectionID: string(d.CollectionID),
		QuoteID:      string(d.QuoteID),
		CreatedAt:    d.CreatedAt.Time,
		Quote:        q,
	}, nil
}

const profileColumns = "id,username,avatar_url,updated_at"

type profileDTO struct {
	ID        string  `json:"id"`
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
	UpdatedAt pgTime  `json:"updated_at"`
}

func profileFromDTO(d *profileDTO) (domain.Profile, error) {
	if d.ID == "" {
		return domain.Profile{}, domain.NewValidationError("profile", "profile row has no id")
	}

	return domain.Profile{
		ID:        d.ID,
		Username:  deref(d.Username),
		AvatarURL: deref(d.AvatarURL),
		UpdatedAt: d.UpdatedAt.Time,
	}, nil
}

// profileWrite is the upsert payload.
type profileWrite struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// pgrstQuote quotes a value for use inside or=() and in.() filters.
func pgrstQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func inList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = pgrstQuote(v)
	}

	return "in.(" + strings.Join(quoted, ",") + ")"
}

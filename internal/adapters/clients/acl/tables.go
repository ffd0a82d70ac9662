package acl

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

const newestFirst = "created_at.desc,id.desc"

func eq(v string) string {
	return "eq." + v
}

// ListQuotes implements ports.QuoteStore.
func (b *Backend) ListQuotes(ctx context.Context, page ports.Page) ([]domain.Quote, error) {
	q := url.Values{"select": {quoteColumns}, "order": {newestFirst}}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}

	if page.Offset > 0 {
		q.Set("offset", strconv.Itoa(page.Offset))
	}

	var rows []quoteDTO
	if err := b.Fetch(ctx, Request{Method: http.MethodGet, Path: table("quotes"), Query: q},
		Target{Operation: "list quotes", Entity: "quote"}, &rows); err != nil {
		return nil, err
	}

	return TranslateSlice(rows, quoteFromDTO)
}

// CountQuotes implements ports.QuoteStore.
func (b *Backend) CountQuotes(ctx context.Context) (int, error) {
	return b.count(ctx, "quotes", nil, Target{Operation: "count quotes", Entity: "quote"})
}

// GetQuote implements ports.QuoteStore.
func (b *Backend) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	var row quoteDTO

	err := b.Fetch(ctx, Request{
		Method: http.MethodGet,
		Path:   table("quotes"),
		Query:  url.Values{"select": {quoteColumns}, "id": {eq(id)}},
		Header: singleRow,
	}, Target{Operation: "get quote", Entity: "quote", ID: id}, &row)
	if err != nil {
		return domain.Quote{}, err
	}

	return quoteFromDTO(&row)
}

func ilikeContains(s string) string {
	return "*" + strings.TrimSpace(s) + "*"
}

// SearchQuotes implements ports.QuoteStore with ilike filters.
func (b *Backend) SearchQuotes(ctx context.Context, f domain.QuoteFilter) ([]domain.Quote, error) {
	q := url.Values{"select": {quoteColumns}, "order": {newestFirst}}

	if s := strings.TrimSpace(f.Query); s != "" {
		p := pgrstQuote(ilikeContains(s))
		q.Set("or", "(text.ilike."+p+",author.ilike."+p+",category.ilike."+p+")")
	}

	if c := strings.TrimSpace(f.Category); c != "" {
		q.Set("category", "ilike."+c)
	}

	if a := strings.TrimSpace(f.Author); a != "" {
		q.Set("author", "ilike."+ilikeContains(a))
	}

	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	var rows []quoteDTO
	if err := b.Fetch(ctx, Request{Method: http.MethodGet, Path: table("quotes"), Query: q},
		Target{Operation: "search quotes", Entity: "quote"}, &rows); err != nil {
		return nil, err
	}

	return TranslateSlice(rows, quoteFromDTO)
}

// ListCategories implements ports.QuoteStore.
func (b *Backend) ListCategories(ctx context.Context) ([]string, error) {
	var rows []struct {
		Category *string `json:"category"`
	}

	if err := b.Fetch(ctx, Request{
		Method: http.MethodGet,
		Path:   table("quotes"),
		Query:  url.Values{"select": {"category"}},
	}, Target{Operation: "list categories", Entity: "quote"}, &rows); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(rows))
	for _, r := range rows {
		c := strings.TrimSpace(deref(r.Category))
		if c == "" {
			c = domain.GeneralCategory
		}

		out = append(out, c)
	}

	slices.Sort(out)

	return slices.Compact(out), nil
}

// ListFavorites implements ports.FavoriteStore.
func (b *Backend) ListFavorites(ctx context.Context, userID string) ([]domain.Favorite, error) {
	var rows []favoriteDTO

	err := b.Fetch(ctx, Request{
		Method: http.MethodGet,
		Path:   table("favorites"),
		Query:  url.Values{"select": {favoriteColumns}, "user_id": {eq(userID)}, "order": {newestFirst}},
	}, Target{Operation: "list favorites", Entity: "favorite"}, &rows)
	if err != nil {
		return nil, err
	}

	return TranslateSlice(rows, favoriteFromDTO)
}

// AddFavorite implements ports.FavoriteStore.
func (b *Backend) AddFavorite(ctx context.Context, userID, quoteID string) (domain.Favorite, error) {
	var rows []favoriteDTO

	err := b.Fetch(ctx, Request{
		Method: http.MethodPost,
		Path:   table("favorites"),
		Query:  url.Values{"select": {"id,user_id,quote_id,created_at"}},
		Header: returnRows,
		Body:   map[string]string{"user_id": userID, "quote_id": quoteID},
	}, Target{Operation: "add favorite", Entity: "favorite", ID: quoteID}, &rows)
	if err != nil {
		return domain.Favorite{}, err
	}

	return first(rows, favoriteFromDTO, Target{Operation: "add favorite", Entity: "favorite", ID: quoteID})
}

// RemoveFavorite implements ports.FavoriteStore.
func (b *Backend) RemoveFavorite(ctx context.Context, userID, quoteID string) error {
	return b.Exec(ctx, Request{
		Method: http.MethodDelete,
		Path:   table("favorites"),
		Query:  url.Values{"user_id": {eq(userID)}, "quote_id": {eq(quoteID)}},
	}, Target{Operation: "remove favorite", Entity: "favorite", ID: quoteID})
}

// CountFavorites implements ports.FavoriteStore.
func (b *Backend) CountFavorites(ctx context.Context, userID string) (int, error) {
	return b.count(ctx, "favorites", url.Values{"user_id": {eq(userID)}},
		Target{Operation: "count favorites", Entity: "favorite"})
}

// ListCollections implements ports.CollectionStore.
func (b *Backend) ListCollections(ctx context.Context, userID string) ([]domain.Collection, error) {
	var rows []collectionDTO

	err := b.Fetch(ctx, Request{
		Method: http.MethodGet,
		Path:   table("collections"),
		Query:  url.Values{"select": {collectionColumns}, "user_id": {eq(userID)}, "order": {newestFirst}},
	}, Target{Operation: "list collections", Entity: "collection"}, &rows)
	if err != nil {
		return nil, err
	}

	return TranslateSlice(rows, collectionFromDTO)
}

// GetCollection implements ports.CollectionStore.
func (b *Backend) GetCollection(ctx context.Context, id string) (domain.Collection, error) {
	var row collectionDTO

	err := b.Fetch(ctx, Request{
		Method: http.MethodGet,
		Path:   table("collections"),
		Query:  url.Values{"select": {collectionColumns}, "id": {eq(id)}},
		Header: singleRow,
	}, Target{Operation: "get collection", Entity: "collection", ID: id}, &row)
	if err != nil {
		return domain.Collection{}, err
	}

	return collectionFromDTO(&row)
}

// CreateCollection implements ports.CollectionStore.
func (b *Backend) CreateCollection(ctx context.Context, userID, name string) (domain.Collection, error) {
	t := Target{Operation: "create collection", Entity: "collection"}

	var rows []collectionDTO
	if err := b.Fetch(ctx, Request{
		Method: http.MethodPost,
		Path:   table("collections"),
		Query:  url.Values{"select": {collectionColumns}},
		Header: returnRows,
		Body:   map[string]string{"user_id": userID, "name": name},
	}, t, &rows); err != nil {
		return domain.Collection{}, err
	}

	return first(rows, collectionFromDTO, t)
}

// RenameCollection implements ports.CollectionStore. An empty
// representation means no row matched.
func (b *Backend) RenameCollection(ctx context.Context, id, name string) (domain.Collection, error) {
	t := Target{Operation: "rename collection", Entity: "collection", ID: id}

	var rows []collectionDTO
	if err := b.Fetch(ctx, Request{
		Method: http.MethodPatch,
		Path:   table("collections"),
		Query:  url.Values{"select": {collectionColumns}, "id": {eq(id)}},
		Header: returnRows,
		Body:   map[string]string{"name": name},
	}, t, &rows); err != nil {
		return domain.Collection{}, err
	}

	return first(rows, collectionFromDTO, t)
}

// DeleteCollection implements ports.CollectionStore. Items go first so the
// delete works whether or not the schema cascades.
func (b *Backend) DeleteCollection(ctx context.Context, id string) error {
	t := Target{Operation: "delete collection", Entity: "collection", ID: id}

	if err := b.Exec(ctx, Request{
		Method: http.MethodDelete,
		Path:   table("collection_items"),
		Query:  url.Values{"collection_id": {eq(id)}},
	}, t); err != nil {
		return err
	}

	return b.Exec(ctx, Request{
		Method: http.MethodDelete,
		Path:   table("collections"),
		Query:  url.Values{"id": {eq(id)}},
	}, t)
}

// CountCollections implements ports.CollectionStore.
func (b *Backend) CountCollections(ctx context.Context, userID string) (int, error) {
	return b.count(ctx, "collections", url.Values{"user_id": {eq(userID)}},
		Target{Operation: "count collections", Entity: "collection"})
}

// ListItems implements ports.CollectionItemStore.
func (b *Backend) ListItems(ctx context.Context, collectionID string) ([]domain.CollectionItem, error) {
	var rows []itemDTO

	err := b.Fetch(ctx, Request{
		Method: http.MethodGet,
		Path:   table("collection_items"),
		Query:  url.Values{"select": {itemColumns}, "collection_id": {eq(collectionID)}, "order": {newestFirst}},
	}, Target{Operation: "list collection items", Entity: "collection_item", ID: collectionID}, &rows)
	if err != nil {
		return nil, err
	}

	return TranslateSlice(rows, itemFromDTO)
}

// CollectionIDsForQuote implements ports.CollectionItemStore.
func (b *Backend) CollectionIDsForQuote(ctx context.Context, quoteID string) ([]string, error) {
	var rows []struct {
		CollectionID flexID `json:"collection_id"`
	}

	err := b.Fetch(ctx, Request{
		Method: http.MethodGet,
		Path:   table("collection_items"),
		Query:  url.Values{"select": {"collection_id"}, "quote_id": {eq(quoteID)}, "order": {"collection_id.asc"}},
	}, Target{Operation: "list memberships", Entity: "collection_item", ID: quoteID}, &rows)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, string(r.CollectionID))
	}

	return slices.Compact(ids), nil
}

// AddItem implements ports.CollectionItemStore.
func (b *Backend) AddItem(ctx context.Context, collectionID, quoteID string) (domain.CollectionItem, error) {
	t := Target{Operation: "add collection item", Entity: "collection_item", ID: collectionID + "/" + quoteID}

	var rows []itemDTO
	if err := b.Fetch(ctx, Request{
		Method: http.MethodPost,
		Path:   table("collection_items"),
		Query:  url.Values{"select": {"id,collection_id,quote_id,created_at"}},
		Header: returnRows,
		Body:   map[string]string{"collection_id": collectionID, "quote_id": quoteID},
	}, t, &rows); err != nil {
		return domain.CollectionItem{}, err
	}

	return first(rows, itemFromDTO, t)
}

// RemoveItem implements ports.CollectionItemStore.
func (b *Backend) RemoveItem(ctx context.Context, collectionID, quoteID string) error {
	return b.Exec(ctx, Request{
		Method: http.MethodDelete,
		Path:   table("collection_items"),
		Query:  url.Values{"collection_id": {eq(collectionID)}, "quote_id": {eq(quoteID)}},
	}, Target{Operation: "remove collection item", Entity: "collection_item", ID: collectionID + "/" + quoteID})
}

// RemoveQuoteFromCollections implements ports.CollectionItemStore. The
// deleted rows come back so they can be counted.
func (b *Backend) RemoveQuoteFromCollections(ctx context.Context, quoteID string, collectionIDs []string) (int, error) {
	if len(collectionIDs) == 0 {
		return 0, nil
	}

	var rows []struct {
		ID flexID `json:"id"`
	}

	err := b.Fetch(ctx, Request{
		Method: http.MethodDelete,
		Path:   table("collection_items"),
		Query: url.Values{
			"select":        {"id"},
			"quote_id":      {eq(quoteID)},
			"collection_id": {inList(collectionIDs)},
		},
		Header: returnRows,
	}, Target{Operation: "remove quote from collections", Entity: "collection_item", ID: quoteID}, &rows)
	if err != nil {
		return 0, err
	}

	return len(rows), nil
}

// GetProfile implements ports.ProfileStore.
func (b *Backend) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var row profileDTO

	err := b.Fetch(ctx, Request{
		Method: http.MethodGet,
		Path:   table("profiles"),
		Query:  url.Values{"select": {profileColumns}, "id": {eq(userID)}},
		Header: singleRow,
	}, Target{Operation: "get profile", Entity: "profile", ID: userID}, &row)
	if err != nil {
		return domain.Profile{}, err
	}

	return profileFromDTO(&row)
}

// UpsertProfile implements ports.ProfileStore.
func (b *Backend) UpsertProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	t := Target{Operation: "upsert profile", Entity: "profile", ID: p.ID}

	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = b.now().UTC()
	}

	var rows []profileDTO
	if err := b.Fetch(ctx, Request{
		Method: http.MethodPost,
		Path:   table("profiles"),
		Query:  url.Values{"select": {profileColumns}, "on_conflict": {"id"}},
		Header: http.Header{"Prefer": {"resolution=merge-duplicates,return=representation"}},
		Body: profileWrite{
			ID:        p.ID,
			Username:  p.Username,
			AvatarURL: p.AvatarURL,
			UpdatedAt: p.UpdatedAt,
		},
	}, t, &rows); err != nil {
		return domain.Profile{}, err
	}

	return first(rows, profileFromDTO, t)
}

// first translates the single row a write returned. No row means the
// filter matched nothing.
func first[E any, D any](rows []E, translate Translator[E, D], t Target) (D, error) {
	if len(rows) == 0 {
		var zero D
		return zero, domain.NewNotFoundError(t.Entity, t.ID)
	}

	return translate(&rows[0])
}

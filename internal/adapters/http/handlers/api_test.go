package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/alerts"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/flags"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/localauth"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/memstore"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/objectstore"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/app/collections"
	"github.com/jsamuelsen/quote-keeper/internal/app/favorites"
	"github.com/jsamuelsen/quote-keeper/internal/app/optimistic"
	"github.com/jsamuelsen/quote-keeper/internal/app/session"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// brokenQuote is refused by flakyFavorites so rollbacks can be observed.
const brokenQuote = "q-broken"

type flakyFavorites struct {
	*memstore.Store
}

func (f flakyFavorites) AddFavorite(ctx context.Context, userID, quoteID string) (domain.Favorite, error) {
	if quoteID == brokenQuote {
		return domain.Favorite{}, domain.NewUnavailableError("backend", "connection reset")
	}

	return f.Store.AddFavorite(ctx, userID, quoteID)
}

type api struct {
	router   *gin.Engine
	store    *memstore.Store
	sessions *session.Provider
	alerts   *alerts.Buffer
	favs     *favorites.Synchronizer
}

func seedQuotes(n int) []domain.Quote {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	quotes := make([]domain.Quote, 0, n+1)

	for i := range n {
		category := "Wisdom"
		if i%2 == 1 {
			category = "Humor"
		}

		q, _ := domain.NewQuote(fmt.Sprintf("q%02d", i), fmt.Sprintf("Quote number %d", i),
			fmt.Sprintf("Author %d", i), category, base.Add(time.Duration(i)*time.Hour))
		quotes = append(quotes, q)
	}

	broken, _ := domain.NewQuote(brokenQuote, "Unreachable", "Nobody", "General", base.Add(-time.Hour))

	return append(quotes, broken)
}

func newAPI(t *testing.T) *api {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New(memstore.WithQuotes(seedQuotes(25)...))

	auth, err := localauth.New(localauth.Config{
		Accounts: localauth.NewMemoryAccounts(),
		Secret:   "handler-test-secret-0123456789",
		Logger:   logger,
		HashCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	sessions := session.NewProvider(session.ProviderConfig{Auth: auth, Logger: logger})
	buffer := alerts.NewBuffer(10, logger)
	static := flags.NewStatic(nil)

	favs := favorites.New(favorites.Config{
		Sessions:    sessions,
		Favorites:   flakyFavorites{store},
		Collections: store,
		Items:       store,
		Alerts:      buffer,
		Mode:        optimistic.LastCompleted,
		Logger:      logger,
	})

	manager := collections.NewManager(collections.Config{
		Collections: store,
		Items:       store,
		Alerts:      buffer,
		Executor:    app.NewExecutor(logger),
		Mode:        optimistic.LastCompleted,
		Logger:      logger,
	})

	quotes := app.NewQuoteService(app.QuoteServiceConfig{
		Quotes:   store,
		Cache:    store,
		Flags:    static,
		Logger:   logger,
		FeedSize: 5,
		Location: time.UTC,
	})

	profiles := app.NewProfileService(app.ProfileServiceConfig{
		Profiles:    store,
		Favorites:   store,
		Collections: store,
		Files:       objectstore.NewMemory("https://files.test/avatars"),
		Flags:       static,
		Logger:      logger,
	})

	requireSession := middleware.RequireSession(sessions)

	router := gin.New()
	v1 := router.Group("/api/v1")
	NewAuthHandler(sessions).RegisterRoutes(v1, requireSession)
	NewQuoteHandler(quotes).RegisterRoutes(v1)
	NewFavoriteHandler(favs).RegisterRoutes(v1, requireSession)
	NewCollectionHandler(manager).RegisterRoutes(v1, requireSession)
	NewProfileHandler(profiles).RegisterRoutes(v1, requireSession)
	NewInboxHandler(app.NewNotificationService(store, logger), buffer, nil).RegisterRoutes(v1, requireSession)

	return &api{router: router, store: store, sessions: sessions, alerts: buffer, favs: favs}
}

func (a *api) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	return w
}

func (a *api) signUp(t *testing.T, email string) dto.SessionResponse {
	t.Helper()

	w := a.do(t, http.MethodPost, "/auth/signup", dto.SignUpRequest{
		Email:       email,
		Password:    "correct-horse",
		DisplayName: "Ada",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return decode[dto.SessionResponse](t, w)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())

	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[dto.ErrorResponse](t, w).Error.Code
}

type items[T any] struct {
	Items []T `json:"items"`
}

func TestAuthHandler(t *testing.T) {
	a := newAPI(t)

	w := a.do(t, http.MethodGet, "/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": "not-an-email", "password": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	details := decode[dto.ErrorResponse](t, w).Error.Details
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")

	created := a.signUp(t, "ada@example.com")
	assert.Equal(t, "ada@example.com", created.Email)
	assert.Equal(t, "Ada", created.DisplayName)
	assert.False(t, created.Pending)

	w = a.do(t, http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.UserID, decode[dto.SessionResponse](t, w).UserID)
	assert.NotContains(t, w.Body.String(), "refresh")

	w = a.do(t, http.MethodPut, "/auth/password", dto.PasswordRequest{Password: "battery-staple"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, http.MethodPost, "/auth/signout", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, http.MethodPut, "/auth/password", dto.PasswordRequest{Password: "whatever-else"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, http.MethodPost, "/auth/signin", dto.SignInRequest{Email: "ada@example.com", Password: "correct-horse"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, "/auth/signin", dto.SignInRequest{Email: "ada@example.com", Password: "battery-staple"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.UserID, decode[dto.SessionResponse](t, w).UserID)
}

func TestQuoteHandler_List(t *testing.T) {
	a := newAPI(t)

	w := a.do(t, http.MethodGet, "/quotes?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	first := decode[dto.PaginatedResponse[dto.QuoteResponse]](t, w)
	require.Len(t, first.Items, 10)
	assert.True(t, first.HasMore)
	assert.Equal(t, "q24", first.Items[0].ID, "newest first")

	seen := len(first.Items)
	cursor := first.NextCursor

	for cursor != "" {
		w = a.do(t, http.MethodGet, "/quotes?limit=10&cursor="+cursor, nil)
		require.Equal(t, http.StatusOK, w.Code)

		page := decode[dto.PaginatedResponse[dto.QuoteResponse]](t, w)
		seen += len(page.Items)
		cursor = page.NextCursor
	}

	assert.Equal(t, 26, seen)

	w = a.do(t, http.MethodGet, "/quotes?cursor=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodGet, "/quotes?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrorCodeValidation, errorCode(t, w))
}

func TestQuoteHandler_Search(t *testing.T) {
	a := newAPI(t)

	w := a.do(t, http.MethodGet, "/quotes?category=humor", nil)
	require.Equal(t, http.StatusOK, w.Code)

	res := decode[dto.PaginatedResponse[dto.QuoteResponse]](t, w)
	require.NotEmpty(t, res.Items)
	assert.False(t, res.HasMore)

	for _, q := range res.Items {
		assert.Equal(t, "Humor", q.Category)
	}

	w = a.do(t, http.MethodGet, "/quotes?q=number%2017", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[dto.PaginatedResponse[dto.QuoteResponse]](t, w)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "q17", res.Items[0].ID)
}

func TestQuoteHandler_Reads(t *testing.T) {
	a := newAPI(t)

	w := a.do(t, http.MethodGet, "/quotes/feed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[items[dto.QuoteResponse]](t, w).Items, 5)

	w = a.do(t, http.MethodGet, "/quotes/daily", nil)
	require.Equal(t, http.StatusOK, w.Code)
	daily := decode[dto.QuoteResponse](t, w)

	w = a.do(t, http.MethodGet, "/quotes/daily", nil)
	assert.Equal(t, daily.ID, decode[dto.QuoteResponse](t, w).ID, "same quote all day")

	w = a.do(t, http.MethodGet, "/quotes/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"General", "Humor", "Wisdom"}, decode[items[string]](t, w).Items)

	w = a.do(t, http.MethodGet, "/quotes/q03", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Author 3", decode[dto.QuoteResponse](t, w).Author)

	w = a.do(t, http.MethodGet, "/quotes/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFavoriteHandler(t *testing.T) {
	a := newAPI(t)

	w := a.do(t, http.MethodGet, "/favorites", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	a.signUp(t, "fav@example.com")

	w = a.do(t, http.MethodPost, "/favorites/q01/toggle?wait=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	toggled := decode[dto.ToggleResponse](t, w)
	assert.True(t, toggled.Selected)
	assert.NotEmpty(t, toggled.Outcome)

	w = a.do(t, http.MethodPost, "/favorites/q02/toggle", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, decode[dto.ToggleResponse](t, w).Selected)
	a.favs.Wait()

	w = a.do(t, http.MethodGet, "/favorites", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[items[dto.FavoriteResponse]](t, w).Items, 2)

	w = a.do(t, http.MethodPost, "/favorites/q01/toggle?wait=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[dto.ToggleResponse](t, w).Selected)

	w = a.do(t, http.MethodPost, "/favorites/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"quoteIds":["q02"]}`, w.Body.String())
}

func TestFavoriteHandler_FailedWriteRollsBack(t *testing.T) {
	a := newAPI(t)
	a.signUp(t, "flaky@example.com")

	w := a.do(t, http.MethodPost, "/favorites/"+brokenQuote+"/toggle?wait=true", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, a.favs.IsFavorite(brokenQuote))

	w = a.do(t, http.MethodGet, "/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[items[dto.AlertResponse]](t, w).Items, 1)

	w = a.do(t, http.MethodGet, "/alerts", nil)
	assert.Empty(t, decode[items[dto.AlertResponse]](t, w).Items, "alerts are delivered once")
}

func TestCollectionHandler(t *testing.T) {
	a := newAPI(t)
	a.signUp(t, "col@example.com")

	w := a.do(t, http.MethodPost, "/collections", dto.CreateCollectionRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/collections", dto.CreateCollectionRequest{Name: "Mornings", QuoteIDs: []string{"q01", "q02"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	col := decode[dto.CollectionResponse](t, w)

	w = a.do(t, http.MethodGet, "/collections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[items[dto.CollectionResponse]](t, w).Items, 1)

	w = a.do(t, http.MethodPatch, "/collections/"+col.ID, dto.RenameCollectionRequest{Name: "Evenings"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Evenings", decode[dto.CollectionResponse](t, w).Name)

	w = a.do(t, http.MethodPost, "/collections/"+col.ID+"/items", dto.AddItemRequest{QuoteID: "q03"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodGet, "/collections/"+col.ID+"/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[items[dto.ItemResponse]](t, w).Items, 3)

	w = a.do(t, http.MethodDelete, "/collections/"+col.ID+"/items/q02", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, http.MethodGet, "/quotes/q01/collections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{col.ID}, decode[dto.MembershipResponse](t, w).CollectionIDs)

	w = a.do(t, http.MethodPost, "/quotes/q05/collections/"+col.ID+"/toggle?wait=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[dto.ToggleResponse](t, w).Selected)

	w = a.do(t, http.MethodGet, "/collections/"+col.ID+"/items", nil)
	assert.Len(t, decode[items[dto.ItemResponse]](t, w).Items, 3)

	w = a.do(t, http.MethodDelete, "/collections/"+col.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, http.MethodGet, "/collections/"+col.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCollectionHandler_ToggleAfterUnfavorite(t *testing.T) {
	a := newAPI(t)
	a.signUp(t, "travel@example.com")

	w := a.do(t, http.MethodPost, "/collections", dto.CreateCollectionRequest{Name: "Travel"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	col := decode[dto.CollectionResponse](t, w)

	toggle := "/quotes/q01/collections/" + col.ID + "/toggle?wait=true"
	itemsPath := "/collections/" + col.ID + "/items"

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/favorites/q01/toggle?wait=true", nil).Code)

	w = a.do(t, http.MethodPost, toggle, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, decode[dto.ToggleResponse](t, w).Selected)

	// Un-favoriting cascades the item away.
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/favorites/q01/toggle?wait=true", nil).Code)
	w = a.do(t, http.MethodGet, itemsPath, nil)
	require.Empty(t, decode[items[dto.ItemResponse]](t, w).Items)

	w = a.do(t, http.MethodPost, toggle, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	toggled := decode[dto.ToggleResponse](t, w)
	assert.True(t, toggled.Selected)
	assert.Equal(t, "applied", toggled.Outcome)

	w = a.do(t, http.MethodGet, itemsPath, nil)
	got := decode[items[dto.ItemResponse]](t, w).Items
	require.Len(t, got, 1)
	assert.Equal(t, "q01", got[0].QuoteID)
}

func TestCollectionHandler_OtherUsersCollection(t *testing.T) {
	a := newAPI(t)
	a.signUp(t, "owner@example.com")

	w := a.do(t, http.MethodPost, "/collections", dto.CreateCollectionRequest{Name: "Private"})
	require.Equal(t, http.StatusCreated, w.Code)
	col := decode[dto.CollectionResponse](t, w)

	require.Equal(t, http.StatusNoContent, a.do(t, http.MethodPost, "/auth/signout", nil).Code)
	a.signUp(t, "intruder@example.com")

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/collections/" + col.ID},
		{http.MethodGet, "/collections/" + col.ID + "/items"},
		{http.MethodDelete, "/collections/" + col.ID},
		{http.MethodPost, "/quotes/q01/collections/" + col.ID + "/toggle"},
	} {
		w = a.do(t, req.method, req.path, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, req.path)
	}
}

func TestProfileHandler(t *testing.T) {
	a := newAPI(t)
	a.signUp(t, "me@example.com")

	w := a.do(t, http.MethodGet, "/profile", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPut, "/profile", dto.ProfileRequest{Username: "ada"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ada", decode[dto.ProfileResponse](t, w).Username)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/profile/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p := decode[dto.ProfileResponse](t, w)
	assert.Equal(t, "ada", p.Username)
	assert.Contains(t, p.AvatarURL, "https://files.test/avatars/")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/profile/avatar", bytes.NewReader([]byte("plain text")))
	req.Header.Set("Content-Type", "text/plain")
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	a.do(t, http.MethodPost, "/favorites/q01/toggle?wait=true", nil)

	w = a.do(t, http.MethodGet, "/profile/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[dto.SummaryResponse](t, w)
	assert.Equal(t, 1, summary.FavoriteCount)
	assert.Equal(t, 0, summary.CollectionCount)
	require.NotNil(t, summary.Profile)
}

func TestInboxHandler_NotificationSettings(t *testing.T) {
	a := newAPI(t)
	a.signUp(t, "inbox@example.com")

	w := a.do(t, http.MethodGet, "/notifications/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"enabled":false,"time":"09:00"}`, w.Body.String())

	w = a.do(t, http.MethodPut, "/notifications/settings", map[string]any{"enabled": true, "time": "25:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPut, "/notifications/settings", map[string]any{"time": "07:30"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "enabled is required")

	w = a.do(t, http.MethodPut, "/notifications/settings", map[string]any{"enabled": true, "time": "07:30"})
	require.Equal(t, http.StatusOK, w.Code)

	saved := decode[dto.NotificationSettingsResponse](t, w)
	assert.True(t, saved.Enabled)
	require.NotNil(t, saved.NextTrigger)
	assert.Equal(t, 7, saved.NextTrigger.Hour())
	assert.Equal(t, 30, saved.NextTrigger.Minute())

	w = a.do(t, http.MethodGet, "/notifications/settings", nil)
	assert.Equal(t, "07:30", decode[dto.NotificationSettingsResponse](t, w).Time)
}

func TestInboxHandler_NowDefaults(t *testing.T) {
	h := NewInboxHandler(nil, nil, nil)
	assert.WithinDuration(t, time.Now(), h.now(), time.Second)
}

func TestMalformedBody(t *testing.T) {
	a := newAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrorCodeBadRequest, errorCode(t, w))
}

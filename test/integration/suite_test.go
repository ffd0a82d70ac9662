//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/alerts"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/flags"
	httpadapter "github.com/jsamuelsen/quote-keeper/internal/adapters/http"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/localauth"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/memstore"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/app/collections"
	"github.com/jsamuelsen/quote-keeper/internal/app/favorites"
	"github.com/jsamuelsen/quote-keeper/internal/app/optimistic"
	"github.com/jsamuelsen/quote-keeper/internal/app/session"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

const testPassword = "correct-horse"

// testContext holds state shared across step definitions within a scenario.
// Without BASE_URL every scenario gets its own in-process service backed by
// a gated memory store.
type testContext struct {
	baseURL      string
	client       *http.Client
	response     *http.Response
	responseBody []byte
	err          error

	logger   *slog.Logger
	store    *gatedStore
	sessions *session.Provider
	buffer   *alerts.Buffer
	favs     *favorites.Synchronizer
	manager  *collections.Manager
	server   *httptest.Server

	accounts    map[string]bool
	collections map[string]string
	sheets      map[string]*collections.Membership
}

// newTestContext creates a new test context with sensible defaults.
func newTestContext() *testContext {
	return &testContext{
		baseURL: os.Getenv("BASE_URL"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (tc *testContext) external() bool {
	return os.Getenv("BASE_URL") != ""
}

// reset clears response state and tears down the in-process service.
func (tc *testContext) reset() {
	if tc.response != nil && tc.response.Body != nil {
		tc.response.Body.Close()
	}

	tc.response = nil
	tc.responseBody = nil
	tc.err = nil

	if tc.store != nil {
		tc.store.release()
	}

	if tc.favs != nil {
		tc.favs.Wait()
	}

	if tc.manager != nil {
		tc.manager.Wait()
	}

	if tc.server != nil {
		tc.server.Close()
		tc.server = nil
	}

	tc.sheets = make(map[string]*collections.Membership)
	tc.accounts = make(map[string]bool)
	tc.collections = make(map[string]string)
}

// build assembles the application over a fresh memory store.
func (tc *testContext) build(mode optimistic.Mode) error {
	tc.reset()

	tc.store = newGatedStore(memstore.New(memstore.WithQuotes(memstore.SeedQuotes()...)))

	auth, err := localauth.New(localauth.Config{
		Accounts: localauth.NewMemoryAccounts(),
		Secret:   "integration-secret-0123456789",
		Logger:   tc.logger,
		HashCost: bcrypt.MinCost,
	})
	if err != nil {
		return fmt.Errorf("creating auth provider: %w", err)
	}

	tc.sessions = session.NewProvider(session.ProviderConfig{Auth: auth, Logger: tc.logger})
	tc.buffer = alerts.NewBuffer(10, tc.logger)

	tc.favs = favorites.New(favorites.Config{
		Sessions:    tc.sessions,
		Favorites:   tc.store,
		Collections: tc.store,
		Items:       tc.store,
		Alerts:      tc.buffer,
		Mode:        mode,
		Logger:      tc.logger,
	})

	tc.manager = collections.NewManager(collections.Config{
		Collections: tc.store,
		Items:       tc.store,
		Alerts:      tc.buffer,
		Executor:    app.NewExecutor(tc.logger),
		Mode:        mode,
		Logger:      tc.logger,
	})

	registry := ports.NewHealthRegistry(time.Second)
	if err := registry.Register(tc.store); err != nil {
		return err
	}

	static := flags.NewStatic(nil)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		Logger:        tc.logger,
		Sessions:      tc.sessions,
		HealthHandler: handlers.NewHealthHandler(registry, handlers.NewBuildInfo("test", "", "")),
		AuthHandler:   handlers.NewAuthHandler(tc.sessions),
		QuoteHandler: handlers.NewQuoteHandler(app.NewQuoteService(app.QuoteServiceConfig{
			Quotes:   tc.store,
			Cache:    tc.store,
			Flags:    static,
			Logger:   tc.logger,
			Location: time.UTC,
		})),
		FavoriteHandler:   handlers.NewFavoriteHandler(tc.favs),
		CollectionHandler: handlers.NewCollectionHandler(tc.manager),
		InboxHandler:      handlers.NewInboxHandler(app.NewNotificationService(tc.store, tc.logger), tc.buffer, nil),
		Timeout:           5 * time.Second,
	})

	tc.server = httptest.NewServer(engine)
	tc.baseURL = tc.server.URL

	return nil
}

// InitializeScenario registers step definitions for each scenario.
func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := newTestContext()

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		if tc.external() {
			tc.reset()
			return ctx, nil
		}

		return ctx, tc.build(optimistic.LastCompleted)
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^the service is running$`, tc.theServiceIsRunning)
	ctx.Step(`^I request GET "([^"]*)"$`, tc.iRequestGET)
	ctx.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.theResponseShouldContain)

	ctx.Step(`^favorites reconcile with "(last_completed|versioned)" ordering$`, tc.favoritesReconcileWith)
	ctx.Step(`^I am signed in as "([^"]*)"$`, tc.iAmSignedInAs)
	ctx.Step(`^I sign out$`, tc.iSignOut)
	ctx.Step(`^the store holds writes$`, tc.theStoreHoldsWrites)
	ctx.Step(`^the store releases writes$`, tc.theStoreReleasesWrites)
	ctx.Step(`^the store rejects the next favorite write for "([^"]*)"$`, tc.theStoreRejectsFavorite)
	ctx.Step(`^the store rejects the next item write for "([^"]*)"$`, tc.theStoreRejectsItem)
	ctx.Step(`^the store fails to clean up collection items$`, tc.theStoreFailsCascade)
	ctx.Step(`^"([^"]*)" is already a favorite$`, tc.isAlreadyAFavorite)
	ctx.Step(`^I toggle favorite "([^"]*)"$`, tc.iToggleFavorite)
	ctx.Step(`^I toggle favorite "([^"]*)" (\d+) times$`, tc.iToggleFavoriteTimes)
	ctx.Step(`^all writes have settled$`, tc.allWritesHaveSettled)
	ctx.Step(`^"([^"]*)" should (be|not be) a favorite locally$`, tc.shouldBeFavoriteLocally)
	ctx.Step(`^the store should (have|not have) "([^"]*)" as a favorite$`, tc.theStoreShouldHaveFavorite)
	ctx.Step(`^I should have (\d+) pending alerts?$`, tc.iShouldHavePendingAlerts)
	ctx.Step(`^I create a collection "([^"]*)"$`, tc.iCreateACollection)
	ctx.Step(`^I add "([^"]*)" to collection "([^"]*)"$`, tc.iAddToCollection)
	ctx.Step(`^I toggle "([^"]*)" in collection "([^"]*)"$`, tc.iToggleInCollection)
	ctx.Step(`^collection "([^"]*)" should contain (\d+) items?$`, tc.collectionShouldContain)
	ctx.Step(`^"([^"]*)" should (be|not be) selected for collection "([^"]*)"$`, tc.shouldBeSelected)
}

// theServiceIsRunning verifies the service is reachable.
func (tc *testContext) theServiceIsRunning() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tc.baseURL+"/-/live", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("service is not running at %s: %w", tc.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status %d", resp.StatusCode)
	}

	return nil
}

// iRequestGET makes a GET request to the specified path.
func (tc *testContext) iRequestGET(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	tc.response, tc.err = tc.client.Do(req)
	if tc.err != nil {
		return fmt.Errorf("request failed: %w", tc.err)
	}

	tc.responseBody, tc.err = io.ReadAll(tc.response.Body)
	if tc.err != nil {
		return fmt.Errorf("failed to read response body: %w", tc.err)
	}

	return nil
}

// theResponseStatusShouldBe asserts the response status code.
func (tc *testContext) theResponseStatusShouldBe(expectedCode int) error {
	if tc.response == nil {
		return fmt.Errorf("no response received")
	}

	if tc.response.StatusCode != expectedCode {
		return fmt.Errorf("expected status %d, got %d. Body: %s",
			expectedCode, tc.response.StatusCode, string(tc.responseBody))
	}

	return nil
}

// theResponseShouldContain asserts the response body contains the given text.
func (tc *testContext) theResponseShouldContain(text string) error {
	if tc.responseBody == nil {
		return fmt.Errorf("no response body")
	}

	if body := string(tc.responseBody); !strings.Contains(body, text) {
		return fmt.Errorf("response body does not contain %q.\nBody: %s", text, body)
	}

	return nil
}

// inProcess guards steps that reach into the application directly.
func (tc *testContext) inProcess() error {
	if tc.external() {
		return godog.ErrPending
	}

	return nil
}

func (tc *testContext) favoritesReconcileWith(mode string) error {
	if err := tc.inProcess(); err != nil {
		return err
	}

	return tc.build(optimistic.ParseMode(mode))
}

func (tc *testContext) userID() (string, error) {
	id, ok := tc.sessions.Identity()
	if !ok {
		return "", fmt.Errorf("nobody is signed in")
	}

	return id.UserID, nil
}

func (tc *testContext) iAmSignedInAs(email string) error {
	if err := tc.inProcess(); err != nil {
		return err
	}

	ctx := context.Background()

	if tc.accounts[email] {
		if _, err := tc.sessions.SignIn(ctx, email, testPassword); err != nil {
			return fmt.Errorf("signing in %s: %w", email, err)
		}
	} else {
		creds := domain.Credentials{Email: email, Password: testPassword, DisplayName: strings.Split(email, "@")[0]}
		if _, err := tc.sessions.SignUp(ctx, creds); err != nil {
			return fmt.Errorf("signing up %s: %w", email, err)
		}

		tc.accounts[email] = true
	}

	return tc.favs.Refresh(ctx)
}

func (tc *testContext) iSignOut() error {
	if err := tc.sessions.SignOut(context.Background()); err != nil {
		return err
	}

	return tc.favs.Refresh(context.Background())
}

func (tc *testContext) theStoreHoldsWrites() error {
	if err := tc.inProcess(); err != nil {
		return err
	}

	tc.store.hold()

	return nil
}

func (tc *testContext) theStoreReleasesWrites() error {
	tc.store.release()
	return nil
}

func (tc *testContext) theStoreRejectsFavorite(quoteID string) error {
	if err := tc.inProcess(); err != nil {
		return err
	}

	tc.store.failNext(favoriteOp, quoteID)

	return nil
}

func (tc *testContext) theStoreRejectsItem(quoteID string) error {
	if err := tc.inProcess(); err != nil {
		return err
	}

	tc.store.failNext(itemOp, quoteID)

	return nil
}

func (tc *testContext) theStoreFailsCascade() error {
	if err := tc.inProcess(); err != nil {
		return err
	}

	tc.store.failNext(cascadeOp, "")

	return nil
}

func (tc *testContext) isAlreadyAFavorite(quoteID string) error {
	uid, err := tc.userID()
	if err != nil {
		return err
	}

	if _, err := tc.store.Store.AddFavorite(context.Background(), uid, quoteID); err != nil {
		return err
	}

	return tc.favs.Refresh(context.Background())
}

func (tc *testContext) iToggleFavorite(quoteID string) error {
	if err := tc.inProcess(); err != nil {
		return err
	}

	t := tc.favs.ToggleFavorite(context.Background(), quoteID)
	if t.Favorite != tc.favs.IsFavorite(quoteID) {
		return fmt.Errorf("optimistic state for %s not visible after toggle", quoteID)
	}

	return nil
}

func (tc *testContext) iToggleFavoriteTimes(quoteID string, n int) error {
	for range n {
		if err := tc.iToggleFavorite(quoteID); err != nil {
			return err
		}
	}

	return nil
}

func (tc *testContext) allWritesHaveSettled() error {
	done := make(chan struct{})

	go func() {
		tc.favs.Wait()

		tc.manager.Wait()

		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("writes did not settle")
	}
}

func (tc *testContext) shouldBeFavoriteLocally(quoteID, be string) error {
	want := be == "be"
	if got := tc.favs.IsFavorite(quoteID); got != want {
		return fmt.Errorf("expected favorite(%s)=%v locally, got %v; set is %v", quoteID, want, got, tc.favs.Snapshot())
	}

	return nil
}

func (tc *testContext) theStoreShouldHaveFavorite(have, quoteID string) error {
	uid, err := tc.userID()
	if err != nil {
		return err
	}

	favs, err := tc.store.Store.ListFavorites(context.Background(), uid)
	if err != nil {
		return err
	}

	found := false

	for _, f := range favs {
		if f.QuoteID == quoteID {
			found = true
		}
	}

	if want := have == "have"; found != want {
		return fmt.Errorf("expected stored favorite(%s)=%v, got %v", quoteID, want, found)
	}

	return nil
}

func (tc *testContext) iShouldHavePendingAlerts(n int) error {
	uid, err := tc.userID()
	if err != nil {
		return err
	}

	if got := tc.buffer.Pending(uid); got != n {
		return fmt.Errorf("expected %d pending alerts, got %d", n, got)
	}

	return nil
}

func (tc *testContext) iCreateACollection(name string) error {
	uid, err := tc.userID()
	if err != nil {
		return err
	}

	c, err := tc.manager.Create(context.Background(), uid, name)
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", name, err)
	}

	tc.collections[name] = c.ID

	return nil
}

func (tc *testContext) collectionID(name string) (string, error) {
	id, ok := tc.collections[name]
	if !ok {
		return "", fmt.Errorf("unknown collection %q", name)
	}

	return id, nil
}

func (tc *testContext) iAddToCollection(quoteID, name string) error {
	id, err := tc.collectionID(name)
	if err != nil {
		return err
	}

	_, err = tc.manager.AddQuote(context.Background(), id, quoteID)

	return err
}

func (tc *testContext) iToggleInCollection(quoteID, name string) error {
	uid, err := tc.userID()
	if err != nil {
		return err
	}

	id, err := tc.collectionID(name)
	if err != nil {
		return err
	}

	ctx := context.Background()

	sheet := tc.manager.Membership(uid, quoteID)
	if err := sheet.Load(ctx); err != nil {
		return err
	}

	tc.sheets[quoteID] = sheet
	sheet.Toggle(ctx, id)

	return nil
}

func (tc *testContext) collectionShouldContain(name string, n int) error {
	id, err := tc.collectionID(name)
	if err != nil {
		return err
	}

	items, err := tc.store.Store.ListItems(context.Background(), id)
	if err != nil {
		return err
	}

	if len(items) != n {
		return fmt.Errorf("expected %d items in %q, got %d", n, name, len(items))
	}

	return nil
}

func (tc *testContext) shouldBeSelected(quoteID, be, name string) error {
	uid, err := tc.userID()
	if err != nil {
		return err
	}

	id, err := tc.collectionID(name)
	if err != nil {
		return err
	}

	sheet, ok := tc.sheets[quoteID]
	if !ok {
		sheet = tc.manager.Membership(uid, quoteID)
		if err := sheet.Load(context.Background()); err != nil {
			return err
		}
	}

	want := be == "be"
	if got := sheet.IsSelected(id); got != want {
		return fmt.Errorf("expected %s selected in %q = %v, got %v", quoteID, name, want, got)
	}

	return nil
}

// TestFeatures runs the GoDog BDD test suite.
func TestFeatures(t *testing.T) {
	tags := os.Getenv("GODOG_TAGS")
	if tags == "" && os.Getenv("BASE_URL") != "" {
		// A deployed service cannot have its store gated.
		tags = "~@inprocess"
	}

	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../features"},
			TestingT: t,
			Tags:     tags,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

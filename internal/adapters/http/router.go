package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
	"github.com/jsamuelsen/quote-keeper/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// avatarRoute is exempt from the request timeout; uploads may be slow.
const avatarRoute = "/api/v1/profile/avatar"

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is stored in every request context.
	Logger *slog.Logger

	// ServiceName names the tracing spans. Empty disables tracing.
	ServiceName string

	// Sessions decides who is signed in for protected routes.
	Sessions middleware.IdentitySource

	HealthHandler     *handlers.HealthHandler
	AuthHandler       *handlers.AuthHandler
	QuoteHandler      *handlers.QuoteHandler
	FavoriteHandler   *handlers.FavoriteHandler
	CollectionHandler *handlers.CollectionHandler
	ProfileHandler    *handlers.ProfileHandler
	InboxHandler      *handlers.InboxHandler

	// Timeout is the default request timeout.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Logger - base request logger
//  3. OpenTelemetry - tracing and metrics
//  4. Request ID and Correlation ID
//  5. Logging - request logging (skips /-/)
//  6. Timeout - API routes only
//
// Route groups:
//   - /-/ (internal): health, circuits and metrics
//   - /api/v1/: the quote API; session-bound routes require sign-in
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(middleware.Recovery(), withLogger(cfg.Logger))

	if cfg.ServiceName != "" {
		engine.Use(telemetry.TracingMiddleware(cfg.ServiceName))
	}

	engine.Use(
		telemetry.Middleware(),
		middleware.RequestID(),
		middleware.CorrelationID(),
		middleware.Logging(),
	)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout, avatarRoute))
	}

	setupAPIRoutes(apiV1, cfg)
}

func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.QuoteHandler != nil {
		cfg.QuoteHandler.RegisterRoutes(rg)
	}

	if cfg.Sessions == nil {
		return
	}

	requireSession := middleware.RequireSession(cfg.Sessions)

	if cfg.AuthHandler != nil {
		cfg.AuthHandler.RegisterRoutes(rg, requireSession)
	}

	if cfg.FavoriteHandler != nil {
		cfg.FavoriteHandler.RegisterRoutes(rg, requireSession)
	}

	if cfg.CollectionHandler != nil {
		cfg.CollectionHandler.RegisterRoutes(rg, requireSession)
	}

	if cfg.ProfileHandler != nil {
		cfg.ProfileHandler.RegisterRoutes(rg, requireSession)
	}

	if cfg.InboxHandler != nil {
		cfg.InboxHandler.RegisterRoutes(rg, requireSession)
	}
}

// withLogger seeds the request context with the base logger so later
// middleware can enrich it.
func withLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
		c.Next()
	}
}

// SetupMinimalRouter sets up a router with just the health endpoints.
func SetupMinimalRouter(engine *gin.Engine, logger *slog.Logger, healthHandler *handlers.HealthHandler) {
	engine.Use(middleware.Recovery(), withLogger(logger), middleware.RequestID())

	if healthHandler != nil {
		healthHandler.RegisterHealthRoutesOnEngine(engine)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/alerts"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/flags"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/localauth"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/memstore"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/objectstore"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/sqlstore"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/app/collections"
	"github.com/jsamuelsen/quote-keeper/internal/app/favorites"
	"github.com/jsamuelsen/quote-keeper/internal/app/optimistic"
	"github.com/jsamuelsen/quote-keeper/internal/app/session"
	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
	"github.com/jsamuelsen/quote-keeper/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

const (
	// sessionTick is how often the session is checked for an upcoming expiry.
	sessionTick = 30 * time.Second

	healthCheckTimeout = 3 * time.Second
)

// backend is the remote store the service runs on, with the identity
// provider and health checks that come with it.
type backend struct {
	store    ports.Store
	kv       ports.KeyValueStore
	auth     ports.AuthProvider
	files    ports.FileStorage
	checkers []ports.HealthChecker

	// rest is set for the managed backend only.
	rest *acl.Backend

	close func() error
}

func serve(ctx context.Context, profile string) error {
	cfg, err := loadConfig(profile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("backend", cfg.Backend.Driver),
		slog.String("storage", cfg.Storage.Driver),
	)

	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
		Insecure:     cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := be.close(); closeErr != nil {
			logger.Error("closing backend", slog.Any("error", closeErr))
		}
	}()

	if err := openStorage(ctx, cfg, be); err != nil {
		return err
	}

	healthRegistry := ports.NewHealthRegistry(healthCheckTimeout)
	for _, checker := range be.checkers {
		if err := healthRegistry.Register(checker); err != nil {
			return fmt.Errorf("registering health check: %w", err)
		}
	}

	featureFlags := flags.NewStatic(cfg.Features)
	alertBuffer := alerts.NewBuffer(cfg.Favorites.AlertBuffer, logger)
	mode := optimistic.ParseMode(cfg.Favorites.Ordering)

	sessions := session.NewProvider(session.ProviderConfig{Auth: be.auth, Logger: logger})
	if be.rest != nil {
		be.rest.UseTokenSource(sessions.AccessToken)
	}

	favSync := favorites.New(favorites.Config{
		Sessions:    sessions,
		Favorites:   be.store,
		Collections: be.store,
		Items:       be.store,
		Alerts:      alertBuffer,
		Mode:        mode,
		Logger:      logger,
	})

	manager := collections.NewManager(collections.Config{
		Collections: be.store,
		Items:       be.store,
		Alerts:      alertBuffer,
		Executor:    app.NewExecutor(logger),
		Mode:        mode,
		Logger:      logger,
	})

	quoteService := app.NewQuoteService(app.QuoteServiceConfig{
		Quotes:      be.store,
		Cache:       be.kv,
		Flags:       featureFlags,
		Logger:      logger,
		FeedSize:    cfg.Quotes.FeedSize,
		SearchLimit: cfg.Quotes.SearchLimit,
		DailyTTL:    cfg.Quotes.DailyTTL,
		Location:    cfg.Quotes.Location(),
	})

	profileService := app.NewProfileService(app.ProfileServiceConfig{
		Profiles:    be.store,
		Favorites:   be.store,
		Collections: be.store,
		Files:       be.files,
		Flags:       featureFlags,
		Logger:      logger,
	})

	healthHandler := handlers.NewHealthHandler(healthRegistry, handlers.NewBuildInfo(Version, Commit, BuildTime))
	if be.rest != nil {
		healthHandler.WatchBreaker(be.rest.ServiceName(), be.rest.Client())
	}

	server := http.New(&cfg.Server, logger)
	http.SetupRouter(server.Engine(), http.RouterConfig{
		Logger:            logger,
		ServiceName:       tracingName(cfg),
		Sessions:          sessions,
		HealthHandler:     healthHandler,
		AuthHandler:       handlers.NewAuthHandler(sessions),
		QuoteHandler:      handlers.NewQuoteHandler(quoteService),
		FavoriteHandler:   handlers.NewFavoriteHandler(favSync),
		CollectionHandler: handlers.NewCollectionHandler(manager),
		ProfileHandler:    handlers.NewProfileHandler(profileService),
		InboxHandler:      handlers.NewInboxHandler(app.NewNotificationService(be.kv, logger), alertBuffer, nil),
		Timeout:           cfg.Server.RequestTimeout,
	})

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	go sessions.Run(runCtx, sessionTick)
	go favSync.Run(runCtx)

	serverErr := server.Start()

	err = waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)

	stop()
	favSync.Wait()
	manager.Wait()

	return err
}

func tracingName(cfg *config.Config) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}

	return cfg.Telemetry.ServiceName
}

// openBackend connects the configured remote store.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Backend.Driver {
	case config.BackendREST:
		b, err := acl.New(acl.Config{
			HTTP: &clients.Config{
				BaseURL:   cfg.Backend.REST.BaseURL,
				Timeout:   cfg.Client.Timeout,
				Retry:     cfg.Client.Retry,
				Circuit:   cfg.Client.CircuitBreaker,
				Transport: cfg.Client.Transport,
				Logger:    logger,
			},
			AnonKey: cfg.Backend.REST.AnonKey,
			Schema:  cfg.Backend.REST.Schema,
			Bucket:  cfg.Backend.REST.Bucket,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating backend client: %w", err)
		}

		// The managed backend has no key-value table; cached values and
		// notification settings stay in process.
		return &backend{
			store:    b,
			kv:       memstore.New(),
			auth:     b,
			checkers: []ports.HealthChecker{b},
			rest:     b,
			close:    func() error { return nil },
		}, nil

	case config.BackendSQL:
		db, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN, sqlstore.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}

		if cfg.Database.MigrateOnStart {
			if err := sqlstore.Migrate(ctx, db, cfg.Database.Driver); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("migrating database: %w", err)
			}
		}

		auth, err := newLocalAuth(cfg, sqlstore.NewAccounts(db), logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		st := sqlstore.New(db)

		return &backend{
			store:    st,
			kv:       st,
			auth:     auth,
			checkers: []ports.HealthChecker{st},
			close:    db.Close,
		}, nil

	case config.BackendMemory:
		auth, err := newLocalAuth(cfg, localauth.NewMemoryAccounts(), logger)
		if err != nil {
			return nil, err
		}

		st := memstore.New(memstore.WithQuotes(memstore.SeedQuotes()...))

		return &backend{
			store:    st,
			kv:       st,
			auth:     auth,
			checkers: []ports.HealthChecker{st},
			close:    func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported backend driver %q", cfg.Backend.Driver)
	}
}

func newLocalAuth(cfg *config.Config, accounts localauth.Accounts, logger *slog.Logger) (*localauth.Provider, error) {
	auth, err := localauth.New(localauth.Config{
		Accounts:   accounts,
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.TokenTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
		OTPTTL:     cfg.Auth.OTPTTL,
		Logger:     logger,
		HashCost:   cfg.Auth.BcryptCost,
	})
	if err != nil {
		return nil, fmt.Errorf("creating identity provider: %w", err)
	}

	return auth, nil
}

// openStorage picks the avatar store. "rest" reuses the managed backend's
// storage bucket.
func openStorage(ctx context.Context, cfg *config.Config, be *backend) error {
	if cfg.Storage.Driver == "rest" {
		if be.rest == nil {
			return errors.New("storage driver rest needs the rest backend")
		}

		be.files = be.rest

		return nil
	}

	files, err := objectstore.New(ctx, objectstore.Config{
		Driver:        cfg.Storage.Driver,
		Bucket:        cfg.Storage.Bucket,
		Endpoint:      cfg.Storage.Endpoint,
		Region:        cfg.Storage.Region,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		UseSSL:        cfg.Storage.UseSSL,
		PublicBaseURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		return fmt.Errorf("creating object store: %w", err)
	}

	be.files = files
	be.checkers = append(be.checkers, files)

	return nil
}

// waitForShutdown blocks until a shutdown signal is received or the server
// fails, then drains in-flight requests.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}

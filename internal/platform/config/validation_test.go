package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a fully valid configuration for testing.
func validConfig() *Config {
	return &Config{
		App: AppConfig{Name: "quote-keeper", Version: "1.0.0", Environment: "test"},
		Server: ServerConfig{
			Port:            8080,
			Host:            "127.0.0.1",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  5 * time.Second,
			MaxRequestSize:  DefaultMaxRequestSize,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Client: ClientConfig{
			Timeout: 10 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     2 * time.Second,
				Multiplier:      2.0,
				JitterFactor:    0.25,
			},
			CircuitBreaker: CircuitBreakerConfig{MaxFailures: 5, Timeout: 30 * time.Second, HalfOpenLimit: 3},
			Transport: TransportConfig{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Backend: BackendConfig{Driver: BackendMemory},
		Storage: StorageConfig{Driver: "memory", Bucket: "avatars"},
		Auth: AuthConfig{
			JWTSecret:  "0123456789abcdef0123",
			Issuer:     "quote-keeper",
			TokenTTL:   time.Hour,
			RefreshTTL: 24 * time.Hour,
			OTPTTL:     5 * time.Minute,
			BcryptCost: 4,
		},
		Favorites: FavoritesConfig{Ordering: OrderingVersioned, AlertBuffer: 10},
		Quotes: QuotesConfig{
			FeedSize:    15,
			SearchLimit: 100,
			DailyTTL:    24 * time.Hour,
			Timezone:    "UTC",
		},
	}
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_FieldRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantMsg string
	}{
		{"missing app name", func(c *Config) { c.App.Name = "" }, "app.name is required"},
		{"bad environment", func(c *Config) { c.App.Environment = "staging" }, "app.environment must be one of"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port must be at most 65535"},
		{"trace level allowed", func(c *Config) { c.Log.Level = "trace" }, ""},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format must be one of"},
		{"log file path when enabled", func(c *Config) { c.Log.File.Enabled = true }, "log.file.path is required when"},
		{"telemetry endpoint when enabled", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.ServiceName = "qk"
		}, "telemetry.endpoint"},
		{"retry attempts zero", func(c *Config) { c.Client.Retry.MaxAttempts = 0 }, "client.retry.maxattempts is required"},
		{"unknown backend", func(c *Config) { c.Backend.Driver = "firebase" }, "backend.driver must be one of"},
		{"unknown ordering", func(c *Config) { c.Favorites.Ordering = "fifo" }, "favorites.ordering must be one of"},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "auth.jwtsecret must be at least 16"},
		{"feed too large", func(c *Config) { c.Quotes.FeedSize = 500 }, "quotes.feedsize must be at most 100"},
		{"bad timezone", func(c *Config) { c.Quotes.Timezone = "Mars/Olympus" }, "quotes.timezone must be an IANA timezone name"},
		{"bad storage driver", func(c *Config) { c.Storage.Driver = "ftp" }, "storage.driver must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestConfig_Validate_Drivers(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantMsg string
	}{
		{"rest needs base url and key", func(c *Config) { c.Backend.Driver = BackendREST }, "backend.rest.base_url is required"},
		{"rest complete", func(c *Config) {
			c.Backend.Driver = BackendREST
			c.Backend.REST = RESTConfig{BaseURL: "https://x.supabase.co", AnonKey: "anon"}
		}, ""},
		{"sql needs dsn", func(c *Config) { c.Backend.Driver = BackendSQL }, "database.driver and database.dsn are required"},
		{"sql complete", func(c *Config) {
			c.Backend.Driver = BackendSQL
			c.Database = DatabaseConfig{Driver: "sqlite3", DSN: "file::memory:"}
		}, ""},
		{"minio needs endpoint", func(c *Config) { c.Storage.Driver = "minio" }, "storage.endpoint is required"},
		{"rest storage needs rest backend", func(c *Config) { c.Storage.Driver = "rest" }, "storage.driver rest requires backend.driver rest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := &Config{App: AppConfig{Environment: "invalid"}, Server: ServerConfig{Port: -1}}

	err := cfg.Validate()
	require.Error(t, err)

	assert.Contains(t, err.Error(), "app.name")
	assert.Contains(t, err.Error(), "app.version")
}

func TestFormatFieldPath(t *testing.T) {
	tests := []struct {
		namespace string
		expected  string
	}{
		{"Config.Server.Port", "server.port"},
		{"Config.Favorites.Ordering", "favorites.ordering"},
		{"Config.Client.Retry.MaxAttempts", "client.retry.maxattempts"},
		{"Config.Quotes.Timezone", "quotes.timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFieldPath(tt.namespace))
		})
	}
}

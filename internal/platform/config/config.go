// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultServerPort is the default HTTP server port.
	DefaultServerPort = 8080

	// DefaultMaxRequestSize is the default maximum request body size (5MB, room for avatars).
	DefaultMaxRequestSize = 5 << 20

	// DefaultClientRetryMaxAttempts is the default number of attempts for
	// backend reads. Writes are never retried.
	DefaultClientRetryMaxAttempts = 3

	// DefaultClientRetryMultiplier is the default exponential backoff multiplier.
	DefaultClientRetryMultiplier = 2.0

	// DefaultClientRetryJitterFactor is the default jitter percentage (±25%).
	DefaultClientRetryJitterFactor = 0.25

	// DefaultClientCircuitMaxFailures is the default failures before circuit opens.
	DefaultClientCircuitMaxFailures = 5

	// DefaultClientCircuitHalfOpenLimit is the default successes to close circuit.
	DefaultClientCircuitHalfOpenLimit = 3

	// DefaultTransportMaxIdleConns is the default max idle connections.
	DefaultTransportMaxIdleConns = 100

	// DefaultTransportMaxIdleConnsPerHost is the default max idle connections per host.
	DefaultTransportMaxIdleConnsPerHost = 10

	// DefaultLogFileMaxSizeMB is the default max log file size in megabytes.
	DefaultLogFileMaxSizeMB = 100

	// DefaultLogFileMaxBackups is the default number of old log files to retain.
	DefaultLogFileMaxBackups = 3

	// DefaultLogFileMaxAgeDays is the default max days to retain old log files.
	DefaultLogFileMaxAgeDays = 28

	// DefaultFeedSize is how many quotes the home feed shows.
	DefaultFeedSize = 15

	// DefaultSearchLimit caps search and category results.
	DefaultSearchLimit = 100

	// DefaultBcryptCost is the bcrypt work factor for local accounts.
	DefaultBcryptCost = 10

	// DefaultAlertBuffer is how many undelivered alerts are kept per user.
	DefaultAlertBuffer = 20
)

// Favorites ordering modes.
const (
	// OrderingLastCompleted applies every remote completion in the order it settles.
	OrderingLastCompleted = "last_completed"

	// OrderingVersioned discards completions superseded by a newer toggle.
	OrderingVersioned = "versioned"
)

// Backend drivers.
const (
	BackendREST   = "rest"
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

// Config is the root configuration structure.
type Config struct {
	App       AppConfig         `koanf:"app"       validate:"required"`
	Server    ServerConfig      `koanf:"server"    validate:"required"`
	Log       LogConfig         `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig   `koanf:"telemetry"`
	Client    ClientConfig      `koanf:"client"    validate:"required"`
	Backend   BackendConfig     `koanf:"backend"   validate:"required"`
	Database  DatabaseConfig    `koanf:"database"`
	Storage   StorageConfig     `koanf:"storage"   validate:"required"`
	Auth      AuthConfig        `koanf:"auth"      validate:"required"`
	Favorites FavoritesConfig   `koanf:"favorites" validate:"required"`
	Quotes    QuotesConfig      `koanf:"quotes"    validate:"required"`
	Features  map[string]string `koanf:"features"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"required,min=100ms"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
	Insecure     bool    `koanf:"insecure"`
}

// ClientConfig contains HTTP client settings for the managed backend.
type ClientConfig struct {
	Timeout        time.Duration        `koanf:"timeout"         validate:"required,min=100ms"`
	Retry          RetryConfig          `koanf:"retry"           validate:"required"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" validate:"required"`
	Transport      TransportConfig      `koanf:"transport"       validate:"required"`
}

// RetryConfig contains retry settings for HTTP clients.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"     validate:"required,min=1,max=10"`
	InitialInterval time.Duration `koanf:"initial_interval" validate:"required,min=10ms"`
	MaxInterval     time.Duration `koanf:"max_interval"     validate:"required,min=100ms"`
	Multiplier      float64       `koanf:"multiplier"       validate:"required,min=1.1,max=10"`
	JitterFactor    float64       `koanf:"jitter_factor"    validate:"min=0,max=1"`
}

// CircuitBreakerConfig contains circuit breaker settings for HTTP clients.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"         validate:"required,min=1s"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

// TransportConfig contains HTTP transport pool settings.
type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"          validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"       validate:"required,min=1s"`
}

// BackendConfig selects where quotes, favorites, and collections live.
type BackendConfig struct {
	Driver string     `koanf:"driver" validate:"required,oneof=rest sql memory"`
	REST   RESTConfig `koanf:"rest"`
}

// RESTConfig points at a PostgREST/GoTrue compatible managed backend.
type RESTConfig struct {
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`
	AnonKey string `koanf:"anon_key"`
	Schema  string `koanf:"schema"`
	Bucket  string `koanf:"bucket"`
}

// DatabaseConfig contains the SQL backend connection.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"            validate:"omitempty,oneof=sqlite3 postgres mysql"`
	DSN             string        `koanf:"dsn"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// StorageConfig selects the avatar object store.
type StorageConfig struct {
	Driver    string `koanf:"driver"     validate:"required,oneof=minio s3 rest memory"`
	Bucket    string `koanf:"bucket"     validate:"required"`
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
	PublicURL string `koanf:"public_url" validate:"omitempty,url"`
}

// AuthConfig contains settings for the local identity provider used by the
// sql and memory backends.
type AuthConfig struct {
	JWTSecret  string        `koanf:"jwt_secret"  validate:"required,min=16"`
	Issuer     string        `koanf:"issuer"      validate:"required"`
	TokenTTL   time.Duration `koanf:"token_ttl"   validate:"required,min=1m"`
	RefreshTTL time.Duration `koanf:"refresh_ttl" validate:"required,min=1m"`
	OTPTTL     time.Duration `koanf:"otp_ttl"     validate:"required,min=30s"`
	BcryptCost int           `koanf:"bcrypt_cost" validate:"required,min=4,max=31"`
}

// FavoritesConfig tunes the favorites synchronizer.
type FavoritesConfig struct {
	Ordering    string `koanf:"ordering"     validate:"required,oneof=last_completed versioned"`
	AlertBuffer int    `koanf:"alert_buffer" validate:"required,min=1"`
}

// QuotesConfig tunes quote browsing.
type QuotesConfig struct {
	FeedSize    int           `koanf:"feed_size"    validate:"required,min=1,max=100"`
	SearchLimit int           `koanf:"search_limit" validate:"required,min=1,max=1000"`
	DailyTTL    time.Duration `koanf:"daily_ttl"    validate:"required,min=1m"`
	Timezone    string        `koanf:"timezone"     validate:"required,timezone"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "quote-keeper",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "15s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/quote-keeper.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.service_name":  "quote-keeper",
		"telemetry.sampling_rate": 1.0,
		"telemetry.insecure":      true,

		"client.timeout":                           "10s",
		"client.retry.max_attempts":                DefaultClientRetryMaxAttempts,
		"client.retry.initial_interval":            "100ms",
		"client.retry.max_interval":                "2s",
		"client.retry.multiplier":                  DefaultClientRetryMultiplier,
		"client.retry.jitter_factor":               DefaultClientRetryJitterFactor,
		"client.circuit_breaker.max_failures":      DefaultClientCircuitMaxFailures,
		"client.circuit_breaker.timeout":           "30s",
		"client.circuit_breaker.half_open_limit":   DefaultClientCircuitHalfOpenLimit,
		"client.transport.max_idle_conns":          DefaultTransportMaxIdleConns,
		"client.transport.max_idle_conns_per_host": DefaultTransportMaxIdleConnsPerHost,
		"client.transport.idle_conn_timeout":       "90s",

		"backend.driver":      BackendMemory,
		"backend.rest.schema": "public",
		"backend.rest.bucket": "avatars",

		"database.driver":            "sqlite3",
		"database.dsn":               "file:quote-keeper.db",
		"database.migrate_on_start":  true,
		"database.max_open_conns":    0,
		"database.conn_max_lifetime": "0s",

		"storage.driver": BackendMemory,
		"storage.bucket": "avatars",
		"storage.region": "us-east-1",

		"auth.jwt_secret":  "change-me-local-secret",
		"auth.issuer":      "quote-keeper",
		"auth.token_ttl":   "1h",
		"auth.refresh_ttl": "720h",
		"auth.otp_ttl":     "10m",
		"auth.bcrypt_cost": DefaultBcryptCost,

		"favorites.ordering":     OrderingLastCompleted,
		"favorites.alert_buffer": DefaultAlertBuffer,

		"quotes.feed_size":    DefaultFeedSize,
		"quotes.search_limit": DefaultSearchLimit,
		"quotes.daily_ttl":    "24h",
		"quotes.timezone":     "UTC",
	}
}

// Load loads configuration with the following precedence (highest to lowest):
//  1. Environment variables (APP_ prefix), including those from a .env file
//  2. Profile config file (configs/{profile}.yaml)
//  3. Base config file (configs/base.yaml)
//  4. Default values
//
// Environment keys nest on a single underscore; a double underscore stands
// for a literal underscore in a key, so APP_CLIENT_RETRY_MAX__ATTEMPTS sets
// client.retry.max_attempts.
func Load(profile string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	k := koanf.New(".")

	err := k.Load(confmap.Provider(defaults(), "."), nil)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	err = loadFileIfExists(k, "configs/base.yaml")
	if err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	if profile != "" {
		profilePath := fmt.Sprintf("configs/%s.yaml", profile)

		err := loadFileIfExists(k, profilePath)
		if err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	err = k.Load(env.Provider("APP_", ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// envKey maps APP_FAVORITES_ORDERING to favorites.ordering.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "APP_"))
	key = strings.ReplaceAll(key, "__", "\x00")
	key = strings.ReplaceAll(key, "_", ".")

	return strings.ReplaceAll(key, "\x00", "_")
}

// loadDotEnv exports variables from path without overriding the real environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return godotenv.Load(path)
}

// loadFileIfExists loads a YAML config file if it exists.
// Returns nil if the file doesn't exist, error only for parse/read failures.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}

// Location returns the configured timezone for day boundaries.
func (q QuotesConfig) Location() *time.Location {
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

package acl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

const (
	serviceName = "backend"

	restPrefix    = "/rest/v1/"
	authPrefix    = "/auth/v1"
	storagePrefix = "/storage/v1/object"

	defaultSchema = "public"
)

// TokenSource yields the current user's access token, or "" when nobody is
// signed in.
type TokenSource func() string

// Config configures a Backend.
type Config struct {
	// HTTP configures the underlying client. Its AuthFunc is replaced.
	HTTP *clients.Config

	// AnonKey is the project's public API key.
	AnonKey string

	// Schema is the exposed database schema. Defaults to "public".
	Schema string

	// Bucket holds avatar objects.
	Bucket string

	Logger *slog.Logger
	Now    func() time.Time
}

// Backend talks to the managed backend.
type Backend struct {
	BaseAdapter

	baseURL string
	anonKey string
	schema  string
	bucket  string
	tokens  atomic.Pointer[TokenSource]
	logger  *slog.Logger
	now     func() time.Time
}

var (
	_ ports.Store         = (*Backend)(nil)
	_ ports.AuthProvider  = (*Backend)(nil)
	_ ports.FileStorage   = (*Backend)(nil)
	_ ports.HealthChecker = (*Backend)(nil)
)

// New creates a Backend.
func New(cfg Config) (*Backend, error) {
	if cfg.HTTP == nil || cfg.HTTP.BaseURL == "" {
		return nil, errors.New("backend base url is required")
	}

	if cfg.AnonKey == "" {
		return nil, errors.New("backend anon key is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	schema := cfg.Schema
	if schema == "" {
		schema = defaultSchema
	}

	b := &Backend{
		baseURL: strings.TrimSuffix(cfg.HTTP.BaseURL, "/"),
		anonKey: cfg.AnonKey,
		schema:  schema,
		bucket:  cfg.Bucket,
		logger:  logger.With(slog.String("component", "acl.Backend")),
		now:     now,
	}

	httpCfg := *cfg.HTTP
	if httpCfg.ServiceName == "" {
		httpCfg.ServiceName = serviceName
	}

	httpCfg.AuthFunc = b.authorize

	client, err := clients.New(&httpCfg)
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}

	b.BaseAdapter = NewBaseAdapter(client, httpCfg.ServiceName)

	return b, nil
}

// UseTokenSource makes requests run as the user whose token src returns.
// It is set after construction because the session provider that owns the
// token is itself built on this backend.
func (b *Backend) UseTokenSource(src TokenSource) {
	b.tokens.Store(&src)
}

type bearerKey struct{}

// withBearer pins the bearer token for one call, overriding the source.
func withBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func (b *Backend) bearer(ctx context.Context) string {
	if token, ok := ctx.Value(bearerKey{}).(string); ok && token != "" {
		return token
	}

	if src := b.tokens.Load(); src != nil {
		if token := (*src)(); token != "" {
			return token
		}
	}

	return b.anonKey
}

func (b *Backend) authorize(r *http.Request) {
	r.Header.Set("apikey", b.anonKey)
	r.Header.Set("Authorization", "Bearer "+b.bearer(r.Context()))

	if strings.HasPrefix(r.URL.Path, restPrefix) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			r.Header.Set("Accept-Profile", b.schema)
		default:
			r.Header.Set("Content-Profile", b.schema)
		}
	}
}

func table(name string) string {
	return restPrefix + name
}

// count runs a HEAD with an exact count and reads the total from
// Content-Range, which looks like "0-24/120" or "*/0".
func (b *Backend) count(ctx context.Context, name string, filter url.Values, t Target) (int, error) {
	q := url.Values{"select": {"id"}}
	for k, v := range filter {
		q[k] = v
	}

	resp, err := b.Do(ctx, Request{
		Method: http.MethodHead,
		Path:   table(name),
		Query:  q,
		Header: http.Header{"Prefer": {"count=exact"}},
	}, t)
	if err != nil {
		return 0, err
	}

	_ = resp.Body.Close()

	return parseContentRange(resp.Header.Get("Content-Range"))
}

func parseContentRange(h string) (int, error) {
	_, total, ok := strings.Cut(h, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("content range %q has no total", h)
	}

	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("content range %q: %w", h, err)
	}

	return n, nil
}

var (
	returnRows = http.Header{"Prefer": {"return=representation"}}
	singleRow  = http.Header{"Accept": {"application/vnd.pgrst.object+json"}}
)

// Upload implements ports.FileStorage against the backend's storage API.
// Existing objects are overwritten.
func (b *Backend) Upload(ctx context.Context, path string, content []byte, contentType string) (string, error) {
	if b.bucket == "" {
		return "", errors.New("storage bucket is not configured")
	}

	path = strings.TrimPrefix(path, "/")
	if contentType == "" {
		contentType = mimetype.Detect(content).String()
	}

	err := b.Exec(ctx, Request{
		Method: http.MethodPost,
		Path:   storagePrefix + "/" + b.bucket + "/" + path,
		Header: http.Header{
			"Content-Type": {contentType},
			"X-Upsert":     {"true"},
		},
		Body: content,
	}, Target{Operation: "upload object", Entity: "object", ID: path})
	if err != nil {
		return "", err
	}

	public, err := url.JoinPath(b.baseURL, append([]string{storagePrefix, "public", b.bucket}, strings.Split(path, "/")...)...)
	if err != nil {
		return "", fmt.Errorf("building public url: %w", err)
	}

	b.logger.DebugContext(ctx, "object uploaded", slog.String("path", path), slog.String("content_type", contentType))

	return public, nil
}

// Name implements ports.HealthChecker.
func (b *Backend) Name() string {
	return serviceName
}

// Check implements ports.HealthChecker by probing the identity service.
func (b *Backend) Check(ctx context.Context) error {
	return b.Exec(ctx, Request{Method: http.MethodGet, Path: authPrefix + "/health"},
		Target{Operation: "health check", Entity: serviceName})
}

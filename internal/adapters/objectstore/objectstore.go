// Package objectstore uploads avatar images to an object store and hands
// back public URLs. MinIO, S3 and an in-memory backend are supported.
package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// Supported drivers.
const (
	DriverMinio  = "minio"
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Driver    string
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// PublicBaseURL prefixes object paths in returned URLs. When empty the
	// URL is built from the endpoint and bucket.
	PublicBaseURL string
}

// Backend is an object store that can report its health.
type Backend interface {
	ports.FileStorage
	ports.HealthChecker
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Driver {
	case DriverMinio:
		return NewMinio(cfg)
	case DriverS3:
		return NewS3(ctx, cfg)
	case DriverMemory, "":
		return NewMemory(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q: must be minio, s3, or memory", cfg.Driver)
	}
}

// publicURL joins base and an object path.
func publicURL(base, path string) (string, error) {
	u, err := url.JoinPath(strings.TrimSuffix(base, "/"), strings.Split(path, "/")...)
	if err != nil {
		return "", fmt.Errorf("build public url: %w", err)
	}

	return u, nil
}

// defaultBase is the path-style URL of a bucket on an endpoint.
func defaultBase(cfg Config) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "s3." + cfg.Region + ".amazonaws.com"
		scheme = "https"
	}

	if strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/") + "/" + cfg.Bucket
	}

	return scheme + "://" + endpoint + "/" + cfg.Bucket
}

// contentTypeOf keeps an explicit content type and sniffs otherwise.
func contentTypeOf(content []byte, contentType string) string {
	if contentType != "" {
		return contentType
	}

	return mimetype.Detect(content).String()
}

package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Minio stores objects in a MinIO (or any S3-compatible) bucket.
type Minio struct {
	client *minio.Client
	bucket string
	base   string
}

// NewMinio connects to cfg.Endpoint, which is host:port without a scheme.
func NewMinio(cfg Config) (*Minio, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio storage needs an endpoint and a bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Minio{client: client, bucket: cfg.Bucket, base: defaultBase(cfg)}, nil
}

// Upload implements ports.FileStorage.
func (m *Minio) Upload(ctx context.Context, path string, content []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, path, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentTypeOf(content, contentType)})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}

	return publicURL(m.base, path)
}

// Name implements ports.HealthChecker.
func (m *Minio) Name() string { return "storage" }

// Check implements ports.HealthChecker.
func (m *Minio) Check(ctx context.Context) error {
	ok, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}

	if !ok {
		return fmt.Errorf("bucket %q does not exist", m.bucket)
	}

	return nil
}

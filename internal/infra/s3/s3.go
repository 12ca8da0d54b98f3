package s3

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewClient(cfg Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return client, nil
}

// PhotoStore presigns read URLs for candidate photos stored in the
// private bucket. Keys that are already absolute URLs pass through
// unchanged.
type PhotoStore struct {
	client *minio.Client
	bucket string
}

func NewPhotoStore(client *minio.Client, bucket string) *PhotoStore {
	return &PhotoStore{
		client: client,
		bucket: strings.TrimSpace(bucket),
	}
}

func (s *PhotoStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("photo key is empty")
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed, nil
	}
	if s.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return "", fmt.Errorf("s3 bucket is empty")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	signed, err := s.client.PresignedGetObject(ctx, s.bucket, trimmed, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign photo get: %w", err)
	}

	return signed.String(), nil
}

package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// BlobRepo is the local persistence collaborator: small opaque JSON
// blobs keyed by identity. Quota state lives here.
type BlobRepo struct {
	client *goredis.Client
}

func NewBlobRepo(client *goredis.Client) *BlobRepo {
	return &BlobRepo{client: client}
}

func (r *BlobRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return nil, false, fmt.Errorf("blob key is required")
	}

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get blob: %w", err)
	}

	return data, true, nil
}

func (r *BlobRepo) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if key == "" || len(data) == 0 {
		return fmt.Errorf("invalid blob payload")
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set blob: %w", err)
	}

	return nil
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storefrontapp/storefront/internal/cache"
)

// RedisStore shares counters across instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(connectionString string) (*RedisStore, error) {
	client, err := cache.NewRedisClient(connectionString)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

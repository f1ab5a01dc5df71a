package cache

// Package cache provides short-lived key/value storage for webhook deduplication
// and request idempotency.

import (
	"context"
	"fmt"
	"time"
)

// Provider defines the interface for idempotency bookkeeping.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Add stores value only if key is absent and reports whether it did.
	Add(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

func WebhookKey(source, eventID string) string {
	return fmt.Sprintf("webhook:%s:%s", source, eventID)
}

// IdempotencyKey scopes a client supplied Idempotency-Key to an operation and user.
func IdempotencyKey(operation, userID, key string) string {
	return fmt.Sprintf("idempotency:%s:%s:%s", operation, userID, key)
}

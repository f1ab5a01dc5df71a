// Package ratelimit implements fixed-window request limiting over pluggable storage.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Store counts hits per key. Counters expire after ttl.
type Store interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Close() error
}

type Config struct {
	Store                 string
	RedisConnectionString string
}

func NewStore(cfg Config) (Store, error) {
	switch cfg.Store {
	case "memory", "":
		return NewMemoryStore()
	case "redis":
		return NewRedisStore(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported rate limit store: %s", cfg.Store)
	}
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// NewLimiter returns a limiter allowing limit hits per key per window.
// A non-positive limit disables limiting.
func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.store != nil && l.limit > 0 && l.window > 0
}

func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	windowStart := now.Truncate(l.window)
	resetAfter := windowStart.Add(l.window).Sub(now)

	count, err := l.store.Increment(ctx, windowKey(key, windowStart), l.window)
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    count <= int64(l.limit),
		Limit:      l.limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}, nil
}

func windowKey(key string, windowStart time.Time) string {
	return "ratelimit:" + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)
}

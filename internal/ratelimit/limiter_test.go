package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiterFixedWindow(t *testing.T) {
	t.Parallel()

	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	store.now = func() time.Time { return now }

	limiter := NewLimiter(store, 2, time.Minute)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil || !decision.Allowed {
			t.Fatalf("request %d should be allowed: %+v (%v)", i, decision, err)
		}
	}

	decision, err := limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed || decision.Remaining != 0 {
		t.Fatalf("third request should be rejected: %+v", decision)
	}
	if decision.ResetAfter != 50*time.Second {
		t.Fatalf("expected reset after 50s, got %v", decision.ResetAfter)
	}

	other, _ := limiter.Allow(ctx, "10.0.0.2")
	if !other.Allowed {
		t.Fatal("other clients must have their own counter")
	}

	now = now.Add(time.Minute)
	next, _ := limiter.Allow(ctx, "10.0.0.1")
	if !next.Allowed {
		t.Fatal("next window should allow again")
	}
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	limiter := NewLimiter(nil, 10, time.Minute)
	decision, err := limiter.Allow(context.Background(), "k")
	if err != nil || !decision.Allowed {
		t.Fatalf("disabled limiter must allow: %+v (%v)", decision, err)
	}
}

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func (failingStore) Close() error { return nil }

func TestLimiterFailsOpen(t *testing.T) {
	t.Parallel()

	limiter := NewLimiter(failingStore{}, 1, time.Minute)
	decision, err := limiter.Allow(context.Background(), "k")
	if err == nil {
		t.Fatal("expected store error to be reported")
	}
	if !decision.Allowed {
		t.Fatal("store failures must not block traffic")
	}
}

func TestNewStoreRejectsUnknown(t *testing.T) {
	t.Parallel()

	if _, err := NewStore(Config{Store: "etcd"}); err == nil {
		t.Fatal("expected error for unknown store")
	}
}

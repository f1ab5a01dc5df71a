package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryProviderExpiry(t *testing.T) {
	t.Parallel()

	p, err := NewMemoryProvider()
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	ctx := context.Background()
	if err := p.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, err := p.Get(ctx, "k"); err != nil || got != "v" {
		t.Fatalf("expected v, got %q (%v)", got, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryProviderAdd(t *testing.T) {
	t.Parallel()

	p, err := NewMemoryProvider()
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	added, err := p.Add(ctx, "k", "first", time.Minute)
	if err != nil || !added {
		t.Fatalf("expected first add to succeed, got %v (%v)", added, err)
	}
	added, err = p.Add(ctx, "k", "second", time.Minute)
	if err != nil || added {
		t.Fatalf("expected second add to be rejected, got %v (%v)", added, err)
	}
	if got, _ := p.Get(ctx, "k"); got != "first" {
		t.Fatalf("expected first value kept, got %q", got)
	}

	now = now.Add(time.Hour)
	added, err = p.Add(ctx, "k", "third", time.Minute)
	if err != nil || !added {
		t.Fatalf("expected add after expiry to succeed, got %v (%v)", added, err)
	}
}

func TestKeys(t *testing.T) {
	t.Parallel()

	if got := WebhookKey("stripe", "evt_1"); got != "webhook:stripe:evt_1" {
		t.Fatalf("unexpected webhook key %q", got)
	}
	if got := IdempotencyKey("create_order", "user-1", "abc"); got != "idempotency:create_order:user-1:abc" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryStoreSize = 50_000

// MemoryStore keeps counters in a bounded LRU. Counters are per process, so it
// only limits correctly for a single instance.
type MemoryStore struct {
	mu       sync.Mutex
	counters *lru.Cache[string, counter]
	now      func() time.Time
}

type counter struct {
	hits      int64
	expiresAt time.Time
}

func NewMemoryStore() (*MemoryStore, error) {
	c, err := lru.New[string, counter](defaultMemoryStoreSize)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{counters: c, now: time.Now}, nil
}

func (m *MemoryStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	current, ok := m.counters.Get(key)
	if !ok || now.After(current.expiresAt) {
		current = counter{expiresAt: now.Add(ttl)}
	}
	current.hits++
	m.counters.Add(key, current)
	return current.hits, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type MemoryProvider struct {
	mu    sync.Mutex
	cache *lru.Cache[string, entry]
	now   func() time.Time
}

type entry struct {
	value     string
	expiresAt time.Time
}

const defaultMemoryCacheSize = 10_000

var ErrNotFound = errors.New("key not found")

func NewMemoryProvider() (*MemoryProvider, error) {
	c, err := lru.New[string, entry](defaultMemoryCacheSize)
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{cache: c, now: time.Now}, nil
}

func (m *MemoryProvider) Get(ctx context.Context, key string) (string, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	cached, ok := m.live(key)
	if !ok {
		return "", ErrNotFound
	}
	return cached.value, nil
}

func (m *MemoryProvider) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Add(key, entry{value: value, expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *MemoryProvider) Add(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.cache.Add(key, entry{value: value, expiresAt: m.now().Add(ttl)})
	return true, nil
}

func (m *MemoryProvider) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Remove(key)
	return nil
}

func (m *MemoryProvider) Close() error {
	return nil
}

// live must be called with mu held.
func (m *MemoryProvider) live(key string) (entry, bool) {
	cached, ok := m.cache.Get(key)
	if !ok {
		return entry{}, false
	}
	if m.now().After(cached.expiresAt) {
		m.cache.Remove(key)
		return entry{}, false
	}
	return cached, true
}

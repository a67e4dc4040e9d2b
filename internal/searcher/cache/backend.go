package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/resilience"
)

const keyPrefix = "fuzzygram:query:"

// Backend stores encoded query results. Get reports a miss with ok=false
// and a nil error.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Purge(ctx context.Context) (int64, error)
}

type lruEntry struct {
	value    []byte
	storedAt time.Time
}

// LRUBackend keeps results in process memory. Entries older than ttl are
// treated as misses and evicted on access.
type LRUBackend struct {
	mu    sync.Mutex
	cache *lru.Cache[string, lruEntry]
	ttl   time.Duration
	now   func() time.Time
}

func NewLRUBackend(size int, ttl time.Duration) (*LRUBackend, error) {
	c, err := lru.New[string, lruEntry](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	return &LRUBackend{cache: c, ttl: ttl, now: time.Now}, nil
}

func (b *LRUBackend) Name() string { return "lru" }

func (b *LRUBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if b.ttl > 0 && b.now().Sub(entry.storedAt) > b.ttl {
		b.cache.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (b *LRUBackend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Add(key, lruEntry{value: value, storedAt: b.now()})
	return nil
}

func (b *LRUBackend) Purge(context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.cache.Len()
	b.cache.Purge()
	return int64(n), nil
}

// RedisStore is implemented by pkg/redis.Client.
type RedisStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// RedisBackend shares results across replicas. Every call goes through a
// circuit breaker so a struggling Redis degrades to cache misses instead of
// slowing queries down.
type RedisBackend struct {
	store   RedisStore
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
}

// NewRedisBackend wraps store; m may be nil.
func NewRedisBackend(store RedisStore, ttl time.Duration, m *metrics.Metrics) *RedisBackend {
	cfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     10 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || pkgredis.IsNilError(err)
		},
	}
	if m != nil {
		cfg.OnStateChange = func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &RedisBackend{
		store:   store,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("redis-cache", cfg),
	}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := b.breaker.Execute(func() error {
		var err error
		data, err = b.store.Get(ctx, keyPrefix+key)
		return err
	})
	switch {
	case err == nil:
		return data, true, nil
	case pkgredis.IsNilError(err):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	return b.breaker.Execute(func() error {
		return b.store.Set(ctx, keyPrefix+key, value, b.ttl)
	})
}

// Purge bypasses the breaker: an explicit invalidation should reach Redis or
// fail loudly.
func (b *RedisBackend) Purge(ctx context.Context) (int64, error) {
	return b.store.FlushByPattern(ctx, keyPrefix+"*")
}

// BreakerOpen reports whether the breaker is currently rejecting calls.
func (b *RedisBackend) BreakerOpen() bool {
	return b.breaker.State() == resilience.StateOpen
}

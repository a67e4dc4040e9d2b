// Package cache memoizes query results. Entries are keyed by the index epoch
// and generation they were computed at, so any insert, and any restart or
// other replica sharing the backend, makes them unreachable without an
// explicit flush.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/gram"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/resilience"
)

// Version names one state of one index instance; see indexer.Engine.Epoch.
type Version struct {
	Epoch      string
	Generation uint64
}

type QueryCache struct {
	backend Backend
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New wraps backend; m may be nil.
func New(backend Backend, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache", "backend", backend.Name()),
	}
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Backend string  `json:"backend"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
}

// Get returns the cached result for req at v. Backend errors are logged and
// reported as misses.
func (c *QueryCache) Get(ctx context.Context, req executor.Request, v Version) (*executor.Result, bool) {
	key := BuildKey(req, v)
	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logBackendError("cache get failed", key, err)
	}
	if !ok {
		c.recordMiss()
		return nil, false
	}
	var result executor.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return &result, true
}

// Set stores result under v.
func (c *QueryCache) Set(ctx context.Context, req executor.Request, v Version, result *executor.Result) {
	key := BuildKey(req, v)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data); err != nil {
		c.logBackendError("cache set failed", key, err)
	}
}

// GetOrCompute serves req from the cache or runs compute, collapsing
// concurrent misses for the same key into one call. The shared call gets a
// context that keeps ctx's values but not its cancellation, so one caller
// going away does not fail the others; each caller stops waiting when its own
// ctx ends. A result computed after the index moved past v.Generation is
// returned but not stored. The returned result may be shared between callers
// and must not be modified.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	req executor.Request,
	v Version,
	compute func(ctx context.Context) (*executor.Result, error),
) (*executor.Result, bool, error) {
	if result, ok := c.Get(ctx, req, v); ok {
		return result, true, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(BuildKey(req, v), func() (any, error) {
		result, err := compute(shared)
		if err != nil {
			return nil, err
		}
		if result.Generation == v.Generation {
			c.Set(shared, req, v, result)
		}
		return result, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*executor.Result), false, nil
	}
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	n, err := c.backend.Purge(ctx)
	if err != nil {
		return 0, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", n)
	return n, nil
}

func (c *QueryCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{Backend: c.backend.Name(), Hits: hits, Misses: misses, Total: hits + misses}
	if s.Total > 0 {
		s.HitRate = float64(hits) / float64(s.Total)
	}
	return s
}

// BuildKey hashes the normalized query text with everything else that
// changes the ranking. Texts that normalize alike yield the same grams and
// therefore the same matches. The limit is not part of the key: callers cache
// the longest list they serve and truncate it.
func BuildKey(req executor.Request, v Version) string {
	h := sha256.New()
	h.Write([]byte(gram.Normalize(req.Text)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(req.Bounded)))
	h.Write([]byte{0})
	h.Write([]byte(v.Epoch))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(v.Generation, 10)))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(c.backend.Name()).Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(c.backend.Name()).Inc()
	}
}

func (c *QueryCache) logBackendError(msg, key string, err error) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Debug(msg, "key", key, "error", err)
		return
	}
	c.logger.Warn(msg, "key", key, "error", err)
}

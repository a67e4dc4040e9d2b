package analytics

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/gram"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/kafka"
)

// latencyWindow is how many recent latencies the percentiles cover.
const latencyWindow = 10000

type AggregatedStats struct {
	TotalQueries      int64        `json:"total_queries"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	CacheHits         int64        `json:"cache_hits"`
	AvgLatencyMicros  float64      `json:"avg_latency_us"`
	P50LatencyMicros  int64        `json:"p50_latency_us"`
	P95LatencyMicros  int64        `json:"p95_latency_us"`
	P99LatencyMicros  int64        `json:"p99_latency_us"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds QueryEvents into AggregatedStats. Per-query counters live
// in LRU caches so that a long tail of distinct queries cannot grow memory
// without bound; rarely seen queries are forgotten first.
type Aggregator struct {
	mu                sync.Mutex
	totalQueries      int64
	zeroResults       int64
	cacheHits         int64
	latencies         []int64
	nextLatency       int
	queryCounts       *lru.Cache[string, int64]
	zeroResultQueries *lru.Cache[string, int64]
	startTime         time.Time
	logger            *slog.Logger
}

// NewAggregator tracks counts for at most trackedQueries distinct queries.
func NewAggregator(trackedQueries int) (*Aggregator, error) {
	if trackedQueries <= 0 {
		trackedQueries = 10000
	}
	queryCounts, err := lru.New[string, int64](trackedQueries)
	if err != nil {
		return nil, fmt.Errorf("creating query counter: %w", err)
	}
	zeroResults, err := lru.New[string, int64](trackedQueries)
	if err != nil {
		return nil, fmt.Errorf("creating zero-result counter: %w", err)
	}
	return &Aggregator{
		latencies:         make([]int64, 0, latencyWindow),
		queryCounts:       queryCounts,
		zeroResultQueries: zeroResults,
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}, nil
}

// Record folds one event into the running stats.
func (a *Aggregator) Record(event QueryEvent) {
	query := strings.TrimSpace(gram.Normalize(event.Query))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalQueries++
	if event.CacheHit {
		a.cacheHits++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMicros)
	} else {
		a.latencies[a.nextLatency] = event.LatencyMicros
		a.nextLatency = (a.nextLatency + 1) % latencyWindow
	}
	increment(a.queryCounts, query)
	if event.TotalHits == 0 {
		a.zeroResults++
		increment(a.zeroResultQueries, query)
	}
}

// Sink records batches in-process, for deployments without Kafka.
func (a *Aggregator) Sink() Sink {
	return func(_ context.Context, events []QueryEvent) error {
		for _, ev := range events {
			a.Record(ev)
		}
		return nil
	}
}

// HandleEvent returns a Kafka handler that records QueryEvents.
func HandleEvent(a *Aggregator) kafka.MessageHandler {
	return func(_ context.Context, msg kafkago.Message) error {
		event, err := kafka.DecodeJSON[QueryEvent](msg.Value)
		if err != nil {
			return err
		}
		a.Record(event)
		return nil
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalQueries:      a.totalQueries,
		ZeroResultCount:   a.zeroResults,
		CacheHits:         a.cacheHits,
		TopQueries:        topN(a.queryCounts, 10),
		ZeroResultQueries: topN(a.zeroResultQueries, 10),
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMicros = float64(sum) / float64(len(sorted))
		stats.P50LatencyMicros = percentile(sorted, 50)
		stats.P95LatencyMicros = percentile(sorted, 95)
		stats.P99LatencyMicros = percentile(sorted, 99)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func increment(c *lru.Cache[string, int64], key string) {
	n, _ := c.Get(key)
	c.Add(key, n+1)
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by descending count, then query text.
func topN(counts *lru.Cache[string, int64], n int) []QueryCount {
	result := make([]QueryCount, 0, counts.Len())
	for _, query := range counts.Keys() {
		if count, ok := counts.Peek(query); ok {
			result = append(result, QueryCount{Query: query, Count: count})
		}
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

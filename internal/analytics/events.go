// Package analytics records what users query: a Collector ships QueryEvents
// off the request path in batches and an Aggregator folds them into top
// queries, zero-result queries and latency percentiles.
package analytics

import "time"

type EventType string

const (
	EventQuery      EventType = "query"
	EventZeroResult EventType = "zero_result"
)

// QueryEvent describes one served query.
type QueryEvent struct {
	Type           EventType `json:"type"`
	Query          string    `json:"query"`
	Bounded        bool      `json:"bounded"`
	Representation string    `json:"representation"`
	TotalHits      int       `json:"total_hits"`
	Returned       int       `json:"returned"`
	LatencyMicros  int64     `json:"latency_us"`
	CacheHit       bool      `json:"cache_hit"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id,omitempty"`
}

// NewQueryEvent fills Type from totalHits.
func NewQueryEvent(query string, bounded bool, totalHits, returned int) QueryEvent {
	typ := EventQuery
	if totalHits == 0 {
		typ = EventZeroResult
	}
	return QueryEvent{
		Type:      typ,
		Query:     query,
		Bounded:   bounded,
		TotalHits: totalHits,
		Returned:  returned,
		Timestamp: time.Now().UTC(),
	}
}

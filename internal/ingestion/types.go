// Package ingestion defines the request/response types and Kafka event schema
// used to add entries to the index.
package ingestion

import "time"

// Entry statuses reported to callers.
const (
	StatusQueued    = "QUEUED"
	StatusIndexed   = "INDEXED"
	StatusNoGrams   = "NO_GRAMS"
	StatusDuplicate = "DUPLICATE"
)

// EntryRequest is the JSON body accepted by POST /api/v1/entries. Bounded
// entries are indexed with start and end markers so that queries for whole
// strings rank them above partial matches.
type EntryRequest struct {
	Key            string `json:"key"`
	Text           string `json:"text"`
	Bounded        bool   `json:"bounded"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// EntryResponse is returned to the caller once an entry is accepted.
type EntryResponse struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	ID     int64  `json:"id,omitempty"`
}

// EntryEvent is the Kafka payload for an accepted entry. Applying the same
// event twice leaves the index unchanged.
type EntryEvent struct {
	ID         int64     `json:"id,omitempty"`
	Key        string    `json:"key"`
	Text       string    `json:"text"`
	Bounded    bool      `json:"bounded"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Package publisher accepts validated entries: it records them in the entry
// log, then either queues them on Kafka for every indexer replica or applies
// them to the local index directly.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/entrystore"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/resilience"
)

// EntryLog persists entries; see entrystore.Store.
type EntryLog interface {
	Save(ctx context.Context, e *entrystore.Entry) (duplicate bool, err error)
}

// EventPublisher queues entry events; see kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Applier inserts into the local index; see indexer.Engine.
type Applier interface {
	Insert(key, text string, bounded bool) bool
}

// Options holds the optional collaborators. A nil Log disables persistence
// and idempotency keys; a nil Events applies entries in-process.
type Options struct {
	Log     EntryLog
	Events  EventPublisher
	Metrics *metrics.Metrics
	Retry   resilience.RetryConfig
}

// Publisher coordinates entry persistence and indexing.
type Publisher struct {
	index  Applier
	opts   Options
	logger *slog.Logger
}

func New(index Applier, opts Options) *Publisher {
	return &Publisher{
		index:  index,
		opts:   opts,
		logger: slog.Default().With("component", "publisher"),
	}
}

// Ingest records req and routes it to the index. A repeated idempotency key
// returns the stored entry when the payload matches and
// ErrIdempotencyConflict when it does not.
//
// A duplicate is routed again before it is acknowledged: the first attempt
// may have been stored but never queued. Inserting the same entry twice
// leaves the index unchanged.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.EntryRequest) (*ingestion.EntryResponse, error) {
	entry := entrystore.Entry{
		Key:            req.Key,
		Text:           req.Text,
		Bounded:        req.Bounded,
		IdempotencyKey: req.IdempotencyKey,
	}

	duplicate := false
	if p.opts.Log != nil {
		var err error
		duplicate, err = p.opts.Log.Save(ctx, &entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
		}
		if duplicate && (entry.Key != req.Key || entry.Text != req.Text || entry.Bounded != req.Bounded) {
			return nil, apperrors.New(apperrors.ErrIdempotencyConflict, http.StatusConflict,
				"idempotency key was used for a different entry")
		}
	} else if req.IdempotencyKey != "" {
		p.logger.Debug("idempotency key ignored without entry log", "key", req.Key)
	}

	status, err := p.route(ctx, entry)
	if err != nil {
		return nil, err
	}
	if duplicate {
		status = ingestion.StatusDuplicate
	}
	return &ingestion.EntryResponse{Key: entry.Key, Status: status, ID: entry.ID}, nil
}

// route queues entry on Kafka when configured and otherwise inserts it into
// the local index.
func (p *Publisher) route(ctx context.Context, entry entrystore.Entry) (string, error) {
	if p.opts.Events != nil {
		if err := p.queue(ctx, entry); err != nil {
			return "", err
		}
		return ingestion.StatusQueued, nil
	}
	if !p.index.Insert(entry.Key, entry.Text, entry.Bounded) {
		return ingestion.StatusNoGrams, nil
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.EntriesIndexedTotal.WithLabelValues("http").Inc()
	}
	return ingestion.StatusIndexed, nil
}

// queue publishes the entry keyed by its index key, so that every event for
// one key lands on one partition in order.
func (p *Publisher) queue(ctx context.Context, entry entrystore.Entry) error {
	event := kafka.Event{
		Key: entry.Key,
		Value: ingestion.EntryEvent{
			ID:         entry.ID,
			Key:        entry.Key,
			Text:       entry.Text,
			Bounded:    entry.Bounded,
			IngestedAt: time.Now().UTC(),
		},
	}
	if id := logger.RequestID(ctx); id != "" {
		event.Headers = map[string]string{"request_id": id}
	}
	err := resilience.Retry(ctx, "publish-entry", p.opts.Retry, func(ctx context.Context) error {
		return p.opts.Events.Publish(ctx, event)
	})
	if err != nil {
		p.logger.Error("failed to queue entry",
			"key", entry.Key,
			"id", entry.ID,
			"error", err,
		)
		return fmt.Errorf("%w: queueing entry: %v", apperrors.ErrUnavailable, err)
	}
	return nil
}

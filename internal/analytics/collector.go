package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/kafka"
)

// Sink receives flushed batches.
type Sink func(ctx context.Context, events []QueryEvent) error

// BatchPublisher is implemented by kafka.Producer.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// KafkaSink publishes each event keyed by its query text.
func KafkaSink(p BatchPublisher) Sink {
	return func(ctx context.Context, events []QueryEvent) error {
		batch := make([]kafka.Event, len(events))
		for i, ev := range events {
			batch[i] = kafka.Event{Key: ev.Query, Value: ev}
		}
		return p.PublishBatch(ctx, batch)
	}
}

// Collector buffers events on a channel and flushes them to its sink when a
// batch fills or the flush interval passes. Track never blocks: events are
// dropped when the buffer is full.
type Collector struct {
	sink          Sink
	eventCh       chan QueryEvent
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
}

func NewCollector(sink Sink, bufferSize, batchSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		sink:          sink,
		eventCh:       make(chan QueryEvent, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. It drains and flushes what is buffered when
// ctx is cancelled or Close is called.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		batch := make([]QueryEvent, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.finalFlush(batch)
					return
				}
				batch = append(batch, event)
				if len(batch) >= c.batchSize {
					batch = c.flush(ctx, batch)
				}
			case <-ticker.C:
				batch = c.flush(ctx, batch)
			case <-ctx.Done():
				c.finalFlush(c.drain(batch))
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) Track(event QueryEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the final flush. Track must not
// be called after Close.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) flush(ctx context.Context, batch []QueryEvent) []QueryEvent {
	if len(batch) == 0 {
		return batch
	}
	if err := c.sink(ctx, batch); err != nil {
		c.logger.Error("analytics flush failed, batch dropped", "events", len(batch), "error", err)
	} else {
		c.logger.Debug("analytics batch flushed", "events", len(batch))
	}
	return make([]QueryEvent, 0, c.batchSize)
}

func (c *Collector) drain(batch []QueryEvent) []QueryEvent {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

func (c *Collector) finalFlush(batch []QueryEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(ctx, batch)
}

// Package consumer applies entry events from Kafka to the local index.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/metrics"
)

// Applier inserts into the local index; see indexer.Engine.
type Applier interface {
	Insert(key, text string, bounded bool) bool
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start consumes until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler that inserts each EntryEvent into
// index. Undecodable or keyless events are reported as kafka.ErrPoison so
// they are logged and skipped. m and onApplied may be nil.
func HandleMessage(index Applier, m *metrics.Metrics, onApplied func(ingestion.EntryEvent)) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, msg kafkago.Message) error {
		event, err := kafka.DecodeJSON[ingestion.EntryEvent](msg.Value)
		if err != nil {
			return err
		}
		if event.Key == "" {
			return fmt.Errorf("%w: entry event at offset %d has no key", kafka.ErrPoison, msg.Offset)
		}
		if !index.Insert(event.Key, event.Text, event.Bounded) {
			logger.Debug("entry produced no grams", "key", event.Key, "id", event.ID)
			return nil
		}
		if m != nil {
			m.EntriesIndexedTotal.WithLabelValues("kafka").Inc()
		}
		if onApplied != nil {
			onApplied(event)
		}
		logger.Debug("entry indexed",
			"key", event.Key,
			"id", event.ID,
			"request_id", kafka.Header(msg, "request_id"),
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		return nil
	}
}

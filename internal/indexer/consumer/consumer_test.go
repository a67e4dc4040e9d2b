package consumer

import (
	"context"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/fulltext"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/kafka"
)

func TestHandleMessageIndexesEvents(t *testing.T) {
	engine, err := indexer.NewEngine(config.IndexConfig{Depth: 6, Representation: "inverted"}, nil)
	require.NoError(t, err)

	var applied []string
	handle := HandleMessage(engine, nil, func(ev ingestion.EntryEvent) {
		applied = append(applied, ev.Key)
	})

	for _, payload := range []string{
		`{"key":"69","text":"boof"}`,
		`{"key":"420","text":"foob"}`,
		`{"key":"69","text":"boof"}`,
		`{"key":"single","text":"x"}`,
	} {
		require.NoError(t, handle(context.Background(), kafkago.Message{Value: []byte(payload)}))
	}

	assert.Equal(t, []string{"69", "420", "69"}, applied)
	res := engine.Query("oof", false, 0)
	assert.Equal(t, []fulltext.Match[string]{{Key: "69", Score: 3}, {Key: "420", Score: 1}}, res.Matches)
}

func TestHandleMessagePoison(t *testing.T) {
	engine, err := indexer.NewEngine(config.IndexConfig{Depth: 6, Representation: "merged"}, nil)
	require.NoError(t, err)
	handle := HandleMessage(engine, nil, nil)

	err = handle(context.Background(), kafkago.Message{Value: []byte(`{not json`)})
	assert.ErrorIs(t, err, kafka.ErrPoison)

	err = handle(context.Background(), kafkago.Message{Value: []byte(`{"text":"orphan"}`)})
	assert.ErrorIs(t, err, kafka.ErrPoison)
	assert.Zero(t, engine.Stats().Keys)
}

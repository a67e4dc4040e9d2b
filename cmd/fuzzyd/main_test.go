package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/config"
)

func TestEntryConsumerOptions(t *testing.T) {
	cfg := config.KafkaConfig{ConsumerGroup: "fuzzygram-indexer"}

	a := entryConsumerOptions(cfg, true)
	b := entryConsumerOptions(cfg, true)
	assert.True(t, strings.HasPrefix(a.GroupID, "fuzzygram-indexer-"))
	assert.NotEqual(t, a.GroupID, b.GroupID, "replicas never share partitions of the entry topic")
	assert.False(t, a.FromBeginning, "a replayed index only needs new entries")

	assert.True(t, entryConsumerOptions(cfg, false).FromBeginning, "without a log the topic is replayed")
}

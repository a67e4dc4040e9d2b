package indexer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/fulltext"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/metrics"
)

func newTestEngine(t *testing.T, repr string) *Engine {
	t.Helper()
	e, err := NewEngine(config.IndexConfig{Depth: 6, Representation: repr}, metrics.New(prometheus.NewRegistry()))
	require.NoError(t, err)
	return e
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	_, err := NewEngine(config.IndexConfig{Depth: 6, Representation: "trie"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrUnknownRepresentation)

	_, err = NewEngine(config.IndexConfig{Depth: 0, Representation: "merged"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEngineQuery(t *testing.T) {
	for _, repr := range []string{"inverted", "merged"} {
		t.Run(repr, func(t *testing.T) {
			e := newTestEngine(t, repr)
			require.True(t, e.Insert("69", "boof", false))
			require.True(t, e.Insert("420", "foob", false))

			res := e.Query("oof", false, 0)
			assert.Equal(t, []fulltext.Match[string]{{Key: "69", Score: 3}, {Key: "420", Score: 1}}, res.Matches)
			assert.Equal(t, 2, res.TotalHits)
			assert.Equal(t, Representation(repr), res.Representation)

			res = e.Query("oof", false, 1)
			assert.Len(t, res.Matches, 1)
			assert.Equal(t, 2, res.TotalHits)

			res = e.Query("zzz", false, 10)
			assert.NotNil(t, res.Matches)
			assert.Empty(t, res.Matches)
		})
	}
}

func TestEngineBoundedInsert(t *testing.T) {
	e := newTestEngine(t, "inverted")
	e.Insert("whole", "zed", true)
	e.Insert("prefix", "zedonk", true)

	res := e.Query("zed", true, 0)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "whole", res.Matches[0].Key)
	assert.Greater(t, res.Matches[0].Score, res.Matches[1].Score)
}

func TestEngineGeneration(t *testing.T) {
	e := newTestEngine(t, "inverted")
	assert.Zero(t, e.Generation())

	assert.False(t, e.Insert("k", "x", false), "single codepoint yields no grams")
	assert.Zero(t, e.Generation())
	assert.Zero(t, e.Stats().Keys)

	e.Insert("k", "xy", false)
	assert.EqualValues(t, 1, e.Generation())
	assert.EqualValues(t, 1, e.Query("xy", false, 0).Generation)
}

func TestEngineEpoch(t *testing.T) {
	a := newTestEngine(t, "inverted")
	b := newTestEngine(t, "inverted")
	assert.NotEmpty(t, a.Epoch())
	assert.NotEqual(t, a.Epoch(), b.Epoch(), "each engine starts a new epoch")
	assert.Equal(t, a.Epoch(), a.Stats().Epoch)

	a.Insert("k", "xy", false)
	b.Insert("k", "zz", false)
	assert.Equal(t, a.Generation(), b.Generation())
}

func TestEngineConvert(t *testing.T) {
	e := newTestEngine(t, "inverted")
	e.Insert("pleased", "pleased", false)
	e.Insert("blazed", "blazed", false)
	before := e.Query("pleaz", false, 0).Matches
	statsBefore := e.Stats()

	changed, err := e.Convert(Merged)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, Merged, e.Representation())
	assert.Equal(t, before, e.Query("pleaz", false, 0).Matches)
	assert.Equal(t, statsBefore.Stats, e.Stats().Stats)
	assert.Equal(t, statsBefore.Generation, e.Generation(), "results are unchanged, so cached ones stay valid")

	changed, err = e.Convert(Merged)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = e.Convert("bitmap")
	assert.ErrorIs(t, err, apperrors.ErrUnknownRepresentation)

	changed, err = e.Convert(Inverted)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, before, e.Query("pleaz", false, 0).Matches)
}

func TestEngineStats(t *testing.T) {
	e := newTestEngine(t, "merged")
	e.Insert("a", "ab", false)
	e.Insert("b", "ab", false)

	s := e.Stats()
	assert.Equal(t, 2, s.Keys)
	assert.Equal(t, 1, s.Grams)
	assert.Equal(t, 2, s.Pairs)
	assert.Equal(t, 6, s.Depth)
	assert.Equal(t, Merged, s.Representation)
}

func TestEngineConcurrentAccess(t *testing.T) {
	e := newTestEngine(t, "inverted")
	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := range writers {
		wg.Go(func() {
			for i := range perWriter {
				e.Insert(fmt.Sprintf("w%d-%d", w, i), fmt.Sprintf("entry %d from %d", i, w), false)
			}
		})
		wg.Go(func() {
			for range perWriter {
				e.Query("entry", false, 5)
			}
		})
	}
	wg.Go(func() {
		e.Convert(Merged)
	})
	wg.Wait()

	assert.Equal(t, writers*perWriter, e.Stats().Keys)
	assert.Equal(t, writers*perWriter, e.Query("entry", false, 0).TotalHits)
}

func TestParseRepresentation(t *testing.T) {
	r, err := ParseRepresentation("merged")
	require.NoError(t, err)
	assert.Equal(t, Merged, r)

	_, err = ParseRepresentation("MERGED")
	assert.Error(t, err)
}

func BenchmarkEngineQuery(b *testing.B) {
	e, err := NewEngine(config.IndexConfig{Depth: 6, Representation: "inverted"}, nil)
	require.NoError(b, err)
	for i := range 2000 {
		e.Insert(fmt.Sprintf("doc-%d", i), fmt.Sprintf("document number %d about gram indexes", i), false)
	}
	b.ReportAllocs()
	for b.Loop() {
		e.Query("gram indexes", false, 10)
	}
}

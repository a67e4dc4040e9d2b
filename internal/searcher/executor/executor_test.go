package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/fulltext"
)

func newEngine(t *testing.T) *indexer.Engine {
	t.Helper()
	e, err := indexer.NewEngine(config.IndexConfig{Depth: 6, Representation: "inverted"}, nil)
	require.NoError(t, err)
	e.Insert("apple", "apple", false)
	e.Insert("apply", "apply", false)
	e.Insert("melon", "melon", false)
	return e
}

func TestExecute(t *testing.T) {
	exec := New(newEngine(t), time.Second)

	res, err := exec.Execute(context.Background(), Request{Text: "appl", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "appl", res.Query)
	assert.Equal(t, "inverted", res.Representation)
	assert.Equal(t, 2, res.TotalHits)
	assert.Equal(t, []string{"apple", "apply"}, fulltext.Keys(res.Matches))
	assert.Equal(t, exec.Generation(), res.Generation)
}

func TestExecuteLimit(t *testing.T) {
	exec := New(newEngine(t), 0)

	res, err := exec.Execute(context.Background(), Request{Text: "appl", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalHits)
	assert.Len(t, res.Matches, 1)
}

func TestExecuteEmptyAndNoMatch(t *testing.T) {
	exec := New(newEngine(t), time.Second)

	res, err := exec.Execute(context.Background(), Request{Text: ""})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.NotNil(t, res.Matches)

	res, err = exec.Execute(context.Background(), Request{Text: "zzzz"})
	require.NoError(t, err)
	assert.Zero(t, res.TotalHits)
	assert.NotNil(t, res.Matches)
}

type slowIndex struct{ delay time.Duration }

func (s slowIndex) Query(string, bool, int) indexer.Result {
	time.Sleep(s.delay)
	return indexer.Result{}
}

func (s slowIndex) Epoch() string { return "slow" }

func (s slowIndex) Generation() uint64 { return 0 }

func TestExecuteTimeout(t *testing.T) {
	exec := New(slowIndex{delay: 200 * time.Millisecond}, 10*time.Millisecond)

	_, err := exec.Execute(context.Background(), Request{Text: "slow"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, 503, apperrors.HTTPStatusCode(err))
}

// Package executor evaluates fuzzy queries against the in-memory index.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/fulltext"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/tracing"
)

// Index is implemented by indexer.Engine.
type Index interface {
	Query(text string, bounded bool, limit int) indexer.Result
	Epoch() string
	Generation() uint64
}

type Request struct {
	Text    string
	Bounded bool
	Limit   int
}

type Result struct {
	Query          string                   `json:"query"`
	Bounded        bool                     `json:"bounded"`
	Representation string                   `json:"representation"`
	TotalHits      int                      `json:"total_hits"`
	Matches        []fulltext.Match[string] `json:"matches"`
	Generation     uint64                   `json:"generation"`
}

type Executor struct {
	index   Index
	timeout time.Duration
	logger  *slog.Logger
}

// New returns an Executor; a non-positive timeout lets queries run unbounded.
func New(index Index, timeout time.Duration) *Executor {
	return &Executor{
		index:   index,
		timeout: timeout,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Epoch identifies the index instance queries run against.
func (e *Executor) Epoch() string {
	return e.index.Epoch()
}

// Generation reports the index generation a query issued now would see.
func (e *Executor) Generation() uint64 {
	return e.index.Generation()
}

func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Text == "" {
		return &Result{
			Bounded:    req.Bounded,
			Matches:    []fulltext.Match[string]{},
			Generation: e.index.Generation(),
		}, nil
	}

	ctx, span := tracing.StartChildSpan(ctx, "index.query")
	defer span.End()

	var res indexer.Result
	err := resilience.WithTimeout(ctx, e.timeout, "query", func(ctx context.Context) error {
		res = e.index.Query(req.Text, req.Bounded, req.Limit)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.New(apperrors.ErrTimeout, http.StatusServiceUnavailable, "query timed out")
		}
		return nil, fmt.Errorf("executing query: %w", err)
	}

	span.SetAttr("total_hits", res.TotalHits)
	span.SetAttr("generation", res.Generation)
	matches := res.Matches
	if matches == nil {
		matches = []fulltext.Match[string]{}
	}
	e.logger.Debug("query executed",
		"query", req.Text,
		"bounded", req.Bounded,
		"total_hits", res.TotalHits,
		"returned", len(matches),
		"generation", res.Generation,
	)
	return &Result{
		Query:          req.Text,
		Bounded:        req.Bounded,
		Representation: string(res.Representation),
		TotalHits:      res.TotalHits,
		Matches:        matches,
		Generation:     res.Generation,
	}, nil
}

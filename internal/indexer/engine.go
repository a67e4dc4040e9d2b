// Package indexer owns the process's single fuzzy index and serializes every
// mutation against concurrent queries.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/fulltext"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/gram"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/metrics"
)

// Representation names the in-memory layout of the index.
type Representation string

const (
	Inverted Representation = config.RepresentationInverted
	Merged   Representation = config.RepresentationMerged
)

// ParseRepresentation accepts "inverted" or "merged".
func ParseRepresentation(s string) (Representation, error) {
	switch r := Representation(s); r {
	case Inverted, Merged:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownRepresentation, s)
}

// Result is one query evaluated against a single generation of the index.
type Result struct {
	Matches        []fulltext.Match[string]
	TotalHits      int
	Representation Representation
	Generation     uint64
}

// Stats extends fulltext.Stats with engine state.
type Stats struct {
	fulltext.Stats
	Depth          int            `json:"depth"`
	Representation Representation `json:"representation"`
	Epoch          string         `json:"epoch"`
	Generation     uint64         `json:"generation"`
}

type Engine struct {
	mu         sync.RWMutex
	index      fulltext.Index[string]
	repr       Representation
	epoch      string
	generation uint64

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine builds an empty index of the configured depth and layout. m may
// be nil.
func NewEngine(cfg config.IndexConfig, m *metrics.Metrics) (*Engine, error) {
	repr, err := ParseRepresentation(cfg.Representation)
	if err != nil {
		return nil, err
	}
	if cfg.Depth < 1 {
		return nil, apperrors.Invalid("index depth must be positive, got %d", cfg.Depth)
	}
	e := &Engine{
		repr:    repr,
		epoch:   uuid.NewString(),
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
	switch repr {
	case Inverted:
		e.index = fulltext.NewInverted[string](cfg.Depth)
	case Merged:
		e.index = fulltext.NewMerged[string](cfg.Depth)
	}
	e.logger.Info("index created", "depth", cfg.Depth, "representation", repr, "epoch", e.epoch)
	return e, nil
}

// Insert adds the grams of text under key and reports whether the text
// produced any. Text that yields no grams leaves the index untouched.
func (e *Engine) Insert(key, text string, bounded bool) bool {
	if bounded {
		text = gram.Wrap(text)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !gram.Produces(text, e.index.Depth()) {
		e.logger.Debug("insert produced no grams", "key", key)
		return false
	}
	e.index.Insert(key, text)
	e.generation++
	e.logger.Debug("entry indexed", "key", key, "bounded", bounded, "generation", e.generation)
	return true
}

// Query ranks keys against text and truncates to limit; limit <= 0 returns
// every match. TotalHits counts matches before truncation.
func (e *Engine) Query(text string, bounded bool, limit int) Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var matches []fulltext.Match[string]
	if bounded {
		matches = e.index.ScoreBounded(text)
	} else {
		matches = e.index.Score(text)
	}
	total := len(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return Result{
		Matches:        matches,
		TotalHits:      total,
		Representation: e.repr,
		Generation:     e.generation,
	}
}

// Convert rebuilds the index in the target representation. Both layouts rank
// identically, so the generation is unchanged. Converting to the current
// representation is a no-op and reports false.
func (e *Engine) Convert(to Representation) (bool, error) {
	if _, err := ParseRepresentation(string(to)); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if to == e.repr {
		return false, nil
	}
	start := time.Now()
	switch src := e.index.(type) {
	case *fulltext.InvertedIndex[string]:
		e.index = fulltext.ToMerged(src)
	case *fulltext.MergedIndex[string]:
		e.index = fulltext.ToInverted(src)
	default:
		return false, fmt.Errorf("%w: cannot convert %T", apperrors.ErrInternal, src)
	}
	from := e.repr
	e.repr = to
	if e.metrics != nil {
		e.metrics.ConversionsTotal.WithLabelValues(string(to)).Inc()
	}
	e.logger.Info("index converted",
		"from", from,
		"to", to,
		"duration", time.Since(start),
		"generation", e.generation,
	)
	return true, nil
}

func (e *Engine) Representation() Representation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.repr
}

// Epoch identifies this engine instance. Generations restart at zero with
// every new engine, so a generation only names a state within one epoch.
func (e *Engine) Epoch() string {
	return e.epoch
}

// Generation increases on every insert that changes the index. Cached results
// are only valid for the epoch and generation they were computed at.
func (e *Engine) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Stats reports the index size and refreshes the size gauges.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	s := Stats{
		Stats:          e.index.Stats(),
		Depth:          e.index.Depth(),
		Representation: e.repr,
		Epoch:          e.epoch,
		Generation:     e.generation,
	}
	e.mu.RUnlock()
	if e.metrics != nil {
		e.metrics.IndexKeys.Set(float64(s.Keys))
		e.metrics.IndexGrams.Set(float64(s.Grams))
		e.metrics.IndexPairs.Set(float64(s.Pairs))
	}
	return s
}

// StartStatsLoop refreshes the size gauges every interval until ctx ends.
func (e *Engine) StartStatsLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		var last uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if gen := e.Generation(); gen != last {
					s := e.Stats()
					last = gen
					e.logger.Debug("index stats refreshed", "keys", s.Keys, "grams", s.Grams, "pairs", s.Pairs)
				}
			}
		}
	}()
}

// Package handler exposes query serving and index administration over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/tracing"
)

// Searcher is implemented by executor.Executor.
type Searcher interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Result, error)
	Epoch() string
	Generation() uint64
}

// Admin is implemented by indexer.Engine.
type Admin interface {
	Stats() indexer.Stats
	Representation() indexer.Representation
	Convert(to indexer.Representation) (bool, error)
}

// Tracker is implemented by analytics.Collector.
type Tracker interface {
	Track(event analytics.QueryEvent)
}

// Options holds the optional collaborators. A nil Cache disables caching, a
// nil Tracker disables query analytics and a nil AdminGuard leaves the admin
// routes open.
type Options struct {
	AdminGuard       func(http.Handler) http.Handler
	Cache            *cache.QueryCache
	Tracker          Tracker
	Metrics          *metrics.Metrics
	DefaultLimit     int
	MaxResults       int
	BoundedByDefault bool
}

type Handler struct {
	searcher Searcher
	admin    Admin
	opts     Options
	logger   *slog.Logger
}

func New(searcher Searcher, admin Admin, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	return &Handler{
		searcher: searcher,
		admin:    admin,
		opts:     opts,
		logger:   slog.Default().With("component", "query-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/query", h.Query)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.Handle("POST /api/v1/admin/convert", h.guarded(h.Convert))
	mux.Handle("POST /api/v1/cache/invalidate", h.guarded(h.CacheInvalidate))
}

func (h *Handler) guarded(fn http.HandlerFunc) http.Handler {
	if h.opts.AdminGuard == nil {
		return fn
	}
	return h.opts.AdminGuard(fn)
}

type queryResponse struct {
	*executor.Result
	CacheHit  bool  `json:"cache_hit"`
	LatencyUs int64 `json:"latency_us"`
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	req := executor.Request{
		Text:    params.Get("q"),
		Bounded: h.opts.BoundedByDefault,
		Limit:   h.opts.DefaultLimit,
	}
	if s := params.Get("bounded"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "bounded must be a boolean")
			return
		}
		req.Bounded = b
	}
	if s := params.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		req.Limit = min(n, h.opts.MaxResults)
	}

	var (
		result   *executor.Result
		cacheHit bool
		err      error
	)
	if h.opts.Cache != nil && req.Text != "" {
		// One entry per query serves every limit up to MaxResults.
		full := req
		full.Limit = h.opts.MaxResults
		version := cache.Version{Epoch: h.searcher.Epoch(), Generation: h.searcher.Generation()}
		cacheCtx, span := tracing.StartChildSpan(ctx, "query.cache")
		result, cacheHit, err = h.opts.Cache.GetOrCompute(cacheCtx, full, version, func(ctx context.Context) (*executor.Result, error) {
			return h.searcher.Execute(ctx, full)
		})
		span.SetAttr("hit", cacheHit)
		span.End()
	} else {
		result, err = h.searcher.Execute(ctx, req)
	}
	if err != nil {
		log.Error("query failed", "query", req.Text, "error", err)
		if h.opts.Metrics != nil {
			h.opts.Metrics.QueriesTotal.WithLabelValues(strconv.FormatBool(req.Bounded), "error").Inc()
		}
		h.writeError(w, apperrors.HTTPStatusCode(err), "query failed")
		return
	}

	// Cached results may have been computed for a differently spelled query
	// that normalizes alike; answer with the caller's own text.
	resp := *result
	resp.Query = req.Text
	if len(resp.Matches) > req.Limit {
		resp.Matches = resp.Matches[:req.Limit]
	}
	if cacheHit {
		resp.Representation = string(h.admin.Representation())
	}

	latency := time.Since(start)
	h.observe(&resp, cacheHit, latency)
	if h.opts.Tracker != nil && req.Text != "" {
		event := analytics.NewQueryEvent(req.Text, req.Bounded, resp.TotalHits, len(resp.Matches))
		event.Representation = resp.Representation
		event.LatencyMicros = latency.Microseconds()
		event.CacheHit = cacheHit
		event.RequestID = middleware.GetRequestID(r)
		h.opts.Tracker.Track(event)
	}
	log.Debug("query served",
		"query", req.Text,
		"bounded", req.Bounded,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Matches),
		"cache_hit", cacheHit,
		"latency", latency,
	)
	h.writeJSON(w, http.StatusOK, queryResponse{Result: &resp, CacheHit: cacheHit, LatencyUs: latency.Microseconds()})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.admin.Stats())
}

// Convert rebuilds the index in the representation named by ?to=. Rankings
// do not change, so cached results are kept.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	to, err := indexer.ParseRepresentation(r.URL.Query().Get("to"))
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	converted, err := h.admin.Convert(to)
	if err != nil {
		h.logger.Error("conversion failed", "to", to, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "conversion failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"converted":      converted,
		"representation": to,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.opts.Cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	n, err := h.opts.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": n})
}

func (h *Handler) observe(res *executor.Result, cacheHit bool, latency time.Duration) {
	m := h.opts.Metrics
	if m == nil || res.Query == "" {
		return
	}
	resultType := "hit"
	if res.TotalHits == 0 {
		resultType = "zero_result"
	}
	cacheStatus := "miss"
	switch {
	case h.opts.Cache == nil:
		cacheStatus = "disabled"
	case cacheHit:
		cacheStatus = "hit"
	}
	m.QueriesTotal.WithLabelValues(strconv.FormatBool(res.Bounded), resultType).Inc()
	m.QueryLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	m.QueryMatches.Observe(float64(len(res.Matches)))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

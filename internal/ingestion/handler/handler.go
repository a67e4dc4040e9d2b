// Package handler exposes entry ingestion over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/metrics"
)

// maxBodyBytes leaves room for JSON escaping of a maximum-length text.
const maxBodyBytes = 4 * validator.MaxTextLength

// Ingester is implemented by publisher.Publisher.
type Ingester interface {
	Ingest(ctx context.Context, req *ingestion.EntryRequest) (*ingestion.EntryResponse, error)
}

type Handler struct {
	ingester Ingester
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Handler; m may be nil.
func New(ingester Ingester, m *metrics.Metrics) *Handler {
	return &Handler{
		ingester: ingester,
		metrics:  m,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

// Register mounts the ingestion routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/entries", h.Ingest)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.EntryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.reject("decode")
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateEntryRequest(&req); err != nil {
		h.reject("validation")
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.ingester.Ingest(ctx, &req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"key", req.Key,
			"error", err,
			"status_code", statusCode,
		)
		message := "ingestion failed"
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			message = appErr.Message
		}
		h.writeError(w, statusCode, message)
		return
	}
	log.Info("entry accepted",
		"key", resp.Key,
		"status", resp.Status,
		"bounded", req.Bounded,
	)
	h.writeJSON(w, statusFor(resp.Status), resp)
}

func statusFor(entryStatus string) int {
	switch entryStatus {
	case ingestion.StatusQueued:
		return http.StatusAccepted
	case ingestion.StatusIndexed:
		return http.StatusCreated
	default:
		return http.StatusOK
	}
}

func (h *Handler) reject(reason string) {
	if h.metrics != nil {
		h.metrics.EntriesRejectedTotal.WithLabelValues(reason).Inc()
	}
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

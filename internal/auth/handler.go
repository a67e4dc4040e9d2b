package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/auth/apikey"
)

// KeyManager is implemented by apikey.Store.
type KeyManager interface {
	CreateKey(ctx context.Context, name string, expiresAt *time.Time) (string, *apikey.KeyInfo, error)
	ListKeys(ctx context.Context) ([]apikey.KeyInfo, error)
	RevokeKey(ctx context.Context, id string) error
}

// Handler manages API keys over HTTP. Every route requires a valid key.
type Handler struct {
	keys   KeyManager
	guard  func(http.Handler) http.Handler
	logger *slog.Logger
}

func NewHandler(keys KeyManager, guard func(http.Handler) http.Handler) *Handler {
	return &Handler{
		keys:   keys,
		guard:  guard,
		logger: slog.Default().With("component", "apikey-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/v1/admin/keys", h.guard(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/v1/admin/keys", h.guard(http.HandlerFunc(h.List)))
	mux.Handle("DELETE /api/v1/admin/keys/{id}", h.guard(http.HandlerFunc(h.Revoke)))
}

type createRequest struct {
	Name      string `json:"name"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

type createResponse struct {
	Key string `json:"key"`
	*apikey.KeyInfo
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "expires_in must be a positive duration such as 720h")
			return
		}
		t := time.Now().Add(d).UTC()
		expiresAt = &t
	}
	raw, info, err := h.keys.CreateKey(r.Context(), req.Name, expiresAt)
	if err != nil {
		h.logger.Error("creating api key failed", "error", err)
		writeError(w, http.StatusInternalServerError, "creating api key failed")
		return
	}
	if caller := KeyInfoFromContext(r.Context()); caller != nil {
		h.logger.Info("api key issued", "id", info.ID, "issued_by", caller.ID)
	}
	writeJSON(w, http.StatusCreated, createResponse{Key: raw, KeyInfo: info})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		h.logger.Error("listing api keys failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing api keys failed")
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	err := h.keys.RevokeKey(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, apikey.ErrNotFound):
		writeError(w, http.StatusNotFound, "api key not found")
	default:
		h.logger.Error("revoking api key failed", "error", err)
		writeError(w, http.StatusInternalServerError, "revoking api key failed")
	}
}

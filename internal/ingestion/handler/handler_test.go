package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/metrics"
)

type stubIngester struct {
	resp *ingestion.EntryResponse
	err  error
	got  *ingestion.EntryRequest
}

func (s *stubIngester) Ingest(_ context.Context, req *ingestion.EntryRequest) (*ingestion.EntryResponse, error) {
	s.got = req
	return s.resp, s.err
}

func serve(t *testing.T, ing Ingester, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	New(ing, metrics.New(prometheus.NewRegistry())).Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/entries", strings.NewReader(body)))
	return rec
}

func TestIngestStatusCodes(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{ingestion.StatusQueued, http.StatusAccepted},
		{ingestion.StatusIndexed, http.StatusCreated},
		{ingestion.StatusDuplicate, http.StatusOK},
		{ingestion.StatusNoGrams, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			ing := &stubIngester{resp: &ingestion.EntryResponse{Key: "69", Status: tt.status}}
			rec := serve(t, ing, `{"key":"69","text":"boof","bounded":true}`)
			assert.Equal(t, tt.want, rec.Code)

			var resp ingestion.EntryResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.True(t, ing.got.Bounded)
		})
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	ing := &stubIngester{}

	rec := serve(t, ing, `{"key":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, ing, `{"key":"k","text":"t","title":"unknown field"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, ing, `{"key":"","text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body.Fields, "key")
	assert.Contains(t, body.Fields, "text")
	assert.Nil(t, ing.got, "invalid requests never reach the ingester")
}

func TestIngestMapsErrors(t *testing.T) {
	ing := &stubIngester{err: apperrors.New(apperrors.ErrIdempotencyConflict, http.StatusConflict, "idempotency key was used for a different entry")}
	rec := serve(t, ing, `{"key":"k","text":"text","idempotency_key":"i"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "different entry")

	ing = &stubIngester{err: apperrors.ErrUnavailable}
	rec = serve(t, ing, `{"key":"k","text":"text"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "ingestion failed")
}

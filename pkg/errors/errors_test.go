package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "brew"), http.StatusTeapot},
		{"invalid helper", Invalid("limit %d", -1), http.StatusBadRequest},
		{"wrapped conflict", fmt.Errorf("save: %w", ErrIdempotencyConflict), http.StatusConflict},
		{"representation", ErrUnknownRepresentation, http.StatusBadRequest},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"timeout", fmt.Errorf("query: %w", ErrTimeout), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Invalid("text is required")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: text is required", err.Error())
}

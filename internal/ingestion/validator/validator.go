// Package validator checks entry requests before they reach the entry log or
// the index, and returns per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/ingestion"
)

const (
	MaxKeyLength            = 512
	MaxTextLength           = 64 << 10
	MaxIdempotencyKeyLength = 255
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateEntryRequest checks key, text and idempotency key limits. Lengths
// are in bytes.
func ValidateEntryRequest(req *ingestion.EntryRequest) error {
	errs := make(map[string]string)

	switch {
	case strings.TrimSpace(req.Key) == "":
		errs["key"] = "key is required"
	case len(req.Key) > MaxKeyLength:
		errs["key"] = fmt.Sprintf("key must be at most %d bytes", MaxKeyLength)
	case !utf8.ValidString(req.Key):
		errs["key"] = "key must be valid UTF-8"
	}

	switch {
	case strings.TrimSpace(req.Text) == "":
		errs["text"] = "text is required and must not be blank"
	case len(req.Text) > MaxTextLength:
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", MaxTextLength)
	case !utf8.ValidString(req.Text):
		errs["text"] = "text must be valid UTF-8"
	}

	if len(req.IdempotencyKey) > MaxIdempotencyKeyLength {
		errs["idempotency_key"] = fmt.Sprintf("idempotency key must be at most %d bytes", MaxIdempotencyKeyLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

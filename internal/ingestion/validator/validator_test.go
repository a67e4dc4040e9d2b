package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/ingestion"
)

func TestValidateEntryRequest(t *testing.T) {
	tests := []struct {
		name   string
		req    ingestion.EntryRequest
		fields []string
	}{
		{"valid", ingestion.EntryRequest{Key: "69", Text: "boof"}, nil},
		{"valid bounded with idempotency", ingestion.EntryRequest{Key: "k", Text: "zed", Bounded: true, IdempotencyKey: "abc"}, nil},
		{"missing key", ingestion.EntryRequest{Text: "boof"}, []string{"key"}},
		{"blank key", ingestion.EntryRequest{Key: "  ", Text: "boof"}, []string{"key"}},
		{"long key", ingestion.EntryRequest{Key: strings.Repeat("k", MaxKeyLength+1), Text: "boof"}, []string{"key"}},
		{"blank text", ingestion.EntryRequest{Key: "k", Text: "\t\n"}, []string{"text"}},
		{"long text", ingestion.EntryRequest{Key: "k", Text: strings.Repeat("x", MaxTextLength+1)}, []string{"text"}},
		{"invalid utf8", ingestion.EntryRequest{Key: "k", Text: "ab\xffcd"}, []string{"text"}},
		{"long idempotency key", ingestion.EntryRequest{Key: "k", Text: "t", IdempotencyKey: strings.Repeat("i", 256)}, []string{"idempotency_key"}},
		{"everything wrong", ingestion.EntryRequest{IdempotencyKey: strings.Repeat("i", 256)}, []string{"idempotency_key", "key", "text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntryRequest(&tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			got := make([]string, 0, len(verr.Fields))
			for f := range verr.Fields {
				got = append(got, f)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestValidationErrorMessageIsStable(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"text": "b", "key": "a"}}
	assert.Equal(t, "key: a; text: b", err.Error())
}

func TestMaxLengthAccepted(t *testing.T) {
	req := ingestion.EntryRequest{
		Key:  strings.Repeat("k", MaxKeyLength),
		Text: strings.Repeat("x", MaxTextLength),
	}
	assert.NoError(t, ValidateEntryRequest(&req))
}

package apikey

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/postgres/postgrestest"
)

func TestHashKey(t *testing.T) {
	assert.Equal(t, HashKey("abc"), HashKey("abc"))
	assert.NotEqual(t, HashKey("abc"), HashKey("abd"))
	assert.Len(t, HashKey("abc"), 64)
}

func TestGenerateRawKey(t *testing.T) {
	a, err := generateRawKey()
	require.NoError(t, err)
	b, err := generateRawKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a, "fg_"))
	assert.NotEqual(t, a, b)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := postgrestest.Connect(t)
	s := NewStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	_, err := db.DB.Exec(`TRUNCATE api_keys`)
	require.NoError(t, err)
	return s
}

func TestKeyLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	raw, info, err := s.CreateKey(ctx, "ops", nil)
	require.NoError(t, err)

	got, err := s.Validate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, info.ID, got.ID)
	assert.Equal(t, "ops", got.Name)

	_, err = s.Validate(ctx, raw+"x")
	assert.ErrorIs(t, err, ErrInvalidKey)

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, s.RevokeKey(ctx, info.ID))
	_, err = s.Validate(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, s.RevokeKey(ctx, info.ID), ErrNotFound)
	assert.ErrorIs(t, s.RevokeKey(ctx, "not-a-uuid"), ErrNotFound)
}

func TestExpiredKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	expiry := time.Now().Add(time.Hour)
	raw, _, err := s.CreateKey(ctx, "temp", &expiry)
	require.NoError(t, err)
	_, err = s.Validate(ctx, raw)
	require.NoError(t, err)

	s.now = func() time.Time { return expiry.Add(time.Minute) }
	_, err = s.Validate(ctx, raw)
	assert.ErrorIs(t, err, ErrExpiredKey)
}

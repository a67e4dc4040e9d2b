package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int, window time.Duration) (*Limiter, *time.Time) {
	l := New(limit, window)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowExhaustsAndRefills(t *testing.T) {
	l, now := newTestLimiter(3, 3*time.Second)

	for range 3 {
		assert.True(t, l.Allow("10.0.0.1"))
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "keys are independent")

	*now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	*now = now.Add(time.Hour)
	for range 3 {
		assert.True(t, l.Allow("10.0.0.1"), "refill is capped at the limit")
	}
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestResetAndSweep(t *testing.T) {
	l, now := newTestLimiter(1, time.Second)
	l.Allow("a")
	assert.False(t, l.Allow("a"))
	l.Reset("a")
	assert.True(t, l.Allow("a"))

	l.Allow("b")
	*now = now.Add(5 * time.Second)
	l.sweep()
	assert.Zero(t, l.Len())
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, New(10, time.Second).RetryAfter())
}

func TestNonPositiveLimitRejects(t *testing.T) {
	l, _ := newTestLimiter(0, time.Second)
	assert.False(t, l.Allow("a"))
	assert.Equal(t, time.Second, l.RetryAfter())
}

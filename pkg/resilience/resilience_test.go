package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestCircuitBreakerTripsAndRecovers(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	now := time.Unix(1000, 0)
	cb.now = func() time.Time { return now }

	fail := func() error { return errBoom }
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	calls := 0
	err := cb.Execute(func() error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)

	now = now.Add(time.Minute)
	require.NoError(t, cb.Execute(func() error { calls++; return nil }))
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	now := time.Unix(0, 0)
	cb.now = func() time.Time { return now }

	cb.Execute(func() error { return errBoom })
	now = now.Add(time.Second)
	cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreakerIsSuccessful(t *testing.T) {
	miss := errors.New("miss")
	cb := NewCircuitBreaker("cache", CircuitBreakerConfig{
		FailureThreshold: 1,
		IsSuccessful:     func(err error) bool { return err == nil || errors.Is(err, miss) },
	})
	for range 5 {
		assert.ErrorIs(t, cb.Execute(func() error { return miss }), miss)
	}
	assert.Equal(t, StateClosed, cb.State())

	cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.State())
	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	var attempts int32
	err := Retry(context.Background(), "publish", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(context.Context) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, attempts)
}

func TestRetryExhausted(t *testing.T) {
	err := Retry(context.Background(), "publish", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func(context.Context) error {
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "all 2 attempts failed")
}

func TestRetryPermanentStopsImmediately(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "publish", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		return Permanent(errBoom)
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Retry(ctx, "publish", RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}, func(context.Context) error {
		cancel()
		return errBoom
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeDelayCapped(t *testing.T) {
	cfg := withRetryDefaults(RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, JitterFraction: 0})
	assert.Equal(t, time.Second, computeDelay(1, cfg))
	assert.Equal(t, 2*time.Second, computeDelay(2, cfg))
	assert.Equal(t, 3*time.Second, computeDelay(5, cfg))
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = WithTimeout(context.Background(), time.Second, "fast", func(context.Context) error { return errBoom })
	assert.ErrorIs(t, err, errBoom)

	err = WithTimeout(context.Background(), 0, "direct", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestWithTimeoutParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	go func() {
		<-started
		cancel()
	}()
	err := WithTimeout(ctx, time.Minute, "query", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, context.DeadlineExceeded, "the caller left before the limit")
	assert.Contains(t, err.Error(), "query")
}

package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a context that ends after timeout or when ctx
// ends, and returns fn's error if fn finishes first. Otherwise it returns at
// once with an error wrapping context.DeadlineExceeded when the timeout
// fired, or wrapping ctx's error when the caller went away first. fn keeps
// running if it ignores its context and its result is dropped. A
// non-positive timeout calls fn directly under ctx.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
	}

	select {
	case err := <-done:
		return err
	default:
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
}

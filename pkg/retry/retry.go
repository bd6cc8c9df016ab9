// Package retry re-invokes an operation until it succeeds or an attempt budget runs out.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidAttempts is returned when a Policy allows fewer than one attempt.
var ErrInvalidAttempts = errors.New("retry: max attempts must be at least 1")

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the total number of invocations allowed, including the first.
	MaxAttempts int

	// Delay is a fixed wait between attempts. Zero retries immediately.
	Delay time.Duration

	// Retryable reports whether an error may be retried.
	// A nil Retryable treats every error as retryable.
	Retryable func(err error) bool

	// OnRetry is called after a failed attempt that will be retried.
	// attempt is the 1-based number of the attempt that failed.
	OnRetry func(attempt int, err error)
}

// Do invokes op until it returns a nil error or the policy gives up.
//
// A successful result is returned as soon as it is produced. When every allowed
// attempt fails, the error from the last attempt is returned unchanged. Errors the
// policy considers non-retryable are returned after the attempt that produced them.
// If ctx is done before a retry, the most recent error from op is returned.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, ErrInvalidAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			if p.OnRetry != nil {
				p.OnRetry(attempt-1, lastErr)
			}
			if !wait(ctx, p.Delay) {
				return zero, lastErr
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
	}

	return zero, lastErr
}

// wait blocks for d or until ctx is done. It reports whether the caller may continue.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

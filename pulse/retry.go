package pulse

import (
	"context"
	"time"

	"github.com/teranos/dropwatch/errors"
)

// DefaultRetryAttempts is the per-stage attempt budget
const DefaultRetryAttempts = 3

// DefaultRetryDelay is the fixed pause between attempts
const DefaultRetryDelay = 500 * time.Millisecond

// RetryPolicy is a fixed-delay retry budget
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy returns 3 attempts 500ms apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultRetryAttempts, Delay: DefaultRetryDelay}
}

// Validate rejects MaxAttempts < 1 and negative delays
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.WithHint(
			errors.NewInvalidRequestError("max attempts must be >= 1, got %d", p.MaxAttempts),
			"set retry.max_attempts to 1 or more")
	}
	if p.Delay < 0 {
		return errors.NewInvalidRequestError("retry delay must be >= 0, got %s", p.Delay)
	}
	return nil
}

// FailFunc observes a failed attempt
type FailFunc func(attempt int, err error)

// Retry runs op up to policy.MaxAttempts times, sleeping policy.Delay
// between attempts. Attempts are 1-indexed. It returns the first
// successful value together with the attempt that produced it.
//
// When every attempt fails the last error is returned, marked with
// ErrRetriesExhausted. Cancellation during a delay returns ctx.Err().
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context, attempt int) (T, error), onFail FailFunc) (T, int, error) {
	var zero T
	if err := policy.Validate(); err != nil {
		return zero, 0, err
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, err
		}

		v, err := op(ctx, attempt)
		if err == nil {
			return v, attempt, nil
		}
		lastErr = err
		if onFail != nil {
			onFail(attempt, err)
		}

		if attempt == policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(policy.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, attempt, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, policy.MaxAttempts, errors.Mark(
		errors.Wrapf(lastErr, "failed after %d attempts", policy.MaxAttempts),
		errors.ErrRetriesExhausted)
}

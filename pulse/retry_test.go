package pulse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/dropwatch/errors"
)

func TestRetryPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultRetryPolicy().Validate())
	assert.NoError(t, RetryPolicy{MaxAttempts: 1}.Validate())
	assert.True(t, errors.IsInvalidRequestError(RetryPolicy{MaxAttempts: 0}.Validate()))
	assert.True(t, errors.IsInvalidRequestError(RetryPolicy{MaxAttempts: 2, Delay: -time.Millisecond}.Validate()))
}

func TestRetry_SucceedsOnThirdAttempt(t *testing.T) {
	var failed []int
	start := time.Now()
	v, attempt, err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, Delay: 50 * time.Millisecond},
		func(_ context.Context, attempt int) (string, error) {
			if attempt < 3 {
				return "", errors.Newf("click intercepted on attempt %d", attempt)
			}
			return "added", nil
		}, func(attempt int, err error) {
			failed = append(failed, attempt)
		})

	require.NoError(t, err)
	assert.Equal(t, "added", v)
	assert.Equal(t, 3, attempt)
	assert.Equal(t, []int{1, 2}, failed)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestRetry_Exhausted(t *testing.T) {
	calls := 0
	_, attempt, err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3},
		func(_ context.Context, attempt int) (struct{}, error) {
			calls++
			return struct{}{}, errors.Newf("attempt %d failed", attempt)
		}, nil)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, attempt)
	assert.True(t, errors.Is(err, errors.ErrRetriesExhausted))
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Contains(t, err.Error(), "attempt 3 failed")
}

func TestRetry_SingleAttemptDoesNotSleep(t *testing.T) {
	start := time.Now()
	_, _, err := Retry(context.Background(), RetryPolicy{MaxAttempts: 1, Delay: time.Hour},
		func(context.Context, int) (int, error) {
			return 0, errors.New("nope")
		}, nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRetry_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, attempt, err := Retry(ctx, RetryPolicy{MaxAttempts: 5, Delay: time.Hour},
		func(context.Context, int) (int, error) {
			return 0, errors.New("nope")
		}, nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, attempt)
	assert.False(t, errors.Is(err, errors.ErrRetriesExhausted))
}

func TestRetry_InvalidPolicy(t *testing.T) {
	_, _, err := Retry(context.Background(), RetryPolicy{}, func(context.Context, int) (int, error) {
		t.Fatal("op must not run")
		return 0, nil
	}, nil)
	assert.True(t, errors.IsInvalidRequestError(err))
}

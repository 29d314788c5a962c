package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesSentinel(t *testing.T) {
	wrapped := Wrap(ErrTimeout, "monitoring product page")

	assert.Contains(t, wrapped.Error(), "monitoring product page")
	assert.True(t, Is(wrapped, ErrTimeout))
	assert.False(t, Is(wrapped, ErrActionFailed))
}

func TestMarkedConstructors(t *testing.T) {
	t.Run("invalid request", func(t *testing.T) {
		err := NewInvalidRequestError("timing.check_interval_ms must be > 0, got %d", 0)
		assert.True(t, IsInvalidRequestError(err))
		assert.Equal(t, "timing.check_interval_ms must be > 0, got 0", err.Error())
	})

	t.Run("not found", func(t *testing.T) {
		err := NewNotFoundError("no element matched %q", "button.buy-now-btn")
		assert.True(t, IsNotFoundError(err))
		assert.False(t, IsInvalidRequestError(err))
	})

	t.Run("action failed survives wrapping", func(t *testing.T) {
		err := Wrap(NewActionFailedError("click rejected"), "acquire")
		assert.True(t, Is(err, ErrActionFailed))
	})

	t.Run("nil is not classified", func(t *testing.T) {
		assert.False(t, IsNotFoundError(nil))
		assert.False(t, IsInvalidRequestError(nil))
	})
}

func TestWithHint(t *testing.T) {
	err := WithHint(New("lead must be >= 0"), "omit timing.lead_seconds for the default")

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "omit timing.lead_seconds for the default", hints[0])
}

func TestErrorChaining(t *testing.T) {
	err := Wrap(ErrRetriesExhausted, "add to cart")
	err = WithDetail(err, "attempts: 3")
	err = Wrap(err, "acquiring")

	assert.True(t, Is(err, ErrRetriesExhausted))
	assert.Contains(t, err.Error(), "acquiring")
	assert.Contains(t, GetAllDetails(err), "attempts: 3")
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, WithHint(nil, "hint"))
}

func ExampleWrap() {
	err := Wrap(ErrTimeout, "no stock signal")
	fmt.Println(err)
	// Output: no stock signal: operation timed out
}

package pulse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClock allows controlling time in tests
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(now time.Time) *mockClock {
	return &mockClock{now: now}
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Given: Limiter configured for 10 reloads/minute
// When: Making exactly 10 reloads within 1 minute
// Then: All allowed, 11th rejected
func TestLimiter_AtLimit(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(10, clock.Now)

	for i := 0; i < 10; i++ {
		assert.NoError(t, limiter.Allow(), "reload %d", i+1)
		clock.Advance(100 * time.Millisecond)
	}
	assert.Error(t, limiter.Allow(), "reload 11 exceeds the window")
}

// Given: A full window
// When: The oldest event slides out
// Then: Capacity returns one slot at a time
func TestLimiter_SlidingWindow(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(3, clock.Now)

	require.NoError(t, limiter.Allow())
	clock.Advance(20 * time.Second)
	require.NoError(t, limiter.Allow())
	clock.Advance(20 * time.Second)
	require.NoError(t, limiter.Allow())
	assert.Error(t, limiter.Allow())

	clock.Advance(21 * time.Second)
	assert.NoError(t, limiter.Allow(), "first event expired")
	assert.Error(t, limiter.Allow())

	inWindow, remaining := limiter.Stats()
	assert.Equal(t, 3, inWindow)
	assert.Equal(t, 0, remaining)
}

func TestLimiter_DisabledWhenNonPositive(t *testing.T) {
	limiter := NewLimiter(0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, limiter.Allow())
	}
	_, remaining := limiter.Stats()
	assert.Equal(t, -1, remaining)
}

func TestLimiter_Reset(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(1, clock.Now)
	require.NoError(t, limiter.Allow())
	require.Error(t, limiter.Allow())

	limiter.Reset()
	assert.NoError(t, limiter.Allow())
}

func TestLimiter_WaitCancelled(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(1, clock.Now)
	require.NoError(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.Wait(ctx), context.DeadlineExceeded)
}

func TestLimiter_WaitReturnsOnceWindowFrees(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewLimiterWithClock(1, clock.Now)
	require.NoError(t, limiter.Allow())

	go func() {
		time.Sleep(30 * time.Millisecond)
		clock.Advance(time.Minute)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, limiter.Wait(ctx))
}

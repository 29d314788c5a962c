package pulse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teranos/dropwatch/errors"
)

// Limiter caps actions per sliding one-minute window. The listing watcher
// uses it to keep store page reloads under a politeness cap.
type Limiter struct {
	maxPerMinute int
	window       time.Duration
	mu           sync.Mutex
	events       []time.Time
	timeNow      func() time.Time // Injectable for testing
}

// NewLimiter creates a limiter on the real clock. maxPerMinute <= 0
// disables limiting.
func NewLimiter(maxPerMinute int) *Limiter {
	return NewLimiterWithClock(maxPerMinute, time.Now)
}

// NewLimiterWithClock creates a limiter with an injectable clock
func NewLimiterWithClock(maxPerMinute int, timeNow func() time.Time) *Limiter {
	capacity := maxPerMinute
	if capacity < 0 {
		capacity = 0
	}
	return &Limiter{
		maxPerMinute: maxPerMinute,
		window:       time.Minute,
		events:       make([]time.Time, 0, capacity),
		timeNow:      timeNow,
	}
}

// Allow records an event if the window has room
func (l *Limiter) Allow() error {
	if l.maxPerMinute <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timeNow()
	l.removeExpired(now)

	if len(l.events) >= l.maxPerMinute {
		err := errors.Newf("rate limit exceeded: %d events in the last minute (limit: %d)",
			len(l.events), l.maxPerMinute)
		err = errors.WithDetail(err, fmt.Sprintf("Oldest event expires in %s", l.events[0].Add(l.window).Sub(now).Round(time.Millisecond)))
		return err
	}

	l.events = append(l.events, now)
	return nil
}

// Wait blocks until an event is allowed or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if err := l.Allow(); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryAfter()):
		}
	}
}

// retryAfter is the time until the oldest event leaves the window, capped
// so a Wait observes cancellation promptly
func (l *Limiter) retryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	wait := 100 * time.Millisecond
	if len(l.events) > 0 {
		if d := l.events[0].Add(l.window).Sub(l.timeNow()); d > 0 && d < wait {
			wait = d
		}
	}
	return wait
}

// removeExpired drops events outside the window. Must be called with lock held.
func (l *Limiter) removeExpired(now time.Time) {
	cutoff := now.Add(-l.window)

	expired := 0
	for _, t := range l.events {
		if !t.After(cutoff) {
			expired++
		} else {
			break
		}
	}
	l.events = l.events[expired:]
}

// Reset clears the window
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = l.events[:0]
}

// Stats returns events in the current window and remaining capacity
func (l *Limiter) Stats() (inWindow int, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removeExpired(l.timeNow())
	inWindow = len(l.events)
	if l.maxPerMinute <= 0 {
		return inWindow, -1
	}
	remaining = l.maxPerMinute - inWindow
	if remaining < 0 {
		remaining = 0
	}
	return inWindow, remaining
}

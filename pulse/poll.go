// Package pulse provides the timing primitives the acquisition pipeline is
// built from: a bounded polling loop, a fixed-delay retrier, a sliding-window
// limiter and the progress emitter contract for live display.
package pulse

import (
	"context"
	"time"

	"github.com/teranos/dropwatch/errors"
)

// DefaultPollInterval is the pause between availability checks
const DefaultPollInterval = 100 * time.Millisecond

// DefaultMaxWait bounds the whole monitoring phase
const DefaultMaxWait = 300 * time.Second

// PollConfig bounds a polling loop
type PollConfig struct {
	Interval time.Duration // Pause between predicate calls
	MaxWait  time.Duration // Deadline measured from the first call
}

// DefaultPollConfig returns the monitoring defaults
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval: DefaultPollInterval,
		MaxWait:  DefaultMaxWait,
	}
}

// Validate rejects non-positive durations
func (c PollConfig) Validate() error {
	if c.Interval <= 0 {
		return errors.WithHint(
			errors.NewInvalidRequestError("poll interval must be > 0, got %s", c.Interval),
			"set timing.check_interval_ms to a positive value")
	}
	if c.MaxWait <= 0 {
		return errors.WithHint(
			errors.NewInvalidRequestError("max wait must be > 0, got %s", c.MaxWait),
			"set timing.max_wait_seconds to a positive value")
	}
	return nil
}

// Predicate reports whether the awaited condition holds
type Predicate func(ctx context.Context) (bool, error)

// Tick describes one poll iteration
type Tick struct {
	Count    int           // 1-indexed number of predicate calls so far
	Elapsed  time.Duration // Time since polling started
	Interval time.Duration
	Ready    bool  // The predicate succeeded on this tick
	Err      error // Predicate error on this tick, if any
}

// Rate is the observed predicate calls per second
func (t Tick) Rate() float64 {
	if t.Elapsed <= 0 {
		return 0
	}
	return float64(t.Count) / t.Elapsed.Seconds()
}

// TickFunc observes every tick, including the one that succeeds
type TickFunc func(Tick)

// Poll calls predicate until it returns true, the deadline passes, or ctx
// is cancelled.
//
// The deadline is relative to the start of polling and also bounds the
// context handed to predicate, so a blocking predicate cannot outlive it.
// Predicate errors count as "not yet true". Poll returns true on the tick
// where the predicate first succeeds, without sleeping again. A
// non-positive Interval falls back to DefaultPollInterval.
func Poll(ctx context.Context, predicate Predicate, cfg PollConfig, onTick TickFunc) bool {
	start := time.Now()
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	pctx, cancel := context.WithDeadline(ctx, start.Add(cfg.MaxWait))
	defer cancel()

	for count := 1; ; count++ {
		if ctx.Err() != nil {
			return false
		}

		ok, err := predicate(pctx)
		ready := err == nil && ok

		elapsed := time.Since(start)
		if onTick != nil {
			onTick(Tick{Count: count, Elapsed: elapsed, Interval: interval, Ready: ready, Err: err})
		}
		if ready {
			return true
		}

		remaining := cfg.MaxWait - elapsed
		if remaining <= 0 {
			return false
		}

		sleep := interval
		if sleep > remaining {
			sleep = remaining
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

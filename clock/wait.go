package clock

import (
	"context"
	"time"

	"github.com/teranos/dropwatch/errors"
)

const (
	// CoarseStep is the sleep while more than a second remains
	CoarseStep = time.Second
	// FineStep is the sleep inside the final second
	FineStep = 50 * time.Millisecond
)

// TargetMoment is a listing moment plus the lead time at which active
// polling should begin.
type TargetMoment struct {
	At   time.Time
	Lead time.Duration
}

// Validate checks lead >= 0 and that a moment is set
func (m TargetMoment) Validate() error {
	if m.At.IsZero() {
		return errors.NewInvalidRequestError("target moment is not set")
	}
	if m.Lead < 0 {
		return errors.WithHint(
			errors.NewInvalidRequestError("lead must be >= 0, got %s", m.Lead),
			"omit timing.lead_seconds to use the default")
	}
	return nil
}

// Start is the instant polling should begin
func (m TargetMoment) Start() time.Time {
	return m.At.Add(-m.Lead)
}

// RemainingFunc receives the time left before the wait ends
type RemainingFunc func(remaining time.Duration)

// WaitUntil blocks until c.Now() >= moment.At - moment.Lead.
//
// While more than a second remains it sleeps in CoarseStep increments;
// inside the final second it sleeps FineStep, never past the target.
// A start already in the past returns immediately. Cancellation returns
// ctx.Err().
func WaitUntil(ctx context.Context, c Clock, moment TargetMoment, onRemaining RemainingFunc) error {
	if err := moment.Validate(); err != nil {
		return err
	}
	start := moment.Start()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		remaining := start.Sub(c.Now())
		if remaining <= 0 {
			return nil
		}
		if onRemaining != nil {
			onRemaining(remaining)
		}

		step := FineStep
		if remaining > time.Second {
			step = CoarseStep
		}
		if step > remaining {
			step = remaining
		}

		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

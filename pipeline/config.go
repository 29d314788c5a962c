package pipeline

import (
	"context"
	"time"

	"github.com/teranos/dropwatch/clock"
	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/pulse"
)

// Config is validated before a Pipeline is built
type Config struct {
	Target   *clock.TargetMoment // Optional; nil starts monitoring immediately
	Monitor  pulse.PollConfig
	Retry    pulse.RetryPolicy // Acquire retries
	Finalize pulse.RetryPolicy // Finalize attempts; zero value means one attempt

	// AllowFinalize is the safety flag. Unset, the run stops at
	// manual completion and Finalize is never called.
	AllowFinalize bool

	// StrictConfirm turns a failed confirmation into Failed(Confirming)
	StrictConfirm bool

	// StageTimeout bounds each action stage; zero means unbounded
	StageTimeout time.Duration

	// ProgressEvery logs a monitoring progress line every N ticks
	ProgressEvery int
}

// DefaultConfig returns conservative defaults: no target moment, safety
// flag unset.
func DefaultConfig() Config {
	return Config{
		Monitor:       pulse.DefaultPollConfig(),
		Retry:         pulse.DefaultRetryPolicy(),
		Finalize:      pulse.RetryPolicy{MaxAttempts: 1},
		StageTimeout:  time.Minute,
		ProgressEvery: 100,
	}
}

// Validate checks every bound the run depends on
func (c Config) Validate() error {
	if c.Target != nil {
		if err := c.Target.Validate(); err != nil {
			return errors.Wrap(err, "target")
		}
	}
	if err := c.Monitor.Validate(); err != nil {
		return errors.Wrap(err, "monitor")
	}
	if err := c.Retry.Validate(); err != nil {
		return errors.Wrap(err, "retry")
	}
	if c.Finalize != (pulse.RetryPolicy{}) {
		if err := c.Finalize.Validate(); err != nil {
			return errors.Wrap(err, "finalize")
		}
	}
	if c.StageTimeout < 0 {
		return errors.NewInvalidRequestError("stage timeout must be >= 0, got %s", c.StageTimeout)
	}
	return nil
}

// Actions are the target-specific operations a run sequences. Ready and
// Acquire are required; Finalize is required only with AllowFinalize.
type Actions struct {
	// Ready is polled while monitoring; errors count as "not ready"
	Ready func(ctx context.Context) (bool, error)

	// Signal describes what made Ready succeed
	Signal func() Signal

	// Acquire runs under the retry policy
	Acquire func(ctx context.Context) error

	// Confirm checks the acquired item is held
	Confirm func(ctx context.Context) (bool, error)

	// Prepare brings the page to the point where Finalize would act. It
	// runs whether or not finalizing is allowed.
	Prepare func(ctx context.Context) error

	// Finalize performs the irreversible action and reports its status
	Finalize func(ctx context.Context) (string, error)
}

func (a Actions) validate(allowFinalize bool) error {
	if a.Ready == nil {
		return errors.NewInvalidRequestError("actions: Ready is required")
	}
	if a.Acquire == nil {
		return errors.NewInvalidRequestError("actions: Acquire is required")
	}
	if allowFinalize && a.Finalize == nil {
		return errors.NewInvalidRequestError("actions: Finalize is required when finalizing is allowed")
	}
	return nil
}

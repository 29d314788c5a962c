package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/dropwatch/clock"
	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/logger"
	"github.com/teranos/dropwatch/pulse"
)

// Pipeline sequences one run. It is single-use: Run may be called once.
type Pipeline struct {
	cfg     Config
	actions Actions

	clock   clock.Clock
	emitter pulse.ProgressEmitter
	log     *zap.SugaredLogger

	runID      string
	targetKind string
	target     string

	out   Outcome
	entry time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithClock sets the clock used for the target wait
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithEmitter sets the progress sink
func WithEmitter(e pulse.ProgressEmitter) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.emitter = e
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithRunID overrides the generated run ID
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// WithTarget labels the run for history and summaries
func WithTarget(kind, target string) Option {
	return func(p *Pipeline) {
		p.targetKind = kind
		p.target = target
	}
}

// New validates cfg and actions and builds a Pipeline
func New(cfg Config, actions Actions, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pipeline config")
	}
	if err := actions.validate(cfg.AllowFinalize); err != nil {
		return nil, err
	}
	if cfg.Finalize == (pulse.RetryPolicy{}) {
		cfg.Finalize = pulse.RetryPolicy{MaxAttempts: 1}
	}

	p := &Pipeline{
		cfg:     cfg,
		actions: actions,
		clock:   clock.System{},
		emitter: pulse.NopEmitter{},
		log:     logger.ComponentLogger("pipeline"),
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(logger.FieldRunID, p.runID)
	return p, nil
}

// RunID identifies this run in logs and history
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run drives the pipeline to a terminal stage. It never returns a
// non-terminal outcome; panics inside stage actions become
// Failed(stage, Unexpected).
func (p *Pipeline) Run(ctx context.Context) (out Outcome) {
	ctx = logger.WithRunID(ctx, p.runID)
	now := time.Now()
	p.out = Outcome{
		RunID:          p.runID,
		TargetKind:     p.targetKind,
		Target:         p.target,
		Stage:          StageNotStarted,
		StageDurations: make(map[Stage]time.Duration),
		StartedAt:      now,
	}
	p.entry = now

	defer func() {
		if r := recover(); r != nil {
			p.fail(ReasonUnexpected, errors.Newf("panic: %v", r))
		}
		out = p.finish()
	}()

	if !p.waitForTarget(ctx) {
		return
	}
	if !p.advance(ctx, StageMonitoring) || !p.monitor(ctx) {
		return
	}
	if !p.advance(ctx, StageAcquiring) || !p.acquire(ctx) {
		return
	}
	if !p.advance(ctx, StageConfirming) || !p.confirm(ctx) {
		return
	}
	if !p.advance(ctx, StageFinalizing) || !p.finalize(ctx) {
		return
	}
	p.advance(ctx, StageDone)
	return
}

func (p *Pipeline) waitForTarget(ctx context.Context) bool {
	if p.cfg.Target == nil {
		return true
	}
	moment := *p.cfg.Target
	p.emitter.EmitStage(StageNotStarted.String(), fmt.Sprintf("waiting for %s (lead %s)",
		moment.At.Format(time.RFC3339), moment.Lead))
	logger.StageInfow(p.log, StageNotStarted.String(), "Waiting for target moment",
		"at", moment.At, "lead", moment.Lead)

	lastSecond := int64(-1)
	err := clock.WaitUntil(ctx, p.clock, moment, func(remaining time.Duration) {
		secs := int64(remaining / time.Second)
		if secs == lastSecond {
			return
		}
		lastSecond = secs
		p.emitter.EmitInfo(fmt.Sprintf("starting in %ds", secs))
	})
	if err != nil {
		p.fail(p.classify(ctx, err), err)
		return false
	}
	return true
}

func (p *Pipeline) monitor(ctx context.Context) bool {
	every := p.cfg.ProgressEvery
	onTick := func(t pulse.Tick) {
		p.out.Ticks = t.Count
		p.emitter.EmitTick(StageMonitoring.String(), t)
		if every > 0 && t.Count%every == 0 {
			logger.StageInfow(p.log, StageMonitoring.String(), "Still monitoring",
				logger.FieldTick, t.Count,
				logger.FieldElapsed, t.Elapsed.Round(time.Millisecond),
				"checks_per_sec", fmt.Sprintf("%.1f", t.Rate()))
		}
		if t.Err != nil {
			logger.StageDebugw(p.log, StageMonitoring.String(), "Readiness check errored",
				logger.FieldTick, t.Count, logger.FieldError, t.Err)
		}
	}

	if !pulse.Poll(ctx, p.actions.Ready, p.cfg.Monitor, onTick) {
		if err := ctx.Err(); err != nil {
			p.fail(p.classify(ctx, err), err)
			return false
		}
		p.fail(ReasonTimeout, errors.Mark(
			errors.Newf("not ready after %s (%d checks)", p.cfg.Monitor.MaxWait, p.out.Ticks),
			errors.ErrTimeout))
		return false
	}

	if p.actions.Signal != nil {
		p.out.Signal = p.actions.Signal()
	}
	logger.StageInfow(p.log, StageMonitoring.String(), "Target is ready",
		logger.FieldMatcher, p.out.Signal.MatcherID,
		logger.FieldEvidence, p.out.Signal.Evidence,
		logger.FieldTick, p.out.Ticks)
	return true
}

func (p *Pipeline) acquire(ctx context.Context) bool {
	sctx, cancel := p.stageContext(ctx)
	defer cancel()

	_, attempts, err := pulse.Retry(sctx, p.cfg.Retry, func(ctx context.Context, attempt int) (struct{}, error) {
		logger.StageDebugw(p.log, StageAcquiring.String(), "Acquire attempt", logger.FieldAttempt, attempt)
		return struct{}{}, p.actions.Acquire(ctx)
	}, func(attempt int, err error) {
		p.emitter.EmitError(StageAcquiring.String(), err)
		logger.StageWarnw(p.log, StageAcquiring.String(), "Acquire attempt failed",
			logger.FieldAttempt, attempt, logger.FieldError, err)
	})
	if err != nil {
		p.fail(p.classify(ctx, err), err)
		return false
	}
	logger.StageInfow(p.log, StageAcquiring.String(), "Acquired", logger.FieldAttempts, attempts)
	return true
}

func (p *Pipeline) confirm(ctx context.Context) bool {
	if p.actions.Confirm == nil {
		p.out.Message = "no confirmation check configured"
		return true
	}
	sctx, cancel := p.stageContext(ctx)
	defer cancel()

	ok, err := p.actions.Confirm(sctx)
	if ctx.Err() != nil {
		p.fail(ReasonCancelled, ctx.Err())
		return false
	}
	if err == nil && ok {
		p.out.Confirmed = true
		logger.StageInfow(p.log, StageConfirming.String(), "Acquisition confirmed")
		return true
	}

	if err == nil {
		err = errors.NewActionFailedError("confirmation indicators not found")
	}
	if p.cfg.StrictConfirm {
		p.fail(ReasonActionFailed, err)
		return false
	}
	p.out.Message = "proceeding unconfirmed: " + err.Error()
	p.emitter.EmitError(StageConfirming.String(), err)
	logger.StageWarnw(p.log, StageConfirming.String(), "Could not confirm, proceeding unconfirmed",
		logger.FieldError, err)
	return true
}

func (p *Pipeline) finalize(ctx context.Context) bool {
	if p.actions.Prepare != nil {
		sctx, cancel := p.stageContext(ctx)
		err := p.actions.Prepare(sctx)
		cancel()
		if err != nil {
			p.fail(p.classify(ctx, err), errors.Wrap(err, "prepare"))
			return false
		}
	}

	if !p.cfg.AllowFinalize {
		p.out.ManualCompletion = true
		p.out.Reason = ReasonManualCompletionRequired
		p.emitter.EmitInfo("ready for manual completion")
		logger.StageInfow(p.log, StageFinalizing.String(), "Finalize disabled, ready for manual completion")
		return true
	}

	sctx, cancel := p.stageContext(ctx)
	defer cancel()
	status, attempts, err := pulse.Retry(sctx, p.cfg.Finalize, func(ctx context.Context, attempt int) (string, error) {
		return p.actions.Finalize(ctx)
	}, func(attempt int, err error) {
		p.emitter.EmitError(StageFinalizing.String(), err)
		logger.StageWarnw(p.log, StageFinalizing.String(), "Finalize attempt failed",
			logger.FieldAttempt, attempt, logger.FieldError, err)
	})
	if err != nil {
		p.fail(p.classify(ctx, err), err)
		return false
	}
	p.out.FinalizeStatus = status
	logger.StageInfow(p.log, StageFinalizing.String(), "Finalized",
		"status", status, logger.FieldAttempts, attempts)
	return true
}

// advance moves to the next stage, recording the time spent in the
// current one. Cancellation is checked at every transition.
func (p *Pipeline) advance(ctx context.Context, next Stage) bool {
	if next != StageDone {
		if err := ctx.Err(); err != nil {
			p.fail(ReasonCancelled, err)
			return false
		}
	}
	if err := Transition(p.out.Stage, next); err != nil {
		p.fail(ReasonUnexpected, err)
		return false
	}
	p.closeStage()
	p.out.Stage = next
	if next != StageDone {
		p.emitter.EmitStage(next.String(), "")
		logger.StageDebugw(p.log, next.String(), "Entered stage")
	}
	return true
}

func (p *Pipeline) closeStage() {
	now := time.Now()
	p.out.StageDurations[p.out.Stage] += now.Sub(p.entry)
	p.entry = now
}

// fail moves to Failed from the current stage. Only the first failure
// counts.
func (p *Pipeline) fail(reason Reason, err error) {
	if p.out.Stage.Terminal() {
		return
	}
	p.closeStage()
	p.out.FailedStage = p.out.Stage
	p.out.Stage = StageFailed
	p.out.Reason = reason
	if err != nil {
		p.out.Message = err.Error()
	}
	p.emitter.EmitError(p.out.FailedStage.String(), err)
	logger.StageWarnw(p.log, StageFailed.String(), "Run failed",
		"failed_stage", p.out.FailedStage.String(),
		logger.FieldReason, string(reason),
		logger.FieldError, err)
}

func (p *Pipeline) finish() Outcome {
	if !p.out.Stage.Terminal() {
		p.fail(ReasonUnexpected, errors.AssertionFailedf("run ended in non-terminal stage %s", p.out.Stage))
	}
	p.out.EndedAt = time.Now()
	p.emitter.EmitComplete(p.out.Summary())
	logger.StageInfow(p.log, p.out.Stage.String(), "Run complete",
		logger.FieldDurationMS, p.out.Duration().Milliseconds(),
		"exit_code", p.out.ExitCode())
	return p.out
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.StageTimeout)
}

// classify maps a stage error to a failure reason. The caller's ctx
// decides cancellation; a stage deadline is a timeout.
func (p *Pipeline) classify(ctx context.Context, err error) Reason {
	switch {
	case ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ReasonCancelled
	case errors.Is(err, errors.ErrCancelled):
		return ReasonCancelled
	case errors.IsAny(err, errors.ErrRetriesExhausted, errors.ErrActionFailed, errors.ErrNotFound):
		return ReasonActionFailed
	case errors.IsAny(err, context.DeadlineExceeded, errors.ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCancelled
	default:
		return ReasonUnexpected
	}
}

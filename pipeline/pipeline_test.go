package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/dropwatch/clock"
	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/pulse"
)

// stubActions counts calls and scripts results per action
type stubActions struct {
	mu sync.Mutex

	readyAfter   int // Ready returns true on call readyAfter+1
	acquireFails int
	confirmed    bool
	confirmErr   error
	prepareErr   error
	finalizeErr  error

	readyCalls, acquireCalls, confirmCalls, prepareCalls, finalizeCalls int
	acquireAt                                                           []time.Time
}

func (s *stubActions) actions() Actions {
	return Actions{
		Ready: func(ctx context.Context) (bool, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.readyCalls++
			return s.readyCalls > s.readyAfter, nil
		},
		Signal: func() Signal { return Signal{MatcherID: "stub", Evidence: "ready"} },
		Acquire: func(ctx context.Context) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.acquireCalls++
			s.acquireAt = append(s.acquireAt, time.Now())
			if s.acquireCalls <= s.acquireFails {
				return errors.NewActionFailedError("overlay intercepted click")
			}
			return nil
		},
		Confirm: func(ctx context.Context) (bool, error) {
			s.confirmCalls++
			return s.confirmed, s.confirmErr
		},
		Prepare: func(ctx context.Context) error {
			s.prepareCalls++
			return s.prepareErr
		},
		Finalize: func(ctx context.Context) (string, error) {
			s.finalizeCalls++
			if s.finalizeErr != nil {
				return "", s.finalizeErr
			}
			return "placed", nil
		},
	}
}

// recorder captures emitted stages
type recorder struct {
	pulse.NopEmitter
	mu       sync.Mutex
	stages   []string
	ticks    int
	infos    []string
	complete map[string]interface{}
}

func (r *recorder) EmitStage(stage, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func (r *recorder) EmitTick(string, pulse.Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
}

func (r *recorder) EmitInfo(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

func (r *recorder) EmitComplete(s map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete = s
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Monitor = pulse.PollConfig{Interval: 10 * time.Millisecond, MaxWait: time.Second}
	cfg.Retry = pulse.RetryPolicy{MaxAttempts: 3, Delay: 5 * time.Millisecond}
	return cfg
}

func newTestPipeline(t *testing.T, cfg Config, a Actions, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t).Sugar())}, opts...)
	p, err := New(cfg, a, opts...)
	require.NoError(t, err)
	return p
}

func TestRun_HappyPathWithFinalize(t *testing.T) {
	stub := &stubActions{confirmed: true}
	cfg := testConfig()
	cfg.AllowFinalize = true
	rec := &recorder{}

	out := newTestPipeline(t, cfg, stub.actions(), WithEmitter(rec), WithRunID("run-1")).Run(context.Background())

	assert.Equal(t, StageDone, out.Stage)
	assert.Equal(t, ReasonNone, out.Reason)
	assert.True(t, out.Confirmed)
	assert.Equal(t, "placed", out.FinalizeStatus)
	assert.Equal(t, "stub", out.Signal.MatcherID)
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, 0, out.ExitCode())
	assert.Equal(t, 1, stub.finalizeCalls)
	assert.Equal(t, 1, stub.prepareCalls)
	assert.Equal(t, []string{"monitoring", "acquiring", "confirming", "finalizing"}, rec.stages)
	assert.Equal(t, "done", rec.complete["stage"])
	assert.False(t, out.EndedAt.Before(out.StartedAt))
	for _, st := range []Stage{StageMonitoring, StageAcquiring, StageConfirming, StageFinalizing} {
		assert.Contains(t, out.StageDurations, st)
	}
}

func TestRun_TargetInsideLeadWindowStartsImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.Target = &clock.TargetMoment{At: time.Now().Add(2 * time.Second), Lead: 5 * time.Second}
	stub := &stubActions{confirmed: true}

	start := time.Now()
	out := newTestPipeline(t, cfg, stub.actions()).Run(context.Background())

	assert.Equal(t, StageDone, out.Stage)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRun_WaitsForTargetMoment(t *testing.T) {
	cfg := testConfig()
	cfg.Target = &clock.TargetMoment{At: time.Now().Add(150 * time.Millisecond)}
	stub := &stubActions{confirmed: true}
	rec := &recorder{}

	start := time.Now()
	out := newTestPipeline(t, cfg, stub.actions(), WithEmitter(rec)).Run(context.Background())

	assert.Equal(t, StageDone, out.Stage)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.NotEmpty(t, rec.infos, "countdown is emitted")
	assert.Equal(t, "not_started", rec.stages[0])
}

func TestRun_MonitoringReadyAfterThreeTicks(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor = pulse.PollConfig{Interval: 100 * time.Millisecond, MaxWait: 5 * time.Second}
	stub := &stubActions{readyAfter: 3, confirmed: true}
	rec := &recorder{}

	start := time.Now()
	out := newTestPipeline(t, cfg, stub.actions(), WithEmitter(rec)).Run(context.Background())

	require.Equal(t, StageDone, out.Stage)
	require.NotEmpty(t, stub.acquireAt)
	reached := stub.acquireAt[0].Sub(start)
	assert.GreaterOrEqual(t, reached, 300*time.Millisecond)
	assert.Less(t, reached, 600*time.Millisecond)
	assert.Equal(t, 4, stub.readyCalls)
	assert.Equal(t, 4, rec.ticks, "the deciding tick is reported too")
	assert.Equal(t, 4, out.Ticks)
}

func TestRun_AcquireRetriesThenSucceeds(t *testing.T) {
	cfg := testConfig()
	cfg.Retry = pulse.RetryPolicy{MaxAttempts: 3, Delay: 50 * time.Millisecond}
	stub := &stubActions{acquireFails: 2, confirmed: true}

	out := newTestPipeline(t, cfg, stub.actions()).Run(context.Background())

	assert.Equal(t, StageDone, out.Stage)
	assert.Equal(t, 3, stub.acquireCalls)
	assert.GreaterOrEqual(t, out.StageDurations[StageAcquiring], 100*time.Millisecond)
	assert.Equal(t, 1, stub.confirmCalls, "pipeline reached confirming")
}

func TestRun_AcquireExhausted(t *testing.T) {
	stub := &stubActions{acquireFails: 10}
	out := newTestPipeline(t, testConfig(), stub.actions()).Run(context.Background())

	assert.Equal(t, StageFailed, out.Stage)
	assert.Equal(t, StageAcquiring, out.FailedStage)
	assert.Equal(t, ReasonActionFailed, out.Reason)
	assert.Equal(t, 3, stub.acquireCalls)
	assert.Equal(t, 0, stub.confirmCalls)
	assert.Equal(t, ExitAcquiring, out.ExitCode())
	assert.Contains(t, out.Message, "overlay intercepted click")
}

func TestRun_ManualCompletionNeverFinalizes(t *testing.T) {
	stub := &stubActions{confirmed: true}
	cfg := testConfig()
	cfg.AllowFinalize = false

	out := newTestPipeline(t, cfg, stub.actions()).Run(context.Background())

	assert.Equal(t, StageDone, out.Stage)
	assert.Equal(t, ReasonManualCompletionRequired, out.Reason)
	assert.True(t, out.ManualCompletion)
	assert.Equal(t, 0, stub.finalizeCalls)
	assert.Equal(t, 1, stub.prepareCalls, "checkout precondition still runs")
	assert.Equal(t, ExitDone, out.ExitCode())
}

func TestRun_MonitoringTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor = pulse.PollConfig{Interval: 10 * time.Millisecond, MaxWait: 60 * time.Millisecond}
	stub := &stubActions{readyAfter: 1 << 30}

	out := newTestPipeline(t, cfg, stub.actions()).Run(context.Background())

	assert.Equal(t, StageFailed, out.Stage)
	assert.Equal(t, StageMonitoring, out.FailedStage)
	assert.Equal(t, ReasonTimeout, out.Reason)
	assert.Equal(t, ExitMonitoring, out.ExitCode())
	assert.Equal(t, 0, stub.acquireCalls)
}

func TestRun_ReadyErrorsAreNotFatal(t *testing.T) {
	calls := 0
	a := (&stubActions{confirmed: true}).actions()
	a.Ready = func(ctx context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("element detached")
		}
		return true, nil
	}

	out := newTestPipeline(t, testConfig(), a).Run(context.Background())
	assert.Equal(t, StageDone, out.Stage)
	assert.Equal(t, 3, calls)
}

func TestRun_CancelledWhileMonitoring(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor = pulse.PollConfig{Interval: 10 * time.Millisecond, MaxWait: time.Minute}
	stub := &stubActions{readyAfter: 1 << 30}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	out := newTestPipeline(t, cfg, stub.actions()).Run(ctx)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StageFailed, out.Stage)
	assert.Equal(t, StageMonitoring, out.FailedStage)
	assert.Equal(t, ReasonCancelled, out.Reason)
	assert.Equal(t, ExitCancelled, out.ExitCode())
}

func TestRun_ParentDeadlineWhileMonitoringIsTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor = pulse.PollConfig{Interval: 10 * time.Millisecond, MaxWait: time.Minute}
	stub := &stubActions{readyAfter: 1 << 30}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out := newTestPipeline(t, cfg, stub.actions()).Run(ctx)

	assert.Equal(t, StageFailed, out.Stage)
	assert.Equal(t, StageMonitoring, out.FailedStage)
	assert.Equal(t, ReasonTimeout, out.Reason)
	assert.Equal(t, ExitMonitoring, out.ExitCode())
}

func TestRun_CancelledDuringTargetWait(t *testing.T) {
	cfg := testConfig()
	cfg.Target = &clock.TargetMoment{At: time.Now().Add(time.Hour)}
	stub := &stubActions{}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	out := newTestPipeline(t, cfg, stub.actions()).Run(ctx)

	assert.Equal(t, StageFailed, out.Stage)
	assert.Equal(t, StageNotStarted, out.FailedStage)
	assert.Equal(t, 0, stub.readyCalls)
}

func TestRun_ConfirmSoftFail(t *testing.T) {
	stub := &stubActions{confirmed: false}
	out := newTestPipeline(t, testConfig(), stub.actions()).Run(context.Background())

	assert.Equal(t, StageDone, out.Stage)
	assert.False(t, out.Confirmed)
	assert.Contains(t, out.Message, "unconfirmed")
	assert.Equal(t, 1, stub.prepareCalls)
}

func TestRun_StrictConfirm(t *testing.T) {
	stub := &stubActions{confirmErr: errors.New("cart page did not load")}
	cfg := testConfig()
	cfg.StrictConfirm = true

	out := newTestPipeline(t, cfg, stub.actions()).Run(context.Background())

	assert.Equal(t, StageFailed, out.Stage)
	assert.Equal(t, StageConfirming, out.FailedStage)
	assert.Equal(t, ReasonActionFailed, out.Reason)
	assert.Equal(t, ExitConfirming, out.ExitCode())
	assert.Equal(t, 0, stub.prepareCalls)
}

func TestRun_PrepareFailure(t *testing.T) {
	stub := &stubActions{confirmed: true, prepareErr: errors.NewActionFailedError("checkout control not found")}
	out := newTestPipeline(t, testConfig(), stub.actions()).Run(context.Background())

	assert.Equal(t, StageFailed, out.Stage)
	assert.Equal(t, StageFinalizing, out.FailedStage)
	assert.Equal(t, ReasonActionFailed, out.Reason)
}

func TestRun_FinalizeFailure(t *testing.T) {
	stub := &stubActions{confirmed: true, finalizeErr: errors.New("payment page crashed")}
	cfg := testConfig()
	cfg.AllowFinalize = true

	out := newTestPipeline(t, cfg, stub.actions()).Run(context.Background())

	assert.Equal(t, StageFailed, out.Stage)
	assert.Equal(t, StageFinalizing, out.FailedStage)
	assert.Equal(t, ReasonActionFailed, out.Reason, "a single exhausted attempt is an action failure")
	assert.Equal(t, 1, stub.finalizeCalls, "finalize is not retried by default")
}

func TestRun_PanicIsUnexpected(t *testing.T) {
	a := (&stubActions{}).actions()
	a.Acquire = func(ctx context.Context) error {
		var m map[string]int
		m["boom"]++
		return nil
	}

	out := newTestPipeline(t, testConfig(), a).Run(context.Background())

	assert.Equal(t, StageFailed, out.Stage)
	assert.Equal(t, StageAcquiring, out.FailedStage)
	assert.Equal(t, ReasonUnexpected, out.Reason)
	assert.Contains(t, out.Message, "panic")
	assert.False(t, out.EndedAt.IsZero())
}

func TestRun_StageTimeout(t *testing.T) {
	a := (&stubActions{}).actions()
	a.Acquire = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	cfg := testConfig()
	cfg.Retry = pulse.RetryPolicy{MaxAttempts: 1}
	cfg.StageTimeout = 30 * time.Millisecond

	out := newTestPipeline(t, cfg, a).Run(context.Background())

	assert.Equal(t, StageFailed, out.Stage)
	assert.Equal(t, StageAcquiring, out.FailedStage)
	assert.Equal(t, ReasonActionFailed, out.Reason)
}

func TestNew_Validation(t *testing.T) {
	good := (&stubActions{}).actions()

	cfg := testConfig()
	cfg.Monitor.Interval = 0
	_, err := New(cfg, good)
	assert.True(t, errors.IsInvalidRequestError(err))

	cfg = testConfig()
	cfg.Retry.MaxAttempts = 0
	_, err = New(cfg, good)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Target = &clock.TargetMoment{At: time.Now(), Lead: -time.Second}
	_, err = New(cfg, good)
	assert.Error(t, err)

	_, err = New(testConfig(), Actions{Acquire: good.Acquire})
	assert.Error(t, err, "Ready is required")

	cfg = testConfig()
	cfg.AllowFinalize = true
	noFinalize := good
	noFinalize.Finalize = nil
	_, err = New(cfg, noFinalize)
	assert.Error(t, err)

	p, err := New(testConfig(), good)
	require.NoError(t, err)
	assert.NotEmpty(t, p.RunID())
}

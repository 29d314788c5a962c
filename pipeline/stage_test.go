package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	legal := [][2]Stage{
		{StageNotStarted, StageMonitoring},
		{StageMonitoring, StageAcquiring},
		{StageAcquiring, StageConfirming},
		{StageConfirming, StageFinalizing},
		{StageFinalizing, StageDone},
		{StageNotStarted, StageFailed},
		{StageMonitoring, StageFailed},
		{StageFinalizing, StageFailed},
	}
	for _, tr := range legal {
		assert.NoError(t, Transition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	illegal := [][2]Stage{
		{StageNotStarted, StageAcquiring},
		{StageMonitoring, StageConfirming},
		{StageAcquiring, StageMonitoring},
		{StageConfirming, StageDone},
		{StageDone, StageFailed},
		{StageFailed, StageMonitoring},
		{StageDone, StageDone},
	}
	for _, tr := range illegal {
		assert.Error(t, Transition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestStage_TextRoundTrip(t *testing.T) {
	for s := StageNotStarted; s <= StageFailed; s++ {
		parsed, err := ParseStage(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseStage("shipping")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Stage(42).String())

	b, err := json.Marshal(map[Stage]int{StageAcquiring: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"acquiring":1}`, string(b))
}

func TestOutcome_ExitCode(t *testing.T) {
	cases := []struct {
		name string
		out  Outcome
		want int
	}{
		{"done", Outcome{Stage: StageDone}, ExitDone},
		{"manual completion is success", Outcome{Stage: StageDone, Reason: ReasonManualCompletionRequired}, ExitDone},
		{"monitor timeout", Outcome{Stage: StageFailed, FailedStage: StageMonitoring, Reason: ReasonTimeout}, ExitMonitoring},
		{"acquire", Outcome{Stage: StageFailed, FailedStage: StageAcquiring, Reason: ReasonActionFailed}, ExitAcquiring},
		{"confirm", Outcome{Stage: StageFailed, FailedStage: StageConfirming, Reason: ReasonActionFailed}, ExitConfirming},
		{"finalize", Outcome{Stage: StageFailed, FailedStage: StageFinalizing, Reason: ReasonUnexpected}, ExitFinalizing},
		{"cancelled anywhere", Outcome{Stage: StageFailed, FailedStage: StageAcquiring, Reason: ReasonCancelled}, ExitCancelled},
		{"before start", Outcome{Stage: StageFailed, FailedStage: StageNotStarted, Reason: ReasonUnexpected}, ExitNotStarted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.out.ExitCode())
		})
	}
}

func TestOutcome_Summary(t *testing.T) {
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	out := Outcome{
		RunID:       "run-1",
		Stage:       StageFailed,
		FailedStage: StageMonitoring,
		Reason:      ReasonTimeout,
		StartedAt:   start,
		EndedAt:     start.Add(1500 * time.Millisecond),
	}
	s := out.Summary()
	assert.Equal(t, "failed", s["stage"])
	assert.Equal(t, "monitoring", s["failed_stage"])
	assert.Equal(t, "timeout", s["reason"])
	assert.Equal(t, int64(1500), s["duration_ms"])
	assert.Equal(t, ExitMonitoring, s["exit_code"])
	assert.True(t, out.Terminal())
	assert.False(t, out.Succeeded())
}

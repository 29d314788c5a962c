package pipeline

import (
	"time"

	"github.com/teranos/dropwatch/listing"
)

// Exit codes per terminal state. Calling scripts branch on these.
const (
	ExitDone       = 0
	ExitNotStarted = 1
	ExitMonitoring = 10
	ExitAcquiring  = 11
	ExitConfirming = 12
	ExitFinalizing = 13
	ExitCancelled  = 20
)

// Signal is what made the target ready
type Signal struct {
	MatcherID string        `json:"matcher_id,omitempty"`
	Evidence  string        `json:"evidence,omitempty"`
	Item      *listing.Item `json:"item,omitempty"`
}

// Outcome is the result of one run. Only the orchestrator mutates it.
type Outcome struct {
	RunID       string `json:"run_id"`
	TargetKind  string `json:"target_kind"`
	Target      string `json:"target"`
	Stage       Stage  `json:"stage"`
	FailedStage Stage  `json:"failed_stage,omitempty"`
	Reason      Reason `json:"reason,omitempty"`
	Message     string `json:"message,omitempty"`

	// Confirmed is false in the "ready but unconfirmed" sub-state
	Confirmed        bool   `json:"confirmed"`
	ManualCompletion bool   `json:"manual_completion"`
	FinalizeStatus   string `json:"finalize_status,omitempty"`

	Signal         Signal                  `json:"signal"`
	Ticks          int                     `json:"ticks"`
	StageDurations map[Stage]time.Duration `json:"stage_durations"`
	StartedAt      time.Time               `json:"started_at"`
	EndedAt        time.Time               `json:"ended_at"`
}

// Terminal reports whether the run has finished
func (o Outcome) Terminal() bool {
	return o.Stage.Terminal()
}

// Succeeded is true for Done, including manual completion
func (o Outcome) Succeeded() bool {
	return o.Stage == StageDone
}

// Duration is the wall time of the run
func (o Outcome) Duration() time.Duration {
	if o.EndedAt.IsZero() {
		return 0
	}
	return o.EndedAt.Sub(o.StartedAt)
}

// ExitCode maps the outcome to a process exit status. Cancellation has one
// code regardless of stage; other failures are distinguished by stage.
func (o Outcome) ExitCode() int {
	switch {
	case o.Stage == StageDone:
		return ExitDone
	case o.Reason == ReasonCancelled:
		return ExitCancelled
	}
	switch o.FailedStage {
	case StageMonitoring:
		return ExitMonitoring
	case StageAcquiring:
		return ExitAcquiring
	case StageConfirming:
		return ExitConfirming
	case StageFinalizing:
		return ExitFinalizing
	default:
		return ExitNotStarted
	}
}

// Summary flattens the outcome for progress emitters
func (o Outcome) Summary() map[string]interface{} {
	s := map[string]interface{}{
		"run_id":      o.RunID,
		"stage":       o.Stage.String(),
		"confirmed":   o.Confirmed,
		"exit_code":   o.ExitCode(),
		"duration_ms": o.Duration().Milliseconds(),
		"ticks":       o.Ticks,
	}
	if o.Stage == StageFailed {
		s["failed_stage"] = o.FailedStage.String()
	}
	if o.Reason != ReasonNone {
		s["reason"] = string(o.Reason)
	}
	if o.Message != "" {
		s["message"] = o.Message
	}
	if o.ManualCompletion {
		s["manual_completion"] = true
	}
	if o.FinalizeStatus != "" {
		s["finalize_status"] = o.FinalizeStatus
	}
	if o.Signal.MatcherID != "" {
		s["matcher"] = o.Signal.MatcherID
	}
	if o.Signal.Item != nil {
		s["item_id"] = o.Signal.Item.ID
		s["item_url"] = o.Signal.Item.URL
	}
	return s
}

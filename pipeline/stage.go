// Package pipeline drives one acquisition run through its stages:
// wait for the target moment, monitor until ready, acquire, confirm and
// optionally finalize. A run always ends in exactly one of Done or Failed.
package pipeline

import (
	"github.com/teranos/dropwatch/errors"
)

// Stage of a pipeline run
type Stage int

const (
	StageNotStarted Stage = iota
	StageMonitoring
	StageAcquiring
	StageConfirming
	StageFinalizing
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageNotStarted: "not_started",
	StageMonitoring: "monitoring",
	StageAcquiring:  "acquiring",
	StageConfirming: "confirming",
	StageFinalizing: "finalizing",
	StageDone:       "done",
	StageFailed:     "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// MarshalText lets stages key JSON maps
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a stage name
func (s *Stage) UnmarshalText(b []byte) error {
	st, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseStage is the inverse of Stage.String
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return StageNotStarted, errors.NewInvalidRequestError("unknown stage %q", name)
}

// Terminal reports whether no further transition is possible
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// transitions lists the legal forward moves. Failed is reachable from any
// non-terminal stage and is handled separately.
var transitions = map[Stage][]Stage{
	StageNotStarted: {StageMonitoring},
	StageMonitoring: {StageAcquiring},
	StageAcquiring:  {StageConfirming},
	StageConfirming: {StageFinalizing},
	StageFinalizing: {StageDone},
}

// Transition validates a move between stages
func Transition(from, to Stage) error {
	if from.Terminal() {
		return errors.AssertionFailedf("illegal transition %s -> %s: %s is terminal", from, to, from)
	}
	if to == StageFailed {
		return nil
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return errors.AssertionFailedf("illegal transition %s -> %s", from, to)
}

// Reason classifies how a run ended
type Reason string

const (
	ReasonNone                     Reason = ""
	ReasonTimeout                  Reason = "timeout"
	ReasonActionFailed             Reason = "action_failed"
	ReasonUnexpected               Reason = "unexpected"
	ReasonCancelled                Reason = "cancelled"
	ReasonManualCompletionRequired Reason = "manual_completion_required"
)

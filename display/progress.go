// Package display renders pipeline progress and results for the terminal
// and for machines.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/dropwatch/pulse"
	"github.com/teranos/dropwatch/sym"
)

// ProgressEvent is one structured progress event
type ProgressEvent struct {
	Type      string                 `json:"type"` // stage, tick, info, error, complete
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// TickEvent builds the event for a poll tick
func TickEvent(stage string, t pulse.Tick) ProgressEvent {
	data := map[string]interface{}{
		"stage":       stage,
		"count":       t.Count,
		"elapsed_ms":  t.Elapsed.Milliseconds(),
		"interval_ms": t.Interval.Milliseconds(),
		"ready":       t.Ready,
	}
	if t.Err != nil {
		data["error"] = t.Err.Error()
	}
	return ProgressEvent{Type: "tick", Timestamp: time.Now(), Data: data}
}

// StageEvent builds the event for a stage entry
func StageEvent(stage, message string) ProgressEvent {
	return ProgressEvent{Type: "stage", Timestamp: time.Now(), Data: map[string]interface{}{
		"stage": stage, "symbol": sym.ForStage(stage), "message": message,
	}}
}

// InfoEvent builds an informational event
func InfoEvent(message string) ProgressEvent {
	return ProgressEvent{Type: "info", Timestamp: time.Now(), Data: map[string]interface{}{"message": message}}
}

// ErrorEvent builds the event for an error within a stage
func ErrorEvent(stage string, err error) ProgressEvent {
	msg := "<nil>"
	if err != nil {
		msg = err.Error()
	}
	return ProgressEvent{Type: "error", Timestamp: time.Now(), Data: map[string]interface{}{"stage": stage, "error": msg}}
}

// CompleteEvent builds the terminal event
func CompleteEvent(summary map[string]interface{}) ProgressEvent {
	return ProgressEvent{Type: "complete", Timestamp: time.Now(), Data: summary}
}

// CLIEmitter prints progress to the terminal using pterm. With live set,
// monitoring ticks drive a spinner; otherwise ticks are printed only at
// verbosity 2 and above.
type CLIEmitter struct {
	verbosity int
	live      bool

	mu      sync.Mutex
	spinner *pterm.SpinnerPrinter
}

// NewCLIEmitter creates a terminal progress emitter
func NewCLIEmitter(verbosity int, live bool) *CLIEmitter {
	return &CLIEmitter{verbosity: verbosity, live: live}
}

// EmitStage prints a stage announcement
func (e *CLIEmitter) EmitStage(stage string, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopSpinner()

	line := fmt.Sprintf("%s %s", sym.ForStage(stage), pterm.LightCyan(stage))
	if message != "" {
		line += ": " + message
	}
	pterm.Println(line)

	if e.live && stage == "monitoring" {
		e.spinner, _ = pterm.DefaultSpinner.Start("checking...")
	}
}

// EmitTick updates the spinner or prints the tick
func (e *CLIEmitter) EmitTick(stage string, t pulse.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()

	text := fmt.Sprintf("%s check %d, %s elapsed (%.1f/s)",
		sym.Pulse, t.Count, t.Elapsed.Round(100*time.Millisecond), t.Rate())
	if e.spinner != nil {
		e.spinner.UpdateText(text)
		return
	}
	if e.verbosity >= 2 {
		pterm.Println(text)
	}
}

// EmitInfo prints an informational message
func (e *CLIEmitter) EmitInfo(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.spinner != nil {
		e.spinner.UpdateText(message)
		return
	}
	pterm.Info.Println(message)
}

// EmitError prints an error
func (e *CLIEmitter) EmitError(stage string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pterm.Error.Printf("%s %s: %v\n", sym.ForStage(stage), stage, err)
}

// EmitComplete prints the run summary
func (e *CLIEmitter) EmitComplete(summary map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopSpinner()

	if summary["stage"] == "done" {
		pterm.Success.Println("Run complete")
	} else {
		pterm.Error.Println("Run failed")
	}
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "run_id" && e.verbosity < 1 {
			continue
		}
		pterm.Printf("  %s: %v\n", k, summary[k])
	}
}

func (e *CLIEmitter) stopSpinner() {
	if e.spinner != nil {
		_ = e.spinner.Stop()
		e.spinner = nil
	}
}

// JSONEmitter writes one JSON event per line
type JSONEmitter struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewJSONEmitter creates a JSON lines emitter on w
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{encoder: json.NewEncoder(w)}
}

func (e *JSONEmitter) emit(ev ProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.encoder.Encode(ev)
}

// EmitStage emits a stage event
func (e *JSONEmitter) EmitStage(stage, message string) { e.emit(StageEvent(stage, message)) }

// EmitTick emits a tick event
func (e *JSONEmitter) EmitTick(stage string, t pulse.Tick) { e.emit(TickEvent(stage, t)) }

// EmitInfo emits an info event
func (e *JSONEmitter) EmitInfo(message string) { e.emit(InfoEvent(message)) }

// EmitError emits an error event
func (e *JSONEmitter) EmitError(stage string, err error) { e.emit(ErrorEvent(stage, err)) }

// EmitComplete emits the terminal event
func (e *JSONEmitter) EmitComplete(summary map[string]interface{}) { e.emit(CompleteEvent(summary)) }

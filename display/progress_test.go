package display

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/dropwatch/pulse"
)

var _ pulse.ProgressEmitter = (*CLIEmitter)(nil)
var _ pulse.ProgressEmitter = (*JSONEmitter)(nil)

func captureTerminal(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	pterm.DisableColor()
	pterm.SetDefaultOutput(&buf)
	t.Cleanup(func() {
		pterm.SetDefaultOutput(os.Stdout)
		pterm.EnableColor()
	})
	return &buf
}

func TestJSONEmitter_OneEventPerLine(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONEmitter(&buf)

	e.EmitStage("monitoring", "watching")
	e.EmitTick("monitoring", pulse.Tick{Count: 3, Elapsed: 300 * time.Millisecond, Interval: 100 * time.Millisecond, Err: errors.New("flaky")})
	e.EmitInfo("hello")
	e.EmitError("acquiring", errors.New("button gone"))
	e.EmitComplete(map[string]interface{}{"stage": "done"})

	var events []ProgressEvent
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var ev ProgressEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 5)

	assert.Equal(t, "stage", events[0].Type)
	assert.Equal(t, "monitoring", events[0].Data["stage"])
	assert.Equal(t, "tick", events[1].Type)
	assert.EqualValues(t, 3, events[1].Data["count"])
	assert.EqualValues(t, 300, events[1].Data["elapsed_ms"])
	assert.Equal(t, "flaky", events[1].Data["error"])
	assert.Equal(t, false, events[1].Data["ready"])
	assert.Equal(t, "info", events[2].Type)
	assert.Equal(t, "error", events[3].Type)
	assert.Equal(t, "button gone", events[3].Data["error"])
	assert.Equal(t, "complete", events[4].Type)
	assert.Equal(t, "done", events[4].Data["stage"])
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestErrorEvent_NilError(t *testing.T) {
	ev := ErrorEvent("confirming", nil)
	assert.Equal(t, "<nil>", ev.Data["error"])
}

func TestCLIEmitter_TicksHiddenAtLowVerbosity(t *testing.T) {
	buf := captureTerminal(t)
	e := NewCLIEmitter(0, false)

	e.EmitStage("monitoring", "watching for restock")
	e.EmitTick("monitoring", pulse.Tick{Count: 1})

	out := buf.String()
	assert.Contains(t, out, "monitoring: watching for restock")
	assert.NotContains(t, out, "check 1")
}

func TestCLIEmitter_TicksShownAtVerbosityTwo(t *testing.T) {
	buf := captureTerminal(t)
	e := NewCLIEmitter(2, false)

	e.EmitTick("monitoring", pulse.Tick{Count: 7, Elapsed: time.Second, Interval: 100 * time.Millisecond})
	assert.Contains(t, buf.String(), "check 7")
}

func TestCLIEmitter_CompleteListsSummary(t *testing.T) {
	buf := captureTerminal(t)
	e := NewCLIEmitter(0, false)

	e.EmitComplete(map[string]interface{}{"stage": "failed", "reason": "timeout", "run_id": "abc"})

	out := buf.String()
	assert.Contains(t, out, "Run failed")
	assert.Contains(t, out, "reason: timeout")
	assert.NotContains(t, out, "abc")
}

package pulse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teranos/dropwatch/errors"
)

type recordingEmitter struct {
	events []string
}

func (r *recordingEmitter) EmitStage(stage, message string) {
	r.events = append(r.events, "stage:"+stage)
}
func (r *recordingEmitter) EmitTick(stage string, _ Tick) { r.events = append(r.events, "tick:"+stage) }
func (r *recordingEmitter) EmitInfo(message string)       { r.events = append(r.events, "info:"+message) }
func (r *recordingEmitter) EmitError(stage string, _ error) {
	r.events = append(r.events, "error:"+stage)
}
func (r *recordingEmitter) EmitComplete(map[string]interface{}) {
	r.events = append(r.events, "complete")
}

func TestMultiEmitter_FansOutInOrder(t *testing.T) {
	a, b := &recordingEmitter{}, &recordingEmitter{}
	m := NewMultiEmitter(a, nil, b)

	m.EmitStage("monitoring", "watching")
	m.EmitTick("monitoring", Tick{Count: 1})
	m.EmitInfo("hello")
	m.EmitError("acquiring", errors.New("boom"))
	m.EmitComplete(nil)

	want := []string{"stage:monitoring", "tick:monitoring", "info:hello", "error:acquiring", "complete"}
	assert.Equal(t, want, a.events)
	assert.Equal(t, want, b.events)
}

func TestNopEmitter_SatisfiesInterface(t *testing.T) {
	var e ProgressEmitter = NopEmitter{}
	assert.NotPanics(t, func() {
		e.EmitStage("s", "m")
		e.EmitComplete(map[string]interface{}{"ok": true})
	})
}

package pulse

import "sync"

// ProgressEmitter receives live progress from a running pipeline. It is
// domain-agnostic: stages are passed as their display names so display
// backends need not import the pipeline package.
type ProgressEmitter interface {
	// EmitStage announces entry into a stage
	EmitStage(stage string, message string)

	// EmitTick reports an unsuccessful poll iteration
	EmitTick(stage string, tick Tick)

	// EmitInfo emits a general informational message
	EmitInfo(message string)

	// EmitError announces an error within a stage
	EmitError(stage string, err error)

	// EmitComplete announces the terminal outcome with a summary
	EmitComplete(summary map[string]interface{})
}

// NopEmitter discards everything
type NopEmitter struct{}

func (NopEmitter) EmitStage(string, string)            {}
func (NopEmitter) EmitTick(string, Tick)               {}
func (NopEmitter) EmitInfo(string)                     {}
func (NopEmitter) EmitError(string, error)             {}
func (NopEmitter) EmitComplete(map[string]interface{}) {}

// MultiEmitter fans events out to several emitters in order
type MultiEmitter struct {
	mu       sync.Mutex
	emitters []ProgressEmitter
}

// NewMultiEmitter creates a fan-out emitter, skipping nil entries
func NewMultiEmitter(emitters ...ProgressEmitter) *MultiEmitter {
	m := &MultiEmitter{}
	for _, e := range emitters {
		m.Add(e)
	}
	return m
}

// Add registers another emitter
func (m *MultiEmitter) Add(e ProgressEmitter) {
	if e == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitters = append(m.emitters, e)
}

func (m *MultiEmitter) each(fn func(ProgressEmitter)) {
	m.mu.Lock()
	emitters := append([]ProgressEmitter(nil), m.emitters...)
	m.mu.Unlock()
	for _, e := range emitters {
		fn(e)
	}
}

func (m *MultiEmitter) EmitStage(stage, message string) {
	m.each(func(e ProgressEmitter) { e.EmitStage(stage, message) })
}

func (m *MultiEmitter) EmitTick(stage string, tick Tick) {
	m.each(func(e ProgressEmitter) { e.EmitTick(stage, tick) })
}

func (m *MultiEmitter) EmitInfo(message string) {
	m.each(func(e ProgressEmitter) { e.EmitInfo(message) })
}

func (m *MultiEmitter) EmitError(stage string, err error) {
	m.each(func(e ProgressEmitter) { e.EmitError(stage, err) })
}

func (m *MultiEmitter) EmitComplete(summary map[string]interface{}) {
	m.each(func(e ProgressEmitter) { e.EmitComplete(summary) })
}

// Package sym defines canonical symbols for dropwatch pipeline stages and
// system markers. These symbols are stable across log output, the CLI and
// the progress stream.
package sym

// Pipeline stage glyphs.
const (
	At       = "✦" // at: the target moment and the wait before it
	Pulse    = "꩜" // polling ticks while monitoring
	Ix       = "⨳" // listing scans and new-item discovery
	So       = "⟶" // acquire, the consequent action once ready
	Am       = "≡" // confirmation of held state, configuration
	I        = "⍟" // finalize
	Done     = "✿" // run finished cleanly
	Failed   = "❀" // run ended in a failed stage
	DB       = "⊔" // run history and item records
	Progress = "▣" // live progress stream
)

// StageSymbols maps pipeline stage names to their glyph.
var StageSymbols = map[string]string{
	"not_started": At,
	"monitoring":  Pulse,
	"acquiring":   So,
	"confirming":  Am,
	"finalizing":  I,
	"done":        Done,
	"failed":      Failed,
}

// CommandToSymbol maps CLI commands to the glyph shown in their help text.
var CommandToSymbol = map[string]string{
	"snipe":   So,
	"watch":   Ix,
	"clock":   At,
	"history": DB,
	"am":      Am,
}

// ForStage returns the glyph for a stage name, or Pulse when unknown.
func ForStage(stage string) string {
	if g, ok := StageSymbols[stage]; ok {
		return g
	}
	return Pulse
}

package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

// palette holds the handful of colors the console encoder uses
type palette struct {
	time      string
	component string
	symbol    string
	stage     string
	id        string
	number    string
	fg        string
	warn      string
	warnBg    string
	err       string
	errBg     string
}

var themes = map[string]palette{
	// Gruvbox Dark (warm, muted)
	"gruvbox": {
		time:      "\x1b[38;5;108m",
		component: "\x1b[38;5;214m",
		symbol:    "\x1b[38;5;142m",
		stage:     "\x1b[38;5;208m",
		id:        "\x1b[38;5;109m",
		number:    "\x1b[38;5;175m",
		fg:        "\x1b[38;5;223m",
		warn:      "\x1b[38;5;214m",
		warnBg:    "\x1b[48;5;58m",
		err:       "\x1b[38;5;167m",
		errBg:     "\x1b[48;5;88m",
	},
	// Everforest Dark (forest greens)
	"everforest": {
		time:      "\x1b[38;5;107m",
		component: "\x1b[38;5;65m",
		symbol:    "\x1b[38;5;108m",
		stage:     "\x1b[38;5;208m",
		id:        "\x1b[38;5;109m",
		number:    "\x1b[38;5;108m",
		fg:        "\x1b[38;5;223m",
		warn:      "\x1b[38;5;179m",
		warnBg:    "\x1b[48;5;58m",
		err:       "\x1b[38;5;167m",
		errBg:     "\x1b[48;5;52m",
	},
}

var currentTheme = "everforest"

// SetTheme configures the color scheme for log output
func SetTheme(theme string) {
	if _, ok := themes[theme]; ok {
		currentTheme = theme
	}
}

func colors() palette {
	return themes[currentTheme]
}

// keys rendered specially (or not at all) by the minimal encoder
var reservedKeys = map[string]bool{
	FieldSymbol:     true,
	FieldStage:      true,
	FieldRunID:      true,
	FieldDurationMS: true,
	"errorVerbose":  true,
}

// minimalEncoder implements a calm, compact console encoder.
// Format: "13:04:35  ꩜ [monitoring]  pipeline  Tick  a1b2c3d4  tick=12 elapsed=1.2s"
//
// Context fields added via With() are kept in the embedded map encoder so
// they render alongside per-entry fields.
type minimalEncoder struct {
	*zapcore.MapObjectEncoder
}

func newMinimalEncoder() *minimalEncoder {
	return &minimalEncoder{MapObjectEncoder: zapcore.NewMapObjectEncoder()}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range enc.Fields {
		clone.Fields[k] = v
	}
	return &minimalEncoder{MapObjectEncoder: clone}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	all := enc.Clone().(*minimalEncoder)
	for _, f := range fields {
		f.AddTo(all.MapObjectEncoder)
	}
	values := all.Fields
	c := colors()

	final := buffer.NewPool().Get()

	final.AppendString(c.time)
	final.AppendString(ent.Time.Format("15:04:05.000"))
	final.AppendString(colorReset)

	// Level: only show for WARN and above
	if ent.Level > zapcore.InfoLevel || ent.Level == zapcore.DebugLevel {
		final.AppendString("  ")
		final.AppendString(levelString(ent.Level, c))
	}

	if symbol, ok := values[FieldSymbol]; ok {
		final.AppendString("  ")
		final.AppendString(c.symbol + fmt.Sprint(symbol) + colorReset)
	}
	if stage, ok := values[FieldStage]; ok {
		final.AppendString(" ")
		final.AppendString(c.stage + "[" + fmt.Sprint(stage) + "]" + colorReset)
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(c.component + abbreviateName(ent.LoggerName) + colorReset)
	}

	final.AppendString("  ")
	final.AppendString(c.fg + ent.Message + colorReset)

	if runID, ok := values[FieldRunID]; ok {
		final.AppendString("  ")
		final.AppendString(c.id + shortID(fmt.Sprint(runID)) + colorReset)
	}
	if ms, ok := values[FieldDurationMS]; ok {
		final.AppendString("  ")
		final.AppendString(c.number + fmt.Sprint(ms) + colorReset + "ms")
	}

	if rest := renderFields(values, c); rest != "" {
		final.AppendString("  ")
		final.AppendString(rest)
	}

	final.AppendString("\n")
	return final, nil
}

// renderFields writes every non-reserved field as key=value, sorted by key.
// Nothing is dropped silently.
func renderFields(values map[string]interface{}, c palette) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if !reservedKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s%v%s", k, c.number, values[k], colorReset))
	}
	return strings.Join(parts, " ")
}

func levelString(level zapcore.Level, c palette) string {
	switch level {
	case zapcore.DebugLevel:
		return c.fg + "DEBUG" + colorReset
	case zapcore.WarnLevel:
		return colorBold + c.warnBg + c.warn + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + c.errBg + c.err + "ERROR" + colorReset
	default:
		return colorBold + c.errBg + c.err + level.CapitalString() + colorReset
	}
}

// abbreviateName shortens component names: pipeline.stage -> p.stage
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 && parts[0] != "" {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

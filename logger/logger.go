// Package logger is dropwatch's structured logging: a zap SugaredLogger
// with a calm console encoder for people and JSON for machines.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. It discards everything until
// Initialize runs, so packages may log from init paths and tests.
var Logger = zap.NewNop().Sugar()

// Initialize replaces Logger according to the --json-logs flag and the
// -v count. DROPWATCH_LOG_THEME overrides the console palette.
func Initialize(jsonOutput bool, verbosity int) error {
	if theme := os.Getenv("DROPWATCH_LOG_THEME"); theme != "" {
		SetTheme(theme)
	}
	Logger = New(os.Stderr, jsonOutput, verbosity)
	return nil
}

// New builds a logger writing to w at the level implied by verbosity
func New(w io.Writer, jsonOutput bool, verbosity int) *zap.SugaredLogger {
	level := zap.NewAtomicLevelAt(VerbosityToLevel(verbosity))

	var enc zapcore.Encoder
	if jsonOutput {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		enc = newMinimalEncoder()
	}

	opts := []zap.Option{}
	if jsonOutput {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level), opts...).Sugar()
}

// Cleanup flushes buffered entries; call it before exit
func Cleanup() {
	_ = Logger.Sync()
}

package logger

import (
	"github.com/teranos/dropwatch/sym"
	"go.uber.org/zap"
)

// Symbol-aware logging helpers.
// These attach the stage glyph as a structured field, not in the message,
// so logs stay queryable by symbol.
//
//	logger.StageInfow(log, "acquiring", "Clicked add to cart", "attempt", 2)

// StageInfow logs an info message tagged with the stage's symbol
func StageInfow(log *zap.SugaredLogger, stage, msg string, keysAndValues ...interface{}) {
	if log == nil {
		return
	}
	fields := append([]interface{}{FieldSymbol, sym.ForStage(stage), FieldStage, stage}, keysAndValues...)
	log.Infow(msg, fields...)
}

// StageWarnw logs a warning tagged with the stage's symbol
func StageWarnw(log *zap.SugaredLogger, stage, msg string, keysAndValues ...interface{}) {
	if log == nil {
		return
	}
	fields := append([]interface{}{FieldSymbol, sym.ForStage(stage), FieldStage, stage}, keysAndValues...)
	log.Warnw(msg, fields...)
}

// StageDebugw logs a debug message tagged with the stage's symbol
func StageDebugw(log *zap.SugaredLogger, stage, msg string, keysAndValues ...interface{}) {
	if log == nil {
		return
	}
	fields := append([]interface{}{FieldSymbol, sym.ForStage(stage), FieldStage, stage}, keysAndValues...)
	log.Debugw(msg, fields...)
}

// WithSymbol returns a logger with the given symbol as a field.
func WithSymbol(log *zap.SugaredLogger, symbol string) *zap.SugaredLogger {
	return log.With(FieldSymbol, symbol)
}

package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across dropwatch.
const (
	// Identity
	FieldRunID     = "run_id"
	FieldComponent = "component"
	FieldSymbol    = "symbol"

	// Pipeline
	FieldStage     = "stage"
	FieldReason    = "reason"
	FieldMatcher   = "matcher"
	FieldEvidence  = "evidence"
	FieldAttempt   = "attempt"
	FieldAttempts  = "attempts"
	FieldTick      = "tick"
	FieldInterval  = "interval"
	FieldRemaining = "remaining"

	// Listing
	FieldItemID = "item_id"
	FieldTitle  = "title"
	FieldURL    = "url"
	FieldCount  = "count"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldElapsed    = "elapsed"

	// Errors
	FieldError = "error"
)

type contextKey string

const runIDKey contextKey = "logger_run_id"

// WithRunID adds a pipeline run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run ID stored by WithRunID, if any
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// LoggerFromContext returns a logger that includes the run_id from ctx.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	if id := RunIDFromContext(ctx); id != "" {
		return Logger.With(FieldRunID, id)
	}
	return Logger
}

// ComponentLogger returns a named logger for a specific component.
//
// Example:
//
//	type Watcher struct {
//	    log *zap.SugaredLogger
//	}
//
//	func NewWatcher() *Watcher {
//	    return &Watcher{log: logger.ComponentLogger("listing.watcher")}
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

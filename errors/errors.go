// Package errors provides error handling for dropwatch.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints attached to validation failures
//
// Usage:
//
//	// Wrap with context
//	if err := page.Navigate(ctx, url); err != nil {
//	    return errors.Wrap(err, "failed to open product page")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "try increasing timing.max_wait_seconds")
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
	Mark               = crdb.Mark
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails

	GetReportableStackTrace = crdb.GetReportableStackTrace
)

// Assertions and panics
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Common sentinel errors for use across dropwatch.
// Use these with errors.Is() for type-safe error checking.
// Wrap or Mark these to add context while preserving the type.
var (
	// ErrNotFound indicates a page element or stored record does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates a configuration or argument was malformed
	ErrInvalidRequest = New("invalid request")

	// ErrTimeout indicates a poll exhausted its wait budget
	ErrTimeout = New("operation timed out")

	// ErrActionFailed indicates a page action (click, navigate) did not succeed
	ErrActionFailed = New("action failed")

	// ErrRetriesExhausted indicates every attempt allowed by a retry policy failed
	ErrRetriesExhausted = New("retries exhausted")

	// ErrCancelled indicates the run was interrupted by the caller
	ErrCancelled = New("cancelled")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidRequest)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// NewActionFailedError creates an action-failed error with a formatted message
func NewActionFailedError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrActionFailed)
}

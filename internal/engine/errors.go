package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/livemark/internal/dom"
	"github.com/roach88/livemark/internal/ir"
)

// RuntimeError describes a degraded outcome in the binding runtime.
//
// Runtime errors are never returned from binding. They are handed to the
// binding's own error handler, if any, or to the engine's default error
// sink, which logs them and writes them to the trace store.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Marker is the marker being bound, when known.
	Marker ir.Marker

	// NodeID identifies the affected node, when known.
	NodeID dom.NodeID

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnresolvableSource: a sink binding's source produced nothing usable.
	ErrCodeUnresolvableSource RuntimeErrorCode = "UNRESOLVABLE_SOURCE"

	// ErrCodeSinkError: a sink function panicked while writing a value.
	ErrCodeSinkError RuntimeErrorCode = "SINK_ERROR"

	// ErrCodeStreamError: a stream or future reported an error.
	ErrCodeStreamError RuntimeErrorCode = "STREAM_ERROR"

	// ErrCodeUnknownMarker: a resolve attribute had no pending bindings.
	ErrCodeUnknownMarker RuntimeErrorCode = "UNKNOWN_MARKER"

	// ErrCodeOrphanedMarker: bindings waited too long for their element.
	ErrCodeOrphanedMarker RuntimeErrorCode = "ORPHANED_MARKER"

	// ErrCodeWrongGoroutine: the loop was driven from a goroutine that does
	// not own it.
	ErrCodeWrongGoroutine RuntimeErrorCode = "WRONG_GOROUTINE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Marker != "" {
		msg += fmt.Sprintf(" (marker=%s)", e.Marker)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsSinkError reports whether err is a SINK_ERROR.
func IsSinkError(err error) bool { return hasCode(err, ErrCodeSinkError) }

// IsStreamError reports whether err is a STREAM_ERROR.
func IsStreamError(err error) bool { return hasCode(err, ErrCodeStreamError) }

// IsUnresolvableSource reports whether err is an UNRESOLVABLE_SOURCE error.
func IsUnresolvableSource(err error) bool { return hasCode(err, ErrCodeUnresolvableSource) }

// IsUnknownMarker reports whether err is an UNKNOWN_MARKER error.
func IsUnknownMarker(err error) bool { return hasCode(err, ErrCodeUnknownMarker) }

// IsWrongGoroutine reports whether err is a WRONG_GOROUTINE error.
func IsWrongGoroutine(err error) bool { return hasCode(err, ErrCodeWrongGoroutine) }

// SinkPanicError wraps a value recovered from a panicking sink.
type SinkPanicError struct {
	Value any
}

func (e *SinkPanicError) Error() string {
	return fmt.Sprintf("sink panicked: %v", e.Value)
}

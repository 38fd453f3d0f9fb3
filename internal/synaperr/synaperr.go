// Package synaperr defines the closed error taxonomy surfaced to callers of the
// engine (spec.md §7). Every operator in internal/values and internal/keyspace
// returns one of these kinds rather than an ad-hoc error string, so the command
// gateway can map failures to a stable wire shape without inspecting messages.
package synaperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds in the engine's error taxonomy. Kinds are
// deliberately closed: a new failure mode should map onto an existing kind or
// the taxonomy should grow, it should never be expressed as a raw string.
type Kind string

const (
	// NotFound indicates a key, queue, stream, room, or group absent from the engine.
	NotFound Kind = "NotFound"
	// WrongType indicates an operator was applied to a key whose stored
	// variant does not match (e.g. LPUSH on a key holding a Set).
	WrongType Kind = "WrongType"
	// NotInteger indicates arithmetic (INCR/DECR/HINCRBY) attempted on a
	// value that cannot be parsed as a base-10 integer.
	NotInteger Kind = "NotInteger"
	// OutOfRange indicates an invalid offset, bit width, coordinate, or index.
	OutOfRange Kind = "OutOfRange"
	// TransactionAborted indicates EXEC observed a watched key's version
	// change since WATCH was recorded.
	TransactionAborted Kind = "TransactionAborted"
	// ReadOnly indicates a mutation was attempted against a replica.
	ReadOnly Kind = "ReadOnly"
	// QueueFull indicates a bounded queue or stream rejected a publish.
	QueueFull Kind = "QueueFull"
	// BackpressureExceeded indicates a slow consumer caused a bounded
	// buffer (replication ring, subscriber sink) to be shed.
	BackpressureExceeded Kind = "BackpressureExceeded"
	// DurabilityFailed indicates a WAL append or fsync failed; the
	// originating write must be rejected, not silently dropped.
	DurabilityFailed Kind = "DurabilityFailed"
	// Internal indicates an invariant violation or unexpected I/O failure.
	Internal Kind = "Internal"
)

// Error is the concrete error type returned across component boundaries. It
// carries a Kind for programmatic dispatch and wraps an optional underlying
// cause for diagnostics.
type Error struct {
	Cause   error
	Message string
	Kind    Kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given kind. It is the idiomatic
// way for callers to branch on error kind without a type assertion.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err. ok is false if err is nil or not a
// *Error (a plain error from outside the engine's taxonomy).
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return "", false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

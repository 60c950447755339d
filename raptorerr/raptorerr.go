// Package raptorerr defines the typed error kinds surfaced by every
// Raptor subsystem, wrapped with github.com/pkg/errors so callers can
// recover both a stable Kind and a stack-aware context chain for
// diagnostics.
package raptorerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a Raptor error. The CLI exits with status 1 for
// every error regardless of its Kind.
type Kind int

const (
	// InputUnreadable: path missing, permission denied, non-DNA4
	// content encountered in strict mode.
	InputUnreadable Kind = iota + 1
	// IndexCorrupt: magic/version/checksum mismatch, truncated file.
	IndexCorrupt
	// InvalidArgument: out-of-range numeric flags, window < k, a
	// shape with a leading/trailing zero, non-power-of-two parts.
	InvalidArgument
	// IoExhausted: write errors, disk full.
	IoExhausted
	// OutOfResources: requested bin count * bits exceeds addressable
	// memory.
	OutOfResources
	// Cancelled: cooperative cancellation fired.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InputUnreadable:
		return "InputUnreadable"
	case IndexCorrupt:
		return "IndexCorrupt"
	case InvalidArgument:
		return "InvalidArgument"
	case IoExhausted:
		return "IoExhausted"
	case OutOfResources:
		return "OutOfResources"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is a typed Raptor error carrying a Kind and human-readable
// context, chained onto an optional cause via pkg/errors so %+v still
// prints a stack trace from the point it was wrapped.
type Error struct {
	kind    Kind
	context string
	cause   error
}

// New constructs an Error with no external cause; its cause is a fresh
// pkg/errors error carrying the context and a stack trace.
func New(kind Kind, context string) *Error {
	return &Error{kind: kind, context: context, cause: errors.New(context)}
}

// Wrap attaches kind and context to an existing error, preserving it
// as the cause for errors.Cause/errors.Unwrap.
func Wrap(cause error, kind Kind, context string) *Error {
	return &Error{kind: kind, context: context, cause: errors.Wrap(cause, context)}
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.context)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// As reports whether err is (or wraps) a *Error, returning it.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is a *Error, else 0.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.kind
	}
	return 0
}

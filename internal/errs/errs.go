// Package errs implements the error taxonomy from the design: a closed set
// of kinds rather than a zoo of sentinel error values or concrete types, so
// callers across the data store, the orchestrator, and the DEC mailbox can
// discriminate failures the same way regardless of which layer raised them.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind enumerates the error categories a caller needs to discriminate.
type Kind int

const (
	// Unknown is never returned by this package; it is the zero value so a
	// missing Kind check fails loudly instead of silently matching something.
	Unknown Kind = iota
	InvalidArgument
	NotFound
	Duplicate
	Database
	NotSupported
	InvalidOperation
	Connection
	DecentralizedTransport
	Canceled
	Disposed
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid-argument"
	case NotFound:
		return "not-found"
	case Duplicate:
		return "duplicate"
	case Database:
		return "database"
	case NotSupported:
		return "not-supported"
	case InvalidOperation:
		return "invalid-operation"
	case Connection:
		return "connection"
	case DecentralizedTransport:
		return "decentralized-transport"
	case Canceled:
		return "canceled"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Error is the concrete error type every package in this module returns for
// any condition named in the error taxonomy. Infrastructure failures (SQL,
// network) are wrapped with the nearest matching Kind rather than surfaced
// bare.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a Kind-tagged error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags cause with kind, preserving it via Unwrap/errors.Is.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Is reports whether err is an *Error of the given Kind, looking through any
// wrapping.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// FromContext maps a context's cancellation into the Canceled kind. It
// returns nil if ctx carries no error. Cancellation is always surfaced as a
// distinct Canceled kind, never folded into Database or Connection, per the
// concurrency model's cancellation rule.
func FromContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return Wrap(Canceled, err, "operation canceled")
	}
	return nil
}

// Package chaterr is the error taxonomy surfaced to gateway callers.
package chaterr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	NotFound         Kind = "not_found"
	Unauthenticated  Kind = "unauthenticated"
	PermissionDenied Kind = "permission_denied"
	WriteFailed      Kind = "write_failed"
	Conflict         Kind = "conflict"
	InvalidArgument  Kind = "invalid_argument"
)

// Error attaches a Kind and the failing operation to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error whose cause is a formatted message.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FanoutError reports the per-side outcome of a dual write. A nil side
// error means that copy was written.
type FanoutError struct {
	SenderErr    error
	RecipientErr error
}

func (e *FanoutError) Error() string {
	switch {
	case e.SenderErr != nil && e.RecipientErr != nil:
		return fmt.Sprintf("sender copy: %v; recipient copy: %v", e.SenderErr, e.RecipientErr)
	case e.SenderErr != nil:
		return fmt.Sprintf("sender copy: %v (recipient copy written)", e.SenderErr)
	default:
		return fmt.Sprintf("recipient copy: %v (sender copy written)", e.RecipientErr)
	}
}

func (e *FanoutError) Unwrap() []error {
	var errs []error
	if e.SenderErr != nil {
		errs = append(errs, e.SenderErr)
	}
	if e.RecipientErr != nil {
		errs = append(errs, e.RecipientErr)
	}
	return errs
}

func (e *FanoutError) SenderOK() bool    { return e.SenderErr == nil }
func (e *FanoutError) RecipientOK() bool { return e.RecipientErr == nil }

// Partial is true when exactly one copy was written.
func (e *FanoutError) Partial() bool { return e.SenderOK() != e.RecipientOK() }

// Package apperr is the error taxonomy shared by every use case. Callers
// match kinds with errors.Is against the exported sentinels.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInvalidTransition
	KindInvalidState
	KindAuthorization
	KindIntegration
	KindReconciliation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindInvalidState:
		return "invalid_state"
	case KindAuthorization:
		return "authorization"
	case KindIntegration:
		return "integration"
	case KindReconciliation:
		return "reconciliation"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrAuthorization     = &Error{Kind: KindAuthorization}
	ErrIntegration       = &Error{Kind: KindIntegration}
	ErrReconciliation    = &Error{Kind: KindReconciliation}
)

func newf(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error { return newf(KindValidation, format, args...) }
func NotFound(format string, args ...any) error   { return newf(KindNotFound, format, args...) }
func InvalidTransition(format string, args ...any) error {
	return newf(KindInvalidTransition, format, args...)
}
func InvalidState(format string, args ...any) error { return newf(KindInvalidState, format, args...) }
func Forbidden(format string, args ...any) error    { return newf(KindAuthorization, format, args...) }

// Integration wraps a failure of an external collaborator (PSP, catalog).
func Integration(err error, format string, args ...any) error {
	return &Error{Kind: KindIntegration, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Reconciliation(err error, format string, args ...any) error {
	return &Error{Kind: KindReconciliation, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

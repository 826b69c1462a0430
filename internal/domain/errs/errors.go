package errs

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can decide between retry, reject and abort.
type Kind string

const (
	KindTransientExternal Kind = "transient_external"
	KindValidation        Kind = "validation"
	KindResourceConflict  Kind = "resource_conflict"
	KindFatalConfig       Kind = "fatal_config"
)

// Error carries a machine-readable code next to a human detail.
type Error struct {
	Kind   Kind
	Code   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps an upstream failure (timeout, unavailable feed or reasoner).
func Transient(code string, err error) *Error {
	return &Error{Kind: KindTransientExternal, Code: code, Detail: "upstream unavailable", Err: err}
}

// Validation reports malformed input or an out-of-range parameter.
func Validation(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Conflict reports a resource already taken, such as a cooling-down ticker.
func Conflict(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindResourceConflict, Code: code, Detail: fmt.Sprintf(format, args...)}
}

// FatalConfig reports configuration that makes the component unusable.
func FatalConfig(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindFatalConfig, Code: code, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of the first *Error in the chain, or fallback.
func CodeOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return fallback
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }

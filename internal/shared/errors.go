package shared

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures for callers deciding whether to retry or render.
type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION"
	KindNotFound   ErrorKind = "NOT_FOUND"
	KindConflict   ErrorKind = "CONFLICT"
	KindPolicy     ErrorKind = "POLICY_VIOLATION"
)

// Error is the typed failure returned by every ledger operation.
type Error struct {
	Kind    ErrorKind
	Code    string
	Field   string
	ID      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(string(e.Kind)))
	if e.Code != "" {
		b.WriteString(" [")
		b.WriteString(e.Code)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field=%s)", e.Field)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " (id=%s)", e.ID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches by code, or by kind when the target carries no code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return t.Kind == e.Kind
	}
	return t.Code == e.Code
}

// With returns a copy annotated with the offending field and record id.
func (e *Error) With(field, id string) *Error {
	out := *e
	if field != "" {
		out.Field = field
	}
	if id != "" {
		out.ID = id
	}
	return &out
}

// Withf returns a copy with a more specific message.
func (e *Error) Withf(format string, args ...any) *Error {
	out := *e
	out.Message = fmt.Sprintf(format, args...)
	return &out
}

// Wrap returns a copy carrying cause.
func (e *Error) Wrap(cause error) *Error {
	out := *e
	out.Err = cause
	return &out
}

// Kind sentinels match any error of that kind via errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict, Code: "CONFLICT", Message: "concurrent modification, retry the operation"}
	ErrPolicy     = &Error{Kind: KindPolicy}
)

// Validation builds a validation failure.
func Validation(code, field, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Field: field, Message: msg}
}

// NotFound builds a missing-record failure.
func NotFound(code, id, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, ID: id, Message: msg}
}

// Policy builds a business-rule rejection.
func Policy(code, msg string) *Error {
	return &Error{Kind: KindPolicy, Code: code, Message: msg}
}

// KindOf reports the kind of err, or "" when err is not a ledger error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may retry the same command.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

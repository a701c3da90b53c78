package common

import (
	"errors"
	"fmt"
)

// Code classifies an operation failure for the request-handling layer.
type Code int

const (
	CodeUnauthorized Code = iota + 1
	CodeForbidden
	CodeInvalidArgument
	CodeNotFound
	CodeConflict
)

func (c Code) String() string {
	switch c {
	case CodeUnauthorized:
		return "unauthorized"
	case CodeForbidden:
		return "forbidden"
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeNotFound:
		return "not_found"
	case CodeConflict:
		return "conflict"
	}
	return "unknown"
}

// Error is a code-carrying error. Two Errors compare equal under errors.Is
// when their codes match, so callers can branch on the prototype values
// below without caring about detail text.
type Error struct {
	Code   Code   `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Msg, e.Detail)
}

// WithDetail returns a copy carrying extra context.
func (e *Error) WithDetail(detail string) *Error {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &Error{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e *Error) WithDetailf(format string, args ...interface{}) *Error {
	return e.WithDetail(fmt.Sprintf(format, args...))
}

func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return e.Code == te.Code
}

var (
	ErrUnauthorized    = &Error{Code: CodeUnauthorized, Msg: "actor lacks required capability"}
	ErrForbidden       = &Error{Code: CodeForbidden, Msg: "rejected by policy"}
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument, Msg: "invalid argument"}
	ErrNotFound        = &Error{Code: CodeNotFound, Msg: "not found"}
	ErrConflict        = &Error{Code: CodeConflict, Msg: "conflict"}
)

package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the submission pipeline wraps
// exactly one of these so callers can select on errors.Is.
var (
	ErrAuthorization = errors.New("authorization failed")
	ErrValidation    = errors.New("validation failed")
	ErrUpstream      = errors.New("upstream service failed")
	ErrQueue         = errors.New("queue operation failed")
	ErrBus           = errors.New("bus operation failed")
)

// Error carries a kind plus a caller-facing message and optional cause.
// Status optionally pins the HTTP status; zero defers to the kind's default.
type Error struct {
	Kind   error
	Msg    string
	Err    error
	Status int
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Msg == "" && e.Err == nil:
		return e.Kind.Error()
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Kind.Error(), e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Kind }

// New builds an Error of the given kind with a formatted message.
func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WithStatus builds an Error of the given kind pinned to an HTTP status.
func WithStatus(kind error, status int, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Status: status}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind error, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

package common

import (
	"errors"
	"fmt"
)

var (
	// caller errors
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("could not validate credentials")
	ErrConflict   = errors.New("already exists")
	ErrNotFound   = errors.New("not found")

	// dependency errors, never shown to the caller in detail
	ErrDetection = errors.New("detection failed")
	ErrStorage   = errors.New("storage failed")
)

// Error pairs an error kind with a message that is safe to return to the
// caller and an optional underlying cause for the logs.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Newf builds an error of the given kind with a formatted caller message.
func Newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and a caller message to err.
func Wrap(kind error, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Message returns the caller-safe part of err. Errors that are not *Error
// yield the fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		return e.Kind.Error()
	}
	return fallback
}

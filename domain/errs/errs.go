package errs

import (
	"errors"
)

// Code classifies a failure surfaced by handles, pages and drivers.
type Code string

const (
	InvalidArgument Code = "invalid_argument"
	Timeout         Code = "timeout"
	NotFound        Code = "not_found"
	AssertionFailed Code = "assertion_failed"
	Internal        Code = "internal"
)

// Error is a coded error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Err: cause}
}

// CodeOf returns the outermost error code, defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	return Internal
}

// Is reports whether err carries code anywhere in its chain.
func Is(err error, code Code) bool {
	for err != nil {
		var coded *Error
		if !errors.As(err, &coded) {
			return false
		}
		if coded.Code == code {
			return true
		}
		err = coded.Err
	}
	return false
}

// Package errors carries the coded errors services return and the HTTP
// layer renders. Codes live in codes.go together with their status mapping.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// Error pairs a Code with a developer message, optional client details and
// the underlying cause.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap keeps err reachable through errors.Is/As. With a nil err it is New.
func Wrap(code Code, err error, message string) *Error {
	e := New(code, message)
	e.cause = err
	return e
}

// WithDetails sets the client-visible payload and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

// Code on a nil *Error reports CodeInternal.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As finds the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var coded *Error
	if !stdErrors.As(err, &coded) {
		return nil
	}
	return coded
}

func HasCode(err error, code Code) bool {
	coded := As(err)
	return coded != nil && coded.code == code
}

// IsRetryable reports the Retryable hint of err's code; untyped errors are
// not retryable.
func IsRetryable(err error) bool {
	coded := As(err)
	if coded == nil {
		return false
	}
	return MetadataFor(coded.code).Retryable
}

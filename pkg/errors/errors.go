package errors

import (
	stdErrors "errors"
	"fmt"
)

// Code classifies failures per the recovery strategy they demand.
type Code string

const (
	// CodeValidation marks malformed input or wire payloads. Never retried.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeNotFound marks missing records.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict marks duplicate-state collisions (e.g. email already taken).
	CodeConflict Code = "CONFLICT"
	// CodeDependency marks transient infrastructure failures. Retryable.
	CodeDependency Code = "DEPENDENCY_ERROR"
	// CodeInternal marks unexpected defects.
	CodeInternal Code = "INTERNAL_ERROR"
)

// Retryable reports whether errors under this code may succeed on retry.
func (c Code) Retryable() bool {
	return c == CodeDependency || c == CodeInternal
}

type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

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

// As extracts a coded error from an error chain, or nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code for any error, defaulting to CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

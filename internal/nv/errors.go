package nv

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes statement-level variable errors.
type ErrorCode string

const (
	// ErrCodeSubscript indicates a subscript out of range or malformed.
	ErrCodeSubscript ErrorCode = "SUBSCRIPT_RANGE"

	// ErrCodeReadOnly indicates a write or unset of a readonly variable.
	ErrCodeReadOnly ErrorCode = "READ_ONLY"

	// ErrCodeType indicates a value incompatible with the node's attributes.
	ErrCodeType ErrorCode = "TYPE_MISMATCH"

	// ErrCodeRecursion indicates a discipline reinstalling itself reentrantly.
	ErrCodeRecursion ErrorCode = "RECURSION"

	// ErrCodeName indicates an invalid variable name.
	ErrCodeName ErrorCode = "INVALID_NAME"
)

// Error is a catchable condition that aborts the current statement.
//
// The executor unwinds to the nearest checkpoint and reports Error() as the
// diagnostic. Nothing in this package retries after an Error.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Name is the variable (with subscript, if any) involved.
	Name string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Name, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, name, format string, args ...any) *Error {
	return &Error{Code: code, Name: name, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the ErrorCode of err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsSubscriptError returns true if err is a subscript range error.
func IsSubscriptError(err error) bool {
	return CodeOf(err) == ErrCodeSubscript
}

// IsReadOnlyError returns true if err is a readonly violation.
func IsReadOnlyError(err error) bool {
	return CodeOf(err) == ErrCodeReadOnly
}

// IsTypeError returns true if err is a type incompatibility.
func IsTypeError(err error) bool {
	return CodeOf(err) == ErrCodeType
}

// FatalCode categorizes failures that terminate the shell.
type FatalCode string

const (
	// FatalAllocation indicates storage could not be allocated.
	FatalAllocation FatalCode = "ALLOCATION"

	// FatalScopeRestore indicates ambient state could not be restored on
	// scope exit, leaving the shell inconsistent.
	FatalScopeRestore FatalCode = "SCOPE_RESTORE"
)

// FatalError is raised with panic and is not catchable by script handlers.
// Only the process entry point recovers it, via RecoverFatal.
type FatalError struct {
	Code    FatalCode
	Message string
	Err     error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("fatal %s: %s", e.Code, e.Message)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal panics with a *FatalError.
func Fatal(code FatalCode, message string, err error) {
	panic(&FatalError{Code: code, Message: message, Err: err})
}

// RecoverFatal converts a *FatalError panic into *errp. Other panics are
// re-raised. Use it deferred at the process boundary:
//
//	defer nv.RecoverFatal(&err)
func RecoverFatal(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if fe, ok := r.(*FatalError); ok {
		*errp = fe
		return
	}
	panic(r)
}

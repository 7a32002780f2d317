package ops

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an error by the phase that produced it.
type ErrorClass string

const (
	// ErrorClassRuntimeStart indicates the foreign runtime failed to initialize.
	// The gateway is unusable after such an error.
	ErrorClassRuntimeStart ErrorClass = "runtime_start"

	// ErrorClassDispatch indicates a failure while resolving or executing an
	// operation request.
	ErrorClassDispatch ErrorClass = "dispatch"
)

// Dispatch error codes.
const (
	CodeNotFound     = "not_found"
	CodeArity        = "arity"
	CodeTypeMismatch = "type_mismatch"
	CodeFailed       = "failed"
)

// Error is a classified operation error.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Code refines the class, e.g. CodeNotFound.
	Code string `json:"code,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Operation is the fully-qualified operation name, if applicable.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Operation != "" {
		msg = fmt.Sprintf("%s (operation=%s)", msg, e.Operation)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same class and, if the
// target carries a code, the same code. Class sentinels such as ErrDispatch
// therefore match every code of their class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Class != t.Class {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// WithOperation sets the operation name.
func (e *Error) WithOperation(name string) *Error {
	e.Operation = name
	return e
}

// WithCode sets the error code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// Sentinels for errors.Is.
var (
	ErrRuntimeStart = &Error{Class: ErrorClassRuntimeStart, Message: "runtime failed to start"}
	ErrDispatch     = &Error{Class: ErrorClassDispatch, Message: "operation dispatch failed"}
	ErrOpNotFound   = &Error{Class: ErrorClassDispatch, Code: CodeNotFound, Message: "operation not found"}
	ErrArity        = &Error{Class: ErrorClassDispatch, Code: CodeArity, Message: "no operation accepts this number of inputs"}
	ErrTypeMismatch = &Error{Class: ErrorClassDispatch, Code: CodeTypeMismatch, Message: "no operation accepts these input types"}
	ErrOpFailed     = &Error{Class: ErrorClassDispatch, Code: CodeFailed, Message: "operation failed"}
)

// NewRuntimeStartError creates a runtime_start error.
func NewRuntimeStartError(message string, err error) *Error {
	return &Error{
		Class:   ErrorClassRuntimeStart,
		Message: message,
		Err:     err,
	}
}

// NewDispatchError creates a dispatch error with the given code.
func NewDispatchError(code, operation, message string, err error) *Error {
	return &Error{
		Class:     ErrorClassDispatch,
		Code:      code,
		Message:   message,
		Operation: operation,
		Err:       err,
	}
}

// IsRuntimeStart reports whether err is classified as runtime_start.
func IsRuntimeStart(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassRuntimeStart
	}
	return false
}

// IsDispatch reports whether err is classified as dispatch.
func IsDispatch(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassDispatch
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

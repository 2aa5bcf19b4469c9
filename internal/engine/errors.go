package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while executing an IR document.
//
// Lookup failures (VIEW_NOT_FOUND, TASK_NOT_FOUND, FLOW_NOT_FOUND) abort only
// the call that hit them; the runtime stays usable afterwards.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Target names the view, task, flow or node involved, when there is one.
	Target string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeViewNotFound indicates no view has the requested id.
	ErrCodeViewNotFound RuntimeErrorCode = "VIEW_NOT_FOUND"

	// ErrCodeTaskNotFound indicates no node has the requested task id.
	ErrCodeTaskNotFound RuntimeErrorCode = "TASK_NOT_FOUND"

	// ErrCodeNotATask indicates the id names a node of another type.
	ErrCodeNotATask RuntimeErrorCode = "NOT_A_TASK"

	// ErrCodeFlowNotFound indicates no flow has the requested id.
	ErrCodeFlowNotFound RuntimeErrorCode = "FLOW_NOT_FOUND"

	// ErrCodeUnknownNode indicates a selector reads from a missing node.
	ErrCodeUnknownNode RuntimeErrorCode = "UNKNOWN_NODE"

	// ErrCodeUnknownSource indicates a ctx node names an unregistered source type.
	ErrCodeUnknownSource RuntimeErrorCode = "UNKNOWN_SOURCE"

	// ErrCodeInvalidSelector indicates malformed selector parameters.
	ErrCodeInvalidSelector RuntimeErrorCode = "INVALID_SELECTOR"

	// ErrCodeInvalidInput indicates an operation got data it cannot process.
	ErrCodeInvalidInput RuntimeErrorCode = "INVALID_INPUT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Target != "" {
		msg = fmt.Sprintf("%s (target=%s)", msg, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a view, task or flow lookup failure.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		switch re.Code {
		case ErrCodeViewNotFound, ErrCodeTaskNotFound, ErrCodeFlowNotFound:
			return true
		}
	}
	return false
}

// ErrorCode returns the RuntimeErrorCode carried by err, or "" if err is not
// a RuntimeError.
func ErrorCode(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func newError(code RuntimeErrorCode, target, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Target:  target,
	}
}

// errorMessage is the text embedded in a failed selector's marker. Runtime
// errors contribute only their message; other errors their full text.
func errorMessage(err error) string {
	var re *RuntimeError
	if errors.As(err, &re) {
		if re.Err != nil {
			return fmt.Sprintf("%s: %v", re.Message, re.Err)
		}
		return re.Message
	}
	return err.Error()
}

package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind categorizes a pipeline failure.
type ErrorKind string

const (
	// ErrorKindBackend indicates the generation backend was unreachable or
	// returned malformed output.
	ErrorKindBackend ErrorKind = "backend"

	// ErrorKindTool indicates a tool or tool-stage invocation failed.
	ErrorKindTool ErrorKind = "tool"

	// ErrorKindUnresolvedKey indicates an instruction template referenced a
	// state key that was never written.
	ErrorKindUnresolvedKey ErrorKind = "unresolved_key"

	// ErrorKindCanceled indicates the invocation was canceled or timed out.
	ErrorKindCanceled ErrorKind = "canceled"
)

// Error is the structured failure reported by a pipeline run. Every error
// that unwinds out of Invoke is one of these; callers get the kind, the
// failing stage, and a message rather than a partial textual answer.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s error in stage %s: %s", e.Kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewBackendError wraps a generation backend failure for the given stage.
func NewBackendError(stage string, err error) *Error {
	return &Error{Kind: ErrorKindBackend, Stage: stage, Message: err.Error(), Err: err}
}

// NewToolError wraps a tool invocation failure for the given stage.
func NewToolError(stage, tool string, err error) *Error {
	return &Error{
		Kind:    ErrorKindTool,
		Stage:   stage,
		Message: fmt.Sprintf("tool %s: %v", tool, err),
		Err:     err,
	}
}

// NewUnresolvedKeyError reports a template reference to an unwritten key.
func NewUnresolvedKeyError(key string) *Error {
	return &Error{
		Kind:    ErrorKindUnresolvedKey,
		Message: fmt.Sprintf("template references unwritten state key %q", key),
	}
}

// KindOf returns the kind of a pipeline error, preferring cancellation when
// the cause is context expiry. Returns the empty kind for foreign errors.
func KindOf(err error) ErrorKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindCanceled
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// AsError coerces err into a structured *Error, wrapping foreign errors as
// backend-kind failures attributed to stage.
func AsError(err error, stage string) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	kind := ErrorKindBackend
	if KindOf(err) == ErrorKindCanceled {
		kind = ErrorKindCanceled
	}
	return &Error{Kind: kind, Stage: stage, Message: err.Error(), Err: err}
}

// Package domain defines core types, interfaces, and errors for catalog provisioning.
package domain

import (
	"fmt"
	"time"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// TemplateError indicates a DDL template that is missing, unreadable, or
// contains placeholders other than {prefix} and {bucket}.
type TemplateError struct {
	Path    string // empty for inline templates
	Message string
	Err     error
}

func (e *TemplateError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("template %s: %s", e.Path, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *TemplateError) Unwrap() error { return e.Err }

// ErrTemplate creates a TemplateError with a formatted message.
func ErrTemplate(format string, args ...interface{}) *TemplateError {
	return &TemplateError{Message: fmt.Sprintf(format, args...)}
}

// SubmissionError indicates the query service rejected or never received a
// submission (transport or auth failure).
type SubmissionError struct {
	Statement string
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit statement: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// TransientError is a poll-time failure that may succeed on retry.
type TransientError struct {
	ExecutionID string
	Err         error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error polling execution %s: %v", e.ExecutionID, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError is a poll-time failure that will not succeed on retry, such as
// an unknown execution id.
type FatalError struct {
	ExecutionID string
	Err         error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("execution %s: %v", e.ExecutionID, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// NotReadyError is returned when results are requested for an execution
// that has not succeeded.
type NotReadyError struct {
	ExecutionID string
	State       ExecutionState
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("results for execution %s not ready (state %s)", e.ExecutionID, e.State)
}

// TimeoutError indicates an execution never reached a terminal state within
// the wait budget.
type TimeoutError struct {
	ExecutionID string
	Attempts    int
	Elapsed     time.Duration
	LastState   ExecutionState
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution %s not terminal after %d polls (%s, last state %s)",
		e.ExecutionID, e.Attempts, e.Elapsed.Round(time.Millisecond), e.LastState)
}

// RemoteQueryFailure indicates a submitted statement reached a terminal state
// other than Succeeded.
type RemoteQueryFailure struct {
	ExecutionID string
	Statement   string
	State       ExecutionState
	Reason      string
}

func (e *RemoteQueryFailure) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("execution %s ended %s", e.ExecutionID, e.State)
	}
	return fmt.Sprintf("execution %s ended %s: %s", e.ExecutionID, e.State, e.Reason)
}

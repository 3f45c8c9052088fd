package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check for these with errors.Is(); the API layer maps them to HTTP
// status codes.
var (
	// ErrNotOwned indicates a resource is owned by a different user than the
	// one making the request. API layer maps this to HTTP 403 Forbidden.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrRetryConflict indicates a manual transcription retry was requested
	// while an attempt is already running. API layer maps this to HTTP 409
	// Conflict.
	ErrRetryConflict = errors.New("transcription is currently processing")
)

// CallServiceError is a custom error type for call service errors.
type CallServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for CallServiceError.
func (e *CallServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("call service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("call service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *CallServiceError) Unwrap() error {
	return e.Err
}

// NewCallServiceError creates a new CallServiceError.
func NewCallServiceError(operation, message string, err error) *CallServiceError {
	return &CallServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

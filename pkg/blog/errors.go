package blog

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Static errors for err113 compliance.
var (
	ErrConfigRequired   = errors.New("config is required")
	ErrBaseURLRequired  = errors.New("base URL is required")
	ErrPostIDRequired   = errors.New("post id is required")
	ErrInvalidBaseURL   = errors.New("invalid base URL")
	ErrEncodingBody     = errors.New("encoding request body")
	ErrTokenUnavailable = errors.New("authentication token unavailable")
)

// NetworkError is a transport or HTTP-level failure. Status is 0 when no
// response was received.
type NetworkError struct {
	Status int
	Body   []byte
	// ServerMessage holds the string form of {"error": "..."} when the server sent one.
	ServerMessage string
	Err           error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Status == 0 {
		if e.Err != nil {
			return fmt.Sprintf("network error: %v", e.Err)
		}

		return "network error"
	}

	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message())
}

// Unwrap returns the underlying transport error, if any.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RejectedWithValue marks the error as a structured server-side rejection.
func (e *NetworkError) RejectedWithValue() bool { return true }

// Message returns a human readable description of the failure.
func (e *NetworkError) Message() string {
	if e.ServerMessage != "" {
		return e.ServerMessage
	}

	if e.Status == 0 {
		if e.Err != nil {
			return e.Err.Error()
		}

		return "network error"
	}

	if text := http.StatusText(e.Status); text != "" {
		return text
	}

	return fmt.Sprintf("status %d", e.Status)
}

// ValidationError is a per-field validation failure reported by the server.
type ValidationError struct {
	Status      int
	FieldErrors map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.FieldErrors) == 0 {
		return "validation failed"
	}

	fields := make([]string, 0, len(e.FieldErrors))
	for field := range e.FieldErrors {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.FieldErrors[field]))
	}

	return "validation failed: " + strings.Join(parts, ", ")
}

// RejectedWithValue marks the error as a structured server-side rejection.
func (e *ValidationError) RejectedWithValue() bool { return true }

// Field returns the message for a single form field, or "".
func (e *ValidationError) Field(name string) string {
	if e == nil {
		return ""
	}

	return e.FieldErrors[name]
}

// ExecutionError is raised locally while building or dispatching a request.
// It is the only locally raised error kind surfaced to users as a notification.
type ExecutionError struct {
	Message string
	Err     error
}

// NewExecutionError creates an execution error wrapping err.
func NewExecutionError(message string, err error) *ExecutionError {
	return &ExecutionError{Message: message, Err: err}
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

// Unwrap returns the wrapped error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// AsNetworkError extracts a *NetworkError from err.
func AsNetworkError(err error) (*NetworkError, bool) {
	netErr := &NetworkError{}
	if errors.As(err, &netErr) {
		return netErr, true
	}

	return nil, false
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	valErr := &ValidationError{}
	if errors.As(err, &valErr) {
		return valErr, true
	}

	return nil, false
}

// AsExecutionError extracts an *ExecutionError from err.
func AsExecutionError(err error) (*ExecutionError, bool) {
	execErr := &ExecutionError{}
	if errors.As(err, &execErr) {
		return execErr, true
	}

	return nil, false
}

// IsNotFound checks if the error is a 404 from the server.
func IsNotFound(err error) bool {
	netErr, ok := AsNetworkError(err)

	return ok && netErr.Status == http.StatusNotFound
}

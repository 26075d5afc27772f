package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fivetwenty-io/blog-client/pkg/blog"
)

// OutcomeKind tells which branch of an Outcome is populated.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeValidationFailure
	OutcomeTransportFailure
	OutcomeExecutionFailure
)

// String returns the kind name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeValidationFailure:
		return "validation_failure"
	case OutcomeTransportFailure:
		return "transport_failure"
	case OutcomeExecutionFailure:
		return "execution_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is a decoded response: exactly one of Value, a validation failure,
// a transport failure or an execution failure.
type Outcome[T any] struct {
	Kind  OutcomeKind
	Value T
	err   error
}

// Result returns the value or the failure.
func (o Outcome[T]) Result() (T, error) {
	return o.Value, o.err
}

// Err returns the failure, or nil on success.
func (o Outcome[T]) Err() error {
	return o.err
}

// Decode turns the result of a Client call into an Outcome, unmarshalling
// the body of successful responses into T. An empty 2xx body decodes to the
// zero value.
func Decode[T any](resp *Response, err error) Outcome[T] {
	if err != nil {
		return failure[T](err)
	}

	var value T

	if len(resp.Body) == 0 {
		return Outcome[T]{Kind: OutcomeSuccess, Value: value}
	}

	unmarshalErr := json.Unmarshal(resp.Body, &value)
	if unmarshalErr != nil {
		return Outcome[T]{
			Kind: OutcomeTransportFailure,
			err: &blog.NetworkError{
				Status: resp.StatusCode,
				Body:   resp.Body,
				Err:    fmt.Errorf("parsing response: %w", unmarshalErr),
			},
		}
	}

	return Outcome[T]{Kind: OutcomeSuccess, Value: value}
}

func failure[T any](err error) Outcome[T] {
	if _, ok := blog.AsValidationError(err); ok {
		return Outcome[T]{Kind: OutcomeValidationFailure, err: err}
	}

	if _, ok := blog.AsNetworkError(err); ok {
		return Outcome[T]{Kind: OutcomeTransportFailure, err: err}
	}

	return Outcome[T]{Kind: OutcomeExecutionFailure, err: err}
}

// errorEnvelope is the backend's error body: {"error": "message"} or
// {"error": {"field": "message"}}.
type errorEnvelope struct {
	Error json.RawMessage `json:"error"`
}

// classify returns nil for 2xx responses and the typed failure otherwise.
func classify(status int, body []byte) error {
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return nil
	}

	var envelope errorEnvelope

	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var message string
		if json.Unmarshal(envelope.Error, &message) == nil {
			return &blog.NetworkError{Status: status, Body: body, ServerMessage: message}
		}

		var fields map[string]string
		if status < http.StatusInternalServerError && json.Unmarshal(envelope.Error, &fields) == nil && len(fields) > 0 {
			return &blog.ValidationError{Status: status, FieldErrors: fields}
		}
	}

	return &blog.NetworkError{Status: status, Body: body}
}

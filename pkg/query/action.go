package query

import (
	"context"
	"errors"
)

// ActionType is the lifecycle step an Action reports.
type ActionType string

const (
	ActionPending   ActionType = "pending"
	ActionFulfilled ActionType = "fulfilled"
	ActionRejected  ActionType = "rejected"
)

// Kind tells whether an Action comes from a query or a mutation.
type Kind string

const (
	KindQuery    Kind = "query"
	KindMutation Kind = "mutation"
)

// Action is dispatched through the middleware chain at every step of a
// query or mutation lifecycle.
type Action struct {
	Type      ActionType
	Kind      Kind
	Endpoint  string
	Arg       any
	RequestID uint64
	// Payload carries the result of a fulfilled action, or the error of a
	// rejected-with-value one.
	Payload any
	Error   error
	// RejectedWithValue is set when the failure came back from the server
	// rather than from a local fault.
	RejectedWithValue bool
}

// String returns "endpoint/type".
func (a Action) String() string {
	return a.Endpoint + "/" + string(a.Type)
}

// DispatchFunc hands an action to the next stage of the chain.
type DispatchFunc func(ctx context.Context, action Action) Action

// Middleware wraps a DispatchFunc.
type Middleware func(next DispatchFunc) DispatchFunc

type valueRejection interface {
	RejectedWithValue() bool
}

func settledAction(kind Kind, endpoint string, arg any, requestID uint64, result any, err error) Action {
	action := Action{
		Kind:      kind,
		Endpoint:  endpoint,
		Arg:       arg,
		RequestID: requestID,
	}

	if err == nil {
		action.Type = ActionFulfilled
		action.Payload = result

		return action
	}

	action.Type = ActionRejected
	action.Error = err

	var rejection valueRejection
	if errors.As(err, &rejection) && rejection.RejectedWithValue() {
		action.RejectedWithValue = true
		action.Payload = err
	}

	return action
}

func chain(middleware []Middleware) DispatchFunc {
	dispatch := DispatchFunc(func(_ context.Context, action Action) Action {
		return action
	})

	for i := len(middleware) - 1; i >= 0; i-- {
		dispatch = middleware[i](dispatch)
	}

	return dispatch
}

package query

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Result is what a mutation trigger resolves to. Exactly one of Data and
// Error is meaningful.
type Result[R any] struct {
	Data  R
	Error error
}

// Unwrap returns the data, or the error the mutation failed with.
func (r Result[R]) Unwrap() (R, error) {
	if r.Error != nil {
		var zero R

		return zero, r.Error
	}

	return r.Data, nil
}

// MutationState is the record of the most recent trigger of a
// MutationInstance.
type MutationState[R any] struct {
	Status    Status
	Data      R
	Error     error
	RequestID uint64
}

// IsUninitialized reports whether the instance was never triggered or was reset.
func (s MutationState[R]) IsUninitialized() bool { return s.Status == StatusUninitialized }

// IsLoading reports whether the last trigger is still running.
func (s MutationState[R]) IsLoading() bool { return s.Status == StatusPending }

// IsSuccess reports whether the last trigger succeeded.
func (s MutationState[R]) IsSuccess() bool { return s.Status == StatusFulfilled }

// IsError reports whether the last trigger failed.
func (s MutationState[R]) IsError() bool { return s.Status == StatusRejected }

// Mutation is a write endpoint declared on a Store.
type Mutation[A, R any] struct {
	store       *Store
	name        string
	fn          func(ctx context.Context, arg A) (R, error)
	invalidates func(result R, err error, arg A) []Tag
}

// DefineMutation declares a write endpoint. invalidates returns the tags to
// invalidate once a trigger settles; it may be nil.
func DefineMutation[A, R any](
	store *Store,
	name string,
	fn func(ctx context.Context, arg A) (R, error),
	invalidates func(result R, err error, arg A) []Tag,
) *Mutation[A, R] {
	return &Mutation[A, R]{
		store:       store,
		name:        name,
		fn:          fn,
		invalidates: invalidates,
	}
}

// Name returns the endpoint name.
func (m *Mutation[A, R]) Name() string {
	return m.name
}

// New returns an instance with its own state record, the way each form or
// button owns its own pending/error display.
func (m *Mutation[A, R]) New() *MutationInstance[A, R] {
	return &MutationInstance[A, R]{
		mutation: m,
		watchers: make(map[uint64]func(MutationState[R])),
	}
}

// MutationInstance triggers a Mutation and tracks the latest outcome.
type MutationInstance[A, R any] struct {
	mutation *Mutation[A, R]

	mu          sync.Mutex
	state       MutationState[R]
	requestID   uint64
	watchers    map[uint64]func(MutationState[R])
	nextWatcher uint64
}

// Trigger runs the mutation and waits for it. It never panics and never
// returns an error directly: failures are carried by the Result. Once the
// call settles the tags named by the mutation are invalidated.
func (mi *MutationInstance[A, R]) Trigger(ctx context.Context, arg A) Result[R] {
	m := mi.mutation
	s := m.store

	if s.isClosed() {
		return Result[R]{Error: ErrStoreClosed}
	}

	mi.mu.Lock()
	mi.requestID++
	requestID := mi.requestID
	mi.setStateLocked(MutationState[R]{Status: StatusPending, RequestID: requestID})
	s.loop.enqueue(func() {
		s.dispatch(s.ctx, Action{
			Type:      ActionPending,
			Kind:      KindMutation,
			Endpoint:  m.name,
			Arg:       arg,
			RequestID: requestID,
		})
	})
	mi.mu.Unlock()

	start := time.Now()
	data, err := callMutation(ctx, m.fn, arg)
	s.latency.Record(m.name, time.Since(start))

	mi.mu.Lock()
	if requestID == mi.requestID {
		next := MutationState[R]{Status: StatusFulfilled, Data: data, RequestID: requestID}
		if err != nil {
			next = MutationState[R]{Status: StatusRejected, Error: err, RequestID: requestID}
		}

		mi.setStateLocked(next)
	}

	action := settledAction(KindMutation, m.name, arg, requestID, data, err)
	s.loop.enqueue(func() {
		s.dispatch(s.ctx, action)
	})
	mi.mu.Unlock()

	if m.invalidates != nil {
		s.InvalidateTags(ctx, m.invalidates(data, err, arg)...)
	}

	return Result[R]{Data: data, Error: err}
}

// State returns the record of the latest trigger.
func (mi *MutationInstance[A, R]) State() MutationState[R] {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	return mi.state
}

// Reset clears the record. A trigger still running will not write to it.
func (mi *MutationInstance[A, R]) Reset() {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	mi.requestID++
	mi.setStateLocked(MutationState[R]{})
}

// Watch calls fn, on the store goroutine, after every state change. The
// returned function stops the calls.
func (mi *MutationInstance[A, R]) Watch(fn func(MutationState[R])) func() {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	mi.nextWatcher++
	id := mi.nextWatcher
	mi.watchers[id] = fn

	return func() {
		mi.mu.Lock()
		defer mi.mu.Unlock()

		delete(mi.watchers, id)
	}
}

func (mi *MutationInstance[A, R]) setStateLocked(state MutationState[R]) {
	mi.state = state

	for id, fn := range mi.watchers {
		watcherID, watcher := id, fn
		mi.mutation.store.loop.enqueue(func() {
			mi.mu.Lock()
			_, still := mi.watchers[watcherID]
			mi.mu.Unlock()

			if still {
				watcher(state)
			}
		})
	}
}

func callMutation[A, R any](ctx context.Context, fn func(context.Context, A) (R, error), arg A) (data R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R

			data = zero
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return fn(ctx, arg)
}

package query

import (
	"context"
	"sync"
	"time"
)

// SubscribeOptions tune a single subscription.
type SubscribeOptions struct {
	// Skip keeps the subscription detached: nothing is fetched and the
	// state stays uninitialized until Skip is cleared.
	Skip bool
	// PollInterval refetches on this cadence while subscribed. An entry
	// polls at the smallest interval among its subscribers.
	PollInterval time.Duration
	// RefetchOnMountOrArgChange forces a fetch when the subscription
	// attaches or its argument changes, even if the entry is cached.
	RefetchOnMountOrArgChange bool
}

// QueryState is what a subscriber sees of a cache entry.
type QueryState[R any] struct {
	Status      Status
	Data        R
	HasData     bool
	Error       error
	FulfilledAt time.Time
	RequestID   uint64
}

// IsUninitialized reports whether nothing has been requested yet.
func (s QueryState[R]) IsUninitialized() bool { return s.Status == StatusUninitialized }

// IsLoading reports a first fetch: pending with nothing to show.
func (s QueryState[R]) IsLoading() bool { return s.Status == StatusPending && !s.HasData }

// IsFetching reports any fetch in flight, including refetches.
func (s QueryState[R]) IsFetching() bool { return s.Status == StatusPending }

// IsSuccess reports whether the last fetch succeeded.
func (s QueryState[R]) IsSuccess() bool { return s.Status == StatusFulfilled }

// IsError reports whether the last fetch failed.
func (s QueryState[R]) IsError() bool { return s.Status == StatusRejected }

func stateFrom[R any](snap snapshot) QueryState[R] {
	state := QueryState[R]{
		Status:      snap.status,
		HasData:     snap.hasData,
		Error:       snap.err,
		FulfilledAt: snap.fulfilledAt,
		RequestID:   snap.requestID,
	}

	if snap.hasData {
		if data, ok := snap.data.(R); ok {
			state.Data = data
		}
	}

	return state
}

// Query is a read endpoint declared on a Store.
type Query[A, R any] struct {
	store *Store
	def   *endpoint
}

// DefineQuery declares a read endpoint. provides returns the tags a result
// (or a failure, when err is set) carries; it may be nil.
func DefineQuery[A, R any](
	store *Store,
	name string,
	fetch func(ctx context.Context, arg A) (R, error),
	provides func(result R, err error, arg A) []Tag,
) *Query[A, R] {
	def := &endpoint{
		name: name,
		fetch: func(ctx context.Context, arg any) (any, error) {
			typed, _ := arg.(A)

			return fetch(ctx, typed)
		},
		provides: func(result any, err error, arg any) []Tag {
			if provides == nil {
				return nil
			}

			typedResult, _ := result.(R)
			typedArg, _ := arg.(A)

			return provides(typedResult, err, typedArg)
		},
	}

	return &Query[A, R]{store: store, def: def}
}

// Name returns the endpoint name.
func (q *Query[A, R]) Name() string {
	return q.def.name
}

// Key returns the cache key for arg.
func (q *Query[A, R]) Key(arg A) string {
	return cacheKey(q.def.name, arg)
}

// Select reads the cached state for arg without subscribing.
func (q *Query[A, R]) Select(arg A) QueryState[R] {
	return stateFrom[R](q.store.selectKey(q.Key(arg)))
}

// Subscribe registers interest in arg. listener, which may be nil, receives
// the current state once and then every change, on the store goroutine.
func (q *Query[A, R]) Subscribe(arg A, opts SubscribeOptions, listener func(QueryState[R])) *Subscription[A, R] {
	sub := &Subscription[A, R]{
		query:    q,
		id:       q.store.newSubscriberID(),
		listener: listener,
		arg:      arg,
		key:      q.Key(arg),
		opts:     opts,
	}

	if !opts.Skip {
		sub.mu.Lock()
		sub.attachLocked(opts.RefetchOnMountOrArgChange)
		sub.mu.Unlock()
	}

	return sub
}

// Fetch subscribes to arg until the entry settles and returns its data. A
// cached result is returned without a request unless opts force one.
func (q *Query[A, R]) Fetch(ctx context.Context, arg A, opts SubscribeOptions) (R, error) {
	var zero R

	if q.store.isClosed() {
		return zero, ErrStoreClosed
	}

	settled := make(chan QueryState[R], 1)
	opts.Skip = false

	sub := q.Subscribe(arg, opts, func(state QueryState[R]) {
		if state.Status != StatusFulfilled && state.Status != StatusRejected {
			return
		}

		select {
		case settled <- state:
		default:
		}
	})
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case state := <-settled:
		if state.Status == StatusRejected {
			return state.Data, state.Error
		}

		return state.Data, nil
	}
}

// Subscription is a live handle on one cache entry.
type Subscription[A, R any] struct {
	query    *Query[A, R]
	id       uint64
	listener func(QueryState[R])

	mu         sync.Mutex
	arg        A
	key        string
	opts       SubscribeOptions
	registered bool
	closed     bool
}

func (sub *Subscription[A, R]) attachLocked(force bool) {
	key := sub.key
	registration := &subscriber{
		pollInterval: sub.opts.PollInterval,
		notify: func(snap snapshot) {
			sub.mu.Lock()
			live := !sub.closed && sub.registered && sub.key == key
			sub.mu.Unlock()

			if live && sub.listener != nil {
				sub.listener(stateFrom[R](snap))
			}
		},
	}

	sub.registered = sub.query.store.subscribe(sub.query.def, key, sub.arg, sub.id, registration, force)
}

func (sub *Subscription[A, R]) detachLocked() {
	if !sub.registered {
		return
	}

	sub.registered = false
	sub.query.store.unsubscribe(sub.key, sub.id)
}

// Arg returns the current argument.
func (sub *Subscription[A, R]) Arg() A {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	return sub.arg
}

// State returns the current state of the subscribed entry. A skipped
// subscription is always uninitialized.
func (sub *Subscription[A, R]) State() QueryState[R] {
	sub.mu.Lock()
	registered, key := sub.registered, sub.key
	sub.mu.Unlock()

	if !registered {
		return QueryState[R]{Status: StatusUninitialized}
	}

	return stateFrom[R](sub.query.store.selectKey(key))
}

// SetArg moves the subscription to another argument. With
// RefetchOnMountOrArgChange the new entry is fetched even if cached.
func (sub *Subscription[A, R]) SetArg(arg A) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}

	key := sub.query.Key(arg)
	if key == sub.key {
		sub.arg = arg

		return
	}

	sub.detachLocked()
	sub.arg = arg
	sub.key = key

	if !sub.opts.Skip {
		sub.attachLocked(sub.opts.RefetchOnMountOrArgChange)
	}
}

// SetSkip detaches (true) or re-attaches (false) the subscription.
func (sub *Subscription[A, R]) SetSkip(skip bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed || sub.opts.Skip == skip {
		return
	}

	sub.opts.Skip = skip

	if skip {
		sub.detachLocked()

		return
	}

	sub.attachLocked(sub.opts.RefetchOnMountOrArgChange)
}

// Refetch starts a fetch unless one is already in flight.
func (sub *Subscription[A, R]) Refetch() {
	sub.mu.Lock()
	registered, key := sub.registered, sub.key
	sub.mu.Unlock()

	if registered {
		sub.query.store.refetch(key)
	}
}

// Unsubscribe releases the subscription. Calling it again is a no-op.
func (sub *Subscription[A, R]) Unsubscribe() {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}

	sub.detachLocked()
	sub.closed = true
}

package query

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fivetwenty-io/blog-client/internal/constants"
	"github.com/fivetwenty-io/blog-client/pkg/blog"
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeepUnusedFor sets the retention window for unsubscribed entries.
// Zero or less evicts entries as soon as their last subscriber leaves.
func WithKeepUnusedFor(d time.Duration) StoreOption {
	return func(s *Store) {
		s.keepUnusedFor = d
	}
}

// WithLogger sets the logger used for store diagnostics.
func WithLogger(logger blog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMiddleware appends middleware to the dispatch chain. The first
// middleware sees actions first.
func WithMiddleware(middleware ...Middleware) StoreOption {
	return func(s *Store) {
		s.middleware = append(s.middleware, middleware...)
	}
}

// WithLatencyTracker records the duration of every fetch and mutation.
func WithLatencyTracker(tracker *LatencyTracker) StoreOption {
	return func(s *Store) {
		s.latency = tracker
	}
}

// WithBus shares tag invalidations with other stores.
func WithBus(bus Bus) StoreOption {
	return func(s *Store) {
		s.bus = bus
	}
}

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type endpoint struct {
	name     string
	fetch    func(ctx context.Context, arg any) (any, error)
	provides func(result any, err error, arg any) []Tag
}

type snapshot struct {
	status      Status
	data        any
	hasData     bool
	err         error
	fulfilledAt time.Time
	requestID   uint64
}

type subscriber struct {
	pollInterval time.Duration
	notify       func(snapshot)
}

type poller struct {
	interval time.Duration
	stop     chan struct{}
}

type entry struct {
	key  string
	def  *endpoint
	arg  any
	tags []Tag

	status  Status
	settled Status
	data    any
	hasData bool
	err     error

	subscribers map[uint64]*subscriber
	requestID   uint64
	inflight    bool
	invalidated bool

	fetchedAt  time.Time
	expiresAt  time.Time
	evictTimer *time.Timer
	evictGen   uint64
	poller     *poller
}

func (e *entry) snapshot() snapshot {
	return snapshot{
		status:      e.status,
		data:        e.data,
		hasData:     e.hasData,
		err:         e.err,
		fulfilledAt: e.fetchedAt,
		requestID:   e.requestID,
	}
}

func (e *entry) stopTimers() {
	if e.evictTimer != nil {
		e.evictTimer.Stop()
		e.evictTimer = nil
	}

	if e.poller != nil {
		close(e.poller.stop)
		e.poller = nil
	}
}

// Store owns every cache entry. All state changes are serialized through it;
// listeners and middleware run on a single store goroutine in the order the
// changes happened.
type Store struct {
	mu        sync.Mutex
	entries   map[string]*entry
	nextSubID uint64
	closed    bool

	keepUnusedFor time.Duration
	logger        blog.Logger
	middleware    []Middleware
	dispatch      DispatchFunc
	latency       *LatencyTracker
	bus           Bus
	busCancel     func()
	now           func() time.Time

	loop   *loop
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStore creates a store and starts its dispatch goroutine. Call Close to
// release it.
func NewStore(opts ...StoreOption) *Store {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		entries:       make(map[string]*entry),
		keepUnusedFor: constants.DefaultKeepUnusedFor,
		logger:        blog.NopLogger{},
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.dispatch = chain(s.middleware)
	s.loop = newLoop(func(recovered any) {
		s.logger.Error("Listener panicked", map[string]interface{}{
			"panic": fmt.Sprint(recovered),
		})
	})

	if s.bus != nil {
		unsubscribe, err := s.bus.Subscribe(s.invalidate)
		if err != nil {
			s.logger.Warn("Failed to subscribe to invalidation bus", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			s.busCancel = unsubscribe
		}
	}

	return s
}

// Close stops every poller and eviction timer, detaches the bus, waits for
// in-flight fetches to return and drains pending notifications. It must not
// be called from a listener or middleware.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return
	}

	s.closed = true
	s.cancel()

	// Subscribers still waiting on a fetch are woken with ErrStoreClosed.
	for _, e := range s.entries {
		e.stopTimers()

		if e.inflight && len(e.subscribers) > 0 {
			e.inflight = false
			e.status = StatusRejected
			e.err = ErrStoreClosed
			s.notifyLocked(e)
		}
	}

	s.entries = make(map[string]*entry)
	busCancel := s.busCancel
	s.busCancel = nil
	s.mu.Unlock()

	if busCancel != nil {
		busCancel()
	}

	s.wg.Wait()
	s.loop.stop()
}

// Flush blocks until every listener and middleware call caused by state
// changes so far has run. It must not be called from a listener.
func (s *Store) Flush() {
	s.loop.flush()
}

// Latency returns the tracker passed with WithLatencyTracker, or nil.
func (s *Store) Latency() *LatencyTracker {
	return s.latency
}

// InvalidateTags refetches every subscribed entry providing one of tags and
// drops every unsubscribed one, then publishes the tags on the bus.
func (s *Store) InvalidateTags(ctx context.Context, tags ...Tag) {
	if len(tags) == 0 {
		return
	}

	s.invalidate(tags)

	if s.bus == nil || s.isClosed() {
		return
	}

	err := s.bus.Publish(ctx, tags)
	if err != nil {
		s.logger.Warn("Failed to publish invalidation", map[string]interface{}{
			"tags":  fmt.Sprint(tags),
			"error": err.Error(),
		})
	}
}

func (s *Store) invalidate(tags []Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	for key, e := range s.entries {
		if !anyMatch(tags, e.tags) {
			continue
		}

		if len(e.subscribers) == 0 {
			e.stopTimers()
			delete(s.entries, key)

			continue
		}

		s.startFetchLocked(e)
	}
}

// EntryInfo describes a cache entry for diagnostics.
type EntryInfo struct {
	Key          string        `json:"key"                     yaml:"key"`
	Status       string        `json:"status"                  yaml:"status"`
	Subscribers  int           `json:"subscribers"             yaml:"subscribers"`
	Tags         []Tag         `json:"tags,omitempty"          yaml:"tags,omitempty"`
	FetchedAt    time.Time     `json:"fetched_at,omitempty"    yaml:"fetched_at,omitempty"`
	ExpiresAt    time.Time     `json:"expires_at,omitempty"    yaml:"expires_at,omitempty"`
	RequestID    uint64        `json:"request_id"              yaml:"request_id"`
	PollInterval time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	InFlight     bool          `json:"in_flight"               yaml:"in_flight"`
}

// Inspect returns a description of the entry stored under key.
func (s *Store) Inspect(key string) (EntryInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return EntryInfo{}, false
	}

	return e.info(), true
}

// Entries describes every cache entry, sorted by key.
func (s *Store) Entries() []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]EntryInfo, 0, len(s.entries))
	for _, e := range s.entries {
		infos = append(infos, e.info())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Key < infos[j].Key
	})

	return infos
}

func (e *entry) info() EntryInfo {
	info := EntryInfo{
		Key:         e.key,
		Status:      e.status.String(),
		Subscribers: len(e.subscribers),
		Tags:        append([]Tag(nil), e.tags...),
		FetchedAt:   e.fetchedAt,
		ExpiresAt:   e.expiresAt,
		RequestID:   e.requestID,
		InFlight:    e.inflight,
	}

	if e.poller != nil {
		info.PollInterval = e.poller.interval
	}

	return info
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func (s *Store) newSubscriberID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++

	return s.nextSubID
}

func (s *Store) selectKey(key string) snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return snapshot{status: StatusUninitialized}
	}

	return e.snapshot()
}

// subscribe registers sub on the entry for key, creating it if needed, and
// starts a fetch when the entry has never been fulfilled, was invalidated
// while unwatched, or force is set. An in-flight fetch is always shared.
func (s *Store) subscribe(def *endpoint, key string, arg any, id uint64, sub *subscriber, force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	e, ok := s.entries[key]
	if !ok {
		e = &entry{
			key:         key,
			def:         def,
			arg:         arg,
			subscribers: make(map[uint64]*subscriber),
		}
		s.entries[key] = e
	}

	if e.evictTimer != nil {
		e.evictTimer.Stop()
		e.evictTimer = nil
	}

	e.expiresAt = time.Time{}
	e.subscribers[id] = sub
	s.updatePollerLocked(e)

	if !e.inflight && (!e.hasData || e.invalidated || force) {
		s.startFetchLocked(e)

		return true
	}

	snap := e.snapshot()
	s.loop.enqueue(func() {
		sub.notify(snap)
	})

	return true
}

func (s *Store) unsubscribe(key string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}

	if _, ok := e.subscribers[id]; !ok {
		return
	}

	delete(e.subscribers, id)
	s.updatePollerLocked(e)

	if len(e.subscribers) > 0 {
		return
	}

	if s.keepUnusedFor <= 0 {
		e.stopTimers()
		delete(s.entries, key)

		return
	}

	e.evictGen++
	gen := e.evictGen
	e.expiresAt = s.now().Add(s.keepUnusedFor)
	e.evictTimer = time.AfterFunc(s.keepUnusedFor, func() {
		s.evict(e, gen)
	})
}

// evict removes e if gen is still its latest eviction timer. A timer that
// fired while a resubscribe was stopping it is superseded by the next one.
func (s *Store) evict(e *entry, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[e.key] != e || len(e.subscribers) > 0 || e.evictGen != gen {
		return
	}

	e.stopTimers()
	delete(s.entries, e.key)

	s.logger.Debug("Evicted cache entry", map[string]interface{}{
		"key": e.key,
	})
}

func (s *Store) refetch(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || s.closed || e.inflight || len(e.subscribers) == 0 {
		return
	}

	s.startFetchLocked(e)
}

// startFetchLocked issues a new request for e, superseding any request
// already in flight.
func (s *Store) startFetchLocked(e *entry) {
	e.requestID++
	requestID := e.requestID
	e.inflight = true
	e.invalidated = false
	e.status = StatusPending

	s.notifyLocked(e)
	s.dispatchLocked(Action{
		Type:      ActionPending,
		Kind:      KindQuery,
		Endpoint:  e.def.name,
		Arg:       e.arg,
		RequestID: requestID,
	})

	s.wg.Add(1)

	go s.runFetch(e, requestID)
}

func (s *Store) runFetch(e *entry, requestID uint64) {
	defer s.wg.Done()

	start := time.Now()
	result, err := callEndpoint(s.ctx, e.def.fetch, e.arg)
	s.latency.Record(e.def.name, time.Since(start))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.entries[e.key] != e || e.requestID != requestID {
		s.logger.Debug("Discarding stale response", map[string]interface{}{
			"key":        e.key,
			"request_id": requestID,
		})

		return
	}

	e.inflight = false

	if len(e.subscribers) == 0 {
		s.logger.Debug("Discarding response without subscribers", map[string]interface{}{
			"key": e.key,
		})

		if !e.hasData {
			e.stopTimers()
			delete(s.entries, e.key)

			return
		}

		e.status = e.settled
		e.invalidated = true

		return
	}

	if err != nil {
		e.status = StatusRejected
		e.err = err
		e.tags = e.def.provides(nil, err, e.arg)
	} else {
		e.status = StatusFulfilled
		e.data = result
		e.hasData = true
		e.err = nil
		e.fetchedAt = s.now()
		e.tags = e.def.provides(result, nil, e.arg)
	}

	e.settled = e.status

	s.notifyLocked(e)
	s.dispatchLocked(settledAction(KindQuery, e.def.name, e.arg, requestID, result, err))
}

func (s *Store) notifyLocked(e *entry) {
	snap := e.snapshot()

	for _, sub := range e.subscribers {
		notify := sub.notify
		s.loop.enqueue(func() {
			notify(snap)
		})
	}
}

func (s *Store) dispatchLocked(action Action) {
	s.loop.enqueue(func() {
		s.dispatch(s.ctx, action)
	})
}

func (s *Store) updatePollerLocked(e *entry) {
	var interval time.Duration

	for _, sub := range e.subscribers {
		if sub.pollInterval > 0 && (interval == 0 || sub.pollInterval < interval) {
			interval = sub.pollInterval
		}
	}

	if e.poller != nil && e.poller.interval == interval {
		return
	}

	if e.poller != nil {
		close(e.poller.stop)
		e.poller = nil
	}

	if interval <= 0 || s.closed {
		return
	}

	p := &poller{interval: interval, stop: make(chan struct{})}
	e.poller = p

	s.wg.Add(1)

	go s.poll(e, p)
}

func (s *Store) poll(e *entry, p *poller) {
	defer s.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.pollTick(e)
		}
	}
}

func (s *Store) pollTick(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.entries[e.key] != e || e.inflight || len(e.subscribers) == 0 {
		return
	}

	s.startFetchLocked(e)
}

func callEndpoint(ctx context.Context, fn func(context.Context, any) (any, error), arg any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return fn(ctx, arg)
}

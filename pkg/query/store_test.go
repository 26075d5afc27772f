package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/blog-client/pkg/blog"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

var errBackendDown = errors.New("backend down")

type callCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCallCounter() *callCounter {
	return &callCounter{calls: make(map[string]int)}
}

func (c *callCounter) inc(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls[key]++

	return c.calls[key]
}

func (c *callCounter) get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[key]
}

type stateRecorder[R any] struct {
	mu     sync.Mutex
	states []QueryState[R]
}

func (r *stateRecorder[R]) listen(state QueryState[R]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states = append(r.states, state)
}

func (r *stateRecorder[R]) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]Status, 0, len(r.states))
	for _, state := range r.states {
		statuses = append(statuses, state.Status)
	}

	return statuses
}

func (r *stateRecorder[R]) last() QueryState[R] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.states) == 0 {
		return QueryState[R]{}
	}

	return r.states[len(r.states)-1]
}

func postTags(ids []string, err error, _ struct{}) []Tag {
	tags := []Tag{ListTag("Posts")}
	if err != nil {
		return tags
	}

	for _, id := range ids {
		tags = append(tags, Tag{Type: "Posts", ID: id})
	}

	return tags
}

func postTag(_ string, _ error, id string) []Tag {
	return []Tag{{Type: "Posts", ID: id}}
}

// fixture declares a list endpoint returning ids "7" and "42" and a get
// endpoint echoing its argument, both counting their calls.
type fixture struct {
	store *Store
	calls *callCounter
	list  *Query[struct{}, []string]
	get   *Query[string, string]
}

func newFixture(t *testing.T, opts ...StoreOption) *fixture {
	t.Helper()

	store := NewStore(opts...)
	t.Cleanup(store.Close)

	f := &fixture{store: store, calls: newCallCounter()}

	f.list = DefineQuery(store, "listPosts", func(_ context.Context, _ struct{}) ([]string, error) {
		f.calls.inc("list")

		return []string{"7", "42"}, nil
	}, postTags)

	f.get = DefineQuery(store, "getPost", func(_ context.Context, id string) (string, error) {
		f.calls.inc(id)

		return "post " + id, nil
	}, postTag)

	return f
}

func waitFulfilled[A, R any](t *testing.T, sub *Subscription[A, R]) {
	t.Helper()

	require.Eventually(t, func() bool {
		return sub.State().Status == StatusFulfilled
	}, waitFor, tick)
}

func TestStore_SubscribeTransitions(t *testing.T) {
	t.Parallel()

	store := NewStore()
	defer store.Close()

	release := make(chan struct{})
	calls := newCallCounter()

	list := DefineQuery(store, "listPosts", func(_ context.Context, _ struct{}) ([]string, error) {
		calls.inc("list")
		<-release

		return []string{"1", "2"}, nil
	}, postTags)

	assert.True(t, list.Select(struct{}{}).IsUninitialized())

	first := &stateRecorder[[]string]{}
	sub1 := list.Subscribe(struct{}{}, SubscribeOptions{}, first.listen)

	defer sub1.Unsubscribe()

	state := sub1.State()
	assert.True(t, state.IsLoading())
	assert.True(t, state.IsFetching())

	second := &stateRecorder[[]string]{}
	sub2 := list.Subscribe(struct{}{}, SubscribeOptions{}, second.listen)

	defer sub2.Unsubscribe()

	close(release)
	waitFulfilled(t, sub1)
	store.Flush()

	assert.Equal(t, 1, calls.get("list"))
	assert.Equal(t, []Status{StatusPending, StatusFulfilled}, first.statuses())
	assert.Equal(t, []Status{StatusPending, StatusFulfilled}, second.statuses())
	assert.Equal(t, []string{"1", "2"}, second.last().Data)
	assert.False(t, sub2.State().FulfilledAt.IsZero())

	info, ok := store.Inspect(list.Key(struct{}{}))
	require.True(t, ok)
	assert.Equal(t, 2, info.Subscribers)
	assert.Equal(t, "listPosts({})", info.Key)
	assert.ElementsMatch(t, []Tag{ListTag("Posts"), {Type: "Posts", ID: "1"}, {Type: "Posts", ID: "2"}}, info.Tags)
}

func TestStore_CachedEntryServesNewSubscriber(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	sub := f.get.Subscribe("7", SubscribeOptions{}, nil)
	waitFulfilled(t, sub)
	sub.Unsubscribe()

	recorder := &stateRecorder[string]{}
	again := f.get.Subscribe("7", SubscribeOptions{}, recorder.listen)

	defer again.Unsubscribe()

	f.store.Flush()

	assert.Equal(t, 1, f.calls.get("7"))
	assert.Equal(t, []Status{StatusFulfilled}, recorder.statuses())
	assert.Equal(t, "post 7", again.State().Data)
}

func TestStore_InvalidateTags(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	list := f.list.Subscribe(struct{}{}, SubscribeOptions{}, nil)
	get7 := f.get.Subscribe("7", SubscribeOptions{}, nil)
	get42 := f.get.Subscribe("42", SubscribeOptions{}, nil)

	defer list.Unsubscribe()
	defer get7.Unsubscribe()
	defer get42.Unsubscribe()

	waitFulfilled(t, list)
	waitFulfilled(t, get7)
	waitFulfilled(t, get42)

	t.Run("list tag refetches only the list", func(t *testing.T) {
		f.store.InvalidateTags(ctx, ListTag("Posts"))

		require.Eventually(t, func() bool {
			return f.calls.get("list") == 2 && list.State().IsSuccess()
		}, waitFor, tick)

		assert.Equal(t, 1, f.calls.get("7"))
		assert.Equal(t, 1, f.calls.get("42"))
	})

	t.Run("id tag refetches providers of that id only", func(t *testing.T) {
		f.store.InvalidateTags(ctx, Tag{Type: "Posts", ID: "42"})

		require.Eventually(t, func() bool {
			return f.calls.get("42") == 2 && f.calls.get("list") == 3
		}, waitFor, tick)

		assert.Equal(t, 1, f.calls.get("7"))
	})

	t.Run("type-wide tag refetches everything of that type", func(t *testing.T) {
		f.store.InvalidateTags(ctx, Tag{Type: "Posts"})

		require.Eventually(t, func() bool {
			return f.calls.get("42") == 3 && f.calls.get("7") == 2 && f.calls.get("list") == 4
		}, waitFor, tick)
	})

	t.Run("other types are untouched", func(t *testing.T) {
		f.store.InvalidateTags(ctx, Tag{Type: "Comments", ID: "7"})
		f.store.Flush()

		assert.Equal(t, 2, f.calls.get("7"))
	})
}

func TestStore_InvalidateDropsUnsubscribedEntries(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithKeepUnusedFor(time.Minute))

	sub := f.get.Subscribe("5", SubscribeOptions{}, nil)
	waitFulfilled(t, sub)
	sub.Unsubscribe()

	key := f.get.Key("5")

	info, ok := f.store.Inspect(key)
	require.True(t, ok)
	assert.Equal(t, 0, info.Subscribers)
	assert.False(t, info.ExpiresAt.IsZero())

	f.store.InvalidateTags(context.Background(), Tag{Type: "Posts", ID: "5"})

	_, ok = f.store.Inspect(key)
	assert.False(t, ok)
	assert.Equal(t, 1, f.calls.get("5"))

	again := f.get.Subscribe("5", SubscribeOptions{}, nil)

	defer again.Unsubscribe()

	waitFulfilled(t, again)
	assert.Equal(t, 2, f.calls.get("5"))
}

func TestStore_EvictsAfterKeepUnusedFor(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithKeepUnusedFor(30*time.Millisecond))

	sub := f.get.Subscribe("9", SubscribeOptions{}, nil)
	waitFulfilled(t, sub)
	sub.Unsubscribe()
	sub.Unsubscribe()

	_, ok := f.store.Inspect(f.get.Key("9"))
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := f.store.Inspect(f.get.Key("9"))

		return !ok
	}, waitFor, tick)

	assert.True(t, f.get.Select("9").IsUninitialized())
}

func TestStore_ResubscribeCancelsEviction(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithKeepUnusedFor(30*time.Millisecond))

	sub := f.get.Subscribe("9", SubscribeOptions{}, nil)
	waitFulfilled(t, sub)
	sub.Unsubscribe()

	again := f.get.Subscribe("9", SubscribeOptions{}, nil)

	defer again.Unsubscribe()

	time.Sleep(60 * time.Millisecond)

	info, ok := f.store.Inspect(f.get.Key("9"))
	require.True(t, ok)
	assert.True(t, info.ExpiresAt.IsZero())
	assert.Equal(t, 1, f.calls.get("9"))
}

func TestStore_ZeroRetentionEvictsImmediately(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithKeepUnusedFor(0))

	sub := f.get.Subscribe("3", SubscribeOptions{}, nil)
	waitFulfilled(t, sub)
	sub.Unsubscribe()

	_, ok := f.store.Inspect(f.get.Key("3"))
	assert.False(t, ok)
}

func TestStore_Polling(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	slow := f.get.Subscribe("1", SubscribeOptions{PollInterval: time.Hour}, nil)
	fast := f.get.Subscribe("1", SubscribeOptions{PollInterval: 10 * time.Millisecond}, nil)

	info, ok := f.store.Inspect(f.get.Key("1"))
	require.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, info.PollInterval)

	require.Eventually(t, func() bool {
		return f.calls.get("1") >= 3
	}, waitFor, tick)

	fast.Unsubscribe()

	info, ok = f.store.Inspect(f.get.Key("1"))
	require.True(t, ok)
	assert.Equal(t, time.Hour, info.PollInterval)

	slow.Unsubscribe()

	require.Eventually(t, func() bool {
		info, ok := f.store.Inspect(f.get.Key("1"))

		return ok && !info.InFlight
	}, waitFor, tick)

	settled := f.calls.get("1")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, f.calls.get("1"))
}

func TestStore_DiscardsStaleResponse(t *testing.T) {
	t.Parallel()

	store := NewStore()
	defer store.Close()

	calls := newCallCounter()
	release := make(chan struct{})

	get := DefineQuery(store, "getPost", func(_ context.Context, id string) (string, error) {
		switch calls.inc(id) {
		case 1:
			return "v1", nil
		case 2:
			<-release

			return "v2", nil
		default:
			return "v3", nil
		}
	}, postTag)

	sub := get.Subscribe("1", SubscribeOptions{}, nil)

	defer sub.Unsubscribe()

	waitFulfilled(t, sub)

	tag := Tag{Type: "Posts", ID: "1"}

	store.InvalidateTags(context.Background(), tag)
	require.Eventually(t, func() bool { return calls.get("1") == 2 }, waitFor, tick)

	store.InvalidateTags(context.Background(), tag)
	require.Eventually(t, func() bool {
		state := sub.State()

		return state.IsSuccess() && state.Data == "v3"
	}, waitFor, tick)

	close(release)
	time.Sleep(20 * time.Millisecond)

	state := sub.State()
	assert.Equal(t, "v3", state.Data)
	assert.Equal(t, uint64(3), state.RequestID)
}

func TestStore_RefetchKeepsPreviousData(t *testing.T) {
	t.Parallel()

	store := NewStore()
	defer store.Close()

	calls := newCallCounter()
	release := make(chan struct{})

	get := DefineQuery(store, "getPost", func(_ context.Context, id string) (string, error) {
		if calls.inc(id) == 1 {
			return "first", nil
		}

		<-release

		return "", errBackendDown
	}, postTag)

	sub := get.Subscribe("1", SubscribeOptions{}, nil)

	defer sub.Unsubscribe()

	waitFulfilled(t, sub)
	sub.Refetch()

	state := sub.State()
	assert.True(t, state.IsFetching())
	assert.False(t, state.IsLoading())
	assert.Equal(t, "first", state.Data)

	sub.Refetch()
	close(release)

	require.Eventually(t, func() bool { return sub.State().IsError() }, waitFor, tick)

	state = sub.State()
	assert.Equal(t, "first", state.Data)
	assert.True(t, state.HasData)
	require.ErrorIs(t, state.Error, errBackendDown)
	assert.Equal(t, 2, calls.get("1"))
}

func TestStore_UnsubscribeBeforeResponseDropsEntry(t *testing.T) {
	t.Parallel()

	store := NewStore(WithKeepUnusedFor(time.Minute))
	defer store.Close()

	release := make(chan struct{})
	done := make(chan struct{})

	get := DefineQuery(store, "getPost", func(_ context.Context, id string) (string, error) {
		defer close(done)
		<-release

		return id, nil
	}, postTag)

	recorder := &stateRecorder[string]{}
	sub := get.Subscribe("1", SubscribeOptions{}, recorder.listen)
	sub.Unsubscribe()
	close(release)
	<-done

	require.Eventually(t, func() bool {
		_, ok := store.Inspect(get.Key("1"))

		return !ok
	}, waitFor, tick)

	store.Flush()

	for _, status := range recorder.statuses() {
		assert.NotEqual(t, StatusFulfilled, status)
	}
}

func TestSubscription_SkipAndSetArg(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	sub := f.get.Subscribe("", SubscribeOptions{Skip: true}, nil)

	defer sub.Unsubscribe()

	assert.True(t, sub.State().IsUninitialized())
	assert.Empty(t, f.store.Entries())

	sub.SetArg("7")
	assert.Equal(t, "7", sub.Arg())
	assert.Equal(t, 0, f.calls.get("7"))

	sub.SetSkip(false)
	waitFulfilled(t, sub)
	assert.Equal(t, "post 7", sub.State().Data)

	sub.SetArg("42")
	waitFulfilled(t, sub)
	assert.Equal(t, "post 42", sub.State().Data)

	old, ok := f.store.Inspect(f.get.Key("7"))
	require.True(t, ok)
	assert.Equal(t, 0, old.Subscribers)

	sub.SetSkip(true)
	assert.True(t, sub.State().IsUninitialized())

	info, ok := f.store.Inspect(f.get.Key("42"))
	require.True(t, ok)
	assert.Equal(t, 0, info.Subscribers)
}

func TestSubscription_RefetchOnMountOrArgChange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	warm := f.get.Subscribe("7", SubscribeOptions{}, nil)

	defer warm.Unsubscribe()

	waitFulfilled(t, warm)

	forced := f.get.Subscribe("7", SubscribeOptions{RefetchOnMountOrArgChange: true}, nil)

	defer forced.Unsubscribe()

	require.Eventually(t, func() bool { return f.calls.get("7") == 2 }, waitFor, tick)

	plain := f.get.Subscribe("7", SubscribeOptions{}, nil)

	defer plain.Unsubscribe()

	f.store.Flush()
	assert.Equal(t, 2, f.calls.get("7"))
}

func TestQuery_Fetch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	data, err := f.get.Fetch(ctx, "7", SubscribeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "post 7", data)

	data, err = f.get.Fetch(ctx, "7", SubscribeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "post 7", data)
	assert.Equal(t, 1, f.calls.get("7"))

	_, err = f.get.Fetch(ctx, "7", SubscribeOptions{RefetchOnMountOrArgChange: true})
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls.get("7"))
}

func TestQuery_FetchHonoursContext(t *testing.T) {
	t.Parallel()

	store := NewStore()
	defer store.Close()

	block := make(chan struct{})
	defer close(block)

	get := DefineQuery(store, "getPost", func(_ context.Context, id string) (string, error) {
		<-block

		return id, nil
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := get.Fetch(ctx, "1", SubscribeOptions{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_DispatchesActions(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		actions []Action
	)

	record := func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, action Action) Action {
			mu.Lock()
			actions = append(actions, action)
			mu.Unlock()

			return next(ctx, action)
		}
	}

	store := NewStore(WithMiddleware(record))
	defer store.Close()

	notFound := &blog.NetworkError{Status: 404}
	get := DefineQuery(store, "getPost", func(_ context.Context, id string) (string, error) {
		if id == "missing" {
			return "", notFound
		}

		if id == "boom" {
			panic("kaboom")
		}

		return id, nil
	}, postTag)

	_, err := get.Fetch(context.Background(), "missing", SubscribeOptions{})
	require.ErrorAs(t, err, &notFound)

	_, err = get.Fetch(context.Background(), "boom", SubscribeOptions{})
	require.ErrorIs(t, err, ErrPanic)

	store.Flush()

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, actions, 4)
	assert.Equal(t, "getPost/pending", actions[0].String())
	assert.Equal(t, KindQuery, actions[0].Kind)
	assert.Equal(t, ActionRejected, actions[1].Type)
	assert.True(t, actions[1].RejectedWithValue)
	assert.Equal(t, error(notFound), actions[1].Payload)
	assert.Equal(t, "missing", actions[1].Arg)
	assert.Equal(t, ActionRejected, actions[3].Type)
	assert.False(t, actions[3].RejectedWithValue)
	assert.Nil(t, actions[3].Payload)
	require.ErrorIs(t, actions[3].Error, ErrPanic)
}

func TestStore_ListenerPanicIsContained(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	sub := f.get.Subscribe("1", SubscribeOptions{}, func(QueryState[string]) {
		panic("listener")
	})

	defer sub.Unsubscribe()

	waitFulfilled(t, sub)
	f.store.Flush()

	data, err := f.get.Fetch(context.Background(), "2", SubscribeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "post 2", data)
}

func TestStore_Close(t *testing.T) {
	t.Parallel()

	store := NewStore()

	get := DefineQuery(store, "getPost", func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()

		return "", ctx.Err()
	}, nil)

	sub := get.Subscribe("1", SubscribeOptions{PollInterval: time.Millisecond}, nil)

	store.Close()
	store.Close()

	assert.Empty(t, store.Entries())
	assert.True(t, sub.State().IsUninitialized())

	late := get.Subscribe("2", SubscribeOptions{}, nil)
	assert.True(t, late.State().IsUninitialized())

	_, err := get.Fetch(context.Background(), "3", SubscribeOptions{})
	require.ErrorIs(t, err, ErrStoreClosed)
}

func TestQuery_FetchReturnsWhenStoreCloses(t *testing.T) {
	t.Parallel()

	store := NewStore()

	started := make(chan struct{})
	release := make(chan struct{})

	get := DefineQuery(store, "getPost", func(_ context.Context, id string) (string, error) {
		close(started)
		<-release

		return id, nil
	}, nil)

	errs := make(chan error, 1)

	go func() {
		_, err := get.Fetch(context.Background(), "1", SubscribeOptions{})
		errs <- err
	}()

	<-started

	closed := make(chan struct{})

	go func() {
		store.Close()
		close(closed)
	}()

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrStoreClosed)
	case <-time.After(waitFor):
		t.Fatal("Fetch did not return after Close")
	}

	close(release)

	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("Close did not return after the fetch was released")
	}
}

func TestStore_SupersededEvictionTimerIsIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithKeepUnusedFor(time.Minute))
	key := f.get.Key("9")

	sub := f.get.Subscribe("9", SubscribeOptions{}, nil)
	waitFulfilled(t, sub)
	sub.Unsubscribe()

	f.store.mu.Lock()
	e := f.store.entries[key]
	first := e.evictGen
	f.store.mu.Unlock()

	again := f.get.Subscribe("9", SubscribeOptions{}, nil)
	again.Unsubscribe()

	// The first timer firing late must not evict ahead of the second one.
	f.store.evict(e, first)

	info, ok := f.store.Inspect(key)
	require.True(t, ok)
	assert.False(t, info.ExpiresAt.IsZero())

	f.store.mu.Lock()
	second := e.evictGen
	f.store.mu.Unlock()

	f.store.evict(e, second)

	_, ok = f.store.Inspect(key)
	assert.False(t, ok)
}

// Package session holds the client-side edit session: which post, if any,
// the form is currently editing.
package session

import "sync"

// State is the edit session. An empty PostID means the form creates a new post.
type State struct {
	PostID string `json:"post_id" yaml:"post_id"`
}

// Editing reports whether an existing post is being edited.
func (s State) Editing() bool {
	return s.PostID != ""
}

// ActionType names a session transition.
type ActionType string

const (
	ActionStartEditingPost  ActionType = "blog/startEditingPost"
	ActionCancelEditingPost ActionType = "blog/cancelEditingPost"
)

// Action is a session transition.
type Action struct {
	Type   ActionType
	PostID string
}

// StartEditingPost returns the action that enters edit mode for id.
func StartEditingPost(id string) Action {
	return Action{Type: ActionStartEditingPost, PostID: id}
}

// CancelEditingPost returns the action that returns to create mode.
func CancelEditingPost() Action {
	return Action{Type: ActionCancelEditingPost}
}

// Reduce applies action to state. Unknown actions leave state unchanged.
func Reduce(state State, action Action) State {
	switch action.Type {
	case ActionStartEditingPost:
		return State{PostID: action.PostID}
	case ActionCancelEditingPost:
		return State{}
	default:
		return state
	}
}

// Slice owns a State and notifies watchers of every change.
type Slice struct {
	mu          sync.Mutex
	state       State
	watchers    map[uint64]func(State)
	nextWatcher uint64
}

// NewSlice returns a slice in create mode.
func NewSlice() *Slice {
	return &Slice{watchers: make(map[uint64]func(State))}
}

// State returns the current session.
func (s *Slice) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Dispatch applies action and calls the watchers if the state changed.
// Watchers run on the caller's goroutine, after the lock is released.
func (s *Slice) Dispatch(action Action) State {
	s.mu.Lock()
	previous := s.state
	s.state = Reduce(s.state, action)
	next := s.state

	var watchers []func(State)
	if next != previous {
		watchers = make([]func(State), 0, len(s.watchers))
		for _, fn := range s.watchers {
			watchers = append(watchers, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(next)
	}

	return next
}

// StartEditingPost enters edit mode for id.
func (s *Slice) StartEditingPost(id string) State {
	return s.Dispatch(StartEditingPost(id))
}

// CancelEditingPost returns to create mode. It is a no-op in create mode.
func (s *Slice) CancelEditingPost() State {
	return s.Dispatch(CancelEditingPost())
}

// Watch calls fn after every change. The returned function stops the calls.
func (s *Slice) Watch(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextWatcher++
	id := s.nextWatcher
	s.watchers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.watchers, id)
	}
}

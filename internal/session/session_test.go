package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReduce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		state  State
		action Action
		want   State
	}{
		{"start from create mode", State{}, StartEditingPost("42"), State{PostID: "42"}},
		{"start replaces current post", State{PostID: "7"}, StartEditingPost("42"), State{PostID: "42"}},
		{"cancel returns to create mode", State{PostID: "42"}, CancelEditingPost(), State{}},
		{"cancel in create mode is a no-op", State{}, CancelEditingPost(), State{}},
		{"unknown action", State{PostID: "7"}, Action{Type: "blog/unknown"}, State{PostID: "7"}},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Reduce(tt.state, tt.action))
		})
	}
}

func TestSlice(t *testing.T) {
	t.Parallel()

	slice := NewSlice()
	assert.False(t, slice.State().Editing())

	var seen []State

	stop := slice.Watch(func(state State) {
		seen = append(seen, state)
	})

	slice.StartEditingPost("42")
	assert.True(t, slice.State().Editing())
	assert.Equal(t, "42", slice.State().PostID)

	slice.StartEditingPost("42")
	slice.CancelEditingPost()
	slice.CancelEditingPost()

	assert.Equal(t, []State{{PostID: "42"}, {}}, seen)

	stop()
	slice.StartEditingPost("7")
	assert.Len(t, seen, 2)
}

// Package editor drives the create/edit post form: it follows the edit
// session, keeps the edited post fresh and submits through the matching
// mutation.
package editor

import (
	"context"
	"fmt"
	"sync"

	"github.com/fivetwenty-io/blog-client/internal/client"
	"github.com/fivetwenty-io/blog-client/internal/constants"
	"github.com/fivetwenty-io/blog-client/internal/session"
	"github.com/fivetwenty-io/blog-client/pkg/blog"
	"github.com/fivetwenty-io/blog-client/pkg/query"
)

// Mode is what a submit will do.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Controller is the form state behind a post editor.
type Controller struct {
	slice  *session.Slice
	post   *query.Subscription[string, *blog.Post]
	create *query.MutationInstance[blog.PostCreateRequest, *blog.Post]
	update *query.MutationInstance[blog.PostUpdateRequest, *blog.Post]

	mu     sync.Mutex
	form   blog.Post
	loaded *blog.Post

	stopWatch func()
}

// New creates a controller following slice. While a post is being edited it
// is polled and refetched on every switch, and fresh server data replaces
// the form.
func New(api *client.API, slice *session.Slice) *Controller {
	c := &Controller{
		slice:  slice,
		create: api.Create.New(),
		update: api.Update.New(),
	}

	current := slice.State()
	c.post = api.Get.Subscribe(current.PostID, query.SubscribeOptions{
		Skip:                      !current.Editing(),
		PollInterval:              constants.EditorPollInterval,
		RefetchOnMountOrArgChange: true,
	}, c.onPost)

	c.stopWatch = slice.Watch(c.onSession)

	return c
}

func (c *Controller) onSession(state session.State) {
	if !state.Editing() {
		c.post.SetSkip(true)

		return
	}

	c.post.SetArg(state.PostID)
	c.post.SetSkip(false)
}

func (c *Controller) onPost(state query.QueryState[*blog.Post]) {
	if !state.IsSuccess() || state.Data == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded != nil && *c.loaded == *state.Data {
		return
	}

	loaded := *state.Data
	c.loaded = &loaded
	c.form = loaded
}

// Mode reports whether Submit creates or updates.
func (c *Controller) Mode() Mode {
	if c.slice.State().Editing() {
		return ModeEdit
	}

	return ModeCreate
}

// Form returns the current form data.
func (c *Controller) Form() blog.Post {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.form
}

// SetForm replaces the form data.
func (c *Controller) SetForm(post blog.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.form = post
}

// Post returns the state of the post being edited.
func (c *Controller) Post() query.QueryState[*blog.Post] {
	return c.post.State()
}

// FieldErrors returns the server's per-field messages from the last submit
// in the current mode, or nil.
func (c *Controller) FieldErrors() map[string]string {
	var err error

	if c.Mode() == ModeEdit {
		err = c.update.State().Error
	} else {
		err = c.create.State().Error
	}

	if valErr, ok := blog.AsValidationError(err); ok {
		return valErr.FieldErrors
	}

	return nil
}

// Submit creates or updates the post from the form. On success a created
// post clears the form and an updated post replaces it with the server's
// copy; on failure the form is kept.
func (c *Controller) Submit(ctx context.Context) (*blog.Post, error) {
	form := c.Form()
	state := c.slice.State()

	var (
		post *blog.Post
		err  error
	)

	if state.Editing() {
		form.ID = state.PostID
		post, err = c.update.Trigger(ctx, blog.PostUpdateRequest{ID: state.PostID, Body: form}).Unwrap()
	} else {
		post, err = c.create.Trigger(ctx, form.CreateRequest()).Unwrap()
	}

	if err != nil {
		return nil, fmt.Errorf("submitting post: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Edit mode stays on the post after saving, so the form shows the saved
	// copy rather than an empty post the next poll would overwrite.
	if state.Editing() && post != nil {
		saved := *post
		c.loaded = &saved
		c.form = saved

		return post, nil
	}

	c.form = blog.Post{}

	return post, nil
}

// Cancel leaves edit mode, clears the form and forgets the last update.
func (c *Controller) Cancel() {
	c.slice.CancelEditingPost()

	c.mu.Lock()
	c.form = blog.Post{}
	c.loaded = nil
	c.mu.Unlock()

	c.update.Reset()
}

// Close stops following the session and releases the subscription.
func (c *Controller) Close() {
	c.stopWatch()
	c.post.Unsubscribe()
}

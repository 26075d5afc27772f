package commands

import (
	"fmt"
	"io"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/blog-client/internal/constants"
	"github.com/fivetwenty-io/blog-client/internal/render"
	"github.com/fivetwenty-io/blog-client/pkg/blog"
	"github.com/fivetwenty-io/blog-client/pkg/query"
)

// NewPostsCommand creates the posts command group.
func NewPostsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "posts",
		Aliases: []string{"post", "p"},
		Short:   "Manage blog posts",
		Long:    "List, view, create, update, delete and watch blog posts",
	}

	cmd.AddCommand(newPostsListCommand())
	cmd.AddCommand(newPostsGetCommand())
	cmd.AddCommand(newPostsCreateCommand())
	cmd.AddCommand(newPostsUpdateCommand())
	cmd.AddCommand(newPostsDeleteCommand())
	cmd.AddCommand(newPostsWatchCommand())

	return cmd
}

func newPostsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List posts",
		Long:  "List all blog posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(cli)

			posts, err := cli.Posts().List.Fetch(commandContext(cmd), struct{}{}, query.SubscribeOptions{})
			if err != nil {
				return fmt.Errorf("failed to list posts: %w", err)
			}

			return writeOutput(cmd, posts, postsTable(posts))
		},
	}
}

func newPostsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get POST_ID",
		Short: "Get post details",
		Long:  "Display a single post with its description rendered to HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(cli)

			post, err := cli.Posts().Get.Fetch(commandContext(cmd), args[0], query.SubscribeOptions{})
			if err != nil {
				return fmt.Errorf("failed to get post: %w", err)
			}

			view, err := render.NewRenderer().View(*post)
			if err != nil {
				return err
			}

			return writeOutput(cmd, view, viewTable(view))
		},
	}
}

// postFlags are the editable fields of a post.
type postFlags struct {
	title         string
	description   string
	featuredImage string
	publishDate   string
	published     bool
}

func (f *postFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "post title")
	cmd.Flags().StringVar(&f.description, "description", "", "post description (markdown)")
	cmd.Flags().StringVar(&f.featuredImage, "featured-image", "", "featured image URL")
	cmd.Flags().StringVar(&f.publishDate, "publish-date", "", "publish date (YYYY-MM-DDTHH:MM)")
	cmd.Flags().BoolVar(&f.published, "published", false, "mark the post as published")
}

// apply copies the flags the user set onto post.
func (f *postFlags) apply(cmd *cobra.Command, post *blog.Post) {
	if cmd.Flags().Changed("title") {
		post.Title = f.title
	}

	if cmd.Flags().Changed("description") {
		post.Description = f.description
	}

	if cmd.Flags().Changed("featured-image") {
		post.FeaturedImage = f.featuredImage
	}

	if cmd.Flags().Changed("publish-date") {
		post.PublishDate = f.publishDate
	}

	if cmd.Flags().Changed("published") {
		post.Published = f.published
	}
}

func newPostsCreateCommand() *cobra.Command {
	flags := &postFlags{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post",
		Long:  "Create a new blog post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.title == "" {
				return constants.ErrTitleRequired
			}

			cli, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(cli)

			var post blog.Post
			flags.apply(cmd, &post)

			created, err := cli.Posts().Create.New().Trigger(commandContext(cmd), post.CreateRequest()).Unwrap()
			if err != nil {
				return reportValidation(cmd, err)
			}

			return writeOutput(cmd, created, postsTable([]blog.Post{*created}))
		},
	}

	flags.register(cmd)

	return cmd
}

func newPostsUpdateCommand() *cobra.Command {
	flags := &postFlags{}

	cmd := &cobra.Command{
		Use:   "update POST_ID",
		Short: "Update a post",
		Long:  "Update an existing blog post; fields without a flag keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(cli)

			ctx := commandContext(cmd)

			current, err := cli.Posts().Get.Fetch(ctx, args[0], query.SubscribeOptions{})
			if err != nil {
				return fmt.Errorf("failed to get post: %w", err)
			}

			body := *current
			flags.apply(cmd, &body)

			updated, err := cli.Posts().Update.New().Trigger(ctx, blog.PostUpdateRequest{
				ID:   args[0],
				Body: body,
			}).Unwrap()
			if err != nil {
				return reportValidation(cmd, err)
			}

			return writeOutput(cmd, updated, postsTable([]blog.Post{*updated}))
		},
	}

	flags.register(cmd)

	return cmd
}

func newPostsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete POST_ID",
		Short: "Delete a post",
		Long:  "Delete a blog post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(cli)

			err = cli.Posts().Delete.New().Trigger(commandContext(cmd), args[0]).Error
			if err != nil {
				return fmt.Errorf("failed to delete post: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted post %s\n", args[0])

			return nil
		},
	}
}

func newPostsWatchCommand() *cobra.Command {
	var (
		interval time.Duration
		count    int
	)

	cmd := &cobra.Command{
		Use:   "watch [POST_ID]",
		Short: "Watch posts for changes",
		Long:  "Poll the post list, or a single post, and print it initially and whenever its content changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(cli)

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := &watcher{cmd: cmd, remaining: count, done: stop}
			opts := query.SubscribeOptions{PollInterval: interval}

			if len(args) == 1 {
				sub := cli.Posts().Get.Subscribe(args[0], opts, func(state query.QueryState[*blog.Post]) {
					if state.IsSuccess() && state.Data != nil {
						w.emit(*state.Data, postsTable([]blog.Post{*state.Data}))
					}
				})
				defer sub.Unsubscribe()
			} else {
				sub := cli.Posts().List.Subscribe(struct{}{}, opts, func(state query.QueryState[[]blog.Post]) {
					if state.IsSuccess() {
						w.emit(state.Data, postsTable(state.Data))
					}
				})
				defer sub.Unsubscribe()
			}

			<-ctx.Done()

			return w.Err()
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", constants.DefaultWatchInterval, "polling interval")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many updates (0 watches until interrupted)")

	return cmd
}

// watcher prints a fetched value when it differs from the last one printed
// and stops after a set number of updates.
type watcher struct {
	cmd  *cobra.Command
	done func()

	mu        sync.Mutex
	last      interface{}
	printed   bool
	remaining int
	finished  bool
	err       error
}

func (w *watcher) emit(value interface{}, table func(io.Writer) error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finished || (w.printed && reflect.DeepEqual(w.last, value)) {
		return
	}

	w.last = value
	w.printed = true

	w.err = writeOutput(w.cmd, value, table)
	if w.err != nil {
		w.finish()

		return
	}

	if w.remaining > 0 {
		w.remaining--
		if w.remaining == 0 {
			w.finish()
		}
	}
}

func (w *watcher) finish() {
	w.finished = true
	w.done()
}

// Err returns the output error that ended the watch, if any.
func (w *watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.err
}

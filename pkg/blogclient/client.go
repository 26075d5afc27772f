// Package blogclient builds a fully wired blog posts client.
package blogclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/blog-client/internal/auth"
	"github.com/fivetwenty-io/blog-client/internal/client"
	"github.com/fivetwenty-io/blog-client/internal/constants"
	"github.com/fivetwenty-io/blog-client/internal/editor"
	"github.com/fivetwenty-io/blog-client/internal/http"
	"github.com/fivetwenty-io/blog-client/internal/natsbus"
	"github.com/fivetwenty-io/blog-client/internal/notify"
	"github.com/fivetwenty-io/blog-client/internal/session"
	"github.com/fivetwenty-io/blog-client/pkg/blog"
	"github.com/fivetwenty-io/blog-client/pkg/query"
)

// Client owns the query store, the posts endpoints and the edit session.
// Nothing is shared between clients; call Close to release one.
type Client struct {
	baseURL string
	store   *query.Store
	api     *client.API
	posts   blog.PostsClient
	session *session.Slice
	latency *query.LatencyTracker
	bus     *natsbus.Bus
	logger  blog.Logger
}

// New creates a client from config.
func New(ctx context.Context, config *blog.Config) (*Client, error) {
	if config == nil {
		return nil, blog.ErrConfigRequired
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	baseURL, err := normalizeBaseURL(config.BaseURL)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = blog.NopLogger{}
	}

	notifier := config.Notifier
	if notifier == nil {
		notifier = notify.LoggerNotifier{Logger: logger}
	}

	keepUnusedFor := config.KeepUnusedFor
	if keepUnusedFor == 0 {
		keepUnusedFor = constants.DefaultKeepUnusedFor
	}

	httpClient := http.NewClient(baseURL, tokenManager(config), httpOptions(config, logger)...)
	posts := client.NewPostsClient(httpClient)
	latency := query.NewLatencyTracker(constants.LatencyRelativeAccuracy)

	storeOpts := []query.StoreOption{
		query.WithKeepUnusedFor(keepUnusedFor),
		query.WithLogger(logger),
		query.WithMiddleware(notify.ErrorMiddleware(notifier, logger)),
		query.WithLatencyTracker(latency),
	}

	var bus *natsbus.Bus

	if config.NATSURL != "" {
		bus, err = natsbus.Connect(&natsbus.Config{
			URL:     config.NATSURL,
			Subject: config.NATSSubject,
			Name:    userAgent(config),
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating invalidation bus: %w", err)
		}

		storeOpts = append(storeOpts, query.WithBus(bus))
	}

	store := query.NewStore(storeOpts...)

	return &Client{
		baseURL: baseURL,
		store:   store,
		api:     client.NewAPI(store, posts),
		posts:   posts,
		session: session.NewSlice(),
		latency: latency,
		bus:     bus,
		logger:  logger,
	}, nil
}

// NewWithEndpoint creates an unauthenticated client for baseURL.
func NewWithEndpoint(ctx context.Context, baseURL string) (*Client, error) {
	return New(ctx, &blog.Config{BaseURL: baseURL})
}

// NewWithToken creates a client sending token as a Bearer token.
func NewWithToken(ctx context.Context, baseURL, token string) (*Client, error) {
	return New(ctx, &blog.Config{
		BaseURL:     baseURL,
		AccessToken: token,
	})
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Posts returns the cached posts endpoints.
func (c *Client) Posts() *client.API {
	return c.api
}

// Raw returns the uncached REST client.
func (c *Client) Raw() blog.PostsClient {
	return c.posts
}

// Store returns the query store.
func (c *Client) Store() *query.Store {
	return c.store
}

// Session returns the edit session.
func (c *Client) Session() *session.Slice {
	return c.session
}

// NewEditor returns a form controller following the client's session.
// Close it when the form goes away.
func (c *Client) NewEditor() *editor.Controller {
	return editor.New(c.api, c.session)
}

// Latency returns per-endpoint fetch and mutation latency.
func (c *Client) Latency() *query.LatencyTracker {
	return c.latency
}

// Close stops every timer and poller, detaches the bus and closes its
// connection.
func (c *Client) Close() {
	c.store.Close()

	if c.bus != nil {
		c.bus.Close()
	}

	c.logger.Debug("Client closed", map[string]interface{}{
		"base_url": c.baseURL,
	})
}

func tokenManager(config *blog.Config) auth.TokenManager {
	if config.AccessToken == "" {
		return nil
	}

	return auth.NewStaticTokenManager(config.AccessToken)
}

func userAgent(config *blog.Config) string {
	if config.UserAgent != "" {
		return config.UserAgent
	}

	return constants.DefaultUserAgent
}

func httpOptions(config *blog.Config, logger blog.Logger) []http.Option {
	opts := []http.Option{
		http.WithLogger(logger),
		http.WithDebug(config.Debug),
		http.WithUserAgent(userAgent(config)),
	}

	if config.HTTPTimeout > 0 {
		opts = append(opts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		waitMin := config.RetryWaitMin
		if waitMin == 0 {
			waitMin = constants.DefaultRetryWaitMin
		}

		waitMax := config.RetryWaitMax
		if waitMax == 0 {
			waitMax = constants.DefaultRetryWaitMax
		}

		opts = append(opts, http.WithRetryConfig(config.RetryMax, waitMin, waitMax))
	}

	chain := blog.NewInterceptorChain()

	if len(config.Headers) > 0 {
		chain.AddRequestInterceptor(blog.HeaderInterceptor(config.Headers))
	}

	if len(config.QueryParams) > 0 {
		chain.AddRequestInterceptor(blog.QueryInterceptor(config.QueryParams))
	}

	if config.Debug {
		chain.AddRequestInterceptor(blog.LoggingInterceptor(logger))
		chain.AddResponseInterceptor(blog.LoggingResponseInterceptor(logger))
	}

	return append(opts, http.WithInterceptors(chain))
}

// normalizeBaseURL adds a scheme when missing and guarantees a trailing slash.
func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", blog.ErrBaseURLRequired
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: %q", blog.ErrInvalidBaseURL, raw)
	}

	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	return parsed.String(), nil
}

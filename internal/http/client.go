package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/blog-client/internal/auth"
	"github.com/fivetwenty-io/blog-client/internal/constants"
	"github.com/fivetwenty-io/blog-client/pkg/blog"
)

// Request is a single call against the backend. Path is relative to the base URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    interface{}
}

// Response is the raw backend response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Option configures a Client.
type Option func(*Client)

// Client sends requests to the backend with a fixed base URL and header injection.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	tokenManager auth.TokenManager
	interceptors *blog.InterceptorChain
	logger       blog.Logger
	debug        bool
	userAgent    string
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger blog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig enables retries for transient failures (5xx, 429, connection errors).
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithInterceptors runs chain around every request.
func WithInterceptors(chain *blog.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// NewClient creates a client for baseURL. tokenManager may be nil for
// unauthenticated access.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.Logger = nil
	// Hand the last response back unchanged so non-2xx bodies can be decoded.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		baseURL:      baseURL,
		httpClient:   retryClient,
		tokenManager: tokenManager,
		interceptors: blog.NewInterceptorChain(),
		logger:       blog.NopLogger{},
		userAgent:    constants.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Do sends req and returns the response. Non-2xx responses are returned
// together with a *blog.NetworkError or *blog.ValidationError; failures while
// building the request are *blog.ExecutionError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	outgoing, err := c.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	fullURL := c.resolve(outgoing.Path, outgoing.Query)

	var body io.Reader
	if outgoing.Body != nil {
		body = bytes.NewReader(outgoing.Body)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, outgoing.Method, fullURL, body)
	if err != nil {
		return nil, blog.NewExecutionError("failed to build request", err)
	}

	httpReq.Header = outgoing.Headers

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": outgoing.Method,
			"url":    fullURL,
		})
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		netErr := &blog.NetworkError{Err: err}
		_ = c.interceptors.ExecuteResponseInterceptors(ctx, outgoing, &blog.Response{Error: netErr})

		return nil, netErr
	}

	defer func() {
		_ = httpResp.Body.Close()
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &blog.NetworkError{Status: httpResp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status": resp.StatusCode,
			"bytes":  len(respBody),
		})
	}

	decodeErr := classify(resp.StatusCode, resp.Body)

	err = c.interceptors.ExecuteResponseInterceptors(ctx, outgoing, &blog.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
		Error:      decodeErr,
	})
	if err != nil {
		return resp, blog.NewExecutionError("response rejected", err)
	}

	return resp, decodeErr
}

// prepare encodes the body and applies header injection: defaults, bearer
// token, interceptors, then the per-call headers.
func (c *Client) prepare(ctx context.Context, req *Request) (*blog.Request, error) {
	outgoing := &blog.Request{
		Method:  req.Method,
		Path:    req.Path,
		Query:   cloneValues(req.Query),
		Headers: make(http.Header),
	}

	outgoing.Headers.Set("Accept", "application/json")
	outgoing.Headers.Set("User-Agent", c.userAgent)

	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, blog.NewExecutionError("failed to encode request body", fmt.Errorf("%w: %w", blog.ErrEncodingBody, err))
		}

		outgoing.Body = encoded
		outgoing.Headers.Set("Content-Type", "application/json")
	}

	if c.tokenManager != nil {
		err := blog.AuthenticationInterceptor(c.token)(ctx, outgoing)
		if err != nil {
			return nil, blog.NewExecutionError("failed to get authentication token", err)
		}
	}

	err := c.interceptors.ExecuteRequestInterceptors(ctx, outgoing)
	if err != nil {
		return nil, blog.NewExecutionError("request interceptor failed", err)
	}

	for key, value := range req.Headers {
		outgoing.Headers.Set(key, value)
	}

	return outgoing, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", blog.ErrTokenUnavailable, err)
	}

	return token, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	fullURL := strings.TrimSuffix(c.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	return fullURL
}

func cloneValues(values url.Values) url.Values {
	if values == nil {
		return nil
	}

	clone := make(url.Values, len(values))
	for key, list := range values {
		clone[key] = append([]string(nil), list...)
	}

	return clone
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPut,
		Path:   path,
		Body:   body,
	})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPatch,
		Path:   path,
		Body:   body,
	})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodDelete,
		Path:   path,
	})
}

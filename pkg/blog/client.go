package blog

import (
	"context"
	"net/url"
	"time"
)

// PostsClient performs the raw REST calls against the posts resource.
type PostsClient interface {
	List(ctx context.Context) ([]Post, error)
	Get(ctx context.Context, id string) (*Post, error)
	Create(ctx context.Context, request *PostCreateRequest) (*Post, error)
	Update(ctx context.Context, request *PostUpdateRequest) (*Post, error)
	Delete(ctx context.Context, id string) error
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Level is the severity of a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier receives user-facing notifications such as toasts.
type Notifier interface {
	Notify(message string, level Level)
}

// Config represents client configuration for building a blogclient.Client.
//
// # Authentication
//
// AccessToken, when set, is sent on every request as a Bearer token. Headers
// are added to every request after the token, so a caller can still override
// Authorization explicitly.
//
// # Retention and retries
//
// KeepUnusedFor is how long a cached query survives after its last
// subscriber leaves. Requests are not retried unless RetryMax > 0.
type Config struct {
	// BaseURL: prefix applied to every request path (e.g. "http://localhost:4000/").
	BaseURL string

	// AccessToken: static Bearer token injected into every request.
	AccessToken string
	// Headers: extra headers injected into every request.
	Headers map[string]string
	// QueryParams: query parameters added to every request unless the
	// request already sets them.
	QueryParams url.Values

	// KeepUnusedFor: retention window for unsubscribed cache entries.
	// If 0, constants.DefaultKeepUnusedFor is used.
	KeepUnusedFor time.Duration

	// HTTPTimeout: per-request timeout applied by the HTTP client.
	HTTPTimeout time.Duration
	// RetryMax: maximum number of retries for transient failures. 0 disables retries.
	RetryMax int
	// RetryWaitMin: minimum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMax time.Duration

	// Debug: enables verbose HTTP request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger used by every layer.
	Logger Logger
	// Notifier: receives warnings raised by the error middleware. Defaults to
	// a notifier that writes through Logger.
	Notifier Notifier
	// UserAgent: overrides the default User-Agent header.
	UserAgent string

	// NATSURL: when set, tag invalidations are shared with other clients over NATS.
	NATSURL string
	// NATSSubject: subject used for invalidation messages.
	NATSSubject string
}

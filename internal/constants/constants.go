package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// Backend defaults.
const (
	// DefaultBaseURL is the REST backend the client talks to when none is configured.
	DefaultBaseURL = "http://localhost:4000/"

	// PostsPath is the resource path for posts, relative to the base URL.
	PostsPath = "posts"

	// DefaultUserAgent is sent when no User-Agent is configured.
	DefaultUserAgent = "blog-client/1.0"
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits. Retries are off unless a caller opts in.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 0

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Cache retention and polling.
const (
	// DefaultKeepUnusedFor is how long an unsubscribed cache entry is retained.
	DefaultKeepUnusedFor = 60 * time.Second

	// EditorPollInterval is the cadence at which the post being edited is re-fetched.
	EditorPollInterval = 10 * time.Second

	// DefaultWatchInterval is the polling cadence used by the CLI watch command.
	DefaultWatchInterval = 5 * time.Second
)

// Metrics.
const (
	// LatencyRelativeAccuracy is the relative accuracy of fetch latency quantiles.
	LatencyRelativeAccuracy = 0.01
)

// Messaging.
const (
	// DefaultNATSSubject carries tag invalidations between clients.
	DefaultNATSSubject = "blog.posts.invalidations"
)

// Boolean string constants.
const (
	// BooleanTrue string representation.
	BooleanTrue = "true"

	// BooleanFalse string representation.
	BooleanFalse = "false"
)

// Output formats.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"
)

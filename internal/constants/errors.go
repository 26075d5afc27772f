package constants

import "errors"

// Configuration errors.
var (
	ErrUnknownConfigKey   = errors.New("unknown configuration key")
	ErrNoConfigFile       = errors.New("no configuration file in use")
	ErrUnsupportedFormat  = errors.New("unsupported output format")
	ErrConfigLockTimedOut = errors.New("timed out waiting for the configuration lock")
)

// Command errors.
var (
	ErrTitleRequired = errors.New("--title flag is required")
	ErrNothingToShow = errors.New("no posts found")
)

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/blog-client/internal/constants"
	"github.com/fivetwenty-io/blog-client/internal/notify"
	"github.com/fivetwenty-io/blog-client/pkg/blog"
	"github.com/fivetwenty-io/blog-client/pkg/blogclient"
)

// ErrValidationFailed is returned after per-field validation messages were printed.
var ErrValidationFailed = errors.New("validation failed")

// newClient builds a client from flags, environment and config file.
// Server failures are printed on stderr as "warning: <message>".
func newClient(cmd *cobra.Command) (*blogclient.Client, error) {
	baseURL := viper.GetString(keyAPI)
	if baseURL == "" {
		baseURL = constants.DefaultBaseURL
	}

	config := &blog.Config{
		BaseURL:     baseURL,
		AccessToken: viper.GetString(keyToken),
		Debug:       viper.GetBool(keyVerbose),
		Notifier:    notify.NewWriterNotifier(cmd.ErrOrStderr()),
		NATSURL:     viper.GetString(keyNATSURL),
		NATSSubject: viper.GetString(keyNATSSubject),
		HTTPTimeout: constants.DefaultHTTPTimeout,
	}

	if config.Debug {
		config.Logger = blog.NewSlogLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cli, err := blogclient.New(commandContext(cmd), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return cli, nil
}

// closeClient delivers pending notifications and releases the client.
func closeClient(cli *blogclient.Client) {
	cli.Store().Flush()
	cli.Close()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

// reportValidation prints per-field messages for a validation failure and
// returns ErrValidationFailed. Other errors are returned unchanged.
func reportValidation(cmd *cobra.Command, err error) error {
	valErr, ok := blog.AsValidationError(err)
	if !ok {
		return err
	}

	fields := make([]string, 0, len(valErr.FieldErrors))
	for field := range valErr.FieldErrors {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	for _, field := range fields {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", field, valErr.FieldErrors[field])
	}

	return ErrValidationFailed
}

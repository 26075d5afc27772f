// Package notify turns failed query and mutation actions into user-facing
// notifications.
package notify

import (
	"context"

	"github.com/fivetwenty-io/blog-client/pkg/blog"
	"github.com/fivetwenty-io/blog-client/pkg/query"
)

// ErrorMiddleware inspects every action and raises a warning for failures a
// user should see: local execution errors, and server rejections carrying a
// message or a status. Validation failures are left for inline display.
// Actions are always forwarded unchanged.
func ErrorMiddleware(notifier blog.Notifier, logger blog.Logger) query.Middleware {
	if logger == nil {
		logger = blog.NopLogger{}
	}

	return func(next query.DispatchFunc) query.DispatchFunc {
		return func(ctx context.Context, action query.Action) query.Action {
			if action.Type == query.ActionRejected {
				handleRejected(notifier, logger, action)
			}

			return next(ctx, action)
		}
	}
}

func handleRejected(notifier blog.Notifier, logger blog.Logger, action query.Action) {
	fields := map[string]interface{}{
		"action": action.String(),
		"kind":   string(action.Kind),
	}

	if execErr, ok := blog.AsExecutionError(action.Error); ok {
		notifier.Notify(execErr.Message, blog.LevelWarning)

		return
	}

	if !action.RejectedWithValue {
		if action.Error != nil {
			fields["error"] = action.Error.Error()
		}

		logger.Debug("Ignoring rejected action", fields)

		return
	}

	payload, _ := action.Payload.(error)

	if valErr, ok := blog.AsValidationError(payload); ok {
		fields["fields"] = len(valErr.FieldErrors)
		logger.Debug("Validation failure left for inline display", fields)

		return
	}

	if netErr, ok := blog.AsNetworkError(payload); ok {
		notifier.Notify(netErr.Message(), blog.LevelWarning)

		return
	}

	logger.Debug("Ignoring rejected action with unknown payload", fields)
}

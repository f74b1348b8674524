package memory

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/application/reset"
)

// LogDispatcher logs emails instead of sending them (dev / broker unavailable).
// The body contains a live reset link, so it is only logged at debug level.
type LogDispatcher struct {
	lg zerolog.Logger
}

func NewLogDispatcher(lg zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{lg: lg.With().Str("component", "log_dispatcher").Logger()}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, msg reset.EmailMessage) error {
	d.lg.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("[noop-dispatch] password reset email")
	d.lg.Debug().Str("html", msg.HTML).Msg("[noop-dispatch] body")
	return nil
}

package broadcast

import (
	"context"
	"log/slog"
)

type config struct {
	logger  *slog.Logger
	baseCtx context.Context
}

// Option configures a Bus or Signal.
type Option func(*config)

// WithLogger configures structured logging for the bus.
// Default is a discarding logger.
//
// Example:
//
//	bus := broadcast.New[string](
//	    broadcast.WithLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil))),
//	)
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBaseContext sets the parent context for every handler invocation.
// Default is context.Background(). Cancelling it stops all delivery
// goroutines, which makes it useful for tying a bus to an application
// lifecycle; Close must still be called to wait for them.
func WithBaseContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}

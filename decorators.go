package broadcast

import (
	"context"
	"fmt"
	"time"
)

// Decorator wraps a Handler to add additional functionality.
// Multiple decorators can be composed using the Decorate helper.
// Decorators wrap a handler before it is subscribed; the bus itself never
// retries or times out a handler.
type Decorator[T any] func(Handler[T]) Handler[T]

// WithRetry wraps a handler to retry on errors up to maxRetries times.
// Returns the last error if all retries fail.
//
// Example:
//
//	broadcast.Subscribe(bus, hook, broadcast.WithRetry(notifyWebhook, 3))
func WithRetry[T any](handler Handler[T], maxRetries int) Handler[T] {
	return func(ctx context.Context, value T) error {
		var lastErr error

		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}

			err := handler(ctx, value)
			if err == nil {
				return nil
			}

			lastErr = err
		}

		return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
	}
}

// WithBackoff wraps a handler with exponential backoff retry logic.
// Waits between retries with exponentially increasing delays, capped at
// maxDelay.
//
// Example:
//
//	handler := broadcast.WithBackoff(
//	    notifyWebhook,
//	    5,                    // max retries
//	    100*time.Millisecond, // initial delay
//	    10*time.Second,       // max delay
//	)
func WithBackoff[T any](handler Handler[T], maxRetries int, initialDelay, maxDelay time.Duration) Handler[T] {
	return func(ctx context.Context, value T) error {
		var lastErr error
		delay := initialDelay

		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}

				// Cap exponential growth to prevent unbounded waits
				delay *= 2
				if delay > maxDelay {
					delay = maxDelay
				}
			}

			err := handler(ctx, value)
			if err == nil {
				return nil
			}

			lastErr = err
		}

		return fmt.Errorf("failed after %d retries with backoff: %w", maxRetries, lastErr)
	}
}

// WithTimeout wraps a handler to enforce a maximum execution time.
// Cancels the handler's context if it exceeds the timeout. A handler that
// ignores its context keeps running in the background after the timeout
// fires, but the subscriber's queue moves on.
//
// Example:
//
//	broadcast.Subscribe(bus, worker, broadcast.WithTimeout(processImage, 30*time.Second))
func WithTimeout[T any](handler Handler[T], timeout time.Duration) Handler[T] {
	return func(ctx context.Context, value T) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			errCh <- handler(ctx, value)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return fmt.Errorf("handler timeout after %s: %w", timeout, ctx.Err())
		}
	}
}

// Retry returns a Decorator that wraps a handler with retry logic.
// This is a factory function for use with the Decorate helper.
func Retry[T any](maxRetries int) Decorator[T] {
	return func(h Handler[T]) Handler[T] {
		return WithRetry(h, maxRetries)
	}
}

// Backoff returns a Decorator that wraps a handler with exponential
// backoff retry logic. This is a factory function for use with the
// Decorate helper.
func Backoff[T any](maxRetries int, initialDelay, maxDelay time.Duration) Decorator[T] {
	return func(h Handler[T]) Handler[T] {
		return WithBackoff(h, maxRetries, initialDelay, maxDelay)
	}
}

// Timeout returns a Decorator that wraps a handler with timeout logic.
// This is a factory function for use with the Decorate helper.
func Timeout[T any](timeout time.Duration) Decorator[T] {
	return func(h Handler[T]) Handler[T] {
		return WithTimeout(h, timeout)
	}
}

// Decorate applies multiple decorators to a handler in sequence.
// Decorators are applied left-to-right (first decorator wraps innermost).
//
// Example:
//
//	handler := broadcast.Decorate(
//	    notifyWebhook,
//	    broadcast.Retry[Payload](3),
//	    broadcast.Timeout[Payload](30*time.Second),
//	)
//	broadcast.Subscribe(bus, hook, handler)
func Decorate[T any](handler Handler[T], decorators ...Decorator[T]) Handler[T] {
	for _, decorator := range decorators {
		handler = decorator(handler)
	}
	return handler
}

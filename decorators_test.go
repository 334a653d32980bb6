package broadcast_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/broadcast"
)

func TestWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32
		handler := broadcast.WithRetry(func(_ context.Context, _ string) error {
			if attempts.Add(1) < 3 {
				return errors.New("transient")
			}
			return nil
		}, 3)

		require.NoError(t, handler(context.Background(), "v"))
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("returns last error when retries are exhausted", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("persistent")
		var attempts atomic.Int32
		handler := broadcast.WithRetry(func(_ context.Context, _ string) error {
			attempts.Add(1)
			return wantErr
		}, 2)

		err := handler(context.Background(), "v")
		require.ErrorIs(t, err, wantErr)
		assert.Equal(t, int32(3), attempts.Load()) // initial attempt + 2 retries
	})

	t.Run("stops retrying when context is cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var attempts atomic.Int32
		handler := broadcast.WithRetry(func(_ context.Context, _ string) error {
			attempts.Add(1)
			cancel()
			return errors.New("fail")
		}, 5)

		err := handler(ctx, "v")
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(1), attempts.Load())
	})
}

func TestWithBackoff(t *testing.T) {
	t.Parallel()

	t.Run("retries with delays until success", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32
		handler := broadcast.WithBackoff(func(_ context.Context, _ int) error {
			if attempts.Add(1) < 3 {
				return errors.New("transient")
			}
			return nil
		}, 5, time.Millisecond, 10*time.Millisecond)

		start := time.Now()
		require.NoError(t, handler(context.Background(), 1))

		assert.Equal(t, int32(3), attempts.Load())
		assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond) // 1ms + 2ms between attempts
	})

	t.Run("returns wrapped error when retries are exhausted", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("persistent")
		handler := broadcast.WithBackoff(func(_ context.Context, _ int) error {
			return wantErr
		}, 2, time.Millisecond, 2*time.Millisecond)

		err := handler(context.Background(), 1)
		require.ErrorIs(t, err, wantErr)
		assert.Contains(t, err.Error(), "backoff")
	})

	t.Run("aborts the delay on context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		handler := broadcast.WithBackoff(func(_ context.Context, _ int) error {
			cancel()
			return errors.New("fail")
		}, 3, time.Hour, time.Hour)

		err := handler(ctx, 1)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	t.Run("passes through a fast handler", func(t *testing.T) {
		t.Parallel()

		handler := broadcast.WithTimeout(func(_ context.Context, v string) error {
			return nil
		}, time.Second)

		require.NoError(t, handler(context.Background(), "fast"))
	})

	t.Run("fails when the handler exceeds the timeout", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		handler := broadcast.WithTimeout(func(_ context.Context, _ string) error {
			<-release
			return nil
		}, 20*time.Millisecond)

		err := handler(context.Background(), "slow")
		require.Error(t, err)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Contains(t, err.Error(), "handler timeout")

		close(release)
	})

	t.Run("passes through the handler error", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("inner")
		handler := broadcast.WithTimeout(func(_ context.Context, _ string) error {
			return wantErr
		}, time.Second)

		require.ErrorIs(t, handler(context.Background(), "v"), wantErr)
	})
}

func TestDecorate(t *testing.T) {
	t.Parallel()

	t.Run("applies decorators left to right, first is innermost", func(t *testing.T) {
		t.Parallel()

		var order []string
		label := func(name string) broadcast.Decorator[int] {
			return func(next broadcast.Handler[int]) broadcast.Handler[int] {
				return func(ctx context.Context, v int) error {
					order = append(order, name)
					return next(ctx, v)
				}
			}
		}

		handler := broadcast.Decorate(func(_ context.Context, _ int) error {
			order = append(order, "handler")
			return nil
		}, label("inner"), label("outer"))

		require.NoError(t, handler(context.Background(), 1))
		assert.Equal(t, []string{"outer", "inner", "handler"}, order)
	})

	t.Run("composes with retry and timeout on a bus", func(t *testing.T) {
		t.Parallel()

		bus := broadcast.New[int]()
		defer bus.Close()

		var attempts atomic.Int32
		sub := &listener{name: "a"}
		broadcast.Subscribe(bus, sub, broadcast.Decorate(
			func(_ context.Context, _ int) error {
				if attempts.Add(1) < 2 {
					return errors.New("transient")
				}
				return nil
			},
			broadcast.Retry[int](2),
			broadcast.Timeout[int](time.Second),
		))

		require.NoError(t, bus.FireAndWait(context.Background(), 1))

		assert.Equal(t, int32(2), attempts.Load())
		assert.Equal(t, int64(1), bus.Stats().EventsDelivered)
		assert.Equal(t, int64(0), bus.Stats().EventsFailed)
	})
}

package broadcast

import (
	"context"
	"log/slog"
	"time"
)

// subscription is one subscriber's registration: its weak identity, its
// handler, and the unbounded ordered queue drained by a dedicated
// goroutine. All fields except id, ref, handler, wake, ctx, and cancel are
// guarded by the owning bus's mutex.
type subscription[T any] struct {
	id      string
	ref     subscriberRef
	handler Handler[T]

	queue   []T
	pending int64
	down    bool // torn down; completion bookkeeping must be skipped

	wake chan struct{} // capacity 1; coalesced enqueue notifications

	// ctx drives the delivery goroutine's lifetime only; handlers get the
	// bus's base context.
	ctx    context.Context
	cancel context.CancelFunc
}

func newSubscription[T any](base context.Context, id string, ref subscriberRef, handler Handler[T]) *subscription[T] {
	s := &subscription[T]{
		id:      id,
		ref:     ref,
		handler: handler,
		wake:    make(chan struct{}, 1),
	}
	s.ctx, s.cancel = context.WithCancel(base)
	return s
}

// deliver drains s.queue one value at a time for the subscription's entire
// life: it suspends while the queue is empty, invokes the handler outside
// the bus lock, and decrements the pending counters once the handler has
// completed. On cancellation it finishes the value it has already begun
// handling and exits; values still sitting in the queue were dropped by
// teardown and are never delivered.
func (b *Bus[T]) deliver(s *subscription[T]) {
	defer b.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}

		for {
			b.mu.Lock()
			if s.down || len(s.queue) == 0 {
				b.mu.Unlock()
				break
			}

			value := s.queue[0]
			s.queue = s.queue[1:]
			b.mu.Unlock()

			b.invoke(s, value)

			b.mu.Lock()
			if !s.down {
				s.pending--
				b.total--
				b.notifyLocked()
			}
			b.mu.Unlock()
		}
	}
}

// invoke runs the handler for one value, recovering a panic so a faulting
// handler takes down neither the process nor its own queue. Failures are
// logged and counted; they are invisible to the firing side.
//
// The handler receives the bus's base context, not the subscription's:
// unsubscribing never signals a handler that is already executing. The
// base context is cancelled only by Close (or the caller's WithBaseContext
// parent).
func (b *Bus[T]) invoke(s *subscription[T], value T) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			b.failed.Add(1)
			b.logger.Error("handler panicked",
				slog.String("subscription_id", s.id),
				slog.Duration("duration", time.Since(start)),
				slog.Any("panic", r))
		}
	}()

	if err := s.handler(b.baseCtx, value); err != nil {
		b.failed.Add(1)
		b.logger.Error("handler failed",
			slog.String("subscription_id", s.id),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return
	}

	b.delivered.Add(1)
	b.logger.Debug("handler completed",
		slog.String("subscription_id", s.id),
		slog.Duration("duration", time.Since(start)))
}

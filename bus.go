package broadcast

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handler processes a broadcast value for one subscriber.
// The error is logged and counted by the bus but never surfaced to the
// firing side; the bus does not retry a failed handler.
type Handler[T any] func(context.Context, T) error

// Bus is an in-process broadcast bus delivering values of type T to a set
// of subscribers. Subscribers are tracked by object identity through weak
// references: the bus never keeps a subscriber alive, and entries whose
// subscriber has been garbage collected are swept away lazily on the next
// Subscribe, Fire, or FireAndWait call.
//
// Each subscriber owns an unbounded ordered queue drained by a dedicated
// goroutine, so values are delivered to a given subscriber strictly in the
// order they were fired, regardless of firing mode, while a slow handler
// never delays other subscribers or the firing side.
//
// Bus is safe for concurrent use. A handler must not call FireAndWait or
// Wait on its own bus; doing so waits on the handler's own completion and
// deadlocks.
//
// Example:
//
//	bus := broadcast.New[int](broadcast.WithLogger(logger))
//	defer bus.Close()
//
//	broadcast.Subscribe(bus, listener, func(ctx context.Context, v int) error {
//	    return listener.Handle(ctx, v)
//	})
//
//	bus.Fire(42)
//	if err := bus.Wait(ctx); err != nil {
//	    return err
//	}
type Bus[T any] struct {
	mu      sync.Mutex
	subs    map[any]*subscription[T]
	total   int64           // sum of all pending counters
	waiters []chan struct{} // closed when total drops to zero
	closed  bool

	baseCtx context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
	wg      sync.WaitGroup

	delivered atomic.Int64
	failed    atomic.Int64
}

// New creates a broadcast bus for values of type T.
//
// Example:
//
//	bus := broadcast.New[UserCreated](
//	    broadcast.WithLogger(logger),
//	)
//	defer bus.Close()
func New[T any](opts ...Option) *Bus[T] {
	cfg := config{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		baseCtx: context.Background(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bus[T]{
		subs:   make(map[any]*subscription[T]),
		logger: cfg.logger,
	}
	b.baseCtx, b.cancel = context.WithCancel(cfg.baseCtx)

	return b
}

// Subscribe registers subscriber's handler on the bus, replacing any
// previous registration for the same subscriber: the old delivery
// goroutine is cancelled and values still queued for the old handler are
// dropped, not transferred.
//
// The bus holds only a weak reference to subscriber. Once the subscriber
// is garbage collected its registration is removed by the next bus
// operation and its handler is never invoked again. A handler that
// captures the subscriber keeps it alive and defeats this cleanup.
//
// Nil subscribers and nil handlers are ignored. Subscribe is a
// package-level function because Go methods cannot introduce the
// subscriber's type parameter.
func Subscribe[S any, T any](b *Bus[T], subscriber *S, handler Handler[T]) {
	if subscriber == nil || handler == nil {
		return
	}

	ref := makeRef(subscriber)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.sweepLocked()

	if old, ok := b.subs[ref.key]; ok {
		b.teardownLocked(old)
	}

	s := newSubscription(b.baseCtx, uuid.NewString(), ref, handler)
	b.subs[ref.key] = s

	b.wg.Add(1)
	go b.deliver(s)

	b.logger.Debug("subscriber registered",
		slog.String("subscription_id", s.id),
		slog.Int("subscribers", len(b.subs)))
}

// Unsubscribe removes subscriber's registration, cancelling its delivery
// goroutine and dropping any values still queued for it. It is idempotent:
// unsubscribing a never-subscribed or already-removed subscriber is a no-op.
func Unsubscribe[S any, T any](b *Bus[T], subscriber *S) {
	if subscriber == nil {
		return
	}

	ref := makeRef(subscriber)

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subs[ref.key]
	if !ok {
		return
	}

	b.teardownLocked(s)
	delete(b.subs, ref.key)

	b.logger.Debug("subscriber removed", slog.String("subscription_id", s.id))
}

// Fire broadcasts value to every live subscriber and returns immediately,
// without waiting for any handler to run. Firing with no subscribers is a
// no-op.
func (b *Bus[T]) Fire(value T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.sweepLocked()
	b.enqueueLocked(value)
}

// FireAndWait broadcasts value like Fire, then blocks until every pending
// counter on the bus reaches zero — including values enqueued by earlier
// Fire calls that had not finished yet. By the time it returns nil, every
// subscriber that was live at call time has finished handling value.
//
// The only possible error is ctx.Err(), returned when the context is
// cancelled before the bus drains; the enqueued values remain queued and
// are still delivered.
func (b *Bus[T]) FireAndWait(ctx context.Context, value T) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return nil
	}

	b.sweepLocked()
	b.enqueueLocked(value)

	return b.waitLocked(ctx)
}

// Wait blocks until every pending counter on the bus reaches zero without
// enqueueing anything itself. It drains outstanding work after a burst of
// Fire calls. The only possible error is ctx.Err().
func (b *Bus[T]) Wait(ctx context.Context) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return nil
	}

	return b.waitLocked(ctx)
}

// Len sweeps dead entries and reports the number of live subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}

	b.sweepLocked()
	return len(b.subs)
}

// Close shuts the bus down: every subscription is torn down, queued values
// are dropped, and Close blocks until all delivery goroutines (including
// any handler already running) have finished. Blocked FireAndWait and Wait
// callers are released. Subsequent bus operations are no-ops. Close is
// idempotent.
func (b *Bus[T]) Close() {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return
	}

	b.closed = true

	for key, s := range b.subs {
		b.teardownLocked(s)
		delete(b.subs, key)
	}

	b.cancel()
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("broadcast bus closed")
}

// enqueueLocked appends value to every registered subscriber's queue and
// bumps the pending counters. Caller holds b.mu; sweepLocked has already
// removed dead entries.
func (b *Bus[T]) enqueueLocked(value T) {
	for _, s := range b.subs {
		s.queue = append(s.queue, value)
		s.pending++
		b.total++

		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// sweepLocked tears down every entry whose subscriber has been garbage
// collected. Caller holds b.mu.
func (b *Bus[T]) sweepLocked() {
	for key, s := range b.subs {
		if s.ref.alive() {
			continue
		}

		b.teardownLocked(s)
		delete(b.subs, key)

		b.logger.Debug("swept dead subscriber", slog.String("subscription_id", s.id))
	}
}

// teardownLocked cancels a subscription's delivery goroutine, drops its
// queued values, and folds its pending counter out of the bus total so
// waiters never block on a removed subscriber. Caller holds b.mu and owns
// removal from b.subs.
func (b *Bus[T]) teardownLocked(s *subscription[T]) {
	s.down = true
	s.cancel()
	s.queue = nil

	if s.pending > 0 {
		b.total -= s.pending
		s.pending = 0
	}

	b.notifyLocked()
}

// notifyLocked releases all waiters once the bus total hits zero. Caller
// holds b.mu.
func (b *Bus[T]) notifyLocked() {
	if b.total != 0 || len(b.waiters) == 0 {
		return
	}

	for _, done := range b.waiters {
		close(done)
	}
	b.waiters = nil
}

// waitLocked blocks the caller until the bus total reaches zero or ctx is
// cancelled. Called with b.mu held; releases it before returning. Each
// wake-up re-checks the total under the lock, so a Fire that lands between
// the notification and the re-check simply puts the caller back to sleep.
func (b *Bus[T]) waitLocked(ctx context.Context) error {
	for b.total > 0 {
		done := make(chan struct{})
		b.waiters = append(b.waiters, done)
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}

		b.mu.Lock()
	}

	b.mu.Unlock()
	return nil
}

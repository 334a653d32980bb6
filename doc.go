// Package broadcast provides a type-safe, in-process broadcast bus (observer
// pattern) that lets many independent components react to values produced by
// a single source, without the source owning its listeners and without
// listeners needing to remember to detach.
//
// # Core Components
//
// Bus[T] is the broadcast engine. Subscribers register a Handler for values
// of type T; firing a value enqueues it for every live subscriber. Each
// subscriber owns an unbounded ordered delivery queue drained by a dedicated
// goroutine, so a slow handler never delays other subscribers or the firing
// side.
//
// Signal is the zero-payload form of Bus for pure notifications.
//
// Handler decorators (WithRetry, WithBackoff, WithTimeout, Decorate) add
// cross-cutting behavior to a handler before it is subscribed; the bus
// itself never retries or times out a handler.
//
// # Subscriber Identity and Weak References
//
// A subscriber is any pointer. The bus tracks it through a weak reference,
// so subscribing does not keep the subscriber alive. Once a subscriber is
// garbage collected, its registration is swept away lazily by the next
// Subscribe, Fire, or FireAndWait call and its handler is never invoked
// again — explicit Unsubscribe is optional. Note that a handler closure
// capturing the subscriber keeps it alive and defeats this cleanup; handlers
// that need the subscriber should be unsubscribed explicitly.
//
// Re-subscribing the same subscriber silently replaces the previous
// registration: the old delivery goroutine is cancelled and its undelivered
// queued values are dropped.
//
// # Firing Modes and Ordering
//
// Fire broadcasts without blocking: it returns as soon as the value is
// enqueued. FireAndWait broadcasts and then blocks until every pending value
// on the bus, including values from earlier Fire calls, has finished
// processing. Wait blocks the same way without enqueueing anything.
//
// Both modes append to the same per-subscriber queue, so a sequence of mixed
// Fire/FireAndWait calls is delivered to each subscriber in exactly the
// order the calls were issued. No ordering holds between different
// subscribers' handlers.
//
// # Basic Usage
//
//	import (
//		"context"
//		"log/slog"
//		"os"
//
//		"github.com/dmitrymomot/broadcast"
//	)
//
//	type auditLog struct{ name string }
//
//	func main() {
//		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//
//		bus := broadcast.New[string](broadcast.WithLogger(logger))
//		defer bus.Close()
//
//		audit := &auditLog{name: "audit"}
//		broadcast.Subscribe(bus, audit, func(ctx context.Context, msg string) error {
//			logger.InfoContext(ctx, "observed",
//				slog.String("log", audit.name), slog.String("msg", msg))
//			return nil
//		})
//
//		bus.Fire("user.created")
//		bus.Fire("user.deleted")
//
//		if err := bus.Wait(context.Background()); err != nil {
//			logger.Error("drain interrupted", slog.String("error", err.Error()))
//		}
//	}
//
// # Failure Semantics
//
// A handler error (or panic) is logged, counted in Stats, and otherwise
// invisible to the firing side; the bus does not retry, and delivery to that
// subscriber continues with the next value. A handler that never returns
// permanently stalls its own queue and blocks FireAndWait/Wait callers;
// bound waits with the context those calls take.
//
// A handler must not call FireAndWait or Wait on its own bus: it would be
// waiting on its own completion.
//
// # Lifecycle
//
// Close tears down all subscriptions, waits for in-flight handlers, and
// releases blocked waiters. After Close every operation is a no-op. A
// subscriber destroyed concurrently with a fire may or may not receive that
// particular value, depending on whether the sweep observed its death first;
// delivery is at-most-once per fired value per subscriber.
package broadcast

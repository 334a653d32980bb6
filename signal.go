package broadcast

import "context"

// Signal is the zero-payload form of Bus: subscribers are notified that
// something happened, with no value attached. It carries the same
// identity, ordering, and completion guarantees as Bus[T].
//
// Example:
//
//	shutdown := broadcast.NewSignal()
//	defer shutdown.Close()
//
//	broadcast.Notify(shutdown, worker, func(ctx context.Context) error {
//	    return worker.Drain(ctx)
//	})
//
//	shutdown.FireAndWait(ctx)
type Signal struct {
	bus *Bus[struct{}]
}

// NewSignal creates a zero-payload broadcast signal.
func NewSignal(opts ...Option) *Signal {
	return &Signal{bus: New[struct{}](opts...)}
}

// Notify registers subscriber's parameterless handler on the signal,
// with Subscribe's replacement and weak-reference semantics.
func Notify[S any](sig *Signal, subscriber *S, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	Subscribe(sig.bus, subscriber, func(ctx context.Context, _ struct{}) error {
		return fn(ctx)
	})
}

// StopNotify removes subscriber's registration. Idempotent.
func StopNotify[S any](sig *Signal, subscriber *S) {
	Unsubscribe(sig.bus, subscriber)
}

// Fire notifies every live subscriber without waiting for handlers.
func (s *Signal) Fire() {
	s.bus.Fire(struct{}{})
}

// FireAndWait notifies every live subscriber and blocks until all pending
// notifications, including earlier ones, have been handled.
func (s *Signal) FireAndWait(ctx context.Context) error {
	return s.bus.FireAndWait(ctx, struct{}{})
}

// Wait blocks until all pending notifications have been handled.
func (s *Signal) Wait(ctx context.Context) error {
	return s.bus.Wait(ctx)
}

// Len sweeps dead entries and reports the number of live subscribers.
func (s *Signal) Len() int {
	return s.bus.Len()
}

// Stats returns a snapshot of the underlying bus counters.
func (s *Signal) Stats() Stats {
	return s.bus.Stats()
}

// Close shuts the signal down. Idempotent.
func (s *Signal) Close() {
	s.bus.Close()
}

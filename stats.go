package broadcast

// Stats provides observability counters for monitoring and debugging.
type Stats struct {
	Subscribers     int   // registered subscriptions, including not-yet-swept dead ones
	PendingEvents   int64 // enqueued values not yet finished processing, across all subscribers
	EventsDelivered int64 // handler invocations that completed without error
	EventsFailed    int64 // handler invocations that returned an error or panicked
}

// Stats returns a snapshot of the bus counters. It does not sweep, so
// Subscribers may include entries whose subscriber is already dead.
func (b *Bus[T]) Stats() Stats {
	b.mu.Lock()
	subscribers := len(b.subs)
	pending := b.total
	b.mu.Unlock()

	return Stats{
		Subscribers:     subscribers,
		PendingEvents:   pending,
		EventsDelivered: b.delivered.Load(),
		EventsFailed:    b.failed.Load(),
	}
}

// Package bus implements the cross-store sync bus: a single typed
// publish/subscribe channel that lets independent state holders announce
// mutations without depending on each other.
//
// Publishing never blocks on listeners. Events are queued and delivered in
// FIFO order by one dispatcher goroutine (Run). A listener that returns an
// error or panics is logged and skipped; the remaining listeners still
// receive the event.
//
// There is no replay. A listener only sees events published after it
// subscribed.
//
// Usage:
//
//	b := bus.New()
//	go b.Run(ctx)
//
//	unsub := b.Subscribe(bus.TopicStatsChanged, bus.Handle(func(ctx context.Context, p bus.StatsChanged) error {
//	    return stats.Invalidate(p.BookID)
//	}))
//	defer unsub()
//
//	b.Publish(bus.TopicStatsChanged, bus.StatsChanged{BookID: 1, Delta: 250})
//	b.Flush(ctx)
package bus

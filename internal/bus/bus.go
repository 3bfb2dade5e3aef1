package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/inkwell/internal/clock"
)

// ErrClosed is returned by Flush once the bus has stopped.
var ErrClosed = errors.New("bus closed")

// Event is one published message.
type Event struct {
	ID      string
	Topic   Topic
	At      time.Time
	Payload any
}

// Handler receives events. A returned error is logged and does not affect
// other listeners.
type Handler func(ctx context.Context, ev Event) error

// Handle adapts a typed payload handler. Events whose payload is not a P
// are logged and dropped.
func Handle[P any](fn func(ctx context.Context, p P) error) Handler {
	return func(ctx context.Context, ev Event) error {
		p, ok := ev.Payload.(P)
		if !ok {
			return fmt.Errorf("topic %s: unexpected payload %T", ev.Topic, ev.Payload)
		}
		return fn(ctx, p)
	}
}

type subscriber struct {
	id    uint64
	topic Topic // "" for SubscribeAll
	since uint64
	h     Handler
}

// Bus is the cross-store publish/subscribe channel.
//
// Thread-safety model:
//   - Publish, Subscribe, Flush: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Bus struct {
	outbox *outbox
	ids   IDGenerator
	clock clock.Clock

	mu     sync.Mutex
	seq    uint64 // last published sequence
	nextID uint64
	subs   []*subscriber

	stopOnce sync.Once
	stopped  chan struct{}
}

// Option configures a Bus.
type Option func(*Bus)

// WithIDGenerator sets the generator for event ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(b *Bus) {
		b.ids = g
	}
}

// WithClock sets the clock used to stamp events.
func WithClock(c clock.Clock) Option {
	return func(b *Bus) {
		b.clock = c
	}
}

// New creates a bus. Nothing is delivered until Run is started.
func New(opts ...Option) *Bus {
	b := &Bus{
		outbox:  newOutbox(),
		ids:     UUIDv7Generator{},
		clock:   clock.System{},
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for one topic and returns a func that removes it.
// h only receives events published after this call.
func (b *Bus) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	return b.add(topic, h)
}

// SubscribeAll registers h for every topic.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.add("", h)
}

func (b *Bus) add(topic Topic, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscriber{id: b.nextID, topic: topic, since: b.seq, h: h}
	b.subs = append(b.subs, sub)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish queues an event and returns immediately. Returns false if the
// bus has stopped.
func (b *Bus) Publish(topic Topic, payload any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	ev := Event{
		ID:      b.ids.Generate(),
		Topic:   topic,
		At:      b.clock.Now(),
		Payload: payload,
	}
	if !b.outbox.post(ev, b.seq) {
		slog.Debug("bus closed, event dropped", "topic", topic)
		return false
	}
	return true
}

// Flush blocks until every event published before the call has been
// delivered, the context is done, or the bus stops. Listeners must not call
// Flush: it would wait on the goroutine running them.
func (b *Bus) Flush(ctx context.Context) error {
	done, ok := b.outbox.marker()
	if !ok {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-b.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of published, undelivered events.
func (b *Bus) Pending() int {
	return b.outbox.size()
}

// Run delivers queued events until ctx is cancelled or Stop is called.
// Events queued before Stop are still delivered.
func (b *Bus) Run(ctx context.Context) error {
	slog.Debug("bus dispatcher starting")

	for {
		if ev, seq, ok := b.outbox.next(); ok {
			b.dispatch(ctx, ev, seq)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("bus dispatcher stopping: context cancelled")
			b.Stop()
			return ctx.Err()

		case <-b.outbox.wakeup():
			// The wakeup channel is closed by Stop, so an empty outbox here
			// means there is nothing left to drain.
			if b.outbox.size() == 0 && b.isStopped() {
				slog.Debug("bus dispatcher stopping: closed")
				return nil
			}
		}
	}
}

// Stop closes the bus. Later publishes are dropped and pending Flush calls
// return ErrClosed.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		b.outbox.close()
		close(b.stopped)
	})
}

func (b *Bus) isStopped() bool {
	select {
	case <-b.stopped:
		return true
	default:
		return false
	}
}

func (b *Bus) dispatch(ctx context.Context, ev Event, seq uint64) {
	for _, sub := range b.listeners(ev.Topic, seq) {
		deliver(ctx, sub, ev)
	}
}

// listeners snapshots the subscribers that should see an event with seq.
func (b *Bus) listeners(topic Topic, seq uint64) []*subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.since >= seq {
			continue
		}
		if s.topic == "" || s.topic == topic {
			out = append(out, s)
		}
	}
	return out
}

func deliver(ctx context.Context, sub *subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bus listener panicked",
				"topic", ev.Topic,
				"event_id", ev.ID,
				"subscriber", sub.id,
				"panic", r,
			)
		}
	}()

	if err := sub.h(ctx, ev); err != nil {
		slog.Error("bus listener failed",
			"topic", ev.Topic,
			"event_id", ev.ID,
			"subscriber", sub.id,
			"error", err,
		)
	}
}

package bus

import "sync"

// pending is one published event awaiting delivery, or a flush marker that
// is released once every event ahead of it has been delivered.
type pending struct {
	event Event
	seq   uint64
	done  chan struct{} // flush markers only
}

// outbox holds published events in publish order until Run delivers them.
// Publish and Flush add to it from any goroutine; only Run takes from it.
type outbox struct {
	mu     sync.Mutex
	items  []pending
	events int // queued events, markers excluded
	closed bool
	wake   chan struct{} // buffered, size 1; closed by close
}

func newOutbox() *outbox {
	return &outbox{
		items: make([]pending, 0, 64),
		wake:  make(chan struct{}, 1),
	}
}

// post appends ev. Returns false once the outbox is closed.
func (o *outbox) post(ev Event, seq uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.push(pending{event: ev, seq: seq}) {
		return false
	}
	o.events++
	return true
}

// marker appends a flush marker. The returned channel is closed when Run
// reaches it.
func (o *outbox) marker() (<-chan struct{}, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	done := make(chan struct{})
	if !o.push(pending{done: done}) {
		return nil, false
	}
	return done, true
}

// push must be called with mu held.
func (o *outbox) push(p pending) bool {
	if o.closed {
		return false
	}
	o.items = append(o.items, p)
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return true
}

// next removes the oldest event. Flush markers in front of it are
// released on the way: Run only calls next after delivering the previous
// event, so everything a marker waits for has been handled.
func (o *outbox) next() (Event, uint64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for len(o.items) > 0 {
		p := o.items[0]
		o.items[0] = pending{}
		if len(o.items) == 1 {
			o.items = o.items[:0]
		} else {
			o.items = o.items[1:]
		}

		if p.done != nil {
			close(p.done)
			continue
		}
		o.events--
		return p.event, p.seq, true
	}
	return Event{}, 0, false
}

// size returns the number of undelivered events.
func (o *outbox) size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events
}

// wakeup fires when something may have been added. It is closed by close.
func (o *outbox) wakeup() <-chan struct{} {
	return o.wake
}

// close rejects further posts and markers and wakes Run.
func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	close(o.wake)
}

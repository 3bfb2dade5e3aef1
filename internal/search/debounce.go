package search

import (
	"context"
	"sync"
	"time"
)

// DefaultDelay is the quiet period before a query is dispatched.
const DefaultDelay = 300 * time.Millisecond

// Querier runs one dispatched query. *Searcher implements it.
type Querier interface {
	Search(ctx context.Context, q string) []Result
}

// Debouncer turns a stream of keystrokes into dispatched searches.
//
//   - An empty query clears the results immediately.
//   - Other queries are dispatched after a quiet period.
//   - A query equal to the last dispatched one is not dispatched again.
//   - A newer query cancels any pending or in-flight dispatch; only the
//     latest query's results are kept.
//
// Thread-safety: all methods are safe for concurrent use.
type Debouncer struct {
	querier  Querier
	delay    time.Duration
	onResult func(query string, results []Result)

	mu      sync.Mutex
	seq     uint64 // bumped by every Input
	timer   *time.Timer
	cancel  context.CancelFunc
	last    string // last dispatched query
	query   string // query the current results belong to
	results []Result
	closed  bool
}

// DebounceOption configures a Debouncer.
type DebounceOption func(*Debouncer)

// WithDelay sets the quiet period.
func WithDelay(d time.Duration) DebounceOption {
	return func(db *Debouncer) {
		db.delay = d
	}
}

// OnResult registers a callback for every delivered result set, including
// the immediate clear of an empty query. It runs on the dispatching
// goroutine.
func OnResult(fn func(query string, results []Result)) DebounceOption {
	return func(db *Debouncer) {
		db.onResult = fn
	}
}

// NewDebouncer creates a debouncer in front of q.
func NewDebouncer(q Querier, opts ...DebounceOption) *Debouncer {
	db := &Debouncer{querier: q, delay: DefaultDelay, results: []Result{}}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Input records the caller's current query text.
func (db *Debouncer) Input(q string) {
	q = Normalize(q)

	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return
	}
	db.seq++
	seq := db.seq
	db.stopLocked()

	if q == "" {
		db.last = ""
		db.query = ""
		db.results = []Result{}
		cb := db.onResult
		db.mu.Unlock()
		if cb != nil {
			cb("", []Result{})
		}
		return
	}

	if q == db.last {
		db.mu.Unlock()
		return
	}

	db.timer = time.AfterFunc(db.delay, func() { db.dispatch(seq, q) })
	db.mu.Unlock()
}

// stopLocked stops the pending timer and cancels an in-flight dispatch.
// A cancelled dispatch never delivered, so its query may be sent again.
func (db *Debouncer) stopLocked() {
	if db.timer != nil {
		db.timer.Stop()
		db.timer = nil
	}
	if db.cancel != nil {
		db.cancel()
		db.cancel = nil
		db.last = db.query
	}
}

func (db *Debouncer) dispatch(seq uint64, q string) {
	db.mu.Lock()
	if seq != db.seq || db.closed {
		db.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	db.cancel = cancel
	db.timer = nil
	db.last = q
	db.mu.Unlock()

	results := db.querier.Search(ctx, q)

	db.mu.Lock()
	if seq != db.seq || ctx.Err() != nil {
		db.mu.Unlock()
		cancel()
		return
	}
	db.cancel = nil
	db.query = q
	db.results = results
	cb := db.onResult
	db.mu.Unlock()
	cancel()

	if cb != nil {
		cb(q, results)
	}
}

// Results returns the latest delivered query and its results.
func (db *Debouncer) Results() (string, []Result) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]Result, len(db.results))
	copy(out, db.results)
	return db.query, out
}

// Close stops pending and in-flight work. Later input is ignored.
func (db *Debouncer) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	db.seq++
	db.stopLocked()
}

package stats

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/inkwell/internal/bus"
	"github.com/roach88/inkwell/internal/clock"
	"github.com/roach88/inkwell/internal/model"
)

// Store is the persistence surface the engine needs.
type Store interface {
	WritingLogs(ctx context.Context) ([]model.WritingLog, error)
	Books(ctx context.Context) ([]model.Book, error)
}

// session is the input cache shared by every calculation until Clear.
type session struct {
	logs  []model.WritingLog
	books []model.Book
}

// Engine computes reports over a cached session of logs and books.
//
// Thread-safety: all methods are safe for concurrent use.
type Engine struct {
	store  Store
	clock  clock.Clock
	unsubs []func()

	mu      sync.Mutex
	session *session
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock that decides "today".
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an engine. It drops its cache whenever the bus reports a
// stats change or a book being added or deleted.
func New(s Store, b *bus.Bus, opts ...Option) *Engine {
	e := &Engine{store: s, clock: clock.System{}}
	for _, opt := range opts {
		opt(e)
	}

	invalidate := func(context.Context, bus.Event) error {
		e.Clear()
		return nil
	}
	e.unsubs = []func(){
		b.Subscribe(bus.TopicStatsChanged, invalidate),
		b.Subscribe(bus.TopicFor(model.KindBook, bus.OpAdded), invalidate),
		b.Subscribe(bus.TopicFor(model.KindBook, bus.OpUpdated), invalidate),
		b.Subscribe(bus.TopicFor(model.KindBook, bus.OpDeleted), invalidate),
	}
	return e
}

// Detach stops listening on the bus.
func (e *Engine) Detach() {
	for _, u := range e.unsubs {
		u()
	}
}

// Calculate returns the report for one book, or all books when bookID is
// nil. The first call of a session loads the log and book list; later calls
// reuse them.
func (e *Engine) Calculate(ctx context.Context, bookID *int64) (Report, error) {
	s, err := e.load(ctx)
	if err != nil {
		return Report{}, err
	}
	return Compute(s.logs, s.books, bookID, clock.Today(e.clock)), nil
}

// Clear ends the session. The next Calculate reloads from the store.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = nil
}

func (e *Engine) load(ctx context.Context) (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return e.session, nil
	}

	logs, err := e.store.WritingLogs(ctx)
	if err != nil {
		slog.Error("failed to load writing logs", "error", err)
		return nil, err
	}
	books, err := e.store.Books(ctx)
	if err != nil {
		slog.Error("failed to load books", "error", err)
		return nil, err
	}

	e.session = &session{logs: logs, books: books}
	slog.Debug("statistics session loaded", "logs", len(logs), "books", len(books))
	return e.session, nil
}

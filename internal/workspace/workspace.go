package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/inkwell/internal/bus"
	"github.com/roach88/inkwell/internal/clock"
	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/ordering"
	"github.com/roach88/inkwell/internal/store"
)

var (
	// ErrNoBookOpen is returned by mutations when no book is open.
	ErrNoBookOpen = errors.New("no book open")

	// ErrLoading is returned by mutations while the open book is loading.
	ErrLoading = errors.New("book is still loading")

	// ErrReorderInProgress is returned when a reorder of the same book is
	// already persisting.
	ErrReorderInProgress = errors.New("reordering in progress")
)

// Fields is a partial update keyed by column name.
type Fields = store.Fields

// Store is the persistence surface the workspace needs. *store.Store
// implements it.
type Store interface {
	GetBook(ctx context.Context, id int64) (model.Book, error)

	Characters(ctx context.Context, bookID int64) ([]model.Character, error)
	Locations(ctx context.Context, bookID int64) ([]model.Location, error)
	PlotEvents(ctx context.Context, bookID int64) ([]model.PlotEvent, error)
	Chapters(ctx context.Context, bookID int64) ([]model.Chapter, error)
	Themes(ctx context.Context, bookID int64) ([]model.Theme, error)
	Props(ctx context.Context, bookID int64) ([]model.Prop, error)

	AddCharacter(ctx context.Context, c model.Character) (int64, error)
	AddLocation(ctx context.Context, l model.Location) (int64, error)
	AddPlotEvent(ctx context.Context, p model.PlotEvent) (int64, error)
	AddTheme(ctx context.Context, t model.Theme) (int64, error)
	AddProp(ctx context.Context, p model.Prop) (int64, error)

	Update(ctx context.Context, kind model.Kind, id int64, fields store.Fields) (int64, error)
	Delete(ctx context.Context, kind model.Kind, id int64) (int64, error)

	ReplaceChapters(ctx context.Context, chapters []model.Chapter) error
	ReplacePlotEvents(ctx context.Context, events []model.PlotEvent) error

	AddChapterWords(ctx context.Context, c model.Chapter, date string) (int64, error)
	UpdateChapterWords(ctx context.Context, id int64, fields store.Fields, date string) (int64, int, error)
	DeleteChapterWords(ctx context.Context, id int64, date string) (int64, int, error)
}

// State is the lifecycle state of the workspace.
type State int

const (
	StateClosed State = iota
	StateLoading
	StateReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// collections is the cached working set of one book.
type collections struct {
	characters []model.Character
	locations  []model.Location
	plotEvents []model.PlotEvent
	chapters   []model.Chapter
	themes     []model.Theme
	props      []model.Prop
}

// Workspace is the current-book context.
//
// Thread-safety: all methods are safe for concurrent use. Writes within one
// book are expected to be issued one at a time by the caller.
type Workspace struct {
	store Store
	bus   *bus.Bus
	clock clock.Clock
	guard *ordering.Guard
	unsub func()

	mu         sync.RWMutex
	state      State
	gen        uint64 // bumped on every Open and Close
	bookID     int64
	book       model.Book
	data       collections
	err        error
	ready      chan struct{} // closed when the load for gen finishes
	searchTerm string
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithClock sets the clock that dates writing-log entries.
func WithClock(c clock.Clock) Option {
	return func(w *Workspace) {
		w.clock = c
	}
}

// New creates a closed workspace. It listens on b for deletion of the open
// book and closes itself when that happens.
func New(s Store, b *bus.Bus, opts ...Option) *Workspace {
	w := &Workspace{
		store: s,
		bus:   b,
		clock: clock.System{},
		guard: ordering.NewGuard(),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.unsub = b.Subscribe(bus.TopicFor(model.KindBook, bus.OpDeleted), bus.Handle(w.onBookDeleted))
	return w
}

// Detach stops listening on the bus.
func (w *Workspace) Detach() {
	w.unsub()
}

func (w *Workspace) onBookDeleted(_ context.Context, p bus.EntityChanged) error {
	if w.BookID() == p.BookID {
		slog.Info("open book deleted, closing workspace", "book", p.BookID)
		w.Close()
	}
	return nil
}

// Open makes bookID the current book and loads its children. Any other open
// book is discarded first. Opening the book that is already open or loading
// waits for that load instead of fetching again; a Ready workspace whose load
// failed is fetched again.
//
// A fetch failure leaves the workspace Ready with empty collections and
// returns the error, which Err also reports.
func (w *Workspace) Open(ctx context.Context, bookID int64) error {
	w.mu.Lock()
	if w.state != StateClosed && w.bookID == bookID && !(w.state == StateReady && w.err != nil) {
		ready, gen := w.ready, w.gen
		w.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}

		w.mu.RLock()
		defer w.mu.RUnlock()
		if w.gen == gen {
			return w.err
		}
		return nil
	}

	w.gen++
	gen := w.gen
	ready := make(chan struct{})
	w.state = StateLoading
	w.bookID = bookID
	w.book = model.Book{}
	w.data = collections{}
	w.err = nil
	w.ready = ready
	w.searchTerm = ""
	w.mu.Unlock()

	defer close(ready)

	slog.Debug("loading book", "book", bookID)
	book, data, err := w.fetch(ctx, bookID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.gen != gen {
		// Superseded by a later Open or Close.
		return nil
	}
	w.state = StateReady
	if err != nil {
		slog.Error("failed to load book", "book", bookID, "error", err)
		w.err = err
		return err
	}
	w.book = book
	w.data = data
	return nil
}

// fetch reads the book, then its child collections concurrently. Any
// failure fails the whole fetch.
func (w *Workspace) fetch(ctx context.Context, bookID int64) (model.Book, collections, error) {
	book, err := w.store.GetBook(ctx, bookID)
	if err != nil {
		return model.Book{}, collections{}, err
	}

	applies := make([]func(*collections), len(model.ChildKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range model.ChildKinds {
		i, kind := i, kind
		g.Go(func() error {
			apply, _, err := w.load(gctx, kind, bookID)
			if err != nil {
				return err
			}
			applies[i] = apply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Book{}, collections{}, err
	}

	var data collections
	for _, apply := range applies {
		apply(&data)
	}
	return book, data, nil
}

// load fetches one child collection and returns a func that installs it.
func (w *Workspace) load(ctx context.Context, kind model.Kind, bookID int64) (func(*collections), int, error) {
	switch kind {
	case model.KindCharacter:
		v, err := w.store.Characters(ctx, bookID)
		return func(c *collections) { c.characters = v }, len(v), err
	case model.KindLocation:
		v, err := w.store.Locations(ctx, bookID)
		return func(c *collections) { c.locations = v }, len(v), err
	case model.KindPlotEvent:
		v, err := w.store.PlotEvents(ctx, bookID)
		return func(c *collections) { c.plotEvents = v }, len(v), err
	case model.KindChapter:
		v, err := w.store.Chapters(ctx, bookID)
		return func(c *collections) { c.chapters = v }, len(v), err
	case model.KindTheme:
		v, err := w.store.Themes(ctx, bookID)
		return func(c *collections) { c.themes = v }, len(v), err
	case model.KindProp:
		v, err := w.store.Props(ctx, bookID)
		return func(c *collections) { c.props = v }, len(v), err
	default:
		return nil, 0, fmt.Errorf("kind %q is not a child collection", kind)
	}
}

// Close discards the current book and its cached children. Safe to call
// when nothing is open.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.gen++
	w.state = StateClosed
	w.bookID = 0
	w.book = model.Book{}
	w.data = collections{}
	w.err = nil
	w.searchTerm = ""
}

// State returns the lifecycle state.
func (w *Workspace) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Loading reports whether a fetch is in flight.
func (w *Workspace) Loading() bool {
	return w.State() == StateLoading
}

// Err returns the error of the last load, if it failed.
func (w *Workspace) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}

// BookID returns the id of the open (or loading) book, or 0.
func (w *Workspace) BookID() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.bookID
}

// Book returns the open book. ok is false unless the workspace is Ready
// with a loaded book.
func (w *Workspace) Book() (model.Book, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.book, w.state == StateReady && w.book.ID != 0
}

// Characters returns a copy of the cached characters.
func (w *Workspace) Characters() []model.Character {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.data.characters)
}

// Locations returns a copy of the cached locations.
func (w *Workspace) Locations() []model.Location {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.data.locations)
}

// PlotEvents returns a copy of the cached plot events in order.
func (w *Workspace) PlotEvents() []model.PlotEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.data.plotEvents)
}

// Chapters returns a copy of the cached chapters in order.
func (w *Workspace) Chapters() []model.Chapter {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.data.chapters)
}

// Themes returns a copy of the cached themes.
func (w *Workspace) Themes() []model.Theme {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.data.themes)
}

// Props returns a copy of the cached props.
func (w *Workspace) Props() []model.Prop {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.data.props)
}

// current returns the open book and its generation, or an error if no book
// is ready for writes.
func (w *Workspace) current() (int64, uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	switch w.state {
	case StateClosed:
		return 0, 0, ErrNoBookOpen
	case StateLoading:
		return 0, 0, ErrLoading
	}
	if w.book.ID == 0 {
		return 0, 0, fmt.Errorf("%w: load failed: %v", ErrNoBookOpen, w.err)
	}
	return w.bookID, w.gen, nil
}

// refresh refetches one collection and installs it if the workspace still
// holds the same book. Returns the new collection size.
func (w *Workspace) refresh(ctx context.Context, kind model.Kind, bookID int64, gen uint64) (int, error) {
	apply, n, err := w.load(ctx, kind, bookID)
	if err != nil {
		slog.Error("failed to refresh collection", "kind", kind, "book", bookID, "error", err)
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen == gen {
		apply(&w.data)
	}
	return n, nil
}

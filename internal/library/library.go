// Package library holds the full book list with its sort, view and filter
// preferences, the bulk selection, and per-book child counts.
//
// The library keeps itself current by listening on the bus. It is never
// called by the workspace directly.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/roach88/inkwell/internal/bus"
	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/store"
)

// Store is the persistence surface the library needs. *store.Store
// implements it.
type Store interface {
	Books(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id int64) (model.Book, error)
	AddBook(ctx context.Context, b model.Book) (int64, error)
	Update(ctx context.Context, kind model.Kind, id int64, fields store.Fields) (int64, error)
	DeleteBookCascade(ctx context.Context, bookID int64) (bool, error)
	ChildCounts(ctx context.Context) (map[int64]map[model.Kind]int, error)
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// SortKey orders the book list. Pinned books always come first.
type SortKey string

const (
	SortUpdated SortKey = "updated" // most recently modified first
	SortCreated SortKey = "created" // newest first
	SortTitle   SortKey = "title"   // A to Z
	SortWords   SortKey = "words"   // longest first
)

// View is how a collaborator lays the library out.
type View string

const (
	ViewGrid View = "grid"
	ViewList View = "list"
)

// Filter selects which books Books returns.
type Filter string

const (
	FilterActive   Filter = "active"
	FilterArchived Filter = "archived"
	FilterAll      Filter = "all"
)

const (
	keySort   = "library.sort"
	keyView   = "library.view"
	keyFilter = "library.filter"
)

// Counts is the number of children of each kind a book owns.
type Counts map[model.Kind]int

// Library is the book-list state.
//
// Thread-safety: all methods are safe for concurrent use.
type Library struct {
	store  Store
	bus    *bus.Bus
	tag    language.Tag
	unsubs []func()

	mu       sync.RWMutex
	books    []model.Book
	counts   map[int64]Counts
	selected map[int64]bool
	sort     SortKey
	view     View
	filter   Filter
}

// Option configures a Library.
type Option func(*Library)

// WithLocale sets the language used to collate titles.
func WithLocale(tag language.Tag) Option {
	return func(l *Library) {
		l.tag = tag
	}
}

// New creates an empty library and subscribes it to the bus. Call Load to
// populate it.
func New(s Store, b *bus.Bus, opts ...Option) *Library {
	l := &Library{
		store:    s,
		bus:      b,
		tag:      language.English,
		counts:   make(map[int64]Counts),
		selected: make(map[int64]bool),
		sort:     SortUpdated,
		view:     ViewGrid,
		filter:   FilterActive,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.unsubs = []func(){
		b.Subscribe(bus.TopicStatsChanged, bus.Handle(l.onStatsChanged)),
		b.Subscribe(bus.TopicChildCountChanged, bus.Handle(l.onChildCountChanged)),
		b.Subscribe(bus.TopicFor(model.KindBook, bus.OpUpdated), bus.Handle(l.onBookChanged)),
	}
	return l
}

// Detach stops listening on the bus.
func (l *Library) Detach() {
	for _, u := range l.unsubs {
		u()
	}
}

// Load reads books, child counts and preferences from the store.
func (l *Library) Load(ctx context.Context) error {
	books, err := l.store.Books(ctx)
	if err != nil {
		slog.Error("failed to load books", "error", err)
		return err
	}
	raw, err := l.store.ChildCounts(ctx)
	if err != nil {
		slog.Error("failed to load child counts", "error", err)
		return err
	}

	sortKey, view, filter := l.Sort(), l.View(), l.Filter()
	if v, ok, err := l.store.Setting(ctx, keySort); err != nil {
		return err
	} else if ok {
		if k, perr := ParseSortKey(v); perr == nil {
			sortKey = k
		}
	}
	if v, ok, err := l.store.Setting(ctx, keyView); err != nil {
		return err
	} else if ok {
		if vv, perr := ParseView(v); perr == nil {
			view = vv
		}
	}
	if v, ok, err := l.store.Setting(ctx, keyFilter); err != nil {
		return err
	} else if ok {
		if f, perr := ParseFilter(v); perr == nil {
			filter = f
		}
	}

	counts := make(map[int64]Counts, len(raw))
	for id, c := range raw {
		counts[id] = Counts(c)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.books = books
	l.counts = counts
	l.sort, l.view, l.filter = sortKey, view, filter
	for id := range l.selected {
		if indexOf(l.books, id) < 0 {
			delete(l.selected, id)
		}
	}
	return nil
}

// Books returns the books matching the filter, pinned first, then in sort
// order.
func (l *Library) Books() []model.Book {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.Book, 0, len(l.books))
	for _, b := range l.books {
		if l.visible(b) {
			out = append(out, b)
		}
	}
	l.sortBooks(out)
	return out
}

// AllBooks returns every book regardless of the filter, ordered by id.
func (l *Library) AllBooks() []model.Book {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.books)
}

// Book returns one cached book.
func (l *Library) Book(id int64) (model.Book, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := indexOf(l.books, id); i >= 0 {
		return l.books[i], true
	}
	return model.Book{}, false
}

// Counts returns a copy of a book's child counts.
func (l *Library) Counts(id int64) Counts {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(Counts, len(l.counts[id]))
	for k, n := range l.counts[id] {
		out[k] = n
	}
	return out
}

func (l *Library) visible(b model.Book) bool {
	switch l.filter {
	case FilterArchived:
		return b.Archived
	case FilterAll:
		return true
	default:
		return !b.Archived
	}
}

// sortBooks orders books in place. Caller holds l.mu.
func (l *Library) sortBooks(books []model.Book) {
	col := collate.New(l.tag, collate.IgnoreCase)
	sort.SliceStable(books, func(i, j int) bool {
		a, b := books[i], books[j]
		if a.Pinned() != b.Pinned() {
			return a.Pinned()
		}
		if a.Pinned() && a.PinOrder != b.PinOrder {
			return a.PinOrder < b.PinOrder
		}

		switch l.sort {
		case SortCreated:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		case SortTitle:
			if c := col.CompareString(a.Title, b.Title); c != 0 {
				return c < 0
			}
		case SortWords:
			if a.WordCount != b.WordCount {
				return a.WordCount > b.WordCount
			}
		default:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		}
		return a.ID < b.ID
	})
}

// Sort returns the sort key.
func (l *Library) Sort() SortKey {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sort
}

// View returns the layout preference.
func (l *Library) View() View {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.view
}

// Filter returns the archive filter.
func (l *Library) Filter() Filter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filter
}

// SetSort changes and persists the sort key.
func (l *Library) SetSort(ctx context.Context, k SortKey) error {
	if _, err := ParseSortKey(string(k)); err != nil {
		return err
	}
	if err := l.store.SetSetting(ctx, keySort, string(k)); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sort = k
	return nil
}

// SetView changes and persists the layout preference.
func (l *Library) SetView(ctx context.Context, v View) error {
	if _, err := ParseView(string(v)); err != nil {
		return err
	}
	if err := l.store.SetSetting(ctx, keyView, string(v)); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.view = v
	return nil
}

// SetFilter changes and persists the archive filter. Selected books that
// are no longer visible are deselected.
func (l *Library) SetFilter(ctx context.Context, f Filter) error {
	if _, err := ParseFilter(string(f)); err != nil {
		return err
	}
	if err := l.store.SetSetting(ctx, keyFilter, string(f)); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filter = f
	for id := range l.selected {
		if i := indexOf(l.books, id); i < 0 || !l.visible(l.books[i]) {
			delete(l.selected, id)
		}
	}
	return nil
}

// ParseSortKey validates a sort key.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case SortUpdated, SortCreated, SortTitle, SortWords:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort %q (want updated, created, title or words)", s)
}

// ParseView validates a view.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewGrid, ViewList:
		return v, nil
	}
	return "", fmt.Errorf("unknown view %q (want grid or list)", s)
}

// ParseFilter validates a filter.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case FilterActive, FilterArchived, FilterAll:
		return f, nil
	}
	return "", fmt.Errorf("unknown filter %q (want active, archived or all)", s)
}

func indexOf(books []model.Book, id int64) int {
	for i, b := range books {
		if b.ID == id {
			return i
		}
	}
	return -1
}

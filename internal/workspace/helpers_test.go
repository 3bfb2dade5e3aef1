package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/inkwell/internal/bus"
	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/store"
	"github.com/roach88/inkwell/internal/testutil"
)

// fixture wires a real store, a running bus and a workspace.
type fixture struct {
	store *store.Store
	bus   *bus.Bus
	clock *testutil.FixedClock
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := testutil.At(2024, time.January, 10)

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	b := bus.New(bus.WithClock(clk), bus.WithIDGenerator(testutil.NewSequentialIDs("ev")))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	rec := &recorder{}
	b.SubscribeAll(rec.handle)
	return &fixture{store: s, bus: b, clock: clk, rec: rec}
}

// workspace builds a workspace over st, which defaults to the real store.
func (f *fixture) workspace(t *testing.T, st Store) *Workspace {
	t.Helper()
	if st == nil {
		st = f.store
	}
	w := New(st, f.bus, WithClock(f.clock))
	t.Cleanup(w.Detach)
	return w
}

func (f *fixture) book(t *testing.T, title string) int64 {
	t.Helper()
	id, err := f.store.AddBook(context.Background(), model.Book{Title: title})
	require.NoError(t, err)
	return id
}

func (f *fixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.bus.Flush(ctx))
}

type recorder struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *recorder) handle(_ context.Context, ev bus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) topics() []bus.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bus.Topic, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Topic
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// countingStore counts book fetches and can block or fail selected calls.
type countingStore struct {
	*store.Store

	gets atomic.Int32

	// gate, when set, blocks Characters until closed.
	gate chan struct{}
	// replaceGate, when set, blocks ReplaceChapters until closed.
	replaceGate chan struct{}
	// entered is signalled when a gated call starts waiting.
	entered chan struct{}

	failAdd error
	// chapterFailures is the number of upcoming Chapters calls that fail.
	chapterFailures atomic.Int32
}

var errTransientRead = errors.New("transient read failure")

func (c *countingStore) GetBook(ctx context.Context, id int64) (model.Book, error) {
	c.gets.Add(1)
	return c.Store.GetBook(ctx, id)
}

func (c *countingStore) Characters(ctx context.Context, bookID int64) ([]model.Character, error) {
	if c.gate != nil {
		c.signal()
		<-c.gate
	}
	return c.Store.Characters(ctx, bookID)
}

func (c *countingStore) Chapters(ctx context.Context, bookID int64) ([]model.Chapter, error) {
	if c.chapterFailures.Load() > 0 {
		c.chapterFailures.Add(-1)
		return nil, errTransientRead
	}
	return c.Store.Chapters(ctx, bookID)
}

func (c *countingStore) ReplaceChapters(ctx context.Context, chapters []model.Chapter) error {
	if c.replaceGate != nil {
		c.signal()
		<-c.replaceGate
	}
	return c.Store.ReplaceChapters(ctx, chapters)
}

func (c *countingStore) AddLocation(ctx context.Context, l model.Location) (int64, error) {
	if c.failAdd != nil {
		return 0, c.failAdd
	}
	return c.Store.AddLocation(ctx, l)
}

func (c *countingStore) signal() {
	if c.entered != nil {
		select {
		case c.entered <- struct{}{}:
		default:
		}
	}
}

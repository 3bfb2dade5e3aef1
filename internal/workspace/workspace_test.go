package workspace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inkwell/internal/bus"
	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/store"
)

func TestOpen_LoadsChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.book(t, "Antares")

	_, err := f.store.AddCharacter(ctx, model.Character{BookID: bookID, Name: "Andra"})
	require.NoError(t, err)
	_, err = f.store.AddChapter(ctx, model.Chapter{BookID: bookID, Title: "One"})
	require.NoError(t, err)
	_, err = f.store.AddProp(ctx, model.Prop{BookID: bookID, Name: "Lamp"})
	require.NoError(t, err)

	w := f.workspace(t, nil)
	assert.Equal(t, StateClosed, w.State())

	require.NoError(t, w.Open(ctx, bookID))
	assert.Equal(t, StateReady, w.State())
	assert.False(t, w.Loading())
	assert.NoError(t, w.Err())

	book, ok := w.Book()
	require.True(t, ok)
	assert.Equal(t, "Antares", book.Title)
	assert.Len(t, w.Characters(), 1)
	assert.Len(t, w.Chapters(), 1)
	assert.Len(t, w.Props(), 1)
	assert.Empty(t, w.Locations())
	assert.Empty(t, w.Themes())
	assert.Empty(t, w.PlotEvents())
}

func TestOpen_SameBookFetchesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.book(t, "B")
	_, err := f.store.AddCharacter(ctx, model.Character{BookID: bookID, Name: "Andra"})
	require.NoError(t, err)

	cs := &countingStore{Store: f.store}
	w := f.workspace(t, cs)

	require.NoError(t, w.Open(ctx, bookID))
	first := w.Characters()
	require.NoError(t, w.Open(ctx, bookID))

	assert.Equal(t, int32(1), cs.gets.Load())
	assert.Equal(t, first, w.Characters())
}

func TestOpen_WhileLoadingWaitsForSameBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.book(t, "B")

	cs := &countingStore{Store: f.store, gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	w := f.workspace(t, cs)

	errs := make(chan error, 2)
	go func() { errs <- w.Open(ctx, bookID) }()
	<-cs.entered
	assert.True(t, w.Loading())
	assert.Equal(t, bookID, w.BookID())

	go func() { errs <- w.Open(ctx, bookID) }()
	close(cs.gate)

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Open did not return")
		}
	}
	assert.Equal(t, int32(1), cs.gets.Load())
	assert.Equal(t, StateReady, w.State())
}

func TestOpen_OtherBookDiscardsPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, "A")
	b := f.book(t, "B")
	_, err := f.store.AddTheme(ctx, model.Theme{BookID: a, Name: "Loss"})
	require.NoError(t, err)

	w := f.workspace(t, nil)
	require.NoError(t, w.Open(ctx, a))
	require.Len(t, w.Themes(), 1)

	require.NoError(t, w.Open(ctx, b))
	assert.Equal(t, b, w.BookID())
	assert.Empty(t, w.Themes())
}

func TestOpen_FailureEndsReadyWithError(t *testing.T) {
	f := newFixture(t)
	w := f.workspace(t, nil)

	err := w.Open(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))
	assert.Equal(t, StateReady, w.State())
	assert.Equal(t, err, w.Err())
	assert.Empty(t, w.Characters())

	_, ok := w.Book()
	assert.False(t, ok)

	_, err = w.AddTheme(context.Background(), model.Theme{Name: "x"})
	assert.ErrorIs(t, err, ErrNoBookOpen)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.book(t, "B")
	_, err := f.store.AddLocation(ctx, model.Location{BookID: bookID, Name: "Harbor"})
	require.NoError(t, err)

	w := f.workspace(t, nil)
	w.Close() // nothing open

	require.NoError(t, w.Open(ctx, bookID))
	w.SetSearchTerm("har")
	w.Close()

	assert.Equal(t, StateClosed, w.State())
	assert.Zero(t, w.BookID())
	assert.Empty(t, w.Locations())
	assert.Empty(t, w.SearchTerm())

	_, err = w.AddLocation(ctx, model.Location{Name: "x"})
	assert.ErrorIs(t, err, ErrNoBookOpen)
}

func TestClose_WhileLoadingDiscardsResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.book(t, "B")

	cs := &countingStore{Store: f.store, gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	w := f.workspace(t, cs)

	done := make(chan error, 1)
	go func() { done <- w.Open(ctx, bookID) }()
	<-cs.entered

	_, err := w.AddProp(ctx, model.Prop{Name: "x"})
	assert.ErrorIs(t, err, ErrLoading)

	w.Close()
	close(cs.gate)
	require.NoError(t, <-done)

	assert.Equal(t, StateClosed, w.State())
	assert.Zero(t, w.BookID())
}

func TestBookDeleted_ClosesWorkspace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.book(t, "B")

	w := f.workspace(t, nil)
	require.NoError(t, w.Open(ctx, bookID))

	f.bus.Publish(bus.TopicFor(model.KindBook, bus.OpDeleted), bus.EntityChanged{Kind: model.KindBook, BookID: bookID + 1, ID: bookID + 1})
	f.flush(t)
	assert.Equal(t, StateReady, w.State(), "other books do not affect the workspace")

	f.bus.Publish(bus.TopicFor(model.KindBook, bus.OpDeleted), bus.EntityChanged{Kind: model.KindBook, BookID: bookID, ID: bookID})
	f.flush(t)
	assert.Equal(t, StateClosed, w.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestMutations_RequireOpenBook(t *testing.T) {
	f := newFixture(t)
	w := f.workspace(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, w.UpdateCharacter(ctx, 1, Fields{"name": "x"}), ErrNoBookOpen)
	assert.ErrorIs(t, w.DeleteChapter(ctx, 1), ErrNoBookOpen)
	assert.ErrorIs(t, w.MoveChapter(ctx, 0, 1), ErrNoBookOpen)
	assert.False(t, w.ReorderInProgress())
	assert.True(t, errors.Is(w.ReorderPlotEvents(ctx, nil), ErrNoBookOpen))
}

func TestOpen_AnyCollectionFailureFailsLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.book(t, "B")
	_, err := f.store.AddCharacter(ctx, model.Character{BookID: bookID, Name: "Andra"})
	require.NoError(t, err)

	cs := &countingStore{Store: f.store}
	cs.chapterFailures.Store(1)
	w := f.workspace(t, cs)

	require.ErrorIs(t, w.Open(ctx, bookID), errTransientRead)
	assert.Equal(t, StateReady, w.State())
	assert.Empty(t, w.Characters(), "no partial working set")

	require.NoError(t, w.Open(ctx, bookID))
	assert.Len(t, w.Characters(), 1)
}

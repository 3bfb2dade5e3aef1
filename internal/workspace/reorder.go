package workspace

import (
	"context"
	"log/slog"

	"github.com/roach88/inkwell/internal/bus"
	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/ordering"
)

// MoveChapter moves the chapter at index from to index to and persists the
// renumbered list in one transaction. Out-of-range indices fail with
// ordering.ErrInvalidIndex before the store is touched.
func (w *Workspace) MoveChapter(ctx context.Context, from, to int) error {
	return w.reorder(ctx, model.KindChapter, func() (bool, error) {
		next, err := ordering.Move(w.Chapters(), from, to)
		if err != nil || from == to {
			return false, err
		}
		return true, w.store.ReplaceChapters(ctx, next)
	})
}

// ReorderChapters applies a complete new order, given as chapter ids.
func (w *Workspace) ReorderChapters(ctx context.Context, ids []int64) error {
	return w.reorder(ctx, model.KindChapter, func() (bool, error) {
		next, err := ordering.Arrange(w.Chapters(), ids)
		if err != nil {
			return false, err
		}
		return true, w.store.ReplaceChapters(ctx, next)
	})
}

// MovePlotEvent moves the plot event at index from to index to.
func (w *Workspace) MovePlotEvent(ctx context.Context, from, to int) error {
	return w.reorder(ctx, model.KindPlotEvent, func() (bool, error) {
		next, err := ordering.Move(w.PlotEvents(), from, to)
		if err != nil || from == to {
			return false, err
		}
		return true, w.store.ReplacePlotEvents(ctx, next)
	})
}

// ReorderPlotEvents applies a complete new order, given as plot event ids.
func (w *Workspace) ReorderPlotEvents(ctx context.Context, ids []int64) error {
	return w.reorder(ctx, model.KindPlotEvent, func() (bool, error) {
		next, err := ordering.Arrange(w.PlotEvents(), ids)
		if err != nil {
			return false, err
		}
		return true, w.store.ReplacePlotEvents(ctx, next)
	})
}

// ReorderInProgress reports whether a reorder of the open book is
// persisting.
func (w *Workspace) ReorderInProgress() bool {
	id := w.BookID()
	return id != 0 && w.guard.Busy(id)
}

// reorder runs persist under the per-book single-flight guard, then
// refreshes the collection from the store. persist reports whether it wrote.
func (w *Workspace) reorder(ctx context.Context, kind model.Kind, persist func() (bool, error)) error {
	bookID, gen, err := w.current()
	if err != nil {
		return err
	}
	if !w.guard.TryAcquire(bookID) {
		return ErrReorderInProgress
	}
	defer w.guard.Release(bookID)

	wrote, err := persist()
	if err != nil {
		slog.Error("reorder failed", "kind", kind, "book", bookID, "error", err)
		return err
	}
	if !wrote {
		return nil
	}

	_, err = w.refresh(ctx, kind, bookID, gen)
	w.bus.Publish(bus.TopicFor(kind, bus.OpReordered), bus.EntityChanged{Kind: kind, BookID: bookID})
	return err
}

package workspace

import (
	"context"
	"log/slog"
	"maps"

	"github.com/roach88/inkwell/internal/bus"
	"github.com/roach88/inkwell/internal/model"
)

// AddCharacter inserts a character into the open book. Relationships whose
// target is not another character of the book are dropped.
func (w *Workspace) AddCharacter(ctx context.Context, c model.Character) (int64, error) {
	return w.add(ctx, model.KindCharacter, func(bookID int64) (int64, error) {
		c.BookID = bookID
		c.Relationships = w.sanitizeRelationships(0, c.Relationships)
		return w.store.AddCharacter(ctx, c)
	})
}

// AddLocation inserts a location into the open book.
func (w *Workspace) AddLocation(ctx context.Context, l model.Location) (int64, error) {
	return w.add(ctx, model.KindLocation, func(bookID int64) (int64, error) {
		l.BookID = bookID
		return w.store.AddLocation(ctx, l)
	})
}

// AddPlotEvent appends a plot event to the open book's timeline.
func (w *Workspace) AddPlotEvent(ctx context.Context, p model.PlotEvent) (int64, error) {
	return w.add(ctx, model.KindPlotEvent, func(bookID int64) (int64, error) {
		p.BookID = bookID
		return w.store.AddPlotEvent(ctx, p)
	})
}

// AddChapter appends a chapter to the open book. A non-zero word count is
// credited to the book and today's writing log in the same write.
func (w *Workspace) AddChapter(ctx context.Context, c model.Chapter) (int64, error) {
	date := model.DateOf(w.clock.Now())
	var bookID int64
	id, err := w.add(ctx, model.KindChapter, func(b int64) (int64, error) {
		bookID = b
		c.BookID = b
		return w.store.AddChapterWords(ctx, c, date)
	})
	if id == 0 {
		return id, err
	}
	if werr := w.wordsRecorded(ctx, bookID, c.WordCount, date); werr != nil && err == nil {
		err = werr
	}
	return id, err
}

// AddTheme inserts a theme into the open book.
func (w *Workspace) AddTheme(ctx context.Context, t model.Theme) (int64, error) {
	return w.add(ctx, model.KindTheme, func(bookID int64) (int64, error) {
		t.BookID = bookID
		return w.store.AddTheme(ctx, t)
	})
}

// AddProp inserts a prop into the open book.
func (w *Workspace) AddProp(ctx context.Context, p model.Prop) (int64, error) {
	return w.add(ctx, model.KindProp, func(bookID int64) (int64, error) {
		p.BookID = bookID
		return w.store.AddProp(ctx, p)
	})
}

// add runs insert against the open book, then refreshes and announces.
// A non-zero id with an error means the row was written but the refresh
// failed.
func (w *Workspace) add(ctx context.Context, kind model.Kind, insert func(bookID int64) (int64, error)) (int64, error) {
	bookID, gen, err := w.current()
	if err != nil {
		return 0, err
	}

	id, err := insert(bookID)
	if err != nil {
		slog.Error("add failed", "kind", kind, "book", bookID, "error", err)
		return 0, err
	}
	return id, w.afterWrite(ctx, kind, bus.OpAdded, bookID, gen, id)
}

// UpdateCharacter applies a partial update. A "relationships" value of type
// []model.Relationship is sanitized like AddCharacter.
func (w *Workspace) UpdateCharacter(ctx context.Context, id int64, fields Fields) error {
	if rels, ok := fields["relationships"].([]model.Relationship); ok {
		fields = maps.Clone(fields)
		fields["relationships"] = w.sanitizeRelationships(id, rels)
	}
	return w.update(ctx, model.KindCharacter, id, fields)
}

// UpdateLocation applies a partial update.
func (w *Workspace) UpdateLocation(ctx context.Context, id int64, fields Fields) error {
	return w.update(ctx, model.KindLocation, id, fields)
}

// UpdatePlotEvent applies a partial update. Use MovePlotEvent to reorder.
func (w *Workspace) UpdatePlotEvent(ctx context.Context, id int64, fields Fields) error {
	return w.update(ctx, model.KindPlotEvent, id, fields)
}

// UpdateChapter applies a partial update. A changed "word_count" moves the
// book's total by the difference, logged for today when positive, in the
// same write.
func (w *Workspace) UpdateChapter(ctx context.Context, id int64, fields Fields) error {
	date := model.DateOf(w.clock.Now())
	var delta int
	bookID, err := w.write(ctx, model.KindChapter, bus.OpUpdated, id, func() (int64, error) {
		n, d, err := w.store.UpdateChapterWords(ctx, id, fields, date)
		delta = d
		return n, err
	})
	if werr := w.wordsRecorded(ctx, bookID, delta, date); werr != nil && err == nil {
		err = werr
	}
	return err
}

// UpdateTheme applies a partial update.
func (w *Workspace) UpdateTheme(ctx context.Context, id int64, fields Fields) error {
	return w.update(ctx, model.KindTheme, id, fields)
}

// UpdateProp applies a partial update.
func (w *Workspace) UpdateProp(ctx context.Context, id int64, fields Fields) error {
	return w.update(ctx, model.KindProp, id, fields)
}

// update writes fields to an entity of the open book.
func (w *Workspace) update(ctx context.Context, kind model.Kind, id int64, fields Fields) error {
	_, err := w.write(ctx, kind, bus.OpUpdated, id, func() (int64, error) {
		return w.store.Update(ctx, kind, id, fields)
	})
	return err
}

// DeleteCharacter removes a character. Relationships pointing at it are
// left in place and filtered on read.
func (w *Workspace) DeleteCharacter(ctx context.Context, id int64) error {
	return w.delete(ctx, model.KindCharacter, id)
}

// DeleteLocation removes a location.
func (w *Workspace) DeleteLocation(ctx context.Context, id int64) error {
	return w.delete(ctx, model.KindLocation, id)
}

// DeletePlotEvent removes a plot event; the rest are renumbered.
func (w *Workspace) DeletePlotEvent(ctx context.Context, id int64) error {
	return w.delete(ctx, model.KindPlotEvent, id)
}

// DeleteChapter removes a chapter; the rest are renumbered and its words
// are subtracted from the book total in the same write.
func (w *Workspace) DeleteChapter(ctx context.Context, id int64) error {
	date := model.DateOf(w.clock.Now())
	var delta int
	bookID, err := w.write(ctx, model.KindChapter, bus.OpDeleted, id, func() (int64, error) {
		n, d, err := w.store.DeleteChapterWords(ctx, id, date)
		delta = d
		return n, err
	})
	if werr := w.wordsRecorded(ctx, bookID, delta, date); werr != nil && err == nil {
		err = werr
	}
	return err
}

// DeleteTheme removes a theme.
func (w *Workspace) DeleteTheme(ctx context.Context, id int64) error {
	return w.delete(ctx, model.KindTheme, id)
}

// DeleteProp removes a prop.
func (w *Workspace) DeleteProp(ctx context.Context, id int64) error {
	return w.delete(ctx, model.KindProp, id)
}

func (w *Workspace) delete(ctx context.Context, kind model.Kind, id int64) error {
	_, err := w.write(ctx, kind, bus.OpDeleted, id, func() (int64, error) {
		return w.store.Delete(ctx, kind, id)
	})
	return err
}

// write runs an update or delete of id against the open book, then
// refreshes and announces. Ids that are not in the cache are ignored. It
// returns the book written to, or 0 when nothing was written.
func (w *Workspace) write(ctx context.Context, kind model.Kind, op bus.Op, id int64, exec func() (int64, error)) (int64, error) {
	bookID, gen, err := w.current()
	if err != nil {
		return 0, err
	}
	if !w.owns(kind, id) {
		slog.Debug("write of unknown id ignored", "op", op, "kind", kind, "id", id, "book", bookID)
		return 0, nil
	}

	n, err := exec()
	if err != nil {
		slog.Error("write failed", "op", op, "kind", kind, "id", id, "book", bookID, "error", err)
		return 0, err
	}
	if n == 0 {
		// Gone from the store; resync the cache without announcing anything.
		_, err := w.refresh(ctx, kind, bookID, gen)
		return 0, err
	}
	return bookID, w.afterWrite(ctx, kind, op, bookID, gen, id)
}

// afterWrite refreshes the written collection and announces the change.
// Events are published even if the refresh fails, since the store changed.
func (w *Workspace) afterWrite(ctx context.Context, kind model.Kind, op bus.Op, bookID int64, gen uint64, id int64) error {
	n, err := w.refresh(ctx, kind, bookID, gen)

	w.bus.Publish(bus.TopicFor(kind, op), bus.EntityChanged{Kind: kind, BookID: bookID, ID: id})
	if op != bus.OpUpdated && err == nil {
		w.bus.Publish(bus.TopicChildCountChanged, bus.ChildCountChanged{BookID: bookID, Kind: kind, Count: n})
	}
	return err
}

// wordsRecorded announces a committed word-count change and refreshes the
// cached book. A zero delta or book does nothing.
func (w *Workspace) wordsRecorded(ctx context.Context, bookID int64, delta int, date string) error {
	if bookID == 0 || delta == 0 {
		return nil
	}
	w.bus.Publish(bus.TopicStatsChanged, bus.StatsChanged{BookID: bookID, Delta: delta, Date: date})

	book, err := w.store.GetBook(ctx, bookID)
	if err != nil {
		slog.Error("failed to refresh book", "book", bookID, "error", err)
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bookID == bookID && w.state == StateReady {
		w.book = book
	}
	return nil
}

// sanitizeRelationships drops relationships whose target is self or not a
// cached character of the open book.
func (w *Workspace) sanitizeRelationships(self int64, rels []model.Relationship) []model.Relationship {
	if len(rels) == 0 {
		return rels
	}
	byID := w.CharactersByID()

	out := make([]model.Relationship, 0, len(rels))
	for _, r := range rels {
		if _, ok := byID[r.TargetID]; !ok || r.TargetID == self {
			slog.Warn("dropping relationship with invalid target", "character", self, "target", r.TargetID)
			continue
		}
		out = append(out, r)
	}
	return out
}

func (w *Workspace) owns(kind model.Kind, id int64) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	switch kind {
	case model.KindCharacter:
		return containsID(w.data.characters, id, func(v model.Character) int64 { return v.ID })
	case model.KindLocation:
		return containsID(w.data.locations, id, func(v model.Location) int64 { return v.ID })
	case model.KindPlotEvent:
		return containsID(w.data.plotEvents, id, func(v model.PlotEvent) int64 { return v.ID })
	case model.KindChapter:
		return containsID(w.data.chapters, id, func(v model.Chapter) int64 { return v.ID })
	case model.KindTheme:
		return containsID(w.data.themes, id, func(v model.Theme) int64 { return v.ID })
	case model.KindProp:
		return containsID(w.data.props, id, func(v model.Prop) int64 { return v.ID })
	}
	return false
}

func (w *Workspace) chapter(id int64) (model.Chapter, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, c := range w.data.chapters {
		if c.ID == id {
			return c, true
		}
	}
	return model.Chapter{}, false
}

func containsID[T any](items []T, id int64, key func(T) int64) bool {
	for _, it := range items {
		if key(it) == id {
			return true
		}
	}
	return false
}

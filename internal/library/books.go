package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/inkwell/internal/bus"
	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/store"
)

// ErrEmptyTitle is returned when creating or renaming a book to a blank
// title.
var ErrEmptyTitle = errors.New("book title is empty")

// CreateBook adds a book and returns its id.
func (l *Library) CreateBook(ctx context.Context, title string, dailyTarget int) (int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, ErrEmptyTitle
	}

	id, err := l.store.AddBook(ctx, model.Book{Title: title, DailyTarget: dailyTarget})
	if err != nil {
		slog.Error("failed to create book", "title", title, "error", err)
		return 0, err
	}
	if err := l.refreshBook(ctx, id); err != nil {
		return id, err
	}
	l.bus.Publish(bus.TopicFor(model.KindBook, bus.OpAdded), bus.EntityChanged{Kind: model.KindBook, BookID: id, ID: id})
	return id, nil
}

// UpdateBook applies a partial update to a book. Updating a missing book
// is a no-op.
func (l *Library) UpdateBook(ctx context.Context, id int64, fields store.Fields) error {
	if t, ok := fields["title"].(string); ok && strings.TrimSpace(t) == "" {
		return ErrEmptyTitle
	}

	n, err := l.store.Update(ctx, model.KindBook, id, fields)
	if err != nil {
		slog.Error("failed to update book", "book", id, "error", err)
		return err
	}
	if n == 0 {
		return nil
	}
	if err := l.refreshBook(ctx, id); err != nil {
		return err
	}
	l.bus.Publish(bus.TopicFor(model.KindBook, bus.OpUpdated), bus.EntityChanged{Kind: model.KindBook, BookID: id, ID: id})
	return nil
}

// DeleteBook removes a book and all its children in one transaction.
func (l *Library) DeleteBook(ctx context.Context, id int64) error {
	deleted, err := l.store.DeleteBookCascade(ctx, id)
	if err != nil {
		slog.Error("failed to delete book", "book", id, "error", err)
		return err
	}

	l.mu.Lock()
	if i := indexOf(l.books, id); i >= 0 {
		l.books = append(l.books[:i:i], l.books[i+1:]...)
	}
	delete(l.counts, id)
	delete(l.selected, id)
	l.mu.Unlock()

	if deleted {
		l.bus.Publish(bus.TopicFor(model.KindBook, bus.OpDeleted), bus.EntityChanged{Kind: model.KindBook, BookID: id, ID: id})
	}
	return nil
}

// Archive marks books archived.
func (l *Library) Archive(ctx context.Context, ids ...int64) error {
	return l.each(ids, func(id int64) error {
		return l.UpdateBook(ctx, id, store.Fields{"archived": true})
	})
}

// Unarchive clears the archived flag.
func (l *Library) Unarchive(ctx context.Context, ids ...int64) error {
	return l.each(ids, func(id int64) error {
		return l.UpdateBook(ctx, id, store.Fields{"archived": false})
	})
}

// Pin moves a book to the end of the pinned group. Pinning a pinned book
// is a no-op.
func (l *Library) Pin(ctx context.Context, id int64) error {
	l.mu.RLock()
	next := 1
	already := false
	for _, b := range l.books {
		if b.PinOrder >= next {
			next = b.PinOrder + 1
		}
		if b.ID == id && b.Pinned() {
			already = true
		}
	}
	l.mu.RUnlock()

	if already {
		return nil
	}
	return l.UpdateBook(ctx, id, store.Fields{"pin_order": next})
}

// Unpin removes a book from the pinned group.
func (l *Library) Unpin(ctx context.Context, id int64) error {
	return l.UpdateBook(ctx, id, store.Fields{"pin_order": 0})
}

// ArchiveSelected archives the selection and clears it.
func (l *Library) ArchiveSelected(ctx context.Context) error {
	return l.bulk(ctx, l.Archive)
}

// UnarchiveSelected unarchives the selection and clears it.
func (l *Library) UnarchiveSelected(ctx context.Context) error {
	return l.bulk(ctx, l.Unarchive)
}

// DeleteSelected deletes every selected book and clears the selection.
func (l *Library) DeleteSelected(ctx context.Context) error {
	return l.bulk(ctx, func(ctx context.Context, ids ...int64) error {
		return l.each(ids, func(id int64) error { return l.DeleteBook(ctx, id) })
	})
}

func (l *Library) bulk(ctx context.Context, fn func(ctx context.Context, ids ...int64) error) error {
	ids := l.Selected()
	if len(ids) == 0 {
		return nil
	}
	err := fn(ctx, ids...)
	l.ClearSelection()
	return err
}

// each applies fn to every id, continuing past failures, and joins the
// errors.
func (l *Library) each(ids []int64, fn func(id int64) error) error {
	var errs []error
	for _, id := range ids {
		if err := fn(id); err != nil {
			errs = append(errs, fmt.Errorf("book %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// refreshBook re-reads one book into the cache, dropping it if it no longer
// exists.
func (l *Library) refreshBook(ctx context.Context, id int64) error {
	b, err := l.store.GetBook(ctx, id)
	if err != nil && !store.IsNotFound(err) {
		slog.Error("failed to refresh book", "book", id, "error", err)
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.books, id)
	switch {
	case err != nil && i >= 0:
		l.books = append(l.books[:i:i], l.books[i+1:]...)
		delete(l.selected, id)
		delete(l.counts, id)
	case err != nil:
	case i >= 0:
		l.books[i] = b
	default:
		l.books = append(l.books, b)
	}
	return nil
}

func (l *Library) onStatsChanged(ctx context.Context, p bus.StatsChanged) error {
	return l.refreshBook(ctx, p.BookID)
}

func (l *Library) onBookChanged(ctx context.Context, p bus.EntityChanged) error {
	return l.refreshBook(ctx, p.BookID)
}

func (l *Library) onChildCountChanged(_ context.Context, p bus.ChildCountChanged) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if indexOf(l.books, p.BookID) < 0 {
		return nil
	}
	if l.counts[p.BookID] == nil {
		l.counts[p.BookID] = make(Counts)
	}
	l.counts[p.BookID][p.Kind] = p.Count
	return nil
}

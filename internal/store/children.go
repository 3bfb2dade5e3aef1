package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/inkwell/internal/model"
)

// Fields is a partial update keyed by column name.
type Fields map[string]any

// Characters returns a book's characters ordered by id.
func (s *Store) Characters(ctx context.Context, bookID int64) ([]model.Character, error) {
	return listByBook(ctx, s.db, &charactersTable, bookID)
}

// Locations returns a book's locations ordered by id.
func (s *Store) Locations(ctx context.Context, bookID int64) ([]model.Location, error) {
	return listByBook(ctx, s.db, &locationsTable, bookID)
}

// PlotEvents returns a book's plot events in timeline order.
func (s *Store) PlotEvents(ctx context.Context, bookID int64) ([]model.PlotEvent, error) {
	return listByBook(ctx, s.db, &plotEventsTable, bookID)
}

// Chapters returns a book's chapters in manuscript order.
func (s *Store) Chapters(ctx context.Context, bookID int64) ([]model.Chapter, error) {
	return listByBook(ctx, s.db, &chaptersTable, bookID)
}

// Themes returns a book's themes ordered by id.
func (s *Store) Themes(ctx context.Context, bookID int64) ([]model.Theme, error) {
	return listByBook(ctx, s.db, &themesTable, bookID)
}

// Props returns a book's props ordered by id.
func (s *Store) Props(ctx context.Context, bookID int64) ([]model.Prop, error) {
	return listByBook(ctx, s.db, &propsTable, bookID)
}

// GetChapter returns one chapter.
func (s *Store) GetChapter(ctx context.Context, id int64) (model.Chapter, error) {
	return getByID(ctx, s.db, &chaptersTable, id)
}

func (s *Store) AddCharacter(ctx context.Context, c model.Character) (int64, error) {
	return add(ctx, s, &charactersTable, c)
}

func (s *Store) AddLocation(ctx context.Context, l model.Location) (int64, error) {
	return add(ctx, s, &locationsTable, l)
}

// AddPlotEvent appends the event to the end of the book's timeline.
func (s *Store) AddPlotEvent(ctx context.Context, p model.PlotEvent) (int64, error) {
	return add(ctx, s, &plotEventsTable, p)
}

// AddChapter appends the chapter after the book's last chapter.
func (s *Store) AddChapter(ctx context.Context, c model.Chapter) (int64, error) {
	return add(ctx, s, &chaptersTable, c)
}

func (s *Store) AddTheme(ctx context.Context, t model.Theme) (int64, error) {
	return add(ctx, s, &themesTable, t)
}

func (s *Store) AddProp(ctx context.Context, p model.Prop) (int64, error) {
	return add(ctx, s, &propsTable, p)
}

// add inserts v. For ordered kinds the order is assigned as count+1 inside
// the same transaction, so the sequence stays dense.
func add[T any](ctx context.Context, s *Store, t *table[T], v T) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = addTx(ctx, tx, t, v)
		return err
	})
	if err != nil {
		return 0, writeError("add", t.name, 0, err)
	}
	return id, nil
}

func addTx[T any](ctx context.Context, tx *sql.Tx, t *table[T], v T) (int64, error) {
	if t.setOrder != nil {
		var n int
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE book_id = ?", t.name)
		if err := tx.QueryRowContext(ctx, q, t.bookOf(v)).Scan(&n); err != nil {
			return 0, err
		}
		t.setOrder(&v, n+1)
	}
	return insertRow(ctx, tx, t, v)
}

// Update applies a partial update to one row and reports rows affected.
// Updating a missing id affects zero rows and is not an error. Columns that
// are not mutable for the kind are rejected with CONSTRAINT. Book updates
// also bump updated_at.
func (s *Store) Update(ctx context.Context, kind model.Kind, id int64, fields Fields) (int64, error) {
	m, err := lookupMeta("update", kind)
	if err != nil {
		return 0, err
	}
	query, args, err := s.updateStatement(m, id, fields)
	if err != nil || query == "" {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return execUpdate(ctx, s.db, m, id, query, args)
}

// updateStatement builds the UPDATE for fields. An empty query means there
// is nothing to write.
func (s *Store) updateStatement(m *tableMeta, id int64, fields Fields) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, nil
	}

	cols := make([]string, 0, len(fields))
	for c := range fields {
		if !m.mutable[c] {
			return "", nil, &Error{Code: CodeConstraint, Op: "update", Table: m.name, ID: id, Err: fmt.Errorf("column %q is not updatable", c)}
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	assigns := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for _, c := range cols {
		v := fields[c]
		if m.json[c] {
			var err error
			if v, err = marshalColumn(v); err != nil {
				return "", nil, &Error{Code: CodeConstraint, Op: "update", Table: m.name, ID: id, Err: err}
			}
		}
		if p, ok := v.(*int64); ok {
			v = nullableID(p)
		}
		assigns = append(assigns, c+" = ?")
		args = append(args, v)
	}
	if m.kind == model.KindBook {
		assigns = append(assigns, "updated_at = ?")
		args = append(args, formatTime(s.now()))
	}
	args = append(args, id)

	return fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", m.name, strings.Join(assigns, ", ")), args, nil
}

func execUpdate(ctx context.Context, q queryer, m *tableMeta, id int64, query string, args []any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, writeError("update", m.name, id, err)
	}
	return res.RowsAffected()
}

// Delete removes one child row and reports rows affected. Deleting a chapter
// or plot event renumbers the remaining siblings densely in the same
// transaction. Books are removed with DeleteBookCascade instead.
func (s *Store) Delete(ctx context.Context, kind model.Kind, id int64) (int64, error) {
	m, err := lookupMeta("delete", kind)
	if err != nil {
		return 0, err
	}
	if kind == model.KindBook {
		return 0, &Error{Code: CodeConstraint, Op: "delete", Table: m.name, ID: id, Err: fmt.Errorf("books are deleted with DeleteBookCascade")}
	}

	var n int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = deleteTx(ctx, tx, m, id)
		return err
	})
	if err != nil {
		return 0, writeError("delete", m.name, id, err)
	}
	return n, nil
}

// deleteTx removes one row and renumbers its ordered siblings.
func deleteTx(ctx context.Context, tx *sql.Tx, m *tableMeta, id int64) (int64, error) {
	var bookID int64
	if m.ordered() {
		err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT book_id FROM %s WHERE id = ?", m.name), id).Scan(&bookID)
		if err == sql.ErrNoRows {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", m.name), id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if m.ordered() && n > 0 {
		if err := renumber(ctx, tx, m.name, bookID); err != nil {
			return 0, err
		}
	}
	return n, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/inkwell/internal/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// tableMeta is the kind-independent description of a table.
type tableMeta struct {
	kind    model.Kind
	name    string
	columns []string // insert/select columns, excluding id
	mutable map[string]bool
	json    map[string]bool
	nameCol string
	descCol string // "" when the kind has no searchable description
}

func (m *tableMeta) ordered() bool {
	return m.kind.Ordered()
}

// table binds tableMeta to a Go entity type.
type table[T any] struct {
	tableMeta
	scan     func(rowScanner) (T, error)
	values   func(T) ([]any, error)
	id       func(T) int64
	bookOf   func(T) int64
	setOrder func(*T, int)
}

func set(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

func (m *tableMeta) selectList() string {
	return "id, " + strings.Join(m.columns, ", ")
}

func (m *tableMeta) orderBy() string {
	switch {
	case m.kind == model.KindBook:
		return "id"
	case m.ordered():
		return "sort_order, id"
	default:
		return "id"
	}
}

var booksTable = table[model.Book]{
	tableMeta: tableMeta{
		kind:    model.KindBook,
		name:    "books",
		columns: []string{"title", "created_at", "updated_at", "word_count", "daily_target", "archived", "pin_order"},
		mutable: set("title", "word_count", "daily_target", "archived", "pin_order"),
		nameCol: "title",
	},
	scan: func(r rowScanner) (model.Book, error) {
		var b model.Book
		var created, updated string
		if err := r.Scan(&b.ID, &b.Title, &created, &updated, &b.WordCount, &b.DailyTarget, &b.Archived, &b.PinOrder); err != nil {
			return b, err
		}
		var err error
		if b.CreatedAt, err = parseTime(created); err != nil {
			return b, err
		}
		if b.UpdatedAt, err = parseTime(updated); err != nil {
			return b, err
		}
		return b, nil
	},
	values: func(b model.Book) ([]any, error) {
		return []any{b.Title, formatTime(b.CreatedAt), formatTime(b.UpdatedAt), b.WordCount, b.DailyTarget, b.Archived, b.PinOrder}, nil
	},
	id: func(b model.Book) int64 { return b.ID },
}

var charactersTable = table[model.Character]{
	tableMeta: tableMeta{
		kind:    model.KindCharacter,
		name:    "characters",
		columns: []string{"book_id", "name", "description", "relationships"},
		mutable: set("name", "description", "relationships"),
		json:    set("relationships"),
		nameCol: "name",
		descCol: "description",
	},
	scan: func(r rowScanner) (model.Character, error) {
		var c model.Character
		var rels string
		if err := r.Scan(&c.ID, &c.BookID, &c.Name, &c.Description, &rels); err != nil {
			return c, err
		}
		var err error
		c.Relationships, err = unmarshalRelationships(rels)
		return c, err
	},
	values: func(c model.Character) ([]any, error) {
		rels, err := marshalRelationships(c.Relationships)
		if err != nil {
			return nil, err
		}
		return []any{c.BookID, c.Name, c.Description, rels}, nil
	},
	id: func(c model.Character) int64 { return c.ID },
}

var locationsTable = table[model.Location]{
	tableMeta: tableMeta{
		kind:    model.KindLocation,
		name:    "locations",
		columns: []string{"book_id", "name", "description"},
		mutable: set("name", "description"),
		nameCol: "name",
		descCol: "description",
	},
	scan: func(r rowScanner) (model.Location, error) {
		var l model.Location
		err := r.Scan(&l.ID, &l.BookID, &l.Name, &l.Description)
		return l, err
	},
	values: func(l model.Location) ([]any, error) {
		return []any{l.BookID, l.Name, l.Description}, nil
	},
	id: func(l model.Location) int64 { return l.ID },
}

var plotEventsTable = table[model.PlotEvent]{
	tableMeta: tableMeta{
		kind:    model.KindPlotEvent,
		name:    "plot_events",
		columns: []string{"book_id", "title", "summary", "location_id", "character_ids", "sort_order"},
		mutable: set("title", "summary", "location_id", "character_ids"),
		json:    set("character_ids"),
		nameCol: "title",
		descCol: "summary",
	},
	scan: func(r rowScanner) (model.PlotEvent, error) {
		var p model.PlotEvent
		var loc sql.NullInt64
		var ids string
		if err := r.Scan(&p.ID, &p.BookID, &p.Title, &p.Summary, &loc, &ids, &p.Order); err != nil {
			return p, err
		}
		p.LocationID = idPtr(loc)
		var err error
		p.CharacterIDs, err = unmarshalIDs(ids)
		return p, err
	},
	values: func(p model.PlotEvent) ([]any, error) {
		ids, err := marshalIDs(p.CharacterIDs)
		if err != nil {
			return nil, err
		}
		return []any{p.BookID, p.Title, p.Summary, nullableID(p.LocationID), ids, p.Order}, nil
	},
	id:       func(p model.PlotEvent) int64 { return p.ID },
	bookOf:   func(p model.PlotEvent) int64 { return p.BookID },
	setOrder: func(p *model.PlotEvent, n int) { p.SetOrder(n) },
}

var chaptersTable = table[model.Chapter]{
	tableMeta: tableMeta{
		kind:    model.KindChapter,
		name:    "chapters",
		columns: []string{"book_id", "title", "content", "character_ids", "sort_order", "word_count"},
		mutable: set("title", "content", "character_ids", "word_count"),
		json:    set("character_ids"),
		nameCol: "title",
	},
	scan: func(r rowScanner) (model.Chapter, error) {
		var c model.Chapter
		var ids string
		if err := r.Scan(&c.ID, &c.BookID, &c.Title, &c.Content, &ids, &c.Order, &c.WordCount); err != nil {
			return c, err
		}
		var err error
		c.CharacterIDs, err = unmarshalIDs(ids)
		return c, err
	},
	values: func(c model.Chapter) ([]any, error) {
		ids, err := marshalIDs(c.CharacterIDs)
		if err != nil {
			return nil, err
		}
		return []any{c.BookID, c.Title, c.Content, ids, c.Order, c.WordCount}, nil
	},
	id:       func(c model.Chapter) int64 { return c.ID },
	bookOf:   func(c model.Chapter) int64 { return c.BookID },
	setOrder: func(c *model.Chapter, n int) { c.SetOrder(n) },
}

var themesTable = table[model.Theme]{
	tableMeta: tableMeta{
		kind:    model.KindTheme,
		name:    "themes",
		columns: []string{"book_id", "name", "description"},
		mutable: set("name", "description"),
		nameCol: "name",
		descCol: "description",
	},
	scan: func(r rowScanner) (model.Theme, error) {
		var t model.Theme
		err := r.Scan(&t.ID, &t.BookID, &t.Name, &t.Description)
		return t, err
	},
	values: func(t model.Theme) ([]any, error) {
		return []any{t.BookID, t.Name, t.Description}, nil
	},
	id: func(t model.Theme) int64 { return t.ID },
}

var propsTable = table[model.Prop]{
	tableMeta: tableMeta{
		kind:    model.KindProp,
		name:    "props",
		columns: []string{"book_id", "name", "description"},
		mutable: set("name", "description"),
		nameCol: "name",
		descCol: "description",
	},
	scan: func(r rowScanner) (model.Prop, error) {
		var p model.Prop
		err := r.Scan(&p.ID, &p.BookID, &p.Name, &p.Description)
		return p, err
	},
	values: func(p model.Prop) ([]any, error) {
		return []any{p.BookID, p.Name, p.Description}, nil
	},
	id: func(p model.Prop) int64 { return p.ID },
}

// metaByKind resolves the table for kind-generic operations.
var metaByKind = map[model.Kind]*tableMeta{
	model.KindBook:      &booksTable.tableMeta,
	model.KindCharacter: &charactersTable.tableMeta,
	model.KindLocation:  &locationsTable.tableMeta,
	model.KindPlotEvent: &plotEventsTable.tableMeta,
	model.KindChapter:   &chaptersTable.tableMeta,
	model.KindTheme:     &themesTable.tableMeta,
	model.KindProp:      &propsTable.tableMeta,
}

// childTables lists the tables deleted by a cascade, children first.
var childTables = []string{
	"characters",
	"locations",
	"plot_events",
	"chapters",
	"themes",
	"props",
	"writing_logs",
}

func lookupMeta(op string, kind model.Kind) (*tableMeta, error) {
	m, ok := metaByKind[kind]
	if !ok {
		return nil, &Error{Code: CodeConstraint, Op: op, Err: fmt.Errorf("unknown kind %q", kind)}
	}
	return m, nil
}

// listRows runs query and scans every row. Returns an empty slice, not nil.
func listRows[T any](ctx context.Context, q queryer, t *table[T], query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.name, err)
	}
	return out, nil
}

func listByBook[T any](ctx context.Context, q queryer, t *table[T], bookID int64) ([]T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE book_id = ? ORDER BY %s", t.selectList(), t.name, t.orderBy())
	return listRows(ctx, q, t, query, bookID)
}

func listAll[T any](ctx context.Context, q queryer, t *table[T]) ([]T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", t.selectList(), t.name)
	return listRows(ctx, q, t, query)
}

func getByID[T any](ctx context.Context, q queryer, t *table[T], id int64) (T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", t.selectList(), t.name)
	v, err := t.scan(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return v, notFound("get", t.name, id)
	}
	if err != nil {
		return v, fmt.Errorf("get %s: %w", t.name, err)
	}
	return v, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// insertRow inserts v with a store-assigned id.
func insertRow[T any](ctx context.Context, q queryer, t *table[T], v T) (int64, error) {
	vals, err := t.values(v)
	if err != nil {
		return 0, &Error{Code: CodeConstraint, Op: "add", Table: t.name, Err: err}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(t.columns, ", "), placeholders(len(t.columns)))
	res, err := q.ExecContext(ctx, query, vals...)
	if err != nil {
		return 0, writeError("add", t.name, 0, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, writeError("add", t.name, 0, err)
	}
	return id, nil
}

// insertWithID inserts v keeping its id. Used by snapshot restore.
func insertWithID[T any](ctx context.Context, q queryer, t *table[T], v T) error {
	vals, err := t.values(v)
	if err != nil {
		return &Error{Code: CodeConstraint, Op: "restore", Table: t.name, ID: t.id(v), Err: err}
	}
	query := fmt.Sprintf("INSERT INTO %s (id, %s) VALUES (?, %s)", t.name, strings.Join(t.columns, ", "), placeholders(len(t.columns)))
	if _, err := q.ExecContext(ctx, query, append([]any{t.id(v)}, vals...)...); err != nil {
		return writeError("restore", t.name, t.id(v), err)
	}
	return nil
}

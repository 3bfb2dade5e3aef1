package backup

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/inkwell/internal/ordering"
	"github.com/roach88/inkwell/internal/store"
)

//go:embed snapshot.cue
var schemaSource string

// ValidationError describes why a snapshot was rejected.
type ValidationError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("invalid snapshot: %d:%d: %s: %s", e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("invalid snapshot: %s: %s", e.Field, e.Message)
}

// cue.Context is not safe for concurrent use.
var (
	schemaMu  sync.Mutex
	schemaCtx *cue.Context
	schemaDef cue.Value
)

func snapshotSchema() (*cue.Context, cue.Value, error) {
	if schemaCtx == nil {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaSource, cue.Filename("snapshot.cue"))
		if err := v.Err(); err != nil {
			return nil, cue.Value{}, fmt.Errorf("compile snapshot schema: %w", err)
		}
		schemaCtx = ctx
		schemaDef = v.LookupPath(cue.ParsePath("#Snapshot"))
	}
	return schemaCtx, schemaDef, nil
}

// ValidateSchema checks raw JSON against the #Snapshot CUE definition.
func ValidateSchema(data []byte) error {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	ctx, def, err := snapshotSchema()
	if err != nil {
		return err
	}

	expr, err := cuejson.Extract("snapshot.json", data)
	if err != nil {
		return &ValidationError{Field: "json", Message: err.Error()}
	}
	v := def.Unify(ctx.BuildExpr(expr))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Field: "schema", Message: err.Error()}
	}
	first := errs[0]
	ve := &ValidationError{Field: "schema", Message: first.Error()}
	if path := first.Path(); len(path) > 0 {
		ve.Field = strings.Join(path, ".")
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ve.Pos = positions[0]
	}
	return ve
}

// CheckIntegrity verifies what the schema cannot: unique ids, children that
// reference a book in the snapshot, one log row per (book, date), and dense
// chapter and plot event order within each book.
func CheckIntegrity(snap store.Snapshot) error {
	books := make(map[int64]bool, len(snap.Books))
	for _, b := range snap.Books {
		if books[b.ID] {
			return &ValidationError{Field: "books", Message: fmt.Sprintf("duplicate id %d", b.ID)}
		}
		books[b.ID] = true
	}

	type row struct{ id, book int64 }
	check := func(field string, rows []row) error {
		seen := make(map[int64]bool, len(rows))
		for _, r := range rows {
			if seen[r.id] {
				return &ValidationError{Field: field, Message: fmt.Sprintf("duplicate id %d", r.id)}
			}
			seen[r.id] = true
			if !books[r.book] {
				return &ValidationError{Field: field, Message: fmt.Sprintf("id %d references missing book %d", r.id, r.book)}
			}
		}
		return nil
	}
	rowsOf := func(n int, at func(i int) (int64, int64)) []row {
		out := make([]row, n)
		for i := range out {
			out[i].id, out[i].book = at(i)
		}
		return out
	}

	groups := []struct {
		field string
		rows  []row
	}{
		{"characters", rowsOf(len(snap.Characters), func(i int) (int64, int64) { return snap.Characters[i].ID, snap.Characters[i].BookID })},
		{"locations", rowsOf(len(snap.Locations), func(i int) (int64, int64) { return snap.Locations[i].ID, snap.Locations[i].BookID })},
		{"plot_events", rowsOf(len(snap.PlotEvents), func(i int) (int64, int64) { return snap.PlotEvents[i].ID, snap.PlotEvents[i].BookID })},
		{"chapters", rowsOf(len(snap.Chapters), func(i int) (int64, int64) { return snap.Chapters[i].ID, snap.Chapters[i].BookID })},
		{"themes", rowsOf(len(snap.Themes), func(i int) (int64, int64) { return snap.Themes[i].ID, snap.Themes[i].BookID })},
		{"props", rowsOf(len(snap.Props), func(i int) (int64, int64) { return snap.Props[i].ID, snap.Props[i].BookID })},
	}
	for _, g := range groups {
		if err := check(g.field, g.rows); err != nil {
			return err
		}
	}

	type day struct {
		book int64
		date string
	}
	logs := make(map[day]bool, len(snap.WritingLogs))
	for _, l := range snap.WritingLogs {
		if !books[l.BookID] {
			return &ValidationError{Field: "writing_logs", Message: fmt.Sprintf("log %s references missing book %d", l.Date, l.BookID)}
		}
		key := day{l.BookID, l.Date}
		if logs[key] {
			return &ValidationError{Field: "writing_logs", Message: fmt.Sprintf("duplicate log for book %d on %s", l.BookID, l.Date)}
		}
		logs[key] = true
	}

	chapterOrders := make(map[int64][]int)
	for _, c := range snap.Chapters {
		chapterOrders[c.BookID] = append(chapterOrders[c.BookID], c.Order)
	}
	if err := checkDense("chapters", chapterOrders); err != nil {
		return err
	}
	eventOrders := make(map[int64][]int)
	for _, p := range snap.PlotEvents {
		eventOrders[p.BookID] = append(eventOrders[p.BookID], p.Order)
	}
	return checkDense("plot_events", eventOrders)
}

func checkDense(field string, byBook map[int64][]int) error {
	ids := make([]int64, 0, len(byBook))
	for id := range byBook {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if !ordering.IsDense(byBook[id]) {
			return &ValidationError{Field: field, Message: fmt.Sprintf("order of book %d is not 1..%d", id, len(byBook[id]))}
		}
	}
	return nil
}

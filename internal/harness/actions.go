package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/inkwell/internal/library"
	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/store"
)

// Args are the arguments of one scenario step as decoded from YAML.
type Args map[string]any

// actionFunc performs one step. The result map becomes the completion
// result; a returned error becomes the completion case.
type actionFunc func(ctx context.Context, h *Harness, args Args) (map[string]any, error)

// actions is the table of every operation a scenario can invoke.
var actions = map[string]actionFunc{
	"library.create_book": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		title, err := args.String("title")
		if err != nil {
			return nil, err
		}
		target, err := args.OptInt("daily_target")
		if err != nil {
			return nil, err
		}
		id, err := h.library.CreateBook(ctx, title, target)
		if err != nil {
			return nil, err
		}
		return idResult(id), nil
	},
	"library.update_book": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		id, fields, err := args.idAndFields()
		if err != nil {
			return nil, err
		}
		return nil, h.library.UpdateBook(ctx, id, fields)
	},
	"library.archive": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		ids, err := args.IDs("ids")
		if err != nil {
			return nil, err
		}
		return nil, h.library.Archive(ctx, ids...)
	},
	"library.unarchive": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		ids, err := args.IDs("ids")
		if err != nil {
			return nil, err
		}
		return nil, h.library.Unarchive(ctx, ids...)
	},
	"library.pin": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		id, err := args.Int64("id")
		if err != nil {
			return nil, err
		}
		if err := h.library.Pin(ctx, id); err != nil {
			return nil, err
		}
		b, _ := h.library.Book(id)
		return map[string]any{"pin_order": b.PinOrder}, nil
	},
	"library.unpin": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		id, err := args.Int64("id")
		if err != nil {
			return nil, err
		}
		return nil, h.library.Unpin(ctx, id)
	},
	"library.delete_book": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		id, err := args.Int64("id")
		if err != nil {
			return nil, err
		}
		return nil, h.library.DeleteBook(ctx, id)
	},
	"library.set_sort": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		key, err := args.String("key")
		if err != nil {
			return nil, err
		}
		if err := h.library.SetSort(ctx, library.SortKey(key)); err != nil {
			return nil, err
		}
		books := h.library.Books()
		titles := make([]string, len(books))
		for i, b := range books {
			titles[i] = b.Title
		}
		return map[string]any{"titles": titles}, nil
	},

	"workspace.open": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		id, err := args.Int64("book")
		if err != nil {
			return nil, err
		}
		return nil, h.workspace.Open(ctx, id)
	},
	"workspace.close": func(_ context.Context, h *Harness, _ Args) (map[string]any, error) {
		h.workspace.Close()
		return nil, nil
	},

	"workspace.add_character": addAction(func(ctx context.Context, h *Harness, c model.Character) (int64, error) {
		return h.workspace.AddCharacter(ctx, c)
	}),
	"workspace.add_location": addAction(func(ctx context.Context, h *Harness, l model.Location) (int64, error) {
		return h.workspace.AddLocation(ctx, l)
	}),
	"workspace.add_theme": addAction(func(ctx context.Context, h *Harness, t model.Theme) (int64, error) {
		return h.workspace.AddTheme(ctx, t)
	}),
	"workspace.add_prop": addAction(func(ctx context.Context, h *Harness, p model.Prop) (int64, error) {
		return h.workspace.AddProp(ctx, p)
	}),
	"workspace.add_plot_event": addAction(func(ctx context.Context, h *Harness, p model.PlotEvent) (int64, error) {
		return h.workspace.AddPlotEvent(ctx, p)
	}),
	"workspace.add_chapter": addAction(func(ctx context.Context, h *Harness, c model.Chapter) (int64, error) {
		return h.workspace.AddChapter(ctx, c)
	}),

	"workspace.update_character": updateAction(func(h *Harness) func(context.Context, int64, store.Fields) error {
		return h.workspace.UpdateCharacter
	}),
	"workspace.update_location": updateAction(func(h *Harness) func(context.Context, int64, store.Fields) error {
		return h.workspace.UpdateLocation
	}),
	"workspace.update_theme": updateAction(func(h *Harness) func(context.Context, int64, store.Fields) error {
		return h.workspace.UpdateTheme
	}),
	"workspace.update_prop": updateAction(func(h *Harness) func(context.Context, int64, store.Fields) error {
		return h.workspace.UpdateProp
	}),
	"workspace.update_plot_event": updateAction(func(h *Harness) func(context.Context, int64, store.Fields) error {
		return h.workspace.UpdatePlotEvent
	}),
	"workspace.update_chapter": updateAction(func(h *Harness) func(context.Context, int64, store.Fields) error {
		return h.workspace.UpdateChapter
	}),

	"workspace.delete_character": deleteAction(func(h *Harness) func(context.Context, int64) error {
		return h.workspace.DeleteCharacter
	}),
	"workspace.delete_location": deleteAction(func(h *Harness) func(context.Context, int64) error {
		return h.workspace.DeleteLocation
	}),
	"workspace.delete_theme": deleteAction(func(h *Harness) func(context.Context, int64) error {
		return h.workspace.DeleteTheme
	}),
	"workspace.delete_prop": deleteAction(func(h *Harness) func(context.Context, int64) error {
		return h.workspace.DeleteProp
	}),
	"workspace.delete_plot_event": deleteAction(func(h *Harness) func(context.Context, int64) error {
		return h.workspace.DeletePlotEvent
	}),
	"workspace.delete_chapter": deleteAction(func(h *Harness) func(context.Context, int64) error {
		return h.workspace.DeleteChapter
	}),

	"workspace.move_chapter": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		from, to, err := args.fromTo()
		if err != nil {
			return nil, err
		}
		if err := h.workspace.MoveChapter(ctx, from, to); err != nil {
			return nil, err
		}
		return chapterOrder(h), nil
	},
	"workspace.reorder_chapters": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		ids, err := args.IDs("ids")
		if err != nil {
			return nil, err
		}
		if err := h.workspace.ReorderChapters(ctx, ids); err != nil {
			return nil, err
		}
		return chapterOrder(h), nil
	},
	"workspace.move_plot_event": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		from, to, err := args.fromTo()
		if err != nil {
			return nil, err
		}
		if err := h.workspace.MovePlotEvent(ctx, from, to); err != nil {
			return nil, err
		}
		return plotEventOrder(h), nil
	},
	"workspace.reorder_plot_events": func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		ids, err := args.IDs("ids")
		if err != nil {
			return nil, err
		}
		if err := h.workspace.ReorderPlotEvents(ctx, ids); err != nil {
			return nil, err
		}
		return plotEventOrder(h), nil
	},

	"clock.advance_days": func(_ context.Context, h *Harness, args Args) (map[string]any, error) {
		n, err := args.Int("days")
		if err != nil {
			return nil, err
		}
		h.clock.AddDays(n)
		return map[string]any{"today": model.DateOf(h.clock.Now())}, nil
	},
}

// addAction decodes the step args into an entity and adds it to the open
// book.
func addAction[T any](add func(ctx context.Context, h *Harness, v T) (int64, error)) actionFunc {
	return func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		var v T
		if err := args.decode(&v); err != nil {
			return nil, err
		}
		id, err := add(ctx, h, v)
		if err != nil {
			return nil, err
		}
		return idResult(id), nil
	}
}

func updateAction(method func(h *Harness) func(context.Context, int64, store.Fields) error) actionFunc {
	return func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		id, fields, err := args.idAndFields()
		if err != nil {
			return nil, err
		}
		return nil, method(h)(ctx, id, fields)
	}
}

func deleteAction(method func(h *Harness) func(context.Context, int64) error) actionFunc {
	return func(ctx context.Context, h *Harness, args Args) (map[string]any, error) {
		id, err := args.Int64("id")
		if err != nil {
			return nil, err
		}
		return nil, method(h)(ctx, id)
	}
}

func idResult(id int64) map[string]any {
	return map[string]any{"id": id}
}

func chapterOrder(h *Harness) map[string]any {
	chapters := h.workspace.Chapters()
	ids := make([]int64, len(chapters))
	for i, c := range chapters {
		ids[i] = c.ID
	}
	return map[string]any{"ids": ids}
}

func plotEventOrder(h *Harness) map[string]any {
	events := h.workspace.PlotEvents()
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return map[string]any{"ids": ids}
}

// String returns a required string argument.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q: expected string, got %T", key, v)
	}
	return s, nil
}

// Int64 returns a required integer argument.
func (a Args) Int64(key string) (int64, error) {
	v, ok := a[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, fmt.Errorf("argument %q: expected integer, got %T", key, v)
	}
	return n, nil
}

// Int returns a required integer argument.
func (a Args) Int(key string) (int, error) {
	n, err := a.Int64(key)
	return int(n), err
}

// OptInt returns an integer argument, or 0 when absent.
func (a Args) OptInt(key string) (int, error) {
	if _, ok := a[key]; !ok {
		return 0, nil
	}
	return a.Int(key)
}

// IDs returns a list of ids. A single "id" argument is accepted in place
// of the list.
func (a Args) IDs(key string) ([]int64, error) {
	v, ok := a[key]
	if !ok {
		id, err := a.Int64("id")
		if err != nil {
			return nil, fmt.Errorf("missing argument %q", key)
		}
		return []int64{id}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q: expected list, got %T", key, v)
	}
	ids := make([]int64, len(list))
	for i, item := range list {
		n, ok := toInt64(item)
		if !ok {
			return nil, fmt.Errorf("argument %q[%d]: expected integer, got %T", key, i, item)
		}
		ids[i] = n
	}
	return ids, nil
}

// Fields returns a partial update. List and reference columns are
// converted to the types the store and workspace expect.
func (a Args) Fields(key string) (store.Fields, error) {
	v, ok := a[key]
	if !ok {
		return nil, fmt.Errorf("missing argument %q", key)
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("argument %q: expected mapping, got %T", key, v)
	}

	fields := make(store.Fields, len(raw))
	for col, val := range raw {
		switch col {
		case "relationships":
			var rels []model.Relationship
			if err := remarshal(val, &rels); err != nil {
				return nil, fmt.Errorf("field %q: %w", col, err)
			}
			fields[col] = rels
		case "character_ids":
			var ids []int64
			if err := remarshal(val, &ids); err != nil {
				return nil, fmt.Errorf("field %q: %w", col, err)
			}
			fields[col] = ids
		case "location_id":
			var id *int64
			if err := remarshal(val, &id); err != nil {
				return nil, fmt.Errorf("field %q: %w", col, err)
			}
			fields[col] = id
		default:
			fields[col] = val
		}
	}
	return fields, nil
}

func (a Args) idAndFields() (int64, store.Fields, error) {
	id, err := a.Int64("id")
	if err != nil {
		return 0, nil, err
	}
	fields, err := a.Fields("fields")
	if err != nil {
		return 0, nil, err
	}
	return id, fields, nil
}

// fromTo returns the 1-based "from" and "to" positions as 0-based indices.
// Out-of-range values are passed through for the workspace to reject.
func (a Args) fromTo() (int, int, error) {
	from, err := a.Int("from")
	if err != nil {
		return 0, 0, err
	}
	to, err := a.Int("to")
	if err != nil {
		return 0, 0, err
	}
	return from - 1, to - 1, nil
}

// decode fills v from the args by their JSON names.
func (a Args) decode(v any) error {
	if err := remarshal(map[string]any(a), v); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

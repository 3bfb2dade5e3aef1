package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/inkwell/internal/model"
)

// ReplaceChapters persists the order of every given chapter in one
// transaction. Only sort_order is written; the rest of each row is whatever
// the store already holds. If any id no longer exists in its book nothing is
// written and NOT_FOUND is returned.
func (s *Store) ReplaceChapters(ctx context.Context, chapters []model.Chapter) error {
	return writeOrder(ctx, s, &chaptersTable, chapters, func(c model.Chapter) int { return c.Order })
}

// ReplacePlotEvents persists the order of every given plot event in one
// transaction, like ReplaceChapters.
func (s *Store) ReplacePlotEvents(ctx context.Context, events []model.PlotEvent) error {
	return writeOrder(ctx, s, &plotEventsTable, events, func(p model.PlotEvent) int { return p.Order })
}

func writeOrder[T any](ctx context.Context, s *Store, t *table[T], items []T, order func(T) int) error {
	if len(items) == 0 {
		return nil
	}
	stmt := fmt.Sprintf("UPDATE %s SET sort_order = ? WHERE id = ? AND book_id = ?", t.name)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, v := range items {
			res, err := tx.ExecContext(ctx, stmt, order(v), t.id(v), t.bookOf(v))
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return notFound("reorder", t.name, t.id(v))
			}
		}
		return nil
	})
	return writeError("reorder", t.name, 0, err)
}

// renumber rewrites sort_order of a book's rows to 1..N, keeping their
// current relative order.
func renumber(ctx context.Context, tx *sql.Tx, tableName string, bookID int64) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE book_id = ? ORDER BY sort_order, id", tableName), bookID)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	stmt := fmt.Sprintf("UPDATE %s SET sort_order = ? WHERE id = ?", tableName)
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, stmt, i+1, id); err != nil {
			return err
		}
	}
	return nil
}

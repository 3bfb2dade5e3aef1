package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// DeleteBookCascade deletes a book and every row that references it
// (characters, locations, plot events, chapters, themes, props, writing logs)
// in one transaction. A failure part way rolls everything back and is
// reported as a single error. Deleting a missing book is a no-op and
// reports deleted=false.
func (s *Store) DeleteBookCascade(ctx context.Context, bookID int64) (deleted bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range childTables {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE book_id = ?", name), bookID); err != nil {
				return fmt.Errorf("delete from %s: %w", name, err)
			}
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM books WHERE id = ?", bookID)
		if err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	if err != nil {
		return false, &Error{Code: CodeWriteFailed, Op: "delete cascade", Table: "books", ID: bookID, Err: err}
	}
	if !deleted {
		slog.Debug("cascade delete of missing book", "book", bookID)
	}
	return deleted, nil
}

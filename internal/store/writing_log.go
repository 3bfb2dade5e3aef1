package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/inkwell/internal/model"
)

// UpsertWritingLog adds delta to the (bookID, date) row, inserting it with
// value delta when absent. There is never more than one row per pair.
func (s *Store) UpsertWritingLog(ctx context.Context, bookID int64, date string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return upsertWritingLog(ctx, s.db, bookID, date, delta)
}

func upsertWritingLog(ctx context.Context, q queryer, bookID int64, date string, delta int) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO writing_logs (book_id, date, word_count)
		VALUES (?, ?, ?)
		ON CONFLICT(book_id, date) DO UPDATE SET word_count = word_count + excluded.word_count
	`, bookID, date, delta)
	return writeError("upsert", "writing_logs", bookID, err)
}

// RecordWords applies a word-count change to a book in one transaction: the
// book's cumulative count moves by delta (never below zero), updated_at is
// bumped, and positive deltas are added to the day's writing log.
func (s *Store) RecordWords(ctx context.Context, bookID int64, date string, delta int) error {
	if delta == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.recordWordsTx(ctx, tx, bookID, date, delta)
	})
	return writeError("record words", "books", bookID, err)
}

func (s *Store) recordWordsTx(ctx context.Context, tx *sql.Tx, bookID int64, date string, delta int) error {
	if delta == 0 {
		return nil
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE books SET word_count = MAX(0, word_count + ?), updated_at = ? WHERE id = ?`,
		delta, formatTime(s.now()), bookID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("record words", "books", bookID)
	}
	if delta > 0 {
		return upsertWritingLog(ctx, tx, bookID, date, delta)
	}
	return nil
}

// WritingLog returns the row for (bookID, date).
func (s *Store) WritingLog(ctx context.Context, bookID int64, date string) (model.WritingLog, error) {
	l := model.WritingLog{BookID: bookID, Date: date}
	err := s.db.QueryRowContext(ctx,
		`SELECT word_count FROM writing_logs WHERE book_id = ? AND date = ?`, bookID, date,
	).Scan(&l.WordCount)
	if err == sql.ErrNoRows {
		return l, notFound("get", "writing_logs", bookID)
	}
	if err != nil {
		return l, fmt.Errorf("get writing log: %w", err)
	}
	return l, nil
}

// WritingLogs returns every writing-log row ordered by date then book.
func (s *Store) WritingLogs(ctx context.Context) ([]model.WritingLog, error) {
	return readWritingLogs(ctx, s.db)
}

func readWritingLogs(ctx context.Context, q queryer) ([]model.WritingLog, error) {
	rows, err := q.QueryContext(ctx, `SELECT book_id, date, word_count FROM writing_logs ORDER BY date, book_id`)
	if err != nil {
		return nil, fmt.Errorf("query writing logs: %w", err)
	}
	defer rows.Close()

	logs := []model.WritingLog{}
	for rows.Next() {
		var l model.WritingLog
		if err := rows.Scan(&l.BookID, &l.Date, &l.WordCount); err != nil {
			return nil, fmt.Errorf("scan writing log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate writing logs: %w", err)
	}
	return logs, nil
}

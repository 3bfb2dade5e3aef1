package store

import (
	"context"
	"database/sql"

	"github.com/roach88/inkwell/internal/model"
)

// The chapter writes below keep a book's word_count and writing log in step
// with its chapters: the row change and the word bookkeeping commit or roll
// back together. date is the writing-log day credited with positive deltas.

// AddChapterWords appends c after the book's last chapter and credits its
// word count to the book.
func (s *Store) AddChapterWords(ctx context.Context, c model.Chapter, date string) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if id, err = addTx(ctx, tx, &chaptersTable, c); err != nil {
			return err
		}
		return s.recordWordsTx(ctx, tx, c.BookID, date, c.WordCount)
	})
	if err != nil {
		return 0, writeError("add", chaptersTable.name, 0, err)
	}
	return id, nil
}

// UpdateChapterWords applies a partial update to a chapter and moves the
// book's total by the change in the chapter's word count. It reports rows
// affected and the applied delta; a missing chapter affects zero rows.
func (s *Store) UpdateChapterWords(ctx context.Context, id int64, fields Fields, date string) (int64, int, error) {
	m := &chaptersTable.tableMeta
	query, args, err := s.updateStatement(m, id, fields)
	if err != nil || query == "" {
		return 0, 0, err
	}

	var n int64
	var delta int
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		bookID, before, err := chapterWords(ctx, tx, id)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if n, err = execUpdate(ctx, tx, m, id, query, args); err != nil || n == 0 {
			return err
		}
		_, after, err := chapterWords(ctx, tx, id)
		if err != nil {
			return err
		}
		delta = after - before
		return s.recordWordsTx(ctx, tx, bookID, date, delta)
	})
	if err != nil {
		return 0, 0, writeError("update", m.name, id, err)
	}
	return n, delta, nil
}

// DeleteChapterWords removes a chapter, renumbers the rest and subtracts its
// words from the book. It reports rows affected and the applied delta.
func (s *Store) DeleteChapterWords(ctx context.Context, id int64, date string) (int64, int, error) {
	m := &chaptersTable.tableMeta

	var n int64
	var delta int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		bookID, words, err := chapterWords(ctx, tx, id)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if n, err = deleteTx(ctx, tx, m, id); err != nil || n == 0 {
			return err
		}
		delta = -words
		return s.recordWordsTx(ctx, tx, bookID, date, delta)
	})
	if err != nil {
		return 0, 0, writeError("delete", m.name, id, err)
	}
	return n, delta, nil
}

func chapterWords(ctx context.Context, tx *sql.Tx, id int64) (bookID int64, words int, err error) {
	err = tx.QueryRowContext(ctx, `SELECT book_id, word_count FROM chapters WHERE id = ?`, id).Scan(&bookID, &words)
	return bookID, words, err
}

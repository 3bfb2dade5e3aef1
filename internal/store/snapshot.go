package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/inkwell/internal/model"
)

// Snapshot holds every row of every table.
type Snapshot struct {
	Books       []model.Book       `json:"books"`
	Characters  []model.Character  `json:"characters"`
	Locations   []model.Location   `json:"locations"`
	PlotEvents  []model.PlotEvent  `json:"plot_events"`
	Chapters    []model.Chapter    `json:"chapters"`
	Themes      []model.Theme      `json:"themes"`
	Props       []model.Prop       `json:"props"`
	WritingLogs []model.WritingLog `json:"writing_logs"`
}

// Export reads all rows from every table inside one transaction, so the
// snapshot is consistent.
func (s *Store) Export(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if snap.Books, err = listAll(ctx, tx, &booksTable); err != nil {
			return err
		}
		if snap.Characters, err = listAll(ctx, tx, &charactersTable); err != nil {
			return err
		}
		if snap.Locations, err = listAll(ctx, tx, &locationsTable); err != nil {
			return err
		}
		if snap.PlotEvents, err = listAll(ctx, tx, &plotEventsTable); err != nil {
			return err
		}
		if snap.Chapters, err = listAll(ctx, tx, &chaptersTable); err != nil {
			return err
		}
		if snap.Themes, err = listAll(ctx, tx, &themesTable); err != nil {
			return err
		}
		if snap.Props, err = listAll(ctx, tx, &propsTable); err != nil {
			return err
		}
		snap.WritingLogs, err = readWritingLogs(ctx, tx)
		return err
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("export: %w", err)
	}
	return snap, nil
}

// ReplaceAll atomically replaces the contents of every table with snap.
// Ids are preserved. On any failure the previous contents remain.
func (s *Store) ReplaceAll(ctx context.Context, snap Snapshot) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range childTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+name); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM books"); err != nil {
			return err
		}

		for _, b := range snap.Books {
			if err := insertWithID(ctx, tx, &booksTable, b); err != nil {
				return err
			}
		}
		if err := insertAll(ctx, tx, &charactersTable, snap.Characters); err != nil {
			return err
		}
		if err := insertAll(ctx, tx, &locationsTable, snap.Locations); err != nil {
			return err
		}
		if err := insertAll(ctx, tx, &plotEventsTable, snap.PlotEvents); err != nil {
			return err
		}
		if err := insertAll(ctx, tx, &chaptersTable, snap.Chapters); err != nil {
			return err
		}
		if err := insertAll(ctx, tx, &themesTable, snap.Themes); err != nil {
			return err
		}
		if err := insertAll(ctx, tx, &propsTable, snap.Props); err != nil {
			return err
		}
		for _, l := range snap.WritingLogs {
			if err := upsertWritingLog(ctx, tx, l.BookID, l.Date, l.WordCount); err != nil {
				return err
			}
		}
		return nil
	})
	return writeError("replace all", "", 0, err)
}

func insertAll[T any](ctx context.Context, tx *sql.Tx, t *table[T], items []T) error {
	for _, v := range items {
		if err := insertWithID(ctx, tx, t, v); err != nil {
			return err
		}
	}
	return nil
}

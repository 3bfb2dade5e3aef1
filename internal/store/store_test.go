package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inkwell/internal/model"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_AllTablesPresent(t *testing.T) {
	s := createTestStore(t)

	tables := []string{"books", "characters", "locations", "plot_events", "chapters", "themes", "props", "writing_logs", "settings"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LatestVersion(), v)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas_Applied(t *testing.T) {
	s := createTestStore(t)

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestMigrate_ForwardWithoutDataLoss(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	// Database created by a build that only knew the first two versions.
	old, err := openWithMigrations(path, migrations[:2])
	require.NoError(t, err)
	v, err := old.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, v)

	bookID, err := old.AddBook(ctx, model.Book{Title: "Old Book"})
	require.NoError(t, err)
	_, err = old.AddChapter(ctx, model.Chapter{BookID: bookID, Title: "One"})
	require.NoError(t, err)
	require.NoError(t, old.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, err = s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, LatestVersion(), v)

	book, err := s.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, "Old Book", book.Title)

	chapters, err := s.Chapters(ctx, bookID)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, 1, chapters[0].Order)

	// Tables added by later versions are usable.
	require.NoError(t, s.UpsertWritingLog(ctx, bookID, "2024-01-01", 10))
}

func TestMigrate_RefusesDowngrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.True(t, IsSchemaTooNew(err), "got %v", err)
}

func TestMigrate_FailedMigrationRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	broken := append([]Migration{}, migrations[:1]...)
	broken = append(broken, Migration{
		Version: 2,
		Name:    "broken",
		Statements: []string{
			`CREATE TABLE half_done (id INTEGER)`,
			`THIS IS NOT SQL`,
		},
	})

	_, err := openWithMigrations(path, broken)
	require.Error(t, err)

	s, err := openWithMigrations(path, migrations[:1])
	require.NoError(t, err)
	defer s.Close()

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'half_done'").Scan(&n))
	assert.Zero(t, n)
}

func TestLatestVersion(t *testing.T) {
	assert.Equal(t, 5, LatestVersion())
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "migrations must be consecutive")
	}
}

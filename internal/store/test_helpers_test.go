package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/testutil"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(testutil.At(2024, time.January, 10)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestBook inserts a book and returns its id.
func createTestBook(t *testing.T, s *Store, title string) int64 {
	t.Helper()
	id, err := s.AddBook(context.Background(), model.Book{Title: title})
	if err != nil {
		t.Fatalf("AddBook(%q) failed: %v", title, err)
	}
	return id
}

func countRows(t *testing.T, s *Store, table string, bookID int64) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE book_id = ?", bookID).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

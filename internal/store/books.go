package store

import (
	"context"

	"github.com/roach88/inkwell/internal/model"
)

// Books returns every book ordered by id.
func (s *Store) Books(ctx context.Context) ([]model.Book, error) {
	return listAll(ctx, s.db, &booksTable)
}

// GetBook returns one book. Returns a NOT_FOUND error if it does not exist.
func (s *Store) GetBook(ctx context.Context, id int64) (model.Book, error) {
	return getByID(ctx, s.db, &booksTable, id)
}

// AddBook inserts a book and returns its id. Zero timestamps are set to now.
func (s *Store) AddBook(ctx context.Context, b model.Book) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	return insertRow(ctx, s.db, &booksTable, b)
}

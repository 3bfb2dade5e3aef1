package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inkwell/internal/model"
)

// lockBookWords makes every write to books.word_count fail until the
// returned func is called.
func lockBookWords(t *testing.T, s *Store) func() {
	t.Helper()
	_, err := s.db.Exec(`CREATE TRIGGER lock_words BEFORE UPDATE OF word_count ON books
		BEGIN SELECT RAISE(ABORT, 'word count locked'); END`)
	require.NoError(t, err)
	return func() {
		_, err := s.db.Exec(`DROP TRIGGER lock_words`)
		require.NoError(t, err)
	}
}

func bookWords(t *testing.T, s *Store, bookID int64) int {
	t.Helper()
	b, err := s.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	return b.WordCount
}

func TestChapterWords_TrackBook(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	bookID := createTestBook(t, s, "B")

	id, err := s.AddChapterWords(ctx, model.Chapter{BookID: bookID, Title: "One", WordCount: 100}, "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, 100, bookWords(t, s, bookID))

	n, delta, err := s.UpdateChapterWords(ctx, id, Fields{"word_count": 250}, "2024-01-11")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 150, delta)
	assert.Equal(t, 250, bookWords(t, s, bookID))

	l, err := s.WritingLog(ctx, bookID, "2024-01-11")
	require.NoError(t, err)
	assert.Equal(t, 150, l.WordCount)

	// Other fields leave the total alone.
	_, delta, err = s.UpdateChapterWords(ctx, id, Fields{"title": "Uno"}, "2024-01-11")
	require.NoError(t, err)
	assert.Zero(t, delta)
	assert.Equal(t, 250, bookWords(t, s, bookID))

	n, delta, err = s.DeleteChapterWords(ctx, id, "2024-01-12")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, -250, delta)
	assert.Zero(t, bookWords(t, s, bookID))
}

func TestChapterWords_MissingChapter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	n, delta, err := s.UpdateChapterWords(ctx, 404, Fields{"word_count": 10}, "2024-01-10")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, delta)

	n, _, err = s.DeleteChapterWords(ctx, 404, "2024-01-10")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChapterWords_FailedBookkeepingRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	bookID := createTestBook(t, s, "B")

	id, err := s.AddChapterWords(ctx, model.Chapter{BookID: bookID, Title: "One", WordCount: 100}, "2024-01-10")
	require.NoError(t, err)

	unlock := lockBookWords(t, s)
	_, _, err = s.UpdateChapterWords(ctx, id, Fields{"word_count": 500}, "2024-01-10")
	require.Error(t, err)
	_, err = s.AddChapterWords(ctx, model.Chapter{BookID: bookID, Title: "Two", WordCount: 40}, "2024-01-10")
	require.Error(t, err)
	_, _, err = s.DeleteChapterWords(ctx, id, "2024-01-10")
	require.Error(t, err)
	unlock()

	ch, err := s.GetChapter(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100, ch.WordCount, "chapter write rolled back with the book total")
	assert.Equal(t, 1, countRows(t, s, "chapters", bookID))

	_, _, err = s.UpdateChapterWords(ctx, id, Fields{"word_count": 600}, "2024-01-10")
	require.NoError(t, err)
	ch, err = s.GetChapter(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 600, ch.WordCount)
	assert.Equal(t, 600, bookWords(t, s, bookID))

	l, err := s.WritingLog(ctx, bookID, "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, 600, l.WordCount)
}

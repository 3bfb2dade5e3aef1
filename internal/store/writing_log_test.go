package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertWritingLog_Accumulates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	bookID := createTestBook(t, s, "B")

	require.NoError(t, s.UpsertWritingLog(ctx, bookID, "2024-01-01", 50))
	require.NoError(t, s.UpsertWritingLog(ctx, bookID, "2024-01-01", 25))

	assert.Equal(t, 1, countRows(t, s, "writing_logs", bookID))
	l, err := s.WritingLog(ctx, bookID, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, 75, l.WordCount)
}

func TestUpsertWritingLog_ConcurrentWriters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	bookID := createTestBook(t, s, "B")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.UpsertWritingLog(ctx, bookID, "2024-01-02", 5))
		}()
	}
	wg.Wait()

	l, err := s.WritingLog(ctx, bookID, "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, 100, l.WordCount)
}

func TestRecordWords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	bookID := createTestBook(t, s, "B")

	require.NoError(t, s.RecordWords(ctx, bookID, "2024-01-03", 120))
	require.NoError(t, s.RecordWords(ctx, bookID, "2024-01-03", -20))

	b, err := s.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 100, b.WordCount)

	// Only words added are logged.
	l, err := s.WritingLog(ctx, bookID, "2024-01-03")
	require.NoError(t, err)
	assert.Equal(t, 120, l.WordCount)

	// The cumulative count never goes negative.
	require.NoError(t, s.RecordWords(ctx, bookID, "2024-01-04", -500))
	b, err = s.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.Zero(t, b.WordCount)
	_, err = s.WritingLog(ctx, bookID, "2024-01-04")
	assert.True(t, IsNotFound(err))
}

func TestRecordWords_UnknownBook(t *testing.T) {
	s := createTestStore(t)

	err := s.RecordWords(context.Background(), 404, "2024-01-03", 10)
	require.Error(t, err)
	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestWritingLogs_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := createTestBook(t, s, "A")
	b := createTestBook(t, s, "B")

	require.NoError(t, s.UpsertWritingLog(ctx, b, "2024-01-02", 1))
	require.NoError(t, s.UpsertWritingLog(ctx, a, "2024-01-02", 2))
	require.NoError(t, s.UpsertWritingLog(ctx, a, "2024-01-01", 3))

	logs, err := s.WritingLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "2024-01-01", logs[0].Date)
	assert.Equal(t, a, logs[1].BookID)
	assert.Equal(t, b, logs[2].BookID)
}

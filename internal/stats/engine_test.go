package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inkwell/internal/bus"
	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/testutil"
)

// memStore serves fixed logs and books and counts loads.
type memStore struct {
	mu    sync.Mutex
	logs  []model.WritingLog
	books []model.Book
	loads int
	err   error
}

func (m *memStore) WritingLogs(context.Context) ([]model.WritingLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.loads++
	return append([]model.WritingLog(nil), m.logs...), nil
}

func (m *memStore) Books(context.Context) ([]model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Book(nil), m.books...), nil
}

func (m *memStore) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

func runBus(t *testing.T) *bus.Bus {
	t.Helper()
	b := bus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return b
}

func flush(t *testing.T, b *bus.Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Flush(ctx))
}

func TestEngine_CachesSession(t *testing.T) {
	st := &memStore{
		logs:  []model.WritingLog{{BookID: 1, Date: "2024-01-10", WordCount: 200}},
		books: []model.Book{{ID: 1, WordCount: 200}},
	}
	e := New(st, runBus(t), WithClock(testutil.At(2024, time.January, 10)))
	ctx := context.Background()

	r, err := e.Calculate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, r.TodayWords)

	// New rows are not seen until the session is cleared.
	st.mu.Lock()
	st.logs = append(st.logs, model.WritingLog{BookID: 1, Date: "2024-01-09", WordCount: 50})
	st.mu.Unlock()

	one := int64(1)
	r, err = e.Calculate(ctx, &one)
	require.NoError(t, err)
	assert.Equal(t, 1, r.LongestStreak)
	assert.Equal(t, 1, st.loadCount())

	e.Clear()
	r, err = e.Calculate(ctx, &one)
	require.NoError(t, err)
	assert.Equal(t, 2, r.LongestStreak)
	assert.Equal(t, 2, st.loadCount())
}

func TestEngine_StatsChangedDropsCache(t *testing.T) {
	st := &memStore{}
	b := runBus(t)
	e := New(st, b, WithClock(testutil.At(2024, time.January, 10)))
	t.Cleanup(e.Detach)
	ctx := context.Background()

	_, err := e.Calculate(ctx, nil)
	require.NoError(t, err)

	b.Publish(bus.TopicStatsChanged, bus.StatsChanged{BookID: 1, Delta: 10})
	flush(t, b)

	_, err = e.Calculate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, st.loadCount())

	b.Publish(bus.TopicFor(model.KindCharacter, bus.OpAdded), bus.EntityChanged{})
	flush(t, b)
	_, err = e.Calculate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, st.loadCount(), "unrelated events keep the cache")
}

func TestEngine_LoadError(t *testing.T) {
	st := &memStore{err: errors.New("disk gone")}
	e := New(st, runBus(t))

	_, err := e.Calculate(context.Background(), nil)
	assert.Error(t, err)
}

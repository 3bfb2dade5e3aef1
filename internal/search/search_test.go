package search

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/store"
	"github.com/roach88/inkwell/internal/testutil"
)

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithClock(testutil.At(2024, time.January, 10)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// spyStore records calls and can fail one kind.
type spyStore struct {
	Store
	mu     sync.Mutex
	calls  int
	failOn model.Kind
}

func (s *spyStore) SearchByPrefix(ctx context.Context, kind model.Kind, prefix string, limit int) ([]store.Match, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if kind == s.failOn {
		return nil, errors.New("index corrupted")
	}
	if s.Store == nil {
		return []store.Match{}, nil
	}
	return s.Store.SearchByPrefix(ctx, kind, prefix, limit)
}

func names(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func TestSearch_PrefixAcrossKinds(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	bookID, err := s.AddBook(ctx, model.Book{Title: "Antares"})
	require.NoError(t, err)
	andra, err := s.AddCharacter(ctx, model.Character{BookID: bookID, Name: "Andra", Description: "Pilot of the Antares.\nBorn on Kepler."})
	require.NoError(t, err)
	_, err = s.AddCharacter(ctx, model.Character{BookID: bookID, Name: "Budi"})
	require.NoError(t, err)

	results := NewSearcher(s).Search(ctx, "An")

	assert.Equal(t, []string{"Andra", "Antares"}, names(results))
	assert.Equal(t, Result{
		Kind:    model.KindCharacter,
		Name:    "Andra",
		Snippet: "Pilot of the Antares.",
		Path:    "Antares",
		BookID:  bookID,
		ID:      andra,
	}, results[0])
	assert.Equal(t, model.KindBook, results[1].Kind)
	assert.Equal(t, BookPath, results[1].Path)
	assert.Equal(t, bookID, results[1].ID)
}

func TestSearch_CaseInsensitiveAndSorted(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	bookID, err := s.AddBook(ctx, model.Book{Title: "Harbor Lights"})
	require.NoError(t, err)
	_, err = s.AddLocation(ctx, model.Location{BookID: bookID, Name: "harbor master's office"})
	require.NoError(t, err)
	_, err = s.AddProp(ctx, model.Prop{BookID: bookID, Name: "Harpoon"})
	require.NoError(t, err)
	_, err = s.AddTheme(ctx, model.Theme{BookID: bookID, Name: "Hope"})
	require.NoError(t, err)

	results := NewSearcher(s).Search(ctx, "HAR")
	assert.Equal(t, []string{"Harbor Lights", "harbor master's office", "Harpoon"}, names(results))
}

func TestSearch_ShortQueryNeverTouchesStore(t *testing.T) {
	spy := &spyStore{}
	sr := NewSearcher(spy)

	assert.Empty(t, sr.Search(context.Background(), "A"))
	assert.Empty(t, sr.Search(context.Background(), "  b  "))
	assert.Empty(t, sr.Search(context.Background(), ""))
	assert.Zero(t, spy.calls)

	sr.Search(context.Background(), "ab")
	assert.Equal(t, len(model.AllKinds), spy.calls)
}

func TestSearch_FailureDegradesToEmpty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.AddBook(ctx, model.Book{Title: "Antares"})
	require.NoError(t, err)

	results := NewSearcher(&spyStore{Store: s, failOn: model.KindTheme}).Search(ctx, "An")
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_LimitPerKind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	bookID, err := s.AddBook(ctx, model.Book{Title: "B"})
	require.NoError(t, err)
	for _, n := range []string{"Ana", "Anb", "Anc", "And"} {
		_, err := s.AddCharacter(ctx, model.Character{BookID: bookID, Name: n})
		require.NoError(t, err)
	}

	results := NewSearcher(s, WithLimitPerKind(2), WithMinQueryLength(1)).Search(ctx, "A")
	assert.Equal(t, []string{"Ana", "Anb"}, names(results))
}

func TestSearch_NormalizesInput(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.AddBook(ctx, model.Book{Title: "Café Stories"})
	require.NoError(t, err)

	// "Cafe" followed by a combining acute accent.
	results := NewSearcher(s).Search(ctx, "  Cafe\u0301 ")
	assert.Equal(t, []string{"Café Stories"}, names(results))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "", Snippet("", 10))
	assert.Equal(t, "first", Snippet("first\nsecond", 10))
	assert.Equal(t, "abcd", Snippet("  abcd  ", 4))
	assert.Equal(t, "abc…", Snippet("abcdef", 4))
	assert.Equal(t, "ééé…", Snippet("éééééé", 4))
}

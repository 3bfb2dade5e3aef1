package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/store"
	"github.com/roach88/inkwell/internal/testutil"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "inkwell.db"), store.WithClock(testutil.At(2024, time.January, 10)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func populate(t *testing.T, s *store.Store, title string) int64 {
	t.Helper()
	ctx := context.Background()
	bookID, err := s.AddBook(ctx, model.Book{Title: title, DailyTarget: 500})
	require.NoError(t, err)
	ada, err := s.AddCharacter(ctx, model.Character{BookID: bookID, Name: "Ada"})
	require.NoError(t, err)
	_, err = s.AddCharacter(ctx, model.Character{
		BookID:        bookID,
		Name:          "Byron",
		Relationships: []model.Relationship{{TargetID: ada, Label: "father"}},
	})
	require.NoError(t, err)
	_, err = s.AddChapter(ctx, model.Chapter{BookID: bookID, Title: "One", CharacterIDs: []int64{ada}})
	require.NoError(t, err)
	_, err = s.AddChapter(ctx, model.Chapter{BookID: bookID, Title: "Two"})
	require.NoError(t, err)
	require.NoError(t, s.RecordWords(ctx, bookID, "2024-01-09", 120))
	return bookID
}

func newService(s *store.Store) *Service {
	return New(s,
		WithIDGenerator(testutil.NewSequentialIDs("snap")),
		WithClock(testutil.At(2024, time.February, 2)),
	)
}

// mutate exports src, applies fn to the decoded JSON and returns the result.
func mutate(t *testing.T, src *store.Store, fn func(doc map[string]any)) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := newService(src).Export(context.Background(), &buf)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	fn(doc)
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}

func TestExport_Header(t *testing.T) {
	s := openStore(t)
	populate(t, s, "Header")

	var buf bytes.Buffer
	doc, err := newService(s).Export(context.Background(), &buf)
	require.NoError(t, err)

	assert.Equal(t, "snap-1", doc.ID)
	assert.Equal(t, FormatVersion, doc.Version)
	assert.Equal(t, store.LatestVersion(), doc.SchemaVersion)
	assert.True(t, doc.ExportedAt.Equal(time.Date(2024, time.February, 2, 12, 0, 0, 0, time.UTC)))
	assert.Len(t, doc.Chapters, 2)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "snap-1", raw["id"])
	assert.Contains(t, raw, "writing_logs")
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openStore(t)
	populate(t, src, "First")
	populate(t, src, "Second")

	var buf bytes.Buffer
	_, err := newService(src).Export(ctx, &buf)
	require.NoError(t, err)

	dst := openStore(t)
	populate(t, dst, "Stale")

	doc, err := newService(dst).Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, "snap-1", doc.ID)

	want, err := src.Export(ctx)
	require.NoError(t, err)
	got, err := dst.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestImport_RejectsInvalidDocument(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(doc map[string]any)
		field string
	}{
		{
			name: "empty title",
			edit: func(doc map[string]any) {
				doc["books"].([]any)[0].(map[string]any)["title"] = ""
			},
		},
		{
			name: "malformed log date",
			edit: func(doc map[string]any) {
				doc["writing_logs"].([]any)[0].(map[string]any)["date"] = "Jan 9"
			},
		},
		{
			name: "unknown field",
			edit: func(doc map[string]any) {
				doc["chapters"].([]any)[0].(map[string]any)["colour"] = "red"
			},
		},
		{
			name: "missing id",
			edit: func(doc map[string]any) {
				delete(doc, "id")
			},
		},
		{
			name: "newer schema",
			edit: func(doc map[string]any) {
				doc["schema_version"] = store.LatestVersion() + 1
			},
			field: "schema_version",
		},
		{
			name: "orphan character",
			edit: func(doc map[string]any) {
				doc["characters"].([]any)[0].(map[string]any)["book_id"] = 99
			},
			field: "characters",
		},
		{
			name: "gap in chapter order",
			edit: func(doc map[string]any) {
				doc["chapters"].([]any)[1].(map[string]any)["order"] = 3
			},
			field: "chapters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			src := openStore(t)
			populate(t, src, "Source")
			data := mutate(t, src, tt.edit)

			dst := openStore(t)
			populate(t, dst, "Keep me")
			before, err := dst.Export(ctx)
			require.NoError(t, err)

			_, err = newService(dst).Import(ctx, bytes.NewReader(data))
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			if tt.field != "" {
				assert.Equal(t, tt.field, ve.Field)
			}

			after, err := dst.Export(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestImport_MalformedJSON(t *testing.T) {
	s := openStore(t)
	_, err := newService(s).Import(context.Background(), bytes.NewReader([]byte("{not json")))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, "json", ve.Field)
}

func TestCheckIntegrity(t *testing.T) {
	books := []model.Book{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}}

	tests := []struct {
		name    string
		snap    store.Snapshot
		wantErr string
	}{
		{
			name: "valid",
			snap: store.Snapshot{
				Books:       books,
				Chapters:    []model.Chapter{{ID: 1, BookID: 1, Order: 1}, {ID: 2, BookID: 2, Order: 1}, {ID: 3, BookID: 1, Order: 2}},
				PlotEvents:  []model.PlotEvent{{ID: 1, BookID: 2, Order: 1}},
				WritingLogs: []model.WritingLog{{BookID: 1, Date: "2024-01-01"}, {BookID: 2, Date: "2024-01-01"}},
			},
		},
		{
			name:    "duplicate book",
			snap:    store.Snapshot{Books: []model.Book{{ID: 1}, {ID: 1}}},
			wantErr: "books",
		},
		{
			name: "duplicate child id",
			snap: store.Snapshot{
				Books:  books,
				Themes: []model.Theme{{ID: 4, BookID: 1}, {ID: 4, BookID: 2}},
			},
			wantErr: "themes",
		},
		{
			name: "orphan prop",
			snap: store.Snapshot{
				Books: books,
				Props: []model.Prop{{ID: 1, BookID: 3}},
			},
			wantErr: "props",
		},
		{
			name: "duplicate log day",
			snap: store.Snapshot{
				Books:       books,
				WritingLogs: []model.WritingLog{{BookID: 1, Date: "2024-01-01"}, {BookID: 1, Date: "2024-01-01"}},
			},
			wantErr: "writing_logs",
		},
		{
			name: "repeated plot order",
			snap: store.Snapshot{
				Books:      books,
				PlotEvents: []model.PlotEvent{{ID: 1, BookID: 1, Order: 1}, {ID: 2, BookID: 1, Order: 1}},
			},
			wantErr: "plot_events",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckIntegrity(tt.snap)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.wantErr, ve.Field)
		})
	}
}

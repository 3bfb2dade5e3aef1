// Package backup writes and restores full JSON snapshots of the store.
//
// A snapshot carries every row of every table plus a header (id, format
// version, schema version, export time). Import validates the document
// against a CUE schema and checks referential integrity before replacing
// the store contents in one transaction.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/inkwell/internal/clock"
	"github.com/roach88/inkwell/internal/store"
)

// FormatVersion is the document format written by Export.
const FormatVersion = 1

// Document is the on-disk backup format.
type Document struct {
	ID            string    `json:"id"`
	Version       int       `json:"version"`
	SchemaVersion int       `json:"schema_version"`
	ExportedAt    time.Time `json:"exported_at"`
	store.Snapshot
}

// Store is the persistence surface backup needs.
type Store interface {
	Export(ctx context.Context) (store.Snapshot, error)
	ReplaceAll(ctx context.Context, snap store.Snapshot) error
	SchemaVersion(ctx context.Context) (int, error)
}

// IDGenerator produces snapshot ids.
type IDGenerator interface {
	Generate() string
}

type uuidV7 struct{}

func (uuidV7) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Service exports and imports snapshots.
type Service struct {
	store Store
	ids   IDGenerator
	clock clock.Clock
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator sets the snapshot id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) {
		s.ids = g
	}
}

// WithClock sets the clock that stamps exported_at.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// New creates a backup service.
func New(st Store, opts ...Option) *Service {
	s := &Service{store: st, ids: uuidV7{}, clock: clock.System{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export writes a snapshot of the whole store to w as indented JSON.
func (s *Service) Export(ctx context.Context, w io.Writer) (Document, error) {
	version, err := s.store.SchemaVersion(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("read schema version: %w", err)
	}
	snap, err := s.store.Export(ctx)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		ID:            s.ids.Generate(),
		Version:       FormatVersion,
		SchemaVersion: version,
		ExportedAt:    s.clock.Now().UTC(),
		Snapshot:      snap,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return Document{}, fmt.Errorf("write snapshot: %w", err)
	}
	slog.Info("snapshot exported", "id", doc.ID, "books", len(snap.Books))
	return doc, nil
}

// Import reads a snapshot from r, validates it and replaces the entire
// store with it. Nothing is written unless the whole document is valid, and
// the replacement itself is all-or-nothing.
func (s *Service) Import(ctx context.Context, r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read snapshot: %w", err)
	}
	if err := ValidateSchema(data); err != nil {
		return Document{}, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, &ValidationError{Field: "json", Message: err.Error()}
	}

	current, err := s.store.SchemaVersion(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("read schema version: %w", err)
	}
	if doc.SchemaVersion > current {
		return Document{}, &ValidationError{
			Field:   "schema_version",
			Message: fmt.Sprintf("snapshot was written by schema %d, this store is at %d", doc.SchemaVersion, current),
		}
	}
	if err := CheckIntegrity(doc.Snapshot); err != nil {
		return Document{}, err
	}

	if err := s.store.ReplaceAll(ctx, doc.Snapshot); err != nil {
		slog.Error("snapshot import failed", "id", doc.ID, "error", err)
		return Document{}, err
	}
	slog.Info("snapshot imported", "id", doc.ID, "books", len(doc.Books))
	return doc, nil
}

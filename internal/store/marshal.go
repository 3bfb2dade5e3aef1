package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/inkwell/internal/model"
)

// JSON-encoded list columns are never NULL; empty lists are stored as "[]".

func marshalRelationships(rels []model.Relationship) (string, error) {
	if rels == nil {
		rels = []model.Relationship{}
	}
	b, err := json.Marshal(rels)
	if err != nil {
		return "", fmt.Errorf("marshal relationships: %w", err)
	}
	return string(b), nil
}

func unmarshalRelationships(s string) ([]model.Relationship, error) {
	rels := []model.Relationship{}
	if s == "" {
		return rels, nil
	}
	if err := json.Unmarshal([]byte(s), &rels); err != nil {
		return nil, fmt.Errorf("unmarshal relationships: %w", err)
	}
	return rels, nil
}

func marshalIDs(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal ids: %w", err)
	}
	return string(b), nil
}

func unmarshalIDs(s string) ([]int64, error) {
	ids := []int64{}
	if s == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	return ids, nil
}

// marshalColumn encodes a Fields value for a JSON list column. Strings are
// assumed to be pre-encoded.
func marshalColumn(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []model.Relationship:
		return marshalRelationships(val)
	case []int64:
		return marshalIDs(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/inkwell/internal/model"
)

// ChildCounts returns, per book, how many rows of each child kind it owns.
// Books without children are absent from the map.
func (s *Store) ChildCounts(ctx context.Context) (map[int64]map[model.Kind]int, error) {
	parts := make([]string, 0, len(model.ChildKinds))
	for _, kind := range model.ChildKinds {
		m := metaByKind[kind]
		parts = append(parts, fmt.Sprintf("SELECT '%s', book_id, COUNT(*) FROM %s GROUP BY book_id", kind, m.name))
	}

	rows, err := s.db.QueryContext(ctx, strings.Join(parts, " UNION ALL "))
	if err != nil {
		return nil, fmt.Errorf("count children: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[model.Kind]int)
	for rows.Next() {
		var (
			kind   string
			bookID int64
			n      int
		)
		if err := rows.Scan(&kind, &bookID, &n); err != nil {
			return nil, fmt.Errorf("scan child count: %w", err)
		}
		if out[bookID] == nil {
			out[bookID] = make(map[model.Kind]int)
		}
		out[bookID][model.Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate child counts: %w", err)
	}
	return out, nil
}

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/inkwell/internal/model"
)

// Match is one prefix-search hit, joined with its owning book's title.
type Match struct {
	Kind        model.Kind
	ID          int64
	BookID      int64
	Name        string
	Description string
	BookTitle   string
}

// SearchByPrefix returns at most limit rows of kind whose name (or title)
// starts with prefix under Unicode case folding. LIKE wildcards in prefix
// match literally.
func (s *Store) SearchByPrefix(ctx context.Context, kind model.Kind, prefix string, limit int) ([]Match, error) {
	m, err := lookupMeta("search", kind)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Match{}, nil
	}

	pattern := escapeLike(foldCase(prefix)) + "%"
	var query string
	if kind == model.KindBook {
		query = `SELECT id, id, title, '', title FROM books
			WHERE fold(title) LIKE ? ESCAPE '\'
			ORDER BY fold(title), id
			LIMIT ?`
	} else {
		desc := "''"
		if m.descCol != "" {
			desc = "t." + m.descCol
		}
		query = fmt.Sprintf(`SELECT t.id, t.book_id, t.%[1]s, %[2]s, b.title
			FROM %[3]s t JOIN books b ON b.id = t.book_id
			WHERE fold(t.%[1]s) LIKE ? ESCAPE '\'
			ORDER BY fold(t.%[1]s), t.id
			LIMIT ?`, m.nameCol, desc, m.name)
	}

	rows, err := s.db.QueryContext(ctx, query, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", m.name, err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		mt := Match{Kind: kind}
		if err := rows.Scan(&mt.ID, &mt.BookID, &mt.Name, &mt.Description, &mt.BookTitle); err != nil {
			return nil, fmt.Errorf("scan %s match: %w", m.name, err)
		}
		matches = append(matches, mt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s matches: %w", m.name, err)
	}
	return matches, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

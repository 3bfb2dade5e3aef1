// Package search fans a query out across every entity kind, merges the
// per-kind prefix matches and sorts them by display name.
//
// Searcher runs one query. Debouncer sits in front of it for interactive
// input: it waits for a quiet period, suppresses repeats, and cancels a
// dispatch that a newer query has superseded.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/store"
)

const (
	// DefaultMinQueryLength is the shortest query that reaches the store.
	DefaultMinQueryLength = 2

	// DefaultLimitPerKind caps the matches taken from each kind.
	DefaultLimitPerKind = 10

	// SnippetLength is the maximum snippet length in runes.
	SnippetLength = 80

	// BookPath is the path shown for books themselves.
	BookPath = "Novel"
)

// Store is the persistence surface search needs.
type Store interface {
	SearchByPrefix(ctx context.Context, kind model.Kind, prefix string, limit int) ([]store.Match, error)
}

// Result is one search hit with enough context to render and deep-link it.
type Result struct {
	Kind    model.Kind `json:"kind" yaml:"kind"`
	Name    string     `json:"name" yaml:"name"`
	Snippet string     `json:"snippet" yaml:"snippet"`
	Path    string     `json:"path" yaml:"path"`
	BookID  int64      `json:"book_id" yaml:"book_id"`
	ID      int64      `json:"id" yaml:"id"`
}

// Searcher runs prefix searches across all kinds.
//
// Thread-safety: Searcher is safe for concurrent use.
type Searcher struct {
	store    Store
	minLen   int
	perKind  int
	tag      language.Tag
	kinds    []model.Kind
	kindRank map[model.Kind]int
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithMinQueryLength sets the shortest query that reaches the store.
func WithMinQueryLength(n int) Option {
	return func(s *Searcher) {
		s.minLen = n
	}
}

// WithLimitPerKind caps the matches taken from each kind.
func WithLimitPerKind(n int) Option {
	return func(s *Searcher) {
		s.perKind = n
	}
}

// WithLocale sets the language used to order results.
func WithLocale(tag language.Tag) Option {
	return func(s *Searcher) {
		s.tag = tag
	}
}

// NewSearcher creates a Searcher over every kind in model.AllKinds.
func NewSearcher(st Store, opts ...Option) *Searcher {
	s := &Searcher{
		store:    st,
		minLen:   DefaultMinQueryLength,
		perKind:  DefaultLimitPerKind,
		tag:      language.English,
		kinds:    model.AllKinds,
		kindRank: make(map[model.Kind]int, len(model.AllKinds)),
	}
	for i, k := range s.kinds {
		s.kindRank[k] = i
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs q against every kind in parallel and returns the merged hits
// sorted by name. Queries shorter than the minimum length return nothing
// without touching the store. A failure in any kind is logged and yields
// an empty result.
func (s *Searcher) Search(ctx context.Context, q string) []Result {
	q = Normalize(q)
	if utf8.RuneCountInString(q) < s.minLen {
		return []Result{}
	}

	perKind := make([][]store.Match, len(s.kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range s.kinds {
		i, kind := i, kind
		g.Go(func() error {
			m, err := s.store.SearchByPrefix(gctx, kind, q, s.perKind)
			if err != nil {
				return err
			}
			perKind[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() == nil {
			slog.Error("search failed", "query", q, "error", err)
		}
		return []Result{}
	}

	var out []Result
	for _, matches := range perKind {
		for _, m := range matches {
			out = append(out, toResult(m))
		}
	}
	s.sortResults(out)
	if out == nil {
		out = []Result{}
	}
	return out
}

func (s *Searcher) sortResults(results []Result) {
	col := collate.New(s.tag, collate.IgnoreCase)
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c < 0
		}
		if a.Kind != b.Kind {
			return s.kindRank[a.Kind] < s.kindRank[b.Kind]
		}
		return a.ID < b.ID
	})
}

func toResult(m store.Match) Result {
	path := m.BookTitle
	if m.Kind == model.KindBook {
		path = BookPath
	}
	return Result{
		Kind:    m.Kind,
		Name:    m.Name,
		Snippet: Snippet(m.Description, SnippetLength),
		Path:    path,
		BookID:  m.BookID,
		ID:      m.ID,
	}
}

// Normalize trims q and puts it in Unicode NFC form so composed and
// decomposed input match the same stored names.
func Normalize(q string) string {
	return norm.NFC.String(strings.TrimSpace(q))
}

// Snippet returns the first line of s, cut to at most n runes with an
// ellipsis.
func Snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

package store

// Migration is one additive step of schema evolution.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// Schema version history:
// 1 - books, characters, locations, chapters
// 2 - plot_events, themes, props
// 3 - writing_logs
// 4 - NOCASE name/title indices for prefix search
// 5 - settings (library preferences)
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS books (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    word_count INTEGER NOT NULL DEFAULT 0,
    daily_target INTEGER NOT NULL DEFAULT 0,
    archived INTEGER NOT NULL DEFAULT 0,
    pin_order INTEGER NOT NULL DEFAULT 0
)`,
			`CREATE TABLE IF NOT EXISTS characters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id INTEGER NOT NULL REFERENCES books(id),
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    relationships TEXT NOT NULL DEFAULT '[]'
)`,
			`CREATE TABLE IF NOT EXISTS locations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id INTEGER NOT NULL REFERENCES books(id),
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT ''
)`,
			`CREATE TABLE IF NOT EXISTS chapters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id INTEGER NOT NULL REFERENCES books(id),
    title TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    character_ids TEXT NOT NULL DEFAULT '[]',
    sort_order INTEGER NOT NULL,
    word_count INTEGER NOT NULL DEFAULT 0
)`,
			`CREATE INDEX IF NOT EXISTS idx_characters_book ON characters(book_id)`,
			`CREATE INDEX IF NOT EXISTS idx_locations_book ON locations(book_id)`,
			`CREATE INDEX IF NOT EXISTS idx_chapters_book ON chapters(book_id)`,
			`CREATE INDEX IF NOT EXISTS idx_chapters_order ON chapters(book_id, sort_order)`,
		},
	},
	{
		Version: 2,
		Name:    "timeline_and_notes",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS plot_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id INTEGER NOT NULL REFERENCES books(id),
    title TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    location_id INTEGER,
    character_ids TEXT NOT NULL DEFAULT '[]',
    sort_order INTEGER NOT NULL
)`,
			`CREATE TABLE IF NOT EXISTS themes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id INTEGER NOT NULL REFERENCES books(id),
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT ''
)`,
			`CREATE TABLE IF NOT EXISTS props (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id INTEGER NOT NULL REFERENCES books(id),
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT ''
)`,
			`CREATE INDEX IF NOT EXISTS idx_plot_events_book ON plot_events(book_id)`,
			`CREATE INDEX IF NOT EXISTS idx_plot_events_order ON plot_events(book_id, sort_order)`,
			`CREATE INDEX IF NOT EXISTS idx_themes_book ON themes(book_id)`,
			`CREATE INDEX IF NOT EXISTS idx_props_book ON props(book_id)`,
		},
	},
	{
		Version: 3,
		Name:    "writing_logs",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS writing_logs (
    book_id INTEGER NOT NULL REFERENCES books(id),
    date TEXT NOT NULL,
    word_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (book_id, date)
)`,
			`CREATE INDEX IF NOT EXISTS idx_writing_logs_date ON writing_logs(date)`,
		},
	},
	{
		Version: 4,
		Name:    "prefix_search_indices",
		Statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_books_title ON books(title COLLATE NOCASE)`,
			`CREATE INDEX IF NOT EXISTS idx_characters_name ON characters(name COLLATE NOCASE)`,
			`CREATE INDEX IF NOT EXISTS idx_locations_name ON locations(name COLLATE NOCASE)`,
			`CREATE INDEX IF NOT EXISTS idx_chapters_title ON chapters(title COLLATE NOCASE)`,
			`CREATE INDEX IF NOT EXISTS idx_plot_events_title ON plot_events(title COLLATE NOCASE)`,
			`CREATE INDEX IF NOT EXISTS idx_themes_name ON themes(name COLLATE NOCASE)`,
			`CREATE INDEX IF NOT EXISTS idx_props_name ON props(name COLLATE NOCASE)`,
		},
	},
	{
		Version: 5,
		Name:    "settings",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,
		},
	},
}

// LatestVersion is the schema version a freshly opened store is at.
func LatestVersion() int {
	return latestVersion(migrations)
}

func latestVersion(ms []Migration) int {
	latest := 0
	for _, m := range ms {
		if m.Version > latest {
			latest = m.Version
		}
	}
	return latest
}

package model

import "time"

// Book is the top-level project. Every other entity belongs to exactly one book.
type Book struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	WordCount   int       `json:"word_count"`
	DailyTarget int       `json:"daily_target"`
	Archived    bool      `json:"archived"`
	PinOrder    int       `json:"pin_order"` // 0 = not pinned
}

// Pinned reports whether the book is pinned to the top of the library.
func (b Book) Pinned() bool {
	return b.PinOrder > 0
}

// Relationship is a directed, labeled edge from one character to another.
type Relationship struct {
	TargetID int64  `json:"target_id"`
	Label    string `json:"label"`
}

// Character is a world-building note about a person in the book.
type Character struct {
	ID            int64          `json:"id"`
	BookID        int64          `json:"book_id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Relationships []Relationship `json:"relationships"`
}

// Location is a world-building note about a place.
type Location struct {
	ID          int64  `json:"id"`
	BookID      int64  `json:"book_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PlotEvent is one entry on a book's ordered timeline.
type PlotEvent struct {
	ID           int64   `json:"id"`
	BookID       int64   `json:"book_id"`
	Title        string  `json:"title"`
	Summary      string  `json:"summary"`
	LocationID   *int64  `json:"location_id,omitempty"`
	CharacterIDs []int64 `json:"character_ids"`
	Order        int     `json:"order"`
}

// SetOrder assigns the event's 1-based position.
func (p *PlotEvent) SetOrder(n int) { p.Order = n }

// Key returns the event's id.
func (p *PlotEvent) Key() int64 { return p.ID }

// Chapter is an ordered manuscript unit. Content is opaque to the core.
type Chapter struct {
	ID           int64   `json:"id"`
	BookID       int64   `json:"book_id"`
	Title        string  `json:"title"`
	Content      string  `json:"content"`
	CharacterIDs []int64 `json:"character_ids"`
	Order        int     `json:"order"`
	WordCount    int     `json:"word_count"`
}

// SetOrder assigns the chapter's 1-based position.
func (c *Chapter) SetOrder(n int) { c.Order = n }

// Key returns the chapter's id.
func (c *Chapter) Key() int64 { return c.ID }

// Theme is a tagged note without ordering.
type Theme struct {
	ID          int64  `json:"id"`
	BookID      int64  `json:"book_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Prop is a tagged note about an object.
type Prop struct {
	ID          int64  `json:"id"`
	BookID      int64  `json:"book_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// WritingLog holds the words added to one book on one calendar day.
// (BookID, Date) is unique.
type WritingLog struct {
	BookID    int64  `json:"book_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	WordCount int    `json:"word_count"`
}

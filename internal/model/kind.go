package model

import (
	"fmt"
	"time"
)

// Kind identifies one of the entity kinds the core manages.
type Kind string

const (
	KindBook      Kind = "book"
	KindCharacter Kind = "character"
	KindLocation  Kind = "location"
	KindPlotEvent Kind = "plot_event"
	KindChapter   Kind = "chapter"
	KindTheme     Kind = "theme"
	KindProp      Kind = "prop"
)

// AllKinds lists every searchable kind in display order.
var AllKinds = []Kind{
	KindBook,
	KindCharacter,
	KindLocation,
	KindChapter,
	KindPlotEvent,
	KindTheme,
	KindProp,
}

// ChildKinds lists the kinds owned by a book.
var ChildKinds = []Kind{
	KindCharacter,
	KindLocation,
	KindPlotEvent,
	KindChapter,
	KindTheme,
	KindProp,
}

// Ordered reports whether entities of this kind carry a dense 1..N order.
func (k Kind) Ordered() bool {
	return k == KindChapter || k == KindPlotEvent
}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// DateLayout is the calendar-date format used for writing logs.
const DateLayout = "2006-01-02"

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

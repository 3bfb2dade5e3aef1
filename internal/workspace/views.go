package workspace

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/inkwell/internal/model"
)

// ResolvedRelationship is a relationship whose target exists.
type ResolvedRelationship struct {
	Label  string
	Target model.Character
}

// SetSearchTerm sets the term FilteredCharacters matches against.
func (w *Workspace) SetSearchTerm(term string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.searchTerm = term
}

// SearchTerm returns the current contextual search term.
func (w *Workspace) SearchTerm() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.searchTerm
}

// FilteredCharacters returns the characters whose name or description
// contains the search term, case-folded. An empty term matches everything.
func (w *Workspace) FilteredCharacters() []model.Character {
	w.mu.RLock()
	defer w.mu.RUnlock()

	term := strings.TrimSpace(w.searchTerm)
	if term == "" {
		out := make([]model.Character, len(w.data.characters))
		copy(out, w.data.characters)
		return out
	}

	fold := cases.Fold()
	needle := fold.String(term)
	out := make([]model.Character, 0, len(w.data.characters))
	for _, c := range w.data.characters {
		if strings.Contains(fold.String(c.Name), needle) || strings.Contains(fold.String(c.Description), needle) {
			out = append(out, c)
		}
	}
	return out
}

// CharactersByID indexes the cached characters.
func (w *Workspace) CharactersByID() map[int64]model.Character {
	w.mu.RLock()
	defer w.mu.RUnlock()

	m := make(map[int64]model.Character, len(w.data.characters))
	for _, c := range w.data.characters {
		m[c.ID] = c
	}
	return m
}

// Relationships resolves a character's relationships. Targets that no
// longer exist are skipped.
func (w *Workspace) Relationships(characterID int64) []ResolvedRelationship {
	byID := w.CharactersByID()
	c, ok := byID[characterID]
	if !ok {
		return nil
	}

	out := make([]ResolvedRelationship, 0, len(c.Relationships))
	for _, r := range c.Relationships {
		target, ok := byID[r.TargetID]
		if !ok || r.TargetID == characterID {
			continue
		}
		out = append(out, ResolvedRelationship{Label: r.Label, Target: target})
	}
	return out
}

// ChapterCharacters returns the existing characters tagged on a chapter.
func (w *Workspace) ChapterCharacters(chapterID int64) []model.Character {
	ch, ok := w.chapter(chapterID)
	if !ok {
		return nil
	}
	return w.resolveCharacters(ch.CharacterIDs)
}

// PlotEventCharacters returns the existing characters tagged on a plot
// event.
func (w *Workspace) PlotEventCharacters(eventID int64) []model.Character {
	ev, ok := w.plotEvent(eventID)
	if !ok {
		return nil
	}
	return w.resolveCharacters(ev.CharacterIDs)
}

// PlotEventLocation returns a plot event's location if it has one that
// still exists.
func (w *Workspace) PlotEventLocation(eventID int64) (model.Location, bool) {
	ev, ok := w.plotEvent(eventID)
	if !ok || ev.LocationID == nil {
		return model.Location{}, false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, l := range w.data.locations {
		if l.ID == *ev.LocationID {
			return l, true
		}
	}
	return model.Location{}, false
}

func (w *Workspace) resolveCharacters(ids []int64) []model.Character {
	byID := w.CharactersByID()
	out := make([]model.Character, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (w *Workspace) plotEvent(id int64) (model.PlotEvent, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, p := range w.data.plotEvents {
		if p.ID == id {
			return p, true
		}
	}
	return model.PlotEvent{}, false
}

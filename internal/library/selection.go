package library

import "slices"

// Select adds a book to the selection.
func (l *Library) Select(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if indexOf(l.books, id) >= 0 {
		l.selected[id] = true
	}
}

// Toggle flips a book's selection.
func (l *Library) Toggle(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.selected[id] {
		delete(l.selected, id)
		return
	}
	if indexOf(l.books, id) >= 0 {
		l.selected[id] = true
	}
}

// SelectAll selects every book visible under the current filter.
func (l *Library) SelectAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.books {
		if l.visible(b) {
			l.selected[b.ID] = true
		}
	}
}

// ClearSelection deselects everything.
func (l *Library) ClearSelection() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.selected)
}

// IsSelected reports whether a book is selected.
func (l *Library) IsSelected(id int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.selected[id]
}

// Selected returns the selected ids in ascending order.
func (l *Library) Selected() []int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]int64, 0, len(l.selected))
	for id := range l.selected {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

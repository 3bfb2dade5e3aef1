package ordering

import "sync"

// Guard is a per-book single-flight lock for reorders. A second reorder of
// the same book is rejected while the first is persisting.
//
// Thread-safety: Guard is safe for concurrent use.
type Guard struct {
	mu   sync.Mutex
	busy map[int64]bool
}

// NewGuard creates a guard with nothing in flight.
func NewGuard() *Guard {
	return &Guard{busy: make(map[int64]bool)}
}

// TryAcquire marks bookID as reordering. Returns false if it already is.
func (g *Guard) TryAcquire(bookID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.busy[bookID] {
		return false
	}
	g.busy[bookID] = true
	return true
}

// Release clears the in-flight mark for bookID.
func (g *Guard) Release(bookID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, bookID)
}

// Busy reports whether a reorder of bookID is in flight.
func (g *Guard) Busy(bookID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy[bookID]
}

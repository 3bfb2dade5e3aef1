// Package ordering recomputes dense 1..N order values for ordered
// collections (chapters, plot events) after a move.
//
// Every function here is pure: inputs are never modified, and results carry
// freshly assigned order values with no gaps and no duplicates. Persisting
// the result is the caller's job.
package ordering

import (
	"errors"
	"fmt"
)

// ErrInvalidIndex is matched by errors.Is for out-of-range moves.
var ErrInvalidIndex = errors.New("invalid index")

// ErrInvalidOrder indicates a requested order is not a permutation of the
// collection.
var ErrInvalidOrder = errors.New("invalid order")

// IndexError is returned when a move references a position outside the list.
type IndexError struct {
	From int
	To   int
	Len  int
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("invalid index: move %d -> %d in list of %d", e.From, e.To, e.Len)
}

// Is makes errors.Is(err, ErrInvalidIndex) match.
func (e *IndexError) Is(target error) bool {
	return target == ErrInvalidIndex
}

// Orderable is implemented by pointers to entities with a dense order.
type Orderable[T any] interface {
	*T
	SetOrder(int)
	Key() int64
}

// Move relocates the item at from to position to and reassigns every order
// to its new 1-based position. Untouched items keep their relative order.
// Lists of zero or one item are returned unchanged (a single item gets
// order 1). A move to the same position is a no-op.
func Move[T any, P Orderable[T]](items []T, from, to int) ([]T, error) {
	out := make([]T, len(items))
	copy(out, items)

	n := len(out)
	if n <= 1 {
		Renumber[T, P](out)
		return out, nil
	}
	if from < 0 || from >= n || to < 0 || to >= n {
		return nil, &IndexError{From: from, To: to, Len: n}
	}
	if from == to {
		return out, nil
	}

	moved := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = moved

	Renumber[T, P](out)
	return out, nil
}

// Arrange returns items reordered to match ids, renumbered 1..N. ids must
// name every item exactly once.
func Arrange[T any, P Orderable[T]](items []T, ids []int64) ([]T, error) {
	if len(ids) != len(items) {
		return nil, fmt.Errorf("%w: got %d ids for %d items", ErrInvalidOrder, len(ids), len(items))
	}

	byID := make(map[int64]T, len(items))
	for _, it := range items {
		byID[P(&it).Key()] = it
	}

	out := make([]T, 0, len(items))
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: id %d is unknown or repeated", ErrInvalidOrder, id)
		}
		delete(byID, id)
		out = append(out, it)
	}

	Renumber[T, P](out)
	return out, nil
}

// Renumber assigns order i+1 to items[i], in place.
func Renumber[T any, P Orderable[T]](items []T) {
	for i := range items {
		P(&items[i]).SetOrder(i + 1)
	}
}

// IsDense reports whether orders is a permutation of 1..len(orders).
func IsDense(orders []int) bool {
	seen := make([]bool, len(orders)+1)
	for _, o := range orders {
		if o < 1 || o > len(orders) || seen[o] {
			return false
		}
		seen[o] = true
	}
	return true
}

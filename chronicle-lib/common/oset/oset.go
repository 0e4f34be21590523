// Package oset implements a small ordered set of comparable values, used
// wherever the provenance model needs deterministic ascending-order
// iteration over a relation (§3.3 invariant 5). Cardinalities within one
// transaction batch are small, so a sorted slice searched by binary search
// is simpler and plenty fast; this plays the role erigon fills with
// github.com/google/btree or roaring bitmaps for large ordered membership
// sets, scaled down to this domain's per-batch sizes.
package oset

import "sort"

// Set is an ordered set of T, kept sorted by less.
type Set[T any] struct {
	items []T
	less  func(a, b T) bool
}

// New creates an empty ordered set using less for ordering and equality
// (neither a < b nor b < a).
func New[T any](less func(a, b T) bool) *Set[T] {
	return &Set[T]{less: less}
}

// Add inserts v if not already present. Returns true if v was newly added.
func (s *Set[T]) Add(v T) bool {
	i := sort.Search(len(s.items), func(i int) bool { return !s.less(s.items[i], v) })
	if i < len(s.items) && !s.less(v, s.items[i]) {
		return false
	}
	s.items = append(s.items, v)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = v
	return true
}

// Contains reports whether v is a member.
func (s *Set[T]) Contains(v T) bool {
	i := sort.Search(len(s.items), func(i int) bool { return !s.less(s.items[i], v) })
	return i < len(s.items) && !s.less(v, s.items[i])
}

// Items returns the set's elements in ascending order. The returned slice
// must not be mutated by the caller.
func (s *Set[T]) Items() []T {
	return s.items
}

// Len returns the number of elements.
func (s *Set[T]) Len() int {
	return len(s.items)
}

// Clone returns a deep copy sharing no backing array with s.
func (s *Set[T]) Clone() *Set[T] {
	c := &Set[T]{less: s.less, items: make([]T, len(s.items))}
	copy(c.items, s.items)
	return c
}

package tree

import "slices"

// List is the render projection: a flat, index-addressed sequence kept in
// sync with the visible, revealed nodes of a model. The model is its only
// writer and never reads it back.
type List[E any] interface {
	Splice(start, deleteCount int, elements []E)
}

// SliceList is a slice-backed List.
type SliceList[E any] struct {
	items []E
}

// NewSliceList returns a projection holding items.
func NewSliceList[E any](items ...E) *SliceList[E] {
	return &SliceList[E]{items: items}
}

// Splice deletes deleteCount items at start and inserts elements in their
// place. Out-of-range arguments are clamped.
func (l *SliceList[E]) Splice(start, deleteCount int, elements []E) {
	if start < 0 {
		start = 0
	}
	if start > len(l.items) {
		start = len(l.items)
	}
	end := start + max(deleteCount, 0)
	if end > len(l.items) {
		end = len(l.items)
	}
	l.items = slices.Replace(l.items, start, end, elements...)
}

// Len returns the number of rows.
func (l *SliceList[E]) Len() int { return len(l.items) }

// At returns the row at index i.
func (l *SliceList[E]) At(i int) E { return l.items[i] }

// Items returns a copy of all rows.
func (l *SliceList[E]) Items() []E { return slices.Clone(l.items) }

// IndexFunc returns the first row index satisfying f, or -1.
func (l *SliceList[E]) IndexFunc(f func(E) bool) int {
	return slices.IndexFunc(l.items, f)
}

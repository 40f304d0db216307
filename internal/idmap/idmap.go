// Package idmap provides the bidirectional mapping between external stable
// identifiers and the internal row indices of the factor matrices. One shared,
// verified component instead of ad hoc per-module reverse maps: a broken mapping
// silently corrupts every downstream score, so bijectivity is checked once at
// construction and construction fails hard on any violation.
package idmap

import (
	"errors"
	"fmt"
)

// ErrEmpty is returned when the mapping table has no entries.
var ErrEmpty = errors.New("mapping table is empty")

// Map is an immutable bijection between external int64 identifiers and row
// indices in [0, Len()). Safe for concurrent use after construction.
type Map struct {
	forward map[int64]int
	reverse []int64
}

// New builds a Map from an external-id -> row-index table. Row indices must
// form exactly [0, len(table)): a negative, out-of-range, or duplicate row
// index is a construction error. There is no identity or modulo fallback; an
// id absent from the table simply has no row.
func New(table map[int64]int) (*Map, error) {
	if len(table) == 0 {
		return nil, ErrEmpty
	}
	forward := make(map[int64]int, len(table))
	reverse := make([]int64, len(table))
	seen := make([]bool, len(table))
	for id, row := range table {
		if row < 0 || row >= len(table) {
			return nil, fmt.Errorf("row index %d for id %d out of range [0,%d)", row, id, len(table))
		}
		if seen[row] {
			return nil, fmt.Errorf("duplicate row index %d (ids %d and %d)", row, reverse[row], id)
		}
		seen[row] = true
		reverse[row] = id
		forward[id] = row
	}
	return &Map{forward: forward, reverse: reverse}, nil
}

// Forward returns the row index for an external id. The second return is false
// when the id is not in the mapping (a cold entity, never an error).
func (m *Map) Forward(id int64) (int, bool) {
	row, ok := m.forward[id]
	return row, ok
}

// Reverse returns the external id for a row index.
func (m *Map) Reverse(row int) (int64, bool) {
	if row < 0 || row >= len(m.reverse) {
		return 0, false
	}
	return m.reverse[row], true
}

// Len returns the number of mapped entries.
func (m *Map) Len() int {
	return len(m.reverse)
}

// IDs returns all external ids in row order. The slice is a copy.
func (m *Map) IDs() []int64 {
	out := make([]int64, len(m.reverse))
	copy(out, m.reverse)
	return out
}

// Package idset holds sets of external data object ids (live ids, tombstones).
package idset

import "github.com/RoaringBitmap/roaring/v2"

// Set is a set of uint32 ids backed by a Roaring bitmap.
// The zero value is not usable; call New.
type Set struct {
	rb *roaring.Bitmap
}

// New creates a set holding ids.
func New(ids ...uint32) *Set {
	return &Set{rb: roaring.BitmapOf(ids...)}
}

// Add adds id to the set. It reports whether id was not already present.
func (s *Set) Add(id uint32) bool {
	return s.rb.CheckedAdd(id)
}

// Remove removes id from the set. It reports whether id was present.
func (s *Set) Remove(id uint32) bool {
	return s.rb.CheckedRemove(id)
}

// Contains reports whether id is in the set.
func (s *Set) Contains(id uint32) bool {
	return s.rb.Contains(id)
}

// Len returns the number of ids in the set.
func (s *Set) Len() int {
	return int(s.rb.GetCardinality())
}

// Clear removes every id.
func (s *Set) Clear() {
	s.rb.Clear()
}

// ToSlice returns the ids in ascending order.
func (s *Set) ToSlice() []uint32 {
	return s.rb.ToArray()
}

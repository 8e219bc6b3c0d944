// Package geom provides the axis-aligned hyperrectangle used by every node of the tree.
package geom

import "math"

// Rect is an axis-aligned hyperrectangle described by its lower corner and a
// non-negative extent along every axis. A Rect with all extents zero is a point.
//
// Callers must not mix Rects of different dimensions; the engine validates
// dimensions before any geometry is evaluated.
type Rect struct {
	Start  []float64
	Extent []float64
}

// New returns a Rect that owns copies of start and extent.
func New(start, extent []float64) Rect {
	return Rect{
		Start:  cloneFloats(start),
		Extent: cloneFloats(extent),
	}
}

// Point returns a degenerate Rect located at p.
func Point(p []float64) Rect {
	return Rect{
		Start:  cloneFloats(p),
		Extent: make([]float64, len(p)),
	}
}

// Dim returns the dimension of r.
func (r Rect) Dim() int { return len(r.Start) }

// Clone returns a deep copy of r.
func (r Rect) Clone() Rect {
	return New(r.Start, r.Extent)
}

// End returns the upper bound of r on axis i.
func (r Rect) End(i int) float64 { return r.Start[i] + r.Extent[i] }

// Contains reports whether other lies completely inside r (boundaries inclusive).
func (r Rect) Contains(other Rect) bool {
	for i := range r.Start {
		if r.Start[i] > other.Start[i] || r.End(i) < other.End(i) {
			return false
		}
	}
	return true
}

// Overlaps reports whether r and other share at least one point.
// Rects that only touch on a boundary overlap.
func (r Rect) Overlaps(other Rect) bool {
	for i := range r.Start {
		if r.End(i) < other.Start[i] || other.End(i) < r.Start[i] {
			return false
		}
	}
	return true
}

// Merge grows r in place to the minimum bounding box of r and other.
// The extent is rounded up where needed so that End never falls below the
// larger of the two ends.
func (r *Rect) Merge(other Rect) {
	for i := range r.Start {
		end := math.Max(r.End(i), other.End(i))
		start := math.Min(r.Start[i], other.Start[i])
		extent := math.Abs(end - start)
		for start+extent < end {
			extent = math.Nextafter(extent, math.Inf(1))
		}
		r.Start[i] = start
		r.Extent[i] = extent
	}
}

// Merged returns the minimum bounding box of a and b without modifying either.
func Merged(a, b Rect) Rect {
	m := a.Clone()
	m.Merge(b)
	return m
}

// Volume returns the product of all extents. It is zero if any extent is zero.
func (r Rect) Volume() float64 {
	v := 1.0
	for _, e := range r.Extent {
		v *= e
	}
	return v
}

// Enlargement returns how much the volume of r would grow to also cover other.
func (r Rect) Enlargement(other Rect) float64 {
	return Merged(r, other).Volume() - r.Volume()
}

// MinDistSq returns the squared Euclidean distance from p to the closest point of r.
// Points inside r or on its boundary have distance 0.
func (r Rect) MinDistSq(p []float64) float64 {
	var sum float64
	for i, x := range p {
		var d float64
		switch {
		case x < r.Start[i]:
			d = r.Start[i] - x
		case x > r.End(i):
			d = x - r.End(i)
		}
		sum += d * d
	}
	return sum
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	o := make([]float64, len(v))
	copy(o, v)
	return o
}

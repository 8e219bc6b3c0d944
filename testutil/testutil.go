package testutil

import (
	"cmp"
	"math/rand"
	"slices"
	"sync"
)

// Box is a data object used as test input.
type Box struct {
	ID     uint32
	Start  []float64
	Extent []float64
}

// Neighbor is one exact nearest neighbor result.
type Neighbor struct {
	ID     uint32
	DistSq float64
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Perm returns a pseudo-random permutation of [0,n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float64, minVal, maxVal float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float64()*span
	}
}

// Point returns a random point with coordinates in [minVal, maxVal).
func (r *RNG) Point(dim int, minVal, maxVal float64) []float64 {
	p := make([]float64, dim)
	r.FillUniformRange(p, minVal, maxVal)
	return p
}

// RandomBoxes generates num boxes with ids 0..num-1, lower corners in
// [minVal, maxVal) and extents in [0, maxExtent).
// maxExtent 0 generates points.
func (r *RNG) RandomBoxes(num, dim int, minVal, maxVal, maxExtent float64) []Box {
	boxes := make([]Box, num)
	for i := range boxes {
		boxes[i] = Box{
			ID:     uint32(i),
			Start:  r.Point(dim, minVal, maxVal),
			Extent: r.Point(dim, 0, maxExtent),
		}
	}
	return boxes
}

// DiagonalPoints returns num points (i, ..., i) with ids i.
func DiagonalPoints(num, dim int) []Box {
	boxes := make([]Box, num)
	for i := range boxes {
		start := make([]float64, dim)
		for j := range start {
			start[j] = float64(i)
		}
		boxes[i] = Box{ID: uint32(i), Start: start, Extent: make([]float64, dim)}
	}
	return boxes
}

// MinDistSq returns the squared Euclidean distance from p to the closest point of b.
func MinDistSq(b Box, p []float64) float64 {
	var sum float64
	for i, x := range p {
		lo, hi := b.Start[i], b.Start[i]+b.Extent[i]
		var d float64
		if x < lo {
			d = lo - x
		} else if x > hi {
			d = x - hi
		}
		sum += d * d
	}
	return sum
}

// ExactKNN returns the k boxes nearest to p by linear scan, nearest first.
func ExactKNN(boxes []Box, p []float64, k int) []Neighbor {
	all := make([]Neighbor, len(boxes))
	for i, b := range boxes {
		all[i] = Neighbor{ID: b.ID, DistSq: MinDistSq(b, p)}
	}
	slices.SortStableFunc(all, func(a, b Neighbor) int {
		return cmp.Compare(a.DistSq, b.DistSq)
	})
	return all[:min(k, len(all))]
}

// ContainedIDs returns the ids of boxes that lie inside the query box, sorted.
func ContainedIDs(boxes []Box, start, extent []float64) []uint32 {
	var ids []uint32
	for _, b := range boxes {
		inside := true
		for i := range start {
			if b.Start[i] < start[i] || b.Start[i]+b.Extent[i] > start[i]+extent[i] {
				inside = false
				break
			}
		}
		if inside {
			ids = append(ids, b.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// ComputeRecall computes recall@k by comparing results against ground truth ids.
func ComputeRecall(groundTruth, results []uint32) float64 {
	if len(groundTruth) == 0 || len(results) == 0 {
		if len(groundTruth) == 0 && len(results) == 0 {
			return 1.0
		}
		return 0.0
	}

	truth := make(map[uint32]struct{}, len(groundTruth))
	for _, id := range groundTruth {
		truth[id] = struct{}{}
	}

	hits := 0
	for _, id := range results {
		if _, ok := truth[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(groundTruth))
}

package engine

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/hupe1980/hrtree/internal/geom"
	"github.com/hupe1980/hrtree/internal/node"
)

// Search returns every live data object contained in the query box
// [start, start+extent]. The result order is unspecified.
func (t *Tree) Search(start, extent []float64) ([]Object, error) {
	t.file.ResetIO()

	if err := t.checkRect(start, extent); err != nil {
		return nil, err
	}
	return t.search(geom.Rect{Start: start, Extent: extent})
}

// search walks the tree breadth first, descending into children that
// overlap q and collecting data nodes that q contains.
func (t *Tree) search(q geom.Rect) ([]Object, error) {
	var result []Object
	if t.hdr.RootID == node.NullID {
		return result, nil
	}

	queue := []uint32{t.hdr.RootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		n, err := t.cache.Get(id)
		if err != nil {
			return nil, err
		}
		if n.IsData() {
			if q.Contains(n.Rect) && !t.tombstones.Contains(n.DataID) {
				result = append(result, toObject(n))
			}
			continue
		}

		for _, cid := range n.Children {
			c, err := t.cache.Get(cid)
			if err != nil {
				return nil, err
			}
			if c.Rect.Overlaps(q) {
				queue = append(queue, cid)
			}
		}
	}
	return result, nil
}

type candidate struct {
	dist float64
	obj  Object
}

type branch struct {
	id   uint32
	dist float64
}

// KNN returns the k live data objects nearest to point, nearest first.
// Distance is the squared Euclidean distance from point to the object's box.
// k larger than the number of live objects fails before any node is read.
func (t *Tree) KNN(k int, point []float64) ([]Object, error) {
	t.file.ResetIO()

	if err := t.checkDim(point); err != nil {
		return nil, err
	}
	if err := checkFinite(point); err != nil {
		return nil, err
	}
	if k < 0 || k > t.live.Len() {
		return nil, fmt.Errorf("%w: k=%d, live=%d", ErrInvalidK, k, t.live.Len())
	}
	if k == 0 {
		return []Object{}, nil
	}

	best := make([]candidate, 0, k)
	worst := func() float64 { return best[len(best)-1].dist }

	stack := []uint32{t.hdr.RootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, err := t.cache.Get(id)
		if err != nil {
			return nil, err
		}
		d := n.Rect.MinDistSq(point)
		if len(best) == k && d > worst() {
			continue
		}

		if n.IsData() {
			if t.tombstones.Contains(n.DataID) {
				continue
			}
			c := candidate{dist: d, obj: toObject(n)}
			switch {
			case len(best) < k:
				best = append(best, c)
			case d < worst():
				best[len(best)-1] = c
			default:
				continue
			}
			slices.SortStableFunc(best, func(a, b candidate) int {
				return cmp.Compare(a.dist, b.dist)
			})
			continue
		}

		branches := make([]branch, 0, len(n.Children))
		for _, cid := range n.Children {
			c, err := t.cache.Get(cid)
			if err != nil {
				return nil, err
			}
			cd := c.Rect.MinDistSq(point)
			if len(best) < k || cd <= worst() {
				branches = append(branches, branch{id: cid, dist: cd})
			}
		}
		slices.SortStableFunc(branches, func(a, b branch) int {
			return cmp.Compare(a.dist, b.dist)
		})
		for i := len(branches) - 1; i >= 0; i-- {
			stack = append(stack, branches[i].id)
		}
	}

	result := make([]Object, len(best))
	for i, c := range best {
		result[i] = c.obj
	}
	return result, nil
}

package engine

import (
	"fmt"
	"math"

	"github.com/hupe1980/hrtree/internal/geom"
	"github.com/hupe1980/hrtree/internal/node"
)

// Insert adds the data object id covering [start, start+extent].
// If id is tombstoned the tree is rebuilt first so the id can be reused.
func (t *Tree) Insert(id uint32, start, extent []float64) error {
	t.file.ResetIO()

	if err := t.checkRect(start, extent); err != nil {
		return err
	}
	if t.live.Contains(id) {
		return fmt.Errorf("insert %d: %w", id, ErrAlreadyExists)
	}
	if t.tombstones.Contains(id) {
		if err := t.rebuild(); err != nil {
			return err
		}
	}

	if err := t.insert(id, geom.New(start, extent)); err != nil {
		return err
	}
	t.live.Add(id)
	return t.Save()
}

func (t *Tree) insert(dataID uint32, rect geom.Rect) error {
	leafID, err := t.allocID()
	if err != nil {
		return err
	}
	leaf := node.NewData(leafID, dataID, rect)
	if err := t.cache.Put(leaf); err != nil {
		return err
	}

	if t.hdr.RootID == node.NullID {
		rootID, err := t.allocID()
		if err != nil {
			return err
		}
		root := node.NewInternal(rootID, rect.Clone(), leaf.ID)
		if err := t.cache.Put(root); err != nil {
			return err
		}
		t.hdr.RootID = root.ID
		return nil
	}

	path, err := t.chooseLeaf(leaf.Rect)
	if err != nil {
		return err
	}

	target, err := t.cache.Get(path[len(path)-1])
	if err != nil {
		return err
	}
	var partner *node.Node
	if !target.AddChild(leaf, int(t.hdr.MaxChildren)) {
		if partner, err = t.split(target); err != nil {
			return err
		}
	}
	return t.adjust(path, target, partner)
}

// chooseLeaf descends from the root to the lowest internal level, the first
// node whose first child is a data node. At each level it follows the child
// needing the least enlargement to cover rect, preferring the smaller volume
// on ties. The returned path starts at the root.
func (t *Tree) chooseLeaf(rect geom.Rect) ([]uint32, error) {
	var path []uint32
	id := t.hdr.RootID
	for {
		n, err := t.cache.Get(id)
		if err != nil {
			return nil, err
		}
		if n.IsData() {
			return nil, fmt.Errorf("%w: %s: data node %d on descent path", ErrCorrupted, t.file.Path(), id)
		}
		path = append(path, id)

		first, err := t.cache.Get(n.Children[0])
		if err != nil {
			return nil, err
		}
		if first.IsData() {
			return path, nil
		}

		children := n.Children
		best := node.NullID
		bestEnl, bestVol := math.Inf(1), math.Inf(1)
		for _, cid := range children {
			c, err := t.cache.Get(cid)
			if err != nil {
				return nil, err
			}
			enl := c.Rect.Enlargement(rect)
			vol := c.Rect.Volume()
			if enl < bestEnl || (enl == bestEnl && vol < bestVol) {
				best, bestEnl, bestVol = cid, enl, vol
			}
		}
		id = best
	}
}

type entry struct {
	id   uint32
	rect geom.Rect
}

type group struct {
	ids  []uint32
	rect geom.Rect
}

func newGroup(e entry) *group {
	return &group{ids: []uint32{e.id}, rect: e.rect.Clone()}
}

func (g *group) add(e entry) {
	g.ids = append(g.ids, e.id)
	g.rect.Merge(e.rect)
}

// split divides the overflowing node n into two groups. n keeps the first
// group; the second group becomes a new node which is returned. Neither node
// is persisted.
func (t *Tree) split(n *node.Node) (*node.Node, error) {
	entries := make([]entry, len(n.Children))
	for i, cid := range n.Children {
		c, err := t.cache.Get(cid)
		if err != nil {
			return nil, err
		}
		entries[i] = entry{id: cid, rect: c.Rect}
	}

	si, sj := pickSeeds(entries)
	a, b := newGroup(entries[si]), newGroup(entries[sj])

	remaining := make([]entry, 0, len(entries)-2)
	for i, e := range entries {
		if i != si && i != sj {
			remaining = append(remaining, e)
		}
	}

	minChildren := int(t.hdr.MinChildren)
	for len(remaining) > 0 {
		if len(a.ids)+len(remaining) == minChildren {
			for _, e := range remaining {
				a.add(e)
			}
			break
		}
		if len(b.ids)+len(remaining) == minChildren {
			for _, e := range remaining {
				b.add(e)
			}
			break
		}

		i := pickNext(remaining, a, b)
		e := remaining[i]
		remaining = append(remaining[:i], remaining[i+1:]...)
		chooseGroup(e, a, b).add(e)
	}

	id, err := t.allocID()
	if err != nil {
		return nil, err
	}
	n.Children = a.ids
	n.Rect = a.rect
	return node.NewInternal(id, b.rect, b.ids...), nil
}

// pickSeeds returns the pair maximizing vol(merge(A,B)) + vol(A) + vol(B).
// The first such pair in index order wins.
func pickSeeds(entries []entry) (int, int) {
	si, sj := 0, 1
	worst := math.Inf(-1)
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i].rect, entries[j].rect
			waste := geom.Merged(a, b).Volume() + a.Volume() + b.Volume()
			if waste > worst {
				si, sj, worst = i, j, waste
			}
		}
	}
	return si, sj
}

// pickNext returns the index of the entry whose enlargement differs most
// between the two groups. The first such entry wins.
func pickNext(remaining []entry, a, b *group) int {
	next := 0
	maxDiff := math.Inf(-1)
	for i, e := range remaining {
		diff := math.Abs(a.rect.Enlargement(e.rect) - b.rect.Enlargement(e.rect))
		if diff > maxDiff {
			next, maxDiff = i, diff
		}
	}
	return next
}

// chooseGroup picks the group needing less enlargement for e, then the one
// with the smaller volume, then the one with fewer members (a on a full tie).
func chooseGroup(e entry, a, b *group) *group {
	enlA, enlB := a.rect.Enlargement(e.rect), b.rect.Enlargement(e.rect)
	switch {
	case enlA < enlB:
		return a
	case enlB < enlA:
		return b
	}
	volA, volB := a.rect.Volume(), b.rect.Volume()
	switch {
	case volA < volB:
		return a
	case volB < volA:
		return b
	}
	if len(a.ids) <= len(b.ids) {
		return a
	}
	return b
}

// adjust persists cur and its split partner, then walks up path merging
// their boxes into each parent and adding the partner as a new child,
// splitting parents that overflow. A split of the root grows a new root.
func (t *Tree) adjust(path []uint32, cur, partner *node.Node) error {
	if err := t.putPair(cur, partner); err != nil {
		return err
	}

	maxChildren := int(t.hdr.MaxChildren)
	for i := len(path) - 2; i >= 0; i-- {
		parent, err := t.cache.Get(path[i])
		if err != nil {
			return err
		}
		parent.Rect.Merge(cur.Rect)

		var next *node.Node
		if partner != nil && !parent.AddChild(partner, maxChildren) {
			if next, err = t.split(parent); err != nil {
				return err
			}
		}
		if err := t.putPair(parent, next); err != nil {
			return err
		}
		cur, partner = parent, next
	}

	if partner == nil {
		return nil
	}

	rootID, err := t.allocID()
	if err != nil {
		return err
	}
	root := node.NewInternal(rootID, geom.Merged(cur.Rect, partner.Rect), cur.ID, partner.ID)
	if err := t.cache.Put(root); err != nil {
		return err
	}
	t.hdr.RootID = root.ID
	return nil
}

func (t *Tree) putPair(n, partner *node.Node) error {
	if err := t.cache.Put(n); err != nil {
		return err
	}
	if partner != nil {
		return t.cache.Put(partner)
	}
	return nil
}

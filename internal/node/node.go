// Package node defines the tree node shared by the record store, the cache and the engine.
package node

import (
	"fmt"
	"strings"

	"github.com/hupe1980/hrtree/internal/geom"
)

// NullID is the reserved id that never names a real node.
const NullID uint32 = 0

// Node is a bounding box with an identity and either an ordered list of child
// node ids (internal node) or a single external data object id (data node).
//
// A node is a data node iff its child list is empty. Nodes refer to each other
// by id only; the cache resolves ids to nodes.
type Node struct {
	ID       uint32
	Rect     geom.Rect
	Children []uint32
	DataID   uint32
}

// NewData creates a data node wrapping the external object dataID.
func NewData(id, dataID uint32, rect geom.Rect) *Node {
	return &Node{
		ID:     id,
		Rect:   rect,
		DataID: dataID,
	}
}

// NewInternal creates an internal node with the given children.
// rect must already cover every child.
func NewInternal(id uint32, rect geom.Rect, children ...uint32) *Node {
	c := make([]uint32, len(children))
	copy(c, children)
	return &Node{
		ID:       id,
		Rect:     rect,
		Children: c,
	}
}

// IsData reports whether n is a data (leaf) node.
func (n *Node) IsData() bool { return len(n.Children) == 0 }

// AddChild appends child and grows the bounding box to cover it.
// It returns false if n now holds more than maxChildren children; the child is
// still appended so the caller can split n.
func (n *Node) AddChild(child *Node, maxChildren int) bool {
	n.Children = append(n.Children, child.ID)
	n.Rect.Merge(child.Rect)
	return len(n.Children) <= maxChildren
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	c := &Node{
		ID:     n.ID,
		Rect:   n.Rect.Clone(),
		DataID: n.DataID,
	}
	if len(n.Children) > 0 {
		c.Children = make([]uint32, len(n.Children))
		copy(c.Children, n.Children)
	}
	return c
}

func (n *Node) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %v/%v", n.ID, n.Rect.Start, n.Rect.Extent)
	if n.IsData() {
		fmt.Fprintf(&b, " data=%d", n.DataID)
	} else {
		fmt.Fprintf(&b, " children=%v", n.Children)
	}
	return b.String()
}

package record

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/hrtree/internal/geom"
	"github.com/hupe1980/hrtree/internal/node"
)

// Codec encodes nodes into fixed-size records for one store configuration.
//
// Layout (little endian):
//
//	id u32 | start dim×f64 | extent dim×f64 | data object id u32 | children maxChildren×u32
//
// Unused child slots hold node.NullID.
type Codec struct {
	dim         int
	maxChildren int
}

// NewCodec returns the codec for the given dimension and fan-out.
func NewCodec(dim, maxChildren uint32) Codec {
	return Codec{dim: int(dim), maxChildren: int(maxChildren)}
}

// Size returns the record size in bytes.
func (c Codec) Size() int {
	return 2*c.dim*8 + 2*4 + c.maxChildren*4
}

// Encode writes n into buf, which must hold at least Size bytes.
func (c Codec) Encode(n *node.Node, buf []byte) error {
	if len(buf) < c.Size() {
		return fmt.Errorf("record buffer too small: %d < %d", len(buf), c.Size())
	}
	if n.Rect.Dim() != c.dim || len(n.Rect.Extent) != c.dim {
		return fmt.Errorf("node %d has dimension %d, want %d", n.ID, n.Rect.Dim(), c.dim)
	}
	if len(n.Children) > c.maxChildren {
		return fmt.Errorf("node %d has %d children, max %d", n.ID, len(n.Children), c.maxChildren)
	}

	le := binary.LittleEndian
	off := 0
	le.PutUint32(buf[off:], n.ID)
	off += 4
	for _, x := range n.Rect.Start {
		le.PutUint64(buf[off:], math.Float64bits(x))
		off += 8
	}
	for _, x := range n.Rect.Extent {
		le.PutUint64(buf[off:], math.Float64bits(x))
		off += 8
	}

	var dataID uint32
	if n.IsData() {
		dataID = n.DataID
	}
	le.PutUint32(buf[off:], dataID)
	off += 4

	for i := 0; i < c.maxChildren; i++ {
		child := node.NullID
		if i < len(n.Children) {
			child = n.Children[i]
		}
		le.PutUint32(buf[off:], child)
		off += 4
	}
	return nil
}

// Decode parses a record. A non-zero data object id marks a data node;
// otherwise child ids are read up to the first NullID, and a record without
// children is a data node for external id 0.
func (c Codec) Decode(buf []byte) (*node.Node, error) {
	if len(buf) < c.Size() {
		return nil, fmt.Errorf("record too short: %d < %d", len(buf), c.Size())
	}

	le := binary.LittleEndian
	off := 0
	n := &node.Node{ID: le.Uint32(buf[off:])}
	off += 4

	start := make([]float64, c.dim)
	for i := range start {
		start[i] = math.Float64frombits(le.Uint64(buf[off:]))
		off += 8
	}
	extent := make([]float64, c.dim)
	for i := range extent {
		e := math.Float64frombits(le.Uint64(buf[off:]))
		if e < 0 || math.IsNaN(e) {
			return nil, fmt.Errorf("node %d: invalid extent %v on axis %d", n.ID, e, i)
		}
		extent[i] = e
		off += 8
	}
	n.Rect = geom.Rect{Start: start, Extent: extent}

	n.DataID = le.Uint32(buf[off:])
	off += 4
	if n.DataID != 0 {
		return n, nil
	}

	for i := 0; i < c.maxChildren; i++ {
		child := le.Uint32(buf[off:])
		off += 4
		if child == node.NullID {
			break
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

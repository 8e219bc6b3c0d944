package record

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/hrtree/internal/node"
)

// HeaderSize is the size of the fixed header at offset 0: eight u32 fields.
const HeaderSize = 8 * 4

// Header holds the tree-wide configuration and counters persisted at offset 0.
// Field order is the on-disk order.
type Header struct {
	Dimension      uint32
	RootID         uint32
	NextID         uint32
	EraseThreshold uint32
	CacheCapacity  uint32
	MinChildren    uint32
	MaxChildren    uint32
	NullID         uint32
}

// RecordSize returns the size of one node record:
// id, start and extent vectors, data object id and MaxChildren child ids.
func (h Header) RecordSize() int64 {
	return int64(2*h.Dimension)*8 + 2*4 + int64(h.MaxChildren)*4
}

// Offset returns the file offset of the record slot for node id.
func (h Header) Offset(id uint32) int64 {
	return HeaderSize + int64(id-1)*h.RecordSize()
}

// TombstoneOffset returns where the tombstone region starts.
func (h Header) TombstoneOffset() int64 {
	return HeaderSize + int64(h.NextID)*h.RecordSize()
}

// Validate reports whether h can describe a store.
func (h Header) Validate() error {
	switch {
	case h.Dimension == 0:
		return fmt.Errorf("dimension is zero")
	case h.MaxChildren < 2:
		return fmt.Errorf("max children %d < 2", h.MaxChildren)
	case h.MinChildren == 0 || h.MinChildren > h.MaxChildren:
		return fmt.Errorf("min children %d outside [1, %d]", h.MinChildren, h.MaxChildren)
	case h.CacheCapacity == 0:
		return fmt.Errorf("cache capacity is zero")
	case h.NullID != node.NullID:
		return fmt.Errorf("null id %d", h.NullID)
	case h.NextID == 0:
		return fmt.Errorf("next id is zero")
	case h.RootID >= h.NextID:
		return fmt.Errorf("root id %d >= next id %d", h.RootID, h.NextID)
	}
	return nil
}

func (h Header) encode(buf []byte) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:], h.Dimension)
	le.PutUint32(buf[4:], h.RootID)
	le.PutUint32(buf[8:], h.NextID)
	le.PutUint32(buf[12:], h.EraseThreshold)
	le.PutUint32(buf[16:], h.CacheCapacity)
	le.PutUint32(buf[20:], h.MinChildren)
	le.PutUint32(buf[24:], h.MaxChildren)
	le.PutUint32(buf[28:], h.NullID)
}

func decodeHeader(buf []byte) Header {
	le := binary.LittleEndian
	return Header{
		Dimension:      le.Uint32(buf[0:]),
		RootID:         le.Uint32(buf[4:]),
		NextID:         le.Uint32(buf[8:]),
		EraseThreshold: le.Uint32(buf[12:]),
		CacheCapacity:  le.Uint32(buf[16:]),
		MinChildren:    le.Uint32(buf[20:]),
		MaxChildren:    le.Uint32(buf[24:]),
		NullID:         le.Uint32(buf[28:]),
	}
}

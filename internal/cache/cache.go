package cache

import (
	"sync/atomic"

	"github.com/hupe1980/hrtree/internal/node"
)

// Backend is the persistent node storage behind a Cache.
type Backend interface {
	ReadNode(id uint32) (*node.Node, error)
	WriteNode(n *node.Node) error
}

// Cache is a fixed-capacity, direct-mapped, write-through node cache.
// It is not safe for concurrent use.
type Cache struct {
	slots   []*node.Node
	backend Backend

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache with capacity slots in front of backend.
// A zero capacity is treated as one slot.
func New(capacity uint32, backend Backend) *Cache {
	if capacity == 0 {
		capacity = 1
	}
	return &Cache{
		slots:   make([]*node.Node, capacity),
		backend: backend,
	}
}

func (c *Cache) slot(id uint32) int {
	return int(id % uint32(len(c.slots)))
}

// Get returns node id, reading it from the backend on a miss and installing it
// in its slot.
func (c *Cache) Get(id uint32) (*node.Node, error) {
	i := c.slot(id)
	if n := c.slots[i]; n != nil && n.ID == id {
		c.hits.Add(1)
		return n, nil
	}

	c.misses.Add(1)
	n, err := c.backend.ReadNode(id)
	if err != nil {
		return nil, err
	}
	c.slots[i] = n
	return n, nil
}

// Put writes n to the backend and installs it in its slot. If the write
// fails the slot is emptied.
func (c *Cache) Put(n *node.Node) error {
	i := c.slot(n.ID)
	if err := c.backend.WriteNode(n); err != nil {
		c.slots[i] = nil
		return err
	}
	c.slots[i] = n
	return nil
}

// Reset empties every slot.
func (c *Cache) Reset() {
	clear(c.slots)
}

// Capacity returns the number of slots.
func (c *Cache) Capacity() int { return len(c.slots) }

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

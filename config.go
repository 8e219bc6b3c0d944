package hrtree

import (
	"fmt"

	"github.com/hupe1980/hrtree/internal/node"
	"github.com/hupe1980/hrtree/internal/record"
)

// Config holds the tree constants fixed when a store is created. They are
// persisted in the file header and restored by Open.
type Config struct {
	// Dimension is the number of axes of every object.
	Dimension uint32

	// MinChildren is the minimum fan-out of a non-root internal node.
	// Default: 2
	MinChildren uint32

	// MaxChildren is the maximum fan-out of an internal node. It also fixes
	// the record size.
	// Default: 50
	MaxChildren uint32

	// CacheCapacity is the number of direct-mapped node cache slots.
	// Default: 1024
	CacheCapacity uint32

	// EraseThreshold is the number of tombstones tolerated before a rebuild.
	// Default: 100
	EraseThreshold uint32
}

// DefaultConfig returns the default configuration for dim-dimensional objects.
func DefaultConfig(dim uint32) Config {
	return Config{
		Dimension:      dim,
		MinChildren:    2,
		MaxChildren:    50,
		CacheCapacity:  1024,
		EraseThreshold: 100,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Dimension == 0:
		return fmt.Errorf("%w: dimension must be at least 1", ErrInvalidConfig)
	case c.MaxChildren < 2:
		return fmt.Errorf("%w: max children %d is below 2", ErrInvalidConfig, c.MaxChildren)
	case c.MinChildren == 0 || c.MinChildren > c.MaxChildren/2:
		return fmt.Errorf("%w: min children %d must be in [1, %d]", ErrInvalidConfig, c.MinChildren, c.MaxChildren/2)
	case c.CacheCapacity == 0:
		return fmt.Errorf("%w: cache capacity must be at least 1", ErrInvalidConfig)
	}
	return nil
}

func (c Config) header() record.Header {
	return record.Header{
		Dimension:      c.Dimension,
		RootID:         node.NullID,
		NextID:         1,
		EraseThreshold: c.EraseThreshold,
		CacheCapacity:  c.CacheCapacity,
		MinChildren:    c.MinChildren,
		MaxChildren:    c.MaxChildren,
		NullID:         node.NullID,
	}
}

func configFromHeader(h record.Header) Config {
	return Config{
		Dimension:      h.Dimension,
		MinChildren:    h.MinChildren,
		MaxChildren:    h.MaxChildren,
		CacheCapacity:  h.CacheCapacity,
		EraseThreshold: h.EraseThreshold,
	}
}

package engine

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hupe1980/hrtree/internal/cache"
	"github.com/hupe1980/hrtree/internal/geom"
	"github.com/hupe1980/hrtree/internal/idset"
	"github.com/hupe1980/hrtree/internal/node"
	"github.com/hupe1980/hrtree/internal/record"
)

// Object is a data object as returned by queries.
type Object struct {
	ID     uint32
	Start  []float64
	Extent []float64
}

// RebuildStats describes one completed rebuild.
type RebuildStats struct {
	Survivors int
	Purged    int
	IOCount   uint32
	Duration  time.Duration
}

// Option configures a Tree.
type Option func(*Tree)

// WithLogger sets the logger used for rebuild and open events.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tree) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithRebuildHook registers fn to be called after every rebuild.
func WithRebuildHook(fn func(RebuildStats)) Option {
	return func(t *Tree) {
		t.onRebuild = fn
	}
}

// Tree is an R-tree stored in a record file. It is not safe for concurrent use.
type Tree struct {
	file  *record.File
	cache *cache.Cache
	hdr   record.Header

	live       *idset.Set
	tombstones *idset.Set

	logger    *slog.Logger
	onRebuild func(RebuildStats)
}

// New creates a Tree over rf, restoring the tombstones persisted in rf and
// the live id set by traversing the tree. The traversal I/O is not reported
// by IOCount.
func New(rf *record.File, opts ...Option) (*Tree, error) {
	hdr := rf.Header()
	t := &Tree{
		file:       rf,
		cache:      cache.New(hdr.CacheCapacity, rf),
		hdr:        hdr,
		live:       idset.New(),
		tombstones: idset.New(rf.Tombstones()...),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := t.loadLiveIDs(); err != nil {
		return nil, err
	}
	rf.ResetIO()

	t.logger.Debug("tree loaded", "path", rf.Path(), "root", hdr.RootID, "nodes", hdr.NextID-1,
		"live", t.live.Len(), "tombstones", t.tombstones.Len())
	return t, nil
}

func (t *Tree) loadLiveIDs() error {
	return t.walk(func(n *node.Node) {
		if n.IsData() && !t.tombstones.Contains(n.DataID) {
			t.live.Add(n.DataID)
		}
	})
}

// walk visits every node reachable from the root in breadth-first order.
func (t *Tree) walk(fn func(n *node.Node)) error {
	if t.hdr.RootID == node.NullID {
		return nil
	}
	queue := []uint32{t.hdr.RootID}
	visited := uint32(0)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if visited++; visited >= t.hdr.NextID {
			return fmt.Errorf("%w: %s: more nodes reachable than allocated", ErrCorrupted, t.file.Path())
		}
		n, err := t.cache.Get(id)
		if err != nil {
			return err
		}
		fn(n)
		queue = append(queue, n.Children...)
	}
	return nil
}

// Header returns the current in-memory header.
func (t *Tree) Header() record.Header { return t.hdr }

// Len returns the number of live data objects.
func (t *Tree) Len() int { return t.live.Len() }

// Tombstones returns the number of erased ids awaiting a rebuild.
func (t *Tree) Tombstones() int { return t.tombstones.Len() }

// IOCount returns the record reads and writes performed by the last call.
func (t *Tree) IOCount() uint32 { return t.file.IOCount() }

// CacheStats returns the node cache hits and misses since the tree was opened.
func (t *Tree) CacheStats() (hits, misses int64) { return t.cache.Stats() }

// Save persists the header and tombstones.
func (t *Tree) Save() error {
	return t.file.Save(t.hdr, t.tombstones.ToSlice())
}

// Sync persists the header and tombstones and flushes the file.
func (t *Tree) Sync() error {
	if err := t.Save(); err != nil {
		return err
	}
	return t.file.Sync()
}

// Close syncs and closes the underlying file.
func (t *Tree) Close() error {
	if err := t.Sync(); err != nil {
		_ = t.file.Close()
		return err
	}
	return t.file.Close()
}

func (t *Tree) allocID() (uint32, error) {
	if t.hdr.NextID == math.MaxUint32 {
		return node.NullID, fmt.Errorf("%w: %s: node id space exhausted", ErrCorrupted, t.file.Path())
	}
	id := t.hdr.NextID
	t.hdr.NextID++
	return id, nil
}

func (t *Tree) checkDim(v []float64) error {
	if len(v) != int(t.hdr.Dimension) {
		return &ErrDimensionMismatch{Expected: int(t.hdr.Dimension), Actual: len(v)}
	}
	return nil
}

func (t *Tree) checkRect(start, extent []float64) error {
	if err := t.checkDim(start); err != nil {
		return err
	}
	if err := t.checkDim(extent); err != nil {
		return err
	}
	if err := checkFinite(start); err != nil {
		return err
	}
	for i, e := range extent {
		if e < 0 || math.IsNaN(e) {
			return fmt.Errorf("%w: axis %d is %v", ErrNegativeExtent, i, e)
		}
	}
	return checkFinite(extent)
}

func checkFinite(v []float64) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: axis %d is %v", ErrNonFinite, i, x)
		}
	}
	return nil
}

func toObject(n *node.Node) Object {
	r := n.Rect.Clone()
	return Object{ID: n.DataID, Start: r.Start, Extent: r.Extent}
}

func objectRect(o Object) geom.Rect {
	return geom.Rect{Start: o.Start, Extent: o.Extent}
}

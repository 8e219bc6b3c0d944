package hrtree

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/hrtree/internal/engine"
	"github.com/hupe1980/hrtree/internal/fs"
	"github.com/hupe1980/hrtree/internal/record"
	"github.com/hupe1980/hrtree/internal/resource"
)

// Object is a data object: a caller-supplied id and the box
// [Start, Start+Extent].
type Object = engine.Object

// Store is a disk-backed R-tree of axis-aligned boxes.
//
// Store serializes its methods with a mutex, but the file format has no
// concurrency story beyond that: one Store owns its file exclusively.
type Store struct {
	mu     sync.Mutex
	tree   *engine.Tree
	path   string
	closed bool

	fsys    fs.FileSystem
	snapSeq atomic.Uint64

	logger  *Logger
	metrics MetricsCollector
	ctrl    *resource.Controller
}

// Create creates a new store file at path. It fails with ErrAlreadyExists
// if path exists.
func Create(path string, cfg Config, opts ...Option) (*Store, error) {
	o := applyOptions(opts)
	if err := cfg.Validate(); err != nil {
		o.logger.LogOpen(path, true, 0, err)
		return nil, err
	}

	rf, err := record.Create(o.fileSystem, path, cfg.header())
	if err != nil {
		o.logger.LogOpen(path, true, 0, err)
		return nil, err
	}
	return newStore(rf, o, true)
}

// Open opens an existing store file. It fails with ErrNotFound if path is
// missing, ErrCorrupted if the file is damaged and ErrLocked if another
// handle owns it.
func Open(path string, opts ...Option) (*Store, error) {
	o := applyOptions(opts)

	rf, err := record.Open(o.fileSystem, path)
	if err != nil {
		o.logger.LogOpen(path, false, 0, err)
		return nil, err
	}
	return newStore(rf, o, false)
}

func newStore(rf *record.File, o options, created bool) (*Store, error) {
	s := &Store{
		path:    rf.Path(),
		fsys:    o.fileSystem,
		logger:  o.logger.WithPath(rf.Path()),
		metrics: o.metricsCollector,
		ctrl: resource.NewController(resource.Config{
			MaxBackgroundJobs:  o.maxBackgroundJobs,
			IOLimitBytesPerSec: o.ioLimit,
		}),
	}

	tree, err := engine.New(rf,
		engine.WithLogger(s.logger.Logger),
		engine.WithRebuildHook(s.onRebuild),
	)
	if err != nil {
		_ = rf.Close()
		o.logger.LogOpen(rf.Path(), created, 0, err)
		return nil, err
	}
	s.tree = tree

	o.logger.LogOpen(s.path, created, tree.Len(), nil)
	return s, nil
}

func (s *Store) onRebuild(st engine.RebuildStats) {
	s.logger.LogRebuild(st.Survivors, st.Purged, st.IOCount, st.Duration)
	s.metrics.RecordRebuild(st.Survivors, st.Purged, st.IOCount, st.Duration)
}

// Insert adds the object id covering [start, start+extent]. It fails with
// ErrAlreadyExists if id is live. An erased id may be inserted again; this
// triggers a rebuild first.
func (s *Store) Insert(id uint32, start, extent []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	began := time.Now()
	err := s.tree.Insert(id, start, extent)
	ioCount := s.tree.IOCount()
	s.metrics.RecordInsert(time.Since(began), ioCount, err)
	s.logger.LogInsert(id, ioCount, err)
	return err
}

// Search returns every live object whose box lies inside
// [start, start+extent], in breadth-first tree order.
func (s *Store) Search(start, extent []float64) ([]Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	began := time.Now()
	res, err := s.tree.Search(start, extent)
	ioCount := s.tree.IOCount()
	s.metrics.RecordSearch(time.Since(began), ioCount, len(res), err)
	s.logger.LogSearch(len(res), ioCount, err)
	return res, err
}

// KNN returns the k live objects nearest to point, ascending by the squared
// distance from point to their boxes. k must not exceed Len.
func (s *Store) KNN(k int, point []float64) ([]Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	began := time.Now()
	res, err := s.tree.KNN(k, point)
	ioCount := s.tree.IOCount()
	s.metrics.RecordKNN(k, time.Since(began), ioCount, err)
	s.logger.LogKNN(k, len(res), ioCount, err)
	return res, err
}

// Erase removes the live object id. Erased objects are tombstoned and purged
// by a rebuild once their number exceeds the erase threshold.
func (s *Store) Erase(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	began := time.Now()
	err := s.tree.Erase(id)
	ioCount := s.tree.IOCount()
	s.metrics.RecordErase(time.Since(began), ioCount, err)
	s.logger.LogErase(id, ioCount, err)
	return err
}

// LastIOCount returns the number of record reads and writes performed by the
// last Insert, Search, KNN or Erase.
func (s *Store) LastIOCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.IOCount()
}

// CacheStats counts node cache lookups since the store was opened.
type CacheStats struct {
	Hits   int64
	Misses int64
}

// HitRate returns Hits/(Hits+Misses), or 0 before any lookup.
func (c CacheStats) HitRate() float64 {
	if total := c.Hits + c.Misses; total > 0 {
		return float64(c.Hits) / float64(total)
	}
	return 0
}

// CacheStats returns the node cache counters.
func (s *Store) CacheStats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	hits, misses := s.tree.CacheStats()
	return CacheStats{Hits: hits, Misses: misses}
}

// Dimension returns the number of axes.
func (s *Store) Dimension() uint32 {
	return s.Config().Dimension
}

// Len returns the number of live objects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Len()
}

// Config returns the configuration the store was created with.
func (s *Store) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return configFromHeader(s.tree.Header())
}

// Path returns the store file path.
func (s *Store) Path() string { return s.path }

// Sync persists the header and tombstones and flushes the file to disk.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.tree.Sync()
}

// Close syncs the store and releases the file. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.tree.Close(); err != nil {
		s.logger.Error("close failed", "error", err)
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	s.logger.Debug("store closed", "live", s.tree.Len())
	return nil
}

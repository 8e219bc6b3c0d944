package engine

import (
	"fmt"
	"time"

	"github.com/hupe1980/hrtree/internal/node"
)

// Erase tombstones the live data object id. When the number of tombstones
// exceeds the erase threshold the tree is rebuilt from the survivors.
func (t *Tree) Erase(id uint32) error {
	t.file.ResetIO()

	if !t.live.Contains(id) {
		return fmt.Errorf("erase %d: %w", id, ErrNotFound)
	}
	t.live.Remove(id)
	t.tombstones.Add(id)

	if t.tombstones.Len() > int(t.hdr.EraseThreshold) {
		return t.rebuild()
	}
	return t.Save()
}

// rebuild collects every surviving data object, discards the node id space
// and reinserts the survivors into an empty tree. Tombstones are cleared and
// the file is truncated to the new size.
func (t *Tree) rebuild() error {
	began := time.Now()
	ioBefore := t.file.IOCount()
	purged := t.tombstones.Len()

	t.logger.Debug("rebuild started", "path", t.file.Path(), "live", t.live.Len(), "tombstones", purged)

	var survivors []Object
	if t.hdr.RootID != node.NullID {
		root, err := t.cache.Get(t.hdr.RootID)
		if err != nil {
			return err
		}
		if survivors, err = t.search(root.Rect.Clone()); err != nil {
			return err
		}
	}

	t.hdr.NextID = 1
	t.hdr.RootID = node.NullID
	t.cache.Reset()
	t.live.Clear()

	for _, o := range survivors {
		if err := t.insert(o.ID, objectRect(o)); err != nil {
			return fmt.Errorf("rebuild: reinsert %d: %w", o.ID, err)
		}
		t.live.Add(o.ID)
	}
	t.tombstones.Clear()

	if err := t.Save(); err != nil {
		return err
	}
	if err := t.file.Truncate(); err != nil {
		return err
	}

	stats := RebuildStats{
		Survivors: len(survivors),
		Purged:    purged,
		IOCount:   t.file.IOCount() - ioBefore,
		Duration:  time.Since(began),
	}
	t.logger.Debug("rebuild completed", "path", t.file.Path(), "survivors", stats.Survivors,
		"purged", stats.Purged, "nodes", t.hdr.NextID-1, "io", stats.IOCount, "duration", stats.Duration)
	if t.onRebuild != nil {
		t.onRebuild(stats)
	}
	return nil
}

package engine

import (
	"errors"
	"math"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hrtree/internal/fs"
	"github.com/hupe1980/hrtree/internal/geom"
	"github.com/hupe1980/hrtree/internal/node"
	"github.com/hupe1980/hrtree/internal/record"
	"github.com/hupe1980/hrtree/testutil"
)

type treeConfig struct {
	dim, minChildren, maxChildren, cache, threshold uint32
}

func (c treeConfig) header() record.Header {
	return record.Header{
		Dimension:      c.dim,
		NextID:         1,
		EraseThreshold: c.threshold,
		CacheCapacity:  c.cache,
		MinChildren:    c.minChildren,
		MaxChildren:    c.maxChildren,
	}
}

func createTree(t *testing.T, path string, cfg treeConfig, opts ...Option) *Tree {
	t.Helper()
	rf, err := record.Create(fs.Default, path, cfg.header())
	require.NoError(t, err)
	tr, err := New(rf, opts...)
	require.NoError(t, err)
	return tr
}

func newTestTree(t *testing.T, cfg treeConfig, opts ...Option) *Tree {
	t.Helper()
	tr := createTree(t, filepath.Join(t.TempDir(), "tree.db"), cfg, opts...)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func insertBoxes(t *testing.T, tr *Tree, boxes []testutil.Box) {
	t.Helper()
	for _, b := range boxes {
		require.NoError(t, tr.Insert(b.ID, b.Start, b.Extent))
	}
}

func ids(objs []Object) []uint32 {
	out := make([]uint32, len(objs))
	for i, o := range objs {
		out[i] = o.ID
	}
	slices.Sort(out)
	return out
}

func everything(dim int) ([]float64, []float64) {
	start := make([]float64, dim)
	extent := make([]float64, dim)
	for i := range start {
		start[i] = -1e9
		extent[i] = 2e9
	}
	return start, extent
}

// covers is Contains with room for the rounding of incrementally merged boxes.
func covers(outer, inner geom.Rect) bool {
	const eps = 1e-9
	for i := range outer.Start {
		if outer.Start[i] > inner.Start[i]+eps || outer.End(i)+eps < inner.End(i) {
			return false
		}
	}
	return true
}

// checkInvariants walks the whole tree and verifies fan-out bounds, exact
// bounding boxes, uniform leaf depth and that the data nodes match the live set.
func checkInvariants(t *testing.T, tr *Tree) {
	t.Helper()
	hdr := tr.Header()
	if hdr.RootID == node.NullID {
		assert.Zero(t, tr.Len())
		return
	}

	dataDepth := -1
	seen := 0
	var visit func(id uint32, depth int) geom.Rect
	visit = func(id uint32, depth int) geom.Rect {
		n, err := tr.file.ReadNode(id)
		require.NoError(t, err)

		if n.IsData() {
			if dataDepth == -1 {
				dataDepth = depth
			}
			assert.Equal(t, dataDepth, depth, "data node %d at uneven depth", id)
			if !tr.tombstones.Contains(n.DataID) {
				seen++
				assert.True(t, tr.live.Contains(n.DataID), "data %d not live", n.DataID)
			}
			return n.Rect
		}

		assert.LessOrEqual(t, len(n.Children), int(hdr.MaxChildren), "node %d overflows", id)
		if id != hdr.RootID {
			assert.GreaterOrEqual(t, len(n.Children), int(hdr.MinChildren), "node %d underflows", id)
		}

		var cover geom.Rect
		for i, cid := range n.Children {
			r := visit(cid, depth+1)
			assert.True(t, covers(n.Rect, r), "node %d does not cover child %d", id, cid)
			if i == 0 {
				cover = r.Clone()
			} else {
				cover.Merge(r)
			}
		}
		assert.InDeltaSlice(t, cover.Start, n.Rect.Start, 1e-9, "node %d start", id)
		assert.InDeltaSlice(t, cover.Extent, n.Rect.Extent, 1e-9, "node %d extent", id)
		return n.Rect
	}
	visit(hdr.RootID, 0)
	assert.Equal(t, tr.Len(), seen)
}

func TestTree_ConcreteScenario(t *testing.T) {
	tr := newTestTree(t, treeConfig{dim: 1, minChildren: 2, maxChildren: 4, cache: 16, threshold: 10})
	for i := uint32(0); i < 6; i++ {
		require.NoError(t, tr.Insert(i, []float64{float64(i)}, []float64{0}))
	}

	got, err := tr.Search([]float64{0}, []float64{10})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, ids(got))

	nn, err := tr.KNN(2, []float64{2.4})
	require.NoError(t, err)
	require.Len(t, nn, 2)
	assert.Equal(t, uint32(2), nn[0].ID)
	assert.Equal(t, uint32(3), nn[1].ID)
	assert.InDelta(t, 0.16, geom.Rect{Start: nn[0].Start, Extent: nn[0].Extent}.MinDistSq([]float64{2.4}), 1e-12)
	assert.InDelta(t, 0.36, geom.Rect{Start: nn[1].Start, Extent: nn[1].Extent}.MinDistSq([]float64{2.4}), 1e-12)

	checkInvariants(t, tr)
}

func TestTree_FirstInsertCreatesRoot(t *testing.T) {
	tr := newTestTree(t, treeConfig{dim: 2, minChildren: 2, maxChildren: 4, cache: 16, threshold: 10})

	require.NoError(t, tr.Insert(7, []float64{1, 2}, []float64{3, 4}))
	assert.Equal(t, uint32(2), tr.IOCount(), "one data node and one root written")

	hdr := tr.Header()
	assert.Equal(t, uint32(2), hdr.RootID)
	assert.Equal(t, uint32(3), hdr.NextID)

	root, err := tr.file.ReadNode(hdr.RootID)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, root.Children)
	assert.Equal(t, []float64{1, 2}, root.Rect.Start)
	assert.Equal(t, []float64{3, 4}, root.Rect.Extent)

	// With everything cached, a plain insert writes the data node and the root.
	require.NoError(t, tr.Insert(8, []float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, uint32(2), tr.IOCount())
}

func TestTree_DiagonalPoints(t *testing.T) {
	const n = 300
	tr := newTestTree(t, treeConfig{dim: 3, minChildren: 2, maxChildren: 5, cache: 64, threshold: 10})
	insertBoxes(t, tr, testutil.DiagonalPoints(n, 3))

	got, err := tr.Search([]float64{0, 0, 0}, []float64{n, n, n})
	require.NoError(t, err)
	assert.Len(t, got, n)
	checkInvariants(t, tr)
}

func TestTree_RandomBoxes(t *testing.T) {
	rng := testutil.NewRNG(42)
	boxes := rng.RandomBoxes(400, 2, -1000, 1000, 50)

	tr := newTestTree(t, treeConfig{dim: 2, minChildren: 2, maxChildren: 6, cache: 32, threshold: 10})
	insertBoxes(t, tr, boxes)
	checkInvariants(t, tr)
	assert.Equal(t, len(boxes), tr.Len())

	for _, b := range boxes[:50] {
		got, err := tr.Search(b.Start, b.Extent)
		require.NoError(t, err)
		assert.Contains(t, ids(got), b.ID)
		assert.Equal(t, testutil.ContainedIDs(boxes, b.Start, b.Extent), ids(got))
	}

	for i := 0; i < 20; i++ {
		start := rng.Point(2, -1000, 800)
		extent := rng.Point(2, 0, 400)
		got, err := tr.Search(start, extent)
		require.NoError(t, err)
		want := testutil.ContainedIDs(boxes, start, extent)
		if len(want) == 0 {
			assert.Empty(t, got)
		} else {
			assert.Equal(t, want, ids(got))
		}
	}
}

func TestTree_KNNMatchesLinearScan(t *testing.T) {
	rng := testutil.NewRNG(7)
	points := rng.RandomBoxes(250, 2, -100, 100, 0)

	tr := newTestTree(t, treeConfig{dim: 2, minChildren: 2, maxChildren: 4, cache: 8, threshold: 10})
	insertBoxes(t, tr, points)

	for q := 0; q < 10; q++ {
		p := rng.Point(2, -120, 120)
		for _, k := range []int{1, 2, 5, 17, len(points)} {
			got, err := tr.KNN(k, p)
			require.NoError(t, err)
			want := testutil.ExactKNN(points, p, k)
			require.Len(t, got, k)
			for i := range got {
				assert.Equal(t, want[i].ID, got[i].ID, "k=%d rank %d", k, i)
				d := testutil.MinDistSq(testutil.Box{Start: got[i].Start, Extent: got[i].Extent}, p)
				assert.InDelta(t, want[i].DistSq, d, 1e-9)
			}
		}
	}
}

func TestTree_KNNDistancesWithOverlappingBoxes(t *testing.T) {
	rng := testutil.NewRNG(99)
	boxes := rng.RandomBoxes(150, 3, -50, 50, 20)

	tr := newTestTree(t, treeConfig{dim: 3, minChildren: 3, maxChildren: 8, cache: 16, threshold: 10})
	insertBoxes(t, tr, boxes)

	p := []float64{0, 0, 0}
	got, err := tr.KNN(30, p)
	require.NoError(t, err)
	want := testutil.ExactKNN(boxes, p, 30)
	for i := range got {
		d := testutil.MinDistSq(testutil.Box{Start: got[i].Start, Extent: got[i].Extent}, p)
		assert.InDelta(t, want[i].DistSq, d, 1e-9, "rank %d", i)
	}
}

func TestTree_KNNEdgeCases(t *testing.T) {
	tr := newTestTree(t, treeConfig{dim: 1, minChildren: 2, maxChildren: 4, cache: 16, threshold: 10})
	insertBoxes(t, tr, testutil.DiagonalPoints(3, 1))

	got, err := tr.KNN(0, []float64{1})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = tr.KNN(4, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidK)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, tr.IOCount(), "k beyond the live count reads nothing")

	_, err = tr.KNN(-1, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidK)

	var dm *ErrDimensionMismatch
	_, err = tr.KNN(1, []float64{1, 2})
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 1, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
}

func TestTree_EmptyStore(t *testing.T) {
	tr := newTestTree(t, treeConfig{dim: 2, minChildren: 2, maxChildren: 4, cache: 16, threshold: 10})

	got, err := tr.Search([]float64{0, 0}, []float64{10, 10})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, tr.IOCount())

	_, err = tr.KNN(1, []float64{0, 0})
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestTree_ValidationLeavesStateUnchanged(t *testing.T) {
	tr := newTestTree(t, treeConfig{dim: 2, minChildren: 2, maxChildren: 4, cache: 16, threshold: 10})
	require.NoError(t, tr.Insert(1, []float64{0, 0}, []float64{1, 1}))
	before := tr.Header()

	err := tr.Insert(1, []float64{5, 5}, []float64{1, 1})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 1, tr.Len())

	var dm *ErrDimensionMismatch
	err = tr.Insert(2, []float64{5}, []float64{1, 1})
	require.ErrorAs(t, err, &dm)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = tr.Search([]float64{0, 0, 0}, []float64{1, 1, 1})
	assert.ErrorAs(t, err, &dm)

	err = tr.Insert(2, []float64{5, 5}, []float64{1, -1})
	assert.ErrorIs(t, err, ErrNegativeExtent)

	err = tr.Erase(99)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, before, tr.Header())
	assert.Equal(t, 1, tr.Len())
}

func TestTree_RejectsNonFiniteCoordinates(t *testing.T) {
	tr := newTestTree(t, treeConfig{dim: 2, minChildren: 2, maxChildren: 4, cache: 16, threshold: 10})
	require.NoError(t, tr.Insert(1, []float64{0, 0}, []float64{1, 1}))
	before := tr.Header()

	for _, tt := range []struct {
		name          string
		start, extent []float64
	}{
		{"NaNStart", []float64{math.NaN(), 0}, []float64{1, 1}},
		{"PosInfStart", []float64{0, math.Inf(1)}, []float64{1, 1}},
		{"NegInfStart", []float64{math.Inf(-1), 0}, []float64{1, 1}},
		{"InfExtent", []float64{0, 0}, []float64{math.Inf(1), 1}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := tr.Insert(2, tt.start, tt.extent)
			assert.ErrorIs(t, err, ErrNonFinite)
			assert.ErrorIs(t, err, ErrInvalidArgument)

			_, err = tr.Search(tt.start, tt.extent)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	_, err := tr.KNN(1, []float64{math.NaN(), 0})
	assert.ErrorIs(t, err, ErrNonFinite)
	_, err = tr.KNN(1, []float64{0, math.Inf(-1)})
	assert.ErrorIs(t, err, ErrNonFinite)

	assert.Equal(t, before, tr.Header())
	assert.Equal(t, 1, tr.Len())
}

func TestTree_EraseHidesObject(t *testing.T) {
	tr := newTestTree(t, treeConfig{dim: 1, minChildren: 2, maxChildren: 4, cache: 16, threshold: 10})
	insertBoxes(t, tr, testutil.DiagonalPoints(10, 1))

	require.NoError(t, tr.Erase(4))
	assert.Zero(t, tr.IOCount(), "erase below the threshold touches no record")
	assert.Equal(t, 9, tr.Len())
	assert.Equal(t, 1, tr.Tombstones())

	got, err := tr.Search([]float64{0}, []float64{100})
	require.NoError(t, err)
	assert.NotContains(t, ids(got), uint32(4))

	nn, err := tr.KNN(1, []float64{4})
	require.NoError(t, err)
	assert.NotEqual(t, uint32(4), nn[0].ID)

	assert.ErrorIs(t, tr.Erase(4), ErrNotFound)
}

func TestTree_RebuildOnThreshold(t *testing.T) {
	var rebuilds []RebuildStats
	tr := newTestTree(t, treeConfig{dim: 2, minChildren: 2, maxChildren: 4, cache: 16, threshold: 3},
		WithRebuildHook(func(s RebuildStats) { rebuilds = append(rebuilds, s) }))
	insertBoxes(t, tr, testutil.DiagonalPoints(20, 2))

	for id := uint32(0); id < 3; id++ {
		require.NoError(t, tr.Erase(id))
	}
	assert.Empty(t, rebuilds)

	require.NoError(t, tr.Erase(3))
	require.Len(t, rebuilds, 1)
	assert.Equal(t, 16, rebuilds[0].Survivors)
	assert.Equal(t, 4, rebuilds[0].Purged)
	assert.Positive(t, tr.IOCount())
	assert.Zero(t, tr.Tombstones())
	checkInvariants(t, tr)

	start, extent := everything(2)
	got, err := tr.Search(start, extent)
	require.NoError(t, err)
	assert.Len(t, got, 16)
	for id := uint32(0); id < 4; id++ {
		assert.NotContains(t, ids(got), id)
		require.NoError(t, tr.Insert(id, []float64{float64(id), float64(id)}, []float64{0, 0}))
	}
	assert.Equal(t, 20, tr.Len())
	checkInvariants(t, tr)
}

func TestTree_EraseInRandomOrder(t *testing.T) {
	rebuilds := 0
	tr := newTestTree(t, treeConfig{dim: 2, minChildren: 2, maxChildren: 5, cache: 32, threshold: 4},
		WithRebuildHook(func(RebuildStats) { rebuilds++ }))
	rng := testutil.NewRNG(21)
	boxes := rng.RandomBoxes(60, 2, 0, 100, 3)
	insertBoxes(t, tr, boxes)

	remaining := slices.Clone(boxes)
	start, extent := everything(2)
	for _, i := range rng.Perm(len(boxes))[:45] {
		require.NoError(t, tr.Erase(boxes[i].ID))
		remaining = slices.DeleteFunc(remaining, func(b testutil.Box) bool { return b.ID == boxes[i].ID })

		got, err := tr.Search(start, extent)
		require.NoError(t, err)
		require.Equal(t, testutil.ContainedIDs(remaining, start, extent), ids(got))
	}
	assert.Equal(t, 15, tr.Len())
	assert.Equal(t, 9, rebuilds, "every fifth erase rebuilds")
	checkInvariants(t, tr)
}

func TestTree_ReinsertTombstonedForcesRebuild(t *testing.T) {
	rebuilt := 0
	tr := newTestTree(t, treeConfig{dim: 1, minChildren: 2, maxChildren: 4, cache: 16, threshold: 50},
		WithRebuildHook(func(RebuildStats) { rebuilt++ }))
	insertBoxes(t, tr, testutil.DiagonalPoints(12, 1))

	require.NoError(t, tr.Erase(5))
	require.NoError(t, tr.Insert(5, []float64{50}, []float64{1}))
	assert.Equal(t, 1, rebuilt)
	assert.Zero(t, tr.Tombstones())

	got, err := tr.Search([]float64{50}, []float64{1})
	require.NoError(t, err)
	assert.Equal(t, []uint32{5}, ids(got))
	checkInvariants(t, tr)
}

func TestTree_RebuildEverythingErased(t *testing.T) {
	tr := newTestTree(t, treeConfig{dim: 1, minChildren: 1, maxChildren: 2, cache: 4, threshold: 0})
	insertBoxes(t, tr, testutil.DiagonalPoints(1, 1))

	require.NoError(t, tr.Erase(0))
	assert.Equal(t, node.NullID, tr.Header().RootID)
	assert.Equal(t, uint32(1), tr.Header().NextID)
	assert.Zero(t, tr.Len())

	require.NoError(t, tr.Insert(0, []float64{3}, []float64{0}))
	assert.Equal(t, 1, tr.Len())
}

func TestTree_ReopenRestoresState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.db")
	rng := testutil.NewRNG(3)
	boxes := rng.RandomBoxes(120, 2, 0, 100, 5)

	tr := createTree(t, path, treeConfig{dim: 2, minChildren: 2, maxChildren: 5, cache: 8, threshold: 50})
	insertBoxes(t, tr, boxes)
	require.NoError(t, tr.Erase(10))
	require.NoError(t, tr.Erase(11))
	start, extent := everything(2)
	before, err := tr.Search(start, extent)
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	rf, err := record.Open(fs.Default, path)
	require.NoError(t, err)
	tr, err = New(rf)
	require.NoError(t, err)
	defer tr.Close()

	assert.Zero(t, tr.IOCount(), "loading the live set is not reported")
	assert.Equal(t, 118, tr.Len())
	assert.Equal(t, 2, tr.Tombstones())

	after, err := tr.Search(start, extent)
	require.NoError(t, err)
	assert.ElementsMatch(t, before, after)

	assert.ErrorIs(t, tr.Insert(12, []float64{0, 0}, []float64{0, 0}), ErrAlreadyExists)
	require.NoError(t, tr.Insert(10, []float64{0, 0}, []float64{0, 0}), "tombstoned ids are reusable")
	checkInvariants(t, tr)
}

func TestTree_SmallCacheCountsReloads(t *testing.T) {
	cfg := treeConfig{dim: 2, minChildren: 2, maxChildren: 4, cache: 1, threshold: 10}
	small := newTestTree(t, cfg)
	cfg.cache = 1024
	large := newTestTree(t, cfg)

	boxes := testutil.NewRNG(5).RandomBoxes(100, 2, 0, 100, 1)
	insertBoxes(t, small, boxes)
	insertBoxes(t, large, boxes)

	start, extent := everything(2)
	_, err := small.Search(start, extent)
	require.NoError(t, err)
	_, err = large.Search(start, extent)
	require.NoError(t, err)
	assert.Greater(t, small.IOCount(), large.IOCount())

	_, smallMisses := small.CacheStats()
	_, largeMisses := large.CacheStats()
	assert.Greater(t, smallMisses, largeMisses)
}

func TestTree_CorruptedFile(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	path := filepath.Join(t.TempDir(), "broken.db")
	cfg := treeConfig{dim: 1, minChildren: 2, maxChildren: 4, cache: 16, threshold: 10}

	// Header and empty tombstone list fit, the first record does not.
	ffs.AddRule("broken", fs.Fault{FailAfterBytes: record.HeaderSize + 8})
	rf, err := record.Create(ffs, path, cfg.header())
	require.NoError(t, err)
	tr, err := New(rf)
	require.NoError(t, err)
	defer tr.Close()

	err = tr.Insert(1, []float64{0}, []float64{0})
	assert.ErrorIs(t, err, ErrCorrupted)
	assert.True(t, errors.Is(err, fs.ErrInjected))
}

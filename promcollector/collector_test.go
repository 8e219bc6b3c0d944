package promcollector

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hrtree"
)

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg, "test")

	c.RecordInsert(time.Millisecond, 3, nil)
	c.RecordInsert(time.Millisecond, 0, errors.New("boom"))
	c.RecordSearch(time.Millisecond, 2, 7, nil)
	c.RecordKNN(3, time.Millisecond, 4, nil)
	c.RecordErase(time.Millisecond, 0, nil)
	c.RecordRebuild(10, 5, 40, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("insert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("insert", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("knn", "ok")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.results))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rebuilds))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.purged))
	assert.Equal(t, 40.0, testutil.ToFloat64(c.rebuildIO))

	n, err := testutil.GatherAndCount(reg, "test_hrtree_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 5, n, "one series per op and status")
}

func TestCollector_WithStore(t *testing.T) {
	c := New(nil, "")
	cfg := hrtree.Config{
		Dimension:      1,
		MinChildren:    2,
		MaxChildren:    4,
		CacheCapacity:  8,
		EraseThreshold: 1,
	}
	st, err := hrtree.Create(filepath.Join(t.TempDir(), "prom.hrt"), cfg, hrtree.WithMetricsCollector(c))
	require.NoError(t, err)
	defer st.Close()

	for i := range 5 {
		require.NoError(t, st.Insert(uint32(i), []float64{float64(i)}, []float64{0}))
	}
	require.NoError(t, st.Erase(0))
	require.NoError(t, st.Erase(1))
	assert.ErrorIs(t, st.Erase(1), hrtree.ErrNotFound)

	assert.Equal(t, 5.0, testutil.ToFloat64(c.ops.WithLabelValues("insert", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ops.WithLabelValues("erase", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("erase", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rebuilds))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.purged))
}

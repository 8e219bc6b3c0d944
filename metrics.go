package hrtree

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// promcollector package provides a Prometheus implementation.
//
// ioCount is the number of record reads and writes the call performed.
type MetricsCollector interface {
	// RecordInsert is called after each insert.
	RecordInsert(duration time.Duration, ioCount uint32, err error)

	// RecordSearch is called after each range search.
	RecordSearch(duration time.Duration, ioCount uint32, results int, err error)

	// RecordKNN is called after each nearest neighbor query.
	RecordKNN(k int, duration time.Duration, ioCount uint32, err error)

	// RecordErase is called after each erase.
	RecordErase(duration time.Duration, ioCount uint32, err error)

	// RecordRebuild is called after each rebuild, including rebuilds
	// triggered from inside an insert or erase.
	RecordRebuild(survivors, purged int, ioCount uint32, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, uint32, error)      {}
func (NoopMetricsCollector) RecordSearch(time.Duration, uint32, int, error) {}
func (NoopMetricsCollector) RecordKNN(int, time.Duration, uint32, error)    {}
func (NoopMetricsCollector) RecordErase(time.Duration, uint32, error)       {}
func (NoopMetricsCollector) RecordRebuild(int, int, uint32, time.Duration)  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchResults    atomic.Int64
	KNNCount         atomic.Int64
	KNNErrors        atomic.Int64
	KNNTotalNanos    atomic.Int64
	EraseCount       atomic.Int64
	EraseErrors      atomic.Int64
	RebuildCount     atomic.Int64
	RebuildPurged    atomic.Int64
	IOTotal          atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, ioCount uint32, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	b.IOTotal.Add(int64(ioCount))
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ time.Duration, ioCount uint32, results int, err error) {
	b.SearchCount.Add(1)
	b.SearchResults.Add(int64(results))
	b.IOTotal.Add(int64(ioCount))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordKNN implements MetricsCollector.
func (b *BasicMetricsCollector) RecordKNN(_ int, duration time.Duration, ioCount uint32, err error) {
	b.KNNCount.Add(1)
	b.KNNTotalNanos.Add(duration.Nanoseconds())
	b.IOTotal.Add(int64(ioCount))
	if err != nil {
		b.KNNErrors.Add(1)
	}
}

// RecordErase implements MetricsCollector.
func (b *BasicMetricsCollector) RecordErase(_ time.Duration, ioCount uint32, err error) {
	b.EraseCount.Add(1)
	b.IOTotal.Add(int64(ioCount))
	if err != nil {
		b.EraseErrors.Add(1)
	}
}

// RecordRebuild implements MetricsCollector. The rebuild I/O is already part
// of the insert or erase that triggered it.
func (b *BasicMetricsCollector) RecordRebuild(_, purged int, _ uint32, _ time.Duration) {
	b.RebuildCount.Add(1)
	b.RebuildPurged.Add(int64(purged))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:    b.InsertCount.Load(),
		InsertErrors:   b.InsertErrors.Load(),
		InsertAvgNanos: avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchResults:  b.SearchResults.Load(),
		KNNCount:       b.KNNCount.Load(),
		KNNErrors:      b.KNNErrors.Load(),
		KNNAvgNanos:    avg(b.KNNTotalNanos.Load(), b.KNNCount.Load()),
		EraseCount:     b.EraseCount.Load(),
		EraseErrors:    b.EraseErrors.Load(),
		RebuildCount:   b.RebuildCount.Load(),
		RebuildPurged:  b.RebuildPurged.Load(),
		IOTotal:        b.IOTotal.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount    int64
	InsertErrors   int64
	InsertAvgNanos int64
	SearchCount    int64
	SearchErrors   int64
	SearchResults  int64
	KNNCount       int64
	KNNErrors      int64
	KNNAvgNanos    int64
	EraseCount     int64
	EraseErrors    int64
	RebuildCount   int64
	RebuildPurged  int64
	IOTotal        int64
}

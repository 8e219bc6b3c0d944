// Package promcollector exports hrtree operation metrics to Prometheus.
//
//	c := promcollector.New(prometheus.DefaultRegisterer, "myapp")
//	st, err := hrtree.Open("cities.hrt", hrtree.WithMetricsCollector(c))
package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/hrtree"
)

// Collector implements hrtree.MetricsCollector.
type Collector struct {
	duration  *prometheus.HistogramVec
	io        *prometheus.HistogramVec
	ops       *prometheus.CounterVec
	results   prometheus.Counter
	rebuilds  prometheus.Counter
	purged    prometheus.Counter
	rebuildIO prometheus.Counter
}

var _ hrtree.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg. A nil reg
// leaves the metrics unregistered.
func New(reg prometheus.Registerer, namespace string) *Collector {
	c := &Collector{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hrtree",
			Name:      "operation_duration_seconds",
			Help:      "Latency of tree operations.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"op", "status"}),
		io: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hrtree",
			Name:      "operation_record_io",
			Help:      "Record reads and writes per tree operation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"op"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hrtree",
			Name:      "operations_total",
			Help:      "Tree operations by outcome.",
		}, []string{"op", "status"}),
		results: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hrtree",
			Name:      "search_results_total",
			Help:      "Objects returned by range searches.",
		}),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hrtree",
			Name:      "rebuilds_total",
			Help:      "Completed tree rebuilds.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hrtree",
			Name:      "purged_objects_total",
			Help:      "Tombstoned objects dropped by rebuilds.",
		}),
		rebuildIO: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hrtree",
			Name:      "rebuild_record_io_total",
			Help:      "Record reads and writes spent in rebuilds.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.duration, c.io, c.ops, c.results, c.rebuilds, c.purged, c.rebuildIO)
	}
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) observe(op string, d time.Duration, ioCount uint32, err error) {
	s := status(err)
	c.duration.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
	if err == nil {
		c.io.WithLabelValues(op).Observe(float64(ioCount))
	}
}

// RecordInsert implements hrtree.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, ioCount uint32, err error) {
	c.observe("insert", d, ioCount, err)
}

// RecordSearch implements hrtree.MetricsCollector.
func (c *Collector) RecordSearch(d time.Duration, ioCount uint32, results int, err error) {
	c.observe("search", d, ioCount, err)
	c.results.Add(float64(results))
}

// RecordKNN implements hrtree.MetricsCollector.
func (c *Collector) RecordKNN(_ int, d time.Duration, ioCount uint32, err error) {
	c.observe("knn", d, ioCount, err)
}

// RecordErase implements hrtree.MetricsCollector.
func (c *Collector) RecordErase(d time.Duration, ioCount uint32, err error) {
	c.observe("erase", d, ioCount, err)
}

// RecordRebuild implements hrtree.MetricsCollector.
func (c *Collector) RecordRebuild(_, purged int, ioCount uint32, _ time.Duration) {
	c.rebuilds.Inc()
	c.purged.Add(float64(purged))
	c.rebuildIO.Add(float64(ioCount))
}

package hrtree

import (
	"log/slog"

	"github.com/hupe1980/hrtree/internal/fs"
)

type options struct {
	logger            *Logger
	metricsCollector  MetricsCollector
	fileSystem        fs.FileSystem
	maxBackgroundJobs int64
	ioLimit           int64
}

func defaultOptions() options {
	return options{
		logger:            NoopLogger(),
		metricsCollector:  NoopMetricsCollector{},
		fileSystem:        fs.Default,
		maxBackgroundJobs: 1,
	}
}

// Option configures Create, Open and Restore.
type Option func(*options)

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &hrtree.BasicMetricsCollector{}
//	st, _ := hrtree.Open("cities.hrt", hrtree.WithMetricsCollector(metrics))
//	// ... use st ...
//	stats := metrics.GetStats()
//	fmt.Printf("Inserts: %d, I/O: %d\n", stats.InsertCount, stats.IOTotal)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := hrtree.NewJSONLogger(slog.LevelInfo)
//	st, _ := hrtree.Open("cities.hrt", hrtree.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithBackgroundJobs limits how many backups of the store may run at once.
// Additional backups wait for a free slot.
// Default: 1
func WithBackgroundJobs(n int64) Option {
	return func(o *options) {
		o.maxBackgroundJobs = n
	}
}

// WithBackupRateLimit caps the read throughput of backups in bytes per
// second. BackupOptions.RateLimit overrides it per call.
// Default: unlimited
func WithBackupRateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// withFileSystem swaps the file system holding the store file (tests).
func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fileSystem = fsys
	}
}

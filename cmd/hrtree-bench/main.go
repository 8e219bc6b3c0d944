// Command hrtree-bench loads a store with a synthetic data set and times a
// range search or a k-nearest-neighbor query against it.
//
//	hrtree-bench -scenario diagonal -dim 3 -n 100000
//	hrtree-bench -scenario random -dim 2 -n 50000 -k 10
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/hupe1980/hrtree"
	"github.com/hupe1980/hrtree/testutil"
)

type benchConfig struct {
	dim      int
	n        int
	k        int
	scenario string
	min      uint
	max      uint
	cache    uint
	seed     int64
	keep     bool
	path     string
}

var (
	header = color.New(color.FgCyan, color.Bold).SprintFunc()
	value  = color.New(color.FgGreen).SprintFunc()
	warn   = color.New(color.FgYellow).SprintFunc()
	fail   = color.New(color.FgRed, color.Bold).SprintFunc()
)

func main() {
	var cfg benchConfig
	flag.IntVar(&cfg.dim, "dim", 2, "number of axes")
	flag.IntVar(&cfg.n, "n", 10000, "number of objects to insert")
	flag.IntVar(&cfg.k, "k", 0, "run a k-NN query instead of a range search when > 0")
	flag.StringVar(&cfg.scenario, "scenario", "random", "data set: diagonal or random")
	flag.UintVar(&cfg.min, "min", 2, "minimum children per node")
	flag.UintVar(&cfg.max, "max", 50, "maximum children per node")
	flag.UintVar(&cfg.cache, "cache", 1024, "node cache slots")
	flag.Int64Var(&cfg.seed, "seed", 1, "random seed")
	flag.BoolVar(&cfg.keep, "keep", false, "keep the store file")
	flag.StringVar(&cfg.path, "path", "", "store file (default: a temporary file)")
	flag.Parse()

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, fail("error:"), err)
		os.Exit(1)
	}
}

func run(cfg benchConfig) error {
	if cfg.dim <= 0 || cfg.n < 0 {
		return errors.New("-dim must be positive and -n non-negative")
	}

	rng := testutil.NewRNG(cfg.seed)
	var boxes []testutil.Box
	switch cfg.scenario {
	case "diagonal":
		boxes = testutil.DiagonalPoints(cfg.n, cfg.dim)
	case "random":
		boxes = rng.RandomBoxes(cfg.n, cfg.dim, -1000, 1000, 10)
	default:
		return fmt.Errorf("unknown scenario %q", cfg.scenario)
	}

	path := cfg.path
	if path == "" {
		dir, err := os.MkdirTemp("", "hrtree-bench-")
		if err != nil {
			return err
		}
		if !cfg.keep {
			defer os.RemoveAll(dir)
		}
		path = filepath.Join(dir, "bench.hrt")
	}

	tc := hrtree.DefaultConfig(uint32(cfg.dim))
	tc.MinChildren = uint32(cfg.min)
	tc.MaxChildren = uint32(cfg.max)
	tc.CacheCapacity = uint32(cfg.cache)

	metrics := &hrtree.BasicMetricsCollector{}
	st, err := hrtree.Create(path, tc, hrtree.WithMetricsCollector(metrics))
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Println(header("== load =="))
	began := time.Now()
	for _, b := range boxes {
		if err := st.Insert(b.ID, b.Start, b.Extent); err != nil {
			return fmt.Errorf("insert %d: %w", b.ID, err)
		}
	}
	elapsed := time.Since(began)
	stats := metrics.GetStats()
	fmt.Printf("scenario   %s\n", value(cfg.scenario))
	fmt.Printf("objects    %s\n", value(st.Len()))
	fmt.Printf("elapsed    %s\n", value(elapsed.Round(time.Microsecond)))
	if cfg.n > 0 {
		fmt.Printf("io/insert  %s\n", value(fmt.Sprintf("%.2f", float64(stats.IOTotal)/float64(cfg.n))))
	}

	if cfg.k > 0 {
		return runKNN(st, rng, boxes, cfg)
	}
	return runSearch(st, rng, cfg)
}

func runSearch(st *hrtree.Store, rng *testutil.RNG, cfg benchConfig) error {
	start := make([]float64, cfg.dim)
	extent := make([]float64, cfg.dim)
	if cfg.scenario == "diagonal" {
		// Covers every point of the diagonal.
		for i := range extent {
			extent[i] = float64(cfg.n)
		}
	} else {
		start = rng.Point(cfg.dim, -1000, 500)
		for i := range extent {
			extent[i] = 500
		}
	}

	fmt.Println(header("== search =="))
	began := time.Now()
	res, err := st.Search(start, extent)
	if err != nil {
		return err
	}
	report(st, len(res), time.Since(began))
	if cfg.scenario == "diagonal" && len(res) != st.Len() {
		fmt.Println(warn(fmt.Sprintf("expected %d results", st.Len())))
	}
	return nil
}

func runKNN(st *hrtree.Store, rng *testutil.RNG, boxes []testutil.Box, cfg benchConfig) error {
	if cfg.k > st.Len() {
		return fmt.Errorf("-k %d exceeds the %d loaded objects", cfg.k, st.Len())
	}
	q := rng.Point(cfg.dim, -1000, 1000)

	fmt.Println(header("== knn =="))
	began := time.Now()
	res, err := st.KNN(cfg.k, q)
	if err != nil {
		return err
	}
	report(st, len(res), time.Since(began))
	if len(res) > 0 {
		fmt.Printf("nearest    %s\n", value(res[0].ID))
	}

	exact := testutil.ExactKNN(boxes, q, cfg.k)
	truth := make([]uint32, len(exact))
	for i, nb := range exact {
		truth[i] = nb.ID
	}
	got := make([]uint32, len(res))
	for i, o := range res {
		got[i] = o.ID
	}
	// Below 1 only when distances tie at the k-th neighbor.
	recall := testutil.ComputeRecall(truth, got)
	line := fmt.Sprintf("%.3f", recall)
	if recall < 1 {
		line = warn(line)
	} else {
		line = value(line)
	}
	fmt.Printf("recall     %s\n", line)
	return nil
}

func report(st *hrtree.Store, results int, d time.Duration) {
	fmt.Printf("results    %s\n", value(results))
	fmt.Printf("latency    %s\n", value(d.Round(time.Microsecond)))
	fmt.Printf("record io  %s\n", value(st.LastIOCount()))
	cs := st.CacheStats()
	fmt.Printf("cache hit  %s\n", value(fmt.Sprintf("%.1f%% (%d/%d)", 100*cs.HitRate(), cs.Hits, cs.Hits+cs.Misses)))
}

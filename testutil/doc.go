// Package testutil provides testing utilities for hrtree.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random boxes, computing exact
// range and nearest neighbor results by linear scan, and measuring recall.
//
// # Random Boxes
//
//	rng := testutil.NewRNG(seed)
//	boxes := rng.RandomBoxes(1000, 2, -1000, 1000, 10)
//
// # Exact Search (Ground Truth)
//
//	want := testutil.ExactKNN(boxes, point, k)
//	ids := testutil.ContainedIDs(boxes, start, extent)
package testutil

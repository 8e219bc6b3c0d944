// Package engine implements the R-tree algorithms over a record file.
//
// The engine owns the in-memory header, the node cache, the live id set and
// the tombstone set. It provides:
//   - insertion with choose-leaf descent, quadratic split and upward adjustment
//   - breadth-first range search
//   - best-first k-nearest-neighbor search
//   - lazy erase with threshold-triggered rebuild
//
// Nodes are only read and written through the cache, so the record file's
// I/O counter reflects exactly the cache misses and writes of each call.
package engine

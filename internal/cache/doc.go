// Package cache provides the node cache that sits between the tree engine and
// the record file.
//
// The cache is direct-mapped: node id maps to slot id mod capacity, each slot
// holds at most one node and a miss simply replaces the slot. There is no
// eviction policy and no chaining, so the number of physical record reads of
// an operation is deterministic.
//
// Writes go through to the backend before the slot is refreshed. The slot
// copy is the authoritative in-memory copy of a node until it is replaced.
package cache

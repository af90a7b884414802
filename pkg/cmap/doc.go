// Package cmap provides a concurrent-safe sharded map keyed by strings.
//
// Keys are spread across a power-of-two number of shards using murmur3,
// each guarded by its own RWMutex, so unrelated keys rarely contend.
//
// The map gives per-key atomicity only. Callers that must keep several
// maps consistent with each other need their own lock around them.
package cmap

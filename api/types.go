// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level value types for allocator reporting.

package api

// PoolStats is a point-in-time view of one pool.
type PoolStats struct {
	Total       int  // arena size in bytes, 0 when not materialized
	Reserved    int  // highest carved offset
	Free        int  // tracked free bytes
	Gaps        int  // recorded gaps
	Headers     int  // header slots allocated
	LiveHeaders int  // header slots currently in use
	Locked      bool // arena pages are memory-locked
}

// FillRate classifies active pools by how much of them is free.
type FillRate struct {
	Pools       int     // active pools sampled
	HighDensity float64 // fraction of pools with free ratio <= 20%
	LowDensity  float64 // fraction of pools with free ratio >= 80%
	FreeBytes   uint64  // free bytes across active pools
}

// AllocatorStats aggregates allocator-wide counters.
type AllocatorStats struct {
	ActivePools  int
	SparePools   int
	LockedBytes  uint64
	Allocations  uint64
	Frees        uint64
	Grows        uint64
	Retirements  uint64
	Sweeps       uint64
	QuotaRefusal uint64
	Pools        []PoolStats
}

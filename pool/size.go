// File: pool/size.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "math"

// TargetPoolSize is the arena size the page-aligned pool size is derived from.
const TargetPoolSize = 512 * 1024

// Quantum is the fixed per-allocation granularity. Every span handed out of
// an arena is a multiple of it.
const Quantum = 8

// PoolSize aligns the standard arena size to a multiple of the page size
// just above TargetPoolSize. Pages at least as large as the target are used
// as-is.
func PoolSize(pageSize int) int {
	if pageSize <= 0 {
		pageSize = 4096
	}
	if pageSize < TargetPoolSize {
		return pageSize * (TargetPoolSize/pageSize + 1)
	}
	return pageSize
}

// MaxSize is the largest payload whose span does not overflow int.
const MaxSize = math.MaxInt - (Quantum - 1)

// ValidSize reports whether size can be requested from a pool.
func ValidSize(size int) bool { return size > 0 && size <= MaxSize }

// SpanOf returns the arena bytes consumed by a payload of size bytes. size
// must satisfy ValidSize.
func SpanOf(size int) int {
	return (size + Quantum - 1) &^ (Quantum - 1)
}

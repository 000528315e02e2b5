// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines the platform contract consumed by locked memory pools.

package api

// Platform abstracts the OS services an arena needs. Implementations live in
// package osmem (real OS) and package fake (tests).
type Platform interface {
	// PageSize returns the OS page size in bytes.
	PageSize() int

	// Map returns a zeroed, writable region of exactly size bytes that is not
	// managed by the Go garbage collector.
	Map(size int) ([]byte, error)

	// Unmap returns a region obtained from Map to the OS.
	Unmap(region []byte) error

	// Lock pins the region's pages in physical memory. Best effort.
	Lock(region []byte) error

	// Unlock reverses Lock.
	Unlock(region []byte) error

	// SetLockLimit asks the OS to allow at least limit bytes of locked memory
	// for this process.
	SetLockLimit(limit uint64) error
}

// File: osmem/osmem.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for locked memory regions. Platform-specific
// implementations are located in separate files (osmem_linux.go,
// osmem_windows.go, etc.) guarded by build tags.

package osmem

import "github.com/momentics/lockedalloc/api"

// OS is the api.Platform backed by the running operating system.
type OS struct{}

// New returns the OS platform.
func New() *OS { return &OS{} }

// PageSize returns the OS page size.
func (OS) PageSize() int { return pageSize() }

// Map returns an anonymous private mapping of size bytes.
func (OS) Map(size int) ([]byte, error) { return mapRegion(size) }

// Unmap releases a mapping returned by Map.
func (OS) Unmap(region []byte) error { return unmapRegion(region) }

// Lock pins region against swap.
func (OS) Lock(region []byte) error { return lockRegion(region) }

// Unlock reverses Lock.
func (OS) Unlock(region []byte) error { return unlockRegion(region) }

// SetLockLimit raises the process lockable-memory ceiling to at least limit.
func (OS) SetLockLimit(limit uint64) error { return setLockLimit(limit) }

// LockLimit returns the current lockable-memory ceiling of the process.
func LockLimit() (uint64, error) { return lockLimit() }

var _ api.Platform = (*OS)(nil)

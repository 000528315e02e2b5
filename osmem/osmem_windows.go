//go:build windows

// File: osmem/osmem_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows-specific implementation: VirtualAlloc regions locked with
// VirtualLock. Lockable memory is bounded by the minimum working set, so the
// quota call resizes the process working set.

package osmem

import (
	"os"
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/windows"
)

// Windows requires this many pages of working set overhead.
const workingSetOverheadPages = 20

// Upper working set bound handed to SetProcessWorkingSetSize.
const workingSetMax = 1 << 30

var (
	modkernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procGetProcessWorkingSetSize = modkernel32.NewProc("GetProcessWorkingSetSize")
	procSetProcessWorkingSetSize = modkernel32.NewProc("SetProcessWorkingSetSize")
)

func pageSize() int { return os.Getpagesize() }

func mapRegion(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size),
		windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil, errors.Wrapf(err, "osmem: VirtualAlloc %d bytes", size)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func unmapRegion(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	return windows.VirtualFree(uintptr(unsafe.Pointer(&region[0])), 0, windows.MEM_RELEASE)
}

func lockRegion(region []byte) error {
	if err := windows.VirtualLock(uintptr(unsafe.Pointer(&region[0])), uintptr(len(region))); err != nil {
		return errors.Wrap(err, "osmem: VirtualLock")
	}
	return nil
}

func unlockRegion(region []byte) error {
	if err := windows.VirtualUnlock(uintptr(unsafe.Pointer(&region[0])), uintptr(len(region))); err != nil {
		return errors.Wrap(err, "osmem: VirtualUnlock")
	}
	return nil
}

func lockLimit() (uint64, error) {
	var minSize, maxSize uintptr
	r, _, err := procGetProcessWorkingSetSize.Call(
		uintptr(windows.CurrentProcess()),
		uintptr(unsafe.Pointer(&minSize)),
		uintptr(unsafe.Pointer(&maxSize)),
	)
	if r == 0 {
		return 0, errors.Wrap(err, "osmem: GetProcessWorkingSetSize")
	}
	return uint64(minSize), nil
}

func setLockLimit(limit uint64) error {
	page := uint64(pageSize())
	minSize := (limit/page + 1 + workingSetOverheadPages) * page
	maxSize := uint64(workingSetMax)
	if maxSize < minSize {
		maxSize = minSize
	}
	r, _, err := procSetProcessWorkingSetSize.Call(
		uintptr(windows.CurrentProcess()),
		uintptr(minSize),
		uintptr(maxSize),
	)
	if r == 0 {
		return errors.Wrapf(err, "osmem: SetProcessWorkingSetSize(%d, %d)", minSize, maxSize)
	}
	return nil
}

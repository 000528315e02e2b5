//go:build !unix && !windows

// File: osmem/osmem_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms. Regions come from the Go
// heap and can never be locked.

package osmem

import (
	"os"

	"github.com/momentics/lockedalloc/api"
)

func pageSize() int { return os.Getpagesize() }

func mapRegion(size int) ([]byte, error) { return make([]byte, size), nil }

func unmapRegion([]byte) error { return nil }

func lockRegion([]byte) error { return api.ErrNotSupported }

func unlockRegion([]byte) error { return nil }

func lockLimit() (uint64, error) { return 0, api.ErrNotSupported }

func setLockLimit(uint64) error { return api.ErrNotSupported }

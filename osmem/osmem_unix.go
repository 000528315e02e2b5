//go:build unix

// File: osmem/osmem_unix.go
// Author: momentics <momentics@gmail.com>
//
// mmap/mlock backed regions for unix systems.

package osmem

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

func pageSize() int { return unix.Getpagesize() }

func mapRegion(size int) ([]byte, error) {
	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "osmem: mmap %d bytes", size)
	}
	return data, nil
}

func unmapRegion(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	err := unix.Munmap(region)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

func lockRegion(region []byte) error {
	if err := unix.Mlock(region); err != nil {
		return errors.Wrap(err, "osmem: mlock")
	}
	return nil
}

func unlockRegion(region []byte) error {
	if err := unix.Munlock(region); err != nil {
		return errors.Wrap(err, "osmem: munlock")
	}
	return nil
}

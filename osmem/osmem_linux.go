//go:build linux

// File: osmem/osmem_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux lockable-memory ceiling through RLIMIT_MEMLOCK.

package osmem

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

func lockLimit() (uint64, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rl); err != nil {
		return 0, errors.Wrap(err, "osmem: getrlimit(RLIMIT_MEMLOCK)")
	}
	return uint64(rl.Cur), nil
}

// setLockLimit raises the soft limit, and the hard limit when the process has
// CAP_SYS_RESOURCE. The limit is never lowered.
func setLockLimit(limit uint64) error {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rl); err != nil {
		return errors.Wrap(err, "osmem: getrlimit(RLIMIT_MEMLOCK)")
	}
	if uint64(rl.Cur) >= limit {
		return nil
	}
	next := rl
	next.Cur = limit
	if uint64(next.Max) < limit {
		next.Max = limit
	}
	if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &next); err != nil {
		return errors.Wrapf(err, "osmem: setrlimit(RLIMIT_MEMLOCK, %d)", limit)
	}
	return nil
}

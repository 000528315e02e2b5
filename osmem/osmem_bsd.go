//go:build unix && !linux

// File: osmem/osmem_bsd.go
// Author: momentics <momentics@gmail.com>
//
// Non-linux unix systems manage the lock ceiling outside the process; the
// quota call succeeds and mlock reports the real outcome.

package osmem

import "github.com/momentics/lockedalloc/api"

func lockLimit() (uint64, error) { return 0, api.ErrNotSupported }

func setLockLimit(uint64) error { return nil }

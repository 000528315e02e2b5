// File: pool/quota.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide lockable-memory bookkeeping shared by every pool.

package pool

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/momentics/lockedalloc/api"
	"github.com/momentics/lockedalloc/internal/concurrency"
)

const (
	// DefaultQuotaFloor is the smallest lock limit ever requested from the OS.
	DefaultQuotaFloor = 100 << 20
	// DefaultQuotaCeiling caps the total bytes the process will try to lock.
	DefaultQuotaCeiling = 1 << 30
)

// Quota tracks how many bytes are locked and grows the OS ceiling on demand.
// Failures never abort the caller; they only decide whether an arena is
// locked.
type Quota struct {
	mu       concurrency.SpinMutex
	platform api.Platform
	floor    uint64
	ceiling  uint64
	locked   uint64

	refusals atomic.Uint64
}

// NewQuota creates a quota with the given floor and ceiling. Zero values
// select the defaults.
func NewQuota(platform api.Platform, floor, ceiling uint64) *Quota {
	if floor == 0 {
		floor = DefaultQuotaFloor
	}
	if ceiling == 0 {
		ceiling = DefaultQuotaCeiling
	}
	if floor > ceiling {
		floor = ceiling
	}
	return &Quota{platform: platform, floor: floor, ceiling: ceiling}
}

// Extend reserves delta more lockable bytes.
func (q *Quota) Extend(delta int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	want := q.locked + uint64(delta)
	if want > q.ceiling {
		q.refusals.Add(1)
		return errors.Wrapf(api.ErrQuotaRefused, "%d bytes over the %d byte ceiling", want-q.ceiling, q.ceiling)
	}
	limit := want
	if limit < q.floor {
		limit = q.floor
	}
	if err := q.platform.SetLockLimit(limit); err != nil {
		q.refusals.Add(1)
		return errors.Wrapf(api.ErrQuotaRefused, "set lock limit %d: %v", limit, err)
	}
	q.locked = want
	return nil
}

// Shrink returns delta bytes previously obtained with Extend.
func (q *Quota) Shrink(delta int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	d := uint64(delta)
	if d > q.locked {
		d = q.locked
	}
	q.locked -= d
	limit := q.locked
	if limit < q.floor {
		limit = q.floor
	}
	// Best effort; platforms that never lower the limit ignore it.
	_ = q.platform.SetLockLimit(limit)
}

// Locked returns the bytes currently accounted as locked.
func (q *Quota) Locked() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.locked
}

// Refusals returns how many Extend calls were declined.
func (q *Quota) Refusals() uint64 { return q.refusals.Load() }

// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package fake provides in-memory stand-ins for lockedalloc collaborators.
package fake

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/momentics/lockedalloc/api"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("fake: injected failure")

// Platform is a deterministic api.Platform. Regions come from the Go heap and
// are retained after Unmap so their addresses are never handed out again.
type Platform struct {
	mu sync.Mutex

	Page int

	FailQuota bool
	FailLock  bool
	FailMap   int // number of upcoming Map calls that fail

	limit    uint64
	mapped   map[uintptr]int
	locked   map[uintptr]bool
	released [][]byte

	MapCalls   int
	UnmapCalls int
	LimitCalls int
}

// NewPlatform returns a platform with 4 KiB pages.
func NewPlatform() *Platform {
	return &Platform{
		Page:   4096,
		mapped: make(map[uintptr]int),
		locked: make(map[uintptr]bool),
	}
}

func base(region []byte) uintptr {
	if len(region) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&region[0]))
}

func (p *Platform) PageSize() int { return p.Page }

func (p *Platform) Map(size int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MapCalls++
	if p.FailMap > 0 {
		p.FailMap--
		return nil, ErrInjected
	}
	region := make([]byte, size)
	p.mapped[base(region)] = size
	return region, nil
}

func (p *Platform) Unmap(region []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.UnmapCalls++
	b := base(region)
	if _, ok := p.mapped[b]; !ok {
		return errors.Newf("fake: unmap of unknown region %#x", b)
	}
	delete(p.mapped, b)
	delete(p.locked, b)
	p.released = append(p.released, region)
	return nil
}

func (p *Platform) Lock(region []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailLock {
		return ErrInjected
	}
	p.locked[base(region)] = true
	return nil
}

func (p *Platform) Unlock(region []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.locked, base(region))
	return nil
}

func (p *Platform) SetLockLimit(limit uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LimitCalls++
	if p.FailQuota {
		return ErrInjected
	}
	if limit > p.limit {
		p.limit = limit
	}
	return nil
}

// Limit returns the highest lock limit granted.
func (p *Platform) Limit() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit
}

// Mapped returns the number of live regions.
func (p *Platform) Mapped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.mapped)
}

// LockedRegions returns the number of locked live regions.
func (p *Platform) LockedRegions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locked)
}

// WasReleased reports whether b lies inside a region that was unmapped.
func (p *Platform) WasReleased(b []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	addr := base(b)
	for _, r := range p.released {
		lo := base(r)
		if addr >= lo && addr < lo+uintptr(len(r)) {
			return true
		}
	}
	return false
}

var _ api.Platform = (*Platform)(nil)

// File: allocator/allocator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package allocator

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/momentics/lockedalloc/api"
	"github.com/momentics/lockedalloc/internal/concurrency"
	"github.com/momentics/lockedalloc/pool"
)

// Allocator serves locked buffers from a growable collection of pools.
//
// Coordination uses only spin primitives:
//   - scans counts goroutines inside a pool scan, sweep or release; growth,
//     retirement and Close shut it and wait for it to drain before touching
//     the collection or the arenas;
//   - structural serializes growth and retirement;
//   - rotating guards the order permutation swap.
type Allocator struct {
	cfg      Config
	platform api.Platform
	quota    *pool.Quota
	log      *zap.Logger
	poolLog  *zap.Logger

	set    *concurrency.Generation[poolSet]
	shape  atomic.Uint64 // bumped by growth and retirement
	nextID atomic.Uint64

	cursor     atomic.Int64
	steps      atomic.Int64
	scans      concurrency.DrainBarrier
	structural concurrency.SpinMutex
	rotating   concurrency.SpinMutex

	closed atomic.Bool
	pinned atomic.Int64 // live buffers bound to an external pin

	allocs      atomic.Uint64
	frees       atomic.Uint64
	grows       atomic.Uint64
	retirements atomic.Uint64
	sweeps      atomic.Uint64
}

// New creates an allocator with one batch of pools. Arenas are mapped lazily.
func New(opts ...Option) (*Allocator, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates an allocator from an explicit Config.
func NewWithConfig(cfg Config) (*Allocator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	a := &Allocator{
		cfg:      cfg,
		platform: cfg.Platform,
		quota:    pool.NewQuota(cfg.Platform, cfg.QuotaFloor, cfg.QuotaCeiling),
		log:      cfg.Logger.Named("allocator"),
		poolLog:  cfg.Logger.Named("pool"),
		set:      concurrency.NewGeneration(&poolSet{}),
	}
	a.structural.Lock()
	a.extend()
	a.structural.Unlock()
	return a, nil
}

// Allocate returns a zeroed buffer of size bytes.
func (a *Allocator) Allocate(size int) (*Buffer, error) {
	return a.allocate(size, nil)
}

// AllocatePinned returns a zeroed buffer whose liveness is governed by pin.
// Releasing the pin lets Sweep reclaim the buffer without a Free call. On
// failure the pin is left as it was.
func (a *Allocator) AllocatePinned(size int, pin *api.ExternalPin) (*Buffer, error) {
	if pin == nil {
		return a.allocate(size, nil)
	}
	// The pin must be held before the header is published, or a concurrent
	// Sweep could reclaim the buffer before it is returned.
	wasHeld := pin.Live()
	pin.Hold()
	a.pinned.Add(1)
	b, err := a.allocate(size, pin)
	if err != nil {
		a.pinned.Add(-1)
		if !wasHeld {
			pin.Release()
		}
		return nil, err
	}
	b.pinned = true
	return b, nil
}

func (a *Allocator) allocate(size int, pin api.Pin) (*Buffer, error) {
	if !pool.ValidSize(size) {
		return nil, errors.Wrapf(api.ErrInvalidSize, "size %d", size)
	}
	if a.closed.Load() {
		return nil, api.ErrClosed
	}
	for {
		shape := a.shape.Load()
		h, err := a.scan(size, pin)
		if err != nil {
			return nil, err
		}
		if h != nil {
			a.allocs.Add(1)
			return newBuffer(a, h), nil
		}
		if a.closed.Load() {
			return nil, api.ErrClosed
		}
		if a.pinned.Load() > 0 && a.Sweep() > 0 {
			continue
		}
		a.grow(shape)
	}
}

// scan walks the collection from the shared cursor. It returns (nil, nil)
// when every pool was tried without success.
func (a *Allocator) scan(size int, pin api.Pin) (*pool.Header, error) {
	a.scans.Enter()
	defer a.scans.Exit()

	set := a.set.Load()
	n := int64(len(set.order))
	for {
		i := a.cursor.Add(1) - 1
		if i >= n {
			return nil, nil
		}
		p := set.pools[set.order[i]]
		if !p.Fits(size) {
			continue
		}
		h, err := p.GetBuffer(size, pin)
		a.advanceRotation(int(i))
		if err == nil {
			a.cursor.Store(0)
			return h, nil
		}
		if errors.Is(err, api.ErrPoolBusy) || errors.Is(err, api.ErrArenaExhausted) {
			continue
		}
		return nil, err
	}
}

// Free releases b. Freeing an already released buffer, or any buffer after
// Close, is a no-op. A Free racing Close either completes before the arenas
// are unmapped or observes the allocator closed.
func (a *Allocator) Free(b *Buffer) {
	if b == nil || b.pool == nil || a.closed.Load() {
		return
	}
	a.scans.Enter()
	if a.closed.Load() {
		a.scans.Exit()
		return
	}
	released, emptied := b.pool.Release(b.index, b.gen)
	a.scans.Exit()
	if !released {
		return
	}
	a.frees.Add(1)
	if b.pinned {
		a.pinned.Add(-1)
	}
	if emptied {
		a.retire(b.pool)
	}
}

// Sweep reclaims pinned buffers whose external pin was released. It returns
// the number of buffers reclaimed.
func (a *Allocator) Sweep() int {
	a.sweeps.Add(1)

	a.scans.Enter()
	set := a.set.Load()
	total := 0
	var emptied []*pool.MemPool
	for i := 0; i < set.active; i++ {
		n, empty := set.pools[i].Sweep()
		total += n
		if empty {
			emptied = append(emptied, set.pools[i])
		}
	}
	a.scans.Exit()
	a.pinned.Add(-int64(total))

	for _, p := range emptied {
		a.retire(p)
	}
	if total > 0 {
		a.log.Debug("swept released pins", zap.Int("buffers", total))
	}
	return total
}

// ActivePools returns the number of pools in the active range.
func (a *Allocator) ActivePools() int { return a.set.Load().active }

// LockedBytes returns the bytes currently accounted against the lock quota.
func (a *Allocator) LockedBytes() uint64 { return a.quota.Locked() }

// Stats returns allocator-wide counters and per-pool views.
func (a *Allocator) Stats() api.AllocatorStats {
	set := a.set.Load()
	st := api.AllocatorStats{
		ActivePools:  set.active,
		SparePools:   len(set.pools) - set.active,
		LockedBytes:  a.quota.Locked(),
		Allocations:  a.allocs.Load(),
		Frees:        a.frees.Load(),
		Grows:        a.grows.Load(),
		Retirements:  a.retirements.Load(),
		Sweeps:       a.sweeps.Load(),
		QuotaRefusal: a.quota.Refusals(),
		Pools:        make([]api.PoolStats, 0, set.active),
	}
	for i := 0; i < set.active; i++ {
		st.Pools = append(st.Pools, set.pools[i].Stats())
	}
	return st
}

// Close releases every arena. Buffers still held become invalid; Free calls
// in flight are drained first and later ones are no-ops.
func (a *Allocator) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return api.ErrClosed
	}
	a.structural.Lock()
	defer a.structural.Unlock()
	a.scans.Close()
	defer a.scans.Open()

	for _, p := range a.set.Load().pools {
		p.Close()
	}
	a.pinned.Store(0)
	a.log.Debug("allocator closed")
	return nil
}

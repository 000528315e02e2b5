// File: allocator/collection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool collection growth, retirement and scan-order rotation.

package allocator

import (
	"go.uber.org/zap"

	"github.com/momentics/lockedalloc/pool"
)

// poolSet is one immutable generation of the collection. pools[:active] is
// the active range; pools past it are retired and kept for reuse, so a pool
// object never moves or disappears while the allocator lives. order is a
// permutation of [0, active) that sets where scans start.
type poolSet struct {
	pools  []*pool.MemPool
	active int
	order  []int
}

// grow runs the growth protocol after a failed scan. One goroutine extends
// the collection; the others wait for it and retry. shape is the collection
// shape observed before the scan; growth is skipped when another goroutine
// already changed it.
func (a *Allocator) grow(shape uint64) {
	if !a.structural.TryLock() {
		a.structural.WaitUnlocked()
		return
	}
	defer a.structural.Unlock()

	a.scans.Close()
	defer a.scans.Open()
	a.rotating.Lock()
	defer a.rotating.Unlock()

	if a.shape.Load() == shape {
		a.extend()
	}
	a.cursor.Store(0)
}

// extend appends PoolStep pools to the active range, reusing retired pools
// first. New indices go to the front of the order. The caller holds
// structural with the scan barrier drained, or is the constructor.
func (a *Allocator) extend() {
	cur := a.set.Load()
	step := a.cfg.PoolStep
	active := cur.active + step

	pools := make([]*pool.MemPool, len(cur.pools), max(len(cur.pools), active))
	copy(pools, cur.pools)
	for len(pools) < active {
		id := a.nextID.Add(1)
		pools = append(pools, pool.New(id, a.platform, a.quota, a.cfg.poolConfig(), a.poolLog))
	}

	order := make([]int, 0, active)
	for i := cur.active; i < active; i++ {
		order = append(order, i)
	}
	order = append(order, cur.order...)

	a.set.Swap(&poolSet{pools: pools, active: active, order: order})
	a.shape.Add(1)
	a.grows.Add(1)
	a.log.Debug("pool collection extended",
		zap.Int("active", active), zap.Int("allocated", len(pools)))
}

// retire releases p's arena if it is still empty and swaps it past the end
// of the active range.
func (a *Allocator) retire(p *pool.MemPool) {
	a.structural.Lock()
	defer a.structural.Unlock()
	a.scans.Close()
	defer a.scans.Open()
	a.rotating.Lock()
	defer a.rotating.Unlock()

	cur := a.set.Load()
	idx := -1
	for i := 0; i < cur.active; i++ {
		if cur.pools[i] == p {
			idx = i
			break
		}
	}
	if idx < 0 || !p.Retire() {
		return
	}

	last := cur.active - 1
	pools := make([]*pool.MemPool, len(cur.pools))
	copy(pools, cur.pools)
	pools[idx], pools[last] = pools[last], pools[idx]

	order := make([]int, 0, last)
	for _, o := range cur.order {
		if o != last {
			order = append(order, o)
		}
	}

	a.set.Swap(&poolSet{pools: pools, active: last, order: order})
	a.shape.Add(1)
	a.retirements.Add(1)
	a.log.Debug("pool retired", zap.Uint64("pool", p.ID()), zap.Int("active", last))
}

// advanceRotation rotates the order every RotationThreshold scan steps so
// the indices up to and including from move to the back. Contended
// rotations are skipped rather than waited for.
func (a *Allocator) advanceRotation(from int) {
	threshold := int64(a.cfg.RotationThreshold)
	if a.steps.Add(1) < threshold {
		return
	}
	if !a.rotating.TryLock() {
		return
	}
	defer a.rotating.Unlock()
	if a.steps.Load() < threshold {
		return
	}
	a.steps.Store(0)

	cur := a.set.Load()
	in := from + 1
	if in <= 0 || in >= len(cur.order) {
		return
	}
	order := make([]int, 0, len(cur.order))
	order = append(order, cur.order[in:]...)
	order = append(order, cur.order[:in]...)
	a.set.Swap(&poolSet{pools: cur.pools, active: cur.active, order: order})
}

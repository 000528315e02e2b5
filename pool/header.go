// File: pool/header.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Buffer headers: one metadata record per live or recycled allocation.

package pool

import (
	"sync/atomic"

	"github.com/momentics/lockedalloc/api"
	"github.com/momentics/lockedalloc/internal/concurrency"
)

// Header lifecycle states. A slot can be claimed only when free; Release
// moves it live -> releasing -> free.
const (
	stateFree uint64 = iota
	stateLive
	stateReleasing
)

const stateMask = 3

func packState(gen uint32, st uint64) uint64 { return uint64(gen)<<2 | st }

func unpackState(v uint64) (uint32, uint64) { return uint32(v >> 2), v & stateMask }

// Header is the bookkeeping record of one allocation. The state word packs a
// generation counter with the lifecycle state so a stale handle can never
// release a recycled slot.
type Header struct {
	index int
	pool  *MemPool
	state atomic.Uint64

	// Written by the claiming goroutine before the header is handed out and
	// by the releasing goroutine after it won the live->releasing transition.
	offset int
	size   int
	data   []byte
	pin    api.Pin
}

// Index returns the slot index inside the owning pool's header table.
func (h *Header) Index() int { return h.index }

// Pool returns the owning pool.
func (h *Header) Pool() *MemPool { return h.pool }

// Gen returns the generation of the current claim.
func (h *Header) Gen() uint32 {
	gen, _ := unpackState(h.state.Load())
	return gen
}

// Offset returns the span offset inside the arena.
func (h *Header) Offset() int { return h.offset }

// Size returns the span size, payload plus quantum padding.
func (h *Header) Size() int { return h.size }

// Data returns the payload.
func (h *Header) Data() []byte { return h.data }

// InUse reports whether the slot is claimed.
func (h *Header) InUse() bool {
	_, st := unpackState(h.state.Load())
	return st != stateFree
}

// Live reports the liveness the header defers to: the external pin when one
// is bound, the header's own state otherwise.
func (h *Header) Live() bool {
	if h.pin != nil {
		return h.pin.Live()
	}
	_, st := unpackState(h.state.Load())
	return st == stateLive
}

// Holds reports whether the header is live in generation gen.
func (h *Header) Holds(gen uint32) bool {
	return h.state.Load() == packState(gen, stateLive)
}

// Pinned reports whether liveness is borrowed from an external pin.
func (h *Header) Pinned() bool { return h.pin != nil }

// headerTable is a growable header array. The index slice is published
// through a Generation so Release can resolve an index while the allocate
// path grows the table. Header records are allocated in batches and never
// move.
type headerTable struct {
	batch int
	slots *concurrency.Generation[[]*Header]
}

func newHeaderTable(batch int) headerTable {
	if batch <= 0 {
		batch = DefaultHeaderBatch
	}
	empty := []*Header{}
	return headerTable{batch: batch, slots: concurrency.NewGeneration(&empty)}
}

// at resolves index, returning nil when it is out of range.
func (t *headerTable) at(index int) *Header {
	slots := *t.slots.Load()
	if index < 0 || index >= len(slots) {
		return nil
	}
	return slots[index]
}

func (t *headerTable) len() int { return len(*t.slots.Load()) }

// claim returns a free slot in the live state with a fresh generation. Only
// the holder of the pool's allocate lock may call it.
func (t *headerTable) claim(owner *MemPool) *Header {
	for _, h := range *t.slots.Load() {
		v := h.state.Load()
		gen, st := unpackState(v)
		if st == stateFree && h.state.CompareAndSwap(v, packState(gen+1, stateLive)) {
			return h
		}
	}
	return t.grow(owner)
}

// grow appends a batch of records and claims the first new one.
func (t *headerTable) grow(owner *MemPool) *Header {
	old := *t.slots.Load()
	records := make([]Header, t.batch)
	next := make([]*Header, len(old), len(old)+t.batch)
	copy(next, old)
	for i := range records {
		records[i].index = len(old) + i
		records[i].pool = owner
		next = append(next, &records[i])
	}
	h := next[len(old)]
	h.state.Store(packState(1, stateLive))
	t.slots.Swap(&next)
	return h
}

// invalidate frees every live slot without touching its span.
func (t *headerTable) invalidate() {
	for _, h := range *t.slots.Load() {
		v := h.state.Load()
		gen, st := unpackState(v)
		if st == stateLive && h.state.CompareAndSwap(v, packState(gen, stateFree)) {
			h.data = nil
			h.pin = nil
		}
	}
}

// live counts claimed slots.
func (t *headerTable) live() int {
	n := 0
	for _, h := range *t.slots.Load() {
		if h.InUse() {
			n++
		}
	}
	return n
}

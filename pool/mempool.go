// File: pool/mempool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// MemPool is one locked, contiguous arena with its gap and header tables.

package pool

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/lockedalloc/api"
	"github.com/momentics/lockedalloc/internal/concurrency"
)

const (
	// DefaultHeaderBatch is how many header records a table grows by.
	DefaultHeaderBatch = 64
	// DefaultMapRetries bounds attempts to map an arena before giving up.
	DefaultMapRetries = 3
)

// Config tunes a MemPool.
type Config struct {
	PoolSize      int  // standard arena size; 0 selects PoolSize(page size)
	HeaderBatch   int  // header table growth step
	MapRetries    int  // arena mapping attempts
	RequireLocked bool // fail allocations from arenas that could not be locked
}

// MemPool owns one arena. The allocate path is exclusive: a second goroutine
// entering GetBuffer fails with api.ErrPoolBusy instead of waiting. Release
// does not take that lock; the gap table is guarded by its own spin mutex
// and the counters the scanner reads are atomic.
type MemPool struct {
	id       uint64
	platform api.Platform
	quota    *Quota
	cfg      Config
	log      *zap.Logger

	busy concurrency.TryLock

	gapMu concurrency.SpinMutex
	gaps  gapTable

	total   atomic.Int64
	freemem atomic.Int64

	// Written only while the pool is empty and busy is held.
	arena         []byte
	locked        atomic.Bool
	quotaExtended bool

	headers headerTable

	// Buffers whose liveness is borrowed from an external pin; guarded by busy.
	pending *queue.Queue
}

type pendingPin struct {
	h   *Header
	gen uint32
	pin api.Pin
}

// New creates a pool without an arena; the arena is mapped on first use.
func New(id uint64, platform api.Platform, quota *Quota, cfg Config, log *zap.Logger) *MemPool {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = PoolSize(platform.PageSize())
	}
	if cfg.MapRetries <= 0 {
		cfg.MapRetries = DefaultMapRetries
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MemPool{
		id:       id,
		platform: platform,
		quota:    quota,
		cfg:      cfg,
		log:      log.With(zap.Uint64("pool", id)),
		headers:  newHeaderTable(cfg.HeaderBatch),
		pending:  queue.New(),
	}
}

// ID returns the pool identifier.
func (p *MemPool) ID() uint64 { return p.id }

// Total returns the arena size, 0 when no arena exists.
func (p *MemPool) Total() int { return int(p.total.Load()) }

// FreeBytes returns the tracked free bytes.
func (p *MemPool) FreeBytes() int { return int(p.freemem.Load()) }

// HasArena reports whether the arena is materialized.
func (p *MemPool) HasArena() bool { return p.total.Load() != 0 }

// Empty reports whether the arena exists and holds no live span.
func (p *MemPool) Empty() bool {
	t := p.total.Load()
	return t != 0 && p.freemem.Load() == t
}

// Locked reports whether the arena pages are memory-locked.
func (p *MemPool) Locked() bool { return p.locked.Load() }

// Fits reports whether a request of size bytes is worth trying here.
func (p *MemPool) Fits(size int) bool {
	return !p.HasArena() || int64(SpanOf(size)) <= p.freemem.Load()
}

// Header resolves a header index. It returns nil for unknown indices.
func (p *MemPool) Header(index int) *Header { return p.headers.at(index) }

// GetBuffer carves size bytes and returns the claimed header. pin, when not
// nil, replaces the header's own liveness flag.
func (p *MemPool) GetBuffer(size int, pin api.Pin) (*Header, error) {
	if !ValidSize(size) {
		return nil, errors.Wrapf(api.ErrInvalidSize, "size %d", size)
	}
	span := SpanOf(size)

	if !p.busy.TryLock() {
		return nil, api.ErrPoolBusy
	}
	defer p.busy.Unlock()

	if p.total.Load() == 0 {
		n := p.cfg.PoolSize
		if span > n {
			n = span
		}
		if err := p.allocateArena(n); err != nil {
			return nil, err
		}
	} else if int64(span) > p.freemem.Load() {
		return nil, api.ErrArenaExhausted
	}

	off, ok := p.reserve(span)
	if !ok {
		return nil, api.ErrArenaExhausted
	}

	h := p.headers.claim(p)
	h.offset = off
	h.size = span
	h.data = p.arena[off : off+size : off+size]
	h.pin = nil
	if pin != nil {
		h.pin = pin
		p.pending.Add(pendingPin{h: h, gen: h.Gen(), pin: pin})
	}
	return h, nil
}

// Release frees the span held by the header at index if it is still live in
// generation gen. It reports whether this call released it and whether the
// pool became empty as a result. A second Release of the same handle is a
// no-op.
func (p *MemPool) Release(index int, gen uint32) (released, emptied bool) {
	h := p.headers.at(index)
	if h == nil {
		return false, false
	}
	if !h.state.CompareAndSwap(packState(gen, stateLive), packState(gen, stateReleasing)) {
		return false, false
	}

	if h.pin != nil {
		h.pin.Release()
	}
	span := p.arena[h.offset : h.offset+h.size]
	clear(span)
	runtime.KeepAlive(span)

	p.release(h.offset, h.size)
	h.offset = 0
	h.data = nil
	h.pin = nil
	h.state.Store(packState(gen, stateFree))

	return true, p.Empty()
}

// reserve takes span bytes from the gap table.
func (p *MemPool) reserve(span int) (int, bool) {
	p.gapMu.Lock()
	defer p.gapMu.Unlock()

	off, ok := p.gaps.take(span, int(p.total.Load()))
	if ok {
		p.freemem.Add(-int64(span))
	}
	return off, ok
}

// release gives span bytes at off back to the gap table.
func (p *MemPool) release(off, span int) {
	p.gapMu.Lock()
	defer p.gapMu.Unlock()

	p.gaps.give(off, span)
	p.freemem.Add(int64(span))
}

// allocateArena maps and, when the quota allows, locks an arena of size bytes.
func (p *MemPool) allocateArena(size int) error {
	quotaErr := p.quota.Extend(size)
	if quotaErr != nil {
		p.log.Warn("lockable memory quota not extended, arena will not be locked",
			zap.Int("size", size), zap.Error(quotaErr))
	}

	region, err := p.mapRegion(size)
	if err != nil {
		if quotaErr == nil {
			p.quota.Shrink(size)
		}
		return err
	}

	locked := false
	if quotaErr == nil {
		if err := p.platform.Lock(region); err != nil {
			p.log.Warn("arena lock failed", zap.Int("size", size), zap.Error(err))
			p.quota.Shrink(size)
		} else {
			locked = true
		}
	}

	if !locked && p.cfg.RequireLocked {
		_ = p.platform.Unmap(region)
		return errors.Wrapf(api.ErrNotLocked, "pool %d: %d byte arena", p.id, size)
	}

	p.arena = region
	p.quotaExtended = locked
	p.locked.Store(locked)
	p.gapMu.Lock()
	p.gaps.reset()
	p.gapMu.Unlock()
	p.freemem.Store(int64(size))
	p.total.Store(int64(size))

	p.log.Debug("arena created", zap.Int("size", size), zap.Bool("locked", locked))
	return nil
}

// mapRegion retries the platform mapping with backoff. Running out of memory
// is not otherwise recoverable, so this is the one place the allocate path
// waits on the OS.
func (p *MemPool) mapRegion(size int) ([]byte, error) {
	var err error
	delay := time.Millisecond
	for attempt := 0; attempt < p.cfg.MapRetries; attempt++ {
		var region []byte
		region, err = p.platform.Map(size)
		if err == nil {
			return region, nil
		}
		p.log.Warn("arena mapping failed", zap.Int("attempt", attempt+1), zap.Error(err))
		time.Sleep(delay)
		delay *= 2
	}
	return nil, errors.Wrapf(api.ErrArenaMap, "pool %d: %d bytes: %v", p.id, size, err)
}

// releaseArena unlocks and unmaps the arena and resets the counters.
func (p *MemPool) releaseArena() {
	size := len(p.arena)
	if p.quotaExtended {
		if err := p.platform.Unlock(p.arena); err != nil {
			p.log.Warn("arena unlock failed", zap.Error(err))
		}
	}
	if err := p.platform.Unmap(p.arena); err != nil {
		p.log.Warn("arena unmap failed", zap.Error(err))
	}
	if p.quotaExtended {
		p.quota.Shrink(size)
	}

	p.total.Store(0)
	p.freemem.Store(0)
	p.gapMu.Lock()
	p.gaps.reset()
	p.gapMu.Unlock()
	p.arena = nil
	p.quotaExtended = false
	p.locked.Store(false)

	p.log.Debug("arena released", zap.Int("size", size))
}

// Retire releases the arena if the pool is still empty and nobody is inside
// the allocate path. It reports whether the arena was released.
func (p *MemPool) Retire() bool {
	if !p.busy.TryLock() {
		return false
	}
	defer p.busy.Unlock()

	if !p.Empty() {
		return false
	}
	p.releaseArena()
	return true
}

// Close releases the arena whether or not spans are still live. Handles
// issued from the pool become stale; releasing them afterwards is a no-op.
// Close must not run concurrently with Release.
func (p *MemPool) Close() {
	var b concurrency.Backoff
	for !p.busy.TryLock() {
		b.Wait()
	}
	defer p.busy.Unlock()

	p.headers.invalidate()
	p.pending = queue.New()
	if p.HasArena() {
		p.releaseArena()
	}
}

// Sweep releases buffers whose external pin was dropped without a Release
// call. It returns how many were released and whether the pool emptied. A
// busy pool is skipped.
func (p *MemPool) Sweep() (int, bool) {
	if !p.busy.TryLock() {
		return 0, false
	}
	defer p.busy.Unlock()

	swept := 0
	for n := p.pending.Length(); n > 0; n-- {
		pp := p.pending.Remove().(pendingPin)
		v := pp.h.state.Load()
		if v != packState(pp.gen, stateLive) {
			// Released through the normal path.
			continue
		}
		if pp.pin.Live() {
			p.pending.Add(pp)
			continue
		}
		if released, _ := p.Release(pp.h.index, pp.gen); released {
			swept++
		}
	}
	return swept, swept > 0 && p.Empty()
}

// Stats returns a point-in-time view of the pool.
func (p *MemPool) Stats() api.PoolStats {
	p.gapMu.Lock()
	reserved := p.gaps.reserved
	gaps := len(p.gaps.gaps)
	p.gapMu.Unlock()

	return api.PoolStats{
		Total:       p.Total(),
		Reserved:    reserved,
		Free:        p.FreeBytes(),
		Gaps:        gaps,
		Headers:     p.headers.len(),
		LiveHeaders: p.headers.live(),
		Locked:      p.Locked(),
	}
}

package pool

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/lockedalloc/api"
	"github.com/momentics/lockedalloc/fake"
)

func newTestPool(t *testing.T, cfg Config) (*MemPool, *fake.Platform) {
	t.Helper()
	plat := fake.NewPlatform()
	return New(1, plat, NewQuota(plat, 0, 0), cfg, nil), plat
}

func mustGet(t *testing.T, p *MemPool, size int) *Header {
	t.Helper()
	h, err := p.GetBuffer(size, nil)
	require.NoError(t, err)
	return h
}

func release(t *testing.T, h *Header) bool {
	t.Helper()
	released, emptied := h.Pool().Release(h.Index(), h.Gen())
	require.True(t, released)
	return emptied
}

func TestMemPool_LazyArena(t *testing.T) {
	p, plat := newTestPool(t, Config{})
	assert.False(t, p.HasArena())
	assert.True(t, p.Fits(1<<30), "a pool without arena accepts any size")
	assert.Zero(t, plat.MapCalls)

	h := mustGet(t, p, 100)
	assert.Equal(t, PoolSize(4096), p.Total())
	assert.Equal(t, PoolSize(4096)-104, p.FreeBytes())
	assert.Equal(t, 104, h.Size())
	assert.Len(t, h.Data(), 100)
	assert.True(t, p.Locked())
	assert.Equal(t, 1, plat.LockedRegions())
}

func TestMemPool_OversizedRequestGetsOwnArena(t *testing.T) {
	p, _ := newTestPool(t, Config{PoolSize: 4096})
	h := mustGet(t, p, 10000)
	assert.Equal(t, SpanOf(10000), p.Total())
	assert.Zero(t, p.FreeBytes())
	assert.Len(t, h.Data(), 10000)
}

func TestMemPool_ArenaExhausted(t *testing.T) {
	p, _ := newTestPool(t, Config{PoolSize: 4096})
	mustGet(t, p, 4000)
	_, err := p.GetBuffer(200, nil)
	assert.True(t, errors.Is(err, api.ErrArenaExhausted))
	assert.False(t, p.Fits(200))
}

func TestMemPool_BusyFailsFast(t *testing.T) {
	p, _ := newTestPool(t, Config{})
	require.True(t, p.busy.TryLock())
	_, err := p.GetBuffer(16, nil)
	assert.True(t, errors.Is(err, api.ErrPoolBusy))
	p.busy.Unlock()

	_, err = p.GetBuffer(16, nil)
	assert.NoError(t, err)
}

func TestMemPool_InvalidSize(t *testing.T) {
	p, _ := newTestPool(t, Config{})
	_, err := p.GetBuffer(0, nil)
	assert.True(t, errors.Is(err, api.ErrInvalidSize))
}

func TestMemPool_OverflowingSizeRejected(t *testing.T) {
	p, plat := newTestPool(t, Config{PoolSize: 4096})
	keep := mustGet(t, p, 64)
	before := p.Stats()

	for _, size := range []int{math.MaxInt, MaxSize + 1} {
		_, err := p.GetBuffer(size, nil)
		assert.True(t, errors.Is(err, api.ErrInvalidSize), "size %d", size)
	}
	assert.Equal(t, before, p.Stats(), "pool state untouched")
	assert.Equal(t, 1, plat.MapCalls)
	assert.Len(t, keep.Data(), 64)
}

func TestMemPool_ZeroOnIssueAfterReuse(t *testing.T) {
	p, _ := newTestPool(t, Config{})
	mustGet(t, p, 64)
	h := mustGet(t, p, 256)
	mustGet(t, p, 64)
	for i := range h.Data() {
		h.Data()[i] = 0xA5
	}
	release(t, h)

	h2 := mustGet(t, p, 200)
	assert.Equal(t, 64, h2.Offset(), "reuses the freed gap")
	for i, b := range h2.Data() {
		require.Zero(t, b, "byte %d", i)
	}
}

func TestMemPool_FreeThenReuseIsLastFit(t *testing.T) {
	p, plat := newTestPool(t, Config{})
	a := mustGet(t, p, 64)
	mustGet(t, p, 8)
	b := mustGet(t, p, 64)
	mustGet(t, p, 8)
	aOff, bOff := a.Offset(), b.Offset()
	release(t, a)
	release(t, b)

	c := mustGet(t, p, 48)
	assert.Equal(t, bOff, c.Offset())
	d := mustGet(t, p, 64)
	assert.Equal(t, aOff, d.Offset())
	assert.Equal(t, 1, plat.MapCalls, "no new arena")
}

func TestMemPool_BoundaryShrink(t *testing.T) {
	p, _ := newTestPool(t, Config{})
	mustGet(t, p, 64)
	b := mustGet(t, p, 128)
	bOff := b.Offset()
	release(t, b)

	st := p.Stats()
	assert.Equal(t, 64, st.Reserved)
	assert.Zero(t, st.Gaps)

	c := mustGet(t, p, 100)
	assert.Equal(t, bOff, c.Offset())
}

func TestMemPool_ReleaseIsIdempotent(t *testing.T) {
	p, _ := newTestPool(t, Config{})
	mustGet(t, p, 64)
	h := mustGet(t, p, 64)
	idx, gen := h.Index(), h.Gen()

	released, _ := p.Release(idx, gen)
	require.True(t, released)
	free := p.FreeBytes()

	released, emptied := p.Release(idx, gen)
	assert.False(t, released)
	assert.False(t, emptied)
	assert.Equal(t, free, p.FreeBytes())
}

func TestMemPool_StaleHandleCannotReleaseRecycledSlot(t *testing.T) {
	p, _ := newTestPool(t, Config{})
	mustGet(t, p, 64)
	h := mustGet(t, p, 64)
	idx, gen := h.Index(), h.Gen()
	release(t, h)

	h2 := mustGet(t, p, 32)
	require.Equal(t, idx, h2.Index(), "slot is recycled")
	require.NotEqual(t, gen, h2.Gen())

	released, _ := p.Release(idx, gen)
	assert.False(t, released)
	assert.True(t, h2.InUse())
}

func TestMemPool_EmptiedAndRetire(t *testing.T) {
	p, plat := newTestPool(t, Config{})
	h := mustGet(t, p, 64)
	assert.True(t, release(t, h))
	assert.True(t, p.Empty())

	require.True(t, p.Retire())
	assert.False(t, p.HasArena())
	assert.Equal(t, 1, plat.UnmapCalls)
	assert.Zero(t, plat.LockedRegions())
	assert.Zero(t, p.quota.Locked())

	assert.False(t, p.Retire(), "nothing left to retire")
}

func TestMemPool_RetireRefusesLivePool(t *testing.T) {
	p, _ := newTestPool(t, Config{})
	mustGet(t, p, 64)
	assert.False(t, p.Retire())
	assert.True(t, p.HasArena())
}

func TestMemPool_QuotaFailureDegradesToUnlocked(t *testing.T) {
	p, plat := newTestPool(t, Config{})
	plat.FailQuota = true

	h := mustGet(t, p, 64)
	assert.False(t, p.Locked())
	assert.Zero(t, plat.LockedRegions())
	h.Data()[0] = 1
	assert.Equal(t, byte(1), h.Data()[0])
}

func TestMemPool_LockFailureReturnsQuota(t *testing.T) {
	p, plat := newTestPool(t, Config{})
	plat.FailLock = true

	mustGet(t, p, 64)
	assert.False(t, p.Locked())
	assert.Zero(t, p.quota.Locked())
}

func TestMemPool_RequireLocked(t *testing.T) {
	p, plat := newTestPool(t, Config{RequireLocked: true})
	plat.FailQuota = true

	_, err := p.GetBuffer(64, nil)
	assert.True(t, errors.Is(err, api.ErrNotLocked))
	assert.False(t, p.HasArena())
	assert.Zero(t, plat.Mapped())
}

func TestMemPool_MapRetries(t *testing.T) {
	p, plat := newTestPool(t, Config{MapRetries: 3})
	plat.FailMap = 2
	_, err := p.GetBuffer(64, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, plat.MapCalls)

	q, plat2 := newTestPool(t, Config{MapRetries: 2})
	plat2.FailMap = 5
	_, err = q.GetBuffer(64, nil)
	assert.True(t, errors.Is(err, api.ErrArenaMap))
	assert.Zero(t, q.quota.Locked(), "quota handed back on mapping failure")
}

func TestMemPool_HeaderTableGrowsInBatches(t *testing.T) {
	p, _ := newTestPool(t, Config{HeaderBatch: 4})
	for i := 0; i < 9; i++ {
		mustGet(t, p, 8)
	}
	st := p.Stats()
	assert.Equal(t, 12, st.Headers)
	assert.Equal(t, 9, st.LiveHeaders)
}

func TestMemPool_ExternalPin(t *testing.T) {
	p, _ := newTestPool(t, Config{})
	pin := api.NewExternalPin()
	h, err := p.GetBuffer(64, pin)
	require.NoError(t, err)
	assert.True(t, h.Pinned())
	assert.True(t, h.Live())

	n, _ := p.Sweep()
	assert.Zero(t, n, "pin still held")

	pin.Release()
	assert.False(t, h.Live())
	assert.True(t, h.InUse(), "slot stays claimed until swept")

	n, emptied := p.Sweep()
	assert.Equal(t, 1, n)
	assert.True(t, emptied)
	assert.False(t, h.InUse())
}

func TestMemPool_ReleaseDropsExternalPin(t *testing.T) {
	p, _ := newTestPool(t, Config{})
	pin := api.NewExternalPin()
	h, err := p.GetBuffer(64, pin)
	require.NoError(t, err)

	release(t, h)
	assert.False(t, pin.Live())
	n, _ := p.Sweep()
	assert.Zero(t, n)
}

func TestMemPool_ConcurrentReleaseWhileAllocating(t *testing.T) {
	p, _ := newTestPool(t, Config{PoolSize: 1 << 20})
	const n = 2000

	handles := make(chan *Header, n)
	var wg sync.WaitGroup
	var allocated atomic.Int64

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(handles)
		for i := 0; i < n; i++ {
			h, err := p.GetBuffer(16+i%64, nil)
			if err != nil {
				continue
			}
			allocated.Add(1)
			handles <- h
		}
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for h := range handles {
				h.Pool().Release(h.Index(), h.Gen())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n), allocated.Load())
	assert.Equal(t, p.Total(), p.FreeBytes())
	assert.Zero(t, p.Stats().LiveHeaders)
}

func TestMemPool_CloseInvalidatesHandles(t *testing.T) {
	p, plat := newTestPool(t, Config{PoolSize: 4096})
	h := mustGet(t, p, 64)
	gen := h.Gen()
	pin := api.NewExternalPin()
	_, err := p.GetBuffer(32, pin)
	require.NoError(t, err)

	p.Close()
	assert.False(t, p.HasArena())
	assert.Zero(t, plat.Mapped())
	assert.False(t, h.Holds(gen))

	released, _ := p.Release(h.Index(), gen)
	assert.False(t, released, "stale after close")
	n, _ := p.Sweep()
	assert.Zero(t, n)

	h2 := mustGet(t, p, 64)
	assert.True(t, p.HasArena(), "a closed pool can map again")
	assert.Len(t, h2.Data(), 64)
}

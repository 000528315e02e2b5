package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/momentics/lockedalloc/api"
)

type stubSource struct {
	stats api.AllocatorStats
	fill  api.FillRate
}

func (s *stubSource) Stats() api.AllocatorStats { return s.stats }
func (s *stubSource) FillRate() api.FillRate    { return s.fill }

func TestConfigStore_MergeAndNotify(t *testing.T) {
	cs := NewConfigStore()
	var seen []map[string]any
	cs.OnReload(func(changed map[string]any) { seen = append(seen, changed) })

	cs.SetConfig(map[string]any{"a": 1})
	cs.SetConfig(map[string]any{"b": 2})

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, cs.GetSnapshot())
	require.Len(t, seen, 2)
	assert.Equal(t, map[string]any{"b": 2}, seen[1])

	v, ok := cs.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestConfigStore_SnapshotIsCopy(t *testing.T) {
	cs := NewConfigStore()
	cs.SetConfig(map[string]any{"k": "v"})
	snap := cs.GetSnapshot()
	snap["k"] = "changed"
	v, _ := cs.Get("k")
	assert.Equal(t, "v", v)
}

func TestPublishAllocator(t *testing.T) {
	src := &stubSource{
		stats: api.AllocatorStats{ActivePools: 3, SparePools: 1, LockedBytes: 4096, Allocations: 10, Frees: 7},
		fill:  api.FillRate{Pools: 3, HighDensity: 1.0 / 3, FreeBytes: 128},
	}
	mr := NewMetricsRegistry()
	PublishAllocator(mr, src)

	snap := mr.GetSnapshot()
	assert.Equal(t, 3, snap["allocator.pools.active"])
	assert.Equal(t, uint64(4096), snap["allocator.locked_bytes"])
	assert.Equal(t, uint64(7), snap["allocator.frees"])
	assert.Equal(t, uint64(128), snap["allocator.fill.free_bytes"])
	assert.False(t, mr.Updated().IsZero())
}

func TestDebugProbes_AllocatorAndPlatform(t *testing.T) {
	src := &stubSource{stats: api.AllocatorStats{Pools: []api.PoolStats{{Total: 4096, Free: 100}}}}
	dp := NewDebugProbes()
	RegisterAllocatorProbes(dp, src)
	RegisterPlatformProbes(dp)

	state := dp.DumpState()
	assert.Equal(t, src.stats.Pools, state["allocator.pools"])
	assert.Equal(t, src.fill, state["allocator.fill_rate"])
	assert.Positive(t, state["platform.page_size"])
	assert.Contains(t, state, "platform.memlock_limit")
}

func TestController_Stats(t *testing.T) {
	src := &stubSource{stats: api.AllocatorStats{ActivePools: 2}}
	c := NewController(src)
	c.SetMetric("custom", 1)

	stats := c.Stats()
	assert.Equal(t, 2, stats["allocator.pools.active"])
	assert.Equal(t, 1, stats["custom"])
	assert.Contains(t, stats, "debug.platform.cpus")

	src.stats.ActivePools = 5
	assert.Equal(t, 5, c.Stats()["allocator.pools.active"], "stats are resampled")
}

func TestController_BindLogLevel(t *testing.T) {
	c := NewController(nil)
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	c.BindLogLevel(level, zap.NewNop())
	assert.Equal(t, "info", c.GetConfig()[KeyLogLevel])

	c.SetConfig(map[string]any{KeyLogLevel: "debug"})
	assert.Equal(t, zapcore.DebugLevel, level.Level())

	c.SetConfig(map[string]any{KeyLogLevel: "loud"})
	assert.Equal(t, zapcore.DebugLevel, level.Level(), "bad values are ignored")

	c.SetConfig(map[string]any{"other": true})
	assert.Equal(t, zapcore.DebugLevel, level.Level())
}

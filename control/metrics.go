// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for allocator monitoring.
// Exposes counters in a thread-safe map with dynamic registration.

package control

import (
	"sync"
	"time"

	"github.com/momentics/lockedalloc/api"
)

// MetricsRegistry holds mutable and read-only metrics.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}

// Updated returns when a metric was last set.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// StatsSource is what the registry samples. *allocator.Allocator satisfies it.
type StatsSource interface {
	Stats() api.AllocatorStats
	FillRate() api.FillRate
}

// PublishAllocator samples src once and stores the result under
// "allocator.*" keys.
func PublishAllocator(mr *MetricsRegistry, src StatsSource) {
	st := src.Stats()
	fr := src.FillRate()

	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.metrics["allocator.pools.active"] = st.ActivePools
	mr.metrics["allocator.pools.spare"] = st.SparePools
	mr.metrics["allocator.locked_bytes"] = st.LockedBytes
	mr.metrics["allocator.allocations"] = st.Allocations
	mr.metrics["allocator.frees"] = st.Frees
	mr.metrics["allocator.grows"] = st.Grows
	mr.metrics["allocator.retirements"] = st.Retirements
	mr.metrics["allocator.sweeps"] = st.Sweeps
	mr.metrics["allocator.quota_refusals"] = st.QuotaRefusal
	mr.metrics["allocator.fill.high_density"] = fr.HighDensity
	mr.metrics["allocator.fill.low_density"] = fr.LowDensity
	mr.metrics["allocator.fill.free_bytes"] = fr.FreeBytes
	mr.updated = time.Now()
}

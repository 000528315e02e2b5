// File: allocator/fillrate.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package allocator

import "github.com/momentics/lockedalloc/api"

// Density thresholds on a pool's free ratio.
const (
	HighDensityMax = 0.2
	LowDensityMin  = 0.8
)

// FillRate samples the active pools. A pool whose arena is not mapped yet
// counts as entirely free. Sampling has no effect on allocation.
func (a *Allocator) FillRate() api.FillRate {
	set := a.set.Load()
	fr := api.FillRate{Pools: set.active}
	if set.active == 0 {
		return fr
	}

	var high, low int
	for i := 0; i < set.active; i++ {
		p := set.pools[i]
		total, free := p.Total(), p.FreeBytes()
		ratio := 1.0
		if total > 0 {
			ratio = float64(free) / float64(total)
		}
		switch {
		case ratio <= HighDensityMax:
			high++
		case ratio >= LowDensityMin:
			low++
		}
		fr.FreeBytes += uint64(free)
	}
	fr.HighDensity = float64(high) / float64(set.active)
	fr.LowDensity = float64(low) / float64(set.active)
	return fr
}

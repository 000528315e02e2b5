// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Platform debug probes: CPU count, page size and lockable-memory ceiling.

package control

import (
	"runtime"

	"github.com/momentics/lockedalloc/osmem"
)

// RegisterPlatformProbes sets platform debug probes. The memlock probe
// reports the error text where the OS exposes no limit.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.page_size", func() any {
		return osmem.New().PageSize()
	})
	dp.RegisterProbe("platform.memlock_limit", func() any {
		limit, err := osmem.LockLimit()
		if err != nil {
			return err.Error()
		}
		return limit
	})
}

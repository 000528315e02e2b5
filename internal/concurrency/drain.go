// File: internal/concurrency/drain.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// DrainBarrier counts goroutines inside a guarded region and lets a writer
// close the door on new entrants and wait for the region to empty.
//
// Enter spins while the barrier is closed. Close and Open are only called by
// the holder of an outer SpinMutex, so at most one writer exists at a time.
type DrainBarrier struct {
	_       cpu.CacheLinePad
	inside  atomic.Int64
	_       cpu.CacheLinePad
	closing Flag
}

// Enter registers the caller inside the region.
func (d *DrainBarrier) Enter() {
	var b Backoff
	for {
		for d.closing.IsSet() {
			b.Wait()
		}
		d.inside.Add(1)
		if !d.closing.IsSet() {
			return
		}
		// A writer closed the door between the check and the increment.
		d.inside.Add(-1)
	}
}

// Exit unregisters the caller.
func (d *DrainBarrier) Exit() {
	if d.inside.Add(-1) < 0 {
		panic("concurrency: DrainBarrier exit without enter")
	}
}

// Inside returns the number of registered goroutines.
func (d *DrainBarrier) Inside() int64 { return d.inside.Load() }

// Close stops new entrants and waits until every registered goroutine left.
func (d *DrainBarrier) Close() {
	d.closing.Set()
	SpinUntil(func() bool { return d.inside.Load() == 0 })
}

// Open lets entrants in again.
func (d *DrainBarrier) Open() { d.closing.Clear() }

// Closed reports whether a writer currently holds the barrier closed.
func (d *DrainBarrier) Closed() bool { return d.closing.IsSet() }

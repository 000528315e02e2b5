// File: internal/concurrency/spin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Spin-style locks for allocator bookkeeping. None of these primitives park a
// goroutine on a channel or sync.Cond: waiting is always an active spin with
// bounded exponential backoff, falling back to runtime.Gosched once the spin
// budget is spent (the same active/passive split the runtime's lock2 uses).

package concurrency

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

const (
	activeSpinRounds = 4
	activeSpinCap    = 64
)

// Backoff tracks the state of one spin-wait loop.
type Backoff struct {
	spins int
}

// Wait burns one round of the backoff schedule.
func (b *Backoff) Wait() {
	if b.spins < activeSpinRounds {
		n := 1 << b.spins
		if n > activeSpinCap {
			n = activeSpinCap
		}
		for i := 0; i < n*8; i++ {
			spinHint()
		}
		b.spins++
		return
	}
	runtime.Gosched()
}

// Reset restarts the schedule.
func (b *Backoff) Reset() { b.spins = 0 }

// spinHint keeps the loop body from being optimized away.
var spinSink atomic.Uint32

func spinHint() { spinSink.Add(1) }

// SpinUntil spins with backoff until cond returns true.
func SpinUntil(cond func() bool) {
	var b Backoff
	for !cond() {
		b.Wait()
	}
}

// TryLock is a non-queuing exclusivity flag. A second caller learns the lock
// is held only by failing TryLock; it never waits.
type TryLock struct {
	_     cpu.CacheLinePad
	state atomic.Uint32
	_     cpu.CacheLinePad
}

// TryLock acquires the flag if it is free.
func (l *TryLock) TryLock() bool { return l.state.CompareAndSwap(0, 1) }

// Unlock releases the flag.
func (l *TryLock) Unlock() {
	if l.state.Swap(0) == 0 {
		panic("concurrency: unlock of unlocked TryLock")
	}
}

// Locked reports whether the flag is currently held.
func (l *TryLock) Locked() bool { return l.state.Load() != 0 }

// SpinMutex is a mutual exclusion flag acquired by spinning.
type SpinMutex struct {
	_     cpu.CacheLinePad
	state atomic.Uint32
	_     cpu.CacheLinePad
}

// TryLock acquires the mutex if it is free.
func (m *SpinMutex) TryLock() bool { return m.state.CompareAndSwap(0, 1) }

// Lock spins until the mutex is acquired.
func (m *SpinMutex) Lock() {
	if m.TryLock() {
		return
	}
	var b Backoff
	for {
		if m.state.Load() == 0 && m.TryLock() {
			return
		}
		b.Wait()
	}
}

// Unlock releases the mutex.
func (m *SpinMutex) Unlock() {
	if m.state.Swap(0) == 0 {
		panic("concurrency: unlock of unlocked SpinMutex")
	}
}

// Locked reports whether the mutex is currently held.
func (m *SpinMutex) Locked() bool { return m.state.Load() != 0 }

// WaitUnlocked spins until the mutex is observed free without acquiring it.
func (m *SpinMutex) WaitUnlocked() {
	SpinUntil(func() bool { return !m.Locked() })
}

// Flag is a boolean signal polled by spinners.
type Flag struct {
	_   cpu.CacheLinePad
	set atomic.Bool
	_   cpu.CacheLinePad
}

func (f *Flag) Set()        { f.set.Store(true) }
func (f *Flag) Clear()      { f.set.Store(false) }
func (f *Flag) IsSet() bool { return f.set.Load() }
func (f *Flag) WaitClear()  { SpinUntil(func() bool { return !f.set.Load() }) }

// File: internal/concurrency/generation.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Generation publishes immutable snapshots of a growable structure. Writers
// build the next generation off to the side and swap it in with one atomic
// store, so readers never observe a half-written table.

package concurrency

import "sync/atomic"

// Generation holds the current snapshot of type T.
type Generation[T any] struct {
	cur atomic.Pointer[T]
	seq atomic.Uint64
}

// NewGeneration returns a Generation seeded with v.
func NewGeneration[T any](v *T) *Generation[T] {
	g := &Generation[T]{}
	g.cur.Store(v)
	return g
}

// Load returns the current snapshot. It must be treated as read-only.
func (g *Generation[T]) Load() *T { return g.cur.Load() }

// Swap publishes next and returns the new sequence number.
func (g *Generation[T]) Swap(next *T) uint64 {
	g.cur.Store(next)
	return g.seq.Add(1)
}

// Seq returns how many swaps have been published.
func (g *Generation[T]) Seq() uint64 { return g.seq.Load() }

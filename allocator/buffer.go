// File: allocator/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package allocator

import "github.com/momentics/lockedalloc/pool"

// Buffer is the handle of one allocation. It identifies the owning pool and
// the header slot by index and generation; nothing is stored inside the
// payload itself, so a caller overwriting its bytes cannot corrupt the
// allocator.
//
// A Buffer must not be used after Free. Bytes returns nil once the
// allocation has been released.
type Buffer struct {
	alloc  *Allocator
	pool   *pool.MemPool
	index  int
	gen    uint32
	data   []byte
	locked bool
	pinned bool
}

func newBuffer(a *Allocator, h *pool.Header) *Buffer {
	return &Buffer{
		alloc:  a,
		pool:   h.Pool(),
		index:  h.Index(),
		gen:    h.Gen(),
		data:   h.Data(),
		locked: h.Pool().Locked(),
	}
}

// Bytes returns the zero-initialized payload, or nil after Free.
func (b *Buffer) Bytes() []byte {
	if !b.Live() {
		return nil
	}
	return b.data
}

// Len returns the payload size requested at allocation.
func (b *Buffer) Len() int { return len(b.data) }

// Locked reports whether the payload lives in a memory-locked arena. It is
// false when the lockable-memory quota could not be extended.
func (b *Buffer) Locked() bool { return b.locked }

// Live reports whether the allocation has not been released yet.
func (b *Buffer) Live() bool {
	h := b.pool.Header(b.index)
	return h != nil && h.Holds(b.gen)
}

// PoolID identifies the pool that owns the buffer.
func (b *Buffer) PoolID() uint64 { return b.pool.ID() }

// Free releases the buffer. Calling it more than once is a no-op.
func (b *Buffer) Free() { b.alloc.Free(b) }

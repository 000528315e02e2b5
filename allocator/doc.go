// Package allocator
// Author: momentics <momentics@gmail.com>
//
// Multi-pool locked memory allocator.
//
// An Allocator load-balances requests across a collection of pool.MemPool
// arenas. Goroutines share one scan cursor read through a rotating order
// permutation; a pool whose allocate path is busy, or which has no room, is
// skipped. When a scan runs off the end of the collection one goroutine adds
// a batch of pools while the rest spin until it is done. A pool whose last
// buffer is freed gives its arena back to the OS and moves out of the active
// range.
//
// All waiting is active spinning with bounded backoff; no goroutine parks
// while it holds allocator-internal exclusivity.
package allocator

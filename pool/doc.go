// Package pool
// Author: momentics <momentics@gmail.com>
//
// Locked memory arenas for lockedalloc.
//
// A MemPool owns one contiguous arena mapped outside the Go heap and, when the
// process lockable-memory quota allows it, locked against swap. Space inside
// the arena is handed out by a last-fit gap table with a reserved boundary
// that shrinks when the topmost span is freed. Each allocation is tracked by a
// Header in a growable table; headers are recycled, never freed, while the
// pool lives.
//
// See mempool.go, gap.go, header.go and quota.go for implementation details.
package pool

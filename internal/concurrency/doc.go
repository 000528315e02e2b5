// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Spin-only coordination primitives for the allocator: try-locks, spin
// mutexes, a drain barrier for scan/restructure exclusion and atomically
// published snapshots. Nothing here blocks on the Go scheduler beyond
// runtime.Gosched, so the primitives are usable from code that must not
// park.
package concurrency

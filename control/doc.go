// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime settings, metrics and debug introspection for lockedalloc.
//
// Provides concurrent-safe state handling primitives including:
//   - Snapshot reads and merged updates of runtime settings
//   - Reload listeners, used to retune the log level at runtime
//   - A metrics registry fed from allocator statistics
//   - Debug probes exposing pool and platform state
package control

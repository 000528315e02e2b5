// Package api
// Author: momentics
//
// Liveness sources for locked buffers.
//
// A buffer header normally tracks its own liveness. A subsystem that wants to
// decide on its own when a buffer becomes free hands the allocator an
// ExternalPin; the header then defers to that pin instead of its own flag.

package api

import "sync/atomic"

// Pin is the liveness indicator a buffer header defers to.
type Pin interface {
	// Live reports whether the buffer is still in use.
	Live() bool

	// Release marks the buffer as no longer in use.
	Release()
}

// ExternalPin is a caller-owned liveness flag. The zero value is released.
type ExternalPin struct {
	held atomic.Bool
}

// NewExternalPin returns a pin in the held state.
func NewExternalPin() *ExternalPin {
	p := &ExternalPin{}
	p.held.Store(true)
	return p
}

// Hold marks the pin as in use.
func (p *ExternalPin) Hold() { p.held.Store(true) }

// Live implements Pin.
func (p *ExternalPin) Live() bool { return p.held.Load() }

// Release implements Pin.
func (p *ExternalPin) Release() { p.held.Store(false) }

var _ Pin = (*ExternalPin)(nil)

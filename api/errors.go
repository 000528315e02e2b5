// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values and error handling utilities for lockedalloc.

package api

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Common errors used across the library.
var (
	// ErrInvalidSize is returned for zero or negative allocation requests.
	ErrInvalidSize = errors.New("lockedalloc: invalid allocation size")

	// ErrPoolBusy means another goroutine holds the pool's allocate path.
	// The allocator treats it as "try the next pool".
	ErrPoolBusy = errors.New("lockedalloc: pool busy")

	// ErrArenaExhausted means the pool has no gap or top space for the request.
	ErrArenaExhausted = errors.New("lockedalloc: arena exhausted")

	// ErrArenaMap is returned when the platform could not map arena memory.
	// It is the only per-pool failure that reaches Allocate callers.
	ErrArenaMap = errors.New("lockedalloc: arena mapping failed")

	// ErrNotLocked is returned in strict mode when an arena could not be locked.
	ErrNotLocked = errors.New("lockedalloc: arena could not be memory-locked")

	// ErrQuotaRefused signals the lockable-memory quota could not be extended.
	ErrQuotaRefused = errors.New("lockedalloc: lockable memory quota refused")

	// ErrClosed is returned by operations on a closed allocator.
	ErrClosed = errors.New("lockedalloc: allocator closed")

	ErrNotSupported = errors.New("lockedalloc: operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeNotSupported
	ErrCodeInternal
)

// Code maps an error returned by the library onto an ErrorCode.
func Code(err error) ErrorCode {
	switch {
	case err == nil:
		return ErrCodeOK
	case errors.Is(err, ErrInvalidSize):
		return ErrCodeInvalidArgument
	case errors.Is(err, ErrArenaMap), errors.Is(err, ErrArenaExhausted),
		errors.Is(err, ErrNotLocked), errors.Is(err, ErrQuotaRefused):
		return ErrCodeResourceExhausted
	case errors.Is(err, ErrNotSupported):
		return ErrCodeNotSupported
	default:
		return ErrCodeInternal
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

//go:build !linux && !darwin

package jit

import "errors"

// Executable is unavailable on this platform; only the static assembly
// path works here.
type Executable struct{}

var errUnsupported = errors.New("jit: executable memory is not supported on this platform")

// Allocate always fails on unsupported platforms.
func Allocate(size int) (*Executable, error) { return nil, errUnsupported }

// Base implements the common interface.
func (e *Executable) Base() uint64 { return 0 }

// Size implements the common interface.
func (e *Executable) Size() int { return 0 }

// Copy implements the common interface.
func (e *Executable) Copy(image []byte) error { return errUnsupported }

// Finalize implements the common interface.
func (e *Executable) Finalize() error { return errUnsupported }

// Close implements the common interface.
func (e *Executable) Close() error { return nil }

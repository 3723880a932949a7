//go:build linux || darwin

// Package jit owns the executable pages the compiled image is loaded into.
// The region is mapped read-write, the linked image is copied in, and the
// mapping is flipped to read-execute. The kernel's mprotect path performs
// the instruction-cache maintenance and issues the barriers the transition
// requires, so the first call into the entry point observes the new code.
package jit

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Executable is one mapped code region.
type Executable struct {
	buf       []byte
	finalized bool
}

// Allocate maps a read-write anonymous region of at least size bytes,
// rounded up to the page size.
func Allocate(size int) (*Executable, error) {
	if size <= 0 {
		return nil, errors.New("jit: allocation size must be positive")
	}
	pageSize := unix.Getpagesize()
	size = (size + pageSize - 1) &^ (pageSize - 1)

	buf, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return &Executable{buf: buf}, nil
}

// Base returns the region's base address: the address the image must be
// linked at.
func (e *Executable) Base() uint64 {
	return uint64(uintptr(unsafeBase(e.buf)))
}

// Size returns the mapped size.
func (e *Executable) Size() int { return len(e.buf) }

// Copy writes the linked image into the region. It must be called before
// Finalize.
func (e *Executable) Copy(image []byte) error {
	if e.finalized {
		return errors.New("jit: region already finalized")
	}
	if len(image) > len(e.buf) {
		return errors.New("jit: image larger than mapped region")
	}
	copy(e.buf, image)
	return nil
}

// Finalize flips the region to read-execute. After this the region is
// immutable and callable.
func (e *Executable) Finalize() error {
	if e.finalized {
		return nil
	}
	if err := unix.Mprotect(e.buf, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return err
	}
	e.finalized = true
	return nil
}

// Close unmaps the region.
func (e *Executable) Close() error {
	if e.buf == nil {
		return nil
	}
	buf := e.buf
	e.buf = nil
	return unix.Munmap(buf)
}

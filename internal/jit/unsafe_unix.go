//go:build linux || darwin

package jit

import "unsafe"

func unsafeBase(buf []byte) unsafe.Pointer {
	return unsafe.Pointer(&buf[0])
}

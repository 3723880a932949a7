//go:build linux || darwin

package jit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateCopyFinalize(t *testing.T) {
	e, err := Allocate(64)
	require.NoError(t, err)
	defer e.Close()

	require.NotZero(t, e.Base())
	require.GreaterOrEqual(t, e.Size(), 64)

	// A RET instruction, little-endian.
	image := []byte{0xC0, 0x03, 0x5F, 0xD6}
	require.NoError(t, e.Copy(image))
	require.NoError(t, e.Finalize())

	// Writes after finalization are rejected.
	require.Error(t, e.Copy(image))
}

func TestAllocateRejectsBadSize(t *testing.T) {
	_, err := Allocate(0)
	require.Error(t, err)
}

func TestCopyRejectsOversizedImage(t *testing.T) {
	e, err := Allocate(16)
	require.NoError(t, err)
	defer e.Close()

	big := make([]byte, e.Size()+1)
	require.Error(t, e.Copy(big))
}

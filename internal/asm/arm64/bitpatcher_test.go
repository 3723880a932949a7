package arm64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatchRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		initial  uint32
		value    uint32
		startBit int
		numBits  int
	}{
		{0x00000000, 0x1F, 0, 5},
		{0xFFFFFFFF, 0x00, 5, 5},
		{0x8B000000, 0x02, 16, 5},
		{0x00000000, 0xFFFF, 5, 16},
		{0xDEADBEEF, 0x12345678, 0, 32},
	} {
		p := NewBitPatcher(tc.initial)
		require.NoError(t, p.Patch(tc.value, tc.startBit, tc.numBits))

		var mask uint32 = 0xFFFFFFFF
		if tc.numBits < 32 {
			mask = 1<<tc.numBits - 1
		}
		extracted := (p.Value() >> tc.startBit) & mask
		require.Equal(t, tc.value&mask, extracted)
	}
}

func TestPatchDisjointFieldsCommute(t *testing.T) {
	a := NewBitPatcher(0x0B000000)
	require.NoError(t, a.Patch(2, 16, 5))
	require.NoError(t, a.Patch(1, 5, 5))

	b := NewBitPatcher(0x0B000000)
	require.NoError(t, b.Patch(1, 5, 5))
	require.NoError(t, b.Patch(2, 16, 5))

	require.Equal(t, a.Value(), b.Value())
}

func TestPatchIdempotent(t *testing.T) {
	p := NewBitPatcher(0xFFFFFFFF)
	require.NoError(t, p.Patch(0x5, 8, 4))
	first := p.Value()
	require.NoError(t, p.Patch(0x5, 8, 4))
	require.Equal(t, first, p.Value())
}

func TestPatchClearsFieldBeforeOr(t *testing.T) {
	p := NewBitPatcher(0xFFFFFFFF)
	require.NoError(t, p.Patch(0, 8, 8))
	require.Equal(t, uint32(0xFFFF00FF), p.Value())
}

func TestPatchBounds(t *testing.T) {
	p := NewBitPatcher(0)
	require.Error(t, p.Patch(0, 0, 0))
	require.Error(t, p.Patch(0, 0, 33))
	require.Error(t, p.Patch(0, -1, 1))
	require.Error(t, p.Patch(0, 32, 1))
	require.Error(t, p.Patch(0, 28, 8))
	require.NoError(t, p.Patch(0, 28, 4))
}

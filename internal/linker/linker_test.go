package linker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beagle-lang/beagle/internal/asm/arm64"
	"github.com/beagle-lang/beagle/internal/rt"
)

func mustNop(t *testing.T) arm64.Instruction {
	t.Helper()
	i, err := arm64.Nop()
	require.NoError(t, err)
	return i
}

func mustReturn(t *testing.T) arm64.Instruction {
	t.Helper()
	i, err := arm64.Return()
	require.NoError(t, err)
	return i
}

func TestLinkBranchForward(t *testing.T) {
	s := NewStream()
	b, err := arm64.Branch("label_X")
	require.NoError(t, err)
	s.Add(b) // at 0x1000
	for i := 0; i < 7; i++ {
		s.Add(mustNop(t))
	}
	s.DefineLabel("label_X") // at 0x1020
	s.Add(mustReturn(t))

	l := NewLinker(nil, nil)
	require.NoError(t, l.Link(s, 0x1000))

	instrs := s.Instructions()
	require.Equal(t, uint64(0x1000), instrs[0].Address)
	require.Equal(t, uint64(0x1020), l.Labels()["label_X"])
	// Offset 0x20 bytes = 8 words in the low 26 bits.
	require.Equal(t, uint32(0x000008), instrs[0].Encoding&0x03FFFFFF)
	require.Equal(t, uint32(0x14000008), instrs[0].Encoding)
}

func TestLinkBranchBackward(t *testing.T) {
	s := NewStream()
	s.DefineLabel("loop")
	s.Add(mustNop(t))
	b, err := arm64.Branch("loop")
	require.NoError(t, err)
	s.Add(b) // one word past the label; offset -4 bytes = -1 word

	l := NewLinker(nil, nil)
	require.NoError(t, l.Link(s, 0x0))
	require.Equal(t, uint32(0x03FFFFFF), s.Instructions()[2].Encoding&0x03FFFFFF)
}

func TestLinkCondBranch19(t *testing.T) {
	s := NewStream()
	bc, err := arm64.BranchCond("EQ", "L1")
	require.NoError(t, err)
	s.Add(bc)
	s.Add(mustNop(t))
	s.DefineLabel("L1")
	s.Add(mustReturn(t))

	l := NewLinker(nil, nil)
	require.NoError(t, l.Link(s, 0x0))
	// Offset 8 bytes = 2 words in bits [23:5].
	require.Equal(t, uint32(2), (s.Instructions()[0].Encoding>>5)&0x7FFFF)
}

func TestLinkMovzMovkAddress(t *testing.T) {
	s := NewStream()
	seq, err := arm64.MovzMovkJITAddr("x16", 0, "target")
	require.NoError(t, err)
	s.AddAll(seq)
	s.Add(mustReturn(t))
	s.DefineLabel("target")
	s.Add(mustNop(t))

	l := NewLinker(nil, nil)
	require.NoError(t, l.Link(s, 0x0000_7012_3456_0000))

	// target sits at base + 5 words = 0x70123456_0014.
	want := uint64(0x0000701234560014)
	require.Equal(t, want, l.Labels()["target"])

	instrs := s.Instructions()
	require.Equal(t, uint32(want)&0xFFFF, (instrs[0].Encoding>>5)&0xFFFF)
	require.Equal(t, uint32(want>>16)&0xFFFF, (instrs[1].Encoding>>5)&0xFFFF)
	require.Equal(t, uint32(want>>32)&0xFFFF, (instrs[2].Encoding>>5)&0xFFFF)
	require.Equal(t, uint32(want>>48)&0xFFFF, (instrs[3].Encoding>>5)&0xFFFF)
}

func TestLinkUnresolvedLabel(t *testing.T) {
	s := NewStream()
	b, err := arm64.Branch("missing")
	require.NoError(t, err)
	s.Add(b)

	l := NewLinker(nil, nil)
	err = l.Link(s, 0x0)
	require.Error(t, err)
	var unresolved *UnresolvedLabelError
	require.ErrorAs(t, err, &unresolved)
	require.Equal(t, "missing", unresolved.Name)
}

func TestLinkRangeError(t *testing.T) {
	s := NewStream()
	bc, err := arm64.BranchCond("EQ", "far")
	require.NoError(t, err)
	s.Add(bc)
	// Push the label out of the 19-bit branch range (1 MiB).
	for i := 0; i < 1<<18+8; i++ {
		s.Add(mustNop(t))
	}
	s.DefineLabel("far")
	s.Add(mustReturn(t))

	l := NewLinker(nil, nil)
	err = l.Link(s, 0x0)
	var rangeErr *RelocationRangeError
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, arm64.RelocPcRelative19, rangeErr.Kind)
}

func TestLinkAdrpAddPair(t *testing.T) {
	s := NewStream()
	adrp, err := arm64.Adrp("x0", "datum")
	require.NoError(t, err)
	add, err := arm64.AddLiteral("x0", "x0", "datum")
	require.NoError(t, err)
	s.Add(adrp)
	s.Add(add)
	s.Add(mustReturn(t))
	s.DefineLabelIn("datum", arm64.SegmentROData)
	s.Add(arm64.AsRelocatableData("datum", arm64.SegmentROData))

	l := NewLinker(nil, nil)
	require.NoError(t, l.Link(s, 0x10000))

	target := l.Labels()["datum"]
	instrs := s.Instructions()
	// The ADD's imm12 equals the low 12 bits of the target.
	require.Equal(t, uint32(target&0xFFF), (instrs[1].Encoding>>10)&0xFFF)
}

func TestLinkVeneerRewrite(t *testing.T) {
	s := NewStream()
	bl, err := arm64.BranchWithLink("WRITEF")
	require.NoError(t, err)
	s.Add(bl)
	s.Add(mustReturn(t))
	s.DefineLabel("WRITEF_veneer")
	s.Add(mustNop(t))

	l := NewLinker(map[string]string{"WRITEF": "WRITEF_veneer"}, nil)
	require.NoError(t, l.Link(s, 0x0))

	instrs := s.Instructions()
	require.Equal(t, "WRITEF_veneer", instrs[0].TargetLabel)
	require.Equal(t, "BL WRITEF_veneer", instrs[0].AssemblyText)
}

func TestBuildImage(t *testing.T) {
	s := NewStream()
	s.DefineLabel("_start")
	s.Add(mustNop(t))
	s.Add(mustReturn(t))
	s.DefineLabelIn("ptr", arm64.SegmentData)
	s.Add(arm64.AsRelocatableData("_start", arm64.SegmentData))

	l := NewLinker(nil, nil)
	require.NoError(t, l.Link(s, 0x4000))

	img := BuildImage(s, l.Layout())
	require.Equal(t, byte(0x1F), img[0]) // NOP little-endian low byte
	require.Equal(t, byte(0x20), img[1])

	// The pointer datum holds _start's address.
	off := l.Labels()["ptr"] - l.Layout().CodeBase
	require.Equal(t, byte(0x00), img[off])
	require.Equal(t, byte(0x40), img[off+1])
}

func TestWriterOutput(t *testing.T) {
	registry := rt.NewRegistry([]rt.Function{
		{Name: "WRITEF", Address: 0xDEAD, Kind: rt.KindRoutine},
	}, false)

	s := NewStream()
	s.DefineLabel("_start")
	bl, err := arm64.BranchWithLink("WRITEF")
	require.NoError(t, err)
	s.Add(bl)

	// A veneer-style JitAddress sequence must be elided from static output.
	veneer, err := arm64.MovzMovkJITAddr("x16", 0xDEAD, "WRITEF")
	require.NoError(t, err)
	for _, v := range veneer {
		v.JITAttr = arm64.JitAddress
		s.Add(v)
	}

	adrp, err := arm64.Adrp("x1", "Point::data")
	require.NoError(t, err)
	s.Add(adrp)
	add, err := arm64.AddLiteral("x1", "x1", "Point::data")
	require.NoError(t, err)
	s.Add(add)
	s.Add(mustReturn(t))

	s.DefineLabelIn("Point::data", arm64.SegmentROData)
	s.Add(arm64.AsDataWord(42, arm64.SegmentROData))

	// Runtime function table entries are JIT-only.
	s.DefineLabelIn("L__runtime_function_table", arm64.SegmentData)
	s.Add(arm64.AsRelocatableData("WRITEF_veneer", arm64.SegmentData))
	s.DefineLabelIn("after_table", arm64.SegmentData)
	s.Add(arm64.AsDataWord(7, arm64.SegmentData))

	out := NewWriter(registry).Write(s)

	require.Contains(t, out, ".section __TEXT,__text")
	require.Contains(t, out, ".section __DATA,__const")
	require.Contains(t, out, ".section __DATA,__data")

	// _start keeps its name; other labels gain L_ and :: becomes _.
	require.Contains(t, out, "_start:")
	require.Contains(t, out, "L_Point_data:")

	// Runtime call goes to the exported symbol.
	require.Contains(t, out, "BL _WRITEF")

	// Veneer MOVZ/MOVK sequence elided.
	require.NotContains(t, out, "MOVZ x16")

	// clang-compatible ADRP pair.
	require.Contains(t, out, "ADRP x1, L_Point_data@PAGE")
	require.Contains(t, out, "ADD x1, x1, L_Point_data@PAGEOFF")

	// The runtime table body is suppressed; data after the next label stays.
	require.NotContains(t, out, "WRITEF_veneer")
	require.Contains(t, out, "L_after_table:")
	require.Contains(t, out, ".word 0x00000007")
}

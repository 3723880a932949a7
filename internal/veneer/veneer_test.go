package veneer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beagle-lang/beagle/internal/asm/arm64"
	"github.com/beagle-lang/beagle/internal/linker"
	"github.com/beagle-lang/beagle/internal/rt"
)

func testRegistry() *rt.Registry {
	fns := []rt.Function{
		{Name: "WRITEF", Address: 0x100000000, Arity: 1, Kind: rt.KindRoutine},
		{Name: "HeapManager_enter_scope", Address: 0x100001000, Kind: rt.KindRoutine},
		{Name: "HeapManager_exit_scope", Address: 0x100002000, Kind: rt.KindRoutine},
	}
	// Only five of the seven WRITEF arity variants are registered.
	for i := 1; i <= 5; i++ {
		fns = append(fns, rt.Function{
			Name:    fmt.Sprintf("WRITEF%d", i),
			Address: 0x100000000 + uint64(i)*16,
			Arity:   uint32(i + 1),
			Kind:    rt.KindRoutine,
		})
	}
	return rt.NewRegistry(fns, false)
}

func TestFamilyExpansion(t *testing.T) {
	m := NewManager(testRegistry(), nil)
	m.Initialize(0x10000)

	s := linker.NewStream()
	err := m.GenerateVeneers(map[string]struct{}{"WRITEF": {}}, s)
	require.NoError(t, err)

	// WRITEF + WRITEF1..5 (only registered variants) + the two heap-scope
	// functions.
	require.Len(t, m.VeneerLabels(), 8)
	require.True(t, m.HasVeneer("WRITEF"))
	require.True(t, m.HasVeneer("WRITEF5"))
	require.False(t, m.HasVeneer("WRITEF6"))
	require.True(t, m.HasVeneer("HeapManager_enter_scope"))
	require.True(t, m.HasVeneer("HeapManager_exit_scope"))
	require.Equal(t, "WRITEF_veneer", m.VeneerLabel("WRITEF"))
}

func TestVeneerShape(t *testing.T) {
	m := NewManager(testRegistry(), nil)
	m.Initialize(0x10000)

	s := linker.NewStream()
	require.NoError(t, m.GenerateVeneers(map[string]struct{}{"WRITEF": {}}, s))

	// Each veneer is a label followed by exactly five instructions:
	// 4 x MOVZ/MOVK then BR, all tagged JitAddress.
	instrs := s.Instructions()
	i := 0
	veneers := 0
	for i < len(instrs) {
		require.True(t, instrs[i].IsLabelDefinition)
		label := instrs[i].TargetLabel
		i++
		require.Equal(t, arm64.OpMOVZ, instrs[i].Opcode, label)
		for k := 1; k < 4; k++ {
			require.Equal(t, arm64.OpMOVK, instrs[i+k].Opcode, label)
		}
		require.Equal(t, arm64.OpBR, instrs[i+4].Opcode, label)
		for k := 0; k < 5; k++ {
			require.Equal(t, arm64.JitAddress, instrs[i+k].JITAttr, label)
		}
		i += 5
		veneers++
	}
	require.Equal(t, 8, veneers)
	require.Equal(t, uint64(8*VeneerSize), m.TotalVeneerSize())
	require.Equal(t, uint64(0x10000+8*VeneerSize), m.MainCodeStart())
}

func TestUnregisteredFunctionFails(t *testing.T) {
	m := NewManager(testRegistry(), nil)
	m.Initialize(0)

	s := linker.NewStream()
	err := m.GenerateVeneers(map[string]struct{}{"NOT_A_FUNCTION": {}}, s)
	require.Error(t, err)
}

func TestVeneerLinksToRuntimeAddress(t *testing.T) {
	m := NewManager(testRegistry(), nil)
	m.Initialize(0)

	s := linker.NewStream()
	require.NoError(t, m.GenerateVeneers(map[string]struct{}{"WRITEF": {}}, s))

	// Calls to WRITEF are rewritten to the veneer by the linker.
	bl, err := arm64.BranchWithLink("WRITEF")
	require.NoError(t, err)
	s.Add(bl)

	l := linker.NewLinker(m.VeneerLabels(), nil)
	require.NoError(t, l.Link(s, 0))

	instrs := s.Instructions()
	last := instrs[len(instrs)-1]
	require.Equal(t, "WRITEF_veneer", last.TargetLabel)
	require.True(t, last.RelocationApplied)
}

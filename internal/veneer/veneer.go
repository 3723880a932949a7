// Package veneer generates the trampolines that bridge generated code to
// the host runtime. AArch64 BL has a ±128 MiB range; runtime functions load
// at arbitrary addresses, so every runtime call branches to a nearby veneer
// that materializes the absolute address into a scratch register and
// branches indirectly. Every veneer uses the full-length MOVZ/MOVK sequence,
// so its size does not depend on the address it loads.
package veneer

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/beagle-lang/beagle/internal/asm/arm64"
	"github.com/beagle-lang/beagle/internal/linker"
	"github.com/beagle-lang/beagle/internal/rt"
)

// ScratchRegister is the register veneers clobber, reserved by convention.
const ScratchRegister = "X16"

// VeneerSize is the byte size of one veneer: four MOVZ/MOVK plus BR.
const VeneerSize = 5 * 4

// Manager generates veneers and retains the name -> veneer-label map the
// linker uses to rewrite BL targets. Veneers live only in the instruction
// stream; there is no separate accessor for their instructions or
// addresses.
type Manager struct {
	runtime *rt.Registry
	logger  *zap.Logger

	codeBufferBase  uint64
	veneerLabels    map[string]string
	totalVeneerSize uint64
}

// NewManager returns a manager for the given runtime registry.
func NewManager(runtime *rt.Registry, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{runtime: runtime, logger: logger, veneerLabels: make(map[string]string)}
}

// Initialize records the base of the code buffer and clears prior state.
func (m *Manager) Initialize(codeBufferBase uint64) {
	m.codeBufferBase = codeBufferBase
	m.veneerLabels = make(map[string]string)
	m.totalVeneerSize = 0
}

// VeneerLabels returns the runtime-name -> veneer-label map for the linker.
func (m *Manager) VeneerLabels() map[string]string { return m.veneerLabels }

// HasVeneer reports whether a veneer was generated for the function.
func (m *Manager) HasVeneer(functionName string) bool {
	_, ok := m.veneerLabels[functionName]
	return ok
}

// VeneerLabel returns the label of a function's veneer, or "".
func (m *Manager) VeneerLabel(functionName string) string {
	return m.veneerLabels[functionName]
}

// TotalVeneerSize returns the byte size of the veneer region.
func (m *Manager) TotalVeneerSize() uint64 { return m.totalVeneerSize }

// MainCodeStart returns the address where main code begins, past the veneer
// region.
func (m *Manager) MainCodeStart() uint64 { return m.codeBufferBase + m.totalVeneerSize }

// GenerateVeneers expands the external-function set into family closures,
// then emits one veneer per function at the head of the instruction stream:
// a label, four MOVZ/MOVK loading the runtime address into the scratch
// register, and BR. All five instructions are tagged JitAddress so the
// static assembly writer elides them.
func (m *Manager) GenerateVeneers(externalFunctions map[string]struct{}, stream *linker.Stream) error {
	expanded := m.expandFunctionFamilies(externalFunctions)
	if len(expanded) == 0 {
		m.logger.Debug("no external functions after expansion, skipping veneer generation")
		return nil
	}

	for _, name := range expanded {
		fn, ok := m.runtime.GetFunction(name)
		if !ok {
			return fmt.Errorf("veneer creation failed: runtime function not found: %s", name)
		}

		label := name + "_veneer"
		stream.DefineLabel(label)

		seq, err := arm64.MovzMovkJITAddr(ScratchRegister, fn.Address, name)
		if err != nil {
			return err
		}
		br, err := arm64.BranchReg(ScratchRegister)
		if err != nil {
			return err
		}
		seq = append(seq, br)
		for _, instr := range seq {
			instr.JITAttr = arm64.JitAddress
			// The runtime address is already encoded and the stream defines
			// no label for the runtime name, so nothing is left to relocate.
			instr.Relocation = arm64.RelocNone
			stream.Add(instr)
		}

		m.veneerLabels[name] = label
		m.totalVeneerSize += VeneerSize
		m.logger.Debug("created veneer",
			zap.String("label", label), zap.Uint64("target", fn.Address))
	}
	return nil
}

// expandFunctionFamilies adds the variants a detected family implies (for
// WRITEF, the WRITEF1..WRITEF7 arity variants) plus the always-required
// heap-scope pair, filtered by what the runtime actually registered. The
// result is sorted for deterministic stream layout.
func (m *Manager) expandFunctionFamilies(base map[string]struct{}) []string {
	expanded := make(map[string]struct{}, len(base))
	for name := range base {
		expanded[name] = struct{}{}
	}

	for _, essential := range []string{"HeapManager_enter_scope", "HeapManager_exit_scope"} {
		if m.runtime.IsFunctionRegistered(essential) {
			expanded[essential] = struct{}{}
		} else {
			m.logger.Warn("essential heap function not registered", zap.String("function", essential))
		}
	}

	if _, ok := base["WRITEF"]; ok {
		for i := 1; i <= 7; i++ {
			variant := fmt.Sprintf("WRITEF%d", i)
			if m.runtime.IsFunctionRegistered(variant) {
				expanded[variant] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(expanded))
	for name := range expanded {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

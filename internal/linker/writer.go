package linker

import (
	"fmt"
	"strings"

	"github.com/beagle-lang/beagle/internal/asm/arm64"
	"github.com/beagle-lang/beagle/internal/rt"
)

// runtimeTableLabel brackets the JIT-only runtime function table in the DATA
// segment; the writer suppresses everything between it and the next label.
const runtimeTableLabel = "L__runtime_function_table"

// Writer emits Mach-O-flavored assembly for the whole stream. Veneer
// instructions (JitAddress) are JIT-only and filtered out; calls to
// runtime-registered functions go directly to the exported
// underscore-prefixed symbol instead.
type Writer struct {
	runtime *rt.Registry

	// Section names; Mach-O defaults, adjustable for ELF targets.
	TextSection   string
	RODataSection string
	DataSection   string
}

// NewWriter returns an assembly writer over the runtime registry.
func NewWriter(runtime *rt.Registry) *Writer {
	return &Writer{
		runtime:       runtime,
		TextSection:   "__TEXT,__text",
		RODataSection: "__DATA,__const",
		DataSection:   "__DATA,__data",
	}
}

// sanitizeLabel renames a label for toolchain compatibility: ".L" prefixes
// and bare names gain "L_" (except _start), and "::" becomes "_" so
// qualified method names are valid assembler identifiers.
func sanitizeLabel(name string) string {
	if name == "_start" {
		return name
	}
	name = strings.ReplaceAll(name, "::", "_")
	if strings.HasPrefix(name, ".L") {
		return "L_" + name[2:]
	}
	if !strings.HasPrefix(name, "L_") {
		return "L_" + name
	}
	return name
}

// rewriteOperandLabel sanitizes a label appearing inside assembly text.
func rewriteOperandLabel(asm, label string) string {
	if label == "" {
		return asm
	}
	return strings.ReplaceAll(asm, label, sanitizeLabel(label))
}

// Write renders the linked stream as a single assembly file.
func (w *Writer) Write(s *Stream) string {
	var b strings.Builder
	b.WriteString("// Generated AArch64 assembly\n")

	w.writeSegment(&b, s, arm64.SegmentCode, w.TextSection)
	w.writeSegment(&b, s, arm64.SegmentROData, w.RODataSection)
	w.writeSegment(&b, s, arm64.SegmentData, w.DataSection)
	return b.String()
}

func (w *Writer) writeSegment(b *strings.Builder, s *Stream, segment arm64.Segment, section string) {
	instrs := s.Instructions()

	any := false
	for i := range instrs {
		if instrs[i].Segment == segment {
			any = true
			break
		}
	}
	if !any {
		return
	}

	fmt.Fprintf(b, "\n.section %s\n.align 3\n", section)
	if segment == arm64.SegmentCode {
		b.WriteString(".globl _start\n")
	}

	suppressing := false
	for i := range instrs {
		instr := &instrs[i]
		if instr.Segment != segment {
			continue
		}

		if instr.IsLabelDefinition {
			// Runtime-table suppression: JIT-only DATA entries between the
			// table label and the next label are not part of the static
			// image.
			if segment == arm64.SegmentData {
				if instr.TargetLabel == runtimeTableLabel {
					suppressing = true
					continue
				}
				suppressing = false
			}
			fmt.Fprintf(b, "%s:\n", sanitizeLabel(instr.TargetLabel))
			continue
		}
		if suppressing {
			continue
		}
		// Veneers are JIT-only.
		if instr.JITAttr == arm64.JitAddress {
			continue
		}

		switch {
		case instr.Relocation == arm64.RelocLabel:
			fmt.Fprintf(b, "\t.quad %s\n", sanitizeLabel(instr.TargetLabel))
		case instr.Relocation == arm64.RelocAbsoluteHi32:
			// The .quad above covers both halves in the text rendering.
			continue
		case instr.Relocation == arm64.RelocAbsoluteLo32:
			fmt.Fprintf(b, "\t.quad %s\n", sanitizeLabel(instr.TargetLabel))
		case instr.IsDataValue:
			if instr.Opcode == arm64.OpDirective {
				fmt.Fprintf(b, "\t%s\n", instr.AssemblyText)
			} else {
				fmt.Fprintf(b, "\t.word 0x%08X\n", instr.Encoding)
			}
		default:
			fmt.Fprintf(b, "\t%s\n", w.renderInstruction(instr))
		}
	}
}

// renderInstruction rewrites one instruction's text for the static file:
// runtime calls to exported symbols, ADRP pairs to the clang-compatible
// @PAGE/@PAGEOFF forms, and every other label reference sanitized.
func (w *Writer) renderInstruction(i *arm64.Instruction) string {
	switch i.Opcode {
	case arm64.OpBL:
		if w.runtime != nil && w.runtime.IsFunctionRegistered(i.TargetLabel) {
			return "BL _" + i.TargetLabel
		}
		return rewriteOperandLabel(i.AssemblyText, i.TargetLabel)
	case arm64.OpADRP:
		return fmt.Sprintf("ADRP %s, %s@PAGE", regName(i.DestReg), sanitizeLabel(i.TargetLabel))
	case arm64.OpADD:
		if i.Relocation == arm64.RelocAdd12Unsigned {
			return fmt.Sprintf("ADD %s, %s, %s@PAGEOFF",
				regName(i.DestReg), regName(i.SrcReg1), sanitizeLabel(i.TargetLabel))
		}
		return i.AssemblyText
	default:
		return rewriteOperandLabel(i.AssemblyText, i.TargetLabel)
	}
}

func regName(n int) string {
	if n == 31 {
		return "sp"
	}
	return fmt.Sprintf("x%d", n)
}

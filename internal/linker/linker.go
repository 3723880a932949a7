package linker

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/beagle-lang/beagle/internal/asm/arm64"
)

// Layout records where the linker placed each segment.
type Layout struct {
	CodeBase   uint64
	RODataBase uint64
	DataBase   uint64
	TotalSize  uint64
}

// Linker assigns addresses, binds labels and patches relocations over an
// instruction stream, in two passes: the first accumulates addresses and
// the label table, the second patches every instruction with a relocation.
type Linker struct {
	logger *zap.Logger

	labels map[string]uint64
	layout Layout

	// veneerLabels maps runtime function names to their veneer labels; BL
	// to a runtime function is rewritten to branch to the veneer.
	veneerLabels map[string]string
}

// NewLinker returns a linker. veneerLabels may be nil when no veneers are in
// play (static assembly output).
func NewLinker(veneerLabels map[string]string, logger *zap.Logger) *Linker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Linker{logger: logger, veneerLabels: veneerLabels}
}

// Labels returns the label table built by the last Link call.
func (l *Linker) Labels() map[string]uint64 { return l.labels }

// Layout returns the segment placement of the last Link call.
func (l *Linker) Layout() Layout { return l.layout }

// recordSize returns the number of bytes a record occupies in its segment.
func recordSize(i *arm64.Instruction) uint64 {
	switch {
	case i.IsLabelDefinition:
		return 0
	case i.Relocation == arm64.RelocLabel:
		// A pointer datum is a 64-bit word.
		return 8
	case i.Opcode == arm64.OpDirective:
		return 0
	default:
		return 4
	}
}

// Link walks the stream twice: addresses and labels first, relocation
// patches second. Code is placed at codeBase; RODATA and DATA follow,
// 16-byte aligned. All findings are aggregated; linking always runs to
// completion.
func (l *Linker) Link(s *Stream, codeBase uint64) error {
	instrs := s.Instructions()
	l.labels = make(map[string]uint64)

	// Pass 1: assign addresses per segment, then bind labels.
	var codeSize, roSize uint64
	for i := range instrs {
		switch instrs[i].Segment {
		case arm64.SegmentCode:
			codeSize += recordSize(&instrs[i])
		case arm64.SegmentROData:
			roSize += recordSize(&instrs[i])
		}
	}
	l.layout.CodeBase = codeBase
	l.layout.RODataBase = align16(codeBase + codeSize)
	l.layout.DataBase = align16(l.layout.RODataBase + roSize)

	cursor := map[arm64.Segment]uint64{
		arm64.SegmentCode:   l.layout.CodeBase,
		arm64.SegmentROData: l.layout.RODataBase,
		arm64.SegmentData:   l.layout.DataBase,
	}
	for i := range instrs {
		instr := &instrs[i]
		instr.Address = cursor[instr.Segment]
		if instr.IsLabelDefinition {
			l.labels[instr.TargetLabel] = instr.Address
		}
		cursor[instr.Segment] += recordSize(instr)
	}
	l.layout.TotalSize = cursor[arm64.SegmentData] - codeBase

	// Rewrite BL to runtime functions through their veneers before
	// resolving, so the branch target is short-range.
	if len(l.veneerLabels) > 0 {
		for i := range instrs {
			instr := &instrs[i]
			if instr.Opcode == arm64.OpBL {
				if veneer, ok := l.veneerLabels[instr.TargetLabel]; ok {
					instr.TargetLabel = veneer
					instr.AssemblyText = "BL " + veneer
				}
			}
		}
	}

	// Pass 2: patch relocations.
	var errs []error
	for i := range instrs {
		if err := l.patch(&instrs[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

func align16(v uint64) uint64 { return (v + 15) &^ 15 }

func (l *Linker) patch(i *arm64.Instruction) error {
	if i.Relocation == arm64.RelocNone || i.Relocation == arm64.RelocJump || i.IsLabelDefinition {
		return nil
	}

	target, ok := l.labels[i.TargetLabel]
	if !ok {
		return &UnresolvedLabelError{Name: i.TargetLabel}
	}

	switch i.Relocation {
	case arm64.RelocPcRelative26:
		delta := int64(target) - int64(i.Address)
		words := delta / 4
		if words < -(1<<25) || words >= 1<<25 {
			return &RelocationRangeError{Kind: i.Relocation, Value: delta, Range: "26-bit signed word offset"}
		}
		p := arm64.NewBitPatcher(i.Encoding)
		if err := p.Patch(uint32(words)&0x03FFFFFF, 0, 26); err != nil {
			return err
		}
		i.Encoding = p.Value()

	case arm64.RelocPcRelative19:
		delta := int64(target) - int64(i.Address)
		words := delta / 4
		if words < -(1<<18) || words >= 1<<18 {
			return &RelocationRangeError{Kind: i.Relocation, Value: delta, Range: "19-bit signed word offset"}
		}
		p := arm64.NewBitPatcher(i.Encoding)
		if err := p.Patch(uint32(words)&0x7FFFF, 5, 19); err != nil {
			return err
		}
		i.Encoding = p.Value()

	case arm64.RelocAdrpPage21:
		pages := int64(target>>12) - int64(i.Address>>12)
		rangeDesc := "21-bit signed page offset"
		if i.Opcode == arm64.OpADR {
			// ADR takes a byte offset in the same immlo/immhi fields.
			pages = int64(target) - int64(i.Address)
			rangeDesc = "21-bit signed byte offset"
		}
		if pages < -(1<<20) || pages >= 1<<20 {
			return &RelocationRangeError{Kind: i.Relocation, Value: pages, Range: rangeDesc}
		}
		p := arm64.NewBitPatcher(i.Encoding)
		if err := p.Patch(uint32(pages)&0x3, 29, 2); err != nil {
			return err
		}
		if err := p.Patch(uint32(pages>>2)&0x7FFFF, 5, 19); err != nil {
			return err
		}
		i.Encoding = p.Value()

	case arm64.RelocAdd12Unsigned:
		lo12 := (target + uint64(i.Immediate)) & 0xFFF
		p := arm64.NewBitPatcher(i.Encoding)
		if err := p.Patch(uint32(lo12), 10, 12); err != nil {
			return err
		}
		i.Encoding = p.Value()

	case arm64.RelocMovzMovk0, arm64.RelocMovzMovk16, arm64.RelocMovzMovk32, arm64.RelocMovzMovk48:
		shift := 0
		switch i.Relocation {
		case arm64.RelocMovzMovk16:
			shift = 16
		case arm64.RelocMovzMovk32:
			shift = 32
		case arm64.RelocMovzMovk48:
			shift = 48
		}
		chunk := uint32(target>>shift) & 0xFFFF
		p := arm64.NewBitPatcher(i.Encoding)
		if err := p.Patch(chunk, 5, 16); err != nil {
			return err
		}
		i.Encoding = p.Value()

	case arm64.RelocAbsoluteLo32:
		i.Encoding = uint32(target)

	case arm64.RelocAbsoluteHi32:
		i.Encoding = uint32(target >> 32)

	case arm64.RelocLabel:
		// The 64-bit pointer datum: the resolved address is carried in
		// Immediate for the 8-byte emitters, with the low half mirrored in
		// Encoding.
		i.Immediate = int64(target)
		i.Encoding = uint32(target)

	default:
		return fmt.Errorf("unhandled relocation kind %s", i.Relocation)
	}

	i.RelocationApplied = true
	l.logger.Debug("patched relocation",
		zap.Stringer("kind", i.Relocation),
		zap.String("target", i.TargetLabel),
		zap.Uint64("address", target))
	return nil
}

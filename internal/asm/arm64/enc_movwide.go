package arm64

import "fmt"

// Move-wide encoders: MOVZ/MOVK with an explicit LSL of 0/16/32/48, and the
// two helpers that synthesize a 64-bit absolute-value load. The relocation
// kind for each chunk lets the linker rewrite the resolved address later.

func movWide(mnemonic string, base uint32, op OpType, xd string, imm16 uint16, shift int, reloc RelocationKind, symbol string) (Instruction, error) {
	rd, err := parseGP(xd)
	if err != nil {
		return Instruction{}, err
	}
	if shift != 0 && shift != 16 && shift != 32 && shift != 48 {
		return Instruction{}, &InvalidShiftError{Amount: shift, Allowed: "{0, 16, 32, 48}"}
	}
	if !rd.is64 && shift > 16 {
		return Instruction{}, &InvalidShiftError{Amount: shift, Allowed: "{0, 16} for W registers"}
	}

	p := NewBitPatcher(base)
	if rd.is64 {
		p.patch(1, 31, 1)
	}
	p.patch(uint32(shift/16), 21, 2)
	p.patch(uint32(imm16), 5, 16)
	p.patch(rd.num, 0, 5)

	asm := fmt.Sprintf("%s %s, #%d", mnemonic, xd, imm16)
	if shift != 0 {
		asm += fmt.Sprintf(", LSL #%d", shift)
	}
	i := newInstruction(p.Value(), asm)
	i.Opcode = op
	i.DestReg = int(rd.num)
	i.Immediate = int64(imm16)
	i.UsesImmediate = true
	i.Relocation = reloc
	i.TargetLabel = symbol
	return i, nil
}

// MovzImm encodes MOVZ <Xd|Wd>, #imm16, LSL #shift.
func MovzImm(xd string, imm16 uint16, shift int) (Instruction, error) {
	return movWide("MOVZ", 0x52800000, OpMOVZ, xd, imm16, shift, RelocNone, "")
}

// MovkImm encodes MOVK <Xd|Wd>, #imm16, LSL #shift.
func MovkImm(xd string, imm16 uint16, shift int) (Instruction, error) {
	return movWide("MOVK", 0x72800000, OpMOVK, xd, imm16, shift, RelocNone, "")
}

// MovzImmReloc is MovzImm carrying a relocation so the linker can rewrite
// the chunk when the symbol's address is resolved.
func MovzImmReloc(xd string, imm16 uint16, shift int, reloc RelocationKind, symbol string) (Instruction, error) {
	return movWide("MOVZ", 0x52800000, OpMOVZ, xd, imm16, shift, reloc, symbol)
}

// MovkImmReloc is MovkImm with a relocation.
func MovkImmReloc(xd string, imm16 uint16, shift int, reloc RelocationKind, symbol string) (Instruction, error) {
	return movWide("MOVK", 0x72800000, OpMOVK, xd, imm16, shift, reloc, symbol)
}

var movzMovkRelocs = [4]RelocationKind{
	RelocMovzMovk0, RelocMovzMovk16, RelocMovzMovk32, RelocMovzMovk48,
}

// MovzMovkAbs64 synthesizes the shortest MOVZ/MOVK sequence loading a 64-bit
// absolute value: zero 16-bit chunks are skipped, the first non-zero chunk
// uses MOVZ, the rest MOVK.
func MovzMovkAbs64(xd string, address uint64, symbol string) ([]Instruction, error) {
	if address == 0 {
		i, err := MovzImmReloc(xd, 0, 0, RelocMovzMovk0, symbol)
		if err != nil {
			return nil, err
		}
		return []Instruction{i}, nil
	}

	var out []Instruction
	first := true
	for c := 0; c < 4; c++ {
		chunk := uint16(address >> (c * 16))
		if chunk == 0 {
			continue
		}
		var (
			i   Instruction
			err error
		)
		if first {
			i, err = MovzImmReloc(xd, chunk, c*16, movzMovkRelocs[c], symbol)
			first = false
		} else {
			i, err = MovkImmReloc(xd, chunk, c*16, movzMovkRelocs[c], symbol)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

// MovzMovkJITAddr always emits the full four-instruction MOVZ/MOVK sequence
// regardless of zero chunks, so the linker can rewrite the target address
// in place without re-sizing the code.
func MovzMovkJITAddr(xd string, address uint64, symbol string) ([]Instruction, error) {
	out := make([]Instruction, 0, 4)
	for c := 0; c < 4; c++ {
		chunk := uint16(address >> (c * 16))
		var (
			i   Instruction
			err error
		)
		if c == 0 {
			i, err = MovzImmReloc(xd, chunk, 0, RelocMovzMovk0, symbol)
		} else {
			i, err = MovkImmReloc(xd, chunk, c*16, movzMovkRelocs[c], symbol)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

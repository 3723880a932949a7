package arm64

import "fmt"

// Branch and address-materialization encoders. PC-relative forms carry a
// relocation and target label; the linker fills the offset fields once
// addresses are assigned.

// Branch encodes B <label> with a 26-bit PC-relative relocation.
func Branch(label string) (Instruction, error) {
	i := newInstruction(0x14000000, "B "+label)
	i.Opcode = OpB
	i.Relocation = RelocPcRelative26
	i.TargetLabel = label
	return i, nil
}

// BranchWithLink encodes BL <label>.
func BranchWithLink(label string) (Instruction, error) {
	i := newInstruction(0x94000000, "BL "+label)
	i.Opcode = OpBL
	i.Relocation = RelocPcRelative26
	i.TargetLabel = label
	return i, nil
}

// BranchCond encodes B.<cond> <label> with a 19-bit PC-relative relocation.
func BranchCond(cond, label string) (Instruction, error) {
	c, err := ParseCond(cond)
	if err != nil {
		return Instruction{}, err
	}
	p := NewBitPatcher(0x54000000)
	p.patch(uint32(c), 0, 4)

	i := newInstruction(p.Value(), fmt.Sprintf("B.%s %s", c, label))
	i.Opcode = OpBCond
	i.Cond = c
	i.Relocation = RelocPcRelative19
	i.TargetLabel = label
	return i, nil
}

// BranchReg encodes BR <Xn>.
func BranchReg(xn string) (Instruction, error) {
	rn, err := parseGP(xn)
	if err != nil {
		return Instruction{}, err
	}
	if !rn.is64 {
		return Instruction{}, &InvalidRegisterError{Text: xn}
	}
	p := NewBitPatcher(0xD61F0000)
	p.patch(rn.num, 5, 5)

	i := newInstruction(p.Value(), "BR "+xn)
	i.Opcode = OpBR
	i.SrcReg1 = int(rn.num)
	return i, nil
}

// BranchLinkReg encodes BLR <Xn>.
func BranchLinkReg(xn string) (Instruction, error) {
	rn, err := parseGP(xn)
	if err != nil {
		return Instruction{}, err
	}
	if !rn.is64 {
		return Instruction{}, &InvalidRegisterError{Text: xn}
	}
	p := NewBitPatcher(0xD63F0000)
	p.patch(rn.num, 5, 5)

	i := newInstruction(p.Value(), "BLR "+xn)
	i.Opcode = OpBLR
	i.SrcReg1 = int(rn.num)
	return i, nil
}

// Return encodes RET (through X30).
func Return() (Instruction, error) {
	i := newInstruction(0xD65F03C0, "RET")
	i.Opcode = OpRET
	return i, nil
}

// Cbz encodes CBZ <Xt|Wt>, <label>.
func Cbz(xt, label string) (Instruction, error) {
	return compareBranch("CBZ", 0x34000000, OpCBZ, xt, label)
}

// Cbnz encodes CBNZ <Xt|Wt>, <label>.
func Cbnz(xt, label string) (Instruction, error) {
	return compareBranch("CBNZ", 0x35000000, OpCBNZ, xt, label)
}

func compareBranch(mnemonic string, base uint32, op OpType, xt, label string) (Instruction, error) {
	rt, err := parseGP(xt)
	if err != nil {
		return Instruction{}, err
	}
	p := NewBitPatcher(base)
	if rt.is64 {
		p.patch(1, 31, 1)
	}
	p.patch(rt.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("%s %s, %s", mnemonic, xt, label))
	i.Opcode = op
	i.SrcReg1 = int(rt.num)
	i.Relocation = RelocPcRelative19
	i.TargetLabel = label
	return i, nil
}

// Adr encodes ADR <Xd>, <label>. Like the ADRP pair, the offset is resolved
// by the linker.
func Adr(xd, label string) (Instruction, error) {
	rd, err := parseGP(xd)
	if err != nil {
		return Instruction{}, err
	}
	if !rd.is64 {
		return Instruction{}, &InvalidRegisterError{Text: xd}
	}
	p := NewBitPatcher(0x10000000)
	p.patch(rd.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("ADR %s, %s", xd, label))
	i.Opcode = OpADR
	i.DestReg = int(rd.num)
	i.Relocation = RelocAdrpPage21
	i.TargetLabel = label
	return i, nil
}

// Adrp encodes ADRP <Xd>, <label>, the page-address half of the
// ADRP/ADD-literal pair.
func Adrp(xd, label string) (Instruction, error) {
	rd, err := parseGP(xd)
	if err != nil {
		return Instruction{}, err
	}
	if !rd.is64 {
		return Instruction{}, &InvalidRegisterError{Text: xd}
	}
	p := NewBitPatcher(0x90000000)
	p.patch(rd.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("ADRP %s, %s", xd, label))
	i.Opcode = OpADRP
	i.DestReg = int(rd.num)
	i.Relocation = RelocAdrpPage21
	i.TargetLabel = label
	return i, nil
}

// AddLiteral encodes the ADD <Xd>, <Xn>, #:lo12:<label> completing an ADRP
// pair; the linker patches the low-12 offset.
func AddLiteral(xd, xn, label string) (Instruction, error) {
	i, err := AddImm(xd, xn, 0)
	if err != nil {
		return Instruction{}, err
	}
	i.AssemblyText = fmt.Sprintf("ADD %s, %s, #:lo12:%s", xd, xn, label)
	i.Relocation = RelocAdd12Unsigned
	i.TargetLabel = label
	i.UsesImmediate = false
	return i, nil
}

// AddLiteralWithOffset is AddLiteral with a constant byte offset added to
// the label's address at link time.
func AddLiteralWithOffset(xd, xn, label string, offset int64) (Instruction, error) {
	if offset < 0 || offset > 4095 {
		return Instruction{}, &InvalidImmediateError{Value: offset, Reason: "literal offset must be in [0, 4095]"}
	}
	i, err := AddLiteral(xd, xn, label)
	if err != nil {
		return Instruction{}, err
	}
	i.Immediate = offset
	return i, nil
}

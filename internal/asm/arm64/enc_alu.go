package arm64

import "fmt"

// Data-processing (register and immediate) encoders. Each follows the same
// shape: parse and validate operands, start from the form's base opcode,
// patch operand fields, and return a fully decoded Instruction. Malformed
// input returns an error; nothing here panics or truncates.

// threeRegSameWidth is the common ADD/SUB/AND/... frame: all operands X or
// all W, with the base opcode in its 32-bit form and sf patched for X.
func threeRegSameWidth(mnemonic string, base uint32, op OpType, xd, xn, xm string) (Instruction, error) {
	rd, err := parseGP(xd)
	if err != nil {
		return Instruction{}, err
	}
	rn, err := parseGP(xn)
	if err != nil {
		return Instruction{}, err
	}
	rm, err := parseGP(xm)
	if err != nil {
		return Instruction{}, err
	}
	if err := sameGPWidth(mnemonic, rd, rn, rm); err != nil {
		return Instruction{}, err
	}

	p := NewBitPatcher(base)
	if rd.is64 {
		p.patch(1, 31, 1)
	}
	p.patch(rd.num, 0, 5)
	p.patch(rn.num, 5, 5)
	p.patch(rm.num, 16, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("%s %s, %s, %s", mnemonic, xd, xn, xm))
	i.Opcode = op
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(rn.num)
	i.SrcReg2 = int(rm.num)
	return i, nil
}

// AddReg encodes ADD <Xd|Wd>, <Xn|Wn>, <Xm|Wm>.
func AddReg(xd, xn, xm string) (Instruction, error) {
	return threeRegSameWidth("ADD", 0x0B000000, OpADD, xd, xn, xm)
}

// SubReg encodes SUB <Xd|Wd>, <Xn|Wn>, <Xm|Wm>.
func SubReg(xd, xn, xm string) (Instruction, error) {
	return threeRegSameWidth("SUB", 0x4B000000, OpSUB, xd, xn, xm)
}

// AndReg encodes AND (shifted register).
func AndReg(xd, xn, xm string) (Instruction, error) {
	return threeRegSameWidth("AND", 0x0A000000, OpAND, xd, xn, xm)
}

// OrrReg encodes ORR (shifted register).
func OrrReg(xd, xn, xm string) (Instruction, error) {
	return threeRegSameWidth("ORR", 0x2A000000, OpORR, xd, xn, xm)
}

// EorReg encodes EOR (shifted register).
func EorReg(xd, xn, xm string) (Instruction, error) {
	return threeRegSameWidth("EOR", 0x4A000000, OpEOR, xd, xn, xm)
}

// BicReg encodes BIC: AND with the second operand inverted (N bit set).
func BicReg(xd, xn, xm string) (Instruction, error) {
	return threeRegSameWidth("BIC", 0x0A200000, OpBIC, xd, xn, xm)
}

// SdivReg encodes SDIV.
func SdivReg(xd, xn, xm string) (Instruction, error) {
	return threeRegSameWidth("SDIV", 0x1AC00C00, OpSDIV, xd, xn, xm)
}

// MulReg encodes MUL, the MADD alias with the accumulator wired to the zero
// register.
func MulReg(xd, xn, xm string) (Instruction, error) {
	i, err := threeRegSameWidth("MUL", 0x1B007C00, OpMUL, xd, xn, xm)
	if err != nil {
		return Instruction{}, err
	}
	i.RaReg = 31
	return i, nil
}

// LslReg encodes the register-shift form LSLV.
func LslReg(xd, xn, xm string) (Instruction, error) {
	return threeRegSameWidth("LSL", 0x1AC02000, OpLSL, xd, xn, xm)
}

// LsrReg encodes the register-shift form LSRV.
func LsrReg(xd, xn, xm string) (Instruction, error) {
	return threeRegSameWidth("LSR", 0x1AC02400, OpLSR, xd, xn, xm)
}

// AsrReg encodes the register-shift form ASRV.
func AsrReg(xd, xn, xm string) (Instruction, error) {
	return threeRegSameWidth("ASR", 0x1AC02800, OpASR, xd, xn, xm)
}

// MovReg encodes MOV <Xd>, <Xm>: the ORR alias with the first source wired
// to the zero register.
func MovReg(xd, xm string) (Instruction, error) {
	rd, err := parseGP(xd)
	if err != nil {
		return Instruction{}, err
	}
	rm, err := parseGP(xm)
	if err != nil {
		return Instruction{}, err
	}
	if err := sameGPWidth("MOV", rd, rm); err != nil {
		return Instruction{}, err
	}

	p := NewBitPatcher(0x2A0003E0)
	if rd.is64 {
		p.patch(1, 31, 1)
	}
	p.patch(rd.num, 0, 5)
	p.patch(rm.num, 16, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("MOV %s, %s", xd, xm))
	i.Opcode = OpMOV
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(rm.num)
	return i, nil
}

// MovRegComment is MovReg with an inline comment carried in the assembly
// text, used by the cleanup-chain synthesis for readable listings.
func MovRegComment(xd, xm, comment string) (Instruction, error) {
	i, err := MovReg(xd, xm)
	if err != nil {
		return Instruction{}, err
	}
	if comment != "" {
		i.AssemblyText += "    // " + comment
	}
	return i, nil
}

// MvnReg encodes MVN: the ORN alias with the first source wired to the zero
// register.
func MvnReg(xd, xm string) (Instruction, error) {
	rd, err := parseGP(xd)
	if err != nil {
		return Instruction{}, err
	}
	rm, err := parseGP(xm)
	if err != nil {
		return Instruction{}, err
	}
	if err := sameGPWidth("MVN", rd, rm); err != nil {
		return Instruction{}, err
	}

	p := NewBitPatcher(0x2A2003E0)
	if rd.is64 {
		p.patch(1, 31, 1)
	}
	p.patch(rd.num, 0, 5)
	p.patch(rm.num, 16, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("MVN %s, %s", xd, xm))
	i.Opcode = OpMVN
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(rm.num)
	return i, nil
}

// CmpReg encodes CMP <Xn>, <Xm>: SUBS with the destination discarded.
func CmpReg(xn, xm string) (Instruction, error) {
	rn, err := parseGP(xn)
	if err != nil {
		return Instruction{}, err
	}
	rm, err := parseGP(xm)
	if err != nil {
		return Instruction{}, err
	}
	if err := sameGPWidth("CMP", rn, rm); err != nil {
		return Instruction{}, err
	}

	p := NewBitPatcher(0x6B00001F)
	if rn.is64 {
		p.patch(1, 31, 1)
	}
	p.patch(rn.num, 5, 5)
	p.patch(rm.num, 16, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("CMP %s, %s", xn, xm))
	i.Opcode = OpCMP
	i.SrcReg1 = int(rn.num)
	i.SrcReg2 = int(rm.num)
	return i, nil
}

// CmpImm encodes CMP <Xn>, #imm with an unsigned 12-bit immediate.
func CmpImm(xn string, immediate int64) (Instruction, error) {
	rn, err := parseGP(xn)
	if err != nil {
		return Instruction{}, err
	}
	if immediate < 0 || immediate > 4095 {
		return Instruction{}, &InvalidImmediateError{Value: immediate, Reason: "CMP immediate must be in [0, 4095]"}
	}

	p := NewBitPatcher(0x7100001F)
	if rn.is64 {
		p.patch(1, 31, 1)
	}
	p.patch(rn.num, 5, 5)
	p.patch(uint32(immediate), 10, 12)

	i := newInstruction(p.Value(), fmt.Sprintf("CMP %s, #%d", xn, immediate))
	i.Opcode = OpCMP
	i.SrcReg1 = int(rn.num)
	i.Immediate = immediate
	i.UsesImmediate = true
	return i, nil
}

// addSubImm is the shared ADD/SUB (immediate) frame.
func addSubImm(mnemonic string, base uint32, op OpType, xd, xn string, immediate int64) (Instruction, error) {
	rd, err := parseGP(xd)
	if err != nil {
		return Instruction{}, err
	}
	rn, err := parseGP(xn)
	if err != nil {
		return Instruction{}, err
	}
	if err := sameGPWidth(mnemonic, rd, rn); err != nil {
		return Instruction{}, err
	}
	if immediate < 0 || immediate > 4095 {
		return Instruction{}, &InvalidImmediateError{Value: immediate, Reason: mnemonic + " immediate must be in [0, 4095]"}
	}

	p := NewBitPatcher(base)
	if rd.is64 {
		p.patch(1, 31, 1)
	}
	p.patch(rd.num, 0, 5)
	p.patch(rn.num, 5, 5)
	p.patch(uint32(immediate), 10, 12)

	i := newInstruction(p.Value(), fmt.Sprintf("%s %s, %s, #%d", mnemonic, xd, xn, immediate))
	i.Opcode = op
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(rn.num)
	i.Immediate = immediate
	i.UsesImmediate = true
	return i, nil
}

// AddImm encodes ADD (immediate).
func AddImm(xd, xn string, immediate int64) (Instruction, error) {
	return addSubImm("ADD", 0x11000000, OpADD, xd, xn, immediate)
}

// SubImm encodes SUB (immediate).
func SubImm(xd, xn string, immediate int64) (Instruction, error) {
	return addSubImm("SUB", 0x51000000, OpSUB, xd, xn, immediate)
}

// MovFpSp encodes MOV X29, SP (the ADD-immediate alias used for frame
// setup; the ORR alias cannot address SP).
func MovFpSp() (Instruction, error) {
	i, err := addSubImm("MOV", 0x11000000, OpMOV, "x29", "sp", 0)
	if err != nil {
		return Instruction{}, err
	}
	i.AssemblyText = "MOV X29, SP"
	i.UsesImmediate = false
	return i, nil
}

// MovSpFp encodes MOV SP, X29 for frame teardown.
func MovSpFp() (Instruction, error) {
	i, err := addSubImm("MOV", 0x11000000, OpMOV, "sp", "x29", 0)
	if err != nil {
		return Instruction{}, err
	}
	i.AssemblyText = "MOV SP, X29"
	i.UsesImmediate = false
	return i, nil
}

// logicalImm is the shared AND/ORR/EOR (immediate) frame over the bitmask
// immediate format.
func logicalImm(mnemonic string, base uint32, op OpType, xd, xn string, immediate int64) (Instruction, error) {
	rd, err := parseGP(xd)
	if err != nil {
		return Instruction{}, err
	}
	rn, err := parseGP(xn)
	if err != nil {
		return Instruction{}, err
	}
	if err := sameGPWidth(mnemonic, rd, rn); err != nil {
		return Instruction{}, err
	}

	n, immr, imms, ok := EncodeBitmaskImmediate(uint64(immediate), rd.is64)
	if !ok {
		return Instruction{}, &InvalidImmediateError{Value: immediate, Reason: mnemonic + " immediate is not encodable as a bitmask pattern"}
	}

	p := NewBitPatcher(base)
	if rd.is64 {
		p.patch(1, 31, 1)
	}
	p.patch(n, 22, 1)
	p.patch(immr, 16, 6)
	p.patch(imms, 10, 6)
	p.patch(rn.num, 5, 5)
	p.patch(rd.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("%s %s, %s, #%d", mnemonic, xd, xn, immediate))
	i.Opcode = op
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(rn.num)
	i.Immediate = immediate
	i.UsesImmediate = true
	return i, nil
}

// AndImm encodes AND (bitmask immediate).
func AndImm(xd, xn string, immediate int64) (Instruction, error) {
	return logicalImm("AND", 0x12000000, OpAND, xd, xn, immediate)
}

// OrrImm encodes ORR (bitmask immediate).
func OrrImm(xd, xn string, immediate int64) (Instruction, error) {
	return logicalImm("ORR", 0x32000000, OpORR, xd, xn, immediate)
}

// EorImm encodes EOR (bitmask immediate).
func EorImm(xd, xn string, immediate int64) (Instruction, error) {
	return logicalImm("EOR", 0x52000000, OpEOR, xd, xn, immediate)
}

// CanEncodeAsImmediate reports whether the immediate fits the given ALU
// operation's encoding, so instruction selection can choose between the
// immediate and register forms.
func CanEncodeAsImmediate(op OpType, immediate int64) bool {
	switch op {
	case OpADD, OpSUB, OpCMP:
		return immediate >= 0 && immediate <= 4095
	case OpAND, OpORR, OpEOR:
		_, _, _, ok := EncodeBitmaskImmediate(uint64(immediate), true)
		return ok
	default:
		return false
	}
}

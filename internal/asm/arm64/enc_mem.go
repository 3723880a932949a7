package arm64

import "fmt"

// Load/store encoders. Every immediate is validated against the form's
// range and scaling; out-of-range offsets return an error rather than being
// masked.

// scaledUnsigned validates an unsigned scaled immediate and returns the
// imm12 field value.
func scaledUnsigned(mnemonic string, immediate int64, scale int64) (uint32, error) {
	max := 4095 * scale
	if immediate < 0 || immediate > max {
		return 0, &InvalidImmediateError{Value: immediate,
			Reason: fmt.Sprintf("%s offset must be in [0, %d]", mnemonic, max)}
	}
	if immediate%scale != 0 {
		return 0, &InvalidImmediateError{Value: immediate,
			Reason: fmt.Sprintf("%s offset must be a multiple of %d", mnemonic, scale)}
	}
	return uint32(immediate / scale), nil
}

// loadStoreImm is the shared frame for the unsigned-immediate forms.
func loadStoreImm(mnemonic string, base uint32, op OpType, rt register, xn string, immediate, scale int64, isLoad bool, comment string) (Instruction, error) {
	rn, err := parseGP(xn)
	if err != nil {
		return Instruction{}, err
	}
	if !rn.is64 {
		return Instruction{}, &InvalidRegisterError{Text: xn}
	}
	imm12, err := scaledUnsigned(mnemonic, immediate, scale)
	if err != nil {
		return Instruction{}, err
	}

	p := NewBitPatcher(base)
	p.patch(imm12, 10, 12)
	p.patch(rn.num, 5, 5)
	p.patch(rt.num, 0, 5)

	asm := fmt.Sprintf("%s %s, [%s, #%d]", mnemonic, rt.text, xn, immediate)
	if comment != "" {
		asm += "    // " + comment
	}
	i := newInstruction(p.Value(), asm)
	i.Opcode = op
	if isLoad {
		i.DestReg = int(rt.num)
	} else {
		i.SrcReg1 = int(rt.num)
	}
	i.BaseReg = int(rn.num)
	i.Immediate = immediate
	i.UsesImmediate = true
	i.IsMemOp = true
	return i, nil
}

// LdrImm encodes LDR <Xt>, [<Xn|SP>, #imm] (64-bit, unsigned offset,
// multiple of 8 in [0, 32760]). The optional variable name annotates the
// listing.
func LdrImm(xt, xn string, immediate int64, variableName string) (Instruction, error) {
	rt, err := parseGP(xt)
	if err != nil {
		return Instruction{}, err
	}
	if !rt.is64 {
		return Instruction{}, &InvalidRegisterError{Text: xt}
	}
	return loadStoreImm("LDR", 0xF9400000, OpLDR, rt, xn, immediate, 8, true, variableName)
}

// StrImm encodes STR <Xt>, [<Xn|SP>, #imm] (64-bit).
func StrImm(xt, xn string, immediate int64, variableName string) (Instruction, error) {
	rt, err := parseGP(xt)
	if err != nil {
		return Instruction{}, err
	}
	if !rt.is64 {
		return Instruction{}, &InvalidRegisterError{Text: xt}
	}
	return loadStoreImm("STR", 0xF9000000, OpSTR, rt, xn, immediate, 8, false, variableName)
}

// LdrbImm encodes LDRB <Wt>, [<Xn|SP>, #imm] with an unsigned byte offset
// in [0, 4095].
func LdrbImm(wt, xn string, immediate int64) (Instruction, error) {
	rt, err := parseGP(wt)
	if err != nil {
		return Instruction{}, err
	}
	if rt.is64 {
		return Instruction{}, &InvalidRegisterError{Text: wt}
	}
	return loadStoreImm("LDRB", 0x39400000, OpLDRB, rt, xn, immediate, 1, true, "")
}

// LdrWordImm encodes LDR <Wt>, [<Xn|SP>, #imm] (32-bit, multiple of 4 in
// [0, 16380]).
func LdrWordImm(wt, xn string, immediate int64) (Instruction, error) {
	rt, err := parseGP(wt)
	if err != nil {
		return Instruction{}, err
	}
	if rt.is64 {
		return Instruction{}, &InvalidRegisterError{Text: wt}
	}
	return loadStoreImm("LDR", 0xB9400000, OpLDR, rt, xn, immediate, 4, true, "")
}

// StrWordImm encodes STR <Wt>, [<Xn|SP>, #imm] (32-bit). The offset is
// validated, never masked.
func StrWordImm(wt, xn string, immediate int64) (Instruction, error) {
	rt, err := parseGP(wt)
	if err != nil {
		return Instruction{}, err
	}
	if rt.is64 {
		return Instruction{}, &InvalidRegisterError{Text: wt}
	}
	return loadStoreImm("STR", 0xB9000000, OpSTR, rt, xn, immediate, 4, false, "")
}

// LdrScaledReg64 encodes LDR <Xt>, [<Xn>, <Xm>, LSL #shift]. A 64-bit load
// scales by 8, so the shift must be 0 or 3.
func LdrScaledReg64(xt, xn, xm string, shift int) (Instruction, error) {
	rt, err := parseGP(xt)
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
	if !rt.is64 || !rn.is64 || !rm.is64 {
		return Instruction{}, &MismatchedWidthsError{Context: "LDR (scaled register) requires X registers"}
	}
	if shift != 0 && shift != 3 {
		return Instruction{}, &InvalidShiftError{Amount: shift, Allowed: "{0, 3} for a 64-bit load"}
	}

	// Register-offset form with option=LSL (0b011); S selects the scaled
	// shift.
	p := NewBitPatcher(0xF8606800)
	if shift == 3 {
		p.patch(1, 12, 1)
	}
	p.patch(rm.num, 16, 5)
	p.patch(rn.num, 5, 5)
	p.patch(rt.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("LDR %s, [%s, %s, LSL #%d]", xt, xn, xm, shift))
	i.Opcode = OpLDR
	i.DestReg = int(rt.num)
	i.BaseReg = int(rn.num)
	i.SrcReg2 = int(rm.num)
	i.IsMemOp = true
	return i, nil
}

// LdrFpImm encodes LDR <Dt>, [<Xn|SP>, #imm].
func LdrFpImm(dt, xn string, immediate int64) (Instruction, error) {
	rt, err := parseFP(dt)
	if err != nil {
		return Instruction{}, err
	}
	if !rt.is64 {
		return Instruction{}, &InvalidRegisterError{Text: dt}
	}
	return loadStoreImm("LDR", 0xFD400000, OpLDR, rt, xn, immediate, 8, true, "")
}

// StrFpImm encodes STR <Dt>, [<Xn|SP>, #imm] with a multiple-of-8 offset in
// [0, 32760].
func StrFpImm(dt, xn string, immediate int64) (Instruction, error) {
	rt, err := parseFP(dt)
	if err != nil {
		return Instruction{}, err
	}
	if !rt.is64 {
		return Instruction{}, &InvalidRegisterError{Text: dt}
	}
	return loadStoreImm("STR", 0xFD000000, OpSTR, rt, xn, immediate, 8, false, "")
}

// LdrVecImm encodes LDR <Qt>, [<Xn|SP>, #imm] for a 128-bit vector register
// (multiple of 16 in [0, 65520]).
func LdrVecImm(qt, xn string, immediate int64, variableName string) (Instruction, error) {
	rt, err := parseVec(qt)
	if err != nil {
		return Instruction{}, err
	}
	return loadStoreImm("LDR", 0x3DC00000, OpLDR, rt, xn, immediate, 16, true, variableName)
}

// StrVecImm encodes STR <Qt>, [<Xn|SP>, #imm].
func StrVecImm(qt, xn string, immediate int64, variableName string) (Instruction, error) {
	rt, err := parseVec(qt)
	if err != nil {
		return Instruction{}, err
	}
	return loadStoreImm("STR", 0x3D800000, OpSTR, rt, xn, immediate, 16, false, variableName)
}

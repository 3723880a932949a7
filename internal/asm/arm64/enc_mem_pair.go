package arm64

import "fmt"

// Load/store-pair encoders, GP and FP, in signed-offset, pre-index and
// post-index addressing. All use a 7-bit signed immediate scaled by 8:
// offsets must be multiples of 8 in [-512, 504].

type pairAddrMode int

const (
	pairSignedOffset pairAddrMode = iota
	pairPreIndex
	pairPostIndex
)

func pairImm7(mnemonic string, immediate int64) (uint32, error) {
	if immediate%8 != 0 || immediate < -512 || immediate > 504 {
		return 0, &InvalidImmediateError{Value: immediate,
			Reason: mnemonic + " offset must be a multiple of 8 in [-512, 504]"}
	}
	return uint32(immediate/8) & 0x7F, nil
}

func loadStorePair(mnemonic string, base uint32, op OpType, rt1, rt2 register, xn string, immediate int64, mode pairAddrMode, isLoad bool) (Instruction, error) {
	rn, err := parseGP(xn)
	if err != nil {
		return Instruction{}, err
	}
	if !rn.is64 {
		return Instruction{}, &InvalidRegisterError{Text: xn}
	}
	imm7, err := pairImm7(mnemonic, immediate)
	if err != nil {
		return Instruction{}, err
	}

	p := NewBitPatcher(base)
	p.patch(imm7, 15, 7)
	p.patch(rt2.num, 10, 5)
	p.patch(rn.num, 5, 5)
	p.patch(rt1.num, 0, 5)

	var asm string
	switch mode {
	case pairSignedOffset:
		asm = fmt.Sprintf("%s %s, %s, [%s, #%d]", mnemonic, rt1.text, rt2.text, xn, immediate)
	case pairPreIndex:
		asm = fmt.Sprintf("%s %s, %s, [%s, #%d]!", mnemonic, rt1.text, rt2.text, xn, immediate)
	case pairPostIndex:
		asm = fmt.Sprintf("%s %s, %s, [%s], #%d", mnemonic, rt1.text, rt2.text, xn, immediate)
	}

	i := newInstruction(p.Value(), asm)
	i.Opcode = op
	if isLoad {
		i.DestReg = int(rt1.num)
		i.SrcReg1 = int(rt2.num)
	} else {
		i.SrcReg1 = int(rt1.num)
		i.SrcReg2 = int(rt2.num)
	}
	i.BaseReg = int(rn.num)
	i.Immediate = immediate
	i.UsesImmediate = true
	i.IsMemOp = true
	return i, nil
}

func parseGPPair(mnemonic, t1, t2 string) (register, register, error) {
	r1, err := parseGP(t1)
	if err != nil {
		return register{}, register{}, err
	}
	r2, err := parseGP(t2)
	if err != nil {
		return register{}, register{}, err
	}
	if !r1.is64 || !r2.is64 {
		return register{}, register{}, &MismatchedWidthsError{Context: mnemonic + " requires 64-bit registers"}
	}
	return r1, r2, nil
}

func parseFPPair(mnemonic, t1, t2 string) (register, register, error) {
	r1, err := parseFP(t1)
	if err != nil {
		return register{}, register{}, err
	}
	r2, err := parseFP(t2)
	if err != nil {
		return register{}, register{}, err
	}
	if !r1.is64 || !r2.is64 {
		return register{}, register{}, &MismatchedWidthsError{Context: mnemonic + " requires D registers"}
	}
	return r1, r2, nil
}

// StpImm encodes STP <Xt1>, <Xt2>, [<Xn|SP>, #imm].
func StpImm(xt1, xt2, xn string, immediate int64) (Instruction, error) {
	r1, r2, err := parseGPPair("STP", xt1, xt2)
	if err != nil {
		return Instruction{}, err
	}
	return loadStorePair("STP", 0xA9000000, OpSTP, r1, r2, xn, immediate, pairSignedOffset, false)
}

// LdpImm encodes LDP <Xt1>, <Xt2>, [<Xn|SP>, #imm].
func LdpImm(xt1, xt2, xn string, immediate int64) (Instruction, error) {
	r1, r2, err := parseGPPair("LDP", xt1, xt2)
	if err != nil {
		return Instruction{}, err
	}
	return loadStorePair("LDP", 0xA9400000, OpLDP, r1, r2, xn, immediate, pairSignedOffset, true)
}

// StpPreImm encodes STP <Xt1>, <Xt2>, [<Xn|SP>, #imm]!.
func StpPreImm(xt1, xt2, xn string, immediate int64) (Instruction, error) {
	r1, r2, err := parseGPPair("STP", xt1, xt2)
	if err != nil {
		return Instruction{}, err
	}
	return loadStorePair("STP", 0xA9800000, OpSTP, r1, r2, xn, immediate, pairPreIndex, false)
}

// LdpPreImm encodes LDP <Xt1>, <Xt2>, [<Xn|SP>, #imm]!.
func LdpPreImm(xt1, xt2, xn string, immediate int64) (Instruction, error) {
	r1, r2, err := parseGPPair("LDP", xt1, xt2)
	if err != nil {
		return Instruction{}, err
	}
	return loadStorePair("LDP", 0xA9C00000, OpLDP, r1, r2, xn, immediate, pairPreIndex, true)
}

// StpPostImm encodes STP <Xt1>, <Xt2>, [<Xn|SP>], #imm.
func StpPostImm(xt1, xt2, xn string, immediate int64) (Instruction, error) {
	r1, r2, err := parseGPPair("STP", xt1, xt2)
	if err != nil {
		return Instruction{}, err
	}
	return loadStorePair("STP", 0xA8800000, OpSTP, r1, r2, xn, immediate, pairPostIndex, false)
}

// LdpPostImm encodes LDP <Xt1>, <Xt2>, [<Xn|SP>], #imm.
func LdpPostImm(xt1, xt2, xn string, immediate int64) (Instruction, error) {
	r1, r2, err := parseGPPair("LDP", xt1, xt2)
	if err != nil {
		return Instruction{}, err
	}
	return loadStorePair("LDP", 0xA8C00000, OpLDP, r1, r2, xn, immediate, pairPostIndex, true)
}

// StpFpImm encodes STP <Dt1>, <Dt2>, [<Xn|SP>, #imm].
func StpFpImm(dt1, dt2, xn string, immediate int64) (Instruction, error) {
	r1, r2, err := parseFPPair("STP", dt1, dt2)
	if err != nil {
		return Instruction{}, err
	}
	return loadStorePair("STP", 0x6D000000, OpSTP, r1, r2, xn, immediate, pairSignedOffset, false)
}

// LdpFpImm encodes LDP <Dt1>, <Dt2>, [<Xn|SP>, #imm].
func LdpFpImm(dt1, dt2, xn string, immediate int64) (Instruction, error) {
	r1, r2, err := parseFPPair("LDP", dt1, dt2)
	if err != nil {
		return Instruction{}, err
	}
	return loadStorePair("LDP", 0x6D400000, OpLDP, r1, r2, xn, immediate, pairSignedOffset, true)
}

// StpFpPreImm encodes STP <Dt1>, <Dt2>, [<Xn|SP>, #imm]!.
func StpFpPreImm(dt1, dt2, xn string, immediate int64) (Instruction, error) {
	r1, r2, err := parseFPPair("STP", dt1, dt2)
	if err != nil {
		return Instruction{}, err
	}
	return loadStorePair("STP", 0x6D800000, OpSTP, r1, r2, xn, immediate, pairPreIndex, false)
}

// LdpFpPostImm encodes LDP <Dt1>, <Dt2>, [<Xn|SP>], #imm.
func LdpFpPostImm(dt1, dt2, xn string, immediate int64) (Instruction, error) {
	r1, r2, err := parseFPPair("LDP", dt1, dt2)
	if err != nil {
		return Instruction{}, err
	}
	return loadStorePair("LDP", 0x6CC00000, OpLDP, r1, r2, xn, immediate, pairPostIndex, true)
}

package arm64

import "fmt"

// Scalar floating-point encoders. The type field (bits 23-22) selects S or
// D; operands must agree on precision.

// fpThreeSame is the shared FADD/FSUB/FMUL/FDIV frame. base is the
// single-precision opcode; the D form patches the type field.
func fpThreeSame(mnemonic string, base uint32, op OpType, dd, dn, dm string) (Instruction, error) {
	rd, err := parseFP(dd)
	if err != nil {
		return Instruction{}, err
	}
	rn, err := parseFP(dn)
	if err != nil {
		return Instruction{}, err
	}
	rm, err := parseFP(dm)
	if err != nil {
		return Instruction{}, err
	}
	if rd.is64 != rn.is64 || rn.is64 != rm.is64 {
		return Instruction{}, &MismatchedWidthsError{Context: mnemonic + " operands must be all D or all S"}
	}

	p := NewBitPatcher(base)
	if rd.is64 {
		p.patch(1, 22, 1)
	}
	p.patch(rm.num, 16, 5)
	p.patch(rn.num, 5, 5)
	p.patch(rd.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("%s %s, %s, %s", mnemonic, dd, dn, dm))
	i.Opcode = op
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(rn.num)
	i.SrcReg2 = int(rm.num)
	return i, nil
}

// FaddReg encodes FADD <Dd|Sd>, <Dn|Sn>, <Dm|Sm>.
func FaddReg(dd, dn, dm string) (Instruction, error) {
	return fpThreeSame("FADD", 0x1E202800, OpFADD, dd, dn, dm)
}

// FsubReg encodes FSUB.
func FsubReg(dd, dn, dm string) (Instruction, error) {
	return fpThreeSame("FSUB", 0x1E203800, OpFSUB, dd, dn, dm)
}

// FmulReg encodes FMUL.
func FmulReg(dd, dn, dm string) (Instruction, error) {
	return fpThreeSame("FMUL", 0x1E200800, OpFMUL, dd, dn, dm)
}

// FdivReg encodes FDIV.
func FdivReg(dd, dn, dm string) (Instruction, error) {
	return fpThreeSame("FDIV", 0x1E201800, OpFDIV, dd, dn, dm)
}

// FcmpReg encodes FCMP <Dn|Sn>, <Dm|Sm>.
func FcmpReg(dn, dm string) (Instruction, error) {
	rn, err := parseFP(dn)
	if err != nil {
		return Instruction{}, err
	}
	rm, err := parseFP(dm)
	if err != nil {
		return Instruction{}, err
	}
	if rn.is64 != rm.is64 {
		return Instruction{}, &MismatchedWidthsError{Context: "FCMP operands must be all D or all S"}
	}

	p := NewBitPatcher(0x1E202000)
	if rn.is64 {
		p.patch(1, 22, 1)
	}
	p.patch(rm.num, 16, 5)
	p.patch(rn.num, 5, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("FCMP %s, %s", dn, dm))
	i.Opcode = OpFCMP
	i.SrcReg1 = int(rn.num)
	i.SrcReg2 = int(rm.num)
	return i, nil
}

// fpTwoReg is the shared unary frame (FSQRT/FNEG/FMOV register).
func fpTwoReg(mnemonic string, base uint32, op OpType, dd, dn string) (Instruction, error) {
	rd, err := parseFP(dd)
	if err != nil {
		return Instruction{}, err
	}
	rn, err := parseFP(dn)
	if err != nil {
		return Instruction{}, err
	}
	if rd.is64 != rn.is64 {
		return Instruction{}, &MismatchedWidthsError{Context: mnemonic + " operands must be all D or all S"}
	}

	p := NewBitPatcher(base)
	if rd.is64 {
		p.patch(1, 22, 1)
	}
	p.patch(rn.num, 5, 5)
	p.patch(rd.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("%s %s, %s", mnemonic, dd, dn))
	i.Opcode = op
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(rn.num)
	return i, nil
}

// FsqrtReg encodes FSQRT.
func FsqrtReg(dd, dn string) (Instruction, error) {
	return fpTwoReg("FSQRT", 0x1E21C000, OpFSQRT, dd, dn)
}

// FnegReg encodes FNEG.
func FnegReg(dd, dn string) (Instruction, error) {
	return fpTwoReg("FNEG", 0x1E214000, OpFNEG, dd, dn)
}

// FmovReg encodes the register-to-register FMOV (D->D or S->S).
func FmovReg(dd, dn string) (Instruction, error) {
	return fpTwoReg("FMOV", 0x1E204000, OpFMOV, dd, dn)
}

// fpIntTransfer is the shared FMOV/convert frame between the banks, with a
// fixed full opcode.
func fpIntTransfer(mnemonic string, opcode uint32, op OpType, dst, src string) (Instruction, error) {
	rd, err := parseReg(dst)
	if err != nil {
		return Instruction{}, err
	}
	rs, err := parseReg(src)
	if err != nil {
		return Instruction{}, err
	}

	p := NewBitPatcher(opcode)
	p.patch(rs.num, 5, 5)
	p.patch(rd.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("%s %s, %s", mnemonic, dst, src))
	i.Opcode = op
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(rs.num)
	return i, nil
}

// FmovDToX encodes FMOV <Xd>, <Dn>.
func FmovDToX(xd, dn string) (Instruction, error) {
	return fpIntTransfer("FMOV", 0x9E660000, OpFMOV, xd, dn)
}

// FmovXToD encodes FMOV <Dd>, <Xn>.
func FmovXToD(dd, xn string) (Instruction, error) {
	return fpIntTransfer("FMOV", 0x9E670000, OpFMOV, dd, xn)
}

// FmovSToW encodes FMOV <Wd>, <Sn>.
func FmovSToW(wd, sn string) (Instruction, error) {
	return fpIntTransfer("FMOV", 0x1E260000, OpFMOV, wd, sn)
}

// FmovWToS encodes FMOV <Sd>, <Wn>.
func FmovWToS(sd, wn string) (Instruction, error) {
	return fpIntTransfer("FMOV", 0x1E270000, OpFMOV, sd, wn)
}

// ScvtfReg encodes SCVTF <Dd>, <Xn>: signed 64-bit integer to double.
func ScvtfReg(dd, xn string) (Instruction, error) {
	return fpIntTransfer("SCVTF", 0x9E620000, OpSCVTF, dd, xn)
}

// FcvtzsReg encodes FCVTZS <Xd>, <Dn>: double to signed 64-bit integer,
// rounding toward zero.
func FcvtzsReg(xd, dn string) (Instruction, error) {
	return fpIntTransfer("FCVTZS", 0x9E780000, OpFCVTZS, xd, dn)
}

// FcvtmsReg encodes FCVTMS <Xd>, <Dn>: double to signed 64-bit integer,
// rounding toward minus infinity.
func FcvtmsReg(xd, dn string) (Instruction, error) {
	return fpIntTransfer("FCVTMS", 0x9E700000, OpFCVTMS, xd, dn)
}

// FcvtDToS encodes FCVT <Sd>, <Dn>: double to single precision.
func FcvtDToS(sd, dn string) (Instruction, error) {
	return fpIntTransfer("FCVT", 0x1E624000, OpFCVT, sd, dn)
}

package arm64

import "fmt"

// NEON encoders for the three-same, permute, load/store-multiple and
// duplicate forms the compiler emits. Base opcodes are the Q=0 smallest
// arrangement; the arrangement patches the Q and size/sz fields.

func parseVecOperands(mnemonic string, vd, vn, vm string) (rd, rn, rm register, err error) {
	rd, err = parseVec(vd)
	if err != nil {
		return
	}
	rn, err = parseVec(vn)
	if err != nil {
		return
	}
	rm, err = parseVec(vm)
	if err != nil {
		return
	}
	return
}

// intVecThreeSame is the integer three-same frame: size at bits 23-22, Q at
// bit 30.
func intVecThreeSame(mnemonic string, base uint32, vd, vn, vm, arrangement string, allow64 bool) (Instruction, error) {
	rd, rn, rm, err := parseVecOperands(mnemonic, vd, vn, vm)
	if err != nil {
		return Instruction{}, err
	}
	arr, err := parseArrangement(arrangement)
	if err != nil {
		return Instruction{}, err
	}
	if arr.elemBits == 64 && !allow64 {
		return Instruction{}, &InvalidRegisterError{Text: mnemonic + " does not support the 2D arrangement"}
	}

	p := NewBitPatcher(base)
	if arr.q {
		p.patch(1, 30, 1)
	}
	p.patch(arr.sizeBits(), 22, 2)
	p.patch(rm.num, 16, 5)
	p.patch(rn.num, 5, 5)
	p.patch(rd.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("%s %s.%s, %s.%s, %s.%s", mnemonic, vd, arr.text, vn, arr.text, vm, arr.text))
	i.Opcode = OpVecALU
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(rn.num)
	i.SrcReg2 = int(rm.num)
	return i, nil
}

// AddVectorReg encodes ADD <Vd>.<T>, <Vn>.<T>, <Vm>.<T>.
func AddVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return intVecThreeSame("ADD", 0x0E208400, vd, vn, vm, arrangement, true)
}

// SubVectorReg encodes SUB (vector).
func SubVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return intVecThreeSame("SUB", 0x2E208400, vd, vn, vm, arrangement, true)
}

// MulVectorReg encodes MUL (vector); there is no 2D form.
func MulVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return intVecThreeSame("MUL", 0x0E209C00, vd, vn, vm, arrangement, false)
}

// AddpVectorReg encodes ADDP (vector pairwise add).
func AddpVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return intVecThreeSame("ADDP", 0x0E20BC00, vd, vn, vm, arrangement, true)
}

// SmaxVectorReg encodes SMAX; no 2D form.
func SmaxVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return intVecThreeSame("SMAX", 0x0E206400, vd, vn, vm, arrangement, false)
}

// SminVectorReg encodes SMIN; no 2D form.
func SminVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return intVecThreeSame("SMIN", 0x0E206C00, vd, vn, vm, arrangement, false)
}

// SminpVectorReg encodes SMINP (pairwise); no 2D form.
func SminpVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return intVecThreeSame("SMINP", 0x0E20AC00, vd, vn, vm, arrangement, false)
}

// Uzp2VectorReg encodes UZP2 (unzip odd elements).
func Uzp2VectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	i, err := intVecThreeSame("UZP2", 0x0E005800, vd, vn, vm, arrangement, true)
	if err != nil {
		return Instruction{}, err
	}
	i.Opcode = OpUZP2
	return i, nil
}

// fpVecThreeSame is the FP three-same frame: 32/64-bit forms use the sz bit
// (22), half-precision uses a separate base opcode. Arrangements: 2S, 4S,
// 2D, and 4H for the half-precision packs.
func fpVecThreeSame(mnemonic string, base uint32, base16 uint32, vd, vn, vm, arrangement string) (Instruction, error) {
	rd, rn, rm, err := parseVecOperands(mnemonic, vd, vn, vm)
	if err != nil {
		return Instruction{}, err
	}
	arr, err := parseArrangement(arrangement)
	if err != nil {
		return Instruction{}, err
	}

	var p *BitPatcher
	switch arr.elemBits {
	case 16:
		p = NewBitPatcher(base16)
		if arr.q {
			p.patch(1, 30, 1)
		}
	case 32, 64:
		p = NewBitPatcher(base)
		if arr.q {
			p.patch(1, 30, 1)
		}
		if arr.elemBits == 64 {
			if !arr.q {
				return Instruction{}, &InvalidRegisterError{Text: arrangement}
			}
			p.patch(1, 22, 1)
		}
	default:
		return Instruction{}, &InvalidRegisterError{Text: arrangement}
	}

	p.patch(rm.num, 16, 5)
	p.patch(rn.num, 5, 5)
	p.patch(rd.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("%s %s.%s, %s.%s, %s.%s", mnemonic, vd, arr.text, vn, arr.text, vm, arr.text))
	i.Opcode = OpVecALU
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(rn.num)
	i.SrcReg2 = int(rm.num)
	return i, nil
}

// FaddVectorReg encodes FADD (vector).
func FaddVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return fpVecThreeSame("FADD", 0x0E20D400, 0x0E401400, vd, vn, vm, arrangement)
}

// FsubVectorReg encodes FSUB (vector).
func FsubVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return fpVecThreeSame("FSUB", 0x0EA0D400, 0x0EC01400, vd, vn, vm, arrangement)
}

// FmulVectorReg encodes FMUL (vector).
func FmulVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return fpVecThreeSame("FMUL", 0x2E20DC00, 0x2E401C00, vd, vn, vm, arrangement)
}

// FdivVectorReg encodes FDIV (vector).
func FdivVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return fpVecThreeSame("FDIV", 0x2E20FC00, 0x2E403C00, vd, vn, vm, arrangement)
}

// FminVectorReg encodes FMIN (vector).
func FminVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return fpVecThreeSame("FMIN", 0x0EA0F400, 0x0EC03400, vd, vn, vm, arrangement)
}

// FmaxVectorReg encodes FMAX (vector).
func FmaxVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return fpVecThreeSame("FMAX", 0x0E20F400, 0x0E403400, vd, vn, vm, arrangement)
}

// FaddpVectorReg encodes FADDP (vector pairwise add).
func FaddpVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return fpVecThreeSame("FADDP", 0x2E20D400, 0x2E401400, vd, vn, vm, arrangement)
}

// FminpVectorReg encodes FMINP (vector pairwise min).
func FminpVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return fpVecThreeSame("FMINP", 0x2EA0F400, 0x2EC03400, vd, vn, vm, arrangement)
}

// FmaxpVectorReg encodes FMAXP (vector pairwise max).
func FmaxpVectorReg(vd, vn, vm, arrangement string) (Instruction, error) {
	return fpVecThreeSame("FMAXP", 0x2E20F400, 0x2E403400, vd, vn, vm, arrangement)
}

var ld1SizeBits = map[int]uint32{8: 0, 16: 1, 32: 2, 64: 3}

// ld1St1 is the shared LD1/ST1 single-register multiple-structure frame.
func ld1St1(mnemonic string, base uint32, op OpType, vt, xn, arrangement string, isLoad bool) (Instruction, error) {
	rt, err := parseVec(vt)
	if err != nil {
		return Instruction{}, err
	}
	rn, err := parseGP(xn)
	if err != nil {
		return Instruction{}, err
	}
	if !rn.is64 {
		return Instruction{}, &InvalidRegisterError{Text: xn}
	}
	arr, err := parseArrangement(arrangement)
	if err != nil {
		return Instruction{}, err
	}

	p := NewBitPatcher(base)
	if arr.q {
		p.patch(1, 30, 1)
	}
	p.patch(ld1SizeBits[arr.elemBits], 10, 2)
	p.patch(rn.num, 5, 5)
	p.patch(rt.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("%s {%s.%s}, [%s]", mnemonic, vt, arr.text, xn))
	i.Opcode = op
	if isLoad {
		i.DestReg = int(rt.num)
	} else {
		i.SrcReg1 = int(rt.num)
	}
	i.BaseReg = int(rn.num)
	i.IsMemOp = true
	return i, nil
}

// Ld1VectorReg encodes LD1 {<Vt>.<T>}, [<Xn|SP>].
func Ld1VectorReg(vt, xn, arrangement string) (Instruction, error) {
	return ld1St1("LD1", 0x0C407000, OpLD1, vt, xn, arrangement, true)
}

// St1VectorReg encodes ST1 {<Vt>.<T>}, [<Xn|SP>].
func St1VectorReg(vt, xn, arrangement string) (Instruction, error) {
	return ld1St1("ST1", 0x0C007000, OpST1, vt, xn, arrangement, false)
}

// DupScalar encodes DUP <Vd>.<T>, <Rn>: broadcast a general register into
// every lane.
func DupScalar(vd, rn, arrangement string) (Instruction, error) {
	rd, err := parseVec(vd)
	if err != nil {
		return Instruction{}, err
	}
	src, err := parseGP(rn)
	if err != nil {
		return Instruction{}, err
	}
	arr, err := parseArrangement(arrangement)
	if err != nil {
		return Instruction{}, err
	}
	if arr.elemBits == 64 && !src.is64 {
		return Instruction{}, &MismatchedWidthsError{Context: "DUP to a 2D arrangement requires an X source"}
	}
	if arr.elemBits < 64 && src.is64 {
		return Instruction{}, &MismatchedWidthsError{Context: "DUP to a sub-64-bit arrangement requires a W source"}
	}

	var imm5 uint32
	switch arr.elemBits {
	case 8:
		imm5 = 1
	case 16:
		imm5 = 2
	case 32:
		imm5 = 4
	default:
		imm5 = 8
	}

	p := NewBitPatcher(0x0E000C00)
	if arr.q {
		p.patch(1, 30, 1)
	}
	p.patch(imm5, 16, 5)
	p.patch(src.num, 5, 5)
	p.patch(rd.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("DUP %s.%s, %s", vd, arr.text, rn))
	i.Opcode = OpDUP
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(src.num)
	return i, nil
}

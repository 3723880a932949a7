package arm64

import "fmt"

// Conditional-select encoders. CSET and CSETM are aliases of CSINC and
// CSINV with both sources wired to the zero register and the condition
// inverted.

// Csinv encodes CSINV <Xd>, <Xn>, <Xm>, <cond>.
func Csinv(xd, xn, xm, cond string) (Instruction, error) {
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
	if err := sameGPWidth("CSINV", rd, rn, rm); err != nil {
		return Instruction{}, err
	}
	c, err := ParseCond(cond)
	if err != nil {
		return Instruction{}, err
	}

	p := NewBitPatcher(0x5A800000)
	if rd.is64 {
		p.patch(1, 31, 1)
	}
	p.patch(rm.num, 16, 5)
	p.patch(uint32(c), 12, 4)
	p.patch(rn.num, 5, 5)
	p.patch(rd.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("CSINV %s, %s, %s, %s", xd, xn, xm, c))
	i.Opcode = OpCSINV
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(rn.num)
	i.SrcReg2 = int(rm.num)
	i.Cond = c
	return i, nil
}

// csetLike is the shared CSET/CSETM frame: sources forced to the zero register,
// condition inverted per the alias definition.
func csetLike(mnemonic string, base uint32, op OpType, xd, cond string) (Instruction, error) {
	rd, err := parseGP(xd)
	if err != nil {
		return Instruction{}, err
	}
	c, err := ParseCond(cond)
	if err != nil {
		return Instruction{}, err
	}

	p := NewBitPatcher(base)
	if rd.is64 {
		p.patch(1, 31, 1)
	}
	p.patch(uint32(c.Invert()), 12, 4)
	p.patch(rd.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("%s %s, %s", mnemonic, xd, c))
	i.Opcode = op
	i.DestReg = int(rd.num)
	i.SrcReg1 = 31
	i.SrcReg2 = 31
	i.Cond = c
	return i, nil
}

// Cset encodes CSET <Xd>, <cond>: CSINC Xd, XZR, XZR, invert(cond).
func Cset(xd, cond string) (Instruction, error) {
	// CSINC with Rn=Rm=31 baked into the base.
	return csetLike("CSET", 0x1A9F07E0, OpCSET, xd, cond)
}

// Csetm encodes CSETM <Xd>, <cond>: CSINV Xd, XZR, XZR, invert(cond).
func Csetm(xd, cond string) (Instruction, error) {
	return csetLike("CSETM", 0x5A9F03E0, OpCSETM, xd, cond)
}

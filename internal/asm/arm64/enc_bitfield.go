package arm64

import "fmt"

// Bitfield-move encoders. UBFX/SBFX/BFI/BFXIL and the immediate shifts are
// all aliases of UBFM/SBFM/BFM with computed immr/imms fields.

const (
	sbfmBase uint32 = 0x13000000
	bfmBase  uint32 = 0x33000000
	ubfmBase uint32 = 0x53000000
)

// bitfieldMove validates the shared lsb/width rules and builds the word.
func bitfieldMove(mnemonic string, base uint32, op OpType, xd, xn string, immr, imms uint32, lsb, width int) (Instruction, error) {
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

	p := NewBitPatcher(base)
	if rd.is64 {
		p.patch(1, 31, 1)
		p.patch(1, 22, 1) // N matches sf
	}
	p.patch(immr, 16, 6)
	p.patch(imms, 10, 6)
	p.patch(rn.num, 5, 5)
	p.patch(rd.num, 0, 5)

	i := newInstruction(p.Value(), fmt.Sprintf("%s %s, %s, #%d, #%d", mnemonic, xd, xn, lsb, width))
	i.Opcode = op
	i.DestReg = int(rd.num)
	i.SrcReg1 = int(rn.num)
	i.Immediate = int64(lsb)
	i.UsesImmediate = true
	return i, nil
}

func checkBitfield(mnemonic, xd string, lsb, width int) (datasize int, err error) {
	datasize = 32
	if len(xd) > 0 && (xd[0] == 'x' || xd[0] == 'X') {
		datasize = 64
	}
	if lsb < 0 || lsb >= datasize {
		return 0, &InvalidImmediateError{Value: int64(lsb), Reason: fmt.Sprintf("%s lsb out of range [0, %d)", mnemonic, datasize)}
	}
	if width < 1 || width > datasize || lsb+width > datasize {
		return 0, &InvalidImmediateError{Value: int64(width), Reason: fmt.Sprintf("%s width out of range: lsb+width must not exceed %d", mnemonic, datasize)}
	}
	return datasize, nil
}

// Ubfx encodes UBFX: an unsigned field extract, UBFM with immr=lsb and
// imms=lsb+width-1.
func Ubfx(xd, xn string, lsb, width int) (Instruction, error) {
	if _, err := checkBitfield("UBFX", xd, lsb, width); err != nil {
		return Instruction{}, err
	}
	return bitfieldMove("UBFX", ubfmBase, OpUBFX, xd, xn, uint32(lsb), uint32(lsb+width-1), lsb, width)
}

// Sbfx encodes SBFX: the sign-extending field extract.
func Sbfx(xd, xn string, lsb, width int) (Instruction, error) {
	if _, err := checkBitfield("SBFX", xd, lsb, width); err != nil {
		return Instruction{}, err
	}
	return bitfieldMove("SBFX", sbfmBase, OpSBFX, xd, xn, uint32(lsb), uint32(lsb+width-1), lsb, width)
}

// Bfi encodes BFI: a field insert leaving other destination bits intact,
// BFM with immr=(datasize-lsb) mod datasize and imms=width-1.
func Bfi(xd, xn string, lsb, width int) (Instruction, error) {
	datasize, err := checkBitfield("BFI", xd, lsb, width)
	if err != nil {
		return Instruction{}, err
	}
	immr := uint32((datasize - lsb) % datasize)
	return bitfieldMove("BFI", bfmBase, OpBFI, xd, xn, immr, uint32(width-1), lsb, width)
}

// Bfxil encodes BFXIL: extract a field from the source and insert it at bit
// zero of the destination, BFM with immr=lsb and imms=lsb+width-1.
func Bfxil(xd, xn string, lsb, width int) (Instruction, error) {
	if _, err := checkBitfield("BFXIL", xd, lsb, width); err != nil {
		return Instruction{}, err
	}
	return bitfieldMove("BFXIL", bfmBase, OpBFXIL, xd, xn, uint32(lsb), uint32(lsb+width-1), lsb, width)
}

// LslImm encodes LSL (immediate): UBFM with immr=(-shift) mod datasize and
// imms=datasize-1-shift.
func LslImm(xd, xn string, shift int) (Instruction, error) {
	rd, err := parseGP(xd)
	if err != nil {
		return Instruction{}, err
	}
	datasize := 32
	if rd.is64 {
		datasize = 64
	}
	if shift < 0 || shift >= datasize {
		return Instruction{}, &InvalidShiftError{Amount: shift, Allowed: fmt.Sprintf("[0, %d)", datasize)}
	}
	immr := uint32((datasize - shift) % datasize)
	imms := uint32(datasize - 1 - shift)
	i, err := bitfieldMove("LSL", ubfmBase, OpLSL, xd, xn, immr, imms, shift, 0)
	if err != nil {
		return Instruction{}, err
	}
	i.AssemblyText = fmt.Sprintf("LSL %s, %s, #%d", xd, xn, shift)
	i.Immediate = int64(shift)
	return i, nil
}

// LsrImm encodes LSR (immediate): UBFM with immr=shift and imms=datasize-1.
func LsrImm(xd, xn string, shift int) (Instruction, error) {
	return shiftRightImm("LSR", ubfmBase, OpLSR, xd, xn, shift)
}

// AsrImm encodes ASR (immediate): SBFM with immr=shift and imms=datasize-1.
func AsrImm(xd, xn string, shift int) (Instruction, error) {
	return shiftRightImm("ASR", sbfmBase, OpASR, xd, xn, shift)
}

func shiftRightImm(mnemonic string, base uint32, op OpType, xd, xn string, shift int) (Instruction, error) {
	rd, err := parseGP(xd)
	if err != nil {
		return Instruction{}, err
	}
	datasize := 32
	if rd.is64 {
		datasize = 64
	}
	if shift < 0 || shift >= datasize {
		return Instruction{}, &InvalidShiftError{Amount: shift, Allowed: fmt.Sprintf("[0, %d)", datasize)}
	}
	i, err := bitfieldMove(mnemonic, base, op, xd, xn, uint32(shift), uint32(datasize-1), shift, 0)
	if err != nil {
		return Instruction{}, err
	}
	i.AssemblyText = fmt.Sprintf("%s %s, %s, #%d", mnemonic, xd, xn, shift)
	i.Immediate = int64(shift)
	return i, nil
}

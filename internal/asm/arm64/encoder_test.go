package arm64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Reference encodings below were produced by assembling the same mnemonics
// with clang -c and disassembling the object.

func TestDataProcessingEncodings(t *testing.T) {
	for _, tc := range []struct {
		name string
		got  func() (Instruction, error)
		want uint32
	}{
		{"add x0, x1, x2", func() (Instruction, error) { return AddReg("x0", "x1", "x2") }, 0x8B020020},
		{"add w0, w1, w2", func() (Instruction, error) { return AddReg("w0", "w1", "w2") }, 0x0B020020},
		{"sub x0, x1, x2", func() (Instruction, error) { return SubReg("x0", "x1", "x2") }, 0xCB020020},
		{"and x3, x4, x5", func() (Instruction, error) { return AndReg("x3", "x4", "x5") }, 0x8A050083},
		{"orr x3, x4, x5", func() (Instruction, error) { return OrrReg("x3", "x4", "x5") }, 0xAA050083},
		{"eor x3, x4, x5", func() (Instruction, error) { return EorReg("x3", "x4", "x5") }, 0xCA050083},
		{"bic x3, x4, x5", func() (Instruction, error) { return BicReg("x3", "x4", "x5") }, 0x8A250083},
		{"mul x0, x1, x2", func() (Instruction, error) { return MulReg("x0", "x1", "x2") }, 0x9B027C20},
		{"sdiv x0, x1, x2", func() (Instruction, error) { return SdivReg("x0", "x1", "x2") }, 0x9AC20C20},
		{"mov x0, x1", func() (Instruction, error) { return MovReg("x0", "x1") }, 0xAA0103E0},
		{"mvn x0, x1", func() (Instruction, error) { return MvnReg("x0", "x1") }, 0xAA2103E0},
		{"cmp x1, x2", func() (Instruction, error) { return CmpReg("x1", "x2") }, 0xEB02003F},
		{"cmp x1, #5", func() (Instruction, error) { return CmpImm("x1", 5) }, 0xF100143F},
		{"add x0, x1, #42", func() (Instruction, error) { return AddImm("x0", "x1", 42) }, 0x9100A820},
		{"sub sp, sp, #16", func() (Instruction, error) { return SubImm("sp", "sp", 16) }, 0xD10043FF},
		{"lsl x0, x1, x2 (lslv)", func() (Instruction, error) { return LslReg("x0", "x1", "x2") }, 0x9AC22020},
		{"lsr x0, x1, x2 (lsrv)", func() (Instruction, error) { return LsrReg("x0", "x1", "x2") }, 0x9AC22420},
		{"asr x0, x1, x2 (asrv)", func() (Instruction, error) { return AsrReg("x0", "x1", "x2") }, 0x9AC22820},
		{"lsl x0, x1, #4", func() (Instruction, error) { return LslImm("x0", "x1", 4) }, 0xD37CEC20},
		{"lsr x0, x1, #4", func() (Instruction, error) { return LsrImm("x0", "x1", 4) }, 0xD344FC20},
		{"asr x0, x1, #4", func() (Instruction, error) { return AsrImm("x0", "x1", 4) }, 0x9344FC20},
		{"and x0, x1, #0xff", func() (Instruction, error) { return AndImm("x0", "x1", 0xFF) }, 0x92401C20},
		{"orr x0, x1, #0xff", func() (Instruction, error) { return OrrImm("x0", "x1", 0xFF) }, 0xB2401C20},
		{"eor x0, x1, #0xff", func() (Instruction, error) { return EorImm("x0", "x1", 0xFF) }, 0xD2401C20},
		{"ubfx x0, x1, #8, #16", func() (Instruction, error) { return Ubfx("x0", "x1", 8, 16) }, 0xD3485C20},
		{"sbfx x0, x1, #8, #16", func() (Instruction, error) { return Sbfx("x0", "x1", 8, 16) }, 0x93485C20},
		{"bfi x0, x1, #8, #16", func() (Instruction, error) { return Bfi("x0", "x1", 8, 16) }, 0xB3783C20},
		{"bfxil x0, x1, #8, #16", func() (Instruction, error) { return Bfxil("x0", "x1", 8, 16) }, 0xB3485C20},
		{"movz x0, #0x1234, lsl #16", func() (Instruction, error) { return MovzImm("x0", 0x1234, 16) }, 0xD2A24680},
		{"movz w0, #5", func() (Instruction, error) { return MovzImm("w0", 5, 0) }, 0x528000A0},
		{"movk x0, #0xbeef, lsl #48", func() (Instruction, error) { return MovkImm("x0", 0xBEEF, 48) }, 0xF2F7DDE0},
		{"cset x0, eq", func() (Instruction, error) { return Cset("x0", "EQ") }, 0x9A9F17E0},
		{"csetm x0, eq", func() (Instruction, error) { return Csetm("x0", "EQ") }, 0xDA9F13E0},
		{"csinv x0, x1, x2, ne", func() (Instruction, error) { return Csinv("x0", "x1", "x2", "NE") }, 0xDA821020},
	} {
		t.Run(tc.name, func(t *testing.T) {
			i, err := tc.got()
			require.NoError(t, err)
			require.Equal(t, tc.want, i.Encoding, "got 0x%08X want 0x%08X", i.Encoding, tc.want)
		})
	}
}

func TestBranchEncodings(t *testing.T) {
	// PC-relative forms leave the offset zero for the linker.
	b, err := Branch("L1")
	require.NoError(t, err)
	require.Equal(t, uint32(0x14000000), b.Encoding)
	require.Equal(t, RelocPcRelative26, b.Relocation)
	require.Equal(t, "L1", b.TargetLabel)

	bl, err := BranchWithLink("F")
	require.NoError(t, err)
	require.Equal(t, uint32(0x94000000), bl.Encoding)

	bc, err := BranchCond("NE", "L2")
	require.NoError(t, err)
	require.Equal(t, uint32(0x54000001), bc.Encoding)
	require.Equal(t, RelocPcRelative19, bc.Relocation)

	br, err := BranchReg("x16")
	require.NoError(t, err)
	require.Equal(t, uint32(0xD61F0200), br.Encoding)

	blr, err := BranchLinkReg("x16")
	require.NoError(t, err)
	require.Equal(t, uint32(0xD63F0200), blr.Encoding)

	ret, err := Return()
	require.NoError(t, err)
	require.Equal(t, uint32(0xD65F03C0), ret.Encoding)

	cbz, err := Cbz("x3", "L3")
	require.NoError(t, err)
	require.Equal(t, uint32(0xB4000003), cbz.Encoding)

	cbnz, err := Cbnz("w3", "L3")
	require.NoError(t, err)
	require.Equal(t, uint32(0x35000003), cbnz.Encoding)
}

func TestMemoryEncodings(t *testing.T) {
	for _, tc := range []struct {
		name string
		got  func() (Instruction, error)
		want uint32
	}{
		{"ldr x0, [sp, #16]", func() (Instruction, error) { return LdrImm("x0", "sp", 16, "") }, 0xF9400BE0},
		{"str x0, [sp, #16]", func() (Instruction, error) { return StrImm("x0", "sp", 16, "") }, 0xF9000BE0},
		{"ldrb w1, [x2, #3]", func() (Instruction, error) { return LdrbImm("w1", "x2", 3) }, 0x39400C41},
		{"ldr w1, [x2, #8]", func() (Instruction, error) { return LdrWordImm("w1", "x2", 8) }, 0xB9400841},
		{"str w1, [x2, #8]", func() (Instruction, error) { return StrWordImm("w1", "x2", 8) }, 0xB9000841},
		{"ldr x0, [x1, x2, lsl #3]", func() (Instruction, error) { return LdrScaledReg64("x0", "x1", "x2", 3) }, 0xF8627820},
		{"ldr x0, [x1, x2]", func() (Instruction, error) { return LdrScaledReg64("x0", "x1", "x2", 0) }, 0xF8626820},
		{"stp x29, x30, [sp, #-16]!", func() (Instruction, error) { return StpPreImm("x29", "x30", "sp", -16) }, 0xA9BF7BFD},
		{"ldp x29, x30, [sp], #16", func() (Instruction, error) { return LdpPostImm("x29", "x30", "sp", 16) }, 0xA8C17BFD},
		{"stp x0, x1, [sp, #16]", func() (Instruction, error) { return StpImm("x0", "x1", "sp", 16) }, 0xA90107E0},
		{"ldp x0, x1, [sp, #16]", func() (Instruction, error) { return LdpImm("x0", "x1", "sp", 16) }, 0xA94107E0},
		{"stp d8, d9, [sp, #-16]!", func() (Instruction, error) { return StpFpPreImm("d8", "d9", "sp", -16) }, 0x6DBF27E8},
		{"ldp d8, d9, [sp], #16", func() (Instruction, error) { return LdpFpPostImm("d8", "d9", "sp", 16) }, 0x6CC127E8},
		{"ldr d0, [x29, #24]", func() (Instruction, error) { return LdrFpImm("d0", "x29", 24) }, 0xFD400FA0},
		{"str d0, [x29, #24]", func() (Instruction, error) { return StrFpImm("d0", "x29", 24) }, 0xFD000FA0},
		{"ldr q8, [x29, #32]", func() (Instruction, error) { return LdrVecImm("q8", "x29", 32, "") }, 0x3DC00BA8},
		{"str q8, [x29, #32]", func() (Instruction, error) { return StrVecImm("q8", "x29", 32, "") }, 0x3D800BA8},
	} {
		t.Run(tc.name, func(t *testing.T) {
			i, err := tc.got()
			require.NoError(t, err)
			require.Equal(t, tc.want, i.Encoding, "got 0x%08X want 0x%08X", i.Encoding, tc.want)
			require.True(t, i.IsMemOp)
		})
	}
}

func TestFloatEncodings(t *testing.T) {
	for _, tc := range []struct {
		name string
		got  func() (Instruction, error)
		want uint32
	}{
		{"fadd d0, d1, d2", func() (Instruction, error) { return FaddReg("d0", "d1", "d2") }, 0x1E622820},
		{"fadd s0, s1, s2", func() (Instruction, error) { return FaddReg("s0", "s1", "s2") }, 0x1E222820},
		{"fsub d0, d1, d2", func() (Instruction, error) { return FsubReg("d0", "d1", "d2") }, 0x1E623820},
		{"fmul d0, d1, d2", func() (Instruction, error) { return FmulReg("d0", "d1", "d2") }, 0x1E620820},
		{"fdiv d0, d1, d2", func() (Instruction, error) { return FdivReg("d0", "d1", "d2") }, 0x1E621820},
		{"fcmp d1, d2", func() (Instruction, error) { return FcmpReg("d1", "d2") }, 0x1E622020},
		{"fsqrt d0, d1", func() (Instruction, error) { return FsqrtReg("d0", "d1") }, 0x1E61C020},
		{"fneg d0, d1", func() (Instruction, error) { return FnegReg("d0", "d1") }, 0x1E614020},
		{"fmov d0, d1", func() (Instruction, error) { return FmovReg("d0", "d1") }, 0x1E604020},
		{"fmov x0, d1", func() (Instruction, error) { return FmovDToX("x0", "d1") }, 0x9E660020},
		{"fmov d0, x1", func() (Instruction, error) { return FmovXToD("d0", "x1") }, 0x9E670020},
		{"fmov w0, s1", func() (Instruction, error) { return FmovSToW("w0", "s1") }, 0x1E260020},
		{"fmov s0, w1", func() (Instruction, error) { return FmovWToS("s0", "w1") }, 0x1E270020},
		{"scvtf d0, x1", func() (Instruction, error) { return ScvtfReg("d0", "x1") }, 0x9E620020},
		{"fcvtzs x0, d1", func() (Instruction, error) { return FcvtzsReg("x0", "d1") }, 0x9E780020},
		{"fcvtms x0, d1", func() (Instruction, error) { return FcvtmsReg("x0", "d1") }, 0x9E700020},
		{"fcvt s0, d1", func() (Instruction, error) { return FcvtDToS("s0", "d1") }, 0x1E624020},
	} {
		t.Run(tc.name, func(t *testing.T) {
			i, err := tc.got()
			require.NoError(t, err)
			require.Equal(t, tc.want, i.Encoding, "got 0x%08X want 0x%08X", i.Encoding, tc.want)
		})
	}
}

func TestVectorEncodings(t *testing.T) {
	for _, tc := range []struct {
		name string
		got  func() (Instruction, error)
		want uint32
	}{
		{"add v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return AddVectorReg("v2", "v0", "v1", "4S") }, 0x4EA18402},
		{"add v2.2s, v0.2s, v1.2s", func() (Instruction, error) { return AddVectorReg("v2", "v0", "v1", "2S") }, 0x0EA18402},
		{"add v2.2d, v0.2d, v1.2d", func() (Instruction, error) { return AddVectorReg("v2", "v0", "v1", "2D") }, 0x4EE18402},
		{"add v2.8b, v0.8b, v1.8b", func() (Instruction, error) { return AddVectorReg("v2", "v0", "v1", "8B") }, 0x0E218402},
		{"sub v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return SubVectorReg("v2", "v0", "v1", "4S") }, 0x6EA18402},
		{"mul v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return MulVectorReg("v2", "v0", "v1", "4S") }, 0x4EA19C02},
		{"addp v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return AddpVectorReg("v2", "v0", "v1", "4S") }, 0x4EA1BC02},
		{"smax v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return SmaxVectorReg("v2", "v0", "v1", "4S") }, 0x4EA16402},
		{"smin v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return SminVectorReg("v2", "v0", "v1", "4S") }, 0x4EA16C02},
		{"sminp v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return SminpVectorReg("v2", "v0", "v1", "4S") }, 0x4EA1AC02},
		{"fadd v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return FaddVectorReg("v2", "v0", "v1", "4S") }, 0x4E21D402},
		{"fadd v2.2s, v0.2s, v1.2s", func() (Instruction, error) { return FaddVectorReg("v2", "v0", "v1", "2S") }, 0x0E21D402},
		{"fadd v2.2d, v0.2d, v1.2d", func() (Instruction, error) { return FaddVectorReg("v2", "v0", "v1", "2D") }, 0x4E61D402},
		{"fadd v2.4h, v0.4h, v1.4h", func() (Instruction, error) { return FaddVectorReg("v2", "v0", "v1", "4H") }, 0x0E411402},
		{"fsub v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return FsubVectorReg("v2", "v0", "v1", "4S") }, 0x4EA1D402},
		{"fmul v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return FmulVectorReg("v2", "v0", "v1", "4S") }, 0x6E21DC02},
		{"fdiv v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return FdivVectorReg("v2", "v0", "v1", "4S") }, 0x6E21FC02},
		{"fmin v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return FminVectorReg("v2", "v0", "v1", "4S") }, 0x4EA1F402},
		{"fmax v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return FmaxVectorReg("v2", "v0", "v1", "4S") }, 0x4E21F402},
		{"faddp v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return FaddpVectorReg("v2", "v0", "v1", "4S") }, 0x6E21D402},
		{"fminp v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return FminpVectorReg("v2", "v0", "v1", "4S") }, 0x6EA1F402},
		{"fmaxp v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return FmaxpVectorReg("v2", "v0", "v1", "4S") }, 0x6E21F402},
		{"uzp2 v2.4s, v0.4s, v1.4s", func() (Instruction, error) { return Uzp2VectorReg("v2", "v0", "v1", "4S") }, 0x4E815802},
		{"ld1 {v0.4s}, [x1]", func() (Instruction, error) { return Ld1VectorReg("v0", "x1", "4S") }, 0x4C407820},
		{"st1 {v0.4s}, [x1]", func() (Instruction, error) { return St1VectorReg("v0", "x1", "4S") }, 0x4C007820},
		{"dup v0.4s, w1", func() (Instruction, error) { return DupScalar("v0", "w1", "4S") }, 0x4E040C20},
		{"dup v0.2d, x1", func() (Instruction, error) { return DupScalar("v0", "x1", "2D") }, 0x4E080C20},
	} {
		t.Run(tc.name, func(t *testing.T) {
			i, err := tc.got()
			require.NoError(t, err)
			require.Equal(t, tc.want, i.Encoding, "got 0x%08X want 0x%08X", i.Encoding, tc.want)
		})
	}
}

func TestMiscEncodings(t *testing.T) {
	nop, err := Nop()
	require.NoError(t, err)
	require.Equal(t, uint32(0xD503201F), nop.Encoding)

	brk, err := Brk(1)
	require.NoError(t, err)
	require.Equal(t, uint32(0xD4200020), brk.Encoding)

	dmb, err := DmbIsh()
	require.NoError(t, err)
	require.Equal(t, uint32(0xD5033BBF), dmb.Encoding)

	svc, err := Svc(0)
	require.NoError(t, err)
	require.Equal(t, uint32(0xD4000001), svc.Encoding)
}

func TestMovzMovkSequences(t *testing.T) {
	// 0x0000000000020001 skips the two high chunks.
	seq, err := MovzMovkAbs64("x16", 0x20001, "sym")
	require.NoError(t, err)
	require.Len(t, seq, 2)
	require.Equal(t, OpMOVZ, seq[0].Opcode)
	require.Equal(t, RelocMovzMovk0, seq[0].Relocation)
	require.Equal(t, OpMOVK, seq[1].Opcode)
	require.Equal(t, RelocMovzMovk16, seq[1].Relocation)

	// The JIT form always emits four instructions so the linker can rewrite
	// the address without re-sizing.
	jit, err := MovzMovkJITAddr("x16", 0x20001, "sym")
	require.NoError(t, err)
	require.Len(t, jit, 4)
	require.Equal(t, OpMOVZ, jit[0].Opcode)
	for c, i := range jit {
		require.Equal(t, movzMovkRelocs[c], i.Relocation)
	}

	zero, err := MovzMovkAbs64("x0", 0, "sym")
	require.NoError(t, err)
	require.Len(t, zero, 1)
}

func TestEncoderErrors(t *testing.T) {
	var regErr *InvalidRegisterError
	_, err := AddReg("p0", "x1", "x2")
	require.ErrorAs(t, err, &regErr)

	var widthErr *MismatchedWidthsError
	_, err = AddReg("x0", "w1", "x2")
	require.ErrorAs(t, err, &widthErr)

	var immErr *InvalidImmediateError
	_, err = CmpImm("x0", 4096)
	require.ErrorAs(t, err, &immErr)

	_, err = StpImm("x0", "x1", "sp", 13)
	require.ErrorAs(t, err, &immErr)

	_, err = LdrImm("x0", "sp", 32768, "")
	require.ErrorAs(t, err, &immErr)

	// STR (word) validates rather than masking the offset.
	_, err = StrWordImm("w0", "x1", 0x10004)
	require.ErrorAs(t, err, &immErr)

	_, err = AndImm("x0", "x1", 0) // zero has no bitmask encoding
	require.ErrorAs(t, err, &immErr)

	var shiftErr *InvalidShiftError
	_, err = LdrScaledReg64("x0", "x1", "x2", 2)
	require.ErrorAs(t, err, &shiftErr)

	_, err = MovzImm("x0", 1, 13)
	require.ErrorAs(t, err, &shiftErr)

	_, err = FaddReg("d0", "s1", "d2")
	require.ErrorAs(t, err, &widthErr)
}

func TestRegisterParsing(t *testing.T) {
	for _, tc := range []struct {
		text string
		num  uint32
	}{
		{"x0", 0}, {"X7", 7}, {"w30", 30}, {"sp", 31}, {"WSP", 31},
		{"xzr", 31}, {"WZR", 31}, {"d3", 3}, {"v7", 7}, {"s2", 2}, {"q5", 5},
	} {
		n, err := RegEncoding(tc.text)
		require.NoError(t, err, tc.text)
		require.Equal(t, tc.num, n, tc.text)
	}

	for _, bad := range []string{"", "x31", "w32", "e0", "x", "d32"} {
		_, err := RegEncoding(bad)
		require.Error(t, err, bad)
	}
}

func TestCondCodes(t *testing.T) {
	for name, want := range map[string]Cond{
		"EQ": 0, "NE": 1, "CS": 2, "HS": 2, "CC": 3, "LO": 3,
		"MI": 4, "PL": 5, "VS": 6, "VC": 7, "HI": 8, "LS": 9,
		"GE": 10, "LT": 11, "GT": 12, "LE": 13, "AL": 14, "NV": 15,
	} {
		c, err := ParseCond(name)
		require.NoError(t, err, name)
		require.Equal(t, want, c, name)
	}

	c, err := ParseCond("eq")
	require.NoError(t, err)
	require.Equal(t, CondEQ, c)

	require.Equal(t, CondNE, CondEQ.Invert())
	require.Equal(t, CondGE, CondLT.Invert())
	require.Equal(t, CondLS, CondHI.Invert())

	_, err = ParseCond("XX")
	require.Error(t, err)
}

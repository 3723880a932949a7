package arm64

import "fmt"

// Nop encodes NOP.
func Nop() (Instruction, error) {
	i := newInstruction(0xD503201F, "NOP")
	i.Opcode = OpNOP
	return i, nil
}

// Brk encodes BRK #imm16.
func Brk(imm16 uint16) (Instruction, error) {
	p := NewBitPatcher(0xD4200000)
	p.patch(uint32(imm16), 5, 16)
	i := newInstruction(p.Value(), fmt.Sprintf("BRK #%d", imm16))
	i.Opcode = OpBRK
	i.Immediate = int64(imm16)
	i.UsesImmediate = true
	return i, nil
}

// DmbIsh encodes DMB ISH, the inner-shareable data memory barrier.
func DmbIsh() (Instruction, error) {
	i := newInstruction(0xD5033BBF, "DMB ISH")
	i.Opcode = OpDMB
	return i, nil
}

// Svc encodes SVC #imm16.
func Svc(imm16 uint16) (Instruction, error) {
	p := NewBitPatcher(0xD4000001)
	p.patch(uint32(imm16), 5, 16)
	i := newInstruction(p.Value(), fmt.Sprintf("SVC #%d", imm16))
	i.Opcode = OpSVC
	i.Immediate = int64(imm16)
	i.UsesImmediate = true
	return i, nil
}

// Directive constructs an assembly-text-only record (e.g. ".align 3") with
// no encoding; the binary emitter skips it.
func Directive(text string) Instruction {
	i := newInstruction(0, text)
	i.Opcode = OpDirective
	i.IsDataValue = true
	return i
}

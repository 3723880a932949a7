// Package arm64 provides bit-exact encoders for the AArch64 subset the
// compiler emits, the BitPatcher primitive they are built on, and the
// Instruction record consumed by the linker and the emitters.
//
// Every encoder is a pure function from operand strings to an Instruction:
// parse registers, validate widths and immediates, start from the form's
// base opcode, and patch operand fields. Errors are structured and
// recoverable; no encoder panics on malformed input, and no encoder
// truncates an out-of-range immediate.
package arm64

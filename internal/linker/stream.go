// Package linker resolves labels to addresses, patches relocations, and
// writes the result out as an in-memory image or as toolchain-compatible
// assembly text.
package linker

import (
	"fmt"

	"github.com/beagle-lang/beagle/internal/asm/arm64"
)

// UnresolvedLabelError reports a relocation against a label the stream never
// defines.
type UnresolvedLabelError struct{ Name string }

// Error implements error.
func (e *UnresolvedLabelError) Error() string {
	return fmt.Sprintf("unresolved label '%s'", e.Name)
}

// RelocationRangeError reports a resolved offset that does not fit the
// relocation's field.
type RelocationRangeError struct {
	Kind  arm64.RelocationKind
	Value int64
	Range string
}

// Error implements error.
func (e *RelocationRangeError) Error() string {
	return fmt.Sprintf("relocation %s out of range: offset %d does not fit %s", e.Kind, e.Value, e.Range)
}

// Stream is the append-only instruction sequence the code generator and
// veneer manager produce and the linker consumes.
type Stream struct {
	instructions []arm64.Instruction
}

// NewStream returns an empty stream.
func NewStream() *Stream { return &Stream{} }

// Add appends one instruction record.
func (s *Stream) Add(i arm64.Instruction) {
	s.instructions = append(s.instructions, i)
}

// AddAll appends a sequence of instruction records.
func (s *Stream) AddAll(is []arm64.Instruction) {
	s.instructions = append(s.instructions, is...)
}

// DefineLabel appends a code-segment label definition at the current
// position.
func (s *Stream) DefineLabel(name string) {
	s.instructions = append(s.instructions, arm64.AsLabel(name, arm64.SegmentCode))
}

// DefineLabelIn appends a label definition in the given segment.
func (s *Stream) DefineLabelIn(name string, segment arm64.Segment) {
	s.instructions = append(s.instructions, arm64.AsLabel(name, segment))
}

// Len returns the number of records.
func (s *Stream) Len() int { return len(s.instructions) }

// Instructions exposes the backing slice so the linker can patch in place.
func (s *Stream) Instructions() []arm64.Instruction { return s.instructions }

// Package types defines the bit-flag type lattice used by the analyzer and
// the optimization passes.
//
// Types are 64-bit bitfields. Base types live in the low bits, container
// flags above them, and modifiers at the top, so the numeric value of a type
// doubles as its refinement priority: a proposed type replaces the current
// one only if its value is greater or equal (ShouldUpdate). This makes type
// inference a monotonic walk UNKNOWN -> base -> container -> pointer-to-container.
package types

import "strings"

// VarType is a composite type built by OR-ing flags together,
// e.g. PointerTo|List|Integer.
type VarType uint64

const (
	Unknown VarType = 0

	// Base types.

	Integer VarType = 1 << 0
	Float   VarType = 1 << 1
	String  VarType = 1 << 2
	Any     VarType = 1 << 3
	Pair    VarType = 1 << 4
	FPair   VarType = 1 << 5
	Quad    VarType = 1 << 6
	FQuad   VarType = 1 << 7

	// Container types.

	Vec    VarType = 1 << 10
	List   VarType = 1 << 11
	Table  VarType = 1 << 12
	Object VarType = 1 << 13

	// Modifiers.

	PointerTo VarType = 1 << 20
	Const     VarType = 1 << 21
	NotUsed   VarType = 1 << 22
)

// Composite types used throughout the compiler.
const (
	PointerToObject    = PointerTo | Object
	PointerToIntList   = PointerTo | List | Integer
	PointerToFloatList = PointerTo | List | Float
	PointerToAnyList   = PointerTo | List | Any
	PointerToIntVec    = PointerTo | Vec | Integer
	PointerToFloatVec  = PointerTo | Vec | Float
	PointerToString    = PointerTo | String
	PointerToTable     = PointerTo | Table
	PointerToFloat     = PointerTo | Float
	PointerToInt       = PointerTo | Integer
	PointerToListNode  = PointerTo | List
	ConstIntList       = Const | PointerTo | List | Integer
	ConstFloatList     = Const | PointerTo | List | Float
)

// Has reports whether every flag in mask is set.
func (t VarType) Has(mask VarType) bool { return t&mask == mask }

// IsConstList reports whether t is a constant list: all of PointerTo, List
// and Const must be set.
func (t VarType) IsConstList() bool {
	return t.Has(PointerTo | List | Const)
}

// ShouldUpdate implements the priority update rule: a new type wins only if
// its numeric value is >= the current one. Higher bits denote more
// specific/complex types, so refinement is monotonic.
func ShouldUpdate(current, proposed VarType) bool {
	return proposed >= current
}

var flagNames = []struct {
	flag VarType
	name string
}{
	{Const, "CONST"},
	{PointerTo, "POINTER_TO"},
	{List, "LIST"},
	{Vec, "VEC"},
	{Table, "TABLE"},
	{Object, "OBJECT"},
	{Integer, "INTEGER"},
	{Float, "FLOAT"},
	{String, "STRING"},
	{Any, "ANY"},
	{Pair, "PAIR"},
	{FPair, "FPAIR"},
	{Quad, "QUAD"},
	{FQuad, "FQUAD"},
	{NotUsed, "NOTUSED"},
}

// String implements fmt.Stringer. Flags are rendered in a fixed order
// (modifiers, then containers, then base types, NOTUSED last), joined by
// '|', e.g. "POINTER_TO|LIST|INTEGER".
func (t VarType) String() string {
	if t == Unknown {
		return "UNKNOWN"
	}
	var parts []string
	for _, f := range flagNames {
		if t&f.flag != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// IsPacked reports whether t is one of the fixed-lane packed types that map
// directly onto a NEON arrangement.
func (t VarType) IsPacked() bool {
	return t&(Pair|FPair|Quad|FQuad) != 0
}

// Package symtab implements the persistent symbol store and the per-function
// metrics the analyzer and code generator share.
package symtab

import (
	"fmt"
	"strings"

	"github.com/beagle-lang/beagle/internal/types"
)

// SymbolKind classifies a symbol.
type SymbolKind int

const (
	LocalVar SymbolKind = iota
	StaticVar
	GlobalVar
	MemberVar
	Parameter
	Function
	FloatFunction
	Routine
	Label
	Manifest
	RuntimeFunction
	RuntimeFloatFunction
	RuntimeRoutine
	RuntimeFloatRoutine
)

var kindNames = [...]string{
	LocalVar:             "LOCAL_VAR",
	StaticVar:            "STATIC_VAR",
	GlobalVar:            "GLOBAL_VAR",
	MemberVar:            "MEMBER_VAR",
	Parameter:            "PARAMETER",
	Function:             "FUNCTION",
	FloatFunction:        "FLOAT_FUNCTION",
	Routine:              "ROUTINE",
	Label:                "LABEL",
	Manifest:             "MANIFEST",
	RuntimeFunction:      "RUNTIME_FUNCTION",
	RuntimeFloatFunction: "RUNTIME_FLOAT_FUNCTION",
	RuntimeRoutine:       "RUNTIME_ROUTINE",
	RuntimeFloatRoutine:  "RUNTIME_FLOAT_ROUTINE",
}

// String implements fmt.Stringer.
func (k SymbolKind) String() string { return kindNames[k] }

// IsFunctionLike reports whether the symbol kind carries a parameter list.
func (k SymbolKind) IsFunctionLike() bool {
	switch k {
	case Function, FloatFunction, Routine,
		RuntimeFunction, RuntimeFloatFunction, RuntimeRoutine, RuntimeFloatRoutine:
		return true
	}
	return false
}

// LocationKind discriminates SymbolLocation.
type LocationKind int

const (
	LocUnknown LocationKind = iota
	// LocStack is an offset from the frame pointer.
	LocStack
	// LocData is an offset into the data segment.
	LocData
	// LocAbsolute is an absolute immediate value (manifest constants).
	LocAbsolute
	// LocLabel means the symbol's address is a label resolved by the linker.
	LocLabel
)

// SymbolLocation records where a symbol lives at run time.
type SymbolLocation struct {
	Kind        LocationKind
	StackOffset int
	DataOffset  uint64
	Absolute    int64
}

// StackLocation returns a frame-pointer-relative location.
func StackLocation(offset int) SymbolLocation {
	return SymbolLocation{Kind: LocStack, StackOffset: offset}
}

// DataLocation returns a data-segment location.
func DataLocation(offset uint64) SymbolLocation {
	return SymbolLocation{Kind: LocData, DataOffset: offset}
}

// AbsoluteLocation returns an absolute-immediate location.
func AbsoluteLocation(value int64) SymbolLocation {
	return SymbolLocation{Kind: LocAbsolute, Absolute: value}
}

// Param describes one parameter of a function-like symbol.
type Param struct {
	Name     string
	Type     types.VarType
	Optional bool
}

// Symbol is one entry in the persistent symbol log.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Type       types.VarType
	ScopeLevel int
	BlockID    int
	// FunctionName is the owning function, or "Global" for top-level symbols.
	FunctionName string
	// ClassName is parsed from a "Class::method" qualified name.
	ClassName string
	Location  SymbolLocation
	Params    []Param

	// OwnsHeapMemory is true while the variable references a heap allocation
	// it is responsible for releasing.
	OwnsHeapMemory bool
	// ContainsLiterals is true for list values whose elements are all
	// compile-time literals.
	ContainsLiterals bool

	// Size is the element count for vectors/strings with a compile-time size.
	HasSize bool
	Size    int
}

// GlobalScope is the function context of top-level symbols.
const GlobalScope = "Global"

// NewSymbol constructs a symbol, parsing the class name out of a
// "Class::method" qualified name if present.
func NewSymbol(name string, kind SymbolKind, typ types.VarType, scopeLevel int, functionName string) Symbol {
	s := Symbol{
		Name:         name,
		Kind:         kind,
		Type:         typ,
		ScopeLevel:   scopeLevel,
		FunctionName: functionName,
	}
	if i := strings.Index(name, "::"); i >= 0 {
		s.ClassName = name[:i]
	}
	return s
}

// String implements fmt.Stringer.
func (s Symbol) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol '%s' (%s, %s, scope=%d, block=%d", s.Name, s.Kind, s.Type, s.ScopeLevel, s.BlockID)
	switch s.Location.Kind {
	case LocStack:
		fmt.Fprintf(&b, ", location=STACK[FP%+d]", s.Location.StackOffset)
	case LocData:
		fmt.Fprintf(&b, ", location=DATA[%d]", s.Location.DataOffset)
	case LocAbsolute:
		fmt.Fprintf(&b, ", location=ABSOLUTE[%d]", s.Location.Absolute)
	case LocLabel:
		b.WriteString(", location=LABEL")
	}
	if s.HasSize {
		fmt.Fprintf(&b, ", size=%d", s.Size)
	}
	if s.ClassName != "" {
		fmt.Fprintf(&b, ", class='%s'", s.ClassName)
	}
	fmt.Fprintf(&b, ", function='%s'", s.FunctionName)
	if s.Kind.IsFunctionLike() && len(s.Params) > 0 {
		b.WriteString(", params=[")
		for i, p := range s.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Type.String())
			if p.Optional {
				b.WriteByte('?')
			}
		}
		b.WriteByte(']')
	}
	b.WriteByte(')')
	return b.String()
}

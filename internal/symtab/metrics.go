package symtab

import "github.com/beagle-lang/beagle/internal/types"

// ThisPtrMember is the AccessedMemberName sentinel for trivial accessors that
// return SELF.
const ThisPtrMember = "_this_ptr"

// FunctionMetrics accumulates per-function facts the register allocator and
// code generator need. The analyzer owns the write side.
type FunctionMetrics struct {
	NumParameters      int
	NumVariables       int // integer variables
	NumFloatVariables  int
	NumFloatParameters int

	NumRuntimeCalls       int
	NumLocalFunctionCalls int
	NumLocalRoutineCalls  int

	// IsLeaf is true until the first call site is seen.
	IsLeaf bool
	// PerformsHeapAllocation is true if the function allocates on the heap;
	// when false and IsLeaf, scope enter/exit calls can be skipped entirely.
	PerformsHeapAllocation bool

	// Trivial accessor/setter detection. AccessedMemberName holds the member
	// touched, or ThisPtrMember when the method returns SELF.
	IsTrivialAccessor  bool
	IsTrivialSetter    bool
	AccessedMemberName string
	IsSafeToInline     bool

	// MaxLiveVariables tracks peak register pressure.
	MaxLiveVariables int
	InstructionCount int

	RequiredCalleeSavedTemps int
	RequiredCalleeSavedRegs  map[string]struct{}

	ParameterIndices map[string]int
	ParameterTypes   map[string]types.VarType
	VariableTypes    map[string]types.VarType
}

// NewFunctionMetrics returns metrics with the leaf flag primed true.
func NewFunctionMetrics() *FunctionMetrics {
	return &FunctionMetrics{
		IsLeaf:                  true,
		RequiredCalleeSavedRegs: make(map[string]struct{}),
		ParameterIndices:        make(map[string]int),
		ParameterTypes:          make(map[string]types.VarType),
		VariableTypes:           make(map[string]types.VarType),
	}
}

// NoteCall records a call site: the function is no longer a leaf.
func (m *FunctionMetrics) NoteCall() { m.IsLeaf = false }

// SetVariableType records (or refines, per the priority rule) a variable's
// inferred type.
func (m *FunctionMetrics) SetVariableType(name string, t types.VarType) {
	if cur, ok := m.VariableTypes[name]; !ok || types.ShouldUpdate(cur, t) {
		m.VariableTypes[name] = t
	}
}

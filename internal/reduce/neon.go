package reduce

import "github.com/beagle-lang/beagle/internal/types"

// NeonPlan is one row of the NEON registry: which arrangement to use for a
// data type and which instruction mnemonics implement min/max/sum on it.
// Dynamic-length vectors process .4S chunks with a scalar tail for the
// N mod 4 remainder.
type NeonPlan struct {
	Lanes       int
	Arrangement string
	MinInstr    string
	MaxInstr    string
	SumInstr    string
	// IsFloat selects the FP forms of the min/max/sum instructions.
	IsFloat bool
	// Chunked is true for dynamic-length vectors: loop over 4-lane chunks
	// then reduce the tail with scalar code.
	Chunked bool
}

var neonRegistry = map[types.VarType]NeonPlan{
	types.Pair:  {Lanes: 2, Arrangement: "2S", MinInstr: "SMIN", MaxInstr: "SMAX", SumInstr: "ADD"},
	types.FPair: {Lanes: 2, Arrangement: "2S", MinInstr: "FMIN", MaxInstr: "FMAX", SumInstr: "FADD", IsFloat: true},
	types.Quad:  {Lanes: 4, Arrangement: "4S", MinInstr: "SMIN", MaxInstr: "SMAX", SumInstr: "ADD"},
	types.FQuad: {Lanes: 4, Arrangement: "4H", MinInstr: "FMIN", MaxInstr: "FMAX", SumInstr: "FADD", IsFloat: true},

	types.PointerToIntVec:   {Lanes: 4, Arrangement: "4S", MinInstr: "SMIN", MaxInstr: "SMAX", SumInstr: "ADD", Chunked: true},
	types.PointerToFloatVec: {Lanes: 4, Arrangement: "4S", MinInstr: "FMIN", MaxInstr: "FMAX", SumInstr: "FADD", IsFloat: true, Chunked: true},
}

// PlanFor returns the NEON plan for a collection type, matching the packed
// base types first and the dynamic vector types second.
func PlanFor(t types.VarType) (NeonPlan, bool) {
	for _, base := range []types.VarType{types.Pair, types.FPair, types.Quad, types.FQuad} {
		if t.Has(base) {
			return neonRegistry[base], true
		}
	}
	if p, ok := neonRegistry[t]; ok {
		return p, true
	}
	return NeonPlan{}, false
}

// InstrFor selects the mnemonic a plan uses for a reduction code.
func (p NeonPlan) InstrFor(code uint32) string {
	switch code {
	case CodeMin, CodePairwiseMin:
		return p.MinInstr
	case CodeMax, CodePairwiseMax:
		return p.MaxInstr
	case CodeSum, CodePairwiseAdd:
		return p.SumInstr
	default:
		return ""
	}
}

package analysis

import (
	"github.com/beagle-lang/beagle/internal/ast"
	"github.com/beagle-lang/beagle/internal/symtab"
	"github.com/beagle-lang/beagle/internal/types"
)

// InferType computes the type of an expression without mutating any state.
// Variable types come from the symbol table (searched in the functionName
// context) with the per-function metrics map as a fallback for temporaries
// registered mid-pass.
func InferType(e ast.Expr, table *symtab.Table, functionName string, metrics *symtab.FunctionMetrics) types.VarType {
	switch e := e.(type) {
	case *ast.NumberLiteral:
		if e.IsFloat {
			return types.Float
		}
		return types.Integer
	case *ast.CharLiteral, *ast.BooleanLiteral:
		return types.Integer
	case *ast.StringLiteral:
		return types.PointerToString
	case *ast.VariableAccess:
		if s, ok := table.LookupIn(e.Name, functionName); ok {
			return s.Type
		}
		if metrics != nil {
			if t, ok := metrics.VariableTypes[e.Name]; ok {
				return t
			}
		}
		return types.Unknown
	case *ast.BinaryOp:
		switch e.Op {
		case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe,
			ast.OpLogAnd, ast.OpLogOr:
			return types.Integer
		}
		lt := InferType(e.Left, table, functionName, metrics)
		rt := InferType(e.Right, table, functionName, metrics)
		if lt.Has(types.Float) || rt.Has(types.Float) {
			return types.Float
		}
		return types.Integer
	case *ast.UnaryOp:
		switch e.Op {
		case ast.OpAddrOf:
			return types.PointerTo | InferType(e.Operand, table, functionName, metrics)
		case ast.OpHead:
			// HD of a typed list yields the element's base type.
			t := InferType(e.Operand, table, functionName, metrics)
			if t.Has(types.PointerTo | types.List) {
				base := t &^ (types.PointerTo | types.List | types.Const)
				if base != types.Unknown {
					return base
				}
			}
			return types.Any
		case ast.OpTail:
			return InferType(e.Operand, table, functionName, metrics) &^ types.Const
		case ast.OpIndirect:
			t := InferType(e.Operand, table, functionName, metrics)
			if t.Has(types.PointerTo | types.Float) {
				return types.Float
			}
			return types.Integer
		default:
			return InferType(e.Operand, table, functionName, metrics)
		}
	case *ast.VectorAccess:
		t := InferType(e.Vector, table, functionName, metrics)
		if t.Has(types.Vec | types.Float) {
			return types.Float
		}
		return types.Integer
	case *ast.CharIndirection:
		return types.Integer
	case *ast.FunctionCall:
		if v, ok := e.Callee.(*ast.VariableAccess); ok {
			if s, ok := table.LookupIn(v.Name, functionName); ok {
				switch s.Kind {
				case symtab.FloatFunction, symtab.RuntimeFloatFunction:
					return types.Float
				}
			}
		}
		return types.Integer
	case *ast.ConditionalExpression:
		return InferType(e.Then, table, functionName, metrics)
	case *ast.ValofExpression:
		return types.Integer
	case *ast.FloatValofExpression:
		return types.Float
	case *ast.VecAllocation:
		if e.IsFloat {
			return types.PointerToFloatVec
		}
		return types.PointerToIntVec
	case *ast.VecInitializer:
		return types.PointerToIntVec
	case *ast.StringAllocation:
		return types.PointerToString
	case *ast.ListExpression:
		t := types.PointerToAnyList
		if len(e.Elements) > 0 {
			base := InferType(e.Elements[0], table, functionName, metrics) & (types.Integer | types.Float | types.String | types.Any)
			if base != types.Unknown {
				t = types.PointerTo | types.List | base
			}
		}
		if e.IsConst {
			t |= types.Const
		}
		return t
	case *ast.TableExpression:
		return types.PointerToTable
	case *ast.NewExpression:
		return types.PointerToObject
	case *ast.PairExpression:
		return types.Pair
	case *ast.FPairExpression:
		return types.FPair
	case *ast.QuadExpression:
		return types.Quad
	case *ast.PackAccess:
		return ComponentType(InferType(e.Pack, table, functionName, metrics))
	case *ast.MemberAccess:
		return types.Integer
	case *ast.SelfExpression:
		return types.PointerToObject
	default:
		return types.Unknown
	}
}

// ComponentType returns the type a .first/.second/.third/.fourth access
// yields on a packed value: FLOAT for the float packs, INTEGER otherwise.
func ComponentType(pack types.VarType) types.VarType {
	if pack.Has(types.FPair) || pack.Has(types.FQuad) {
		return types.Float
	}
	return types.Integer
}

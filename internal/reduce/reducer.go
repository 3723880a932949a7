// Package reduce abstracts the reduction operations (MIN, MAX, SUM, ...)
// behind one interface so the CFG builder can synthesize either a NEON
// sequence or a scalar fallback loop without knowing the operation.
package reduce

import (
	"fmt"
	"strings"

	"github.com/beagle-lang/beagle/internal/ast"
)

// Reducer describes one associative reduction operation.
type Reducer interface {
	// Name returns the uppercase operation name, e.g. "MIN".
	Name() string
	// ScalarOperator is the binary operator the fallback loop body applies.
	// For MIN/MAX it is the comparison used to select an element.
	ScalarOperator() ast.BinaryOperator
	// ReductionCode is the dispatch key into the NEON registry.
	ReductionCode() uint32
	// InitialValue returns the identity element, or nil to use the first
	// element as the starting value.
	InitialValue() ast.Expr
}

// Operation codes. 10..12 are the pairwise NEON-only operations.
const (
	CodeMin uint32 = iota
	CodeMax
	CodeSum
	CodeProduct
	CodeBitwiseAnd
	CodeBitwiseOr

	CodePairwiseMin uint32 = 10
	CodePairwiseMax uint32 = 11
	CodePairwiseAdd uint32 = 12
)

// UnknownReducerError reports a reduction name the factory does not know.
type UnknownReducerError struct{ Name string }

// Error implements error.
func (e *UnknownReducerError) Error() string {
	return fmt.Sprintf("unknown reduction operation '%s'", e.Name)
}

type reducer struct {
	name string
	op   ast.BinaryOperator
	code uint32
	// hasInit distinguishes "identity 0" from "no identity".
	hasInit bool
	init    int64
}

func (r *reducer) Name() string                      { return r.name }
func (r *reducer) ScalarOperator() ast.BinaryOperator { return r.op }
func (r *reducer) ReductionCode() uint32             { return r.code }

func (r *reducer) InitialValue() ast.Expr {
	if !r.hasInit {
		return nil
	}
	return ast.IntLiteral(r.init)
}

// IsPairwise reports whether code names one of the NEON-only pairwise
// operations.
func IsPairwise(code uint32) bool {
	return code == CodePairwiseMin || code == CodePairwiseMax || code == CodePairwiseAdd
}

var registry = map[string]func() Reducer{
	"MIN":     func() Reducer { return &reducer{name: "MIN", op: ast.OpLt, code: CodeMin} },
	"MAX":     func() Reducer { return &reducer{name: "MAX", op: ast.OpGt, code: CodeMax} },
	"SUM":     func() Reducer { return &reducer{name: "SUM", op: ast.OpAdd, code: CodeSum, hasInit: true, init: 0} },
	"PRODUCT": func() Reducer { return &reducer{name: "PRODUCT", op: ast.OpMul, code: CodeProduct, hasInit: true, init: 1} },
	"BITWISE_AND": func() Reducer {
		return &reducer{name: "BITWISE_AND", op: ast.OpBitAnd, code: CodeBitwiseAnd, hasInit: true, init: -1}
	},
	"BITWISE_OR": func() Reducer {
		return &reducer{name: "BITWISE_OR", op: ast.OpBitOr, code: CodeBitwiseOr, hasInit: true, init: 0}
	},
	"PAIRWISE_MIN": func() Reducer { return &reducer{name: "PAIRWISE_MIN", op: ast.OpLt, code: CodePairwiseMin} },
	"PAIRWISE_MAX": func() Reducer { return &reducer{name: "PAIRWISE_MAX", op: ast.OpGt, code: CodePairwiseMax} },
	"PAIRWISE_ADD": func() Reducer { return &reducer{name: "PAIRWISE_ADD", op: ast.OpAdd, code: CodePairwiseAdd} },
}

// New returns the reducer for an operation name (matched case-insensitively
// against the uppercase registry), or nil when the name is unknown.
func New(name string) Reducer {
	if f, ok := registry[strings.ToUpper(name)]; ok {
		return f()
	}
	return nil
}

// IsReduction reports whether name is a supported reduction operation.
func IsReduction(name string) bool { return New(name) != nil }

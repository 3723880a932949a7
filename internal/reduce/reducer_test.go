package reduce

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beagle-lang/beagle/internal/ast"
	"github.com/beagle-lang/beagle/internal/types"
)

func TestFactory(t *testing.T) {
	for _, tc := range []struct {
		name    string
		code    uint32
		op      ast.BinaryOperator
		hasInit bool
		init    int64
	}{
		{"MIN", CodeMin, ast.OpLt, false, 0},
		{"MAX", CodeMax, ast.OpGt, false, 0},
		{"SUM", CodeSum, ast.OpAdd, true, 0},
		{"PRODUCT", CodeProduct, ast.OpMul, true, 1},
		{"BITWISE_AND", CodeBitwiseAnd, ast.OpBitAnd, true, -1},
		{"BITWISE_OR", CodeBitwiseOr, ast.OpBitOr, true, 0},
		{"PAIRWISE_MIN", CodePairwiseMin, ast.OpLt, false, 0},
		{"PAIRWISE_MAX", CodePairwiseMax, ast.OpGt, false, 0},
		{"PAIRWISE_ADD", CodePairwiseAdd, ast.OpAdd, false, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := New(tc.name)
			require.NotNil(t, r)
			require.Equal(t, tc.name, r.Name())
			require.Equal(t, tc.code, r.ReductionCode())
			require.Equal(t, tc.op, r.ScalarOperator())
			if tc.hasInit {
				lit, ok := r.InitialValue().(*ast.NumberLiteral)
				require.True(t, ok)
				require.Equal(t, tc.init, lit.IntValue)
			} else {
				require.Nil(t, r.InitialValue())
			}
		})
	}

	require.Nil(t, New("FROBNICATE"))
	require.False(t, IsReduction("FROBNICATE"))
	require.NotNil(t, New("sum")) // case-insensitive
}

func TestNeonRegistry(t *testing.T) {
	for _, tc := range []struct {
		typ         types.VarType
		arrangement string
		min, sum    string
		chunked     bool
	}{
		{types.Pair, "2S", "SMIN", "ADD", false},
		{types.FPair, "2S", "FMIN", "FADD", false},
		{types.Quad, "4S", "SMIN", "ADD", false},
		{types.FQuad, "4H", "FMIN", "FADD", false},
		{types.PointerToIntVec, "4S", "SMIN", "ADD", true},
		{types.PointerToFloatVec, "4S", "FMIN", "FADD", true},
	} {
		p, ok := PlanFor(tc.typ)
		require.True(t, ok, tc.typ.String())
		require.Equal(t, tc.arrangement, p.Arrangement)
		require.Equal(t, tc.min, p.InstrFor(CodeMin))
		require.Equal(t, tc.sum, p.InstrFor(CodeSum))
		require.Equal(t, tc.chunked, p.Chunked)
	}

	_, ok := PlanFor(types.PointerToString)
	require.False(t, ok)
}

func TestPairwisePredicate(t *testing.T) {
	require.True(t, IsPairwise(CodePairwiseAdd))
	require.False(t, IsPairwise(CodeSum))
}

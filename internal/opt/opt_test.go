package opt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beagle-lang/beagle/internal/analysis"
	"github.com/beagle-lang/beagle/internal/ast"
	"github.com/beagle-lang/beagle/internal/symtab"
	"github.com/beagle-lang/beagle/internal/types"
)

func add(l, r ast.Expr) *ast.BinaryOp  { return &ast.BinaryOp{Op: ast.OpAdd, Left: l, Right: r} }
func mul(l, r ast.Expr) *ast.BinaryOp  { return &ast.BinaryOp{Op: ast.OpMul, Left: l, Right: r} }
func va(name string) *ast.VariableAccess { return &ast.VariableAccess{Name: name} }

func TestCanonicalKeyCommutative(t *testing.T) {
	require.Equal(t, canonicalKey(add(va("a"), va("b"))), canonicalKey(add(va("b"), va("a"))))
	require.NotEqual(t,
		canonicalKey(&ast.BinaryOp{Op: ast.OpSub, Left: va("a"), Right: va("b")}),
		canonicalKey(&ast.BinaryOp{Op: ast.OpSub, Left: va("b"), Right: va("a")}))
}

func newPassContext(t *testing.T) (*symtab.Table, *analysis.Analyzer, *analysis.TempFactory) {
	t.Helper()
	tbl := symtab.NewTable(nil)
	return tbl, analysis.NewAnalyzer(tbl, nil, nil), &analysis.TempFactory{}
}

func TestGlobalCSEHoistsRepeatedExpression(t *testing.T) {
	tbl, an, factory := newPassContext(t)

	// LET a = (x + y) * (x + y)
	body := &ast.CompoundStatement{Statements: []ast.Stmt{
		&ast.LetStatement{
			Names:        []string{"a"},
			Initializers: []ast.Expr{mul(add(va("x"), va("y")), add(va("x"), va("y")))},
		},
	}}
	prog := &ast.Program{Declarations: []ast.Decl{&ast.FunctionDecl{Name: "F", Body: body}}}

	NewCSEPass(tbl, an, factory, nil).Run(prog)

	require.Len(t, body.Statements, 2)

	hoist, ok := body.Statements[0].(*ast.AssignmentStatement)
	require.True(t, ok)
	require.Equal(t, "_opt_temp_0", hoist.LHS[0].(*ast.VariableAccess).Name)
	_, ok = hoist.RHS[0].(*ast.BinaryOp)
	require.True(t, ok)

	let := body.Statements[1].(*ast.LetStatement)
	product := let.Initializers[0].(*ast.BinaryOp)
	require.Equal(t, "_opt_temp_0", product.Left.(*ast.VariableAccess).Name)
	require.Equal(t, "_opt_temp_0", product.Right.(*ast.VariableAccess).Name)

	// The temporary is registered in the symbol table.
	sym, ok := tbl.LookupIn("_opt_temp_0", "F")
	require.True(t, ok)
	require.Equal(t, symtab.LocalVar, sym.Kind)
}

func TestLocalCSEInsertsBeforeUseAndInvalidates(t *testing.T) {
	tbl, an, factory := newPassContext(t)

	use1 := assignStmt("r1", add(va("x"), va("y")))
	clobber := assignStmt("x", ast.IntLiteral(0))
	use2 := assignStmt("r2", add(va("x"), va("y")))
	use3 := assignStmt("r3", add(va("x"), va("y")))
	body := &ast.CompoundStatement{Statements: []ast.Stmt{use1, clobber, use2, use3}}
	prog := &ast.Program{Declarations: []ast.Decl{&ast.FunctionDecl{Name: "F", Body: body}}}

	NewLocalCSEPass(tbl, an, factory, nil).Run(prog)

	// temp0 := x+y before use1; x clobbered; temp1 := x+y before use2.
	require.Len(t, body.Statements, 6)
	h1 := body.Statements[0].(*ast.AssignmentStatement)
	require.Equal(t, "_opt_temp_0", h1.LHS[0].(*ast.VariableAccess).Name)
	require.Same(t, use1, body.Statements[1])
	require.Same(t, clobber, body.Statements[2])
	h2 := body.Statements[3].(*ast.AssignmentStatement)
	require.Equal(t, "_opt_temp_1", h2.LHS[0].(*ast.VariableAccess).Name)
	require.Same(t, use2, body.Statements[4])
	require.Same(t, use3, body.Statements[5])

	// use3 reuses temp1: no invalidation happened in between.
	require.Equal(t, "_opt_temp_1", use3.RHS[0].(*ast.VariableAccess).Name)
}

// Calls with side effects do not invalidate available expressions. Pinned
// deliberately: extending invalidation to calls changes observable output.
func TestLocalCSEDoesNotInvalidateOnCalls(t *testing.T) {
	tbl, an, factory := newPassContext(t)

	use1 := assignStmt("r1", add(va("x"), va("y")))
	call := &ast.RoutineCallStatement{Call: &ast.FunctionCall{Callee: va("MUTATE")}}
	use2 := assignStmt("r2", add(va("x"), va("y")))
	body := &ast.CompoundStatement{Statements: []ast.Stmt{use1, call, use2}}
	prog := &ast.Program{Declarations: []ast.Decl{&ast.FunctionDecl{Name: "F", Body: body}}}

	NewLocalCSEPass(tbl, an, factory, nil).Run(prog)

	// One hoist only; the expression survives the call.
	require.Len(t, body.Statements, 4)
	require.Equal(t, "_opt_temp_0", use2.RHS[0].(*ast.VariableAccess).Name)
}

func assignStmt(name string, rhs ast.Expr) *ast.AssignmentStatement {
	return &ast.AssignmentStatement{LHS: []ast.Expr{va(name)}, RHS: []ast.Expr{rhs}}
}

func TestBoundsChecker(t *testing.T) {
	tbl := symtab.NewTable(nil)
	tbl.SetCurrentFunction("F")
	tbl.AddSymbol(symtab.NewSymbol("v", symtab.LocalVar, types.PointerToIntVec, 0, "F"))

	body := &ast.CompoundStatement{Statements: []ast.Stmt{
		&ast.LetStatement{Names: []string{"v"}, Initializers: []ast.Expr{&ast.VecAllocation{Size: ast.IntLiteral(3)}}},
		assignStmt("a", &ast.VectorAccess{Vector: va("v"), Index: ast.IntLiteral(5)}),
		assignStmt("b", &ast.VectorAccess{Vector: va("v"), Index: ast.IntLiteral(2)}),
		assignStmt("c", &ast.VectorAccess{Vector: va("v"), Index: ast.IntLiteral(-1)}),
		assignStmt("d", &ast.VectorAccess{Vector: va("v"), Index: &ast.UnaryOp{Op: ast.OpNeg, Operand: ast.IntLiteral(2)}}),
	}}
	prog := &ast.Program{Declarations: []ast.Decl{&ast.FunctionDecl{Name: "F", Body: body}}}

	pass := NewBoundsPass(tbl, true, nil)
	err := pass.Run(prog)
	require.Error(t, err)
	require.Len(t, pass.Errors(), 2)

	var viol *BoundsViolation
	require.ErrorAs(t, pass.Errors()[0], &viol)
	require.Equal(t, "v", viol.Variable)
	require.Equal(t, int64(5), viol.Index)
	require.Equal(t, 3, viol.Size)

	require.ErrorAs(t, pass.Errors()[1], &viol)
	require.Equal(t, int64(-2), viol.Index)
}

func TestBoundsCheckerRecordsInitializerSize(t *testing.T) {
	tbl := symtab.NewTable(nil)
	tbl.SetCurrentFunction("F")
	tbl.AddSymbol(symtab.NewSymbol("v", symtab.LocalVar, types.PointerToIntVec, 0, "F"))

	body := &ast.CompoundStatement{Statements: []ast.Stmt{
		&ast.LetStatement{Names: []string{"v"}, Initializers: []ast.Expr{
			&ast.VecInitializer{Elements: []ast.Expr{ast.IntLiteral(1), ast.IntLiteral(2)}},
		}},
	}}
	prog := &ast.Program{Declarations: []ast.Decl{&ast.FunctionDecl{Name: "F", Body: body}}}
	require.NoError(t, NewBoundsPass(tbl, true, nil).Run(prog))

	sym, _ := tbl.Lookup("v")
	require.True(t, sym.HasSize)
	require.Equal(t, 2, sym.Size)
}

func TestStringLifting(t *testing.T) {
	tbl, an, factory := newPassContext(t)
	strTable := NewStringTable()

	use1 := &ast.RoutineCallStatement{Call: &ast.FunctionCall{
		Callee: va("WRITEF"),
		Args:   []ast.Expr{&ast.StringLiteral{Value: "hello"}},
	}}
	use2 := &ast.RoutineCallStatement{Call: &ast.FunctionCall{
		Callee: va("WRITEF"),
		Args:   []ast.Expr{&ast.StringLiteral{Value: "hello"}},
	}}
	body := &ast.CompoundStatement{Statements: []ast.Stmt{use1, use2}}
	prog := &ast.Program{Declarations: []ast.Decl{&ast.RoutineDecl{Name: "F", Body: body}}}

	NewStringLiftPass(tbl, strTable, an, factory, nil).Run(prog)

	// One hoisted temp := @L_str0 before first use; both uses share the temp.
	require.Len(t, body.Statements, 3)
	hoist := body.Statements[0].(*ast.AssignmentStatement)
	addr := hoist.RHS[0].(*ast.UnaryOp)
	require.Equal(t, ast.OpAddrOf, addr.Op)
	require.Equal(t, "L_str0", addr.Operand.(*ast.VariableAccess).Name)

	temp := hoist.LHS[0].(*ast.VariableAccess).Name
	require.Equal(t, temp, use1.Call.Args[0].(*ast.VariableAccess).Name)
	require.Equal(t, temp, use2.Call.Args[0].(*ast.VariableAccess).Name)

	// The temporary carries the pointer-to-string type.
	sym, ok := tbl.LookupIn(temp, "F")
	require.True(t, ok)
	require.Equal(t, types.PointerToString, sym.Type)

	entries := strTable.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "hello", entries[0].Value)
}

package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beagle-lang/beagle/internal/ast"
	"github.com/beagle-lang/beagle/internal/symtab"
	"github.com/beagle-lang/beagle/internal/types"
)

func va(name string) *ast.VariableAccess { return &ast.VariableAccess{Name: name} }

func assign(name string, rhs ast.Expr) *ast.AssignmentStatement {
	return &ast.AssignmentStatement{LHS: []ast.Expr{va(name)}, RHS: []ast.Expr{rhs}}
}

func buildOne(t *testing.T, tbl *symtab.Table, name string, body ast.Stmt) *Graph {
	t.Helper()
	b := NewBuilder(tbl, nil)
	err := b.Build(&ast.Program{Declarations: []ast.Decl{
		&ast.RoutineDecl{Name: name, Body: body},
	}})
	require.NoError(t, err)
	g := b.Graphs()[name]
	require.NotNil(t, g)
	return g
}

// collectFrees walks a path's blocks and returns the freed variable names in
// execution order.
func collectFrees(g *Graph, from string) []string {
	var out []string
	seen := map[string]bool{}
	id := from
	for id != "" && !seen[id] {
		seen[id] = true
		blk := g.Block(id)
		for _, s := range blk.Statements {
			if f, ok := s.(*ast.FreeStatement); ok {
				out = append(out, f.Target.(*ast.VariableAccess).Name)
			}
		}
		if len(blk.Succs) == 0 {
			break
		}
		id = blk.Succs[0].To
	}
	return out
}

func ownedTable(t *testing.T, fn string, vars ...string) *symtab.Table {
	t.Helper()
	tbl := symtab.NewTable(nil)
	tbl.SetCurrentFunction(fn)
	for _, v := range vars {
		s := symtab.NewSymbol(v, symtab.LocalVar, types.PointerToIntVec, 0, fn)
		s.OwnsHeapMemory = true
		tbl.AddSymbol(s)
	}
	tbl.SetCurrentFunction(symtab.GlobalScope)
	return tbl
}

func TestStraightLineFunction(t *testing.T) {
	tbl := symtab.NewTable(nil)
	g := buildOne(t, tbl, "F", &ast.CompoundStatement{Statements: []ast.Stmt{
		assign("a", ast.IntLiteral(1)),
		assign("b", ast.IntLiteral(2)),
	}})

	require.NoError(t, g.Validate())
	entry := g.Block(g.Entry)
	require.Len(t, entry.Statements, 2)
	require.Len(t, entry.Succs, 1)
	require.Equal(t, g.Exit, entry.Succs[0].To)
}

func TestCleanupOnEveryExitPath(t *testing.T) {
	tbl := ownedTable(t, "F", "v")

	// IF c THEN RETURN; <fallthrough return>
	body := &ast.CompoundStatement{Statements: []ast.Stmt{
		&ast.LetStatement{Names: []string{"v"}, Initializers: []ast.Expr{&ast.VecAllocation{Size: ast.IntLiteral(3)}}},
		&ast.IfStatement{Cond: va("c"), Then: &ast.ReturnStatement{}},
	}}
	g := buildOne(t, tbl, "F", body)
	require.NoError(t, g.Validate())

	// Every path into the exit block must free v exactly once.
	exitPaths := 0
	for _, blk := range g.Blocks {
		for _, e := range blk.Succs {
			if e.To == g.Exit {
				exitPaths++
				frees := 0
				for _, s := range blk.Statements {
					if f, ok := s.(*ast.FreeStatement); ok && f.Target.(*ast.VariableAccess).Name == "v" {
						frees++
					}
				}
				require.Equal(t, 1, frees, "path via %s must free v exactly once", blk.ID)
			}
		}
	}
	require.Equal(t, 2, exitPaths)
}

func TestDeferredStatementsRunReversedOnExit(t *testing.T) {
	tbl := symtab.NewTable(nil)
	d1 := assign("log1", ast.IntLiteral(1))
	d2 := assign("log2", ast.IntLiteral(2))
	body := &ast.CompoundStatement{Statements: []ast.Stmt{
		&ast.DeferStatement{Body: d1},
		&ast.DeferStatement{Body: d2},
		assign("x", ast.IntLiteral(0)),
	}}
	g := buildOne(t, tbl, "F", body)
	require.NoError(t, g.Validate())

	// The cleanup block preceding exit holds d2 then d1.
	var cleanup *BasicBlock
	for _, blk := range g.Blocks {
		for _, e := range blk.Succs {
			if e.To == g.Exit {
				cleanup = blk
			}
		}
	}
	require.NotNil(t, cleanup)
	require.Len(t, cleanup.Statements, 2)
	require.Same(t, d2, cleanup.Statements[0])
	require.Same(t, d1, cleanup.Statements[1])
}

func TestWhileLoopShape(t *testing.T) {
	tbl := symtab.NewTable(nil)
	g := buildOne(t, tbl, "F", &ast.WhileStatement{
		Cond: &ast.BinaryOp{Op: ast.OpLt, Left: va("i"), Right: ast.IntLiteral(10)},
		Body: assign("i", &ast.BinaryOp{Op: ast.OpAdd, Left: va("i"), Right: ast.IntLiteral(1)}),
	})
	require.NoError(t, g.Validate())

	// Find the loop-back edge.
	var loopbacks int
	for _, blk := range g.Blocks {
		for _, e := range blk.Succs {
			if e.Kind == EdgeLoopBack {
				loopbacks++
			}
		}
	}
	require.Equal(t, 1, loopbacks)
}

func TestBreakAndLoopTargets(t *testing.T) {
	tbl := symtab.NewTable(nil)
	g := buildOne(t, tbl, "F", &ast.WhileStatement{
		Cond: va("c"),
		Body: &ast.CompoundStatement{Statements: []ast.Stmt{
			&ast.IfStatement{Cond: va("done"), Then: &ast.BreakStatement{}},
			&ast.IfStatement{Cond: va("skip"), Then: &ast.LoopStatement{}},
			assign("x", ast.IntLiteral(1)),
		}},
	})
	require.NoError(t, g.Validate())
}

func TestGotoResolution(t *testing.T) {
	tbl := symtab.NewTable(nil)
	g := buildOne(t, tbl, "F", &ast.CompoundStatement{Statements: []ast.Stmt{
		&ast.GotoStatement{Label: "end"},
		&ast.LabelTargetStatement{Name: "end"},
		assign("x", ast.IntLiteral(1)),
	}})
	require.NoError(t, g.Validate())
}

func TestGotoUnknownLabelFails(t *testing.T) {
	tbl := symtab.NewTable(nil)
	b := NewBuilder(tbl, nil)
	err := b.Build(&ast.Program{Declarations: []ast.Decl{
		&ast.RoutineDecl{Name: "F", Body: &ast.GotoStatement{Label: "nowhere"}},
	}})
	require.Error(t, err)
	var unresolved *UnresolvedLabelError
	require.ErrorAs(t, err, &unresolved)
	require.Equal(t, "nowhere", unresolved.Label)
	require.Equal(t, "F", unresolved.Function)
}

func TestForEachOverConstantVectorUsesConstantLimit(t *testing.T) {
	tbl := symtab.NewTable(nil)
	body := &ast.CompoundStatement{Statements: []ast.Stmt{
		&ast.LetStatement{Names: []string{"v"}, Initializers: []ast.Expr{
			&ast.VecInitializer{Elements: []ast.Expr{ast.IntLiteral(1), ast.IntLiteral(2), ast.IntLiteral(3)}},
		}},
		&ast.ForEachStatement{Var: "e", Collection: va("v"), Body: assign("s", va("e"))},
	}}

	tbl.SetCurrentFunction("F")
	tbl.AddSymbol(symtab.NewSymbol("v", symtab.LocalVar, types.PointerToIntVec, 0, "F"))
	tbl.SetCurrentFunction(symtab.GlobalScope)

	g := buildOne(t, tbl, "F", body)
	require.NoError(t, g.Validate())

	// The loop header's condition compares against the literal 3, not v!-1.
	foundConstLimit := false
	for _, blk := range g.Blocks {
		for _, s := range blk.Statements {
			if cb, ok := s.(*ast.ConditionalBranchStatement); ok {
				if cmp, ok := cb.Cond.(*ast.BinaryOp); ok && cmp.Op == ast.OpLt {
					if lit, ok := cmp.Right.(*ast.NumberLiteral); ok && lit.IntValue == 3 {
						foundConstLimit = true
					}
				}
			}
		}
	}
	require.True(t, foundConstLimit)
}

func TestListForEachShape(t *testing.T) {
	tbl := symtab.NewTable(nil)
	tbl.AddSymbol(symtab.NewSymbol("l", symtab.GlobalVar, types.PointerToIntList, 0, symtab.GlobalScope))

	g := buildOne(t, tbl, "F", &ast.ForEachStatement{
		Var: "e", Collection: va("l"), Body: assign("s", va("e")),
	})
	require.NoError(t, g.Validate())

	// The body must bind e := HD cursor and the advance block cursor := TL cursor.
	var sawHead, sawTail bool
	for _, blk := range g.Blocks {
		for _, s := range blk.Statements {
			if a, ok := s.(*ast.AssignmentStatement); ok {
				if u, ok := a.RHS[0].(*ast.UnaryOp); ok {
					switch u.Op {
					case ast.OpHead:
						sawHead = true
					case ast.OpTail:
						sawTail = true
					}
				}
			}
		}
	}
	require.True(t, sawHead)
	require.True(t, sawTail)
}

func TestReductionLoopSynthesis(t *testing.T) {
	tbl := symtab.NewTable(nil)
	tbl.SetCurrentFunction("F")
	tbl.AddSymbol(symtab.NewSymbol("v", symtab.LocalVar, types.PointerToIntVec, 0, "F"))
	tbl.AddSymbol(symtab.NewSymbol("total", symtab.LocalVar, types.Integer, 0, "F"))
	tbl.SetCurrentFunction(symtab.GlobalScope)

	g := buildOne(t, tbl, "F", &ast.ReductionStatement{
		Op: "SUM", ResultVar: "total", Left: va("v"),
	})
	require.NoError(t, g.Validate())

	// SUM has identity 0: the entry block initializes total := 0.
	entry := g.Block(g.Entry)
	init := entry.Statements[0].(*ast.AssignmentStatement)
	require.Equal(t, "total", init.LHS[0].(*ast.VariableAccess).Name)
	require.Equal(t, int64(0), init.RHS[0].(*ast.NumberLiteral).IntValue)

	// A loop exists.
	loopbacks := 0
	for _, blk := range g.Blocks {
		for _, e := range blk.Succs {
			if e.Kind == EdgeLoopBack {
				loopbacks++
			}
		}
	}
	require.Equal(t, 1, loopbacks)
}

func TestPackedReductionKeptForNeon(t *testing.T) {
	tbl := symtab.NewTable(nil)
	tbl.SetCurrentFunction("F")
	tbl.AddSymbol(symtab.NewSymbol("p", symtab.LocalVar, types.Pair, 0, "F"))
	tbl.SetCurrentFunction(symtab.GlobalScope)

	red := &ast.ReductionStatement{Op: "MIN", ResultVar: "m", Left: va("p")}
	g := buildOne(t, tbl, "F", red)
	require.NoError(t, g.Validate())

	// The statement survives intact for the NEON emitter.
	kept := false
	for _, blk := range g.Blocks {
		for _, s := range blk.Statements {
			if s == ast.Stmt(red) {
				kept = true
			}
		}
	}
	require.True(t, kept)
}

func TestUnknownReducerFails(t *testing.T) {
	tbl := symtab.NewTable(nil)
	b := NewBuilder(tbl, nil)
	err := b.Build(&ast.Program{Declarations: []ast.Decl{
		&ast.RoutineDecl{Name: "F", Body: &ast.ReductionStatement{Op: "BOGUS", ResultVar: "r", Left: va("v")}},
	}})
	require.Error(t, err)
}

func TestSwitchonShape(t *testing.T) {
	tbl := symtab.NewTable(nil)
	g := buildOne(t, tbl, "F", &ast.SwitchonStatement{
		Value: va("x"),
		Cases: []*ast.CaseClause{
			{Value: ast.IntLiteral(1), Body: &ast.EndcaseStatement{}},
			{Value: ast.IntLiteral(2), Body: assign("y", ast.IntLiteral(2))},
		},
		Default: assign("y", ast.IntLiteral(0)),
	})
	require.NoError(t, g.Validate())
}

func TestBlockScopeCleanupInline(t *testing.T) {
	tbl := ownedTable(t, "F", "tmp")

	body := &ast.CompoundStatement{Statements: []ast.Stmt{
		&ast.BlockStatement{Statements: []ast.Stmt{
			&ast.LetStatement{Names: []string{"tmp"}, Initializers: []ast.Expr{&ast.VecAllocation{Size: ast.IntLiteral(2)}}},
			assign("x", ast.IntLiteral(1)),
		}},
		assign("y", ast.IntLiteral(2)),
	}}
	g := buildOne(t, tbl, "F", body)
	require.NoError(t, g.Validate())

	frees := collectFrees(g, g.Entry)
	require.Equal(t, []string{"tmp"}, frees)
}

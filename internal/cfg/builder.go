package cfg

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/beagle-lang/beagle/internal/analysis"
	"github.com/beagle-lang/beagle/internal/ast"
	"github.com/beagle-lang/beagle/internal/reduce"
	"github.com/beagle-lang/beagle/internal/symtab"
	"github.com/beagle-lang/beagle/internal/types"
)

// UnresolvedLabelError reports a goto to a label the function never defines.
type UnresolvedLabelError struct {
	Label    string
	Function string
}

// Error implements error.
func (e *UnresolvedLabelError) Error() string {
	return fmt.Sprintf("goto to unresolved label '%s' in function '%s'", e.Label, e.Function)
}

// jumpTarget is a pending BREAK/LOOP/ENDCASE destination together with the
// block-variable frame depth at loop entry, so the right scopes are cleaned
// on the way out.
type jumpTarget struct {
	block string
	depth int
}

type pendingGoto struct {
	stmt *ast.GotoStatement
	from string
}

// Builder constructs one Graph per function. It owns automatic cleanup
// placement: heap-owning locals are released on every exit path, and
// deferred statements run in reverse order on every function exit.
type Builder struct {
	table  *symtab.Table
	logger *zap.Logger

	cfgs map[string]*Graph

	g       *Graph
	cur     *BasicBlock
	counter int
	fn      string

	breakTargets   []jumpTarget
	loopTargets    []jumpTarget
	endcaseTargets []jumpTarget

	deferred     []ast.Stmt
	gotos        []pendingGoto
	labelTargets map[string]string

	// blockVars tracks the variables declared per block nesting level, in
	// declaration order, for cleanup synthesis.
	blockVars [][]string

	// constVecSizes maps variables to compile-time vector sizes so counted
	// FOR-EACH loops over them avoid the runtime length read.
	constVecSizes map[string]int

	synthCounter int
	errs         []error
}

// NewBuilder returns a CFG builder over the given symbol table.
func NewBuilder(table *symtab.Table, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{table: table, logger: logger, cfgs: make(map[string]*Graph)}
}

// Graphs returns the function-name -> graph map.
func (b *Builder) Graphs() map[string]*Graph { return b.cfgs }

// Build constructs CFGs for every function in the program. A fatal error in
// one function (unresolved goto, unknown reducer, structural violation) does
// not stop the others; the returned error aggregates all of them.
func (b *Builder) Build(prog *ast.Program) error {
	for _, d := range prog.Declarations {
		switch d := d.(type) {
		case *ast.FunctionDecl:
			b.buildFunction(d.Name, d.Body)
		case *ast.RoutineDecl:
			b.buildFunction(d.Name, d.Body)
		case *ast.ClassDecl:
			for _, m := range d.Methods {
				switch m := m.(type) {
				case *ast.FunctionDecl:
					b.buildFunction(m.Name, m.Body)
				case *ast.RoutineDecl:
					b.buildFunction(m.Name, m.Body)
				}
			}
		}
	}
	return multierr.Combine(b.errs...)
}

func (b *Builder) buildFunction(name string, body ast.Stmt) {
	b.fn = name
	b.counter = 0
	b.breakTargets = b.breakTargets[:0]
	b.loopTargets = b.loopTargets[:0]
	b.endcaseTargets = b.endcaseTargets[:0]
	b.deferred = nil
	b.gotos = nil
	b.labelTargets = make(map[string]string)
	b.blockVars = [][]string{nil} // function-level frame
	b.constVecSizes = make(map[string]int)

	b.g = &Graph{FunctionName: name, Blocks: make(map[string]*BasicBlock)}
	entry := b.newBlock()
	b.g.Entry = entry.ID
	exit := b.newBlock()
	exit.IsExit = true
	b.g.Exit = exit.ID
	b.cur = entry

	b.visitStmt(body)

	// Fall-off-the-end exit runs the same cleanup as an explicit return.
	if b.cur != nil {
		b.exitFunction()
	}

	b.resolveGotos()

	if err := b.g.Validate(); err != nil {
		b.errs = append(b.errs, err)
	}
	b.cfgs[name] = b.g
	b.logger.Debug("built cfg",
		zap.String("function", name), zap.Int("blocks", len(b.g.Blocks)))
}

func (b *Builder) newBlock() *BasicBlock {
	id := fmt.Sprintf("BB_%d", b.counter)
	b.counter++
	blk := &BasicBlock{ID: id}
	b.g.Blocks[id] = blk
	return blk
}

// startBlockAfter ends the current block with a fall-through edge into a
// fresh one.
func (b *Builder) startBlockAfter() *BasicBlock {
	next := b.newBlock()
	if b.cur != nil {
		b.g.AddEdge(b.cur.ID, next.ID, EdgeFallThrough)
	}
	b.cur = next
	return next
}

func (b *Builder) appendStmt(s ast.Stmt) {
	if b.cur == nil {
		// Statement after a terminator: it gets its own block, which
		// validation will report as unreachable.
		b.cur = b.newBlock()
	}
	b.cur.Statements = append(b.cur.Statements, s)
}

func (b *Builder) declareInBlock(names ...string) {
	top := len(b.blockVars) - 1
	b.blockVars[top] = append(b.blockVars[top], names...)
}

// releaseStmts returns the synthetic release statements for one frame's
// heap-owning variables, in reverse declaration order.
func (b *Builder) releaseStmts(frame []string) []ast.Stmt {
	var out []ast.Stmt
	for i := len(frame) - 1; i >= 0; i-- {
		name := frame[i]
		if sym, ok := b.table.LookupIn(name, b.fn); ok && sym.OwnsHeapMemory {
			out = append(out, &ast.FreeStatement{Target: &ast.VariableAccess{Name: name}})
		}
	}
	return out
}

// cleanupChainTo routes control from the current block through a synthetic
// cleanup block into target. Frames deeper than downToDepth are released,
// innermost first. When includeDeferred is set, the function's deferred
// statements are spliced in after the releases, in reverse order.
func (b *Builder) cleanupChainTo(target string, downToDepth int, includeDeferred bool, kind EdgeKind) {
	if b.cur == nil {
		// Dead control flow; give it a block so validation reports it.
		b.cur = b.newBlock()
	}
	var stmts []ast.Stmt
	for d := len(b.blockVars) - 1; d >= downToDepth; d-- {
		stmts = append(stmts, b.releaseStmts(b.blockVars[d])...)
	}
	if includeDeferred {
		for i := len(b.deferred) - 1; i >= 0; i-- {
			stmts = append(stmts, b.deferred[i])
		}
	}

	if len(stmts) == 0 {
		b.g.AddEdge(b.cur.ID, target, kind)
		b.cur = nil
		return
	}
	cleanup := b.newBlock()
	cleanup.Statements = stmts
	b.g.AddEdge(b.cur.ID, cleanup.ID, EdgeCleanup)
	b.g.AddEdge(cleanup.ID, target, kind)
	b.cur = nil
}

// exitFunction releases every live scope and runs the deferred statements,
// then transfers to the exit block.
func (b *Builder) exitFunction() {
	b.cleanupChainTo(b.g.Exit, 0, true, EdgeFallThrough)
}

func (b *Builder) visitStmt(s ast.Stmt) {
	switch s := s.(type) {
	case nil:
	case *ast.CompoundStatement:
		for _, sub := range s.Statements {
			b.visitStmt(sub)
		}
	case *ast.BlockStatement:
		b.blockVars = append(b.blockVars, nil)
		for _, sub := range s.Statements {
			b.visitStmt(sub)
		}
		// Normal block exit: release this frame's owned variables in place.
		top := len(b.blockVars) - 1
		if b.cur != nil {
			b.cur.Statements = append(b.cur.Statements, b.releaseStmts(b.blockVars[top])...)
		}
		b.blockVars = b.blockVars[:top]
	case *ast.LetStatement:
		b.declareInBlock(s.Names...)
		b.noteConstSizes(s)
		b.appendStmt(s)
	case *ast.DeferStatement:
		b.deferred = append(b.deferred, s.Body)
	case *ast.IfStatement:
		b.buildConditional(s.Cond, s.Then, nil)
	case *ast.UnlessStatement:
		b.buildConditional(&ast.UnaryOp{Op: ast.OpNot, Operand: s.Cond}, s.Then, nil)
	case *ast.TestStatement:
		b.buildConditional(s.Cond, s.Then, s.Else)
	case *ast.WhileStatement:
		b.buildLoop(s.Cond, s.Body)
	case *ast.UntilStatement:
		b.buildLoop(&ast.UnaryOp{Op: ast.OpNot, Operand: s.Cond}, s.Body)
	case *ast.RepeatStatement:
		b.buildRepeat(s)
	case *ast.ForStatement:
		b.buildFor(s)
	case *ast.ForEachStatement:
		b.buildForEach(s)
	case *ast.SwitchonStatement:
		b.buildSwitchon(s)
	case *ast.GotoStatement:
		b.appendStmt(s)
		// Release the innermost frame on the way; the edge is wired once all
		// labels are known.
		if b.cur != nil {
			b.cur.Statements = append(b.cur.Statements, b.releaseStmts(b.blockVars[len(b.blockVars)-1])...)
			b.gotos = append(b.gotos, pendingGoto{stmt: s, from: b.cur.ID})
		}
		b.cur = nil
	case *ast.LabelTargetStatement:
		blk := b.newBlock()
		if b.cur != nil {
			b.g.AddEdge(b.cur.ID, blk.ID, EdgeFallThrough)
		}
		b.labelTargets[s.Name] = blk.ID
		b.cur = blk
	case *ast.ReturnStatement, *ast.FinishStatement:
		b.appendStmt(s)
		b.exitFunction()
	case *ast.ResultisStatement:
		b.appendStmt(s)
		b.exitFunction()
	case *ast.BreakStatement:
		if n := len(b.breakTargets); n > 0 {
			t := b.breakTargets[n-1]
			b.cleanupChainTo(t.block, t.depth, false, EdgeFallThrough)
		}
	case *ast.LoopStatement:
		if n := len(b.loopTargets); n > 0 {
			t := b.loopTargets[n-1]
			b.cleanupChainTo(t.block, t.depth, false, EdgeLoopBack)
		}
	case *ast.EndcaseStatement:
		if n := len(b.endcaseTargets); n > 0 {
			t := b.endcaseTargets[n-1]
			b.cleanupChainTo(t.block, t.depth, false, EdgeFallThrough)
		}
	case *ast.ReductionStatement:
		b.buildReduction(s)
	default:
		b.appendStmt(s)
	}
}

// noteConstSizes remembers compile-time vector sizes for FOR-EACH loops.
func (b *Builder) noteConstSizes(let *ast.LetStatement) {
	for i, name := range let.Names {
		if i >= len(let.Initializers) {
			continue
		}
		switch init := let.Initializers[i].(type) {
		case *ast.VecInitializer:
			b.constVecSizes[name] = len(init.Elements)
		case *ast.VecAllocation:
			if n, ok := ast.LiteralInt(init.Size); ok {
				b.constVecSizes[name] = int(n)
			}
		}
	}
}

// buildConditional splits on a condition: the current block ends with a
// conditional-branch terminator, the arms get their own blocks, and control
// rejoins in a fresh block.
func (b *Builder) buildConditional(cond ast.Expr, then, els ast.Stmt) {
	if b.cur == nil {
		b.cur = b.newBlock()
	}
	head := b.cur
	head.Statements = append(head.Statements, &ast.ConditionalBranchStatement{Cond: cond, IfTrue: true})

	join := b.newBlock()

	thenBlk := b.newBlock()
	b.g.AddEdge(head.ID, thenBlk.ID, EdgeCondTrue)
	b.cur = thenBlk
	b.visitStmt(then)
	if b.cur != nil {
		b.g.AddEdge(b.cur.ID, join.ID, EdgeFallThrough)
	}

	if els != nil {
		elseBlk := b.newBlock()
		b.g.AddEdge(head.ID, elseBlk.ID, EdgeCondFalse)
		b.cur = elseBlk
		b.visitStmt(els)
		if b.cur != nil {
			b.g.AddEdge(b.cur.ID, join.ID, EdgeFallThrough)
		}
	} else {
		b.g.AddEdge(head.ID, join.ID, EdgeCondFalse)
	}

	// Both arms left the function: there is no join point.
	if len(join.Preds) == 0 {
		delete(b.g.Blocks, join.ID)
		b.cur = nil
		return
	}
	b.cur = join
}

// buildLoop constructs the header/body/exit shape shared by WHILE and UNTIL.
func (b *Builder) buildLoop(cond ast.Expr, body ast.Stmt) {
	header := b.startBlockAfter()
	header.Statements = append(header.Statements, &ast.ConditionalBranchStatement{Cond: cond, IfTrue: true})

	exit := b.newBlock()
	bodyBlk := b.newBlock()
	b.g.AddEdge(header.ID, bodyBlk.ID, EdgeCondTrue)
	b.g.AddEdge(header.ID, exit.ID, EdgeCondFalse)

	depth := len(b.blockVars)
	b.breakTargets = append(b.breakTargets, jumpTarget{block: exit.ID, depth: depth})
	b.loopTargets = append(b.loopTargets, jumpTarget{block: header.ID, depth: depth})

	b.cur = bodyBlk
	b.visitStmt(body)
	if b.cur != nil {
		b.g.AddEdge(b.cur.ID, header.ID, EdgeLoopBack)
	}

	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.loopTargets = b.loopTargets[:len(b.loopTargets)-1]
	b.cur = exit
}

func (b *Builder) buildRepeat(s *ast.RepeatStatement) {
	bodyBlk := b.startBlockAfter()
	exit := b.newBlock()

	depth := len(b.blockVars)
	b.breakTargets = append(b.breakTargets, jumpTarget{block: exit.ID, depth: depth})
	b.loopTargets = append(b.loopTargets, jumpTarget{block: bodyBlk.ID, depth: depth})

	b.visitStmt(s.Body)

	if b.cur != nil {
		if s.Cond == nil {
			// Plain REPEAT loops forever; only BREAK leaves it.
			b.g.AddEdge(b.cur.ID, bodyBlk.ID, EdgeLoopBack)
		} else {
			cond := s.Cond
			if !s.WhileFlag {
				cond = &ast.UnaryOp{Op: ast.OpNot, Operand: cond}
			}
			b.cur.Statements = append(b.cur.Statements, &ast.ConditionalBranchStatement{Cond: cond, IfTrue: true})
			b.g.AddEdge(b.cur.ID, bodyBlk.ID, EdgeLoopBack)
			b.g.AddEdge(b.cur.ID, exit.ID, EdgeCondFalse)
		}
	}

	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.loopTargets = b.loopTargets[:len(b.loopTargets)-1]
	if len(exit.Preds) == 0 {
		// The loop never falls out (plain REPEAT with no BREAK).
		delete(b.g.Blocks, exit.ID)
		b.cur = nil
		return
	}
	b.cur = exit
}

func (b *Builder) buildFor(s *ast.ForStatement) {
	step := s.Step
	if step == nil {
		step = ast.IntLiteral(1)
	}

	// Initialization in the current block.
	b.appendStmt(&ast.AssignmentStatement{
		LHS: []ast.Expr{&ast.VariableAccess{Name: s.Var}},
		RHS: []ast.Expr{s.Start},
	})

	header := b.startBlockAfter()
	header.Statements = append(header.Statements, &ast.ConditionalBranchStatement{
		Cond:   &ast.BinaryOp{Op: ast.OpLe, Left: &ast.VariableAccess{Name: s.Var}, Right: s.End},
		IfTrue: true,
	})

	exit := b.newBlock()
	bodyBlk := b.newBlock()
	incr := b.newBlock()
	b.g.AddEdge(header.ID, bodyBlk.ID, EdgeCondTrue)
	b.g.AddEdge(header.ID, exit.ID, EdgeCondFalse)

	incr.Statements = append(incr.Statements, &ast.AssignmentStatement{
		LHS: []ast.Expr{&ast.VariableAccess{Name: s.Var}},
		RHS: []ast.Expr{&ast.BinaryOp{Op: ast.OpAdd, Left: &ast.VariableAccess{Name: s.Var}, Right: step}},
	})
	b.g.AddEdge(incr.ID, header.ID, EdgeLoopBack)

	depth := len(b.blockVars)
	b.breakTargets = append(b.breakTargets, jumpTarget{block: exit.ID, depth: depth})
	b.loopTargets = append(b.loopTargets, jumpTarget{block: incr.ID, depth: depth})

	b.cur = bodyBlk
	b.visitStmt(s.Body)
	if b.cur != nil {
		b.g.AddEdge(b.cur.ID, incr.ID, EdgeFallThrough)
	}

	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.loopTargets = b.loopTargets[:len(b.loopTargets)-1]
	b.cur = exit
}

func (b *Builder) buildForEach(s *ast.ForEachStatement) {
	collType := analysis.InferType(s.Collection, b.table, b.fn, nil)
	switch {
	case collType.Has(types.Vec):
		b.buildVectorForEach(s)
	case len(s.DestructureNames) > 0:
		b.buildDestructuringListForEach(s)
	default:
		b.buildListForEach(s)
	}
}

// buildVectorForEach lowers FOREACH over a vector to a counted loop. A
// vector initialized from a compile-time-sized allocation uses the constant
// limit directly, avoiding the runtime length read.
func (b *Builder) buildVectorForEach(s *ast.ForEachStatement) {
	idx := b.synthName("idx")
	b.registerSynth(idx, types.Integer)

	var limit ast.Expr
	if v, ok := s.Collection.(*ast.VariableAccess); ok {
		if n, known := b.constVecSizes[v.Name]; known {
			limit = ast.IntLiteral(int64(n))
		}
	}
	if limit == nil {
		// v ! -1 reads the length word.
		limit = &ast.VectorAccess{Vector: s.Collection, Index: ast.IntLiteral(-1)}
	}

	b.appendStmt(&ast.AssignmentStatement{
		LHS: []ast.Expr{&ast.VariableAccess{Name: idx}},
		RHS: []ast.Expr{ast.IntLiteral(0)},
	})

	header := b.startBlockAfter()
	header.Statements = append(header.Statements, &ast.ConditionalBranchStatement{
		Cond:   &ast.BinaryOp{Op: ast.OpLt, Left: &ast.VariableAccess{Name: idx}, Right: limit},
		IfTrue: true,
	})

	exit := b.newBlock()
	bodyBlk := b.newBlock()
	incr := b.newBlock()
	b.g.AddEdge(header.ID, bodyBlk.ID, EdgeCondTrue)
	b.g.AddEdge(header.ID, exit.ID, EdgeCondFalse)

	bodyBlk.Statements = append(bodyBlk.Statements, &ast.AssignmentStatement{
		LHS: []ast.Expr{&ast.VariableAccess{Name: s.Var}},
		RHS: []ast.Expr{&ast.VectorAccess{Vector: ast.CloneExpr(s.Collection), Index: &ast.VariableAccess{Name: idx}}},
	})

	incr.Statements = append(incr.Statements, &ast.AssignmentStatement{
		LHS: []ast.Expr{&ast.VariableAccess{Name: idx}},
		RHS: []ast.Expr{&ast.BinaryOp{Op: ast.OpAdd, Left: &ast.VariableAccess{Name: idx}, Right: ast.IntLiteral(1)}},
	})
	b.g.AddEdge(incr.ID, header.ID, EdgeLoopBack)

	depth := len(b.blockVars)
	b.breakTargets = append(b.breakTargets, jumpTarget{block: exit.ID, depth: depth})
	b.loopTargets = append(b.loopTargets, jumpTarget{block: incr.ID, depth: depth})

	b.cur = bodyBlk
	b.visitStmt(s.Body)
	if b.cur != nil {
		b.g.AddEdge(b.cur.ID, incr.ID, EdgeFallThrough)
	}

	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.loopTargets = b.loopTargets[:len(b.loopTargets)-1]
	b.cur = exit
}

// buildListForEach lowers FOREACH over a list to the standard
// current = head; while current ~= NIL do { body; current = TL current }.
func (b *Builder) buildListForEach(s *ast.ForEachStatement) {
	cur := b.synthName("cursor")
	b.registerSynth(cur, types.PointerToListNode)

	b.appendStmt(&ast.AssignmentStatement{
		LHS: []ast.Expr{&ast.VariableAccess{Name: cur}},
		RHS: []ast.Expr{s.Collection},
	})

	header := b.startBlockAfter()
	header.Statements = append(header.Statements, &ast.ConditionalBranchStatement{
		Cond:   &ast.BinaryOp{Op: ast.OpNe, Left: &ast.VariableAccess{Name: cur}, Right: ast.IntLiteral(0)},
		IfTrue: true,
	})

	exit := b.newBlock()
	bodyBlk := b.newBlock()
	advance := b.newBlock()
	b.g.AddEdge(header.ID, bodyBlk.ID, EdgeCondTrue)
	b.g.AddEdge(header.ID, exit.ID, EdgeCondFalse)

	bodyBlk.Statements = append(bodyBlk.Statements, &ast.AssignmentStatement{
		LHS: []ast.Expr{&ast.VariableAccess{Name: s.Var}},
		RHS: []ast.Expr{&ast.UnaryOp{Op: ast.OpHead, Operand: &ast.VariableAccess{Name: cur}}},
	})

	advance.Statements = append(advance.Statements, &ast.AssignmentStatement{
		LHS: []ast.Expr{&ast.VariableAccess{Name: cur}},
		RHS: []ast.Expr{&ast.UnaryOp{Op: ast.OpTail, Operand: &ast.VariableAccess{Name: cur}}},
	})
	b.g.AddEdge(advance.ID, header.ID, EdgeLoopBack)

	depth := len(b.blockVars)
	b.breakTargets = append(b.breakTargets, jumpTarget{block: exit.ID, depth: depth})
	b.loopTargets = append(b.loopTargets, jumpTarget{block: advance.ID, depth: depth})

	b.cur = bodyBlk
	b.visitStmt(s.Body)
	if b.cur != nil {
		b.g.AddEdge(b.cur.ID, advance.ID, EdgeFallThrough)
	}

	b.breakTargets = b.breakTargets[:len(b.breakTargets)-1]
	b.loopTargets = b.loopTargets[:len(b.loopTargets)-1]
	b.cur = exit
}

// buildDestructuringListForEach unpacks the loop element's components into
// the destructure names at the head of each iteration.
func (b *Builder) buildDestructuringListForEach(s *ast.ForEachStatement) {
	elem := b.synthName("elem")
	b.registerSynth(elem, types.Pair)

	inner := &ast.CompoundStatement{}
	components := []ast.PackComponent{
		ast.ComponentFirst, ast.ComponentSecond, ast.ComponentThird, ast.ComponentFourth,
	}
	for i, name := range s.DestructureNames {
		if i >= len(components) {
			break
		}
		inner.Statements = append(inner.Statements, &ast.AssignmentStatement{
			LHS: []ast.Expr{&ast.VariableAccess{Name: name}},
			RHS: []ast.Expr{&ast.PackAccess{Pack: &ast.VariableAccess{Name: elem}, Component: components[i]}},
		})
	}
	inner.Statements = append(inner.Statements, s.Body)

	b.buildListForEach(&ast.ForEachStatement{
		Var:        elem,
		Collection: s.Collection,
		Body:       inner,
	})
}

func (b *Builder) buildSwitchon(s *ast.SwitchonStatement) {
	if b.cur == nil {
		b.cur = b.newBlock()
	}
	join := b.newBlock()
	depth := len(b.blockVars)
	b.endcaseTargets = append(b.endcaseTargets, jumpTarget{block: join.ID, depth: depth})

	// A chain of test blocks, one per case, falling through to the default.
	test := b.cur
	for _, c := range s.Cases {
		test.Statements = append(test.Statements, &ast.ConditionalBranchStatement{
			Cond:   &ast.BinaryOp{Op: ast.OpEq, Left: ast.CloneExpr(s.Value), Right: c.Value},
			IfTrue: true,
		})
		caseBlk := b.newBlock()
		nextTest := b.newBlock()
		b.g.AddEdge(test.ID, caseBlk.ID, EdgeCondTrue)
		b.g.AddEdge(test.ID, nextTest.ID, EdgeCondFalse)

		b.cur = caseBlk
		b.visitStmt(c.Body)
		if b.cur != nil {
			b.g.AddEdge(b.cur.ID, join.ID, EdgeFallThrough)
		}
		test = nextTest
	}

	b.cur = test
	if s.Default != nil {
		b.visitStmt(s.Default)
	}
	if b.cur != nil {
		b.g.AddEdge(b.cur.ID, join.ID, EdgeFallThrough)
	}

	b.endcaseTargets = b.endcaseTargets[:len(b.endcaseTargets)-1]
	b.cur = join
}

// buildReduction lowers a reduction statement. Packed collections keep the
// statement intact for the NEON emitter; everything else becomes a counted
// loop applying the reducer's scalar operator.
func (b *Builder) buildReduction(s *ast.ReductionStatement) {
	r := reduce.New(s.Op)
	if r == nil {
		b.errs = append(b.errs, &reduce.UnknownReducerError{Name: s.Op})
		return
	}

	collType := analysis.InferType(s.Left, b.table, b.fn, nil)
	if collType.IsPacked() || reduce.IsPairwise(r.ReductionCode()) {
		// The emitter lowers this directly via the NEON registry.
		b.appendStmt(s)
		return
	}

	idx := b.synthName("idx")
	b.registerSynth(idx, types.Integer)
	result := &ast.VariableAccess{Name: s.ResultVar}
	elem := &ast.VectorAccess{Vector: ast.CloneExpr(s.Left), Index: &ast.VariableAccess{Name: idx}}

	// Initialization: identity element when the reducer has one, otherwise
	// the first element with the loop starting at 1.
	startIdx := int64(0)
	if init := r.InitialValue(); init != nil {
		b.appendStmt(&ast.AssignmentStatement{LHS: []ast.Expr{result}, RHS: []ast.Expr{init}})
	} else {
		b.appendStmt(&ast.AssignmentStatement{
			LHS: []ast.Expr{result},
			RHS: []ast.Expr{&ast.VectorAccess{Vector: ast.CloneExpr(s.Left), Index: ast.IntLiteral(0)}},
		})
		startIdx = 1
	}
	b.appendStmt(&ast.AssignmentStatement{
		LHS: []ast.Expr{&ast.VariableAccess{Name: idx}},
		RHS: []ast.Expr{ast.IntLiteral(startIdx)},
	})

	limit := &ast.VectorAccess{Vector: ast.CloneExpr(s.Left), Index: ast.IntLiteral(-1)}
	header := b.startBlockAfter()
	header.Statements = append(header.Statements, &ast.ConditionalBranchStatement{
		Cond:   &ast.BinaryOp{Op: ast.OpLt, Left: &ast.VariableAccess{Name: idx}, Right: limit},
		IfTrue: true,
	})

	exit := b.newBlock()
	bodyBlk := b.newBlock()
	b.g.AddEdge(header.ID, bodyBlk.ID, EdgeCondTrue)
	b.g.AddEdge(header.ID, exit.ID, EdgeCondFalse)

	// result := result OP elem; MIN/MAX select via a conditional expression.
	var update ast.Expr
	switch r.ScalarOperator() {
	case ast.OpLt, ast.OpGt:
		update = &ast.ConditionalExpression{
			Cond: &ast.BinaryOp{Op: r.ScalarOperator(), Left: ast.CloneExpr(elem), Right: ast.CloneExpr(result)},
			Then: ast.CloneExpr(elem),
			Else: ast.CloneExpr(result),
		}
	default:
		update = &ast.BinaryOp{Op: r.ScalarOperator(), Left: ast.CloneExpr(result), Right: ast.CloneExpr(elem)}
	}
	bodyBlk.Statements = append(bodyBlk.Statements,
		&ast.AssignmentStatement{LHS: []ast.Expr{ast.CloneExpr(result)}, RHS: []ast.Expr{update}},
		&ast.AssignmentStatement{
			LHS: []ast.Expr{&ast.VariableAccess{Name: idx}},
			RHS: []ast.Expr{&ast.BinaryOp{Op: ast.OpAdd, Left: &ast.VariableAccess{Name: idx}, Right: ast.IntLiteral(1)}},
		})
	b.g.AddEdge(bodyBlk.ID, header.ID, EdgeLoopBack)

	b.cur = exit
}

func (b *Builder) synthName(kind string) string {
	name := fmt.Sprintf("_cfg_%s_%d", kind, b.synthCounter)
	b.synthCounter++
	return name
}

func (b *Builder) registerSynth(name string, t types.VarType) {
	prev := b.table.CurrentFunction()
	b.table.SetCurrentFunction(b.fn)
	b.table.AddSymbol(symtab.NewSymbol(name, symtab.LocalVar, t, b.table.ScopeLevel(), b.fn))
	b.table.SetCurrentFunction(prev)
	b.declareInBlock(name)
}

// resolveGotos wires edges for every pending goto once all labels are known.
func (b *Builder) resolveGotos() {
	for _, g := range b.gotos {
		target, ok := b.labelTargets[g.stmt.Label]
		if !ok {
			b.errs = append(b.errs, &UnresolvedLabelError{Label: g.stmt.Label, Function: b.fn})
			continue
		}
		b.g.AddEdge(g.from, target, EdgeFallThrough)
	}
}

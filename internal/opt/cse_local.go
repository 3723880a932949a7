package opt

import (
	"strings"

	"go.uber.org/zap"

	"github.com/beagle-lang/beagle/internal/analysis"
	"github.com/beagle-lang/beagle/internal/ast"
	"github.com/beagle-lang/beagle/internal/symtab"
)

// LocalCSEPass eliminates common subexpressions statement by statement. The
// hoisted assignment is inserted immediately before the statement that uses
// the redundant expression, and available expressions naming a variable are
// invalidated whenever that variable is assigned.
//
// Available expressions are NOT invalidated by calls with side effects; this
// matches the reference behavior and is pinned by a test.
type LocalCSEPass struct {
	table    *symtab.Table
	analyzer *analysis.Analyzer
	factory  *analysis.TempFactory
	logger   *zap.Logger

	fn        string
	counts    map[string]int
	available map[string]string
}

// NewLocalCSEPass returns the statement-local CSE pass.
func NewLocalCSEPass(table *symtab.Table, analyzer *analysis.Analyzer, factory *analysis.TempFactory, logger *zap.Logger) *LocalCSEPass {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalCSEPass{table: table, analyzer: analyzer, factory: factory, logger: logger}
}

// Run transforms every function and routine in the program.
func (p *LocalCSEPass) Run(prog *ast.Program) {
	for _, d := range prog.Declarations {
		switch d := d.(type) {
		case *ast.FunctionDecl:
			p.runFunction(d.Name, d.Body)
		case *ast.RoutineDecl:
			p.runFunction(d.Name, d.Body)
		case *ast.ClassDecl:
			for _, m := range d.Methods {
				switch m := m.(type) {
				case *ast.FunctionDecl:
					p.runFunction(m.Name, m.Body)
				case *ast.RoutineDecl:
					p.runFunction(m.Name, m.Body)
				}
			}
		}
	}
}

func (p *LocalCSEPass) runFunction(name string, body ast.Stmt) {
	if body == nil {
		return
	}
	p.fn = name
	p.counts = make(map[string]int)
	p.available = make(map[string]string)
	countBinaryOps(body, p.counts)
	p.processStmt(body)
}

// processStmt rewrites a statement in place, descending into structured
// statements so their statement lists are processed too. The available map
// deliberately persists across statements and nested blocks.
func (p *LocalCSEPass) processStmt(s ast.Stmt) {
	switch s := s.(type) {
	case nil:
	case *ast.CompoundStatement:
		s.Statements = p.processList(s.Statements)
	case *ast.BlockStatement:
		s.Statements = p.processList(s.Statements)
	case *ast.IfStatement:
		p.processStmt(s.Then)
	case *ast.UnlessStatement:
		p.processStmt(s.Then)
	case *ast.TestStatement:
		p.processStmt(s.Then)
		p.processStmt(s.Else)
	case *ast.WhileStatement:
		p.processStmt(s.Body)
	case *ast.UntilStatement:
		p.processStmt(s.Body)
	case *ast.RepeatStatement:
		p.processStmt(s.Body)
	case *ast.ForStatement:
		p.processStmt(s.Body)
	case *ast.ForEachStatement:
		p.processStmt(s.Body)
	case *ast.SwitchonStatement:
		for _, c := range s.Cases {
			p.processStmt(c.Body)
		}
		p.processStmt(s.Default)
	}
}

// processList rewrites one statement list, inserting hoisted assignments
// before the statements that need them.
func (p *LocalCSEPass) processList(stmts []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		var pending []ast.Stmt

		switch s.(type) {
		case *ast.CompoundStatement, *ast.BlockStatement,
			*ast.IfStatement, *ast.UnlessStatement, *ast.TestStatement,
			*ast.WhileStatement, *ast.UntilStatement, *ast.RepeatStatement,
			*ast.ForStatement, *ast.ForEachStatement, *ast.SwitchonStatement:
			p.processStmt(s)
		default:
			metrics := p.analyzer.Metrics(p.fn)
			ast.RewriteExprs(s, func(e ast.Expr) ast.Expr {
				b, ok := e.(*ast.BinaryOp)
				if !ok {
					return e
				}
				key := canonicalKey(b)
				if p.counts[key] <= 1 {
					return e
				}
				if temp, ok := p.available[key]; ok {
					return &ast.VariableAccess{Name: temp}
				}
				typ := analysis.InferType(b, p.table, p.fn, metrics)
				temp := p.factory.Create(p.fn, typ, p.table, metrics)
				p.available[key] = temp
				pending = append(pending, &ast.AssignmentStatement{
					LHS: []ast.Expr{&ast.VariableAccess{Name: temp}},
					RHS: []ast.Expr{ast.CloneExpr(b)},
				})
				return &ast.VariableAccess{Name: temp}
			})
		}

		out = append(out, pending...)
		out = append(out, s)

		for _, name := range assignedNames(s) {
			p.invalidate(name)
		}
	}
	return out
}

// invalidate drops every available expression whose canonical key names the
// assigned variable.
func (p *LocalCSEPass) invalidate(variable string) {
	needle := "var:" + variable
	for _, key := range sortedKeys(p.available) {
		if keyNamesVariable(key, needle) {
			p.logger.Debug("invalidated expression",
				zap.String("key", key), zap.String("variable", variable))
			delete(p.available, key)
		}
	}
}

// keyNamesVariable reports whether needle ("var:<name>") occurs in key as a
// whole token, not as a prefix of a longer variable name.
func keyNamesVariable(key, needle string) bool {
	for i := 0; ; {
		j := strings.Index(key[i:], needle)
		if j < 0 {
			return false
		}
		end := i + j + len(needle)
		if end == len(key) || key[end] == ' ' || key[end] == ')' {
			return true
		}
		i = end
	}
}

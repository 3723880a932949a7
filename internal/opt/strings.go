package opt

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/beagle-lang/beagle/internal/analysis"
	"github.com/beagle-lang/beagle/internal/ast"
	"github.com/beagle-lang/beagle/internal/symtab"
	"github.com/beagle-lang/beagle/internal/types"
)

// StringTable assigns rodata labels to string literal values. Identical
// values share one label program-wide.
type StringTable struct {
	labels  map[string]string
	ordered []string
	counter int
}

// NewStringTable returns an empty table.
func NewStringTable() *StringTable {
	return &StringTable{labels: make(map[string]string)}
}

// GetOrCreateLabel returns the label for a string value, minting L_strN on
// first sight.
func (t *StringTable) GetOrCreateLabel(value string) string {
	if l, ok := t.labels[value]; ok {
		return l
	}
	l := fmt.Sprintf("L_str%d", t.counter)
	t.counter++
	t.labels[value] = l
	t.ordered = append(t.ordered, value)
	return l
}

// Entries returns (label, value) pairs in creation order for the rodata
// emitter.
func (t *StringTable) Entries() [](struct{ Label, Value string }) {
	out := make([]struct{ Label, Value string }, 0, len(t.ordered))
	for _, v := range t.ordered {
		out = append(out, struct{ Label, Value string }{t.labels[v], v})
	}
	return out
}

// StringLiftPass replaces every string literal with a temporary holding the
// address of a rodata label. Within one function, identical literals share a
// single temporary; the assignment `temp := @L_strN` is inserted before the
// first statement that uses the literal.
type StringLiftPass struct {
	table    *symtab.Table
	strings  *StringTable
	analyzer *analysis.Analyzer
	factory  *analysis.TempFactory
	logger   *zap.Logger

	fn    string
	temps map[string]string // literal value -> temp name
}

// NewStringLiftPass returns the lifting pass.
func NewStringLiftPass(table *symtab.Table, strTable *StringTable, analyzer *analysis.Analyzer, factory *analysis.TempFactory, logger *zap.Logger) *StringLiftPass {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StringLiftPass{table: table, strings: strTable, analyzer: analyzer, factory: factory, logger: logger}
}

// Run transforms every function and routine in the program.
func (p *StringLiftPass) Run(prog *ast.Program) {
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

func (p *StringLiftPass) runFunction(name string, body ast.Stmt) {
	if body == nil {
		return
	}
	p.fn = name
	p.temps = make(map[string]string)
	p.processStmt(body)
}

func (p *StringLiftPass) processStmt(s ast.Stmt) {
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

func (p *StringLiftPass) processList(stmts []ast.Stmt) []ast.Stmt {
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
			ast.RewriteExprs(s, func(e ast.Expr) ast.Expr {
				lit, ok := e.(*ast.StringLiteral)
				if !ok {
					return e
				}
				temp, seen := p.temps[lit.Value]
				if !seen {
					label := p.strings.GetOrCreateLabel(lit.Value)
					metrics := p.analyzer.Metrics(p.fn)
					temp = p.factory.Create(p.fn, types.PointerToString, p.table, metrics)
					p.temps[lit.Value] = temp
					pending = append(pending, &ast.AssignmentStatement{
						LHS: []ast.Expr{&ast.VariableAccess{Name: temp}},
						RHS: []ast.Expr{&ast.UnaryOp{
							Op:      ast.OpAddrOf,
							Operand: &ast.VariableAccess{Name: label},
						}},
					})
					p.logger.Debug("lifted string literal",
						zap.String("function", p.fn), zap.String("label", label), zap.String("temp", temp))
				}
				return &ast.VariableAccess{Name: temp}
			})
		}

		out = append(out, pending...)
		out = append(out, s)
	}
	return out
}

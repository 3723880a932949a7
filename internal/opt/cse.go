package opt

import (
	"go.uber.org/zap"

	"github.com/beagle-lang/beagle/internal/analysis"
	"github.com/beagle-lang/beagle/internal/ast"
	"github.com/beagle-lang/beagle/internal/symtab"
)

// CSEPass is the global common-subexpression elimination pass. Pass 1 counts
// BinaryOp subexpressions per function by canonical key; pass 2 hoists each
// repeated expression into a temporary assigned at the head of the function
// body and rewrites every occurrence into a read of that temporary.
type CSEPass struct {
	table    *symtab.Table
	analyzer *analysis.Analyzer
	factory  *analysis.TempFactory
	logger   *zap.Logger
}

// NewCSEPass returns the global CSE pass.
func NewCSEPass(table *symtab.Table, analyzer *analysis.Analyzer, factory *analysis.TempFactory, logger *zap.Logger) *CSEPass {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSEPass{table: table, analyzer: analyzer, factory: factory, logger: logger}
}

// Run transforms every function and routine in the program.
func (p *CSEPass) Run(prog *ast.Program) {
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

func (p *CSEPass) runFunction(name string, body ast.Stmt) {
	if body == nil {
		return
	}

	counts := make(map[string]int)
	countBinaryOps(body, counts)

	available := make(map[string]string) // canonical key -> temp name
	var hoisted []ast.Stmt

	metrics := p.analyzer.Metrics(name)
	ast.RewriteExprs(body, func(e ast.Expr) ast.Expr {
		b, ok := e.(*ast.BinaryOp)
		if !ok {
			return e
		}
		key := canonicalKey(b)
		if counts[key] <= 1 {
			return e
		}
		if temp, ok := available[key]; ok {
			return &ast.VariableAccess{Name: temp}
		}
		typ := analysis.InferType(b, p.table, name, metrics)
		temp := p.factory.Create(name, typ, p.table, metrics)
		available[key] = temp
		hoisted = append(hoisted, &ast.AssignmentStatement{
			LHS: []ast.Expr{&ast.VariableAccess{Name: temp}},
			RHS: []ast.Expr{ast.CloneExpr(b)},
		})
		p.logger.Debug("hoisted common subexpression",
			zap.String("function", name), zap.String("temp", temp), zap.String("key", key))
		return &ast.VariableAccess{Name: temp}
	})

	if len(hoisted) == 0 {
		return
	}
	// Hoisted assignments keep their source order at the head of the body.
	switch body := body.(type) {
	case *ast.CompoundStatement:
		body.Statements = append(hoisted, body.Statements...)
	case *ast.BlockStatement:
		body.Statements = append(hoisted, body.Statements...)
	}
}

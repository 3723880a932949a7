package opt

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/beagle-lang/beagle/internal/ast"
	"github.com/beagle-lang/beagle/internal/symtab"
	"github.com/beagle-lang/beagle/internal/types"
)

// BoundsViolation reports a compile-time out-of-bounds vector access.
type BoundsViolation struct {
	Variable string
	Index    int64
	Size     int
	Location string
}

// Error implements error.
func (e *BoundsViolation) Error() string {
	return fmt.Sprintf("vector '%s' index %d is out of bounds (size: %d, valid indices: 0-%d, or -1 for length). %s",
		e.Variable, e.Index, e.Size, e.Size-1, e.Location)
}

// BoundsPass checks literal vector accesses against compile-time sizes. It
// never rewrites the AST; it records one violation per bad access and always
// processes the entire tree. As a side effect it records the size of every
// literal-sized allocation it sees on the vector's symbol.
type BoundsPass struct {
	table   *symtab.Table
	enabled bool
	logger  *zap.Logger

	fn   string
	errs []error
}

// NewBoundsPass returns the pass; a disabled pass is a no-op.
func NewBoundsPass(table *symtab.Table, enabled bool, logger *zap.Logger) *BoundsPass {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoundsPass{table: table, enabled: enabled, logger: logger}
}

// Errors returns the violations found by the last Run.
func (p *BoundsPass) Errors() []error { return p.errs }

// Run analyzes the whole program and returns the combined violations.
func (p *BoundsPass) Run(prog *ast.Program) error {
	if !p.enabled {
		return nil
	}
	p.errs = nil
	for _, d := range prog.Declarations {
		switch d := d.(type) {
		case *ast.FunctionDecl:
			p.checkFunction(d.Name, d.Body)
		case *ast.RoutineDecl:
			p.checkFunction(d.Name, d.Body)
		case *ast.ClassDecl:
			for _, m := range d.Methods {
				switch m := m.(type) {
				case *ast.FunctionDecl:
					p.checkFunction(m.Name, m.Body)
				case *ast.RoutineDecl:
					p.checkFunction(m.Name, m.Body)
				}
			}
		}
	}
	return multierr.Combine(p.errs...)
}

func (p *BoundsPass) checkFunction(name string, body ast.Stmt) {
	p.fn = name
	ast.Walk(body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.LetStatement:
			for i, varName := range n.Names {
				if i < len(n.Initializers) {
					p.recordSize(varName, n.Initializers[i])
				}
			}
		case *ast.AssignmentStatement:
			if len(n.LHS) == len(n.RHS) {
				for i, l := range n.LHS {
					if v, ok := l.(*ast.VariableAccess); ok {
						p.recordSize(v.Name, n.RHS[i])
					}
				}
			}
		case *ast.VectorAccess:
			p.checkAccess(n)
		}
		return true
	})
}

// recordSize updates the symbol's compile-time size when the initializer is a
// VEC N / FVEC N allocation with literal N, or a VEC [e1..ek] initializer.
func (p *BoundsPass) recordSize(varName string, init ast.Expr) {
	switch init := init.(type) {
	case *ast.VecAllocation:
		if n, ok := ast.LiteralInt(init.Size); ok {
			p.table.SetSymbolSize(varName, int(n))
		}
	case *ast.VecInitializer:
		p.table.SetSymbolSize(varName, len(init.Elements))
	case *ast.StringAllocation:
		if n, ok := ast.LiteralInt(init.Size); ok {
			p.table.SetSymbolSize(varName, int(n))
		}
	}
}

func (p *BoundsPass) checkAccess(acc *ast.VectorAccess) {
	v, ok := acc.Vector.(*ast.VariableAccess)
	if !ok {
		return
	}
	idx, ok := ast.LiteralInt(acc.Index)
	if !ok {
		return // non-literal index: runtime checking handles it
	}
	sym, ok := p.table.Lookup(v.Name)
	if !ok {
		return // unknown variable: another pass reports it
	}
	isVector := sym.Type == types.PointerToIntVec ||
		sym.Type == types.PointerToFloatVec ||
		sym.Type == types.PointerToString
	if !isVector || !sym.HasSize {
		return
	}

	// -1 reads the length word; every other negative index is invalid, and a
	// positive index must be < size.
	if idx == -1 {
		return
	}
	if idx < -1 || idx >= int64(sym.Size) {
		viol := &BoundsViolation{
			Variable: v.Name,
			Index:    idx,
			Size:     sym.Size,
			Location: fmt.Sprintf("in function '%s'", p.fn),
		}
		p.errs = append(p.errs, viol)
		p.logger.Warn("compile-time bounds error", zap.String("error", viol.Error()))
	}
}

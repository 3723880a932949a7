// Package analysis walks the AST once per pass to populate the symbol table
// and per-function metrics, flag heap ownership, and validate destructuring
// assignments. Scope-exit cleanup is NOT generated here; the CFG builder is
// the sole authority for cleanup placement.
package analysis

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/beagle-lang/beagle/internal/ast"
	"github.com/beagle-lang/beagle/internal/rt"
	"github.com/beagle-lang/beagle/internal/symtab"
	"github.com/beagle-lang/beagle/internal/types"
)

// Analyzer performs the symbol-resolution and metrics pass.
type Analyzer struct {
	table   *symtab.Table
	runtime *rt.Registry
	logger  *zap.Logger

	metrics map[string]*symtab.FunctionMetrics

	currentFn    string
	currentClass string
	classMembers map[string]map[string]struct{}

	// externalCalls collects runtime symbols referenced by call sites, for
	// veneer generation.
	externalCalls map[string]struct{}

	errs     []error
	warnings []error
}

// NewAnalyzer returns an analyzer over the given table and runtime registry.
func NewAnalyzer(table *symtab.Table, runtime *rt.Registry, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		table:         table,
		runtime:       runtime,
		logger:        logger,
		metrics:       make(map[string]*symtab.FunctionMetrics),
		classMembers:  make(map[string]map[string]struct{}),
		externalCalls: make(map[string]struct{}),
	}
}

// Metrics returns the metrics for a function, creating them on first use.
func (a *Analyzer) Metrics(fn string) *symtab.FunctionMetrics {
	m, ok := a.metrics[fn]
	if !ok {
		m = symtab.NewFunctionMetrics()
		a.metrics[fn] = m
	}
	return m
}

// AllMetrics returns the function-name -> metrics map.
func (a *Analyzer) AllMetrics() map[string]*symtab.FunctionMetrics { return a.metrics }

// Warnings returns the non-fatal findings (memory-leak warnings).
func (a *Analyzer) Warnings() []error { return a.warnings }

// ExternalCalls returns the set of runtime symbols referenced by the program.
func (a *Analyzer) ExternalCalls() map[string]struct{} { return a.externalCalls }

// Analyze walks the whole program. It always runs to completion; the returned
// error aggregates every fatal finding.
func (a *Analyzer) Analyze(p *ast.Program) error {
	for _, d := range p.Declarations {
		a.declare(d)
	}
	for _, d := range p.Declarations {
		a.analyzeDecl(d)
	}
	return multierr.Combine(a.errs...)
}

// declare registers top-level names before bodies are analyzed, so forward
// references resolve.
func (a *Analyzer) declare(d ast.Decl) {
	switch d := d.(type) {
	case *ast.FunctionDecl:
		kind := symtab.Function
		if d.ReturnsFloat {
			kind = symtab.FloatFunction
		}
		s := symtab.NewSymbol(d.Name, kind, types.Integer, 0, symtab.GlobalScope)
		if d.ReturnsFloat {
			s.Type = types.Float
		}
		for _, p := range d.Params {
			s.Params = append(s.Params, symtab.Param{Name: p})
		}
		a.table.AddSymbol(s)
	case *ast.RoutineDecl:
		s := symtab.NewSymbol(d.Name, symtab.Routine, types.Unknown, 0, symtab.GlobalScope)
		for _, p := range d.Params {
			s.Params = append(s.Params, symtab.Param{Name: p})
		}
		a.table.AddSymbol(s)
	case *ast.ClassDecl:
		members := make(map[string]struct{}, len(d.Members))
		for _, m := range d.Members {
			members[m] = struct{}{}
			a.table.AddSymbol(symtab.NewSymbol(d.Name+"::"+m, symtab.MemberVar, types.Unknown, 0, symtab.GlobalScope))
		}
		a.classMembers[d.Name] = members
		for _, m := range d.Methods {
			a.declare(m)
		}
	case *ast.GlobalDecl:
		for _, n := range d.Names {
			a.table.AddSymbol(symtab.NewSymbol(n, symtab.GlobalVar, types.Unknown, 0, symtab.GlobalScope))
		}
	case *ast.ManifestDecl:
		for i, n := range d.Names {
			s := symtab.NewSymbol(n, symtab.Manifest, types.Integer, 0, symtab.GlobalScope)
			s.Location = symtab.AbsoluteLocation(d.Values[i])
			a.table.AddSymbol(s)
		}
	case *ast.StaticDecl:
		for _, n := range d.Names {
			a.table.AddSymbol(symtab.NewSymbol(n, symtab.StaticVar, types.Unknown, 0, symtab.GlobalScope))
		}
	}
}

func (a *Analyzer) analyzeDecl(d ast.Decl) {
	switch d := d.(type) {
	case *ast.FunctionDecl:
		a.analyzeFunction(d.Name, d.Params, d.Body)
	case *ast.RoutineDecl:
		a.analyzeFunction(d.Name, d.Params, d.Body)
	case *ast.ClassDecl:
		prev := a.currentClass
		a.currentClass = d.Name
		for _, m := range d.Methods {
			a.analyzeDecl(m)
		}
		a.currentClass = prev
	}
}

func (a *Analyzer) analyzeFunction(name string, params []string, body ast.Stmt) {
	prevFn := a.currentFn
	a.currentFn = name
	a.table.SetCurrentFunction(name)
	a.table.EnterScope()

	m := a.Metrics(name)
	m.NumParameters = len(params)
	for i, p := range params {
		m.ParameterIndices[p] = i
		a.table.AddSymbol(symtab.NewSymbol(p, symtab.Parameter, types.Unknown, a.table.ScopeLevel(), name))
	}

	a.analyzeStmt(body)
	a.detectTrivialForms(name, body)

	a.table.ExitScope()
	a.table.SetCurrentFunction(symtab.GlobalScope)
	a.currentFn = prevFn
}

func (a *Analyzer) analyzeStmt(s ast.Stmt) {
	switch s := s.(type) {
	case nil:
	case *ast.LetStatement:
		for i, n := range s.Names {
			var init ast.Expr
			if i < len(s.Initializers) {
				init = s.Initializers[i]
				a.analyzeExpr(init)
			}
			t := types.Integer
			if s.IsFloat {
				t = types.Float
			}
			if init != nil {
				if it := InferType(init, a.table, a.currentFn, a.Metrics(a.currentFn)); it != types.Unknown {
					t = it
				}
			}
			sym := symtab.NewSymbol(n, symtab.LocalVar, t, a.table.ScopeLevel(), a.currentFn)
			if init != nil && ast.IsAllocation(init) {
				sym.OwnsHeapMemory = true
				a.Metrics(a.currentFn).PerformsHeapAllocation = true
				if list, ok := init.(*ast.ListExpression); ok {
					sym.ContainsLiterals = allLiterals(list.Elements)
				}
			}
			a.table.AddSymbol(sym)
			m := a.Metrics(a.currentFn)
			m.SetVariableType(n, t)
			if t.Has(types.Float) {
				m.NumFloatVariables++
			} else {
				m.NumVariables++
			}
		}
	case *ast.AssignmentStatement:
		a.analyzeAssignment(s)
	case *ast.RoutineCallStatement:
		a.analyzeExpr(s.Call)
	case *ast.IfStatement:
		a.analyzeExpr(s.Cond)
		a.analyzeStmt(s.Then)
	case *ast.UnlessStatement:
		a.analyzeExpr(s.Cond)
		a.analyzeStmt(s.Then)
	case *ast.TestStatement:
		a.analyzeExpr(s.Cond)
		a.analyzeStmt(s.Then)
		a.analyzeStmt(s.Else)
	case *ast.WhileStatement:
		a.analyzeExpr(s.Cond)
		a.analyzeStmt(s.Body)
	case *ast.UntilStatement:
		a.analyzeExpr(s.Cond)
		a.analyzeStmt(s.Body)
	case *ast.RepeatStatement:
		a.analyzeStmt(s.Body)
		if s.Cond != nil {
			a.analyzeExpr(s.Cond)
		}
	case *ast.ForStatement:
		a.table.AddSymbol(symtab.NewSymbol(s.Var, symtab.LocalVar, types.Integer, a.table.ScopeLevel(), a.currentFn))
		a.Metrics(a.currentFn).SetVariableType(s.Var, types.Integer)
		a.analyzeExpr(s.Start)
		a.analyzeExpr(s.End)
		if s.Step != nil {
			a.analyzeExpr(s.Step)
		}
		a.analyzeStmt(s.Body)
	case *ast.ForEachStatement:
		a.analyzeExpr(s.Collection)
		collType := InferType(s.Collection, a.table, a.currentFn, a.Metrics(a.currentFn))
		elemType := types.Integer
		if collType.Has(types.Float) {
			elemType = types.Float
		}
		if len(s.DestructureNames) > 0 {
			for _, n := range s.DestructureNames {
				a.table.AddSymbol(symtab.NewSymbol(n, symtab.LocalVar, elemType, a.table.ScopeLevel(), a.currentFn))
			}
		} else {
			a.table.AddSymbol(symtab.NewSymbol(s.Var, symtab.LocalVar, elemType, a.table.ScopeLevel(), a.currentFn))
		}
		a.analyzeStmt(s.Body)
	case *ast.SwitchonStatement:
		a.analyzeExpr(s.Value)
		for _, c := range s.Cases {
			a.analyzeExpr(c.Value)
			a.analyzeStmt(c.Body)
		}
		a.analyzeStmt(s.Default)
	case *ast.ResultisStatement:
		a.analyzeExpr(s.Value)
	case *ast.CompoundStatement:
		for _, sub := range s.Statements {
			a.analyzeStmt(sub)
		}
	case *ast.BlockStatement:
		a.table.EnterScope()
		for _, sub := range s.Statements {
			a.analyzeStmt(sub)
		}
		a.table.ExitScope()
	case *ast.FreeStatement:
		a.analyzeExpr(s.Target)
		if v, ok := s.Target.(*ast.VariableAccess); ok {
			a.table.MarkOwnsHeapMemory(v.Name, false)
		}
	case *ast.DeferStatement:
		a.analyzeStmt(s.Body)
	case *ast.ReductionStatement:
		a.analyzeExpr(s.Left)
		a.analyzeExpr(s.Right)
		m := a.Metrics(a.currentFn)
		if _, ok := m.VariableTypes[s.ResultVar]; !ok {
			a.table.AddSymbol(symtab.NewSymbol(s.ResultVar, symtab.LocalVar, types.Integer, a.table.ScopeLevel(), a.currentFn))
			m.SetVariableType(s.ResultVar, types.Integer)
		}
	case *ast.ConditionalBranchStatement:
		a.analyzeExpr(s.Cond)
	case *ast.SysCall:
		for _, arg := range s.Args {
			a.analyzeExpr(arg)
		}
	}
}

// analyzeAssignment implements ownership flagging, destructuring validation
// and class-member suppression.
func (a *Analyzer) analyzeAssignment(s *ast.AssignmentStatement) {
	for _, r := range s.RHS {
		a.analyzeExpr(r)
	}
	for _, l := range s.LHS {
		// LHS vector/member accesses still have analyzable subexpressions.
		if _, ok := l.(*ast.VariableAccess); !ok {
			a.analyzeExpr(l)
		}
	}

	m := a.Metrics(a.currentFn)

	// Destructuring: 2-or-4 LHS from a single packed RHS.
	if len(s.RHS) == 1 && len(s.LHS) > 1 {
		rhsType := InferType(s.RHS[0], a.table, a.currentFn, m)
		switch len(s.LHS) {
		case 2:
			if !rhsType.Has(types.Pair) && !rhsType.Has(types.FPair) {
				a.errs = append(a.errs, &DestructuringArityError{Expected: 2, Found: 1})
				return
			}
		case 4:
			if !rhsType.Has(types.Quad) {
				a.errs = append(a.errs, &DestructuringArityError{Expected: 4, Found: 1})
				return
			}
		default:
			a.errs = append(a.errs, &DestructuringArityError{Expected: len(s.LHS), Found: len(s.RHS)})
			return
		}
		comp := ComponentType(rhsType)
		for _, l := range s.LHS {
			if v, ok := l.(*ast.VariableAccess); ok {
				a.bindVariable(v.Name, comp, nil)
				// Components never own heap memory.
				a.table.MarkOwnsHeapMemory(v.Name, false)
			}
		}
		return
	}

	if len(s.LHS) != len(s.RHS) {
		a.errs = append(a.errs, &DestructuringArityError{Expected: len(s.LHS), Found: len(s.RHS)})
		return
	}

	for i, l := range s.LHS {
		r := s.RHS[i]
		v, ok := l.(*ast.VariableAccess)
		if !ok {
			continue
		}
		t := InferType(r, a.table, a.currentFn, m)
		a.bindVariable(v.Name, t, r)
	}
}

// bindVariable resolves an assigned name, creating a local when it is neither
// an existing symbol nor a member of the class currently being compiled, and
// maintains the heap-ownership flag.
func (a *Analyzer) bindVariable(name string, t types.VarType, rhs ast.Expr) {
	m := a.Metrics(a.currentFn)
	isAlloc := rhs != nil && ast.IsAllocation(rhs)

	existing, found := a.table.LookupIn(name, a.currentFn)
	if !found {
		if a.isClassMember(name) {
			// Assignments to class members must not create locals.
			return
		}
		sym := symtab.NewSymbol(name, symtab.LocalVar, t, a.table.ScopeLevel(), a.currentFn)
		sym.OwnsHeapMemory = isAlloc
		a.table.AddSymbol(sym)
		m.SetVariableType(name, t)
		if t.Has(types.Float) {
			m.NumFloatVariables++
		} else {
			m.NumVariables++
		}
	} else {
		if t != types.Unknown {
			a.table.UpdateSymbolType(name, t)
			m.SetVariableType(name, t)
		}
		if isAlloc && existing.OwnsHeapMemory {
			w := &PotentialMemoryLeakWarning{Variable: name, Function: a.currentFn}
			a.warnings = append(a.warnings, w)
			a.logger.Warn(w.Error())
		}
		a.table.MarkOwnsHeapMemory(name, isAlloc)
	}

	if isAlloc {
		m.PerformsHeapAllocation = true
	}
}

func (a *Analyzer) isClassMember(name string) bool {
	if a.currentClass == "" {
		return false
	}
	_, ok := a.classMembers[a.currentClass][name]
	return ok
}

func (a *Analyzer) analyzeExpr(e ast.Expr) {
	switch e := e.(type) {
	case nil:
	case *ast.FunctionCall:
		a.analyzeExpr(e.Callee)
		for _, arg := range e.Args {
			a.analyzeExpr(arg)
		}
		a.noteCall(e)
	case *ast.VecAllocation:
		a.analyzeExpr(e.Size)
		a.Metrics(a.currentFn).PerformsHeapAllocation = true
	case *ast.StringAllocation:
		a.analyzeExpr(e.Size)
		a.Metrics(a.currentFn).PerformsHeapAllocation = true
	case *ast.ListExpression:
		for _, el := range e.Elements {
			a.analyzeExpr(el)
		}
		a.Metrics(a.currentFn).PerformsHeapAllocation = true
	case *ast.TableExpression:
		for _, el := range e.Elements {
			a.analyzeExpr(el)
		}
		a.Metrics(a.currentFn).PerformsHeapAllocation = true
	case *ast.NewExpression:
		for _, arg := range e.Args {
			a.analyzeExpr(arg)
		}
		a.Metrics(a.currentFn).PerformsHeapAllocation = true
	default:
		for _, c := range ast.Children(e) {
			if ce, ok := c.(ast.Expr); ok {
				a.analyzeExpr(ce)
			}
		}
	}
}

// noteCall updates call-site metrics and records runtime symbols for veneer
// generation.
func (a *Analyzer) noteCall(call *ast.FunctionCall) {
	m := a.Metrics(a.currentFn)
	m.NoteCall()

	v, ok := call.Callee.(*ast.VariableAccess)
	if !ok {
		return
	}
	if a.runtime != nil && a.runtime.IsFunctionRegistered(v.Name) {
		m.NumRuntimeCalls++
		a.externalCalls[v.Name] = struct{}{}
		return
	}
	if s, ok := a.table.LookupIn(v.Name, a.currentFn); ok {
		switch s.Kind {
		case symtab.Routine:
			m.NumLocalRoutineCalls++
		case symtab.Function, symtab.FloatFunction:
			m.NumLocalFunctionCalls++
		}
	}
}

// detectTrivialForms recognizes single-member accessors and setters so the
// inliner can bypass the call.
func (a *Analyzer) detectTrivialForms(name string, body ast.Stmt) {
	if a.currentClass == "" {
		return
	}
	m := a.Metrics(name)

	stmts := flatten(body)
	if len(stmts) != 1 {
		return
	}
	switch s := stmts[0].(type) {
	case *ast.ResultisStatement:
		switch v := s.Value.(type) {
		case *ast.MemberAccess:
			m.IsTrivialAccessor = true
			m.AccessedMemberName = v.Member
			m.IsSafeToInline = true
		case *ast.SelfExpression:
			m.IsTrivialAccessor = true
			m.AccessedMemberName = symtab.ThisPtrMember
			m.IsSafeToInline = true
		case *ast.VariableAccess:
			if a.isClassMember(v.Name) {
				m.IsTrivialAccessor = true
				m.AccessedMemberName = v.Name
				m.IsSafeToInline = true
			}
		}
	case *ast.AssignmentStatement:
		if len(s.LHS) == 1 && len(s.RHS) == 1 {
			lhs, lok := s.LHS[0].(*ast.VariableAccess)
			rhs, rok := s.RHS[0].(*ast.VariableAccess)
			if lok && rok && a.isClassMember(lhs.Name) {
				if _, isParam := m.ParameterIndices[rhs.Name]; isParam {
					m.IsTrivialSetter = true
					m.AccessedMemberName = lhs.Name
					m.IsSafeToInline = true
				}
			}
		}
	}
}

func flatten(s ast.Stmt) []ast.Stmt {
	switch s := s.(type) {
	case *ast.CompoundStatement:
		if len(s.Statements) == 1 {
			return flatten(s.Statements[0])
		}
		return s.Statements
	case *ast.BlockStatement:
		if len(s.Statements) == 1 {
			return flatten(s.Statements[0])
		}
		return s.Statements
	case nil:
		return nil
	default:
		return []ast.Stmt{s}
	}
}

func allLiterals(es []ast.Expr) bool {
	for _, e := range es {
		switch e.(type) {
		case *ast.NumberLiteral, *ast.StringLiteral, *ast.CharLiteral, *ast.BooleanLiteral:
		default:
			return false
		}
	}
	return true
}

package ast

// Walk calls fn for n and every node reachable from it, parents before
// children. Walking stops below a node when fn returns false.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// Children returns the direct child nodes of n in source order.
func Children(n Node) []Node {
	var out []Node
	add := func(ns ...Node) {
		for _, c := range ns {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	addExprs := func(es []Expr) {
		for _, e := range es {
			if e != nil {
				out = append(out, e)
			}
		}
	}
	addStmts := func(ss []Stmt) {
		for _, s := range ss {
			if s != nil {
				out = append(out, s)
			}
		}
	}

	switch n := n.(type) {
	case *BinaryOp:
		add(n.Left, n.Right)
	case *UnaryOp:
		add(n.Operand)
	case *VectorAccess:
		add(n.Vector, n.Index)
	case *CharIndirection:
		add(n.String, n.Index)
	case *FunctionCall:
		add(n.Callee)
		addExprs(n.Args)
	case *ConditionalExpression:
		add(n.Cond, n.Then, n.Else)
	case *ValofExpression:
		add(n.Body)
	case *FloatValofExpression:
		add(n.Body)
	case *VecAllocation:
		add(n.Size)
	case *VecInitializer:
		addExprs(n.Elements)
	case *StringAllocation:
		add(n.Size)
	case *ListExpression:
		addExprs(n.Elements)
	case *TableExpression:
		addExprs(n.Elements)
	case *NewExpression:
		addExprs(n.Args)
	case *PairExpression:
		add(n.First, n.Second)
	case *FPairExpression:
		add(n.First, n.Second)
	case *QuadExpression:
		add(n.First, n.Second, n.Third, n.Fourth)
	case *PackAccess:
		add(n.Pack)
	case *MemberAccess:
		add(n.Object)

	case *AssignmentStatement:
		addExprs(n.LHS)
		addExprs(n.RHS)
	case *RoutineCallStatement:
		add(n.Call)
	case *LetStatement:
		addExprs(n.Initializers)
	case *IfStatement:
		add(n.Cond, n.Then)
	case *UnlessStatement:
		add(n.Cond, n.Then)
	case *TestStatement:
		add(n.Cond, n.Then, n.Else)
	case *WhileStatement:
		add(n.Cond, n.Body)
	case *UntilStatement:
		add(n.Cond, n.Body)
	case *RepeatStatement:
		add(n.Body)
		if n.Cond != nil {
			add(n.Cond)
		}
	case *ForStatement:
		add(n.Start, n.End)
		if n.Step != nil {
			add(n.Step)
		}
		add(n.Body)
	case *ForEachStatement:
		add(n.Collection, n.Body)
	case *SwitchonStatement:
		add(n.Value)
		for _, c := range n.Cases {
			out = append(out, c)
		}
		if n.Default != nil {
			add(n.Default)
		}
	case *CaseClause:
		add(n.Value, n.Body)
	case *ResultisStatement:
		add(n.Value)
	case *CompoundStatement:
		addStmts(n.Statements)
	case *BlockStatement:
		addStmts(n.Statements)
	case *FreeStatement:
		add(n.Target)
	case *DeferStatement:
		add(n.Body)
	case *ReductionStatement:
		add(n.Left, n.Right)
	case *ConditionalBranchStatement:
		add(n.Cond)
	case *SysCall:
		addExprs(n.Args)

	case *Program:
		for _, d := range n.Declarations {
			out = append(out, d)
		}
	case *FunctionDecl:
		add(n.Body)
	case *RoutineDecl:
		add(n.Body)
	case *ClassDecl:
		for _, m := range n.Methods {
			out = append(out, m)
		}
	case *StaticDecl:
		addExprs(n.Initializers)
	}
	return out
}

// RewriteExprs applies fn to every expression hold by s, bottom-up: children
// are rewritten before their parents. Statements nested under s are visited
// too. The callback returns the (possibly replaced) expression.
func RewriteExprs(s Stmt, fn func(Expr) Expr) {
	var rewrite func(e Expr) Expr
	rewrite = func(e Expr) Expr {
		if e == nil {
			return nil
		}
		switch e := e.(type) {
		case *BinaryOp:
			e.Left = rewrite(e.Left)
			e.Right = rewrite(e.Right)
		case *UnaryOp:
			e.Operand = rewrite(e.Operand)
		case *VectorAccess:
			e.Vector = rewrite(e.Vector)
			e.Index = rewrite(e.Index)
		case *CharIndirection:
			e.String = rewrite(e.String)
			e.Index = rewrite(e.Index)
		case *FunctionCall:
			e.Callee = rewrite(e.Callee)
			for i := range e.Args {
				e.Args[i] = rewrite(e.Args[i])
			}
		case *ConditionalExpression:
			e.Cond = rewrite(e.Cond)
			e.Then = rewrite(e.Then)
			e.Else = rewrite(e.Else)
		case *ValofExpression:
			RewriteExprs(e.Body, fn)
		case *FloatValofExpression:
			RewriteExprs(e.Body, fn)
		case *VecAllocation:
			e.Size = rewrite(e.Size)
		case *VecInitializer:
			for i := range e.Elements {
				e.Elements[i] = rewrite(e.Elements[i])
			}
		case *StringAllocation:
			e.Size = rewrite(e.Size)
		case *ListExpression:
			for i := range e.Elements {
				e.Elements[i] = rewrite(e.Elements[i])
			}
		case *TableExpression:
			for i := range e.Elements {
				e.Elements[i] = rewrite(e.Elements[i])
			}
		case *NewExpression:
			for i := range e.Args {
				e.Args[i] = rewrite(e.Args[i])
			}
		case *PairExpression:
			e.First = rewrite(e.First)
			e.Second = rewrite(e.Second)
		case *FPairExpression:
			e.First = rewrite(e.First)
			e.Second = rewrite(e.Second)
		case *QuadExpression:
			e.First = rewrite(e.First)
			e.Second = rewrite(e.Second)
			e.Third = rewrite(e.Third)
			e.Fourth = rewrite(e.Fourth)
		case *PackAccess:
			e.Pack = rewrite(e.Pack)
		case *MemberAccess:
			e.Object = rewrite(e.Object)
		}
		return fn(e)
	}

	switch s := s.(type) {
	case nil:
	case *AssignmentStatement:
		for i := range s.LHS {
			s.LHS[i] = rewrite(s.LHS[i])
		}
		for i := range s.RHS {
			s.RHS[i] = rewrite(s.RHS[i])
		}
	case *RoutineCallStatement:
		// The call node itself stays; only its callee and arguments rewrite.
		s.Call.Callee = rewrite(s.Call.Callee)
		for i := range s.Call.Args {
			s.Call.Args[i] = rewrite(s.Call.Args[i])
		}
	case *LetStatement:
		for i := range s.Initializers {
			s.Initializers[i] = rewrite(s.Initializers[i])
		}
	case *IfStatement:
		s.Cond = rewrite(s.Cond)
		RewriteExprs(s.Then, fn)
	case *UnlessStatement:
		s.Cond = rewrite(s.Cond)
		RewriteExprs(s.Then, fn)
	case *TestStatement:
		s.Cond = rewrite(s.Cond)
		RewriteExprs(s.Then, fn)
		RewriteExprs(s.Else, fn)
	case *WhileStatement:
		s.Cond = rewrite(s.Cond)
		RewriteExprs(s.Body, fn)
	case *UntilStatement:
		s.Cond = rewrite(s.Cond)
		RewriteExprs(s.Body, fn)
	case *RepeatStatement:
		RewriteExprs(s.Body, fn)
		if s.Cond != nil {
			s.Cond = rewrite(s.Cond)
		}
	case *ForStatement:
		s.Start = rewrite(s.Start)
		s.End = rewrite(s.End)
		if s.Step != nil {
			s.Step = rewrite(s.Step)
		}
		RewriteExprs(s.Body, fn)
	case *ForEachStatement:
		s.Collection = rewrite(s.Collection)
		RewriteExprs(s.Body, fn)
	case *SwitchonStatement:
		s.Value = rewrite(s.Value)
		for _, c := range s.Cases {
			c.Value = rewrite(c.Value)
			RewriteExprs(c.Body, fn)
		}
		RewriteExprs(s.Default, fn)
	case *ResultisStatement:
		s.Value = rewrite(s.Value)
	case *CompoundStatement:
		for _, sub := range s.Statements {
			RewriteExprs(sub, fn)
		}
	case *BlockStatement:
		for _, sub := range s.Statements {
			RewriteExprs(sub, fn)
		}
	case *FreeStatement:
		s.Target = rewrite(s.Target)
	case *DeferStatement:
		RewriteExprs(s.Body, fn)
	case *ReductionStatement:
		s.Left = rewrite(s.Left)
		s.Right = rewrite(s.Right)
	case *ConditionalBranchStatement:
		s.Cond = rewrite(s.Cond)
	case *SysCall:
		for i := range s.Args {
			s.Args[i] = rewrite(s.Args[i])
		}
	}
}

// CloneExpr deep-copies an expression tree.
func CloneExpr(e Expr) Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *NumberLiteral:
		c := *e
		return &c
	case *StringLiteral:
		c := *e
		return &c
	case *CharLiteral:
		c := *e
		return &c
	case *BooleanLiteral:
		c := *e
		return &c
	case *VariableAccess:
		c := *e
		return &c
	case *BinaryOp:
		return &BinaryOp{Op: e.Op, Left: CloneExpr(e.Left), Right: CloneExpr(e.Right)}
	case *UnaryOp:
		return &UnaryOp{Op: e.Op, Operand: CloneExpr(e.Operand)}
	case *VectorAccess:
		return &VectorAccess{Vector: CloneExpr(e.Vector), Index: CloneExpr(e.Index)}
	case *CharIndirection:
		return &CharIndirection{String: CloneExpr(e.String), Index: CloneExpr(e.Index)}
	case *FunctionCall:
		c := &FunctionCall{Callee: CloneExpr(e.Callee)}
		for _, a := range e.Args {
			c.Args = append(c.Args, CloneExpr(a))
		}
		return c
	case *ConditionalExpression:
		return &ConditionalExpression{Cond: CloneExpr(e.Cond), Then: CloneExpr(e.Then), Else: CloneExpr(e.Else)}
	case *VecAllocation:
		return &VecAllocation{Size: CloneExpr(e.Size), IsFloat: e.IsFloat}
	case *VecInitializer:
		c := &VecInitializer{}
		for _, el := range e.Elements {
			c.Elements = append(c.Elements, CloneExpr(el))
		}
		return c
	case *StringAllocation:
		return &StringAllocation{Size: CloneExpr(e.Size)}
	case *ListExpression:
		c := &ListExpression{IsConst: e.IsConst}
		for _, el := range e.Elements {
			c.Elements = append(c.Elements, CloneExpr(el))
		}
		return c
	case *TableExpression:
		c := &TableExpression{}
		for _, el := range e.Elements {
			c.Elements = append(c.Elements, CloneExpr(el))
		}
		return c
	case *NewExpression:
		c := &NewExpression{ClassName: e.ClassName}
		for _, a := range e.Args {
			c.Args = append(c.Args, CloneExpr(a))
		}
		return c
	case *PairExpression:
		return &PairExpression{First: CloneExpr(e.First), Second: CloneExpr(e.Second)}
	case *FPairExpression:
		return &FPairExpression{First: CloneExpr(e.First), Second: CloneExpr(e.Second)}
	case *QuadExpression:
		return &QuadExpression{First: CloneExpr(e.First), Second: CloneExpr(e.Second), Third: CloneExpr(e.Third), Fourth: CloneExpr(e.Fourth)}
	case *PackAccess:
		return &PackAccess{Pack: CloneExpr(e.Pack), Component: e.Component}
	case *MemberAccess:
		return &MemberAccess{Object: CloneExpr(e.Object), Member: e.Member}
	case *SelfExpression:
		return &SelfExpression{}
	default:
		panic("CloneExpr: unhandled expression kind")
	}
}

// Package opt holds the AST-to-AST optimization passes that run between
// analysis and CFG construction: global and local common-subexpression
// elimination, compile-time bounds checking, and string-literal lifting.
// Every pass runs to completion and accumulates its findings; nothing here
// panics on malformed input.
package opt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beagle-lang/beagle/internal/ast"
)

// canonicalKey renders an expression as a canonical string: operators are
// tagged, operands recursed, and commutative operands sorted so a+b and b+a
// hash identically.
func canonicalKey(e ast.Expr) string {
	switch e := e.(type) {
	case nil:
		return ""
	case *ast.NumberLiteral:
		if e.IsFloat {
			return fmt.Sprintf("flt:%g", e.FloatValue)
		}
		return fmt.Sprintf("int:%d", e.IntValue)
	case *ast.StringLiteral:
		return "str:" + e.Value
	case *ast.CharLiteral:
		return fmt.Sprintf("chr:%d", e.Value)
	case *ast.BooleanLiteral:
		return fmt.Sprintf("bool:%v", e.Value)
	case *ast.VariableAccess:
		return "var:" + e.Name
	case *ast.BinaryOp:
		l, r := canonicalKey(e.Left), canonicalKey(e.Right)
		if e.Op.IsCommutative() && r < l {
			l, r = r, l
		}
		return fmt.Sprintf("(%s %s %s)", l, e.Op, r)
	case *ast.UnaryOp:
		return fmt.Sprintf("(u%d %s)", e.Op, canonicalKey(e.Operand))
	case *ast.VectorAccess:
		return fmt.Sprintf("(ix %s %s)", canonicalKey(e.Vector), canonicalKey(e.Index))
	case *ast.CharIndirection:
		return fmt.Sprintf("(cx %s %s)", canonicalKey(e.String), canonicalKey(e.Index))
	case *ast.FunctionCall:
		parts := make([]string, 0, len(e.Args)+1)
		parts = append(parts, canonicalKey(e.Callee))
		for _, a := range e.Args {
			parts = append(parts, canonicalKey(a))
		}
		return "(call " + strings.Join(parts, " ") + ")"
	case *ast.PackAccess:
		return fmt.Sprintf("(pk %s %s)", canonicalKey(e.Pack), e.Component)
	case *ast.MemberAccess:
		return fmt.Sprintf("(mb %s %s)", canonicalKey(e.Object), e.Member)
	default:
		// Allocation and pack constructors are never CSE candidates; give
		// each instance a unique key.
		return fmt.Sprintf("opaque:%p", e)
	}
}

// countBinaryOps walks a statement and counts every BinaryOp subexpression by
// canonical key. This is pass 1 of both CSE variants.
func countBinaryOps(s ast.Stmt, counts map[string]int) {
	ast.Walk(s, func(n ast.Node) bool {
		if b, ok := n.(*ast.BinaryOp); ok {
			counts[canonicalKey(b)]++
		}
		return true
	})
}

// assignedNames returns the variable names a statement writes.
func assignedNames(s ast.Stmt) []string {
	var out []string
	switch s := s.(type) {
	case *ast.AssignmentStatement:
		for _, l := range s.LHS {
			if v, ok := l.(*ast.VariableAccess); ok {
				out = append(out, v.Name)
			}
		}
	case *ast.LetStatement:
		out = append(out, s.Names...)
	case *ast.ReductionStatement:
		out = append(out, s.ResultVar)
	}
	return out
}

// sortedKeys returns map keys in deterministic order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

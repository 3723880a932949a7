// Package cfg builds a per-function control-flow graph over AST statements.
// Blocks carry AST fragments, not instructions; the code emitter lowers them
// after register allocation. The builder is the sole authority for placing
// scope-cleanup code: it weaves synthetic release statements into every exit
// path, so no other pass may emit cleanup (double free).
package cfg

import (
	"fmt"
	"sort"

	"github.com/beagle-lang/beagle/internal/ast"
)

// EdgeKind annotates a successor edge.
type EdgeKind int

const (
	EdgeFallThrough EdgeKind = iota
	EdgeCondTrue
	EdgeCondFalse
	EdgeLoopBack
	EdgeCleanup
)

var edgeKindNames = [...]string{
	EdgeFallThrough: "fallthrough",
	EdgeCondTrue:    "true",
	EdgeCondFalse:   "false",
	EdgeLoopBack:    "loopback",
	EdgeCleanup:     "cleanup",
}

// String implements fmt.Stringer.
func (k EdgeKind) String() string { return edgeKindNames[k] }

// Edge is one successor relation. Blocks refer to each other by id so the
// loop-back cycles need no owning references.
type Edge struct {
	To   string
	Kind EdgeKind
}

// BasicBlock is a straight-line statement sequence with a stable id.
type BasicBlock struct {
	ID         string
	Statements []ast.Stmt
	Succs      []Edge
	Preds      []string
	IsExit     bool
}

// Graph is the control-flow graph of one function: single entry, with every
// exit path routed through cleanup into the exit block.
type Graph struct {
	FunctionName string
	Entry        string
	Exit         string
	Blocks       map[string]*BasicBlock
}

// Block returns the block with the given id.
func (g *Graph) Block(id string) *BasicBlock { return g.Blocks[id] }

// AddEdge links from -> to with the given kind and maintains the symmetric
// predecessor list.
func (g *Graph) AddEdge(from, to string, kind EdgeKind) {
	f, t := g.Blocks[from], g.Blocks[to]
	if f == nil || t == nil {
		panic(fmt.Sprintf("BUG: edge %s -> %s references unknown block", from, to))
	}
	f.Succs = append(f.Succs, Edge{To: to, Kind: kind})
	t.Preds = append(t.Preds, from)
}

// Validate checks the structural invariants: every block reachable from
// entry, every non-exit block has a successor, and predecessor/successor
// relations are symmetric.
func (g *Graph) Validate() error {
	reached := map[string]bool{}
	stack := []string{g.Entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[id] {
			continue
		}
		reached[id] = true
		for _, e := range g.Blocks[id].Succs {
			stack = append(stack, e.To)
		}
	}

	ids := make([]string, 0, len(g.Blocks))
	for id := range g.Blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		b := g.Blocks[id]
		if !reached[id] {
			return fmt.Errorf("function %s: block %s is unreachable from entry", g.FunctionName, id)
		}
		if !b.IsExit && len(b.Succs) == 0 {
			return fmt.Errorf("function %s: block %s has no successor", g.FunctionName, id)
		}
		for _, e := range b.Succs {
			t := g.Blocks[e.To]
			if t == nil {
				return fmt.Errorf("function %s: block %s has edge to unknown block %s", g.FunctionName, id, e.To)
			}
			if !containsString(t.Preds, id) {
				return fmt.Errorf("function %s: edge %s -> %s has no matching predecessor entry", g.FunctionName, id, e.To)
			}
		}
		for _, p := range b.Preds {
			f := g.Blocks[p]
			if f == nil {
				return fmt.Errorf("function %s: block %s has unknown predecessor %s", g.FunctionName, id, p)
			}
			found := false
			for _, e := range f.Succs {
				if e.To == id {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("function %s: predecessor %s of %s has no matching edge", g.FunctionName, p, id)
			}
		}
	}
	return nil
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

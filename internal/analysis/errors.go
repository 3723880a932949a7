package analysis

import "fmt"

// PotentialMemoryLeakWarning reports a reassignment of a heap-owning variable
// to a fresh allocation. It is a warning: the build continues.
type PotentialMemoryLeakWarning struct {
	Variable string
	Function string
}

// Error implements error.
func (e *PotentialMemoryLeakWarning) Error() string {
	return fmt.Sprintf("potential memory leak: variable '%s' in function '%s' already owns a heap allocation", e.Variable, e.Function)
}

// DestructuringArityError reports a destructuring assignment whose RHS type
// does not provide the number of components the LHS demands.
type DestructuringArityError struct {
	Expected int
	Found    int
}

// Error implements error.
func (e *DestructuringArityError) Error() string {
	return fmt.Sprintf("destructuring arity mismatch: expected %d components, found %d", e.Expected, e.Found)
}

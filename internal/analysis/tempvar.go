package analysis

import (
	"fmt"

	"github.com/beagle-lang/beagle/internal/symtab"
	"github.com/beagle-lang/beagle/internal/types"
)

// TempFactory hands out fresh temporary names to the optimization passes and
// registers each one in the symbol table and the owning function's metrics.
type TempFactory struct {
	counter int
}

// Create registers a new temporary of the given type in functionName and
// returns its name (_opt_temp_N).
func (f *TempFactory) Create(functionName string, typ types.VarType, table *symtab.Table, metrics *symtab.FunctionMetrics) string {
	name := fmt.Sprintf("_opt_temp_%d", f.counter)
	f.counter++

	prev := table.CurrentFunction()
	table.SetCurrentFunction(functionName)
	table.AddSymbol(symtab.NewSymbol(name, symtab.LocalVar, typ, table.ScopeLevel(), functionName))
	table.SetCurrentFunction(prev)

	if metrics != nil {
		metrics.SetVariableType(name, typ)
		if typ.Has(types.Float) {
			metrics.NumFloatVariables++
		} else {
			metrics.NumVariables++
		}
	}
	return name
}

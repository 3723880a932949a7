package symtab

import (
	"strings"

	"go.uber.org/zap"

	"github.com/beagle-lang/beagle/internal/types"
)

// Table is the persistent, append-only symbol store. Every AddSymbol appends
// to a single log; ExitScope only decrements the scope counter and never
// removes entries. Later passes read the full history.
type Table struct {
	symbols      []Symbol
	scopeLevel   int
	currentFn    string
	logger       *zap.Logger
}

// NewTable returns an empty table at global scope.
func NewTable(logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{currentFn: GlobalScope, logger: logger}
}

// EnterScope increments the scope depth.
func (t *Table) EnterScope() { t.scopeLevel++ }

// ExitScope decrements the scope depth. Symbols declared in the exited scope
// remain in the log.
func (t *Table) ExitScope() {
	if t.scopeLevel == 0 {
		t.logger.Warn("attempting to exit global scope")
		return
	}
	t.scopeLevel--
}

// ScopeLevel returns the current scope depth; 0 is global.
func (t *Table) ScopeLevel() int { return t.scopeLevel }

// SetCurrentFunction sets the function context for subsequent AddSymbol calls.
func (t *Table) SetCurrentFunction(name string) { t.currentFn = name }

// CurrentFunction returns the active function context.
func (t *Table) CurrentFunction() string { return t.currentFn }

// AddSymbol appends a symbol to the log. It returns false without appending
// when a symbol with the same name already exists at the current scope level
// in the current function.
func (t *Table) AddSymbol(s Symbol) bool {
	for i := len(t.symbols) - 1; i >= 0; i-- {
		e := &t.symbols[i]
		if e.Name == s.Name && e.ScopeLevel == t.scopeLevel && e.FunctionName == t.currentFn {
			return false
		}
	}
	t.symbols = append(t.symbols, s)
	t.logger.Debug("symbol added", zap.String("symbol", s.String()))
	return true
}

// Lookup finds the most recent symbol with the given name, searching the
// whole log newest-first regardless of function context.
func (t *Table) Lookup(name string) (Symbol, bool) {
	for i := len(t.symbols) - 1; i >= 0; i-- {
		if t.symbols[i].Name == name {
			return t.symbols[i], true
		}
	}
	t.logger.Debug("lookup failed", zap.String("name", name))
	return Symbol{}, false
}

// LookupIn finds a symbol by name and function context. The search order is
// invariant: the requested context first, then Global, then any other local
// context (with a warning). The analyzer depends on this order for
// class-member shadowing and cross-function visibility.
func (t *Table) LookupIn(name, functionName string) (Symbol, bool) {
	for i := len(t.symbols) - 1; i >= 0; i-- {
		if e := &t.symbols[i]; e.Name == name && e.FunctionName == functionName {
			return *e, true
		}
	}
	for i := len(t.symbols) - 1; i >= 0; i-- {
		if e := &t.symbols[i]; e.Name == name && e.FunctionName == GlobalScope {
			return *e, true
		}
	}
	for i := len(t.symbols) - 1; i >= 0; i-- {
		e := &t.symbols[i]
		if e.Name == name && e.FunctionName != GlobalScope && e.FunctionName != functionName {
			t.logger.Warn("symbol found in different context",
				zap.String("name", name),
				zap.String("found_in", e.FunctionName),
				zap.String("requested", functionName))
			return *e, true
		}
	}
	t.logger.Debug("lookup failed",
		zap.String("name", name), zap.String("function", functionName))
	return Symbol{}, false
}

// SymbolsInScope returns every symbol declared at the given scope level, in
// declaration order.
func (t *Table) SymbolsInScope(level int) []Symbol {
	var out []Symbol
	for _, s := range t.symbols {
		if s.ScopeLevel == level {
			out = append(out, s)
		}
	}
	return out
}

// UpdateSymbol replaces the newest entry with the given name if the new
// type passes the priority rule.
func (t *Table) UpdateSymbol(name string, s Symbol) bool {
	for i := len(t.symbols) - 1; i >= 0; i-- {
		if t.symbols[i].Name == name {
			if !types.ShouldUpdate(t.symbols[i].Type, s.Type) {
				return false
			}
			t.symbols[i] = s
			t.logger.Debug("symbol updated", zap.String("symbol", s.String()))
			return true
		}
	}
	return false
}

// UpdateSymbolType refines the newest entry's type, subject to the priority
// update rule.
func (t *Table) UpdateSymbolType(name string, typ types.VarType) bool {
	for i := len(t.symbols) - 1; i >= 0; i-- {
		if t.symbols[i].Name == name {
			if !types.ShouldUpdate(t.symbols[i].Type, typ) {
				return false
			}
			t.symbols[i].Type = typ
			t.logger.Debug("symbol type updated",
				zap.String("name", name), zap.Stringer("type", typ))
			return true
		}
	}
	return false
}

// UpdateParamType refines one parameter descriptor of a function-like symbol.
func (t *Table) UpdateParamType(functionName string, index int, typ types.VarType) bool {
	for i := range t.symbols {
		s := &t.symbols[i]
		if s.Name == functionName && s.Kind.IsFunctionLike() && index < len(s.Params) {
			s.Params[index].Type = typ
			return true
		}
	}
	return false
}

// SetStackLocation assigns a frame-pointer-relative slot to the newest entry
// with the given name.
func (t *Table) SetStackLocation(name string, offset int) {
	for i := len(t.symbols) - 1; i >= 0; i-- {
		if t.symbols[i].Name == name {
			t.symbols[i].Location = StackLocation(offset)
			return
		}
	}
}

// SetDataLocation assigns a data-segment slot to the newest entry.
func (t *Table) SetDataLocation(name string, offset uint64) {
	for i := len(t.symbols) - 1; i >= 0; i-- {
		if t.symbols[i].Name == name {
			t.symbols[i].Location = DataLocation(offset)
			return
		}
	}
}

// SetAbsoluteValue assigns an absolute-immediate location to the newest entry.
func (t *Table) SetAbsoluteValue(name string, value int64) {
	for i := len(t.symbols) - 1; i >= 0; i-- {
		if t.symbols[i].Name == name {
			t.symbols[i].Location = AbsoluteLocation(value)
			return
		}
	}
}

// MarkOwnsHeapMemory sets or clears the ownership flag on the newest entry.
func (t *Table) MarkOwnsHeapMemory(name string, owns bool) {
	for i := len(t.symbols) - 1; i >= 0; i-- {
		if t.symbols[i].Name == name {
			t.symbols[i].OwnsHeapMemory = owns
			return
		}
	}
}

// SetSymbolSize records a compile-time size on the newest entry.
func (t *Table) SetSymbolSize(name string, size int) {
	for i := len(t.symbols) - 1; i >= 0; i-- {
		if t.symbols[i].Name == name {
			t.symbols[i].HasSize = true
			t.symbols[i].Size = size
			return
		}
	}
}

// AllSymbols returns the full log in declaration order.
func (t *Table) AllSymbols() []Symbol {
	out := make([]Symbol, len(t.symbols))
	copy(out, t.symbols)
	return out
}

// String implements fmt.Stringer.
func (t *Table) String() string {
	var b strings.Builder
	b.WriteString("Symbol Table (Persistent, All Symbols)\n")
	for _, s := range t.symbols {
		b.WriteString(s.String())
		b.WriteByte('\n')
	}
	return b.String()
}

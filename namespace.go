package symex

import (
	"fmt"
	"sort"
)

// Symbol represents a declared program variable or function.
type Symbol struct {
	Name string
	Type Type

	// StaticLifetime marks globals. Globals are shared between threads
	// unless they are also ThreadLocal.
	StaticLifetime bool
	ThreadLocal    bool

	// Shared explicitly marks a symbol as visible to all threads.
	Shared bool

	// Auxiliary symbols are introduced by the engine and hidden from traces.
	Auxiliary bool
}

// IsShared returns true if a single instance of the symbol is visible to
// all threads.
func (s *Symbol) IsShared() bool {
	return s.Shared || (s.StaticLifetime && !s.ThreadLocal)
}

// Expr returns a symbol expression referencing s.
func (s *Symbol) Expr() *SymbolExpr {
	return &SymbolExpr{Name: s.Name, Type: s.Type}
}

// SymbolTable holds symbols by name.
type SymbolTable struct {
	m map[string]*Symbol
}

// NewSymbolTable returns a new, empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{m: make(map[string]*Symbol)}
}

// Add inserts sym into the table. Returns an error if the name is taken.
func (t *SymbolTable) Add(sym *Symbol) error {
	if _, ok := t.m[sym.Name]; ok {
		return fmt.Errorf("duplicate symbol: %s", sym.Name)
	}
	t.m[sym.Name] = sym
	return nil
}

// Lookup returns the symbol with the given name.
func (t *SymbolTable) Lookup(name string) (*Symbol, bool) {
	sym, ok := t.m[name]
	return sym, ok
}

// Len returns the number of symbols in the table.
func (t *SymbolTable) Len() int { return len(t.m) }

// Symbols returns all symbols sorted by name.
func (t *SymbolTable) Symbols() []*Symbol {
	a := make([]*Symbol, 0, len(t.m))
	for _, sym := range t.m {
		a = append(a, sym)
	}
	sort.Slice(a, func(i, j int) bool { return a[i].Name < a[j].Name })
	return a
}

// Clone returns a copy of the table. Symbols are shared.
func (t *SymbolTable) Clone() *SymbolTable {
	other := NewSymbolTable()
	for k, v := range t.m {
		other.m[k] = v
	}
	return other
}

// Namespace is a read-only view over a stack of symbol tables. Lookups
// search the tables in order.
type Namespace struct {
	tables []*SymbolTable
}

// NewNamespace returns a namespace over the given tables.
func NewNamespace(tables ...*SymbolTable) *Namespace {
	return &Namespace{tables: tables}
}

// Lookup returns the first symbol named name.
func (ns *Namespace) Lookup(name string) (*Symbol, bool) {
	if ns == nil {
		return nil, false
	}
	for _, t := range ns.tables {
		if t == nil {
			continue
		}
		if sym, ok := t.Lookup(name); ok {
			return sym, true
		}
	}
	return nil, false
}

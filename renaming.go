package symex

import (
	"github.com/benbjohnson/immutable"
)

// GuardIdentifier names the distinguished symbol used for guard
// assignments. It is never renamed at level 0.
const GuardIdentifier = "symex::\\guard"

// RenamingLevel is a persistent map from an identifier to its current
// counter. Copying a RenamingLevel produces an independent snapshot in
// constant time; all mutations replace the underlying map.
type RenamingLevel struct {
	m *immutable.SortedMap // identifier -> renamingEntry
}

type renamingEntry struct {
	expr  *SSAExpr
	count int
}

// NewRenamingLevel returns an empty renaming level.
func NewRenamingLevel() RenamingLevel {
	return RenamingLevel{m: immutable.NewSortedMap(&stringComparer{})}
}

// Len returns the number of identifiers in the level.
func (r RenamingLevel) Len() int {
	if r.m == nil {
		return 0
	}
	return r.m.Len()
}

// Get returns the symbol and counter registered for id.
func (r RenamingLevel) Get(id string) (*SSAExpr, int, bool) {
	if r.m == nil {
		return nil, 0, false
	}
	v, ok := r.m.Get(id)
	if !ok {
		return nil, 0, false
	}
	entry := v.(renamingEntry)
	return entry.expr, entry.count, true
}

// CurrentCount returns the counter for id, or zero if id is not registered.
func (r RenamingLevel) CurrentCount(id string) int {
	_, n, _ := r.Get(id)
	return n
}

// Set registers expr under id with the given counter.
func (r *RenamingLevel) Set(id string, expr *SSAExpr, count int) {
	if r.m == nil {
		r.m = immutable.NewSortedMap(&stringComparer{})
	}
	r.m = r.m.Set(id, renamingEntry{expr: expr, count: count})
}

// Increase sets the counter for id to fresh, which must be greater than
// any counter previously used for id on any path.
func (r *RenamingLevel) Increase(id string, expr *SSAExpr, fresh int) {
	invariant(fresh > r.CurrentCount(id), "renaming counter for %s must increase: %d <= %d", id, fresh, r.CurrentCount(id))
	r.Set(id, expr, fresh)
}

// Delete removes id from the level.
func (r *RenamingLevel) Delete(id string) {
	if r.m != nil {
		r.m = r.m.Delete(id)
	}
}

// Identifiers returns all registered identifiers in sorted order.
func (r RenamingLevel) Identifiers() []string {
	var a []string
	r.each(func(id string, _ *SSAExpr, _ int) {
		a = append(a, id)
	})
	return a
}

// Variables returns the registered symbols in identifier order.
func (r RenamingLevel) Variables() []*SSAExpr {
	var a []*SSAExpr
	r.each(func(_ string, expr *SSAExpr, _ int) {
		a = append(a, expr)
	})
	return a
}

func (r RenamingLevel) each(fn func(id string, expr *SSAExpr, count int)) {
	if r.m == nil {
		return
	}
	itr := r.m.Iterator()
	for !itr.Done() {
		k, v := itr.Next()
		entry := v.(renamingEntry)
		fn(k.(string), entry.expr, entry.count)
	}
}

// Level0 renames symbols to their thread-local instance.
type Level0 struct{}

// Rename stamps expr with threadNr unless it is already leveled, is the
// guard identifier, denotes a function, or is shared between threads.
// Panics if the symbol is not in the namespace.
func (Level0) Rename(expr *SSAExpr, ns *Namespace, threadNr int) *SSAExpr {
	if expr.HasL0() || expr.HasL1() || expr.HasL2() {
		return expr
	} else if expr.ObjectName() == GuardIdentifier {
		return expr
	}

	sym, ok := ns.Lookup(expr.ObjectName())
	invariant(ok, "level0: failed to find identifier %q", expr.ObjectName())

	if _, ok := sym.Type.(*CodeType); ok || sym.IsShared() {
		return expr
	}
	return expr.WithL0(threadNr)
}

// Level1 maps an L0 identifier to the index of the frame that owns it.
type Level1 struct {
	RenamingLevel
}

// Rename stamps expr with its current frame index. Symbols without a
// registered frame are left at level 0.
func (l Level1) Rename(expr *SSAExpr) *SSAExpr {
	if expr.HasL1() || expr.HasL2() {
		return expr
	}
	if _, n, ok := l.Get(expr.L0Identifier()); ok {
		return expr.WithL1(n)
	}
	return expr
}

// RestoreFrom merges other into l. Entries missing from l are inserted and
// entries whose counter differs are overwritten.
func (l *Level1) RestoreFrom(other RenamingLevel) {
	other.each(func(id string, expr *SSAExpr, count int) {
		if cur, n, ok := l.Get(id); !ok || n != count || cur.Identifier() != expr.Identifier() {
			l.Set(id, expr, count)
		}
	})
}

// Level2 maps an L1 identifier to its current assignment counter.
type Level2 struct {
	RenamingLevel
}

// Rename stamps expr with its current assignment counter, defaulting to zero.
func (l Level2) Rename(expr *SSAExpr) *SSAExpr {
	if expr.HasL2() {
		return expr
	}
	return expr.WithL2(l.CurrentCount(expr.L1Identifier()))
}

// OriginalName strips every renaming level from all symbols within expr,
// including symbols referenced by types.
func OriginalName(expr Expr) Expr {
	if expr == nil {
		return nil
	}
	return WalkExpr(exprVisitorFunc(func(e Expr) (Expr, bool) {
		switch e := e.(type) {
		case *SSAExpr:
			return &SymbolExpr{Name: e.Symbol.Name, Type: OriginalType(e.Symbol.Type)}, false
		case *SymbolExpr:
			if t := OriginalType(e.Type); t != e.Type {
				return &SymbolExpr{Name: e.Name, Type: t}, false
			}
		case *NondetExpr:
			if t := OriginalType(e.Type); t != e.Type {
				return &NondetExpr{Type: t}, false
			}
		case *DerefExpr:
			if t := OriginalType(e.Type); t != e.Type {
				return &DerefExpr{Pointer: e.Pointer, Type: t}, true
			}
		}
		return e, true
	}), expr)
}

// OriginalType strips renaming from every expression within t.
func OriginalType(t Type) Type {
	return mapType(t, OriginalName)
}

// mapType applies fn to each expression embedded in t. Returns t unchanged
// if no expression changed.
func mapType(t Type, fn func(Expr) Expr) Type {
	switch t := t.(type) {
	case *ArrayType:
		elem := mapType(t.Elem, fn)
		var size Expr
		if t.Size != nil {
			size = fn(t.Size)
		}
		if elem != t.Elem || size != t.Size {
			return &ArrayType{Elem: elem, Size: size}
		}
	case *StructType:
		var changed bool
		components := make([]StructComponent, len(t.Components))
		for i, c := range t.Components {
			components[i] = StructComponent{Name: c.Name, Type: mapType(c.Type, fn)}
			changed = changed || components[i].Type != c.Type
		}
		if changed {
			return &StructType{Components: components}
		}
	case *PointerType:
		if elem := mapType(t.Elem, fn); elem != t.Elem {
			return &PointerType{Elem: elem}
		}
	case *CodeType:
		var changed bool
		params := make([]Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = mapType(p, fn)
			changed = changed || params[i] != p
		}
		ret := t.Return
		if ret != nil {
			ret = mapType(ret, fn)
		}
		if changed || ret != t.Return {
			return &CodeType{Params: params, Return: ret}
		}
	}
	return t
}

// stringComparer compares two strings. Implements immutable.Comparer.
type stringComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b, and
// returns 0 if a is equal to b. Panic if a or b is not a string.
func (c *stringComparer) Compare(a, b interface{}) int {
	if i, j := a.(string), b.(string); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}

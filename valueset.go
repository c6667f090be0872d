package symex

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// ValueSetOracle answers which objects a pointer expression may point to.
type ValueSetOracle interface {
	// PointsTo returns the candidate objects for ptr sorted by name. ptr is
	// expressed in original, unrenamed symbols.
	PointsTo(ptr Expr) []*SymbolExpr
}

// FlowInsensitiveValueSet is a whole-program points-to analysis. Every
// assignment of an address or pointer, including parameter passing and
// return values, contributes to the sets regardless of control flow.
type FlowInsensitiveValueSet struct {
	sets    map[string]mapset.Set[string]
	objects map[string]*SymbolExpr
}

// NewFlowInsensitiveValueSet computes the points-to sets of prog.
func NewFlowInsensitiveValueSet(prog *Program) *FlowInsensitiveValueSet {
	vs := &FlowInsensitiveValueSet{
		sets:    make(map[string]mapset.Set[string]),
		objects: make(map[string]*SymbolExpr),
	}

	// Iterate until no set grows.
	for changed := true; changed; {
		changed = false
		for _, name := range prog.FunctionNames() {
			fn := prog.Functions[name]
			for _, instr := range fn.Body {
				switch instr := instr.(type) {
				case *AssignInstr:
					changed = vs.assign(instr.LHS, instr.RHS) || changed
				case *ReturnInstr:
					if instr.Value != nil {
						lhs := &SymbolExpr{Name: fn.ReturnValueName(), Type: fn.ReturnType}
						changed = vs.assign(lhs, instr.Value) || changed
					}
				case *FunctionCallInstr:
					callee := prog.Functions[instr.Function]
					if callee == nil {
						continue
					}
					for i, param := range callee.Params {
						if i < len(instr.Args) {
							changed = vs.assign(param, instr.Args[i]) || changed
						}
					}
					if instr.LHS != nil && callee.ReturnType != nil {
						rv := &SymbolExpr{Name: callee.ReturnValueName(), Type: callee.ReturnType}
						changed = vs.assign(instr.LHS, rv) || changed
					}
				}
			}
		}
	}
	return vs
}

// assign adds the targets of rhs to the sets of the objects lhs denotes.
// Returns true if any set changed.
func (vs *FlowInsensitiveValueSet) assign(lhs, rhs Expr) bool {
	if _, ok := ExprType(rhs).(*PointerType); !ok {
		return false
	}

	var dsts []string
	switch lhs := lhs.(type) {
	case *SymbolExpr:
		dsts = []string{lhs.Name}
	case *DerefExpr:
		for _, obj := range vs.PointsTo(lhs.Pointer) {
			dsts = append(dsts, obj.Name)
		}
	default:
		return false
	}

	var changed bool
	for _, obj := range vs.PointsTo(rhs) {
		for _, dst := range dsts {
			set := vs.sets[dst]
			if set == nil {
				set = mapset.NewThreadUnsafeSet[string]()
				vs.sets[dst] = set
			}
			if set.Add(obj.Name) {
				changed = true
			}
		}
	}
	return changed
}

// PointsTo returns the objects ptr may point to.
func (vs *FlowInsensitiveValueSet) PointsTo(ptr Expr) []*SymbolExpr {
	set := mapset.NewThreadUnsafeSet[string]()
	vs.collect(ptr, set)

	names := set.ToSlice()
	sort.Strings(names)

	a := make([]*SymbolExpr, 0, len(names))
	for _, name := range names {
		a = append(a, vs.objects[name])
	}
	return a
}

func (vs *FlowInsensitiveValueSet) collect(ptr Expr, set mapset.Set[string]) {
	switch ptr := ptr.(type) {
	case *AddressOfExpr:
		if obj, ok := ptr.Object.(*SymbolExpr); ok {
			vs.objects[obj.Name] = obj
			set.Add(obj.Name)
		}
	case *SymbolExpr:
		vs.union(set, ptr.Name)
	case *IteExpr:
		vs.collect(ptr.Then, set)
		vs.collect(ptr.Else, set)
	case *DerefExpr:
		inner := mapset.NewThreadUnsafeSet[string]()
		vs.collect(ptr.Pointer, inner)
		for _, name := range inner.ToSlice() {
			vs.union(set, name)
		}
	}
}

// union adds the points-to set of the named pointer to set.
func (vs *FlowInsensitiveValueSet) union(set mapset.Set[string], name string) {
	if s := vs.sets[name]; s != nil {
		for _, obj := range s.ToSlice() {
			set.Add(obj)
		}
	}
}

package symex

import (
	"fmt"

	"go.uber.org/zap"
)

// symexAssign executes "lhs := rhs".
func (e *Executor) symexAssign(state *State, lhs, rhs Expr, kind AssignmentKind) error {
	rhs, err := e.cleanExpr(state, rhs)
	if err != nil {
		return err
	}
	return e.assignLHS(state, lhs, rhs, kind)
}

// cleanExpr removes side effects from expr before renaming. Each nondet
// value becomes a fresh symbol and each dereference becomes a choice over
// the objects the pointer may point to.
func (e *Executor) cleanExpr(state *State, expr Expr) (Expr, error) {
	if expr == nil {
		return nil, nil
	}

	var err error
	other := WalkExpr(exprVisitorFunc(func(x Expr) (Expr, bool) {
		if err != nil {
			return x, false
		}
		switch x := x.(type) {
		case *NondetExpr:
			return e.freshNondet(state, x.Type), false
		case *DerefExpr:
			resolved, e2 := e.dereference(state, x)
			if e2 != nil {
				err = e2
				return x, false
			}
			return resolved, false
		}
		return x, true
	}), expr)
	return other, err
}

// dereference returns an expression selecting, by comparing the pointer
// against each candidate's address, the object that d refers to.
func (e *Executor) dereference(state *State, d *DerefExpr) (Expr, error) {
	ptr, err := e.cleanExpr(state, d.Pointer)
	if err != nil {
		return nil, err
	} else if addr, ok := ptr.(*AddressOfExpr); ok {
		return addr.Object, nil
	}

	objs := e.ValueSet.PointsTo(d.Pointer)
	if len(objs) == 0 {
		return nil, unsupported("dereference of %s with empty points-to set", d.Pointer)
	}

	var result Expr = objs[len(objs)-1]
	for i := len(objs) - 2; i >= 0; i-- {
		result = NewIteExpr(NewBinaryExpr(EQ, ptr, NewAddressOfExpr(objs[i])), objs[i], result)
	}
	return result, nil
}

// freshNondet registers a new shared symbol standing for an arbitrary value.
func (e *Executor) freshNondet(state *State, t Type) *SymbolExpr {
	state.names.nondet++
	sym := &Symbol{
		Name:      fmt.Sprintf("symex::nondet%d", state.names.nondet),
		Type:      t,
		Shared:    true,
		Auxiliary: true,
	}
	err := state.Symbols.Add(sym)
	invariant(err == nil, "nondet symbol: %v", err)
	return sym.Expr()
}

// assignLHS assigns an already cleaned rhs to lhs.
func (e *Executor) assignLHS(state *State, lhs, rhs Expr, kind AssignmentKind) error {
	switch lhs := lhs.(type) {
	case *SymbolExpr:
		e.assignSymbol(state, NewSSAExpr(lhs), lhs, rhs, kind)
		return nil

	case *SSAExpr:
		e.assignSymbol(state, lhs, lhs.Symbol, rhs, kind)
		return nil

	case *IndexExpr:
		// a[i] := v is a := a with [i] = v.
		array, err := e.cleanExpr(state, lhs.Array)
		if err != nil {
			return err
		}
		index, err := e.cleanExpr(state, lhs.Index)
		if err != nil {
			return err
		}
		return e.assignLHS(state, lhs.Array, NewWithExpr(array, index, rhs), kind)

	case *DerefExpr:
		objs := e.ValueSet.PointsTo(lhs.Pointer)
		switch len(objs) {
		case 0:
			return unsupported("assignment through %s with empty points-to set", lhs.Pointer)
		case 1:
			return e.assignLHS(state, objs[0], rhs, kind)
		}

		ptr, err := e.cleanExpr(state, lhs.Pointer)
		if err != nil {
			return err
		}

		// Both sides must be read before any candidate is updated.
		ptr = e.simplify(state.Rename(ptr, e.ns))
		rhs = e.simplify(state.Rename(rhs, e.ns))

		for _, obj := range objs {
			value := NewIteExpr(NewBinaryExpr(EQ, ptr, NewAddressOfExpr(obj)), rhs, obj)
			e.assignSymbol(state, NewSSAExpr(obj), obj, value, kind)
		}
		return nil

	default:
		return unsupported("assignment to %s", lhs)
	}
}

// assignSymbol renames rhs, assigns it to a fresh incarnation of ssa and
// records the step.
func (e *Executor) assignSymbol(state *State, ssa *SSAExpr, original Expr, rhs Expr, kind AssignmentKind) {
	rhs = castTo(e.simplify(state.Rename(rhs, e.ns)), ssa.Symbol.Type)
	lhs := e.assignment(state, ssa, rhs, true)

	if ce := e.Logger.Check(zap.DebugLevel, "[assign]"); ce != nil {
		ce.Write(zap.Stringer("lhs", lhs), zap.Stringer("rhs", rhs), zap.Stringer("kind", kind))
	}
	state.Target.Assignment(state.Guard.AsExpr(), lhs, rhs, original, kind, state.Source)
}

// assignment advances the assignment counter of the object ssa denotes and
// returns the new incarnation. rhs must already be renamed. If
// recordValue is set, constant values are remembered for propagation.
func (e *Executor) assignment(state *State, ssa *SSAExpr, rhs Expr, recordValue bool) *SSAExpr {
	l1 := state.RenameL1(ssa, e.ns)
	id := l1.L1Identifier()

	fresh := state.names.freshL2(id)
	state.Level2.Increase(id, l1, fresh)

	if recordValue && e.canPropagate(state, l1, rhs) {
		state.SetPropagated(id, rhs)
	} else {
		state.SetPropagated(id, nil)
	}
	return l1.WithL2(fresh)
}

// canPropagate returns true if rhs may be substituted for later reads of l1.
func (e *Executor) canPropagate(state *State, l1 *SSAExpr, rhs Expr) bool {
	if !e.Config.ConstantPropagation {
		return false
	}

	switch rhs := rhs.(type) {
	case *ConstantExpr:
	case *AddressOfExpr:
		if _, ok := rhs.Object.(*SSAExpr); !ok {
			return false
		}
	default:
		return false
	}

	// Objects written through pointers may change behind our back.
	if state.Dirty.Contains(l1.ObjectName()) {
		return false
	}

	// Another thread may write a shared object between our steps.
	if len(state.Threads) > 1 {
		if sym, ok := e.ns.Lookup(l1.ObjectName()); ok && sym.IsShared() {
			return false
		}
	}
	return true
}

// castTo converts expr to the width of t if both are scalars of different
// widths.
func castTo(expr Expr, t Type) Expr {
	w, src := TypeWidth(t), ExprWidth(expr)
	if w == 0 || src == 0 || w == src {
		return expr
	}
	return NewCastExpr(expr, w, IsSignedType(ExprType(expr)))
}

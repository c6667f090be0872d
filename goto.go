package symex

import (
	"sort"

	"github.com/benbjohnson/immutable"
	"go.uber.org/zap"
)

// symexGoto executes a GOTO instruction.
func (e *Executor) symexGoto(state *State, fn *Function, instr *GotoInstr) error {
	var cond Expr = NewBoolConstantExpr(true)
	if instr.Cond != nil {
		var err error
		if cond, err = e.cleanExpr(state, instr.Cond); err != nil {
			return err
		}
		cond = e.simplify(state.Rename(cond, e.ns))
	}
	return e.gotoTarget(state, fn, cond, instr.Target)
}

// gotoTarget branches to target if the renamed condition cond holds.
//
// In multi-path mode the state continues along one successor and a
// snapshot for the other successor is saved in the frame, to be merged
// when execution reaches it. Forward jumps continue with the fall-through
// and save the jump; backward jumps continue with the loop and save the
// exit. In path exploration mode both successors are saved as separate
// paths and execution pauses.
func (e *Executor) gotoTarget(state *State, fn *Function, cond Expr, target int) error {
	pc := state.Source.PC

	if IsConstantFalse(cond) {
		state.Target.Location(state.Guard.AsExpr(), state.Source)
		e.transition(state)
		return nil
	}

	backward := target <= pc
	if backward {
		loopID := fn.LoopID(pc)

		if e.Config.SelfLoopsToAssumptions && e.isSelfLoop(fn, pc, target, cond) {
			negated := e.simplify(NewNotExpr(cond))
			e.Logger.Debug("[loop] self-loop replaced by assumption", zap.String("loop", loopID), zap.Stringer("assume", negated))
			if e.Config.UnwindingAssertions {
				e.vcc(state, negated, "unwinding assertion loop "+loopID)
			}
			e.assumeL2(state, negated)
			e.transition(state)
			return nil
		}

		frame := state.Top()
		frame.LoopIterations[loopID]++
		if unwind := frame.LoopIterations[loopID]; e.shouldStopUnwind(loopID, unwind) {
			e.Logger.Debug("[loop] unwinding bound reached", zap.String("loop", loopID), zap.Int("unwind", unwind))
			e.loopBoundExceeded(state, loopID, cond)
			e.transition(state)
			return nil
		}

		if IsConstantTrue(cond) {
			e.transitionTo(state, fn.Name, target, true)
			return nil
		}
	}

	// An unconditional jump with no other live path around it, or on a path
	// explored on its own, needs no merge.
	if IsConstantTrue(cond) && (state.Guard.IsTrue() || e.Config.DoingPathExploration()) {
		e.transitionTo(state, fn.Name, target, backward)
		return nil
	}

	var newStatePC, statePC int
	if !backward {
		newStatePC, statePC = target, pc+1

		// Skip instructions no path can reach.
		if IsConstantTrue(cond) {
			for statePC != target && !fn.IsTarget(statePC) {
				statePC++
			}
		}
		if statePC == target {
			e.transitionTo(state, fn.Name, target, false)
			return nil
		}
	} else {
		newStatePC, statePC = pc+1, target
	}

	if state.HasSavedJumpTarget {
		invariant(newStatePC == state.SavedTarget, "resumed branch at %s expected saved target %d, got %d", state.Source, state.SavedTarget, newStatePC)
		newStatePC, statePC = statePC, newStatePC
		e.Logger.Debug("[path] resuming from jump target", zap.Stringer("source", state.Source), zap.Int("pc", statePC))
	} else if state.HasSavedNextInstruction {
		e.Logger.Debug("[path] resuming from next instruction", zap.Stringer("source", state.Source), zap.Int("pc", statePC))
	} else if e.Config.DoingPathExploration() {
		eq, ok := state.Target.(*Equation)
		invariant(ok, "path exploration requires an equation target, got %T", state.Target)

		next := NewPath(eq, state)
		next.State.SavedTarget = statePC
		next.State.HasSavedNextInstruction = true

		jump := NewPath(eq, state)
		jump.State.SavedTarget = newStatePC
		jump.State.HasSavedJumpTarget = true

		e.Logger.Debug("[fork] saving both successors", zap.Stringer("source", state.Source), zap.Int("next", statePC), zap.Int("jump", newStatePC))
		e.PathStorage.Push(next)
		e.PathStorage.Push(jump)
		e.Pause()
		return nil
	}

	var saved *GotoState
	if !e.Config.DoingPathExploration() {
		frame := state.Top()
		saved = newGotoState(state)
		frame.GotoStates[newStatePC] = append(frame.GotoStates[newStatePC], saved)
		e.Logger.Debug("[fork] saving goto state", zap.Stringer("source", state.Source), zap.Int("target", newStatePC))
	}

	// Coverage is recorded against the narrowed guard.
	switch {
	case IsConstantTrue(cond):
		state.Guard = NewGuardFromExpr(NewBoolConstantExpr(false))
	case state.HasSavedJumpTarget:
		if !backward {
			state.Guard.Add(cond)
		} else {
			state.Guard.Add(NewNotExpr(cond))
		}
	case state.HasSavedNextInstruction:
		if !backward {
			state.Guard.Add(NewNotExpr(cond))
		} else {
			state.Guard.Add(cond)
		}
	case !backward:
		saved.Guard.Add(cond)
		state.Guard.Add(NewNotExpr(cond))
	default:
		saved.Guard.Add(NewNotExpr(cond))
		state.Guard.Add(cond)
	}

	e.transitionTo(state, fn.Name, statePC, backward)
	return nil
}

// isSelfLoop returns true for "l: goto l" and for a goto whose only
// predecessor is the goto it jumps back to.
func (e *Executor) isSelfLoop(fn *Function, pc, target int, cond Expr) bool {
	if target == pc {
		return true
	}
	incoming := fn.Incoming(pc)
	_, isGoto := fn.Body[target].(*GotoInstr)
	return len(incoming) == 1 && incoming[0] == target && isGoto && IsConstantTrue(cond)
}

// shouldStopUnwind returns true if the loop has been unwound to its bound.
func (e *Executor) shouldStopUnwind(loopID string, unwind int) bool {
	bound := e.Config.UnwindBound(loopID)
	return bound > 0 && unwind >= bound
}

// loopBoundExceeded rules out further iterations of a loop whose back edge
// is taken when cond holds.
func (e *Executor) loopBoundExceeded(state *State, loopID string, cond Expr) {
	negated := e.simplify(NewNotExpr(cond))
	if e.Config.UnwindingAssertions {
		e.vcc(state, negated, "unwinding assertion loop "+loopID)
	}
	if !e.Config.PartialLoops {
		e.assumeL2(state, negated)
	}
}

// mergeGotos merges every state saved for the current instruction into
// state, most recently saved first.
func (e *Executor) mergeGotos(state *State) error {
	if state.Done() {
		return nil
	}
	frame := state.Top()
	states, ok := frame.GotoStates[state.Source.PC]
	if !ok {
		return nil
	}

	for i := len(states) - 1; i >= 0; i-- {
		if err := e.mergeGoto(state, states[i]); err != nil {
			return err
		}
	}
	delete(frame.GotoStates, state.Source.PC)
	return nil
}

// mergeGoto merges a saved state into state. If state is unreachable it
// takes over the saved state; otherwise phi assignments reconcile the
// variables assigned differently on the two paths.
func (e *Executor) mergeGoto(state *State, gs *GotoState) error {
	if ce := e.Logger.Check(zap.DebugLevel, "[merge]"); ce != nil {
		fields := []zap.Field{zap.Stringer("from", gs.Source), zap.Stringer("to", state.Source)}
		if fn := e.program.Function(gs.Source.Function); fn != nil && gs.Source.PC < len(fn.Body) {
			if jp, ok := fn.JoinPoint(gs.Source.PC); ok {
				fields = append(fields, zap.Int("join", jp))
			}
		}
		ce.Write(fields...)
	}

	guard := state.Guard
	guard.Or(gs.Guard)

	if !gs.Guard.IsFalse() {
		if state.Guard.IsFalse() {
			state.Level2 = gs.Level2
			state.propagation = gs.propagation
			state.Depth = gs.Depth
			state.AtomicSectionID = gs.AtomicSectionID
		} else {
			if gs.AtomicSectionID != state.AtomicSectionID {
				return &IncorrectProgramError{Source: state.Source, Reason: "atomic sections differ across branches"}
			}
			e.phiFunction(state, gs)
			if gs.Depth < state.Depth {
				state.Depth = gs.Depth
			}
		}
	}

	state.Guard = guard
	return nil
}

// phiFunction emits an assignment for every L1 object whose assignment
// counter differs between the two states. The merged value selects the
// saved value under the part of its guard not shared with state.
func (e *Executor) phiFunction(dest *State, gs *GotoState) {
	if gs.Level2.Len() == 0 && dest.Level2.Len() == 0 {
		return
	}

	diff := gs.Guard
	diff.Sub(dest.Guard)

	for _, id := range mergeIdentifiers(gs.Level2, dest.Level2) {
		gExpr, gCount, gOK := gs.Level2.Get(id)
		dExpr, dCount, dOK := dest.Level2.Get(id)
		if gCount == dCount {
			continue
		}

		ssa := gExpr
		if !gOK {
			ssa = dExpr
		}

		// Locals live on one side only are out of scope on the other.
		if ssa.HasL1() && (!gOK || !dOK) {
			continue
		}

		gRHS, dRHS := phiOperand(gs.propagation, ssa, gCount), phiOperand(dest.propagation, ssa, dCount)

		var rhs Expr
		if dest.Guard.IsFalse() {
			rhs = gRHS
		} else {
			rhs = e.simplify(NewIteExpr(diff.AsExpr(), gRHS, dRHS))
		}

		lhs := e.assignment(dest, ssa, rhs, true)
		dest.Target.Assignment(NewBoolConstantExpr(true), lhs, rhs, ssa.Symbol, AssignmentPhi, dest.Source)
	}
}

// phiOperand returns the value of ssa at the given counter, preferring a
// propagated constant.
func phiOperand(propagation *immutable.SortedMap, ssa *SSAExpr, count int) Expr {
	if v, ok := propagation.Get(ssa.L1Identifier()); ok {
		return v.(Expr)
	}
	return ssa.WithL2(count)
}

// mergeIdentifiers returns the sorted union of the identifiers in a and b.
func mergeIdentifiers(a, b Level2) []string {
	m := make(map[string]struct{})
	for _, id := range a.Identifiers() {
		m[id] = struct{}{}
	}
	for _, id := range b.Identifiers() {
		m[id] = struct{}{}
	}

	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// symexCatch pushes or pops exception handlers on the current frame.
func (e *Executor) symexCatch(state *State, instr *CatchInstr) {
	frame := state.Top()
	if len(instr.Handlers) == 0 {
		if n := len(frame.CatchStack); n > 0 {
			frame.CatchStack = frame.CatchStack[:n-1]
		}
		return
	}
	frame.CatchStack = append(frame.CatchStack, instr.Handlers)
}

// symexThrow jumps to the innermost matching handler of the current frame.
// An exception no frame handles ends the path.
func (e *Executor) symexThrow(state *State, fn *Function, instr *ThrowInstr) error {
	if !state.Reachable() {
		e.transition(state)
		return nil
	}

	frame := state.Top()
	for i := len(frame.CatchStack) - 1; i >= 0; i-- {
		for _, h := range frame.CatchStack[i] {
			if h.Tag != "" && h.Tag != instr.Tag {
				continue
			} else if h.Target <= state.Source.PC {
				return unsupported("exception handler %d precedes THROW at %s", h.Target, state.Source)
			}

			e.Logger.Debug("[throw] caught", zap.String("tag", instr.Tag), zap.Int("handler", h.Target))
			frame.CatchStack = frame.CatchStack[:i]
			return e.gotoTarget(state, fn, NewBoolConstantExpr(true), h.Target)
		}
	}

	stack := state.CallStack()
	for _, f := range stack[:len(stack)-1] {
		if len(f.CatchStack) > 0 {
			return unsupported("exception %q propagates out of %s", instr.Tag, fn.Name)
		}
	}

	e.Logger.Debug("[throw] uncaught", zap.String("tag", instr.Tag), zap.Stringer("source", state.Source))
	state.Guard = NewGuardFromExpr(NewBoolConstantExpr(false))
	e.transition(state)
	return nil
}

package symex

import (
	"go.uber.org/zap"
)

// symexFunctionCall enters the body of the called function. Arguments are
// evaluated in the caller and assigned to fresh instances of the
// parameters.
func (e *Executor) symexFunctionCall(state *State, instr *FunctionCallInstr) error {
	callee := e.program.Function(instr.Function)
	invariant(callee != nil, "call to undefined function %q at %s", instr.Function, state.Source)

	e.populateDirty(state, callee)

	top := state.Top()
	if n := e.Config.RecursionUnwind; n > 0 && top.LoopIterations[callee.Name] >= n {
		e.Logger.Debug("[call] recursion bound reached", zap.String("function", callee.Name), zap.Int("depth", top.LoopIterations[callee.Name]))
		if e.Config.UnwindingAssertions {
			e.vcc(state, NewBoolConstantExpr(false), "recursion unwinding assertion")
		}
		if !e.Config.PartialLoops {
			e.assumeL2(state, NewBoolConstantExpr(false))
		}
		e.transition(state)
		return nil
	}

	args := make([]Expr, len(instr.Args))
	for i, arg := range instr.Args {
		arg, err := e.cleanExpr(state, arg)
		if err != nil {
			return err
		}
		args[i] = e.simplify(state.Rename(arg, e.ns))
	}
	state.Target.FunctionCall(state.Guard.AsExpr(), callee.Name, args, state.Source)

	if !callee.HasBody() {
		e.Logger.Warn("[call] no body for function, result is nondeterministic", zap.String("function", callee.Name))
		state.Target.FunctionReturn(state.Guard.AsExpr(), callee.Name, state.Source)
		if instr.LHS != nil {
			if err := e.symexAssign(state, instr.LHS, NewNondetExpr(ExprType(instr.LHS)), AssignmentState); err != nil {
				return err
			}
		}
		e.transition(state)
		return nil
	}

	// Only recursion counters survive into the callee.
	recursion := make(map[string]int)
	for k, v := range top.LoopIterations {
		if e.program.Function(k) != nil {
			recursion[k] = v
		}
	}

	frame := state.PushFrame(callee.Name)
	frame.EndOfFunction = len(callee.Body) - 1
	frame.ReturnLHS = instr.LHS
	for k, v := range recursion {
		frame.LoopIterations[k] = v
	}
	frame.LoopIterations[callee.Name]++

	for i, param := range callee.Params {
		ssa := e.addObject(state, param)
		rhs := castTo(args[i], param.Type)
		lhs := e.assignment(state, ssa, rhs, true)
		state.Target.Assignment(state.Guard.AsExpr(), lhs, rhs, param, AssignmentState, state.Source)
	}

	e.transitionTo(state, callee.Name, 0, false)
	return nil
}

// addObject gives sym a fresh frame index in the top frame and returns the
// L1 instance. The previous index is restored when the frame is popped.
func (e *Executor) addObject(state *State, sym *SymbolExpr) *SSAExpr {
	ssa := Level0{}.Rename(NewSSAExpr(sym), e.ns, state.Source.ThreadNr)
	id := ssa.L0Identifier()

	frame := state.Top()
	if _, _, ok := frame.OldLevel1.Get(id); !ok {
		if prev, n, ok := state.Level1.Get(id); ok {
			frame.OldLevel1.Set(id, prev, n)
		}
	}

	fresh := state.names.freshL1(id)
	state.Level1.Set(id, ssa, fresh)

	l1 := ssa.WithL1(fresh)
	frame.LocalObjects = append(frame.LocalObjects, l1.L1Identifier())
	return l1
}

// symexDecl creates a fresh object for a declared local.
func (e *Executor) symexDecl(state *State, sym *SymbolExpr) {
	ssa := e.addObject(state, sym)
	id := ssa.L1Identifier()

	fresh := state.names.freshL2(id)
	state.Level2.Increase(id, ssa, fresh)
	state.SetPropagated(id, nil)

	state.Target.Decl(state.Guard.AsExpr(), ssa.WithL2(fresh), state.Source)
}

// symexDead forgets the current value of a local.
func (e *Executor) symexDead(state *State, sym *SymbolExpr) {
	id := state.RenameL1(NewSSAExpr(sym), e.ns).L1Identifier()
	state.SetPropagated(id, nil)
	state.Level2.Delete(id)
}

// symexReturn assigns the return value and jumps to the end of the function.
func (e *Executor) symexReturn(state *State, fn *Function, instr *ReturnInstr) error {
	if instr.Value != nil && fn.ReturnType != nil {
		sym := &SymbolExpr{Name: fn.ReturnValueName(), Type: fn.ReturnType}
		if err := e.symexAssign(state, sym, instr.Value, AssignmentState); err != nil {
			return err
		}
	}
	return e.gotoTarget(state, fn, NewBoolConstantExpr(true), len(fn.Body)-1)
}

// symexEndOfFunction pops the top frame and returns to the caller. The
// return value is copied to the caller's destination, if any.
func (e *Executor) symexEndOfFunction(state *State) error {
	name := state.Source.Function
	if state.Reachable() {
		state.Target.FunctionReturn(state.Guard.AsExpr(), name, state.Source)
	}

	frame := state.PopFrame()
	if state.Done() {
		e.Logger.Debug("[return] thread finished", zap.Int("thread", state.Source.ThreadNr))
		return nil
	}

	if frame.ReturnLHS != nil && state.Reachable() {
		var rhs Expr
		if fn := e.program.Function(frame.Function); fn.ReturnType != nil {
			rhs = &SymbolExpr{Name: fn.ReturnValueName(), Type: fn.ReturnType}
		} else {
			rhs = NewNondetExpr(ExprType(frame.ReturnLHS))
		}
		if err := e.symexAssign(state, frame.ReturnLHS, rhs, AssignmentState); err != nil {
			return err
		}
	}

	e.transitionTo(state, frame.CallingLocation.Function, frame.CallingLocation.PC+1, false)
	return nil
}

// symexStartThread creates a thread starting at the instruction target of
// the current function. The new thread sees a copy of the spawner's
// locals.
func (e *Executor) symexStartThread(state *State, instr *StartThreadInstr) error {
	if state.Guard.IsFalse() {
		return nil
	} else if state.AtomicSectionID != 0 {
		return &IncorrectProgramError{Source: state.Source, Reason: "spawning threads in atomic sections is not allowed"}
	}

	nr := len(state.Threads)
	e.Logger.Debug("[thread] spawn", zap.Int("thread", nr), zap.Int("pc", instr.Target))
	state.Target.Spawn(state.Guard.AsExpr(), nr, state.Source)

	frame := state.Top().Clone()
	frame.LocalObjects = nil
	frame.GotoStates = make(map[int][]*GotoState)
	frame.ReturnLHS = nil
	frame.OldLevel1 = NewRenamingLevel()
	frame.CatchStack = nil

	state.Threads = append(state.Threads, &ThreadState{
		Source:    Source{ThreadNr: nr, Function: state.Source.Function, PC: instr.Target},
		Guard:     state.Guard,
		CallStack: []*Frame{frame},
	})

	for _, ssa := range state.Level2.Variables() {
		if !ssa.HasL1() || ssa.L0 != state.Source.ThreadNr {
			continue
		}

		l0 := NewSSAExpr(ssa.Symbol).WithL0(nr)
		state.Level1.Set(l0.L0Identifier(), l0, 0)

		var rhs Expr = state.Level2.Rename(ssa)
		if v, ok := state.Propagated(ssa.L1Identifier()); ok {
			rhs = v
		}
		lhs := e.assignment(state, l0.WithL1(0), rhs, true)
		frame.LocalObjects = append(frame.LocalObjects, lhs.L1Identifier())
		state.Target.Assignment(state.Guard.AsExpr(), lhs, rhs, ssa.Symbol, AssignmentHidden, state.Source)
	}

	// Thread-local statics start out arbitrary.
	for _, sym := range e.program.Symbols.Symbols() {
		if !sym.StaticLifetime || !sym.ThreadLocal {
			continue
		}
		rhs := state.Rename(e.freshNondet(state, sym.Type), e.ns)
		lhs := e.assignment(state, NewSSAExpr(sym.Expr()).WithL0(nr), rhs, true)
		state.Target.Assignment(state.Guard.AsExpr(), lhs, rhs, sym.Expr(), AssignmentHidden, state.Source)
	}
	return nil
}

package symex

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Executor symbolically executes a goto program, appending the resulting
// steps to a Target.
type Executor struct {
	program *Program
	target  Target
	ns      *Namespace // valid only during SymexWithState

	paused    atomic.Bool
	stepStart time.Time

	totalVCCs     int
	remainingVCCs int

	Config Config

	// Structured logger. Defaults to a no-op logger.
	Logger *zap.Logger

	// Simplifies renamed expressions before they are recorded.
	Simplifier Simplifier

	// Resolves pointer dereferences.
	ValueSet ValueSetOracle

	// Holds suspended paths in path exploration mode.
	PathStorage PathStorage

	// Records transitions if non-nil.
	Coverage *Coverage
}

// NewExecutor returns a new instance of Executor for prog. Steps of states
// created by the executor are sent to target.
func NewExecutor(prog *Program, target Target, config Config) *Executor {
	e := &Executor{
		program:    prog,
		target:     target,
		Config:     config,
		Logger:     zap.NewNop(),
		Simplifier: nopSimplifier{},
		ValueSet:   NewFlowInsensitiveValueSet(prog),
	}

	if config.Simplify {
		e.Simplifier = NewExprSimplifier(config.SimplifyCacheSize)
	}
	if config.Coverage {
		e.Coverage = NewCoverage()
	}

	// An unknown strategy is reported by InitializeEntryPointState.
	if ps, err := NewPathStorage(config.Paths, config.Seed); err == nil {
		e.PathStorage = ps
	}

	return e
}

// Program returns the program being executed.
func (e *Executor) Program() *Program { return e.program }

// TotalVCCs returns the number of verification conditions generated by the
// most recently executed state, including trivially true ones.
func (e *Executor) TotalVCCs() int { return e.totalVCCs }

// RemainingVCCs returns the number of verification conditions that were not
// discharged by simplification.
func (e *Executor) RemainingVCCs() int { return e.remainingVCCs }

// Pause requests that symbolic execution stop at the next instruction
// boundary. The state remains valid and can be resumed. Safe to call from
// another goroutine.
func (e *Executor) Pause() { e.paused.Store(true) }

// Paused returns true if execution has been asked to stop.
func (e *Executor) Paused() bool { return e.paused.Load() }

// InitializeEntryPointState returns a state positioned at the first
// instruction of the program's entry point. Returns an error if the
// executor's configuration is invalid.
func (e *Executor) InitializeEntryPointState() (*State, error) {
	if err := e.Config.Validate(); err != nil {
		return nil, err
	}

	fn := e.program.Function(e.program.EntryPoint)
	if fn == nil || !fn.HasBody() {
		return nil, &UnsupportedOperationError{Reason: ErrNoEntryPoint.Error(), Err: ErrNoEntryPoint}
	}

	state := NewState(Source{Function: fn.Name}, e.target)
	frame := state.PushFrame(fn.Name)
	frame.EndOfFunction = len(fn.Body) - 1
	frame.CallingLocation = Source{Function: fn.Name, PC: frame.EndOfFunction}
	e.populateDirty(state, fn)

	return state, nil
}

// SymexFromEntryPoint executes the program from its entry point until all
// threads finish or execution is paused.
func (e *Executor) SymexFromEntryPoint() (*State, error) {
	state, err := e.InitializeEntryPointState()
	if err != nil {
		return nil, err
	}
	e.paused.Store(false)
	return state, e.SymexWithState(state)
}

// ResumeFromSavedState continues execution from a copy of saved, sending
// subsequent steps to eq.
func (e *Executor) ResumeFromSavedState(saved *State, eq *Equation) (*State, error) {
	state := saved.Clone()
	state.Target = eq
	e.paused.Store(false)
	return state, e.SymexWithState(state)
}

// InitializePathStorageFromEntryPoint saves the entry point state as the
// first path to explore.
func (e *Executor) InitializePathStorageFromEntryPoint() error {
	state, err := e.InitializeEntryPointState()
	if err != nil {
		return err
	}

	eq, ok := e.target.(*Equation)
	if !ok {
		eq = NewEquation()
	}
	e.PathStorage.Push(NewPath(eq, state))
	return nil
}

// ExecuteNextPath resumes the next saved path. The returned path is
// complete if Done() is true; otherwise it stopped at a branch whose
// successors were saved. Returns ErrNoPathAvailable when no paths remain.
func (e *Executor) ExecuteNextPath() (*Path, error) {
	p := e.PathStorage.Pop()
	if p == nil {
		return nil, ErrNoPathAvailable
	}

	e.Logger.Debug("[path] resume", zap.Stringer("source", p.State.Source), zap.Int("remaining", e.PathStorage.Len()))

	p.State.Target = p.Equation
	e.paused.Store(false)
	return p, e.SymexWithState(p.State)
}

// SymexWithState executes state until its threads finish or execution is
// paused.
func (e *Executor) SymexWithState(state *State) error {
	if err := e.Config.Validate(); err != nil {
		return err
	}

	e.ns = NewNamespace(e.program.Symbols, state.Symbols)
	defer func() { e.ns = nil }()

	// The checkpoint flags only apply to the first instruction executed.
	for first := true; !state.Done() && !e.Paused(); first = false {
		if !first {
			state.HasSavedJumpTarget = false
			state.HasSavedNextInstruction = false
		}
		if err := e.threadedStep(state); err != nil {
			return err
		}
	}
	return nil
}

// step executes the instruction at the state's source.
func (e *Executor) step(state *State) error {
	fn := e.program.Function(state.Source.Function)
	invariant(fn != nil, "unknown function: %s", state.Source.Function)
	invariant(state.Source.PC >= 0 && state.Source.PC < len(fn.Body), "pc out of range: %s", state.Source)

	e.stepStart = time.Now()

	if !e.Config.DoingPathExploration() {
		if err := e.mergeGotos(state); err != nil {
			return err
		}
	}

	// Rule out paths that exceed the depth bound.
	if e.Config.MaxDepth > 0 && state.Depth >= e.Config.MaxDepth && state.Reachable() {
		e.Logger.Debug("[depth] bound reached", zap.Stringer("source", state.Source), zap.Int("depth", state.Depth))
		e.assumeL2(state, NewBoolConstantExpr(false))
	}
	state.Depth++

	instr := fn.Body[state.Source.PC]
	if ce := e.Logger.Check(zap.DebugLevel, "[exec]"); ce != nil {
		ce.Write(zap.Stringer("source", state.Source), zap.Stringer("instr", instr), zap.Stringer("guard", state.Guard))
	}

	switch instr := instr.(type) {
	case *SkipInstr, *LocationInstr:
		if state.Reachable() {
			state.Target.Location(state.Guard.AsExpr(), state.Source)
		}
		e.transition(state)

	case *EndFunctionInstr:
		// Runs even on unreachable paths to release the frame.
		return e.symexEndOfFunction(state)

	case *GotoInstr:
		if state.Reachable() {
			return e.symexGoto(state, fn, instr)
		}
		e.transition(state)

	case *AssumeInstr:
		if state.Reachable() {
			if err := e.symexAssume(state, instr.Cond); err != nil {
				return err
			}
		}
		e.transition(state)

	case *AssertInstr:
		if state.Reachable() && !e.Config.IgnoreAssertions {
			if err := e.symexAssert(state, instr); err != nil {
				return err
			}
		}
		e.transition(state)

	case *AssignInstr:
		if state.Reachable() {
			if err := e.symexAssign(state, instr.LHS, instr.RHS, AssignmentState); err != nil {
				return err
			}
		}
		e.transition(state)

	case *ReturnInstr:
		if state.Reachable() {
			return e.symexReturn(state, fn, instr)
		}
		e.transition(state)

	case *FunctionCallInstr:
		if state.Reachable() {
			return e.symexFunctionCall(state, instr)
		}
		e.transition(state)

	case *OtherInstr:
		if state.Reachable() {
			if err := e.symexOther(state, instr); err != nil {
				return err
			}
		}
		e.transition(state)

	case *DeclInstr:
		if state.Reachable() {
			e.symexDecl(state, instr.Symbol)
		}
		e.transition(state)

	case *DeadInstr:
		e.symexDead(state, instr.Symbol)
		e.transition(state)

	case *StartThreadInstr:
		if err := e.symexStartThread(state, instr); err != nil {
			return err
		}
		e.transition(state)

	case *EndThreadInstr:
		// Behaves like assume(false).
		if !state.Guard.IsFalse() {
			e.Logger.Debug("[thread] end", zap.Int("thread", state.Source.ThreadNr))
			state.Guard.Add(NewBoolConstantExpr(false))
		}
		e.transition(state)

	case *AtomicBeginInstr:
		if err := e.symexAtomicBegin(state); err != nil {
			return err
		}
		e.transition(state)

	case *AtomicEndInstr:
		if err := e.symexAtomicEnd(state); err != nil {
			return err
		}
		e.transition(state)

	case *CatchInstr:
		e.symexCatch(state, instr)
		e.transition(state)

	case *ThrowInstr:
		return e.symexThrow(state, fn, instr)

	case *NoInstr:
		return unsupported("symex got NO_INSTRUCTION")

	default:
		invariant(false, "symex got unexpected instruction type %T", instr)
	}
	return nil
}

// transition moves the state to the next instruction.
func (e *Executor) transition(state *State) {
	e.transitionTo(state, state.Source.Function, state.Source.PC+1, false)
}

// transitionTo moves the state to instruction to of fn. Iteration counters
// of loops headed at to are reset unless the move is the loop's own back
// edge.
func (e *Executor) transitionTo(state *State, fn string, to int, backward bool) {
	if e.Coverage != nil && state.Reachable() {
		e.Coverage.Record(state.Source.Function, state.Source.PC, to, time.Since(e.stepStart))
	}

	if !state.Done() {
		f, frame := e.program.Function(fn), state.Top()
		for _, from := range f.Incoming(to) {
			instr, ok := f.Body[from].(*GotoInstr)
			if !ok || !f.IsBackwardGoto(from) || instr.Target != to {
				continue
			}
			if !backward || (fn == state.Source.Function && state.Source.PC > from) {
				delete(frame.LoopIterations, f.LoopID(from))
			}
		}
	}

	state.Source.Function = fn
	state.Source.PC = to
}

// simplify applies the configured simplifier.
func (e *Executor) simplify(expr Expr) Expr {
	return e.Simplifier.Simplify(expr)
}

// populateDirty marks the locals of fn whose address is taken.
func (e *Executor) populateDirty(state *State, fn *Function) {
	for _, name := range fn.DirtyLocals() {
		state.Dirty.Add(name)
	}
}

// vcc records a verification condition. Conditions that simplify to true
// are counted but not recorded.
func (e *Executor) vcc(state *State, cond Expr, msg string) {
	state.TotalVCCs++
	if IsConstantTrue(cond) {
		return
	}
	state.RemainingVCCs++
	state.Target.Assertion(state.Guard.AsExpr(), state.Guard.GuardExpr(cond), msg, state.Source)
}

// symexAssert records the condition of an ASSERT instruction as a VCC.
// Universally quantified conditions are checked for a fresh instance of
// the bound variable.
func (e *Executor) symexAssert(state *State, instr *AssertInstr) error {
	cond, err := e.cleanExpr(state, instr.Cond)
	if err != nil {
		return err
	}
	if hasQuantifier(cond) {
		cond = e.rewriteQuantifiers(state, PushNegations(cond), FORALL)
	}
	cond = e.simplify(state.Rename(cond, e.ns))

	msg := instr.Message
	if msg == "" {
		msg = "assertion"
	}
	e.vcc(state, cond, msg)
	return nil
}

// symexAssume restricts the path to states satisfying cond. Existentially
// quantified conditions are assumed for a fresh instance of the bound
// variable.
func (e *Executor) symexAssume(state *State, cond Expr) error {
	cond, err := e.cleanExpr(state, cond)
	if err != nil {
		return err
	}
	if hasQuantifier(cond) {
		cond = e.rewriteQuantifiers(state, PushNegations(cond), EXISTS)
	}
	e.assumeL2(state, e.simplify(state.Rename(cond, e.ns)))
	return nil
}

// assumeL2 applies an already renamed assumption. A false assumption makes
// the path unreachable. With several threads the assumption strengthens the
// guard so that it also constrains steps of later threads.
func (e *Executor) assumeL2(state *State, cond Expr) {
	if IsConstantTrue(cond) {
		return
	}

	if IsConstantFalse(cond) {
		state.Guard.Add(cond)
	} else if len(state.Threads) == 1 {
		state.Target.Assumption(state.Guard.AsExpr(), cond, state.Source)
	} else {
		state.Guard.Add(cond)
	}

	// An infeasible path cannot stay inside an atomic section.
	if state.AtomicSectionID != 0 && state.Guard.IsFalse() {
		state.AtomicSectionID = 0
	}
}

// rewriteQuantifiers removes quantifiers of kind op at the top level of
// conjunctions and disjunctions by declaring a fresh instance of the bound
// variable.
func (e *Executor) rewriteQuantifiers(state *State, expr Expr, op QuantifierOp) Expr {
	switch x := expr.(type) {
	case *QuantifierExpr:
		if sym, ok := OriginalName(x.Var).(*SymbolExpr); ok && x.Op == op {
			e.symexDecl(state, sym)
			return e.rewriteQuantifiers(state, x.Body, op)
		}
	case *BinaryExpr:
		if (x.Op == AND || x.Op == OR) && IsBoolExpr(x) {
			return NewBinaryExpr(x.Op, e.rewriteQuantifiers(state, x.LHS, op), e.rewriteQuantifiers(state, x.RHS, op))
		}
	}
	return expr
}

// symexOther executes a built-in operation.
func (e *Executor) symexOther(state *State, instr *OtherInstr) error {
	switch instr.Op {
	case "havoc":
		for _, arg := range instr.Args {
			if err := e.symexAssign(state, arg, NewNondetExpr(ExprType(arg)), AssignmentState); err != nil {
				return err
			}
		}
		return nil

	case "output", "printf":
		fields := []zap.Field{zap.Stringer("source", state.Source)}
		for _, arg := range instr.Args {
			arg, err := e.cleanExpr(state, arg)
			if err != nil {
				return err
			}
			fields = append(fields, zap.Stringer("arg", e.simplify(state.Rename(arg, e.ns))))
		}
		e.Logger.Info("[output] "+instr.Op, fields...)
		return nil

	default:
		return unsupported("OTHER instruction %q", instr.Op)
	}
}

// symexAtomicBegin opens an atomic section.
func (e *Executor) symexAtomicBegin(state *State) error {
	if state.Guard.IsFalse() {
		return nil
	} else if state.AtomicSectionID != 0 {
		return &IncorrectProgramError{Source: state.Source, Reason: "nested atomic sections are not supported"}
	}
	state.names.atomic++
	state.AtomicSectionID = state.names.atomic
	return nil
}

// symexAtomicEnd closes the current atomic section. The section id is reset
// even on unreachable paths.
func (e *Executor) symexAtomicEnd(state *State) error {
	if state.Guard.IsFalse() {
		state.AtomicSectionID = 0
		return nil
	} else if state.AtomicSectionID == 0 {
		return &IncorrectProgramError{Source: state.Source, Reason: "ATOMIC_END without ATOMIC_BEGIN"}
	}
	state.AtomicSectionID = 0
	return nil
}

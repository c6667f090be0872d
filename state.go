package symex

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/benbjohnson/immutable"
	"github.com/davecgh/go-spew/spew"
	mapset "github.com/deckarep/golang-set/v2"
)

// Source identifies an instruction executed by a thread.
type Source struct {
	ThreadNr int
	Function string
	PC       int
}

// String returns the string representation of the source.
func (s Source) String() string {
	return fmt.Sprintf("T%d %s:%d", s.ThreadNr, s.Function, s.PC)
}

// State represents the symbolic state of a single path under exploration.
//
// A State is a plain value aggregate: renaming levels and the propagation
// map are persistent, so Clone is cheap and the clone evolves
// independently. States are owned by one path and never mutated
// concurrently.
type State struct {
	Source  Source
	Guard   Guard
	Threads []*ThreadState

	Level1 Level1
	Level2 Level2

	// Constant values of L1 objects, keyed by L1 identifier.
	propagation *immutable.SortedMap

	// Symbols introduced during execution, such as nondet values.
	Symbols *SymbolTable

	// Original names of locals whose address is taken.
	Dirty mapset.Set[string]

	Depth           int
	TotalVCCs       int
	RemainingVCCs   int
	AtomicSectionID int

	// Checkpoint flags set on states saved at a branch in path
	// exploration mode.
	HasSavedJumpTarget      bool
	HasSavedNextInstruction bool
	SavedTarget             int

	// Sink for the steps produced on this path.
	Target Target

	names *nameProvider
}

// NewState returns a state with a single thread positioned at source.
func NewState(source Source, target Target) *State {
	return &State{
		Source:      source,
		Guard:       NewGuard(),
		Threads:     []*ThreadState{{Source: source, Guard: NewGuard()}},
		Level1:      Level1{NewRenamingLevel()},
		Level2:      Level2{NewRenamingLevel()},
		propagation: immutable.NewSortedMap(&stringComparer{}),
		Symbols:     NewSymbolTable(),
		Dirty:       mapset.NewThreadUnsafeSet[string](),
		Target:      target,
		names:       newNameProvider(),
	}
}

// Clone returns a deep copy of the state. The fresh-name provider is
// shared so names minted on either copy remain globally unique.
func (s *State) Clone() *State {
	other := *s
	other.Threads = make([]*ThreadState, len(s.Threads))
	for i := range s.Threads {
		other.Threads[i] = s.Threads[i].Clone()
	}
	other.Symbols = s.Symbols.Clone()
	other.Dirty = s.Dirty.Clone()
	return &other
}

// Done returns true if the active thread has no frames left.
func (s *State) Done() bool { return len(s.CallStack()) == 0 }

// Reachable returns true if the guard is not statically false.
func (s *State) Reachable() bool { return !s.Guard.IsFalse() }

// Thread returns the active thread.
func (s *State) Thread() *ThreadState { return s.Threads[s.Source.ThreadNr] }

// CallStack returns the call stack of the active thread.
func (s *State) CallStack() []*Frame { return s.Thread().CallStack }

// Top returns the innermost frame of the active thread.
func (s *State) Top() *Frame {
	stack := s.CallStack()
	invariant(len(stack) > 0, "call stack is empty")
	return stack[len(stack)-1]
}

// PreviousFrame returns the frame below the top frame, if any.
func (s *State) PreviousFrame() *Frame {
	stack := s.CallStack()
	if len(stack) < 2 {
		return nil
	}
	return stack[len(stack)-2]
}

// PushFrame adds a frame for a call made at the current source.
func (s *State) PushFrame(fn string) *Frame {
	f := NewFrame(fn, s.Source, s.Guard)
	t := s.Thread()
	t.CallStack = append(t.CallStack, f)
	return f
}

// PopFrame removes the top frame. Frame-level renaming is restored from
// the frame and assignment counters of its local objects are dropped.
func (s *State) PopFrame() *Frame {
	f := s.Top()
	s.Level1.RestoreFrom(f.OldLevel1)
	for _, id := range f.LocalObjects {
		s.Level2.Delete(id)
		s.propagation = s.propagation.Delete(id)
	}

	t := s.Thread()
	t.CallStack[len(t.CallStack)-1] = nil
	t.CallStack = t.CallStack[:len(t.CallStack)-1]
	return f
}

// Propagated returns the constant value recorded for an L1 identifier.
func (s *State) Propagated(id string) (Expr, bool) {
	v, ok := s.propagation.Get(id)
	if !ok {
		return nil, false
	}
	return v.(Expr), true
}

// SetPropagated records a constant value for an L1 identifier. A nil
// value removes it.
func (s *State) SetPropagated(id string, value Expr) {
	if value == nil {
		s.propagation = s.propagation.Delete(id)
		return
	}
	s.propagation = s.propagation.Set(id, value)
}

// RenameL1 applies the thread and frame renaming levels to ssa.
func (s *State) RenameL1(ssa *SSAExpr, ns *Namespace) *SSAExpr {
	ssa = Level0{}.Rename(ssa, ns, s.Source.ThreadNr)
	ssa = s.Level1.Rename(ssa)
	if t := s.renameType(ssa.Symbol.Type, ns); t != ssa.Symbol.Type {
		ssa = ssa.WithType(t)
	}
	return ssa
}

// RenameSSA applies all renaming levels to ssa without constant propagation.
func (s *State) RenameSSA(ssa *SSAExpr, ns *Namespace) *SSAExpr {
	return s.Level2.Rename(s.RenameL1(ssa, ns))
}

// Rename renames every symbol within expr to its current SSA incarnation.
// Addresses are renamed only up to the frame level. Known constant values
// are substituted when propagation has recorded them.
func (s *State) Rename(expr Expr, ns *Namespace) Expr {
	return s.rename(expr, ns, 2)
}

// RenameL1Expr renames every symbol within expr up to the frame level.
func (s *State) RenameL1Expr(expr Expr, ns *Namespace) Expr {
	return s.rename(expr, ns, 1)
}

func (s *State) rename(expr Expr, ns *Namespace, level int) Expr {
	if expr == nil {
		return nil
	}
	return WalkExpr(exprVisitorFunc(func(e Expr) (Expr, bool) {
		switch e := e.(type) {
		case *SymbolExpr:
			return s.renameSymbol(NewSSAExpr(e), ns, level), false
		case *SSAExpr:
			return s.renameSymbol(e, ns, level), false
		case *AddressOfExpr:
			switch obj := e.Object.(type) {
			case *SymbolExpr:
				return &AddressOfExpr{Object: s.RenameL1(NewSSAExpr(obj), ns)}, false
			case *SSAExpr:
				return &AddressOfExpr{Object: s.RenameL1(obj, ns)}, false
			}
		case *NondetExpr:
			if t := s.renameType(e.Type, ns); t != e.Type {
				return &NondetExpr{Type: t}, false
			}
		}
		return e, true
	}), expr)
}

func (s *State) renameSymbol(ssa *SSAExpr, ns *Namespace, level int) Expr {
	if ssa.HasL2() {
		return ssa
	}
	ssa = s.RenameL1(ssa, ns)
	if level < 2 {
		return ssa
	}
	if v, ok := s.Propagated(ssa.L1Identifier()); ok {
		return v
	}
	return s.Level2.Rename(ssa)
}

// renameType renames the expressions embedded in t, such as array sizes.
func (s *State) renameType(t Type, ns *Namespace) Type {
	return mapType(t, func(expr Expr) Expr { return s.Rename(expr, ns) })
}

// Dump returns the contents of the state and frames as a string.
func (s *State) Dump() string {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, "SYMBOLIC STATE")
	fmt.Fprintln(&buf, "==============")
	fmt.Fprintf(&buf, "source=%s\n", s.Source)
	fmt.Fprintf(&buf, "guard=%s\n", s.Guard)
	fmt.Fprintf(&buf, "depth=%d vccs=%d/%d atomic=%d\n", s.Depth, s.RemainingVCCs, s.TotalVCCs, s.AtomicSectionID)
	fmt.Fprintln(&buf, "")

	for i, t := range s.Threads {
		fmt.Fprintf(&buf, "== THREAD #%d (%s)\n", i, t.Source)
		for j := len(t.CallStack) - 1; j >= 0; j-- {
			fmt.Fprintf(&buf, "-- FRAME #%d\n", j)
			fmt.Fprintln(&buf, t.CallStack[j].Dump())
		}
	}

	fmt.Fprintln(&buf, "== L1")
	s.Level1.each(func(id string, _ *SSAExpr, n int) { fmt.Fprintf(&buf, "%s -> %d\n", id, n) })
	fmt.Fprintln(&buf, "== L2")
	s.Level2.each(func(id string, _ *SSAExpr, n int) { fmt.Fprintf(&buf, "%s -> %d\n", id, n) })

	fmt.Fprintln(&buf, "== PROPAGATION")
	itr := s.propagation.Iterator()
	for !itr.Done() {
		k, v := itr.Next()
		fmt.Fprintf(&buf, "%s = %s\n", k, v)
	}
	return buf.String()
}

// ThreadState holds the saved position of a thread while it is not active.
type ThreadState struct {
	Source          Source
	Guard           Guard
	AtomicSectionID int
	CallStack       []*Frame
}

// Clone returns a deep copy of the thread.
func (t *ThreadState) Clone() *ThreadState {
	other := *t
	other.CallStack = make([]*Frame, len(t.CallStack))
	for i := range t.CallStack {
		other.CallStack[i] = t.CallStack[i].Clone()
	}
	return &other
}

// Frame represents one activation of a function.
type Frame struct {
	Function        string
	EndOfFunction   int
	CallingLocation Source
	CallingGuard    Guard

	// Caller's destination for the return value, if any.
	ReturnLHS Expr
	Hidden    bool

	// Level 1 entries replaced by this frame, restored on return.
	OldLevel1 RenamingLevel

	// L1 identifiers of the objects created by this frame.
	LocalObjects []string

	// Iteration counters keyed by loop id. Recursion depth is counted
	// under the function name.
	LoopIterations map[string]int

	// States waiting to be merged, keyed by target instruction.
	GotoStates map[int][]*GotoState

	// Active exception handlers, innermost last.
	CatchStack [][]CatchHandler
}

// NewFrame returns a frame for fn called from the given location.
func NewFrame(fn string, calling Source, guard Guard) *Frame {
	return &Frame{
		Function:        fn,
		CallingLocation: calling,
		CallingGuard:    guard,
		OldLevel1:       NewRenamingLevel(),
		LoopIterations:  make(map[string]int),
		GotoStates:      make(map[int][]*GotoState),
	}
}

// Clone returns a copy of the frame. Saved goto states are immutable and
// shared.
func (f *Frame) Clone() *Frame {
	other := *f

	other.LocalObjects = make([]string, len(f.LocalObjects))
	copy(other.LocalObjects, f.LocalObjects)

	other.LoopIterations = make(map[string]int, len(f.LoopIterations))
	for k, v := range f.LoopIterations {
		other.LoopIterations[k] = v
	}

	other.GotoStates = make(map[int][]*GotoState, len(f.GotoStates))
	for k, v := range f.GotoStates {
		other.GotoStates[k] = append([]*GotoState(nil), v...)
	}

	other.CatchStack = make([][]CatchHandler, len(f.CatchStack))
	copy(other.CatchStack, f.CatchStack)
	return &other
}

// Dump returns the contents of the frame as a string.
func (f *Frame) Dump() string {
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true, MaxDepth: 2}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "fn=%s end=%d caller=%s\n", f.Function, f.EndOfFunction, f.CallingLocation)
	fmt.Fprintf(&buf, "locals=%v\n", f.LocalObjects)
	fmt.Fprintf(&buf, "loops=%s", cfg.Sdump(f.LoopIterations))
	pcs := make([]int, 0, len(f.GotoStates))
	for pc := range f.GotoStates {
		pcs = append(pcs, pc)
	}
	sort.Ints(pcs)
	for _, pc := range pcs {
		fmt.Fprintf(&buf, "pending %d: %d state(s)\n", pc, len(f.GotoStates[pc]))
	}
	return buf.String()
}

// GotoState is a snapshot of the parts of a state that are merged when
// control flow rejoins.
type GotoState struct {
	Source          Source
	Guard           Guard
	Level2          Level2
	propagation     *immutable.SortedMap
	Depth           int
	AtomicSectionID int
}

// newGotoState snapshots s.
func newGotoState(s *State) *GotoState {
	return &GotoState{
		Source:          s.Source,
		Guard:           s.Guard,
		Level2:          s.Level2,
		propagation:     s.propagation,
		Depth:           s.Depth,
		AtomicSectionID: s.AtomicSectionID,
	}
}

// nameProvider mints globally unique renaming indices. It is shared by all
// states derived from the same entry point.
type nameProvider struct {
	l1     map[string]int
	l2     map[string]int
	nondet int
	atomic int
}

func newNameProvider() *nameProvider {
	return &nameProvider{l1: make(map[string]int), l2: make(map[string]int)}
}

// freshL1 returns an unused frame index for an L0 identifier.
func (p *nameProvider) freshL1(id string) int {
	p.l1[id]++
	return p.l1[id]
}

// freshL2 returns an unused assignment counter for an L1 identifier.
func (p *nameProvider) freshL2(id string) int {
	p.l2[id]++
	return p.l2[id]
}

package symex

import (
	"fmt"
	"io"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"golang.org/x/tools/container/intsets"
)

// Instruction represents a single goto-program instruction. The set of
// implementations is closed; every kind is handled by the executor.
type Instruction interface {
	instruction()
	String() string
}

func (*SkipInstr) instruction()         {}
func (*LocationInstr) instruction()     {}
func (*GotoInstr) instruction()         {}
func (*AssumeInstr) instruction()       {}
func (*AssertInstr) instruction()       {}
func (*AssignInstr) instruction()       {}
func (*DeclInstr) instruction()         {}
func (*DeadInstr) instruction()         {}
func (*FunctionCallInstr) instruction() {}
func (*ReturnInstr) instruction()       {}
func (*EndFunctionInstr) instruction()  {}
func (*StartThreadInstr) instruction()  {}
func (*EndThreadInstr) instruction()    {}
func (*AtomicBeginInstr) instruction()  {}
func (*AtomicEndInstr) instruction()    {}
func (*CatchInstr) instruction()        {}
func (*ThrowInstr) instruction()        {}
func (*OtherInstr) instruction()        {}
func (*NoInstr) instruction()           {}

// SkipInstr does nothing.
type SkipInstr struct{}

func (*SkipInstr) String() string { return "SKIP" }

// LocationInstr marks a source location.
type LocationInstr struct{}

func (*LocationInstr) String() string { return "LOCATION" }

// GotoInstr jumps to Target if Cond holds. A nil Cond is unconditional.
type GotoInstr struct {
	Cond        Expr
	Target      int
	TargetLabel string
}

func (i *GotoInstr) String() string {
	if i.Cond == nil || IsConstantTrue(i.Cond) {
		return fmt.Sprintf("GOTO %d", i.Target)
	}
	return fmt.Sprintf("IF %s THEN GOTO %d", i.Cond, i.Target)
}

// AssumeInstr restricts execution to states where Cond holds.
type AssumeInstr struct {
	Cond Expr
}

func (i *AssumeInstr) String() string { return fmt.Sprintf("ASSUME %s", i.Cond) }

// AssertInstr checks that Cond holds.
type AssertInstr struct {
	Cond    Expr
	Message string
}

func (i *AssertInstr) String() string {
	if i.Message == "" {
		return fmt.Sprintf("ASSERT %s", i.Cond)
	}
	return fmt.Sprintf("ASSERT %s // %s", i.Cond, i.Message)
}

// AssignInstr assigns RHS to LHS.
type AssignInstr struct {
	LHS Expr
	RHS Expr
}

func (i *AssignInstr) String() string { return fmt.Sprintf("ASSIGN %s := %s", i.LHS, i.RHS) }

// DeclInstr introduces a local variable.
type DeclInstr struct {
	Symbol *SymbolExpr
}

func (i *DeclInstr) String() string { return fmt.Sprintf("DECL %s : %s", i.Symbol, i.Symbol.Type) }

// DeadInstr marks the end of a local variable's lifetime.
type DeadInstr struct {
	Symbol *SymbolExpr
}

func (i *DeadInstr) String() string { return fmt.Sprintf("DEAD %s", i.Symbol) }

// FunctionCallInstr calls Function with Args, assigning the result to LHS
// if LHS is non-nil.
type FunctionCallInstr struct {
	LHS      Expr
	Function string
	Args     []Expr
}

func (i *FunctionCallInstr) String() string {
	args := make([]string, len(i.Args))
	for j, arg := range i.Args {
		args[j] = arg.String()
	}
	if i.LHS == nil {
		return fmt.Sprintf("CALL %s(%s)", i.Function, strings.Join(args, ", "))
	}
	return fmt.Sprintf("CALL %s := %s(%s)", i.LHS, i.Function, strings.Join(args, ", "))
}

// ReturnInstr sets the return value of the current function and jumps to
// its END_FUNCTION.
type ReturnInstr struct {
	Value Expr
}

func (i *ReturnInstr) String() string {
	if i.Value == nil {
		return "RETURN"
	}
	return fmt.Sprintf("RETURN %s", i.Value)
}

// EndFunctionInstr terminates a function body.
type EndFunctionInstr struct{}

func (*EndFunctionInstr) String() string { return "END_FUNCTION" }

// StartThreadInstr spawns a thread that starts execution at Target.
type StartThreadInstr struct {
	Target      int
	TargetLabel string
}

func (i *StartThreadInstr) String() string { return fmt.Sprintf("START_THREAD %d", i.Target) }

// EndThreadInstr terminates the executing thread.
type EndThreadInstr struct{}

func (*EndThreadInstr) String() string { return "END_THREAD" }

// AtomicBeginInstr opens an atomic section.
type AtomicBeginInstr struct{}

func (*AtomicBeginInstr) String() string { return "ATOMIC_BEGIN" }

// AtomicEndInstr closes an atomic section.
type AtomicEndInstr struct{}

func (*AtomicEndInstr) String() string { return "ATOMIC_END" }

// CatchInstr pushes exception handlers. A CatchInstr without handlers pops
// the innermost set of handlers.
type CatchInstr struct {
	Handlers []CatchHandler
}

// CatchHandler maps an exception tag to the instruction handling it.
// An empty Tag catches every exception.
type CatchHandler struct {
	Tag         string
	Target      int
	TargetLabel string
}

func (i *CatchInstr) String() string {
	if len(i.Handlers) == 0 {
		return "CATCH POP"
	}
	a := make([]string, len(i.Handlers))
	for j, h := range i.Handlers {
		a[j] = fmt.Sprintf("%s->%d", h.Tag, h.Target)
	}
	return "CATCH PUSH " + strings.Join(a, " ")
}

// ThrowInstr raises an exception with the given tag.
type ThrowInstr struct {
	Tag string
}

func (i *ThrowInstr) String() string { return fmt.Sprintf("THROW %s", i.Tag) }

// OtherInstr invokes a built-in side-effecting operation.
type OtherInstr struct {
	Op   string
	Args []Expr
}

func (i *OtherInstr) String() string {
	args := make([]string, len(i.Args))
	for j, arg := range i.Args {
		args[j] = arg.String()
	}
	return fmt.Sprintf("OTHER %s(%s)", i.Op, strings.Join(args, ", "))
}

// NoInstr is an uninitialized instruction. Executing it is an error.
type NoInstr struct{}

func (*NoInstr) String() string { return "NO_INSTRUCTION_TYPE" }

// Function represents a goto-program function.
type Function struct {
	Name       string
	Params     []*SymbolExpr
	ReturnType Type
	Body       []Instruction
	Labels     map[string]int

	incoming  [][]int
	targets   intsets.Sparse
	loopHeads intsets.Sparse
	loopIDs   map[int]string
	locals    []*SymbolExpr
	dirty     mapset.Set[string]
}

// HasBody returns true if the function has instructions.
func (f *Function) HasBody() bool { return len(f.Body) > 0 }

// ReturnValueName returns the name of the symbol holding the return value.
func (f *Function) ReturnValueName() string { return ReturnValueName(f.Name) }

// ReturnValueName returns the name of the return value symbol of fn.
func ReturnValueName(fn string) string { return fn + "#return_value" }

// Type returns the code type of the function.
func (f *Function) Type() *CodeType {
	params := make([]Type, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type
	}
	return &CodeType{Params: params, Return: f.ReturnType}
}

// Update resolves jump labels and recomputes the control flow summary:
// incoming edges, loop heads, loop ids, declared locals and locals whose
// address is taken.
func (f *Function) Update() error {
	resolve := func(pc int, label string, target *int) error {
		if label != "" {
			n, ok := f.Labels[label]
			if !ok {
				return errors.Errorf("%s:%d: unknown label %q", f.Name, pc, label)
			}
			*target = n
		}
		if *target < 0 || *target >= len(f.Body) {
			return errors.Errorf("%s:%d: jump target out of range: %d", f.Name, pc, *target)
		}
		return nil
	}

	f.incoming = make([][]int, len(f.Body))
	f.targets.Clear()
	f.loopHeads.Clear()
	f.loopIDs = make(map[int]string)
	f.locals = nil
	f.dirty = mapset.NewThreadUnsafeSet[string]()

	for pc, instr := range f.Body {
		switch instr := instr.(type) {
		case *GotoInstr:
			if err := resolve(pc, instr.TargetLabel, &instr.Target); err != nil {
				return err
			}
			f.targets.Insert(instr.Target)
			if instr.Target <= pc {
				f.loopHeads.Insert(instr.Target)
				f.loopIDs[pc] = fmt.Sprintf("%s.%d", f.Name, len(f.loopIDs))
			}
		case *StartThreadInstr:
			if err := resolve(pc, instr.TargetLabel, &instr.Target); err != nil {
				return err
			}
		case *CatchInstr:
			for i := range instr.Handlers {
				if err := resolve(pc, instr.Handlers[i].TargetLabel, &instr.Handlers[i].Target); err != nil {
					return err
				}
				f.targets.Insert(instr.Handlers[i].Target)
			}
		case *ReturnInstr:
			f.targets.Insert(len(f.Body) - 1)
		case *DeclInstr:
			f.locals = append(f.locals, instr.Symbol)
		}

		for _, expr := range instructionExprs(instr) {
			HasSubExpr(expr, func(e Expr) bool {
				if addr, ok := e.(*AddressOfExpr); ok {
					if sym, ok := addr.Object.(*SymbolExpr); ok {
						f.dirty.Add(sym.Name)
					}
				}
				return false
			})
		}
	}

	for pc := range f.Body {
		for _, succ := range f.Successors(pc) {
			f.incoming[succ] = append(f.incoming[succ], pc)
		}
	}

	if f.HasBody() {
		if _, ok := f.Body[len(f.Body)-1].(*EndFunctionInstr); !ok {
			return errors.Errorf("%s: body must end with END_FUNCTION", f.Name)
		}
	}
	return nil
}

// Successors returns the indices of the instructions control may flow to
// from pc within the function.
func (f *Function) Successors(pc int) []int {
	switch instr := f.Body[pc].(type) {
	case *GotoInstr:
		if instr.Cond == nil || IsConstantTrue(instr.Cond) {
			return []int{instr.Target}
		} else if instr.Target == pc+1 {
			return []int{pc + 1}
		}
		return []int{pc + 1, instr.Target}
	case *ReturnInstr:
		return []int{len(f.Body) - 1}
	case *StartThreadInstr:
		if instr.Target == pc+1 {
			return []int{pc + 1}
		}
		return []int{pc + 1, instr.Target}
	case *CatchInstr:
		a := []int{pc + 1}
		for _, h := range instr.Handlers {
			a = append(a, h.Target)
		}
		return a
	case *EndFunctionInstr, *EndThreadInstr, *ThrowInstr:
		return nil
	default:
		if pc+1 < len(f.Body) {
			return []int{pc + 1}
		}
		return nil
	}
}

// Incoming returns the predecessors of pc.
func (f *Function) Incoming(pc int) []int {
	if pc < 0 || pc >= len(f.incoming) {
		return nil
	}
	return f.incoming[pc]
}

// IsTarget returns true if pc is the destination of a jump.
func (f *Function) IsTarget(pc int) bool { return f.targets.Has(pc) }

// IsLoopHead returns true if pc is the target of a backward goto.
func (f *Function) IsLoopHead(pc int) bool { return f.loopHeads.Has(pc) }

// IsBackwardGoto returns true if pc is a goto jumping to itself or an
// earlier instruction.
func (f *Function) IsBackwardGoto(pc int) bool {
	instr, ok := f.Body[pc].(*GotoInstr)
	return ok && instr.Target <= pc
}

// LoopID returns the identifier of the loop closed by the backward goto at
// pc, in the form "function.n".
func (f *Function) LoopID(pc int) string { return f.loopIDs[pc] }

// Locals returns the symbols declared within the function body.
func (f *Function) Locals() []*SymbolExpr { return f.locals }

// IsDirty returns true if the address of the named local is taken.
func (f *Function) IsDirty(name string) bool {
	return f.dirty != nil && f.dirty.Contains(name)
}

// DirtyLocals returns the sorted names of the symbols whose address is
// taken within the function.
func (f *Function) DirtyLocals() []string {
	if f.dirty == nil {
		return nil
	}
	a := f.dirty.ToSlice()
	sort.Strings(a)
	return a
}

// instructionExprs returns the expressions referenced by instr.
func instructionExprs(instr Instruction) []Expr {
	switch instr := instr.(type) {
	case *GotoInstr:
		return nonNil(instr.Cond)
	case *AssumeInstr:
		return nonNil(instr.Cond)
	case *AssertInstr:
		return nonNil(instr.Cond)
	case *AssignInstr:
		return nonNil(instr.LHS, instr.RHS)
	case *FunctionCallInstr:
		return nonNil(append([]Expr{instr.LHS}, instr.Args...)...)
	case *ReturnInstr:
		return nonNil(instr.Value)
	case *OtherInstr:
		return nonNil(instr.Args...)
	default:
		return nil
	}
}

func nonNil(exprs ...Expr) []Expr {
	a := make([]Expr, 0, len(exprs))
	for _, expr := range exprs {
		if expr != nil {
			a = append(a, expr)
		}
	}
	return a
}

// Program represents a goto program: a set of functions, the symbols they
// reference and the function execution starts in.
type Program struct {
	Functions  map[string]*Function
	Symbols    *SymbolTable
	EntryPoint string
}

// NewProgram returns a new, empty program.
func NewProgram() *Program {
	return &Program{
		Functions: make(map[string]*Function),
		Symbols:   NewSymbolTable(),
	}
}

// Function returns the named function, or nil if it does not exist.
func (p *Program) Function(name string) *Function { return p.Functions[name] }

// FunctionNames returns the names of all functions in sorted order.
func (p *Program) FunctionNames() []string {
	a := make([]string, 0, len(p.Functions))
	for name := range p.Functions {
		a = append(a, name)
	}
	sort.Strings(a)
	return a
}

// AddFunction registers fn along with its code symbol, parameter symbols
// and return value symbol.
func (p *Program) AddFunction(fn *Function) error {
	if _, ok := p.Functions[fn.Name]; ok {
		return errors.Errorf("duplicate function: %s", fn.Name)
	}
	p.Functions[fn.Name] = fn

	if err := p.Symbols.Add(&Symbol{Name: fn.Name, Type: fn.Type()}); err != nil {
		return err
	}
	for _, param := range fn.Params {
		if _, ok := p.Symbols.Lookup(param.Name); !ok {
			if err := p.Symbols.Add(&Symbol{Name: param.Name, Type: param.Type}); err != nil {
				return err
			}
		}
	}
	if fn.ReturnType != nil {
		if err := p.Symbols.Add(&Symbol{
			Name:           fn.ReturnValueName(),
			Type:           fn.ReturnType,
			StaticLifetime: true,
			ThreadLocal:    true,
			Auxiliary:      true,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Validate updates every function and checks that calls reference known
// functions with matching arity and that declared locals are in the
// symbol table.
func (p *Program) Validate() error {
	for _, name := range p.FunctionNames() {
		fn := p.Functions[name]
		if err := fn.Update(); err != nil {
			return err
		}

		for _, local := range fn.Locals() {
			if _, ok := p.Symbols.Lookup(local.Name); !ok {
				if err := p.Symbols.Add(&Symbol{Name: local.Name, Type: local.Type}); err != nil {
					return err
				}
			}
		}

		for pc, instr := range fn.Body {
			call, ok := instr.(*FunctionCallInstr)
			if !ok {
				continue
			}
			callee := p.Functions[call.Function]
			if callee == nil {
				return errors.Errorf("%s:%d: call to undefined function %q", fn.Name, pc, call.Function)
			} else if len(call.Args) != len(callee.Params) {
				return errors.Errorf("%s:%d: %s expects %d arguments, got %d", fn.Name, pc, call.Function, len(callee.Params), len(call.Args))
			}
		}
	}

	if p.EntryPoint != "" {
		if fn := p.Functions[p.EntryPoint]; fn == nil || !fn.HasBody() {
			return errors.Errorf("entry point has no body: %s", p.EntryPoint)
		}
	}
	return nil
}

// WriteTo writes a listing of the program to w.
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	var buf strings.Builder
	for _, sym := range p.Symbols.Symbols() {
		if sym.StaticLifetime && !sym.Auxiliary {
			fmt.Fprintf(&buf, "global %s : %s\n", sym.Name, sym.Type)
		}
	}

	for _, name := range p.FunctionNames() {
		fn := p.Functions[name]
		fmt.Fprintf(&buf, "\n%s %s", fn.Name, fn.Type())
		if name == p.EntryPoint {
			buf.WriteString(" // entry point")
		}
		buf.WriteString("\n")

		labels := make(map[int][]string)
		for label, pc := range fn.Labels {
			labels[pc] = append(labels[pc], label)
		}
		for pc, instr := range fn.Body {
			sort.Strings(labels[pc])
			for _, label := range labels[pc] {
				fmt.Fprintf(&buf, "%s:\n", label)
			}
			fmt.Fprintf(&buf, "  %4d: %s\n", pc, instr)
		}
	}

	n, err := io.WriteString(w, buf.String())
	return int64(n), err
}

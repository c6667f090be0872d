package symex

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

// Target receives the steps produced by symbolic execution.
type Target interface {
	Assignment(guard Expr, lhs *SSAExpr, rhs Expr, originalLHS Expr, kind AssignmentKind, source Source)
	Assumption(guard, cond Expr, source Source)
	Assertion(guard, cond Expr, msg string, source Source)
	Location(guard Expr, source Source)
	Decl(guard Expr, sym *SSAExpr, source Source)
	FunctionCall(guard Expr, fn string, args []Expr, source Source)
	FunctionReturn(guard Expr, fn string, source Source)
	Spawn(guard Expr, threadNr int, source Source)
}

// AssignmentKind describes the origin of an assignment step.
type AssignmentKind int

// Assignment kinds.
const (
	AssignmentState = AssignmentKind(iota)
	AssignmentPhi
	AssignmentHidden
	AssignmentGuard
)

// String returns the string representation of the kind.
func (k AssignmentKind) String() string {
	switch k {
	case AssignmentState:
		return "state"
	case AssignmentPhi:
		return "phi"
	case AssignmentHidden:
		return "hidden"
	case AssignmentGuard:
		return "guard"
	default:
		return fmt.Sprintf("AssignmentKind<%d>", int(k))
	}
}

// Step represents a single entry of an equation.
type Step interface {
	step()
	String() string
}

func (*AssignmentStep) step()     {}
func (*AssumptionStep) step()     {}
func (*AssertionStep) step()      {}
func (*LocationStep) step()       {}
func (*DeclStep) step()           {}
func (*FunctionCallStep) step()   {}
func (*FunctionReturnStep) step() {}
func (*SpawnStep) step()          {}

// AssignmentStep represents "lhs = rhs". Assignments hold unconditionally;
// Guard records the path condition for trace reconstruction.
type AssignmentStep struct {
	Guard       Expr
	LHS         *SSAExpr
	RHS         Expr
	OriginalLHS Expr
	Kind        AssignmentKind
	Source      Source
}

func (s *AssignmentStep) String() string {
	return fmt.Sprintf("ASSIGNMENT(%s) %s = %s", s.Kind, s.LHS, s.RHS)
}

// AssumptionStep represents "guard => cond" as a constraint.
type AssumptionStep struct {
	Guard  Expr
	Cond   Expr
	Source Source
}

func (s *AssumptionStep) String() string {
	return fmt.Sprintf("ASSUMPTION %s => %s", s.Guard, s.Cond)
}

// AssertionStep represents a verification condition "guard => cond".
type AssertionStep struct {
	Guard   Expr
	Cond    Expr
	Message string
	Source  Source
}

func (s *AssertionStep) String() string {
	return fmt.Sprintf("ASSERTION %s => %s // %s", s.Guard, s.Cond, s.Message)
}

// LocationStep records that an instruction was reached.
type LocationStep struct {
	Guard  Expr
	Source Source
}

func (s *LocationStep) String() string { return fmt.Sprintf("LOCATION %s", s.Source) }

// DeclStep records the declaration of a fresh L1 object.
type DeclStep struct {
	Guard  Expr
	Symbol *SSAExpr
	Source Source
}

func (s *DeclStep) String() string { return fmt.Sprintf("DECL %s", s.Symbol) }

// FunctionCallStep records entry into a function.
type FunctionCallStep struct {
	Guard    Expr
	Function string
	Args     []Expr
	Source   Source
}

func (s *FunctionCallStep) String() string {
	args := make([]string, len(s.Args))
	for i, arg := range s.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("FUNCTION_CALL %s(%s)", s.Function, strings.Join(args, ", "))
}

// FunctionReturnStep records exit from a function.
type FunctionReturnStep struct {
	Guard    Expr
	Function string
	Source   Source
}

func (s *FunctionReturnStep) String() string { return fmt.Sprintf("FUNCTION_RETURN %s", s.Function) }

// SpawnStep records the creation of a thread.
type SpawnStep struct {
	Guard    Expr
	ThreadNr int
	Source   Source
}

func (s *SpawnStep) String() string { return fmt.Sprintf("SPAWN T%d", s.ThreadNr) }

// Equation is an append-only sequence of steps. It implements Target.
type Equation struct {
	steps []Step
}

// NewEquation returns a new, empty equation.
func NewEquation() *Equation {
	return &Equation{}
}

// Len returns the number of steps.
func (eq *Equation) Len() int { return len(eq.steps) }

// Steps returns the steps in execution order. The slice must not be modified.
func (eq *Equation) Steps() []Step { return eq.steps }

// Clone returns an equation sharing the current steps. Appending to either
// equation does not affect the other.
func (eq *Equation) Clone() *Equation {
	return &Equation{steps: eq.steps[:len(eq.steps):len(eq.steps)]}
}

// Assertions returns all assertion steps.
func (eq *Equation) Assertions() []*AssertionStep {
	var a []*AssertionStep
	for _, step := range eq.steps {
		if step, ok := step.(*AssertionStep); ok {
			a = append(a, step)
		}
	}
	return a
}

// Assignments returns all assignment steps.
func (eq *Equation) Assignments() []*AssignmentStep {
	var a []*AssignmentStep
	for _, step := range eq.steps {
		if step, ok := step.(*AssignmentStep); ok {
			a = append(a, step)
		}
	}
	return a
}

// LastAssignment returns the most recent assignment to the variable with
// the given original name, or nil if there is none.
func (eq *Equation) LastAssignment(name string) *AssignmentStep {
	for i := len(eq.steps) - 1; i >= 0; i-- {
		if step, ok := eq.steps[i].(*AssignmentStep); ok && step.LHS.ObjectName() == name {
			return step
		}
	}
	return nil
}

// Assignment appends an assignment step.
func (eq *Equation) Assignment(guard Expr, lhs *SSAExpr, rhs Expr, originalLHS Expr, kind AssignmentKind, source Source) {
	eq.steps = append(eq.steps, &AssignmentStep{Guard: guard, LHS: lhs, RHS: rhs, OriginalLHS: originalLHS, Kind: kind, Source: source})
}

// Assumption appends an assumption step.
func (eq *Equation) Assumption(guard, cond Expr, source Source) {
	eq.steps = append(eq.steps, &AssumptionStep{Guard: guard, Cond: cond, Source: source})
}

// Assertion appends an assertion step.
func (eq *Equation) Assertion(guard, cond Expr, msg string, source Source) {
	eq.steps = append(eq.steps, &AssertionStep{Guard: guard, Cond: cond, Message: msg, Source: source})
}

// Location records that an instruction was executed.
func (eq *Equation) Location(guard Expr, source Source) {
	eq.steps = append(eq.steps, &LocationStep{Guard: guard, Source: source})
}

// Decl appends the declaration of a fresh local instance.
func (eq *Equation) Decl(guard Expr, sym *SSAExpr, source Source) {
	eq.steps = append(eq.steps, &DeclStep{Guard: guard, Symbol: sym, Source: source})
}

// FunctionCall appends a function entry step.
func (eq *Equation) FunctionCall(guard Expr, fn string, args []Expr, source Source) {
	eq.steps = append(eq.steps, &FunctionCallStep{Guard: guard, Function: fn, Args: args, Source: source})
}

// FunctionReturn appends a function exit step.
func (eq *Equation) FunctionReturn(guard Expr, fn string, source Source) {
	eq.steps = append(eq.steps, &FunctionReturnStep{Guard: guard, Function: fn, Source: source})
}

// Spawn appends the creation of a thread.
func (eq *Equation) Spawn(guard Expr, threadNr int, source Source) {
	eq.steps = append(eq.steps, &SpawnStep{Guard: guard, ThreadNr: threadNr, Source: source})
}

// WriteTo writes a numbered listing of the equation to w. Step kinds are
// colored when w is a terminal.
func (eq *Equation) WriteTo(w io.Writer) (int64, error) {
	assign, assume, assert := color.New(color.FgCyan), color.New(color.FgYellow), color.New(color.FgRed, color.Bold)
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		assign.EnableColor()
		assume.EnableColor()
		assert.EnableColor()
	} else {
		assign.DisableColor()
		assume.DisableColor()
		assert.DisableColor()
	}

	var buf strings.Builder
	for i, step := range eq.steps {
		switch step := step.(type) {
		case *AssignmentStep:
			if step.Kind == AssignmentHidden {
				continue
			}
			fmt.Fprintf(&buf, "{%d} %s %s = %s\n", i, assign.Sprint(step.Kind.String()), step.LHS, step.RHS)
		case *AssumptionStep:
			fmt.Fprintf(&buf, "{%d} %s %s => %s\n", i, assume.Sprint("assume"), step.Guard, step.Cond)
		case *AssertionStep:
			fmt.Fprintf(&buf, "{%d} %s %s => %s  // %s @ %s\n", i, assert.Sprint("assert"), step.Guard, step.Cond, step.Message, step.Source)
		case *DeclStep:
			fmt.Fprintf(&buf, "{%d} decl %s\n", i, step.Symbol)
		case *FunctionCallStep:
			fmt.Fprintf(&buf, "{%d} call %s\n", i, step.Function)
		case *FunctionReturnStep:
			fmt.Fprintf(&buf, "{%d} return %s\n", i, step.Function)
		case *SpawnStep:
			fmt.Fprintf(&buf, "{%d} spawn T%d\n", i, step.ThreadNr)
		case *LocationStep:
			// Locations only matter for coverage and traces.
		}
	}

	n, err := io.WriteString(w, buf.String())
	return int64(n), err
}

// Replay evaluates the equation under concrete values for its inputs and
// returns the assertions that fail. Inputs are keyed by SSA identifier;
// unbound inputs are zero. Evaluation stops at the first assumption that
// does not hold since later assertions are vacuous.
func (eq *Equation) Replay(inputs map[string]*ConstantExpr) ([]*AssertionStep, error) {
	ee := NewExprEvaluator(inputs)
	ee.ZeroUnbound = true

	var failed []*AssertionStep
	for _, step := range eq.steps {
		switch step := step.(type) {
		case *AssignmentStep:
			if _, ok := step.LHS.Symbol.Type.(*ArrayType); ok {
				ee.BindArray(step.LHS.Identifier(), step.RHS)
				continue
			}
			v, err := ee.Evaluate(step.RHS)
			if err != nil {
				return nil, errors.Wrapf(err, "replay %s", step)
			}
			ee.Bind(step.LHS.Identifier(), v)

		case *AssumptionStep:
			v, err := ee.Evaluate(NewImpliesExpr(step.Guard, step.Cond))
			if err != nil {
				return nil, errors.Wrapf(err, "replay %s", step)
			} else if v.Value == 0 {
				return failed, nil
			}

		case *AssertionStep:
			v, err := ee.Evaluate(NewImpliesExpr(step.Guard, step.Cond))
			if err != nil {
				return nil, errors.Wrapf(err, "replay %s", step)
			} else if v.Value == 0 {
				failed = append(failed, step)
			}
		}
	}
	return failed, nil
}

package symex

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadProgram reads a goto program from a YAML file.
func LoadProgram(path string) (*Program, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prog, err := ParseProgram(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return prog, nil
}

// ParseProgram decodes and validates a goto program in YAML form.
//
// Parameters and declared locals of a function f are registered as "f::x"
// and may be referenced as "x" within f. Globals are referenced by name.
func ParseProgram(buf []byte) (*Program, error) {
	var file programFile
	if err := yaml.Unmarshal(buf, &file); err != nil {
		return nil, errors.Wrap(err, "decode program")
	}

	prog := NewProgram()
	prog.EntryPoint = file.Entry

	for _, s := range file.Symbols {
		t, err := ParseType(s.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "symbol %s", s.Name)
		}
		if err := prog.Symbols.Add(&Symbol{
			Name:           s.Name,
			Type:           t,
			StaticLifetime: s.Static,
			ThreadLocal:    s.ThreadLocal,
			Shared:         s.Shared,
		}); err != nil {
			return nil, err
		}
	}

	// Declare every function before parsing bodies so calls and locals
	// resolve regardless of order.
	fns := make([]*Function, len(file.Functions))
	for i, f := range file.Functions {
		fn, err := declareFunction(prog, &f)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s", f.Name)
		}
		fns[i] = fn
	}

	for i := range file.Functions {
		if err := parseBody(prog, fns[i], &file.Functions[i]); err != nil {
			return nil, errors.Wrapf(err, "function %s", fns[i].Name)
		}
	}

	if err := prog.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}

type programFile struct {
	Entry     string         `yaml:"entry"`
	Symbols   []symbolFile   `yaml:"symbols"`
	Functions []functionFile `yaml:"functions"`
}

type symbolFile struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Static      bool   `yaml:"static"`
	ThreadLocal bool   `yaml:"thread_local"`
	Shared      bool   `yaml:"shared"`
}

type functionFile struct {
	Name   string            `yaml:"name"`
	Params []symbolFile      `yaml:"params"`
	Return string            `yaml:"return"`
	Body   []instructionFile `yaml:"body"`
}

type instructionFile struct {
	Label    string        `yaml:"label"`
	Kind     string        `yaml:"kind"`
	Cond     string        `yaml:"cond"`
	LHS      string        `yaml:"lhs"`
	RHS      string        `yaml:"rhs"`
	Value    string        `yaml:"value"`
	Symbol   string        `yaml:"symbol"`
	Type     string        `yaml:"type"`
	Target   string        `yaml:"target"`
	Function string        `yaml:"function"`
	Args     []string      `yaml:"args"`
	Message  string        `yaml:"message"`
	Tag      string        `yaml:"tag"`
	Op       string        `yaml:"op"`
	Handlers []handlerFile `yaml:"handlers"`
}

type handlerFile struct {
	Tag    string `yaml:"tag"`
	Target string `yaml:"target"`
}

// localName returns the symbol name of a local of fn.
func localName(fn, name string) string { return fn + "::" + name }

func declareFunction(prog *Program, f *functionFile) (*Function, error) {
	if f.Name == "" {
		return nil, errors.New("function has no name")
	}

	fn := &Function{Name: f.Name, Labels: make(map[string]int)}
	for _, p := range f.Params {
		t, err := ParseType(p.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "param %s", p.Name)
		}
		fn.Params = append(fn.Params, &SymbolExpr{Name: localName(f.Name, p.Name), Type: t})
	}
	if f.Return != "" && f.Return != "void" {
		t, err := ParseType(f.Return)
		if err != nil {
			return nil, errors.Wrap(err, "return type")
		}
		fn.ReturnType = t
	}

	// Locals are known before the body is parsed.
	for pc, instr := range f.Body {
		if strings.ToLower(instr.Kind) != "decl" {
			continue
		}
		t, err := ParseType(instr.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "%d: decl %s", pc, instr.Symbol)
		}
		name := localName(f.Name, instr.Symbol)
		if sym, ok := prog.Symbols.Lookup(name); ok {
			if CompareType(sym.Type, t) != 0 {
				return nil, errors.Errorf("%d: local %s redeclared as %s", pc, instr.Symbol, t)
			}
			continue
		}
		if err := prog.Symbols.Add(&Symbol{Name: name, Type: t}); err != nil {
			return nil, err
		}
	}

	if err := prog.AddFunction(fn); err != nil {
		return nil, err
	}
	return fn, nil
}

// functionScope resolves names within a function body: locals first, then
// globals.
type functionScope struct {
	prog *Program
	fn   string
}

func (s functionScope) Lookup(name string) (*Symbol, bool) {
	if sym, ok := s.prog.Symbols.Lookup(localName(s.fn, name)); ok {
		return sym, true
	}
	return s.prog.Symbols.Lookup(name)
}

func parseBody(prog *Program, fn *Function, f *functionFile) error {
	scope := functionScope{prog: prog, fn: fn.Name}

	for pc, in := range f.Body {
		if in.Label != "" {
			if _, ok := fn.Labels[in.Label]; ok {
				return errors.Errorf("%d: duplicate label %q", pc, in.Label)
			}
			fn.Labels[in.Label] = pc
		}

		instr, err := parseInstruction(prog, scope, &in)
		if err != nil {
			return errors.Wrapf(err, "%d: %s", pc, in.Kind)
		}
		fn.Body = append(fn.Body, instr)
	}

	if n := len(fn.Body); n > 0 {
		if _, ok := fn.Body[n-1].(*EndFunctionInstr); !ok {
			fn.Body = append(fn.Body, &EndFunctionInstr{})
		}
	}
	return nil
}

func parseInstruction(prog *Program, scope functionScope, in *instructionFile) (Instruction, error) {
	expr := func(s string) (Expr, error) {
		if s == "" {
			return nil, nil
		}
		x, err := ParseExpr(s, scope)
		if err != nil {
			return nil, err
		}
		return x, registerBoundVars(prog, x)
	}
	required := func(name, s string) (Expr, error) {
		if s == "" {
			return nil, errors.Errorf("missing %s", name)
		}
		return expr(s)
	}

	kind := strings.ToLower(in.Kind)
	target := func() (int, string, error) {
		if in.Target == "" {
			return 0, "", errors.New("missing target")
		}
		n, label := parseTarget(in.Target)
		return n, label, nil
	}

	switch kind {
	case "skip":
		return &SkipInstr{}, nil
	case "location":
		return &LocationInstr{}, nil

	case "goto":
		cond, err := expr(in.Cond)
		if err != nil {
			return nil, err
		}
		instr := &GotoInstr{Cond: cond}
		if instr.Target, instr.TargetLabel, err = target(); err != nil {
			return nil, err
		}
		return instr, nil

	case "assume":
		cond, err := required("cond", in.Cond)
		if err != nil {
			return nil, err
		}
		return &AssumeInstr{Cond: cond}, nil

	case "assert":
		cond, err := required("cond", in.Cond)
		if err != nil {
			return nil, err
		}
		return &AssertInstr{Cond: cond, Message: in.Message}, nil

	case "assign":
		lhs, err := required("lhs", in.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := required("rhs", in.RHS)
		if err != nil {
			return nil, err
		}
		return &AssignInstr{LHS: lhs, RHS: rhs}, nil

	case "decl", "dead":
		sym, ok := prog.Symbols.Lookup(localName(scope.fn, in.Symbol))
		if !ok {
			return nil, errors.Errorf("undeclared local %q", in.Symbol)
		}
		if kind == "dead" {
			return &DeadInstr{Symbol: sym.Expr()}, nil
		}
		return &DeclInstr{Symbol: sym.Expr()}, nil

	case "call":
		instr := &FunctionCallInstr{Function: in.Function}
		var err error
		if instr.LHS, err = expr(in.LHS); err != nil {
			return nil, err
		}
		for _, arg := range in.Args {
			x, err := required("argument", arg)
			if err != nil {
				return nil, err
			}
			instr.Args = append(instr.Args, x)
		}
		return instr, nil

	case "return":
		value, err := expr(in.Value)
		if err != nil {
			return nil, err
		}
		return &ReturnInstr{Value: value}, nil

	case "end_function":
		return &EndFunctionInstr{}, nil

	case "start_thread":
		instr := &StartThreadInstr{}
		var err error
		if instr.Target, instr.TargetLabel, err = target(); err != nil {
			return nil, err
		}
		return instr, nil

	case "end_thread":
		return &EndThreadInstr{}, nil
	case "atomic_begin":
		return &AtomicBeginInstr{}, nil
	case "atomic_end":
		return &AtomicEndInstr{}, nil

	case "catch":
		instr := &CatchInstr{}
		for _, h := range in.Handlers {
			handler := CatchHandler{Tag: h.Tag}
			handler.Target, handler.TargetLabel = parseTarget(h.Target)
			instr.Handlers = append(instr.Handlers, handler)
		}
		return instr, nil

	case "throw":
		return &ThrowInstr{Tag: in.Tag}, nil

	case "other":
		instr := &OtherInstr{Op: in.Op}
		for _, arg := range in.Args {
			x, err := required("argument", arg)
			if err != nil {
				return nil, err
			}
			instr.Args = append(instr.Args, x)
		}
		return instr, nil

	case "no_instruction":
		return &NoInstr{}, nil

	default:
		return nil, errors.Errorf("unknown instruction kind %q", in.Kind)
	}
}

// parseTarget interprets a jump target as an instruction index or a label.
func parseTarget(s string) (int, string) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, ""
	}
	return 0, s
}

// registerBoundVars adds the quantified variables of x to the symbol table.
func registerBoundVars(prog *Program, x Expr) error {
	for _, v := range BoundVars(x) {
		if sym, ok := prog.Symbols.Lookup(v.Name); ok {
			if CompareType(sym.Type, v.Type) != 0 {
				return errors.Errorf("bound variable %s conflicts with symbol of type %s", v.Name, sym.Type)
			}
			continue
		}
		if err := prog.Symbols.Add(&Symbol{Name: v.Name, Type: v.Type}); err != nil {
			return err
		}
	}
	return nil
}

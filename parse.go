package symex

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Scope resolves symbol names while parsing expressions. Both SymbolTable
// and Namespace implement Scope.
type Scope interface {
	Lookup(name string) (*Symbol, bool)
}

// ParseExpr parses an expression in the s-expression syntax produced by
// Expr.String(). Bare integers are 32-bit constants.
func ParseExpr(s string, scope Scope) (Expr, error) {
	n, err := readSexp(s)
	if err != nil {
		return nil, err
	}
	p := &exprParser{scope: scope, bound: make(map[string]*SymbolExpr)}
	return p.expr(n)
}

// ParseType parses a type in the syntax produced by Type.String().
func ParseType(s string) (Type, error) {
	n, err := readSexp(s)
	if err != nil {
		return nil, err
	}
	return parseTypeNode(n, nil)
}

// BoundVars returns the variables bound by quantifiers within expr.
func BoundVars(expr Expr) []*SymbolExpr {
	var a []*SymbolExpr
	HasSubExpr(expr, func(e Expr) bool {
		if q, ok := e.(*QuantifierExpr); ok {
			if v, ok := q.Var.(*SymbolExpr); ok {
				a = append(a, v)
			}
		}
		return false
	})
	return a
}

// sexp is a node of a parsed s-expression: either an atom or a list.
type sexp struct {
	atom string
	list []*sexp
}

func (n *sexp) isAtom() bool { return n.list == nil }

func (n *sexp) String() string {
	if n.isAtom() {
		return n.atom
	}
	a := make([]string, len(n.list))
	for i, c := range n.list {
		a[i] = c.String()
	}
	return "(" + strings.Join(a, " ") + ")"
}

// readSexp parses exactly one s-expression from s.
func readSexp(s string) (*sexp, error) {
	toks := tokenize(s)
	if len(toks) == 0 {
		return nil, errors.New("empty expression")
	}

	n, rest, err := readNode(toks)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %q", s)
	} else if len(rest) > 0 {
		return nil, errors.Errorf("parse %q: unexpected %q", s, rest[0])
	}
	return n, nil
}

func tokenize(s string) []string {
	s = strings.NewReplacer("(", " ( ", ")", " ) ").Replace(s)
	return strings.Fields(s)
}

func readNode(toks []string) (*sexp, []string, error) {
	if len(toks) == 0 {
		return nil, nil, errors.New("unexpected end of input")
	}

	switch tok := toks[0]; tok {
	case ")":
		return nil, nil, errors.New("unexpected )")
	case "(":
		n := &sexp{list: []*sexp{}}
		toks = toks[1:]
		for {
			if len(toks) == 0 {
				return nil, nil, errors.New("missing )")
			} else if toks[0] == ")" {
				return n, toks[1:], nil
			}

			child, rest, err := readNode(toks)
			if err != nil {
				return nil, nil, err
			}
			n.list = append(n.list, child)
			toks = rest
		}
	default:
		return &sexp{atom: tok}, toks[1:], nil
	}
}

type exprParser struct {
	scope Scope
	bound map[string]*SymbolExpr
}

func (p *exprParser) expr(n *sexp) (Expr, error) {
	if n.isAtom() {
		return p.atom(n.atom)
	} else if len(n.list) == 0 || !n.list[0].isAtom() {
		return nil, errors.Errorf("invalid expression: %s", n)
	}

	op, args := n.list[0].atom, n.list[1:]
	arity := func(want int) error {
		if len(args) != want {
			return errors.Errorf("%s expects %d operands, got %d: %s", op, want, len(args), n)
		}
		return nil
	}

	switch op {
	case "const":
		if err := arity(2); err != nil {
			return nil, err
		}
		width, err := p.width(args[1])
		if err != nil {
			return nil, err
		}
		value, err := parseInteger(args[0].atom)
		if err != nil {
			return nil, err
		}
		return NewConstantExpr(value, width), nil

	case "not":
		if err := arity(1); err != nil {
			return nil, err
		}
		x, err := p.expr(args[0])
		if err != nil {
			return nil, err
		}
		return NewNotExpr(x), nil

	case "sext", "zext":
		if err := arity(2); err != nil {
			return nil, err
		}
		x, err := p.expr(args[0])
		if err != nil {
			return nil, err
		}
		width, err := p.width(args[1])
		if err != nil {
			return nil, err
		}
		return NewCastExpr(x, width, op == "sext"), nil

	case "extract":
		if err := arity(3); err != nil {
			return nil, err
		}
		x, err := p.expr(args[0])
		if err != nil {
			return nil, err
		}
		offset, err := p.width(args[1])
		if err != nil {
			return nil, err
		}
		width, err := p.width(args[2])
		if err != nil {
			return nil, err
		}
		if offset+width > ExprWidth(x) {
			return nil, errors.Errorf("extract out of bounds: %s", n)
		}
		return NewExtractExpr(x, offset, width), nil

	case "forall", "exists":
		if err := arity(2); err != nil {
			return nil, err
		}
		decl := args[0]
		if decl.isAtom() || len(decl.list) != 2 || !decl.list[0].isAtom() {
			return nil, errors.Errorf("invalid quantifier variable: %s", decl)
		}
		t, err := parseTypeNode(decl.list[1], p)
		if err != nil {
			return nil, err
		}
		v := &SymbolExpr{Name: decl.list[0].atom, Type: t}

		prev := p.bound[v.Name]
		p.bound[v.Name] = v
		body, err := p.expr(args[1])
		if prev != nil {
			p.bound[v.Name] = prev
		} else {
			delete(p.bound, v.Name)
		}
		if err != nil {
			return nil, err
		}

		qop := FORALL
		if op == "exists" {
			qop = EXISTS
		}
		return NewQuantifierExpr(qop, v, body), nil

	case "nondet":
		if err := arity(1); err != nil {
			return nil, err
		}
		t, err := parseTypeNode(args[0], p)
		if err != nil {
			return nil, err
		}
		return NewNondetExpr(t), nil

	case "deref":
		if err := arity(1); err != nil {
			return nil, err
		}
		x, err := p.expr(args[0])
		if err != nil {
			return nil, err
		} else if _, ok := ExprType(x).(*PointerType); !ok {
			return nil, errors.Errorf("dereference of non-pointer: %s", n)
		}
		return NewDerefExpr(x), nil

	case "addr":
		if err := arity(1); err != nil {
			return nil, err
		}
		x, err := p.expr(args[0])
		if err != nil {
			return nil, err
		}
		return NewAddressOfExpr(x), nil
	}

	// Remaining operators take only expression operands.
	xs := make([]Expr, len(args))
	for i, arg := range args {
		x, err := p.expr(arg)
		if err != nil {
			return nil, err
		}
		xs[i] = x
	}

	switch op {
	case "ite":
		if err := arity(3); err != nil {
			return nil, err
		}
		return NewIteExpr(xs[0], xs[1], xs[2]), nil
	case "concat":
		if err := arity(2); err != nil {
			return nil, err
		}
		return NewConcatExpr(xs[0], xs[1]), nil
	case "index":
		if err := arity(2); err != nil {
			return nil, err
		} else if _, ok := ExprType(xs[0]).(*ArrayType); !ok {
			return nil, errors.Errorf("index of non-array: %s", n)
		}
		return NewIndexExpr(xs[0], xs[1]), nil
	case "with":
		if err := arity(3); err != nil {
			return nil, err
		}
		return NewWithExpr(xs[0], xs[1], xs[2]), nil
	case "implies":
		if err := arity(2); err != nil {
			return nil, err
		}
		return NewImpliesExpr(xs[0], xs[1]), nil
	}

	binop, ok := ParseBinaryOp(op)
	if !ok {
		return nil, errors.Errorf("unknown operator %q", op)
	} else if err := arity(2); err != nil {
		return nil, err
	}
	return NewBinaryExpr(binop, xs[0], xs[1]), nil
}

func (p *exprParser) atom(s string) (Expr, error) {
	switch s {
	case "true":
		return NewBoolConstantExpr(true), nil
	case "false":
		return NewBoolConstantExpr(false), nil
	}

	if s[0] == '-' || (s[0] >= '0' && s[0] <= '9') {
		v, err := parseInteger(s)
		if err != nil {
			return nil, err
		}
		return NewConstantExpr32(v), nil
	}

	if v, ok := p.bound[s]; ok {
		return v, nil
	} else if p.scope != nil {
		if sym, ok := p.scope.Lookup(s); ok {
			return sym.Expr(), nil
		}
	}
	return nil, errors.Errorf("undefined symbol: %s", s)
}

func (p *exprParser) width(n *sexp) (uint, error) {
	if !n.isAtom() {
		return 0, errors.Errorf("expected integer, got %s", n)
	}
	v, err := strconv.ParseUint(n.atom, 10, 32)
	if err != nil {
		return 0, errors.Errorf("invalid integer: %s", n.atom)
	}
	return uint(v), nil
}

// parseInteger parses a decimal integer. Negative values are returned in
// two's complement.
func parseInteger(s string) (uint64, error) {
	if strings.HasPrefix(s, "-") {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, errors.Errorf("invalid integer: %s", s)
		}
		return uint64(v), nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid integer: %s", s)
	}
	return v, nil
}

// parseTypeNode parses a type. Array sizes are parsed as expressions using
// p, which may be nil if sizes must be constant.
func parseTypeNode(n *sexp, p *exprParser) (Type, error) {
	if n.isAtom() {
		switch s := n.atom; {
		case s == "bool":
			return &BoolType{}, nil
		case len(s) > 1 && (s[0] == 's' || s[0] == 'u'):
			w, err := strconv.ParseUint(s[1:], 10, 32)
			if err != nil || w == 0 {
				return nil, errors.Errorf("unknown type: %s", s)
			}
			return &BitVectorType{Width: uint(w), Signed: s[0] == 's'}, nil
		default:
			return nil, errors.Errorf("unknown type: %s", s)
		}
	}

	if len(n.list) == 0 || !n.list[0].isAtom() {
		return nil, errors.Errorf("invalid type: %s", n)
	}
	args := n.list[1:]

	switch n.list[0].atom {
	case "array":
		if len(args) != 1 && len(args) != 2 {
			return nil, errors.Errorf("invalid array type: %s", n)
		}
		elem, err := parseTypeNode(args[0], p)
		if err != nil {
			return nil, err
		}
		t := &ArrayType{Elem: elem}
		if len(args) == 2 {
			if p == nil {
				p = &exprParser{bound: make(map[string]*SymbolExpr)}
			}
			if t.Size, err = p.expr(args[1]); err != nil {
				return nil, err
			}
		}
		return t, nil

	case "struct":
		t := &StructType{}
		for _, c := range args {
			if c.isAtom() || len(c.list) != 2 || !c.list[0].isAtom() {
				return nil, errors.Errorf("invalid struct component: %s", c)
			}
			ct, err := parseTypeNode(c.list[1], p)
			if err != nil {
				return nil, err
			}
			t.Components = append(t.Components, StructComponent{Name: c.list[0].atom, Type: ct})
		}
		return t, nil

	case "ptr":
		if len(args) != 1 {
			return nil, errors.Errorf("invalid pointer type: %s", n)
		}
		elem, err := parseTypeNode(args[0], p)
		if err != nil {
			return nil, err
		}
		return &PointerType{Elem: elem}, nil

	case "code":
		if len(args) == 0 {
			return nil, errors.Errorf("invalid code type: %s", n)
		}
		t := &CodeType{}
		if !(args[0].isAtom() && args[0].atom == "void") {
			ret, err := parseTypeNode(args[0], p)
			if err != nil {
				return nil, err
			}
			t.Return = ret
		}
		for _, arg := range args[1:] {
			pt, err := parseTypeNode(arg, p)
			if err != nil {
				return nil, err
			}
			t.Params = append(t.Params, pt)
		}
		return t, nil

	default:
		return nil, errors.Errorf("unknown type: %s", n)
	}
}

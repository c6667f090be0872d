package symex

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSimplifyCacheSize is the default number of memoised expressions.
const DefaultSimplifyCacheSize = 4096

// Simplifier rewrites expressions into equivalent, simpler forms.
type Simplifier interface {
	Simplify(expr Expr) Expr
}

// ExprSimplifier simplifies expressions by rebuilding them bottom-up through
// the folding constructors. Results are memoised by their printed form.
type ExprSimplifier struct {
	cache *lru.Cache[string, Expr]
}

// NewExprSimplifier returns a simplifier remembering up to size results.
func NewExprSimplifier(size int) *ExprSimplifier {
	if size <= 0 {
		size = DefaultSimplifyCacheSize
	}
	cache, err := lru.New[string, Expr](size)
	invariant(err == nil, "simplifier cache: %v", err)
	return &ExprSimplifier{cache: cache}
}

// Simplify returns the simplified form of expr.
func (s *ExprSimplifier) Simplify(expr Expr) Expr {
	if expr == nil {
		return nil
	}
	switch expr.(type) {
	case *ConstantExpr, *SymbolExpr, *SSAExpr, *NondetExpr:
		return expr
	}

	key := expr.String()
	if other, ok := s.cache.Get(key); ok {
		return other
	}
	other := s.rebuild(expr)
	s.cache.Add(key, other)
	return other
}

func (s *ExprSimplifier) rebuild(expr Expr) Expr {
	switch e := expr.(type) {
	case *BinaryExpr:
		return NewBinaryExpr(e.Op, s.Simplify(e.LHS), s.Simplify(e.RHS))
	case *NotExpr:
		return PushNegation(s.Simplify(e.Expr))
	case *CastExpr:
		return NewCastExpr(s.Simplify(e.Src), e.Width, e.Signed)
	case *ConcatExpr:
		return NewConcatExpr(s.Simplify(e.MSB), s.Simplify(e.LSB))
	case *ExtractExpr:
		return NewExtractExpr(s.Simplify(e.Expr), e.Offset, e.Width)
	case *IteExpr:
		return NewIteExpr(s.Simplify(e.Cond), s.Simplify(e.Then), s.Simplify(e.Else))
	case *QuantifierExpr:
		return NewQuantifierExpr(e.Op, e.Var, s.Simplify(e.Body))
	case *IndexExpr:
		return NewIndexExpr(s.Simplify(e.Array), s.Simplify(e.Index))
	case *WithExpr:
		return NewWithExpr(s.Simplify(e.Array), s.Simplify(e.Index), s.Simplify(e.Value))
	case *AddressOfExpr:
		return NewAddressOfExpr(s.Simplify(e.Object))
	case *DerefExpr:
		p := s.Simplify(e.Pointer)
		if addr, ok := p.(*AddressOfExpr); ok {
			return addr.Object
		}
		return &DerefExpr{Pointer: p, Type: e.Type}
	default:
		return expr
	}
}

// nopSimplifier returns expressions unchanged.
type nopSimplifier struct{}

func (nopSimplifier) Simplify(expr Expr) Expr { return expr }

// PushNegation returns the negation of expr. Negations of boolean
// expressions containing quantifiers are pushed inward so that negated
// universals become existentials and vice versa.
func PushNegation(expr Expr) Expr {
	if !IsBoolExpr(expr) || !hasQuantifier(expr) {
		return NewNotExpr(expr)
	}

	switch e := expr.(type) {
	case *QuantifierExpr:
		op := EXISTS
		if e.Op == EXISTS {
			op = FORALL
		}
		return NewQuantifierExpr(op, e.Var, PushNegation(e.Body))
	case *BinaryExpr:
		switch e.Op {
		case AND:
			return NewBinaryExpr(OR, PushNegation(e.LHS), PushNegation(e.RHS))
		case OR:
			return NewBinaryExpr(AND, PushNegation(e.LHS), PushNegation(e.RHS))
		}
	case *NotExpr:
		return e.Expr
	}
	return NewNotExpr(expr)
}

// PushNegations rewrites every negation within expr using PushNegation.
func PushNegations(expr Expr) Expr {
	return WalkExpr(exprVisitorFunc(func(e Expr) (Expr, bool) {
		if not, ok := e.(*NotExpr); ok && hasQuantifier(not.Expr) {
			return PushNegations(PushNegation(not.Expr)), false
		}
		return e, true
	}), expr)
}

func hasQuantifier(expr Expr) bool {
	return HasSubExpr(expr, func(e Expr) bool {
		_, ok := e.(*QuantifierExpr)
		return ok
	})
}

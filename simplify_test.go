package symex_test

import (
	"testing"

	"github.com/benbjohnson/symex"
)

func TestExprSimplifier_Simplify(t *testing.T) {
	forall := symex.NewQuantifierExpr(symex.FORALL, symX, symex.NewBinaryExpr(symex.SLT, symX, const32(10)))

	for _, tt := range []struct {
		name string
		expr symex.Expr
		exp  string
	}{
		{name: "Refold", expr: &symex.BinaryExpr{Op: symex.ADD, LHS: symY, RHS: const32(1)}, exp: "(add (const 1 32) y)"},
		{name: "Constant", expr: &symex.BinaryExpr{Op: symex.ADD, LHS: const32(1), RHS: &symex.BinaryExpr{Op: symex.MUL, LHS: const32(2), RHS: const32(3)}}, exp: "(const 7 32)"},
		{name: "Ite", expr: &symex.IteExpr{Cond: &symex.BinaryExpr{Op: symex.EQ, LHS: symY, RHS: symY}, Then: symX, Else: symY}, exp: "x"},
		{name: "Deref", expr: &symex.DerefExpr{Pointer: &symex.AddressOfExpr{Object: symX}, Type: s32}, exp: "x"},
		{name: "NegatedForall", expr: &symex.NotExpr{Expr: forall}, exp: "(exists (x s32) (not (slt x (const 10 32))))"},
		{name: "Symbol", expr: symX, exp: "x"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := symex.NewExprSimplifier(0)
			if got := s.Simplify(tt.expr).String(); got != tt.exp {
				t.Fatalf("Simplify()=%s, expected %s", got, tt.exp)
			}
		})
	}

	t.Run("Cache", func(t *testing.T) {
		s := symex.NewExprSimplifier(2)
		expr := &symex.BinaryExpr{Op: symex.ADD, LHS: symY, RHS: const32(1)}
		if a, b := s.Simplify(expr), s.Simplify(expr); a != b {
			t.Fatal("expected memoised result")
		}
	})
}

func TestPushNegation(t *testing.T) {
	c := symex.NewSymbolExpr("c", &symex.BoolType{})
	forall := symex.NewQuantifierExpr(symex.FORALL, symX, symex.NewBinaryExpr(symex.SLT, symX, const32(10)))

	if got, exp := symex.PushNegation(c).String(), "(not c)"; got != exp {
		t.Fatalf("PushNegation()=%s, expected %s", got, exp)
	} else if got, exp := symex.PushNegation(symex.NewBinaryExpr(symex.AND, c, forall)).String(), "(or (not c) (exists (x s32) (not (slt x (const 10 32)))))"; got != exp {
		t.Fatalf("PushNegation()=%s, expected %s", got, exp)
	}

	expr := &symex.BinaryExpr{Op: symex.AND, LHS: c, RHS: &symex.NotExpr{Expr: forall}}
	if got, exp := symex.PushNegations(expr).String(), "(and c (exists (x s32) (not (slt x (const 10 32)))))"; got != exp {
		t.Fatalf("PushNegations()=%s, expected %s", got, exp)
	}
}

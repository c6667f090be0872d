package symex_test

import (
	"testing"

	"github.com/benbjohnson/symex"
	"github.com/google/go-cmp/cmp"
)

var (
	s32 = &symex.BitVectorType{Width: 32, Signed: true}
	u8  = &symex.BitVectorType{Width: 8}

	symX = symex.NewSymbolExpr("x", s32)
	symY = symex.NewSymbolExpr("y", s32)
)

func const32(v int64) *symex.ConstantExpr { return symex.NewConstantExpr32(uint64(v)) }

func TestExprWidth(t *testing.T) {
	for _, tt := range []struct {
		name string
		expr symex.Expr
		exp  uint
	}{
		{name: "Constant", expr: symex.NewConstantExpr(0, 8), exp: 8},
		{name: "Symbol", expr: symX, exp: 32},
		{name: "Compare", expr: symex.NewBinaryExpr(symex.SLT, symX, symY), exp: 1},
		{name: "Arithmetic", expr: symex.NewBinaryExpr(symex.ADD, symX, symY), exp: 32},
		{name: "Extract", expr: symex.NewExtractExpr(symX, 8, 16), exp: 16},
		{name: "Concat", expr: symex.NewConcatExpr(symX, symex.NewSymbolExpr("b", u8)), exp: 40},
		{name: "Cast", expr: symex.NewCastExpr(symX, 64, true), exp: 64},
		{name: "AddressOf", expr: symex.NewAddressOfExpr(symX), exp: symex.PointerWidth},
		{name: "Array", expr: symex.NewSymbolExpr("arr", &symex.ArrayType{Elem: s32}), exp: 0},
		{name: "Quantifier", expr: symex.NewQuantifierExpr(symex.FORALL, symX, symex.NewBinaryExpr(symex.SLT, symX, symY)), exp: 1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := symex.ExprWidth(tt.expr); got != tt.exp {
				t.Fatalf("ExprWidth()=%d, expected %d", got, tt.exp)
			}
		})
	}
}

func TestBinaryOp_String(t *testing.T) {
	if got, exp := symex.SGT.String(), "sgt"; got != exp {
		t.Fatalf("String()=%s, expected %s", got, exp)
	} else if got, exp := symex.BinaryOp(99).String(), "BinaryOp<99>"; got != exp {
		t.Fatalf("String()=%s, expected %s", got, exp)
	}

	if op, ok := symex.ParseBinaryOp("lshr"); !ok || op != symex.LSHR {
		t.Fatalf("ParseBinaryOp()=%v,%v", op, ok)
	} else if _, ok := symex.ParseBinaryOp("bogus"); ok {
		t.Fatal("expected unknown operator")
	}

	if !symex.MUL.IsArithmetic() || symex.MUL.IsCompare() {
		t.Fatal("expected arithmetic operator")
	} else if !symex.SGE.IsCompare() || symex.SGE.IsArithmetic() {
		t.Fatal("expected comparison operator")
	}
}

func TestNewBinaryExpr(t *testing.T) {
	b := symex.NewSymbolExpr("b", &symex.BoolType{})
	addrA := symex.NewAddressOfExpr(symex.NewSymbolExpr("a", s32))
	addrB := symex.NewAddressOfExpr(symex.NewSymbolExpr("b", s32))

	for _, tt := range []struct {
		name string
		expr symex.Expr
		exp  string
	}{
		{name: "AddConstantLeft", expr: symex.NewBinaryExpr(symex.ADD, symX, const32(1)), exp: "(add (const 1 32) x)"},
		{name: "AddReassociate", expr: symex.NewBinaryExpr(symex.ADD, const32(1), symex.NewBinaryExpr(symex.ADD, symX, const32(2))), exp: "(add (const 3 32) x)"},
		{name: "AddZero", expr: symex.NewBinaryExpr(symex.ADD, const32(0), symX), exp: "x"},
		{name: "AddOverflow", expr: symex.NewBinaryExpr(symex.ADD, const32(-1), const32(1)), exp: "(const 0 32)"},
		{name: "SubSelf", expr: symex.NewBinaryExpr(symex.SUB, symX, symX), exp: "(const 0 32)"},
		{name: "SubZero", expr: symex.NewBinaryExpr(symex.SUB, symX, const32(0)), exp: "x"},
		{name: "MulOne", expr: symex.NewBinaryExpr(symex.MUL, symX, const32(1)), exp: "x"},
		{name: "MulZero", expr: symex.NewBinaryExpr(symex.MUL, symX, const32(0)), exp: "(const 0 32)"},
		{name: "DivByZero", expr: symex.NewBinaryExpr(symex.UDIV, symX, const32(0)), exp: "(udiv x (const 0 32))"},
		{name: "SignedDiv", expr: symex.NewBinaryExpr(symex.SDIV, const32(-6), const32(4)), exp: "(const 4294967295 32)"},
		{name: "SignedRem", expr: symex.NewBinaryExpr(symex.SREM, const32(-7), const32(4)), exp: "(const 4294967293 32)"},
		{name: "XorSelf", expr: symex.NewBinaryExpr(symex.XOR, symX, symX), exp: "(const 0 32)"},
		{name: "ShiftZero", expr: symex.NewBinaryExpr(symex.SHL, symX, const32(0)), exp: "x"},
		{name: "ShiftOut", expr: symex.NewBinaryExpr(symex.SHL, const32(1), const32(40)), exp: "(const 0 32)"},
		{name: "ArithmeticShift", expr: symex.NewBinaryExpr(symex.ASHR, const32(-8), const32(1)), exp: "(const 4294967292 32)"},
		{name: "SGT", expr: symex.NewBinaryExpr(symex.SGT, symX, const32(0)), exp: "(slt (const 0 32) x)"},
		{name: "UGE", expr: symex.NewBinaryExpr(symex.UGE, symX, symY), exp: "(ule y x)"},
		{name: "SGESelf", expr: symex.NewBinaryExpr(symex.SGE, symX, symX), exp: "true"},
		{name: "SLTSelf", expr: symex.NewBinaryExpr(symex.SLT, symX, symX), exp: "false"},
		{name: "SignedCompare", expr: symex.NewBinaryExpr(symex.SLT, const32(-1), const32(0)), exp: "true"},
		{name: "UnsignedCompare", expr: symex.NewBinaryExpr(symex.ULT, const32(-1), const32(0)), exp: "false"},
		{name: "EqConstantLeft", expr: symex.NewBinaryExpr(symex.EQ, symX, const32(1)), exp: "(eq (const 1 32) x)"},
		{name: "NE", expr: symex.NewBinaryExpr(symex.NE, symX, const32(1)), exp: "(not (eq (const 1 32) x))"},
		{name: "EqBoolTrue", expr: symex.NewBinaryExpr(symex.EQ, b, symex.NewBoolConstantExpr(true)), exp: "b"},
		{name: "EqBoolFalse", expr: symex.NewBinaryExpr(symex.EQ, symex.NewBoolConstantExpr(false), b), exp: "(not b)"},
		{name: "EqIte", expr: symex.NewBinaryExpr(symex.EQ, const32(1), symex.NewIteExpr(b, const32(1), const32(2))), exp: "b"},
		{name: "EqDistinctAddresses", expr: symex.NewBinaryExpr(symex.EQ, addrA, addrB), exp: "false"},
		{name: "EqSameAddress", expr: symex.NewBinaryExpr(symex.EQ, addrA, addrA), exp: "true"},
		{name: "AndFalse", expr: symex.NewBinaryExpr(symex.AND, b, symex.NewBoolConstantExpr(false)), exp: "false"},
		{name: "AndTrue", expr: symex.NewBinaryExpr(symex.AND, symex.NewBoolConstantExpr(true), b), exp: "b"},
		{name: "AndAllOnes", expr: symex.NewBinaryExpr(symex.AND, symX, const32(-1)), exp: "x"},
		{name: "OrFalse", expr: symex.NewBinaryExpr(symex.OR, b, symex.NewBoolConstantExpr(false)), exp: "b"},
		{name: "OrTrue", expr: symex.NewBinaryExpr(symex.OR, symex.NewBoolConstantExpr(true), b), exp: "true"},
		{name: "MulOneLeft", expr: symex.NewBinaryExpr(symex.MUL, const32(1), symX), exp: "x"},
		{name: "XorZero", expr: symex.NewBinaryExpr(symex.XOR, symX, const32(0)), exp: "x"},
		{name: "XorTrue", expr: symex.NewBinaryExpr(symex.XOR, symex.NewBoolConstantExpr(true), b), exp: "(not b)"},
		{name: "AndNegation", expr: symex.NewBinaryExpr(symex.AND, b, symex.NewNotExpr(b)), exp: "false"},
		{name: "OrNegation", expr: symex.NewBinaryExpr(symex.OR, symex.NewNotExpr(b), b), exp: "true"},
		{name: "Implies", expr: symex.NewImpliesExpr(b, symex.NewBinaryExpr(symex.SLT, symX, symY)), exp: "(or (not b) (slt x y))"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.String(); got != tt.exp {
				t.Fatalf("String()=%s, expected %s", got, tt.exp)
			}
		})
	}
}

func TestNewExpr_Fold(t *testing.T) {
	b := symex.NewSymbolExpr("b", &symex.BoolType{})
	arr := symex.NewSymbolExpr("arr", &symex.ArrayType{Elem: s32, Size: const32(4)})
	p := symex.NewSymbolExpr("p", &symex.PointerType{Elem: s32})
	lo, hi := symex.NewSymbolExpr("lo", u8), symex.NewSymbolExpr("hi", u8)

	for _, tt := range []struct {
		name string
		expr symex.Expr
		exp  string
	}{
		{name: "NotNot", expr: symex.NewNotExpr(symex.NewNotExpr(symX)), exp: "x"},
		{name: "NotConstant", expr: symex.NewNotExpr(symex.NewBoolConstantExpr(true)), exp: "false"},
		{name: "IteTrue", expr: symex.NewIteExpr(symex.NewBoolConstantExpr(true), symX, symY), exp: "x"},
		{name: "IteSameBranches", expr: symex.NewIteExpr(b, symX, symX), exp: "x"},
		{name: "IteBoolBranches", expr: symex.NewIteExpr(b, symex.NewBoolConstantExpr(false), symex.NewBoolConstantExpr(true)), exp: "(not b)"},
		{name: "Ite", expr: symex.NewIteExpr(b, symX, symY), exp: "(ite b x y)"},
		{name: "ExtractConstant", expr: symex.NewExtractExpr(symex.NewConstantExpr(0x1234, 16), 8, 8), exp: "(const 18 8)"},
		{name: "ExtractFull", expr: symex.NewExtractExpr(symX, 0, 32), exp: "x"},
		{name: "ExtractConcat", expr: symex.NewExtractExpr(symex.NewConcatExpr(hi, lo), 8, 8), exp: "hi"},
		{name: "Extract", expr: symex.NewExtractExpr(symX, 8, 8), exp: "(extract x 8 8)"},
		{name: "ConcatConstant", expr: symex.NewConcatExpr(symex.NewConstantExpr(0x12, 8), symex.NewConstantExpr(0x34, 8)), exp: "(const 4660 16)"},
		{name: "ConcatExtracts", expr: symex.NewConcatExpr(symex.NewExtractExpr(symX, 16, 16), symex.NewExtractExpr(symX, 0, 16)), exp: "x"},
		{name: "SignExtend", expr: symex.NewCastExpr(symex.NewConstantExpr(0xff, 8), 32, true), exp: "(const 4294967295 32)"},
		{name: "ZeroExtend", expr: symex.NewCastExpr(symex.NewConstantExpr(0xff, 8), 32, false), exp: "(const 255 32)"},
		{name: "Truncate", expr: symex.NewCastExpr(symX, 8, true), exp: "(extract x 0 8)"},
		{name: "Cast", expr: symex.NewCastExpr(lo, 32, true), exp: "(sext lo 32)"},
		{name: "DerefAddress", expr: symex.NewDerefExpr(symex.NewAddressOfExpr(symX)), exp: "x"},
		{name: "AddressDeref", expr: symex.NewAddressOfExpr(symex.NewDerefExpr(p)), exp: "p"},
		{name: "Deref", expr: symex.NewDerefExpr(p), exp: "(deref p)"},
		{name: "IndexWith", expr: symex.NewIndexExpr(symex.NewWithExpr(arr, const32(1), symY), const32(1)), exp: "y"},
		{name: "IndexWithOther", expr: symex.NewIndexExpr(symex.NewWithExpr(arr, const32(1), symY), const32(2)), exp: "(index arr (const 2 32))"},
		{name: "IndexWithSymbolic", expr: symex.NewIndexExpr(symex.NewWithExpr(arr, symX, symY), const32(2)), exp: "(index (with arr x y) (const 2 32))"},
		{name: "Quantifier", expr: symex.NewQuantifierExpr(symex.EXISTS, symX, symex.NewBinaryExpr(symex.SLT, symX, const32(10))), exp: "(exists (x s32) (slt x (const 10 32)))"},
		{name: "QuantifierConstant", expr: symex.NewQuantifierExpr(symex.FORALL, symX, symex.NewBoolConstantExpr(true)), exp: "true"},
		{name: "Nondet", expr: symex.NewNondetExpr(s32), exp: "(nondet s32)"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.String(); got != tt.exp {
				t.Fatalf("String()=%s, expected %s", got, tt.exp)
			}
		})
	}

	t.Run("ErrDerefNonPointer", func(t *testing.T) {
		defer func() {
			if _, ok := recover().(*symex.InvariantError); !ok {
				t.Fatal("expected invariant violation")
			}
		}()
		symex.NewDerefExpr(symX)
	})
}

func TestCompareExpr(t *testing.T) {
	a := symex.NewBinaryExpr(symex.ADD, symX, symY)
	b := symex.NewBinaryExpr(symex.ADD, symex.NewSymbolExpr("x", s32), symex.NewSymbolExpr("y", s32))
	if got := symex.CompareExpr(a, b); got != 0 {
		t.Fatalf("CompareExpr()=%d, expected 0", got)
	} else if got := symex.CompareExpr(const32(1), symX); got != -1 {
		t.Fatalf("CompareExpr()=%d, expected -1", got)
	} else if got := symex.CompareExpr(symY, symX); got != 1 {
		t.Fatalf("CompareExpr()=%d, expected 1", got)
	} else if got := symex.CompareExpr(nil, symX); got != -1 {
		t.Fatalf("CompareExpr()=%d, expected -1", got)
	}

	x1 := symex.NewSSAExpr(symX).WithL2(1)
	if got := symex.CompareExpr(x1, symex.NewSSAExpr(symX).WithL2(2)); got != -1 {
		t.Fatalf("CompareExpr()=%d, expected -1", got)
	} else if got := symex.CompareExpr(x1, symex.NewSSAExpr(symX).WithL2(1)); got != 0 {
		t.Fatalf("CompareExpr()=%d, expected 0", got)
	}
}

func TestFindSSAExprs(t *testing.T) {
	x1 := symex.NewSSAExpr(symX).WithL2(1)
	y := symex.NewSSAExpr(symex.NewSymbolExpr("main::y", s32)).WithL0(0).WithL1(1).WithL2(2)

	exprs := symex.FindSSAExprs(
		symex.NewBinaryExpr(symex.ADD, x1, y),
		symex.NewBinaryExpr(symex.SLT, x1, const32(3)),
		nil,
	)

	var ids []string
	for _, expr := range exprs {
		ids = append(ids, expr.Identifier())
	}
	if diff := cmp.Diff(ids, []string{"main::y!0@1#2", "x#1"}); diff != "" {
		t.Fatal(diff)
	}

	if !symex.HasSubExpr(symex.NewNotExpr(symex.NewBinaryExpr(symex.EQ, x1, y)), func(e symex.Expr) bool {
		_, ok := e.(*symex.SSAExpr)
		return ok
	}) {
		t.Fatal("expected SSA subexpression")
	}
}

func TestExprEvaluator_Evaluate(t *testing.T) {
	x1 := symex.NewSSAExpr(symX).WithL2(1)

	t.Run("Bound", func(t *testing.T) {
		ee := symex.NewExprEvaluator(map[string]*symex.ConstantExpr{"x#1": const32(5)})
		if v, err := ee.Evaluate(symex.NewBinaryExpr(symex.ADD, x1, const32(1))); err != nil {
			t.Fatal(err)
		} else if got, exp := v.Int64(), int64(6); got != exp {
			t.Fatalf("Evaluate()=%d, expected %d", got, exp)
		}

		if v, err := ee.Evaluate(&symex.IteExpr{Cond: symex.NewBinaryExpr(symex.SLT, x1, const32(0)), Then: const32(1), Else: const32(2)}); err != nil {
			t.Fatal(err)
		} else if got, exp := v.Int64(), int64(2); got != exp {
			t.Fatalf("Evaluate()=%d, expected %d", got, exp)
		}
	})

	t.Run("ErrUnbound", func(t *testing.T) {
		ee := symex.NewExprEvaluator(nil)
		if _, err := ee.Evaluate(x1); err == nil || err.Error() != "symbol not bound: x#1" {
			t.Fatalf("unexpected error: %v", err)
		}

		ee.ZeroUnbound = true
		if v, err := ee.Evaluate(x1); err != nil {
			t.Fatal(err)
		} else if got, exp := v.String(), "(const 0 32)"; got != exp {
			t.Fatalf("Evaluate()=%s, expected %s", got, exp)
		}
	})

	t.Run("Address", func(t *testing.T) {
		ee := symex.NewExprEvaluator(nil)
		a, err := ee.Evaluate(symex.NewAddressOfExpr(symex.NewSymbolExpr("a", s32)))
		if err != nil {
			t.Fatal(err)
		}
		b, err := ee.Evaluate(symex.NewAddressOfExpr(symex.NewSymbolExpr("b", s32)))
		if err != nil {
			t.Fatal(err)
		}
		again, err := ee.Evaluate(symex.NewAddressOfExpr(symex.NewSymbolExpr("a", s32)))
		if err != nil {
			t.Fatal(err)
		}

		if a.Value == 0 || a.Value == b.Value {
			t.Fatalf("unexpected addresses: %s, %s", a, b)
		} else if a.Value != again.Value {
			t.Fatalf("unstable address: %s != %s", a, again)
		} else if got, exp := a.Width, uint(symex.PointerWidth); got != exp {
			t.Fatalf("Width=%d, expected %d", got, exp)
		}
	})

	t.Run("Array", func(t *testing.T) {
		arr := symex.NewSymbolExpr("arr", &symex.ArrayType{Elem: s32, Size: const32(4)})
		ee := symex.NewExprEvaluator(map[string]*symex.ConstantExpr{"arr[2]": const32(7)})

		if v, err := ee.Evaluate(symex.NewIndexExpr(arr, const32(2))); err != nil {
			t.Fatal(err)
		} else if got, exp := v.Int64(), int64(7); got != exp {
			t.Fatalf("Evaluate()=%d, expected %d", got, exp)
		}

		with := &symex.IndexExpr{Array: symex.NewWithExpr(arr, const32(1), const32(9)), Index: const32(1)}
		if v, err := ee.Evaluate(with); err != nil {
			t.Fatal(err)
		} else if got, exp := v.Int64(), int64(9); got != exp {
			t.Fatalf("Evaluate()=%d, expected %d", got, exp)
		}

		ee.BindArray("arr", symex.NewWithExpr(arr, const32(3), const32(-1)))
		if v, err := ee.Evaluate(symex.NewIndexExpr(arr, const32(3))); err != nil {
			t.Fatal(err)
		} else if got, exp := v.Int64(), int64(-1); got != exp {
			t.Fatalf("Evaluate()=%d, expected %d", got, exp)
		}
	})

	t.Run("ErrQuantifier", func(t *testing.T) {
		ee := symex.NewExprEvaluator(nil)
		if _, err := ee.Evaluate(symex.NewQuantifierExpr(symex.FORALL, symX, symex.NewBinaryExpr(symex.SLT, symX, symY))); err == nil {
			t.Fatal("expected error")
		}
	})
}

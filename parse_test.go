package symex_test

import (
	"testing"

	"github.com/benbjohnson/symex"
)

func TestParseExpr(t *testing.T) {
	symbols := symex.NewSymbolTable()
	for _, sym := range []*symex.Symbol{
		{Name: "x", Type: s32, StaticLifetime: true},
		{Name: "c", Type: &symex.BoolType{}, StaticLifetime: true},
		{Name: "p", Type: &symex.PointerType{Elem: s32}, StaticLifetime: true},
		{Name: "arr", Type: &symex.ArrayType{Elem: s32, Size: const32(4)}, StaticLifetime: true},
	} {
		if err := symbols.Add(sym); err != nil {
			t.Fatal(err)
		}
	}

	for _, tt := range []struct {
		name string
		s    string
		exp  string
	}{
		{name: "Integer", s: "42", exp: "(const 42 32)"},
		{name: "Negative", s: "-1", exp: "(const 4294967295 32)"},
		{name: "Constant", s: "(const 7 8)", exp: "(const 7 8)"},
		{name: "Bool", s: "true", exp: "true"},
		{name: "Symbol", s: "x", exp: "x"},
		{name: "Binary", s: "(sgt x 0)", exp: "(slt (const 0 32) x)"},
		{name: "Nested", s: "(eq (add x 1) 3)", exp: "(eq (const 3 32) (add (const 1 32) x))"},
		{name: "Not", s: "(not c)", exp: "(not c)"},
		{name: "Implies", s: "(implies c (eq x 1))", exp: "(or (not c) (eq (const 1 32) x))"},
		{name: "Ite", s: "(ite c x 0)", exp: "(ite c x (const 0 32))"},
		{name: "Cast", s: "(sext (extract x 0 8) 16)", exp: "(sext (extract x 0 8) 16)"},
		{name: "Concat", s: "(concat (const 1 8) (const 2 8))", exp: "(const 258 16)"},
		{name: "Deref", s: "(deref p)", exp: "(deref p)"},
		{name: "Addr", s: "(addr x)", exp: "(addr x)"},
		{name: "Index", s: "(index arr 2)", exp: "(index arr (const 2 32))"},
		{name: "With", s: "(index (with arr 1 x) 1)", exp: "x"},
		{name: "Nondet", s: "(nondet u16)", exp: "(nondet u16)"},
		{name: "Forall", s: "(forall (i s32) (slt i x))", exp: "(forall (i s32) (slt i x))"},
		{name: "ShadowedBound", s: "(exists (x u8) (eq x (const 1 8)))", exp: "(exists (x u8) (eq (const 1 8) x))"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := symex.ParseExpr(tt.s, symbols)
			if err != nil {
				t.Fatal(err)
			} else if got := expr.String(); got != tt.exp {
				t.Fatalf("ParseExpr()=%s, expected %s", got, tt.exp)
			}
		})
	}

	for _, tt := range []struct {
		name string
		s    string
		err  string
	}{
		{name: "Empty", s: "  ", err: "empty expression"},
		{name: "MissingParen", s: "(add x 1", err: `parse "(add x 1": missing )`},
		{name: "Trailing", s: "x 1", err: `parse "x 1": unexpected "1"`},
		{name: "Undefined", s: "(add y 1)", err: "undefined symbol: y"},
		{name: "UnknownOperator", s: "(pow x 2)", err: `unknown operator "pow"`},
		{name: "Arity", s: "(add x)", err: "add expects 2 operands, got 1: (add x)"},
		{name: "DerefNonPointer", s: "(deref x)", err: "dereference of non-pointer: (deref x)"},
		{name: "IndexNonArray", s: "(index x 0)", err: "index of non-array: (index x 0)"},
		{name: "ExtractBounds", s: "(extract x 30 8)", err: "extract out of bounds: (extract x 30 8)"},
		{name: "BoundOutOfScope", s: "(and (forall (i s32) (slt i 1)) (eq i 0))", err: "undefined symbol: i"},
	} {
		t.Run("Err"+tt.name, func(t *testing.T) {
			if _, err := symex.ParseExpr(tt.s, symbols); err == nil || err.Error() != tt.err {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	for _, s := range []string{
		"bool",
		"s32",
		"u8",
		"(ptr s32)",
		"(array u8 (const 4 32))",
		"(array s64)",
		"(struct (a s32) (b (ptr bool)))",
		"(code void s32 u8)",
		"(code s32)",
	} {
		t.Run(s, func(t *testing.T) {
			typ, err := symex.ParseType(s)
			if err != nil {
				t.Fatal(err)
			} else if got := typ.String(); got != s {
				t.Fatalf("ParseType()=%s, expected %s", got, s)
			}
		})
	}

	for _, s := range []string{"int", "s0", "(ptr)", "(code)", "(tuple s32)"} {
		t.Run("Err/"+s, func(t *testing.T) {
			if _, err := symex.ParseType(s); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBoundVars(t *testing.T) {
	expr, err := symex.ParseExpr("(and (forall (i s32) (slt i 1)) (exists (j s32) (eq j 2)))", nil)
	if err != nil {
		t.Fatal(err)
	}

	vars := symex.BoundVars(expr)
	if len(vars) != 2 {
		t.Fatalf("unexpected bound variables: %v", vars)
	} else if got, exp := vars[0].Name, "i"; got != exp {
		t.Fatalf("Name=%s, expected %s", got, exp)
	} else if got, exp := vars[1].Name, "j"; got != exp {
		t.Fatalf("Name=%s, expected %s", got, exp)
	}
}

package symex_test

import (
	"strings"
	"testing"

	"github.com/benbjohnson/symex"
)

// NewTestNamespace returns a namespace with a shared global "g", a
// thread-local global "tl" and a local "main::y".
func NewTestNamespace(tb testing.TB) *symex.Namespace {
	tb.Helper()
	symbols := symex.NewSymbolTable()
	for _, sym := range []*symex.Symbol{
		{Name: "g", Type: s32, StaticLifetime: true},
		{Name: "tl", Type: s32, StaticLifetime: true, ThreadLocal: true},
		{Name: "main::y", Type: s32},
	} {
		if err := symbols.Add(sym); err != nil {
			tb.Fatal(err)
		}
	}
	return symex.NewNamespace(symbols)
}

func TestSource_String(t *testing.T) {
	if got, exp := (symex.Source{ThreadNr: 1, Function: "f", PC: 3}).String(), "T1 f:3"; got != exp {
		t.Fatalf("String()=%s, expected %s", got, exp)
	}
}

func TestState_Rename(t *testing.T) {
	ns := NewTestNamespace(t)
	g := symex.NewSymbolExpr("g", s32)
	y := symex.NewSymbolExpr("main::y", s32)

	state := symex.NewState(symex.Source{Function: "main"}, symex.NewEquation())
	if got, exp := state.Rename(symex.NewBinaryExpr(symex.ADD, g, const32(1)), ns).String(), "(add (const 1 32) g#0)"; got != exp {
		t.Fatalf("Rename()=%s, expected %s", got, exp)
	} else if got, exp := state.Rename(y, ns).String(), "main::y!0#0"; got != exp {
		t.Fatalf("Rename()=%s, expected %s", got, exp)
	} else if got, exp := state.Rename(symex.NewSymbolExpr("tl", s32), ns).String(), "tl!0#0"; got != exp {
		t.Fatalf("Rename()=%s, expected %s", got, exp)
	}

	t.Run("Levels", func(t *testing.T) {
		state := symex.NewState(symex.Source{Function: "main"}, symex.NewEquation())
		l1 := state.RenameL1(symex.NewSSAExpr(y), ns)
		state.Level1.Set(l1.L0Identifier(), l1.WithL1(1), 1)
		l1 = state.RenameL1(symex.NewSSAExpr(y), ns)
		state.Level2.Increase(l1.L1Identifier(), l1.WithL2(3), 3)

		if got, exp := state.Rename(y, ns).String(), "main::y!0@1#3"; got != exp {
			t.Fatalf("Rename()=%s, expected %s", got, exp)
		} else if got, exp := state.RenameL1Expr(y, ns).String(), "main::y!0@1"; got != exp {
			t.Fatalf("RenameL1Expr()=%s, expected %s", got, exp)
		} else if got, exp := state.Rename(symex.NewAddressOfExpr(y), ns).String(), "(addr main::y!0@1)"; got != exp {
			t.Fatalf("Rename()=%s, expected %s", got, exp)
		}
	})

	t.Run("Propagation", func(t *testing.T) {
		state := symex.NewState(symex.Source{Function: "main"}, symex.NewEquation())
		state.SetPropagated("g", const32(5))
		if got, exp := state.Rename(symex.NewBinaryExpr(symex.ADD, g, const32(1)), ns).String(), "(add (const 1 32) (const 5 32))"; got != exp {
			t.Fatalf("Rename()=%s, expected %s", got, exp)
		} else if got, exp := state.Rename(g, ns).String(), "(const 5 32)"; got != exp {
			t.Fatalf("Rename()=%s, expected %s", got, exp)
		}

		state.SetPropagated("g", nil)
		if _, ok := state.Propagated("g"); ok {
			t.Fatal("expected no propagated value")
		}
	})

	t.Run("Renamed", func(t *testing.T) {
		x := symex.NewSSAExpr(g).WithL2(7)
		if got, exp := state.Rename(x, ns).String(), "g#7"; got != exp {
			t.Fatalf("Rename()=%s, expected %s", got, exp)
		}
	})
}

func TestState_Clone(t *testing.T) {
	ns := NewTestNamespace(t)
	g := symex.NewSymbolExpr("g", s32)

	state := symex.NewState(symex.Source{Function: "main"}, symex.NewEquation())
	state.PushFrame("main")

	other := state.Clone()
	other.Guard.Add(symex.NewSymbolExpr("c", &symex.BoolType{}))
	other.Level2.Increase("g", symex.NewSSAExpr(g).WithL2(1), 1)
	other.SetPropagated("g", const32(1))
	other.PushFrame("f")
	other.Top().LoopIterations["f.0"] = 2
	other.Dirty.Add("main::y")

	if !state.Guard.IsTrue() {
		t.Fatalf("unexpected guard: %s", state.Guard)
	} else if got, exp := state.Rename(g, ns).String(), "g#0"; got != exp {
		t.Fatalf("Rename()=%s, expected %s", got, exp)
	} else if got, exp := len(state.CallStack()), 1; got != exp {
		t.Fatalf("len(CallStack())=%d, expected %d", got, exp)
	} else if got, exp := state.Top().Function, "main"; got != exp {
		t.Fatalf("Top().Function=%s, expected %s", got, exp)
	} else if state.Dirty.Contains("main::y") {
		t.Fatal("unexpected dirty local")
	}

	if got, exp := other.Rename(g, ns).String(), "(const 1 32)"; got != exp {
		t.Fatalf("Rename()=%s, expected %s", got, exp)
	} else if got, exp := other.PreviousFrame().Function, "main"; got != exp {
		t.Fatalf("PreviousFrame().Function=%s, expected %s", got, exp)
	}
}

func TestState_PopFrame(t *testing.T) {
	ns := NewTestNamespace(t)
	y := symex.NewSSAExpr(symex.NewSymbolExpr("main::y", s32))

	state := symex.NewState(symex.Source{Function: "main"}, symex.NewEquation())
	if !state.Done() {
		t.Fatal("expected empty call stack")
	}

	frame := state.PushFrame("main")
	if state.Done() {
		t.Fatal("expected active frame")
	}

	l1 := state.RenameL1(y, ns).WithL1(1)
	frame.OldLevel1.Set(l1.L0Identifier(), l1.WithL1(0), 0)
	state.Level1.Set(l1.L0Identifier(), l1, 1)
	state.Level2.Increase(l1.L1Identifier(), l1.WithL2(1), 1)
	state.SetPropagated(l1.L1Identifier(), const32(3))
	frame.LocalObjects = append(frame.LocalObjects, l1.L1Identifier())

	if got := state.PopFrame(); got != frame {
		t.Fatal("unexpected frame")
	} else if !state.Done() {
		t.Fatal("expected empty call stack")
	} else if got, exp := state.Level1.CurrentCount("main::y!0"), 0; got != exp {
		t.Fatalf("CurrentCount()=%d, expected %d", got, exp)
	} else if got, exp := state.Level2.Len(), 0; got != exp {
		t.Fatalf("Level2.Len()=%d, expected %d", got, exp)
	} else if _, ok := state.Propagated(l1.L1Identifier()); ok {
		t.Fatal("expected propagated value to be dropped")
	}
}

func TestState_Dump(t *testing.T) {
	state := symex.NewState(symex.Source{Function: "main", PC: 2}, symex.NewEquation())
	state.PushFrame("main").LoopIterations["main.0"] = 1
	state.SetPropagated("g", const32(4))

	s := state.Dump()
	for _, exp := range []string{
		"SYMBOLIC STATE",
		"source=T0 main:2",
		"guard=true",
		"== THREAD #0 (T0 main:2)",
		"fn=main end=0 caller=T0 main:2",
		"g = (const 4 32)",
	} {
		if !strings.Contains(s, exp) {
			t.Fatalf("missing %q in:\n%s", exp, s)
		}
	}
}

func TestFrame_Dump(t *testing.T) {
	state := symex.NewState(symex.Source{Function: "main"}, symex.NewEquation())
	frame := state.PushFrame("main")
	for _, pc := range []int{9, 3, 5} {
		frame.GotoStates[pc] = make([]*symex.GotoState, pc%4)
	}

	s := frame.Dump()
	i, j, k := strings.Index(s, "pending 3: 3 state(s)"), strings.Index(s, "pending 5: 1 state(s)"), strings.Index(s, "pending 9: 1 state(s)")
	if i == -1 || j == -1 || k == -1 {
		t.Fatalf("missing pending states in:\n%s", s)
	} else if !(i < j && j < k) {
		t.Fatalf("pending states out of order:\n%s", s)
	}
}

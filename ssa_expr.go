package symex

import (
	"strconv"
	"strings"
)

// NoLevel marks a renaming level that has not been applied.
const NoLevel = -1

// SSAExpr represents a symbol annotated with its thread (L0), frame (L1)
// and assignment (L2) renaming levels.
type SSAExpr struct {
	Symbol *SymbolExpr
	L0     int
	L1     int
	L2     int
}

// NewSSAExpr returns a symbol with no renaming levels applied.
func NewSSAExpr(sym *SymbolExpr) *SSAExpr {
	return &SSAExpr{Symbol: sym, L0: NoLevel, L1: NoLevel, L2: NoLevel}
}

// ObjectName returns the original name of the symbol.
func (e *SSAExpr) ObjectName() string { return e.Symbol.Name }

// HasL0 returns true if the thread level has been applied.
func (e *SSAExpr) HasL0() bool { return e.L0 != NoLevel }

// HasL1 returns true if the frame level has been applied.
func (e *SSAExpr) HasL1() bool { return e.L1 != NoLevel }

// HasL2 returns true if the assignment level has been applied.
func (e *SSAExpr) HasL2() bool { return e.L2 != NoLevel }

// L0Identifier returns the name including only the thread level. This is
// the key used by the frame renaming level.
func (e *SSAExpr) L0Identifier() string {
	return e.identifier(e.L0, NoLevel, NoLevel)
}

// L1Identifier returns the name excluding the assignment level. This is
// the key used by the assignment renaming level and identifies the object.
func (e *SSAExpr) L1Identifier() string {
	return e.identifier(e.L0, e.L1, NoLevel)
}

// Identifier returns the fully rendered name, "name!L0@L1#L2", omitting
// unset levels.
func (e *SSAExpr) Identifier() string {
	return e.identifier(e.L0, e.L1, e.L2)
}

func (e *SSAExpr) identifier(l0, l1, l2 int) string {
	var buf strings.Builder
	buf.WriteString(e.Symbol.Name)
	if l0 != NoLevel {
		buf.WriteString("!")
		buf.WriteString(strconv.Itoa(l0))
	}
	if l1 != NoLevel {
		buf.WriteString("@")
		buf.WriteString(strconv.Itoa(l1))
	}
	if l2 != NoLevel {
		buf.WriteString("#")
		buf.WriteString(strconv.Itoa(l2))
	}
	return buf.String()
}

// String returns the string representation of the expression.
func (e *SSAExpr) String() string { return e.Identifier() }

// WithL0 returns a copy with the thread level set.
func (e *SSAExpr) WithL0(n int) *SSAExpr {
	other := *e
	other.L0 = n
	return &other
}

// WithL1 returns a copy with the frame level set.
func (e *SSAExpr) WithL1(n int) *SSAExpr {
	other := *e
	other.L1 = n
	return &other
}

// WithL2 returns a copy with the assignment level set.
func (e *SSAExpr) WithL2(n int) *SSAExpr {
	other := *e
	other.L2 = n
	return &other
}

// WithType returns a copy whose symbol carries a different type.
func (e *SSAExpr) WithType(t Type) *SSAExpr {
	other := *e
	other.Symbol = &SymbolExpr{Name: e.Symbol.Name, Type: t}
	return &other
}

// StripL2 returns a copy without the assignment level.
func (e *SSAExpr) StripL2() *SSAExpr {
	return e.WithL2(NoLevel)
}

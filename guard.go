package symex

// Guard represents the condition under which the current path is live. It
// is a conjunction of branch conditions, constant-folded as it grows.
type Guard struct {
	expr Expr
}

// NewGuard returns a guard that is trivially true.
func NewGuard() Guard {
	return Guard{expr: NewBoolConstantExpr(true)}
}

// NewGuardFromExpr returns a guard with the given condition.
func NewGuardFromExpr(expr Expr) Guard {
	return Guard{expr: expr}
}

// AsExpr returns the accumulated condition.
func (g Guard) AsExpr() Expr {
	if g.expr == nil {
		return NewBoolConstantExpr(true)
	}
	return g.expr
}

// IsTrue returns true if the guard is the constant true.
func (g Guard) IsTrue() bool { return g.expr == nil || IsConstantTrue(g.expr) }

// IsFalse returns true if the guard is the constant false.
func (g Guard) IsFalse() bool { return IsConstantFalse(g.expr) }

// Add conjoins expr to the guard.
func (g *Guard) Add(expr Expr) {
	g.expr = NewBinaryExpr(AND, g.AsExpr(), expr)
}

// Append conjoins another guard.
func (g *Guard) Append(other Guard) {
	g.Add(other.AsExpr())
}

// GuardExpr returns dest weakened by the guard, i.e. "guard => dest".
func (g Guard) GuardExpr(dest Expr) Expr {
	if g.IsTrue() {
		return dest
	} else if IsConstantFalse(dest) {
		return NewNotExpr(g.AsExpr())
	}
	return NewImpliesExpr(g.AsExpr(), dest)
}

// Sub removes the conjuncts g shares with other as a common prefix.
func (g *Guard) Sub(other Guard) {
	a, b := conjuncts(g.AsExpr()), conjuncts(other.AsExpr())
	n := commonPrefix(a, b)
	g.expr = conjoin(a[n:])
}

// Or merges other into g by disjunction. Conjuncts shared as a common
// prefix are factored out, and complementary remainders cancel.
func (g *Guard) Or(other Guard) {
	switch {
	case g.IsTrue() || other.IsFalse():
		return
	case g.IsFalse() || other.IsTrue():
		g.expr = other.AsExpr()
		return
	}

	a, b := conjuncts(g.AsExpr()), conjuncts(other.AsExpr())
	n := commonPrefix(a, b)
	prefix := conjoin(a[:n])
	lhs, rhs := conjoin(a[n:]), conjoin(b[n:])

	if IsConstantTrue(lhs) || IsConstantTrue(rhs) || isNegation(lhs, rhs) {
		g.expr = prefix
		return
	}
	g.expr = NewBinaryExpr(AND, prefix, NewBinaryExpr(OR, lhs, rhs))
}

// String returns the string representation of the guard.
func (g Guard) String() string { return g.AsExpr().String() }

// conjuncts flattens a left-nested boolean conjunction.
func conjuncts(expr Expr) []Expr {
	if IsConstantTrue(expr) {
		return nil
	}
	if e, ok := expr.(*BinaryExpr); ok && e.Op == AND && IsBoolExpr(e) {
		return append(conjuncts(e.LHS), conjuncts(e.RHS)...)
	}
	return []Expr{expr}
}

// conjoin is the inverse of conjuncts.
func conjoin(a []Expr) Expr {
	var expr Expr = NewBoolConstantExpr(true)
	for _, e := range a {
		expr = NewBinaryExpr(AND, expr, e)
	}
	return expr
}

func commonPrefix(a, b []Expr) int {
	var n int
	for n < len(a) && n < len(b) && CompareExpr(a[n], b[n]) == 0 {
		n++
	}
	return n
}

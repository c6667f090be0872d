package symex

import (
	"fmt"
	"sort"
)

// Expr represents a symbolic expression.
type Expr interface {
	expr()
	String() string
}

func (*AddressOfExpr) expr()  {}
func (*BinaryExpr) expr()     {}
func (*CastExpr) expr()       {}
func (*ConcatExpr) expr()     {}
func (*ConstantExpr) expr()   {}
func (*DerefExpr) expr()      {}
func (*ExtractExpr) expr()    {}
func (*IndexExpr) expr()      {}
func (*IteExpr) expr()        {}
func (*NondetExpr) expr()     {}
func (*NotExpr) expr()        {}
func (*QuantifierExpr) expr() {}
func (*SSAExpr) expr()        {}
func (*SymbolExpr) expr()     {}
func (*WithExpr) expr()       {}

// ExprType returns the type of the expression.
func ExprType(expr Expr) Type {
	switch expr := expr.(type) {
	case *ConstantExpr:
		if expr.Width == WidthBool {
			return boolType
		}
		return &BitVectorType{Width: expr.Width}
	case *BinaryExpr:
		if expr.Op.IsCompare() {
			return boolType
		}
		return ExprType(expr.LHS)
	case *NotExpr:
		return ExprType(expr.Expr)
	case *CastExpr:
		return &BitVectorType{Width: expr.Width, Signed: expr.Signed}
	case *ExtractExpr:
		if expr.Width == WidthBool {
			return boolType
		}
		return &BitVectorType{Width: expr.Width}
	case *ConcatExpr:
		return &BitVectorType{Width: ExprWidth(expr.MSB) + ExprWidth(expr.LSB)}
	case *SymbolExpr:
		return expr.Type
	case *SSAExpr:
		return expr.Symbol.Type
	case *IteExpr:
		return ExprType(expr.Then)
	case *QuantifierExpr:
		return boolType
	case *IndexExpr:
		if t, ok := ExprType(expr.Array).(*ArrayType); ok {
			return t.Elem
		}
		return nil
	case *WithExpr:
		return ExprType(expr.Array)
	case *DerefExpr:
		return expr.Type
	case *AddressOfExpr:
		return &PointerType{Elem: ExprType(expr.Object)}
	case *NondetExpr:
		return expr.Type
	default:
		panic("unreachable")
	}
}

// ExprWidth returns the bit width of the expression. Returns zero for
// expressions of aggregate type.
func ExprWidth(expr Expr) uint {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Width
	case *CastExpr:
		return expr.Width
	case *ExtractExpr:
		return expr.Width
	default:
		return TypeWidth(ExprType(expr))
	}
}

// IsBoolExpr returns true if expr has a boolean type.
func IsBoolExpr(expr Expr) bool {
	_, ok := ExprType(expr).(*BoolType)
	return ok || ExprWidth(expr) == WidthBool
}

// BinaryOp represents a binary expression operations.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	ADD
	SUB
	MUL
	UDIV
	SDIV
	UREM
	SREM
	AND
	OR
	XOR
	SHL
	LSHR
	ASHR
	arithmetic_op_end

	compare_op_begin
	EQ
	NE
	ULT
	ULE
	UGT
	UGE
	SLT
	SLE
	SGT
	SGE
	compare_op_end
)

var binaryOps = [...]string{
	ADD:  "add",
	SUB:  "sub",
	MUL:  "mul",
	UDIV: "udiv",
	SDIV: "sdiv",
	UREM: "urem",
	SREM: "srem",
	AND:  "and",
	OR:   "or",
	XOR:  "xor",
	SHL:  "shl",
	LSHR: "lshr",
	ASHR: "ashr",
	EQ:   "eq",
	NE:   "ne",
	ULT:  "ult",
	ULE:  "ule",
	UGT:  "ugt",
	UGE:  "uge",
	SLT:  "slt",
	SLE:  "sle",
	SGT:  "sgt",
	SGE:  "sge",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// IsArithmetic returns true if op is an arithmetic operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsCompare returns true if op is a comparison operator.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// ParseBinaryOp returns the operation with the given name.
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for op, name := range binaryOps {
		if name != "" && name == s {
			return BinaryOp(op), true
		}
	}
	return 0, false
}

// BinaryExpr represents an operation on two expressions.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns a new, constant-folded binary expression.
// Comparisons are canonicalized to EQ, ULT, ULE, SLT & SLE.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) Expr {
	switch op {
	// Arithmetic operators
	case ADD:
		return newAddExpr(lhs, rhs)
	case SUB:
		return newSubExpr(lhs, rhs)
	case MUL:
		return newMulExpr(lhs, rhs)
	case UDIV, SDIV, UREM, SREM:
		return newDivExpr(op, lhs, rhs)
	case AND:
		return newAndExpr(lhs, rhs)
	case OR:
		return newOrExpr(lhs, rhs)
	case XOR:
		return newXorExpr(lhs, rhs)
	case SHL, LSHR, ASHR:
		return newShiftExpr(op, lhs, rhs)

	// Comparison operators
	case EQ:
		return newEqExpr(lhs, rhs)
	case NE:
		return NewNotExpr(newEqExpr(lhs, rhs))
	case ULT:
		return newCompareExpr(ULT, lhs, rhs)
	case UGT:
		return newCompareExpr(ULT, rhs, lhs) // reverse
	case ULE:
		return newCompareExpr(ULE, lhs, rhs)
	case UGE:
		return newCompareExpr(ULE, rhs, lhs) // reverse
	case SLT:
		return newCompareExpr(SLT, lhs, rhs)
	case SGT:
		return newCompareExpr(SLT, rhs, lhs) // reverse
	case SLE:
		return newCompareExpr(SLE, lhs, rhs)
	case SGE:
		return newCompareExpr(SLE, rhs, lhs) // reverse

	default:
		panic("unreachable")
	}
}

// NewImpliesExpr returns an expression for "lhs implies rhs".
func NewImpliesExpr(lhs, rhs Expr) Expr {
	return NewBinaryExpr(OR, NewNotExpr(lhs), rhs)
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// newAddExpr returns the expression representing the sum of lhs & rhs.
func newAddExpr(lhs, rhs Expr) Expr {
	// Move constant expression to left hand side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.Value == 0 {
			return rhs
		} else if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Add(rhs)
		}

		// X + (Y+z) == (X+Y) + z
		if rhs, ok := rhs.(*BinaryExpr); ok && rhs.Op == ADD && IsConstantExpr(rhs.LHS) {
			return NewBinaryExpr(ADD, lhs.Add(rhs.LHS.(*ConstantExpr)), rhs.RHS)
		}
	}
	return &BinaryExpr{Op: ADD, LHS: lhs, RHS: rhs}
}

// newSubExpr returns an expression representing the difference of lhs & rhs.
func newSubExpr(lhs, rhs Expr) Expr {
	// Subtracting a value from itself is zero.
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, ExprWidth(lhs))
	}

	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.Value == 0 {
			return lhs
		} else if lhs, ok := lhs.(*ConstantExpr); ok {
			return lhs.Sub(rhs)
		}
	}
	return &BinaryExpr{Op: SUB, LHS: lhs, RHS: rhs}
}

// newMulExpr returns an expression representing the product of lhs & rhs.
func newMulExpr(lhs, rhs Expr) Expr {
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			return lhs.Mul(r)
		} else if lhs.Value == 0 {
			return lhs
		} else if lhs.Value == 1 {
			return rhs
		}
	}
	return &BinaryExpr{Op: MUL, LHS: lhs, RHS: rhs}
}

// newDivExpr returns a division or remainder expression. Division by a
// constant zero is left unevaluated.
func newDivExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if rhs, ok := rhs.(*ConstantExpr); ok && rhs.Value != 0 {
		if lhs, ok := lhs.(*ConstantExpr); ok {
			switch op {
			case UDIV:
				return lhs.UDiv(rhs)
			case SDIV:
				return lhs.SDiv(rhs)
			case UREM:
				return lhs.URem(rhs)
			case SREM:
				return lhs.SRem(rhs)
			}
		}
		if rhs.Value == 1 && (op == UDIV || op == SDIV) {
			return lhs
		}
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// newAndExpr returns a bitwise (or boolean) conjunction of lhs & rhs.
func newAndExpr(lhs, rhs Expr) Expr {
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			return lhs.And(r)
		} else if lhs.Value == 0 {
			return lhs
		} else if lhs.IsAllOnes() {
			return rhs
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	} else if isNegation(lhs, rhs) {
		return NewConstantExpr(0, ExprWidth(lhs))
	}
	return &BinaryExpr{Op: AND, LHS: lhs, RHS: rhs}
}

// newOrExpr returns a bitwise (or boolean) disjunction of lhs & rhs.
func newOrExpr(lhs, rhs Expr) Expr {
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			return lhs.Or(r)
		} else if lhs.Value == 0 {
			return rhs
		} else if lhs.IsAllOnes() {
			return lhs
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	} else if isNegation(lhs, rhs) {
		return NewConstantExpr(bitmask(ExprWidth(lhs)), ExprWidth(lhs))
	}
	return &BinaryExpr{Op: OR, LHS: lhs, RHS: rhs}
}

// newXorExpr returns a bitwise exclusive or of lhs & rhs.
func newXorExpr(lhs, rhs Expr) Expr {
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if r, ok := rhs.(*ConstantExpr); ok {
			return lhs.Xor(r)
		} else if lhs.Value == 0 {
			return rhs
		} else if lhs.Width == WidthBool {
			return NewNotExpr(rhs)
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, ExprWidth(lhs))
	}
	return &BinaryExpr{Op: XOR, LHS: lhs, RHS: rhs}
}

// newShiftExpr returns a shift of lhs by rhs bits.
func newShiftExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.Value == 0 {
			return lhs
		} else if lhs, ok := lhs.(*ConstantExpr); ok {
			switch op {
			case SHL:
				return lhs.Shl(rhs)
			case LSHR:
				return lhs.LShr(rhs)
			case ASHR:
				return lhs.AShr(rhs)
			}
		}
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// newEqExpr returns an expression that evaluates to true if lhs and rhs are equal.
func newEqExpr(lhs, rhs Expr) Expr {
	// If constant is on right side, swap to left side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Eq(rhs)
		}

		// Boolean equality with a constant is the expression or its negation.
		if lhs.Width == WidthBool && IsBoolExpr(rhs) {
			if lhs.IsTrue() {
				return rhs
			}
			return NewNotExpr(rhs)
		}

		// c == ite(p, a, b) with constant branches reduces to p, !p or a constant.
		if rhs, ok := rhs.(*IteExpr); ok {
			then, ok1 := rhs.Then.(*ConstantExpr)
			els, ok2 := rhs.Else.(*ConstantExpr)
			if ok1 && ok2 {
				return NewIteExpr(rhs.Cond, lhs.Eq(then), lhs.Eq(els))
			}
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(true)
	}

	// Distinct objects never share an address.
	if a, ok := lhs.(*AddressOfExpr); ok {
		if b, ok := rhs.(*AddressOfExpr); ok && isObjectExpr(a.Object) && isObjectExpr(b.Object) {
			return NewBoolConstantExpr(false)
		}
	}
	return &BinaryExpr{Op: EQ, LHS: lhs, RHS: rhs}
}

// newCompareExpr returns an ordered comparison of lhs & rhs.
func newCompareExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			switch op {
			case ULT:
				return lhs.Ult(rhs)
			case ULE:
				return lhs.Ule(rhs)
			case SLT:
				return lhs.Slt(rhs)
			case SLE:
				return lhs.Sle(rhs)
			}
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(op == ULE || op == SLE)
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// isNegation returns true if one expression is the negation of the other.
func isNegation(a, b Expr) bool {
	if a, ok := a.(*NotExpr); ok && CompareExpr(a.Expr, b) == 0 {
		return true
	}
	if b, ok := b.(*NotExpr); ok && CompareExpr(b.Expr, a) == 0 {
		return true
	}
	return false
}

// isObjectExpr returns true if expr denotes a named variable.
func isObjectExpr(expr Expr) bool {
	switch expr.(type) {
	case *SymbolExpr, *SSAExpr:
		return true
	default:
		return false
	}
}

// ConcatExpr represents the concatenation of two bit vectors.
type ConcatExpr struct {
	MSB Expr
	LSB Expr
}

// NewConcatExpr returns a new instance of ConcatExpr.
func NewConcatExpr(msb, lsb Expr) Expr {
	// Combine expressions if they are both constants.
	if msb, ok := msb.(*ConstantExpr); ok {
		if lsb, ok := lsb.(*ConstantExpr); ok {
			return msb.Concat(lsb)
		}
	}

	// Combine extract expressions if they are contiguous.
	if msb, ok := msb.(*ExtractExpr); ok {
		if lsb, ok := lsb.(*ExtractExpr); ok {
			if CompareExpr(msb.Expr, lsb.Expr) == 0 && lsb.Offset+lsb.Width == msb.Offset {
				return NewExtractExpr(msb.Expr, lsb.Offset, msb.Width+lsb.Width)
			}
		}
	}

	return &ConcatExpr{MSB: msb, LSB: lsb}
}

// String returns the string representation of the expression.
func (e *ConcatExpr) String() string {
	return fmt.Sprintf("(concat %s %s)", e.MSB, e.LSB)
}

// ExtractExpr represents the extraction of a set of bits at a given offset/width.
type ExtractExpr struct {
	Expr   Expr
	Offset uint
	Width  uint
}

// NewExtractExpr returns a new instance of ExtractExpr.
func NewExtractExpr(expr Expr, offset uint, width uint) Expr {
	kw := ExprWidth(expr)
	invariant(width > 0, "extract width cannot be zero")
	invariant(offset+width <= kw, "extract out of bounds: %d+%d > %d", width, offset, kw)

	if width == kw {
		return expr
	} else if expr, ok := expr.(*ConstantExpr); ok {
		return expr.Extract(offset, width)
	}

	// Directly extract from either half of a concatenation.
	if expr, ok := expr.(*ConcatExpr); ok {
		if lw := ExprWidth(expr.LSB); offset >= lw {
			return NewExtractExpr(expr.MSB, offset-lw, width)
		} else if offset+width <= lw {
			return NewExtractExpr(expr.LSB, offset, width)
		}
	}

	return &ExtractExpr{Expr: expr, Offset: offset, Width: width}
}

// String returns the string representation of the expression.
func (e *ExtractExpr) String() string {
	return fmt.Sprintf("(extract %s %d %d)", e.Expr, e.Offset, e.Width)
}

// NotExpr represents a bitwise not of an expression. For booleans this is
// logical negation.
type NotExpr struct {
	Expr Expr
}

// NewNotExpr returns a new instance of NotExpr.
func NewNotExpr(expr Expr) Expr {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Not()
	case *NotExpr:
		return expr.Expr
	}
	return &NotExpr{Expr: expr}
}

// String returns the string representation of the expression.
func (e *NotExpr) String() string {
	return fmt.Sprintf("(not %s)", e.Expr)
}

// CastExpr represents an expression that casts an expression to a new width.
type CastExpr struct {
	Src    Expr
	Width  uint
	Signed bool
}

// NewCastExpr returns a new instance of CastExpr.
func NewCastExpr(src Expr, width uint, signed bool) Expr {
	sw := ExprWidth(src)
	if width == sw { // nop
		return src
	} else if width < sw { // truncate
		return NewExtractExpr(src, 0, width)
	} else if src, ok := src.(*ConstantExpr); ok {
		if signed {
			return src.SExt(width)
		}
		return src.ZExt(width)
	}
	return &CastExpr{Src: src, Width: width, Signed: signed}
}

// String returns the string representation of the expression.
func (e *CastExpr) String() string {
	if e.Signed {
		return fmt.Sprintf("(sext %s %d)", e.Src, e.Width)
	}
	return fmt.Sprintf("(zext %s %d)", e.Src, e.Width)
}

// SymbolExpr represents a reference to a program variable by its
// original, unrenamed name.
type SymbolExpr struct {
	Name string
	Type Type
}

// NewSymbolExpr returns a new instance of SymbolExpr.
func NewSymbolExpr(name string, typ Type) *SymbolExpr {
	return &SymbolExpr{Name: name, Type: typ}
}

// String returns the string representation of the expression.
func (e *SymbolExpr) String() string { return e.Name }

// IteExpr represents an if-then-else expression.
type IteExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

// NewIteExpr returns a new, simplified if-then-else expression.
func NewIteExpr(cond, then, els Expr) Expr {
	if cond, ok := cond.(*ConstantExpr); ok {
		if cond.IsTrue() {
			return then
		}
		return els
	}

	if CompareExpr(then, els) == 0 {
		return then
	}

	// Boolean constant branches reduce to the condition itself.
	if then, ok := then.(*ConstantExpr); ok && then.Width == WidthBool {
		if els, ok := els.(*ConstantExpr); ok && els.Width == WidthBool {
			if then.IsTrue() {
				return cond
			}
			return NewNotExpr(cond)
		}
	}

	return &IteExpr{Cond: cond, Then: then, Else: els}
}

// String returns the string representation of the expression.
func (e *IteExpr) String() string {
	return fmt.Sprintf("(ite %s %s %s)", e.Cond, e.Then, e.Else)
}

// QuantifierOp represents the kind of quantifier.
type QuantifierOp int

// Quantifier kinds.
const (
	FORALL = QuantifierOp(iota + 1)
	EXISTS
)

// String returns the string representation of the quantifier.
func (op QuantifierOp) String() string {
	switch op {
	case FORALL:
		return "forall"
	case EXISTS:
		return "exists"
	default:
		return fmt.Sprintf("QuantifierOp<%d>", int(op))
	}
}

// QuantifierExpr represents a universally or existentially quantified
// boolean expression. Var is a SymbolExpr or, once renamed, an SSAExpr.
type QuantifierExpr struct {
	Op   QuantifierOp
	Var  Expr
	Body Expr
}

// NewQuantifierExpr returns a new instance of QuantifierExpr.
func NewQuantifierExpr(op QuantifierOp, v Expr, body Expr) Expr {
	if IsConstantExpr(body) {
		return body
	}
	return &QuantifierExpr{Op: op, Var: v, Body: body}
}

// String returns the string representation of the expression.
func (e *QuantifierExpr) String() string {
	return fmt.Sprintf("(%s (%s %s) %s)", e.Op, e.Var, ExprType(e.Var), e.Body)
}

// IndexExpr represents reading an element of an array.
type IndexExpr struct {
	Array Expr
	Index Expr
}

// NewIndexExpr returns a new instance of IndexExpr. Reads through updates
// at constant indices are resolved.
func NewIndexExpr(array, index Expr) Expr {
	if with, ok := array.(*WithExpr); ok {
		if CompareExpr(with.Index, index) == 0 {
			return with.Value
		} else if IsConstantExpr(with.Index) && IsConstantExpr(index) {
			return NewIndexExpr(with.Array, index)
		}
	}
	return &IndexExpr{Array: array, Index: index}
}

// String returns the string representation of the expression.
func (e *IndexExpr) String() string {
	return fmt.Sprintf("(index %s %s)", e.Array, e.Index)
}

// WithExpr represents an array equal to Array except at Index, which holds Value.
type WithExpr struct {
	Array Expr
	Index Expr
	Value Expr
}

// NewWithExpr returns a new instance of WithExpr.
func NewWithExpr(array, index, value Expr) Expr {
	return &WithExpr{Array: array, Index: index, Value: value}
}

// String returns the string representation of the expression.
func (e *WithExpr) String() string {
	return fmt.Sprintf("(with %s %s %s)", e.Array, e.Index, e.Value)
}

// DerefExpr represents the object pointed to by a pointer expression.
type DerefExpr struct {
	Pointer Expr
	Type    Type
}

// NewDerefExpr returns a new instance of DerefExpr.
func NewDerefExpr(pointer Expr) Expr {
	if addr, ok := pointer.(*AddressOfExpr); ok {
		return addr.Object
	}
	t, ok := ExprType(pointer).(*PointerType)
	invariant(ok, "dereference of non-pointer expression: %s", pointer)
	return &DerefExpr{Pointer: pointer, Type: t.Elem}
}

// String returns the string representation of the expression.
func (e *DerefExpr) String() string {
	return fmt.Sprintf("(deref %s)", e.Pointer)
}

// AddressOfExpr represents the address of an object.
type AddressOfExpr struct {
	Object Expr
}

// NewAddressOfExpr returns a new instance of AddressOfExpr.
func NewAddressOfExpr(object Expr) Expr {
	if deref, ok := object.(*DerefExpr); ok {
		return deref.Pointer
	}
	return &AddressOfExpr{Object: object}
}

// String returns the string representation of the expression.
func (e *AddressOfExpr) String() string {
	return fmt.Sprintf("(addr %s)", e.Object)
}

// NondetExpr represents an arbitrary value of the given type. Each
// occurrence is replaced by a fresh symbol before renaming.
type NondetExpr struct {
	Type Type
}

// NewNondetExpr returns a new instance of NondetExpr.
func NewNondetExpr(typ Type) *NondetExpr {
	return &NondetExpr{Type: typ}
}

// String returns the string representation of the expression.
func (e *NondetExpr) String() string {
	return fmt.Sprintf("(nondet %s)", e.Type)
}

// ConstantExpr represents a fixed-width integer constant.
type ConstantExpr struct {
	Value uint64
	Width uint
}

// NewConstantExpr returns a new instance of ConstantExpr.
func NewConstantExpr(value uint64, width uint) *ConstantExpr {
	return &ConstantExpr{
		Value: value & bitmask(width),
		Width: width,
	}
}

// NewConstantExpr32 returns a 32-bit constant expression.
func NewConstantExpr32(value uint64) *ConstantExpr {
	return NewConstantExpr(value, Width32)
}

// NewConstantExpr64 returns a 64-bit constant expression.
func NewConstantExpr64(value uint64) *ConstantExpr {
	return NewConstantExpr(value, Width64)
}

// NewBoolConstantExpr is an ease of use function for creating constant boolean expressions.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	if value {
		return &ConstantExpr{Value: 1, Width: WidthBool}
	}
	return &ConstantExpr{Value: 0, Width: WidthBool}
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	if e.Width == WidthBool {
		if e.Value != 0 {
			return "true"
		}
		return "false"
	}
	return fmt.Sprintf("(const %d %d)", e.Value, e.Width)
}

// IsTrue returns true if this is a boolean true expression.
func (e *ConstantExpr) IsTrue() bool {
	return e.Width == WidthBool && e.Value != 0
}

// IsFalse returns true if this is a boolean false expression.
func (e *ConstantExpr) IsFalse() bool {
	return e.Width == WidthBool && e.Value == 0
}

// IsAllOnes returns true if all bits in the value are one.
func (e *ConstantExpr) IsAllOnes() bool {
	return e.Value == bitmask(e.Width)
}

// Int64 returns the value interpreted as a two's complement signed integer.
func (e *ConstantExpr) Int64() int64 {
	if e.Width >= Width64 {
		return int64(e.Value)
	} else if e.Value&(1<<(e.Width-1)) != 0 {
		return int64(e.Value | ^bitmask(e.Width))
	}
	return int64(e.Value)
}

func (e *ConstantExpr) Add(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value+other.Value, e.Width)
}

func (e *ConstantExpr) Sub(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value-other.Value, e.Width)
}

func (e *ConstantExpr) Mul(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value*other.Value, e.Width)
}

func (e *ConstantExpr) UDiv(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value/other.Value, e.Width)
}

func (e *ConstantExpr) SDiv(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(uint64(e.Int64()/other.Int64()), e.Width)
}

func (e *ConstantExpr) URem(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value%other.Value, e.Width)
}

func (e *ConstantExpr) SRem(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(uint64(e.Int64()%other.Int64()), e.Width)
}

func (e *ConstantExpr) And(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value&other.Value, e.Width)
}

func (e *ConstantExpr) Or(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value|other.Value, e.Width)
}

func (e *ConstantExpr) Xor(other *ConstantExpr) *ConstantExpr {
	return NewConstantExpr(e.Value^other.Value, e.Width)
}

func (e *ConstantExpr) Shl(other *ConstantExpr) *ConstantExpr {
	if other.Value >= uint64(e.Width) {
		return NewConstantExpr(0, e.Width)
	}
	return NewConstantExpr(e.Value<<other.Value, e.Width)
}

func (e *ConstantExpr) LShr(other *ConstantExpr) *ConstantExpr {
	if other.Value >= uint64(e.Width) {
		return NewConstantExpr(0, e.Width)
	}
	return NewConstantExpr(e.Value>>other.Value, e.Width)
}

func (e *ConstantExpr) AShr(other *ConstantExpr) *ConstantExpr {
	shift := other.Value
	if shift >= uint64(e.Width) {
		shift = uint64(e.Width) - 1
	}
	return NewConstantExpr(uint64(e.Int64()>>shift), e.Width)
}

func (e *ConstantExpr) Eq(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.Value == other.Value)
}

func (e *ConstantExpr) Ult(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.Value < other.Value)
}

func (e *ConstantExpr) Ule(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.Value <= other.Value)
}

func (e *ConstantExpr) Slt(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.Int64() < other.Int64())
}

func (e *ConstantExpr) Sle(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.Int64() <= other.Int64())
}

func (e *ConstantExpr) ZExt(width uint) *ConstantExpr {
	return NewConstantExpr(e.Value, width)
}

func (e *ConstantExpr) SExt(width uint) *ConstantExpr {
	return NewConstantExpr(uint64(e.Int64()), width)
}

func (e *ConstantExpr) Not() *ConstantExpr {
	return NewConstantExpr(^e.Value, e.Width)
}

func (e *ConstantExpr) Extract(offset, width uint) *ConstantExpr {
	return NewConstantExpr(e.Value>>offset, width)
}

func (e *ConstantExpr) Concat(lsb *ConstantExpr) *ConstantExpr {
	return NewConstantExpr((e.Value<<lsb.Width)|lsb.Value, e.Width+lsb.Width)
}

func bitmask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (1 << width) - 1
}

// IsConstantExpr returns true if expr is a constant.
func IsConstantExpr(expr Expr) bool {
	_, ok := expr.(*ConstantExpr)
	return ok
}

// IsConstantTrue returns true if expr is a constant true value.
func IsConstantTrue(expr Expr) bool {
	e, ok := expr.(*ConstantExpr)
	return ok && e.IsTrue()
}

// IsConstantFalse returns true if expr is a constant false value.
func IsConstantFalse(expr Expr) bool {
	e, ok := expr.(*ConstantExpr)
	return ok && e.IsFalse()
}

// CompareExpr returns an integer comparing two expressions.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareExpr(a, b Expr) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if ak, bk := exprKind(a), exprKind(b); ak < bk {
		return -1
	} else if ak > bk {
		return 1
	}

	switch a := a.(type) {
	case *ConstantExpr:
		return compareConstantExpr(a, b.(*ConstantExpr))
	case *ConcatExpr:
		b := b.(*ConcatExpr)
		return compareExprs([]Expr{a.MSB, a.LSB}, []Expr{b.MSB, b.LSB})
	case *ExtractExpr:
		return compareExtractExpr(a, b.(*ExtractExpr))
	case *NotExpr:
		return CompareExpr(a.Expr, b.(*NotExpr).Expr)
	case *CastExpr:
		return compareCastExpr(a, b.(*CastExpr))
	case *BinaryExpr:
		return compareBinaryExpr(a, b.(*BinaryExpr))
	case *SymbolExpr:
		return compareSymbolExpr(a, b.(*SymbolExpr))
	case *SSAExpr:
		return compareSSAExpr(a, b.(*SSAExpr))
	case *IteExpr:
		b := b.(*IteExpr)
		return compareExprs([]Expr{a.Cond, a.Then, a.Else}, []Expr{b.Cond, b.Then, b.Else})
	case *QuantifierExpr:
		b := b.(*QuantifierExpr)
		if a.Op != b.Op {
			return compareInt(int(a.Op), int(b.Op))
		}
		return compareExprs([]Expr{a.Var, a.Body}, []Expr{b.Var, b.Body})
	case *IndexExpr:
		b := b.(*IndexExpr)
		return compareExprs([]Expr{a.Array, a.Index}, []Expr{b.Array, b.Index})
	case *WithExpr:
		b := b.(*WithExpr)
		return compareExprs([]Expr{a.Array, a.Index, a.Value}, []Expr{b.Array, b.Index, b.Value})
	case *DerefExpr:
		return CompareExpr(a.Pointer, b.(*DerefExpr).Pointer)
	case *AddressOfExpr:
		return CompareExpr(a.Object, b.(*AddressOfExpr).Object)
	case *NondetExpr:
		return CompareType(a.Type, b.(*NondetExpr).Type)
	default:
		panic("unreachable")
	}
}

func compareInt(a, b int) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareExprs(a, b []Expr) int {
	for i := range a {
		if cmp := CompareExpr(a[i], b[i]); cmp != 0 {
			return cmp
		}
	}
	return 0
}

func compareConstantExpr(a, b *ConstantExpr) int {
	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}

	if a.Value < b.Value {
		return -1
	} else if a.Value > b.Value {
		return 1
	}
	return 0
}

func compareExtractExpr(a, b *ExtractExpr) int {
	if a.Offset < b.Offset {
		return -1
	} else if a.Offset > b.Offset {
		return 1
	}

	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}
	return CompareExpr(a.Expr, b.Expr)
}

func compareCastExpr(a, b *CastExpr) int {
	if a.Signed && !b.Signed {
		return -1
	} else if !a.Signed && b.Signed {
		return 1
	}

	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}
	return CompareExpr(a.Src, b.Src)
}

func compareBinaryExpr(a, b *BinaryExpr) int {
	if a.Op < b.Op {
		return -1
	} else if a.Op > b.Op {
		return 1
	}
	if cmp := CompareExpr(a.LHS, b.LHS); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.RHS, b.RHS)
}

func compareSymbolExpr(a, b *SymbolExpr) int {
	if a.Name < b.Name {
		return -1
	} else if a.Name > b.Name {
		return 1
	}
	return CompareType(a.Type, b.Type)
}

func compareSSAExpr(a, b *SSAExpr) int {
	if cmp := compareSymbolExpr(a.Symbol, b.Symbol); cmp != 0 {
		return cmp
	} else if cmp := compareInt(a.L0, b.L0); cmp != 0 {
		return cmp
	} else if cmp := compareInt(a.L1, b.L1); cmp != 0 {
		return cmp
	}
	return compareInt(a.L2, b.L2)
}

// exprKind returns a numeric value for the type of expression.
// Only used internally for equality checks and sorting.
func exprKind(expr Expr) int {
	switch expr.(type) {
	case *ConstantExpr:
		return 1
	case *SymbolExpr:
		return 2
	case *SSAExpr:
		return 3
	case *ConcatExpr:
		return 4
	case *ExtractExpr:
		return 5
	case *NotExpr:
		return 6
	case *CastExpr:
		return 7
	case *BinaryExpr:
		return 8
	case *IteExpr:
		return 9
	case *QuantifierExpr:
		return 10
	case *IndexExpr:
		return 11
	case *WithExpr:
		return 12
	case *DerefExpr:
		return 13
	case *AddressOfExpr:
		return 14
	case *NondetExpr:
		return 15
	default:
		panic("unreachable")
	}
}

// ExprVisitor represents a visitor that can be passed to WalkExpr().
type ExprVisitor interface {
	// Executed for every visited node. Return a different expression to replace it.
	Visit(expr Expr) (Expr, ExprVisitor)
}

// WalkExpr traverses expr depth-first and returns the rewritten tree.
// Expressions are shared between steps so nodes are never modified in
// place; a changed child produces a shallow copy of its parent.
func WalkExpr(v ExprVisitor, expr Expr) Expr {
	other, v := v.Visit(expr)
	if v == nil || other == nil {
		return other
	}

	switch e := other.(type) {
	case *BinaryExpr:
		lhs, rhs := WalkExpr(v, e.LHS), WalkExpr(v, e.RHS)
		if lhs != e.LHS || rhs != e.RHS {
			return &BinaryExpr{Op: e.Op, LHS: lhs, RHS: rhs}
		}
	case *CastExpr:
		if src := WalkExpr(v, e.Src); src != e.Src {
			return &CastExpr{Src: src, Width: e.Width, Signed: e.Signed}
		}
	case *ConcatExpr:
		msb, lsb := WalkExpr(v, e.MSB), WalkExpr(v, e.LSB)
		if msb != e.MSB || lsb != e.LSB {
			return &ConcatExpr{MSB: msb, LSB: lsb}
		}
	case *ExtractExpr:
		if x := WalkExpr(v, e.Expr); x != e.Expr {
			return &ExtractExpr{Expr: x, Offset: e.Offset, Width: e.Width}
		}
	case *NotExpr:
		if x := WalkExpr(v, e.Expr); x != e.Expr {
			return &NotExpr{Expr: x}
		}
	case *IteExpr:
		cond, then, els := WalkExpr(v, e.Cond), WalkExpr(v, e.Then), WalkExpr(v, e.Else)
		if cond != e.Cond || then != e.Then || els != e.Else {
			return &IteExpr{Cond: cond, Then: then, Else: els}
		}
	case *QuantifierExpr:
		bv, body := WalkExpr(v, e.Var), WalkExpr(v, e.Body)
		if bv != e.Var || body != e.Body {
			return &QuantifierExpr{Op: e.Op, Var: bv, Body: body}
		}
	case *IndexExpr:
		array, index := WalkExpr(v, e.Array), WalkExpr(v, e.Index)
		if array != e.Array || index != e.Index {
			return &IndexExpr{Array: array, Index: index}
		}
	case *WithExpr:
		array, index, value := WalkExpr(v, e.Array), WalkExpr(v, e.Index), WalkExpr(v, e.Value)
		if array != e.Array || index != e.Index || value != e.Value {
			return &WithExpr{Array: array, Index: index, Value: value}
		}
	case *DerefExpr:
		if p := WalkExpr(v, e.Pointer); p != e.Pointer {
			return &DerefExpr{Pointer: p, Type: e.Type}
		}
	case *AddressOfExpr:
		if obj := WalkExpr(v, e.Object); obj != e.Object {
			return &AddressOfExpr{Object: obj}
		}
	case *ConstantExpr, *SymbolExpr, *SSAExpr, *NondetExpr:
		// nop
	default:
		panic("unreachable")
	}

	return other
}

// exprVisitorFunc adapts a function to the ExprVisitor interface. The
// function returns the replacement and whether to descend into it.
type exprVisitorFunc func(Expr) (Expr, bool)

func (fn exprVisitorFunc) Visit(expr Expr) (Expr, ExprVisitor) {
	other, descend := fn(expr)
	if !descend {
		return other, nil
	}
	return other, fn
}

// HasSubExpr returns true if fn returns true for expr or any subexpression.
func HasSubExpr(expr Expr, fn func(Expr) bool) bool {
	var found bool
	WalkExpr(exprVisitorFunc(func(e Expr) (Expr, bool) {
		if found || fn(e) {
			found = true
			return e, false
		}
		return e, true
	}), expr)
	return found
}

// FindSSAExprs returns all distinct SSA symbols in the expression trees,
// sorted by identifier.
func FindSSAExprs(exprs ...Expr) []*SSAExpr {
	m := make(map[string]*SSAExpr)
	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		WalkExpr(exprVisitorFunc(func(e Expr) (Expr, bool) {
			if e, ok := e.(*SSAExpr); ok {
				m[e.Identifier()] = e
			}
			return e, true
		}), expr)
	}

	a := make([]*SSAExpr, 0, len(m))
	for _, e := range m {
		a = append(a, e)
	}
	sort.Slice(a, func(i, j int) bool { return a[i].Identifier() < a[j].Identifier() })
	return a
}

// ExprEvaluator evaluates expressions using known symbol values.
//
// Scalars are bound by SSA identifier. Arrays are either bound to a
// symbolic array expression (typically the right-hand side of an array
// assignment) or element-wise using the key "id[i]".
type ExprEvaluator struct {
	values    map[string]*ConstantExpr
	arrays    map[string]Expr
	addresses map[string]uint64

	// If true, unbound scalars and array elements evaluate to zero.
	ZeroUnbound bool
}

// NewExprEvaluator returns a new instance of ExprEvaluator with the given values.
func NewExprEvaluator(values map[string]*ConstantExpr) *ExprEvaluator {
	ee := &ExprEvaluator{
		values:    make(map[string]*ConstantExpr, len(values)),
		arrays:    make(map[string]Expr),
		addresses: make(map[string]uint64),
	}
	for k, v := range values {
		ee.values[k] = v
	}
	return ee
}

// Bind associates name with a concrete value.
func (ee *ExprEvaluator) Bind(name string, value *ConstantExpr) {
	ee.values[name] = value
}

// BindArray associates an array-typed name with an array expression.
func (ee *ExprEvaluator) BindArray(name string, array Expr) {
	ee.arrays[name] = array
}

// Evaluate evaluates expr to a constant expression.
// Returns an error if an unbound symbol is encountered.
func (ee *ExprEvaluator) Evaluate(expr Expr) (*ConstantExpr, error) {
	switch expr := expr.(type) {
	case *BinaryExpr:
		lhs, err := ee.Evaluate(expr.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := ee.Evaluate(expr.RHS)
		if err != nil {
			return nil, err
		}
		return ee.constant(NewBinaryExpr(expr.Op, lhs, rhs))
	case *CastExpr:
		src, err := ee.Evaluate(expr.Src)
		if err != nil {
			return nil, err
		}
		return ee.constant(NewCastExpr(src, expr.Width, expr.Signed))
	case *ConcatExpr:
		msb, err := ee.Evaluate(expr.MSB)
		if err != nil {
			return nil, err
		}
		lsb, err := ee.Evaluate(expr.LSB)
		if err != nil {
			return nil, err
		}
		return msb.Concat(lsb), nil
	case *ConstantExpr:
		return expr, nil
	case *ExtractExpr:
		x, err := ee.Evaluate(expr.Expr)
		if err != nil {
			return nil, err
		}
		return x.Extract(expr.Offset, expr.Width), nil
	case *NotExpr:
		x, err := ee.Evaluate(expr.Expr)
		if err != nil {
			return nil, err
		}
		return x.Not(), nil
	case *IteExpr:
		cond, err := ee.Evaluate(expr.Cond)
		if err != nil {
			return nil, err
		} else if cond.Value != 0 {
			return ee.Evaluate(expr.Then)
		}
		return ee.Evaluate(expr.Else)
	case *SymbolExpr:
		return ee.lookup(expr.Name, ExprWidth(expr))
	case *SSAExpr:
		return ee.lookup(expr.Identifier(), ExprWidth(expr))
	case *IndexExpr:
		index, err := ee.Evaluate(expr.Index)
		if err != nil {
			return nil, err
		}
		return ee.evaluateIndex(expr.Array, index)
	case *AddressOfExpr:
		return ee.address(expr.Object)
	default:
		return nil, fmt.Errorf("cannot evaluate expression: %s", expr)
	}
}

func (ee *ExprEvaluator) evaluateIndex(array Expr, index *ConstantExpr) (*ConstantExpr, error) {
	switch array := array.(type) {
	case *WithExpr:
		i, err := ee.Evaluate(array.Index)
		if err != nil {
			return nil, err
		} else if i.Value == index.Value {
			return ee.Evaluate(array.Value)
		}
		return ee.evaluateIndex(array.Array, index)
	case *IteExpr:
		cond, err := ee.Evaluate(array.Cond)
		if err != nil {
			return nil, err
		} else if cond.Value != 0 {
			return ee.evaluateIndex(array.Then, index)
		}
		return ee.evaluateIndex(array.Else, index)
	case *SymbolExpr:
		return ee.lookupElem(array.Name, array, index)
	case *SSAExpr:
		return ee.lookupElem(array.Identifier(), array, index)
	default:
		return nil, fmt.Errorf("cannot evaluate array expression: %s", array)
	}
}

func (ee *ExprEvaluator) lookupElem(name string, array Expr, index *ConstantExpr) (*ConstantExpr, error) {
	if bound, ok := ee.arrays[name]; ok {
		return ee.evaluateIndex(bound, index)
	}
	t, ok := ExprType(array).(*ArrayType)
	if !ok {
		return nil, fmt.Errorf("not an array: %s", name)
	}
	return ee.lookup(fmt.Sprintf("%s[%d]", name, index.Value), TypeWidth(t.Elem))
}

func (ee *ExprEvaluator) lookup(name string, width uint) (*ConstantExpr, error) {
	if v, ok := ee.values[name]; ok {
		return NewConstantExpr(v.Value, width), nil
	} else if ee.ZeroUnbound {
		return NewConstantExpr(0, width), nil
	}
	return nil, fmt.Errorf("symbol not bound: %s", name)
}

func (ee *ExprEvaluator) constant(expr Expr) (*ConstantExpr, error) {
	if c, ok := expr.(*ConstantExpr); ok {
		return c, nil
	}
	return nil, fmt.Errorf("expression did not fold to a constant: %s", expr)
}

// address returns a distinct nonzero address for each object. Addresses
// are stable for the lifetime of the evaluator.
func (ee *ExprEvaluator) address(obj Expr) (*ConstantExpr, error) {
	var name string
	switch obj := obj.(type) {
	case *SymbolExpr:
		name = obj.Name
	case *SSAExpr:
		name = obj.L1Identifier()
	default:
		return nil, fmt.Errorf("cannot take address of expression: %s", obj)
	}

	addr, ok := ee.addresses[name]
	if !ok {
		addr = uint64(len(ee.addresses)+1) << 4
		ee.addresses[name] = addr
	}
	return NewConstantExpr(addr, PointerWidth), nil
}

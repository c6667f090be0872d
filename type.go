package symex

import (
	"fmt"
	"strings"
)

// Type represents the type of a symbol or expression.
type Type interface {
	typ()
	String() string
}

func (*BoolType) typ()      {}
func (*BitVectorType) typ() {}
func (*ArrayType) typ()     {}
func (*StructType) typ()    {}
func (*PointerType) typ()   {}
func (*CodeType) typ()      {}

// BoolType represents a single-bit boolean.
type BoolType struct{}

func (t *BoolType) String() string { return "bool" }

// BitVectorType represents a fixed-width integer.
type BitVectorType struct {
	Width  uint
	Signed bool
}

func (t *BitVectorType) String() string {
	if t.Signed {
		return fmt.Sprintf("s%d", t.Width)
	}
	return fmt.Sprintf("u%d", t.Width)
}

// ArrayType represents an array of elements. Size may be nil for arrays of
// unknown size and may reference other symbols.
type ArrayType struct {
	Elem Type
	Size Expr
}

func (t *ArrayType) String() string {
	if t.Size == nil {
		return fmt.Sprintf("(array %s)", t.Elem)
	}
	return fmt.Sprintf("(array %s %s)", t.Elem, t.Size)
}

// StructType represents a record of named components.
type StructType struct {
	Components []StructComponent
}

// StructComponent is a single named field of a StructType.
type StructComponent struct {
	Name string
	Type Type
}

func (t *StructType) String() string {
	var buf strings.Builder
	buf.WriteString("(struct")
	for _, c := range t.Components {
		fmt.Fprintf(&buf, " (%s %s)", c.Name, c.Type)
	}
	buf.WriteString(")")
	return buf.String()
}

// PointerType represents a pointer to an object of type Elem.
type PointerType struct {
	Elem Type
}

func (t *PointerType) String() string { return fmt.Sprintf("(ptr %s)", t.Elem) }

// CodeType represents the type of a function symbol. Return is nil for
// functions without a return value.
type CodeType struct {
	Params []Type
	Return Type
}

func (t *CodeType) String() string {
	var buf strings.Builder
	buf.WriteString("(code ")
	if t.Return == nil {
		buf.WriteString("void")
	} else {
		buf.WriteString(t.Return.String())
	}
	for _, p := range t.Params {
		buf.WriteString(" ")
		buf.WriteString(p.String())
	}
	buf.WriteString(")")
	return buf.String()
}

// Common types.
var (
	boolType = &BoolType{}
	s32Type  = &BitVectorType{Width: Width32, Signed: true}
)

// TypeWidth returns the bit width of scalar types. Returns zero for
// aggregate and code types.
func TypeWidth(t Type) uint {
	switch t := t.(type) {
	case *BoolType:
		return WidthBool
	case *BitVectorType:
		return t.Width
	case *PointerType:
		return PointerWidth
	default:
		return 0
	}
}

// IsSignedType returns true if t is a signed bit vector.
func IsSignedType(t Type) bool {
	bv, ok := t.(*BitVectorType)
	return ok && bv.Signed
}

// CompareType returns an integer comparing two types.
func CompareType(a, b Type) int {
	if a == nil && b == nil {
		return 0
	} else if a == nil {
		return -1
	} else if b == nil {
		return 1
	}
	return strings.Compare(a.String(), b.String())
}

package z3

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unsafe"

	"github.com/benbjohnson/symex"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

// Solver errors.
var (
	ErrSolverTimeout       = fmt.Errorf("z3: timeout")
	ErrSolverCanceled      = fmt.Errorf("z3: canceled")
	ErrSolverResourceLimit = fmt.Errorf("z3: resource limit reached")
	ErrSolverUnknown       = fmt.Errorf("z3: unknown")
)

// Solver checks the satisfiability of a set of renamed constraints using an
// embedded Z3 context.
type Solver struct {
	ctx   *Context
	stats Stats
}

// NewSolver returns a new instance of Solver.
func NewSolver() *Solver {
	return &Solver{
		ctx: NewContext(),
	}
}

// Close deletes the underlying Z3 context.
func (s *Solver) Close() error {
	return s.ctx.Close()
}

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats {
	return s.stats
}

// Solve returns true if all constraints can hold together. If so, the
// returned model holds a value for every scalar symbol in the constraints.
func (s *Solver) Solve(constraints []symex.Expr) (satisfiable bool, model map[string]*symex.ConstantExpr, err error) {
	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
	}()

	solver, err := s.ctx.newSolver()
	if err != nil {
		return false, nil, err
	}
	defer C.Z3_solver_dec_ref(s.ctx.raw, solver)

	for _, constraint := range constraints {
		if err := s.ctx.assert(solver, constraint); err != nil {
			return false, nil, err
		}
	}

	if ok, err := s.ctx.check(solver); err != nil || !ok {
		return false, nil, err
	}
	model, err = s.ctx.model(solver)
	return true, model, err
}

// Status is the outcome of checking a single assertion.
type Status int

// Assertion statuses.
const (
	StatusPass = Status(iota)
	StatusFail
	StatusUnknown
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Result is the verdict for one assertion of an equation. Model holds a
// counterexample for failed assertions, keyed by SSA identifier.
type Result struct {
	Assertion *symex.AssertionStep
	Status    Status
	Model     map[string]*symex.ConstantExpr
}

// Decider decides the assertions of an SSA equation.
type Decider struct {
	ctx   *Context
	stats Stats
}

// NewDecider returns a new instance of Decider.
func NewDecider() *Decider {
	return &Decider{ctx: NewContext()}
}

// Close deletes the underlying Z3 context.
func (d *Decider) Close() error {
	return d.ctx.Close()
}

// Stats returns statistics for the decider.
func (d *Decider) Stats() Stats {
	return d.stats
}

// Decide converts eq to Z3 in order and checks each assertion against the
// assignments and assumptions preceding it.
func (d *Decider) Decide(eq *symex.Equation) ([]*Result, error) {
	solver, err := d.ctx.newSolver()
	if err != nil {
		return nil, err
	}
	defer C.Z3_solver_dec_ref(d.ctx.raw, solver)

	var results []*Result
	for _, step := range eq.Steps() {
		switch step := step.(type) {
		case *symex.AssignmentStep:
			if err := d.ctx.assert(solver, symex.NewBinaryExpr(symex.EQ, step.LHS, step.RHS)); err != nil {
				return nil, fmt.Errorf("%s: %w", step, err)
			}

		case *symex.AssumptionStep:
			if err := d.ctx.assert(solver, symex.NewImpliesExpr(step.Guard, step.Cond)); err != nil {
				return nil, fmt.Errorf("%s: %w", step, err)
			}

		case *symex.AssertionStep:
			result, err := d.decide(solver, step)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", step, err)
			}
			results = append(results, result)
		}
	}
	return results, nil
}

// decide checks whether the negation of a single assertion is satisfiable.
func (d *Decider) decide(solver C.Z3_solver, step *symex.AssertionStep) (*Result, error) {
	t := time.Now()
	defer func() {
		d.stats.SolveN++
		d.stats.SolveTime += time.Since(t)
	}()

	C.Z3_solver_push(d.ctx.raw, solver)
	defer C.Z3_solver_pop(d.ctx.raw, solver, 1)

	if err := d.ctx.assert(solver, symex.NewNotExpr(symex.NewImpliesExpr(step.Guard, step.Cond))); err != nil {
		return nil, err
	}

	result := &Result{Assertion: step}
	ok, err := d.ctx.check(solver)
	switch {
	case err != nil:
		result.Status = StatusUnknown
		return result, nil
	case !ok:
		result.Status = StatusPass
		return result, nil
	}

	result.Status = StatusFail
	if result.Model, err = d.ctx.model(solver); err != nil {
		return nil, err
	}
	return result, nil
}

// Context represents a Z3 context object that is used for constructing expressions.
type Context struct {
	raw C.Z3_context

	// Declared scalar constants by SSA identifier, used to read models.
	symbols map[string]C.Z3_ast
	widths  map[string]uint

	// Distinct addresses of objects whose address is taken.
	addresses map[string]uint64
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{
		raw:       raw,
		symbols:   make(map[string]C.Z3_ast),
		widths:    make(map[string]uint),
		addresses: make(map[string]uint64),
	}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return nil
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

func (ctx *Context) newSolver() (C.Z3_solver, error) {
	solver := C.Z3_mk_solver(ctx.raw)
	if err := ctx.err("Z3_mk_solver"); err != nil {
		return nil, err
	}
	C.Z3_solver_inc_ref(ctx.raw, solver)
	return solver, nil
}

func (ctx *Context) assert(solver C.Z3_solver, expr symex.Expr) error {
	ast, err := ctx.toAST(expr)
	if err != nil {
		return err
	}
	C.Z3_solver_assert(ctx.raw, solver, ast)
	return ctx.err("Z3_solver_assert")
}

// check returns true if the asserted formulas are satisfiable.
func (ctx *Context) check(solver C.Z3_solver) (bool, error) {
	ret := C.Z3_solver_check(ctx.raw, solver)
	if err := ctx.err("Z3_solver_check"); err != nil {
		return false, err
	} else if ret == C.Z3_L_FALSE {
		return false, nil
	} else if ret == C.Z3_L_TRUE {
		return true, nil
	}

	reason := C.GoString(C.Z3_solver_get_reason_unknown(ctx.raw, solver))
	switch {
	case strings.Contains(reason, "timeout"):
		return false, ErrSolverTimeout
	case strings.Contains(reason, "canceled"):
		return false, ErrSolverCanceled
	case strings.Contains(reason, "(resource limits reached)"):
		return false, ErrSolverResourceLimit
	case strings.Contains(reason, "unknown"):
		return false, ErrSolverUnknown
	default:
		return false, fmt.Errorf("z3: %s", reason)
	}
}

// model returns the values of all declared scalar symbols.
func (ctx *Context) model(solver C.Z3_solver) (map[string]*symex.ConstantExpr, error) {
	model := C.Z3_solver_get_model(ctx.raw, solver)
	if err := ctx.err("Z3_solver_get_model"); err != nil {
		return nil, err
	}
	C.Z3_model_inc_ref(ctx.raw, model)
	defer C.Z3_model_dec_ref(ctx.raw, model)

	names := make([]string, 0, len(ctx.symbols))
	for name := range ctx.symbols {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(map[string]*symex.ConstantExpr, len(names))
	for _, name := range names {
		var v C.Z3_ast
		C.Z3_model_eval(ctx.raw, model, ctx.symbols[name], C.bool(true), &v)
		if err := ctx.err("Z3_model_eval"); err != nil {
			return nil, err
		}

		width := ctx.widths[name]
		if width == symex.WidthBool {
			values[name] = symex.NewBoolConstantExpr(C.Z3_get_bool_value(ctx.raw, v) == C.Z3_L_TRUE)
			continue
		}

		var n C.uint64_t
		C.Z3_get_numeral_uint64(ctx.raw, v, &n)
		if err := ctx.err("Z3_get_numeral_uint64"); err != nil {
			return nil, err
		}
		values[name] = symex.NewConstantExpr(uint64(n), width)
	}
	return values, nil
}

// toAST returns a new instance of Z3_ast from a renamed expression.
func (ctx *Context) toAST(expr symex.Expr) (C.Z3_ast, error) {
	switch expr := expr.(type) {
	case *symex.ConstantExpr:
		return ctx.toConstantAST(expr)
	case *symex.SSAExpr:
		return ctx.toSymbolAST(expr.Identifier(), expr.Symbol.Type)
	case *symex.SymbolExpr:
		return ctx.toSymbolAST(expr.Name, expr.Type)
	case *symex.ConcatExpr:
		return ctx.toConcatAST(expr)
	case *symex.ExtractExpr:
		return ctx.toExtractAST(expr)
	case *symex.CastExpr:
		return ctx.toCastAST(expr)
	case *symex.NotExpr:
		return ctx.toNotAST(expr)
	case *symex.BinaryExpr:
		return ctx.toBinaryAST(expr)
	case *symex.IteExpr:
		return ctx.toIteAST(expr)
	case *symex.IndexExpr:
		return ctx.toIndexAST(expr)
	case *symex.WithExpr:
		return ctx.toWithAST(expr)
	case *symex.AddressOfExpr:
		return ctx.toAddressAST(expr)
	default:
		return nil, fmt.Errorf("z3.Context.toAST: invalid expression type: %T", expr)
	}
}

func (ctx *Context) toConstantAST(expr *symex.ConstantExpr) (C.Z3_ast, error) {
	if expr.Width == 1 {
		if expr.IsTrue() {
			return ctx.makeTrue()
		}
		return ctx.makeFalse()
	} else if expr.Width <= 64 {
		return ctx.makeUint64(expr.Width, expr.Value)
	}
	return nil, fmt.Errorf("z3.Context.toConstantAST: invalid expression width: %d", expr.Width)
}

func (ctx *Context) toSymbolAST(name string, t symex.Type) (C.Z3_ast, error) {
	sort, err := ctx.makeSort(t)
	if err != nil {
		return nil, err
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	ast := C.Z3_mk_const(ctx.raw, C.Z3_mk_string_symbol(ctx.raw, cname), sort)
	if err := ctx.err("Z3_mk_const"); err != nil {
		return nil, err
	}

	if w := symex.TypeWidth(t); w > 0 {
		ctx.symbols[name], ctx.widths[name] = ast, w
	}
	return ast, nil
}

func (ctx *Context) toConcatAST(expr *symex.ConcatExpr) (C.Z3_ast, error) {
	msb, err := ctx.toAST(expr.MSB)
	if err != nil {
		return nil, err
	}
	lsb, err := ctx.toAST(expr.LSB)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_concat(ctx.raw, msb, lsb), ctx.err("Z3_mk_concat")
}

func (ctx *Context) toExtractAST(expr *symex.ExtractExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}

	// If extracting single bit, use EQ expression to convert to bool sort.
	if expr.Width == 1 {
		extractExpr := C.Z3_mk_extract(ctx.raw, C.uint(expr.Offset), C.uint(expr.Offset), src)
		if err := ctx.err("Z3_mk_extract[bool]"); err != nil {
			return nil, err
		}
		one, err := ctx.makeUint64(1, 1)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_eq(ctx.raw, extractExpr, one), ctx.err("Z3_mk_eq")
	}

	return C.Z3_mk_extract(ctx.raw, C.uint(expr.Offset+expr.Width-1), C.uint(expr.Offset), src), ctx.err("Z3_mk_extract")
}

func (ctx *Context) toCastAST(expr *symex.CastExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Src)
	if err != nil {
		return nil, err
	}

	// Convert boolean cast to if-then-else expression.
	if symex.ExprWidth(expr.Src) == 1 {
		var one uint64 = 1
		if expr.Signed {
			one = ^uint64(0)
		}
		whenTrue, err := ctx.makeUint64(expr.Width, one)
		if err != nil {
			return nil, err
		}
		whenFalse, err := ctx.makeUint64(expr.Width, 0)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_ite(ctx.raw, src, whenTrue, whenFalse), ctx.err("Z3_mk_ite")
	}

	n := C.uint(expr.Width - ctx.bvSize(src))
	if expr.Signed {
		return C.Z3_mk_sign_ext(ctx.raw, n, src), ctx.err("Z3_mk_sign_ext")
	}
	return C.Z3_mk_zero_ext(ctx.raw, n, src), ctx.err("Z3_mk_zero_ext")
}

func (ctx *Context) toNotAST(expr *symex.NotExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}

	// If boolean, use boolean NOT operation.
	if symex.ExprWidth(expr.Expr) == 1 {
		return C.Z3_mk_not(ctx.raw, src), ctx.err("Z3_mk_not")
	}
	return C.Z3_mk_bvnot(ctx.raw, src), ctx.err("Z3_mk_bvnot")
}

func (ctx *Context) toIteAST(expr *symex.IteExpr) (C.Z3_ast, error) {
	cond, err := ctx.toAST(expr.Cond)
	if err != nil {
		return nil, err
	}
	then, err := ctx.toAST(expr.Then)
	if err != nil {
		return nil, err
	}
	els, err := ctx.toAST(expr.Else)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(ctx.raw, cond, then, els), ctx.err("Z3_mk_ite")
}

func (ctx *Context) toIndexAST(expr *symex.IndexExpr) (C.Z3_ast, error) {
	array, err := ctx.toAST(expr.Array)
	if err != nil {
		return nil, err
	}
	index, err := ctx.toDomainAST(expr.Index)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_select(ctx.raw, array, index), ctx.err("Z3_mk_select")
}

func (ctx *Context) toWithAST(expr *symex.WithExpr) (C.Z3_ast, error) {
	array, err := ctx.toAST(expr.Array)
	if err != nil {
		return nil, err
	}
	index, err := ctx.toDomainAST(expr.Index)
	if err != nil {
		return nil, err
	}
	value, err := ctx.toAST(expr.Value)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_store(ctx.raw, array, index, value), ctx.err("Z3_mk_store")
}

// toDomainAST converts an array index to the 64-bit array domain.
func (ctx *Context) toDomainAST(index symex.Expr) (C.Z3_ast, error) {
	if w := symex.ExprWidth(index); w != symex.Width64 {
		index = symex.NewCastExpr(index, symex.Width64, symex.IsSignedType(symex.ExprType(index)))
	}
	return ctx.toAST(index)
}

// toAddressAST returns a numeral unique to the object.
func (ctx *Context) toAddressAST(expr *symex.AddressOfExpr) (C.Z3_ast, error) {
	var name string
	switch obj := expr.Object.(type) {
	case *symex.SSAExpr:
		name = obj.L1Identifier()
	case *symex.SymbolExpr:
		name = obj.Name
	default:
		return nil, fmt.Errorf("z3.Context.toAddressAST: invalid object: %s", expr.Object)
	}

	addr, ok := ctx.addresses[name]
	if !ok {
		addr = uint64(len(ctx.addresses)+1) << 4
		ctx.addresses[name] = addr
	}
	return ctx.makeUint64(symex.PointerWidth, addr)
}

// binaryOps maps bit-vector operators to their Z3 constructors.
var binaryOps = map[symex.BinaryOp]func(C.Z3_context, C.Z3_ast, C.Z3_ast) C.Z3_ast{
	symex.ADD:  func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvadd(c, a, b) },
	symex.SUB:  func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsub(c, a, b) },
	symex.MUL:  func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvmul(c, a, b) },
	symex.UDIV: func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvudiv(c, a, b) },
	symex.SDIV: func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsdiv(c, a, b) },
	symex.UREM: func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvurem(c, a, b) },
	symex.SREM: func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsrem(c, a, b) },
	symex.SHL:  func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvshl(c, a, b) },
	symex.LSHR: func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvlshr(c, a, b) },
	symex.ASHR: func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvashr(c, a, b) },
	symex.ULT:  func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvult(c, a, b) },
	symex.ULE:  func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvule(c, a, b) },
	symex.SLT:  func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvslt(c, a, b) },
	symex.SLE:  func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsle(c, a, b) },
	symex.UGT:  func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvugt(c, a, b) },
	symex.UGE:  func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvuge(c, a, b) },
	symex.SGT:  func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsgt(c, a, b) },
	symex.SGE:  func(c C.Z3_context, a, b C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsge(c, a, b) },
}

func (ctx *Context) toBinaryAST(expr *symex.BinaryExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}
	isBool := symex.ExprWidth(expr.LHS) == 1

	switch expr.Op {
	case symex.AND:
		if isBool {
			args := [2]C.Z3_ast{lhs, rhs}
			return C.Z3_mk_and(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_and")
		}
		return C.Z3_mk_bvand(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvand")
	case symex.OR:
		if isBool {
			args := [2]C.Z3_ast{lhs, rhs}
			return C.Z3_mk_or(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_or")
		}
		return C.Z3_mk_bvor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvor")
	case symex.XOR:
		if isBool {
			return C.Z3_mk_xor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_xor")
		}
		return C.Z3_mk_bvxor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvxor")
	case symex.EQ:
		if isBool {
			return C.Z3_mk_iff(ctx.raw, lhs, rhs), ctx.err("Z3_mk_iff")
		}
		return C.Z3_mk_eq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_eq")
	case symex.NE:
		eq := C.Z3_mk_eq(ctx.raw, lhs, rhs)
		if err := ctx.err("Z3_mk_eq"); err != nil {
			return nil, err
		}
		return C.Z3_mk_not(ctx.raw, eq), ctx.err("Z3_mk_not")
	}

	fn, ok := binaryOps[expr.Op]
	if !ok {
		return nil, fmt.Errorf("z3.Context.toBinaryAST: unexpected operation: %s", expr.Op)
	}
	return fn(ctx.raw, lhs, rhs), ctx.err("Z3_mk_" + expr.Op.String())
}

func (ctx *Context) makeTrue() (C.Z3_ast, error) {
	return C.Z3_mk_true(ctx.raw), ctx.err("Z3_mk_true")
}

func (ctx *Context) makeFalse() (C.Z3_ast, error) {
	return C.Z3_mk_false(ctx.raw), ctx.err("Z3_mk_false")
}

// makeSort returns the Z3 sort of a scalar or array type.
func (ctx *Context) makeSort(t symex.Type) (C.Z3_sort, error) {
	switch t := t.(type) {
	case *symex.BoolType:
		return C.Z3_mk_bool_sort(ctx.raw), ctx.err("Z3_mk_bool_sort")
	case *symex.ArrayType:
		domain, err := ctx.makeBVSort(symex.Width64)
		if err != nil {
			return nil, err
		}
		elem, err := ctx.makeSort(t.Elem)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_array_sort(ctx.raw, domain, elem), ctx.err("Z3_mk_array_sort")
	}

	if w := symex.TypeWidth(t); w > 0 {
		return ctx.makeBVSort(w)
	}
	return nil, fmt.Errorf("z3.Context.makeSort: unsupported type: %s", t)
}

func (ctx *Context) makeBVSort(width uint) (C.Z3_sort, error) {
	return C.Z3_mk_bv_sort(ctx.raw, C.uint(width)), ctx.err("Z3_mk_bv_sort")
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value), t), ctx.err("Z3_mk_unsigned_int64")
}

func (ctx *Context) bvSize(expr C.Z3_ast) uint {
	t := C.Z3_get_sort(ctx.raw, expr)
	if err := ctx.err("Z3_get_sort"); err != nil {
		panic(err)
	}
	sz := uint(C.Z3_get_bv_sort_size(ctx.raw, t))
	if err := ctx.err("Z3_get_bv_sort_size"); err != nil {
		panic(err)
	}
	return sz
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Possible error codes.
const (
	ErrorCodeOK = iota
	ErrorCodeSortError
	ErrorCodeIOB
	ErrorCodeInvalidArg
	ErrorCodeParserError
	ErrorCodeNoParser
	ErrorCodeInvalidPattern
	ErrorCodeMemoutFail
	ErrorCodeFileAccessError
	ErrorCodeInternalFatal
	ErrorCodeInvalidUsage
	ErrorCodeDecRefError
	ErrorCodeException
)

// Stats holds solver call counts and time spent.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}

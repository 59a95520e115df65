package series

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/errors"
	"golang.org/x/exp/constraints"
)

// ArithOp is an elementwise arithmetic operator
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
)

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	default:
		return "?"
	}
}

// CompareOp is an elementwise comparison operator
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

// LogicalOp is an elementwise boolean connective
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

func (op LogicalOp) String() string {
	if op == OpAnd {
		return "&&"
	}
	return "||"
}

type number interface {
	constraints.Integer | constraints.Float
}

// Int64s returns a view of an Int64 column's values. Null positions hold
// unspecified values and must be checked with IsNull.
func (s *Series) Int64s() []int64 {
	if arr, ok := s.array.(*array.Int64); ok {
		return arr.Int64Values()
	}
	return nil
}

// Float64s returns the column as float64 values, converting Int64 columns.
func (s *Series) Float64s() []float64 {
	switch arr := s.array.(type) {
	case *array.Float64:
		return arr.Float64Values()
	case *array.Int64:
		out := make([]float64, arr.Len())
		for i, v := range arr.Int64Values() {
			out[i] = float64(v)
		}
		return out
	}
	return nil
}

func checkLength(op string, l, r *Series) error {
	if l.Len() != r.Len() {
		return &errors.DataFrameError{
			Kind:    errors.KindSchema,
			Op:      op,
			Row:     -1,
			Message: fmt.Sprintf("length mismatch: %s has %d rows, %s has %d", l.Name(), l.Len(), r.Name(), r.Len()),
		}
	}
	return nil
}

// zipNumeric folds two equal-length numeric slices elementwise. The callback
// reports whether the result is null; either input null yields null.
func zipNumeric[T number](l, r []T, lv, rv []bool, f func(i int, a, b T) (T, bool, error)) ([]T, []bool, error) {
	out := make([]T, len(l))
	valid := make([]bool, len(l))
	for i := range l {
		if !lv[i] || !rv[i] {
			continue
		}
		v, null, err := f(i, l[i], r[i])
		if err != nil {
			return nil, nil, err
		}
		if !null {
			out[i] = v
			valid[i] = true
		}
	}
	return out, valid, nil
}

func applyArith[T number](op ArithOp, a, b T) T {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	default:
		return a / b
	}
}

// Arithmetic applies op elementwise. Operands must be numeric and of equal
// length; the result is named after the left operand. Float64 division by
// zero yields null, Int64 division by zero is a value error.
func Arithmetic(op ArithOp, l, r *Series, mem memory.Allocator) (*Series, error) {
	if err := checkLength("arithmetic", l, r); err != nil {
		return nil, err
	}
	dtype, err := Promote(l.Dtype(), r.Dtype())
	if err != nil {
		return nil, err
	}

	lv, rv := l.validity(), r.validity()
	if dtype == Int64 {
		values, valid, err := zipNumeric(l.Int64s(), r.Int64s(), lv, rv, func(i int, a, b int64) (int64, bool, error) {
			if op == OpDiv && b == 0 {
				return 0, false, errors.NewValueError("arithmetic", r.Name(), i, "integer division by zero")
			}
			return applyArith(op, a, b), false, nil
		})
		if err != nil {
			return nil, err
		}
		return NewNullable(l.Name(), values, valid, mem), nil
	}

	values, valid, err := zipNumeric(l.Float64s(), r.Float64s(), lv, rv, func(_ int, a, b float64) (float64, bool, error) {
		if op == OpDiv && b == 0 {
			return 0, true, nil
		}
		return applyArith(op, a, b), false, nil
	})
	if err != nil {
		return nil, err
	}
	return NewNullable(l.Name(), values, valid, mem), nil
}

func compareOrdered[T constraints.Ordered](op CompareOp, a, b T) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	default:
		return a >= b
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compare applies a comparison elementwise, producing a Bool column.
// Numeric operands are compared after promotion; Utf8 and Bool compare only
// with their own dtype. Either operand null yields null.
func Compare(op CompareOp, l, r *Series, mem memory.Allocator) (*Series, error) {
	if err := checkLength("compare", l, r); err != nil {
		return nil, err
	}
	if !Comparable(l.Dtype(), r.Dtype()) {
		return nil, errors.NewTypeMismatchError("compare",
			fmt.Sprintf("cannot compare %s with %s", l.Dtype(), r.Dtype()))
	}

	n := l.Len()
	out := make([]bool, n)
	valid := make([]bool, n)

	var cmp func(i int) bool
	switch {
	case l.Dtype() == Int64 && r.Dtype() == Int64:
		lx, rx := l.Int64s(), r.Int64s()
		cmp = func(i int) bool { return compareOrdered(op, lx[i], rx[i]) }
	case l.Dtype().IsNumeric():
		lx, rx := l.Float64s(), r.Float64s()
		cmp = func(i int) bool { return compareOrdered(op, lx[i], rx[i]) }
	case l.Dtype() == Utf8:
		lx, rx := l.array.(*array.String), r.array.(*array.String)
		cmp = func(i int) bool { return compareOrdered(op, lx.Value(i), rx.Value(i)) }
	default:
		lx, rx := l.array.(*array.Boolean), r.array.(*array.Boolean)
		cmp = func(i int) bool { return compareOrdered(op, boolRank(lx.Value(i)), boolRank(rx.Value(i))) }
	}

	for i := 0; i < n; i++ {
		if l.IsNull(i) || r.IsNull(i) {
			continue
		}
		out[i] = cmp(i)
		valid[i] = true
	}
	return NewNullable(l.Name(), out, valid, mem), nil
}

// Logical applies three-valued AND/OR to two Bool columns.
// false AND null is false, true OR null is true, anything else with null is null.
func Logical(op LogicalOp, l, r *Series, mem memory.Allocator) (*Series, error) {
	if err := checkLength("logical", l, r); err != nil {
		return nil, err
	}
	if l.Dtype() != Bool || r.Dtype() != Bool {
		return nil, errors.NewTypeMismatchError("logical",
			fmt.Sprintf("logical %s requires bool operands, got %s and %s", op, l.Dtype(), r.Dtype()))
	}
	lx, rx := l.array.(*array.Boolean), r.array.(*array.Boolean)

	n := l.Len()
	out := make([]bool, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		lNull, rNull := lx.IsNull(i), rx.IsNull(i)
		a, b := !lNull && lx.Value(i), !rNull && rx.Value(i)
		switch op {
		case OpAnd:
			if (!lNull && !a) || (!rNull && !b) {
				out[i], valid[i] = false, true
			} else if !lNull && !rNull {
				out[i], valid[i] = true, true
			}
		case OpOr:
			if a || b {
				out[i], valid[i] = true, true
			} else if !lNull && !rNull {
				out[i], valid[i] = false, true
			}
		}
	}
	return NewNullable(l.Name(), out, valid, mem), nil
}

// Truthy reports, per row, whether a predicate column selects the row:
// true for Bool, non-zero for numeric (NaN included), never for null.
func Truthy(s *Series) ([]bool, error) {
	n := s.Len()
	keep := make([]bool, n)
	switch arr := s.array.(type) {
	case *array.Boolean:
		for i := 0; i < n; i++ {
			keep[i] = arr.IsValid(i) && arr.Value(i)
		}
	case *array.Int64:
		for i := 0; i < n; i++ {
			keep[i] = arr.IsValid(i) && arr.Value(i) != 0
		}
	case *array.Float64:
		for i := 0; i < n; i++ {
			keep[i] = arr.IsValid(i) && arr.Value(i) != 0
		}
	default:
		return nil, errors.NewTypeMismatchError("filter",
			fmt.Sprintf("predicate %s has dtype %s, want bool or numeric", s.Name(), s.Dtype()))
	}
	return keep, nil
}

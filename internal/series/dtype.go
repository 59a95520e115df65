package series

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/gibbon/internal/errors"
)

// Dtype is the fixed value kind of a column.
type Dtype int

const (
	Int64 Dtype = iota
	Float64
	Utf8
	Bool
)

func (d Dtype) String() string {
	switch d {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Utf8:
		return "utf8"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// IsNumeric reports whether arithmetic is defined on the dtype.
func (d Dtype) IsNumeric() bool {
	return d == Int64 || d == Float64
}

// ArrowType returns the Arrow type backing the dtype.
func (d Dtype) ArrowType() arrow.DataType {
	switch d {
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Utf8:
		return arrow.BinaryTypes.String
	case Bool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.Null
	}
}

// DtypeOf maps an Arrow type onto a Dtype.
func DtypeOf(dt arrow.DataType) (Dtype, error) {
	switch dt.ID() {
	case arrow.INT64:
		return Int64, nil
	case arrow.FLOAT64:
		return Float64, nil
	case arrow.STRING:
		return Utf8, nil
	case arrow.BOOL:
		return Bool, nil
	default:
		return 0, errors.NewUnsupportedTypeError("dtype", dt.String())
	}
}

// ParseDtype parses the textual dtype names used in configuration files.
func ParseDtype(name string) (Dtype, error) {
	switch name {
	case "int64", "int", "integer":
		return Int64, nil
	case "float64", "float", "double":
		return Float64, nil
	case "utf8", "string", "str", "text":
		return Utf8, nil
	case "bool", "boolean":
		return Bool, nil
	default:
		return 0, errors.NewUnsupportedTypeError("dtype", name)
	}
}

// Promote returns the result dtype of arithmetic between a and b.
// Int64 with Float64 promotes to Float64; any non-numeric operand is a schema error.
func Promote(a, b Dtype) (Dtype, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return 0, errors.NewTypeMismatchError("arithmetic",
			fmt.Sprintf("cannot apply arithmetic to %s and %s", a, b))
	}
	if a == Float64 || b == Float64 {
		return Float64, nil
	}
	return Int64, nil
}

// Comparable reports whether values of a and b can be compared.
func Comparable(a, b Dtype) bool {
	if a.IsNumeric() && b.IsNumeric() {
		return true
	}
	return a == b
}

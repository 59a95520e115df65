// Package series provides typed, nullable column buffers backed by Apache Arrow.
//
// A Series owns exactly one reference to its Arrow array. Operations that
// share data with another Series (Clone, Rename, Slice) take their own
// reference, so every Series must be released independently.
package series

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/errors"
)

// Primitive is the set of Go value types a Series can be built from.
type Primitive interface {
	int64 | float64 | string | bool
}

// Series represents a named, typed data column with an Arrow backend
type Series struct {
	name  string
	dtype Dtype
	array arrow.Array
}

// New creates a Series with no nulls from a slice of values
func New[T Primitive](name string, values []T, mem memory.Allocator) *Series {
	return NewNullable(name, values, nil, mem)
}

// NewNullable creates a Series from values and a parallel validity slice.
// A nil validity slice marks every value as present; invalid positions become null.
func NewNullable[T Primitive](name string, values []T, valid []bool, mem memory.Allocator) *Series {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if valid != nil && len(valid) != len(values) {
		panic(fmt.Sprintf("series %s: validity length %d does not match %d values", name, len(valid), len(values)))
	}

	var (
		arr   arrow.Array
		dtype Dtype
	)
	switch v := any(values).(type) {
	case []int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr, dtype = builder.NewArray(), Int64
	case []float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr, dtype = builder.NewArray(), Float64
	case []string:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr, dtype = builder.NewArray(), Utf8
	case []bool:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr, dtype = builder.NewArray(), Bool
	}

	return &Series{name: name, dtype: dtype, array: arr}
}

// NewNull creates a Series of the given dtype where every value is null
func NewNull(name string, dtype Dtype, length int, mem memory.Allocator) *Series {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	builder := array.NewBuilder(mem, dtype.ArrowType())
	defer builder.Release()
	builder.AppendNulls(length)
	return &Series{name: name, dtype: dtype, array: builder.NewArray()}
}

// FromArray wraps an Arrow array. The Series takes its own reference.
func FromArray(name string, arr arrow.Array) (*Series, error) {
	dtype, err := DtypeOf(arr.DataType())
	if err != nil {
		return nil, err
	}
	arr.Retain()
	return &Series{name: name, dtype: dtype, array: arr}, nil
}

// fromOwnedArray wraps an array whose reference is handed over to the Series.
func fromOwnedArray(name string, dtype Dtype, arr arrow.Array) *Series {
	return &Series{name: name, dtype: dtype, array: arr}
}

// Name returns the column name
func (s *Series) Name() string {
	return s.name
}

// Dtype returns the column dtype
func (s *Series) Dtype() Dtype {
	return s.dtype
}

// DataType returns the Arrow data type
func (s *Series) DataType() arrow.DataType {
	return s.array.DataType()
}

// Len returns the length of the series
func (s *Series) Len() int {
	return s.array.Len()
}

// NullN returns the number of null values
func (s *Series) NullN() int {
	return s.array.NullN()
}

// IsNull checks if the value at index is null
func (s *Series) IsNull(index int) bool {
	return s.array.IsNull(index)
}

// Value returns the value at index, or false if it is null or out of range
func (s *Series) Value(index int) (any, bool) {
	if index < 0 || index >= s.array.Len() || s.array.IsNull(index) {
		return nil, false
	}
	switch arr := s.array.(type) {
	case *array.Int64:
		return arr.Value(index), true
	case *array.Float64:
		return arr.Value(index), true
	case *array.String:
		return arr.Value(index), true
	case *array.Boolean:
		return arr.Value(index), true
	}
	return nil, false
}

// Values returns all values as a slice, with nil at null positions
func (s *Series) Values() []any {
	out := make([]any, s.Len())
	for i := range out {
		if v, ok := s.Value(i); ok {
			out[i] = v
		}
	}
	return out
}

// GetAsString returns the canonical text form of the value at index, "" for null
func (s *Series) GetAsString(index int) string {
	if s.array.IsNull(index) {
		return ""
	}
	switch arr := s.array.(type) {
	case *array.Int64:
		return strconv.FormatInt(arr.Value(index), 10)
	case *array.Float64:
		return strconv.FormatFloat(arr.Value(index), 'g', -1, 64)
	case *array.String:
		return arr.Value(index)
	case *array.Boolean:
		return strconv.FormatBool(arr.Value(index))
	}
	return ""
}

// String returns a string representation of the series
func (s *Series) String() string {
	return fmt.Sprintf("Series[%s]: %s (len=%d)", s.dtype, s.name, s.Len())
}

// Array returns the underlying Arrow array (retains a reference)
func (s *Series) Array() arrow.Array {
	s.array.Retain()
	return s.array
}

// Clone returns a new Series sharing the same buffers
func (s *Series) Clone() *Series {
	return s.Rename(s.name)
}

// Rename returns a new Series with the given name sharing the same buffers
func (s *Series) Rename(name string) *Series {
	s.array.Retain()
	return &Series{name: name, dtype: s.dtype, array: s.array}
}

// Release releases the underlying Arrow memory
func (s *Series) Release() {
	if s != nil && s.array != nil {
		s.array.Release()
	}
}

// Values extracts the typed values of a Series. Null positions hold the zero value.
func Values[T Primitive](s *Series) ([]T, error) {
	out := make([]T, s.Len())
	switch dst := any(out).(type) {
	case []int64:
		arr, ok := s.array.(*array.Int64)
		if !ok {
			break
		}
		for i := range dst {
			if arr.IsValid(i) {
				dst[i] = arr.Value(i)
			}
		}
		return out, nil
	case []float64:
		arr, ok := s.array.(*array.Float64)
		if !ok {
			break
		}
		for i := range dst {
			if arr.IsValid(i) {
				dst[i] = arr.Value(i)
			}
		}
		return out, nil
	case []string:
		arr, ok := s.array.(*array.String)
		if !ok {
			break
		}
		for i := range dst {
			if arr.IsValid(i) {
				dst[i] = arr.Value(i)
			}
		}
		return out, nil
	case []bool:
		arr, ok := s.array.(*array.Boolean)
		if !ok {
			break
		}
		for i := range dst {
			if arr.IsValid(i) {
				dst[i] = arr.Value(i)
			}
		}
		return out, nil
	}
	return nil, errors.NewTypeMismatchError("values",
		fmt.Sprintf("column %s has dtype %s, requested %T", s.name, s.dtype, out))
}

// validity returns a slice marking non-null positions.
func (s *Series) validity() []bool {
	valid := make([]bool, s.Len())
	for i := range valid {
		valid[i] = s.array.IsValid(i)
	}
	return valid
}

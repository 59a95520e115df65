package series

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/errors"
)

// Take gathers the rows at the given indices into a new Series.
func (s *Series) Take(indices []int, mem memory.Allocator) *Series {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	builder := array.NewBuilder(mem, s.dtype.ArrowType())
	defer builder.Release()
	builder.Reserve(len(indices))

	switch arr := s.array.(type) {
	case *array.Int64:
		b := builder.(*array.Int64Builder)
		for _, idx := range indices {
			if arr.IsNull(idx) {
				b.AppendNull()
			} else {
				b.Append(arr.Value(idx))
			}
		}
	case *array.Float64:
		b := builder.(*array.Float64Builder)
		for _, idx := range indices {
			if arr.IsNull(idx) {
				b.AppendNull()
			} else {
				b.Append(arr.Value(idx))
			}
		}
	case *array.String:
		b := builder.(*array.StringBuilder)
		for _, idx := range indices {
			if arr.IsNull(idx) {
				b.AppendNull()
			} else {
				b.Append(arr.Value(idx))
			}
		}
	case *array.Boolean:
		b := builder.(*array.BooleanBuilder)
		for _, idx := range indices {
			if arr.IsNull(idx) {
				b.AppendNull()
			} else {
				b.Append(arr.Value(idx))
			}
		}
	}

	return fromOwnedArray(s.name, s.dtype, builder.NewArray())
}

// Slice returns rows [start, end) sharing the underlying buffers.
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > s.Len() {
		end = s.Len()
	}
	if end < start {
		end = start
	}
	return fromOwnedArray(s.name, s.dtype, array.NewSlice(s.array, int64(start), int64(end)))
}

// Concat appends series of one dtype end to end under the given name.
func Concat(name string, parts []*Series, mem memory.Allocator) (*Series, error) {
	if len(parts) == 0 {
		return nil, errors.NewInvalidInputError("concat", "no series to concatenate")
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	arrays := make([]arrow.Array, len(parts))
	for i, p := range parts {
		if p.dtype != parts[0].dtype {
			return nil, errors.NewTypeMismatchError("concat",
				fmt.Sprintf("cannot concatenate %s with %s", parts[0].dtype, p.dtype))
		}
		arrays[i] = p.array
	}
	arr, err := array.Concatenate(arrays, mem)
	if err != nil {
		return nil, errors.NewInternalError("concat", err)
	}
	return fromOwnedArray(name, parts[0].dtype, arr), nil
}

// Broadcast builds a Series of length n repeating one value. A nil value
// produces an all-null Series of the given dtype.
func Broadcast(name string, value any, dtype Dtype, n int, mem memory.Allocator) (*Series, error) {
	if value == nil {
		return NewNull(name, dtype, n, mem), nil
	}
	switch v := value.(type) {
	case int64:
		return New(name, repeat(v, n), mem), nil
	case int:
		return New(name, repeat(int64(v), n), mem), nil
	case float64:
		return New(name, repeat(v, n), mem), nil
	case string:
		return New(name, repeat(v, n), mem), nil
	case bool:
		return New(name, repeat(v, n), mem), nil
	}
	return nil, errors.NewUnsupportedTypeError("broadcast", fmt.Sprintf("%T", value))
}

func repeat[T Primitive](v T, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

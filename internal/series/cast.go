package series

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/errors"
)

// Cast converts the series to the target dtype.
//
// Int64 to Float64 always succeeds. Float64 to Int64 requires integral,
// in-range values. Anything converts to Utf8. Utf8 parses into numeric and
// bool dtypes. A value that cannot be converted is a ValueError naming its row,
// unless lenient is set, in which case that value becomes null.
func (s *Series) Cast(target Dtype, lenient bool, mem memory.Allocator) (*Series, error) {
	if s.dtype == target {
		return s.Clone(), nil
	}

	n := s.Len()
	fail := func(i int, msg string) error {
		return errors.NewValueError("cast", s.name, i, msg)
	}

	switch target {
	case Utf8:
		out := make([]string, n)
		for i := range out {
			out[i] = s.GetAsString(i)
		}
		return NewNullable(s.name, out, s.validity(), mem), nil

	case Float64:
		out := make([]float64, n)
		valid := s.validity()
		for i := 0; i < n; i++ {
			if !valid[i] {
				continue
			}
			switch arr := s.array.(type) {
			case *array.Int64:
				out[i] = float64(arr.Value(i))
			case *array.Boolean:
				out[i] = float64(boolRank(arr.Value(i)))
			case *array.String:
				v, err := strconv.ParseFloat(strings.TrimSpace(arr.Value(i)), 64)
				if err != nil {
					if !lenient {
						return nil, fail(i, fmt.Sprintf("cannot parse %q as float64", arr.Value(i)))
					}
					valid[i] = false
					continue
				}
				out[i] = v
			}
		}
		return NewNullable(s.name, out, valid, mem), nil

	case Int64:
		out := make([]int64, n)
		valid := s.validity()
		for i := 0; i < n; i++ {
			if !valid[i] {
				continue
			}
			var msg string
			switch arr := s.array.(type) {
			case *array.Float64:
				v := arr.Value(i)
				if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
					msg = fmt.Sprintf("%v is not representable as int64", v)
				} else {
					out[i] = int64(v)
				}
			case *array.Boolean:
				out[i] = int64(boolRank(arr.Value(i)))
			case *array.String:
				v, err := strconv.ParseInt(strings.TrimSpace(arr.Value(i)), 10, 64)
				if err != nil {
					msg = fmt.Sprintf("cannot parse %q as int64", arr.Value(i))
				} else {
					out[i] = v
				}
			}
			if msg != "" {
				if !lenient {
					return nil, fail(i, msg)
				}
				valid[i] = false
			}
		}
		return NewNullable(s.name, out, valid, mem), nil

	case Bool:
		out := make([]bool, n)
		valid := s.validity()
		for i := 0; i < n; i++ {
			if !valid[i] {
				continue
			}
			switch arr := s.array.(type) {
			case *array.Int64:
				out[i] = arr.Value(i) != 0
			case *array.Float64:
				out[i] = arr.Value(i) != 0
			case *array.String:
				v, err := strconv.ParseBool(strings.TrimSpace(arr.Value(i)))
				if err != nil {
					if !lenient {
						return nil, fail(i, fmt.Sprintf("cannot parse %q as bool", arr.Value(i)))
					}
					valid[i] = false
					continue
				}
				out[i] = v
			}
		}
		return NewNullable(s.name, out, valid, mem), nil
	}

	return nil, errors.NewUnsupportedTypeError("cast", target.String())
}

package expr

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/series"
	"golang.org/x/exp/constraints"
)

// Aggregate folds values over each group, producing one row per group.
// Nulls are ignored by every accumulator. sum of a group with no values is 0;
// mean, min and max of such a group are null.
func Aggregate(aggType AggregationType, values *series.Series, groups *series.Groups, mem memory.Allocator) (*series.Series, error) {
	if _, err := AggregationDtype(aggType, values.Dtype()); err != nil {
		return nil, err
	}
	name := values.Name()

	switch aggType {
	case AggCount:
		out := make([]int64, groups.Len())
		for g, rows := range groups.Rows {
			for _, row := range rows {
				if !values.IsNull(row) {
					out[g]++
				}
			}
		}
		return series.New(name, out, mem), nil

	case AggNUnique:
		return nUnique(values, groups, mem), nil

	case AggSum:
		if values.Dtype() == series.Int64 {
			out, _ := foldNumeric(values.Int64s(), values, groups)
			return series.New(name, out, mem), nil
		}
		out, _ := foldNumeric(values.Float64s(), values, groups)
		return series.New(name, out, mem), nil

	case AggMean:
		sums, counts := foldNumeric(values.Float64s(), values, groups)
		valid := make([]bool, len(sums))
		for g := range sums {
			if counts[g] > 0 {
				sums[g] /= float64(counts[g])
				valid[g] = true
			}
		}
		return series.NewNullable(name, sums, valid, mem), nil

	case AggMin, AggMax:
		return extremum(aggType == AggMax, values, groups, mem)
	}

	return nil, errors.NewUnsupportedTypeError("aggregate", aggType.String())
}

// foldNumeric sums the non-null values of each group and counts them.
func foldNumeric[T constraints.Integer | constraints.Float](data []T, values *series.Series, groups *series.Groups) ([]T, []int) {
	sums := make([]T, groups.Len())
	counts := make([]int, groups.Len())
	for g, rows := range groups.Rows {
		for _, row := range rows {
			if values.IsNull(row) {
				continue
			}
			sums[g] += data[row]
			counts[g]++
		}
	}
	return sums, counts
}

func pick[T constraints.Ordered](data []T, values *series.Series, groups *series.Groups, max bool) ([]T, []bool) {
	out := make([]T, groups.Len())
	valid := make([]bool, groups.Len())
	for g, rows := range groups.Rows {
		for _, row := range rows {
			if values.IsNull(row) {
				continue
			}
			v := data[row]
			if !valid[g] || (max && v > out[g]) || (!max && v < out[g]) {
				out[g] = v
				valid[g] = true
			}
		}
	}
	return out, valid
}

func extremum(max bool, values *series.Series, groups *series.Groups, mem memory.Allocator) (*series.Series, error) {
	name := values.Name()
	switch values.Dtype() {
	case series.Int64:
		out, valid := pick(values.Int64s(), values, groups, max)
		return series.NewNullable(name, out, valid, mem), nil
	case series.Float64:
		out, valid := pick(values.Float64s(), values, groups, max)
		return series.NewNullable(name, out, valid, mem), nil
	default:
		strs, err := series.Values[string](values)
		if err != nil {
			return nil, err
		}
		out, valid := pick(strs, values, groups, max)
		return series.NewNullable(name, out, valid, mem), nil
	}
}

// nUnique counts distinct non-null values per group. Float keys are
// canonicalized so that -0 equals 0 and all NaNs are one value.
func nUnique(values *series.Series, groups *series.Groups, mem memory.Allocator) *series.Series {
	out := make([]int64, groups.Len())
	for g, rows := range groups.Rows {
		seen := make(map[any]struct{}, len(rows))
		for _, row := range rows {
			v, ok := values.Value(row)
			if !ok {
				continue
			}
			if f, isFloat := v.(float64); isFloat {
				switch {
				case f == 0:
					v = 0.0
				case math.IsNaN(f):
					v = "NaN"
				}
			}
			seen[v] = struct{}{}
		}
		out[g] = int64(len(seen))
	}
	return series.New(values.Name(), out, mem)
}

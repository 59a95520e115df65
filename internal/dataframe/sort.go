package dataframe

import (
	"cmp"
	"slices"

	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/series"
)

// sortIndices returns the row permutation that orders df by keys. The sort
// is stable and nulls go last in either direction.
func sortIndices(df *DataFrame, keys []SortKey) ([]int, error) {
	cmps := make([]func(a, b int) int, len(keys))
	for i, key := range keys {
		col, ok := df.Column(key.Column)
		if !ok {
			return nil, errors.NewColumnNotFoundError("sort", key.Column)
		}
		c, err := columnComparator(col, key.Descending)
		if err != nil {
			return nil, err
		}
		cmps[i] = c
	}

	indices := make([]int, df.Len())
	for i := range indices {
		indices[i] = i
	}
	slices.SortStableFunc(indices, func(a, b int) int {
		for _, c := range cmps {
			if r := c(a, b); r != 0 {
				return r
			}
		}
		return 0
	})
	return indices, nil
}

func columnComparator(col *series.Series, descending bool) (func(a, b int) int, error) {
	var compare func(a, b int) int
	switch col.Dtype() {
	case series.Int64:
		v, err := series.Values[int64](col)
		if err != nil {
			return nil, err
		}
		compare = func(a, b int) int { return cmp.Compare(v[a], v[b]) }
	case series.Float64:
		v, err := series.Values[float64](col)
		if err != nil {
			return nil, err
		}
		compare = func(a, b int) int { return cmp.Compare(v[a], v[b]) }
	case series.Utf8:
		v, err := series.Values[string](col)
		if err != nil {
			return nil, err
		}
		compare = func(a, b int) int { return cmp.Compare(v[a], v[b]) }
	case series.Bool:
		v, err := series.Values[bool](col)
		if err != nil {
			return nil, err
		}
		compare = func(a, b int) int { return cmp.Compare(boolRank(v[a]), boolRank(v[b])) }
	default:
		return nil, errors.NewUnsupportedTypeError("sort", col.Dtype().String())
	}

	return func(a, b int) int {
		aNull, bNull := col.IsNull(a), col.IsNull(b)
		switch {
		case aNull && bNull:
			return 0
		case aNull:
			return 1
		case bNull:
			return -1
		}
		if descending {
			return compare(b, a)
		}
		return compare(a, b)
	}, nil
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

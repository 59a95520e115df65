package io

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/series"
)

// cellDtype infers a column dtype from decoded cells. Cells are nil, int64,
// float64, bool or string. Integers mixed with floats widen to Float64; any
// other mix falls back to Utf8. An all-null column uses hint.
func cellDtype(cells []any, hint series.Dtype) series.Dtype {
	var ints, floats, bools, texts bool
	for _, c := range cells {
		switch c.(type) {
		case nil:
		case int64:
			ints = true
		case float64:
			floats = true
		case bool:
			bools = true
		default:
			texts = true
		}
	}
	switch {
	case texts || (bools && (ints || floats)):
		return series.Utf8
	case bools:
		return series.Bool
	case floats:
		return series.Float64
	case ints:
		return series.Int64
	}
	return hint
}

// seriesFromCells builds a nullable Series of the inferred dtype.
func seriesFromCells(name string, cells []any, hint series.Dtype, mem memory.Allocator) *series.Series {
	valid := make([]bool, len(cells))
	for i, c := range cells {
		valid[i] = c != nil
	}

	switch cellDtype(cells, hint) {
	case series.Int64:
		values := make([]int64, len(cells))
		for i, c := range cells {
			if v, ok := c.(int64); ok {
				values[i] = v
			}
		}
		return series.NewNullable(name, values, valid, mem)
	case series.Float64:
		values := make([]float64, len(cells))
		for i, c := range cells {
			switch v := c.(type) {
			case int64:
				values[i] = float64(v)
			case float64:
				values[i] = v
			}
		}
		return series.NewNullable(name, values, valid, mem)
	case series.Bool:
		values := make([]bool, len(cells))
		for i, c := range cells {
			if v, ok := c.(bool); ok {
				values[i] = v
			}
		}
		return series.NewNullable(name, values, valid, mem)
	default:
		values := make([]string, len(cells))
		for i, c := range cells {
			if c != nil {
				values[i] = cellText(c)
			}
		}
		return series.NewNullable(name, values, valid, mem)
	}
}

func cellText(c any) string {
	switch v := c.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return string(v)
	}
	return fmt.Sprint(c)
}

// frameFromColumns builds a frame from named cell columns, in order.
func frameFromColumns(names []string, columns [][]any, hints []series.Dtype, mem memory.Allocator) (*dataframe.DataFrame, error) {
	cols := make([]*series.Series, len(names))
	for i, name := range names {
		hint := series.Utf8
		if hints != nil {
			hint = hints[i]
		}
		cols[i] = seriesFromCells(name, columns[i], hint, mem)
	}
	df, err := dataframe.New(cols...)
	if err != nil {
		for _, c := range cols {
			c.Release()
		}
		return nil, err
	}
	return df, nil
}

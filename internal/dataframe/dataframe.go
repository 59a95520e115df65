// Package dataframe provides tables of typed columns and the lazy plan
// machinery that builds, optimizes and executes queries over them.
package dataframe

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/series"
	"github.com/paveg/gibbon/internal/validation"
)

// DataFrame represents a table of data with typed columns.
// It owns one reference to each of its columns; Release drops them.
type DataFrame struct {
	columns []*series.Series
	index   map[string]int
	length  int
}

// New creates a DataFrame from columns, taking ownership of them. Column
// names must be unique and all columns must have the same length.
func New(columns ...*series.Series) (*DataFrame, error) {
	df := &DataFrame{
		columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if _, dup := df.index[col.Name()]; dup {
			return nil, errors.NewDuplicateColumnError("new", col.Name())
		}
		df.index[col.Name()] = i
		if i == 0 {
			df.length = col.Len()
		} else if col.Len() != df.length {
			return nil, &errors.DataFrameError{
				Kind:    errors.KindSchema,
				Op:      "new",
				Column:  col.Name(),
				Row:     -1,
				Message: fmt.Sprintf("column has %d rows, expected %d", col.Len(), df.length),
			}
		}
	}
	return df, nil
}

// MustNew is New for statically known inputs; it panics on error.
func MustNew(columns ...*series.Series) *DataFrame {
	df, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return df
}

// Empty creates a zero-row DataFrame with the given schema.
func Empty(schema series.Schema, mem memory.Allocator) *DataFrame {
	cols := make([]*series.Series, len(schema))
	for i, f := range schema {
		cols[i] = series.NewNull(f.Name, f.Dtype, 0, mem)
	}
	return MustNew(cols...)
}

// Columns returns the names of all columns in order
func (df *DataFrame) Columns() []string {
	names := make([]string, len(df.columns))
	for i, col := range df.columns {
		names[i] = col.Name()
	}
	return names
}

// Len returns the number of rows
func (df *DataFrame) Len() int {
	return df.length
}

// Width returns the number of columns
func (df *DataFrame) Width() int {
	return len(df.columns)
}

// Column returns the series for the given column name. The DataFrame keeps
// ownership; callers that outlive the frame must Clone it.
func (df *DataFrame) Column(name string) (*series.Series, bool) {
	i, ok := df.index[name]
	if !ok {
		return nil, false
	}
	return df.columns[i], true
}

// ColumnAt returns the i-th column
func (df *DataFrame) ColumnAt(i int) *series.Series {
	return df.columns[i]
}

// HasColumn checks if a column exists
func (df *DataFrame) HasColumn(name string) bool {
	_, ok := df.index[name]
	return ok
}

// Schema returns the ordered column names and dtypes
func (df *DataFrame) Schema() series.Schema {
	schema := make(series.Schema, len(df.columns))
	for i, col := range df.columns {
		schema[i] = series.Field{Name: col.Name(), Dtype: col.Dtype()}
	}
	return schema
}

// Select returns a new DataFrame with only the named columns, in the given order
func (df *DataFrame) Select(names ...string) (*DataFrame, error) {
	if err := validation.ValidateColumns(df.Schema(), "select", names...); err != nil {
		return nil, err
	}
	cols := make([]*series.Series, 0, len(names))
	for _, name := range names {
		col, _ := df.Column(name)
		cols = append(cols, col.Clone())
	}
	out, err := New(cols...)
	if err != nil {
		releaseAll(cols)
		return nil, err
	}
	out.length = df.length
	return out, nil
}

// Drop returns a new DataFrame without the specified columns
func (df *DataFrame) Drop(names ...string) *DataFrame {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[name] = true
	}
	cols := make([]*series.Series, 0, len(df.columns))
	for _, col := range df.columns {
		if !drop[col.Name()] {
			cols = append(cols, col.Clone())
		}
	}
	out := MustNew(cols...)
	out.length = df.length
	return out
}

// Take gathers the given rows into a new DataFrame
func (df *DataFrame) Take(indices []int, mem memory.Allocator) *DataFrame {
	cols := make([]*series.Series, len(df.columns))
	for i, col := range df.columns {
		cols[i] = col.Take(indices, mem)
	}
	out := MustNew(cols...)
	out.length = len(indices)
	return out
}

// Slice creates a new DataFrame containing rows from start (inclusive) to end
// (exclusive), clamped to the frame. Buffers are shared with the original.
func (df *DataFrame) Slice(start, end int) *DataFrame {
	start = max(start, 0)
	end = min(end, df.length)
	if end < start {
		end = start
	}
	cols := make([]*series.Series, len(df.columns))
	for i, col := range df.columns {
		cols[i] = col.Slice(start, end)
	}
	out := MustNew(cols...)
	out.length = end - start
	return out
}

// Clone returns a DataFrame sharing every column buffer with df
func (df *DataFrame) Clone() *DataFrame {
	cols := make([]*series.Series, len(df.columns))
	for i, col := range df.columns {
		cols[i] = col.Clone()
	}
	out := MustNew(cols...)
	out.length = df.length
	return out
}

// Row returns the values of row i in column order, nil for nulls
func (df *DataFrame) Row(i int) []any {
	row := make([]any, len(df.columns))
	for j, col := range df.columns {
		if v, ok := col.Value(i); ok {
			row[j] = v
		}
	}
	return row
}

// String returns a string representation of the DataFrame
func (df *DataFrame) String() string {
	if len(df.columns) == 0 {
		return "DataFrame[empty]"
	}

	parts := []string{fmt.Sprintf("DataFrame[%dx%d]", df.Len(), df.Width())}
	for _, col := range df.columns {
		parts = append(parts, fmt.Sprintf("  %s: %s", col.Name(), col.Dtype()))
	}
	return strings.Join(parts, "\n")
}

// Release releases the DataFrame's reference to every column
func (df *DataFrame) Release() {
	if df == nil {
		return
	}
	releaseAll(df.columns)
	df.columns = nil
	df.index = nil
}

func releaseAll(cols []*series.Series) {
	for _, col := range cols {
		col.Release()
	}
}

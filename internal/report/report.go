// Package report reduces a result frame into a JSON envelope: row counts,
// per-column totals, the column list and a row-major preview.
package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/series"
)

// DefaultPreviewRows bounds Data when Options.PreviewRows is zero.
const DefaultPreviewRows = 10

// TotalPrefix prefixes every total in the encoded summary.
const TotalPrefix = "total_"

// Options controls what Build includes.
type Options struct {
	// PreviewRows caps Data. Zero means DefaultPreviewRows, negative means every row.
	PreviewRows int
	// TotalColumns restricts totals to these columns. Empty means every numeric column.
	TotalColumns []string
}

// Total is the sum of one numeric column. Value is nil when the column has no
// non-null values.
type Total struct {
	Column string
	Value  any
}

// Summary holds the row counts and totals.
type Summary struct {
	TotalRows    int
	FilteredRows int
	Totals       []Total
}

// MarshalJSON writes totals as flat total_<column> keys next to the counts,
// in column order.
func (s Summary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"total_rows":%d,"filtered_rows":%d`, s.TotalRows, s.FilteredRows)
	for _, t := range s.Totals {
		key, err := json.Marshal(TotalPrefix + t.Column)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(t.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding total %s: %w", t.Column, err)
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Total returns the total for column.
func (s Summary) Total(column string) (any, bool) {
	for _, t := range s.Totals {
		if t.Column == column {
			return t.Value, true
		}
	}
	return nil, false
}

// Envelope is the structured result of a pipeline run.
type Envelope struct {
	Summary Summary  `json:"summary"`
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// Build summarizes result. totalRows is the row count read from the source.
func Build(totalRows int, result *dataframe.DataFrame, opts Options) (Envelope, error) {
	env := Envelope{
		Summary: Summary{TotalRows: totalRows, FilteredRows: result.Len()},
		Columns: result.Columns(),
	}

	totals, err := totalColumns(result, opts.TotalColumns)
	if err != nil {
		return Envelope{}, err
	}
	for _, col := range totals {
		env.Summary.Totals = append(env.Summary.Totals, Total{Column: col.Name(), Value: sum(col)})
	}

	n := opts.PreviewRows
	switch {
	case n == 0:
		n = DefaultPreviewRows
	case n < 0:
		n = result.Len()
	}
	n = min(n, result.Len())
	env.Data = make([][]any, n)
	for i := range n {
		env.Data[i] = result.Row(i)
	}
	return env, nil
}

func totalColumns(df *dataframe.DataFrame, names []string) ([]*series.Series, error) {
	if len(names) == 0 {
		var cols []*series.Series
		for i := range df.Width() {
			if col := df.ColumnAt(i); col.Dtype().IsNumeric() {
				cols = append(cols, col)
			}
		}
		return cols, nil
	}

	cols := make([]*series.Series, len(names))
	for i, name := range names {
		col, ok := df.Column(name)
		if !ok {
			return nil, fmt.Errorf("total of %s: column does not exist", name)
		}
		if !col.Dtype().IsNumeric() {
			return nil, fmt.Errorf("total of %s: want numeric column, got %s", name, col.Dtype())
		}
		cols[i] = col
	}
	return cols, nil
}

func sum(col *series.Series) any {
	if col.NullN() == col.Len() {
		return nil
	}
	switch col.Dtype() {
	case series.Int64:
		var total int64
		for i, v := range col.Int64s() {
			if !col.IsNull(i) {
				total += v
			}
		}
		return total
	default:
		var total float64
		for i, v := range col.Float64s() {
			if !col.IsNull(i) {
				total += v
			}
		}
		return total
	}
}

// Encode writes the envelope as indented JSON.
func (e Envelope) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	return nil
}

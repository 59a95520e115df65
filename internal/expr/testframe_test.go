package expr

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/series"
)

// mapFrame is a minimal Frame over named series.
type mapFrame struct {
	cols map[string]*series.Series
	n    int
}

func (f *mapFrame) Column(name string) (*series.Series, bool) {
	s, ok := f.cols[name]
	return s, ok
}

func (f *mapFrame) Len() int {
	return f.n
}

func (f *mapFrame) schema() series.Schema {
	order := []string{"age", "score", "name", "active", "dept", "salary"}
	var schema series.Schema
	for _, name := range order {
		if s, ok := f.cols[name]; ok {
			schema = append(schema, series.Field{Name: name, Dtype: s.Dtype()})
		}
	}
	return schema
}

func createTestFrame(t *testing.T, mem memory.Allocator) *mapFrame {
	t.Helper()
	cols := map[string]*series.Series{
		"age":    series.New("age", []int64{10, 20, 30, 40}, mem),
		"score":  series.NewNullable("score", []float64{1.5, 2.5, 0, 4.5}, []bool{true, true, false, true}, mem),
		"name":   series.New("name", []string{"a", "b", "c", "d"}, mem),
		"active": series.New("active", []bool{true, false, true, false}, mem),
		"dept":   series.New("dept", []string{"Eng", "Sales", "Eng", "HR"}, mem),
		"salary": series.New("salary", []int64{100, 50, 300, 70}, mem),
	}
	t.Cleanup(func() {
		for _, s := range cols {
			s.Release()
		}
	})
	return &mapFrame{cols: cols, n: 4}
}

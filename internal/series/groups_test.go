package series

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupRowsFirstAppearanceOrder(t *testing.T) {
	dept := New("dept", []string{"Eng", "Eng", "Sales", "HR", "Sales"}, nil)
	defer dept.Release()

	g := GroupRows(dept.Len(), dept)
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, [][]int{{0, 1}, {2, 4}, {3}}, g.Rows)
	assert.Equal(t, []int{0, 0, 1, 2, 1}, g.IDs)
	assert.Equal(t, []int{0, 2, 3}, g.First())
}

func TestGroupRowsMultipleKeysAndNulls(t *testing.T) {
	a := NewNullable("a", []int64{1, 1, 0, 0, 1}, []bool{true, true, false, false, true}, nil)
	b := New("b", []bool{true, false, true, true, true}, nil)
	defer a.Release()
	defer b.Release()

	g := GroupRows(a.Len(), a, b)
	assert.Equal(t, [][]int{{0, 4}, {1}, {2, 3}}, g.Rows)
}

func TestGroupRowsFloatCanonicalization(t *testing.T) {
	f := New("f", []float64{0, math.Copysign(0, -1), math.NaN(), math.NaN(), 1}, nil)
	defer f.Release()

	g := GroupRows(f.Len(), f)
	assert.Equal(t, [][]int{{0, 1}, {2, 3}, {4}}, g.Rows)
}

func TestGroupRowsNoKeys(t *testing.T) {
	g := GroupRows(3)
	assert.Equal(t, [][]int{{0, 1, 2}}, g.Rows)

	empty := GroupRows(0)
	assert.Equal(t, 0, empty.Len())
}

func TestGroupRowsCardinalityProperty(t *testing.T) {
	values := []string{"x", "y", "x", "z", "y", "x", "w"}
	s := New("k", values, nil)
	defer s.Release()

	distinct := map[string]struct{}{}
	for _, v := range values {
		distinct[v] = struct{}{}
	}

	g := GroupRows(s.Len(), s)
	assert.Equal(t, len(distinct), g.Len())

	total := 0
	for _, rows := range g.Rows {
		total += len(rows)
	}
	assert.Equal(t, len(values), total)
}

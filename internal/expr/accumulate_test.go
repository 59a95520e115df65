package expr

import (
	"math"
	"testing"

	"github.com/paveg/gibbon/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateEmptyGroups(t *testing.T) {
	values := series.NewNullable("v", []float64{0, 0}, []bool{false, false}, nil)
	defer values.Release()
	groups := series.GroupRows(values.Len())

	tests := []struct {
		aggType  AggregationType
		expected []any
	}{
		{AggSum, []any{0.0}},
		{AggMean, []any{nil}},
		{AggCount, []any{int64(0)}},
		{AggNUnique, []any{int64(0)}},
		{AggMin, []any{nil}},
		{AggMax, []any{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.aggType.String(), func(t *testing.T) {
			result, err := Aggregate(tt.aggType, values, groups, nil)
			require.NoError(t, err)
			defer result.Release()
			assert.Equal(t, tt.expected, result.Values())
		})
	}
}

func TestNUniqueCanonicalFloats(t *testing.T) {
	values := series.New("v", []float64{0, math.Copysign(0, -1), math.NaN(), math.NaN(), 1}, nil)
	defer values.Release()

	result, err := Aggregate(AggNUnique, values, series.GroupRows(values.Len()), nil)
	require.NoError(t, err)
	defer result.Release()
	assert.Equal(t, []any{int64(3)}, result.Values())
}

func TestAggregateRejectsBadInput(t *testing.T) {
	values := series.New("v", []string{"a"}, nil)
	defer values.Release()

	_, err := Aggregate(AggSum, values, series.GroupRows(1), nil)
	assert.Error(t, err)
}

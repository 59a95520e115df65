package series

import (
	"testing"

	"github.com/paveg/gibbon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCast(t *testing.T) {
	tests := []struct {
		name     string
		input    *Series
		target   Dtype
		expected []any
	}{
		{"int to float", New("a", []int64{1, 2}, nil), Float64, []any{1.0, 2.0}},
		{"integral float to int", New("a", []float64{3, -4}, nil), Int64, []any{int64(3), int64(-4)}},
		{"int to string", NewNullable("a", []int64{7, 0}, []bool{true, false}, nil), Utf8, []any{"7", nil}},
		{"string to int", New("a", []string{"12", " 5 "}, nil), Int64, []any{int64(12), int64(5)}},
		{"string to bool", New("a", []string{"true", "0"}, nil), Bool, []any{true, false}},
		{"float to string", New("a", []float64{1.5}, nil), Utf8, []any{"1.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer tt.input.Release()
			out, err := tt.input.Cast(tt.target, false, nil)
			require.NoError(t, err)
			defer out.Release()

			assert.Equal(t, tt.target, out.Dtype())
			assert.Equal(t, tt.expected, out.Values())
		})
	}
}

func TestCastFailures(t *testing.T) {
	t.Run("fractional float to int", func(t *testing.T) {
		s := New("a", []float64{1, 2.5}, nil)
		defer s.Release()

		_, err := s.Cast(Int64, false, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrValue)

		var dfErr *errors.DataFrameError
		require.ErrorAs(t, err, &dfErr)
		assert.Equal(t, 1, dfErr.Row)
	})

	t.Run("unparseable string", func(t *testing.T) {
		s := New("a", []string{"1", "x", "3"}, nil)
		defer s.Release()

		_, err := s.Cast(Float64, false, nil)
		assert.ErrorIs(t, err, errors.ErrValue)
	})

	t.Run("lenient turns failures into nulls", func(t *testing.T) {
		s := New("a", []string{"1", "x", "3"}, nil)
		defer s.Release()

		out, err := s.Cast(Int64, true, nil)
		require.NoError(t, err)
		defer out.Release()
		assert.Equal(t, []any{int64(1), nil, int64(3)}, out.Values())
	})
}

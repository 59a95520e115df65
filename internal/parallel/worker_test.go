package parallel_test

import (
	"sync/atomic"
	"testing"

	"github.com/paveg/gibbon/internal/parallel"
	"github.com/stretchr/testify/assert"
)

func TestNewWorkerPool(t *testing.T) {
	pool := parallel.NewWorkerPool(0)
	defer pool.Close()
	assert.Positive(t, pool.Size())

	pool2 := parallel.NewWorkerPool(4)
	defer pool2.Close()
	assert.Equal(t, 4, pool2.Size())

	pool3 := parallel.NewWorkerPool(-1)
	defer pool3.Close()
	assert.Positive(t, pool3.Size())
}

func TestProcessIndexedPreservesOrder(t *testing.T) {
	pool := parallel.NewWorkerPool(4)
	defer pool.Close()

	input := make([]int, 200)
	for i := range input {
		input[i] = i
	}

	results := parallel.ProcessIndexed(pool, input, func(idx, x int) int {
		return idx*1000 + x*x
	})

	assert.Len(t, results, len(input))
	for i, r := range results {
		assert.Equal(t, i*1000+i*i, r)
	}
}

func TestProcessIndexedEmpty(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	results := parallel.ProcessIndexed(pool, []string{}, func(int, string) int { return 1 })
	assert.Nil(t, results)
}

func TestProcessIndexedRunsEveryItemOnce(t *testing.T) {
	pool := parallel.NewWorkerPool(3)
	defer pool.Close()

	var calls atomic.Int64
	items := make([]struct{}, 57)
	parallel.ProcessIndexed(pool, items, func(int, struct{}) bool {
		calls.Add(1)
		return true
	})
	assert.Equal(t, int64(57), calls.Load())
}

func TestRanges(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		chunkSize int
		expected  []parallel.Range
	}{
		{"empty", 0, 10, nil},
		{"single chunk", 5, 10, []parallel.Range{{Start: 0, End: 5}}},
		{"no chunk size", 5, 0, []parallel.Range{{Start: 0, End: 5}}},
		{"exact split", 6, 3, []parallel.Range{{Start: 0, End: 3}, {Start: 3, End: 6}}},
		{"remainder", 7, 3, []parallel.Range{{Start: 0, End: 3}, {Start: 3, End: 6}, {Start: 6, End: 7}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges := parallel.Ranges(tt.n, tt.chunkSize)
			assert.Equal(t, tt.expected, ranges)

			total := 0
			for _, r := range ranges {
				total += r.Len()
			}
			assert.Equal(t, tt.n, total)
		})
	}
}

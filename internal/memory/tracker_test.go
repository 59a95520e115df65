package memory_test

import (
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_CountsBytes(t *testing.T) {
	checked := arrowmem.NewCheckedAllocator(arrowmem.NewGoAllocator())
	defer checked.AssertSize(t, 0)
	tracker := memory.NewTracker(checked)

	a := tracker.Allocate(64)
	b := tracker.Allocate(128)
	assert.Equal(t, memory.Stats{Current: 192, Peak: 192, Total: 192, Allocations: 2}, tracker.Stats())

	tracker.Free(a)
	b = tracker.Reallocate(256, b)
	stats := tracker.Stats()
	assert.Equal(t, int64(256), stats.Current)
	assert.Equal(t, int64(256), stats.Peak)
	assert.Equal(t, int64(320), stats.Total)
	assert.Equal(t, int64(3), stats.Allocations)

	b = tracker.Reallocate(32, b)
	assert.Equal(t, int64(32), tracker.Stats().Current)
	assert.Equal(t, int64(3), tracker.Stats().Allocations, "shrinking is not an allocation")

	tracker.Free(b)
	stats = tracker.Stats()
	assert.Zero(t, stats.Current)
	assert.Equal(t, int64(256), stats.Peak)
}

func TestTracker_ArrowBuilders(t *testing.T) {
	tracker := memory.NewTracker(nil)

	bldr := array.NewInt64Builder(tracker)
	bldr.AppendValues([]int64{1, 2, 3, 4}, nil)
	arr := bldr.NewInt64Array()
	bldr.Release()

	require.Positive(t, tracker.Stats().Current)
	arr.Release()
	assert.Zero(t, tracker.Stats().Current)
	assert.Positive(t, tracker.Stats().Peak)
}

func TestTracker_Concurrent(t *testing.T) {
	tracker := memory.NewTracker(nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tracker.Free(tracker.Allocate(16))
			}
		}()
	}
	wg.Wait()

	stats := tracker.Stats()
	assert.Zero(t, stats.Current)
	assert.Equal(t, int64(800), stats.Allocations)
	assert.Equal(t, int64(800*16), stats.Total)
	assert.LessOrEqual(t, stats.Peak, int64(8*16))
}

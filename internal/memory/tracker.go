// Package memory accounts for the Arrow buffers a run allocates.
//
// A Tracker wraps any arrow allocator and keeps live, peak and cumulative
// byte counts so a pipeline can report how much memory its frames needed.
package memory

import (
	"sync/atomic"

	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
)

// Stats is a snapshot of a Tracker.
type Stats struct {
	// Current is the number of bytes still allocated.
	Current int64
	// Peak is the highest Current seen.
	Peak int64
	// Total is the number of bytes ever allocated.
	Total int64
	// Allocations counts Allocate calls plus growing Reallocate calls.
	Allocations int64
}

// Tracker is an arrow allocator that counts the bytes passing through it.
// It is safe for concurrent use.
type Tracker struct {
	alloc       arrowmem.Allocator
	current     atomic.Int64
	peak        atomic.Int64
	total       atomic.Int64
	allocations atomic.Int64
}

var _ arrowmem.Allocator = (*Tracker)(nil)

// NewTracker wraps alloc. A nil alloc uses the Go allocator.
func NewTracker(alloc arrowmem.Allocator) *Tracker {
	if alloc == nil {
		alloc = arrowmem.NewGoAllocator()
	}
	return &Tracker{alloc: alloc}
}

// Allocate implements arrowmem.Allocator.
func (t *Tracker) Allocate(size int) []byte {
	b := t.alloc.Allocate(size)
	t.allocations.Add(1)
	t.total.Add(int64(size))
	t.grow(int64(size))
	return b
}

// Reallocate implements arrowmem.Allocator.
func (t *Tracker) Reallocate(size int, b []byte) []byte {
	old := len(b)
	out := t.alloc.Reallocate(size, b)
	if diff := int64(size - old); diff > 0 {
		t.allocations.Add(1)
		t.total.Add(diff)
		t.grow(diff)
	} else {
		t.current.Add(diff)
	}
	return out
}

// Free implements arrowmem.Allocator.
func (t *Tracker) Free(b []byte) {
	t.current.Add(-int64(len(b)))
	t.alloc.Free(b)
}

func (t *Tracker) grow(n int64) {
	now := t.current.Add(n)
	for {
		peak := t.peak.Load()
		if now <= peak || t.peak.CompareAndSwap(peak, now) {
			return
		}
	}
}

// Stats returns the current counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Current:     t.current.Load(),
		Peak:        t.peak.Load(),
		Total:       t.total.Load(),
		Allocations: t.allocations.Load(),
	}
}

package series

import (
	"encoding/binary"
	"math"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/cespare/xxhash/v2"
)

// Groups is the result of hash grouping a set of key columns.
type Groups struct {
	// Rows lists the member row indices of each group, ascending.
	Rows [][]int
	// IDs maps every input row to its group number.
	IDs []int
}

// Len returns the number of distinct key tuples.
func (g *Groups) Len() int {
	return len(g.Rows)
}

// First returns the first row index of each group.
func (g *Groups) First() []int {
	out := make([]int, len(g.Rows))
	for i, rows := range g.Rows {
		out[i] = rows[0]
	}
	return out
}

// GroupRows groups the n rows by the tuple of key values. Nulls compare equal
// to each other and unequal to every value. Groups are numbered in the order
// their first row appears. With no keys every row falls in one group.
func GroupRows(n int, keys ...*Series) *Groups {
	g := &Groups{IDs: make([]int, n)}
	if len(keys) == 0 {
		if n > 0 {
			all := make([]int, n)
			for i := range all {
				all[i] = i
			}
			g.Rows = [][]int{all}
		}
		return g
	}

	buckets := make(map[uint64][]int, 64)
	digest := xxhash.New()
	var scratch [8]byte

	for row := 0; row < n; row++ {
		digest.Reset()
		for _, key := range keys {
			hashValue(digest, key, row, scratch[:])
		}
		h := digest.Sum64()

		id := -1
		for _, candidate := range buckets[h] {
			if keysEqual(keys, g.Rows[candidate][0], row) {
				id = candidate
				break
			}
		}
		if id < 0 {
			id = len(g.Rows)
			g.Rows = append(g.Rows, nil)
			buckets[h] = append(buckets[h], id)
		}
		g.Rows[id] = append(g.Rows[id], row)
		g.IDs[row] = id
	}
	return g
}

func hashValue(d *xxhash.Digest, s *Series, row int, scratch []byte) {
	if s.array.IsNull(row) {
		_, _ = d.Write([]byte{0})
		return
	}
	_, _ = d.Write([]byte{1})
	switch arr := s.array.(type) {
	case *array.Int64:
		binary.LittleEndian.PutUint64(scratch, uint64(arr.Value(row)))
		_, _ = d.Write(scratch)
	case *array.Float64:
		binary.LittleEndian.PutUint64(scratch, canonicalBits(arr.Value(row)))
		_, _ = d.Write(scratch)
	case *array.String:
		_, _ = d.WriteString(arr.Value(row))
		_, _ = d.Write([]byte{0xff})
	case *array.Boolean:
		_, _ = d.Write([]byte{byte(boolRank(arr.Value(row)))})
	}
}

// canonicalBits folds -0 into 0 and every NaN into one payload so equal keys hash equally.
func canonicalBits(v float64) uint64 {
	switch {
	case v == 0:
		return 0
	case math.IsNaN(v):
		return 0x7ff8000000000001
	}
	return math.Float64bits(v)
}

func keysEqual(keys []*Series, a, b int) bool {
	for _, key := range keys {
		if !valueEqual(key, a, b) {
			return false
		}
	}
	return true
}

func valueEqual(s *Series, a, b int) bool {
	aNull, bNull := s.array.IsNull(a), s.array.IsNull(b)
	if aNull || bNull {
		return aNull == bNull
	}
	switch arr := s.array.(type) {
	case *array.Int64:
		return arr.Value(a) == arr.Value(b)
	case *array.Float64:
		return canonicalBits(arr.Value(a)) == canonicalBits(arr.Value(b))
	case *array.String:
		return arr.Value(a) == arr.Value(b)
	case *array.Boolean:
		return arr.Value(a) == arr.Value(b)
	}
	return false
}

// Package testutil provides fixtures and assertions shared by the package tests.
//
// It covers:
// - checked memory allocators that fail the test on leaked buffers
// - standard customer and employee frames
// - frame equality assertions
package testutil

import (
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// defaultRowCount is the default number of rows in test DataFrames.
	defaultRowCount = 4
)

// TestMemoryContext provides a checked allocator that reports leaks on Release.
type TestMemoryContext struct {
	Allocator memory.Allocator
	checked   *memory.CheckedAllocator
	tb        testing.TB
}

// Release asserts that every buffer allocated through the context was freed.
func (tmc *TestMemoryContext) Release() {
	if tmc.checked != nil {
		tmc.checked.AssertSize(tmc.tb, 0)
	}
}

// SetupMemoryTest creates a checked allocator for a test.
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	checked := memory.NewCheckedAllocator(memory.NewGoAllocator())
	return &TestMemoryContext{Allocator: checked, checked: checked, tb: tb}
}

// TestDataFrameOption configures test DataFrame creation.
type TestDataFrameOption func(*testDataFrameConfig)

type testDataFrameConfig struct {
	includeNulls bool
	rowCount     int
	withActive   bool
}

// WithNulls makes every third salary null.
func WithNulls() TestDataFrameOption {
	return func(cfg *testDataFrameConfig) {
		cfg.includeNulls = true
	}
}

// WithRowCount sets the number of rows in test data.
func WithRowCount(count int) TestDataFrameOption {
	return func(cfg *testDataFrameConfig) {
		cfg.rowCount = count
	}
}

// WithActiveColumn includes an 'active' boolean column.
func WithActiveColumn() TestDataFrameOption {
	return func(cfg *testDataFrameConfig) {
		cfg.withActive = true
	}
}

// CreateEmployeeFrame creates the standard employee frame.
//
// Default columns:
// - name (string): ["Alice", "Bob", "Charlie", "David"]
// - age (int64): [25, 30, 35, 28]
// - department (string): ["Engineering", "Sales", "Engineering", "Marketing"]
// - salary (int64): [100000, 80000, 120000, 75000]
func CreateEmployeeFrame(allocator memory.Allocator, opts ...TestDataFrameOption) *dataframe.DataFrame {
	cfg := &testDataFrameConfig{rowCount: defaultRowCount}
	for _, opt := range opts {
		opt(cfg)
	}

	cols := []*series.Series{
		series.New("name", cycle(baseNames, cfg.rowCount), allocator),
		series.New("age", cycle(baseAges, cfg.rowCount), allocator),
		series.New("department", cycle(baseDepartments, cfg.rowCount), allocator),
	}

	salaries := cycle(baseSalaries, cfg.rowCount)
	if cfg.includeNulls {
		valid := make([]bool, cfg.rowCount)
		for i := range valid {
			valid[i] = i%3 != 2
		}
		cols = append(cols, series.NewNullable("salary", salaries, valid, allocator))
	} else {
		cols = append(cols, series.New("salary", salaries, allocator))
	}

	if cfg.withActive {
		cols = append(cols, series.New("active", cycle(baseActive, cfg.rowCount), allocator))
	}

	return dataframe.MustNew(cols...)
}

// CreateCustomerFrame creates a small frame of personal data for
// anonymization tests: id, name, email, phone, ssn, age and salary.
func CreateCustomerFrame(allocator memory.Allocator) *dataframe.DataFrame {
	return dataframe.MustNew(
		series.New("id", []int64{1, 2, 3, 4}, allocator),
		series.New("name", []string{"Alice", "Bob", "Carol", "Dave"}, allocator),
		series.New("email", []string{"alice@example.com", "bob@example.com", "carol@example.com", "dave@example.com"}, allocator),
		series.New("phone", []string{"555-0101", "555-0102", "555-0103", "555-0104"}, allocator),
		series.New("ssn", []string{"123-45-6789", "234-56-7890", "345-67-8901", "456-78-9012"}, allocator),
		series.New("age", []int64{25, 17, 30, 22}, allocator),
		series.NewNullable("salary", []float64{49999, 50000, 0, 120000}, []bool{true, true, false, true}, allocator),
	)
}

// CreateSimpleTestDataFrame creates a simple 2-column DataFrame for basic testing.
func CreateSimpleTestDataFrame(allocator memory.Allocator) *dataframe.DataFrame {
	return dataframe.MustNew(
		series.New("name", []string{"Alice", "Bob"}, allocator),
		series.New("age", []int64{25, 30}, allocator),
	)
}

// Column is one named column of test data.
type Column struct {
	Name   string
	Values any // []int64, []float64, []string or []bool
}

// CreateTestTableWithData builds a frame from columns in the given order.
func CreateTestTableWithData(allocator memory.Allocator, columns ...Column) *dataframe.DataFrame {
	cols := make([]*series.Series, len(columns))
	for i, c := range columns {
		switch values := c.Values.(type) {
		case []int64:
			cols[i] = series.New(c.Name, values, allocator)
		case []float64:
			cols[i] = series.New(c.Name, values, allocator)
		case []string:
			cols[i] = series.New(c.Name, values, allocator)
		case []bool:
			cols[i] = series.New(c.Name, values, allocator)
		default:
			panic(fmt.Sprintf("unsupported test column type %T", c.Values))
		}
	}
	return dataframe.MustNew(cols...)
}

// AssertDataFrameEqual checks that two frames have the same schema and the
// same value (or null) in every cell.
func AssertDataFrameEqual(t *testing.T, expected, actual *dataframe.DataFrame) {
	t.Helper()

	require.NotNil(t, expected, "expected DataFrame should not be nil")
	require.NotNil(t, actual, "actual DataFrame should not be nil")

	require.Equal(t, expected.Schema(), actual.Schema(), "DataFrame schemas should match")
	require.Equal(t, expected.Len(), actual.Len(), "DataFrame lengths should match")

	for i := range expected.Len() {
		assert.Equal(t, expected.Row(i), actual.Row(i), "row %d should match", i)
	}
}

// AssertDataFrameHasColumns verifies that a DataFrame has exactly the expected columns in order.
func AssertDataFrameHasColumns(t *testing.T, df *dataframe.DataFrame, expectedColumns []string) {
	t.Helper()

	require.NotNil(t, df, "DataFrame should not be nil")
	assert.Equal(t, expectedColumns, df.Columns())
}

// AssertDataFrameNotEmpty verifies that a DataFrame is not empty.
func AssertDataFrameNotEmpty(t *testing.T, df *dataframe.DataFrame) {
	t.Helper()

	require.NotNil(t, df, "DataFrame should not be nil")
	assert.Positive(t, df.Len(), "DataFrame should not be empty")
	assert.Positive(t, df.Width(), "DataFrame should have columns")
}

// ColumnValues returns a column's values, nil for nulls.
func ColumnValues(t *testing.T, df *dataframe.DataFrame, name string) []any {
	t.Helper()

	col, ok := df.Column(name)
	require.True(t, ok, "column %s should exist", name)
	return col.Values()
}

var (
	baseNames       = []string{"Alice", "Bob", "Charlie", "David", "Eve", "Frank", "Grace", "Henry"}
	baseAges        = []int64{25, 30, 35, 28, 32, 45, 29, 38}
	baseDepartments = []string{"Engineering", "Sales", "Engineering", "Marketing", "HR", "Finance", "Engineering", "Sales"}
	baseSalaries    = []int64{100000, 80000, 120000, 75000, 90000, 110000, 95000, 85000}
	baseActive      = []bool{true, true, false, true, true, false, true, false}
)

func cycle[T any](base []T, count int) []T {
	out := make([]T, count)
	for i := range count {
		out[i] = base[i%len(base)]
	}
	return out
}

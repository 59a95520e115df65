package testutil_test

import (
	"testing"

	"github.com/paveg/gibbon/internal/series"
	"github.com/paveg/gibbon/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupMemoryTest(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	require.NotNil(t, mem.Allocator)

	df := testutil.CreateEmployeeFrame(mem.Allocator)
	defer df.Release()

	assert.Equal(t, 4, df.Len())
}

func TestCreateEmployeeFrame(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	t.Run("default configuration", func(t *testing.T) {
		df := testutil.CreateEmployeeFrame(mem.Allocator)
		defer df.Release()

		testutil.AssertDataFrameHasColumns(t, df, []string{"name", "age", "department", "salary"})
		assert.Equal(t, []any{"Alice", int64(25), "Engineering", int64(100000)}, df.Row(0))
	})

	t.Run("custom row count with active column", func(t *testing.T) {
		df := testutil.CreateEmployeeFrame(mem.Allocator, testutil.WithRowCount(10), testutil.WithActiveColumn())
		defer df.Release()

		assert.Equal(t, 10, df.Len())
		assert.Equal(t, 5, df.Width())
		assert.Equal(t, "Alice", df.Row(8)[0], "base data repeats")
	})

	t.Run("with nulls", func(t *testing.T) {
		df := testutil.CreateEmployeeFrame(mem.Allocator, testutil.WithNulls(), testutil.WithRowCount(6))
		defer df.Release()

		salary, ok := df.Column("salary")
		require.True(t, ok)
		assert.Equal(t, 2, salary.NullN())
		assert.True(t, salary.IsNull(2))
		assert.True(t, salary.IsNull(5))
	})
}

func TestCreateCustomerFrame(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := testutil.CreateCustomerFrame(mem.Allocator)
	defer df.Release()

	testutil.AssertDataFrameNotEmpty(t, df)
	dtype, ok := df.Schema().Lookup("salary")
	require.True(t, ok)
	assert.Equal(t, series.Float64, dtype)
	assert.Nil(t, testutil.ColumnValues(t, df, "salary")[2])
}

func TestCreateTestTableWithData(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	table := testutil.CreateTestTableWithData(mem.Allocator,
		testutil.Column{Name: "id", Values: []int64{1, 2, 3}},
		testutil.Column{Name: "name", Values: []string{"Test1", "Test2", "Test3"}},
		testutil.Column{Name: "value", Values: []float64{1.1, 2.2, 3.3}},
		testutil.Column{Name: "flag", Values: []bool{true, false, true}},
	)
	defer table.Release()

	assert.Equal(t, 3, table.Len())
	testutil.AssertDataFrameHasColumns(t, table, []string{"id", "name", "value", "flag"})
}

func TestAssertDataFrameEqual(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df1 := testutil.CreateSimpleTestDataFrame(mem.Allocator)
	defer df1.Release()
	df2 := testutil.CreateSimpleTestDataFrame(mem.Allocator)
	defer df2.Release()

	testutil.AssertDataFrameEqual(t, df1, df2)
}

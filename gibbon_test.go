package gibbon_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/paveg/gibbon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customers(t *testing.T) *gibbon.DataFrame {
	t.Helper()
	df, err := gibbon.NewDataFrame(
		gibbon.NewSeries("name", []string{"Alice", "Bob", "Carol", "Dave"}, nil),
		gibbon.NewSeries("department", []string{"Eng", "Eng", "Sales", "HR"}, nil),
		gibbon.NewSeries("age", []int64{25, 17, 30, 22}, nil),
		gibbon.NewNullableSeries("salary", []float64{49999, 50000, 0, 120000}, []bool{true, true, false, true}, nil),
	)
	require.NoError(t, err)
	t.Cleanup(df.Release)
	return df
}

func TestLazyPipeline(t *testing.T) {
	df := customers(t)

	result, err := df.Lazy().
		Filter(gibbon.Col("age").Gt(gibbon.Lit(18))).
		WithColumn("raise", gibbon.Col("salary").Mul(gibbon.Lit(0.1))).
		Sort("age", true).
		Collect()
	require.NoError(t, err)
	defer result.Release()

	assert.Equal(t, 3, result.Len())
	assert.Equal(t, []string{"name", "department", "age", "salary", "raise"}, result.Columns())
	assert.Equal(t, "Carol", result.Row(0)[0])
	assert.Nil(t, result.Row(0)[4], "null salary gives a null raise")
}

func TestGroupByAndWindow(t *testing.T) {
	df := customers(t)

	grouped, err := df.Lazy().
		GroupBy("department").
		Agg(gibbon.Count(gibbon.Col("name")).As("n"), gibbon.Mean(gibbon.Col("age")).As("mean_age")).
		Collect()
	require.NoError(t, err)
	defer grouped.Release()
	assert.Equal(t, []any{"Eng", int64(2), 21.0}, grouped.Row(0))

	windowed, err := df.Lazy().
		WithColumns(gibbon.Max(gibbon.Col("age")).Over("department").As("oldest")).
		Collect()
	require.NoError(t, err)
	defer windowed.Release()
	assert.Equal(t, int64(25), windowed.Row(1)[4])
}

func TestErrorsAreClassified(t *testing.T) {
	df := customers(t)

	_, err := df.Lazy().Filter(gibbon.Col("missing").Gt(gibbon.Lit(1))).Collect()
	assert.True(t, errors.Is(err, gibbon.ErrSchema))

	_, err = df.Lazy().WithColumn("x", gibbon.Col("name").Add(gibbon.Lit(1))).Collect()
	assert.True(t, errors.Is(err, gibbon.ErrSchema))
}

func TestAnonymizeAndSummarize(t *testing.T) {
	df := customers(t)

	out, err := df.Anonymize(
		gibbon.NamePseudonym("name", "").As("name_hash"),
		gibbon.SalaryBuckets("salary").As("salary_bucket"),
	)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []string{"name_hash", "department", "age", "salary_bucket"}, out.Columns())
	assert.Equal(t, []any{"Customer_3bc51062973c458d", "Eng", int64(25), "< $50k"}, out.Row(0))
	assert.Nil(t, out.Row(2)[3])

	env, err := out.Summarize(df.Len(), gibbon.ReportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, env.Summary.TotalRows)
	total, ok := env.Summary.Total("age")
	require.True(t, ok)
	assert.Equal(t, int64(94), total)
}

func TestRunPipeline(t *testing.T) {
	var cfg gibbon.PipelineConfig
	cfg.Source.Type = "synthetic"
	cfg.Source.Rows = 20
	cfg.Sink.Path = t.TempDir() + "/out.jsonl"

	result, err := gibbon.RunPipeline(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, 20, result.Write.Rows)
}

package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	goio "io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/paveg/gibbon/internal/config"
	"github.com/paveg/gibbon/internal/dataframe"
	dferrors "github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/io"
	"github.com/paveg/gibbon/internal/pipeline"
	"github.com/paveg/gibbon/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameSource hands out clones of a fixed frame.
type frameSource struct {
	df *dataframe.DataFrame
}

func (s frameSource) Read(context.Context) (*dataframe.DataFrame, error) {
	return s.df.Clone(), nil
}

// recordingSink keeps a copy of the last frame written.
type recordingSink struct {
	df *dataframe.DataFrame
}

func (s *recordingSink) Write(_ context.Context, df *dataframe.DataFrame) (io.WriteResult, error) {
	s.df = df.Clone()
	return io.WriteResult{Target: "memory", Rows: df.Len(), Batches: 1}, nil
}

func (s *recordingSink) Release() {
	if s.df != nil {
		s.df.Release()
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(goio.Discard, nil))
}

func run(t *testing.T, cfg pipeline.Config, df *dataframe.DataFrame) (pipeline.Result, *recordingSink) {
	t.Helper()

	sink := &recordingSink{}
	t.Cleanup(sink.Release)

	p, err := pipeline.New(cfg,
		pipeline.WithSource(frameSource{df}),
		pipeline.WithSink(sink),
		pipeline.WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	return result, sink
}

func TestScenarioA_FilterAges(t *testing.T) {
	df := testutil.CreateTestTableWithData(nil,
		testutil.Column{Name: "age", Values: []int64{25, 17, 30, 22}},
	)
	defer df.Release()

	cfg, err := pipeline.ParseYAML([]byte(`
filters:
  - op: gt
    left: {col: age}
    right: {lit: 18}
`))
	require.NoError(t, err)

	result, sink := run(t, cfg, df)

	assert.Equal(t, 3, sink.df.Len())
	assert.Equal(t, 4, result.Envelope.Summary.TotalRows)
	assert.Equal(t, 3, result.Envelope.Summary.FilteredRows)
	assert.Equal(t, 3, result.Write.Rows)
	assert.NotEmpty(t, result.RunID)
}

func TestScenarioB_SalaryRaise(t *testing.T) {
	df := testutil.CreateTestTableWithData(nil,
		testutil.Column{Name: "salary", Values: []int64{50000}},
	)
	defer df.Release()

	cfg, err := pipeline.ParseYAML([]byte(`
transforms:
  - - {op: mul, left: {col: salary}, right: {lit: 1.10}, as: new_salary}
  - - {op: sub, left: {col: new_salary}, right: {col: salary}, as: raise_amount}
`))
	require.NoError(t, err)

	_, sink := run(t, cfg, df)

	require.Equal(t, []string{"salary", "new_salary", "raise_amount"}, sink.df.Columns())
	row := sink.df.Row(0)
	assert.InDelta(t, 55000.0, row[1], 1e-6)
	assert.InDelta(t, 5000.0, row[2], 1e-6)
}

func TestScenarioC_GroupByCount(t *testing.T) {
	df := testutil.CreateTestTableWithData(nil,
		testutil.Column{Name: "department", Values: []string{"Eng", "Eng", "Sales", "HR", "Sales"}},
	)
	defer df.Release()

	cfg, err := pipeline.ParseJSON([]byte(`{
		"group_by": {
			"keys": ["department"],
			"aggs": [{"agg": "count", "of": {"col": "department"}, "as": "count"}]
		}
	}`))
	require.NoError(t, err)

	result, sink := run(t, cfg, df)

	require.Equal(t, 3, sink.df.Len())
	var total int64
	for _, v := range testutil.ColumnValues(t, sink.df, "count") {
		total += v.(int64)
	}
	assert.Equal(t, int64(5), total)
	assert.Equal(t, 5, result.Envelope.Summary.TotalRows)
	assert.Equal(t, 3, result.Envelope.Summary.FilteredRows)
}

func TestRun_WindowSortLimitSelect(t *testing.T) {
	df := testutil.CreateEmployeeFrame(nil)
	defer df.Release()

	cfg, err := pipeline.ParseYAML([]byte(`
transforms:
  - - {agg: sum, of: {col: salary}, over: [department], as: dept_total}
sort:
  - {column: salary, desc: true}
limit: 2
select: [name, salary, dept_total]
`))
	require.NoError(t, err)

	_, sink := run(t, cfg, df)

	assert.Equal(t, []string{"name", "salary", "dept_total"}, sink.df.Columns())
	assert.Equal(t, 2, sink.df.Len())
	salaries := testutil.ColumnValues(t, sink.df, "salary")
	assert.GreaterOrEqual(t, salaries[0], salaries[1])
}

func TestRun_SQLToSQLAnonymization(t *testing.T) {
	db := testutil.OpenSQLite(t)
	testutil.SeedCustomers(t, db)

	cfg, err := pipeline.ParseYAML([]byte(`
name: customers
source:
  type: sql
  query: SELECT id, name, email, age, salary FROM customers ORDER BY id
sink:
  type: sql
  table: customers_anonymized
  indexes: [salary_bucket]
batch_size: 3
anonymization:
  - {preset: name, column: name, as: name_hash}
  - {preset: email, column: email, as: email_hash}
  - {preset: salary, column: salary, as: salary_bucket}
`))
	require.NoError(t, err)

	var logs bytes.Buffer
	p, err := pipeline.New(cfg,
		pipeline.WithDB(db),
		pipeline.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, io.WriteResult{Target: "customers_anonymized", Rows: 4, Batches: 2}, result.Write)
	assert.Equal(t, []string{
		"name -> name_hash (pseudonymize)",
		"email -> email_hash (pseudonymize)",
		"salary -> salary_bucket (bucketize)",
	}, result.Applied)
	assert.Equal(t, []string{"id", "name_hash", "email_hash", "age", "salary_bucket"}, result.Envelope.Columns)

	var nameHash, bucket string
	require.NoError(t, db.QueryRow(`SELECT name_hash, salary_bucket FROM customers_anonymized WHERE id = 1`).
		Scan(&nameHash, &bucket))
	// sha256("Alice")
	assert.Equal(t, "Customer_3bc51062973c458d", nameHash)
	assert.Equal(t, "< $50k", bucket)

	var nullEmails int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM customers_anonymized WHERE email_hash IS NULL`).Scan(&nullEmails))
	assert.Equal(t, 1, nullEmails, "null inputs stay null")

	assert.Contains(t, logs.String(), "run_id="+result.RunID)
	assert.Contains(t, logs.String(), "pipeline=customers")
	assert.Contains(t, logs.String(), "msg=\"pipeline finished\"")
}

func TestRun_PartialWrite(t *testing.T) {
	db := testutil.OpenSQLite(t)
	df := testutil.CreateTestTableWithData(nil,
		testutil.Column{Name: "id", Values: []int64{1, 2, 2, 4}},
	)
	defer df.Release()

	cfg := pipeline.Config{
		Sink:      pipeline.SinkSpec{Type: "sql", Table: "dupes"},
		BatchSize: 2,
	}
	p, err := pipeline.New(cfg,
		pipeline.WithDB(db),
		pipeline.WithSource(frameSource{df}),
		pipeline.WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.Error(t, err)

	var partial *dferrors.PartialWriteError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, 2, partial.Written)
	assert.Equal(t, 4, partial.Total)
	assert.Equal(t, 2, result.Write.Rows)
}

func TestRun_EnvelopeToStdout(t *testing.T) {
	df := testutil.CreateCustomerFrame(nil)
	defer df.Release()

	var stdout bytes.Buffer
	p, err := pipeline.New(pipeline.Config{
		Filters: []pipeline.ExprSpec{{Op: ">", Left: &pipeline.ExprSpec{Col: "age"}, Right: &pipeline.ExprSpec{Lit: 18}}},
		Select:  []string{"name", "age"},
	},
		pipeline.WithSource(frameSource{df}),
		pipeline.WithStdio(strings.NewReader(""), &stdout),
		pipeline.WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	summary := decoded["summary"].(map[string]any)
	assert.Equal(t, float64(4), summary["total_rows"])
	assert.Equal(t, float64(3), summary["filtered_rows"])
	assert.Equal(t, float64(77), summary["total_age"])
}

func TestRun_FileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "people.csv.gz")
	output := filepath.Join(dir, "people.parquet")

	df := testutil.CreateCustomerFrame(nil)
	defer df.Release()

	f, err := os.Create(input)
	require.NoError(t, err)
	options := io.DefaultCSVOptions()
	options.Codec = io.CodecGzip
	_, err = io.NewCSVSink(f, options).Write(context.Background(), df)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	p, err := pipeline.New(pipeline.Config{
		Source: pipeline.SourceSpec{Path: input},
		Sink:   pipeline.SinkSpec{Path: output},
		Anonymization: []pipeline.RuleSpec{
			{Preset: "phone", Column: "phone"},
			{Preset: "ssn", Column: "ssn"},
		},
	}, pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Write.Rows)

	r, err := os.Open(output)
	require.NoError(t, err)
	defer r.Close()
	back, err := io.NewParquetSource(r, nil).Read(context.Background())
	require.NoError(t, err)
	defer back.Release()

	assert.Equal(t, df.Columns(), back.Columns())
	for _, v := range testutil.ColumnValues(t, back, "ssn") {
		assert.Equal(t, "***-**-****", v)
	}
	assert.Equal(t, "***-***-****", back.Row(0)[3])
}

func TestRun_SyntheticSource(t *testing.T) {
	var stdout bytes.Buffer
	p, err := pipeline.New(pipeline.Config{
		Source: pipeline.SourceSpec{Type: "synthetic", Rows: 50, Seed: 7},
		Anonymization: []pipeline.RuleSpec{
			{Preset: "address", Column: "address"},
			{Preset: "salary", Column: "salary", As: "salary_bucket"},
		},
		PreviewRows: -1,
	},
		pipeline.WithStdio(nil, &stdout),
		pipeline.WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, result.Envelope.Summary.TotalRows)
	assert.Len(t, result.Envelope.Data, 50)
	assert.NotContains(t, result.Envelope.Columns, "salary")
	assert.Positive(t, result.Memory.Peak)
	assert.GreaterOrEqual(t, result.Memory.Total, result.Memory.Peak)
}

func TestRun_RequireRows(t *testing.T) {
	df := testutil.CreateTestTableWithData(nil, testutil.Column{Name: "id", Values: []int64{}})
	defer df.Release()

	p, err := pipeline.New(pipeline.Config{RequireRows: true},
		pipeline.WithSource(frameSource{df}),
		pipeline.WithSink(&recordingSink{}),
		pipeline.WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrNoRows)
}

func TestRun_Errors(t *testing.T) {
	df := testutil.CreateSimpleTestDataFrame(nil)
	defer df.Release()

	tests := []struct {
		name    string
		cfg     pipeline.Config
		wantErr error
	}{
		{
			name:    "unknown column",
			cfg:     pipeline.Config{Filters: []pipeline.ExprSpec{{Op: "gt", Left: &pipeline.ExprSpec{Col: "missing"}, Right: &pipeline.ExprSpec{Lit: 1}}}},
			wantErr: dferrors.ErrSchema,
		},
		{
			name:    "string arithmetic",
			cfg:     pipeline.Config{Transforms: [][]pipeline.ExprSpec{{{Op: "add", Left: &pipeline.ExprSpec{Col: "name"}, Right: &pipeline.ExprSpec{Lit: 1}, As: "x"}}}},
			wantErr: dferrors.ErrSchema,
		},
		{
			name:    "bucketize a string column",
			cfg:     pipeline.Config{Anonymization: []pipeline.RuleSpec{{Preset: "salary", Column: "name"}}},
			wantErr: dferrors.ErrSchema,
		},
		{
			name: "two rules on one column",
			cfg: pipeline.Config{Anonymization: []pipeline.RuleSpec{
				{Preset: "name", Column: "name"},
				{Type: "redact", Column: "name"},
			}},
			wantErr: dferrors.ErrSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := pipeline.New(tt.cfg,
				pipeline.WithSource(frameSource{df}),
				pipeline.WithSink(&recordingSink{}),
				pipeline.WithLogger(quietLogger()),
			)
			require.NoError(t, err)
			_, err = p.Run(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExplain(t *testing.T) {
	df := testutil.CreateEmployeeFrame(nil)
	defer df.Release()

	cfg, err := pipeline.ParseYAML([]byte(`
filters:
  - {op: gt, left: {col: age}, right: {lit: 26}}
  - {op: eq, left: {col: department}, right: {lit: Engineering}}
select: [name]
`))
	require.NoError(t, err)

	p, err := pipeline.New(cfg, pipeline.WithSource(frameSource{df}), pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)

	plan, err := p.Explain(context.Background())
	require.NoError(t, err)
	assert.Len(t, plan.Original, 4)
	assert.Contains(t, plan.Rules, "FilterFusion")
}

func TestRun_LogsEngineWarnings(t *testing.T) {
	df := testutil.CreateTestTableWithData(nil, testutil.Column{Name: "id", Values: []int64{1, 2, 3}})
	defer df.Release()

	engine := config.NewConfig()
	engine.FilterFusion = false
	engine.PredicatePushdown = false
	engine.ProjectionPruning = false

	sink := &recordingSink{}
	defer sink.Release()

	var logs bytes.Buffer
	p, err := pipeline.New(pipeline.Config{Engine: &engine},
		pipeline.WithSource(frameSource{df}),
		pipeline.WithSink(sink),
		pipeline.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "All optimizer rules are disabled")
}

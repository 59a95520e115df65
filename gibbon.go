// Package gibbon is a lazy columnar transform engine with an anonymization
// layer. This package is the public API; everything else lives under internal/.
//
// A typical program builds a DataFrame, chains lazy operations and collects:
//
//	df, _ := gibbon.NewDataFrame(
//		gibbon.NewSeries("age", []int64{25, 17, 30, 22}, nil),
//	)
//	defer df.Release()
//	adults, err := df.Lazy().Filter(gibbon.Col("age").Gt(gibbon.Lit(18))).Collect()
package gibbon

import (
	"context"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/anonymize"
	"github.com/paveg/gibbon/internal/config"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/expr"
	"github.com/paveg/gibbon/internal/monitoring"
	"github.com/paveg/gibbon/internal/pipeline"
	"github.com/paveg/gibbon/internal/report"
	"github.com/paveg/gibbon/internal/series"
)

// Series is one named, typed column.
type Series = series.Series

// Dtype is the value kind of a column.
type Dtype = series.Dtype

// Column value kinds.
const (
	Int64   = series.Int64
	Float64 = series.Float64
	Utf8    = series.Utf8
	Bool    = series.Bool
)

// Schema lists column names and dtypes in order.
type Schema = series.Schema

// Config tunes planning and execution.
type Config = config.Config

// QueryPlan is a rendered plan, see LazyFrame.Explain.
type QueryPlan = monitoring.QueryPlan

// Error kinds, matched with errors.Is.
var (
	ErrSchema       = errors.ErrSchema
	ErrValue        = errors.ErrValue
	ErrSource       = errors.ErrSource
	ErrPartialWrite = errors.ErrPartialWrite
)

// NewSeries creates a column without nulls. A nil allocator uses the Go heap.
func NewSeries[T series.Primitive](name string, values []T, mem memory.Allocator) *Series {
	return series.New(name, values, allocator(mem))
}

// NewNullableSeries creates a column where valid[i] == false marks a null.
func NewNullableSeries[T series.Primitive](name string, values []T, valid []bool, mem memory.Allocator) *Series {
	return series.NewNullable(name, values, valid, allocator(mem))
}

func allocator(mem memory.Allocator) memory.Allocator {
	if mem == nil {
		return memory.NewGoAllocator()
	}
	return mem
}

// DataFrame is an ordered set of equally long, uniquely named columns.
type DataFrame struct {
	df *dataframe.DataFrame
}

// NewDataFrame takes ownership of the columns.
func NewDataFrame(columns ...*Series) (*DataFrame, error) {
	df, err := dataframe.New(columns...)
	if err != nil {
		return nil, err
	}
	return &DataFrame{df: df}, nil
}

// Columns returns the column names in order.
func (d *DataFrame) Columns() []string { return d.df.Columns() }

// Len returns the number of rows.
func (d *DataFrame) Len() int { return d.df.Len() }

// Width returns the number of columns.
func (d *DataFrame) Width() int { return d.df.Width() }

// Column returns the column with the given name.
func (d *DataFrame) Column(name string) (*Series, bool) { return d.df.Column(name) }

// Schema returns the column names and dtypes.
func (d *DataFrame) Schema() Schema { return d.df.Schema() }

// Row returns row i, nil for null cells.
func (d *DataFrame) Row(i int) []any { return d.df.Row(i) }

// String returns a string representation of the DataFrame.
func (d *DataFrame) String() string { return d.df.String() }

// Release frees the memory used by the DataFrame.
func (d *DataFrame) Release() { d.df.Release() }

// Lazy starts a deferred plan over the DataFrame, which must outlive it.
func (d *DataFrame) Lazy() *LazyFrame { return &LazyFrame{lf: d.df.Lazy()} }

// Anonymize applies rules and returns a new DataFrame. Each rule replaces
// its source column in place, under its output name.
func (d *DataFrame) Anonymize(rules ...AnonymizationRule) (*DataFrame, error) {
	out, err := anonymize.Apply(d.df, rules...)
	if err != nil {
		return nil, err
	}
	return &DataFrame{df: out}, nil
}

// Summarize builds the report envelope of d as the result of a run that
// started from totalRows rows.
func (d *DataFrame) Summarize(totalRows int, opts ReportOptions) (Envelope, error) {
	return report.Build(totalRows, d.df, opts)
}

// LazyFrame is a deferred chain of operations. Nothing runs until Collect.
type LazyFrame struct {
	lf *dataframe.LazyFrame
}

// WithConfig sets the planning and execution configuration.
func (lf *LazyFrame) WithConfig(cfg Config) *LazyFrame {
	return &LazyFrame{lf: lf.lf.WithConfig(cfg)}
}

// Filter keeps rows where predicate holds.
func (lf *LazyFrame) Filter(predicate Expression) *LazyFrame {
	return &LazyFrame{lf: lf.lf.Filter(predicate.expr)}
}

// Select keeps the named columns in the given order.
func (lf *LazyFrame) Select(columns ...string) *LazyFrame {
	return &LazyFrame{lf: lf.lf.Select(columns...)}
}

// WithColumn appends a column computed from the existing ones.
func (lf *LazyFrame) WithColumn(name string, e Expression) *LazyFrame {
	return &LazyFrame{lf: lf.lf.WithColumn(name, e.expr)}
}

// WithColumns appends several columns. Each sees only the columns that
// existed before the call.
func (lf *LazyFrame) WithColumns(exprs ...Expression) *LazyFrame {
	return &LazyFrame{lf: lf.lf.WithColumns(unwrap(exprs)...)}
}

// Sort orders rows by column. Nulls sort last.
func (lf *LazyFrame) Sort(column string, descending bool) *LazyFrame {
	return &LazyFrame{lf: lf.lf.Sort(column, descending)}
}

// Limit keeps the first n rows.
func (lf *LazyFrame) Limit(n int) *LazyFrame {
	return &LazyFrame{lf: lf.lf.Limit(n)}
}

// GroupBy starts a grouped aggregation.
func (lf *LazyFrame) GroupBy(keys ...string) *LazyGroupBy {
	return &LazyGroupBy{lgb: lf.lf.GroupBy(keys...)}
}

// Schema returns the schema the plan will produce.
func (lf *LazyFrame) Schema() Schema { return lf.lf.Schema() }

// Explain returns the plan as written and after optimization.
func (lf *LazyFrame) Explain() (QueryPlan, error) { return lf.lf.Explain() }

// Collect optimizes and executes the plan.
func (lf *LazyFrame) Collect() (*DataFrame, error) {
	df, err := lf.lf.Collect()
	if err != nil {
		return nil, err
	}
	return &DataFrame{df: df}, nil
}

// String describes the plan.
func (lf *LazyFrame) String() string { return lf.lf.String() }

// LazyGroupBy is a grouping waiting for its aggregations.
type LazyGroupBy struct {
	lgb *dataframe.LazyGroupBy
}

// Agg computes one output column per aggregation and group.
func (g *LazyGroupBy) Agg(aggs ...Expression) *LazyFrame {
	return &LazyFrame{lf: g.lgb.Agg(unwrap(aggs)...)}
}

// Expression is a deferred column computation.
type Expression struct {
	expr expr.Expr
}

func unwrap(exprs []Expression) []expr.Expr {
	out := make([]expr.Expr, len(exprs))
	for i, e := range exprs {
		out[i] = e.expr
	}
	return out
}

// Col references a column by name.
func Col(name string) Expression { return Expression{expr: expr.Col(name)} }

// Lit is a constant broadcast to every row.
func Lit(value any) Expression { return Expression{expr: expr.Lit(value)} }

func (e Expression) binary(op expr.BinaryOp, other Expression) Expression {
	return Expression{expr: expr.Binary(op, e.expr, other.expr)}
}

func (e Expression) Add(other Expression) Expression { return e.binary(expr.OpAdd, other) }
func (e Expression) Sub(other Expression) Expression { return e.binary(expr.OpSub, other) }
func (e Expression) Mul(other Expression) Expression { return e.binary(expr.OpMul, other) }
func (e Expression) Div(other Expression) Expression { return e.binary(expr.OpDiv, other) }
func (e Expression) Eq(other Expression) Expression  { return e.binary(expr.OpEq, other) }
func (e Expression) Ne(other Expression) Expression  { return e.binary(expr.OpNe, other) }
func (e Expression) Lt(other Expression) Expression  { return e.binary(expr.OpLt, other) }
func (e Expression) Le(other Expression) Expression  { return e.binary(expr.OpLe, other) }
func (e Expression) Gt(other Expression) Expression  { return e.binary(expr.OpGt, other) }
func (e Expression) Ge(other Expression) Expression  { return e.binary(expr.OpGe, other) }
func (e Expression) And(other Expression) Expression { return e.binary(expr.OpAnd, other) }
func (e Expression) Or(other Expression) Expression  { return e.binary(expr.OpOr, other) }

// As names the output column.
func (e Expression) As(name string) Expression {
	switch x := e.expr.(type) {
	case *expr.AggregationExpr:
		return Expression{expr: x.As(name)}
	case *expr.WindowExpr:
		return Expression{expr: x.As(name)}
	}
	return Expression{expr: expr.Alias(e.expr, name)}
}

// Over turns an aggregation into a window broadcast over partition keys.
// It returns e unchanged when e is not an aggregation.
func (e Expression) Over(partitionBy ...string) Expression {
	if agg, ok := e.expr.(*expr.AggregationExpr); ok {
		return Expression{expr: agg.Over(partitionBy...)}
	}
	return e
}

// String renders the expression.
func (e Expression) String() string { return e.expr.String() }

func aggregate(t expr.AggregationType, of Expression) Expression {
	return Expression{expr: expr.Agg(t, of.expr)}
}

func Sum(of Expression) Expression     { return aggregate(expr.AggSum, of) }
func Count(of Expression) Expression   { return aggregate(expr.AggCount, of) }
func Mean(of Expression) Expression    { return aggregate(expr.AggMean, of) }
func Min(of Expression) Expression     { return aggregate(expr.AggMin, of) }
func Max(of Expression) Expression     { return aggregate(expr.AggMax, of) }
func NUnique(of Expression) Expression { return aggregate(expr.AggNUnique, of) }

// Anonymization rules.
type (
	AnonymizationRule = anonymize.Rule
	Pseudonymize      = anonymize.Pseudonymize
	Mask              = anonymize.Mask
	Redact            = anonymize.Redact
	Bucketize         = anonymize.Bucketize
	Boundary          = anonymize.Boundary
)

// Rule presets for customer records.
var (
	NamePseudonym  = anonymize.NamePseudonym
	EmailPseudonym = anonymize.EmailPseudonym
	SalaryBuckets  = anonymize.SalaryBuckets
)

// Report types.
type (
	Envelope      = report.Envelope
	ReportOptions = report.Options
)

// Pipeline types.
type (
	PipelineConfig = pipeline.Config
	PipelineResult = pipeline.Result
)

// LoadPipeline reads a YAML or JSON pipeline config.
func LoadPipeline(path string) (PipelineConfig, error) {
	return pipeline.LoadFile(path)
}

// RunPipeline runs cfg once, logging to logger (slog.Default() when nil).
func RunPipeline(ctx context.Context, cfg PipelineConfig, logger *slog.Logger) (PipelineResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := pipeline.New(cfg, pipeline.WithLogger(logger))
	if err != nil {
		return PipelineResult{}, err
	}
	return p.Run(ctx)
}

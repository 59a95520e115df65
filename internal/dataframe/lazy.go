package dataframe

import (
	"fmt"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/config"
	"github.com/paveg/gibbon/internal/expr"
	"github.com/paveg/gibbon/internal/monitoring"
	"github.com/paveg/gibbon/internal/series"
)

// LazyFrame holds a DataFrame and a chain of deferred plan nodes. Every
// builder method returns a new LazyFrame sharing the prefix of the chain;
// nothing runs until Collect.
//
// The source DataFrame is referenced, not owned, and must stay alive until
// the last Collect returns.
type LazyFrame struct {
	nodes   []PlanNode
	schema  series.Schema
	err     error
	cfg     config.Config
	mem     memory.Allocator
	metrics *monitoring.MetricsCollector
}

// Lazy converts a DataFrame to a LazyFrame using the global configuration
func (df *DataFrame) Lazy() *LazyFrame {
	return &LazyFrame{
		nodes:  []PlanNode{&ScanNode{source: df}},
		schema: df.Schema(),
		cfg:    config.GetGlobalConfig(),
		mem:    memory.NewGoAllocator(),
	}
}

// WithConfig returns a LazyFrame that optimizes and executes under cfg
func (lf *LazyFrame) WithConfig(cfg config.Config) *LazyFrame {
	out := *lf
	out.cfg = cfg
	return &out
}

// WithMetrics returns a LazyFrame that records per-node metrics into mc
func (lf *LazyFrame) WithMetrics(mc *monitoring.MetricsCollector) *LazyFrame {
	out := *lf
	out.metrics = mc
	return &out
}

// WithAllocator returns a LazyFrame whose results are allocated from mem
func (lf *LazyFrame) WithAllocator(mem memory.Allocator) *LazyFrame {
	out := *lf
	out.mem = mem
	return &out
}

// append resolves node against the current schema and returns the extended
// frame. The first resolution error sticks and later nodes are not resolved.
func (lf *LazyFrame) append(node PlanNode) *LazyFrame {
	out := *lf
	out.nodes = append(slices.Clip(lf.nodes), node)
	if lf.err != nil {
		return &out
	}
	schema, err := node.outputSchema(lf.schema)
	if err != nil {
		out.err = fmt.Errorf("%s: %w", node.Kind(), err)
		return &out
	}
	out.schema = schema
	return &out
}

// Filter keeps rows where predicate is true (bool) or non-zero (numeric)
func (lf *LazyFrame) Filter(predicate expr.Expr) *LazyFrame {
	return lf.append(&FilterNode{predicate: predicate})
}

// Select keeps the named columns in the given order
func (lf *LazyFrame) Select(columns ...string) *LazyFrame {
	exprs := make([]expr.Expr, len(columns))
	for i, name := range columns {
		exprs[i] = expr.Col(name)
	}
	return lf.Project(exprs...)
}

// Project replaces the columns with the results of exprs
func (lf *LazyFrame) Project(exprs ...expr.Expr) *LazyFrame {
	return lf.append(&ProjectNode{exprs: slices.Clone(exprs)})
}

// WithColumns appends one column per expression. Every expression is
// evaluated against the input columns; an output name that already exists
// is an error.
func (lf *LazyFrame) WithColumns(exprs ...expr.Expr) *LazyFrame {
	return lf.append(&WithColumnsNode{exprs: slices.Clone(exprs)})
}

// WithColumn appends a single named column
func (lf *LazyFrame) WithColumn(name string, e expr.Expr) *LazyFrame {
	return lf.WithColumns(expr.Alias(e, name))
}

// Sort orders rows by one column
func (lf *LazyFrame) Sort(column string, descending bool) *LazyFrame {
	return lf.SortBy(SortKey{Column: column, Descending: descending})
}

// SortBy orders rows by several columns, the first key taking priority
func (lf *LazyFrame) SortBy(keys ...SortKey) *LazyFrame {
	return lf.append(&SortNode{keys: slices.Clone(keys)})
}

// Limit keeps the first n rows
func (lf *LazyFrame) Limit(n int) *LazyFrame {
	return lf.append(&LimitNode{n: n})
}

// GroupBy starts a grouped aggregation over the key columns
func (lf *LazyFrame) GroupBy(keys ...string) *LazyGroupBy {
	return &LazyGroupBy{lazyFrame: lf, keys: slices.Clone(keys)}
}

// LazyGroupBy represents a lazy groupby operation that can be followed by aggregations
type LazyGroupBy struct {
	lazyFrame *LazyFrame
	keys      []string
}

// Agg appends the grouped aggregation and returns a new LazyFrame
func (lgb *LazyGroupBy) Agg(aggs ...expr.Expr) *LazyFrame {
	return lgb.lazyFrame.append(&GroupByAggNode{keys: lgb.keys, aggs: slices.Clone(aggs)})
}

// Sum creates a sum aggregation for the specified column
func (lgb *LazyGroupBy) Sum(column string) *LazyFrame {
	return lgb.Agg(expr.Sum(expr.Col(column)))
}

// Count creates a count aggregation for the specified column
func (lgb *LazyGroupBy) Count(column string) *LazyFrame {
	return lgb.Agg(expr.Count(expr.Col(column)))
}

// Mean creates a mean aggregation for the specified column
func (lgb *LazyGroupBy) Mean(column string) *LazyFrame {
	return lgb.Agg(expr.Mean(expr.Col(column)))
}

// Schema returns the resolved output schema, or nil after a build error
func (lf *LazyFrame) Schema() series.Schema {
	if lf.err != nil {
		return nil
	}
	return lf.schema
}

// Err returns the first error found while building the plan
func (lf *LazyFrame) Err() error {
	return lf.err
}

// Nodes returns the plan as written, scan first
func (lf *LazyFrame) Nodes() []PlanNode {
	return slices.Clone(lf.nodes)
}

// Collect optimizes and executes the plan. The result is owned by the caller.
func (lf *LazyFrame) Collect() (*DataFrame, error) {
	if lf.err != nil {
		return nil, lf.err
	}
	optimized := NewQueryOptimizer(lf.cfg).Optimize(lf.nodes)
	return newExecutor(lf.cfg, lf.mem, lf.metrics).run(optimized.Nodes)
}

// Explain returns the plan as written and after optimization, without executing it
func (lf *LazyFrame) Explain() (monitoring.QueryPlan, error) {
	if lf.err != nil {
		return monitoring.QueryPlan{}, lf.err
	}

	builder := monitoring.NewPlanBuilder()
	for _, node := range lf.nodes {
		builder.AddOriginal(node.Kind(), node.String())
	}

	optimized := NewQueryOptimizer(lf.cfg).Optimize(lf.nodes)
	schemas, err := planSchemas(optimized.Nodes)
	if err != nil {
		return monitoring.QueryPlan{}, err
	}
	for i, node := range optimized.Nodes {
		builder.AddOperation(node.Kind(), node.String(), schemas[i].Names())
	}
	for _, rule := range optimized.Rules {
		builder.AddRule(rule)
	}
	builder.SetPasses(optimized.Passes)
	return builder.Build(), nil
}

// String returns a string representation of the lazy frame and its operations
func (lf *LazyFrame) String() string {
	var b strings.Builder
	b.WriteString("LazyFrame:\n")
	for i, node := range lf.nodes {
		fmt.Fprintf(&b, "  %d. %s %s\n", i, node.Kind(), node)
	}
	if lf.err != nil {
		fmt.Fprintf(&b, "  error: %v\n", lf.err)
	}
	return b.String()
}

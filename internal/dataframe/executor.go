package dataframe

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/config"
	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/expr"
	"github.com/paveg/gibbon/internal/monitoring"
	"github.com/paveg/gibbon/internal/series"
	"golang.org/x/sync/errgroup"
)

// executor materializes one frame per plan node.
type executor struct {
	cfg     config.Config
	mem     memory.Allocator
	eval    *expr.Evaluator
	metrics *monitoring.MetricsCollector
}

func newExecutor(cfg config.Config, mem memory.Allocator, metrics *monitoring.MetricsCollector) *executor {
	return &executor{
		cfg:     cfg,
		mem:     mem,
		eval:    expr.NewEvaluator(mem),
		metrics: metrics,
	}
}

// run executes a plan whose first node is a ScanNode. The source frame is
// left untouched; every intermediate frame is released once consumed.
func (ex *executor) run(nodes []PlanNode) (*DataFrame, error) {
	scan, ok := nodes[0].(*ScanNode)
	if !ok {
		return nil, errors.NewInternalError("execute", fmt.Errorf("plan must start with a scan, got %s", nodes[0].Kind()))
	}

	current := scan.source.Clone()
	for _, node := range nodes[1:] {
		var next *DataFrame
		err := ex.metrics.RecordOperation(node.Kind(), current.Len(), func() (monitoring.StepResult, error) {
			var parallel bool
			var err error
			next, parallel, err = ex.step(node, current)
			if err != nil {
				return monitoring.StepResult{}, err
			}
			return monitoring.StepResult{RowsOut: next.Len(), Parallel: parallel}, nil
		})
		current.Release()
		if err != nil {
			return nil, fmt.Errorf("executing %s: %w", node.Kind(), err)
		}
		current = next
	}
	return current, nil
}

func (ex *executor) step(node PlanNode, df *DataFrame) (*DataFrame, bool, error) {
	switch n := node.(type) {
	case *FilterNode:
		out, err := ex.filter(n, df)
		return out, false, err
	case *ProjectNode:
		cols, parallel, err := ex.evaluateAll(n.exprs, df)
		if err != nil {
			return nil, parallel, err
		}
		out, err := newFromResults(cols, df.Len())
		return out, parallel, err
	case *WithColumnsNode:
		cols, parallel, err := ex.evaluateAll(n.exprs, df)
		if err != nil {
			return nil, parallel, err
		}
		all := make([]*series.Series, 0, df.Width()+len(cols))
		for _, col := range df.columns {
			all = append(all, col.Clone())
		}
		all = append(all, cols...)
		out, err := newFromResults(all, df.Len())
		return out, parallel, err
	case *GroupByAggNode:
		return ex.groupBy(n, df)
	case *SortNode:
		indices, err := sortIndices(df, n.keys)
		if err != nil {
			return nil, false, err
		}
		return df.Take(indices, ex.mem), false, nil
	case *LimitNode:
		return df.Slice(0, n.n), false, nil
	}
	return nil, false, errors.NewUnsupportedTypeError("execute", node.Kind())
}

func (ex *executor) filter(n *FilterNode, df *DataFrame) (*DataFrame, error) {
	mask, err := ex.eval.Evaluate(n.predicate, df)
	if err != nil {
		return nil, err
	}
	defer mask.Release()

	keep, err := series.Truthy(mask)
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			indices = append(indices, i)
		}
	}
	if len(indices) == df.Len() {
		return df.Clone(), nil
	}
	return df.Take(indices, ex.mem), nil
}

func (ex *executor) groupBy(n *GroupByAggNode, df *DataFrame) (*DataFrame, bool, error) {
	keys := make([]*series.Series, len(n.keys))
	for i, name := range n.keys {
		col, ok := df.Column(name)
		if !ok {
			return nil, false, errors.NewColumnNotFoundError("group_by", name)
		}
		keys[i] = col
	}

	groups := series.GroupRows(df.Len(), keys...)
	first := groups.First()

	aggs, parallel, err := ex.parallelEach(len(n.aggs), df.Len(), func(i int) (*series.Series, error) {
		return ex.eval.EvaluateAggregation(n.aggs[i], df, groups)
	})
	if err != nil {
		return nil, parallel, err
	}

	cols := make([]*series.Series, 0, len(keys)+len(aggs))
	for _, key := range keys {
		cols = append(cols, key.Take(first, ex.mem))
	}
	cols = append(cols, aggs...)
	out, err := newFromResults(cols, groups.Len())
	return out, parallel, err
}

// evaluateAll evaluates independent expressions against df, in parallel
// when the frame is large enough. Results keep the order of exprs.
func (ex *executor) evaluateAll(exprs []expr.Expr, df *DataFrame) ([]*series.Series, bool, error) {
	return ex.parallelEach(len(exprs), df.Len(), func(i int) (*series.Series, error) {
		return ex.eval.Evaluate(exprs[i], df)
	})
}

// parallelEach runs fn for 0..n-1 and returns the results by index. When
// several calls fail, the error of the lowest index wins so the reported
// error does not depend on scheduling.
func (ex *executor) parallelEach(n, rows int, fn func(i int) (*series.Series, error)) ([]*series.Series, bool, error) {
	results := make([]*series.Series, n)
	errs := make([]error, n)

	parallel := n > 1 && rows >= ex.cfg.ParallelThreshold
	if parallel {
		var g errgroup.Group
		g.SetLimit(max(ex.cfg.MaxParallelism, 1))
		for i := range n {
			g.Go(func() error {
				results[i], errs[i] = fn(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range n {
			results[i], errs[i] = fn(i)
			if errs[i] != nil {
				break
			}
		}
	}

	for _, err := range errs {
		if err != nil {
			releaseAll(results)
			return nil, parallel, err
		}
	}
	return results, parallel, nil
}

// newFromResults builds a frame from freshly computed columns, releasing
// them if they do not form a valid frame.
func newFromResults(cols []*series.Series, length int) (*DataFrame, error) {
	out, err := New(cols...)
	if err != nil {
		releaseAll(cols)
		return nil, err
	}
	out.length = length
	return out, nil
}

package dataframe

import (
	"fmt"
	"strings"

	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/expr"
	"github.com/paveg/gibbon/internal/series"
	"github.com/paveg/gibbon/internal/validation"
)

// PlanNode is one step of a linear query plan. Every node except ScanNode
// reads the output of the node before it.
type PlanNode interface {
	Kind() string
	String() string
	// outputSchema resolves the node against its input schema, reporting
	// schema errors before anything executes.
	outputSchema(input series.Schema) (series.Schema, error)
}

// ScanNode produces the source frame unchanged.
type ScanNode struct {
	source *DataFrame
}

func (n *ScanNode) Kind() string { return "Scan" }

func (n *ScanNode) String() string {
	return fmt.Sprintf("[%s]", strings.Join(n.source.Columns(), ", "))
}

func (n *ScanNode) outputSchema(series.Schema) (series.Schema, error) {
	return n.source.Schema(), nil
}

// FilterNode keeps the rows whose predicate is true or non-zero.
type FilterNode struct {
	predicate expr.Expr
}

func (n *FilterNode) Kind() string { return "Filter" }

func (n *FilterNode) String() string { return n.predicate.String() }

// Predicate returns the filter condition.
func (n *FilterNode) Predicate() expr.Expr { return n.predicate }

func (n *FilterNode) outputSchema(input series.Schema) (series.Schema, error) {
	if err := expr.Validate(n.predicate, expr.ContextRow); err != nil {
		return nil, err
	}
	field, err := expr.Resolve(n.predicate, input)
	if err != nil {
		return nil, err
	}
	if field.Dtype != series.Bool && !field.Dtype.IsNumeric() {
		return nil, errors.NewTypeMismatchError("filter",
			fmt.Sprintf("predicate %s has dtype %s, want bool or numeric", n.predicate, field.Dtype))
	}
	return input, nil
}

// ProjectNode replaces the columns with the results of its expressions.
type ProjectNode struct {
	exprs []expr.Expr
}

func (n *ProjectNode) Kind() string { return "Project" }

func (n *ProjectNode) String() string { return joinExprs(n.exprs) }

// Exprs returns the projected expressions.
func (n *ProjectNode) Exprs() []expr.Expr { return n.exprs }

func (n *ProjectNode) outputSchema(input series.Schema) (series.Schema, error) {
	if err := validation.ValidateNotEmpty(len(n.exprs), "select", "expression"); err != nil {
		return nil, err
	}
	return resolveOutputs("select", n.exprs, expr.ContextRow, input, nil)
}

// passThrough reports whether every expression is a bare column reference.
func (n *ProjectNode) passThrough() bool {
	for _, e := range n.exprs {
		if _, ok := e.(*expr.ColumnExpr); !ok {
			return false
		}
	}
	return true
}

// WithColumnsNode appends the results of its expressions to the input columns.
// Expressions see the input frame, not each other.
type WithColumnsNode struct {
	exprs []expr.Expr
}

func (n *WithColumnsNode) Kind() string { return "WithColumns" }

func (n *WithColumnsNode) String() string { return joinExprs(n.exprs) }

// Exprs returns the appended expressions.
func (n *WithColumnsNode) Exprs() []expr.Expr { return n.exprs }

func (n *WithColumnsNode) outputSchema(input series.Schema) (series.Schema, error) {
	if err := validation.ValidateNotEmpty(len(n.exprs), "with_columns", "expression"); err != nil {
		return nil, err
	}
	return resolveOutputs("with_columns", n.exprs, expr.ContextWithColumns, input, input)
}

func (n *WithColumnsNode) hasWindow() bool {
	for _, e := range n.exprs {
		if containsWindow(e) {
			return true
		}
	}
	return false
}

// GroupByAggNode produces one row per distinct key tuple: the key columns
// followed by one column per aggregate.
type GroupByAggNode struct {
	keys []string
	aggs []expr.Expr
}

func (n *GroupByAggNode) Kind() string { return "GroupByAgg" }

func (n *GroupByAggNode) String() string {
	return fmt.Sprintf("by [%s] agg [%s]", strings.Join(n.keys, ", "), joinExprs(n.aggs))
}

// Keys returns the grouping columns.
func (n *GroupByAggNode) Keys() []string { return n.keys }

// Aggs returns the aggregate expressions.
func (n *GroupByAggNode) Aggs() []expr.Expr { return n.aggs }

func (n *GroupByAggNode) outputSchema(input series.Schema) (series.Schema, error) {
	if err := validation.Validate(
		validation.NewNotEmptyValidator(len(n.aggs), "group_by", "aggregation"),
		validation.NewColumnValidator(input, "group_by", n.keys...),
		validation.NewUniqueValidator("group_by", n.keys),
	); err != nil {
		return nil, err
	}
	out := make(series.Schema, 0, len(n.keys)+len(n.aggs))
	seen := make(map[string]bool, cap(out))
	for _, key := range n.keys {
		dtype, _ := input.Lookup(key)
		seen[key] = true
		out = append(out, series.Field{Name: key, Dtype: dtype})
	}
	for _, agg := range n.aggs {
		if err := expr.Validate(agg, expr.ContextGroupBy); err != nil {
			return nil, err
		}
		field, err := expr.Resolve(agg, input)
		if err != nil {
			return nil, err
		}
		if seen[field.Name] {
			return nil, errors.NewDuplicateColumnError("group_by", field.Name)
		}
		seen[field.Name] = true
		out = append(out, field)
	}
	return out, nil
}

// SortKey orders rows by one column.
type SortKey struct {
	Column     string
	Descending bool
}

func (k SortKey) String() string {
	if k.Descending {
		return k.Column + " desc"
	}
	return k.Column + " asc"
}

// SortNode orders rows stably by its keys, nulls last.
type SortNode struct {
	keys []SortKey
}

func (n *SortNode) Kind() string { return "Sort" }

func (n *SortNode) String() string {
	parts := make([]string, len(n.keys))
	for i, k := range n.keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

// Keys returns the sort keys in priority order.
func (n *SortNode) Keys() []SortKey { return n.keys }

func (n *SortNode) outputSchema(input series.Schema) (series.Schema, error) {
	columns := make([]string, len(n.keys))
	for i, k := range n.keys {
		columns[i] = k.Column
	}
	if err := validation.Validate(
		validation.NewNotEmptyValidator(len(n.keys), "sort", "sort key"),
		validation.NewColumnValidator(input, "sort", columns...),
	); err != nil {
		return nil, err
	}
	return input, nil
}

// LimitNode keeps the first n rows.
type LimitNode struct {
	n int
}

func (n *LimitNode) Kind() string { return "Limit" }

func (n *LimitNode) String() string { return fmt.Sprintf("%d", n.n) }

// N returns the row limit.
func (n *LimitNode) N() int { return n.n }

func (n *LimitNode) outputSchema(input series.Schema) (series.Schema, error) {
	if err := validation.ValidateNonNegative(n.n, "limit", "limit"); err != nil {
		return nil, err
	}
	return input, nil
}

// resolveOutputs resolves exprs against input and appends their fields to
// base. Output names must be unique among themselves and against base.
func resolveOutputs(op string, exprs []expr.Expr, ctx expr.Context, input, base series.Schema) (series.Schema, error) {
	out := make(series.Schema, len(base), len(base)+len(exprs))
	copy(out, base)
	seen := make(map[string]bool, cap(out))
	for _, f := range base {
		seen[f.Name] = true
	}
	for _, e := range exprs {
		if err := expr.Validate(e, ctx); err != nil {
			return nil, err
		}
		field, err := expr.Resolve(e, input)
		if err != nil {
			return nil, err
		}
		if seen[field.Name] {
			return nil, errors.NewDuplicateColumnError(op, field.Name)
		}
		seen[field.Name] = true
		out = append(out, field)
	}
	return out, nil
}

// planSchemas resolves every node of a plan in order. schemas[i] is the
// output schema of nodes[i].
func planSchemas(nodes []PlanNode) ([]series.Schema, error) {
	if len(nodes) == 0 {
		return nil, errors.NewInternalError("plan", fmt.Errorf("empty plan"))
	}
	if _, ok := nodes[0].(*ScanNode); !ok {
		return nil, errors.NewInternalError("plan", fmt.Errorf("plan must start with a scan, got %s", nodes[0].Kind()))
	}
	schemas := make([]series.Schema, len(nodes))
	var input series.Schema
	for i, node := range nodes {
		schema, err := node.outputSchema(input)
		if err != nil {
			return nil, err
		}
		schemas[i] = schema
		input = schema
	}
	return schemas, nil
}

func containsWindow(e expr.Expr) bool {
	switch n := e.(type) {
	case *expr.WindowExpr:
		return true
	case *expr.AliasExpr:
		return containsWindow(n.Expr())
	case *expr.BinaryExpr:
		return containsWindow(n.Left()) || containsWindow(n.Right())
	}
	return false
}

func anyFallible(exprs []expr.Expr, schema series.Schema) bool {
	for _, e := range exprs {
		if expr.IsFallible(e, schema) {
			return true
		}
	}
	return false
}

func outputNames(exprs []expr.Expr) []string {
	names := make([]string, len(exprs))
	for i, e := range exprs {
		names[i] = expr.OutputName(e)
	}
	return names
}

func joinExprs(exprs []expr.Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

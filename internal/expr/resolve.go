package expr

import (
	"fmt"

	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/series"
)

// literalName is the output name of a bare literal.
const literalName = "literal"

// Context is the plan position an expression appears in.
type Context int

const (
	// ContextRow covers filter predicates and projections: no aggregates, no windows.
	ContextRow Context = iota
	// ContextWithColumns additionally admits window expressions.
	ContextWithColumns
	// ContextGroupBy requires an aggregate at the top, with row-level inputs.
	ContextGroupBy
)

func (c Context) String() string {
	switch c {
	case ContextWithColumns:
		return "with_columns"
	case ContextGroupBy:
		return "group_by"
	default:
		return "row"
	}
}

// Validate checks that aggregates and windows appear only where the plan
// position allows them.
func Validate(e Expr, ctx Context) error {
	switch ctx {
	case ContextGroupBy:
		agg, ok := unalias(e).(*AggregationExpr)
		if !ok {
			return errors.NewInvalidInputError("group_by",
				fmt.Sprintf("%s is not an aggregation", e))
		}
		return Validate(agg.column, ContextRow)
	default:
		return walk(e, func(node Expr) error {
			switch n := node.(type) {
			case *AggregationExpr:
				return errors.NewInvalidInputError(ctx.String(),
					fmt.Sprintf("aggregation %s is only valid inside group_by", n))
			case *WindowExpr:
				if ctx != ContextWithColumns {
					return errors.NewInvalidInputError(ctx.String(),
						fmt.Sprintf("window %s is only valid inside with_columns", n))
				}
				return Validate(n.agg.column, ContextRow)
			}
			return nil
		})
	}
}

// walk visits e and its children depth first, stopping at window and
// aggregation nodes so callers decide how to treat their inputs.
func walk(e Expr, visit func(Expr) error) error {
	if err := visit(e); err != nil {
		return err
	}
	switch n := e.(type) {
	case *BinaryExpr:
		if err := walk(n.left, visit); err != nil {
			return err
		}
		return walk(n.right, visit)
	case *AliasExpr:
		return walk(n.expr, visit)
	}
	return nil
}

func unalias(e Expr) Expr {
	if a, ok := e.(*AliasExpr); ok {
		return a.expr
	}
	return e
}

// OutputName returns the column name an expression produces.
// Column references keep their name, binary expressions take the name of
// their left operand and aggregates default to <func>_<input>.
func OutputName(e Expr) string {
	switch n := e.(type) {
	case *ColumnExpr:
		return n.name
	case *LiteralExpr:
		return literalName
	case *BinaryExpr:
		return OutputName(n.left)
	case *AliasExpr:
		return n.name
	case *AggregationExpr:
		if n.alias != "" {
			return n.alias
		}
		return fmt.Sprintf("%s_%s", n.aggType, OutputName(n.column))
	case *WindowExpr:
		if n.alias != "" {
			return n.alias
		}
		return OutputName(n.agg)
	}
	return ""
}

// LiteralDtype returns the dtype of a literal value.
func LiteralDtype(value any) (series.Dtype, error) {
	switch value.(type) {
	case int64:
		return series.Int64, nil
	case float64:
		return series.Float64, nil
	case string:
		return series.Utf8, nil
	case bool:
		return series.Bool, nil
	case uint, uint64:
		return 0, errors.NewInvalidInputError("literal", fmt.Sprintf("unsigned literal %v overflows int64", value))
	}
	return 0, errors.NewUnsupportedTypeError("literal", fmt.Sprintf("%T", value))
}

// Resolve determines the output field of e against a schema without evaluating it.
func Resolve(e Expr, schema series.Schema) (series.Field, error) {
	dtype, err := resolveDtype(e, schema)
	if err != nil {
		return series.Field{}, err
	}
	return series.Field{Name: OutputName(e), Dtype: dtype}, nil
}

func resolveDtype(e Expr, schema series.Schema) (series.Dtype, error) {
	switch n := e.(type) {
	case *ColumnExpr:
		dtype, ok := schema.Lookup(n.name)
		if !ok {
			return 0, errors.NewColumnNotFoundError("resolve", n.name)
		}
		return dtype, nil

	case *LiteralExpr:
		return LiteralDtype(n.value)

	case *AliasExpr:
		return resolveDtype(n.expr, schema)

	case *BinaryExpr:
		left, err := resolveDtype(n.left, schema)
		if err != nil {
			return 0, err
		}
		right, err := resolveDtype(n.right, schema)
		if err != nil {
			return 0, err
		}
		return binaryDtype(n.op, left, right)

	case *AggregationExpr:
		input, err := resolveDtype(n.column, schema)
		if err != nil {
			return 0, err
		}
		return AggregationDtype(n.aggType, input)

	case *WindowExpr:
		for _, key := range n.partitionBy {
			if _, ok := schema.Lookup(key); !ok {
				return 0, errors.NewColumnNotFoundError("window", key)
			}
		}
		return resolveDtype(n.agg, schema)
	}
	return 0, errors.NewUnsupportedTypeError("resolve", fmt.Sprintf("%T", e))
}

func binaryDtype(op BinaryOp, left, right series.Dtype) (series.Dtype, error) {
	switch {
	case op.IsArithmetic():
		return series.Promote(left, right)
	case op.IsComparison():
		if !series.Comparable(left, right) {
			return 0, errors.NewTypeMismatchError("compare",
				fmt.Sprintf("cannot compare %s with %s", left, right))
		}
		return series.Bool, nil
	default:
		if left != series.Bool || right != series.Bool {
			return 0, errors.NewTypeMismatchError("logical",
				fmt.Sprintf("logical %s requires bool operands, got %s and %s", op, left, right))
		}
		return series.Bool, nil
	}
}

// AggregationDtype returns the result dtype of an aggregation over an input dtype.
func AggregationDtype(aggType AggregationType, input series.Dtype) (series.Dtype, error) {
	switch aggType {
	case AggCount, AggNUnique:
		return series.Int64, nil
	case AggSum:
		if !input.IsNumeric() {
			return 0, errors.NewTypeMismatchError("sum", fmt.Sprintf("cannot sum %s", input))
		}
		return input, nil
	case AggMean:
		if !input.IsNumeric() {
			return 0, errors.NewTypeMismatchError("mean", fmt.Sprintf("cannot average %s", input))
		}
		return series.Float64, nil
	case AggMin, AggMax:
		if input == series.Bool {
			return 0, errors.NewTypeMismatchError(aggType.String(), "bool has no ordering for min/max")
		}
		return input, nil
	}
	return 0, errors.NewUnsupportedTypeError("aggregate", aggType.String())
}

// Columns returns the distinct column names e reads, in first-reference order.
func Columns(e Expr) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var visit func(Expr)
	visit = func(node Expr) {
		switch n := node.(type) {
		case *ColumnExpr:
			add(n.name)
		case *BinaryExpr:
			visit(n.left)
			visit(n.right)
		case *AliasExpr:
			visit(n.expr)
		case *AggregationExpr:
			visit(n.column)
		case *WindowExpr:
			visit(n.agg.column)
			for _, key := range n.partitionBy {
				add(key)
			}
		}
	}
	visit(e)
	return names
}

// IsFallible reports whether evaluating e can fail on some row values.
// That is the case when e contains an integer division. Expressions that do
// not resolve are treated as fallible.
func IsFallible(e Expr, schema series.Schema) bool {
	switch n := e.(type) {
	case *BinaryExpr:
		if n.op == OpDiv {
			left, lerr := resolveDtype(n.left, schema)
			right, rerr := resolveDtype(n.right, schema)
			if lerr != nil || rerr != nil || (left == series.Int64 && right == series.Int64) {
				return true
			}
		}
		return IsFallible(n.left, schema) || IsFallible(n.right, schema)
	case *AliasExpr:
		return IsFallible(n.expr, schema)
	case *AggregationExpr:
		return IsFallible(n.column, schema)
	case *WindowExpr:
		return IsFallible(n.agg.column, schema)
	case *ColumnExpr:
		_, ok := schema.Lookup(n.name)
		return !ok
	}
	return false
}

package expr

import (
	"fmt"
	"strings"
)

// AggregationType represents the type of aggregation function
type AggregationType int

const (
	AggSum AggregationType = iota
	AggCount
	AggMean
	AggMin
	AggMax
	AggNUnique
)

// Aggregation function name constants
const (
	AggNameSum     = "sum"
	AggNameCount   = "count"
	AggNameMean    = "mean"
	AggNameMin     = "min"
	AggNameMax     = "max"
	AggNameNUnique = "n_unique"
)

func (t AggregationType) String() string {
	switch t {
	case AggSum:
		return AggNameSum
	case AggCount:
		return AggNameCount
	case AggMean:
		return AggNameMean
	case AggMin:
		return AggNameMin
	case AggMax:
		return AggNameMax
	case AggNUnique:
		return AggNameNUnique
	default:
		return "unknown"
	}
}

// ParseAggregation maps a function name onto an AggregationType.
func ParseAggregation(name string) (AggregationType, error) {
	switch strings.ToLower(name) {
	case AggNameSum:
		return AggSum, nil
	case AggNameCount:
		return AggCount, nil
	case AggNameMean, "avg":
		return AggMean, nil
	case AggNameMin:
		return AggMin, nil
	case AggNameMax:
		return AggMax, nil
	case AggNameNUnique, "nunique", "count_distinct":
		return AggNUnique, nil
	default:
		return 0, fmt.Errorf("unknown aggregation %q", name)
	}
}

// AggregationExpr represents an aggregation function over a column
type AggregationExpr struct {
	column  Expr
	aggType AggregationType
	alias   string
}

func (a *AggregationExpr) Type() ExprType {
	return ExprAggregation
}

func (a *AggregationExpr) String() string {
	s := fmt.Sprintf("%s(%s)", a.aggType, a.column.String())
	if a.alias != "" {
		s += " AS " + a.alias
	}
	return s
}

func (a *AggregationExpr) Column() Expr {
	return a.column
}

func (a *AggregationExpr) AggType() AggregationType {
	return a.aggType
}

func (a *AggregationExpr) Alias() string {
	return a.alias
}

// As sets an alias for the aggregation expression
func (a *AggregationExpr) As(alias string) *AggregationExpr {
	return &AggregationExpr{column: a.column, aggType: a.aggType, alias: alias}
}

// Over turns the aggregation into a window expression partitioned by the
// given columns. With no partition columns the whole table is one partition.
func (a *AggregationExpr) Over(partitionBy ...string) *WindowExpr {
	return &WindowExpr{agg: a, partitionBy: partitionBy}
}

// Aggregation constructor functions

// Agg creates an aggregation expression of the given type
func Agg(aggType AggregationType, column Expr) *AggregationExpr {
	return &AggregationExpr{column: column, aggType: aggType}
}

// Sum creates a sum aggregation expression
func Sum(column Expr) *AggregationExpr {
	return Agg(AggSum, column)
}

// Count creates a count aggregation expression
func Count(column Expr) *AggregationExpr {
	return Agg(AggCount, column)
}

// Mean creates a mean aggregation expression
func Mean(column Expr) *AggregationExpr {
	return Agg(AggMean, column)
}

// Min creates a min aggregation expression
func Min(column Expr) *AggregationExpr {
	return Agg(AggMin, column)
}

// Max creates a max aggregation expression
func Max(column Expr) *AggregationExpr {
	return Agg(AggMax, column)
}

// NUnique creates a distinct-count aggregation expression
func NUnique(column Expr) *AggregationExpr {
	return Agg(AggNUnique, column)
}

// Aggregation methods on column expressions

// Sum creates a sum aggregation of this column
func (c *ColumnExpr) Sum() *AggregationExpr {
	return Sum(c)
}

// Count creates a count aggregation of this column
func (c *ColumnExpr) Count() *AggregationExpr {
	return Count(c)
}

// Mean creates a mean aggregation of this column
func (c *ColumnExpr) Mean() *AggregationExpr {
	return Mean(c)
}

// Min creates a min aggregation of this column
func (c *ColumnExpr) Min() *AggregationExpr {
	return Min(c)
}

// Max creates a max aggregation of this column
func (c *ColumnExpr) Max() *AggregationExpr {
	return Max(c)
}

// NUnique creates a distinct-count aggregation of this column
func (c *ColumnExpr) NUnique() *AggregationExpr {
	return NUnique(c)
}

// WindowExpr is an aggregate computed per partition and broadcast back to
// every row of that partition.
type WindowExpr struct {
	agg         *AggregationExpr
	partitionBy []string
	alias       string
}

func (w *WindowExpr) Type() ExprType {
	return ExprWindow
}

func (w *WindowExpr) String() string {
	s := fmt.Sprintf("%s(%s) OVER (PARTITION BY %s)",
		w.agg.aggType, w.agg.column.String(), strings.Join(w.partitionBy, ", "))
	if w.alias != "" {
		s += " AS " + w.alias
	}
	return s
}

func (w *WindowExpr) Aggregation() *AggregationExpr {
	return w.agg
}

func (w *WindowExpr) PartitionBy() []string {
	return w.partitionBy
}

func (w *WindowExpr) Alias() string {
	return w.alias
}

// As sets an alias for the window expression
func (w *WindowExpr) As(alias string) *WindowExpr {
	return &WindowExpr{agg: w.agg, partitionBy: w.partitionBy, alias: alias}
}

package expr

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/series"
)

// Frame is the table view an expression is evaluated against.
type Frame interface {
	Column(name string) (*series.Series, bool)
	Len() int
}

// Evaluator evaluates expressions against the columns of a Frame
type Evaluator struct {
	mem memory.Allocator
}

// NewEvaluator creates a new expression evaluator
func NewEvaluator(mem memory.Allocator) *Evaluator {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Evaluator{mem: mem}
}

// Evaluate evaluates a row-level or window expression, returning one value
// per frame row. The result is named by OutputName and owned by the caller.
func (e *Evaluator) Evaluate(ex Expr, frame Frame) (*series.Series, error) {
	switch n := ex.(type) {
	case *ColumnExpr:
		return e.evaluateColumn(n, frame)
	case *LiteralExpr:
		return e.evaluateLiteral(n, frame)
	case *BinaryExpr:
		return e.evaluateBinary(n, frame)
	case *AliasExpr:
		inner, err := e.Evaluate(n.expr, frame)
		if err != nil {
			return nil, err
		}
		defer inner.Release()
		return inner.Rename(n.name), nil
	case *WindowExpr:
		return e.evaluateWindow(n, frame)
	case *AggregationExpr:
		return nil, errors.NewInvalidInputError("evaluate",
			fmt.Sprintf("aggregation %s is only valid inside group_by", n))
	default:
		return nil, errors.NewUnsupportedTypeError("evaluate", fmt.Sprintf("%T", ex))
	}
}

func (e *Evaluator) evaluateColumn(ex *ColumnExpr, frame Frame) (*series.Series, error) {
	col, ok := frame.Column(ex.name)
	if !ok {
		return nil, errors.NewColumnNotFoundError("evaluate", ex.name)
	}
	return col.Clone(), nil
}

func (e *Evaluator) evaluateLiteral(ex *LiteralExpr, frame Frame) (*series.Series, error) {
	dtype, err := LiteralDtype(ex.value)
	if err != nil {
		return nil, err
	}
	return series.Broadcast(literalName, ex.value, dtype, frame.Len(), e.mem)
}

func (e *Evaluator) evaluateBinary(ex *BinaryExpr, frame Frame) (*series.Series, error) {
	left, err := e.Evaluate(ex.left, frame)
	if err != nil {
		return nil, err
	}
	defer left.Release()

	right, err := e.Evaluate(ex.right, frame)
	if err != nil {
		return nil, err
	}
	defer right.Release()

	if op, ok := arithOps[ex.op]; ok {
		return series.Arithmetic(op, left, right, e.mem)
	}
	if op, ok := compareOps[ex.op]; ok {
		return series.Compare(op, left, right, e.mem)
	}
	if ex.op == OpAnd {
		return series.Logical(series.OpAnd, left, right, e.mem)
	}
	return series.Logical(series.OpOr, left, right, e.mem)
}

var arithOps = map[BinaryOp]series.ArithOp{
	OpAdd: series.OpAdd, OpSub: series.OpSub, OpMul: series.OpMul, OpDiv: series.OpDiv,
}

var compareOps = map[BinaryOp]series.CompareOp{
	OpEq: series.OpEq, OpNe: series.OpNe, OpLt: series.OpLt,
	OpLe: series.OpLe, OpGt: series.OpGt, OpGe: series.OpGe,
}

// EvaluateAggregation evaluates the aggregate's input over every frame row,
// then folds it per group. The result has one row per group.
func (e *Evaluator) EvaluateAggregation(ex Expr, frame Frame, groups *series.Groups) (*series.Series, error) {
	agg, ok := unalias(ex).(*AggregationExpr)
	if !ok {
		return nil, errors.NewInvalidInputError("group_by", fmt.Sprintf("%s is not an aggregation", ex))
	}
	input, err := e.Evaluate(agg.column, frame)
	if err != nil {
		return nil, err
	}
	defer input.Release()

	result, err := Aggregate(agg.aggType, input, groups, e.mem)
	if err != nil {
		return nil, err
	}
	defer result.Release()
	return result.Rename(OutputName(ex)), nil
}

// Package expr provides expression evaluation for DataFrame operations
package expr

import (
	"fmt"
	"math"
	"strings"
)

// ExprType represents the type of expression
type ExprType int

const (
	ExprColumn ExprType = iota
	ExprLiteral
	ExprBinary
	ExprAggregation
	ExprWindow
	ExprAlias
)

// Expr represents an expression that can be evaluated lazily
type Expr interface {
	Type() ExprType
	String() string
}

// ColumnExpr represents a column reference
type ColumnExpr struct {
	name string
}

func (c *ColumnExpr) Type() ExprType {
	return ExprColumn
}

func (c *ColumnExpr) String() string {
	return fmt.Sprintf("col(%s)", c.name)
}

func (c *ColumnExpr) Name() string {
	return c.name
}

// LiteralExpr represents a literal value
type LiteralExpr struct {
	value any
}

func (l *LiteralExpr) Type() ExprType {
	return ExprLiteral
}

func (l *LiteralExpr) String() string {
	if s, ok := l.value.(string); ok {
		return fmt.Sprintf("lit(%q)", s)
	}
	return fmt.Sprintf("lit(%v)", l.value)
}

func (l *LiteralExpr) Value() any {
	return l.value
}

// BinaryOp represents binary operations
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var binaryOpNames = map[BinaryOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAnd: "&&", OpOr: "||",
}

var binaryOpWords = map[string]BinaryOp{
	"add": OpAdd, "sub": OpSub, "mul": OpMul, "div": OpDiv,
	"eq": OpEq, "ne": OpNe, "lt": OpLt, "le": OpLe, "gt": OpGt, "ge": OpGe,
	"and": OpAnd, "or": OpOr,
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpNames[op]; ok {
		return s
	}
	return "?"
}

// IsArithmetic reports whether op is +, -, * or /.
func (op BinaryOp) IsArithmetic() bool {
	return op <= OpDiv
}

// IsComparison reports whether op compares its operands.
func (op BinaryOp) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

// IsLogical reports whether op is AND or OR.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// ParseBinaryOp accepts either the symbol ("+", ">=") or the word form ("add", "ge").
func ParseBinaryOp(s string) (BinaryOp, error) {
	if op, ok := binaryOpWords[strings.ToLower(s)]; ok {
		return op, nil
	}
	for op, name := range binaryOpNames {
		if name == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// BinaryExpr represents a binary operation
type BinaryExpr struct {
	left  Expr
	op    BinaryOp
	right Expr
}

func (b *BinaryExpr) Type() ExprType {
	return ExprBinary
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.left.String(), b.op, b.right.String())
}

func (b *BinaryExpr) Left() Expr {
	return b.left
}

func (b *BinaryExpr) Op() BinaryOp {
	return b.op
}

func (b *BinaryExpr) Right() Expr {
	return b.right
}

// AliasExpr renames the output of another expression
type AliasExpr struct {
	expr Expr
	name string
}

func (a *AliasExpr) Type() ExprType {
	return ExprAlias
}

func (a *AliasExpr) String() string {
	return fmt.Sprintf("%s AS %s", a.expr.String(), a.name)
}

func (a *AliasExpr) Expr() Expr {
	return a.expr
}

func (a *AliasExpr) Name() string {
	return a.name
}

// Constructor functions

// Col creates a column expression
func Col(name string) *ColumnExpr {
	return &ColumnExpr{name: name}
}

// Lit creates a literal expression. Integers widen to int64 and float32 to
// float64. Unsigned values above math.MaxInt64 are kept as they are and fail
// dtype resolution.
func Lit(value any) *LiteralExpr {
	switch v := value.(type) {
	case int:
		value = int64(v)
	case int32:
		value = int64(v)
	case int16:
		value = int64(v)
	case int8:
		value = int64(v)
	case uint:
		if uint64(v) <= math.MaxInt64 {
			value = int64(v)
		}
	case uint64:
		if v <= math.MaxInt64 {
			value = int64(v)
		}
	case uint32:
		value = int64(v)
	case uint16:
		value = int64(v)
	case uint8:
		value = int64(v)
	case float32:
		value = float64(v)
	}
	return &LiteralExpr{value: value}
}

// Binary creates a binary expression
func Binary(op BinaryOp, left, right Expr) *BinaryExpr {
	return &BinaryExpr{left: left, op: op, right: right}
}

// And creates a logical AND of two predicates
func And(left, right Expr) *BinaryExpr {
	return &BinaryExpr{left: left, op: OpAnd, right: right}
}

// Or creates a logical OR of two predicates
func Or(left, right Expr) *BinaryExpr {
	return &BinaryExpr{left: left, op: OpOr, right: right}
}

// Alias names the output of e
func Alias(e Expr, name string) *AliasExpr {
	if inner, ok := e.(*AliasExpr); ok {
		e = inner.expr
	}
	return &AliasExpr{expr: e, name: name}
}

// Binary operations on column expressions

// Add creates an addition expression
func (c *ColumnExpr) Add(other Expr) *BinaryExpr {
	return Binary(OpAdd, c, other)
}

// Sub creates a subtraction expression
func (c *ColumnExpr) Sub(other Expr) *BinaryExpr {
	return Binary(OpSub, c, other)
}

// Mul creates a multiplication expression
func (c *ColumnExpr) Mul(other Expr) *BinaryExpr {
	return Binary(OpMul, c, other)
}

// Div creates a division expression
func (c *ColumnExpr) Div(other Expr) *BinaryExpr {
	return Binary(OpDiv, c, other)
}

// Eq creates an equality expression
func (c *ColumnExpr) Eq(other Expr) *BinaryExpr {
	return Binary(OpEq, c, other)
}

// Ne creates a not-equal expression
func (c *ColumnExpr) Ne(other Expr) *BinaryExpr {
	return Binary(OpNe, c, other)
}

// Lt creates a less-than expression
func (c *ColumnExpr) Lt(other Expr) *BinaryExpr {
	return Binary(OpLt, c, other)
}

// Le creates a less-than-or-equal expression
func (c *ColumnExpr) Le(other Expr) *BinaryExpr {
	return Binary(OpLe, c, other)
}

// Gt creates a greater-than expression
func (c *ColumnExpr) Gt(other Expr) *BinaryExpr {
	return Binary(OpGt, c, other)
}

// Ge creates a greater-than-or-equal expression
func (c *ColumnExpr) Ge(other Expr) *BinaryExpr {
	return Binary(OpGe, c, other)
}

// And creates a logical AND expression
func (c *ColumnExpr) And(other Expr) *BinaryExpr {
	return And(c, other)
}

// Or creates a logical OR expression
func (c *ColumnExpr) Or(other Expr) *BinaryExpr {
	return Or(c, other)
}

// As names the column reference
func (c *ColumnExpr) As(name string) *AliasExpr {
	return Alias(c, name)
}

// As names a constant column
func (l *LiteralExpr) As(name string) *AliasExpr {
	return Alias(l, name)
}

// Binary operations on binary expressions (for chaining)

// Add creates an addition expression
func (b *BinaryExpr) Add(other Expr) *BinaryExpr {
	return Binary(OpAdd, b, other)
}

// Sub creates a subtraction expression
func (b *BinaryExpr) Sub(other Expr) *BinaryExpr {
	return Binary(OpSub, b, other)
}

// Mul creates a multiplication expression
func (b *BinaryExpr) Mul(other Expr) *BinaryExpr {
	return Binary(OpMul, b, other)
}

// Div creates a division expression
func (b *BinaryExpr) Div(other Expr) *BinaryExpr {
	return Binary(OpDiv, b, other)
}

// And creates a logical AND expression
func (b *BinaryExpr) And(other Expr) *BinaryExpr {
	return And(b, other)
}

// Or creates a logical OR expression
func (b *BinaryExpr) Or(other Expr) *BinaryExpr {
	return Or(b, other)
}

// As names the result of the binary expression
func (b *BinaryExpr) As(name string) *AliasExpr {
	return Alias(b, name)
}

// Eq creates an equality expression
func (b *BinaryExpr) Eq(other Expr) *BinaryExpr {
	return Binary(OpEq, b, other)
}

// Ne creates a not-equal expression
func (b *BinaryExpr) Ne(other Expr) *BinaryExpr {
	return Binary(OpNe, b, other)
}

// Lt creates a less-than expression
func (b *BinaryExpr) Lt(other Expr) *BinaryExpr {
	return Binary(OpLt, b, other)
}

// Le creates a less-than-or-equal expression
func (b *BinaryExpr) Le(other Expr) *BinaryExpr {
	return Binary(OpLe, b, other)
}

// Gt creates a greater-than expression
func (b *BinaryExpr) Gt(other Expr) *BinaryExpr {
	return Binary(OpGt, b, other)
}

// Ge creates a greater-than-or-equal expression
func (b *BinaryExpr) Ge(other Expr) *BinaryExpr {
	return Binary(OpGe, b, other)
}

// Package errors provides standardized error types for table and pipeline operations.
// Every failure is classified into one of four kinds so callers can decide
// whether it is fatal (schema, value, source) or resumable (partial write).
package errors

import (
	"fmt"
)

// Kind classifies a DataFrameError.
type Kind int

const (
	// KindSchema covers unknown columns, duplicate output names and dtype mismatches.
	KindSchema Kind = iota + 1
	// KindValue covers integer division by zero and failed numeric casts.
	KindValue
	// KindSource covers malformed input rows and source/sink connectivity failures.
	KindSource
	// KindPartialWrite covers a failed sink batch after earlier batches succeeded.
	KindPartialWrite
	// KindInternal covers everything that indicates a bug rather than bad input.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "SchemaError"
	case KindValue:
		return "ValueError"
	case KindSource:
		return "SourceError"
	case KindPartialWrite:
		return "PartialWriteError"
	case KindInternal:
		return "InternalError"
	default:
		return "Error"
	}
}

// noRow marks errors that are not tied to a row.
const noRow = -1

// DataFrameError represents standardized errors across all operations
type DataFrameError struct {
	Kind    Kind   // Error classification
	Op      string // Operation name (e.g., "Filter", "Cast", "GroupBy")
	Column  string // Column name if applicable
	Row     int    // Row index if applicable, -1 otherwise
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *DataFrameError) Error() string {
	msg := e.Message
	if e.Row >= 0 {
		msg = fmt.Sprintf("%s (row %d)", msg, e.Row)
	}
	if e.Column != "" {
		return fmt.Sprintf("%s: %s operation failed on column '%s': %s", e.Kind, e.Op, e.Column, msg)
	}
	return fmt.Sprintf("%s: %s operation failed: %s", e.Kind, e.Op, msg)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *DataFrameError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a kind sentinel of the same kind, or an
// identical DataFrameError.
func (e *DataFrameError) Is(target error) bool {
	df, ok := target.(*DataFrameError)
	if !ok {
		return false
	}
	if df.Op == "" && df.Message == "" {
		return e.Kind == df.Kind
	}
	return e.Kind == df.Kind && e.Op == df.Op && e.Column == df.Column && e.Message == df.Message
}

// Kind sentinels for errors.Is checks.
var (
	ErrSchema       = &DataFrameError{Kind: KindSchema, Row: noRow}
	ErrValue        = &DataFrameError{Kind: KindValue, Row: noRow}
	ErrSource       = &DataFrameError{Kind: KindSource, Row: noRow}
	ErrPartialWrite = &DataFrameError{Kind: KindPartialWrite, Row: noRow}
)

// NewColumnNotFoundError creates an error for operations on non-existent columns
func NewColumnNotFoundError(op, column string) *DataFrameError {
	return &DataFrameError{
		Kind:    KindSchema,
		Op:      op,
		Column:  column,
		Row:     noRow,
		Message: "column does not exist",
	}
}

// NewDuplicateColumnError creates an error for an output name that already exists
func NewDuplicateColumnError(op, column string) *DataFrameError {
	return &DataFrameError{
		Kind:    KindSchema,
		Op:      op,
		Column:  column,
		Row:     noRow,
		Message: "duplicate output column name",
	}
}

// NewTypeMismatchError creates an error for dtype-incompatible operands
func NewTypeMismatchError(op, message string) *DataFrameError {
	return &DataFrameError{
		Kind:    KindSchema,
		Op:      op,
		Row:     noRow,
		Message: message,
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *DataFrameError {
	return &DataFrameError{
		Kind:    KindSchema,
		Op:      op,
		Row:     noRow,
		Message: message,
	}
}

// NewUnsupportedTypeError creates an error for unsupported data types
func NewUnsupportedTypeError(op, typeName string) *DataFrameError {
	return &DataFrameError{
		Kind:    KindSchema,
		Op:      op,
		Row:     noRow,
		Message: fmt.Sprintf("unsupported type: %s", typeName),
	}
}

// NewValueError creates an error for a value that cannot be computed
func NewValueError(op, column string, row int, message string) *DataFrameError {
	return &DataFrameError{
		Kind:    KindValue,
		Op:      op,
		Column:  column,
		Row:     row,
		Message: message,
	}
}

// NewInternalError creates an error for internal operation failures
func NewInternalError(op string, cause error) *DataFrameError {
	return &DataFrameError{
		Kind:    KindInternal,
		Op:      op,
		Row:     noRow,
		Message: "internal error occurred",
		Cause:   cause,
	}
}

package errors

import (
	"fmt"
)

// SourceError reports a fatal failure while reading input. Processed is the
// number of rows successfully consumed before the failure.
type SourceError struct {
	Op        string
	Row       int // offending row index, -1 if not row related
	Processed int
	Message   string
	Cause     error
}

// NewSourceError creates a SourceError for a malformed row.
func NewSourceError(op string, row, processed int, message string, cause error) *SourceError {
	return &SourceError{Op: op, Row: row, Processed: processed, Message: message, Cause: cause}
}

func (e *SourceError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Row >= 0 {
		return fmt.Sprintf("%s: %s failed at row %d after %d rows: %s", KindSource, e.Op, e.Row, e.Processed, msg)
	}
	return fmt.Sprintf("%s: %s failed after %d rows: %s", KindSource, e.Op, e.Processed, msg)
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}

// Is matches the ErrSource sentinel.
func (e *SourceError) Is(target error) bool {
	return target == ErrSource
}

// PartialWriteError reports a failed sink batch. Written rows are durable;
// the caller may retry the remaining Total-Written rows.
type PartialWriteError struct {
	Sink    string
	Written int
	Total   int
	Batch   int
	Cause   error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s: %s wrote %d of %d rows, batch %d failed: %v",
		KindPartialWrite, e.Sink, e.Written, e.Total, e.Batch, e.Cause)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Cause
}

// Is matches the ErrPartialWrite sentinel.
func (e *PartialWriteError) Is(target error) bool {
	return target == ErrPartialWrite
}

// Remaining returns how many rows were not written.
func (e *PartialWriteError) Remaining() int {
	return e.Total - e.Written
}

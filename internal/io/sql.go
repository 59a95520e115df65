package io

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/series"
	"github.com/paveg/gibbon/internal/validation"
)

// Dialect selects placeholder syntax and column types.
type Dialect string

const (
	// DialectSQLite uses "?" placeholders.
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres uses "$1, $2, ..." placeholders.
	DialectPostgres Dialect = "postgres"
)

// ParseDialect resolves a dialect name. The empty string is DialectSQLite.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(name)); d {
	case "", DialectSQLite, "sqlite3":
		return DialectSQLite, nil
	case DialectPostgres, "postgresql", "pgx":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unknown SQL dialect %q", name)
}

func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d Dialect) columnType(dtype series.Dtype) string {
	switch dtype {
	case series.Int64:
		if d == DialectPostgres {
			return "BIGINT"
		}
		return "INTEGER"
	case series.Float64:
		if d == DialectPostgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case series.Bool:
		return "BOOLEAN"
	}
	return "TEXT"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SQLSource reads the result of a query.
type SQLSource struct {
	db    *sql.DB
	query string
	args  []any
	mem   memory.Allocator
}

// NewSQLSource creates a source for query.
func NewSQLSource(db *sql.DB, query string, args []any, mem memory.Allocator) *SQLSource {
	return &SQLSource{db: db, query: query, args: args, mem: allocator(mem)}
}

// Read runs the query. Column types follow the scanned values; a column with
// only NULLs takes its type from the declared database type.
func (s *SQLSource) Read(ctx context.Context) (*dataframe.DataFrame, error) {
	const op = "read_sql"

	rows, err := s.db.QueryContext(ctx, s.query, s.args...)
	if err != nil {
		return nil, errors.NewSourceError(op, -1, 0, "running query", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, errors.NewSourceError(op, -1, 0, "reading columns", err)
	}
	hints := make([]series.Dtype, len(names))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, t := range types {
			hints[i] = declaredDtype(t.DatabaseTypeName())
		}
	}

	columns := make([][]any, len(names))
	scan := make([]any, len(names))
	for i := range scan {
		scan[i] = new(any)
	}
	n := 0
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, errors.NewSourceError(op, n, n, "scanning row", err)
		}
		for i, dst := range scan {
			cell, err := sqlCell(*(dst.(*any)))
			if err != nil {
				return nil, errors.NewSourceError(op, n, n, fmt.Sprintf("column %s", names[i]), err)
			}
			columns[i] = append(columns[i], cell)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewSourceError(op, -1, n, "iterating rows", err)
	}
	for i := range columns {
		if columns[i] == nil {
			columns[i] = []any{}
		}
	}

	df, err := frameFromColumns(names, columns, hints, s.mem)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return df, nil
}

func declaredDtype(name string) series.Dtype {
	name = strings.ToUpper(name)
	switch {
	case strings.Contains(name, "INT"):
		return series.Int64
	case strings.Contains(name, "REAL"), strings.Contains(name, "FLOA"),
		strings.Contains(name, "DOUB"), strings.Contains(name, "NUMERIC"), strings.Contains(name, "DECIMAL"):
		return series.Float64
	case strings.Contains(name, "BOOL"):
		return series.Bool
	}
	return series.Utf8
}

func sqlCell(v any) (any, error) {
	switch x := v.(type) {
	case nil, int64, float64, bool, string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	}
	return nil, fmt.Errorf("unsupported SQL value of type %T", v)
}

// SQLSinkOptions configures the target table.
type SQLSinkOptions struct {
	Table string
	// PrimaryKey names the key column. Empty means "id" when the frame has
	// one, otherwise a generated row_id counting from 1.
	PrimaryKey string
	// AuditColumn is a timestamp filled by the database at insert time.
	AuditColumn string
	// BatchSize is the number of rows per transaction.
	BatchSize int
	Dialect   Dialect
	// Indexes lists columns that get a secondary index.
	Indexes []string
}

// DefaultSQLSinkOptions returns options for table.
func DefaultSQLSinkOptions(table string) SQLSinkOptions {
	return SQLSinkOptions{
		Table:       table,
		AuditColumn: "anonymized_at",
		BatchSize:   DefaultBatchSize,
		Dialect:     DialectSQLite,
	}
}

// SQLSink replaces a table with the frame's rows.
type SQLSink struct {
	db      *sql.DB
	options SQLSinkOptions
}

// NewSQLSink creates a SQL sink.
func NewSQLSink(db *sql.DB, options SQLSinkOptions) *SQLSink {
	if options.BatchSize <= 0 {
		options.BatchSize = DefaultBatchSize
	}
	if options.Dialect == "" {
		options.Dialect = DialectSQLite
	}
	return &SQLSink{db: db, options: options}
}

// sqlColumn is one inserted column; source < 0 is the generated row id.
type sqlColumn struct {
	name   string
	dtype  series.Dtype
	source int
}

func (w *SQLSink) layout(df *dataframe.DataFrame) ([]sqlColumn, error) {
	pk := w.options.PrimaryKey
	if pk == "" && df.HasColumn("id") {
		pk = "id"
	}

	var cols []sqlColumn
	if pk == "" {
		cols = append(cols, sqlColumn{name: "row_id", dtype: series.Int64, source: -1})
	} else {
		if err := validation.ValidateColumns(df.Schema(), "write_sql", pk); err != nil {
			return nil, err
		}
		idx := df.Schema().Index(pk)
		cols = append(cols, sqlColumn{name: pk, dtype: df.Schema()[idx].Dtype, source: idx})
	}
	for i, field := range df.Schema() {
		if field.Name == pk {
			continue
		}
		cols = append(cols, sqlColumn{name: field.Name, dtype: field.Dtype, source: i})
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	var reserved []string
	if w.options.AuditColumn != "" {
		reserved = append(reserved, w.options.AuditColumn)
	}
	if err := validation.ValidateUnique("write_sql", names, reserved...); err != nil {
		return nil, err
	}
	return cols, nil
}

func (w *SQLSink) createStatements(cols []sqlColumn) []string {
	table := quoteIdent(w.options.Table)
	defs := make([]string, 0, len(cols)+1)
	for i, c := range cols {
		def := quoteIdent(c.name) + " " + w.options.Dialect.columnType(c.dtype)
		if i == 0 {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	if w.options.AuditColumn != "" {
		defs = append(defs, quoteIdent(w.options.AuditColumn)+" TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
	}

	stmts := []string{
		"DROP TABLE IF EXISTS " + table,
		fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", table, strings.Join(defs, ",\n\t")),
	}
	for _, col := range w.options.Indexes {
		index := quoteIdent(fmt.Sprintf("idx_%s_%s", w.options.Table, col))
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s)", index, table, quoteIdent(col)))
	}
	return stmts
}

func (w *SQLSink) insertStatement(cols []sqlColumn) string {
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.name)
		marks[i] = w.options.Dialect.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(w.options.Table), strings.Join(names, ", "), strings.Join(marks, ", "))
}

// Write drops and recreates the table, then inserts rows one transaction per
// batch. If a batch fails, earlier batches stay committed and the returned
// PartialWriteError says how many rows were written.
func (w *SQLSink) Write(ctx context.Context, df *dataframe.DataFrame) (WriteResult, error) {
	if w.options.Table == "" {
		return WriteResult{}, errors.NewInvalidInputError("write_sql", "table name is required")
	}
	cols, err := w.layout(df)
	if err != nil {
		return WriteResult{}, err
	}
	for _, stmt := range w.createStatements(cols) {
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return WriteResult{}, errors.NewSourceError("write_sql", -1, 0, "preparing table "+w.options.Table, err)
		}
	}

	insert := w.insertStatement(cols)
	result := WriteResult{Target: w.options.Table}
	for start := 0; start < df.Len(); start += w.options.BatchSize {
		end := min(start+w.options.BatchSize, df.Len())
		if err := w.writeBatch(ctx, insert, cols, df, start, end); err != nil {
			return result, &errors.PartialWriteError{
				Sink:    w.options.Table,
				Written: result.Rows,
				Total:   df.Len(),
				Batch:   result.Batches,
				Cause:   err,
			}
		}
		result.Rows = end
		result.Batches++
	}
	return result, nil
}

func (w *SQLSink) writeBatch(ctx context.Context, insert string, cols []sqlColumn, df *dataframe.DataFrame, start, end int) (err error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for row := start; row < end; row++ {
		for i, c := range cols {
			if c.source < 0 {
				args[i] = int64(row + 1)
				continue
			}
			args[i], _ = df.ColumnAt(c.source).Value(row)
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting row %d: %w", row, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

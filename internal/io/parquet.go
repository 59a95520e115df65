package io

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/series"
)

// ParquetOptions contains configuration options for Parquet operations
type ParquetOptions struct {
	// Compression is the page codec: snappy, gzip, lz4, zstd or uncompressed
	Compression string
	// RowGroupSize is the maximum number of rows per row group
	RowGroupSize int
}

// DefaultParquetOptions returns default Parquet options
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{
		Compression:  "snappy",
		RowGroupSize: 64 * 1024,
	}
}

// ParquetSource reads a Parquet file. Parquet compresses pages itself, so
// no stream codec applies.
type ParquetSource struct {
	reader io.Reader
	mem    memory.Allocator
}

// NewParquetSource creates a Parquet source
func NewParquetSource(reader io.Reader, mem memory.Allocator) *ParquetSource {
	return &ParquetSource{reader: reader, mem: allocator(mem)}
}

// Read loads the whole file.
func (s *ParquetSource) Read(ctx context.Context) (*dataframe.DataFrame, error) {
	const op = "read_parquet"

	// Parquet footers need random access.
	data, err := io.ReadAll(s.reader)
	if err != nil {
		return nil, errors.NewSourceError(op, -1, 0, "reading data", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewSourceError(op, -1, 0, "opening parquet file", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, s.mem)
	if err != nil {
		return nil, errors.NewSourceError(op, -1, 0, "creating arrow reader", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, errors.NewSourceError(op, -1, 0, "reading table", err)
	}
	defer table.Release()

	cols := make([]*series.Series, 0, table.NumCols())
	release := func() {
		for _, c := range cols {
			c.Release()
		}
	}
	for i := range int(table.NumCols()) {
		col, err := columnToSeries(table.Column(i), s.mem)
		if err != nil {
			release()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cols = append(cols, col)
	}

	df, err := dataframe.New(cols...)
	if err != nil {
		release()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return df, nil
}

// columnToSeries joins the chunks of a table column into one Series.
func columnToSeries(column *arrow.Column, mem memory.Allocator) (*series.Series, error) {
	dtype, err := series.DtypeOf(column.DataType())
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", column.Name(), err)
	}
	chunks := column.Data().Chunks()
	switch len(chunks) {
	case 0:
		return series.NewNull(column.Name(), dtype, 0, mem), nil
	case 1:
		return series.FromArray(column.Name(), chunks[0])
	}
	joined, err := array.Concatenate(chunks, mem)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", column.Name(), err)
	}
	defer joined.Release()
	return series.FromArray(column.Name(), joined)
}

// ParquetSink writes a frame as a single Parquet file.
type ParquetSink struct {
	writer  io.Writer
	options ParquetOptions
	mem     memory.Allocator
}

// NewParquetSink creates a Parquet sink
func NewParquetSink(writer io.Writer, options ParquetOptions, mem memory.Allocator) *ParquetSink {
	return &ParquetSink{writer: writer, options: options, mem: allocator(mem)}
}

func parquetCompression(name string) (compress.Compression, error) {
	switch name {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "uncompressed", "none":
		return compress.Codecs.Uncompressed, nil
	}
	return compress.Codecs.Uncompressed, fmt.Errorf("unknown parquet compression %q", name)
}

// Write writes every row of df.
func (w *ParquetSink) Write(_ context.Context, df *dataframe.DataFrame) (WriteResult, error) {
	compression, err := parquetCompression(w.options.Compression)
	if err != nil {
		return WriteResult{}, err
	}

	fields := make([]arrow.Field, df.Width())
	arrays := make([]arrow.Array, df.Width())
	for i := range df.Width() {
		col := df.ColumnAt(i)
		fields[i] = arrow.Field{Name: col.Name(), Type: col.DataType(), Nullable: true}
		arrays[i] = col.Array()
	}
	defer func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}()

	schema := arrow.NewSchema(fields, nil)
	record := array.NewRecord(schema, arrays, int64(df.Len()))
	defer record.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compression),
		parquet.WithAllocator(w.mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(w.mem))

	writer, err := pqarrow.NewFileWriter(schema, nopWriteCloser{w.writer}, props, arrowProps)
	if err != nil {
		return WriteResult{}, fmt.Errorf("creating parquet writer: %w", err)
	}

	rowGroup := int64(w.options.RowGroupSize)
	if rowGroup <= 0 {
		rowGroup = int64(DefaultParquetOptions().RowGroupSize)
	}
	table := array.NewTableFromRecords(schema, []arrow.Record{record})
	defer table.Release()
	if err := writer.WriteTable(table, rowGroup); err != nil {
		_ = writer.Close()
		return WriteResult{}, fmt.Errorf("writing parquet table: %w", err)
	}
	if err := writer.Close(); err != nil {
		return WriteResult{}, fmt.Errorf("closing parquet writer: %w", err)
	}
	return WriteResult{Target: string(FormatParquet), Rows: df.Len(), Batches: 1}, nil
}

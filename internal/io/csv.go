package io

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/series"
)

const (
	// Boolean string constants
	trueStr  = "true"
	falseStr = "false"

	// cancelCheckInterval is how many rows are read between context checks.
	cancelCheckInterval = 1024
)

// CSVOptions contains configuration options for CSV operations
type CSVOptions struct {
	// Delimiter is the field delimiter (default: comma)
	Delimiter rune
	// Comment is the comment character (default: 0 = disabled)
	Comment rune
	// Header indicates whether the first row contains headers
	Header bool
	// SkipInitialSpace indicates whether to skip initial whitespace
	SkipInitialSpace bool
	// InferRows is the number of rows sampled for type inference (0 = all rows)
	InferRows int
	// NullValues are cell texts read as null in addition to the empty string
	NullValues []string
	// Codec compresses or decompresses the stream
	Codec Codec
}

// DefaultCSVOptions returns default CSV options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter: ',',
		Header:    true,
		InferRows: DefaultInferRows,
		Codec:     CodecNone,
	}
}

// CSVSource reads delimited text with a header row and inferred column types.
type CSVSource struct {
	reader  io.Reader
	options CSVOptions
	mem     memory.Allocator
}

// NewCSVSource creates a CSV source with the specified options
func NewCSVSource(reader io.Reader, options CSVOptions, mem memory.Allocator) *CSVSource {
	return &CSVSource{reader: reader, options: options, mem: allocator(mem)}
}

// Read parses the whole stream. A row with the wrong number of fields, or a
// cell that does not parse as its column's inferred type, fails with a
// SourceError carrying the data row index and the rows read before it.
func (s *CSVSource) Read(ctx context.Context) (*dataframe.DataFrame, error) {
	const op = "read_csv"

	stream, err := s.options.Codec.NewReader(s.reader)
	if err != nil {
		return nil, errors.NewSourceError(op, -1, 0, "opening stream", err)
	}
	defer stream.Close()

	csvReader := csv.NewReader(stream)
	csvReader.Comma = s.options.Delimiter
	csvReader.Comment = s.options.Comment
	csvReader.TrimLeadingSpace = s.options.SkipInitialSpace
	csvReader.FieldsPerRecord = -1

	var headers []string
	var rows [][]string
	for {
		if len(rows)%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.NewSourceError(op, -1, len(rows), "read cancelled", err)
			}
		}

		record, err := csvReader.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.NewSourceError(op, len(rows), len(rows), "malformed row", err)
		}

		if headers == nil {
			if s.options.Header {
				headers = record
				continue
			}
			headers = make([]string, len(record))
			for i := range headers {
				headers[i] = fmt.Sprintf("column_%d", i)
			}
		}
		if len(record) != len(headers) {
			return nil, errors.NewSourceError(op, len(rows), len(rows),
				fmt.Sprintf("row has %d fields, header has %d", len(record), len(headers)), nil)
		}
		rows = append(rows, record)
	}

	columns := make([][]any, len(headers))
	hints := make([]series.Dtype, len(headers))
	for c := range headers {
		dtype := s.inferDataType(rows, c)
		hints[c] = dtype
		cells := make([]any, len(rows))
		for r, row := range rows {
			if s.isNull(row[c]) {
				continue
			}
			cell, err := parseCell(row[c], dtype)
			if err != nil {
				return nil, errors.NewSourceError(op, r, r,
					fmt.Sprintf("column %s: cannot parse %q as %s", headers[c], row[c], dtype), err)
			}
			cells[r] = cell
		}
		columns[c] = cells
	}

	df, err := frameFromColumns(headers, columns, hints, s.mem)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return df, nil
}

func (s *CSVSource) isNull(value string) bool {
	return value == "" || slices.Contains(s.options.NullValues, value)
}

// inferDataType determines the most specific type for a column from the sampled rows
func (s *CSVSource) inferDataType(rows [][]string, col int) series.Dtype {
	canBeInt := true
	canBeFloat := true
	canBeBool := true
	hasNonEmptyValue := false

	sample := rows
	if s.options.InferRows > 0 && len(sample) > s.options.InferRows {
		sample = sample[:s.options.InferRows]
	}
	for _, row := range sample {
		value := row[col]
		if s.isNull(value) {
			continue // Skip empty values for type inference
		}
		hasNonEmptyValue = true

		if canBeBool {
			lower := strings.ToLower(value)
			if lower != trueStr && lower != falseStr {
				canBeBool = false
			}
		}
		if canBeInt {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				canBeInt = false
			}
		}
		if canBeFloat {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				canBeFloat = false
			}
		}
	}

	switch {
	case !hasNonEmptyValue:
		return series.Utf8
	case canBeBool:
		return series.Bool
	case canBeInt:
		return series.Int64
	case canBeFloat:
		return series.Float64
	}
	return series.Utf8
}

func parseCell(value string, dtype series.Dtype) (any, error) {
	switch dtype {
	case series.Int64:
		return strconv.ParseInt(value, 10, 64)
	case series.Float64:
		return strconv.ParseFloat(value, 64)
	case series.Bool:
		return strconv.ParseBool(strings.ToLower(value))
	}
	return value, nil
}

// CSVSink writes a frame as delimited text. Nulls are written as empty cells.
type CSVSink struct {
	writer  io.Writer
	options CSVOptions
}

// NewCSVSink creates a CSV sink with the specified options
func NewCSVSink(writer io.Writer, options CSVOptions) *CSVSink {
	return &CSVSink{writer: writer, options: options}
}

// Write writes the frame, flushing and closing the compression stream.
func (w *CSVSink) Write(ctx context.Context, df *dataframe.DataFrame) (WriteResult, error) {
	stream, err := w.options.Codec.NewWriter(w.writer)
	if err != nil {
		return WriteResult{}, err
	}

	csvWriter := csv.NewWriter(stream)
	csvWriter.Comma = w.options.Delimiter

	if w.options.Header {
		if err := csvWriter.Write(df.Columns()); err != nil {
			return WriteResult{}, fmt.Errorf("writing headers: %w", err)
		}
	}

	row := make([]string, df.Width())
	for i := range df.Len() {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return WriteResult{}, err
			}
		}
		for j := range row {
			row[j] = df.ColumnAt(j).GetAsString(i)
		}
		if err := csvWriter.Write(row); err != nil {
			return WriteResult{}, fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return WriteResult{}, fmt.Errorf("flushing csv: %w", err)
	}
	if err := stream.Close(); err != nil {
		return WriteResult{}, fmt.Errorf("closing %s stream: %w", w.options.Codec, err)
	}
	return WriteResult{Target: string(FormatCSV), Rows: df.Len(), Batches: 1}, nil
}

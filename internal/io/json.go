package io

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/report"
)

// JSONFormat selects between a single array of records and one record per line.
type JSONFormat int

const (
	// JSONLines is newline-delimited JSON, one object per line.
	JSONLines JSONFormat = iota
	// JSONArray is a single top-level array of objects.
	JSONArray
)

// JSONOptions contains configuration options for JSON operations
type JSONOptions struct {
	Format JSONFormat
	Codec  Codec
}

// JSONSource reads records into a frame. Columns come in order of first
// appearance; missing keys and JSON nulls become nulls.
type JSONSource struct {
	reader  io.Reader
	options JSONOptions
	mem     memory.Allocator
}

// NewJSONSource creates a JSON source
func NewJSONSource(reader io.Reader, options JSONOptions, mem memory.Allocator) *JSONSource {
	return &JSONSource{reader: reader, options: options, mem: allocator(mem)}
}

// Read decodes every record. A record that is not an object, or a value that
// is not a scalar, fails with a SourceError.
func (s *JSONSource) Read(ctx context.Context) (*dataframe.DataFrame, error) {
	const op = "read_json"

	stream, err := s.options.Codec.NewReader(s.reader)
	if err != nil {
		return nil, errors.NewSourceError(op, -1, 0, "opening stream", err)
	}
	defer stream.Close()

	var records []map[string]any
	var names []string
	seen := make(map[string]bool)
	add := func(raw []byte) error {
		record, keys, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if !seen[key] {
				seen[key] = true
				names = append(names, key)
			}
		}
		records = append(records, record)
		return nil
	}

	switch s.options.Format {
	case JSONArray:
		var raws []json.RawMessage
		if err := json.NewDecoder(stream).Decode(&raws); err != nil {
			return nil, errors.NewSourceError(op, -1, 0, "decoding JSON array", err)
		}
		for i, raw := range raws {
			if err := add(raw); err != nil {
				return nil, errors.NewSourceError(op, i, i, "decoding JSON record", err)
			}
		}
	default:
		scanner := bufio.NewScanner(stream)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			if len(records)%cancelCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, errors.NewSourceError(op, -1, len(records), "read cancelled", err)
				}
			}
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue // Skip empty lines
			}
			if err := add(line); err != nil {
				return nil, errors.NewSourceError(op, len(records), len(records), "decoding JSON line", err)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.NewSourceError(op, -1, len(records), "scanning JSON lines", err)
		}
	}

	columns := make([][]any, len(names))
	for c, name := range names {
		cells := make([]any, len(records))
		for r, record := range records {
			cell, err := jsonCell(record[name])
			if err != nil {
				return nil, errors.NewSourceError(op, r, r, fmt.Sprintf("field %s", name), err)
			}
			cells[r] = cell
		}
		columns[c] = cells
	}

	df, err := frameFromColumns(names, columns, nil, s.mem)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return df, nil
}

// decodeRecord decodes one object and returns its keys in document order.
func decodeRecord(raw []byte) (map[string]any, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("record is not an object: %s", raw)
	}
	record := make(map[string]any)
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, nil, fmt.Errorf("field %s: %w", key, err)
		}
		if _, dup := record[key]; !dup {
			keys = append(keys, key)
		}
		record[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return record, keys, nil
}

func jsonCell(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string:
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s: %w", x, err)
		}
		return f, nil
	case float64:
		return x, nil
	}
	return nil, fmt.Errorf("unsupported JSON value of type %T", v)
}

// JSONSink writes one object per row with keys in column order.
type JSONSink struct {
	writer  io.Writer
	options JSONOptions
}

// NewJSONSink creates a JSON sink
func NewJSONSink(writer io.Writer, options JSONOptions) *JSONSink {
	return &JSONSink{writer: writer, options: options}
}

// Write encodes every row.
func (w *JSONSink) Write(ctx context.Context, df *dataframe.DataFrame) (WriteResult, error) {
	stream, err := w.options.Codec.NewWriter(w.writer)
	if err != nil {
		return WriteResult{}, err
	}
	bw := bufio.NewWriter(stream)

	keys := make([][]byte, df.Width())
	for j, name := range df.Columns() {
		if keys[j], err = json.Marshal(name); err != nil {
			return WriteResult{}, fmt.Errorf("encoding column name %s: %w", name, err)
		}
	}

	if w.options.Format == JSONArray {
		bw.WriteByte('[')
	}
	for i := range df.Len() {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return WriteResult{}, err
			}
		}
		if i > 0 && w.options.Format == JSONArray {
			bw.WriteByte(',')
		}
		bw.WriteByte('{')
		for j, v := range df.Row(i) {
			if j > 0 {
				bw.WriteByte(',')
			}
			value, err := json.Marshal(v)
			if err != nil {
				return WriteResult{}, fmt.Errorf("encoding row %d: %w", i, err)
			}
			bw.Write(keys[j])
			bw.WriteByte(':')
			bw.Write(value)
		}
		bw.WriteByte('}')
		if w.options.Format != JSONArray {
			bw.WriteByte('\n')
		}
	}
	if w.options.Format == JSONArray {
		bw.WriteByte(']')
	}

	if err := bw.Flush(); err != nil {
		return WriteResult{}, fmt.Errorf("writing json: %w", err)
	}
	if err := stream.Close(); err != nil {
		return WriteResult{}, fmt.Errorf("closing %s stream: %w", w.options.Codec, err)
	}
	return WriteResult{Target: string(FormatJSON), Rows: df.Len(), Batches: 1}, nil
}

// EnvelopeSink writes the run summary envelope as indented JSON.
type EnvelopeSink struct {
	writer  io.Writer
	options report.Options
}

// NewEnvelopeSink creates an envelope sink.
func NewEnvelopeSink(writer io.Writer, options report.Options) *EnvelopeSink {
	return &EnvelopeSink{writer: writer, options: options}
}

// Write summarizes df on its own, so total and filtered row counts are equal.
// Pipelines call WriteEnvelope with the source row count instead.
func (w *EnvelopeSink) Write(ctx context.Context, df *dataframe.DataFrame) (WriteResult, error) {
	env, err := report.Build(df.Len(), df, w.options)
	if err != nil {
		return WriteResult{}, err
	}
	return w.WriteEnvelope(ctx, env)
}

// WriteEnvelope encodes a prepared envelope.
func (w *EnvelopeSink) WriteEnvelope(_ context.Context, env report.Envelope) (WriteResult, error) {
	if err := env.Encode(w.writer); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Target: "envelope", Rows: len(env.Data), Batches: 1}, nil
}

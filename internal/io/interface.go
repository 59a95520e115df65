// Package io provides the sources that produce frames and the sinks that
// consume them.
//
// Key components:
//   - Source/Sink interfaces for pluggable I/O backends
//   - CSV, JSON and Parquet file adapters with optional stream compression
//   - SQL adapters on database/sql with batched, transactional writes
//   - a seeded synthetic customer source for demos
//   - the envelope sink, which stores the run summary instead of rows
//
// Memory management: frames returned by a Source own their Arrow buffers
// and must be released by the caller.
package io

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/report"
)

const (
	// DefaultBatchSize is the number of rows per SQL insert transaction.
	DefaultBatchSize = 100
	// DefaultInferRows is the number of CSV rows sampled for type inference.
	DefaultInferRows = 1000
)

// Source produces a frame.
type Source interface {
	Read(ctx context.Context) (*dataframe.DataFrame, error)
}

// Sink consumes a frame.
type Sink interface {
	Write(ctx context.Context, df *dataframe.DataFrame) (WriteResult, error)
}

// EnvelopeWriter is implemented by sinks that store the run summary rather
// than the rows themselves.
type EnvelopeWriter interface {
	WriteEnvelope(ctx context.Context, env report.Envelope) (WriteResult, error)
}

// WriteResult describes a completed write.
type WriteResult struct {
	Target  string // table name or format
	Rows    int
	Batches int
}

// Format names a file layout.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// FormatForPath picks a format from a file name, ignoring any compression
// extension: "people.csv.zst" is CSV.
func FormatForPath(path string) (Format, error) {
	name := strings.ToLower(filepath.Base(path))
	if codec := CodecForPath(name); codec != CodecNone {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	switch filepath.Ext(name) {
	case ".csv", ".tsv":
		return FormatCSV, nil
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	}
	return "", fmt.Errorf("cannot infer file format from %q", path)
}

func allocator(mem memory.Allocator) memory.Allocator {
	if mem == nil {
		return memory.NewGoAllocator()
	}
	return mem
}

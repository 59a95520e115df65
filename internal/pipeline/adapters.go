package pipeline

import (
	"database/sql"
	"fmt"
	goio "io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/paveg/gibbon/internal/io"
	"github.com/paveg/gibbon/internal/report"

	// Registers the "sqlite3" database/sql driver.
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDriver is used when a SQL source or sink names no driver.
const DefaultDriver = "sqlite3"

// closers releases the files and connections an adapter opened, last first.
type closers []func() error

func (c *closers) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closers) close() error {
	var first error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (p *Pipeline) openSource(spec SourceSpec) (io.Source, closers, error) {
	var cl closers

	kind, err := adapterKind(spec.Type, spec.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("source: %w", err)
	}

	switch kind {
	case "synthetic":
		return io.NewSyntheticSource(spec.Rows, spec.Seed, p.mem), nil, nil
	case "sql":
		if spec.Query == "" {
			return nil, nil, fmt.Errorf("source: sql needs a query")
		}
		db, err := p.database(spec.Driver, spec.DSN, &cl)
		if err != nil {
			return nil, nil, fmt.Errorf("source: %w", err)
		}
		return io.NewSQLSource(db, spec.Query, spec.Args, p.mem), cl, nil
	}

	codec, err := pickCodec(spec.Codec, spec.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("source: %w", err)
	}

	var reader goio.Reader
	switch spec.Path {
	case "":
		return nil, nil, fmt.Errorf("source: %s needs a path", kind)
	case "-":
		reader = p.stdin
	default:
		f, err := os.Open(spec.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("source: %w", err)
		}
		cl.add(f.Close)
		reader = f
	}

	switch kind {
	case string(io.FormatCSV):
		options := io.DefaultCSVOptions()
		if options.Delimiter, err = delimiter(spec.Delimiter); err != nil {
			return nil, nil, cl.closeWith(fmt.Errorf("source: %w", err))
		}
		options.Header = !spec.NoHeader
		options.Codec = codec
		return io.NewCSVSource(reader, options, p.mem), cl, nil
	case string(io.FormatJSON):
		options := io.JSONOptions{Format: io.JSONLines, Codec: codec}
		if spec.JSONArray {
			options.Format = io.JSONArray
		}
		return io.NewJSONSource(reader, options, p.mem), cl, nil
	case string(io.FormatParquet):
		return io.NewParquetSource(reader, p.mem), cl, nil
	}
	return nil, nil, cl.closeWith(fmt.Errorf("source: unknown type %q", spec.Type))
}

func (p *Pipeline) openSink(spec SinkSpec) (io.Sink, closers, error) {
	var cl closers

	kind := strings.ToLower(spec.Type)
	if kind == "" && spec.Path == "" {
		kind = "envelope"
	}
	kind, err := adapterKind(kind, spec.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("sink: %w", err)
	}

	if kind == "sql" {
		if spec.Table == "" {
			return nil, nil, fmt.Errorf("sink: sql needs a table")
		}
		db, err := p.database(spec.Driver, spec.DSN, &cl)
		if err != nil {
			return nil, nil, fmt.Errorf("sink: %w", err)
		}
		options := io.DefaultSQLSinkOptions(spec.Table)
		options.PrimaryKey = spec.PrimaryKey
		if spec.AuditColumn != nil {
			options.AuditColumn = *spec.AuditColumn
		}
		options.BatchSize = p.cfg.BatchSize
		options.Indexes = spec.Indexes
		if options.Dialect, err = io.ParseDialect(spec.Dialect); err != nil {
			return nil, nil, cl.closeWith(fmt.Errorf("sink: %w", err))
		}
		return io.NewSQLSink(db, options), cl, nil
	}

	codec, err := pickCodec(spec.Codec, spec.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("sink: %w", err)
	}

	var writer goio.Writer
	switch spec.Path {
	case "", "-":
		writer = p.stdout
	default:
		f, err := os.Create(spec.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sink: %w", err)
		}
		cl.add(f.Close)
		writer = f
	}

	switch kind {
	case "envelope":
		return io.NewEnvelopeSink(writer, report.Options{
			PreviewRows:  p.cfg.PreviewRows,
			TotalColumns: p.cfg.TotalColumns,
		}), cl, nil
	case string(io.FormatCSV):
		options := io.DefaultCSVOptions()
		if options.Delimiter, err = delimiter(spec.Delimiter); err != nil {
			return nil, nil, cl.closeWith(fmt.Errorf("sink: %w", err))
		}
		options.Codec = codec
		return io.NewCSVSink(writer, options), cl, nil
	case string(io.FormatJSON):
		options := io.JSONOptions{Format: io.JSONLines, Codec: codec}
		if spec.JSONArray {
			options.Format = io.JSONArray
		}
		return io.NewJSONSink(writer, options), cl, nil
	case string(io.FormatParquet):
		options := io.DefaultParquetOptions()
		if spec.Compression != "" {
			options.Compression = spec.Compression
		}
		return io.NewParquetSink(writer, options, p.mem), cl, nil
	}
	return nil, nil, cl.closeWith(fmt.Errorf("sink: unknown type %q", spec.Type))
}

func (c closers) closeWith(err error) error {
	_ = c.close()
	return err
}

// database returns the injected handle, or opens one that cl closes.
func (p *Pipeline) database(driver, dsn string, cl *closers) (*sql.DB, error) {
	if p.db != nil {
		return p.db, nil
	}
	if driver == "" {
		driver = DefaultDriver
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s needs a dsn", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	cl.add(db.Close)
	return db, nil
}

// adapterKind returns the lower-cased type, inferring a file format from
// path when the type is empty.
func adapterKind(typ, path string) (string, error) {
	if typ != "" {
		return strings.ToLower(typ), nil
	}
	if path == "" || path == "-" {
		return "", fmt.Errorf("no type and no path to infer one from")
	}
	format, err := io.FormatForPath(path)
	if err != nil {
		return "", err
	}
	return string(format), nil
}

func pickCodec(name, path string) (io.Codec, error) {
	if name != "" {
		return io.ParseCodec(name)
	}
	return io.CodecForPath(path), nil
}

func delimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return r, nil
}

package pipeline

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	goio "io"
	"log/slog"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"github.com/paveg/gibbon/internal/anonymize"
	"github.com/paveg/gibbon/internal/config"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/io"
	memtrack "github.com/paveg/gibbon/internal/memory"
	"github.com/paveg/gibbon/internal/monitoring"
	"github.com/paveg/gibbon/internal/report"
)

// ErrNoRows is returned when RequireRows is set and the source is empty.
var ErrNoRows = stderrors.New("source returned no rows")

// Pipeline runs one Config. Adapters are opened per run.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	mem    memory.Allocator
	stdin  goio.Reader
	stdout goio.Writer
	db     *sql.DB
	source io.Source
	sink   io.Sink
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithAllocator sets the allocator for every frame the run creates.
func WithAllocator(mem memory.Allocator) Option {
	return func(p *Pipeline) { p.mem = mem }
}

// WithStdio replaces standard input and output for "-" paths and the
// default envelope sink.
func WithStdio(in goio.Reader, out goio.Writer) Option {
	return func(p *Pipeline) {
		p.stdin = in
		p.stdout = out
	}
}

// WithDB makes SQL sources and sinks use db instead of opening their DSN.
func WithDB(db *sql.DB) Option {
	return func(p *Pipeline) { p.db = db }
}

// WithSource overrides the configured source.
func WithSource(source io.Source) Option {
	return func(p *Pipeline) { p.source = source }
}

// WithSink overrides the configured sink.
func WithSink(sink io.Sink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// New validates cfg and returns a pipeline ready to run.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:    cfg,
		logger: slog.Default(),
		mem:    memory.NewGoAllocator(),
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Result describes a completed run.
type Result struct {
	RunID    string
	Envelope report.Envelope
	Write    io.WriteResult
	// Applied lists the anonymization rules as "source -> output (kind)".
	Applied []string
	Metrics []monitoring.OperationMetrics
	// Memory counts the Arrow buffers allocated during the run.
	Memory   memtrack.Stats
	Duration time.Duration
}

// Run reads the source, executes the plan, anonymizes the result and
// writes it to the sink. Sinks that store envelopes receive the summary
// instead of the rows.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	result := Result{RunID: uuid.NewString()}

	// Each run counts its own allocations.
	tracker := memtrack.NewTracker(p.mem)
	run := *p
	run.mem = tracker
	p = &run

	logger := p.logger.With("run_id", result.RunID)
	if p.cfg.Name != "" {
		logger = logger.With("pipeline", p.cfg.Name)
	}

	engine, warnings, err := config.NewConfigValidator().Validate(p.cfg.EngineConfig())
	if err != nil {
		return result, fmt.Errorf("engine: %w", err)
	}
	for _, w := range warnings {
		logger.Warn("engine configuration", "warning", w)
	}
	metrics := monitoring.NewMetricsCollector(engine.MetricsCollection)

	rules, err := p.cfg.Rules()
	if err != nil {
		return result, err
	}

	logger.Info("pipeline started",
		"source", describe(p.cfg.Source.Type, p.cfg.Source.Path),
		"sink", describe(p.cfg.Sink.Type, p.cfg.Sink.Path),
		"rules", len(rules))

	df, err := p.read(ctx, metrics)
	if err != nil {
		logger.Error("reading source failed", "error", err)
		return result, fmt.Errorf("reading source: %w", err)
	}
	defer df.Release()
	logger.Info("source read", "rows", df.Len(), "columns", df.Width())

	if p.cfg.RequireRows && df.Len() == 0 {
		return result, ErrNoRows
	}

	lf, err := p.cfg.Plan(df)
	if err != nil {
		return result, fmt.Errorf("building plan: %w", err)
	}
	logger.Debug("plan built", "plan", lf.String())

	out, err := lf.WithAllocator(p.mem).WithMetrics(metrics).Collect()
	if err != nil {
		logger.Error("executing plan failed", "error", err)
		return result, fmt.Errorf("executing plan: %w", err)
	}
	defer out.Release()
	logger.Info("plan executed", "rows", out.Len(), "dropped", df.Len()-out.Len())

	if len(rules) > 0 {
		anonymized, err := p.anonymize(out, rules, engine, logger, metrics)
		if err != nil {
			return result, fmt.Errorf("anonymizing: %w", err)
		}
		defer anonymized.Release()
		out = anonymized
		for _, r := range rules {
			result.Applied = append(result.Applied, fmt.Sprintf("%s -> %s (%s)", r.Source(), r.Output(), r.Kind()))
		}
	}

	result.Envelope, err = report.Build(df.Len(), out, report.Options{
		PreviewRows:  p.cfg.PreviewRows,
		TotalColumns: p.cfg.TotalColumns,
	})
	if err != nil {
		return result, fmt.Errorf("building report: %w", err)
	}

	result.Write, err = p.write(ctx, out, result.Envelope, metrics)
	result.Metrics = metrics.GetMetrics()
	result.Memory = tracker.Stats()
	result.Duration = time.Since(start)
	if err != nil {
		var partial *errors.PartialWriteError
		if stderrors.As(err, &partial) {
			logger.Error("sink write incomplete",
				"written", partial.Written, "total", partial.Total, "remaining", partial.Remaining())
		} else {
			logger.Error("writing sink failed", "error", err)
		}
		return result, fmt.Errorf("writing sink: %w", err)
	}

	if metrics.IsEnabled() {
		summary := metrics.GetSummary()
		logger.Debug("execution metrics",
			"operations", summary.TotalOperations, "duration", summary.TotalDuration)
	}
	logger.Info("pipeline finished",
		"total_rows", result.Envelope.Summary.TotalRows,
		"filtered_rows", result.Envelope.Summary.FilteredRows,
		"rows_written", result.Write.Rows,
		"batches", result.Write.Batches,
		"peak_bytes", result.Memory.Peak,
		"duration", result.Duration)
	return result, nil
}

// Explain reads the source and returns the plan before and after
// optimization without executing it.
func (p *Pipeline) Explain(ctx context.Context) (monitoring.QueryPlan, error) {
	df, err := p.read(ctx, nil)
	if err != nil {
		return monitoring.QueryPlan{}, fmt.Errorf("reading source: %w", err)
	}
	defer df.Release()

	lf, err := p.cfg.Plan(df)
	if err != nil {
		return monitoring.QueryPlan{}, fmt.Errorf("building plan: %w", err)
	}
	return lf.Explain()
}

func (p *Pipeline) read(ctx context.Context, metrics *monitoring.MetricsCollector) (*dataframe.DataFrame, error) {
	source, cl := p.source, closers(nil)
	if source == nil {
		var err error
		if source, cl, err = p.openSource(p.cfg.Source); err != nil {
			return nil, err
		}
	}

	var df *dataframe.DataFrame
	err := metrics.RecordOperation("Read", 0, func() (monitoring.StepResult, error) {
		var err error
		df, err = source.Read(ctx)
		if err != nil {
			return monitoring.StepResult{}, err
		}
		return monitoring.StepResult{RowsOut: df.Len()}, nil
	})
	if cerr := cl.close(); err == nil && cerr != nil {
		df.Release()
		return nil, cerr
	}
	return df, err
}

func (p *Pipeline) anonymize(df *dataframe.DataFrame, rules []anonymize.Rule, engine config.Config, logger *slog.Logger, metrics *monitoring.MetricsCollector) (*dataframe.DataFrame, error) {
	anonymizer, err := anonymize.New(rules,
		anonymize.WithConfig(engine),
		anonymize.WithMaskPercentage(*p.cfg.MaskPercentage),
		anonymize.WithAllocator(p.mem),
		anonymize.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	var out *dataframe.DataFrame
	err = metrics.RecordOperation("Anonymize", df.Len(), func() (monitoring.StepResult, error) {
		var err error
		out, err = anonymizer.Apply(df)
		if err != nil {
			return monitoring.StepResult{}, err
		}
		return monitoring.StepResult{RowsOut: out.Len()}, nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("anonymization applied", "rules", len(rules), "rows", out.Len())
	return out, nil
}

func (p *Pipeline) write(ctx context.Context, df *dataframe.DataFrame, env report.Envelope, metrics *monitoring.MetricsCollector) (io.WriteResult, error) {
	sink, cl := p.sink, closers(nil)
	if sink == nil {
		var err error
		if sink, cl, err = p.openSink(p.cfg.Sink); err != nil {
			return io.WriteResult{}, err
		}
	}

	var written io.WriteResult
	err := metrics.RecordOperation("Write", df.Len(), func() (monitoring.StepResult, error) {
		var err error
		if ew, ok := sink.(io.EnvelopeWriter); ok {
			written, err = ew.WriteEnvelope(ctx, env)
		} else {
			written, err = sink.Write(ctx, df)
		}
		return monitoring.StepResult{RowsOut: written.Rows}, err
	})
	if cerr := cl.close(); err == nil {
		err = cerr
	}
	return written, err
}

func describe(typ, path string) string {
	switch {
	case typ != "" && path != "":
		return typ + ":" + path
	case typ != "":
		return typ
	case path != "":
		return path
	}
	return "default"
}

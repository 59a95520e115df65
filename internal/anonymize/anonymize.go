// Package anonymize rewrites personal data columns of a materialized frame.
//
// Each Rule reads one source column and produces one utf8 column that takes
// the source column's position. Rules run concurrently: every (rule, row
// range) pair is a work item for a parallel.WorkerPool and the chunks are
// merged back by index, so the output never depends on scheduling.
package anonymize

import (
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gibbon/internal/config"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/errors"
	"github.com/paveg/gibbon/internal/parallel"
	"github.com/paveg/gibbon/internal/series"
	"github.com/paveg/gibbon/internal/validation"
)

// DefaultMaskPercentage anonymizes every row.
const DefaultMaskPercentage = 100

// Anonymizer applies a fixed rule set to frames.
type Anonymizer struct {
	rules          []Rule
	cfg            config.Config
	maskPercentage int
	mem            memory.Allocator
	logger         *slog.Logger
}

// Option configures an Anonymizer.
type Option func(*Anonymizer)

// WithConfig sets the parallelism settings.
func WithConfig(cfg config.Config) Option {
	return func(a *Anonymizer) { a.cfg = cfg }
}

// WithMaskPercentage records the requested share of rows to anonymize.
// Only 100 is honored; every row is always anonymized.
func WithMaskPercentage(pct int) Option {
	return func(a *Anonymizer) { a.maskPercentage = pct }
}

// WithAllocator sets the allocator for output columns.
func WithAllocator(mem memory.Allocator) Option {
	return func(a *Anonymizer) { a.mem = mem }
}

// WithLogger sets the logger for configuration warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Anonymizer) { a.logger = logger }
}

// New validates the rule set and returns an Anonymizer.
func New(rules []Rule, opts ...Option) (*Anonymizer, error) {
	a := &Anonymizer{
		rules:          rules,
		cfg:            config.GetGlobalConfig(),
		maskPercentage: DefaultMaskPercentage,
		mem:            memory.NewGoAllocator(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.maskPercentage < 0 || a.maskPercentage > 100 {
		return nil, errors.NewInvalidInputError("anonymize",
			fmt.Sprintf("mask percentage must be between 0 and 100, got %d", a.maskPercentage))
	}
	if a.maskPercentage != DefaultMaskPercentage {
		a.logger.Warn("mask percentage is not supported, anonymizing every row",
			"mask_percentage", a.maskPercentage)
	}

	sources := make(map[string]bool, len(rules))
	for _, rule := range rules {
		if sources[rule.Source()] {
			return nil, &errors.DataFrameError{
				Kind:    errors.KindSchema,
				Op:      "anonymize",
				Column:  rule.Source(),
				Row:     -1,
				Message: "column has more than one rule",
			}
		}
		sources[rule.Source()] = true
	}
	return a, nil
}

// Rules returns the configured rules.
func (a *Anonymizer) Rules() []Rule {
	return a.rules
}

// Apply returns a new frame with every ruled column replaced. The input is
// not modified.
func (a *Anonymizer) Apply(df *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	schema := df.Schema()
	if err := a.checkSchema(schema); err != nil {
		return nil, err
	}
	if len(a.rules) == 0 {
		return df.Clone(), nil
	}

	ranges := a.ranges(df.Len())
	type item struct {
		rule int
		rng  parallel.Range
	}
	items := make([]item, 0, len(a.rules)*len(ranges))
	srcs := make([]*series.Series, len(a.rules))
	for i, rule := range a.rules {
		srcs[i], _ = df.Column(rule.Source())
		for _, r := range ranges {
			items = append(items, item{rule: i, rng: r})
		}
	}

	var chunks []chunk
	if len(items) == 1 {
		chunks = []chunk{a.rules[0].transform(srcs[0], items[0].rng)}
	} else {
		pool := parallel.NewWorkerPool(a.cfg.Workers())
		defer pool.Close()
		chunks = parallel.ProcessIndexed(pool, items, func(_ int, it item) chunk {
			return a.rules[it.rule].transform(srcs[it.rule], it.rng)
		})
	}

	replaced := make(map[string]*series.Series, len(a.rules))
	for i, rule := range a.rules {
		values := make([]string, 0, df.Len())
		valid := make([]bool, 0, df.Len())
		for _, c := range chunks[i*len(ranges) : (i+1)*len(ranges)] {
			values = append(values, c.values...)
			valid = append(valid, c.valid...)
		}
		replaced[rule.Source()] = series.NewNullable(rule.Output(), values, valid, a.mem)
	}

	cols := make([]*series.Series, df.Width())
	for i, field := range schema {
		if s, ok := replaced[field.Name]; ok {
			cols[i] = s
			continue
		}
		cols[i] = df.ColumnAt(i).Clone()
	}
	return dataframe.New(cols...)
}

func (a *Anonymizer) checkSchema(schema series.Schema) error {
	names := make(map[string]bool, len(schema))
	for _, field := range schema {
		names[field.Name] = true
	}
	outputs := make(map[string]bool, len(a.rules))
	for _, rule := range a.rules {
		if err := validation.ValidateColumns(schema, rule.Kind(), rule.Source()); err != nil {
			return err
		}
		dtype, _ := schema.Lookup(rule.Source())
		if err := rule.check(dtype); err != nil {
			return err
		}
		out := rule.Output()
		if outputs[out] || (out != rule.Source() && names[out]) {
			return errors.NewDuplicateColumnError(rule.Kind(), out)
		}
		outputs[out] = true
	}
	return nil
}

// ranges splits n rows into chunks once n reaches the parallel threshold.
// Threshold and chunk size are tuned to the frame size and rule count.
func (a *Anonymizer) ranges(n int) []parallel.Range {
	if n == 0 {
		return []parallel.Range{{}}
	}
	cfg := config.NewPerformanceTuner(&a.cfg).OptimizeForDataset(n, len(a.rules))
	if n < cfg.ParallelThreshold {
		return []parallel.Range{{Start: 0, End: n}}
	}
	return parallel.Ranges(n, cfg.ChunkSize)
}

// Apply anonymizes df with the global configuration.
func Apply(df *dataframe.DataFrame, rules ...Rule) (*dataframe.DataFrame, error) {
	a, err := New(rules)
	if err != nil {
		return nil, err
	}
	return a.Apply(df)
}

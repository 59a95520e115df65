// Package pipeline wires a source, a lazy plan, anonymization rules, the
// summary reporter and a sink into one run described by a YAML or JSON file.
package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/paveg/gibbon/internal/anonymize"
	"github.com/paveg/gibbon/internal/config"
	"github.com/paveg/gibbon/internal/io"
	"gopkg.in/yaml.v3"
)

// DefaultMaskPercentage anonymizes every row.
const DefaultMaskPercentage = 100

// Config describes one run.
type Config struct {
	Name   string     `json:"name" yaml:"name"`
	Source SourceSpec `json:"source" yaml:"source"`
	Sink   SinkSpec   `json:"sink" yaml:"sink"`

	// Filters are ANDed together in order.
	Filters []ExprSpec `json:"filters" yaml:"filters"`
	// Transforms is a list of steps. Expressions within one step see only
	// the columns that existed before it.
	Transforms [][]ExprSpec `json:"transforms" yaml:"transforms"`
	GroupBy    *GroupBySpec `json:"group_by" yaml:"group_by"`
	Sort       []SortSpec   `json:"sort" yaml:"sort"`
	Limit      *int         `json:"limit" yaml:"limit"`
	Select     []string     `json:"select" yaml:"select"`

	Anonymization  []RuleSpec `json:"anonymization" yaml:"anonymization"`
	MaskPercentage *int       `json:"mask_percentage" yaml:"mask_percentage"`

	BatchSize    int      `json:"batch_size" yaml:"batch_size"`
	PreviewRows  int      `json:"preview_rows" yaml:"preview_rows"`
	TotalColumns []string `json:"total_columns" yaml:"total_columns"`
	// RequireRows fails the run when the source is empty.
	RequireRows bool `json:"require_rows" yaml:"require_rows"`

	Engine *config.Config `json:"engine" yaml:"engine"`
}

// SourceSpec selects and configures the input adapter.
type SourceSpec struct {
	Type      string `json:"type" yaml:"type"` // csv, json, parquet, sql, synthetic; empty infers from Path
	Path      string `json:"path" yaml:"path"` // "-" reads standard input
	Codec     string `json:"codec" yaml:"codec"`
	Delimiter string `json:"delimiter" yaml:"delimiter"`
	NoHeader  bool   `json:"no_header" yaml:"no_header"`
	// JSONArray reads a single top-level array instead of JSON lines.
	JSONArray bool `json:"json_array" yaml:"json_array"`

	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
	Query  string `json:"query" yaml:"query"`
	Args   []any  `json:"args" yaml:"args"`

	Rows int    `json:"rows" yaml:"rows"`
	Seed uint64 `json:"seed" yaml:"seed"`
}

// SinkSpec selects and configures the output adapter.
type SinkSpec struct {
	Type        string   `json:"type" yaml:"type"` // envelope, csv, json, parquet, sql; empty infers from Path
	Path        string   `json:"path" yaml:"path"` // empty or "-" writes standard output
	Codec       string   `json:"codec" yaml:"codec"`
	Delimiter   string   `json:"delimiter" yaml:"delimiter"`
	JSONArray   bool     `json:"json_array" yaml:"json_array"`
	Compression string   `json:"compression" yaml:"compression"` // parquet column compression
	Driver      string   `json:"driver" yaml:"driver"`
	DSN         string   `json:"dsn" yaml:"dsn"`
	Table       string   `json:"table" yaml:"table"`
	PrimaryKey  string   `json:"primary_key" yaml:"primary_key"`
	AuditColumn *string  `json:"audit_column" yaml:"audit_column"`
	Dialect     string   `json:"dialect" yaml:"dialect"`
	Indexes     []string `json:"indexes" yaml:"indexes"`
}

// ExprSpec is a structured expression. Exactly one of Col, Lit, Op or Agg is set:
//
//	{col: age}
//	{lit: 18}
//	{op: gt, left: {col: age}, right: {lit: 18}}
//	{agg: sum, of: {col: salary}, over: [department], as: dept_total}
type ExprSpec struct {
	Col   string    `json:"col,omitempty" yaml:"col,omitempty"`
	Lit   any       `json:"lit,omitempty" yaml:"lit,omitempty"`
	Op    string    `json:"op,omitempty" yaml:"op,omitempty"`
	Left  *ExprSpec `json:"left,omitempty" yaml:"left,omitempty"`
	Right *ExprSpec `json:"right,omitempty" yaml:"right,omitempty"`
	Agg   string    `json:"agg,omitempty" yaml:"agg,omitempty"`
	Of    *ExprSpec `json:"of,omitempty" yaml:"of,omitempty"`
	Over  []string  `json:"over,omitempty" yaml:"over,omitempty"`
	As    string    `json:"as,omitempty" yaml:"as,omitempty"`
}

// GroupBySpec groups by Keys and computes Aggs per group.
type GroupBySpec struct {
	Keys []string   `json:"keys" yaml:"keys"`
	Aggs []ExprSpec `json:"aggs" yaml:"aggs"`
}

// SortSpec orders by one column.
type SortSpec struct {
	Column     string `json:"column" yaml:"column"`
	Descending bool   `json:"desc" yaml:"desc"`
}

// RuleSpec configures one anonymization rule. Preset fills the defaults of a
// well-known column kind; explicit fields override it.
type RuleSpec struct {
	Type   string `json:"type" yaml:"type"` // pseudonymize, mask, bucketize, redact
	Column string `json:"column" yaml:"column"`
	As     string `json:"as" yaml:"as"`
	Preset string `json:"preset" yaml:"preset"` // name, email, phone, ssn, salary

	Salt string `json:"salt" yaml:"salt"`
	// SaltEnv names an environment variable holding the salt.
	SaltEnv   string `json:"salt_env" yaml:"salt_env"`
	Prefix    string `json:"prefix" yaml:"prefix"`
	Suffix    string `json:"suffix" yaml:"suffix"`
	Length    int    `json:"length" yaml:"length"`
	Normalize bool   `json:"normalize" yaml:"normalize"`

	Pattern  string `json:"pattern" yaml:"pattern"`
	Constant string `json:"constant" yaml:"constant"`

	Floor      string               `json:"floor" yaml:"floor"`
	Boundaries []anonymize.Boundary `json:"boundaries" yaml:"boundaries"`
}

// LoadFile reads a pipeline config, choosing the decoder by extension.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read pipeline config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Config{}, fmt.Errorf("unsupported pipeline config format: %s", filepath.Ext(path))
	}
}

// ParseYAML decodes a YAML pipeline config and applies defaults.
func ParseYAML(data []byte) (Config, error) {
	cfg := seeded()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML pipeline config: %w", err)
	}
	return finish(cfg)
}

// ParseJSON decodes a JSON pipeline config and applies defaults. Numbers in
// literals keep their integer or float form.
func ParseJSON(data []byte) (Config, error) {
	cfg := seeded()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse JSON pipeline config: %w", err)
	}
	return finish(cfg)
}

// seeded starts the engine section from the global configuration so a file
// that sets only some engine keys keeps the rest.
func seeded() Config {
	engine := config.GetGlobalConfig()
	return Config{Engine: &engine}
}

func finish(cfg Config) (Config, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = io.DefaultBatchSize
	}
	if c.MaskPercentage == nil {
		pct := DefaultMaskPercentage
		c.MaskPercentage = &pct
	}
	if c.Engine != nil {
		engine := c.Engine.WithDefaults()
		c.Engine = &engine
	}
	return c
}

// EngineConfig returns the engine section, or the global configuration when
// the file has none.
func (c Config) EngineConfig() config.Config {
	if c.Engine != nil {
		return *c.Engine
	}
	return config.GetGlobalConfig()
}

// Validate checks the parts of the config that do not need the data.
// Expressions and rules are checked when the plan is built.
func (c Config) Validate() error {
	if c.Limit != nil && *c.Limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", *c.Limit)
	}
	if c.MaskPercentage != nil && (*c.MaskPercentage < 0 || *c.MaskPercentage > 100) {
		return fmt.Errorf("mask_percentage must be between 0 and 100, got %d", *c.MaskPercentage)
	}
	if c.GroupBy != nil && len(c.GroupBy.Aggs) == 0 {
		return fmt.Errorf("group_by needs at least one aggregation")
	}
	for i, s := range c.Sort {
		if s.Column == "" {
			return fmt.Errorf("sort key %d has no column", i)
		}
	}
	if c.Engine != nil {
		if err := c.Engine.Validate(); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
	}
	return nil
}

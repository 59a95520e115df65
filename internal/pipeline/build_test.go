package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paveg/gibbon/internal/anonymize"
	"github.com/paveg/gibbon/internal/config"
	"github.com/paveg/gibbon/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprSpec_Build(t *testing.T) {
	tests := []struct {
		name string
		spec pipeline.ExprSpec
		want string
	}{
		{"column", pipeline.ExprSpec{Col: "age"}, "col(age)"},
		{"string literal", pipeline.ExprSpec{Lit: "Eng"}, `lit("Eng")`},
		{"int literal widens", pipeline.ExprSpec{Lit: 18}, "lit(18)"},
		{
			"comparison",
			pipeline.ExprSpec{Op: "ge", Left: &pipeline.ExprSpec{Col: "age"}, Right: &pipeline.ExprSpec{Lit: 18}},
			"(col(age) >= lit(18))",
		},
		{
			"alias",
			pipeline.ExprSpec{Op: "*", Left: &pipeline.ExprSpec{Col: "salary"}, Right: &pipeline.ExprSpec{Lit: 1.1}, As: "raised"},
			"(col(salary) * lit(1.1)) AS raised",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := tt.spec.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())
		})
	}

	window, err := pipeline.ExprSpec{Agg: "sum", Of: &pipeline.ExprSpec{Col: "salary"}, Over: []string{"department"}, As: "total"}.Build()
	require.NoError(t, err)
	assert.Contains(t, window.String(), "department")
}

func TestExprSpec_BuildErrors(t *testing.T) {
	tests := []struct {
		name string
		spec pipeline.ExprSpec
	}{
		{"empty", pipeline.ExprSpec{}},
		{"two kinds", pipeline.ExprSpec{Col: "a", Lit: 1}},
		{"unknown operator", pipeline.ExprSpec{Op: "pow", Left: &pipeline.ExprSpec{Col: "a"}, Right: &pipeline.ExprSpec{Lit: 2}}},
		{"missing operand", pipeline.ExprSpec{Op: "add", Left: &pipeline.ExprSpec{Col: "a"}}},
		{"unknown aggregation", pipeline.ExprSpec{Agg: "median", Of: &pipeline.ExprSpec{Col: "a"}}},
		{"aggregation without input", pipeline.ExprSpec{Agg: "sum"}},
		{"over without aggregation", pipeline.ExprSpec{Col: "a", Over: []string{"b"}}},
		{"unsupported literal", pipeline.ExprSpec{Lit: []any{1}}},
		{"bad nested", pipeline.ExprSpec{Op: "add", Left: &pipeline.ExprSpec{}, Right: &pipeline.ExprSpec{Lit: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spec.Build()
			assert.Error(t, err)
		})
	}
}

func TestRuleSpec_Rule(t *testing.T) {
	t.Setenv("GIBBON_TEST_SALT", "pepper")

	tests := []struct {
		name string
		spec pipeline.RuleSpec
		want anonymize.Rule
	}{
		{
			"name preset",
			pipeline.RuleSpec{Preset: "name", Column: "name", As: "name_hash"},
			anonymize.NamePseudonym("name", "").As("name_hash"),
		},
		{
			"email preset with salt from the environment",
			pipeline.RuleSpec{Preset: "email", Column: "email", SaltEnv: "GIBBON_TEST_SALT"},
			anonymize.EmailPseudonym("email", "pepper"),
		},
		{
			"email preset with opt-in normalization",
			pipeline.RuleSpec{Preset: "email", Column: "email", Normalize: true},
			anonymize.Pseudonymize{Column: "email", Suffix: "@anonymized.local", Normalize: true},
		},
		{
			"explicit pseudonymize",
			pipeline.RuleSpec{Type: "hash", Column: "id", Prefix: "u_", Length: 8, Normalize: true},
			anonymize.Pseudonymize{Column: "id", Prefix: "u_", Length: 8, Normalize: true},
		},
		{
			"phone preset",
			pipeline.RuleSpec{Preset: "phone", Column: "phone"},
			anonymize.Mask{Column: "phone", Pattern: anonymize.PhoneMask},
		},
		{
			"custom mask",
			pipeline.RuleSpec{Type: "mask", Column: "card", Pattern: "****"},
			anonymize.Mask{Column: "card", Pattern: "****"},
		},
		{
			"redact",
			pipeline.RuleSpec{Preset: "address", Column: "address"},
			anonymize.Redact{Column: "address"},
		},
		{
			"salary preset",
			pipeline.RuleSpec{Preset: "salary", Column: "salary", As: "salary_bucket"},
			anonymize.SalaryBuckets("salary").As("salary_bucket"),
		},
		{
			"custom buckets",
			pipeline.RuleSpec{Type: "bucket", Column: "age", Floor: "minor", Boundaries: []anonymize.Boundary{{Threshold: 18, Label: "adult"}}},
			anonymize.Bucketize{Column: "age", Floor: "minor", Boundaries: []anonymize.Boundary{{Threshold: 18, Label: "adult"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := tt.spec.Rule()
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule)
		})
	}
}

func TestRuleSpec_RuleErrors(t *testing.T) {
	tests := []struct {
		name string
		spec pipeline.RuleSpec
	}{
		{"no column", pipeline.RuleSpec{Type: "redact"}},
		{"no type", pipeline.RuleSpec{Column: "a"}},
		{"unknown type", pipeline.RuleSpec{Type: "encrypt", Column: "a"}},
		{"unknown preset", pipeline.RuleSpec{Preset: "iban", Column: "a"}},
		{"preset of another kind", pipeline.RuleSpec{Type: "mask", Preset: "salary", Column: "a"}},
		{"mask without pattern", pipeline.RuleSpec{Type: "mask", Column: "a"}},
		{"buckets without boundaries", pipeline.RuleSpec{Type: "bucketize", Column: "a"}},
		{"empty salt variable", pipeline.RuleSpec{Preset: "name", Column: "a", SaltEnv: "GIBBON_TEST_UNSET_SALT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spec.Rule()
			assert.Error(t, err)
		})
	}
}

func TestParseYAML(t *testing.T) {
	cfg, err := pipeline.ParseYAML([]byte(`
name: nightly
source: {type: csv, path: customers.csv.gz, delimiter: ";"}
sink: {type: sql, table: customers_anonymized, dsn: "file:out.db", audit_column: ""}
filters:
  - {op: gt, left: {col: age}, right: {lit: 18}}
limit: 10
engine:
  parallel_threshold: 5000
`))
	require.NoError(t, err)

	assert.Equal(t, "nightly", cfg.Name)
	assert.Equal(t, ";", cfg.Source.Delimiter)
	require.NotNil(t, cfg.Sink.AuditColumn)
	assert.Empty(t, *cfg.Sink.AuditColumn)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, pipeline.DefaultMaskPercentage, *cfg.MaskPercentage)
	assert.Equal(t, 10, *cfg.Limit)
	assert.Equal(t, 18, cfg.Filters[0].Right.Lit)

	engine := cfg.EngineConfig()
	assert.Equal(t, 5000, engine.ParallelThreshold)
	assert.True(t, engine.FilterFusion, "engine keys left out keep their defaults")
}

func TestParseJSON_NumbersKeepTheirKind(t *testing.T) {
	cfg, err := pipeline.ParseJSON([]byte(`{"filters": [
		{"op": "gt", "left": {"col": "age"}, "right": {"lit": 18}},
		{"op": "lt", "left": {"col": "score"}, "right": {"lit": 2.5}}
	]}`))
	require.NoError(t, err)

	e, err := cfg.Filters[0].Build()
	require.NoError(t, err)
	assert.Equal(t, "(col(age) > lit(18))", e.String())

	e, err = cfg.Filters[1].Build()
	require.NoError(t, err)
	assert.Equal(t, "(col(score) < lit(2.5))", e.String())
}

func TestParse_Errors(t *testing.T) {
	_, err := pipeline.ParseYAML([]byte("limit: -1"))
	assert.ErrorContains(t, err, "limit")

	_, err = pipeline.ParseYAML([]byte("mask_percentage: 150"))
	assert.ErrorContains(t, err, "mask_percentage")

	_, err = pipeline.ParseYAML([]byte("group_by: {keys: [a]}"))
	assert.Error(t, err)

	_, err = pipeline.ParseYAML([]byte("sources: {}"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = pipeline.ParseJSON([]byte(`{"engine": {"parallel_threshold": -1}}`))
	assert.ErrorContains(t, err, "engine")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: a\nbatch_size: 7\n"), 0o600))
	cfg, err := pipeline.LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.BatchSize)

	jsonPath := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"name": "b"}`), 0o600))
	cfg, err = pipeline.LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "b", cfg.Name)

	_, err = pipeline.LoadFile(filepath.Join(dir, "run.toml"))
	assert.Error(t, err)
}

func TestConfig_EngineFallsBackToGlobal(t *testing.T) {
	assert.Equal(t, config.GetGlobalConfig(), pipeline.Config{}.EngineConfig())
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paveg/gibbon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultValues(t *testing.T) {
	cfg := config.NewConfig()

	assert.Equal(t, 1000, cfg.ParallelThreshold)
	assert.Equal(t, 0, cfg.WorkerPoolSize) // 0 means auto-detect
	assert.Equal(t, 0, cfg.ChunkSize)      // 0 means auto-calculate
	assert.Equal(t, 16, cfg.MaxParallelism)
	assert.Equal(t, 16, cfg.MaxOptimizerPasses)
	assert.True(t, cfg.FilterFusion)
	assert.True(t, cfg.PredicatePushdown)
	assert.True(t, cfg.ProjectionPruning)
	assert.False(t, cfg.VerboseLogging)
	assert.False(t, cfg.MetricsCollection)
}

func TestConfig_Validation(t *testing.T) {
	valid := config.NewConfig()

	tests := []struct {
		name          string
		mutate        func(c *config.Config)
		expectedError string
	}{
		{
			name:          "valid config",
			mutate:        func(c *config.Config) {},
			expectedError: "",
		},
		{
			name:          "negative parallel threshold",
			mutate:        func(c *config.Config) { c.ParallelThreshold = -1 },
			expectedError: "ParallelThreshold must be positive, got -1",
		},
		{
			name:          "negative worker pool size",
			mutate:        func(c *config.Config) { c.WorkerPoolSize = -2 },
			expectedError: "WorkerPoolSize must be non-negative, got -2",
		},
		{
			name:          "negative chunk size",
			mutate:        func(c *config.Config) { c.ChunkSize = -5 },
			expectedError: "ChunkSize must be non-negative, got -5",
		},
		{
			name:          "zero max parallelism",
			mutate:        func(c *config.Config) { c.MaxParallelism = 0 },
			expectedError: "MaxParallelism must be positive, got 0",
		},
		{
			name:          "zero optimizer passes",
			mutate:        func(c *config.Config) { c.MaxOptimizerPasses = 0 },
			expectedError: "MaxOptimizerPasses must be positive, got 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectedError == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.expectedError)
			}
		})
	}
}

func TestConfig_LoadFromJSON(t *testing.T) {
	data := []byte(`{"parallel_threshold": 250, "filter_fusion": false, "worker_pool_size": 3}`)

	cfg, err := config.LoadFromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.ParallelThreshold)
	assert.Equal(t, 3, cfg.WorkerPoolSize)
	assert.False(t, cfg.FilterFusion)
	assert.True(t, cfg.PredicatePushdown, "absent fields keep their defaults")
	assert.Equal(t, config.DefaultMaxOptimizerPasses, cfg.MaxOptimizerPasses)
}

func TestConfig_LoadFromYAML(t *testing.T) {
	data := []byte("parallel_threshold: 64\nprojection_pruning: false\nmetrics_collection: true\n")

	cfg, err := config.LoadFromYAML(data)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.ParallelThreshold)
	assert.False(t, cfg.ProjectionPruning)
	assert.True(t, cfg.MetricsCollection)
	assert.True(t, cfg.FilterFusion)
}

func TestConfig_LoadFromFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "engine.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"chunk_size": 512}`), 0o600))
	cfg, err := config.LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.ChunkSize)

	yamlPath := filepath.Join(dir, "engine.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("max_parallelism: 4\n"), 0o600))
	cfg, err = config.LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxParallelism)
}

func TestConfig_UnsupportedFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o600))

	_, err := config.LoadFromFile(path)
	assert.ErrorContains(t, err, "unsupported config file format: .toml")
}

func TestConfig_InvalidJSON(t *testing.T) {
	_, err := config.LoadFromJSON([]byte(`{"parallel_threshold": "many"`))
	assert.ErrorContains(t, err, "parsing JSON configuration")
}

func TestConfig_LoadFromNonExistentFile(t *testing.T) {
	_, err := config.LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("GIBBON_PARALLEL_THRESHOLD", "42")
	t.Setenv("GIBBON_WORKER_POOL_SIZE", "2")
	t.Setenv("GIBBON_FILTER_FUSION", "false")
	t.Setenv("GIBBON_VERBOSE_LOGGING", "true")
	t.Setenv("GIBBON_MAX_OPTIMIZER_PASSES", "not-a-number")

	cfg := config.LoadFromEnv()
	assert.Equal(t, 42, cfg.ParallelThreshold)
	assert.Equal(t, 2, cfg.WorkerPoolSize)
	assert.False(t, cfg.FilterFusion)
	assert.True(t, cfg.VerboseLogging)
	assert.Equal(t, config.DefaultMaxOptimizerPasses, cfg.MaxOptimizerPasses, "invalid values are ignored")
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := config.Config{WorkerPoolSize: 8}.WithDefaults()

	assert.Equal(t, config.DefaultParallelThreshold, cfg.ParallelThreshold)
	assert.Equal(t, config.DefaultMaxParallelism, cfg.MaxParallelism)
	assert.Equal(t, config.DefaultMaxOptimizerPasses, cfg.MaxOptimizerPasses)
	assert.Equal(t, 8, cfg.WorkerPoolSize)
	assert.False(t, cfg.FilterFusion, "booleans are not defaulted")
}

func TestGlobalConfig_SetAndGet(t *testing.T) {
	original := config.GetGlobalConfig()
	defer config.SetGlobalConfig(original)

	custom := config.NewConfig()
	custom.ParallelThreshold = 7
	config.SetGlobalConfig(custom)

	assert.Equal(t, 7, config.GetGlobalConfig().ParallelThreshold)
}

func TestConfig_Workers(t *testing.T) {
	cfg := config.NewConfig()
	assert.Positive(t, cfg.Workers())

	cfg.WorkerPoolSize = 3
	assert.Equal(t, 3, cfg.Workers())
}

func TestConfig_ValidationRecommendations(t *testing.T) {
	validator := config.NewConfigValidator()

	defaults, warnings, err := validator.Validate(config.NewConfig())
	require.NoError(t, err)
	assert.Positive(t, defaults.WorkerPoolSize, "worker count is filled in")
	assert.Empty(t, warnings, "defaults need no recommendations")

	cfg := config.NewConfig()
	cfg.FilterFusion = false
	cfg.PredicatePushdown = false
	cfg.ProjectionPruning = false

	validated, warnings, err := validator.Validate(cfg)
	require.NoError(t, err)
	assert.Positive(t, validated.WorkerPoolSize)
	assert.Equal(t, []string{"All optimizer rules are disabled, plans run as written"}, warnings)

	cfg.ParallelThreshold = 0
	_, _, err = validator.Validate(cfg)
	assert.Error(t, err)
}

func TestConfig_PerformanceTuner(t *testing.T) {
	cfg := config.NewConfig()
	tuner := config.NewPerformanceTuner(&cfg)

	small := tuner.OptimizeForDataset(10, 3)
	assert.Equal(t, 11, small.ParallelThreshold)
	assert.Equal(t, 2000, small.ChunkSize)

	large := tuner.OptimizeForDataset(2_000_000, 60)
	assert.Equal(t, 500, large.ParallelThreshold)
	assert.Equal(t, 100, large.ChunkSize)

	assert.Equal(t, 0, cfg.ChunkSize, "tuning leaves the source config untouched")
}

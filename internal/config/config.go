// Package config provides configuration management for the gibbon engine
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Config represents the engine configuration shared by planning, execution and anonymization
type Config struct {
	// Parallel Processing Configuration
	ParallelThreshold int `json:"parallel_threshold" yaml:"parallel_threshold"` // Minimum rows to evaluate columns concurrently
	WorkerPoolSize    int `json:"worker_pool_size" yaml:"worker_pool_size"`     // Number of worker goroutines (0 = auto-detect)
	ChunkSize         int `json:"chunk_size" yaml:"chunk_size"`                 // Rows per anonymization chunk (0 = auto-calculate)
	MaxParallelism    int `json:"max_parallelism" yaml:"max_parallelism"`       // Maximum number of concurrent expression evaluations

	// Query Optimization Configuration
	FilterFusion       bool `json:"filter_fusion" yaml:"filter_fusion"`               // Enable filter fusion
	PredicatePushdown  bool `json:"predicate_pushdown" yaml:"predicate_pushdown"`     // Enable predicate pushdown
	ProjectionPruning  bool `json:"projection_pruning" yaml:"projection_pruning"`     // Enable projection pruning
	MaxOptimizerPasses int  `json:"max_optimizer_passes" yaml:"max_optimizer_passes"` // Upper bound on fixed-point rewrite passes

	// Debugging Configuration
	VerboseLogging    bool `json:"verbose_logging" yaml:"verbose_logging"`       // Enable debug-level logging
	MetricsCollection bool `json:"metrics_collection" yaml:"metrics_collection"` // Enable per-node execution metrics
}

// SystemInfo contains system information for configuration validation
type SystemInfo struct {
	CPUCount     int
	Architecture string
	OSType       string
}

// ConfigValidator validates and provides recommendations for configuration
type ConfigValidator struct {
	systemInfo SystemInfo
}

// PerformanceTuner adjusts a configuration to the size of the data being processed
type PerformanceTuner struct {
	config *Config
	mu     sync.RWMutex
}

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

// Default configuration values
const (
	DefaultParallelThreshold  = 1000
	DefaultMaxParallelism     = 16
	DefaultMaxOptimizerPasses = 16
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "GIBBON_"

func init() {
	globalConfig = NewConfig()
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		ParallelThreshold: DefaultParallelThreshold,
		WorkerPoolSize:    0, // Auto-detect
		ChunkSize:         0, // Auto-calculate
		MaxParallelism:    DefaultMaxParallelism,

		FilterFusion:       true,
		PredicatePushdown:  true,
		ProjectionPruning:  true,
		MaxOptimizerPasses: DefaultMaxOptimizerPasses,

		VerboseLogging:    false,
		MetricsCollection: false,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.ParallelThreshold <= 0 {
		return fmt.Errorf("ParallelThreshold must be positive, got %d", c.ParallelThreshold)
	}

	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("WorkerPoolSize must be non-negative, got %d", c.WorkerPoolSize)
	}

	if c.ChunkSize < 0 {
		return fmt.Errorf("ChunkSize must be non-negative, got %d", c.ChunkSize)
	}

	if c.MaxParallelism <= 0 {
		return fmt.Errorf("MaxParallelism must be positive, got %d", c.MaxParallelism)
	}

	if c.MaxOptimizerPasses <= 0 {
		return fmt.Errorf("MaxOptimizerPasses must be positive, got %d", c.MaxOptimizerPasses)
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.ParallelThreshold == 0 {
		c.ParallelThreshold = defaults.ParallelThreshold
	}
	if c.MaxParallelism == 0 {
		c.MaxParallelism = defaults.MaxParallelism
	}
	if c.MaxOptimizerPasses == 0 {
		c.MaxOptimizerPasses = defaults.MaxOptimizerPasses
	}

	// Boolean fields are left alone so an explicit false survives.
	// Use NewConfig() directly if you need boolean defaults.

	return c
}

// Workers returns the effective worker count.
func (c Config) Workers() int {
	if c.WorkerPoolSize > 0 {
		return c.WorkerPoolSize
	}
	return runtime.NumCPU()
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	config := NewConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromYAML loads configuration from YAML data
func LoadFromYAML(data []byte) (Config, error) {
	config := NewConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing YAML configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a JSON or YAML file. Fields absent
// from the file keep their defaults.
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		config, err = LoadFromJSON(data)
	case ".yaml", ".yml":
		config, err = LoadFromYAML(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", filename, err)
	}

	return config, nil
}

// LoadFromEnv loads configuration from GIBBON_* environment variables.
// Unparseable values are ignored.
func LoadFromEnv() Config {
	config := NewConfig()

	envInt("PARALLEL_THRESHOLD", &config.ParallelThreshold)
	envInt("WORKER_POOL_SIZE", &config.WorkerPoolSize)
	envInt("CHUNK_SIZE", &config.ChunkSize)
	envInt("MAX_PARALLELISM", &config.MaxParallelism)
	envInt("MAX_OPTIMIZER_PASSES", &config.MaxOptimizerPasses)

	envBool("FILTER_FUSION", &config.FilterFusion)
	envBool("PREDICATE_PUSHDOWN", &config.PredicatePushdown)
	envBool("PROJECTION_PRUNING", &config.ProjectionPruning)
	envBool("VERBOSE_LOGGING", &config.VerboseLogging)
	envBool("METRICS_COLLECTION", &config.MetricsCollection)

	return config
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dst = parsed
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			*dst = parsed
		}
	}
}

// GetSystemInfo returns system information for configuration validation
func GetSystemInfo() SystemInfo {
	return SystemInfo{
		CPUCount:     runtime.NumCPU(),
		Architecture: runtime.GOARCH,
		OSType:       runtime.GOOS,
	}
}

// NewConfigValidator creates a new configuration validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		systemInfo: GetSystemInfo(),
	}
}

// Validate validates a configuration, fills in the worker count and returns
// recommendations for settings that are legal but likely unintended.
func (cv *ConfigValidator) Validate(config Config) (Config, []string, error) {
	var warnings []string
	validated := config

	if err := config.Validate(); err != nil {
		return Config{}, warnings, err
	}

	if config.WorkerPoolSize > cv.systemInfo.CPUCount*2 {
		warnings = append(warnings,
			fmt.Sprintf("Worker pool size (%d) exceeds 2x CPU count (%d), may cause contention",
				config.WorkerPoolSize, cv.systemInfo.CPUCount))
	}

	if !config.FilterFusion && !config.PredicatePushdown && !config.ProjectionPruning {
		warnings = append(warnings, "All optimizer rules are disabled, plans run as written")
	}

	if config.WorkerPoolSize == 0 {
		validated.WorkerPoolSize = cv.systemInfo.CPUCount
	}

	return validated, warnings, nil
}

// NewPerformanceTuner creates a new performance tuner
func NewPerformanceTuner(config *Config) *PerformanceTuner {
	return &PerformanceTuner{
		config: config,
	}
}

// OptimizeForDataset adapts thresholds and chunk size to the row and column count
func (pt *PerformanceTuner) OptimizeForDataset(rowCount int, columnCount int) Config {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	optimized := *pt.config

	if rowCount < 100 {
		optimized.ParallelThreshold = rowCount + 1 // Disable parallel for very small datasets
	} else if rowCount >= 1000000 {
		optimized.ParallelThreshold = 500
	}

	if optimized.ChunkSize == 0 {
		switch {
		case columnCount > 50:
			optimized.ChunkSize = 100
		case columnCount < 5:
			optimized.ChunkSize = 2000
		default:
			optimized.ChunkSize = max(rowCount/optimized.Workers(), 1)
		}
	}

	return optimized
}

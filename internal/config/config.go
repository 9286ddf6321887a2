// Package config provides configuration management for the submission
// preparation pipeline.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/gisaid-prep-pipeline/internal/domain"
)

// Config is the complete pipeline configuration.
type Config struct {
	Pipeline   PipelineConfig    `mapstructure:"pipeline"`
	Thresholds ThresholdConfig   `mapstructure:"thresholds"`
	Output     OutputConfig      `mapstructure:"output"`
	Archive    ArchiveConfig     `mapstructure:"archive"`
	Lab        LabConfig         `mapstructure:"lab"`
	Headers    map[string]string `mapstructure:"headers"` // virus id -> template override
	Logging    LoggingConfig     `mapstructure:"logging"`
}

// PipelineConfig controls batch execution.
type PipelineConfig struct {
	Workers   int `mapstructure:"workers"`
	CacheSize int `mapstructure:"cache_size"`
}

// ThresholdConfig carries the run-wide quality thresholds.
type ThresholdConfig struct {
	MinDepth    float64 `mapstructure:"min_depth"`
	MinCoverage float64 `mapstructure:"min_coverage"`
}

// OutputConfig controls where artifacts are written.
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	Combined bool   `mapstructure:"combined"`
}

// ArchiveConfig controls the SQLite run archive.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LabConfig maps samples to submitting laboratories. Assignments are lab
// name to LIMS ID entries, either exact IDs or ranges like "K001-K003".
type LabConfig struct {
	Default     string              `mapstructure:"default"`
	Assignments map[string][]string `mapstructure:"assignments"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Manager loads and validates configuration using Viper.
type Manager struct {
	config *Config
}

// NewManager loads configuration from file, environment and defaults.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("gisaid-prep")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/gisaid-prep/")

	viper.SetEnvPrefix("GISAID_PREP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional: defaults and env vars are enough to run.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("pipeline.workers", 4)
	viper.SetDefault("pipeline.cache_size", 64)

	viper.SetDefault("thresholds.min_depth", domain.DefaultMinDepth)
	viper.SetDefault("thresholds.min_coverage", domain.DefaultMinCoverage)

	viper.SetDefault("output.dir", ".")
	viper.SetDefault("output.combined", true)

	viper.SetDefault("archive.enabled", true)
	viper.SetDefault("archive.path", filepath.Join(".", "gisaid-prep-runs.db"))

	viper.SetDefault("lab.default", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Validate checks the configuration for values the pipeline cannot run
// with.
func (m *Manager) Validate() error {
	config := m.config

	if config.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline workers must be at least 1, got %d", config.Pipeline.Workers)
	}
	if config.Thresholds.MinDepth < 0 {
		return fmt.Errorf("minimum depth must not be negative, got %f", config.Thresholds.MinDepth)
	}
	if config.Thresholds.MinCoverage < 0 || config.Thresholds.MinCoverage > 100 {
		return fmt.Errorf("minimum coverage must be within 0-100, got %f", config.Thresholds.MinCoverage)
	}
	if config.Output.Dir == "" {
		return fmt.Errorf("output directory is required")
	}
	if config.Archive.Enabled && config.Archive.Path == "" {
		return fmt.Errorf("archive path is required when the archive is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// Reload re-reads the configuration sources.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// LabDirectory builds the lab directory from the configured assignments.
func (m *Manager) LabDirectory() (*domain.LabDirectory, error) {
	return domain.NewLabDirectory(m.config.Lab.Default, m.config.Lab.Assignments)
}

// HeaderOverride returns the configured header template for a virus, if
// any.
func (m *Manager) HeaderOverride(virusID string) (string, bool) {
	tpl, ok := m.config.Headers[virusID]
	return tpl, ok && tpl != ""
}

// Package config loads the service configuration from YAML with safe
// defaults for every section.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lumetric/lumetric/internal/attribution"
	"github.com/lumetric/lumetric/internal/optimize"
)

// Config is the top-level service configuration
type Config struct {
	Attribution AttributionConfig `yaml:"attribution"`
	MMM         MMMConfig         `yaml:"mmm"`
	Optimizer   OptimizerConfig   `yaml:"optimizer"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// AttributionConfig tunes weight computation and batch processing
type AttributionConfig struct {
	HalfLifeDays float64 `yaml:"half_life_days"`
	FirstWeight  float64 `yaml:"first_weight"`
	LastWeight   float64 `yaml:"last_weight"`
	BatchSize    int     `yaml:"batch_size"`
}

// MMMConfig holds training defaults applied when a model leaves them unset
type MMMConfig struct {
	Regularization float64 `yaml:"regularization"`
	Seasonality    bool    `yaml:"seasonality"`
	Trend          bool    `yaml:"trend"`
}

// OptimizerConfig tunes the budget search
type OptimizerConfig struct {
	MaxEvaluations  int     `yaml:"max_evaluations"`
	Tolerance       float64 `yaml:"tolerance"`
	InitialStepFrac float64 `yaml:"initial_step_frac"`
}

// StorageConfig selects the persistence and cache backends. An empty
// PostgresDSN runs the service on the in-memory store.
type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Enabled    bool   `yaml:"enabled"`
}

// Default returns the configuration used when no file is supplied
func Default() *Config {
	eng := attribution.DefaultConfig()
	sol := optimize.DefaultSolverConfig()
	return &Config{
		Attribution: AttributionConfig{
			HalfLifeDays: eng.HalfLifeDays,
			FirstWeight:  eng.FirstWeight,
			LastWeight:   eng.LastWeight,
			BatchSize:    100,
		},
		MMM: MMMConfig{
			Regularization: 1.0,
			Seasonality:    true,
			Trend:          true,
		},
		Optimizer: OptimizerConfig{
			MaxEvaluations:  sol.MaxEvaluations,
			Tolerance:       sol.Tolerance,
			InitialStepFrac: sol.InitialStepFrac,
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
			Enabled:    true,
		},
	}
}

// Load reads a YAML config file over the defaults. Fields absent from the
// file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration back to a YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects values the numeric layers would refuse at runtime
func (c *Config) Validate() error {
	if c.Attribution.HalfLifeDays <= 0 {
		return fmt.Errorf("attribution: half_life_days must be positive, got %g", c.Attribution.HalfLifeDays)
	}
	if c.Attribution.FirstWeight < 0 || c.Attribution.LastWeight < 0 ||
		c.Attribution.FirstWeight+c.Attribution.LastWeight >= 1.0 {
		return fmt.Errorf("attribution: position weights %g+%g must be non-negative and sum below 1",
			c.Attribution.FirstWeight, c.Attribution.LastWeight)
	}
	if c.Attribution.BatchSize <= 0 {
		return fmt.Errorf("attribution: batch_size must be positive, got %d", c.Attribution.BatchSize)
	}
	if c.MMM.Regularization < 0 {
		return fmt.Errorf("mmm: regularization must be non-negative, got %g", c.MMM.Regularization)
	}
	if c.Optimizer.MaxEvaluations <= 0 {
		return fmt.Errorf("optimizer: max_evaluations must be positive, got %d", c.Optimizer.MaxEvaluations)
	}
	if c.Optimizer.Tolerance <= 0 {
		return fmt.Errorf("optimizer: tolerance must be positive, got %g", c.Optimizer.Tolerance)
	}
	return nil
}

// EngineConfig maps the attribution section onto the engine's config
func (c *Config) EngineConfig() attribution.Config {
	return attribution.Config{
		HalfLifeDays: c.Attribution.HalfLifeDays,
		FirstWeight:  c.Attribution.FirstWeight,
		LastWeight:   c.Attribution.LastWeight,
	}
}

// SolverConfig maps the optimizer section onto the solver's config
func (c *Config) SolverConfig() optimize.SolverConfig {
	cfg := optimize.DefaultSolverConfig()
	cfg.MaxEvaluations = c.Optimizer.MaxEvaluations
	cfg.Tolerance = c.Optimizer.Tolerance
	cfg.InitialStepFrac = c.Optimizer.InitialStepFrac
	return cfg
}

// DefaultPath returns where the service looks for its config file
func DefaultPath() string {
	return filepath.Join("config", "lumetric.yaml")
}

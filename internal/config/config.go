package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/blocksim/internal/dynamo"
	"github.com/san-kum/blocksim/internal/solver"
)

const (
	DefaultModel         = "first_order"
	DefaultDuration      = 10.0
	DefaultSteps         = 1000
	DefaultTolerance     = solver.DefaultTolerance
	DefaultMaxIterations = solver.DefaultMaxIterations
	DefaultStoreKind     = "file"
	DefaultStorePath     = ".blocksim"
)

type Config struct {
	Model    string             `yaml:"model"`
	Duration float64            `yaml:"duration"`
	Steps    int                `yaml:"steps"`
	Params   map[string]float64 `yaml:"params,omitempty"`
	Solver   SolverConfig       `yaml:"solver"`
	Store    StoreConfig        `yaml:"store"`
}

type SolverConfig struct {
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"max_iterations"`
}

type StoreConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:    DefaultModel,
		Duration: DefaultDuration,
		Steps:    DefaultSteps,
		Solver: SolverConfig{
			Tolerance:     DefaultTolerance,
			MaxIterations: DefaultMaxIterations,
		},
		Store: StoreConfig{
			Kind: DefaultStoreKind,
			Path: DefaultStorePath,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Dt is the fixed time step of the run.
func (c *Config) Dt() float64 {
	if c.Steps <= 0 {
		return 0
	}
	return c.Duration / float64(c.Steps)
}

// Param returns the named model parameter, or def when unset.
func (c *Config) Param(name string, def float64) float64 {
	if v, ok := c.Params[name]; ok {
		return v
	}
	return def
}

// SetParam records a model parameter.
func (c *Config) SetParam(name string, v float64) {
	if c.Params == nil {
		c.Params = make(map[string]float64)
	}
	c.Params[name] = v
}

// Clone returns a deep copy so presets can be customised safely.
func (c *Config) Clone() *Config {
	out := *c
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return &out
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", dynamo.ErrInvalidConfig)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %g", dynamo.ErrInvalidConfig, c.Duration)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", dynamo.ErrInvalidConfig, c.Steps)
	}
	if c.Solver.Tolerance <= 0 {
		return fmt.Errorf("%w: solver tolerance must be positive", dynamo.ErrInvalidConfig)
	}
	if c.Solver.MaxIterations <= 0 {
		return fmt.Errorf("%w: solver max_iterations must be positive", dynamo.ErrInvalidConfig)
	}
	switch c.Store.Kind {
	case "file", "sqlite":
	default:
		return fmt.Errorf("%w: unknown store kind %q", dynamo.ErrInvalidConfig, c.Store.Kind)
	}
	return nil
}

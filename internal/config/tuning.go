// Package config loads solver tuning from JSON. The schema uses pointer
// fields so partial configs are safe: fields omitted from the file keep
// their built-in defaults, and the same JSON can seed different
// deployments of the controller without regenerating anything.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	longmpc "github.com/driveplan/longmpc"
)

// TuningConfig represents the tunable solver parameters. Weight
// magnitudes are deliberately configuration, not formulation: the cost
// structure fixes which terms exist, the caller injects how hard each
// one pulls.
type TuningConfig struct {
	// Cost weights
	StageWeights    *[]float64 `json:"stage_weights,omitempty"`    // 4 entries
	TerminalWeights *[]float64 `json:"terminal_weights,omitempty"` // 3 entries

	// Discretisation
	SubSteps *int `json:"sub_steps,omitempty"`

	// Solver budgets
	GNIterations    *int     `json:"gn_iterations,omitempty"`
	QPMaxIterations *int     `json:"qp_max_iterations,omitempty"`
	StepTolerance   *float64 `json:"step_tolerance,omitempty"`
	Regularization  *float64 `json:"regularization,omitempty"`

	// Constraints
	VelocityMin *float64 `json:"velocity_min,omitempty"`

	// Warm-start staleness, duration string like "1s"
	StaleAfter *string `json:"stale_after,omitempty"`

	// Default driver preference used by tools when no selector input is
	// available
	TimeGapDefault *float64 `json:"time_gap_default,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.StageWeights != nil && len(*c.StageWeights) != 4 {
		return fmt.Errorf("stage_weights must have 4 entries, got %d", len(*c.StageWeights))
	}
	if c.TerminalWeights != nil && len(*c.TerminalWeights) != 3 {
		return fmt.Errorf("terminal_weights must have 3 entries, got %d", len(*c.TerminalWeights))
	}
	if c.SubSteps != nil && *c.SubSteps < 1 {
		return fmt.Errorf("sub_steps must be >= 1, got %d", *c.SubSteps)
	}
	if c.GNIterations != nil && *c.GNIterations < 1 {
		return fmt.Errorf("gn_iterations must be >= 1, got %d", *c.GNIterations)
	}
	if c.QPMaxIterations != nil && *c.QPMaxIterations < 1 {
		return fmt.Errorf("qp_max_iterations must be >= 1, got %d", *c.QPMaxIterations)
	}
	if c.StaleAfter != nil && *c.StaleAfter != "" {
		if _, err := time.ParseDuration(*c.StaleAfter); err != nil {
			return fmt.Errorf("invalid stale_after '%s': %w", *c.StaleAfter, err)
		}
	}
	if c.TimeGapDefault != nil && *c.TimeGapDefault <= 0 {
		return fmt.Errorf("time_gap_default must be positive, got %f", *c.TimeGapDefault)
	}
	return nil
}

// GetStaleAfter parses and returns the StaleAfter as a time.Duration.
func (c *TuningConfig) GetStaleAfter() time.Duration {
	if c.StaleAfter == nil || *c.StaleAfter == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.StaleAfter)
	if err != nil {
		return time.Second // default on parse error
	}
	return d
}

// GetTimeGapDefault returns the time_gap_default value or the default.
func (c *TuningConfig) GetTimeGapDefault() float64 {
	if c.TimeGapDefault == nil {
		return 1.5 // seconds
	}
	return *c.TimeGapDefault
}

// ControllerConfig merges the tuning values onto the reference solver
// configuration. The horizon grid is structural, not tunable here.
func (c *TuningConfig) ControllerConfig() longmpc.Config {
	cfg := longmpc.DefaultConfig()
	if c.StageWeights != nil {
		copy(cfg.StageWeights[:], *c.StageWeights)
	}
	if c.TerminalWeights != nil {
		copy(cfg.TerminalWeights[:], *c.TerminalWeights)
	}
	if c.SubSteps != nil {
		cfg.SubSteps = *c.SubSteps
	}
	if c.GNIterations != nil {
		cfg.GNIterations = *c.GNIterations
	}
	if c.QPMaxIterations != nil {
		cfg.QPMaxIterations = *c.QPMaxIterations
	}
	if c.StepTolerance != nil {
		cfg.StepTolerance = *c.StepTolerance
	}
	if c.Regularization != nil {
		cfg.Regularization = *c.Regularization
	}
	if c.VelocityMin != nil {
		cfg.VelocityMin = *c.VelocityMin
	}
	cfg.StaleAfter = c.GetStaleAfter()
	return cfg
}

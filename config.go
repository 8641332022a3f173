package longmpc

import (
	"fmt"
	"time"
)

// Config fixes the problem structure at construction time. None of these
// values change per tick; the per-tick inputs travel through
// Controller.RunTick instead.
type Config struct {
	// Grid holds the shooting interval durations in seconds. The
	// reference grid covers a 10 s horizon with fine near-term intervals
	// and coarse far ones.
	Grid []float64

	// SubSteps is the number of internal RK4 sub-steps per interval.
	SubSteps int

	// StageWeights scales the four stage residual terms: exponential
	// safety-margin penalty, gap-tracking error, acceleration effort,
	// jerk effort. The formulation leaves magnitudes to the caller; the
	// defaults are tuned for comfortable highway following.
	StageWeights [stageResidualDim]float64

	// TerminalWeights scales the three terminal residual terms (no jerk
	// term at the terminal node).
	TerminalWeights [terminalResidualDim]float64

	// GNIterations is the number of Gauss-Newton/QP steps per tick. The
	// reference configuration performs exactly one (real-time
	// iteration).
	GNIterations int

	// QPMaxIterations bounds the active-set iterations inside the QP
	// kernel. Exceeding it degrades the tick to the best iterate found.
	QPMaxIterations int

	// VelocityMin is the lower bound enforced on every stage velocity
	// through the condensed QP inequalities.
	VelocityMin float64

	// StepTolerance declares convergence when the control perturbation
	// infinity-norm falls below it.
	StepTolerance float64

	// Regularization is the Levenberg term added to the Gauss-Newton
	// Hessian diagonal.
	Regularization float64

	// StaleAfter discards the warm start when the reported time since
	// the previous tick exceeds it; a stale trajectory is worse than a
	// cold start.
	StaleAfter time.Duration
}

// DefaultGrid returns the reference non-uniform horizon: 5 intervals of
// 0.2 s followed by 15 of 0.6 s, 10 s total.
func DefaultGrid() []float64 {
	grid := make([]float64, 20)
	for i := range grid {
		if i < 5 {
			grid[i] = 0.2
		} else {
			grid[i] = 0.6
		}
	}
	return grid
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Grid:            DefaultGrid(),
		SubSteps:        50,
		StageWeights:    [stageResidualDim]float64{5.0, 0.1, 10.0, 20.0},
		TerminalWeights: [terminalResidualDim]float64{5.0, 0.1, 10.0},
		GNIterations:    1,
		QPMaxIterations: 500,
		VelocityMin:     0,
		StepTolerance:   1e-6,
		Regularization:  1e-8,
		StaleAfter:      time.Second,
	}
}

func (c Config) validate() error {
	if len(c.Grid) < 1 {
		return fmt.Errorf("grid must have at least one interval")
	}
	for i, dt := range c.Grid {
		if dt <= 0 || !isFinite(dt) {
			return fmt.Errorf("grid interval %d must be positive, got %v", i, dt)
		}
	}
	if c.SubSteps < 1 {
		return fmt.Errorf("sub-steps must be >= 1, got %d", c.SubSteps)
	}
	for i, w := range c.StageWeights {
		if w < 0 || !isFinite(w) {
			return fmt.Errorf("stage weight %d must be non-negative, got %v", i, w)
		}
	}
	if c.StageWeights[3] <= 0 {
		return fmt.Errorf("jerk weight must be positive to keep the Hessian definite, got %v", c.StageWeights[3])
	}
	for i, w := range c.TerminalWeights {
		if w < 0 || !isFinite(w) {
			return fmt.Errorf("terminal weight %d must be non-negative, got %v", i, w)
		}
	}
	if c.GNIterations < 1 {
		return fmt.Errorf("gauss-newton iterations must be >= 1, got %d", c.GNIterations)
	}
	if c.QPMaxIterations < 1 {
		return fmt.Errorf("qp iteration budget must be >= 1, got %d", c.QPMaxIterations)
	}
	if c.Regularization < 0 {
		return fmt.Errorf("regularization must be non-negative, got %v", c.Regularization)
	}
	return nil
}

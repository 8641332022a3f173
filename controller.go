package longmpc

import (
	"fmt"
	"time"
)

// TickInput is the per-tick measurement set supplied by the surrounding
// stack. Positions may be absolute or ego-relative as long as ego and
// lead share a frame within the tick.
type TickInput struct {
	EgoPosition  float64 // m
	EgoVelocity  float64 // m/s
	EgoAccel     float64 // m/s²
	LeadPosition float64 // m
	LeadVelocity float64 // m/s
	TimeGap      float64 // s, driver-selected following preference

	// Elapsed is the time since the previous tick, used for warm-start
	// staleness checks. Zero on the first tick.
	Elapsed time.Duration
}

// Controller is the per-tick entry point used by the surrounding stack.
// It validates the online parameters, maintains the warm-started
// trajectory across ticks, and runs one bounded solve per call.
//
// Single-threaded by contract: one solve executes to completion per tick
// and there is no concurrent solve for the same trajectory. If a sensor
// thread delivers lead state asynchronously, hand it off through a
// single-slot most-recent-wins buffer (see internal/canlink) rather than
// calling RunTick concurrently.
type Controller struct {
	cfg    Config
	solver *solver

	lastParams OnlineParams
	haveParams bool
}

// NewController constructs a controller with the structure fixed by cfg.
// The trajectory is created once here with a zero-state straight-line
// guess and persists across ticks.
func NewController(cfg Config) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("longmpc: invalid config: %w", err)
	}
	// Decouple the retained grid from the caller's slice.
	cfg.Grid = append([]float64(nil), cfg.Grid...)
	return &Controller{cfg: cfg, solver: newSolver(cfg)}, nil
}

// Horizon returns the total horizon length in seconds.
func (c *Controller) Horizon() float64 {
	var sum float64
	for _, dt := range c.cfg.Grid {
		sum += dt
	}
	return sum
}

// RunTick executes one solve. It always returns a Solution with an
// explicit status; it never panics on degenerate input.
func (c *Controller) RunTick(in TickInput) Solution {
	x0 := State{Position: in.EgoPosition, Velocity: in.EgoVelocity, Accel: in.EgoAccel}
	if !isFinite(x0.Position) || !isFinite(x0.Velocity) || !isFinite(x0.Accel) {
		// Without a trustworthy ego state there is nothing to pin; hand
		// back the retained plan, flagged.
		return Solution{
			Trajectory:    c.solver.traj.clone(),
			Status:        StatusDegraded,
			JerkCommand:   c.solver.traj.Stages[0].Control,
			DegradedInput: true,
		}
	}

	degradedInput := false
	p := OnlineParams{
		LeadPosition: in.LeadPosition,
		LeadVelocity: in.LeadVelocity,
		TimeGap:      in.TimeGap,
	}
	if !p.Valid() {
		if !c.haveParams {
			// No previous parameters to fall back on.
			return Solution{
				Trajectory:    c.solver.traj.clone(),
				Status:        StatusDegraded,
				JerkCommand:   c.solver.traj.Stages[0].Control,
				DegradedInput: true,
			}
		}
		p = c.lastParams
		degradedInput = true
	}

	if in.Elapsed > c.cfg.StaleAfter {
		c.solver.reset(x0)
	}

	sol := c.solver.solve(x0, p)
	sol.DegradedInput = degradedInput
	c.lastParams = p
	c.haveParams = true
	return sol
}

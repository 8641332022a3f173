package longmpc

import (
	"errors"
	"math"
	"time"

	"github.com/driveplan/longmpc/internal/qp"
)

// Solution is the product of one control tick: the full predicted
// trajectory, the realised cost, the commanded jerk for immediate
// actuation, and the solver status. On StatusInfeasible the trajectory is
// the retained previous plan and must not be actuated.
type Solution struct {
	Trajectory  *Trajectory
	Cost        float64
	Status      Status
	JerkCommand float64 // first control value, m/s³

	// DegradedInput marks a tick whose online parameters were rejected
	// and replaced with the previous tick's values.
	DegradedInput bool

	Stats SolveStats
}

// SolveStats carries per-tick solver telemetry for stack-side
// diagnostics.
type SolveStats struct {
	GNSteps      int
	QPIterations int
	StepNorm     float64 // infinity norm of the last control perturbation
	SolveTime    time.Duration
}

// qpKernel is the contract required of the QP numerical kernel: accept a
// QP, return a solution or infeasibility, support warm starting.
type qpKernel interface {
	Solve(qp.Problem) (qp.Result, error)
	Reset()
}

// solver drives the Gauss-Newton real-time iteration for one vehicle.
// Exactly one instance per vehicle; ticks are serialized by the caller.
type solver struct {
	cfg    Config
	integ  *rk4Integrator
	kernel qpKernel

	// traj persists across ticks as the warm start.
	traj   *Trajectory
	params OnlineParams
}

func newSolver(cfg Config) *solver {
	return &solver{
		cfg:    cfg,
		integ:  newRK4Integrator(Dynamics{}, cfg.SubSteps),
		kernel: qp.NewSolver(cfg.QPMaxIterations),
		traj:   newTrajectory(cfg.Grid, State{}),
	}
}

// solve runs one tick: pin the first stage to the measured ego state,
// re-propagate the warm-started controls, then iterate
// linearise → condense → QP → update.
func (s *solver) solve(x0 State, p OnlineParams) Solution {
	start := time.Now()
	s.params = p
	s.traj.Stages[0].State = x0

	stats := SolveStats{}
	status := StatusConverged

	if !s.propagate() {
		// NumericalDivergence: recover on the safe straight-line guess.
		s.reset(x0)
		return s.finish(StatusDegraded, stats, start)
	}

	for it := 0; it < s.cfg.GNIterations; it++ {
		prob, err := s.condense()
		if err != nil {
			s.reset(x0)
			status = StatusDegraded
			break
		}

		res, err := s.kernel.Solve(prob)
		stats.QPIterations += res.Iterations
		switch {
		case errors.Is(err, qp.ErrInfeasible):
			// Leave the retained controls untouched; the caller falls
			// back to its own conservative plan.
			return s.finish(StatusInfeasible, stats, start)
		case errors.Is(err, qp.ErrIterationLimit):
			status = StatusDegraded
		case err != nil:
			s.reset(x0)
			return s.finish(StatusDegraded, stats, start)
		}

		if len(res.X) != len(s.cfg.Grid) {
			break
		}
		for k := range res.X {
			s.traj.Stages[k].Control += res.X[k]
		}
		stats.GNSteps++
		stats.StepNorm = infNorm(res.X)

		if !s.propagate() {
			s.reset(x0)
			status = StatusDegraded
			break
		}
		if stats.StepNorm <= s.cfg.StepTolerance {
			break
		}
	}

	return s.finish(status, stats, start)
}

// propagate integrates the dynamics forward from the pinned initial
// state, overwriting every downstream stage state. Returns false if the
// propagation left the finite range.
func (s *solver) propagate() bool {
	st := s.traj.Stages[0].State
	for k := 0; k < len(s.cfg.Grid); k++ {
		st = s.integ.Propagate(st, s.traj.Stages[k].Control, s.cfg.Grid[k])
		s.traj.Stages[k+1].State = st
	}
	return s.traj.finite()
}

// reset rewrites the trajectory to the straight-line guess and drops the
// QP hot start, which refers to a working set that no longer matches.
func (s *solver) reset(x0 State) {
	s.traj.reset(s.cfg.Grid, x0)
	s.kernel.Reset()
}

func (s *solver) finish(status Status, stats SolveStats, start time.Time) Solution {
	cost := totalCost(s.traj, s.params, s.cfg.StageWeights, s.cfg.TerminalWeights)
	if !isFinite(cost) {
		s.reset(s.traj.Stages[0].State)
		status = StatusDegraded
		cost = totalCost(s.traj, s.params, s.cfg.StageWeights, s.cfg.TerminalWeights)
	}
	stats.SolveTime = time.Since(start)
	return Solution{
		Trajectory:    s.traj.clone(),
		Cost:          cost,
		Status:        status,
		JerkCommand:   s.traj.Stages[0].Control,
		Stats:         stats,
		DegradedInput: false,
	}
}

func infNorm(v []float64) float64 {
	var n float64
	for _, x := range v {
		if a := math.Abs(x); a > n {
			n = a
		}
	}
	return n
}

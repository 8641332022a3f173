package longmpc

// Stage is one node of the discretised horizon: the state estimate at the
// node, the jerk applied over the following interval, and the interval's
// duration. The terminal node has no interval and no control.
type Stage struct {
	Index    int
	Duration float64 // s; zero at the terminal node
	State    State
	Control  float64 // jerk, m/s³; unused at the terminal node
}

// Trajectory is the ordered sequence of stages representing the current
// best guess: number-of-intervals + 1 entries, fixed at construction,
// never reordered. It is mutated in place by each solver iteration and
// retained across ticks as the warm start.
type Trajectory struct {
	Stages []Stage
}

// newTrajectory builds the startup guess: all-zero controls and
// straight-line propagation at the initial velocity.
func newTrajectory(grid []float64, x0 State) *Trajectory {
	t := &Trajectory{Stages: make([]Stage, len(grid)+1)}
	t.reset(grid, x0)
	return t
}

// reset rewrites the trajectory in place to the safe straight-line guess
// from x0: zero jerk, zero acceleration, constant (non-negative)
// velocity. Used at startup and to recover from numerical divergence.
func (t *Trajectory) reset(grid []float64, x0 State) {
	v := x0.Velocity
	if v < 0 {
		v = 0
	}
	pos := x0.Position
	t.Stages[0] = Stage{Index: 0, Duration: grid[0], State: x0}
	for k := 1; k < len(t.Stages); k++ {
		pos += v * grid[k-1]
		dur := 0.0
		if k < len(grid) {
			dur = grid[k]
		}
		t.Stages[k] = Stage{
			Index:    k,
			Duration: dur,
			State:    State{Position: pos, Velocity: v},
		}
	}
}

// clone returns a deep copy, used to hand a Solution to the caller
// without exposing the retained warm start.
func (t *Trajectory) clone() *Trajectory {
	c := &Trajectory{Stages: make([]Stage, len(t.Stages))}
	copy(c.Stages, t.Stages)
	return c
}

// Controls returns the jerk sequence over the shooting intervals.
func (t *Trajectory) Controls() []float64 {
	out := make([]float64, len(t.Stages)-1)
	for k := range out {
		out[k] = t.Stages[k].Control
	}
	return out
}

// finite reports whether every state and control in the trajectory is
// finite.
func (t *Trajectory) finite() bool {
	for i := range t.Stages {
		s := &t.Stages[i]
		if !isFinite(s.State.Position) || !isFinite(s.State.Velocity) ||
			!isFinite(s.State.Accel) || !isFinite(s.Control) {
			return false
		}
	}
	return true
}

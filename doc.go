// Package longmpc computes an optimal longitudinal plan for following a
// lead vehicle. Once per control tick it solves a finite-horizon optimal
// control problem over ego jerk: the continuous dynamics are discretised
// on a fixed non-uniform grid by multiple shooting with RK4 integration,
// the nonlinear least-squares cost is linearised about the warm-started
// trajectory, states are condensed out, and the resulting dense QP over
// the 20 control perturbations is solved by a hot-started active-set
// kernel. The reference configuration performs exactly one Gauss-Newton
// step per tick (real-time iteration), trading per-tick optimality for
// bounded latency.
//
// The package is an in-process computational component: the surrounding
// stack supplies ego state, lead state and the driver's following-time
// preference each tick through Controller.RunTick and consumes the
// returned Solution. It owns no wire protocol and keeps no history.
package longmpc

package longmpc

// Status classifies the outcome of one solve tick. The caller always
// receives a Solution with an explicit status; Infeasible and Degraded
// are contract, not crashes, and the stack is expected to apply its own
// fallback plan on either.
type Status int

const (
	// StatusConverged means the real-time-iteration step was accepted:
	// either the perturbation norm fell below tolerance or the single
	// configured Gauss-Newton step completed within budget.
	StatusConverged Status = iota

	// StatusDegraded means the tick produced a usable but sub-optimal
	// plan: the iteration budget ran out, the input was rejected, or the
	// trajectory had to be reset after numerical divergence.
	StatusDegraded

	// StatusInfeasible means the QP kernel found no feasible point. The
	// retained trajectory is left unchanged and the caller must fall
	// back to a conservative default plan.
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusDegraded:
		return "degraded"
	case StatusInfeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

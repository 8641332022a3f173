// Package qp provides a dense quadratic-programming kernel behind a
// narrow contract: accept a strictly convex QP, return a solution or
// signal infeasibility, and support hot starting from the previous
// solve's active set. It solves one problem shape (small, dense,
// inequality-constrained) with bounded iterations; it is not a
// general-purpose optimisation library.
package qp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Problem is a strictly convex dense quadratic program
//
//	minimise ½·xᵀHx + gᵀx  subject to  Cx ≥ d.
type Problem struct {
	H *mat.Dense // n×n, symmetric positive definite
	G []float64  // length n
	C *mat.Dense // m×n; nil when there are no constraints
	D []float64  // length m
}

// Result is a successful (or budget-limited) solve.
type Result struct {
	X          []float64
	Lambda     []float64 // multipliers, one per entry of Active
	Active     []int     // constraint rows active at the solution
	Iterations int       // KKT solves performed
}

var (
	// ErrInfeasible reports that no point satisfies the constraints.
	ErrInfeasible = errors.New("qp: no feasible point")

	// ErrIterationLimit reports that the iteration budget ran out. The
	// accompanying Result holds the best iterate found.
	ErrIterationLimit = errors.New("qp: iteration limit reached")
)

// constraintTol is the feasibility and multiplier tolerance.
const constraintTol = 1e-9

// Solver is a dense active-set kernel. It retains the working set across
// calls so an unchanged problem re-solves in a single KKT step (hot
// start). One Solver instance serves one problem stream; it is not safe
// for concurrent use.
type Solver struct {
	maxIter int
	working []int
}

// NewSolver returns a kernel with the given iteration budget.
func NewSolver(maxIter int) *Solver {
	if maxIter < 1 {
		maxIter = 1
	}
	return &Solver{maxIter: maxIter}
}

// Reset discards the retained working set, forcing the next solve cold.
func (s *Solver) Reset() {
	s.working = s.working[:0]
}

// Solve runs the active-set iteration. Each iteration solves the
// equality-constrained subproblem over the current working set, then
// either drops a constraint with a negative multiplier or adds the most
// violated one. Hot starting seeds the working set from the previous
// call; when the active set has not changed the first subproblem is
// already optimal.
func (s *Solver) Solve(p Problem) (Result, error) {
	n := len(p.G)
	if r, c := p.H.Dims(); r != n || c != n {
		return Result{}, fmt.Errorf("qp: hessian is %dx%d, want %dx%d", r, c, n, n)
	}
	m := 0
	if p.C != nil {
		var c int
		m, c = p.C.Dims()
		if c != n {
			return Result{}, fmt.Errorf("qp: constraint matrix has %d columns, want %d", c, n)
		}
		if len(p.D) != m {
			return Result{}, fmt.Errorf("qp: constraint vector has %d entries, want %d", len(p.D), m)
		}
	}

	// Hot start: previous working set, dropped if the problem shrank.
	working := filterWorking(s.working, m)

	var (
		x         []float64
		lambda    []float64
		restarted bool
	)
	for iter := 1; iter <= s.maxIter; iter++ {
		var err error
		x, lambda, err = solveKKT(p, working)
		if err != nil {
			// A singular KKT system from a hot-started set may just be
			// stale; retry cold once. From a fresh set it means the
			// working constraints are dependent and unsatisfiable.
			if !restarted && len(working) > 0 {
				restarted = true
				working = working[:0]
				continue
			}
			return Result{}, ErrInfeasible
		}

		if drop := mostNegative(lambda); drop >= 0 {
			working = append(working[:drop], working[drop+1:]...)
			continue
		}

		add, viol := worstViolation(p, x, working)
		if viol <= constraintTol {
			s.working = append(s.working[:0], working...)
			return Result{
				X:          x,
				Lambda:     append([]float64(nil), lambda...),
				Active:     append([]int(nil), working...),
				Iterations: iter,
			}, nil
		}
		if len(working) == n {
			return Result{}, ErrInfeasible
		}
		working = append(working, add)
	}

	s.working = append(s.working[:0], working...)
	return Result{
		X:          x,
		Lambda:     append([]float64(nil), lambda...),
		Active:     append([]int(nil), working...),
		Iterations: s.maxIter,
	}, ErrIterationLimit
}

// filterWorking filters a retained set down to valid rows for the new problem.
func filterWorking(prev []int, m int) []int {
	out := make([]int, 0, len(prev))
	for _, i := range prev {
		if i >= 0 && i < m {
			out = append(out, i)
		}
	}
	return out
}

// solveKKT solves the equality-constrained subproblem over the working
// set W:
//
//	[ H  −C_Wᵀ ] [x]   [−g ]
//	[ C_W   0  ] [λ] = [d_W]
func solveKKT(p Problem, w []int) (x, lambda []float64, err error) {
	n := len(p.G)
	dim := n + len(w)

	k := mat.NewDense(dim, dim, nil)
	rhs := mat.NewVecDense(dim, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			k.Set(i, j, p.H.At(i, j))
		}
		rhs.SetVec(i, -p.G[i])
	}
	for wi, row := range w {
		for j := 0; j < n; j++ {
			c := p.C.At(row, j)
			k.Set(j, n+wi, -c)
			k.Set(n+wi, j, c)
		}
		rhs.SetVec(n+wi, p.D[row])
	}

	var lu mat.LU
	lu.Factorize(k)
	sol := mat.NewVecDense(dim, nil)
	if err := lu.SolveVecTo(sol, false, rhs); err != nil {
		if _, nearSingular := err.(mat.Condition); !nearSingular {
			return nil, nil, err
		}
	}

	x = make([]float64, n)
	for i := range x {
		x[i] = sol.AtVec(i)
		if !finite(x[i]) {
			return nil, nil, errors.New("qp: kkt solution not finite")
		}
	}
	lambda = make([]float64, len(w))
	for i := range lambda {
		lambda[i] = sol.AtVec(n + i)
		if !finite(lambda[i]) {
			return nil, nil, errors.New("qp: kkt solution not finite")
		}
	}
	return x, lambda, nil
}

// mostNegative returns the index (into the working set) of the most
// negative multiplier, or -1 if all are acceptably non-negative.
func mostNegative(lambda []float64) int {
	idx, min := -1, -constraintTol
	for i, l := range lambda {
		if l < min {
			idx, min = i, l
		}
	}
	return idx
}

// worstViolation returns the most violated constraint row outside the
// working set and its violation d_j − c_jᵀx.
func worstViolation(p Problem, x []float64, w []int) (int, float64) {
	if p.C == nil {
		return -1, 0
	}
	inSet := make(map[int]bool, len(w))
	for _, i := range w {
		inSet[i] = true
	}
	m, n := p.C.Dims()
	idx, worst := -1, 0.0
	for row := 0; row < m; row++ {
		if inSet[row] {
			continue
		}
		dot := 0.0
		for j := 0; j < n; j++ {
			dot += p.C.At(row, j) * x[j]
		}
		if v := p.D[row] - dot; v > worst {
			idx, worst = row, v
		}
	}
	return idx, worst
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

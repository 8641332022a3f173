package qp

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestSolveUnconstrained(t *testing.T) {
	// min x² + y² − 2x − 4y  →  (1, 2)
	p := Problem{
		H: mat.NewDense(2, 2, []float64{2, 0, 0, 2}),
		G: []float64{-2, -4},
	}
	s := NewSolver(10)
	res, err := s.Solve(p)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if math.Abs(res.X[0]-1) > 1e-12 || math.Abs(res.X[1]-2) > 1e-12 {
		t.Errorf("x = %v, want [1 2]", res.X)
	}
	if res.Iterations != 1 {
		t.Errorf("iterations = %d, want 1 for an unconstrained solve", res.Iterations)
	}
	if len(res.Active) != 0 {
		t.Errorf("active set = %v, want empty", res.Active)
	}
}

func TestSolveActiveBoundAndHotStart(t *testing.T) {
	// min ½x² subject to x ≥ 1. The unconstrained optimum violates the
	// bound, so the cold solve needs one extra KKT step to pick it up; the
	// hot-started re-solve lands in one.
	p := Problem{
		H: mat.NewDense(1, 1, []float64{1}),
		G: []float64{0},
		C: mat.NewDense(1, 1, []float64{1}),
		D: []float64{1},
	}
	s := NewSolver(10)

	cold, err := s.Solve(p)
	if err != nil {
		t.Fatalf("cold Solve: %v", err)
	}
	if math.Abs(cold.X[0]-1) > 1e-12 {
		t.Errorf("cold x = %v, want 1", cold.X[0])
	}
	if len(cold.Active) != 1 || cold.Active[0] != 0 {
		t.Errorf("cold active set = %v, want [0]", cold.Active)
	}
	if math.Abs(cold.Lambda[0]-1) > 1e-12 {
		t.Errorf("cold multiplier = %v, want 1", cold.Lambda[0])
	}
	if cold.Iterations != 2 {
		t.Errorf("cold iterations = %d, want 2", cold.Iterations)
	}

	hot, err := s.Solve(p)
	if err != nil {
		t.Fatalf("hot Solve: %v", err)
	}
	if hot.Iterations != 1 {
		t.Errorf("hot iterations = %d, want 1", hot.Iterations)
	}
	if math.Abs(hot.X[0]-1) > 1e-12 {
		t.Errorf("hot x = %v, want 1", hot.X[0])
	}

	s.Reset()
	cold2, err := s.Solve(p)
	if err != nil {
		t.Fatalf("post-reset Solve: %v", err)
	}
	if cold2.Iterations != 2 {
		t.Errorf("post-reset iterations = %d, want cold-start 2", cold2.Iterations)
	}
}

func TestSolveDropsStaleConstraint(t *testing.T) {
	// Seed the working set with a bound that is inactive at the optimum of
	// a shifted problem: the solver must drop it rather than return a
	// point pinned to the stale constraint.
	p := Problem{
		H: mat.NewDense(1, 1, []float64{1}),
		G: []float64{0},
		C: mat.NewDense(1, 1, []float64{1}),
		D: []float64{1},
	}
	s := NewSolver(10)
	if _, err := s.Solve(p); err != nil {
		t.Fatalf("seed Solve: %v", err)
	}

	// Same geometry, optimum now at x = 3, well inside x ≥ 1.
	p.G = []float64{-3}
	res, err := s.Solve(p)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if math.Abs(res.X[0]-3) > 1e-12 {
		t.Errorf("x = %v, want 3", res.X[0])
	}
	if len(res.Active) != 0 {
		t.Errorf("active set = %v, want the stale bound dropped", res.Active)
	}
}

func TestSolveTwoActiveConstraints(t *testing.T) {
	// min ½‖x‖² subject to x₁ ≥ 1, x₂ ≥ 2  →  (1, 2) with both bounds
	// active.
	p := Problem{
		H: mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
		G: []float64{0, 0},
		C: mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
		D: []float64{1, 2},
	}
	s := NewSolver(10)
	res, err := s.Solve(p)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if math.Abs(res.X[0]-1) > 1e-12 || math.Abs(res.X[1]-2) > 1e-12 {
		t.Errorf("x = %v, want [1 2]", res.X)
	}
	if len(res.Active) != 2 {
		t.Errorf("active set = %v, want both bounds", res.Active)
	}
	for _, l := range res.Lambda {
		if l < -constraintTol {
			t.Errorf("negative multiplier %v at the optimum", l)
		}
	}
}

func TestSolveInfeasible(t *testing.T) {
	// x ≥ 1 and −x ≥ 1 cannot both hold.
	p := Problem{
		H: mat.NewDense(1, 1, []float64{1}),
		G: []float64{0},
		C: mat.NewDense(2, 1, []float64{1, -1}),
		D: []float64{1, 1},
	}
	s := NewSolver(50)
	if _, err := s.Solve(p); !errors.Is(err, ErrInfeasible) {
		t.Errorf("err = %v, want ErrInfeasible", err)
	}
}

func TestSolveIterationLimit(t *testing.T) {
	// Budget of one KKT solve cannot both find and enforce the bound.
	p := Problem{
		H: mat.NewDense(1, 1, []float64{1}),
		G: []float64{0},
		C: mat.NewDense(1, 1, []float64{1}),
		D: []float64{1},
	}
	s := NewSolver(1)
	res, err := s.Solve(p)
	if !errors.Is(err, ErrIterationLimit) {
		t.Fatalf("err = %v, want ErrIterationLimit", err)
	}
	if res.Iterations != 1 {
		t.Errorf("iterations = %d, want the full budget 1", res.Iterations)
	}
}

func TestSolveDimensionChecks(t *testing.T) {
	s := NewSolver(10)
	if _, err := s.Solve(Problem{
		H: mat.NewDense(2, 2, nil),
		G: []float64{0},
	}); err == nil {
		t.Error("expected error for hessian/gradient size mismatch")
	}
	if _, err := s.Solve(Problem{
		H: mat.NewDense(1, 1, []float64{1}),
		G: []float64{0},
		C: mat.NewDense(1, 2, nil),
		D: []float64{0},
	}); err == nil {
		t.Error("expected error for constraint column mismatch")
	}
}

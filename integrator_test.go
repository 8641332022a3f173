package longmpc

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// closedForm is the exact solution of the triple integrator under constant
// jerk.
func closedForm(s State, jerk, t float64) State {
	return State{
		Position: s.Position + s.Velocity*t + s.Accel*t*t/2 + jerk*t*t*t/6,
		Velocity: s.Velocity + s.Accel*t + jerk*t*t/2,
		Accel:    s.Accel + jerk*t,
	}
}

func TestPropagateMatchesClosedForm(t *testing.T) {
	integ := newRK4Integrator(Dynamics{}, 50)
	cases := []struct {
		name string
		s    State
		jerk float64
		dt   float64
	}{
		{"short", State{Position: 1, Velocity: 10, Accel: -0.5}, 0.3, 0.2},
		{"long", State{Position: -3, Velocity: 25, Accel: 1.2}, -1.1, 0.6},
		{"rest", State{}, 0.7, 0.6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := integ.Propagate(tc.s, tc.jerk, tc.dt)
			want := closedForm(tc.s, tc.jerk, tc.dt)
			if math.Abs(got.Position-want.Position) > 1e-9 ||
				math.Abs(got.Velocity-want.Velocity) > 1e-9 ||
				math.Abs(got.Accel-want.Accel) > 1e-9 {
				t.Errorf("Propagate = %+v, want %+v", got, want)
			}
		})
	}
}

func TestPropagateSubStepInvariance(t *testing.T) {
	// The model is linear with a nilpotent state matrix, so RK4 is exact
	// regardless of sub-step count.
	s := State{Position: 4, Velocity: 13, Accel: 0.8}
	coarse := newRK4Integrator(Dynamics{}, 1).Propagate(s, -0.4, 0.6)
	fine := newRK4Integrator(Dynamics{}, 200).Propagate(s, -0.4, 0.6)
	if math.Abs(coarse.Position-fine.Position) > 1e-9 ||
		math.Abs(coarse.Velocity-fine.Velocity) > 1e-9 ||
		math.Abs(coarse.Accel-fine.Accel) > 1e-9 {
		t.Errorf("sub-step counts disagree: 1 step %+v, 200 steps %+v", coarse, fine)
	}
}

func TestSensitivitiesMatchFiniteDifferences(t *testing.T) {
	integ := newRK4Integrator(Dynamics{}, 50)
	const dt = 0.6
	const eps = 1e-6
	base := State{Position: 2, Velocity: 8, Accel: -0.2}
	jerk := 0.5

	a, b := integ.Sensitivities(dt)

	for dim := 0; dim < stateDim; dim++ {
		plusState, minusState := base, base
		switch dim {
		case 0:
			plusState.Position += eps
			minusState.Position -= eps
		case 1:
			plusState.Velocity += eps
			minusState.Velocity -= eps
		case 2:
			plusState.Accel += eps
			minusState.Accel -= eps
		}
		plus := integ.Propagate(plusState, jerk, dt).vector()
		minus := integ.Propagate(minusState, jerk, dt).vector()
		for i := 0; i < stateDim; i++ {
			fd := (plus[i] - minus[i]) / (2 * eps)
			if math.Abs(a.At(i, dim)-fd) > 1e-6 {
				t.Errorf("A[%d][%d] = %v, finite difference %v", i, dim, a.At(i, dim), fd)
			}
		}
	}

	plus := integ.Propagate(base, jerk+eps, dt).vector()
	minus := integ.Propagate(base, jerk-eps, dt).vector()
	for i := 0; i < stateDim; i++ {
		fd := (plus[i] - minus[i]) / (2 * eps)
		if math.Abs(b.AtVec(i)-fd) > 1e-6 {
			t.Errorf("B[%d] = %v, finite difference %v", i, b.AtVec(i), fd)
		}
	}
}

func TestSensitivitiesExactForLinearModel(t *testing.T) {
	// For ẋ = Ax + Bu the propagated state must equal Φx + Γu exactly.
	integ := newRK4Integrator(Dynamics{}, 50)
	const dt = 0.2
	a, b := integ.Sensitivities(dt)

	s := State{Position: -1, Velocity: 17, Accel: 0.9}
	jerk := -0.6

	sv := s.vector()
	pred := mat.NewVecDense(stateDim, nil)
	pred.MulVec(a, mat.NewVecDense(stateDim, sv[:]))
	pred.AddScaledVec(pred, jerk, b)

	got := integ.Propagate(s, jerk, dt).vector()
	for i := 0; i < stateDim; i++ {
		if math.Abs(pred.AtVec(i)-got[i]) > 1e-9 {
			t.Errorf("linear prediction component %d = %v, Propagate gives %v", i, pred.AtVec(i), got[i])
		}
	}
}

func TestSensitivitiesCached(t *testing.T) {
	integ := newRK4Integrator(Dynamics{}, 50)
	a1, b1 := integ.Sensitivities(0.6)
	a2, b2 := integ.Sensitivities(0.6)
	if a1 != a2 || b1 != b2 {
		t.Error("expected cached sensitivity matrices to be reused")
	}
}

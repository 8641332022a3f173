package longmpc

import "gonum.org/v1/gonum/mat"

const stateDim = 3

// State is the longitudinal ego-vehicle state along the driven path.
type State struct {
	Position float64 // m
	Velocity float64 // m/s
	Accel    float64 // m/s²
}

// Dynamics is the continuous-time longitudinal motion model: a triple
// integrator driven by jerk.
//
//	d(position)/dt = velocity
//	d(velocity)/dt = acceleration
//	d(acceleration)/dt = jerk
type Dynamics struct{}

// Derivative returns the time-derivative of the state at the given state
// and jerk input. Pure function, evaluated at arbitrary points by the
// integrator.
func (Dynamics) Derivative(s State, jerk float64) State {
	return State{
		Position: s.Velocity,
		Velocity: s.Accel,
		Accel:    jerk,
	}
}

// StateJacobian returns ∂f/∂x. The model is linear, so the Jacobian is
// constant.
func (Dynamics) StateJacobian() *mat.Dense {
	return mat.NewDense(stateDim, stateDim, []float64{
		0, 1, 0,
		0, 0, 1,
		0, 0, 0,
	})
}

// ControlJacobian returns ∂f/∂u.
func (Dynamics) ControlJacobian() *mat.VecDense {
	return mat.NewVecDense(stateDim, []float64{0, 0, 1})
}

func (s State) vector() [stateDim]float64 {
	return [stateDim]float64{s.Position, s.Velocity, s.Accel}
}

func stateFromVector(v [stateDim]float64) State {
	return State{Position: v[0], Velocity: v[1], Accel: v[2]}
}

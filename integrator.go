package longmpc

import "gonum.org/v1/gonum/mat"

// rk4Integrator turns the continuous dynamics into discrete transitions
// across the shooting intervals. Each interval is subdivided into a fixed
// number of internal RK4 sub-steps so that integration accuracy is
// independent of the outer interval length on the non-uniform grid.
type rk4Integrator struct {
	dyn      Dynamics
	subSteps int

	// Constant continuous-time Jacobians of the (linear) model.
	ac *mat.Dense
	bc *mat.VecDense

	// Cached per-interval sensitivities keyed by interval length. The
	// model is linear, so they depend only on dt; the horizon grid has
	// two distinct interval lengths.
	sens map[float64]intervalSens
}

type intervalSens struct {
	a *mat.Dense    // ∂next/∂state, stateDim×stateDim
	b *mat.VecDense // ∂next/∂control, stateDim
}

func newRK4Integrator(dyn Dynamics, subSteps int) *rk4Integrator {
	return &rk4Integrator{
		dyn:      dyn,
		subSteps: subSteps,
		ac:       dyn.StateJacobian(),
		bc:       dyn.ControlJacobian(),
		sens:     make(map[float64]intervalSens),
	}
}

// Propagate advances the state across one interval of length dt under a
// constant jerk input.
func (r *rk4Integrator) Propagate(s State, jerk, dt float64) State {
	h := dt / float64(r.subSteps)
	for i := 0; i < r.subSteps; i++ {
		s = r.step(s, jerk, h)
	}
	return s
}

// step performs a single classical RK4 sub-step of length h.
func (r *rk4Integrator) step(s State, jerk, h float64) State {
	k1 := r.dyn.Derivative(s, jerk)
	k2 := r.dyn.Derivative(addScaled(s, k1, h/2), jerk)
	k3 := r.dyn.Derivative(addScaled(s, k2, h/2), jerk)
	k4 := r.dyn.Derivative(addScaled(s, k3, h), jerk)

	v := s.vector()
	v1, v2, v3, v4 := k1.vector(), k2.vector(), k3.vector(), k4.vector()
	for i := range v {
		v[i] += h / 6 * (v1[i] + 2*v2[i] + 2*v3[i] + v4[i])
	}
	return stateFromVector(v)
}

func addScaled(s, d State, h float64) State {
	return State{
		Position: s.Position + h*d.Position,
		Velocity: s.Velocity + h*d.Velocity,
		Accel:    s.Accel + h*d.Accel,
	}
}

// Sensitivities returns the Jacobians of the propagated state with
// respect to the interval's initial state and control, composed across
// the internal sub-steps by the RK4 chain rule. The motion model is
// linear, so the sensitivities depend only on the interval length and
// agree exactly with Propagate.
func (r *rk4Integrator) Sensitivities(dt float64) (*mat.Dense, *mat.VecDense) {
	if s, ok := r.sens[dt]; ok {
		return s.a, s.b
	}

	h := dt / float64(r.subSteps)
	ad, bd := r.subStepSensitivities(h)

	// Compose the sub-step maps: Φ ← Ad·Φ, Γ ← Ad·Γ + Bd.
	a := identity(stateDim)
	b := mat.NewVecDense(stateDim, nil)
	for i := 0; i < r.subSteps; i++ {
		var na mat.Dense
		na.Mul(ad, a)
		a = &na

		nb := mat.NewVecDense(stateDim, nil)
		nb.MulVec(ad, b)
		nb.AddVec(nb, bd)
		b = nb
	}

	r.sens[dt] = intervalSens{a: a, b: b}
	return a, b
}

// subStepSensitivities builds the discrete state and control maps of a
// single RK4 sub-step applied to ẋ = Ax + Bu:
//
//	K1 = A, K2 = A(I + h/2·K1), K3 = A(I + h/2·K2), K4 = A(I + h·K3)
//	Ad = I + h/6·(K1 + 2K2 + 2K3 + K4)
//
// and the matching input map through the same stage chain.
func (r *rk4Integrator) subStepSensitivities(h float64) (*mat.Dense, *mat.VecDense) {
	id := identity(stateDim)

	k1 := mat.DenseCopyOf(r.ac)
	k2 := rkStageMat(r.ac, id, k1, h/2)
	k3 := rkStageMat(r.ac, id, k2, h/2)
	k4 := rkStageMat(r.ac, id, k3, h)

	ad := identity(stateDim)
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			ad.Set(i, j, ad.At(i, j)+h/6*(k1.At(i, j)+2*k2.At(i, j)+2*k3.At(i, j)+k4.At(i, j)))
		}
	}

	l1 := mat.VecDenseCopyOf(r.bc)
	l2 := rkStageVec(r.ac, r.bc, l1, h/2)
	l3 := rkStageVec(r.ac, r.bc, l2, h/2)
	l4 := rkStageVec(r.ac, r.bc, l3, h)

	bd := mat.NewVecDense(stateDim, nil)
	for i := 0; i < stateDim; i++ {
		bd.SetVec(i, h/6*(l1.AtVec(i)+2*l2.AtVec(i)+2*l3.AtVec(i)+l4.AtVec(i)))
	}

	return ad, bd
}

// rkStageMat computes A·(I + h·K) for the state sensitivity chain.
func rkStageMat(a, id, k *mat.Dense, h float64) *mat.Dense {
	var t, out mat.Dense
	t.Scale(h, k)
	t.Add(id, &t)
	out.Mul(a, &t)
	return &out
}

// rkStageVec computes A·(h·L) + B for the control sensitivity chain.
func rkStageVec(a *mat.Dense, b, l *mat.VecDense, h float64) *mat.VecDense {
	t := mat.NewVecDense(stateDim, nil)
	t.ScaleVec(h, l)
	out := mat.NewVecDense(stateDim, nil)
	out.MulVec(a, t)
	out.AddVec(out, b)
	return out
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

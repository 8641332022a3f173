package longmpc

import "math"

// gravity is the gravitational constant used in the braking-distance term
// of the safety margin.
const gravity = 9.81

const (
	stageResidualDim    = 4
	terminalResidualDim = 3
)

// SafetyMargin is the reaction-plus-braking-distance margin RW: the
// distance consumed reacting at the current closing speed plus the
// differential stopping distance between ego and lead.
//
//	RW = v·tg − (v_l−v)·tg + v²/(2g) − v_l²/(2g)
func SafetyMargin(v, vLead, timeGap float64) float64 {
	return v*timeGap - (vLead-v)*timeGap + v*v/(2*gravity) - vLead*vLead/(2*gravity)
}

// FollowConstM is the sigmoid-shaped minimum desired gap in metres. It
// shrinks from ~4 m at speed toward ~1.5 m as the ego comes to a stop, so
// stop-and-go following does not hold a full car length.
func FollowConstM(v float64) float64 {
	return 2.75/(1+math.Exp(2.2-0.9*v)) + 1.25
}

// DesiredGap is the target following distance at the given ego velocity,
// lead velocity and time-gap preference.
func DesiredGap(v, vLead, timeGap float64) float64 {
	return FollowConstM(v) + SafetyMargin(v, vLead, timeGap)
}

// normRWError normalises the raw safety-margin violation by a
// speed-dependent scale. The scale keeps the term well conditioned near
// standstill and de-weights it at highway speed.
func normRWError(v, vLead, gap, timeGap float64) float64 {
	return (SafetyMargin(v, vLead, timeGap) + 4.0 - gap) / (math.Sqrt(v+0.5) + 0.1)
}

// stageResiduals evaluates the four stage cost terms and their first
// derivatives with respect to state (position, velocity, acceleration)
// and control (jerk). The terms, each scaled later by an externally
// injected weight:
//
//	r₀ = exp(0.3·normRWError)      exponential safety-margin penalty
//	r₁ = (gap − desired)/(0.05v+0.5)  gap-tracking error
//	r₂ = a·(0.1v+1)                acceleration effort
//	r₃ = j·(0.1v+1)                jerk effort
//
// The residuals depend only on the stage's own state/control and the
// shared online parameters. If the velocity guess falls below −0.5 m/s
// the square root goes NaN; the solver's finiteness checks catch that and
// reset the trajectory.
func stageResiduals(s State, jerk float64, p OnlineParams) (r [stageResidualDim]float64, jx [stageResidualDim][stateDim]float64, ju [stageResidualDim]float64) {
	v := s.Velocity
	gap := p.LeadPosition - s.Position

	rw := SafetyMargin(v, p.LeadVelocity, p.TimeGap)
	drw := 2*p.TimeGap + v/gravity

	// Exponential safety-margin penalty.
	s1 := math.Sqrt(v+0.5) + 0.1
	ds1 := 0.5 / math.Sqrt(v+0.5)
	num := rw + 4.0 - gap
	e := num / s1
	r[0] = math.Exp(0.3 * e)
	jx[0][0] = 0.3 * r[0] / s1 // gap falls as ego position rises
	jx[0][1] = 0.3 * r[0] * (drw*s1 - num*ds1) / (s1 * s1)

	// Gap-tracking error, speed-normalised.
	sig := 1 / (1 + math.Exp(2.2-0.9*v))
	fc := 2.75*sig + 1.25
	dfc := 2.75 * 0.9 * sig * (1 - sig)
	s2 := 0.05*v + 0.5
	num2 := gap - fc - rw
	r[1] = num2 / s2
	jx[1][0] = -1 / s2
	jx[1][1] = (-(dfc+drw)*s2 - num2*0.05) / (s2 * s2)

	// Acceleration effort, scaled up with speed for comfort.
	scale := 0.1*v + 1.0
	r[2] = s.Accel * scale
	jx[2][1] = 0.1 * s.Accel
	jx[2][2] = scale

	// Jerk effort, same scaling.
	r[3] = jerk * scale
	jx[3][1] = 0.1 * jerk
	ju[3] = scale

	return r, jx, ju
}

// terminalResiduals evaluates the terminal cost terms: the stage terms
// minus the jerk effort, since no control acts at the terminal node.
func terminalResiduals(s State, p OnlineParams) (r [terminalResidualDim]float64, jx [terminalResidualDim][stateDim]float64) {
	full, fullJx, _ := stageResiduals(s, 0, p)
	for i := 0; i < terminalResidualDim; i++ {
		r[i] = full[i]
		jx[i] = fullJx[i]
	}
	return r, jx
}

// totalCost is the weighted nonlinear least-squares objective evaluated
// at the trajectory: ½·Σ wᵢrᵢ² over all stages plus the terminal node.
func totalCost(t *Trajectory, p OnlineParams, stageW [stageResidualDim]float64, termW [terminalResidualDim]float64) float64 {
	var cost float64
	last := len(t.Stages) - 1
	for k := 0; k < last; k++ {
		st := t.Stages[k]
		r, _, _ := stageResiduals(st.State, st.Control, p)
		for i, w := range stageW {
			cost += 0.5 * w * r[i] * r[i]
		}
	}
	rN, _ := terminalResiduals(t.Stages[last].State, p)
	for i, w := range termW {
		cost += 0.5 * w * rN[i] * rN[i]
	}
	return cost
}

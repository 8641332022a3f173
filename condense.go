package longmpc

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/driveplan/longmpc/internal/qp"
)

// errNonFinite reports numerical divergence during linearisation: some
// residual, Jacobian or propagated state stopped being finite.
var errNonFinite = errors.New("longmpc: linearization produced non-finite values")

// condense linearises dynamics and cost about the current trajectory and
// eliminates the state variables, leaving a dense QP over the control
// perturbations δu.
//
// With the initial state pinned, δx₀ = 0 and the linearised transitions
// give δx_{k+1} = A_k·δx_k + B_k·δu_k, so every state perturbation is a
// linear map of the controls: δx_k = E_k·δu, built by the recursion
// E_{k+1} = A_k·E_k with B_k added into column k. Each stage residual
// then linearises to r_k + J_k·δu with J_k = Rx_k·E_k (+ Ru_k in column
// k), and the Gauss-Newton objective condenses to
//
//	H = Σ J_kᵀ·W·J_k (+ terminal term + regularisation)
//	g = Σ J_kᵀ·W·r_k (+ terminal term).
//
// The velocity lower bound at stage k becomes the control-space row
// E_k[velocity]·δu ≥ vmin − v_k.
func (s *solver) condense() (qp.Problem, error) {
	n := len(s.cfg.Grid)

	h := mat.NewDense(n, n, nil)
	g := make([]float64, n)
	c := mat.NewDense(n, n, nil)
	d := make([]float64, n)

	e := mat.NewDense(stateDim, n, nil) // E_k: δx_k = E_k·δu

	for k := 0; k < n; k++ {
		st := s.traj.Stages[k]
		r, rx, ru := stageResiduals(st.State, st.Control, s.params)
		accumulate(h, g, e, r[:], flatten(rx[:]), ru[:], s.cfg.StageWeights[:], k)

		// Advance the sensitivity map across the interval.
		ak, bk := s.integ.Sensitivities(st.Duration)
		var next mat.Dense
		next.Mul(ak, e)
		for i := 0; i < stateDim; i++ {
			next.Set(i, k, next.At(i, k)+bk.AtVec(i))
		}
		e.Copy(&next)

		// Velocity bound at stage k+1, condensed into control space.
		for j := 0; j <= k; j++ {
			c.Set(k, j, e.At(1, j))
		}
		d[k] = s.cfg.VelocityMin - s.traj.Stages[k+1].State.Velocity
	}

	rN, rxN := terminalResiduals(s.traj.Stages[n].State, s.params)
	accumulate(h, g, e, rN[:], flatten(rxN[:]), nil, s.cfg.TerminalWeights[:], -1)

	for i := 0; i < n; i++ {
		h.Set(i, i, h.At(i, i)+s.cfg.Regularization)
	}

	if !allFinite(h.RawMatrix().Data) || !allFinite(g) || !allFinite(c.RawMatrix().Data) || !allFinite(d) {
		return qp.Problem{}, errNonFinite
	}
	return qp.Problem{H: h, G: g, C: c, D: d}, nil
}

// accumulate folds one stage's linearised residuals into the condensed
// Hessian and gradient. uCol is the control column for the stage's own
// input, or -1 at the terminal node.
func accumulate(h *mat.Dense, g []float64, e *mat.Dense, r []float64, rx []float64, ru []float64, w []float64, uCol int) {
	dim := len(r)
	_, n := e.Dims()

	// J = Rx·E, with the direct control sensitivity in column uCol.
	rxm := mat.NewDense(dim, stateDim, rx)
	var j mat.Dense
	j.Mul(rxm, e)
	if uCol >= 0 {
		for i := 0; i < dim; i++ {
			j.Set(i, uCol, j.At(i, uCol)+ru[i])
		}
	}

	// H += Jᵀ·W·J, g += Jᵀ·W·r with diagonal W.
	wj := mat.NewDense(dim, n, nil)
	for i := 0; i < dim; i++ {
		for col := 0; col < n; col++ {
			wj.Set(i, col, w[i]*j.At(i, col))
		}
	}
	var hk mat.Dense
	hk.Mul(j.T(), wj)
	h.Add(h, &hk)

	for col := 0; col < n; col++ {
		sum := 0.0
		for i := 0; i < dim; i++ {
			sum += j.At(i, col) * w[i] * r[i]
		}
		g[col] += sum
	}
}

func flatten(rows [][stateDim]float64) []float64 {
	out := make([]float64, 0, len(rows)*stateDim)
	for i := range rows {
		out = append(out, rows[i][:]...)
	}
	return out
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if !isFinite(x) {
			return false
		}
	}
	return true
}

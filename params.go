package longmpc

import "math"

// OnlineParams carries the per-tick external inputs that parameterise the
// cost without changing the problem structure: the lead vehicle's position
// and velocity in the same frame as the ego state, and the driver-selected
// following time gap. Values are held constant across all horizon stages
// within one solve.
type OnlineParams struct {
	LeadPosition float64 // m
	LeadVelocity float64 // m/s
	TimeGap      float64 // s
}

// Valid reports whether the parameters are usable: all fields finite and
// the time gap positive. Invalid parameters are rejected by the
// Controller, which reuses the previous tick's values instead.
func (p OnlineParams) Valid() bool {
	if !isFinite(p.LeadPosition) || !isFinite(p.LeadVelocity) || !isFinite(p.TimeGap) {
		return false
	}
	return p.TimeGap > 0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package canlink

import (
	"sync/atomic"
	"time"
)

// Observation is one fused sensor snapshot for the control loop: the
// lead track relative to the ego plus the ego's own longitudinal state.
type Observation struct {
	LeadDistance float64 // m, gap ahead of the ego
	LeadSpeed    float64 // m/s, absolute
	TimeGap      float64 // s, driver preference
	EgoSpeed     float64 // m/s
	EgoAccel     float64 // m/s²
	Received     time.Time
}

// Latest is the single-slot most-recent-wins hand-off between the sensor
// goroutine and the control tick. Store overwrites unconditionally; Load
// never blocks. A queue here would be wrong: the tick wants the newest
// lead data, and losing an intermediate sample is preferable to
// delaying the solve.
type Latest struct {
	slot atomic.Pointer[Observation]
}

// Store publishes an observation, replacing whatever was there.
func (l *Latest) Store(o Observation) {
	l.slot.Store(&o)
}

// Load returns the most recent observation, if any has arrived.
func (l *Latest) Load() (Observation, bool) {
	p := l.slot.Load()
	if p == nil {
		return Observation{}, false
	}
	return *p, true
}

// Package canlink ingests lead-vehicle and ego-state observations from a
// CAN bus and hands the most recent values to the control loop. The
// hand-off is a single-slot most-recent-wins buffer: the control tick
// must never block on sensor delivery, and stale lead data beats a
// queued backlog.
package canlink

import "sort"

// SignalDef describes one little-endian signal within a frame payload.
type SignalDef struct {
	Name      string
	StartBit  int
	BitLength int
	Signed    bool
	Factor    float64
	Offset    float64
	Min       float64
	Max       float64
	Unit      string
}

// FrameDef describes one CAN frame layout.
type FrameDef struct {
	ID      uint32
	Name    string
	DLC     int
	Signals []SignalDef
}

// FrameMap indexes frame definitions by identifier and name.
type FrameMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

// NewFrameMap builds the lookup tables for a set of frame definitions.
func NewFrameMap(frames ...*FrameDef) *FrameMap {
	m := &FrameMap{
		ByID:   make(map[uint32]*FrameDef, len(frames)),
		ByName: make(map[string]*FrameDef, len(frames)),
	}
	for _, f := range frames {
		m.ByID[f.ID] = f
		m.ByName[f.Name] = f
	}
	return m
}

// FrameNames returns the defined frame names in sorted order.
func (m *FrameMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Frame identifiers for the follow-control signal set.
const (
	LeadTrackFrameID uint32 = 0x221
	EgoStateFrameID  uint32 = 0x1A0
	PlanFrameID      uint32 = 0x2E5
)

// DefaultFrameMap returns the frame layout used by the follow
// controller: the radar lead track, the ego longitudinal state, and the
// outbound plan command.
func DefaultFrameMap() *FrameMap {
	return NewFrameMap(
		&FrameDef{
			ID:   LeadTrackFrameID,
			Name: "LEAD_TRACK",
			DLC:  8,
			Signals: []SignalDef{
				{Name: "LEAD_DISTANCE", StartBit: 0, BitLength: 16, Factor: 0.01, Min: 0, Max: 300, Unit: "m"},
				{Name: "LEAD_SPEED", StartBit: 16, BitLength: 16, Signed: true, Factor: 0.01, Min: -100, Max: 100, Unit: "m/s"},
				{Name: "TIME_GAP", StartBit: 32, BitLength: 8, Factor: 0.05, Min: 0, Max: 5, Unit: "s"},
				{Name: "TRACK_VALID", StartBit: 40, BitLength: 1, Factor: 1, Max: 1},
			},
		},
		&FrameDef{
			ID:   EgoStateFrameID,
			Name: "EGO_STATE",
			DLC:  8,
			Signals: []SignalDef{
				{Name: "EGO_SPEED", StartBit: 0, BitLength: 16, Factor: 0.01, Min: 0, Max: 100, Unit: "m/s"},
				{Name: "EGO_ACCEL", StartBit: 16, BitLength: 16, Signed: true, Factor: 0.001, Min: -20, Max: 20, Unit: "m/s²"},
			},
		},
		&FrameDef{
			ID:   PlanFrameID,
			Name: "LONG_PLAN",
			DLC:  8,
			Signals: []SignalDef{
				{Name: "JERK_CMD", StartBit: 0, BitLength: 16, Signed: true, Factor: 0.001, Min: -20, Max: 20, Unit: "m/s³"},
				{Name: "ACCEL_PLAN", StartBit: 16, BitLength: 16, Signed: true, Factor: 0.001, Min: -20, Max: 20, Unit: "m/s²"},
				{Name: "PLAN_STATUS", StartBit: 32, BitLength: 2, Factor: 1, Max: 3},
			},
		},
	)
}

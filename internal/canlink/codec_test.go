package canlink

import (
	"math"
	"testing"
)

func TestLeadTrackRoundTrip(t *testing.T) {
	m := DefaultFrameMap()
	in := map[string]float64{
		"LEAD_DISTANCE": 42.37,
		"LEAD_SPEED":    -3.50,
		"TIME_GAP":      1.5,
		"TRACK_VALID":   1,
	}
	f, err := m.EncodeFrame("LEAD_TRACK", in)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if f.ID != LeadTrackFrameID || f.Length != 8 {
		t.Errorf("frame header = id 0x%X len %d, want 0x%X len 8", f.ID, f.Length, LeadTrackFrameID)
	}

	out, err := m.DecodeFrame(f.ID, f.Data[:f.Length])
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	for name, want := range in {
		if got := out[name]; math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestPlanFrameRoundTrip(t *testing.T) {
	m := DefaultFrameMap()
	in := map[string]float64{
		"JERK_CMD":    -1.234,
		"ACCEL_PLAN":  0.500,
		"PLAN_STATUS": 2,
	}
	f, err := m.EncodeFrame("LONG_PLAN", in)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	out, err := m.DecodeFrame(PlanFrameID, f.Data[:f.Length])
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	for name, want := range in {
		if got := out[name]; math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestEncodeClampsToSignalRange(t *testing.T) {
	m := DefaultFrameMap()
	f, err := m.EncodeFrame("LEAD_TRACK", map[string]float64{
		"LEAD_DISTANCE": 400, // above the 300 m ceiling
		"LEAD_SPEED":    -150,
		"TRACK_VALID":   1,
	})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	out, err := m.DecodeFrame(LeadTrackFrameID, f.Data[:f.Length])
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if out["LEAD_DISTANCE"] != 300 {
		t.Errorf("LEAD_DISTANCE = %v, want clamped 300", out["LEAD_DISTANCE"])
	}
	if out["LEAD_SPEED"] != -100 {
		t.Errorf("LEAD_SPEED = %v, want clamped -100", out["LEAD_SPEED"])
	}
}

func TestEncodeMissingSignalsZero(t *testing.T) {
	m := DefaultFrameMap()
	f, err := m.EncodeFrame("EGO_STATE", map[string]float64{"EGO_SPEED": 13.5})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	out, err := m.DecodeFrame(EgoStateFrameID, f.Data[:f.Length])
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if out["EGO_ACCEL"] != 0 {
		t.Errorf("EGO_ACCEL = %v, want 0 when omitted", out["EGO_ACCEL"])
	}
	if math.Abs(out["EGO_SPEED"]-13.5) > 1e-9 {
		t.Errorf("EGO_SPEED = %v, want 13.5", out["EGO_SPEED"])
	}
}

func TestDecodeUnknownFrame(t *testing.T) {
	m := DefaultFrameMap()
	if _, err := m.DecodeFrame(0x7FF, make([]byte, 8)); err == nil {
		t.Error("expected error for an unknown identifier")
	}
	if _, err := m.EncodeFrame("NO_SUCH_FRAME", nil); err == nil {
		t.Error("expected error for an unknown frame name")
	}
}

func TestDecodeShortPayload(t *testing.T) {
	m := DefaultFrameMap()
	if _, err := m.DecodeFrame(LeadTrackFrameID, make([]byte, 4)); err == nil {
		t.Error("expected error for a truncated payload")
	}
}

func TestFrameNamesSorted(t *testing.T) {
	m := DefaultFrameMap()
	names := m.FrameNames()
	want := []string{"EGO_STATE", "LEAD_TRACK", "LONG_PLAN"}
	if len(names) != len(want) {
		t.Fatalf("FrameNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("FrameNames()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

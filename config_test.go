package longmpc

import (
	"math"
	"testing"
)

func TestDefaultGridShape(t *testing.T) {
	grid := DefaultGrid()
	if len(grid) != 20 {
		t.Fatalf("grid has %d intervals, want 20", len(grid))
	}
	var sum float64
	for i, dt := range grid {
		want := 0.6
		if i < 5 {
			want = 0.2
		}
		if dt != want {
			t.Errorf("interval %d = %v, want %v", i, dt, want)
		}
		sum += dt
	}
	if math.Abs(sum-10.0) > 1e-9 {
		t.Errorf("horizon sums to %v, want 10.0", sum)
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusConverged:  "converged",
		StatusDegraded:   "degraded",
		StatusInfeasible: "infeasible",
		Status(42):       "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

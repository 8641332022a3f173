package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false", u)
		}
	}
	for _, u := range []string{"", "knots", "MPH", "m/s"} {
		if IsValid(u) {
			t.Errorf("IsValid(%q) = true", u)
		}
	}
}

func TestConvertSpeed(t *testing.T) {
	cases := []struct {
		mps   float64
		units string
		want  float64
	}{
		{10, MPS, 10},
		{10, MPH, 22.369362920544},
		{10, KMPH, 36},
		{10, KPH, 36},
		{0, MPH, 0},
		{10, "unknown", 10},
	}
	for _, tc := range cases {
		if got := ConvertSpeed(tc.mps, tc.units); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ConvertSpeed(%v, %q) = %v, want %v", tc.mps, tc.units, got, tc.want)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	cases := []struct {
		mps   float64
		units string
		want  string
	}{
		{20, MPS, "20.0 m/s"},
		{20, MPH, "44.7 mph"},
		{20, KPH, "72.0 km/h"},
		{20, KMPH, "72.0 km/h"},
		{20, "unknown", "20.0 m/s"},
	}
	for _, tc := range cases {
		if got := FormatSpeed(tc.mps, tc.units); got != tc.want {
			t.Errorf("FormatSpeed(%v, %q) = %q, want %q", tc.mps, tc.units, got, tc.want)
		}
	}
}

// Package units provides shared constants and conversion for the speed
// units used by the tooling. The solver itself works exclusively in m/s.
package units

import "fmt"

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertSpeed converts a speed from meters per second to the target
// units.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedMPS
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// FormatSpeed renders a speed in the target units with its suffix, e.g.
// "20.0 m/s" or "44.7 mph".
func FormatSpeed(speedMPS float64, targetUnits string) string {
	v := ConvertSpeed(speedMPS, targetUnits)
	switch targetUnits {
	case MPH:
		return fmt.Sprintf("%.1f mph", v)
	case KMPH, KPH:
		return fmt.Sprintf("%.1f km/h", v)
	default:
		return fmt.Sprintf("%.1f m/s", v)
	}
}

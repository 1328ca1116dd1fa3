package units

// Speed unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidSpeedUnits contains all valid speed unit values
var ValidSpeedUnits = []string{MPS, MPH, KMPH, KPH}

// IsValidSpeed checks if the given unit is a known speed unit
func IsValidSpeed(unit string) bool {
	for _, validUnit := range ValidSpeedUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertSpeed converts a speed from metres per second to the target units
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// SpeedLabel returns the axis label suffix for a speed unit.
func SpeedLabel(unit string) string {
	switch unit {
	case MPH:
		return "mph"
	case KMPH, KPH:
		return "km/h"
	default:
		return "m/s"
	}
}

// Package units provides shared constants and validation for display units.
// Positional errors are computed in metres and speeds in metres per second;
// these helpers convert them for labels and rendered values.
package units

import (
	"strings"
)

// Distance unit constants
const (
	Metres        = "m"
	Feet          = "ft"
	Kilometres    = "km"
	NauticalMiles = "nmi"
)

// ValidUnits contains all valid distance unit values
var ValidUnits = []string{Metres, Feet, Kilometres, NauticalMiles}

// IsValid checks if the given unit is a known distance unit
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertDistance converts a distance in metres to the target units.
// Unknown units leave the value in metres.
func ConvertDistance(metres float64, targetUnits string) float64 {
	switch targetUnits {
	case Feet:
		return metres * 3.280839895013123
	case Kilometres:
		return metres / 1000
	case NauticalMiles:
		return metres / 1852
	default:
		return metres
	}
}

// ConvertDistances converts every value in place and returns the slice.
func ConvertDistances(metres []float64, targetUnits string) []float64 {
	if targetUnits == Metres || !IsValid(targetUnits) {
		return metres
	}
	for i := range metres {
		metres[i] = ConvertDistance(metres[i], targetUnits)
	}
	return metres
}

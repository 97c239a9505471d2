// Package units provides shared constants and validation for display
// length units. The database stores all lengths in millimetres.
package units

// Unit constants
const (
	MM = "mm"
	CM = "cm"
	M  = "m"
	IN = "in"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MM, CM, M, IN}

// IsValid checks if the given unit is in the list of valid units
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
	return "mm, cm, m, in"
}

// ConvertLength converts a length from millimetres to the target units
func ConvertLength(lengthMm float64, targetUnits string) float64 {
	switch targetUnits {
	case MM:
		return lengthMm
	case CM:
		return lengthMm / 10
	case M:
		return lengthMm / 1000
	case IN:
		return lengthMm / 25.4
	default:
		return lengthMm
	}
}

// Label returns the display suffix for a unit.
func Label(unit string) string {
	if IsValid(unit) {
		return unit
	}
	return MM
}

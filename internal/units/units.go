// Package units provides shared constants and conversions for distances,
// angles and timer ticks used across the robot.
package units

import "math"

// Distance unit constants
const (
	CM = "cm"
	MM = "mm"
	IN = "in"
)

// ValidUnits contains all valid distance unit values
var ValidUnits = []string{CM, MM, IN}

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
	return "cm, mm, in"
}

// ConvertDistance converts a distance in centimetres to the target units.
// All internal state (pose, landmarks, scan ranges) is kept in centimetres.
func ConvertDistance(distanceCM float64, targetUnits string) float64 {
	switch targetUnits {
	case MM:
		return distanceCM * 10
	case IN:
		return distanceCM / 2.54
	case CM:
		return distanceCM
	default:
		return distanceCM // default to cm if unknown unit
	}
}

// MMToCM converts millimetres (odometry units) to centimetres.
func MMToCM(mm float64) float64 { return mm / 10 }

// CMToMM converts centimetres to millimetres.
func CMToMM(cm float64) float64 { return cm * 10 }

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * (math.Pi / 180) }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * (180 / math.Pi) }

// Echo timer constants for the ultrasonic ranger. The capture timer is a
// 24-bit down counter clocked at 16 MHz.
const (
	EchoTickSeconds    = 0.0000000625
	EchoTimerWrap      = 0xFFFFFF
	SpeedOfSoundCMPerS = 34300.0
)

// EchoTicksToCM converts a round-trip echo time in timer ticks into a one-way
// distance in centimetres.
func EchoTicksToCM(ticks uint32) float64 {
	return float64(ticks) * EchoTickSeconds * (SpeedOfSoundCMPerS / 2)
}

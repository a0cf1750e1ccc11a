package hardware

import (
	"math"

	"github.com/banshee-data/cybot/internal/units"
)

// Optical ranger saturation bounds in centimetres.
const (
	IRMinCM  = 10
	IRMaxCM  = 50
	irStepCM = 2
)

// irTable holds the measured sensor output in millivolts for 10, 12, ... 50 cm.
var irTable = [...]int{
	2784, 2456, 2185, 1983, 1867, 1756, 1663, 1546, 1469, 1414, 1376,
	1324, 1281, 1236, 1206, 1169, 1148, 1143, 1098, 1077, 1059,
}

// IRDistance converts an infrared sensor voltage to centimetres using the
// calibration table. Voltages above the nearest entry saturate at IRMinCM and
// below the farthest at IRMaxCM; anything else snaps to the closest entry.
func IRDistance(millivolts int) int {
	if millivolts >= irTable[0] {
		return IRMinCM
	}
	last := len(irTable) - 1
	if millivolts <= irTable[last] {
		return IRMaxCM
	}

	best, bestDiff := 0, math.MaxInt
	for i, mv := range irTable {
		d := mv - millivolts
		if d < 0 {
			d = -d
		}
		if d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return IRMinCM + best*irStepCM
}

// EchoDistance converts the captured counter values of an echo pulse into a
// one-way distance in centimetres. The counter counts down, so fall is
// normally below rise; a rise below fall means the counter wrapped.
func EchoDistance(rise, fall uint32) float64 {
	if rise < fall {
		rise += units.EchoTimerWrap
	}
	return units.EchoTicksToCM(rise - fall)
}

// ServoCalibration maps bearings onto servo match-register values measured
// for one robot at 0° (RightMatch) and 180° (LeftMatch).
type ServoCalibration struct {
	RightMatch int
	LeftMatch  int
}

// MatchValue returns the register value for degrees, clamped to 0..180.
func (c ServoCalibration) MatchValue(degrees int) int {
	degrees = max(0, min(180, degrees))
	span := float64(c.LeftMatch - c.RightMatch)
	return c.RightMatch + int(math.Round(span*float64(degrees)/180))
}

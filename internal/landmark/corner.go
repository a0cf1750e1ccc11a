package landmark

import (
	"math"

	"github.com/banshee-data/cybot/internal/pose"
	"github.com/banshee-data/cybot/internal/units"
)

// tangentEpsilon replaces a zero tangent so headings on a multiple of 90°
// give a large finite slope instead of a division by zero.
const tangentEpsilon = 1e-6

// WallFix is a pose recorded while the robot was square-on to a wall and
// touching it. The wall runs through the recorded position, perpendicular to
// the heading.
type WallFix struct {
	Pose pose.Pose `json:"pose"`
}

// IntersectWalls returns the corner where the walls of two fixes meet.
//
// Callers must pass fixes taken against two roughly perpendicular walls, each
// recorded while facing its wall directly. Nothing here checks either
// condition; parallel or skewed fixes give a meaningless corner.
func IntersectWalls(first, second WallFix) pose.Position {
	m1 := wallSlope(first.Pose.Heading)
	m2 := wallSlope(second.Pose.Heading)

	x1, y1 := float64(first.Pose.Position.X), float64(first.Pose.Position.Y)
	x2, y2 := float64(second.Pose.Position.X), float64(second.Pose.Position.Y)

	x := (m1*x1 - m2*x2 + y2 - y1) / (m1 - m2)
	y := y1 + m1*(x-x1)

	return pose.Position{
		X: int(math.Round(x)),
		Y: int(math.Round(y)),
	}
}

// wallSlope is the slope of a wall faced at heading degrees: the negative
// cotangent of the heading.
func wallSlope(heading int) float64 {
	tan := math.Tan(units.DegToRad(float64(heading)))
	if math.Abs(tan) < tangentEpsilon {
		tan = tangentEpsilon
	}
	return -1 / tan
}

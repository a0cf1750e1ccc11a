// Package pose tracks the robot's dead-reckoned position and heading on an
// integer centimetre grid.
//
// Position is integrated from commanded motion only. Every Advance rounds to
// the nearest grid cell, so error compounds over a run and is never corrected.
package pose

import (
	"fmt"
	"math"

	"github.com/banshee-data/cybot/internal/units"
)

// Position is a point on the centimetre grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Pose is a position plus a heading in whole degrees, counter-clockwise from
// the +X axis, always in [0, 360).
type Pose struct {
	Position Position `json:"position"`
	Heading  int      `json:"heading"`
}

func (p Pose) String() string {
	return fmt.Sprintf("%s @ %d°", p.Position, p.Heading)
}

// Origin is the pose at power-on.
func Origin() Pose {
	return Pose{}
}

// NormalizeHeading wraps degrees into [0, 360). Values already in range are
// returned unchanged.
func NormalizeHeading(degrees int) int {
	degrees %= 360
	if degrees < 0 {
		degrees += 360
	}
	return degrees
}

// Advance turns by turnDegrees and then moves distance along the new heading.
// Both coordinates are rounded half away from zero on every call.
func (p *Pose) Advance(distance, turnDegrees int) {
	p.Heading = NormalizeHeading(p.Heading + turnDegrees)

	rad := units.DegToRad(float64(p.Heading))
	p.Position.X += int(math.Round(float64(distance) * math.Cos(rad)))
	p.Position.Y += int(math.Round(float64(distance) * math.Sin(rad)))
}

// Advanced returns a copy of p moved by Advance. p itself is not modified.
func (p Pose) Advanced(distance, turnDegrees int) Pose {
	p.Advance(distance, turnDegrees)
	return p
}

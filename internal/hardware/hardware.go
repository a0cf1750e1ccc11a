// Package hardware defines the robot's external collaborators (rangers,
// bearing servo, wheels, odometry and operator console) and provides two
// implementations of them: a client for the serial sensor board and a
// simulated world.
package hardware

import (
	"context"
	"errors"
)

var (
	// ErrTimeout is returned when a hardware wait exceeds its bound.
	ErrTimeout = errors.New("hardware timeout")

	// ErrCycleInProgress is returned when a ranging cycle is started while the
	// previous cycle's result has not been consumed.
	ErrCycleInProgress = errors.New("ranging cycle in progress")
)

// AcousticRanger reads the ultrasonic channel in centimetres.
type AcousticRanger interface {
	ReadAcoustic(ctx context.Context) (int, error)
}

// OpticalRanger reads the infrared channel in centimetres, quantised to the
// lookup table and saturated to [IRMinCM, IRMaxCM].
type OpticalRanger interface {
	ReadOptical(ctx context.Context) (int, error)
}

// BearingActuator points the sensor turret. 0° is hard right, 90° dead ahead
// and 180° hard left. MoveTo returns after the servo has settled.
type BearingActuator interface {
	MoveTo(ctx context.Context, degrees int) error
}

// Wheels sets wheel velocities in mm/s. The call returns immediately.
type Wheels interface {
	SetWheels(ctx context.Context, left, right int) error
}

// Reading is one odometry poll: motion since the previous poll plus the
// current bumper state.
type Reading struct {
	DistanceMM float64 `json:"distance_mm"`
	AngleDeg   float64 `json:"angle_deg"`
	BumpLeft   bool    `json:"bump_left"`
	BumpRight  bool    `json:"bump_right"`
}

// Bumped reports whether either bumper is pressed.
func (r Reading) Bumped() bool { return r.BumpLeft || r.BumpRight }

// Odometry refreshes and returns the drive base sensors.
type Odometry interface {
	Poll(ctx context.Context) (Reading, error)
}

// Base is everything the movement primitives need.
type Base interface {
	Wheels
	Odometry
}

// Sensors is everything a sweep needs.
type Sensors interface {
	AcousticRanger
	OpticalRanger
	BearingActuator
}

// OperatorChannel is the operator console. SendLine terminates text with CRLF
// unless it already ends in a newline. RecvChar blocks for one keystroke.
type OperatorChannel interface {
	SendLine(text string) error
	RecvChar(ctx context.Context) (rune, error)
}

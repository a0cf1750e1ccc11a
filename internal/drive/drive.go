// Package drive implements the robot's closed-loop movement primitives on
// top of wheel commands and odometry polling.
package drive

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/cybot/internal/hardware"
	"github.com/banshee-data/cybot/internal/timeutil"
)

var (
	// ErrManeuverTimeout is returned when a primitive does not reach its
	// target within the maneuver timeout. The wheels are stopped first.
	ErrManeuverTimeout = errors.New("maneuver timed out")

	// ErrBlocked is returned by DriveObstacles when it keeps bumping without
	// getting around the obstacle.
	ErrBlocked = errors.New("path blocked")
)

const (
	rampUpStep      = 50  // mm/s per poll
	rampDownStep    = 40  // mm/s per poll
	crawlZoneMM     = 300 // final stretch driven at crawl speed
	turnSlackDeg    = 0.1
	squareSideCM    = 50
	sidestepCreepCM = 10
	maxSidesteps    = 16
)

// MotionObserver is told about the motion of each maneuver once it ends, and
// about free motion picked up by Sync. The navigation controller uses it to
// advance the pose.
type MotionObserver interface {
	Moved(distanceCM float64)
	Turned(degrees float64)
}

// Motion is the measured result of a primitive. DistanceCM is signed: negative
// when reversing. AngleDeg is counter-clockwise positive.
type Motion struct {
	DistanceCM float64 `json:"distance_cm"`
	AngleDeg   float64 `json:"angle_deg"`
	BumpLeft   bool    `json:"bump_left"`
	BumpRight  bool    `json:"bump_right"`
}

// Bumped reports whether the motion ended on a bumper.
func (m Motion) Bumped() bool { return m.BumpLeft || m.BumpRight }

// Options configures a Driver. Speeds are in mm/s.
type Options struct {
	CruiseSpeed      int
	CrawlSpeed       int
	TurnSpeed        int
	ObstacleBackupCM float64
	PollInterval     time.Duration
	ManeuverTimeout  time.Duration
}

// Driver runs movement primitives against a drive base. A Driver is not safe
// for concurrent use; the navigation loop owns it.
type Driver struct {
	base     hardware.Base
	clock    timeutil.Clock
	opts     Options
	observer MotionObserver

	// last velocity sent to the right wheel, where a ramp starts from
	commanded int
}

// NewDriver returns a Driver. observer may be nil.
func NewDriver(base hardware.Base, clock timeutil.Clock, opts Options, observer MotionObserver) *Driver {
	return &Driver{base: base, clock: clock, opts: opts, observer: observer}
}

// Options returns the driver configuration.
func (d *Driver) Options() Options { return d.opts }

// Drive sets both wheels to velocity and returns immediately.
func (d *Driver) Drive(ctx context.Context, velocity int) error {
	return d.setWheels(ctx, velocity, velocity)
}

// Turn starts a tank turn, counter-clockwise for positive velocity.
func (d *Driver) Turn(ctx context.Context, velocity int) error {
	return d.setWheels(ctx, -velocity, velocity)
}

// Stop stops both wheels.
func (d *Driver) Stop(ctx context.Context) error {
	return d.setWheels(ctx, 0, 0)
}

func (d *Driver) setWheels(ctx context.Context, left, right int) error {
	if err := d.base.SetWheels(ctx, left, right); err != nil {
		return fmt.Errorf("set wheels %d %d: %w", left, right, err)
	}
	d.commanded = right
	return nil
}

// Sync polls odometry and reports any motion since the previous poll, such
// as free driving under manual control.
func (d *Driver) Sync(ctx context.Context) (hardware.Reading, error) {
	r, err := d.poll(ctx)
	if err != nil {
		return r, err
	}
	d.report(r.AngleDeg, r.DistanceMM/10)
	return r, nil
}

func (d *Driver) poll(ctx context.Context) (hardware.Reading, error) {
	r, err := d.base.Poll(ctx)
	if err != nil {
		return r, fmt.Errorf("poll odometry: %w", err)
	}
	return r, nil
}

// report hands one maneuver's worth of motion to the observer, turn first.
func (d *Driver) report(angleDeg, distanceCM float64) {
	if d.observer == nil {
		return
	}
	if angleDeg != 0 {
		d.observer.Turned(angleDeg)
	}
	if distanceCM != 0 {
		d.observer.Moved(distanceCM)
	}
}

// tracker accumulates odometry for one primitive.
type tracker struct {
	d        *Driver
	deadline timeutil.Deadline
	motion   Motion
	distMM   float64
}

func (d *Driver) begin(ctx context.Context) (*tracker, error) {
	t := &tracker{d: d, deadline: timeutil.NewDeadline(d.clock, d.opts.ManeuverTimeout)}
	r, err := d.Sync(ctx)
	if err != nil {
		return nil, err
	}
	t.motion.BumpLeft, t.motion.BumpRight = r.BumpLeft, r.BumpRight
	return t, nil
}

// step waits one poll interval and folds the next reading in.
func (t *tracker) step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.deadline.Expired() {
		return ErrManeuverTimeout
	}
	t.d.clock.Sleep(t.d.opts.PollInterval)
	r, err := t.d.poll(ctx)
	if err != nil {
		return err
	}
	t.distMM += r.DistanceMM
	t.motion.DistanceCM = t.distMM / 10
	t.motion.AngleDeg += r.AngleDeg
	t.motion.BumpLeft, t.motion.BumpRight = r.BumpLeft, r.BumpRight
	return nil
}

func (t *tracker) bumped() bool { return t.motion.Bumped() }

// finish stops the wheels, reports the motion and returns it, keeping err if
// set.
func (t *tracker) finish(ctx context.Context, what string, err error) (Motion, error) {
	stopErr := t.d.Stop(context.WithoutCancel(ctx))
	t.d.report(t.motion.AngleDeg, t.motion.DistanceCM)
	if err != nil {
		return t.motion, fmt.Errorf("%s: %w", what, err)
	}
	if stopErr != nil {
		return t.motion, fmt.Errorf("%s: %w", what, stopErr)
	}
	return t.motion, nil
}

// DriveDistance drives at velocity until distanceCM has been covered or a
// bumper closes. A negative velocity reverses.
func (d *Driver) DriveDistance(ctx context.Context, velocity int, distanceCM float64) (Motion, error) {
	t, err := d.begin(ctx)
	if err != nil {
		return Motion{}, err
	}
	if velocity == 0 {
		return t.finish(ctx, "drive distance", nil)
	}
	if err := d.Drive(ctx, velocity); err != nil {
		return t.finish(ctx, "drive distance", err)
	}

	desiredMM := distanceCM * 10
	for !t.bumped() && math.Abs(t.distMM) < desiredMM {
		if err := t.step(ctx); err != nil {
			return t.finish(ctx, "drive distance", err)
		}
	}
	return t.finish(ctx, "drive distance", nil)
}

// DriveDistancePrecise covers distanceCM with a speed profile: ramp up by
// 50 mm/s per poll to velocity, cruise until 30 cm remain, ramp down by
// 40 mm/s per poll, then crawl to the target. A bumper aborts any phase.
func (d *Driver) DriveDistancePrecise(ctx context.Context, velocity int, distanceCM float64) (Motion, error) {
	const what = "precise drive"
	t, err := d.begin(ctx)
	if err != nil {
		return Motion{}, err
	}

	desiredMM := distanceCM * 10
	cruisingMM := desiredMM - crawlZoneMM
	dir := 1
	if velocity < 0 {
		dir = -1
	}
	set := d.commanded

	// ramp up
	for !t.bumped() && abs(set) < abs(velocity) && math.Abs(t.distMM) < cruisingMM {
		if err := d.Drive(ctx, set); err != nil {
			return t.finish(ctx, what, err)
		}
		if err := t.step(ctx); err != nil {
			return t.finish(ctx, what, err)
		}
		set += rampUpStep * dir
	}

	// cruise
	if math.Abs(t.distMM) < cruisingMM {
		if err := d.Drive(ctx, velocity); err != nil {
			return t.finish(ctx, what, err)
		}
		for !t.bumped() && math.Abs(t.distMM) < cruisingMM {
			if err := t.step(ctx); err != nil {
				return t.finish(ctx, what, err)
			}
		}
	}

	// ramp down
	for !t.bumped() && abs(set) > d.opts.CrawlSpeed {
		if err := d.Drive(ctx, set); err != nil {
			return t.finish(ctx, what, err)
		}
		if err := t.step(ctx); err != nil {
			return t.finish(ctx, what, err)
		}
		set -= rampDownStep * dir
	}

	// crawl
	if !t.bumped() && math.Abs(t.distMM) < desiredMM {
		if err := d.Drive(ctx, d.opts.CrawlSpeed*dir); err != nil {
			return t.finish(ctx, what, err)
		}
		for !t.bumped() && math.Abs(t.distMM) < desiredMM {
			if err := t.step(ctx); err != nil {
				return t.finish(ctx, what, err)
			}
		}
	}
	return t.finish(ctx, what, nil)
}

// TurnDegrees tank-turns in place by degrees, counter-clockwise when positive,
// stopping within 0.1° of the target. Bumpers do not abort a turn.
func (d *Driver) TurnDegrees(ctx context.Context, velocity int, degrees float64) (Motion, error) {
	const what = "turn"
	t, err := d.begin(ctx)
	if err != nil {
		return Motion{}, err
	}

	switch {
	case degrees > 0:
		err = d.Turn(ctx, velocity)
	case degrees < 0:
		err = d.Turn(ctx, -velocity)
	}
	if err != nil {
		return t.finish(ctx, what, err)
	}

	for math.Abs(t.motion.AngleDeg) < math.Abs(degrees)-turnSlackDeg {
		if err := t.step(ctx); err != nil {
			return t.finish(ctx, what, err)
		}
	}
	return t.finish(ctx, what, nil)
}

// DriveSquare drives a 50 cm square, turning left at each corner.
func (d *Driver) DriveSquare(ctx context.Context) error {
	for i := 0; i < 4; i++ {
		if _, err := d.DriveDistancePrecise(ctx, d.opts.CruiseSpeed, squareSideCM); err != nil {
			return fmt.Errorf("square side %d: %w", i+1, err)
		}
		if _, err := d.TurnDegrees(ctx, d.opts.TurnSpeed, 90); err != nil {
			return fmt.Errorf("square corner %d: %w", i+1, err)
		}
	}
	return nil
}

// DriveObstacles makes distanceCM of forward progress, sidestepping whatever
// it bumps into: back up, turn 90° away from the bumped side, creep 10 cm,
// turn back and carry on. It returns the net forward progress.
func (d *Driver) DriveObstacles(ctx context.Context, distanceCM float64) (float64, error) {
	progress := 0.0
	sidesteps := 0
	for progress < distanceCM {
		m, err := d.DriveDistancePrecise(ctx, d.opts.CruiseSpeed, distanceCM-progress)
		progress += m.DistanceCM
		if err != nil {
			return progress, err
		}
		if !m.Bumped() {
			continue
		}

		sidesteps++
		if sidesteps > maxSidesteps {
			return progress, fmt.Errorf("obstacle course after %d sidesteps: %w", maxSidesteps, ErrBlocked)
		}
		escape := EscapeTurn(m.BumpLeft, 90)
		back, err := d.DriveDistancePrecise(ctx, -d.opts.CruiseSpeed, d.opts.ObstacleBackupCM)
		progress += back.DistanceCM
		if err != nil {
			return progress, err
		}
		if err := d.Sidestep(ctx, escape, sidestepCreepCM); err != nil {
			return progress, err
		}
	}
	return progress, nil
}

// Sidestep turns escape degrees, creeps forward creepCM and turns back.
func (d *Driver) Sidestep(ctx context.Context, escape, creepCM float64) error {
	if _, err := d.TurnDegrees(ctx, d.opts.TurnSpeed, escape); err != nil {
		return err
	}
	if _, err := d.DriveDistancePrecise(ctx, d.opts.CruiseSpeed, creepCM); err != nil {
		return err
	}
	_, err := d.TurnDegrees(ctx, d.opts.TurnSpeed, -escape)
	return err
}

// EscapeTurn returns the turn away from a bump: right (negative) for the left
// bumper, left (positive) otherwise.
func EscapeTurn(bumpLeft bool, magnitude float64) float64 {
	if bumpLeft {
		return -magnitude
	}
	return magnitude
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

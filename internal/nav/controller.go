// Package nav runs the robot's scan, approach and avoid loop, with a manual
// override driven one keystroke at a time from the operator console.
package nav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/banshee-data/cybot/internal/config"
	"github.com/banshee-data/cybot/internal/drive"
	"github.com/banshee-data/cybot/internal/hardware"
	"github.com/banshee-data/cybot/internal/landmark"
	"github.com/banshee-data/cybot/internal/monitoring"
	"github.com/banshee-data/cybot/internal/perception"
	"github.com/banshee-data/cybot/internal/pose"
	"github.com/banshee-data/cybot/internal/scan"
	"github.com/banshee-data/cybot/internal/timeutil"
)

var logNav = monitoring.Component("nav")

// Operator messages.
const (
	msgConnected    = "Serial connection established."
	msgTarget       = "Wants to turn %d Degrees, then drive: %.1f cm. Press `h` to continue."
	msgGoAround     = "Wants to go around object by turning %.1f degrees. Press `h` to execute."
	msgNoObject     = "No object found."
	msgManual       = "Toggled manual"
	msgAuto         = "Toggled auto"
	msgPrompt       = "\n"
	msgVisited      = "Landmark at %s already visited."
	msgNotVisited   = "Landmark at %s not yet visited."
	msgLandmarkFull = "Landmark set full, %s not recorded."
	msgWallFix      = "Wall fix %d at %s"
	msgCorner       = "Corner at %s"
	msgError        = "Error: %v"
)

const (
	obstacleCourseCM = 200
	nudgeDeg         = 5
)

// Recorder journals what the controller does. Every method is best effort:
// failures are logged and the loop carries on.
type Recorder interface {
	RecordSweep(ctx context.Context, raw, filtered scan.Sequence) error
	RecordTarget(ctx context.Context, target TargetReport, at pose.Pose) error
	RecordLandmark(ctx context.Context, p pose.Position, visited bool) error
	RecordEvent(ctx context.Context, kind, detail string) error
}

// Plotter saves a picture of a sweep and returns where it went.
type Plotter interface {
	PlotSweep(raw, filtered scan.Sequence) (string, error)
}

// Deps are the collaborators of a Controller. Recorder and Plotter are
// optional.
type Deps struct {
	Operator hardware.OperatorChannel
	Sensors  hardware.Sensors
	Base     hardware.Base
	Clock    timeutil.Clock
	Recorder Recorder
	Plotter  Plotter
}

// Config holds the controller tuning.
type Config struct {
	Window       scan.Window
	FilterWindow int
	AcousticMax  int
	Perception   perception.Params

	StandoffCM       int
	RecoveryBackupCM int
	RecoveryCreepCM  int
	EscapeTurnDeg    int

	MaxLandmarks        int
	LandmarkRadiusCM    int
	LandmarkToleranceCM int

	MaxSpeed int
	Drive    drive.Options
}

// ConfigFromRobot reads the controller tuning out of a robot config.
func ConfigFromRobot(rc *config.RobotConfig) Config {
	return Config{
		Window: scan.Window{
			Start: rc.GetScanStartDeg(),
			End:   rc.GetScanEndDeg(),
			Step:  rc.GetScanStepDeg(),
		},
		FilterWindow: rc.GetFilterWindow(),
		AcousticMax:  rc.GetAcousticMaxCM(),
		Perception: perception.Params{
			NoObjectDistance: rc.GetNoObjectDistanceCM(),
			Tolerance:        rc.GetContinuityToleranceCM(),
		},
		StandoffCM:          rc.GetStandoffCM(),
		RecoveryBackupCM:    rc.GetRecoveryBackupCM(),
		RecoveryCreepCM:     rc.GetRecoveryCreepCM(),
		EscapeTurnDeg:       rc.GetEscapeTurnDeg(),
		MaxLandmarks:        rc.GetMaxLandmarks(),
		LandmarkRadiusCM:    rc.GetLandmarkRadiusCM(),
		LandmarkToleranceCM: rc.GetLandmarkToleranceCM(),
		MaxSpeed:            rc.GetMaxSpeed(),
		Drive: drive.Options{
			CruiseSpeed:      rc.GetCruiseSpeed(),
			CrawlSpeed:       rc.GetCrawlSpeed(),
			TurnSpeed:        rc.GetTurnSpeed(),
			ObstacleBackupCM: float64(rc.GetObstacleBackupCM()),
			PollInterval:     rc.GetOdometryPoll(),
			ManeuverTimeout:  rc.GetManeuverTimeout(),
		},
	}
}

// Controller is the navigation state machine. Run drives it from a single
// goroutine; Status and the admin routes may be used from any goroutine.
type Controller struct {
	cfg      Config
	op       hardware.OperatorChannel
	sensors  hardware.Sensors
	acquirer *scan.Acquirer
	driver   *drive.Driver
	rec      Recorder
	plot     Plotter
	clock    timeutil.Clock

	// owned by the loop goroutine
	state      State
	pose       pose.Pose
	landmarks  *landmark.Set
	fixes      []landmark.WallFix
	lastTarget *TargetReport
	lastErr    error
	cycles     int64

	mu        sync.RWMutex
	status    Status
	lastSweep Sweep
}

// New returns a Controller at the origin with an empty landmark set.
func New(deps Deps, cfg Config) (*Controller, error) {
	if deps.Operator == nil || deps.Sensors == nil || deps.Base == nil {
		return nil, errors.New("nav: operator, sensors and base are required")
	}
	if err := cfg.Window.Validate(); err != nil {
		return nil, err
	}
	if cfg.FilterWindow <= 0 {
		return nil, fmt.Errorf("nav: %w", scan.ErrBadWindow)
	}
	clock := deps.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	c := &Controller{
		cfg:       cfg,
		op:        deps.Operator,
		sensors:   deps.Sensors,
		acquirer:  scan.NewAcquirer(deps.Sensors, cfg.AcousticMax),
		rec:       deps.Recorder,
		plot:      deps.Plotter,
		clock:     clock,
		pose:      pose.Origin(),
		landmarks: landmark.NewSet(cfg.MaxLandmarks),
	}
	c.driver = drive.NewDriver(deps.Base, clock, cfg.Drive, c)
	c.publish()
	return c, nil
}

// Moved advances the pose along the current heading.
func (c *Controller) Moved(distanceCM float64) {
	c.pose.Advance(int(math.Round(distanceCM)), 0)
	c.publish()
}

// Turned rotates the pose in place.
func (c *Controller) Turned(degrees float64) {
	c.pose.Advance(0, int(math.Round(degrees)))
	c.publish()
}

// Run greets the operator and cycles until ctx is done or the operator
// channel fails.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.send(msgConnected); err != nil {
		return err
	}
	for {
		if err := c.Cycle(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				logNav("operator channel closed")
			}
			return err
		}
	}
}

// Cycle runs one pass of the loop, from the first checkpoint to the end of
// recovery or manual mode. Hardware failures are reported to the operator and
// end the pass without an error; only a cancelled context or a broken
// operator channel is returned.
func (c *Controller) Cycle(ctx context.Context) error {
	defer func() {
		c.cycles++
		c.setState(AwaitCommand)
	}()

	c.setState(AwaitCommand)
	if cmd, err := c.checkpoint(ctx); err != nil || cmd == CmdToggle {
		return c.manualOr(ctx, err)
	}

	c.setState(Scanning)
	report, err := c.acquireTarget(ctx)
	if err != nil {
		return c.fail(ctx, err)
	}

	c.setState(ReportTarget)
	if err := c.reportTarget(ctx, report); err != nil {
		return err
	}

	c.setState(AwaitCommand2)
	if cmd, err := c.checkpoint(ctx); err != nil || cmd == CmdToggle {
		return c.manualOr(ctx, err)
	}

	c.setState(Approaching)
	m, err := c.approach(ctx, report)
	if err != nil {
		return c.fail(ctx, err)
	}
	if !m.Bumped() {
		if err := c.arrived(ctx, report); err != nil {
			return err
		}
		return c.send(msgPrompt)
	}

	c.setState(BumpHandling)
	escape := drive.EscapeTurn(m.BumpLeft, float64(c.cfg.EscapeTurnDeg))
	c.record(ctx, "bump", fmt.Sprintf("left=%t right=%t escape=%.1f", m.BumpLeft, m.BumpRight, escape))
	if err := c.send(fmt.Sprintf(msgGoAround, escape)); err != nil {
		return err
	}

	c.setState(AwaitCommand3)
	if cmd, err := c.checkpoint(ctx); err != nil || cmd == CmdToggle {
		return c.manualOr(ctx, err)
	}

	c.setState(Recovering)
	if err := c.recover(ctx, escape); err != nil {
		return c.fail(ctx, err)
	}
	return nil
}

// manualOr enters manual mode unless err is set.
func (c *Controller) manualOr(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	return c.manual(ctx)
}

// checkpoint blocks until the operator sends t or h. Every other key is
// dropped.
func (c *Controller) checkpoint(ctx context.Context) (Command, error) {
	for {
		key, err := c.op.RecvChar(ctx)
		if err != nil {
			return CmdUnknown, fmt.Errorf("read operator: %w", err)
		}
		switch cmd, _ := ParseCommand(key); cmd {
		case CmdToggle, CmdContinue:
			c.record(ctx, "command", cmd.String())
			return cmd, nil
		}
	}
}

// acquireTarget sweeps, smooths, segments and picks the smallest object.
func (c *Controller) acquireTarget(ctx context.Context) (TargetReport, error) {
	raw, filtered, err := c.sweep(ctx)
	if err != nil {
		return TargetReport{}, err
	}
	objects := perception.Segment(filtered, c.cfg.Perception)
	logNav("sweep: %s", perception.Summary(objects))

	target, err := perception.Smallest(objects)
	if err != nil {
		return TargetReport{}, err
	}
	if err := c.sensors.MoveTo(ctx, target.Bearing); err != nil {
		return TargetReport{}, fmt.Errorf("point turret at %d°: %w", target.Bearing, err)
	}

	report := TargetReport{
		Target:     target,
		DistanceCM: rangeAt(raw, c.cfg.Window, target.Bearing),
	}
	report.Landmark = landmark.Project(c.pose, report.DistanceCM, headingOffset(target.Bearing), c.cfg.LandmarkRadiusCM)
	report.Visited = c.landmarks.IsKnown(report.Landmark, c.cfg.LandmarkToleranceCM)
	return report, nil
}

// sweep runs one sweep over the configured window and smooths a copy of it.
func (c *Controller) sweep(ctx context.Context) (raw, filtered scan.Sequence, err error) {
	raw, err = c.acquirer.Sweep(ctx, c.cfg.Window)
	if err != nil {
		return nil, nil, err
	}
	filtered = raw.Clone()
	if err := scan.RollingAverage(filtered, c.cfg.FilterWindow); err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	c.lastSweep = Sweep{Raw: raw, Filtered: filtered}
	c.mu.Unlock()

	if c.rec != nil {
		if err := c.rec.RecordSweep(ctx, raw, filtered); err != nil {
			logNav("record sweep: %v", err)
		}
	}
	if c.plot != nil {
		if path, err := c.plot.PlotSweep(raw, filtered); err != nil {
			logNav("plot sweep: %v", err)
		} else {
			logNav("sweep plotted to %s", path)
		}
	}
	return raw, filtered, nil
}

func (c *Controller) reportTarget(ctx context.Context, report TargetReport) error {
	c.lastTarget = &report
	c.publish()
	if c.rec != nil {
		if err := c.rec.RecordTarget(ctx, report, c.pose); err != nil {
			logNav("record target: %v", err)
		}
	}

	if err := c.send(fmt.Sprintf(msgTarget, report.Bearing, float64(report.DistanceCM))); err != nil {
		return err
	}
	msg := msgNotVisited
	if report.Visited {
		msg = msgVisited
	}
	return c.send(fmt.Sprintf(msg, report.Landmark))
}

// approach turns toward the target and drives up to the stand-off distance.
func (c *Controller) approach(ctx context.Context, report TargetReport) (drive.Motion, error) {
	opts := c.driver.Options()
	if _, err := c.driver.TurnDegrees(ctx, opts.TurnSpeed, float64(headingOffset(report.Bearing))); err != nil {
		return drive.Motion{}, err
	}
	return c.driver.DriveDistancePrecise(ctx, opts.CruiseSpeed, float64(report.DistanceCM-c.cfg.StandoffCM))
}

// arrived records the target as a landmark unless it is already known.
func (c *Controller) arrived(ctx context.Context, report TargetReport) error {
	if report.Visited {
		return nil
	}
	if err := c.landmarks.Add(report.Landmark); err != nil {
		if !errors.Is(err, landmark.ErrSetFull) {
			return err
		}
		logNav("%v", err)
		return c.send(fmt.Sprintf(msgLandmarkFull, report.Landmark))
	}
	c.publish()
	if c.rec != nil {
		if err := c.rec.RecordLandmark(ctx, report.Landmark, false); err != nil {
			logNav("record landmark: %v", err)
		}
	}
	return nil
}

// recover backs off, sidesteps by escape degrees and turns back.
func (c *Controller) recover(ctx context.Context, escape float64) error {
	opts := c.driver.Options()
	if _, err := c.driver.DriveDistance(ctx, -opts.CruiseSpeed, float64(c.cfg.RecoveryBackupCM)); err != nil {
		return err
	}
	return c.driver.Sidestep(ctx, escape, float64(c.cfg.RecoveryCreepCM))
}

// fail reports err to the operator. Context and operator channel errors end
// the loop; everything else ends the pass.
func (c *Controller) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	c.lastErr = err
	c.publish()
	c.record(ctx, "error", err.Error())

	if errors.Is(err, perception.ErrNoObject) {
		return c.send(msgNoObject)
	}
	logNav("%s: %v", c.state, err)
	return c.send(fmt.Sprintf(msgError, err))
}

func (c *Controller) send(text string) error {
	if err := c.op.SendLine(text); err != nil {
		return fmt.Errorf("write operator: %w", err)
	}
	return nil
}

func (c *Controller) record(ctx context.Context, kind, detail string) {
	if c.rec == nil {
		return
	}
	if err := c.rec.RecordEvent(ctx, kind, detail); err != nil {
		logNav("record %s: %v", kind, err)
	}
}

func (c *Controller) setState(s State) {
	c.state = s
	c.publish()
}

// publish copies the loop-owned state into the shared snapshot.
func (c *Controller) publish() {
	st := Status{
		State:     c.state.String(),
		Pose:      c.pose,
		Landmarks: c.landmarks.Entries(),
		WallFixes: len(c.fixes),
		Cycles:    c.cycles,
		UpdatedAt: c.clock.Now(),
	}
	if c.lastTarget != nil {
		t := *c.lastTarget
		st.LastTarget = &t
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	c.mu.Lock()
	c.status = st
	c.mu.Unlock()
}

// Status returns the latest snapshot.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// LastSweep returns the most recent sweep, raw and smoothed.
func (c *Controller) LastSweep() Sweep {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSweep
}

// headingOffset converts a turret bearing, with 90° dead ahead, into a turn
// relative to the current heading.
func headingOffset(bearing int) int {
	return 90 - bearing
}

// rangeAt returns the acoustic range of the sample at or just below bearing.
func rangeAt(seq scan.Sequence, w scan.Window, bearing int) int {
	if len(seq) == 0 {
		return 0
	}
	i := (bearing - w.Start) / w.Step
	switch {
	case i < 0:
		i = 0
	case i >= len(seq):
		i = len(seq) - 1
	}
	return seq[i].RangeA
}

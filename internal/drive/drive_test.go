package drive

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cybot/internal/hardware"
	"github.com/banshee-data/cybot/internal/timeutil"
)

// recordingBase forwards to a simulated world and records right-wheel commands.
type recordingBase struct {
	*hardware.Sim
	rights []int
}

func (r *recordingBase) SetWheels(ctx context.Context, left, right int) error {
	r.rights = append(r.rights, right)
	return r.Sim.SetWheels(ctx, left, right)
}

// compacted drops consecutive repeats.
func (r *recordingBase) compacted() []int {
	var out []int
	for _, v := range r.rights {
		if len(out) == 0 || out[len(out)-1] != v {
			out = append(out, v)
		}
	}
	return out
}

type sumObserver struct {
	moved, turned float64
}

func (s *sumObserver) Moved(cm float64)   { s.moved += cm }
func (s *sumObserver) Turned(deg float64) { s.turned += deg }

func testOptions() Options {
	return Options{
		CruiseSpeed:      200,
		CrawlSpeed:       50,
		TurnSpeed:        50,
		ObstacleBackupCM: 15,
		PollInterval:     15 * time.Millisecond,
		ManeuverTimeout:  30 * time.Second,
	}
}

func newSimDriver(obstacles ...hardware.Obstacle) (*Driver, *recordingBase, *sumObserver) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	base := &recordingBase{Sim: hardware.NewSim(clock, hardware.SimOptions{Obstacles: obstacles})}
	obs := &sumObserver{}
	return NewDriver(base, clock, testOptions(), obs), base, obs
}

func TestDriveDistance(t *testing.T) {
	d, base, obs := newSimDriver()
	m, err := d.DriveDistance(context.Background(), 200, 50)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, m.DistanceCM, 50.0)
	assert.Less(t, m.DistanceCM, 50.5)
	assert.False(t, m.Bumped())
	assert.InDelta(t, m.DistanceCM, obs.moved, 1e-9)
	assert.Equal(t, []int{200, 0}, base.compacted())

	x, _, _ := base.TruePose()
	assert.InDelta(t, m.DistanceCM, x, 1e-9)
}

func TestDriveDistanceReverse(t *testing.T) {
	d, _, obs := newSimDriver()
	m, err := d.DriveDistance(context.Background(), -200, 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, m.DistanceCM, -5.0)
	assert.Greater(t, m.DistanceCM, -5.5)
	assert.InDelta(t, m.DistanceCM, obs.moved, 1e-9)
}

func TestDriveDistanceZeroVelocity(t *testing.T) {
	d, base, _ := newSimDriver()
	m, err := d.DriveDistance(context.Background(), 0, 50)
	require.NoError(t, err)
	assert.Zero(t, m.DistanceCM)
	assert.Equal(t, []int{0}, base.compacted())
}

func TestDriveDistanceStopsOnBump(t *testing.T) {
	d, base, _ := newSimDriver(hardware.Obstacle{X: 40, Y: 3, Radius: 6})
	m, err := d.DriveDistance(context.Background(), 200, 50)
	require.NoError(t, err)

	assert.True(t, m.BumpLeft)
	assert.False(t, m.BumpRight)
	assert.Less(t, m.DistanceCM, 20.0)
	assert.Equal(t, 0, base.rights[len(base.rights)-1], "wheels stopped")
}

func TestDriveDistancePreciseProfile(t *testing.T) {
	d, base, obs := newSimDriver()
	m, err := d.DriveDistancePrecise(context.Background(), 200, 100)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 50, 100, 150, 200, 160, 120, 80, 50, 0}, base.compacted())
	assert.GreaterOrEqual(t, m.DistanceCM, 100.0)
	assert.Less(t, m.DistanceCM, 100.1)
	assert.InDelta(t, m.DistanceCM, obs.moved, 1e-9)
}

func TestDriveDistancePreciseShortHopCrawls(t *testing.T) {
	d, base, _ := newSimDriver()
	m, err := d.DriveDistancePrecise(context.Background(), 200, 24)
	require.NoError(t, err)

	assert.Equal(t, []int{50, 0}, base.compacted())
	assert.GreaterOrEqual(t, m.DistanceCM, 24.0)
}

func TestDriveDistancePreciseBump(t *testing.T) {
	d, _, _ := newSimDriver(hardware.Obstacle{X: 60, Y: -3, Radius: 6})
	m, err := d.DriveDistancePrecise(context.Background(), 200, 100)
	require.NoError(t, err)
	assert.True(t, m.BumpRight)
	assert.Less(t, m.DistanceCM, 40.0)
}

func TestTurnDegrees(t *testing.T) {
	tests := []struct {
		name    string
		degrees float64
		heading float64
	}{
		{"left quarter", 90, 90},
		{"right nudge", -5, 355},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, base, obs := newSimDriver()
			m, err := d.TurnDegrees(context.Background(), 50, tt.degrees)
			require.NoError(t, err)

			assert.GreaterOrEqual(t, math.Abs(m.AngleDeg), math.Abs(tt.degrees)-0.1)
			assert.InDelta(t, tt.degrees, m.AngleDeg, 0.5)
			assert.InDelta(t, m.AngleDeg, obs.turned, 1e-9)
			assert.Zero(t, m.DistanceCM)

			_, _, h := base.TruePose()
			assert.InDelta(t, tt.heading, h, 0.5)
		})
	}
}

func TestTurnDegreesZero(t *testing.T) {
	d, base, _ := newSimDriver()
	m, err := d.TurnDegrees(context.Background(), 50, 0)
	require.NoError(t, err)
	assert.Zero(t, m.AngleDeg)
	assert.Equal(t, []int{0}, base.compacted())
}

// stuckBase never moves.
type stuckBase struct {
	wheels [][2]int
}

func (s *stuckBase) SetWheels(ctx context.Context, left, right int) error {
	s.wheels = append(s.wheels, [2]int{left, right})
	return nil
}

func (s *stuckBase) Poll(ctx context.Context) (hardware.Reading, error) {
	return hardware.Reading{}, nil
}

func TestManeuverTimeout(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	base := &stuckBase{}
	opts := testOptions()
	opts.ManeuverTimeout = time.Second
	d := NewDriver(base, clock, opts, nil)

	start := clock.Now()
	_, err := d.DriveDistance(context.Background(), 200, 10)
	assert.ErrorIs(t, err, ErrManeuverTimeout)
	assert.Equal(t, [2]int{0, 0}, base.wheels[len(base.wheels)-1])
	assert.GreaterOrEqual(t, clock.Since(start), time.Second)

	_, err = d.TurnDegrees(context.Background(), 50, 90)
	assert.ErrorIs(t, err, ErrManeuverTimeout)
}

// cancellingBase cancels the maneuver context on its third poll.
type cancellingBase struct {
	stuckBase
	polls  int
	cancel context.CancelFunc
}

func (c *cancellingBase) Poll(ctx context.Context) (hardware.Reading, error) {
	c.polls++
	if c.polls == 3 {
		c.cancel()
	}
	return hardware.Reading{}, nil
}

func TestCancelledManeuverStillStops(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	base := &cancellingBase{cancel: cancel}
	d := NewDriver(base, clock, testOptions(), nil)

	_, err := d.DriveDistance(ctx, 200, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, base.polls)
	assert.Equal(t, [2]int{0, 0}, base.wheels[len(base.wheels)-1])
}

func TestDriveSquare(t *testing.T) {
	d, base, obs := newSimDriver()
	require.NoError(t, d.DriveSquare(context.Background()))

	x, y, _ := base.TruePose()
	assert.Less(t, math.Hypot(x, y), 5.0, "square closes near the start")
	assert.InDelta(t, 360, obs.turned, 2)
	assert.InDelta(t, 200, obs.moved, 1)
}

func TestDriveObstacles(t *testing.T) {
	d, base, _ := newSimDriver(hardware.Obstacle{X: 60, Y: 3, Radius: 4})
	progress, err := d.DriveObstacles(context.Background(), 100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, progress, 100.0)

	x, y, _ := base.TruePose()
	assert.InDelta(t, 100, x, 10)
	assert.Less(t, y, -5.0, "sidestepped right of the obstacle")
}

func TestEscapeTurn(t *testing.T) {
	assert.Equal(t, -90.0, EscapeTurn(true, 90))
	assert.Equal(t, 90.0, EscapeTurn(false, 90))
	assert.Equal(t, 45.0, EscapeTurn(false, 45))
}

func TestSyncReportsFreeMotion(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	sim := hardware.NewSim(clock, hardware.SimOptions{})
	obs := &sumObserver{}
	d := NewDriver(sim, clock, testOptions(), obs)

	require.NoError(t, d.Drive(context.Background(), 500))
	clock.Advance(time.Second)
	_, err := d.Sync(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 50, obs.moved, 1e-9)
}

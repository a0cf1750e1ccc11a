package hardware

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/cybot/internal/timeutil"
	"github.com/banshee-data/cybot/internal/units"
)

// Simulated robot geometry.
const (
	SimRobotRadiusCM = 17.0
	SimWheelBaseMM   = 235.0
	SimAcousticMaxCM = 300
)

// Obstacle is a round object on the floor, such as a table leg.
type Obstacle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// SimOptions configures a simulated world.
type SimOptions struct {
	Obstacles   []Obstacle
	ServoSettle time.Duration
}

// Sim is a simulated robot in a world of round obstacles. It implements every
// collaborator. Wheel motion is integrated on every wheel command and odometry
// poll using the clock. Rangers ray-cast from the turret at the front of the
// robot, and the bumpers report contact with an obstacle.
type Sim struct {
	clock timeutil.Clock
	opts  SimOptions

	mu       sync.Mutex
	x, y     float64 // centre, cm
	heading  float64 // degrees counter-clockwise from +X
	left     int     // mm/s
	right    int     // mm/s
	bearing  int
	lastPoll time.Time
	pending  Reading // motion since the last Poll
}

// NewSim places the robot at the origin facing +X.
func NewSim(clock timeutil.Clock, opts SimOptions) *Sim {
	return &Sim{
		clock:    clock,
		opts:     opts,
		bearing:  90,
		lastPoll: clock.Now(),
	}
}

// TruePose returns the simulated ground truth (cm, cm, degrees).
func (s *Sim) TruePose() (x, y, heading float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y, s.heading
}

// Wheels returns the last commanded wheel velocities.
func (s *Sim) Wheels() (left, right int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left, s.right
}

// Bearing returns the current turret angle.
func (s *Sim) Bearing() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bearing
}

// SetWheels changes wheel velocities. Motion at the old velocities up to now
// is integrated first and reported by the next Poll.
func (s *Sim) SetWheels(ctx context.Context, left, right int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.integrate(s.clock.Now())
	s.left, s.right = left, right
	return nil
}

// Poll integrates wheel motion since the previous poll and returns everything
// travelled since then.
func (s *Sim) Poll(ctx context.Context) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.integrate(s.clock.Now())
	r := s.pending
	s.pending = Reading{}
	return r, nil
}

// integrate moves the robot at the current wheel velocities from lastPoll to
// now and adds the motion to the pending reading.
func (s *Sim) integrate(now time.Time) {
	dt := now.Sub(s.lastPoll).Seconds()
	s.lastPoll = now
	if dt <= 0 {
		return
	}

	v := float64(s.left+s.right) / 2 // mm/s
	omega := units.RadToDeg(float64(s.right-s.left) / SimWheelBaseMM)

	dAngle := omega * dt
	s.heading = math.Mod(s.heading+dAngle+360, 360)
	s.pending.AngleDeg += dAngle

	dist := v * dt
	rad := units.DegToRad(s.heading)
	nx := s.x + units.MMToCM(dist)*math.Cos(rad)
	ny := s.y + units.MMToCM(dist)*math.Sin(rad)

	if o, hit := s.collides(nx, ny); hit {
		// blocked: wheels slip in place, the bumper on the obstacle's side closes
		rel := math.Mod(units.RadToDeg(math.Atan2(o.Y-s.y, o.X-s.x))-s.heading+540, 360) - 180
		if rel >= 0 {
			s.pending.BumpLeft = true
		} else {
			s.pending.BumpRight = true
		}
		return
	}
	s.x, s.y = nx, ny
	s.pending.DistanceMM += dist
}

func (s *Sim) collides(x, y float64) (Obstacle, bool) {
	for _, o := range s.opts.Obstacles {
		if math.Hypot(o.X-x, o.Y-y) < o.Radius+SimRobotRadiusCM {
			return o, true
		}
	}
	return Obstacle{}, false
}

// MoveTo turns the turret and waits for the servo to settle.
func (s *Sim) MoveTo(ctx context.Context, degrees int) error {
	s.mu.Lock()
	s.bearing = max(0, min(180, degrees))
	s.mu.Unlock()
	s.clock.Sleep(s.opts.ServoSettle)
	return nil
}

// ReadAcoustic returns the distance to the nearest obstacle along the turret
// bearing, or SimAcousticMaxCM when nothing is in range.
func (s *Sim) ReadAcoustic(ctx context.Context) (int, error) {
	d, ok := s.cast()
	if !ok || d > SimAcousticMaxCM {
		return SimAcousticMaxCM, nil
	}
	return int(d), nil
}

// ReadOptical returns the infrared reading along the turret bearing as the
// real sensor would report it: through the voltage lookup table.
func (s *Sim) ReadOptical(ctx context.Context) (int, error) {
	d, ok := s.cast()
	if !ok {
		return IRDistance(0), nil
	}
	return IRDistance(irMillivolts(d)), nil
}

// cast ray-casts from the turret and returns the distance to the first
// obstacle surface.
func (s *Sim) cast() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hrad := units.DegToRad(s.heading)
	ox := s.x + SimRobotRadiusCM*math.Cos(hrad)
	oy := s.y + SimRobotRadiusCM*math.Sin(hrad)

	ray := units.DegToRad(s.heading + float64(s.bearing-90))
	dx, dy := math.Cos(ray), math.Sin(ray)

	best, found := math.Inf(1), false
	for _, o := range s.opts.Obstacles {
		// |o + t*d - c|^2 = r^2
		fx, fy := ox-o.X, oy-o.Y
		b := fx*dx + fy*dy
		c := fx*fx + fy*fy - o.Radius*o.Radius
		disc := b*b - c
		if disc < 0 {
			continue
		}
		t := -b - math.Sqrt(disc)
		if t < 0 {
			continue
		}
		if t < best {
			best, found = t, true
		}
	}
	return best, found
}

// irMillivolts interpolates the calibration table to synthesise the sensor
// voltage at distance cm.
func irMillivolts(cm float64) int {
	if cm <= IRMinCM {
		return irTable[0] + 100
	}
	if cm >= IRMaxCM {
		return irTable[len(irTable)-1] - 100
	}
	pos := (cm - IRMinCM) / irStepCM
	i := int(pos)
	frac := pos - float64(i)
	return int(math.Round(float64(irTable[i]) + frac*float64(irTable[i+1]-irTable[i])))
}

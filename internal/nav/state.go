package nav

import (
	"time"

	"github.com/banshee-data/cybot/internal/perception"
	"github.com/banshee-data/cybot/internal/pose"
	"github.com/banshee-data/cybot/internal/scan"
)

// State is a step of the control loop.
type State int

const (
	AwaitCommand State = iota
	Scanning
	ReportTarget
	AwaitCommand2
	Approaching
	BumpHandling
	AwaitCommand3
	Recovering
	ManualOverride
)

var stateNames = [...]string{
	AwaitCommand:   "await-command",
	Scanning:       "scanning",
	ReportTarget:   "report-target",
	AwaitCommand2:  "await-command-2",
	Approaching:    "approaching",
	BumpHandling:   "bump-handling",
	AwaitCommand3:  "await-command-3",
	Recovering:     "recovering",
	ManualOverride: "manual-override",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// TargetReport is what the controller decided about the last target.
type TargetReport struct {
	perception.Target
	// DistanceCM is the raw acoustic range at the target bearing.
	DistanceCM int           `json:"distance_cm"`
	Landmark   pose.Position `json:"landmark"`
	Visited    bool          `json:"visited"`
}

// Status is a snapshot of the controller, safe to hand to other goroutines.
type Status struct {
	State      string          `json:"state"`
	Pose       pose.Pose       `json:"pose"`
	Landmarks  []pose.Position `json:"landmarks"`
	WallFixes  int             `json:"wall_fixes"`
	LastTarget *TargetReport   `json:"last_target,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	Cycles     int64           `json:"cycles"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Sweep is the last sweep seen, raw and smoothed.
type Sweep struct {
	Raw      scan.Sequence
	Filtered scan.Sequence
}

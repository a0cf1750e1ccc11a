// Package journal keeps a SQLite record of what the robot saw and did: runs,
// sweeps, targets, landmarks and operator events. It is write-mostly and
// never read back by the control loop.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/cybot/internal/monitoring"
	"github.com/banshee-data/cybot/internal/nav"
	"github.com/banshee-data/cybot/internal/pose"
	"github.com/banshee-data/cybot/internal/scan"
	"github.com/banshee-data/cybot/internal/timeutil"
)

var logJournal = monitoring.Component("journal")

// ErrNoRun is returned by the Record methods before StartRun.
var ErrNoRun = errors.New("journal: no run started")

var _ nav.Recorder = (*Journal)(nil)

// pragmas apply to every pooled connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(1)",
}

// Journal is the run journal database.
type Journal struct {
	*sql.DB
	path  string
	clock timeutil.Clock
	runID string
}

// Open opens or creates the journal at path and migrates it to the latest
// schema.
func Open(path string, clock timeutil.Clock) (*Journal, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	j := &Journal{DB: db, path: path, clock: clock}
	if err := j.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database file.
func (j *Journal) Path() string { return j.path }

// RunID returns the current run, or "" before StartRun.
func (j *Journal) RunID() string { return j.runID }

// StartRun begins a new run. Later records are filed under it.
func (j *Journal) StartRun(ctx context.Context, note string) (string, error) {
	id := uuid.NewString()
	if _, err := j.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_unix, note) VALUES (?, ?, ?)`,
		id, j.now(), note,
	); err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	j.runID = id
	logJournal("run %s started", id)
	return id, nil
}

func (j *Journal) now() float64 {
	return float64(j.clock.Now().UnixNano()) / 1e9
}

func (j *Journal) run() (string, error) {
	if j.runID == "" {
		return "", ErrNoRun
	}
	return j.runID, nil
}

// RecordSweep stores a sweep and its samples. filtered may be nil; otherwise
// it must line up with raw.
func (j *Journal) RecordSweep(ctx context.Context, raw, filtered scan.Sequence) error {
	runID, err := j.run()
	if err != nil {
		return err
	}
	if filtered != nil && len(filtered) != len(raw) {
		return fmt.Errorf("record sweep: %d smoothed samples for %d raw", len(filtered), len(raw))
	}

	tx, err := j.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sweepID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sweeps (sweep_id, run_id, taken_unix, samples) VALUES (?, ?, ?, ?)`,
		sweepID, runID, j.now(), len(raw),
	); err != nil {
		return fmt.Errorf("record sweep: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sweep_samples (sweep_id, bearing, range_a, range_b, range_a_smooth) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, s := range raw {
		var smooth sql.NullInt64
		if filtered != nil {
			smooth = sql.NullInt64{Int64: int64(filtered[i].RangeA), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, sweepID, s.Bearing, s.RangeA, s.RangeB, smooth); err != nil {
			return fmt.Errorf("record sample at %d°: %w", s.Bearing, err)
		}
	}
	return tx.Commit()
}

// RecordTarget stores the chosen target and the pose it was chosen from.
func (j *Journal) RecordTarget(ctx context.Context, t nav.TargetReport, at pose.Pose) error {
	runID, err := j.run()
	if err != nil {
		return err
	}
	_, err = j.ExecContext(ctx, `
		INSERT INTO targets (
			run_id, recorded_unix, bearing, width, start_bearing, end_bearing,
			distance_cm, landmark_x, landmark_y, visited, pose_x, pose_y, pose_heading
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, j.now(), t.Bearing, t.Width, t.Object.StartBearing, t.Object.EndBearing,
		t.DistanceCM, t.Landmark.X, t.Landmark.Y, t.Visited,
		at.Position.X, at.Position.Y, at.Heading,
	)
	if err != nil {
		return fmt.Errorf("record target: %w", err)
	}
	return nil
}

// RecordLandmark stores a landmark as it was added to the set.
func (j *Journal) RecordLandmark(ctx context.Context, p pose.Position, visited bool) error {
	runID, err := j.run()
	if err != nil {
		return err
	}
	_, err = j.ExecContext(ctx,
		`INSERT INTO landmarks (run_id, recorded_unix, x, y, visited) VALUES (?, ?, ?, ?, ?)`,
		runID, j.now(), p.X, p.Y, visited,
	)
	if err != nil {
		return fmt.Errorf("record landmark: %w", err)
	}
	return nil
}

// RecordEvent stores a free-form event such as an operator command or bump.
func (j *Journal) RecordEvent(ctx context.Context, kind, detail string) error {
	runID, err := j.run()
	if err != nil {
		return err
	}
	_, err = j.ExecContext(ctx,
		`INSERT INTO events (run_id, recorded_unix, kind, detail) VALUES (?, ?, ?, ?)`,
		runID, j.now(), kind, detail,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

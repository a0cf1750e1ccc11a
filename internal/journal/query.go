package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/cybot/internal/pose"
	"github.com/banshee-data/cybot/internal/scan"
)

// Run is one power-on of the robot.
type Run struct {
	ID      string    `json:"run_id"`
	Started time.Time `json:"started"`
	Note    string    `json:"note"`
}

// Event is a journaled event.
type Event struct {
	ID       int64     `json:"event_id"`
	RunID    string    `json:"run_id"`
	Recorded time.Time `json:"recorded"`
	Kind     string    `json:"kind"`
	Detail   string    `json:"detail"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s %s", e.Recorded.Format(time.RFC3339), e.Kind, e.Detail)
}

func fromUnix(f float64) time.Time {
	return time.Unix(0, int64(f*1e9)).UTC()
}

// Runs lists every run, oldest first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.QueryContext(ctx, `SELECT run_id, started_unix, note FROM runs ORDER BY started_unix`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started float64
		if err := rows.Scan(&r.ID, &started, &r.Note); err != nil {
			return nil, err
		}
		r.Started = fromUnix(started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Events lists the events of a run in order.
func (j *Journal) Events(ctx context.Context, runID string) ([]Event, error) {
	rows, err := j.QueryContext(ctx, `
		SELECT event_id, run_id, recorded_unix, kind, detail
		FROM events WHERE run_id = ? ORDER BY event_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var recorded float64
		if err := rows.Scan(&e.ID, &e.RunID, &recorded, &e.Kind, &e.Detail); err != nil {
			return nil, err
		}
		e.Recorded = fromUnix(recorded)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Landmarks lists the landmarks recorded in a run.
func (j *Journal) Landmarks(ctx context.Context, runID string) ([]pose.Position, error) {
	rows, err := j.QueryContext(ctx, `SELECT x, y FROM landmarks WHERE run_id = ? ORDER BY landmark_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pose.Position
	for rows.Next() {
		var p pose.Position
		if err := rows.Scan(&p.X, &p.Y); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LatestSweep returns the newest sweep of a run, raw and smoothed. The
// smoothed sequence is nil when it was not recorded. sql.ErrNoRows means the
// run has no sweeps.
func (j *Journal) LatestSweep(ctx context.Context, runID string) (raw, filtered scan.Sequence, err error) {
	var sweepID string
	err = j.QueryRowContext(ctx, `
		SELECT sweep_id FROM sweeps WHERE run_id = ?
		ORDER BY taken_unix DESC, rowid DESC LIMIT 1`, runID).Scan(&sweepID)
	if err != nil {
		return nil, nil, err
	}

	rows, err := j.QueryContext(ctx, `
		SELECT bearing, range_a, range_b, range_a_smooth
		FROM sweep_samples WHERE sweep_id = ? ORDER BY bearing`, sweepID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	smoothed := true
	for rows.Next() {
		var s scan.Sample
		var smooth sql.NullInt64
		if err := rows.Scan(&s.Bearing, &s.RangeA, &s.RangeB, &smooth); err != nil {
			return nil, nil, err
		}
		raw = append(raw, s)
		if smooth.Valid {
			s.RangeA = int(smooth.Int64)
		} else {
			smoothed = false
		}
		filtered = append(filtered, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if !smoothed {
		filtered = nil
	}
	return raw, filtered, nil
}

// TargetCount returns how many targets a run chose.
func (j *Journal) TargetCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := j.QueryRowContext(ctx, `SELECT COUNT(*) FROM targets WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

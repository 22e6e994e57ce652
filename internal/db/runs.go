package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/series"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Source identifies who produced a flow sample.
type Source string

const (
	SourcePeer      Source = "peer"
	SourceReference Source = "reference"
	SourceLocal     Source = "local"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourcePeer, SourceReference, SourceLocal:
		return true
	}
	return false
}

// Run is one bench session against a peer.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt *time.Time
	Port       string
	At         flow.Coordinate
	Scale      float64
	// ConfigJSON is a snapshot of the configuration the run used.
	ConfigJSON string
	Frames     int
	Flows      int
	Failures   int
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

// CreateRun inserts r. A zero ID is replaced by a new random one and a zero
// start time by now.
func (db *DB) CreateRun(r *Run) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	if r.ConfigJSON == "" {
		r.ConfigJSON = "{}"
	}
	_, err := db.Exec(
		`INSERT INTO runs (
			run_id, started_unix, port, coordinate_x, coordinate_y, scale, config_json
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), unixSeconds(r.StartedAt), r.Port, r.At.X, r.At.Y, r.Scale, r.ConfigJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records the outcome counters and end time of a run.
func (db *DB) FinishRun(id uuid.UUID, frames, flows, failures int, at time.Time) error {
	res, err := db.Exec(
		`UPDATE runs SET finished_unix = ?, frames = ?, flows = ?, failures = ? WHERE run_id = ?`,
		unixSeconds(at), frames, flows, failures, id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `run_id, started_unix, finished_unix, port, coordinate_x, coordinate_y,
	scale, config_json, frames, flows, failures`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r        Run
		id       string
		started  float64
		finished sql.NullFloat64
	)
	err := row.Scan(&id, &started, &finished, &r.Port, &r.At.X, &r.At.Y,
		&r.Scale, &r.ConfigJSON, &r.Frames, &r.Flows, &r.Failures)
	if err != nil {
		return Run{}, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return Run{}, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	r.StartedAt = fromUnixSeconds(started)
	if finished.Valid {
		t := fromUnixSeconds(finished.Float64)
		r.FinishedAt = &t
	}
	return r, nil
}

// GetRun returns the run with id.
func (db *DB) GetRun(id uuid.UUID) (Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// Runs lists runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_unix DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its samples.
func (db *DB) DeleteRun(id uuid.UUID) error {
	res, err := db.Exec(`DELETE FROM runs WHERE run_id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// RecordFlows stores samples for one source of a run in a single
// transaction. A sample for a frame already recorded replaces it.
func (db *DB) RecordFlows(id uuid.UUID, src Source, samples ...series.FlowSample) (err error) {
	if !src.Valid() {
		return fmt.Errorf("invalid flow source %q", src)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO flow_samples (run_id, source, frame, u, v) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err = stmt.Exec(id.String(), string(src), s.Frame, s.U, s.V); err != nil {
			return fmt.Errorf("failed to record frame %d: %w", s.Frame, err)
		}
	}
	return tx.Commit()
}

// FlowSamples returns the samples of one source of a run ordered by frame.
func (db *DB) FlowSamples(id uuid.UUID, src Source) ([]series.FlowSample, error) {
	rows, err := db.Query(
		`SELECT frame, u, v FROM flow_samples WHERE run_id = ? AND source = ? ORDER BY frame`,
		id.String(), string(src),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []series.FlowSample
	for rows.Next() {
		var s series.FlowSample
		if err := rows.Scan(&s.Frame, &s.U, &s.V); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/series"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout, foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 5000, busyTimeout)
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations_UpDown(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer db.Close()

	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	latest, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	require.NoError(t, db.MigrateUp())
	require.NoError(t, db.MigrateUp(), "second up is a no-op")
	v, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, latest, v)

	require.NoError(t, db.MigrateDown())
	v, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	var tables int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='flow_samples'`).Scan(&tables))
	assert.Zero(t, tables)

	require.NoError(t, db.MigrateTo(2))
	v, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
}

func TestRuns_CreateFinishGet(t *testing.T) {
	db := newTestDB(t)

	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	run := &Run{
		StartedAt:  started,
		Port:       "/dev/ttyUSB0",
		At:         flow.Center(16),
		Scale:      10000,
		ConfigJSON: `{"radius":2}`,
	}
	require.NoError(t, db.CreateRun(run))
	require.NotEqual(t, uuid.Nil, run.ID)

	got, err := db.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", got.Port)
	assert.Equal(t, flow.Coordinate{X: 8, Y: 8}, got.At)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Nil(t, got.FinishedAt)

	finished := started.Add(90 * time.Second)
	require.NoError(t, db.FinishRun(run.ID, 120, 119, 1, finished))
	got, err = db.GetRun(run.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))
	assert.Equal(t, 120, got.Frames)
	assert.Equal(t, 119, got.Flows)
	assert.Equal(t, 1, got.Failures)

	_, err = db.GetRun(uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, db.FinishRun(uuid.New(), 0, 0, 0, finished), ErrRunNotFound)
}

func TestRuns_ListNewestFirst(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC()
	older := &Run{StartedAt: base.Add(-time.Hour), Scale: 10000}
	newer := &Run{StartedAt: base, Scale: 10000}
	require.NoError(t, db.CreateRun(older))
	require.NoError(t, db.CreateRun(newer))

	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
}

func TestFlowSamples_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	run := &Run{Scale: 10000}
	require.NoError(t, db.CreateRun(run))

	peer := []series.FlowSample{{Frame: 2, U: 0.5}, {Frame: 1, U: 1, V: -0.25}}
	require.NoError(t, db.RecordFlows(run.ID, SourcePeer, peer...))
	require.NoError(t, db.RecordFlows(run.ID, SourceReference, series.FlowSample{Frame: 1, U: 0.9}))
	require.NoError(t, db.RecordFlows(run.ID, SourcePeer, series.FlowSample{Frame: 2, U: 0.75}))

	got, err := db.FlowSamples(run.ID, SourcePeer)
	require.NoError(t, err)
	assert.Equal(t, []series.FlowSample{{Frame: 1, U: 1, V: -0.25}, {Frame: 2, U: 0.75}}, got)

	ref, err := db.FlowSamples(run.ID, SourceReference)
	require.NoError(t, err)
	assert.Len(t, ref, 1)

	none, err := db.FlowSamples(run.ID, SourceLocal)
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Error(t, db.RecordFlows(run.ID, Source("camera"), series.FlowSample{}))
}

func TestFlowSamples_UnknownRunRejected(t *testing.T) {
	db := newTestDB(t)
	err := db.RecordFlows(uuid.New(), SourcePeer, series.FlowSample{Frame: 1})
	assert.Error(t, err)
}

func TestDeleteRun_CascadesSamples(t *testing.T) {
	db := newTestDB(t)
	run := &Run{Scale: 10000}
	require.NoError(t, db.CreateRun(run))
	require.NoError(t, db.RecordFlows(run.ID, SourceLocal, series.FlowSample{Frame: 1, U: 1}))

	require.NoError(t, db.DeleteRun(run.ID))
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM flow_samples`).Scan(&n))
	assert.Zero(t, n)
	assert.ErrorIs(t, db.DeleteRun(run.ID), ErrRunNotFound)
}

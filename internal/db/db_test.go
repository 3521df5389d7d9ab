package db

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radian-data/presence.report/internal/presence"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "presence_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func presentRecord(ts float64, frame uint32) *presence.FrameRecord {
	return &presence.FrameRecord{
		TS:            ts,
		Frame:         frame,
		NumPointsFilt: 6,
		PointsFilt: []presence.PointRecord{
			{X: 0.5, Y: 2, Z: 0.25, V: 0.5},
		},
		Person: presence.PersonEstimate{
			Present:    true,
			Confidence: 0.725,
			Center:     &presence.Center{X: 0.5, Y: 2, Z: 0.25, V: 0.5},
			NumPoints:  6,
			Points: []presence.PointRecord{
				{X: 0.5, Y: 2, Z: 0.25, V: 0.5},
				{X: 0.55, Y: 2.05, Z: 0.25, V: 0.5},
			},
		},
	}
}

func absentRecord(ts float64, frame uint32) *presence.FrameRecord {
	return &presence.FrameRecord{
		TS:            ts,
		Frame:         frame,
		NumPointsFilt: 1,
		PointsFilt:    []presence.PointRecord{{X: 3, Y: 7, Z: 1, V: 0}},
		Person:        presence.PersonEstimate{},
	}
}

func TestStartRunStoresParams(t *testing.T) {
	database := testDB(t)

	runID, err := database.StartRun("profile.cfg", presence.DefaultParams())
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	runs, err := database.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)
	assert.Equal(t, "profile.cfg", runs[0].Profile)
	assert.False(t, runs[0].StartedAt.IsZero())
}

func TestRecordFrameRoundTrip(t *testing.T) {
	database := testDB(t)
	runID, err := database.StartRun("", presence.DefaultParams())
	require.NoError(t, err)

	require.NoError(t, database.RecordFrame(runID, presentRecord(0.1, 1)))
	require.NoError(t, database.RecordFrame(runID, absentRecord(0.2, 2)))

	frames, err := database.RecentFrames(runID, 10)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	// newest first
	assert.Equal(t, uint32(2), frames[0].Frame)
	assert.False(t, frames[0].Present)
	assert.Nil(t, frames[0].Center)
	assert.Empty(t, frames[0].Points)

	assert.Equal(t, uint32(1), frames[1].Frame)
	assert.True(t, frames[1].Present)
	assert.Equal(t, 0.725, frames[1].Confidence)
	require.NotNil(t, frames[1].Center)
	assert.Equal(t, 2.0, frames[1].Center.Y)
	assert.Len(t, frames[1].Points, 2)
}

func TestLatestPresenceSkipsAbsentFrames(t *testing.T) {
	database := testDB(t)
	runID, err := database.StartRun("", presence.DefaultParams())
	require.NoError(t, err)

	require.NoError(t, database.RecordFrame(runID, presentRecord(0.1, 1)))
	require.NoError(t, database.RecordFrame(runID, absentRecord(0.2, 2)))

	latest, err := database.LatestPresence(runID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), latest.Frame)
	assert.True(t, latest.Present)
}

func TestLatestPresenceEmptyRun(t *testing.T) {
	database := testDB(t)
	runID, err := database.StartRun("", presence.DefaultParams())
	require.NoError(t, err)

	_, err = database.LatestPresence(runID)
	assert.True(t, errors.Is(err, sql.ErrNoRows), "got %v", err)
}

func TestRecentFramesLimitAndIsolation(t *testing.T) {
	database := testDB(t)
	runA, err := database.StartRun("", presence.DefaultParams())
	require.NoError(t, err)
	runB, err := database.StartRun("", presence.DefaultParams())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, database.RecordFrame(runA, absentRecord(float64(i), uint32(i))))
	}
	require.NoError(t, database.RecordFrame(runB, presentRecord(0.5, 99)))

	frames, err := database.RecentFrames(runA, 3)
	require.NoError(t, err)
	assert.Len(t, frames, 3)
	for _, frame := range frames {
		assert.Equal(t, runA, frame.RunID)
	}
}

func TestMigrateVersionAndDown(t *testing.T) {
	database := testDB(t)

	version, dirty, err := database.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	require.NoError(t, database.MigrateDown(MigrationsFS()))
	require.NoError(t, database.MigrateUp(MigrationsFS()))
}

func TestMigrateUpIdempotent(t *testing.T) {
	database := testDB(t)
	// NewDB already migrated; a second up must be a no-op.
	require.NoError(t, database.MigrateUp(MigrationsFS()))
}

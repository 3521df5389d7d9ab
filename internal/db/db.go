// Package db persists presence runs and per-frame estimates in SQLite.
// One process lifetime is one run; frames reference their run so replays and
// live sessions stay distinguishable in the same database file.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/radian-data/presence.report/internal/presence"
)

type DB struct {
	*sql.DB
}

// OpenDB opens the SQLite database at path without touching the schema.
// Use NewDB unless the caller manages migrations itself (the migrate CLI
// does).
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL keeps the reader-heavy HTTP API from blocking the per-frame
	// writer; the busy timeout covers the remaining write contention.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	return &DB{sqlDB}, nil
}

// NewDB opens the database at path and brings the schema up to date.
func NewDB(path string) (*DB, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateUp(MigrationsFS()); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return database, nil
}

// Run identifies one pipeline session.
type Run struct {
	RunID     string    `json:"run_id"`
	Profile   string    `json:"profile"`
	StartedAt time.Time `json:"started_at"`
}

// StartRun records a new session and returns its id. profile names the
// sensor profile applied for the session; params is stored as JSON for later
// comparison across tuning changes.
func (db *DB) StartRun(profile string, params presence.Params) (string, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}

	runID := uuid.NewString()
	_, err = db.Exec(
		`INSERT INTO runs (run_id, profile, params_json) VALUES (?, ?, ?)`,
		runID, profile, string(paramsJSON),
	)
	if err != nil {
		return "", err
	}
	return runID, nil
}

// RecordFrame stores one output record under the given run.
func (db *DB) RecordFrame(runID string, rec *presence.FrameRecord) error {
	var (
		confidence sql.NullFloat64
		centerX    sql.NullFloat64
		centerY    sql.NullFloat64
		centerZ    sql.NullFloat64
		centerV    sql.NullFloat64
		numPoints  sql.NullInt64
		pointsJSON sql.NullString
	)

	if rec.Person.Present {
		confidence = sql.NullFloat64{Float64: rec.Person.Confidence, Valid: true}
		numPoints = sql.NullInt64{Int64: int64(rec.Person.NumPoints), Valid: true}
		if c := rec.Person.Center; c != nil {
			centerX = sql.NullFloat64{Float64: c.X, Valid: true}
			centerY = sql.NullFloat64{Float64: c.Y, Valid: true}
			centerZ = sql.NullFloat64{Float64: c.Z, Valid: true}
			centerV = sql.NullFloat64{Float64: c.V, Valid: true}
		}
		if len(rec.Person.Points) > 0 {
			raw, err := json.Marshal(rec.Person.Points)
			if err != nil {
				return fmt.Errorf("marshal person points: %w", err)
			}
			pointsJSON = sql.NullString{String: string(raw), Valid: true}
		}
	}

	_, err := db.Exec(
		`INSERT INTO frames (
			run_id, ts, frame, num_points_filt, present, confidence,
			center_x, center_y, center_z, center_v, num_points, points_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.TS, rec.Frame, rec.NumPointsFilt, rec.Person.Present, confidence,
		centerX, centerY, centerZ, centerV, numPoints, pointsJSON,
	)
	return err
}

// StoredFrame is one frames row as returned by queries. Center fields are
// nil when no person was present.
type StoredFrame struct {
	RunID         string                 `json:"run_id"`
	TS            float64                `json:"ts"`
	Frame         uint32                 `json:"frame"`
	NumPointsFilt int                    `json:"num_points_filt"`
	Present       bool                   `json:"present"`
	Confidence    float64                `json:"confidence,omitempty"`
	Center        *presence.Center       `json:"center,omitempty"`
	NumPoints     int                    `json:"num_points,omitempty"`
	Points        []presence.PointRecord `json:"points,omitempty"`
}

// RecentFrames returns the most recent frames of a run, newest first.
func (db *DB) RecentFrames(runID string, limit int) ([]StoredFrame, error) {
	rows, err := db.Query(
		`SELECT run_id, ts, frame, num_points_filt, present, confidence,
			center_x, center_y, center_z, center_v, num_points, points_json
		FROM frames WHERE run_id = ? ORDER BY ts DESC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []StoredFrame
	for rows.Next() {
		frame, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, rows.Err()
}

// LatestPresence returns the most recent frame of a run where a person was
// present, or sql.ErrNoRows when the run has none.
func (db *DB) LatestPresence(runID string) (StoredFrame, error) {
	rows, err := db.Query(
		`SELECT run_id, ts, frame, num_points_filt, present, confidence,
			center_x, center_y, center_z, center_v, num_points, points_json
		FROM frames WHERE run_id = ? AND present = 1 ORDER BY ts DESC LIMIT 1`,
		runID,
	)
	if err != nil {
		return StoredFrame{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return StoredFrame{}, err
		}
		return StoredFrame{}, sql.ErrNoRows
	}
	return scanFrame(rows)
}

// Runs lists recorded sessions, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	rows, err := db.Query(
		`SELECT run_id, profile, started_at FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var profile sql.NullString
		if err := rows.Scan(&run.RunID, &profile, &run.StartedAt); err != nil {
			return nil, err
		}
		run.Profile = profile.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanFrame(rows *sql.Rows) (StoredFrame, error) {
	var (
		frame      StoredFrame
		confidence sql.NullFloat64
		centerX    sql.NullFloat64
		centerY    sql.NullFloat64
		centerZ    sql.NullFloat64
		centerV    sql.NullFloat64
		numPoints  sql.NullInt64
		pointsJSON sql.NullString
	)

	if err := rows.Scan(
		&frame.RunID, &frame.TS, &frame.Frame, &frame.NumPointsFilt, &frame.Present,
		&confidence, &centerX, &centerY, &centerZ, &centerV, &numPoints, &pointsJSON,
	); err != nil {
		return StoredFrame{}, err
	}

	frame.Confidence = confidence.Float64
	frame.NumPoints = int(numPoints.Int64)
	if centerX.Valid {
		frame.Center = &presence.Center{
			X: centerX.Float64,
			Y: centerY.Float64,
			Z: centerZ.Float64,
			V: centerV.Float64,
		}
	}
	if pointsJSON.Valid {
		if err := json.Unmarshal([]byte(pointsJSON.String), &frame.Points); err != nil {
			return StoredFrame{}, fmt.Errorf("unmarshal person points: %w", err)
		}
	}
	return frame, nil
}

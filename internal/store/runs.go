// Package store persists a queryable run archive: every batch run and its
// per-sample outcomes are recorded in an embedded SQLite database for
// later audit.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is the archived summary of one batch run.
type RunRecord struct {
	ID          string
	Virus       string
	MinDepth    float64
	MinCoverage float64
	Samples     int
	Eligible    int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// SampleRecord is the archived outcome of one sample within a run.
type SampleRecord struct {
	RunID            string
	LimsID           string
	VirusType        string
	Eligible         bool
	EligibleSegments int
	FailureReason    string
}

// RunStore implements the run archive over SQLite.
type RunStore struct {
	db     *sql.DB
	dbPath string
}

// NewRunStore opens (and if needed creates) the archive database, applying
// the schema on first use.
func NewRunStore(dbPath string) (*RunStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode so readers never block the archiving writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &RunStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		virus TEXT NOT NULL,
		min_depth REAL NOT NULL,
		min_coverage REAL NOT NULL,
		samples INTEGER NOT NULL DEFAULT 0,
		eligible INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_samples (
		run_id TEXT NOT NULL REFERENCES runs(id),
		lims_id TEXT NOT NULL,
		virus_type TEXT NOT NULL,
		eligible INTEGER NOT NULL DEFAULT 0,
		eligible_segments INTEGER NOT NULL DEFAULT 0,
		failure_reason TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_virus ON runs(virus);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_run_samples_run_id ON run_samples(run_id);
	CREATE INDEX IF NOT EXISTS idx_run_samples_lims_id ON run_samples(lims_id);
	`

	_, err := db.Exec(schema)
	return err
}

// RecordRun archives a completed run and its sample outcomes atomically.
func (s *RunStore) RecordRun(ctx context.Context, run RunRecord, samples []SampleRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, virus, min_depth, min_coverage, samples, eligible, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Virus, run.MinDepth, run.MinCoverage, run.Samples, run.Eligible, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, sample := range samples {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_samples (run_id, lims_id, virus_type, eligible, eligible_segments, failure_reason)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, sample.LimsID, sample.VirusType, sample.Eligible, sample.EligibleSegments, sample.FailureReason)
		if err != nil {
			return fmt.Errorf("failed to insert sample %s: %w", sample.LimsID, err)
		}
	}

	return tx.Commit()
}

// RecentRuns lists archived runs, most recent first.
func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, virus, min_depth, min_coverage, samples, eligible, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var result []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Virus, &r.MinDepth, &r.MinCoverage, &r.Samples, &r.Eligible, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// RunSamples lists the archived outcomes of one run, ordered by LIMS ID.
func (s *RunStore) RunSamples(ctx context.Context, runID string) ([]SampleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, lims_id, virus_type, eligible, eligible_segments, failure_reason
		FROM run_samples
		WHERE run_id = ?
		ORDER BY lims_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var result []SampleRecord
	for rows.Next() {
		var r SampleRecord
		if err := rows.Scan(&r.RunID, &r.LimsID, &r.VirusType, &r.Eligible, &r.EligibleSegments, &r.FailureReason); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

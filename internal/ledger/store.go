// Package ledger persists generation runs, their per-asset outcomes, and the
// spend they incurred, so past batches can be inspected and billed.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    project TEXT,
    model TEXT NOT NULL,
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME,
    total INTEGER NOT NULL DEFAULT 0,
    successful INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    total_cost REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assets (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    asset_type TEXT NOT NULL,
    description TEXT NOT NULL,
    file_path TEXT,
    prompt TEXT,
    success INTEGER NOT NULL,
    error TEXT,
    quality_score REAL NOT NULL DEFAULT 0,
    regeneration_attempts INTEGER NOT NULL DEFAULT 0,
    warning TEXT,
    degraded INTEGER NOT NULL DEFAULT 0,
    generation_time_ms INTEGER NOT NULL DEFAULT 0,
    cost REAL NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cost_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    asset_id TEXT NOT NULL,
    run_id TEXT NOT NULL,
    model TEXT NOT NULL,
    cost REAL NOT NULL,
    image_count INTEGER NOT NULL DEFAULT 1,
    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (asset_id) REFERENCES assets(id) ON DELETE CASCADE,
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_assets_run_id ON assets(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_cost_log_timestamp ON cost_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_cost_log_model ON cost_log(model);
CREATE INDEX IF NOT EXISTS idx_cost_log_run_id ON cost_log(run_id);
`

type Store struct {
	db *sql.DB
}

func NewStore() (*Store, error) {
	dbPath, err := defaultDBPath()
	if err != nil {
		return nil, err
	}
	return NewStoreWithPath(dbPath)
}

func NewStoreWithPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

func defaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".genass", "ledger.db"), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, project, model, started_at, total)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Project, run.Model, run.StartedAt, run.Total)
	return err
}

func (s *Store) FinishRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, successful = ?, failed = ?, total_cost = ?
		 WHERE id = ?`,
		run.FinishedAt, run.Total, run.Successful, run.Failed, run.TotalCost, run.ID)
	return err
}

func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project, model, started_at, finished_at, total, successful, failed, total_cost
		 FROM runs WHERE id = ?`, id)
	return scanRun(row.Scan)
}

func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project, model, started_at, finished_at, total, successful, failed, total_cost
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scan func(...any) error) (*Run, error) {
	run := &Run{}
	var project sql.NullString
	var finishedAt sql.NullTime
	err := scan(&run.ID, &project, &run.Model, &run.StartedAt, &finishedAt,
		&run.Total, &run.Successful, &run.Failed, &run.TotalCost)
	if err != nil {
		return nil, err
	}
	run.Project = project.String
	run.FinishedAt = finishedAt.Time
	return run, nil
}

func (s *Store) CreateAsset(ctx context.Context, rec *AssetRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (id, run_id, asset_type, description, file_path, prompt, success, error,
		                     quality_score, regeneration_attempts, warning, degraded, generation_time_ms, cost, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.AssetType, rec.Description, nullString(rec.FilePath), nullString(rec.Prompt),
		rec.Success, nullString(rec.Error), rec.QualityScore, rec.RegenerationAttempts,
		nullString(rec.Warning), rec.Degraded, rec.GenerationTimeMs, rec.Cost, rec.CreatedAt)
	return err
}

func (s *Store) ListAssets(ctx context.Context, runID string) ([]*AssetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, asset_type, description, file_path, prompt, success, error,
		        quality_score, regeneration_attempts, warning, degraded, generation_time_ms, cost, created_at
		 FROM assets WHERE run_id = ? ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*AssetRecord
	for rows.Next() {
		rec := &AssetRecord{}
		var filePath, prompt, errMsg, warning sql.NullString
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.AssetType, &rec.Description, &filePath, &prompt,
			&rec.Success, &errMsg, &rec.QualityScore, &rec.RegenerationAttempts,
			&warning, &rec.Degraded, &rec.GenerationTimeMs, &rec.Cost, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.FilePath = filePath.String
		rec.Prompt = prompt.String
		rec.Error = errMsg.String
		rec.Warning = warning.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) CountAssets(ctx context.Context, runID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assets WHERE run_id = ?`, runID).Scan(&count)
	return count, err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (s *Store) LogCost(ctx context.Context, entry *CostEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_log (asset_id, run_id, model, cost, image_count, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.AssetID, entry.RunID, entry.Model, entry.Cost, entry.ImageCount, entry.Timestamp)
	return err
}

func (s *Store) GetCostByDateRange(ctx context.Context, start, end time.Time) (*CostSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0), COALESCE(SUM(image_count), 0), COUNT(*)
		 FROM cost_log WHERE timestamp >= ? AND timestamp < ?`,
		start, end)

	var summary CostSummary
	if err := row.Scan(&summary.TotalCost, &summary.ImageCount, &summary.EntryCount); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Store) GetCostByModel(ctx context.Context) ([]ModelCostSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model, COALESCE(SUM(cost), 0), COALESCE(SUM(image_count), 0)
		 FROM cost_log GROUP BY model ORDER BY model`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []ModelCostSummary
	for rows.Next() {
		var ms ModelCostSummary
		if err := rows.Scan(&ms.Model, &ms.TotalCost, &ms.ImageCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, ms)
	}
	return summaries, rows.Err()
}

func (s *Store) GetTotalCost(ctx context.Context) (*CostSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0), COALESCE(SUM(image_count), 0), COUNT(*)
		 FROM cost_log`)

	var summary CostSummary
	if err := row.Scan(&summary.TotalCost, &summary.ImageCount, &summary.EntryCount); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Store) GetRunCost(ctx context.Context, runID string) (*CostSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0), COALESCE(SUM(image_count), 0), COUNT(*)
		 FROM cost_log WHERE run_id = ?`,
		runID)

	var summary CostSummary
	if err := row.Scan(&summary.TotalCost, &summary.ImageCount, &summary.EntryCount); err != nil {
		return nil, err
	}
	return &summary, nil
}

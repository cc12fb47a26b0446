package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"PegSentinel/internal/logger"
)

// SQLiteRecorder persists runs, samples and window averages to SQLite.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while a run is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.GetLogger().WithComponent("recorder").WithFields(logger.Fields{"path": dbPath}).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id        TEXT PRIMARY KEY,
			seed          INTEGER NOT NULL,
			blocks        INTEGER NOT NULL,
			policies      TEXT,
			started_at    INTEGER NOT NULL,
			finished_at   INTEGER,
			processed     INTEGER,
			slashings     INTEGER,
			max_drift     REAL,
			mean_drift    REAL,
			max_deviation REAL,
			status        TEXT NOT NULL DEFAULT 'RUNNING',
			error         TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS block_samples (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL,
			policy       TEXT NOT NULL,
			block_number INTEGER NOT NULL,
			block_time   INTEGER NOT NULL,
			cum0         INTEGER,
			cum1         INTEGER,
			avg0         REAL,
			avg1         REAL,
			rate_a       REAL,
			rate_b       REAL,
			sampled      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_run ON block_samples(run_id, policy, block_number)`,

		`CREATE TABLE IF NOT EXISTS window_averages (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL,
			policy       TEXT NOT NULL,
			block_number INTEGER NOT NULL,
			block_time   INTEGER NOT NULL,
			avg0         REAL,
			avg1         REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_windows_run ON window_averages(run_id, policy, block_number)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(info *RunInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO runs
		(run_id, seed, blocks, policies, started_at)
		VALUES (?,?,?,?,?)`,
		info.RunID, info.Seed, info.Blocks,
		strings.Join(info.Policies, ","), info.StartedAt.Unix(),
	)
	return err
}

func (r *SQLiteRecorder) RecordSample(s *Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO block_samples
		(run_id, policy, block_number, block_time, cum0, cum1, avg0, avg1, rate_a, rate_b, sampled)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		s.RunID, s.Policy, s.Number, s.Time,
		s.Cum0, s.Cum1, s.Avg0, s.Avg1,
		s.RateA, s.RateB, s.Sampled,
	)
	return err
}

func (r *SQLiteRecorder) RecordWindow(w *Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO window_averages
		(run_id, policy, block_number, block_time, avg0, avg1)
		VALUES (?,?,?,?,?,?)`,
		w.RunID, w.Policy, w.Number, w.Time, w.Avg0, w.Avg1,
	)
	return err
}

func (r *SQLiteRecorder) FinishRun(sum *RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`UPDATE runs SET
		finished_at = ?, processed = ?, slashings = ?,
		max_drift = ?, mean_drift = ?, max_deviation = ?,
		status = ?, error = ?
		WHERE run_id = ?`,
		sum.FinishedAt.Unix(), sum.Processed, sum.Slashings,
		sum.MaxDrift, sum.MeanDrift, sum.MaxDeviation,
		sum.Status, sum.Error, sum.RunID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: run was never recorded", sum.RunID)
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	logger.GetLogger().WithComponent("recorder").Info("closing sqlite recorder")
	return r.db.Close()
}

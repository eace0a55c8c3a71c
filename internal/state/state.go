package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"lorawan-pipeline/internal/model"
)

// Store persists ingestion state that must survive process restarts:
// per-source checkpoints, the single-writer run locks, and run history.
// A sqlite file keeps this local to the machine that owns the source files.
// defaultLockLease bounds how long a run lock can outlive its holder. It
// must exceed the longest plausible run so a live run is never preempted.
const defaultLockLease = time.Hour

type Store struct {
	db *sql.DB

	// Serializes checkpoint advances and lock transitions. sqlite already
	// serializes writers, but the conditional read-then-update below must
	// not interleave within this process either.
	mu sync.Mutex

	lockLease time.Duration
}

// Open opens (and if needed initializes) the state database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		source_id TEXT PRIMARY KEY,
		last_line_offset INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS run_locks (
		source_id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		acquired_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		status TEXT NOT NULL,
		summary TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init state schema: %w", err)
	}

	return &Store{db: db, lockLease: defaultLockLease}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReadCheckpoint returns the last committed line offset for a source, or 0
// if the source has never been ingested.
func (s *Store) ReadCheckpoint(sourceID string) (int64, error) {
	var offset int64
	err := s.db.QueryRow(
		`SELECT last_line_offset FROM checkpoints WHERE source_id = ?`, sourceID,
	).Scan(&offset)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read checkpoint for %s: %w", sourceID, err)
	}
	return offset, nil
}

// AdvanceCheckpoint moves the checkpoint for a source forward. Advancing to
// an offset below the current one fails with ErrCheckpointRegression; equal
// offsets are a no-op so re-running with no new data is safe.
func (s *Store) AdvanceCheckpoint(sourceID string, newOffset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRow(
		`SELECT last_line_offset FROM checkpoints WHERE source_id = ?`, sourceID,
	).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		current = 0
	case err != nil:
		return fmt.Errorf("advance checkpoint: %w", err)
	}

	if newOffset < current {
		return fmt.Errorf("%w: source %s has offset %d, refusing %d",
			model.ErrCheckpointRegression, sourceID, current, newOffset)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(`
		INSERT INTO checkpoints (source_id, last_line_offset, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET last_line_offset = ?, updated_at = ?`,
		sourceID, newOffset, now, newOffset, now)
	if err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	return tx.Commit()
}

// Checkpoint returns the full checkpoint row for a source.
func (s *Store) Checkpoint(sourceID string) (model.Checkpoint, error) {
	cp := model.Checkpoint{SourceID: sourceID}
	err := s.db.QueryRow(
		`SELECT last_line_offset, updated_at FROM checkpoints WHERE source_id = ?`, sourceID,
	).Scan(&cp.LastLineOffset, &cp.UpdatedAt)
	if err == sql.ErrNoRows {
		return cp, nil
	}
	if err != nil {
		return cp, fmt.Errorf("checkpoint for %s: %w", sourceID, err)
	}
	return cp, nil
}

// AcquireRunLock takes the checkpoint-advance privilege for a source. A
// second concurrent acquire fails fast with ErrConcurrentRun instead of
// letting two writers race the same checkpoint. A lock whose holder died
// without releasing (crash, power loss) is taken over once it is older
// than the lease.
func (s *Store) AcquireRunLock(sourceID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("acquire run lock for %s: %w", sourceID, err)
	}
	defer tx.Rollback()

	var holder string
	var acquiredAt time.Time
	err = tx.QueryRow(
		`SELECT run_id, acquired_at FROM run_locks WHERE source_id = ?`, sourceID,
	).Scan(&holder, &acquiredAt)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("acquire run lock for %s: %w", sourceID, err)
	default:
		if time.Since(acquiredAt) < s.lockLease {
			return fmt.Errorf("%w: source %s held by run %s", model.ErrConcurrentRun, sourceID, holder)
		}
		// Lease expired: the holder is gone.
		if _, err := tx.Exec(`DELETE FROM run_locks WHERE source_id = ?`, sourceID); err != nil {
			return fmt.Errorf("acquire run lock for %s: %w", sourceID, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO run_locks (source_id, run_id, acquired_at) VALUES (?, ?, ?)`,
		sourceID, runID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("acquire run lock for %s: %w", sourceID, err)
	}
	return tx.Commit()
}

// ReleaseRunLock releases the run lock if this run still holds it.
func (s *Store) ReleaseRunLock(sourceID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`DELETE FROM run_locks WHERE source_id = ? AND run_id = ?`, sourceID, runID)
	if err != nil {
		return fmt.Errorf("release run lock for %s: %w", sourceID, err)
	}
	return nil
}

// SaveRun records a new pipeline run in the running state.
func (s *Store) SaveRun(runID, sourceID string, startedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, source_id, status, started_at) VALUES (?, ?, ?, ?)`,
		runID, sourceID, model.RunRunning, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("save run %s: %w", runID, err)
	}
	return nil
}

// FinishRun stores the final summary and status for a run.
func (s *Store) FinishRun(summary model.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", summary.RunID, err)
	}
	_, err = s.db.Exec(
		`UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE run_id = ?`,
		summary.Status, string(payload), summary.FinishedAt.UTC(), summary.RunID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", summary.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent run summaries, newest first.
func (s *Store) ListRuns(limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT run_id, source_id, status, summary FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []model.RunSummary
	for rows.Next() {
		var runID, sourceID, status string
		var payload sql.NullString
		if err := rows.Scan(&runID, &sourceID, &status, &payload); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		summary := model.RunSummary{RunID: runID, SourceID: sourceID, Status: status}
		if payload.Valid && payload.String != "" {
			// Stored summary wins over the bare columns when present.
			if err := json.Unmarshal([]byte(payload.String), &summary); err != nil {
				return nil, fmt.Errorf("list runs: decode summary %s: %w", runID, err)
			}
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

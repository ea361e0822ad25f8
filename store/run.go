package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pharmacheck/pricewatch/scrape"
)

// RunStatus is the lifecycle state of one collection attempt.
type RunStatus string

const (
	RunRunning RunStatus = "RUNNING"
	RunSuccess RunStatus = "SUCCESS"
	RunPartial RunStatus = "PARTIAL"
	RunFailed  RunStatus = "FAILED"
)

// Run is one collection attempt for one chain — the audit trail row.
type Run struct {
	ID             string
	Chain          scrape.Chain
	Status         RunStatus
	StartedAt      time.Time
	FinishedAt     *time.Time
	RecordsUpdated *int
	ErrorMessage   string
}

// CreateRun records the start of a collection attempt as RUNNING and
// returns the run ID.
func (s *Store) CreateRun(ctx context.Context, chain scrape.Chain) (string, error) {
	id := newRunID()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collection_runs (id, chain, status, started_at)
		VALUES (?,?,?,?)`,
		id, string(chain), string(RunRunning), nowMilli())
	if err != nil {
		return "", fmt.Errorf("store: create run: %w", err)
	}
	return id, nil
}

// FinishRun transitions a run from RUNNING to a terminal status exactly
// once. recordsUpdated < 0 stores NULL (unknown — the run failed before
// counting). Finishing an already-terminal run is an error: the
// transition never repeats and never goes backward.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, recordsUpdated int, errorMessage string) error {
	if status != RunSuccess && status != RunPartial && status != RunFailed {
		return fmt.Errorf("store: finish run: non-terminal status %q", status)
	}
	var records any
	if recordsUpdated >= 0 {
		records = recordsUpdated
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE collection_runs
		SET status = ?, finished_at = ?, records_updated = ?, error_message = ?
		WHERE id = ? AND status = ?`,
		string(status), nowMilli(), records, errorMessage, runID, string(RunRunning))
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: finish run: run %s is not RUNNING", runID)
	}
	return nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished, records sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Chain, &r.Status, &started, &finished, &records, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		r.StartedAt = millisToTime(started)
		if finished.Valid {
			t := millisToTime(finished.Int64)
			r.FinishedAt = &t
		}
		if records.Valid {
			n := int(records.Int64)
			r.RecordsUpdated = &n
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const runCols = `id, chain, status, started_at, finished_at, records_updated, error_message`

// LastRuns returns the most recent runs for one chain, newest first.
func (s *Store) LastRuns(ctx context.Context, chain scrape.Chain, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runCols+` FROM collection_runs
		WHERE chain = ? ORDER BY started_at DESC LIMIT ?`,
		string(chain), limit)
	if err != nil {
		return nil, fmt.Errorf("store: last runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// LastRunPerChain returns the most recent run of every supported chain.
// Chains that never ran are absent from the map.
func (s *Store) LastRunPerChain(ctx context.Context) (map[scrape.Chain]Run, error) {
	out := make(map[scrape.Chain]Run)
	for _, chain := range scrape.AllChains() {
		runs, err := s.LastRuns(ctx, chain, 1)
		if err != nil {
			return nil, err
		}
		if len(runs) > 0 {
			out[chain] = runs[0]
		}
	}
	return out, nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
	"github.com/vietddude/crosspost/internal/infra/storage"
)

// HistoryRepo records deliveries, dispositions and runs.
type HistoryRepo struct {
	db *DB
}

// NewHistoryRepo creates a new PostgreSQL history repository.
func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// RecordDelivery inserts one (file, platform) outcome.
func (r *HistoryRepo) RecordDelivery(ctx context.Context, d domain.DeliveryResult) error {
	query := `
		INSERT INTO deliveries (run_id, source, file_name, platform, outcome, attempts, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	at := d.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, query,
		d.RunID, string(d.Source), d.FileName, string(d.Platform), string(d.Outcome), d.Attempts, d.Reason, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

// RecordDisposition stores what happened to a file at the end of its cycle.
func (r *HistoryRepo) RecordDisposition(ctx context.Context, runID string, report domain.FileReport) error {
	query := `
		INSERT INTO dispositions (run_id, source, file_name, disposition, error_msg)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, source) DO UPDATE
		SET file_name = EXCLUDED.file_name, disposition = EXCLUDED.disposition, error_msg = EXCLUDED.error_msg
	`
	_, err := r.db.ExecContext(ctx, query,
		runID, string(report.Source), report.FileName, string(report.Disposition), report.Error)
	if err != nil {
		return fmt.Errorf("failed to record disposition: %w", err)
	}
	return nil
}

// RecordRun upserts the run aggregate.
func (r *HistoryRepo) RecordRun(ctx context.Context, run storage.RunRecord) error {
	query := `
		INSERT INTO runs (run_id, started_at, finished_at, success, failure, skipped, exit_code)
		VALUES (:run_id, :started_at, :finished_at, :success, :failure, :skipped, :exit_code)
		ON CONFLICT (run_id) DO UPDATE
		SET finished_at = EXCLUDED.finished_at, success = EXCLUDED.success, failure = EXCLUDED.failure,
		    skipped = EXCLUDED.skipped, exit_code = EXCLUDED.exit_code
	`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// PlatformStats aggregates outcomes per platform since the given time.
func (r *HistoryRepo) PlatformStats(ctx context.Context, since time.Time) ([]storage.PlatformStat, error) {
	query := `
		SELECT platform,
		       COUNT(*) FILTER (WHERE outcome = 'success') AS success,
		       COUNT(*) FILTER (WHERE outcome = 'failure') AS failure,
		       COUNT(*) FILTER (WHERE outcome = 'skipped') AS skipped
		FROM deliveries
		WHERE created_at >= $1
		GROUP BY platform
		ORDER BY platform
	`
	var stats []storage.PlatformStat
	if err := r.db.SelectContext(ctx, &stats, query, since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to query platform stats: %w", err)
	}
	return stats, nil
}

// RecentRuns returns the latest runs, newest first.
func (r *HistoryRepo) RecentRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	query := `
		SELECT run_id, started_at, finished_at, success, failure, skipped, exit_code
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	var runs []storage.RunRecord
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return runs, nil
}

// DeleteOlderThan prunes deliveries, dispositions and runs older than before
// in one transaction.
func (r *HistoryRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin prune: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var total int64
	for _, query := range []string{
		`DELETE FROM deliveries WHERE created_at < $1`,
		`DELETE FROM dispositions WHERE created_at < $1`,
		`DELETE FROM runs WHERE started_at < $1`,
	} {
		res, err := tx.ExecContext(ctx, query, before.UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to prune history: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return total, nil
}

var _ storage.HistoryRepository = (*HistoryRepo)(nil)

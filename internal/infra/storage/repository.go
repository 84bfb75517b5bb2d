// Package storage defines the delivery history repository and its
// in-memory and PostgreSQL implementations.
package storage

import (
	"context"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
)

// RunRecord is the per-run aggregate row.
type RunRecord struct {
	RunID      string    `db:"run_id" json:"run_id"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
	Success    int       `db:"success" json:"success"`
	Failure    int       `db:"failure" json:"failure"`
	Skipped    int       `db:"skipped" json:"skipped"`
	ExitCode   int       `db:"exit_code" json:"exit_code"`
}

// PlatformStat aggregates outcomes for one platform.
type PlatformStat struct {
	Platform string `db:"platform" json:"platform"`
	Success  int    `db:"success" json:"success"`
	Failure  int    `db:"failure" json:"failure"`
	Skipped  int    `db:"skipped" json:"skipped"`
}

// HistoryRepository records what every run did.
type HistoryRepository interface {
	// RecordDelivery stores one (file, platform) outcome.
	RecordDelivery(ctx context.Context, d domain.DeliveryResult) error

	// RecordDisposition stores the end state of a file's cycle.
	RecordDisposition(ctx context.Context, runID string, report domain.FileReport) error

	// RecordRun upserts the run aggregate.
	RecordRun(ctx context.Context, run RunRecord) error

	// PlatformStats aggregates outcomes per platform since the given time.
	PlatformStats(ctx context.Context, since time.Time) ([]PlatformStat, error)

	// RecentRuns returns the latest runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// DeleteOlderThan removes history recorded before the given time and
	// returns the number of rows removed.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Package worker holds maintenance jobs that run alongside publishing.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/crosspost/internal/infra/storage"
)

// Pruner deletes delivery history older than the retention period.
type Pruner struct {
	retention time.Duration
	repo      storage.HistoryRepository
	now       func() time.Time
	log       *slog.Logger
}

// NewPruner creates a pruner. A zero retention keeps history forever.
func NewPruner(retention time.Duration, repo storage.HistoryRepository) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
		now:       time.Now,
		log:       slog.Default().With("component", "pruner"),
	}
}

// Enabled reports whether a retention period is set.
func (p *Pruner) Enabled() bool {
	return p.retention > 0
}

// Prune removes history older than the retention period once.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if !p.Enabled() {
		return 0, nil
	}
	threshold := p.now().Add(-p.retention)

	n, err := p.repo.DeleteOlderThan(ctx, threshold)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.log.Info("Pruned delivery history", "rows", n, "before", threshold.Format(time.RFC3339))
	}
	return n, nil
}

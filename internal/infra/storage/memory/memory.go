// Package memory keeps delivery history in process memory. It is used when
// no database is configured, so the stats of the current run are still
// queryable.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
	"github.com/vietddude/crosspost/internal/infra/storage"
)

type disposition struct {
	runID  string
	report domain.FileReport
}

// HistoryRepo is an in-memory storage.HistoryRepository.
type HistoryRepo struct {
	mu           sync.RWMutex
	deliveries   []domain.DeliveryResult
	dispositions []disposition
	runs         map[string]storage.RunRecord
}

func NewHistoryRepo() *HistoryRepo {
	return &HistoryRepo{runs: make(map[string]storage.RunRecord)}
}

func (r *HistoryRepo) RecordDelivery(ctx context.Context, d domain.DeliveryResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
	return nil
}

func (r *HistoryRepo) RecordDisposition(ctx context.Context, runID string, report domain.FileReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.dispositions {
		if d.runID == runID && d.report.Source == report.Source {
			r.dispositions[i].report = report
			return nil
		}
	}
	r.dispositions = append(r.dispositions, disposition{runID: runID, report: report})
	return nil
}

func (r *HistoryRepo) RecordRun(ctx context.Context, run storage.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.RunID] = run
	return nil
}

func (r *HistoryRepo) PlatformStats(ctx context.Context, since time.Time) ([]storage.PlatformStat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byPlatform := make(map[string]*storage.PlatformStat)
	for _, d := range r.deliveries {
		if d.At.Before(since) {
			continue
		}
		name := string(d.Platform)
		s, ok := byPlatform[name]
		if !ok {
			s = &storage.PlatformStat{Platform: name}
			byPlatform[name] = s
		}
		switch d.Outcome {
		case domain.OutcomeSuccess:
			s.Success++
		case domain.OutcomeFailure:
			s.Failure++
		case domain.OutcomeSkipped:
			s.Skipped++
		}
	}

	stats := make([]storage.PlatformStat, 0, len(byPlatform))
	for _, s := range byPlatform {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Platform < stats[j].Platform })
	return stats, nil
}

func (r *HistoryRepo) RecentRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]storage.RunRecord, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit >= 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (r *HistoryRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	kept := r.deliveries[:0]
	for _, d := range r.deliveries {
		if d.At.Before(before) {
			n++
			continue
		}
		kept = append(kept, d)
	}
	r.deliveries = kept

	pruned := make(map[string]bool)
	for id, run := range r.runs {
		if run.StartedAt.Before(before) {
			pruned[id] = true
			delete(r.runs, id)
			n++
		}
	}
	keptDispositions := r.dispositions[:0]
	for _, d := range r.dispositions {
		if pruned[d.runID] {
			n++
			continue
		}
		keptDispositions = append(keptDispositions, d)
	}
	r.dispositions = keptDispositions
	return n, nil
}

// Deliveries returns a copy of every recorded delivery.
func (r *HistoryRepo) Deliveries() []domain.DeliveryResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.DeliveryResult(nil), r.deliveries...)
}

// Dispositions returns the recorded file reports in insertion order.
func (r *HistoryRepo) Dispositions() []domain.FileReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.FileReport, 0, len(r.dispositions))
	for _, d := range r.dispositions {
		out = append(out, d.report)
	}
	return out
}

var _ storage.HistoryRepository = (*HistoryRepo)(nil)

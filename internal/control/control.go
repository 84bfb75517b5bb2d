package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
	"github.com/vietddude/crosspost/internal/core/worker"
	"github.com/vietddude/crosspost/internal/delivery/metrics"
	"github.com/vietddude/crosspost/internal/delivery/orchestrator"
	redisclient "github.com/vietddude/crosspost/internal/infra/redis"
	"github.com/vietddude/crosspost/internal/infra/storage"
)

// Sink receives the summary of every finished run. Sink failures are
// logged and never change the run's exit code.
type Sink interface {
	Name() string
	Report(ctx context.Context, s *orchestrator.Summary) error
}

// historySink stores the run aggregate.
type historySink struct {
	repo storage.HistoryRepository
}

func (historySink) Name() string { return "history" }

func (h historySink) Report(ctx context.Context, s *orchestrator.Summary) error {
	t := s.Totals()
	return h.repo.RecordRun(ctx, storage.RunRecord{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Success:    t.Success,
		Failure:    t.Failure,
		Skipped:    t.Skipped,
		ExitCode:   s.ExitCode(),
	})
}

// redisSink publishes the summary and logs quarantined files.
type redisSink struct {
	client     *redisclient.Client
	quarantine *redisclient.QuarantineLog
}

func (redisSink) Name() string { return "redis" }

func (r redisSink) Report(ctx context.Context, s *orchestrator.Summary) error {
	if err := r.client.PublishRun(ctx, s); err != nil {
		return err
	}
	for _, f := range s.Files {
		if f.Disposition != domain.DispositionQuarantined {
			continue
		}
		if err := r.quarantine.Add(ctx, s.RunID, f, s.FinishedAt); err != nil {
			return fmt.Errorf("quarantine log %s: %w", f.FileName, err)
		}
	}
	return nil
}

// pruneSink applies history retention after a run.
type pruneSink struct {
	pruner *worker.Pruner
}

func (pruneSink) Name() string { return "retention" }

func (p pruneSink) Report(ctx context.Context, _ *orchestrator.Summary) error {
	_, err := p.pruner.Prune(ctx)
	return err
}

// pushSink sends the process metrics to a Pushgateway.
type pushSink struct {
	cfg metrics.PushConfig
}

func (pushSink) Name() string { return "pushgateway" }

func (p pushSink) Report(ctx context.Context, s *orchestrator.Summary) error {
	return metrics.Push(ctx, p.cfg, s.RunID)
}

func report(ctx context.Context, log *slog.Logger, sinks []Sink, s *orchestrator.Summary) {
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := sink.Report(sinkCtx, s)
		cancel()
		if err != nil {
			log.Warn("Failed to report run", "sink", sink.Name(), "error", err)
		}
	}
}

// Package orchestrator runs one publishing cycle per source category:
// select a file, stage it, caption it, fan it out to every target platform
// through the retry engine, then delete or quarantine it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/crosspost/internal/core/domain"
	"github.com/vietddude/crosspost/internal/delivery/metrics"
	"github.com/vietddude/crosspost/internal/delivery/retry"
	"github.com/vietddude/crosspost/internal/infra/filestore"
	"github.com/vietddude/crosspost/internal/infra/publisher"
	"github.com/vietddude/crosspost/internal/infra/storage"
)

// DefaultCaptionLimit applies to targets without a configured limit.
const DefaultCaptionLimit = 2000

// CaptionGenerator produces the caption payload for a file. It must not
// fail; degraded payloads are its own concern.
type CaptionGenerator interface {
	Generate(ctx context.Context, filename, group string) domain.CaptionPayload
}

// Target is an enabled platform and the sources routed to it.
type Target struct {
	Platform domain.Platform
	// Limit is the caption character limit.
	Limit   int
	Sources map[domain.SourceID]bool
}

// Config controls a run.
type Config struct {
	Targets []Target
	// TotalPlatforms is the number of known platforms, enabled or not.
	TotalPlatforms int
	PostDelay      time.Duration
	// TempDir receives downloaded files.
	TempDir string
	// QuarantineOnSkip quarantines files that were skipped by a platform
	// even when nothing failed.
	QuarantineOnSkip bool
}

// Deps are the collaborators of a run. History, Sleep, Now, NewRunID and
// Logger are optional.
type Deps struct {
	Store      filestore.FileStore
	Captions   CaptionGenerator
	Publishers map[domain.Platform]publisher.Publisher
	Engine     *retry.Engine
	History    storage.HistoryRepository
	Sleep      retry.SleepFunc
	Now        func() time.Time
	NewRunID   func() string
	Logger     *slog.Logger
}

// Orchestrator runs publishing cycles.
type Orchestrator struct {
	cfg     Config
	deps    Deps
	targets map[domain.Platform]Target
	log     *slog.Logger
}

// New validates deps and creates an orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("file store is required")
	}
	if deps.Captions == nil {
		return nil, errors.New("caption generator is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("retry engine is required")
	}
	if deps.Sleep == nil {
		deps.Sleep = retry.Sleep
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.TotalPlatforms == 0 {
		cfg.TotalPlatforms = len(domain.PlatformOrder)
	}

	targets := make(map[domain.Platform]Target, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if _, ok := deps.Publishers[t.Platform]; !ok {
			return nil, fmt.Errorf("no publisher for enabled platform %s", t.Platform)
		}
		if t.Limit <= 0 {
			t.Limit = DefaultCaptionLimit
		}
		targets[t.Platform] = t
	}

	return &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		targets: targets,
		log:     deps.Logger.With("component", "orchestrator"),
	}, nil
}

// enabled lists enabled platforms in fan-out order.
func (o *Orchestrator) enabled() []domain.Platform {
	var out []domain.Platform
	for _, p := range domain.PlatformOrder {
		if _, ok := o.targets[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// targetsFor lists the platforms routed to source, in fan-out order.
func (o *Orchestrator) targetsFor(source domain.SourceID) []Target {
	var out []Target
	for _, p := range o.enabled() {
		if t := o.targets[p]; t.Sources[source] {
			out = append(out, t)
		}
	}
	return out
}

// run holds the state local to one Run call.
type run struct {
	id string
	// revoked records platforms whose credentials were rejected; they are
	// not called again for the rest of the run.
	revoked map[domain.Platform]string
}

// Run processes every source category once, strictly in order, and returns
// the run summary. A cancelled context stops the run after the current
// step; the summary so far is returned with the context error.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	r := &run{id: o.deps.NewRunID(), revoked: make(map[domain.Platform]string)}
	summary := newSummary(r.id, o.deps.Now(), o.enabled(), o.cfg.TotalPlatforms)
	o.log.Info("Run started", "run_id", r.id, "enabled", len(summary.Enabled))

	for _, src := range domain.Sources {
		if ctx.Err() != nil {
			break
		}
		if report := o.processSource(ctx, r, src); report != nil {
			summary = summary.withFile(*report)
		}
	}

	var remaining *domain.FolderStats
	statsCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	stats, err := o.deps.Store.FolderStats(statsCtx)
	cancel()
	if err != nil {
		o.log.Warn("Failed to count remaining files", "error", err)
	} else {
		remaining = &stats
		for source, n := range stats.Folders {
			metrics.FilesRemaining.WithLabelValues(string(source)).Set(float64(n))
		}
	}

	final := summary.finish(o.deps.Now(), remaining)
	return &final, ctx.Err()
}

// processSource runs one cycle. It returns nil when the category had no
// targets or no file.
func (o *Orchestrator) processSource(ctx context.Context, r *run, src domain.Source) *domain.FileReport {
	log := o.log.With("source", src.ID)

	targets := o.targetsFor(src.ID)
	if len(targets) == 0 {
		log.Debug("No platforms routed to source")
		return nil
	}

	ref, err := o.deps.Store.Fetch(ctx, src.ID)
	if err != nil {
		log.Error("Failed to select file", "error", err)
		return &domain.FileReport{Source: src.ID, Disposition: domain.DispositionNone, Error: fmt.Sprintf("fetch: %v", err)}
	}
	if ref == nil {
		log.Info("No files available")
		return nil
	}
	log = log.With("file", ref.Name)
	log.Info("Processing file", "targets", len(targets))

	report := &domain.FileReport{Source: src.ID, FileName: ref.Name, Disposition: domain.DispositionNone}

	// Without a local copy only URL-first platforms can be served; the
	// others fail and the file is quarantined.
	local, err := o.deps.Store.Download(ctx, ref, o.cfg.TempDir)
	if err != nil {
		log.Error("Failed to download file, continuing with URL delivery only", "error", err)
		report.Error = fmt.Sprintf("download: %v", err)
	} else {
		ref.LocalPath = local
		defer func() {
			if err := os.Remove(local); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn("Failed to remove local copy", "path", local, "error", err)
			}
		}()
	}

	if o.needsURL(targets) {
		link, err := o.deps.Store.TempLink(ctx, ref)
		if err != nil {
			log.Warn("No temporary link, URL-first platforms fall back to the local file", "error", err)
		} else {
			ref.PublicURL = link
		}
	}

	payload := o.deps.Captions.Generate(ctx, ref.Name, src.CaptionGroup)

	for i, t := range targets {
		res := o.deliver(ctx, r, src, ref, payload, t)
		report.Results = append(report.Results, res)

		metrics.DeliveriesTotal.WithLabelValues(string(res.Platform), string(src.ID), string(res.Outcome)).Inc()
		if o.deps.History != nil {
			if err := o.deps.History.RecordDelivery(ctx, res); err != nil {
				log.Warn("Failed to record delivery", "platform", res.Platform, "error", err)
			}
		}

		if ctx.Err() != nil {
			break
		}
		if i < len(targets)-1 && o.cfg.PostDelay > 0 {
			if err := o.deps.Sleep(ctx, o.cfg.PostDelay); err != nil {
				break
			}
		}
	}

	if ctx.Err() != nil {
		log.Warn("Run cancelled, leaving file in place")
		report.Error = "cancelled before disposition"
		return report
	}

	o.dispose(ctx, r, src, ref, report, log)
	return report
}

func (o *Orchestrator) needsURL(targets []Target) bool {
	for _, t := range targets {
		if o.deps.Publishers[t.Platform].Capabilities().URLFirst {
			return true
		}
	}
	return false
}

// shouldQuarantine reports whether any result blocks deletion.
func (o *Orchestrator) shouldQuarantine(results []domain.DeliveryResult) bool {
	for _, res := range results {
		switch res.Outcome {
		case domain.OutcomeFailure:
			return true
		case domain.OutcomeSkipped:
			if o.cfg.QuarantineOnSkip {
				return true
			}
		}
	}
	return false
}

func (o *Orchestrator) dispose(ctx context.Context, r *run, src domain.Source, ref *domain.FileRef, report *domain.FileReport, log *slog.Logger) {
	if o.shouldQuarantine(report.Results) {
		dest, err := o.deps.Store.Quarantine(ctx, ref, src.ID)
		if err != nil {
			log.Error("Failed to quarantine file", "error", err)
			report.Error = fmt.Sprintf("quarantine: %v", err)
		} else {
			log.Warn("File quarantined due to delivery failures", "dest", dest)
			report.Disposition = domain.DispositionQuarantined
		}
	} else {
		if err := o.deps.Store.Delete(ctx, ref); err != nil {
			log.Error("Failed to delete file", "error", err)
			report.Error = fmt.Sprintf("delete: %v", err)
		} else {
			log.Info("File deleted, all targets succeeded")
			report.Disposition = domain.DispositionDeleted
		}
	}

	metrics.Dispositions.WithLabelValues(string(src.ID), string(report.Disposition)).Inc()
	o.recordDisposition(ctx, r.id, *report)
}

func (o *Orchestrator) recordDisposition(ctx context.Context, runID string, report domain.FileReport) {
	if o.deps.History == nil {
		return
	}
	if err := o.deps.History.RecordDisposition(ctx, runID, report); err != nil {
		o.log.Warn("Failed to record disposition", "source", report.Source, "error", err)
	}
}

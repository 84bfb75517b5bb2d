package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
	"github.com/vietddude/crosspost/internal/delivery/caption"
	"github.com/vietddude/crosspost/internal/delivery/metrics"
	"github.com/vietddude/crosspost/internal/delivery/retry"
	"github.com/vietddude/crosspost/internal/delivery/verify"
	"github.com/vietddude/crosspost/internal/infra/publisher"
)

// deliver sends one file to one platform and always returns an outcome.
func (o *Orchestrator) deliver(
	ctx context.Context,
	r *run,
	src domain.Source,
	ref *domain.FileRef,
	payload domain.CaptionPayload,
	t Target,
) domain.DeliveryResult {
	res := domain.DeliveryResult{
		RunID:    r.id,
		Source:   src.ID,
		FileName: ref.Name,
		Platform: t.Platform,
		At:       o.deps.Now(),
	}
	log := o.log.With("source", src.ID, "file", ref.Name, "platform", t.Platform)

	if reason, ok := r.revoked[t.Platform]; ok {
		log.Warn("Platform disabled for this run", "reason", reason)
		res.Outcome = domain.OutcomeFailure
		res.Reason = reason
		return res
	}

	pub := o.deps.Publishers[t.Platform]
	caps := pub.Capabilities()
	capt := caption.Render(payload, t.Platform, t.Limit, caps.StructuredCaption)

	urlOnly := ref.LocalPath == ""
	if urlOnly && !(caps.URLFirst && ref.PublicURL != "") {
		log.Error("No local copy or public link to upload")
		res.Outcome = domain.OutcomeFailure
		res.Reason = "no local copy or public link available"
		return res
	}

	if !urlOnly {
		if ok, reason := verify.Verify(ref.LocalPath, t.Platform, src.Media); !ok {
			log.Warn("Skipped before upload", "reason", reason)
			res.Outcome = domain.OutcomeSkipped
			res.Reason = reason
			return res
		}
	}

	start := time.Now()
	defer func() {
		metrics.DeliveryDuration.WithLabelValues(string(t.Platform)).Observe(time.Since(start).Seconds())
	}()

	log.Info("Uploading")

	var (
		result retry.Result
		err    error
		tried  bool
	)
	if caps.URLFirst && ref.PublicURL != "" {
		tried = true
		result, err = o.attempt(ctx, pub, src.Media, publisher.Media{URL: ref.PublicURL}, capt)
		// A SKIP on the URL attempt is final; the local file is not retried.
		if err == nil && (result.Posted || result.Skipped) {
			return o.outcome(res, result, nil, r, log)
		}
		if ctx.Err() != nil || urlOnly {
			return o.outcome(res, result, err, r, log)
		}
		if retry.SignalFrom(err).Classify() == retry.ActionRefresh {
			return o.outcome(res, result, err, r, log)
		}
		log.Warn("URL delivery failed, falling back to local file", "error", err)
	}

	local, localErr := o.attempt(ctx, pub, src.Media, publisher.Media{LocalPath: ref.LocalPath}, capt)
	if tried && errors.Is(localErr, publisher.ErrNotSupported) {
		// The platform only takes URLs; report the URL attempt.
		result.Attempts += local.Attempts
		return o.outcome(res, result, err, r, log)
	}
	local.Attempts += result.Attempts
	return o.outcome(res, local, localErr, r, log)
}

func (o *Orchestrator) attempt(ctx context.Context, pub publisher.Publisher, mediaType domain.MediaType, media publisher.Media, capt domain.Caption) (retry.Result, error) {
	return o.deps.Engine.Execute(ctx, string(pub.Name()), func(ctx context.Context) (bool, error) {
		return publisher.Post(ctx, pub, mediaType, media, capt)
	})
}

func (o *Orchestrator) outcome(res domain.DeliveryResult, result retry.Result, err error, r *run, log *slog.Logger) domain.DeliveryResult {
	res.Attempts = result.Attempts

	switch {
	case err != nil:
		res.Outcome = domain.OutcomeFailure
		res.Reason = err.Error()
		if retry.SignalFrom(err).Classify() == retry.ActionRefresh {
			r.revoked[res.Platform] = "credentials rejected: " + err.Error()
		}
		log.Error("Delivery failed", "attempts", res.Attempts, "error", err)
	case result.Skipped:
		res.Outcome = domain.OutcomeSkipped
		res.Reason = "media rejected by platform"
		log.Warn("Delivery skipped", "attempts", res.Attempts)
	case result.Posted:
		res.Outcome = domain.OutcomeSuccess
		log.Info("Delivery succeeded", "attempts", res.Attempts)
	default:
		res.Outcome = domain.OutcomeFailure
		res.Reason = "platform reported no post"
		log.Error("Delivery failed, platform returned no post", "attempts", res.Attempts)
	}
	return res
}

package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushConfig holds Pushgateway settings.
type PushConfig struct {
	URL string `yaml:"pushgateway_url"`
	Job string `yaml:"job"`
}

// Push sends the default registry to a Pushgateway. It is a no-op when no
// URL is configured.
func Push(ctx context.Context, cfg PushConfig, runID string) error {
	if cfg.URL == "" {
		return nil
	}
	job := cfg.Job
	if job == "" {
		job = "crosspost"
	}

	pusher := push.New(cfg.URL, job).Gatherer(prometheus.DefaultGatherer)
	if runID != "" {
		pusher = pusher.Grouping("instance", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

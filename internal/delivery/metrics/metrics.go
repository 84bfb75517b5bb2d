package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeliveriesTotal tracks per-platform delivery outcomes
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_deliveries_total",
			Help: "Total number of delivery outcomes",
		},
		[]string{"platform", "source", "outcome"},
	)

	// DeliveryDuration tracks time spent delivering to a platform, retries included
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crosspost_delivery_duration_seconds",
			Help:    "Delivery duration in seconds including retries",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"platform"},
	)

	// RetryDecisions tracks classifier decisions on failed attempts
	RetryDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_retry_decisions_total",
			Help: "Total classifier decisions on failed publish attempts",
		},
		[]string{"platform", "action"},
	)

	// RetryWaitSeconds tracks backoff waits before a retry
	RetryWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crosspost_retry_wait_seconds",
			Help:    "Backoff wait before a retry in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		},
		[]string{"platform"},
	)

	// Dispositions tracks what happened to source files
	Dispositions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_dispositions_total",
			Help: "Total source file dispositions",
		},
		[]string{"source", "disposition"},
	)

	// FilesRemaining tracks files left in each source folder after a run
	FilesRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crosspost_files_remaining",
			Help: "Files remaining in each source folder",
		},
		[]string{"source"},
	)
)

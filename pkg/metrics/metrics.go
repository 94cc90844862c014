// Package metrics exposes Prometheus counters and gauges for the harvest
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	Discovered    prometheus.Counter
	Completed     prometheus.Counter
	Failed        prometheus.Counter
	Retries       prometheus.Counter
	SearchRetries prometheus.Counter
	QueueDepth    prometheus.Gauge
}

// New registers the collectors with reg and returns them. Pass
// prometheus.DefaultRegisterer for normal use or a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Discovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "videos_discovered_total",
			Help:      "Number of video URLs discovered and journaled.",
		}),
		Completed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "videos_completed_total",
			Help:      "Number of videos downloaded and transcoded.",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "videos_failed_total",
			Help:      "Number of videos that failed terminally.",
		}),
		Retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "download_retries_total",
			Help:      "Number of download attempts requeued with backoff.",
		}),
		SearchRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "harvester",
			Name:      "search_retries_total",
			Help:      "Number of failed searches handed to the retry worker.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "harvester",
			Name:      "download_queue_depth",
			Help:      "Jobs currently waiting in the download queue.",
		}),
	}
}

// Nop returns metrics backed by an unregistered registry, for callers
// that do not care about instrumentation.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

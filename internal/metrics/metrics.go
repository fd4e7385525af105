// Package metrics exposes Prometheus counters and histograms for a scrape run.
//
// A batch run has no HTTP endpoint to scrape, so metrics live on a private
// registry and are written once at the end of the run in the node-exporter
// textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "offender_census"

// Metrics holds all Prometheus metrics for a run
type Metrics struct {
	registry *prometheus.Registry

	Attempts          *prometheus.CounterVec
	Resolutions       *prometheus.CounterVec
	AttemptsPerTarget prometheus.Histogram
	SubjectDuration   prometheus.Histogram
	SubjectsProcessed prometheus.Counter
}

// New creates and registers all metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Query attempts by filter and classified outcome",
		}, []string{"filter", "outcome"}),
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Resolved query targets by filter and result (ok or exhausted)",
		}, []string{"filter", "result"}),
		AttemptsPerTarget: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempts_per_resolution",
			Help:      "Attempts spent before a query target resolved or was exhausted",
			Buckets:   []float64{1, 2, 3, 4, 5, 7, 10},
		}),
		SubjectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "subject_duration_seconds",
			Help:      "Wall time spent resolving all filters for one county",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		SubjectsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subjects_processed_total",
			Help:      "Counties processed",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAttempt counts one attempt with its outcome kind. Nil-safe.
func (m *Metrics) ObserveAttempt(filter, outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(filter, outcome).Inc()
}

// ObserveResolution records how a target ended and how many attempts it took. Nil-safe.
func (m *Metrics) ObserveResolution(filter string, ok bool, attempts int) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "exhausted"
	}
	m.Resolutions.WithLabelValues(filter, result).Inc()
	m.AttemptsPerTarget.Observe(float64(attempts))
}

// ObserveSubject records the time spent on one county. Nil-safe.
func (m *Metrics) ObserveSubject(d time.Duration) {
	if m == nil {
		return
	}
	m.SubjectsProcessed.Inc()
	m.SubjectDuration.Observe(d.Seconds())
}

// WriteTextfile writes every metric to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

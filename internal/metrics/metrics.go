package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dtvideo"

// Metrics holds the service's collectors, registered on their own registry
// so several servers can coexist in one process (tests).
type Metrics struct {
	registry *prometheus.Registry

	RemoteRequests  *prometheus.CounterVec
	PollAttempts    prometheus.Histogram
	CleanupFailures prometheus.Counter
	Archives        *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RemoteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remote",
				Name:      "requests_total",
				Help:      "Calls to the remote generation service by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		PollAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "attempts",
				Help:      "Remote attempts used per status poll",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
		),
		CleanupFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "temp",
				Name:      "cleanup_failures_total",
				Help:      "Temporary files that could not be deleted",
			},
		),
		Archives: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "archive",
				Name:      "total",
				Help:      "Artifact archive attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(
		m.RemoteRequests,
		m.PollAttempts,
		m.CleanupFailures,
		m.Archives,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRemote counts one remote call.
func (m *Metrics) ObserveRemote(operation, outcome string) {
	if m == nil {
		return
	}
	m.RemoteRequests.WithLabelValues(operation, outcome).Inc()
}

// ObservePoll records how many attempts a poll used.
func (m *Metrics) ObservePoll(attempts int) {
	if m == nil {
		return
	}
	m.PollAttempts.Observe(float64(attempts))
}

// ObserveCleanupFailure counts a temp file that could not be deleted.
func (m *Metrics) ObserveCleanupFailure() {
	if m == nil {
		return
	}
	m.CleanupFailures.Inc()
}

// ObserveArchive counts one archive attempt.
func (m *Metrics) ObserveArchive(outcome string) {
	if m == nil {
		return
	}
	m.Archives.WithLabelValues(outcome).Inc()
}

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the Prometheus collectors for agent invocations and jobs.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	jobs        *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg, reusing collectors that
// are already registered under the same name. Any other registration error
// panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	invocations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clientcomms",
			Subsystem: "agent",
			Name:      "invocations_total",
			Help:      "Agent invocations by provider, outcome and error kind.",
		},
		[]string{"provider", "outcome", "kind"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clientcomms",
			Subsystem: "agent",
			Name:      "invocation_duration_seconds",
			Help:      "End-to-end agent invocation latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "outcome"},
	)
	jobs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clientcomms",
			Name:      "jobs_processed_total",
			Help:      "Queued case jobs processed by the worker.",
		},
		[]string{"status"},
	)

	collectors := []prometheus.Collector{invocations, duration, jobs}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			already, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			switch collector {
			case invocations:
				invocations = already.ExistingCollector.(*prometheus.CounterVec)
			case duration:
				duration = already.ExistingCollector.(*prometheus.HistogramVec)
			case jobs:
				jobs = already.ExistingCollector.(*prometheus.CounterVec)
			}
		}
	}

	return &Metrics{invocations: invocations, duration: duration, jobs: jobs}
}

// ObserveInvocation records one finished agent invocation.
func (m *Metrics) ObserveInvocation(provider, outcome, kind string, latency time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(provider, outcome, kind).Inc()
	m.duration.WithLabelValues(provider, outcome).Observe(latency.Seconds())
}

func (m *Metrics) IncJob(status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
}

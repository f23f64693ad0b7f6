package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records dispatch outcomes and latencies per plugin and operation.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics registers dispatch metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mum",
			Subsystem: "dispatch",
			Name:      "invocations_total",
			Help:      "Capability invocations by plugin, operation, and outcome.",
		}, []string{"plugin", "op", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mum",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Capability invocation latency by plugin and operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"plugin", "op"}),
	}
}

func (m *Metrics) observe(plugin string, op Op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(plugin, string(op), outcome).Inc()
	m.duration.WithLabelValues(plugin, string(op)).Observe(seconds)
}

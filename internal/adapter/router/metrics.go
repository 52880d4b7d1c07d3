package router

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics counts router attempts per profile. A nil *Metrics records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the router collectors on reg; a nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chillm",
			Subsystem: "router",
			Name:      "attempts_total",
			Help:      "Provider attempts by profile, backend type and outcome",
		}, []string{"profile", "type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chillm",
			Subsystem: "router",
			Name:      "attempt_duration_seconds",
			Help:      "Time spent in one provider attempt",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"profile", "type"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.duration)
	}
	return m
}

func (m *Metrics) record(profile, kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(profile, kind, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.duration.WithLabelValues(profile, kind).Observe(d.Seconds())
	}
}

package ledgerGateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records node request outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskctl",
			Subsystem: "ledger",
			Name:      "requests_total",
			Help:      "Requests sent to the ledger node by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taskctl",
			Subsystem: "ledger",
			Name:      "request_duration_seconds",
			Help:      "Ledger node request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskctl",
			Subsystem: "ledger",
			Name:      "retries_total",
			Help:      "Read retries after network-level failures.",
		}, []string{"endpoint"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.retries)
	}
	return m
}

func (m *Metrics) observe(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, outcome).Inc()
	m.duration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) retry(endpoint string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(endpoint).Inc()
}

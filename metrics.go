package roomguard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the prometheus instrumentation for the guard. All fields
// are nil-safe through the record helpers so a guard without metrics pays
// nothing.
type metrics struct {
	rateLimitChecks  *prometheus.CounterVec
	bufferedMessages prometheus.Counter
	reconnects       *prometheus.CounterVec
	rejections       *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	m := &metrics{
		rateLimitChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomguard",
			Name:      "ratelimit_checks_total",
			Help:      "Rate limit checks by limit type and outcome.",
		}, []string{"limit_type", "outcome"}),
		bufferedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roomguard",
			Name:      "buffered_messages_total",
			Help:      "Messages accepted into room replay buffers.",
		}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomguard",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts by result.",
		}, []string{"result"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomguard",
			Name:      "content_rejections_total",
			Help:      "Content security rejections by kind.",
		}, []string{"kind"}),
	}

	registerer.MustRegister(m.rateLimitChecks, m.bufferedMessages, m.reconnects, m.rejections)

	return m
}

func (m *metrics) recordRateLimit(limitType, outcome string) {
	if m == nil {
		return
	}
	m.rateLimitChecks.WithLabelValues(limitType, outcome).Inc()
}

func (m *metrics) recordBuffered() {
	if m == nil {
		return
	}
	m.bufferedMessages.Inc()
}

func (m *metrics) recordReconnect(result string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(result).Inc()
}

func (m *metrics) recordRejection(kind string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(kind).Inc()
}

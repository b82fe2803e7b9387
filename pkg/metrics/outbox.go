package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	DeliveryPublished  = "published"
	DeliveryRetried    = "retried"
	DeliveryDeadLetter = "dead_letter"
)

// OutboxMetrics tracks what the outbox publisher does with each row.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
	backlog    prometheus.Gauge
}

// NewOutboxMetrics registers the publisher metrics on reg. A nil registerer
// yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_deliveries_total",
		Help: "Outbox rows handled by the publisher, by topic and result.",
	}, []string{"topic", "result"})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_backlog",
		Help: "Outbox rows still waiting to be published.",
	})
	reg.MustRegister(deliveries, backlog)
	return &OutboxMetrics{deliveries: deliveries, backlog: backlog}
}

func (m *OutboxMetrics) CountDelivery(topic, result string) {
	if m == nil || m.deliveries == nil {
		return
	}
	if topic == "" {
		topic = "unrouted"
	}
	m.deliveries.WithLabelValues(topic, normalizeLabel(result)).Inc()
}

func (m *OutboxMetrics) SetBacklog(n int64) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(n))
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutboxMetricsCountsByTopicAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.CountDelivery("orders", DeliveryPublished)
	m.CountDelivery("orders", DeliveryPublished)
	m.CountDelivery("orders", DeliveryRetried)
	m.CountDelivery("", DeliveryDeadLetter)
	m.SetBacklog(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("orders", DeliveryPublished)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("orders", DeliveryRetried)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("unrouted", DeliveryDeadLetter)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.backlog))
}

func TestOutboxMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewOutboxMetrics(nil)
	assert.NotPanics(t, func() {
		m.CountDelivery("orders", DeliveryPublished)
		m.SetBacklog(3)
	})
	var unset *OutboxMetrics
	assert.NotPanics(t, func() { unset.SetBacklog(1) })
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess      = "success"
	OutcomeInsufficient = "insufficient"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"
)

// FulfillmentMetrics tracks produce and pack operations.
type FulfillmentMetrics struct {
	operations *prometheus.CounterVec
	retries    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	batchSize  prometheus.Histogram
}

// NewFulfillmentMetrics registers the fulfillment metrics on reg. A nil
// registerer yields a no-op recorder.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_operations_total",
		Help: "Fulfillment operations by kind and outcome.",
	}, []string{"operation", "outcome"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_conflict_retries_total",
		Help: "Attempts retried after losing a stock decrement race.",
	}, []string{"operation"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fulfillment_operation_duration_seconds",
		Help:    "Duration of fulfillment operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	batchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfillment_pack_batch_size",
		Help:    "Number of orders per pack request.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})
	reg.MustRegister(operations, retries, duration, batchSize)
	return &FulfillmentMetrics{
		operations: operations,
		retries:    retries,
		duration:   duration,
		batchSize:  batchSize,
	}
}

func (m *FulfillmentMetrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(elapsed.Seconds())
}

func (m *FulfillmentMetrics) IncRetry(operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *FulfillmentMetrics) ObserveBatchSize(size int) {
	if m == nil || m.batchSize == nil {
		return
	}
	m.batchSize.Observe(float64(size))
}

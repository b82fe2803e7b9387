package enums

// OutboxAggregateType names the aggregate an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregateMaterial OutboxAggregateType = "material"
	AggregateProduct  OutboxAggregateType = "product"
	AggregateOrder    OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateMaterial,
	AggregateProduct,
	AggregateOrder,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return member(a, validAggregateTypes)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, validAggregateTypes)
}

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventProductionRecorded OutboxEventType = "production_recorded"
	EventOrderPacked        OutboxEventType = "order_packed"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventOrderPlaced        OutboxEventType = "order_placed"
	EventStockAdjusted      OutboxEventType = "stock_adjusted"
	EventLowStockDetected   OutboxEventType = "low_stock_detected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventProductionRecorded,
	EventOrderPacked,
	EventOrderStatusChanged,
	EventOrderPlaced,
	EventStockAdjusted,
	EventLowStockDetected,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return member(e, validOutboxEventTypes)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, validOutboxEventTypes)
}

package enums

// OrderStatus tracks the storefront order lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusFailed     OrderStatus = "failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusRefunded,
	OrderStatusFailed,
}

// orderTransitions lists the statuses reachable from each status.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusCompleted:  {OrderStatusRefunded},
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsValid() bool {
	return member(s, validOrderStatuses)
}

// CanTransitionTo reports whether next is reachable from s in a single step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return member(next, orderTransitions[s])
}

// IsPackable reports whether the packed overlay may be set while in s.
func (s OrderStatus) IsPackable() bool {
	return s == OrderStatusProcessing || s == OrderStatusCompleted
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse("order status", value, validOrderStatuses)
}

package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
)

// MaterialConsumption is one material line drawn down by an operation.
type MaterialConsumption struct {
	MaterialID uuid.UUID `json:"material_id"`
	Quantity   string    `json:"quantity"`
	Unit       string    `json:"unit"`
}

// ProductionRecordedEvent is emitted after a produce operation commits.
type ProductionRecordedEvent struct {
	ProductID  uuid.UUID             `json:"product_id"`
	VariantID  *uuid.UUID            `json:"variant_id,omitempty"`
	Quantity   int                   `json:"quantity"`
	Consumed   []MaterialConsumption `json:"consumed"`
	RecordedAt time.Time             `json:"recorded_at"`
}

// OrderPackedEvent is emitted once per order when packaging stock is consumed.
type OrderPackedEvent struct {
	OrderID  uuid.UUID             `json:"order_id"`
	Consumed []MaterialConsumption `json:"consumed"`
	PackedAt time.Time             `json:"packed_at"`
}

// OrderStatusChangedEvent carries every accepted order transition.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	Reason    string            `json:"reason,omitempty"`
	ChangedAt time.Time         `json:"changed_at"`
}

// OrderPlacedEvent announces a freshly priced pending order.
type OrderPlacedEvent struct {
	OrderID         uuid.UUID  `json:"order_id"`
	CustomerID      *uuid.UUID `json:"customer_id,omitempty"`
	ItemCount       int        `json:"item_count"`
	SubtotalCents   int        `json:"subtotal_cents"`
	DiscountCents   int        `json:"discount_cents"`
	GrandTotalCents int        `json:"grand_total_cents"`
	PromoCode       string     `json:"promo_code,omitempty"`
}

// StockAdjustedEvent is emitted for manual material corrections.
type StockAdjustedEvent struct {
	MaterialID uuid.UUID `json:"material_id"`
	Delta      string    `json:"delta"`
	StockAfter string    `json:"stock_after"`
	Note       string    `json:"note,omitempty"`
	AdjustedAt time.Time `json:"adjusted_at"`
}

// LowStockDetectedEvent is emitted at most once per material per day.
type LowStockDetectedEvent struct {
	MaterialID uuid.UUID `json:"material_id"`
	Name       string    `json:"name"`
	Stock      string    `json:"stock"`
	Threshold  string    `json:"threshold"`
	DetectedAt time.Time `json:"detected_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
)

// Order belongs either to a registered customer or to a guest.
type Order struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID         *uuid.UUID        `gorm:"column:customer_id;type:uuid;index"`
	GuestName          *string           `gorm:"column:guest_name"`
	GuestEmail         *string           `gorm:"column:guest_email"`
	GuestPhone         *string           `gorm:"column:guest_phone"`
	Status             enums.OrderStatus `gorm:"column:status;type:varchar(16);not null;index"`
	Packed             bool              `gorm:"column:packed;not null;default:false"`
	PackedAt           *time.Time        `gorm:"column:packed_at"`
	SubtotalCents      int               `gorm:"column:subtotal_cents;not null"`
	DiscountTotalCents int               `gorm:"column:discount_total_cents;not null;default:0"`
	ShippingTotalCents int               `gorm:"column:shipping_total_cents;not null;default:0"`
	TaxTotalCents      int               `gorm:"column:tax_total_cents;not null;default:0"`
	GrandTotalCents    int               `gorm:"column:grand_total_cents;not null"`
	PromoCodeID        *uuid.UUID        `gorm:"column:promo_code_id;type:uuid"`
	Items              []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem is immutable once its order is committed.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID      *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	ProductSlug    string     `gorm:"column:product_slug;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	DiscountCents  int        `gorm:"column:discount_cents;not null;default:0"`
	TotalCents     int        `gorm:"column:total_cents;not null"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

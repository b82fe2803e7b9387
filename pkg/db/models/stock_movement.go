package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
)

// StockMovement is an append-only ledger row. Quantity is signed: negative
// rows consume stock, positive rows add it.
type StockMovement struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Type       enums.StockMovementType `gorm:"column:type;type:varchar(16);not null"`
	MaterialID *uuid.UUID              `gorm:"column:material_id;type:uuid;index"`
	ProductID  *uuid.UUID              `gorm:"column:product_id;type:uuid;index"`
	VariantID  *uuid.UUID              `gorm:"column:variant_id;type:uuid"`
	OrderID    *uuid.UUID              `gorm:"column:order_id;type:uuid;index"`
	Quantity   decimal.Decimal         `gorm:"column:quantity;type:numeric(18,4);not null"`
	Note       string                  `gorm:"column:note;not null;default:''"`
	UserID     *uuid.UUID              `gorm:"column:user_id;type:uuid"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

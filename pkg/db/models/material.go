package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
)

// Material is a raw input whose stock is only ever changed through ledger operations.
type Material struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name              string             `gorm:"column:name;not null"`
	Unit              enums.MaterialUnit `gorm:"column:unit;type:varchar(16);not null"`
	PricePerUnitCents int                `gorm:"column:price_per_unit_cents;not null;default:0"`
	StockQuantity     decimal.Decimal    `gorm:"column:stock_quantity;type:numeric(18,4);not null"`
	LowStockThreshold decimal.Decimal    `gorm:"column:low_stock_threshold;type:numeric(18,4);not null"`
	SupplierID        *uuid.UUID         `gorm:"column:supplier_id;type:uuid"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Material) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// IsLowStock reports whether stock sits at or below the configured threshold.
func (m Material) IsLowStock() bool {
	return m.StockQuantity.LessThanOrEqual(m.LowStockThreshold)
}

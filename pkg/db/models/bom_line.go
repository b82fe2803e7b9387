package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
)

// BOMLine is one material requirement of a product or of a variant, never both.
type BOMLine struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       *uuid.UUID         `gorm:"column:product_id;type:uuid;index"`
	VariantID       *uuid.UUID         `gorm:"column:variant_id;type:uuid;index"`
	MaterialID      uuid.UUID          `gorm:"column:material_id;type:uuid;not null"`
	QuantityPerUnit decimal.Decimal    `gorm:"column:quantity_per_unit;type:numeric(18,4);not null"`
	MeasurementUnit enums.MaterialUnit `gorm:"column:measurement_unit;type:varchar(16);not null"`
}

func (BOMLine) TableName() string {
	return "bom_lines"
}

func (b *BOMLine) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

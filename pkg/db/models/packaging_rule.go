package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/storefront-fulfillment/pkg/db/types"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
)

// PackagingRule describes how much of a packaging material an order consumes.
type PackagingRule struct {
	ID               uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	Name             string                       `gorm:"column:name;not null"`
	MaterialID       uuid.UUID                    `gorm:"column:material_id;type:uuid;not null"`
	DeductionType    enums.PackagingDeductionType `gorm:"column:deduction_type;type:varchar(16);not null"`
	AppliesTo        enums.PackagingScope         `gorm:"column:applies_to;type:varchar(32);not null"`
	ProductIDs       dbtypes.UUIDArray            `gorm:"column:product_ids;not null"`
	QuantitySingle   decimal.Decimal              `gorm:"column:quantity_single;type:numeric(18,4);not null"`
	QuantityMultiple decimal.Decimal              `gorm:"column:quantity_multiple;type:numeric(18,4);not null"`
	IsActive         bool                         `gorm:"column:is_active;not null"`
	CreatedAt        time.Time                    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                    `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *PackagingRule) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	if r.ProductIDs == nil {
		r.ProductIDs = dbtypes.UUIDArray{}
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/storefront-fulfillment/pkg/db/types"
)

// PromoCode is stored flat; the promotions package turns it into a typed kind.
// Code is persisted upper-cased so lookups are case-insensitive.
type PromoCode struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code                 string              `gorm:"column:code;not null;uniqueIndex"`
	PercentageOff        decimal.Decimal     `gorm:"column:percentage_off;type:numeric(5,2);not null"`
	IsBogo               bool                `gorm:"column:is_bogo;not null;default:false"`
	BogoBuyCount         int                 `gorm:"column:bogo_buy_count;not null;default:0"`
	BogoGetCount         int                 `gorm:"column:bogo_get_count;not null;default:0"`
	AllCart              bool                `gorm:"column:all_cart;not null"`
	EligibleProductSlugs dbtypes.StringArray `gorm:"column:eligible_product_slugs;not null"`
	EligibleCustomerIDs  dbtypes.UUIDArray   `gorm:"column:eligible_customer_ids;not null"`
	ValidFrom            *time.Time          `gorm:"column:valid_from"`
	ValidUntil           *time.Time          `gorm:"column:valid_until"`
	IsActive             bool                `gorm:"column:is_active;not null"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PromoCode) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	if p.EligibleProductSlugs == nil {
		p.EligibleProductSlugs = dbtypes.StringArray{}
	}
	if p.EligibleCustomerIDs == nil {
		p.EligibleCustomerIDs = dbtypes.UUIDArray{}
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a sellable catalog entry; Stock counts finished units.
type Product struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name          string           `gorm:"column:name;not null"`
	Slug          string           `gorm:"column:slug;not null;uniqueIndex"`
	PriceCents    int              `gorm:"column:price_cents;not null"`
	DiscountCents *int             `gorm:"column:discount_cents"`
	Stock         int              `gorm:"column:stock;not null;default:0"`
	IsActive      bool             `gorm:"column:is_active;not null"`
	Variants      []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	BOMLines      []BOMLine        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductVariant specializes a product; nil price fields fall back to the parent.
type ProductVariant struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Name          string    `gorm:"column:name;not null"`
	PriceCents    *int      `gorm:"column:price_cents"`
	DiscountCents *int      `gorm:"column:discount_cents"`
	Stock         int       `gorm:"column:stock;not null;default:0"`
	BOMLines      []BOMLine `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

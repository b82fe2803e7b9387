package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
)

// SeedMaterial inserts a material and the opening ADJUSTMENT movement that
// accounts for its stock.
func SeedMaterial(t testing.TB, conn *gorm.DB, name string, stock float64) models.Material {
	t.Helper()
	qty := decimal.NewFromFloat(stock)
	material := models.Material{
		Name:              name,
		Unit:              enums.MaterialUnitPiece,
		StockQuantity:     qty,
		LowStockThreshold: decimal.NewFromInt(1),
	}
	if err := conn.Create(&material).Error; err != nil {
		t.Fatalf("seed material: %v", err)
	}
	if qty.IsPositive() {
		movement := models.StockMovement{
			Type:       enums.StockMovementAdjustment,
			MaterialID: &material.ID,
			Quantity:   qty,
			Note:       "opening stock",
		}
		if err := conn.Create(&movement).Error; err != nil {
			t.Fatalf("seed opening movement: %v", err)
		}
	}
	return material
}

// BOM maps material ids to per-unit quantities.
type BOM map[uuid.UUID]float64

// SeedProduct inserts an active product with the given BOM.
func SeedProduct(t testing.TB, conn *gorm.DB, slug string, priceCents int, bom BOM) models.Product {
	t.Helper()
	product := models.Product{
		Name:       slug,
		Slug:       slug,
		PriceCents: priceCents,
		IsActive:   true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	for materialID, perUnit := range bom {
		line := models.BOMLine{
			ProductID:       &product.ID,
			MaterialID:      materialID,
			QuantityPerUnit: decimal.NewFromFloat(perUnit),
			MeasurementUnit: enums.MaterialUnitPiece,
		}
		if err := conn.Create(&line).Error; err != nil {
			t.Fatalf("seed bom line: %v", err)
		}
	}
	return product
}

// SeedVariant inserts a variant of product with an optional own BOM.
func SeedVariant(t testing.TB, conn *gorm.DB, productID uuid.UUID, name string, priceCents *int, bom BOM) models.ProductVariant {
	t.Helper()
	variant := models.ProductVariant{
		ProductID:  productID,
		Name:       name,
		PriceCents: priceCents,
	}
	if err := conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	for materialID, perUnit := range bom {
		line := models.BOMLine{
			VariantID:       &variant.ID,
			MaterialID:      materialID,
			QuantityPerUnit: decimal.NewFromFloat(perUnit),
			MeasurementUnit: enums.MaterialUnitPiece,
		}
		if err := conn.Create(&line).Error; err != nil {
			t.Fatalf("seed variant bom line: %v", err)
		}
	}
	return variant
}

// OrderLine is a product and quantity for SeedOrder.
type OrderLine struct {
	Product  models.Product
	Quantity int
}

// SeedOrder inserts an order in the given status with one item per line.
func SeedOrder(t testing.TB, conn *gorm.DB, status enums.OrderStatus, lines ...OrderLine) models.Order {
	t.Helper()
	order := models.Order{Status: status}
	for _, line := range lines {
		total := line.Product.PriceCents * line.Quantity
		order.SubtotalCents += total
		order.Items = append(order.Items, models.OrderItem{
			ProductID:      line.Product.ID,
			ProductSlug:    line.Product.Slug,
			Quantity:       line.Quantity,
			UnitPriceCents: line.Product.PriceCents,
			TotalCents:     total,
		})
	}
	order.GrandTotalCents = order.SubtotalCents
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

// Age rewinds an order's created_at.
func Age(t testing.TB, conn *gorm.DB, orderID uuid.UUID, by time.Duration) {
	t.Helper()
	if err := conn.Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("created_at", time.Now().UTC().Add(-by)).Error; err != nil {
		t.Fatalf("age order: %v", err)
	}
}

// SeedPackagingRule inserts an active rule.
func SeedPackagingRule(t testing.TB, conn *gorm.DB, rule models.PackagingRule) models.PackagingRule {
	t.Helper()
	rule.IsActive = true
	if rule.Name == "" {
		rule.Name = "rule"
	}
	if rule.AppliesTo == "" {
		rule.AppliesTo = enums.PackagingScopeAll
	}
	if rule.DeductionType == "" {
		rule.DeductionType = enums.PackagingPerOrder
	}
	if err := conn.Create(&rule).Error; err != nil {
		t.Fatalf("seed packaging rule: %v", err)
	}
	return rule
}

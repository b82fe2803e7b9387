package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
)

type materialView struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Unit              string     `json:"unit"`
	PricePerUnitCents int        `json:"price_per_unit_cents"`
	StockQuantity     string     `json:"stock_quantity"`
	LowStockThreshold string     `json:"low_stock_threshold"`
	LowStock          bool       `json:"low_stock"`
	SupplierID        *uuid.UUID `json:"supplier_id,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func newMaterialView(m models.Material) materialView {
	return materialView{
		ID:                m.ID,
		Name:              m.Name,
		Unit:              string(m.Unit),
		PricePerUnitCents: m.PricePerUnitCents,
		StockQuantity:     m.StockQuantity.String(),
		LowStockThreshold: m.LowStockThreshold.String(),
		LowStock:          m.IsLowStock(),
		SupplierID:        m.SupplierID,
		UpdatedAt:         m.UpdatedAt,
	}
}

func newMaterialViews(rows []models.Material) []materialView {
	out := make([]materialView, 0, len(rows))
	for _, row := range rows {
		out = append(out, newMaterialView(row))
	}
	return out
}

type movementView struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Quantity  string     `json:"quantity"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	Note      string     `json:"note,omitempty"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newMovementViews(rows []models.StockMovement) []movementView {
	out := make([]movementView, 0, len(rows))
	for _, m := range rows {
		out = append(out, movementView{
			ID:        m.ID,
			Type:      string(m.Type),
			Quantity:  m.Quantity.String(),
			OrderID:   m.OrderID,
			ProductID: m.ProductID,
			Note:      m.Note,
			UserID:    m.UserID,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

type packagingRuleView struct {
	ID               uuid.UUID   `json:"id"`
	Name             string      `json:"name"`
	MaterialID       uuid.UUID   `json:"material_id"`
	DeductionType    string      `json:"deduction_type"`
	AppliesTo        string      `json:"applies_to"`
	ProductIDs       []uuid.UUID `json:"product_ids"`
	QuantitySingle   string      `json:"quantity_single"`
	QuantityMultiple string      `json:"quantity_multiple"`
	IsActive         bool        `json:"is_active"`
}

func newPackagingRuleView(r models.PackagingRule) packagingRuleView {
	ids := []uuid.UUID(r.ProductIDs)
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return packagingRuleView{
		ID:               r.ID,
		Name:             r.Name,
		MaterialID:       r.MaterialID,
		DeductionType:    string(r.DeductionType),
		AppliesTo:        string(r.AppliesTo),
		ProductIDs:       ids,
		QuantitySingle:   r.QuantitySingle.String(),
		QuantityMultiple: r.QuantityMultiple.String(),
		IsActive:         r.IsActive,
	}
}

type promoCodeView struct {
	ID                   uuid.UUID   `json:"id"`
	Code                 string      `json:"code"`
	PercentageOff        string      `json:"percentage_off,omitempty"`
	IsBogo               bool        `json:"is_bogo"`
	BogoBuyCount         int         `json:"bogo_buy_count,omitempty"`
	BogoGetCount         int         `json:"bogo_get_count,omitempty"`
	AllCart              bool        `json:"all_cart"`
	EligibleProductSlugs []string    `json:"eligible_product_slugs"`
	EligibleCustomerIDs  []uuid.UUID `json:"eligible_customer_ids"`
	ValidFrom            *time.Time  `json:"valid_from,omitempty"`
	ValidUntil           *time.Time  `json:"valid_until,omitempty"`
	IsActive             bool        `json:"is_active"`
}

func newPromoCodeView(p models.PromoCode) promoCodeView {
	view := promoCodeView{
		ID:                   p.ID,
		Code:                 p.Code,
		IsBogo:               p.IsBogo,
		BogoBuyCount:         p.BogoBuyCount,
		BogoGetCount:         p.BogoGetCount,
		AllCart:              p.AllCart,
		EligibleProductSlugs: append([]string{}, p.EligibleProductSlugs...),
		EligibleCustomerIDs:  append([]uuid.UUID{}, p.EligibleCustomerIDs...),
		ValidFrom:            p.ValidFrom,
		ValidUntil:           p.ValidUntil,
		IsActive:             p.IsActive,
	}
	if !p.IsBogo {
		view.PercentageOff = p.PercentageOff.String()
	}
	return view
}

type orderItemView struct {
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	ProductSlug    string     `json:"product_slug"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int        `json:"unit_price_cents"`
	DiscountCents  int        `json:"discount_cents"`
	TotalCents     int        `json:"total_cents"`
}

type orderView struct {
	ID                 uuid.UUID       `json:"id"`
	Status             string          `json:"status"`
	CustomerID         *uuid.UUID      `json:"customer_id,omitempty"`
	GuestName          *string         `json:"guest_name,omitempty"`
	Packed             bool            `json:"packed"`
	PackedAt           *time.Time      `json:"packed_at,omitempty"`
	SubtotalCents      int             `json:"subtotal_cents"`
	DiscountTotalCents int             `json:"discount_total_cents"`
	ShippingTotalCents int             `json:"shipping_total_cents"`
	TaxTotalCents      int             `json:"tax_total_cents"`
	GrandTotalCents    int             `json:"grand_total_cents"`
	PromoCodeID        *uuid.UUID      `json:"promo_code_id,omitempty"`
	Items              []orderItemView `json:"items"`
	CreatedAt          time.Time       `json:"created_at"`
}

func newOrderView(o models.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemView{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			ProductSlug:    item.ProductSlug,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			DiscountCents:  item.DiscountCents,
			TotalCents:     item.TotalCents,
		})
	}
	return orderView{
		ID:                 o.ID,
		Status:             string(o.Status),
		CustomerID:         o.CustomerID,
		GuestName:          o.GuestName,
		Packed:             o.Packed,
		PackedAt:           o.PackedAt,
		SubtotalCents:      o.SubtotalCents,
		DiscountTotalCents: o.DiscountTotalCents,
		ShippingTotalCents: o.ShippingTotalCents,
		TaxTotalCents:      o.TaxTotalCents,
		GrandTotalCents:    o.GrandTotalCents,
		PromoCodeID:        o.PromoCodeID,
		Items:              items,
		CreatedAt:          o.CreatedAt,
	}
}

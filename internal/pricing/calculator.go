// Package pricing turns priced cart lines and an optional promo evaluation
// into order totals. It has no state and does no I/O.
package pricing

import (
	"github.com/angelmondragon/storefront-fulfillment/internal/promotions"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
)

// Line is a priced cart line. DiscountCents is a manual per-unit discount.
type Line struct {
	UnitPriceCents int
	Quantity       int
	DiscountCents  int
}

// ShippingRule is a flat fee resolved by the caller (e.g. per governorate).
type ShippingRule struct {
	FlatCents int
}

type Totals struct {
	SubtotalCents      int `json:"subtotal_cents"`
	LineDiscountCents  int `json:"line_discount_cents"`
	PromoDiscountCents int `json:"promo_discount_cents"`
	DiscountTotalCents int `json:"discount_total_cents"`
	ShippingTotalCents int `json:"shipping_total_cents"`
	TaxTotalCents      int `json:"tax_total_cents"`
	GrandTotalCents    int `json:"grand_total_cents"`
}

// Calculate prices a cart. Manual line discounts and the promo discount add
// up; the grand total never drops below shipping.
func Calculate(lines []Line, promo *promotions.Evaluation, shipping ShippingRule, taxCents int) (Totals, error) {
	if shipping.FlatCents < 0 {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping fee cannot be negative")
	}
	if taxCents < 0 {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "tax cannot be negative")
	}

	var totals Totals
	for _, line := range lines {
		if line.Quantity <= 0 {
			return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		if line.UnitPriceCents < 0 || line.DiscountCents < 0 {
			return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "line prices cannot be negative")
		}
		if line.DiscountCents > line.UnitPriceCents {
			return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "line discount exceeds unit price")
		}
		totals.SubtotalCents += line.UnitPriceCents * line.Quantity
		totals.LineDiscountCents += line.DiscountCents * line.Quantity
	}
	if promo != nil && promo.IsValid {
		if promo.DiscountCents < 0 {
			return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "promo discount cannot be negative")
		}
		totals.PromoDiscountCents = promo.DiscountCents
	}

	totals.DiscountTotalCents = totals.LineDiscountCents + totals.PromoDiscountCents
	totals.ShippingTotalCents = shipping.FlatCents
	totals.TaxTotalCents = taxCents
	totals.GrandTotalCents = totals.SubtotalCents - totals.DiscountTotalCents + totals.ShippingTotalCents + totals.TaxTotalCents
	if totals.GrandTotalCents < totals.ShippingTotalCents {
		totals.GrandTotalCents = totals.ShippingTotalCents
	}
	return totals, nil
}

package promotions

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
)

var hundred = decimal.NewFromInt(100)

// Kind is the discount shape of a promo code. A code is exactly one kind.
type Kind interface {
	Name() string
	apply(items []Item) (int, []FreeItem)
}

// PercentageKind takes Percent off the eligible subtotal.
type PercentageKind struct {
	Percent decimal.Decimal
}

func (PercentageKind) Name() string { return "percentage" }

func (k PercentageKind) apply(items []Item) (int, []FreeItem) {
	eligible := subtotal(items)
	discount := k.Percent.Div(hundred).Mul(decimal.NewFromInt(int64(eligible))).Round(0).IntPart()
	return clamp(int(discount), 0, eligible), nil
}

// BogoKind gives Get free units for every Buy+Get eligible units, cheapest first.
type BogoKind struct {
	Buy int
	Get int
}

func (BogoKind) Name() string { return "bogo" }

func (k BogoKind) apply(items []Item) (int, []FreeItem) {
	if k.Buy <= 0 || k.Get <= 0 {
		return 0, nil
	}
	units := 0
	for _, item := range items {
		units += item.Quantity
	}
	free := (units / (k.Buy + k.Get)) * k.Get
	if free == 0 {
		return 0, nil
	}

	// Cheapest lines first; equal prices keep cart order.
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].UnitPriceCents < items[order[b]].UnitPriceCents
	})

	discount := 0
	var out []FreeItem
	for _, i := range order {
		if free == 0 {
			break
		}
		take := min(items[i].Quantity, free)
		if take == 0 {
			continue
		}
		discount += take * items[i].UnitPriceCents
		free -= take
		out = append(out, FreeItem{
			ProductID:      items[i].ProductID,
			VariantID:      items[i].VariantID,
			ProductSlug:    items[i].ProductSlug,
			Quantity:       take,
			UnitPriceCents: items[i].UnitPriceCents,
		})
	}
	return discount, out
}

// KindOf converts a stored promo code into its kind.
func KindOf(code models.PromoCode) (Kind, error) {
	if code.IsBogo {
		if code.BogoBuyCount <= 0 || code.BogoGetCount <= 0 {
			return nil, fmt.Errorf("promo %s: bogo counts must be positive", code.Code)
		}
		return BogoKind{Buy: code.BogoBuyCount, Get: code.BogoGetCount}, nil
	}
	if !code.PercentageOff.IsPositive() || code.PercentageOff.GreaterThan(hundred) {
		return nil, fmt.Errorf("promo %s: percentage out of range", code.Code)
	}
	return PercentageKind{Percent: code.PercentageOff}, nil
}

func subtotal(items []Item) int {
	total := 0
	for _, item := range items {
		total += item.UnitPriceCents * item.Quantity
	}
	return total
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package promotions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
)

// Item is one cart line offered to the engine.
type Item struct {
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	ProductSlug    string     `json:"product_slug"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int        `json:"unit_price_cents"`
}

// FreeItem groups the units a BOGO code made free on one line.
type FreeItem struct {
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	ProductSlug    string     `json:"product_slug"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int        `json:"unit_price_cents"`
}

type EvaluateInput struct {
	Code       string
	Items      []Item
	CustomerID *uuid.UUID
}

// Evaluation is the outcome of applying a code to a cart. An inapplicable
// code is a normal result with IsValid false.
type Evaluation struct {
	PromoCodeID           uuid.UUID               `json:"promo_code_id,omitempty"`
	Code                  string                  `json:"code"`
	Kind                  string                  `json:"kind,omitempty"`
	IsValid               bool                    `json:"is_valid"`
	DiscountCents         int                     `json:"discount_cents"`
	EligibleSubtotalCents int                     `json:"eligible_subtotal_cents"`
	FreeItems             []FreeItem              `json:"free_items,omitempty"`
	Reason                enums.PromoRejectReason `json:"reason,omitempty"`
	Error                 string                  `json:"error,omitempty"`
}

// Err converts a rejected evaluation into a PROMO_INELIGIBLE error.
func (e *Evaluation) Err() error {
	if e == nil || e.IsValid {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodePromoIneligible, e.Error).
		WithDetails(map[string]any{"code": e.Code, "reason": e.Reason})
}

func rejected(code string, reason enums.PromoRejectReason) *Evaluation {
	return &Evaluation{Code: code, Reason: reason, Error: reason.Message()}
}

// Engine evaluates promo codes. It never writes.
type Engine struct {
	repo Repository
	now  func() time.Time
}

func NewEngine(repo Repository) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("promo code repository required")
	}
	return &Engine{repo: repo, now: time.Now}, nil
}

// MaxItemQuantity caps a single cart line. Request validation uses the same
// bound.
const MaxItemQuantity = 10000

func (e *Engine) Evaluate(ctx context.Context, input EvaluateInput) (*Evaluation, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 || item.Quantity > MaxItemQuantity {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "item quantity must be between 1 and %d", MaxItemQuantity)
		}
		if item.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item price cannot be negative")
		}
	}

	promo, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rejected(code, enums.PromoReasonNotFound), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}
	return Evaluate(*promo, input.Items, input.CustomerID, e.now().UTC()), nil
}

// Evaluate applies promo to items at the given instant.
func Evaluate(promo models.PromoCode, items []Item, customerID *uuid.UUID, now time.Time) *Evaluation {
	code := NormalizeCode(promo.Code)
	if !promo.IsActive {
		return rejected(code, enums.PromoReasonNotFound)
	}
	if promo.ValidFrom != nil && now.Before(*promo.ValidFrom) {
		return rejected(code, enums.PromoReasonNotYetActive)
	}
	if promo.ValidUntil != nil && now.After(*promo.ValidUntil) {
		return rejected(code, enums.PromoReasonExpired)
	}
	if len(promo.EligibleCustomerIDs) > 0 {
		if customerID == nil || !promo.EligibleCustomerIDs.Contains(*customerID) {
			return rejected(code, enums.PromoReasonNotEligible)
		}
	}

	kind, err := KindOf(promo)
	if err != nil {
		return rejected(code, enums.PromoReasonNotFound)
	}

	eligible := eligibleItems(promo, items)
	discount, free := kind.apply(eligible)
	return &Evaluation{
		PromoCodeID:           promo.ID,
		Code:                  code,
		Kind:                  kind.Name(),
		IsValid:               true,
		DiscountCents:         discount,
		EligibleSubtotalCents: subtotal(eligible),
		FreeItems:             free,
	}
}

func eligibleItems(promo models.PromoCode, items []Item) []Item {
	if promo.AllCart {
		return items
	}
	slugs := make(map[string]struct{}, len(promo.EligibleProductSlugs))
	for _, slug := range promo.EligibleProductSlugs {
		slugs[slug] = struct{}{}
	}
	var out []Item
	for _, item := range items {
		if _, ok := slugs[item.ProductSlug]; ok {
			out = append(out, item)
		}
	}
	return out
}

// NormalizeCode is the stored form of a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-fulfillment/api/responses"
	"github.com/angelmondragon/storefront-fulfillment/api/validators"
	"github.com/angelmondragon/storefront-fulfillment/internal/promotions"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

type promoCodeRequest struct {
	Code                 string      `json:"code" validate:"required,max=64"`
	PercentageOff        string      `json:"percentage_off" validate:"omitempty,decimal"`
	IsBogo               bool        `json:"is_bogo"`
	BogoBuyCount         int         `json:"bogo_buy_count" validate:"gte=0"`
	BogoGetCount         int         `json:"bogo_get_count" validate:"gte=0"`
	AllCart              bool        `json:"all_cart"`
	EligibleProductSlugs []string    `json:"eligible_product_slugs" validate:"dive,required"`
	EligibleCustomerIDs  []uuid.UUID `json:"eligible_customer_ids"`
	ValidFrom            *time.Time  `json:"valid_from"`
	ValidUntil           *time.Time  `json:"valid_until"`
	IsActive             *bool       `json:"is_active"`
}

func (req promoCodeRequest) input() promotions.PromoInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return promotions.PromoInput{
		Code:                 req.Code,
		PercentageOff:        validators.Decimal(req.PercentageOff),
		IsBogo:               req.IsBogo,
		BogoBuyCount:         req.BogoBuyCount,
		BogoGetCount:         req.BogoGetCount,
		AllCart:              req.AllCart,
		EligibleProductSlugs: req.EligibleProductSlugs,
		EligibleCustomerIDs:  req.EligibleCustomerIDs,
		ValidFrom:            req.ValidFrom,
		ValidUntil:           req.ValidUntil,
		IsActive:             active,
	}
}

func AdminListPromoCodes(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]promoCodeView, 0, len(rows))
		for _, row := range rows {
			out = append(out, newPromoCodeView(row))
		}
		responses.WriteSuccess(w, out)
	}
}

func AdminCreatePromoCode(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req promoCodeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		promo, err := svc.Create(r.Context(), req.input())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPromoCodeView(*promo))
	}
}

func AdminUpdatePromoCode(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		promoID, err := validators.UUIDParam(r, "promoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req promoCodeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		promo, err := svc.Update(r.Context(), promoID, req.input())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPromoCodeView(*promo))
	}
}

func AdminDeactivatePromoCode(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		promoID, err := validators.UUIDParam(r, "promoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		promo, err := svc.Deactivate(r.Context(), promoID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPromoCodeView(*promo))
	}
}

type promoEvaluator interface {
	Evaluate(ctx context.Context, input promotions.EvaluateInput) (*promotions.Evaluation, error)
}

type evaluateItemRequest struct {
	ProductID      uuid.UUID  `json:"product_id" validate:"required"`
	VariantID      *uuid.UUID `json:"variant_id"`
	ProductSlug    string     `json:"product_slug" validate:"required"`
	Quantity       int        `json:"quantity" validate:"gt=0,max=10000"`
	UnitPriceCents int        `json:"unit_price_cents" validate:"gte=0"`
}

type evaluatePromoRequest struct {
	Code       string                `json:"code" validate:"required"`
	CustomerID *uuid.UUID            `json:"customer_id"`
	Items      []evaluateItemRequest `json:"items" validate:"required,min=1,dive"`
}

// EvaluatePromoCode previews a code against a cart. An inapplicable code is
// a 200 with is_valid false and a reason.
func EvaluatePromoCode(engine promoEvaluator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req evaluatePromoRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]promotions.Item, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, promotions.Item{
				ProductID:      item.ProductID,
				VariantID:      item.VariantID,
				ProductSlug:    item.ProductSlug,
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
			})
		}
		eval, err := engine.Evaluate(r.Context(), promotions.EvaluateInput{
			Code:       req.Code,
			Items:      items,
			CustomerID: req.CustomerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, eval)
	}
}

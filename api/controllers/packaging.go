package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-fulfillment/api/responses"
	"github.com/angelmondragon/storefront-fulfillment/api/validators"
	"github.com/angelmondragon/storefront-fulfillment/internal/packaging"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

type packagingRuleRequest struct {
	Name             string      `json:"name" validate:"required,max=200"`
	MaterialID       uuid.UUID   `json:"material_id" validate:"required"`
	DeductionType    string      `json:"deduction_type" validate:"required,oneof=per_order per_item"`
	AppliesTo        string      `json:"applies_to" validate:"required,oneof=all specific_products"`
	ProductIDs       []uuid.UUID `json:"product_ids"`
	QuantitySingle   string      `json:"quantity_single" validate:"required,decimal"`
	QuantityMultiple string      `json:"quantity_multiple" validate:"required,decimal"`
	IsActive         *bool       `json:"is_active"`
}

func (req packagingRuleRequest) input() packaging.RuleInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return packaging.RuleInput{
		Name:             strings.TrimSpace(req.Name),
		MaterialID:       req.MaterialID,
		DeductionType:    enums.PackagingDeductionType(req.DeductionType),
		AppliesTo:        enums.PackagingScope(req.AppliesTo),
		ProductIDs:       req.ProductIDs,
		QuantitySingle:   validators.Decimal(req.QuantitySingle),
		QuantityMultiple: validators.Decimal(req.QuantityMultiple),
		IsActive:         active,
	}
}

func AdminListPackagingRules(svc packaging.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]packagingRuleView, 0, len(rules))
		for _, rule := range rules {
			out = append(out, newPackagingRuleView(rule))
		}
		responses.WriteSuccess(w, out)
	}
}

func AdminCreatePackagingRule(svc packaging.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req packagingRuleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rule, err := svc.Create(r.Context(), req.input())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPackagingRuleView(*rule))
	}
}

// AdminUpdatePackagingRule replaces the rule's definition wholesale.
func AdminUpdatePackagingRule(svc packaging.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ruleID, err := validators.UUIDParam(r, "ruleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req packagingRuleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rule, err := svc.Update(r.Context(), ruleID, req.input())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPackagingRuleView(*rule))
	}
}

func AdminDeletePackagingRule(svc packaging.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ruleID, err := validators.UUIDParam(r, "ruleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), ruleID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

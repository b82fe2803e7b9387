package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-fulfillment/api/middleware"
	"github.com/angelmondragon/storefront-fulfillment/api/responses"
	"github.com/angelmondragon/storefront-fulfillment/api/validators"
	"github.com/angelmondragon/storefront-fulfillment/internal/materials"
	"github.com/angelmondragon/storefront-fulfillment/internal/stockledger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/pagination"
)

func AdminListMaterials(svc materials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMaterialViews(rows))
	}
}

func AdminLowStockMaterials(svc materials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.LowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMaterialViews(rows))
	}
}

type createMaterialRequest struct {
	Name              string     `json:"name" validate:"required,max=200"`
	Unit              string     `json:"unit" validate:"required,oneof=gm ml piece bottle unit"`
	PricePerUnitCents int        `json:"price_per_unit_cents" validate:"gte=0"`
	OpeningStock      string     `json:"opening_stock" validate:"omitempty,decimal"`
	LowStockThreshold string     `json:"low_stock_threshold" validate:"omitempty,decimal"`
	SupplierID        *uuid.UUID `json:"supplier_id"`
}

func AdminCreateMaterial(svc materials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createMaterialRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		material, err := svc.Create(r.Context(), materials.CreateMaterialInput{
			Name:              strings.TrimSpace(req.Name),
			Unit:              enums.MaterialUnit(req.Unit),
			PricePerUnitCents: req.PricePerUnitCents,
			OpeningStock:      validators.Decimal(req.OpeningStock),
			LowStockThreshold: validators.Decimal(req.LowStockThreshold),
			SupplierID:        req.SupplierID,
			PerformedBy:       middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newMaterialView(*material))
	}
}

type adjustMaterialRequest struct {
	Delta string `json:"delta" validate:"required,decimal_nonzero"`
	Note  string `json:"note" validate:"required,max=500"`
}

// AdminAdjustMaterial applies a signed manual correction through the ledger.
func AdminAdjustMaterial(svc materials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		materialID, err := validators.UUIDParam(r, "materialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req adjustMaterialRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		material, err := svc.Adjust(r.Context(), materials.AdjustInput{
			MaterialID:  materialID,
			Delta:       validators.Decimal(req.Delta),
			Note:        strings.TrimSpace(req.Note),
			PerformedBy: middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMaterialView(*material))
	}
}

func AdminMaterialMovements(ledger stockledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		materialID, err := validators.UUIDParam(r, "materialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := ledger.ListByMaterial(r.Context(), materialID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, newMovementViews(page.Movements), page.NextCursor)
	}
}

func AdminReconcileMaterial(ledger stockledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		materialID, err := validators.UUIDParam(r, "materialId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, err := ledger.Reconcile(r.Context(), materialID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rec)
	}
}

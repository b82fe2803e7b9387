package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-fulfillment/api/middleware"
	"github.com/angelmondragon/storefront-fulfillment/api/responses"
	"github.com/angelmondragon/storefront-fulfillment/api/validators"
	"github.com/angelmondragon/storefront-fulfillment/internal/fulfillment"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

type produceRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" validate:"required,gt=0"`
	Note      string     `json:"note" validate:"max=500"`
}

// AdminProduce records a production run. Shortages come back as 422 with the
// shortage list in details.
func AdminProduce(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		var req produceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Produce(r.Context(), fulfillment.ProduceInput{
			ProductID:   req.ProductID,
			VariantID:   req.VariantID,
			Quantity:    req.Quantity,
			Note:        req.Note,
			PerformedBy: middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type packRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" validate:"required,min=1,dive,required"`
}

// AdminPackOrders packs a batch. Individual failures are reported per order
// and never fail the request; 207 signals a mixed outcome.
func AdminPackOrders(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		var req packRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Pack(r.Context(), fulfillment.PackInput{
			OrderIDs:    req.OrderIDs,
			PerformedBy: middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if summary.Failed > 0 && summary.Succeeded > 0 {
			status = http.StatusMultiStatus
		}
		responses.WriteSuccessStatus(w, status, summary)
	}
}

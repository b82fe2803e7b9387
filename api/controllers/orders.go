package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-fulfillment/api/middleware"
	"github.com/angelmondragon/storefront-fulfillment/api/responses"
	"github.com/angelmondragon/storefront-fulfillment/api/validators"
	"github.com/angelmondragon/storefront-fulfillment/internal/orders"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

type cartItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" validate:"gt=0,max=10000"`
}

type guestRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

type checkoutRequest struct {
	CustomerID    *uuid.UUID        `json:"customer_id"`
	Guest         *guestRequest     `json:"guest"`
	Items         []cartItemRequest `json:"items" validate:"required,min=1,dive"`
	PromoCode     string            `json:"promo_code" validate:"max=64"`
	ShippingCents int               `json:"shipping_cents" validate:"gte=0"`
	TaxCents      int               `json:"tax_cents" validate:"gte=0"`
}

func (req checkoutRequest) input() orders.CheckoutInput {
	items := make([]orders.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orders.CartItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	in := orders.CheckoutInput{
		CustomerID:    req.CustomerID,
		Items:         items,
		PromoCode:     strings.TrimSpace(req.PromoCode),
		ShippingCents: req.ShippingCents,
		TaxCents:      req.TaxCents,
	}
	if req.Guest != nil {
		in.Guest = &orders.Guest{
			Name:  strings.TrimSpace(req.Guest.Name),
			Email: strings.TrimSpace(req.Guest.Email),
			Phone: strings.TrimSpace(req.Guest.Phone),
		}
	}
	return in
}

// CheckoutQuote prices a cart from the catalog without persisting it.
func CheckoutQuote(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.Quote(r.Context(), req.input())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

func Checkout(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Checkout(r.Context(), req.input())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderView(*order))
	}
}

type paymentEventRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	Success *bool     `json:"success" validate:"required"`
}

// PaymentWebhook applies a payment outcome relayed by the gateway adapter.
func PaymentWebhook(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentEventRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.HandlePaymentEvent(r.Context(), orders.PaymentEvent{
			OrderID: req.OrderID,
			Success: *req.Success,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(*order))
	}
}

func AdminGetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.UUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(*order))
	}
}

type transitionRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// AdminTransitionOrder moves an order to a fixed target status; the service
// enforces which moves are legal.
func AdminTransitionOrder(svc orders.Service, to enums.OrderStatus, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.UUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req transitionRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		order, err := svc.Transition(r.Context(), orders.TransitionInput{
			OrderID:     orderID,
			To:          to,
			Reason:      strings.TrimSpace(req.Reason),
			PerformedBy: middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(*order))
	}
}

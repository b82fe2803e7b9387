package orders

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/pricing"
	"github.com/angelmondragon/storefront-fulfillment/internal/promotions"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox/payloads"
)

// CartItem is a requested line before pricing.
type CartItem struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// Guest identifies a customer without an account.
type Guest struct {
	Name  string
	Email string
	Phone string
}

type CheckoutInput struct {
	CustomerID    *uuid.UUID
	Guest         *Guest
	Items         []CartItem
	PromoCode     string
	ShippingCents int
	TaxCents      int
}

// QuoteLine is a cart line priced from the catalog.
type QuoteLine struct {
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	ProductSlug    string     `json:"product_slug"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int        `json:"unit_price_cents"`
	DiscountCents  int        `json:"discount_cents"`
	TotalCents     int        `json:"total_cents"`
}

type Quote struct {
	Lines  []QuoteLine            `json:"lines"`
	Totals pricing.Totals         `json:"totals"`
	Promo  *promotions.Evaluation `json:"promo,omitempty"`
}

// Quote prices a cart without persisting anything. A rejected promo is
// reported on the quote rather than failing it.
func (s *service) Quote(ctx context.Context, input CheckoutInput) (*Quote, error) {
	return s.price(ctx, input)
}

// Checkout prices the cart and stores it as a pending order. A rejected promo
// fails the checkout with PROMO_INELIGIBLE.
func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if err := validateBuyer(input); err != nil {
		return nil, err
	}
	quote, err := s.price(ctx, input)
	if err != nil {
		return nil, err
	}
	if quote.Promo != nil && !quote.Promo.IsValid {
		return nil, quote.Promo.Err()
	}

	order := &models.Order{
		CustomerID:         input.CustomerID,
		Status:             enums.OrderStatusPending,
		SubtotalCents:      quote.Totals.SubtotalCents,
		DiscountTotalCents: quote.Totals.DiscountTotalCents,
		ShippingTotalCents: quote.Totals.ShippingTotalCents,
		TaxTotalCents:      quote.Totals.TaxTotalCents,
		GrandTotalCents:    quote.Totals.GrandTotalCents,
	}
	if input.CustomerID == nil && input.Guest != nil {
		order.GuestName = optional(input.Guest.Name)
		order.GuestEmail = optional(input.Guest.Email)
		order.GuestPhone = optional(input.Guest.Phone)
	}
	promoCode := ""
	if quote.Promo != nil {
		order.PromoCodeID = &quote.Promo.PromoCodeID
		promoCode = quote.Promo.Code
	}
	for _, line := range quote.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			ProductSlug:    line.ProductSlug,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			DiscountCents:  line.DiscountCents,
			TotalCents:     line.TotalCents,
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.Actor(input.CustomerID, outbox.SourceCustomer),
			Data: payloads.OrderPlacedEvent{
				OrderID:         order.ID,
				CustomerID:      order.CustomerID,
				ItemCount:       len(order.Items),
				SubtotalCents:   order.SubtotalCents,
				DiscountCents:   order.DiscountTotalCents,
				GrandTotalCents: order.GrandTotalCents,
				PromoCode:       promoCode,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout")
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithField(logCtx, "grand_total_cents", order.GrandTotalCents)
	s.logg.Info(logCtx, "order.placed")
	return order, nil
}

func (s *service) price(ctx context.Context, input CheckoutInput) (*Quote, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	lines := make([]QuoteLine, 0, len(input.Items))
	for _, item := range input.Items {
		line, err := s.priceLine(ctx, item)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	var promo *promotions.Evaluation
	if code := strings.TrimSpace(input.PromoCode); code != "" {
		// List prices: manual line discounts add to the promo, never compound.
		items := make([]promotions.Item, 0, len(lines))
		for _, line := range lines {
			items = append(items, promotions.Item{
				ProductID:      line.ProductID,
				VariantID:      line.VariantID,
				ProductSlug:    line.ProductSlug,
				Quantity:       line.Quantity,
				UnitPriceCents: line.UnitPriceCents,
			})
		}
		eval, err := s.promos.Evaluate(ctx, promotions.EvaluateInput{
			Code:       code,
			Items:      items,
			CustomerID: input.CustomerID,
		})
		if err != nil {
			return nil, err
		}
		promo = eval
	}

	priced := make([]pricing.Line, 0, len(lines))
	for _, line := range lines {
		priced = append(priced, pricing.Line{
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			DiscountCents:  line.DiscountCents,
		})
	}
	totals, err := pricing.Calculate(priced, promo, pricing.ShippingRule{FlatCents: input.ShippingCents}, input.TaxCents)
	if err != nil {
		return nil, err
	}
	return &Quote{Lines: lines, Totals: totals, Promo: promo}, nil
}

func (s *service) priceLine(ctx context.Context, item CartItem) (QuoteLine, error) {
	if item.ProductID == uuid.Nil {
		return QuoteLine{}, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if item.Quantity <= 0 || item.Quantity > promotions.MaxItemQuantity {
		return QuoteLine{}, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be between 1 and %d", promotions.MaxItemQuantity)
	}

	product, err := s.products.FindByID(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return QuoteLine{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return QuoteLine{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return QuoteLine{}, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	unit := product.PriceCents
	discount := valueOr(product.DiscountCents, 0)
	if item.VariantID != nil {
		variant, err := s.products.FindVariant(ctx, *item.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return QuoteLine{}, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
			}
			return QuoteLine{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
		}
		if variant.ProductID != product.ID {
			return QuoteLine{}, pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to product")
		}
		unit = valueOr(variant.PriceCents, unit)
		discount = valueOr(variant.DiscountCents, discount)
	}
	if discount > unit {
		discount = unit
	}

	return QuoteLine{
		ProductID:      product.ID,
		VariantID:      item.VariantID,
		ProductSlug:    product.Slug,
		Quantity:       item.Quantity,
		UnitPriceCents: unit,
		DiscountCents:  discount,
		TotalCents:     (unit - discount) * item.Quantity,
	}, nil
}

func validateBuyer(input CheckoutInput) error {
	if input.CustomerID != nil {
		return nil
	}
	if input.Guest == nil || strings.TrimSpace(input.Guest.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id or guest name required")
	}
	if strings.TrimSpace(input.Guest.Email) == "" && strings.TrimSpace(input.Guest.Phone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "guest email or phone required")
	}
	return nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func valueOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/products"
	"github.com/angelmondragon/storefront-fulfillment/internal/promotions"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type promoEvaluator interface {
	Evaluate(ctx context.Context, input promotions.EvaluateInput) (*promotions.Evaluation, error)
}

// Service covers checkout, payment callbacks and admin status changes.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Quote(ctx context.Context, input CheckoutInput) (*Quote, error)
	Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error)
	HandlePaymentEvent(ctx context.Context, event PaymentEvent) (*models.Order, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// PaymentEvent is the only input from the payment collaborator.
type PaymentEvent struct {
	OrderID uuid.UUID
	Success bool
}

type TransitionInput struct {
	OrderID     uuid.UUID
	To          enums.OrderStatus
	Reason      string
	PerformedBy *uuid.UUID
}

type service struct {
	repo     Repository
	products products.Repository
	promos   promoEvaluator
	tx       txRunner
	outbox   outbox.Emitter
	logg     *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, productRepo products.Repository, promos promoEvaluator, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if promos == nil {
		return nil, fmt.Errorf("promotion engine required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		products: productRepo,
		promos:   promos,
		tx:       tx,
		outbox:   emitter,
		logg:     logg,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapOrderLookupError(err)
	}
	return order, nil
}

// HandlePaymentEvent moves a pending order to processing on success and to
// failed otherwise. Redelivered events are no-ops.
func (s *service) HandlePaymentEvent(ctx context.Context, event PaymentEvent) (*models.Order, error) {
	target := enums.OrderStatusFailed
	reason := "payment failed"
	if event.Success {
		target = enums.OrderStatusProcessing
		reason = "payment confirmed"
	}

	order, err := s.Get(ctx, event.OrderID)
	if err != nil {
		return nil, err
	}
	if event.Success && alreadyPaid(order.Status) {
		return order, nil
	}
	return s.Transition(ctx, TransitionInput{OrderID: event.OrderID, To: target, Reason: reason})
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var (
		result  *models.Order
		changed bool
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return mapOrderLookupError(err)
		}
		result = order
		from = order.Status
		if order.Status == input.To {
			return nil
		}
		if !order.Status.CanTransitionTo(input.To) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order cannot move from %s to %s", order.Status, input.To))
		}

		updated, err := repo.UpdateStatus(ctx, order.ID, order.Status, input.To)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "order status changed concurrently")
		}
		order.Status = input.To
		changed = true

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.Actor(input.PerformedBy, outbox.SourceAdmin),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   order.ID,
				From:      from,
				To:        input.To,
				Reason:    strings.TrimSpace(input.Reason),
				ChangedAt: time.Now().UTC(),
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition order")
	}

	if changed {
		logCtx := s.logg.WithOrderID(ctx, result.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{"from": from, "to": input.To})
		s.logg.Info(logCtx, "order.status_changed")
	}
	return result, nil
}

// ExpireStale cancels pending orders created before cutoff and returns how
// many were cancelled. Orders that moved on in the meantime are skipped.
func (s *service) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.repo.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}
	cancelled := 0
	for _, order := range stale {
		_, err := s.Transition(ctx, TransitionInput{
			OrderID: order.ID,
			To:      enums.OrderStatusCancelled,
			Reason:  "pending order expired",
		})
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) || pkgerrors.HasCode(err, pkgerrors.CodeConcurrencyConflict) {
				continue
			}
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

func mapOrderLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func alreadyPaid(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusProcessing, enums.OrderStatusCompleted, enums.OrderStatusRefunded:
		return true
	default:
		return false
	}
}

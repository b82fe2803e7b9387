package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/products"
	"github.com/angelmondragon/storefront-fulfillment/internal/promotions"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
)

type testEnv struct {
	conn *gorm.DB
	svc  Service
	repo Repository
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	client, conn := dbtest.Client(t)
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	engine, err := promotions.NewEngine(promotions.NewRepository(conn))
	require.NoError(t, err)
	repo := NewRepository(conn)
	svc, err := NewService(repo, products.NewRepository(conn), engine, client, outbox.NewService(outbox.NewRepository(conn), logg), logg)
	require.NoError(t, err)
	return testEnv{conn: conn, svc: svc, repo: repo}
}

func outboxEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Where("event_type = ?", eventType).Find(&rows).Error)
	return rows
}

func TestCheckoutPersistsPricedPendingOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	soap := dbtest.SeedProduct(t, env.conn, "soap", 1000, nil)
	candle := dbtest.SeedProduct(t, env.conn, "candle", 2500, nil)
	bigPrice := 3000
	large := dbtest.SeedVariant(t, env.conn, candle.ID, "large", &bigPrice, nil)

	require.NoError(t, env.conn.Create(&models.PromoCode{
		Code:          "TENOFF",
		PercentageOff: decimal.NewFromInt(10),
		AllCart:       true,
		IsActive:      true,
	}).Error)

	customer := uuid.New()
	order, err := env.svc.Checkout(ctx, CheckoutInput{
		CustomerID: &customer,
		Items: []CartItem{
			{ProductID: soap.ID, Quantity: 2},
			{ProductID: candle.ID, VariantID: &large.ID, Quantity: 1},
		},
		PromoCode:     "tenoff",
		ShippingCents: 500,
	})
	require.NoError(t, err)

	stored, err := env.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, 5000, stored.SubtotalCents)
	assert.Equal(t, 500, stored.DiscountTotalCents)
	assert.Equal(t, 500, stored.ShippingTotalCents)
	assert.Equal(t, 5000, stored.GrandTotalCents)
	require.NotNil(t, stored.PromoCodeID)
	require.Len(t, stored.Items, 2)

	placed := outboxEvents(t, env.conn, enums.EventOrderPlaced)
	require.Len(t, placed, 1)
	assert.Equal(t, order.ID, placed[0].AggregateID)
}

func TestQuoteAddsLineAndPromoDiscounts(t *testing.T) {
	env := newTestEnv(t)
	soap := dbtest.SeedProduct(t, env.conn, "soap", 1000, nil)
	require.NoError(t, env.conn.Model(&models.Product{}).Where("id = ?", soap.ID).Update("discount_cents", 200).Error)
	require.NoError(t, env.conn.Create(&models.PromoCode{
		Code:          "TENOFF",
		PercentageOff: decimal.NewFromInt(10),
		AllCart:       true,
		IsActive:      true,
	}).Error)

	quote, err := env.svc.Quote(context.Background(), CheckoutInput{
		Guest:     &Guest{Name: "Sam", Email: "sam@example.com"},
		Items:     []CartItem{{ProductID: soap.ID, Quantity: 1}},
		PromoCode: "TENOFF",
	})
	require.NoError(t, err)
	require.NotNil(t, quote.Promo)
	assert.True(t, quote.Promo.IsValid)

	// 10% of the 1000 list price, not of the 800 net price
	assert.Equal(t, 1000, quote.Totals.SubtotalCents)
	assert.Equal(t, 200, quote.Totals.LineDiscountCents)
	assert.Equal(t, 100, quote.Totals.PromoDiscountCents)
	assert.Equal(t, 300, quote.Totals.DiscountTotalCents)
	assert.Equal(t, 700, quote.Totals.GrandTotalCents)
}

func TestCheckoutRejectsIneligiblePromo(t *testing.T) {
	env := newTestEnv(t)
	soap := dbtest.SeedProduct(t, env.conn, "soap", 1000, nil)

	input := CheckoutInput{
		Guest:     &Guest{Name: "Sam", Email: "sam@example.com"},
		Items:     []CartItem{{ProductID: soap.ID, Quantity: 1}},
		PromoCode: "MISSING",
	}
	_, err := env.svc.Checkout(context.Background(), input)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePromoIneligible), "got %v", err)

	quote, err := env.svc.Quote(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, quote.Promo)
	assert.False(t, quote.Promo.IsValid)
	assert.Equal(t, 1000, quote.Totals.GrandTotalCents)

	var count int64
	require.NoError(t, env.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckoutValidation(t *testing.T) {
	env := newTestEnv(t)
	soap := dbtest.SeedProduct(t, env.conn, "soap", 1000, nil)
	other := dbtest.SeedProduct(t, env.conn, "other", 1000, nil)
	foreign := dbtest.SeedVariant(t, env.conn, other.ID, "foreign", nil, nil)
	guest := &Guest{Name: "Sam", Phone: "+20100"}

	cases := map[string]struct {
		input CheckoutInput
		code  pkgerrors.Code
	}{
		"empty cart":      {CheckoutInput{Guest: guest}, pkgerrors.CodeValidation},
		"no buyer":        {CheckoutInput{Items: []CartItem{{ProductID: soap.ID, Quantity: 1}}}, pkgerrors.CodeValidation},
		"guest contact":   {CheckoutInput{Guest: &Guest{Name: "Sam"}, Items: []CartItem{{ProductID: soap.ID, Quantity: 1}}}, pkgerrors.CodeValidation},
		"zero quantity":   {CheckoutInput{Guest: guest, Items: []CartItem{{ProductID: soap.ID}}}, pkgerrors.CodeValidation},
		"huge quantity":   {CheckoutInput{Guest: guest, Items: []CartItem{{ProductID: soap.ID, Quantity: promotions.MaxItemQuantity + 1}}}, pkgerrors.CodeValidation},
		"unknown product": {CheckoutInput{Guest: guest, Items: []CartItem{{ProductID: uuid.New(), Quantity: 1}}}, pkgerrors.CodeNotFound},
		"foreign variant": {CheckoutInput{Guest: guest, Items: []CartItem{{ProductID: soap.ID, VariantID: &foreign.ID, Quantity: 1}}}, pkgerrors.CodeValidation},
		"negative ship":   {CheckoutInput{Guest: guest, ShippingCents: -1, Items: []CartItem{{ProductID: soap.ID, Quantity: 1}}}, pkgerrors.CodeValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.Checkout(context.Background(), tc.input)
			assert.True(t, pkgerrors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func TestPaymentEventDrivesStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	soap := dbtest.SeedProduct(t, env.conn, "soap", 1000, nil)

	paid := dbtest.SeedOrder(t, env.conn, enums.OrderStatusPending, dbtest.OrderLine{Product: soap, Quantity: 1})
	order, err := env.svc.HandlePaymentEvent(ctx, PaymentEvent{OrderID: paid.ID, Success: true})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)

	// redelivery is a no-op
	order, err = env.svc.HandlePaymentEvent(ctx, PaymentEvent{OrderID: paid.ID, Success: true})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	assert.Len(t, outboxEvents(t, env.conn, enums.EventOrderStatusChanged), 1)

	declined := dbtest.SeedOrder(t, env.conn, enums.OrderStatusPending, dbtest.OrderLine{Product: soap, Quantity: 1})
	order, err = env.svc.HandlePaymentEvent(ctx, PaymentEvent{OrderID: declined.ID})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailed, order.Status)

	_, err = env.svc.HandlePaymentEvent(ctx, PaymentEvent{OrderID: declined.ID, Success: true})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	_, err = env.svc.HandlePaymentEvent(ctx, PaymentEvent{OrderID: uuid.New(), Success: true})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestTransitionRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	soap := dbtest.SeedProduct(t, env.conn, "soap", 1000, nil)
	admin := uuid.New()

	order := dbtest.SeedOrder(t, env.conn, enums.OrderStatusProcessing, dbtest.OrderLine{Product: soap, Quantity: 1})

	_, err := env.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusRefunded, PerformedBy: &admin})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	updated, err := env.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusCompleted, PerformedBy: &admin})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, updated.Status)

	updated, err = env.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusRefunded, Reason: "damaged", PerformedBy: &admin})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRefunded, updated.Status)

	_, err = env.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusCancelled})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	_, err = env.svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: "shipped"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	assert.Len(t, outboxEvents(t, env.conn, enums.EventOrderStatusChanged), 2)
}

func TestExpireStaleCancelsOnlyOldPendingOrders(t *testing.T) {
	env := newTestEnv(t)
	soap := dbtest.SeedProduct(t, env.conn, "soap", 1000, nil)

	old := dbtest.SeedOrder(t, env.conn, enums.OrderStatusPending, dbtest.OrderLine{Product: soap, Quantity: 1})
	dbtest.Age(t, env.conn, old.ID, 96*time.Hour)
	fresh := dbtest.SeedOrder(t, env.conn, enums.OrderStatusPending, dbtest.OrderLine{Product: soap, Quantity: 1})
	paid := dbtest.SeedOrder(t, env.conn, enums.OrderStatusProcessing, dbtest.OrderLine{Product: soap, Quantity: 1})
	dbtest.Age(t, env.conn, paid.ID, 96*time.Hour)

	cancelled, err := env.svc.ExpireStale(context.Background(), time.Now().UTC().Add(-72*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	for id, want := range map[uuid.UUID]enums.OrderStatus{
		old.ID:   enums.OrderStatusCancelled,
		fresh.ID: enums.OrderStatusPending,
		paid.ID:  enums.OrderStatusProcessing,
	} {
		got, err := env.repo.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}
}

func TestSetPackedOnlyOnceAndOnlyWhenPackable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	soap := dbtest.SeedProduct(t, env.conn, "soap", 1000, nil)
	now := time.Now().UTC()

	pending := dbtest.SeedOrder(t, env.conn, enums.OrderStatusPending, dbtest.OrderLine{Product: soap, Quantity: 1})
	ok, err := env.repo.SetPacked(ctx, pending.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	processing := dbtest.SeedOrder(t, env.conn, enums.OrderStatusProcessing, dbtest.OrderLine{Product: soap, Quantity: 1})
	ok, err = env.repo.SetPacked(ctx, processing.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.repo.SetPacked(ctx, processing.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

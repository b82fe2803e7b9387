package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
)

func seedBoxRule(t *testing.T, h harness, stock float64) models.Material {
	t.Helper()
	box := dbtest.SeedMaterial(t, h.conn, "box", stock)
	dbtest.SeedPackagingRule(t, h.conn, models.PackagingRule{
		MaterialID:       box.ID,
		DeductionType:    enums.PackagingPerOrder,
		QuantitySingle:   decimal.NewFromInt(1),
		QuantityMultiple: decimal.NewFromInt(2),
	})
	return box
}

func TestPackOrderConsumesPackagingByItemCount(t *testing.T) {
	h := newHarness(t, testConfig(), 0)
	box := seedBoxRule(t, h, 10)
	soap := dbtest.SeedProduct(t, h.conn, "soap", 900, nil)
	candle := dbtest.SeedProduct(t, h.conn, "candle", 1500, nil)
	balm := dbtest.SeedProduct(t, h.conn, "balm", 700, nil)

	single := dbtest.SeedOrder(t, h.conn, enums.OrderStatusProcessing, dbtest.OrderLine{Product: soap, Quantity: 1})
	multi := dbtest.SeedOrder(t, h.conn, enums.OrderStatusCompleted,
		dbtest.OrderLine{Product: soap, Quantity: 1},
		dbtest.OrderLine{Product: candle, Quantity: 1},
		dbtest.OrderLine{Product: balm, Quantity: 1},
	)

	packed, err := h.svc.PackOrder(context.Background(), single.ID, nil)
	require.NoError(t, err)
	require.Len(t, packed.Consumed, 1)
	assert.True(t, packed.Consumed[0].Quantity.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "box", packed.Consumed[0].Name)
	assert.True(t, h.stock(t, box.ID).Equal(decimal.NewFromInt(9)))

	packed, err = h.svc.PackOrder(context.Background(), multi.ID, nil)
	require.NoError(t, err)
	assert.True(t, packed.Consumed[0].Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, h.stock(t, box.ID).Equal(decimal.NewFromInt(7)))
	h.assertLedgerConsistent(t, box.ID)

	rows, err := h.movements.ListByOrder(context.Background(), multi.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.StockMovementPackaging, rows[0].Type)
	assert.True(t, rows[0].Quantity.Equal(decimal.NewFromInt(-2)))

	var order models.Order
	require.NoError(t, h.conn.First(&order, "id = ?", multi.ID).Error)
	assert.True(t, order.Packed)
	require.NotNil(t, order.PackedAt)
	assert.Equal(t, enums.OrderStatusCompleted, order.Status)
	assert.EqualValues(t, 2, h.countEvents(t, enums.EventOrderPacked))

	_, err = h.svc.PackOrder(context.Background(), multi.ID, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	assert.True(t, h.stock(t, box.ID).Equal(decimal.NewFromInt(7)))
}

func TestPackBatchReportsPartialSuccessInOrder(t *testing.T) {
	h := newHarness(t, testConfig(), 0)
	box := seedBoxRule(t, h, 3)
	soap := dbtest.SeedProduct(t, h.conn, "soap", 900, nil)
	candle := dbtest.SeedProduct(t, h.conn, "candle", 1500, nil)

	ok1 := dbtest.SeedOrder(t, h.conn, enums.OrderStatusProcessing, dbtest.OrderLine{Product: soap, Quantity: 1})
	pending := dbtest.SeedOrder(t, h.conn, enums.OrderStatusPending, dbtest.OrderLine{Product: soap, Quantity: 1})
	missing := uuid.New()
	ok2 := dbtest.SeedOrder(t, h.conn, enums.OrderStatusProcessing,
		dbtest.OrderLine{Product: soap, Quantity: 1},
		dbtest.OrderLine{Product: candle, Quantity: 2},
	)

	ids := []uuid.UUID{ok1.ID, pending.ID, missing, ok2.ID}
	summary, err := h.svc.Pack(context.Background(), PackInput{OrderIDs: ids})
	require.NoError(t, err)

	require.Len(t, summary.Results, 4)
	for i, id := range ids {
		assert.Equal(t, id, summary.Results[i].OrderID)
	}
	assert.True(t, summary.Results[0].Success)
	assert.Equal(t, pkgerrors.CodeStateConflict, summary.Results[1].ErrorCode)
	assert.Equal(t, pkgerrors.CodeNotFound, summary.Results[2].ErrorCode)
	assert.True(t, summary.Results[3].Success)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, "2/4 succeeded", summary.Summary)

	assert.True(t, h.stock(t, box.ID).IsZero())
	h.assertLedgerConsistent(t, box.ID)
}

func TestPackBatchShortageFailsOnlyThatOrder(t *testing.T) {
	cfg := testConfig()
	cfg.PackConcurrency = 1
	h := newHarness(t, cfg, 0)
	box := seedBoxRule(t, h, 2)
	soap := dbtest.SeedProduct(t, h.conn, "soap", 900, nil)
	candle := dbtest.SeedProduct(t, h.conn, "candle", 1500, nil)

	big := dbtest.SeedOrder(t, h.conn, enums.OrderStatusProcessing,
		dbtest.OrderLine{Product: soap, Quantity: 1},
		dbtest.OrderLine{Product: candle, Quantity: 1},
	)
	small := dbtest.SeedOrder(t, h.conn, enums.OrderStatusProcessing, dbtest.OrderLine{Product: soap, Quantity: 1})
	other := dbtest.SeedOrder(t, h.conn, enums.OrderStatusProcessing, dbtest.OrderLine{Product: candle, Quantity: 1})

	summary, err := h.svc.Pack(context.Background(), PackInput{OrderIDs: []uuid.UUID{big.ID, small.ID, other.ID}})
	require.NoError(t, err)
	assert.Equal(t, "1/3 succeeded", summary.Summary)
	assert.True(t, summary.Results[0].Success)
	for _, r := range summary.Results[1:] {
		assert.Equal(t, pkgerrors.CodeInsufficientMaterials, r.ErrorCode)
		require.Len(t, r.Shortages, 1)
		assert.Equal(t, box.ID, r.Shortages[0].MaterialID)
	}

	var order models.Order
	require.NoError(t, h.conn.First(&order, "id = ?", small.ID).Error)
	assert.False(t, order.Packed)
	h.assertLedgerConsistent(t, box.ID)
}

func TestPackWithoutRulesStillMarksPacked(t *testing.T) {
	h := newHarness(t, testConfig(), 0)
	soap := dbtest.SeedProduct(t, h.conn, "soap", 900, nil)
	order := dbtest.SeedOrder(t, h.conn, enums.OrderStatusProcessing, dbtest.OrderLine{Product: soap, Quantity: 2})

	packed, err := h.svc.PackOrder(context.Background(), order.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, packed.Consumed)
}

func TestPackItemTimeoutReportsFailure(t *testing.T) {
	cfg := testConfig()
	cfg.PackItemTimeout = time.Nanosecond
	h := newHarness(t, cfg, 0)
	soap := dbtest.SeedProduct(t, h.conn, "soap", 900, nil)
	order := dbtest.SeedOrder(t, h.conn, enums.OrderStatusProcessing, dbtest.OrderLine{Product: soap, Quantity: 1})

	summary, err := h.svc.Pack(context.Background(), PackInput{OrderIDs: []uuid.UUID{order.ID}})
	require.NoError(t, err)
	assert.Equal(t, "0/1 succeeded", summary.Summary)
	assert.False(t, summary.Results[0].Success)

	var stored models.Order
	require.NoError(t, h.conn.First(&stored, "id = ?", order.ID).Error)
	assert.False(t, stored.Packed)
}

func TestPackValidation(t *testing.T) {
	h := newHarness(t, testConfig(), 0)
	_, err := h.svc.Pack(context.Background(), PackInput{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.Pack(context.Background(), PackInput{OrderIDs: make([]uuid.UUID, maxPackBatch+1)})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

package packaging

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-fulfillment/pkg/db/types"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
)

func boxRule(materialID uuid.UUID, deduction enums.PackagingDeductionType) models.PackagingRule {
	return models.PackagingRule{
		MaterialID:       materialID,
		DeductionType:    deduction,
		AppliesTo:        enums.PackagingScopeAll,
		QuantitySingle:   decimal.NewFromInt(1),
		QuantityMultiple: decimal.NewFromInt(2),
		IsActive:         true,
	}
}

func TestComputeConsumptionPerOrder(t *testing.T) {
	box := uuid.New()
	rules := []models.PackagingRule{boxRule(box, enums.PackagingPerOrder)}

	single := ComputeConsumption(rules, []Line{{ProductID: uuid.New(), Quantity: 1}})
	require.Len(t, single, 1)
	assert.True(t, single[0].Quantity.Equal(decimal.NewFromInt(1)))

	lines := []Line{
		{ProductID: uuid.New(), Quantity: 1},
		{ProductID: uuid.New(), Quantity: 4},
		{ProductID: uuid.New(), Quantity: 1},
	}
	multiple := ComputeConsumption(rules, lines)
	require.Len(t, multiple, 1)
	assert.Equal(t, box, multiple[0].MaterialID)
	assert.True(t, multiple[0].Quantity.Equal(decimal.NewFromInt(2)), "got %s", multiple[0].Quantity)
}

func TestComputeConsumptionPerItem(t *testing.T) {
	wrap := uuid.New()
	rules := []models.PackagingRule{boxRule(wrap, enums.PackagingPerItem)}

	lines := []Line{
		{ProductID: uuid.New(), Quantity: 1},
		{ProductID: uuid.New(), Quantity: 3},
	}
	out := ComputeConsumption(rules, lines)
	require.Len(t, out, 1)
	assert.True(t, out[0].Quantity.Equal(decimal.NewFromInt(3)), "got %s", out[0].Quantity)
}

func TestComputeConsumptionScopesAndSums(t *testing.T) {
	box := uuid.New()
	sticker := uuid.New()
	soap := uuid.New()
	candle := uuid.New()

	scoped := boxRule(sticker, enums.PackagingPerOrder)
	scoped.AppliesTo = enums.PackagingScopeSpecificProducts
	scoped.ProductIDs = dbtypes.UUIDArray{candle}

	second := boxRule(box, enums.PackagingPerItem)
	inactive := boxRule(box, enums.PackagingPerOrder)
	inactive.IsActive = false

	rules := []models.PackagingRule{boxRule(box, enums.PackagingPerOrder), second, scoped, inactive}

	out := ComputeConsumption(rules, []Line{{ProductID: soap, Quantity: 1}})
	require.Len(t, out, 1, "scoped rule must not fire without a matching line")
	assert.Equal(t, box, out[0].MaterialID)
	assert.True(t, out[0].Quantity.Equal(decimal.NewFromInt(2)))

	out = ComputeConsumption(rules, []Line{{ProductID: soap, Quantity: 1}, {ProductID: candle, Quantity: 2}})
	require.Len(t, out, 2)
	assert.True(t, out[0].MaterialID.String() < out[1].MaterialID.String())
	byID := map[uuid.UUID]decimal.Decimal{}
	for _, c := range out {
		byID[c.MaterialID] = c.Quantity
	}
	assert.True(t, byID[box].Equal(decimal.NewFromInt(5)), "box %s", byID[box])
	assert.True(t, byID[sticker].Equal(decimal.NewFromInt(1)), "sticker %s", byID[sticker])
}

func TestComputeConsumptionEmptyOrder(t *testing.T) {
	rules := []models.PackagingRule{boxRule(uuid.New(), enums.PackagingPerOrder)}
	assert.Empty(t, ComputeConsumption(rules, nil))
	assert.Empty(t, ComputeConsumption(nil, []Line{{ProductID: uuid.New(), Quantity: 2}}))
}

func TestEngineComputeUsesActiveRules(t *testing.T) {
	conn := dbtest.Open(t)
	box := dbtest.SeedMaterial(t, conn, "box", 10)
	rule := boxRule(box.ID, enums.PackagingPerOrder)
	dbtest.SeedPackagingRule(t, conn, rule)

	disabled := boxRule(box.ID, enums.PackagingPerItem)
	disabled.Name = "disabled"
	disabled.IsActive = false
	require.NoError(t, conn.Create(&disabled).Error)

	engine, err := NewEngine(NewRepository(conn))
	require.NoError(t, err)

	out, err := engine.Compute(context.Background(), []Line{
		{ProductID: uuid.New(), Quantity: 1},
		{ProductID: uuid.New(), Quantity: 1},
		{ProductID: uuid.New(), Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Quantity.Equal(decimal.NewFromInt(2)))

	draws := Draws(out)
	require.Len(t, draws, 1)
	assert.Equal(t, box.ID, draws[0].MaterialID)
}

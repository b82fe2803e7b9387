package promotions

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

func newAdmin(t *testing.T) (Service, *Engine) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo, logger.New(logger.Options{ServiceName: "promotions-test", Output: io.Discard}))
	require.NoError(t, err)
	engine, err := NewEngine(repo)
	require.NoError(t, err)
	return svc, engine
}

func TestEngineEvaluateLooksUpCaseInsensitively(t *testing.T) {
	svc, engine := newAdmin(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, PromoInput{
		Code:         "threefor2",
		IsBogo:       true,
		BogoBuyCount: 2,
		BogoGetCount: 1,
		AllCart:      true,
		IsActive:     true,
	})
	require.NoError(t, err)

	eval, err := engine.Evaluate(ctx, EvaluateInput{
		Code:  " ThreeFor2 ",
		Items: []Item{item("soap", 5, 10)},
	})
	require.NoError(t, err)
	assert.True(t, eval.IsValid)
	assert.Equal(t, "bogo", eval.Kind)
	assert.Equal(t, 10, eval.DiscountCents)
	assert.Equal(t, 50, eval.EligibleSubtotalCents)
}

func TestEngineEvaluateUnknownCode(t *testing.T) {
	_, engine := newAdmin(t)
	eval, err := engine.Evaluate(context.Background(), EvaluateInput{Code: "nope"})
	require.NoError(t, err)
	assert.False(t, eval.IsValid)
	assert.Equal(t, enums.PromoReasonNotFound, eval.Reason)
	assert.True(t, pkgerrors.HasCode(eval.Err(), pkgerrors.CodePromoIneligible))
}

func TestEngineEvaluateUsesClock(t *testing.T) {
	svc, engine := newAdmin(t)
	ctx := context.Background()
	until := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(ctx, PromoInput{
		Code:          "JANUARY",
		PercentageOff: decimal.NewFromInt(20),
		AllCart:       true,
		ValidUntil:    &until,
		IsActive:      true,
	})
	require.NoError(t, err)

	engine.now = func() time.Time { return until.Add(time.Minute) }
	eval, err := engine.Evaluate(ctx, EvaluateInput{Code: "january", Items: []Item{item("soap", 1, 100)}})
	require.NoError(t, err)
	assert.Equal(t, enums.PromoReasonExpired, eval.Reason)

	engine.now = func() time.Time { return until.Add(-time.Hour) }
	eval, err = engine.Evaluate(ctx, EvaluateInput{Code: "january", Items: []Item{item("soap", 1, 100)}})
	require.NoError(t, err)
	assert.True(t, eval.IsValid)
	assert.Equal(t, 20, eval.DiscountCents)
}

func TestEngineEvaluateRejectsMalformedInput(t *testing.T) {
	_, engine := newAdmin(t)
	ctx := context.Background()

	_, err := engine.Evaluate(ctx, EvaluateInput{Code: "  "})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = engine.Evaluate(ctx, EvaluateInput{Code: "X", Items: []Item{item("soap", 0, 10)}})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = engine.Evaluate(ctx, EvaluateInput{Code: "X", Items: []Item{item("soap", 1, -1)}})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = engine.Evaluate(ctx, EvaluateInput{Code: "X", Items: []Item{item("soap", MaxItemQuantity+1, 1)}})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestServiceValidation(t *testing.T) {
	svc, _ := newAdmin(t)
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	until := from.Add(-time.Hour)

	cases := map[string]PromoInput{
		"blank code":        {Code: " ", PercentageOff: decimal.NewFromInt(10)},
		"zero percent":      {Code: "A"},
		"over hundred":      {Code: "A", PercentageOff: decimal.NewFromInt(101)},
		"bogo zero buy":     {Code: "A", IsBogo: true, BogoGetCount: 1},
		"bogo with percent": {Code: "A", IsBogo: true, BogoBuyCount: 1, BogoGetCount: 1, PercentageOff: decimal.NewFromInt(5)},
		"percent with bogo": {Code: "A", PercentageOff: decimal.NewFromInt(5), BogoBuyCount: 1},
		"inverted window":   {Code: "A", PercentageOff: decimal.NewFromInt(5), ValidFrom: &from, ValidUntil: &until},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), input)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestServiceLifecycle(t *testing.T) {
	svc, _ := newAdmin(t)
	ctx := context.Background()
	customer := uuid.New()

	promo, err := svc.Create(ctx, PromoInput{
		Code:                 "vip",
		PercentageOff:        decimal.NewFromInt(15),
		EligibleProductSlugs: []string{"soap", " "},
		EligibleCustomerIDs:  []uuid.UUID{customer},
		IsActive:             true,
	})
	require.NoError(t, err)
	assert.Equal(t, "VIP", promo.Code)

	_, err = svc.Create(ctx, PromoInput{Code: "VIP", PercentageOff: decimal.NewFromInt(5)})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	stored, err := svc.Get(ctx, promo.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"soap"}, []string(stored.EligibleProductSlugs))
	assert.True(t, stored.EligibleCustomerIDs.Contains(customer))

	updated, err := svc.Update(ctx, promo.ID, PromoInput{
		Code:         "vip",
		IsBogo:       true,
		BogoBuyCount: 1,
		BogoGetCount: 1,
		AllCart:      true,
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.True(t, updated.IsBogo)

	deactivated, err := svc.Deactivate(ctx, promo.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsActive)

	_, err = svc.Get(ctx, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

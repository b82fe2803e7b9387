package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/app"
	pkgauth "github.com/angelmondragon/storefront-fulfillment/pkg/auth"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

func sqliteLoader(t *testing.T) (loaderFunc, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.Client(t)
	logg := logger.New(logger.Options{ServiceName: "fulfillctl-test", Output: io.Discard})
	cfg := &config.Config{
		Fulfillment: config.FulfillmentConfig{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			PackConcurrency: 1,
			PackItemTimeout: 5 * time.Second,
		},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 15},
	}
	services, err := app.New(cfg, client, logg, nil)
	require.NoError(t, err)
	return func(context.Context) (*toolDeps, error) {
		return &toolDeps{cfg: cfg, logg: logg, services: services}, nil
	}, conn
}

func execute(t *testing.T, load loaderFunc, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(load)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func stockOf(t *testing.T, conn *gorm.DB, id uuid.UUID) decimal.Decimal {
	t.Helper()
	var m models.Material
	require.NoError(t, conn.First(&m, "id = ?", id).Error)
	return m.StockQuantity
}

func TestProduceCommand(t *testing.T) {
	load, conn := sqliteLoader(t)
	wax := dbtest.SeedMaterial(t, conn, "wax", 5)
	candle := dbtest.SeedProduct(t, conn, "candle", 1200, dbtest.BOM{wax.ID: 0.5})

	out, err := execute(t, load, "produce", "--product", candle.ID.String(), "--quantity", "4", "--actor", uuid.NewString())
	require.NoError(t, err)

	var result struct {
		Quantity int `json:"quantity"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 4, result.Quantity)
	assert.True(t, stockOf(t, conn, wax.ID).Equal(decimal.NewFromInt(3)))
}

func TestProduceCommandRejectsBadActor(t *testing.T) {
	load, conn := sqliteLoader(t)
	candle := dbtest.SeedProduct(t, conn, "candle", 1200, nil)

	_, err := execute(t, load, "produce", "--product", candle.ID.String(), "--actor", "nobody")
	assert.ErrorContains(t, err, "invalid --actor")
}

func TestPackCommandFailsWhenAnyOrderFails(t *testing.T) {
	load, conn := sqliteLoader(t)
	tin := dbtest.SeedMaterial(t, conn, "tin", 1)
	product := dbtest.SeedProduct(t, conn, "tea", 900, dbtest.BOM{tin.ID: 1})
	packable := dbtest.SeedOrder(t, conn, enums.OrderStatusProcessing, dbtest.OrderLine{Product: product, Quantity: 1})
	pending := dbtest.SeedOrder(t, conn, enums.OrderStatusPending, dbtest.OrderLine{Product: product, Quantity: 1})

	out, err := execute(t, load, "pack", packable.ID.String(), pending.ID.String())
	assert.ErrorContains(t, err, "1 of 2 orders failed")

	var summary struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.True(t, stockOf(t, conn, tin.ID).IsZero())
}

func TestAdjustAndReconcileCommands(t *testing.T) {
	load, conn := sqliteLoader(t)
	ribbon := dbtest.SeedMaterial(t, conn, "ribbon", 2)

	_, err := execute(t, load, "adjust", ribbon.ID.String(), "3.5", "--note", "delivery")
	require.NoError(t, err)
	assert.True(t, stockOf(t, conn, ribbon.ID).Equal(decimal.RequireFromString("5.5")))

	_, err = execute(t, load, "reconcile", ribbon.ID.String())
	require.NoError(t, err)

	// bypass the ledger to simulate drift
	require.NoError(t, conn.Model(&models.Material{}).Where("id = ?", ribbon.ID).
		UpdateColumn("stock_quantity", decimal.NewFromInt(9)).Error)
	_, err = execute(t, load, "reconcile")
	assert.ErrorContains(t, err, "1 materials drifted")
}

func TestAdjustCommandValidatesArgs(t *testing.T) {
	load, _ := sqliteLoader(t)

	_, err := execute(t, load, "adjust", "not-a-uuid", "1", "--note", "x")
	assert.ErrorContains(t, err, "invalid material id")

	_, err = execute(t, load, "adjust", uuid.NewString(), "lots", "--note", "x")
	assert.ErrorContains(t, err, "invalid delta")
}

func TestLowStockCommand(t *testing.T) {
	load, conn := sqliteLoader(t)
	dbtest.SeedMaterial(t, conn, "glue", 0.5)
	dbtest.SeedMaterial(t, conn, "paper", 40)

	out, err := execute(t, load, "low-stock")
	require.NoError(t, err)

	var rows []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "glue", rows[0].Name)
}

func TestDeadLettersRequeue(t *testing.T) {
	load, conn := sqliteLoader(t)
	event := models.OutboxEvent{
		EventType:     enums.EventOrderPacked,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  10,
	}
	require.NoError(t, conn.Create(&event).Error)
	require.NoError(t, conn.Create(&models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		AttemptCount:  10,
		FailedAt:      time.Now().UTC(),
	}).Error)

	out, err := execute(t, load, "dead-letters", "list", "--reason", "max_attempts")
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 1)

	_, err = execute(t, load, "dead-letters", "requeue", event.ID.String())
	require.NoError(t, err)

	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", event.ID).Error)
	assert.Zero(t, reloaded.AttemptCount)

	_, err = execute(t, load, "dead-letters", "requeue", event.ID.String())
	assert.ErrorContains(t, err, "dead letter not found")
}

func TestTokenCommandMintsVerifiableToken(t *testing.T) {
	load, _ := sqliteLoader(t)
	actor := uuid.New()

	out, err := execute(t, load, "token", "--actor", actor.String(), "--role", "admin")
	require.NoError(t, err)

	cfg := config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 15}
	claims, err := pkgauth.ParseAccessToken(cfg, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, actor, claims.UserID)
	assert.Equal(t, pkgauth.RoleAdmin, claims.Role)

	_, err = execute(t, load, "token", "--role", "admin")
	assert.ErrorContains(t, err, "--actor is required")
	_, err = execute(t, load, "token", "--actor", actor.String(), "--role", "customer")
	assert.ErrorContains(t, err, "invalid role")
}

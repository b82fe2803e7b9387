package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *Repository, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	return NewService(repo, logg), repo, conn
}

func TestEmitWritesEnvelope(t *testing.T) {
	svc, _, conn := newTestService(t)
	orderID := uuid.New()
	userID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         Actor(&userID, SourceCustomer),
			Data:          map[string]any{"order_id": orderID.String()},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, orderID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, rows[0].ID.String(), envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, SourceCustomer, envelope.Actor.Source)
	assert.Equal(t, userID, envelope.Actor.UserID)
	assert.JSONEq(t, `{"order_id":"`+orderID.String()+`"}`, string(envelope.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	svc, _, conn := newTestService(t)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateMaterial,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRejectsUnknownEventAndMissingTx(t *testing.T) {
	svc, _, conn := newTestService(t)

	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderPacked})
	require.Error(t, err)

	err = svc.Emit(context.Background(), conn, DomainEvent{EventType: "mystery"})
	assert.ErrorContains(t, err, "unknown outbox event type")

	err = svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventOrderPacked,
		AggregateType: enums.AggregateOrder,
	})
	assert.ErrorContains(t, err, "without aggregate id")

	assert.Nil(t, Actor(nil, SourceAdmin))
	assert.Nil(t, Actor(&uuid.Nil, SourceAdmin))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	svc, repo, conn := newTestService(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
			EventType:     enums.EventLowStockDetected,
			AggregateType: enums.AggregateMaterial,
			AggregateID:   uuid.New(),
			Data:          map[string]int{"i": i},
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, errors.New(strings.Repeat("x", 2000))))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[2].ID, errors.New("bad payload"), 3))

	pending, err := repo.CountPending()
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Len(t, *rows[0].LastError, lastErrorLimit)
}

func TestDeletePublishedBeforeKeepsPendingRows(t *testing.T) {
	svc, repo, conn := newTestService(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
			EventType:     enums.EventOrderPacked,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          map[string]int{"i": i},
		}))
	}
	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkPublishedTx(conn, rows[1].ID))

	cutoff := time.Now().UTC().Add(time.Minute)
	deleted, err := repo.DeletePublishedBefore(context.Background(), conn, cutoff, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	deleted, err = repo.DeletePublishedBefore(context.Background(), conn, cutoff, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	pending, err := repo.CountPending()
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)
}

func TestDeadLetterRepositoryListAndRequeue(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	letters := NewDeadLetterRepository(conn)
	ctx := context.Background()

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderPacked,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
	}
	require.NoError(t, repo.Insert(conn, event))
	require.NoError(t, repo.MarkTerminalTx(conn, event.ID, errors.New("unsupported event type"), 10))

	msg := "unsupported event type"
	require.NoError(t, letters.InsertTx(conn, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &msg,
	}))

	found, err := letters.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.False(t, found.FailedAt.IsZero())

	list, err := letters.List(ctx, DeadLetterFilter{Reason: enums.OutboxDLQReasonMaxAttempts})
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = letters.List(ctx, DeadLetterFilter{Reason: enums.OutboxDLQReasonNonRetryable})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = letters.List(ctx, DeadLetterFilter{Reason: "bogus"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	require.NoError(t, letters.RequeueTx(conn, event.ID))
	fetched, err := repo.FetchUnpublishedForPublish(conn, 10, 10)
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Zero(t, fetched[0].AttemptCount)
	assert.Nil(t, fetched[0].LastError)

	_, err = letters.Get(ctx, event.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.HasCode(letters.RequeueTx(conn, event.ID), pkgerrors.CodeNotFound))
}

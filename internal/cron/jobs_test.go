package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/materials"
	"github.com/angelmondragon/storefront-fulfillment/internal/stockledger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
)

func countLowStockEvents(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventLowStockDetected).
		Count(&n).Error)
	return n
}

func TestLowStockJobAlertsOncePerDay(t *testing.T) {
	client, conn := dbtest.Client(t)
	low := dbtest.SeedMaterial(t, conn, "tape", 0.5)
	dbtest.SeedMaterial(t, conn, "box", 40)

	store := newMemoryRedis()
	jobIface, err := NewLowStockJob(LowStockJobParams{
		Logger:    testLogger(),
		DB:        client,
		Materials: materials.NewRepository(conn),
		Alerts:    store,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), testLogger()),
	})
	require.NoError(t, err)
	job := jobIface.(*lowStockJob)
	day := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return day }

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	assert.EqualValues(t, 1, countLowStockEvents(t, conn))
	assert.Contains(t, store.values, "alert:low_stock:"+low.ID.String()+":2026-03-04")

	job.now = func() time.Time { return day.Add(24 * time.Hour) }
	require.NoError(t, job.Run(context.Background()))
	assert.EqualValues(t, 2, countLowStockEvents(t, conn))
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

func TestLowStockJobReleasesKeyWhenEmitFails(t *testing.T) {
	client, conn := dbtest.Client(t)
	dbtest.SeedMaterial(t, conn, "tape", 0)

	store := newMemoryRedis()
	job, err := NewLowStockJob(LowStockJobParams{
		Logger:    testLogger(),
		DB:        client,
		Materials: materials.NewRepository(conn),
		Alerts:    store,
		Outbox:    failingEmitter{},
	})
	require.NoError(t, err)

	require.Error(t, job.Run(context.Background()))
	assert.Empty(t, store.values)
}

type fakeExpirer struct {
	pages   []int
	calls   int
	cutoffs []time.Time
	err     error
}

func (f *fakeExpirer) ExpireStale(_ context.Context, cutoff time.Time, _ int) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	if f.calls >= len(f.pages) {
		return 0, nil
	}
	n := f.pages[f.calls]
	f.calls++
	return n, nil
}

func TestOrderTTLJobDrainsBacklog(t *testing.T) {
	now := time.Date(2026, 1, 30, 12, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{pages: []int{2, 2, 1}}
	jobIface, err := NewOrderTTLJob(OrderTTLJobParams{Logger: testLogger(), Orders: expirer, TTL: 48 * time.Hour})
	require.NoError(t, err)
	job := jobIface.(*orderTTLJob)
	job.now = func() time.Time { return now }
	job.batch = 2

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, expirer.calls)
	require.NotEmpty(t, expirer.cutoffs)
	assert.True(t, expirer.cutoffs[0].Equal(now.Add(-48*time.Hour)))
}

func TestOrderTTLJobPropagatesError(t *testing.T) {
	job, err := NewOrderTTLJob(OrderTTLJobParams{Logger: testLogger(), Orders: &fakeExpirer{err: errors.New("db down")}})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}

func TestLedgerReconcileJobReportsEachDrift(t *testing.T) {
	_, conn := dbtest.Client(t)
	dbtest.SeedMaterial(t, conn, "box", 10)
	tape := dbtest.SeedMaterial(t, conn, "tape", 5)
	bag := dbtest.SeedMaterial(t, conn, "bag", 5)
	require.NoError(t, conn.Exec("UPDATE materials SET stock_quantity = 7 WHERE id IN ?", []any{tape.ID, bag.ID}).Error)

	ledger, err := stockledger.NewService(stockledger.NewRepository(conn), materials.NewRepository(conn))
	require.NoError(t, err)
	job, err := NewLedgerReconcileJob(testLogger(), ledger)
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "tape")
}

func TestLedgerReconcileJobPassesWhenConsistent(t *testing.T) {
	_, conn := dbtest.Client(t)
	dbtest.SeedMaterial(t, conn, "box", 10)

	ledger, err := stockledger.NewService(stockledger.NewRepository(conn), materials.NewRepository(conn))
	require.NoError(t, err)
	job, err := NewLedgerReconcileJob(testLogger(), ledger)
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))
}

func TestOutboxRetentionJobPrunesPublishedRows(t *testing.T) {
	client, conn := dbtest.Client(t)
	repo := outbox.NewRepository(conn)
	emitter := outbox.NewService(repo, testLogger())
	material := dbtest.SeedMaterial(t, conn, "box", 10)
	for i := 0; i < 4; i++ {
		require.NoError(t, emitter.Emit(context.Background(), conn, outbox.DomainEvent{
			EventType:     enums.EventLowStockDetected,
			AggregateType: enums.AggregateMaterial,
			AggregateID:   material.ID,
			Data:          map[string]int{"i": i},
		}))
	}
	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, row := range rows[:3] {
		require.NoError(t, repo.MarkPublishedTx(conn, row.ID))
	}

	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		DB:         client,
		Repository: repo,
		Retention:  time.Hour,
		BatchSize:  2,
	})
	require.NoError(t, err)
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	require.NoError(t, job.Run(context.Background()))
	pending, err := repo.CountPending()
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)
	var total int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&total).Error)
	assert.EqualValues(t, 1, total)
}

package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultPruneBatch      = 1000
)

type publishedEventPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository publishedEventPruner
	Retention  time.Duration
	BatchSize  int
}

// outboxRetentionJob deletes published outbox rows older than the retention
// window, one batch per transaction. Rows that were never published are kept.
type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      publishedEventPruner
	retention time.Duration
	batch     int
	now       func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Repository == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: params.Retention,
		batch:     params.BatchSize,
		now:       time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.batch <= 0 {
		job.batch = defaultPruneBatch
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.batch)
			return err
		})
		if err != nil {
			return fmt.Errorf("prune outbox after %d rows: %w", total, err)
		}
		total += n
		if n < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": total,
	}), "outbox retention complete")
	return nil
}

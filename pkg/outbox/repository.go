package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
)

// lastErrorLimit bounds outbox_events.last_error.
const lastErrorLimit = 1024

var errNoTx = errors.New("transaction required")

// Repository persists outbox rows. Writes take the caller's transaction so
// events commit or roll back with the state change that produced them.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Create(&event).Error
}

func unpublished(db *gorm.DB) *gorm.DB {
	return db.Where("published_at IS NULL")
}

// FetchUnpublishedForPublish returns up to limit pending rows, oldest first,
// skipping rows at or past maxAttempts (0 disables that filter). Postgres
// rows are claimed FOR UPDATE SKIP LOCKED so publishers do not overlap.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errNoTx
	}
	q := tx.Scopes(unpublished)
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked})
	}
	var rows []models.OutboxEvent
	if err := q.Order("created_at, id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return setFields(tx, id, map[string]any{"published_at": time.Now().UTC()})
}

// MarkFailedTx records a retryable failure and bumps the attempt counter.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	return setFields(tx, id, map[string]any{
		"last_error":    lastError(cause),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// MarkTerminalTx pins attempt_count at terminalAttempts so the fetch filter
// never returns the row again.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, cause error, terminalAttempts int) error {
	return setFields(tx, id, map[string]any{
		"last_error":    lastError(cause),
		"attempt_count": terminalAttempts,
	})
}

func setFields(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields).Error
}

func (r *Repository) CountPending() (int64, error) {
	var n int64
	err := r.db.Model(&models.OutboxEvent{}).Scopes(unpublished).Count(&n).Error
	return n, err
}

// DeletePublishedBefore removes at most limit rows published before cutoff,
// oldest first. Pending rows are never deleted. limit <= 0 removes them all.
func (r *Repository) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	if tx == nil {
		return 0, errNoTx
	}
	tx = tx.WithContext(ctx)
	if limit <= 0 {
		res := tx.Where("published_at IS NOT NULL AND published_at < ?", cutoff).Delete(&models.OutboxEvent{})
		return res.RowsAffected, res.Error
	}
	ids := tx.Session(&gorm.Session{NewDB: true}).
		Model(&models.OutboxEvent{}).
		Select("id").
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Order("published_at").
		Limit(limit)
	res := tx.Where("id IN (?)", ids).Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func lastError(err error) string {
	if err == nil {
		return ""
	}
	return clip(err.Error())
}

func clip(msg string) string {
	if len(msg) > lastErrorLimit {
		return msg[:lastErrorLimit]
	}
	return msg
}

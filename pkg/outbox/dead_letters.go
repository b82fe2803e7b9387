package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
)

const defaultDeadLetterPage = 50

// DeadLetterRepository keeps the events the publisher stopped retrying, so an
// operator can inspect them and push them back into the outbox.
type DeadLetterRepository struct {
	db *gorm.DB
}

func NewDeadLetterRepository(db *gorm.DB) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

// DeadLetterFilter narrows List. A zero value lists the newest entries.
type DeadLetterFilter struct {
	Reason enums.OutboxDLQErrorReason
	Limit  int
}

func (r *DeadLetterRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errNoTx
	}
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}
	if entry.ErrorMessage != nil {
		msg := clip(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

func (r *DeadLetterRepository) Get(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found").
			WithDetails(map[string]any{"event_id": eventID})
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *DeadLetterRepository) List(ctx context.Context, filter DeadLetterFilter) ([]models.OutboxDLQ, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDeadLetterPage
	}
	query := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit)
	if filter.Reason != "" {
		if !filter.Reason.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown dead letter reason").
				WithDetails(map[string]any{"reason": filter.Reason})
		}
		query = query.Where("error_reason = ?", filter.Reason)
	}
	var rows []models.OutboxDLQ
	return rows, query.Find(&rows).Error
}

// Requeue runs RequeueTx in its own transaction.
func (r *DeadLetterRepository) Requeue(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.RequeueTx(tx, eventID)
	})
}

// RequeueTx drops the dead letter and resets the attempt counter of the
// original outbox row so the publisher picks it up again.
func (r *DeadLetterRepository) RequeueTx(tx *gorm.DB, eventID uuid.UUID) error {
	if tx == nil {
		return errNoTx
	}
	res := tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found").
			WithDetails(map[string]any{"event_id": eventID})
	}
	reset := tx.Model(&models.OutboxEvent{}).
		Where("id = ? AND published_at IS NULL", eventID).
		Updates(map[string]any{"attempt_count": 0, "last_error": nil})
	if reset.Error != nil {
		return reset.Error
	}
	if reset.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "outbox row already published or purged").
			WithDetails(map[string]any{"event_id": eventID})
	}
	return nil
}

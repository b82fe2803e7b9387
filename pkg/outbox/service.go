package outbox

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

const envelopeVersion = 1

// DomainEvent is what services hand to Emit. Data is marshalled into the
// envelope's data field.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("unknown outbox event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("unknown outbox aggregate type %q", e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("%s event without aggregate id", e.EventType)
	}
	return nil
}

// Emitter is the dependency domain services take; tests pass a recorder.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit stages event on tx, so it is only visible to the relay once the
// surrounding change commits.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return fmt.Errorf("emit %s: transaction required", event.EventType)
	}
	if err := event.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal %s data: %w", event.EventType, err)
	}

	id := uuid.New()
	payload, err := json.Marshal(PayloadEnvelope{
		Version:    cmp.Or(event.Version, envelopeVersion),
		EventID:    id.String(),
		OccurredAt: cmp.Or(event.OccurredAt, time.Now().UTC()),
		Actor:      event.Actor,
		Data:       data,
	})
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}); err != nil {
		return err
	}

	if s.logg != nil && ctx != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":     id.String(),
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		}), "outbox event staged")
	}
	return nil
}

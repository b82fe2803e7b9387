// Package registry maps outbox event types to pubsub topics and decodes
// their payloads before publishing.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox/payloads"
)

// EventDescriptor is the route for one event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, error)
}

// ResolvedEvent is an outbox row that passed validation.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks rows that will never publish, however often they
// are retried.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryablef(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// IsNonRetryable reports whether err carries a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

// route builds a descriptor whose payload decodes into T.
func route[T any](event enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     event,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry sends order lifecycle events to the orders topic and stock
// movements to the inventory topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.OrdersTopic == "":
		return nil, errors.New("orders topic is required")
	case cfg.InventoryTopic == "":
		return nil, errors.New("inventory topic is required")
	}

	orders, inventory := cfg.OrdersTopic, cfg.InventoryTopic
	reg := &EventRegistry{routes: map[enums.OutboxEventType]EventDescriptor{}}
	for _, d := range []EventDescriptor{
		route[payloads.OrderPlacedEvent](enums.EventOrderPlaced, enums.AggregateOrder, orders),
		route[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder, orders),
		route[payloads.OrderPackedEvent](enums.EventOrderPacked, enums.AggregateOrder, orders),
		route[payloads.ProductionRecordedEvent](enums.EventProductionRecorded, enums.AggregateProduct, inventory),
		route[payloads.StockAdjustedEvent](enums.EventStockAdjusted, enums.AggregateMaterial, inventory),
		route[payloads.LowStockDetectedEvent](enums.EventLowStockDetected, enums.AggregateMaterial, inventory),
	} {
		reg.routes[d.EventType] = d
	}
	return reg, nil
}

// Topics returns the distinct topics, sorted.
func (r *EventRegistry) Topics() []string {
	topics := make([]string, 0, 2)
	for _, d := range r.routes {
		topics = append(topics, d.Topic)
	}
	slices.Sort(topics)
	return slices.Compact(topics)
}

// Resolve checks the row against its route and decodes the typed payload.
// Every failure is non-retryable: the row content will not change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	d, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryablef("unsupported event type %s", event.EventType)
	case d.AggregateType != event.AggregateType:
		return nil, nonRetryablef("aggregate mismatch: expected %s got %s", d.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryablef("missing aggregate_id")
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, nonRetryablef("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryablef("payload missing for %s", event.EventType)
	}
	payload, err := d.decode(env.Data)
	if err != nil {
		return nil, nonRetryablef("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: d, Envelope: env, Payload: payload}, nil
}

package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actor sources recorded on envelopes.
const (
	SourceAdmin    = "admin"
	SourceCustomer = "customer"
)

// ActorRef says who triggered an event. Scheduled jobs emit without one.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Source string    `json:"source,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// verbatim. EventID equals the row id.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Actor returns nil for anonymous callers so the envelope omits the field.
func Actor(userID *uuid.UUID, source string) *ActorRef {
	if userID == nil || *userID == uuid.Nil {
		return nil
	}
	return &ActorRef{UserID: *userID, Source: source}
}

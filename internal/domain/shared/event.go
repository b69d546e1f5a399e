package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something that happened to an aggregate. Events name the
// fields that changed, never their values, so they are safe to persist and
// log without decryption concerns.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// BaseDomainEvent is embedded by concrete events; its metadata serializes
// under "meta" next to the event's own fields.
type BaseDomainEvent struct {
	Meta struct {
		ID            uuid.UUID `json:"event_id"`
		Type          string    `json:"event_type"`
		At            time.Time `json:"occurred_at"`
		AggregateID   uuid.UUID `json:"aggregate_id"`
		AggregateType string    `json:"aggregate_type"`
		TenantID      uuid.UUID `json:"tenant_id"`
	} `json:"meta"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.Meta.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Meta.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.Meta.At }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Meta.AggregateID }
func (e *BaseDomainEvent) AggregateType() string  { return e.Meta.AggregateType }
func (e *BaseDomainEvent) TenantID() uuid.UUID    { return e.Meta.TenantID }

// NewBaseDomainEvent stamps a new event of eventType for the given aggregate
func NewBaseDomainEvent(eventType, aggregateType string, aggregateID, tenantID uuid.UUID) BaseDomainEvent {
	var e BaseDomainEvent
	e.Meta.ID = uuid.New()
	e.Meta.Type = eventType
	e.Meta.At = time.Now()
	e.Meta.AggregateID = aggregateID
	e.Meta.AggregateType = aggregateType
	e.Meta.TenantID = tenantID
	return e
}

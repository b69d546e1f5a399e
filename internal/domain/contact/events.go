package contact

import (
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeContact identifies contact events
const AggregateTypeContact = "Contact"

// Event type constants
const (
	EventTypeContactCreated       = "ContactCreated"
	EventTypeContactUpdated       = "ContactUpdated"
	EventTypeContactStatusChanged = "ContactStatusChanged"
	EventTypeContactDeleted       = "ContactDeleted"
)

// ContactCreatedEvent is published when a contact is created
type ContactCreatedEvent struct {
	shared.BaseDomainEvent
	ContactID uuid.UUID `json:"contact_id"`
	Name      string    `json:"name"`
}

// NewContactCreatedEvent creates a new ContactCreatedEvent
func NewContactCreatedEvent(c *Contact) *ContactCreatedEvent {
	return &ContactCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContactCreated, AggregateTypeContact, c.ID, c.TenantID),
		ContactID:       c.ID,
		Name:            c.Name,
	}
}

// ContactUpdatedEvent names the fields that changed, not their values
type ContactUpdatedEvent struct {
	shared.BaseDomainEvent
	ContactID     uuid.UUID `json:"contact_id"`
	ChangedFields []string  `json:"changed_fields"`
}

// NewContactUpdatedEvent creates a new ContactUpdatedEvent
func NewContactUpdatedEvent(c *Contact, changed []string) *ContactUpdatedEvent {
	return &ContactUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContactUpdated, AggregateTypeContact, c.ID, c.TenantID),
		ContactID:       c.ID,
		ChangedFields:   changed,
	}
}

// ContactStatusChangedEvent is published on activate, deactivate and archive
type ContactStatusChangedEvent struct {
	shared.BaseDomainEvent
	ContactID uuid.UUID `json:"contact_id"`
	OldStatus Status    `json:"old_status"`
	NewStatus Status    `json:"new_status"`
}

// NewContactStatusChangedEvent creates a new ContactStatusChangedEvent
func NewContactStatusChangedEvent(c *Contact, from, to Status) *ContactStatusChangedEvent {
	return &ContactStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContactStatusChanged, AggregateTypeContact, c.ID, c.TenantID),
		ContactID:       c.ID,
		OldStatus:       from,
		NewStatus:       to,
	}
}

// ContactDeletedEvent is published after a contact is removed
type ContactDeletedEvent struct {
	shared.BaseDomainEvent
	ContactID uuid.UUID `json:"contact_id"`
}

// NewContactDeletedEvent creates a new ContactDeletedEvent
func NewContactDeletedEvent(c *Contact) *ContactDeletedEvent {
	return &ContactDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContactDeleted, AggregateTypeContact, c.ID, c.TenantID),
		ContactID:       c.ID,
	}
}

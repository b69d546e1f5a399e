package shared

import (
	"time"

	"github.com/google/uuid"
)

// TenantAggregateRoot holds the identity, ownership and optimistic-lock
// state of a tenant-scoped aggregate, plus the events it raised since the
// last save.
type TenantAggregateRoot struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	CreatedBy *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	// Version starts at 1; repositories compare it on update
	Version int

	events []DomainEvent
}

// NewTenantAggregateRoot creates the root of a new aggregate owned by tenantID
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	now := time.Now()
	return TenantAggregateRoot{
		ID:        uuid.New(),
		TenantID:  tenantID,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// SetCreatedBy records the user who created the aggregate
func (a *TenantAggregateRoot) SetCreatedBy(userID uuid.UUID) {
	a.CreatedBy = &userID
}

// Touch marks a state change: bumps the version and the update time
func (a *TenantAggregateRoot) Touch() {
	a.UpdatedAt = time.Now()
	a.Version++
}

// Raise queues an event for publication after the next save
func (a *TenantAggregateRoot) Raise(event DomainEvent) {
	a.events = append(a.events, event)
}

// PendingEvents returns the queued events without removing them
func (a *TenantAggregateRoot) PendingEvents() []DomainEvent {
	return a.events
}

// PullEvents returns the queued events and empties the queue
func (a *TenantAggregateRoot) PullEvents() []DomainEvent {
	events := a.events
	a.events = nil
	return events
}

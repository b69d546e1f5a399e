package proposal

import (
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeProposal identifies proposal events
const AggregateTypeProposal = "Proposal"

// Event type constants
const (
	EventTypeProposalCreated        = "ProposalCreated"
	EventTypeProposalContentChanged = "ProposalContentChanged"
	EventTypeProposalStatusChanged  = "ProposalStatusChanged"
	EventTypeProposalDeleted        = "ProposalDeleted"
)

// ProposalCreatedEvent is published when a draft is created
type ProposalCreatedEvent struct {
	shared.BaseDomainEvent
	ProposalID uuid.UUID `json:"proposal_id"`
	ContactID  uuid.UUID `json:"contact_id"`
	Title      string    `json:"title"`
	Amount     string    `json:"amount"`
}

// NewProposalCreatedEvent creates a new ProposalCreatedEvent
func NewProposalCreatedEvent(p *Proposal) *ProposalCreatedEvent {
	return &ProposalCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProposalCreated, AggregateTypeProposal, p.ID, p.TenantID),
		ProposalID:      p.ID,
		ContactID:       p.ContactID,
		Title:           p.Title,
		Amount:          p.Amount.String(),
	}
}

// ProposalContentChangedEvent is published when the document is replaced.
// It never carries the document itself.
type ProposalContentChangedEvent struct {
	shared.BaseDomainEvent
	ProposalID uuid.UUID `json:"proposal_id"`
	Version    int       `json:"version"`
}

// NewProposalContentChangedEvent creates a new ProposalContentChangedEvent
func NewProposalContentChangedEvent(p *Proposal) *ProposalContentChangedEvent {
	return &ProposalContentChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProposalContentChanged, AggregateTypeProposal, p.ID, p.TenantID),
		ProposalID:      p.ID,
		Version:         p.Version,
	}
}

// ProposalStatusChangedEvent is published on send, accept and reject
type ProposalStatusChangedEvent struct {
	shared.BaseDomainEvent
	ProposalID uuid.UUID `json:"proposal_id"`
	OldStatus  Status    `json:"old_status"`
	NewStatus  Status    `json:"new_status"`
}

// NewProposalStatusChangedEvent creates a new ProposalStatusChangedEvent
func NewProposalStatusChangedEvent(p *Proposal, from, to Status) *ProposalStatusChangedEvent {
	return &ProposalStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProposalStatusChanged, AggregateTypeProposal, p.ID, p.TenantID),
		ProposalID:      p.ID,
		OldStatus:       from,
		NewStatus:       to,
	}
}

// ProposalDeletedEvent is published after a proposal is removed
type ProposalDeletedEvent struct {
	shared.BaseDomainEvent
	ProposalID uuid.UUID `json:"proposal_id"`
}

// NewProposalDeletedEvent creates a new ProposalDeletedEvent
func NewProposalDeletedEvent(p *Proposal) *ProposalDeletedEvent {
	return &ProposalDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProposalDeleted, AggregateTypeProposal, p.ID, p.TenantID),
		ProposalID:      p.ID,
	}
}

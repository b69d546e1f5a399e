package proposal

import (
	"context"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Domain errors
var (
	ErrProposalNotFound = shared.ErrNotFound.WithMessage("Proposal not found")
	ErrNotDraft         = shared.NewDomainError("PROPOSAL_NOT_DRAFT", "Only draft proposals can be changed")
	ErrNotSent          = shared.NewDomainError("PROPOSAL_NOT_SENT", "Only sent proposals can be accepted or rejected")
	ErrExpired          = shared.NewDomainError("PROPOSAL_EXPIRED", "Proposal is past its valid-until date")
	ErrCannotDelete     = shared.NewDomainError("PROPOSAL_NOT_DELETABLE", "Only draft or rejected proposals can be deleted")
)

// Repository defines proposal persistence. SealedContent is stored as-is;
// list queries do not load it.
type Repository interface {
	// FindByIDForTenant loads a proposal including its sealed content
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Proposal, error)

	// FindAllForTenant lists proposals without content. Filters supports
	// "status" and "contact_id"; Search matches the title.
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Proposal, error)

	// CountForTenant counts proposals matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// Create inserts a new proposal
	Create(ctx context.Context, p *Proposal) error

	// Save updates a proposal, expecting the stored version to be p.Version-1
	Save(ctx context.Context, p *Proposal) error

	// DeleteForTenant deletes a proposal within a tenant
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

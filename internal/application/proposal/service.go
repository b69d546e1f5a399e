package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/crm/backend/internal/domain/proposal"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/crm/backend/internal/infrastructure/encryption"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EntityProposal is the entity name bound into proposal content envelopes
const EntityProposal = "proposal"

// Content errors
var (
	ErrInvalidContent = shared.NewDomainError("INVALID_CONTENT", "Proposal content must be a JSON document")
	// ErrOpaqueContent is returned for an envelope sent back without _updateData
	ErrOpaqueContent = shared.NewDomainError("OPAQUE_CONTENT", "Encrypted content cannot be stored as-is; send the new document in _updateData")
	// ErrStaleContent is returned when an update names an envelope that is no longer current
	ErrStaleContent = shared.ErrConcurrencyConflict.WithMessage("Proposal content changed since it was read")
)

// ContentAAD returns the additional data bound into a proposal's content envelope
func ContentAAD(tenantID, id uuid.UUID) map[string]any {
	return map[string]any{
		"tenantId": tenantID.String(),
		"entity":   EntityProposal,
		"id":       id.String(),
	}
}

// ProposalService handles proposal operations. The content document is
// sealed here, before it reaches the repository, and opened on read.
type ProposalService struct {
	repo           proposal.Repository
	contacts       contact.Repository
	enc            *encryption.Service
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewProposalService creates a new ProposalService
func NewProposalService(repo proposal.Repository, contacts contact.Repository, enc *encryption.Service, log *zap.Logger) *ProposalService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProposalService{repo: repo, contacts: contacts, enc: enc, logger: log}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ProposalService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create creates a draft proposal with sealed content
func (s *ProposalService) Create(ctx context.Context, tenantID uuid.UUID, req CreateProposalRequest) (*ProposalResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "proposal", "create")
	defer span.End()

	if _, err := s.contacts.FindByIDForTenant(ctx, tenantID, req.ContactID); err != nil {
		return nil, err
	}

	amount, err := parseMoney(req.Amount.String(), req.Currency)
	if err != nil {
		return nil, err
	}
	p, err := proposal.NewProposal(tenantID, req.ContactID, req.Title, amount, req.ValidUntil)
	if err != nil {
		return nil, err
	}
	if req.CreatedBy != nil {
		p.SetCreatedBy(*req.CreatedBy)
	}

	document := req.Content
	if len(strings.TrimSpace(string(document))) == 0 {
		document = proposal.DefaultContent
	}
	content, err := encryption.DecodeContent(document)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	plain, ok := content.(encryption.PlainContent)
	if !ok {
		// a new proposal has no envelope an update could refer to
		return nil, ErrOpaqueContent
	}

	if err := s.sealContent(ctx, p, plain); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx, p)

	response := ToProposalResponse(p)
	return &response, nil
}

// GetByID retrieves a proposal with its content opened. When the content
// cannot be decrypted the default document is served and ContentStatus is
// "unavailable"; the failure is logged.
func (s *ProposalService) GetByID(ctx context.Context, tenantID, proposalID uuid.UUID) (*ProposalResponse, error) {
	p, err := s.repo.FindByIDForTenant(ctx, tenantID, proposalID)
	if err != nil {
		return nil, err
	}
	s.openContent(ctx, p)

	response := ToProposalResponse(p)
	return &response, nil
}

// GetSealedContent returns the stored envelope of a proposal's content.
// Callers that cannot decrypt send it back with _updateData to replace it.
func (s *ProposalService) GetSealedContent(ctx context.Context, tenantID, proposalID uuid.UUID) (*encryption.Envelope, error) {
	p, err := s.repo.FindByIDForTenant(ctx, tenantID, proposalID)
	if err != nil {
		return nil, err
	}
	return encryption.ParseEnvelope([]byte(p.SealedContent))
}

// List retrieves proposals without their content
func (s *ProposalService) List(ctx context.Context, tenantID uuid.UUID, filter ProposalListFilter) (*shared.Paginated[ProposalListResponse], error) {
	domainFilter := shared.DefaultFilter()
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}
	domainFilter.Search = filter.Search
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}
	if filter.ContactID != "" {
		contactID, err := uuid.Parse(filter.ContactID)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_CONTACT", "Invalid contact ID")
		}
		domainFilter.Filters["contact_id"] = contactID
	}

	proposals, err := s.repo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(ToProposalListResponses(proposals), total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// Update changes the title, amount and validity of a draft
func (s *ProposalService) Update(ctx context.Context, tenantID, proposalID uuid.UUID, req UpdateProposalRequest) (*ProposalResponse, error) {
	p, err := s.repo.FindByIDForTenant(ctx, tenantID, proposalID)
	if err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = string(p.Amount.Currency())
	}
	amount, err := parseMoney(req.Amount.String(), currency)
	if err != nil {
		return nil, err
	}
	if err := p.UpdateDetails(req.Title, amount, req.ValidUntil); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	s.openContent(ctx, p)

	response := ToProposalResponse(p)
	return &response, nil
}

// UpdateContent replaces the content of a draft. The body is either a
// plain JSON document, which is sealed, or the current envelope carrying
// the new document in _updateData, which must authenticate as this
// proposal's content before it is replaced. A bare envelope is rejected.
func (s *ProposalService) UpdateContent(ctx context.Context, tenantID, proposalID uuid.UUID, body json.RawMessage) (*ProposalResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "proposal", "update_content")
	defer span.End()

	p, err := s.repo.FindByIDForTenant(ctx, tenantID, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != proposal.StatusDraft {
		return nil, proposal.ErrNotDraft
	}

	content, err := encryption.DecodeContent(body)
	if err != nil {
		if errors.Is(err, encryption.ErrMalformedEnvelope) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	switch c := content.(type) {
	case encryption.PlainContent:
		err = s.sealContent(ctx, p, c)
	case *encryption.EnvelopeUpdate:
		err = s.applyUpdate(ctx, p, c)
	case *encryption.Envelope:
		err = ErrOpaqueContent
	default:
		err = ErrInvalidContent
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.repo.Save(ctx, p); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx, p)

	response := ToProposalResponse(p)
	return &response, nil
}

// Send moves a draft to sent
func (s *ProposalService) Send(ctx context.Context, tenantID, proposalID uuid.UUID) (*ProposalResponse, error) {
	return s.transition(ctx, tenantID, proposalID, (*proposal.Proposal).Send)
}

// Accept records acceptance of a sent proposal
func (s *ProposalService) Accept(ctx context.Context, tenantID, proposalID uuid.UUID) (*ProposalResponse, error) {
	return s.transition(ctx, tenantID, proposalID, (*proposal.Proposal).Accept)
}

// Reject records rejection of a sent proposal
func (s *ProposalService) Reject(ctx context.Context, tenantID, proposalID uuid.UUID, req RejectProposalRequest) (*ProposalResponse, error) {
	return s.transition(ctx, tenantID, proposalID, func(p *proposal.Proposal) error {
		return p.Reject(req.Reason)
	})
}

func (s *ProposalService) transition(ctx context.Context, tenantID, proposalID uuid.UUID, apply func(*proposal.Proposal) error) (*ProposalResponse, error) {
	p, err := s.repo.FindByIDForTenant(ctx, tenantID, proposalID)
	if err != nil {
		return nil, err
	}
	if err := apply(p); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	s.publish(ctx, p)
	s.openContent(ctx, p)

	response := ToProposalResponse(p)
	return &response, nil
}

// Delete removes a draft or rejected proposal
func (s *ProposalService) Delete(ctx context.Context, tenantID, proposalID uuid.UUID) error {
	p, err := s.repo.FindByIDForTenant(ctx, tenantID, proposalID)
	if err != nil {
		return err
	}
	if !p.CanDelete() {
		return proposal.ErrCannotDelete
	}
	if err := s.repo.DeleteForTenant(ctx, tenantID, proposalID); err != nil {
		return err
	}
	p.Raise(proposal.NewProposalDeletedEvent(p))
	s.publish(ctx, p)
	return nil
}

// sealContent encrypts a plain document and installs it on p
func (s *ProposalService) sealContent(ctx context.Context, p *proposal.Proposal, plain encryption.PlainContent) error {
	document, err := json.Marshal(plain)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	env, err := s.enc.Encrypt(ctx, json.RawMessage(document),
		encryption.WithAdditionalData(ContentAAD(p.TenantID, p.ID)))
	if err != nil {
		return err
	}
	return p.ReplaceContent(env.String(), document)
}

// applyUpdate replaces the content through the update convention. The
// envelope must be the stored one and must open under this proposal's
// additional data.
func (s *ProposalService) applyUpdate(ctx context.Context, p *proposal.Proposal, update *encryption.EnvelopeUpdate) error {
	current, err := encryption.ParseEnvelope([]byte(p.SealedContent))
	if err == nil && (current.Encrypted != update.Encrypted || current.IV != update.IV) {
		return ErrStaleContent
	}

	var document any
	if err := json.Unmarshal(update.UpdateData, &document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	env, err := s.enc.ApplyUpdate(ctx, update,
		encryption.WithAdditionalData(ContentAAD(p.TenantID, p.ID)))
	if err != nil {
		return err
	}
	return p.ReplaceContent(env.String(), update.UpdateData)
}

// openContent decrypts the stored document into p.Content
func (s *ProposalService) openContent(ctx context.Context, p *proposal.Proposal) {
	if p.SealedContent == "" {
		p.ContentUnreadable()
		return
	}

	content, err := encryption.DecodeContent([]byte(p.SealedContent))
	if err == nil {
		switch c := content.(type) {
		case *encryption.Envelope:
			var document json.RawMessage
			err = s.enc.DecryptInto(ctx, c, &document,
				encryption.WithAdditionalData(ContentAAD(p.TenantID, p.ID)))
			if err == nil {
				p.OpenedContent(document)
				return
			}
		case encryption.PlainContent:
			// written before content was sealed
			p.OpenedContent(json.RawMessage(p.SealedContent))
			return
		default:
			err = encryption.ErrMalformedEnvelope
		}
	}

	logger.WithLogger(ctx, s.logger).Warn("Proposal content could not be decrypted",
		zap.String("proposal_id", p.ID.String()),
		zap.Error(err),
	)
	p.ContentUnreadable()
}

// publish sends pending events; failures are logged and do not fail the operation
func (s *ProposalService) publish(ctx context.Context, p *proposal.Proposal) {
	events := p.PullEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to publish proposal events",
			zap.String("proposal_id", p.ID.String()),
			zap.Error(err),
		)
	}
}

func parseMoney(amount, currency string) (valueobject.Money, error) {
	code, err := valueobject.ParseCurrency(currency)
	if err != nil {
		return valueobject.Money{}, shared.NewDomainError("INVALID_CURRENCY", err.Error())
	}
	m, err := valueobject.NewMoneyFromString(amount, code)
	if err != nil {
		return valueobject.Money{}, shared.NewDomainError("INVALID_AMOUNT", err.Error())
	}
	return m, nil
}

package contact

import (
	"context"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmailTaken is returned when another contact of the tenant uses the email
var ErrEmailTaken = contact.ErrEmailTaken

// ContactService handles contact-related business operations.
// Personal data is sealed and opened by the repository.
type ContactService struct {
	repo           contact.Repository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewContactService creates a new ContactService
func NewContactService(repo contact.Repository, log *zap.Logger) *ContactService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContactService{repo: repo, logger: log}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ContactService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create creates a new contact
func (s *ContactService) Create(ctx context.Context, tenantID uuid.UUID, req CreateContactRequest) (*ContactResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "contact", "create")
	defer span.End()

	c, err := contact.NewContactWithDetails(tenantID, req.Name, req.Changes())
	if err != nil {
		return nil, err
	}
	// checked on the normalised address the row will hold
	if err := s.ensureEmailAvailable(ctx, tenantID, c.Email, uuid.Nil); err != nil {
		return nil, err
	}
	if req.CreatedBy != nil {
		c.SetCreatedBy(*req.CreatedBy)
	}

	if err := s.repo.Create(ctx, c); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx, c)

	response := ToContactResponse(c)
	return &response, nil
}

// GetByID retrieves a contact by ID. Fields that could not be decrypted
// come back empty and are listed in UnreadableFields.
func (s *ContactService) GetByID(ctx context.Context, tenantID, contactID uuid.UUID) (*ContactResponse, error) {
	c, err := s.repo.FindByIDForTenant(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	response := ToContactResponse(c)
	return &response, nil
}

// List retrieves contacts with filtering and pagination
func (s *ContactService) List(ctx context.Context, tenantID uuid.UUID, filter ContactListFilter) (*shared.Paginated[ContactListResponse], error) {
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
	if filter.Company != "" {
		domainFilter.Filters["company"] = filter.Company
	}

	contacts, err := s.repo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(ToContactListResponses(contacts), total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// Update applies a partial update to a contact
func (s *ContactService) Update(ctx context.Context, tenantID, contactID uuid.UUID, req UpdateContactRequest) (*ContactResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "contact", "update")
	defer span.End()

	c, err := s.repo.FindByIDForTenant(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}

	version := c.Version
	previousEmail := c.Email
	if err := c.Apply(req.Changes()); err != nil {
		return nil, err
	}
	if c.Email != previousEmail {
		if err := s.ensureEmailAvailable(ctx, tenantID, c.Email, c.ID); err != nil {
			return nil, err
		}
	}
	if c.Version != version {
		if err := s.repo.Save(ctx, c); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		s.publish(ctx, c)
	}

	response := ToContactResponse(c)
	return &response, nil
}

// Archive retires a contact; archived contacts are read-only
func (s *ContactService) Archive(ctx context.Context, tenantID, contactID uuid.UUID) (*ContactResponse, error) {
	return s.changeStatus(ctx, tenantID, contactID, (*contact.Contact).Archive)
}

// Activate marks an inactive contact as active
func (s *ContactService) Activate(ctx context.Context, tenantID, contactID uuid.UUID) (*ContactResponse, error) {
	return s.changeStatus(ctx, tenantID, contactID, (*contact.Contact).Activate)
}

// Deactivate marks an active contact as inactive
func (s *ContactService) Deactivate(ctx context.Context, tenantID, contactID uuid.UUID) (*ContactResponse, error) {
	return s.changeStatus(ctx, tenantID, contactID, (*contact.Contact).Deactivate)
}

func (s *ContactService) changeStatus(ctx context.Context, tenantID, contactID uuid.UUID, transition func(*contact.Contact) error) (*ContactResponse, error) {
	c, err := s.repo.FindByIDForTenant(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	if err := transition(c); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, c)

	response := ToContactResponse(c)
	return &response, nil
}

// Delete removes a contact
func (s *ContactService) Delete(ctx context.Context, tenantID, contactID uuid.UUID) error {
	c, err := s.repo.FindByIDForTenant(ctx, tenantID, contactID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteForTenant(ctx, tenantID, contactID); err != nil {
		return err
	}
	c.Raise(contact.NewContactDeletedEvent(c))
	s.publish(ctx, c)
	return nil
}

func (s *ContactService) ensureEmailAvailable(ctx context.Context, tenantID uuid.UUID, email string, excludeID uuid.UUID) error {
	if email == "" {
		return nil
	}
	exists, err := s.repo.ExistsByEmail(ctx, tenantID, email, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return ErrEmailTaken
	}
	return nil
}

// publish sends pending events; failures are logged and do not fail the operation
func (s *ContactService) publish(ctx context.Context, c *contact.Contact) {
	events := c.PullEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to publish contact events",
			zap.String("contact_id", c.ID.String()),
			zap.Error(err),
		)
	}
}

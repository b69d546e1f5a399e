package contact

import (
	"context"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ErrContactArchived is returned when modifying an archived contact
var ErrContactArchived = shared.NewDomainError("CONTACT_ARCHIVED", "Archived contacts cannot be modified")

// ErrEmailTaken is returned when another contact of the tenant uses the email
var ErrEmailTaken = shared.NewDomainError(shared.CodeAlreadyExists, "Contact with this email already exists")

// ErrContactNotFound is returned when the contact does not exist for the tenant
var ErrContactNotFound = shared.ErrNotFound.WithMessage("Contact not found")

// Repository defines contact persistence. Implementations encrypt the
// sensitive fields on every write and decrypt them on every read; a field
// that cannot be decrypted is reported through Contact.UnreadableFields.
type Repository interface {
	// FindByIDForTenant finds a contact by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Contact, error)

	// FindAllForTenant lists contacts; Search matches name, company and email
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Contact, error)

	// CountForTenant counts contacts matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// ExistsByEmail checks for another contact with the same email
	ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string, excludeID uuid.UUID) (bool, error)

	// Create inserts a new contact
	Create(ctx context.Context, c *Contact) error

	// Save updates a contact, expecting the stored version to be c.Version-1
	Save(ctx context.Context, c *Contact) error

	// DeleteForTenant deletes a contact within a tenant
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

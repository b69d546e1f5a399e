package contact

import (
	"time"

	"github.com/crm/backend/internal/domain/contact"
	"github.com/google/uuid"
)

// CreateContactRequest represents a request to create a new contact
type CreateContactRequest struct {
	Name        string     `json:"name" binding:"required,min=1,max=200"`
	Company     string     `json:"company" binding:"max=200"`
	Email       string     `json:"email" binding:"omitempty,email,max=200"`
	Phone       string     `json:"phone" binding:"max=50"`
	NationalID  string     `json:"national_id" binding:"max=64"`
	TaxID       string     `json:"tax_id" binding:"max=64"`
	DateOfBirth string     `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Address     string     `json:"address" binding:"max=500"`
	Notes       string     `json:"notes" binding:"max=10000"`
	CreatedBy   *uuid.UUID `json:"-"` // Set from JWT context, not from request body
}

// UpdateContactRequest represents a partial update; omitted fields are unchanged
type UpdateContactRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Company     *string `json:"company" binding:"omitempty,max=200"`
	Email       *string `json:"email" binding:"omitempty,email,max=200"`
	Phone       *string `json:"phone" binding:"omitempty,max=50"`
	NationalID  *string `json:"national_id" binding:"omitempty,max=64"`
	TaxID       *string `json:"tax_id" binding:"omitempty,max=64"`
	DateOfBirth *string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Address     *string `json:"address" binding:"omitempty,max=500"`
	Notes       *string `json:"notes" binding:"omitempty,max=10000"`
}

// ContactListFilter represents filter options for the contact list
type ContactListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status" binding:"omitempty,oneof=active inactive archived"`
	Company  string `form:"company"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ContactResponse represents a contact in API responses
type ContactResponse struct {
	ID               uuid.UUID `json:"id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	Name             string    `json:"name"`
	Company          string    `json:"company"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	NationalID       string    `json:"national_id"`
	TaxID            string    `json:"tax_id"`
	DateOfBirth      string    `json:"date_of_birth"`
	Address          string    `json:"address"`
	Notes            string    `json:"notes"`
	Status           string    `json:"status"`
	UnreadableFields []string  `json:"unreadable_fields,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Version          int       `json:"version"`
}

// ContactListResponse represents a list item for contacts
type ContactListResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Company          string    `json:"company"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	Status           string    `json:"status"`
	UnreadableFields []string  `json:"unreadable_fields,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Changes converts the request into a domain change set
func (r CreateContactRequest) Changes() contact.Changes {
	opt := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	return contact.Changes{
		Company:     opt(r.Company),
		Email:       opt(r.Email),
		Phone:       opt(r.Phone),
		NationalID:  opt(r.NationalID),
		TaxID:       opt(r.TaxID),
		DateOfBirth: opt(r.DateOfBirth),
		Address:     opt(r.Address),
		Notes:       opt(r.Notes),
	}
}

// Changes converts the request into a domain change set
func (r UpdateContactRequest) Changes() contact.Changes {
	return contact.Changes{
		Name:        r.Name,
		Company:     r.Company,
		Email:       r.Email,
		Phone:       r.Phone,
		NationalID:  r.NationalID,
		TaxID:       r.TaxID,
		DateOfBirth: r.DateOfBirth,
		Address:     r.Address,
		Notes:       r.Notes,
	}
}

// ToContactResponse converts a domain Contact to ContactResponse
func ToContactResponse(c *contact.Contact) ContactResponse {
	return ContactResponse{
		ID:               c.ID,
		TenantID:         c.TenantID,
		Name:             c.Name,
		Company:          c.Company,
		Email:            c.Email,
		Phone:            c.Phone,
		NationalID:       c.NationalID,
		TaxID:            c.TaxID,
		DateOfBirth:      c.DateOfBirth,
		Address:          c.Address,
		Notes:            c.Notes,
		Status:           string(c.Status),
		UnreadableFields: c.UnreadableFields,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
		Version:          c.Version,
	}
}

// ToContactListResponses converts domain contacts to list items
func ToContactListResponses(contacts []contact.Contact) []ContactListResponse {
	responses := make([]ContactListResponse, len(contacts))
	for i := range contacts {
		c := &contacts[i]
		responses[i] = ContactListResponse{
			ID:               c.ID,
			Name:             c.Name,
			Company:          c.Company,
			Email:            c.Email,
			Phone:            c.Phone,
			Status:           string(c.Status),
			UnreadableFields: c.UnreadableFields,
			CreatedAt:        c.CreatedAt,
		}
	}
	return responses
}

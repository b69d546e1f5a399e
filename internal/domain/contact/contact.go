package contact

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Status represents the lifecycle status of a contact
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusArchived:
		return true
	}
	return false
}

// Sensitive field names. These are the keys used when the repository hands
// the contact's PII to the field encryption layer.
const (
	FieldNationalID  = "national_id"
	FieldTaxID       = "tax_id"
	FieldPhone       = "phone"
	FieldDateOfBirth = "date_of_birth"
	FieldAddress     = "address"
	FieldNotes       = "notes"
)

// SensitiveFields lists every contact field that may be encrypted at rest
var SensitiveFields = []string{
	FieldNationalID,
	FieldTaxID,
	FieldPhone,
	FieldDateOfBirth,
	FieldAddress,
	FieldNotes,
}

// DateLayout is the format of DateOfBirth
const DateLayout = "2006-01-02"

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[\d\s\-\(\)\+]+$`)
)

// Contact is a person tracked by a tenant's CRM.
// Name, company and email stay searchable; the rest is personal data.
type Contact struct {
	shared.TenantAggregateRoot
	Name        string
	Company     string
	Email       string
	Phone       string
	NationalID  string
	TaxID       string
	DateOfBirth string
	Address     string
	Notes       string
	Status      Status

	// UnreadableFields lists sensitive fields that could not be decrypted on
	// load. Their values are empty and must not be written back.
	UnreadableFields []string
}

// Changes is a partial update; nil fields are left untouched
type Changes struct {
	Name        *string
	Company     *string
	Email       *string
	Phone       *string
	NationalID  *string
	TaxID       *string
	DateOfBirth *string
	Address     *string
	Notes       *string
}

// NewContact creates an active contact
func NewContact(tenantID uuid.UUID, name string) (*Contact, error) {
	return NewContactWithDetails(tenantID, name, Changes{})
}

// NewContactWithDetails creates an active contact with its initial details.
// Only the creation event is recorded.
func NewContactWithDetails(tenantID uuid.UUID, name string, ch Changes) (*Contact, error) {
	name = normalize(name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	ch.Name = nil

	c := &Contact{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Status:              StatusActive,
	}
	if _, err := c.apply(ch); err != nil {
		return nil, err
	}
	c.Raise(NewContactCreatedEvent(c))
	return c, nil
}

// Apply validates and applies a partial update
func (c *Contact) Apply(ch Changes) error {
	if c.Status == StatusArchived {
		return ErrContactArchived
	}
	changed, err := c.apply(ch)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil
	}
	c.Touch()
	c.Raise(NewContactUpdatedEvent(c, changed))
	return nil
}

func (c *Contact) apply(ch Changes) ([]string, error) {
	if err := ch.validate(); err != nil {
		return nil, err
	}

	var changed []string
	set := func(field string, dst *string, v *string) {
		if v == nil {
			return
		}
		value := normalize(*v)
		if *dst == value && !c.IsUnreadable(field) {
			return
		}
		*dst = value
		c.clearUnreadable(field)
		changed = append(changed, field)
	}

	set("name", &c.Name, ch.Name)
	set("company", &c.Company, ch.Company)
	set("email", &c.Email, ch.Email)
	set(FieldPhone, &c.Phone, ch.Phone)
	set(FieldNationalID, &c.NationalID, ch.NationalID)
	set(FieldTaxID, &c.TaxID, ch.TaxID)
	set(FieldDateOfBirth, &c.DateOfBirth, ch.DateOfBirth)
	set(FieldAddress, &c.Address, ch.Address)
	set(FieldNotes, &c.Notes, ch.Notes)
	return changed, nil
}

// normalize trims v and composes it to NFC so that equal text compares equal
// in searches and the email uniqueness check
func normalize(v string) string {
	return norm.NFC.String(strings.TrimSpace(v))
}

// Activate marks an inactive contact as active
func (c *Contact) Activate() error {
	return c.changeStatus(StatusActive)
}

// Deactivate marks an active contact as inactive
func (c *Contact) Deactivate() error {
	return c.changeStatus(StatusInactive)
}

// Archive retires the contact. Archived contacts are read-only.
func (c *Contact) Archive() error {
	return c.changeStatus(StatusArchived)
}

func (c *Contact) changeStatus(to Status) error {
	if c.Status == StatusArchived {
		return ErrContactArchived
	}
	if c.Status == to {
		return shared.NewDomainError(shared.CodeInvalidState, "Contact is already "+string(to))
	}
	from := c.Status
	c.Status = to
	c.Touch()
	c.Raise(NewContactStatusChangedEvent(c, from, to))
	return nil
}

// SensitiveValues returns the personal data keyed by field name
func (c *Contact) SensitiveValues() map[string]string {
	return map[string]string{
		FieldNationalID:  c.NationalID,
		FieldTaxID:       c.TaxID,
		FieldPhone:       c.Phone,
		FieldDateOfBirth: c.DateOfBirth,
		FieldAddress:     c.Address,
		FieldNotes:       c.Notes,
	}
}

// SetSensitiveValue assigns a personal data field by name.
// Unknown names are ignored.
func (c *Contact) SetSensitiveValue(field, value string) {
	switch field {
	case FieldNationalID:
		c.NationalID = value
	case FieldTaxID:
		c.TaxID = value
	case FieldPhone:
		c.Phone = value
	case FieldDateOfBirth:
		c.DateOfBirth = value
	case FieldAddress:
		c.Address = value
	case FieldNotes:
		c.Notes = value
	}
}

// MarkUnreadable blanks the given fields and records them as unreadable
func (c *Contact) MarkUnreadable(fields ...string) {
	for _, f := range fields {
		c.SetSensitiveValue(f, "")
		if !c.IsUnreadable(f) {
			c.UnreadableFields = append(c.UnreadableFields, f)
		}
	}
	slices.Sort(c.UnreadableFields)
}

// IsUnreadable reports whether field failed to decrypt on load
func (c *Contact) IsUnreadable(field string) bool {
	return slices.Contains(c.UnreadableFields, field)
}

func (c *Contact) clearUnreadable(field string) {
	c.UnreadableFields = slices.DeleteFunc(c.UnreadableFields, func(f string) bool { return f == field })
	if len(c.UnreadableFields) == 0 {
		c.UnreadableFields = nil
	}
}

func (ch Changes) validate() error {
	if ch.Name != nil {
		if err := validateName(strings.TrimSpace(*ch.Name)); err != nil {
			return err
		}
	}
	if ch.Company != nil && len(*ch.Company) > 200 {
		return shared.NewDomainError("INVALID_COMPANY", "Company cannot exceed 200 characters")
	}
	if ch.Email != nil && *ch.Email != "" {
		if len(*ch.Email) > 200 || !emailPattern.MatchString(strings.TrimSpace(*ch.Email)) {
			return shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
		}
	}
	if ch.Phone != nil && *ch.Phone != "" {
		if len(*ch.Phone) > 50 || !phonePattern.MatchString(*ch.Phone) {
			return shared.NewDomainError("INVALID_PHONE", "Invalid phone number format")
		}
	}
	if ch.NationalID != nil && len(*ch.NationalID) > 64 {
		return shared.NewDomainError("INVALID_NATIONAL_ID", "National ID cannot exceed 64 characters")
	}
	if ch.TaxID != nil && len(*ch.TaxID) > 64 {
		return shared.NewDomainError("INVALID_TAX_ID", "Tax ID cannot exceed 64 characters")
	}
	if ch.DateOfBirth != nil && *ch.DateOfBirth != "" {
		dob, err := time.Parse(DateLayout, strings.TrimSpace(*ch.DateOfBirth))
		if err != nil {
			return shared.NewDomainError("INVALID_DATE_OF_BIRTH", "Date of birth must use YYYY-MM-DD")
		}
		if dob.After(time.Now()) {
			return shared.NewDomainError("INVALID_DATE_OF_BIRTH", "Date of birth cannot be in the future")
		}
	}
	if ch.Address != nil && len(*ch.Address) > 500 {
		return shared.NewDomainError("INVALID_ADDRESS", "Address cannot exceed 500 characters")
	}
	if ch.Notes != nil && len(*ch.Notes) > 10000 {
		return shared.NewDomainError("INVALID_NOTES", "Notes cannot exceed 10000 characters")
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Contact name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Contact name cannot exceed 200 characters")
	}
	return nil
}

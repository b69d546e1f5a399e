package models

import (
	"github.com/crm/backend/internal/domain/contact"
)

// ContactModel is the persistence model for the Contact aggregate.
// The nullable text columns hold sealed envelope JSON; NULL means empty.
type ContactModel struct {
	TenantAggregateModel
	Name        string         `gorm:"type:varchar(200);not null;index"`
	Company     string         `gorm:"type:varchar(200);index"`
	Email       string         `gorm:"type:varchar(200);index"`
	Status      contact.Status `gorm:"type:varchar(20);not null;default:'active'"`
	NationalID  *string        `gorm:"type:text"`
	TaxID       *string        `gorm:"type:text"`
	Phone       *string        `gorm:"type:text"`
	DateOfBirth *string        `gorm:"type:text"`
	Address     *string        `gorm:"type:text"`
	Notes       *string        `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ContactModel) TableName() string {
	return "contacts"
}

// ToDomain converts the non-sensitive columns to a Contact.
// Sensitive fields are filled in by the repository after decryption.
func (m *ContactModel) ToDomain() *contact.Contact {
	c := &contact.Contact{
		Name:    m.Name,
		Company: m.Company,
		Email:   m.Email,
		Status:  m.Status,
	}
	m.PopulateTenantAggregateRoot(&c.TenantAggregateRoot)
	return c
}

// FromDomain populates the non-sensitive columns from a Contact
func (m *ContactModel) FromDomain(c *contact.Contact) {
	m.FromDomainTenantAggregateRoot(c.TenantAggregateRoot)
	m.Name = c.Name
	m.Company = c.Company
	m.Email = c.Email
	m.Status = c.Status
}

// SensitiveColumns maps each sensitive field name to its column value
func (m *ContactModel) SensitiveColumns() map[string]**string {
	return map[string]**string{
		contact.FieldNationalID:  &m.NationalID,
		contact.FieldTaxID:       &m.TaxID,
		contact.FieldPhone:       &m.Phone,
		contact.FieldDateOfBirth: &m.DateOfBirth,
		contact.FieldAddress:     &m.Address,
		contact.FieldNotes:       &m.Notes,
	}
}

// ContactModelFromDomain creates a new persistence model from a Contact
func ContactModelFromDomain(c *contact.Contact) *ContactModel {
	m := &ContactModel{}
	m.FromDomain(c)
	return m
}

package models

import (
	"time"

	"github.com/crm/backend/internal/domain/proposal"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProposalModel is the persistence model for the Proposal aggregate.
// Content holds the sealed document as envelope JSON.
type ProposalModel struct {
	TenantAggregateModel
	Title           string          `gorm:"type:varchar(200);not null"`
	ContactID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency        string          `gorm:"type:varchar(3);not null"`
	Status          proposal.Status `gorm:"type:varchar(20);not null;default:'draft';index"`
	ValidUntil      *time.Time
	SentAt          *time.Time
	DecidedAt       *time.Time
	RejectionReason string  `gorm:"type:varchar(500)"`
	Content         *string `gorm:"type:jsonb"` // NULL when the proposal has no document
}

// TableName returns the table name for GORM
func (ProposalModel) TableName() string {
	return "proposals"
}

// ToDomain converts the persistence model to a Proposal. An amount whose
// stored currency is no longer supported keeps the raw values.
func (m *ProposalModel) ToDomain() *proposal.Proposal {
	amount, err := valueobject.NewMoney(m.Amount, valueobject.Currency(m.Currency))
	if err != nil {
		amount, _ = valueobject.NewMoney(m.Amount, valueobject.DefaultCurrency)
	}
	p := &proposal.Proposal{
		Title:           m.Title,
		ContactID:       m.ContactID,
		Amount:          amount,
		Status:          m.Status,
		ValidUntil:      m.ValidUntil,
		SentAt:          m.SentAt,
		DecidedAt:       m.DecidedAt,
		RejectionReason: m.RejectionReason,
	}
	if m.Content != nil {
		p.SealedContent = *m.Content
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a Proposal
func (m *ProposalModel) FromDomain(p *proposal.Proposal) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.Title = p.Title
	m.ContactID = p.ContactID
	m.Amount = p.Amount.Amount()
	m.Currency = string(p.Amount.Currency())
	m.Status = p.Status
	m.ValidUntil = p.ValidUntil
	m.SentAt = p.SentAt
	m.DecidedAt = p.DecidedAt
	m.RejectionReason = p.RejectionReason
	m.Content = nil
	if p.SealedContent != "" {
		content := p.SealedContent
		m.Content = &content
	}
}

// ProposalModelFromDomain creates a new persistence model from a Proposal
func ProposalModelFromDomain(p *proposal.Proposal) *ProposalModel {
	m := &ProposalModel{}
	m.FromDomain(p)
	return m
}

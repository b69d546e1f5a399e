package proposal

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Status represents the lifecycle status of a proposal
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// IsFinal reports whether no further transition is possible
func (s Status) IsFinal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// ContentStatus tells readers whether Content holds the stored document
type ContentStatus string

const (
	// ContentNotLoaded is the state of list results, which never carry content
	ContentNotLoaded   ContentStatus = ""
	ContentAvailable   ContentStatus = "available"
	ContentUnavailable ContentStatus = "unavailable"
)

// DefaultContent is served when the stored document cannot be read
var DefaultContent = json.RawMessage(`{"sections":[]}`)

// Proposal is a sales proposal sent to a contact.
// The content document is stored sealed; SealedContent holds the stored
// form and Content the readable document once it has been opened.
type Proposal struct {
	shared.TenantAggregateRoot
	Title           string
	ContactID       uuid.UUID
	Amount          valueobject.Money
	Status          Status
	ValidUntil      *time.Time
	SentAt          *time.Time
	DecidedAt       *time.Time
	RejectionReason string

	SealedContent string
	Content       json.RawMessage
	ContentStatus ContentStatus
}

// NewProposal creates a draft proposal. The caller seals the initial
// content and attaches it with ReplaceContent before saving.
func NewProposal(tenantID, contactID uuid.UUID, title string, amount valueobject.Money, validUntil *time.Time) (*Proposal, error) {
	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if contactID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CONTACT", "Proposal must reference a contact")
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if validUntil != nil && validUntil.Before(time.Now()) {
		return nil, shared.NewDomainError("INVALID_VALID_UNTIL", "Valid-until date cannot be in the past")
	}

	p := &Proposal{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Title:               title,
		ContactID:           contactID,
		Amount:              amount,
		Status:              StatusDraft,
		ValidUntil:          validUntil,
	}
	p.Raise(NewProposalCreatedEvent(p))
	return p, nil
}

// UpdateDetails changes title, amount and validity of a draft
func (p *Proposal) UpdateDetails(title string, amount valueobject.Money, validUntil *time.Time) error {
	if p.Status != StatusDraft {
		return ErrNotDraft
	}
	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	p.Title = title
	p.Amount = amount
	p.ValidUntil = validUntil
	p.Touch()
	return nil
}

// ReplaceContent installs a new sealed document with its readable form.
// Content can only change while the proposal is a draft.
func (p *Proposal) ReplaceContent(sealed string, content json.RawMessage) error {
	if p.Status != StatusDraft {
		return ErrNotDraft
	}
	if sealed == "" {
		return shared.NewDomainError("INVALID_CONTENT", "Proposal content must be sealed before it is stored")
	}
	initial := p.SealedContent == ""
	p.SealedContent = sealed
	p.Content = content
	p.ContentStatus = ContentAvailable
	if initial {
		return nil
	}
	p.Touch()
	p.Raise(NewProposalContentChangedEvent(p))
	return nil
}

// OpenedContent records the result of reading the sealed document
func (p *Proposal) OpenedContent(content json.RawMessage) {
	p.Content = content
	p.ContentStatus = ContentAvailable
}

// ContentUnreadable substitutes the default document after a failed read
func (p *Proposal) ContentUnreadable() {
	p.Content = DefaultContent
	p.ContentStatus = ContentUnavailable
}

// Send moves a draft to sent
func (p *Proposal) Send() error {
	if p.Status != StatusDraft {
		return ErrNotDraft
	}
	if p.SealedContent == "" {
		return shared.NewDomainError("MISSING_CONTENT", "Proposal has no content to send")
	}
	now := time.Now()
	if p.IsExpired(now) {
		return ErrExpired
	}
	return p.transition(StatusSent, func() { p.SentAt = &now })
}

// Accept records the contact's acceptance of a sent proposal
func (p *Proposal) Accept() error {
	if p.Status != StatusSent {
		return ErrNotSent
	}
	now := time.Now()
	if p.IsExpired(now) {
		return ErrExpired
	}
	return p.transition(StatusAccepted, func() { p.DecidedAt = &now })
}

// Reject records the contact's rejection of a sent proposal
func (p *Proposal) Reject(reason string) error {
	if p.Status != StatusSent {
		return ErrNotSent
	}
	if len(reason) > 500 {
		return shared.NewDomainError("INVALID_REASON", "Rejection reason cannot exceed 500 characters")
	}
	now := time.Now()
	return p.transition(StatusRejected, func() {
		p.DecidedAt = &now
		p.RejectionReason = strings.TrimSpace(reason)
	})
}

// CanDelete reports whether the proposal may be removed
func (p *Proposal) CanDelete() bool {
	return p.Status == StatusDraft || p.Status == StatusRejected
}

// IsExpired reports whether the proposal is past its valid-until date
func (p *Proposal) IsExpired(now time.Time) bool {
	return p.ValidUntil != nil && now.After(*p.ValidUntil)
}

func (p *Proposal) transition(to Status, apply func()) error {
	from := p.Status
	p.Status = to
	apply()
	p.Touch()
	p.Raise(NewProposalStatusChangedEvent(p, from, to))
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return shared.NewDomainError("INVALID_TITLE", "Proposal title cannot be empty")
	}
	if len(title) > 200 {
		return shared.NewDomainError("INVALID_TITLE", "Proposal title cannot exceed 200 characters")
	}
	return nil
}

func validateAmount(amount valueobject.Money) error {
	if amount.Currency() == "" {
		return shared.NewDomainError("INVALID_AMOUNT", "Proposal amount must have a currency")
	}
	if amount.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Proposal amount cannot be negative")
	}
	return nil
}

package proposal

import (
	"encoding/json"
	"time"

	"github.com/crm/backend/internal/domain/proposal"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProposalRequest represents a request to create a draft proposal
type CreateProposalRequest struct {
	Title      string          `json:"title" binding:"required,min=1,max=200"`
	ContactID  uuid.UUID       `json:"contact_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency" binding:"omitempty,currency"`
	ValidUntil *time.Time      `json:"valid_until"`
	// Content is the plain proposal document; empty means {"sections":[]}
	Content   json.RawMessage `json:"content"`
	CreatedBy *uuid.UUID      `json:"-"` // Set from JWT context, not from request body
}

// UpdateProposalRequest changes the details of a draft
type UpdateProposalRequest struct {
	Title      string          `json:"title" binding:"required,min=1,max=200"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency" binding:"omitempty,currency"`
	ValidUntil *time.Time      `json:"valid_until"`
}

// RejectProposalRequest carries the contact's reason for rejecting
type RejectProposalRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ProposalListFilter represents filter options for the proposal list
type ProposalListFilter struct {
	Search    string `form:"search"`
	Status    string `form:"status" binding:"omitempty,oneof=draft sent accepted rejected"`
	ContactID string `form:"contact_id" binding:"omitempty,uuid"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string `form:"order_by"`
	OrderDir  string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ProposalResponse represents a proposal with its readable content
type ProposalResponse struct {
	ID              uuid.UUID       `json:"id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	Title           string          `json:"title"`
	ContactID       uuid.UUID       `json:"contact_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	ValidUntil      *time.Time      `json:"valid_until,omitempty"`
	SentAt          *time.Time      `json:"sent_at,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	Content         json.RawMessage `json:"content"`
	ContentStatus   string          `json:"content_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

// ProposalListResponse represents a list item; content is never listed
type ProposalListResponse struct {
	ID         uuid.UUID       `json:"id"`
	Title      string          `json:"title"`
	ContactID  uuid.UUID       `json:"contact_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ToProposalResponse converts a domain Proposal to ProposalResponse
func ToProposalResponse(p *proposal.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:              p.ID,
		TenantID:        p.TenantID,
		Title:           p.Title,
		ContactID:       p.ContactID,
		Amount:          p.Amount.Amount(),
		Currency:        string(p.Amount.Currency()),
		Status:          string(p.Status),
		ValidUntil:      p.ValidUntil,
		SentAt:          p.SentAt,
		DecidedAt:       p.DecidedAt,
		RejectionReason: p.RejectionReason,
		Content:         p.Content,
		ContentStatus:   string(p.ContentStatus),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Version:         p.Version,
	}
}

// ToProposalListResponses converts domain proposals to list items
func ToProposalListResponses(proposals []proposal.Proposal) []ProposalListResponse {
	responses := make([]ProposalListResponse, len(proposals))
	for i := range proposals {
		p := &proposals[i]
		responses[i] = ProposalListResponse{
			ID:         p.ID,
			Title:      p.Title,
			ContactID:  p.ContactID,
			Amount:     p.Amount.Amount(),
			Currency:   string(p.Amount.Currency()),
			Status:     string(p.Status),
			ValidUntil: p.ValidUntil,
			CreatedAt:  p.CreatedAt,
		}
	}
	return responses
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	proposalapp "github.com/crm/backend/internal/application/proposal"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProposalHandler handles proposal endpoints
type ProposalHandler struct {
	BaseHandler
	proposalService *proposalapp.ProposalService
}

// NewProposalHandler creates a new ProposalHandler
func NewProposalHandler(proposalService *proposalapp.ProposalService, log *zap.Logger) *ProposalHandler {
	return &ProposalHandler{
		BaseHandler:     newBaseHandler(log),
		proposalService: proposalService,
	}
}

// Create handles POST /sales/proposals
func (h *ProposalHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req proposalapp.CreateProposalRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = userID(c)

	proposal, err := h.proposalService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, proposal)
}

// GetByID handles GET /sales/proposals/:id. Unreadable content is served
// as the default document with content_status "unavailable".
func (h *ProposalHandler) GetByID(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	proposal, err := h.proposalService.GetByID(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, proposal)
}

// GetSealedContent handles GET /sales/proposals/:id/sealed-content and
// returns the stored envelope without opening it
func (h *ProposalHandler) GetSealedContent(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	env, err := h.proposalService.GetSealedContent(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, env)
}

// List handles GET /sales/proposals
func (h *ProposalHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter proposalapp.ProposalListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	page, err := h.proposalService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Update handles PUT /sales/proposals/:id
func (h *ProposalHandler) Update(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req proposalapp.UpdateProposalRequest
	if !h.bindJSON(c, &req) {
		return
	}

	proposal, err := h.proposalService.Update(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, proposal)
}

// UpdateContent handles PUT /sales/proposals/:id/content. The body is
// plain content, or an envelope carrying _updateData.
func (h *ProposalHandler) UpdateContent(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.ErrorWithCode(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		h.ErrorWithCode(c, dto.ErrCodeBadRequest, "Failed to read request body")
		return
	}
	if !json.Valid(body) {
		h.ErrorWithCode(c, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
		return
	}

	proposal, err := h.proposalService.UpdateContent(c.Request.Context(), tenantID, id, body)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, proposal)
}

// Send handles POST /sales/proposals/:id/send
func (h *ProposalHandler) Send(c *gin.Context) {
	h.transition(c, h.proposalService.Send)
}

// Accept handles POST /sales/proposals/:id/accept
func (h *ProposalHandler) Accept(c *gin.Context) {
	h.transition(c, h.proposalService.Accept)
}

// Reject handles POST /sales/proposals/:id/reject
func (h *ProposalHandler) Reject(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req proposalapp.RejectProposalRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	proposal, err := h.proposalService.Reject(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, proposal)
}

func (h *ProposalHandler) transition(c *gin.Context, op statusOp[proposalapp.ProposalResponse]) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	proposal, err := op(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, proposal)
}

// Delete handles DELETE /sales/proposals/:id
func (h *ProposalHandler) Delete(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.proposalService.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

package handler

import (
	contactapp "github.com/crm/backend/internal/application/contact"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContactHandler handles contact endpoints
type ContactHandler struct {
	BaseHandler
	contactService *contactapp.ContactService
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(contactService *contactapp.ContactService, log *zap.Logger) *ContactHandler {
	return &ContactHandler{
		BaseHandler:    newBaseHandler(log),
		contactService: contactService,
	}
}

// Create handles POST /crm/contacts
func (h *ContactHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req contactapp.CreateContactRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.CreatedBy = userID(c)

	contact, err := h.contactService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, contact)
}

// GetByID handles GET /crm/contacts/:id
func (h *ContactHandler) GetByID(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	contact, err := h.contactService.GetByID(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, contact)
}

// List handles GET /crm/contacts
func (h *ContactHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter contactapp.ContactListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	page, err := h.contactService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Update handles PUT /crm/contacts/:id
func (h *ContactHandler) Update(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req contactapp.UpdateContactRequest
	if !h.bindJSON(c, &req) {
		return
	}

	contact, err := h.contactService.Update(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, contact)
}

// Archive handles POST /crm/contacts/:id/archive
func (h *ContactHandler) Archive(c *gin.Context) {
	h.changeStatus(c, h.contactService.Archive)
}

// Activate handles POST /crm/contacts/:id/activate
func (h *ContactHandler) Activate(c *gin.Context) {
	h.changeStatus(c, h.contactService.Activate)
}

// Deactivate handles POST /crm/contacts/:id/deactivate
func (h *ContactHandler) Deactivate(c *gin.Context) {
	h.changeStatus(c, h.contactService.Deactivate)
}

func (h *ContactHandler) changeStatus(c *gin.Context, op statusOp[contactapp.ContactResponse]) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	contact, err := op(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, contact)
}

// Delete handles DELETE /crm/contacts/:id
func (h *ContactHandler) Delete(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.contactService.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

package handler

import (
	"strconv"

	"github.com/crm/backend/internal/infrastructure/event"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuditHandler serves the change history recorded for an aggregate
type AuditHandler struct {
	BaseHandler
	store *event.AuditStore
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(store *event.AuditStore, log *zap.Logger) *AuditHandler {
	return &AuditHandler{
		BaseHandler: newBaseHandler(log),
		store:       store,
	}
}

// History handles GET /audit/:id. The optional limit query caps the result.
func (h *AuditHandler) History(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.ErrorWithCode(c, dto.ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.store.ListForAggregate(c.Request.Context(), tenantID, id, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}

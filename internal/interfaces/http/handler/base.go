package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/encryption"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct {
	logger *zap.Logger
}

func newBaseHandler(log *zap.Logger) BaseHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return BaseHandler{logger: log}
}

func requestID(c *gin.Context) string {
	return c.GetString(middleware.RequestIDKey)
}

// tenantID returns the authenticated tenant, writing a 401 when absent
func (h *BaseHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := middleware.GetTenantUUID(c)
	if err != nil || id == uuid.Nil {
		h.ErrorWithCode(c, dto.ErrCodeUnauthorized, "Tenant could not be determined")
		return uuid.Nil, false
	}
	return id, true
}

// userID returns the authenticated user, or nil when the token has none
func userID(c *gin.Context) *uuid.UUID {
	id, err := middleware.GetUserUUID(c)
	if err != nil || id == uuid.Nil {
		return nil
	}
	return &id
}

// pathID parses the :id path parameter, writing a 400 when invalid
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodeBadRequest, "Invalid ID format")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds the body, writing a validation or bad request error on failure
func (h *BaseHandler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.bindError(c, err)
		return false
	}
	return true
}

// bindQuery binds query parameters the same way
func (h *BaseHandler) bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		h.bindError(c, err)
		return false
	}
	return true
}

func (h *BaseHandler) bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		middleware.HandleValidationError(c, err)
		return
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		h.ErrorWithCode(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
		return
	}
	h.ErrorWithCode(c, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessPage sends a page of results with pagination meta
func SuccessPage[T any](c *gin.Context, page *shared.Paginated[T]) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(page.Items, page.Total, page.Page, page.PageSize, page.TotalPages))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, requestID(c)))
}

// HandleError converts service errors to HTTP responses. Envelope shape
// errors are checked first since they also count as decryption failures.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	switch {
	case errors.As(err, &domainErr):
		h.ErrorWithCode(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
	case errors.Is(err, encryption.ErrMalformedEnvelope):
		h.ErrorWithCode(c, dto.ErrCodeInvalidEnvelope, "Envelope is malformed")
	case encryption.IsDecryptionFailure(err):
		logger.WithLogger(c.Request.Context(), h.logger).Warn("Decryption failed", zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeDecryptionFailed, "Data could not be decrypted")
	default:
		logger.WithLogger(c.Request.Context(), h.logger).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		h.ErrorWithCode(c, dto.ErrCodeInternal, "An unexpected error occurred")
	}
}

// statusOp is a service call that moves an aggregate to a new state
type statusOp[T any] func(ctx context.Context, tenantID, id uuid.UUID) (*T, error)

package handler

import (
	"encoding/json"
	"errors"
	"maps"

	"github.com/crm/backend/internal/infrastructure/encryption"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EncryptRequest seals value whole, or only the listed fields when value
// is an object and fields is set
type EncryptRequest struct {
	Value          json.RawMessage `json:"value" binding:"required"`
	Fields         []string        `json:"fields" binding:"omitempty,max=64,dive,min=1,max=100"`
	KeyID          string          `json:"key_id" binding:"max=100"`
	AdditionalData map[string]any  `json:"additional_data"`
}

// DecryptRequest opens an envelope, or the listed fields of a record
type DecryptRequest struct {
	Envelope       json.RawMessage `json:"envelope" binding:"required_without=Record"`
	Record         map[string]any  `json:"record"`
	Fields         []string        `json:"fields" binding:"omitempty,max=64,dive,min=1,max=100"`
	AdditionalData map[string]any  `json:"additional_data"`
}

// DecryptResponse carries the opened value
type DecryptResponse struct {
	Value any `json:"value"`
}

// SecurityHandler exposes the encryption service to trusted internal callers.
// The caller's tenant is always bound into the additional data, so an
// envelope sealed for one tenant never opens for another.
type SecurityHandler struct {
	BaseHandler
	enc *encryption.Service
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(enc *encryption.Service, log *zap.Logger) *SecurityHandler {
	return &SecurityHandler{
		BaseHandler: newBaseHandler(log),
		enc:         enc,
	}
}

// Encrypt handles POST /security/encrypt
func (h *SecurityHandler) Encrypt(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req EncryptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	opts := []encryption.CallOption{encryption.WithAdditionalData(tenantAAD(tenantID, req.AdditionalData))}
	if req.KeyID != "" {
		opts = append(opts, encryption.WithKeyID(req.KeyID))
	}

	if len(req.Fields) == 0 {
		env, err := h.enc.Encrypt(ctx, req.Value, opts...)
		if err != nil {
			h.encryptError(c, err)
			return
		}
		h.Success(c, env)
		return
	}

	var record encryption.Record
	if err := json.Unmarshal(req.Value, &record); err != nil || record == nil {
		h.ErrorWithCode(c, dto.ErrCodeBadRequest, "value must be an object when fields are given")
		return
	}
	sealed, err := h.enc.EncryptFields(ctx, record, req.Fields, opts...)
	if err != nil {
		h.encryptError(c, err)
		return
	}
	h.Success(c, sealed)
}

func (h *SecurityHandler) encryptError(c *gin.Context, err error) {
	if errors.Is(err, encryption.ErrUnknownKey) {
		h.ErrorWithCode(c, dto.ErrCodeBadRequest, "Unknown key id")
		return
	}
	logger.WithLogger(c.Request.Context(), h.logger).Error("Encryption failed", zap.Error(err))
	h.ErrorWithCode(c, dto.ErrCodeEncryptionFailed, "Data could not be encrypted")
}

// Decrypt handles POST /security/decrypt
func (h *SecurityHandler) Decrypt(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req DecryptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	aad := encryption.WithAdditionalData(tenantAAD(tenantID, req.AdditionalData))

	if req.Record != nil {
		opened, err := h.enc.DecryptFields(ctx, req.Record, req.Fields, aad)
		if err != nil {
			h.decryptFieldsError(c, err)
			return
		}
		h.Success(c, opened)
		return
	}

	env, err := encryption.ParseEnvelope(req.Envelope)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	value, err := h.enc.Decrypt(ctx, env, aad)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, DecryptResponse{Value: value})
}

func (h *SecurityHandler) decryptFieldsError(c *gin.Context, err error) {
	failed := encryption.FailedFields(err)
	if len(failed) == 0 {
		h.HandleError(c, err)
		return
	}
	details := make([]dto.ValidationDetail, len(failed))
	for i, field := range failed {
		details[i] = dto.ValidationDetail{Field: field, Message: "could not be decrypted"}
	}
	resp := dto.NewErrorResponse(dto.ErrCodeDecryptionFailed, "Some fields could not be decrypted", requestID(c))
	resp.Error.Details = details
	c.JSON(dto.GetHTTPStatus(dto.ErrCodeDecryptionFailed), resp)
}

func tenantAAD(tenantID uuid.UUID, extra map[string]any) map[string]any {
	aad := maps.Clone(extra)
	if aad == nil {
		aad = map[string]any{}
	}
	aad["tenantId"] = tenantID.String()
	return aad
}

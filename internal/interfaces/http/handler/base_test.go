package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/encryption"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"wrapped domain error", fmt.Errorf("load: %w", shared.NewDomainError("PROPOSAL_NOT_DRAFT", "x")), http.StatusUnprocessableEntity, "ERR_PROPOSAL_NOT_DRAFT"},
		{"invalid input", shared.NewDomainError("INVALID_TITLE", "x"), http.StatusBadRequest, "ERR_INVALID_TITLE"},
		{"malformed envelope", fmt.Errorf("failed to decrypt data: %w", encryption.ErrMalformedEnvelope), http.StatusBadRequest, dto.ErrCodeInvalidEnvelope},
		{"tag mismatch", fmt.Errorf("failed to decrypt data: %w", encryption.ErrAuthenticationFailed), http.StatusUnprocessableEntity, dto.ErrCodeDecryptionFailed},
		{"unknown key", encryption.ErrUnknownKey, http.StatusUnprocessableEntity, dto.ErrCodeDecryptionFailed},
		{"anything else", errors.New("connection reset"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newBaseHandler(nil)
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set("request_id", "req-1")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
			assert.NotContains(t, resp.Error.Message, "connection reset")
		})
	}
}

func TestBaseHandler_PathID(t *testing.T) {
	h := newBaseHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	_, ok := h.pathID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBaseHandler_TenantRequired(t *testing.T) {
	h := newBaseHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := h.tenantID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"CONCURRENCY_CONFLICT", ErrCodeConcurrencyConflict},
		{"INVALID_EMAIL", "ERR_INVALID_EMAIL"},
		{"VALIDATION_ERROR", ErrCodeValidation},
		{ErrCodeDecryptionFailed, ErrCodeDecryptionFailed},
		{"", ErrCodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeErrorCode(tt.in), tt.in)
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeDecryptionFailed, http.StatusUnprocessableEntity},
		{ErrCodeInvalidEnvelope, http.StatusBadRequest},
		{"ERR_PROPOSAL_NOT_DRAFT", http.StatusUnprocessableEntity},
		{"ERR_INVALID_CURRENCY", http.StatusBadRequest},
		{"ERR_MISSING_CONTENT", http.StatusBadRequest},
		{"ERR_SOMETHING_NEW", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetHTTPStatus(tt.code), tt.code)
	}
}

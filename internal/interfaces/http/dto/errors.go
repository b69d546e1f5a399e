package dto

import (
	"net/http"
	"strings"
)

// Error codes use the form ERR_<DESCRIPTION>
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeBadRequest          = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON         = "ERR_INVALID_JSON"
	ErrCodeUnauthorized        = "ERR_UNAUTHORIZED"
	ErrCodeForbidden           = "ERR_FORBIDDEN"
	ErrCodeTokenExpired        = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid        = "ERR_TOKEN_INVALID"
	ErrCodeTokenRevoked        = "ERR_TOKEN_REVOKED"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeRateLimited         = "ERR_RATE_LIMITED"
	ErrCodeRequestTooLarge     = "ERR_REQUEST_TOO_LARGE"

	ErrCodeDecryptionFailed = "ERR_DECRYPTION_FAILED"
	ErrCodeEncryptionFailed = "ERR_ENCRYPTION_FAILED"
	ErrCodeInvalidEnvelope  = "ERR_INVALID_ENVELOPE"

	ErrCodeIdempotencyInFlight = "ERR_IDEMPOTENCY_IN_FLIGHT"
	ErrCodeIdempotencyReused   = "ERR_IDEMPOTENCY_KEY_REUSED"
)

var errorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeInvalidJSON:         http.StatusBadRequest,
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeForbidden:           http.StatusForbidden,
	ErrCodeTokenExpired:        http.StatusUnauthorized,
	ErrCodeTokenInvalid:        http.StatusUnauthorized,
	ErrCodeTokenRevoked:        http.StatusUnauthorized,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeRateLimited:         http.StatusTooManyRequests,
	ErrCodeRequestTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeDecryptionFailed:    http.StatusUnprocessableEntity,
	ErrCodeEncryptionFailed:    http.StatusInternalServerError,
	ErrCodeInvalidEnvelope:     http.StatusBadRequest,
	ErrCodeIdempotencyInFlight: http.StatusConflict,
	ErrCodeIdempotencyReused:   http.StatusUnprocessableEntity,
}

// Business rule violations that are not input errors
var stateCodes = map[string]bool{
	"ERR_CONTACT_ARCHIVED":       true,
	"ERR_OPAQUE_CONTENT":         true,
	"ERR_PROPOSAL_EXPIRED":       true,
	"ERR_PROPOSAL_NOT_DELETABLE": true,
	"ERR_PROPOSAL_NOT_DRAFT":     true,
	"ERR_PROPOSAL_NOT_SENT":      true,
}

// GetHTTPStatus returns the status for code. Unlisted ERR_INVALID_* and
// ERR_MISSING_* codes are input errors; anything else unknown is a 500.
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	if stateCodes[code] {
		return http.StatusUnprocessableEntity
	}
	if strings.HasPrefix(code, "ERR_INVALID_") || strings.HasPrefix(code, "ERR_MISSING_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode turns a domain error code such as NOT_FOUND into its
// API form ERR_NOT_FOUND. Codes already in API form pass through.
func NormalizeErrorCode(code string) string {
	if code == "" {
		return ErrCodeInternal
	}
	if strings.HasPrefix(code, "ERR_") {
		return code
	}
	if code == "VALIDATION_ERROR" {
		return ErrCodeValidation
	}
	return "ERR_" + code
}

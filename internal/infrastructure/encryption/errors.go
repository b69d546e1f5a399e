package encryption

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped) by the encryption service.
var (
	// ErrMalformedEnvelope is returned when envelope fields are missing or ill-formed.
	// It is detected before any cryptographic work is attempted.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrUnknownKey is returned when an envelope references a key id the keyring does not hold
	ErrUnknownKey = errors.New("unknown key id")
	// ErrUnsupportedAlgorithm is returned for algorithms that are not registered or not allowed
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	// ErrAuthenticationFailed is returned when the authentication tag does not verify
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrInvalidKey is returned when key material has the wrong size or is empty
	ErrInvalidKey = errors.New("invalid key")
	// ErrMissingUpdateData is returned when an envelope update carries no _updateData
	ErrMissingUpdateData = errors.New("missing _updateData")
)

func encryptError(err error) error {
	return fmt.Errorf("failed to encrypt data: %w", err)
}

func decryptError(err error) error {
	return fmt.Errorf("failed to decrypt data: %w", err)
}

// FieldError reports a failure on a single named field of a record.
type FieldError struct {
	Field string
	Err   error
}

// Error implements the error interface
func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error
func (e *FieldError) Unwrap() error {
	return e.Err
}

// FailedFields lists the fields reported by the FieldErrors contained in err.
// It understands errors joined with errors.Join.
func FailedFields(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var fields []string
		for _, e := range joined.Unwrap() {
			fields = append(fields, FailedFields(e)...)
		}
		return fields
	}
	if fe, ok := err.(*FieldError); ok {
		return []string{fe.Field}
	}
	return FailedFields(errors.Unwrap(err))
}

// IsDecryptionFailure reports whether err is a cryptographic or envelope failure
// (as opposed to an I/O or programming error).
func IsDecryptionFailure(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrMalformedEnvelope) ||
		errors.Is(err, ErrUnknownKey) ||
		errors.Is(err, ErrUnsupportedAlgorithm)
}

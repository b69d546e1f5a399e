package shared

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrIdempotencyInFlight is returned when another request holds the key
	ErrIdempotencyInFlight = errors.New("idempotency key is already being processed")
	// ErrIdempotencyKeyReused is returned when a key is replayed with a different request
	ErrIdempotencyKeyReused = errors.New("idempotency key was used with a different request")
)

// StoredResponse is the recorded outcome of a request made under an
// idempotency key. Body holds the sealed response payload, never plaintext.
type StoredResponse struct {
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// IdempotencyStore records request outcomes keyed by Idempotency-Key.
//
// Reserve claims a key for a request fingerprint. It returns the stored
// response when the key already completed, ErrIdempotencyInFlight while
// another request holds it and ErrIdempotencyKeyReused when the fingerprint
// differs. A nil response and nil error mean the caller owns the key and must
// later call Complete or Release.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (*StoredResponse, error)
	Complete(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	Close() error
}

package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/encryption"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotentReplayedHeader  = "Idempotent-Replayed"
	maxIdempotencyKeyLength   = 255
	defaultIdempotencyKeepFor = 24 * time.Hour
)

// ResponseSealer seals stored responses so the idempotency store never
// holds plaintext PII.
type ResponseSealer interface {
	Encrypt(ctx context.Context, value any, opts ...encryption.CallOption) (*encryption.Envelope, error)
	DecryptInto(ctx context.Context, env *encryption.Envelope, dst any, opts ...encryption.CallOption) error
}

// IdempotencyConfig configures Idempotency
type IdempotencyConfig struct {
	Store  shared.IdempotencyStore
	Sealer ResponseSealer
	TTL    time.Duration
	Logger *zap.Logger
}

// Idempotency replays the stored response of a POST retried with the same
// Idempotency-Key. Only 2xx responses are remembered; anything else
// releases the key so the client may retry.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultIdempotencyKeepFor
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if c.Request.Method != http.MethodPost || key == "" || cfg.Store == nil {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			abortWithError(c, dto.ErrCodeBadRequest, "Idempotency-Key is too long")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abortWithError(c, dto.ErrCodeRequestTooLarge, "Failed to read request body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		tenantID := c.GetString(TenantIDKey)
		storeKey := tenantID + ":" + key
		aad := idempotencyAAD(tenantID, key)

		stored, err := cfg.Store.Reserve(ctx, storeKey, fingerprint(c.Request.Method, c.Request.URL.Path, body), ttl)
		switch {
		case errors.Is(err, shared.ErrIdempotencyInFlight):
			abortWithError(c, dto.ErrCodeIdempotencyInFlight, "A request with this Idempotency-Key is still in progress")
			return
		case errors.Is(err, shared.ErrIdempotencyKeyReused):
			abortWithError(c, dto.ErrCodeIdempotencyReused, "Idempotency-Key was already used with a different request")
			return
		case err != nil:
			log.Error("Idempotency store unavailable, processing without replay protection",
				zap.String("key", key), zap.Error(err))
			c.Next()
			return
		case stored != nil:
			replay(c, cfg.Sealer, stored, aad, log)
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		// a panicking handler is recovered further up the chain; the key
		// must not stay in flight for the whole TTL
		defer func() {
			if r := recover(); r != nil {
				if err := cfg.Store.Release(ctx, storeKey); err != nil {
					log.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
				}
				panic(r)
			}
		}()
		c.Next()

		status := recorder.Status()
		if status < 200 || status >= 300 || recorder.body.Len() == 0 {
			if err := cfg.Store.Release(ctx, storeKey); err != nil {
				log.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
			}
			return
		}

		env, err := cfg.Sealer.Encrypt(ctx, json.RawMessage(recorder.body.Bytes()), encryption.WithAdditionalData(aad))
		if err != nil {
			log.Error("Failed to seal idempotent response", zap.String("key", key), zap.Error(err))
			_ = cfg.Store.Release(ctx, storeKey)
			return
		}
		sealed, err := json.Marshal(env)
		if err != nil {
			_ = cfg.Store.Release(ctx, storeKey)
			return
		}
		err = cfg.Store.Complete(ctx, storeKey, shared.StoredResponse{
			StatusCode:  status,
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        sealed,
			CreatedAt:   time.Now().UTC(),
		}, ttl)
		if err != nil {
			log.Warn("Failed to store idempotent response", zap.String("key", key), zap.Error(err))
		}
	}
}

func replay(c *gin.Context, sealer ResponseSealer, stored *shared.StoredResponse, aad map[string]any, log *zap.Logger) {
	env, err := encryption.ParseEnvelope(stored.Body)
	if err != nil {
		log.Error("Stored idempotent response is not a valid envelope", zap.Error(err))
		abortWithError(c, dto.ErrCodeDecryptionFailed, "Failed to replay stored response")
		return
	}
	var body json.RawMessage
	if err := sealer.DecryptInto(c.Request.Context(), env, &body, encryption.WithAdditionalData(aad)); err != nil {
		log.Error("Failed to open stored idempotent response", zap.Error(err))
		abortWithError(c, dto.ErrCodeDecryptionFailed, "Failed to replay stored response")
		return
	}

	contentType := stored.ContentType
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	c.Header(IdempotentReplayedHeader, "true")
	c.Data(stored.StatusCode, contentType, body)
	c.Abort()
}

func idempotencyAAD(tenantID, key string) map[string]any {
	return map[string]any{
		"tenantId": tenantID,
		"entity":   "idempotency",
		"id":       key,
	}
}

func fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// bodyRecorder copies the response body while it is written
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

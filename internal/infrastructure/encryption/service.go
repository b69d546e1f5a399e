package encryption

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"time"

	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Record is a flat document whose named fields may be encrypted
type Record map[string]any

// FieldKey is the additional-data key naming the record field an envelope belongs to
const FieldKey = "field"

// Config selects the algorithm used for new encryptions
type Config struct {
	// Algorithm for new envelopes; empty means AES-256-GCM
	Algorithm string
	// AllowDevFallback registers the dev-hmac-sha256 cipher
	AllowDevFallback bool
	// Debug logs every successful operation at debug level
	Debug bool
}

// Service encrypts and decrypts values into envelopes.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	keyring *Keyring
	cipher  Cipher
	ciphers map[string]Cipher
	random  io.Reader
	now     func() time.Time
	logger  *zap.Logger
	metrics Metrics
	debug   bool
}

// Metrics receives one observation per encrypt or decrypt call
type Metrics interface {
	RecordOperation(ctx context.Context, operation, algorithm string, elapsed time.Duration, err error)
}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(context.Context, string, string, time.Duration, error) {}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithRandom replaces the IV source
func WithRandom(r io.Reader) ServiceOption {
	return func(s *Service) {
		s.random = r
	}
}

// WithClock replaces the envelope timestamp source
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithMetrics reports operation counts and latency to m
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService creates the encryption service
func NewService(keyring *Keyring, cfg Config, log *zap.Logger, opts ...ServiceOption) (*Service, error) {
	if keyring == nil {
		return nil, fmt.Errorf("%w: keyring is required", ErrInvalidKey)
	}
	if log == nil {
		log = zap.NewNop()
	}

	ciphers := map[string]Cipher{
		AlgorithmAES256GCM:         AES256GCM(),
		AlgorithmXChaCha20Poly1305: XChaCha20Poly1305(),
	}
	if cfg.AllowDevFallback {
		ciphers[AlgorithmDevHMAC] = DevHMAC()
	}

	name := cfg.Algorithm
	if name == "" {
		name = AlgorithmAES256GCM
	}
	c, ok := ciphers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}

	s := &Service{
		keyring: keyring,
		cipher:  c,
		ciphers: ciphers,
		random:  rand.Reader,
		now:     time.Now,
		logger:  log,
		metrics: nopMetrics{},
		debug:   cfg.Debug,
	}
	for _, opt := range opts {
		opt(s)
	}

	if c.Name() == AlgorithmDevHMAC {
		log.Warn("Field encryption is running on the development fallback; values are NOT confidential",
			zap.String("algorithm", c.Name()))
	}
	return s, nil
}

// Algorithm returns the algorithm used for new envelopes
func (s *Service) Algorithm() string {
	return s.cipher.Name()
}

// DefaultKeyID returns the key id used for new envelopes
func (s *Service) DefaultKeyID() string {
	return s.keyring.DefaultKeyID()
}

// KeyIDs returns every key id the service can decrypt with
func (s *Service) KeyIDs() []string {
	return s.keyring.KeyIDs()
}

// CallOption configures a single encrypt or decrypt call
type CallOption func(*callOptions)

type callOptions struct {
	keyID          string
	additionalData map[string]any
	hasAAD         bool
}

// WithKeyID encrypts under keyID instead of the default key. Ignored on decrypt.
func WithKeyID(keyID string) CallOption {
	return func(o *callOptions) {
		o.keyID = keyID
	}
}

// WithAdditionalData binds data to the authentication tag. On decrypt it is
// the expected context and replaces whatever the envelope claims.
func WithAdditionalData(data map[string]any) CallOption {
	return func(o *callOptions) {
		o.additionalData = data
		o.hasAAD = true
	}
}

func buildCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Encrypt seals value into a new envelope under a fresh random IV
func (s *Service) Encrypt(ctx context.Context, value any, opts ...CallOption) (*Envelope, error) {
	o := buildCallOptions(opts)
	keyID := NormalizeKeyID(o.keyID)
	if keyID == "" {
		keyID = s.keyring.DefaultKeyID()
	}

	ctx, span := telemetry.StartSpan(ctx, "encryption.encrypt",
		telemetry.WithAttribute(telemetry.SpanAttrKeyID, keyID),
		telemetry.WithAttribute(telemetry.SpanAttrAlgorithm, s.cipher.Name()),
	)
	defer span.End()

	start := time.Now()
	env, err := s.seal(value, keyID, o.additionalData)
	s.metrics.RecordOperation(ctx, "encrypt", s.cipher.Name(), time.Since(start), err)
	if err != nil {
		err = encryptError(err)
		telemetry.RecordError(span, err)
		logger.WithLogger(ctx, s.logger).Warn("Encryption failed",
			zap.String("key_id", keyID),
			zap.Error(err),
		)
		return nil, err
	}

	if s.debug {
		logger.WithLogger(ctx, s.logger).Debug("Value encrypted",
			zap.String("key_id", keyID),
			zap.String("algorithm", env.Algorithm),
		)
	}
	return env, nil
}

func (s *Service) seal(value any, keyID string, additionalData map[string]any) (*Envelope, error) {
	plaintext, err := marshalPlaintext(value)
	if err != nil {
		return nil, err
	}
	key, err := s.keyring.Key(keyID)
	if err != nil {
		return nil, err
	}
	aad, err := canonicalAAD(additionalData)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, s.cipher.IVSize())
	if _, err := io.ReadFull(s.random, iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	ciphertext, tag, err := s.cipher.Seal(key, iv, plaintext, aad)
	if err != nil {
		return nil, err
	}

	env := &Envelope{
		Encrypted: hex.EncodeToString(ciphertext) + tagSeparator + hex.EncodeToString(tag),
		IV:        hex.EncodeToString(iv),
		KeyID:     keyID,
		Algorithm: s.cipher.Name(),
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
	}
	if len(additionalData) > 0 {
		env.AdditionalData = maps.Clone(additionalData)
	}
	return env, nil
}

// marshalPlaintext turns value into the bytes that get encrypted. Strings
// are stored raw unless the raw text would itself read back as JSON.
func marshalPlaintext(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		if json.Valid([]byte(v)) {
			return json.Marshal(v)
		}
		return []byte(v), nil
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.New("raw message is not valid JSON")
		}
		return append([]byte(nil), v...), nil
	case PlainContent:
		return marshalPlaintext(v.Value)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("serialize value: %w", err)
		}
		return b, nil
	}
}

// Decrypt opens env and returns the decoded JSON value, or the raw string
// when the plaintext is not JSON.
func (s *Service) Decrypt(ctx context.Context, env *Envelope, opts ...CallOption) (any, error) {
	plaintext, err := s.open(ctx, env, buildCallOptions(opts))
	if err != nil {
		return nil, err
	}
	return unmarshalPlaintext(plaintext), nil
}

// DecryptInto opens env and decodes the plaintext into dst.
// A *string destination receives raw non-JSON plaintext as is.
func (s *Service) DecryptInto(ctx context.Context, env *Envelope, dst any, opts ...CallOption) error {
	plaintext, err := s.open(ctx, env, buildCallOptions(opts))
	if err != nil {
		return err
	}
	if str, ok := dst.(*string); ok && !json.Valid(plaintext) {
		*str = string(plaintext)
		return nil
	}
	if err := json.Unmarshal(plaintext, dst); err != nil {
		return fmt.Errorf("decode plaintext: %w", err)
	}
	return nil
}

func unmarshalPlaintext(plaintext []byte) any {
	var value any
	if err := json.Unmarshal(plaintext, &value); err != nil {
		return string(plaintext)
	}
	return value
}

func (s *Service) open(ctx context.Context, env *Envelope, o callOptions) ([]byte, error) {
	var keyID, algorithm string
	if env != nil {
		keyID, algorithm = env.KeyID, env.Algorithm
	}

	ctx, span := telemetry.StartSpan(ctx, "encryption.decrypt",
		telemetry.WithAttribute(telemetry.SpanAttrKeyID, keyID),
		telemetry.WithAttribute(telemetry.SpanAttrAlgorithm, algorithm),
	)
	defer span.End()

	start := time.Now()
	plaintext, err := s.openEnvelope(env, o)
	s.metrics.RecordOperation(ctx, "decrypt", algorithm, time.Since(start), err)
	if err != nil {
		err = decryptError(err)
		telemetry.RecordError(span, err)
		logger.WithLogger(ctx, s.logger).Warn("Decryption failed",
			zap.String("key_id", keyID),
			zap.String("algorithm", algorithm),
			zap.Error(err),
		)
		return nil, err
	}

	if s.debug {
		logger.WithLogger(ctx, s.logger).Debug("Value decrypted", zap.String("key_id", keyID))
	}
	return plaintext, nil
}

func (s *Service) openEnvelope(env *Envelope, o callOptions) ([]byte, error) {
	parts, err := env.parts()
	if err != nil {
		return nil, err
	}

	name := env.Algorithm
	if name == "" {
		name = AlgorithmAES256GCM
	}
	c, ok := s.ciphers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}

	key, err := s.keyring.Key(env.KeyID)
	if err != nil {
		return nil, err
	}

	var aad []byte
	if o.hasAAD {
		aad, err = canonicalAAD(o.additionalData)
	} else {
		aad, err = env.aad()
	}
	if err != nil {
		return nil, err
	}

	return c.Open(key, parts.iv, parts.ciphertext, parts.tag, aad)
}

// EncryptFields returns a copy of record with the listed fields replaced by
// envelopes. Absent fields are skipped and fields already holding an
// envelope are kept as they are. Each envelope's additional data carries
// the field name so envelopes cannot be moved between fields.
func (s *Service) EncryptFields(ctx context.Context, record Record, fields []string, opts ...CallOption) (Record, error) {
	out := maps.Clone(record)
	if out == nil {
		out = Record{}
	}
	o := buildCallOptions(opts)

	for _, field := range fields {
		value, ok := record[field]
		if !ok || IsEnvelope(value) {
			continue
		}
		env, err := s.Encrypt(ctx, value, fieldOptions(o, field, nil)...)
		if err != nil {
			return nil, &FieldError{Field: field, Err: err}
		}
		out[field] = env
	}
	return out, nil
}

// DecryptFields returns a copy of record with the listed envelope fields
// replaced by their plaintext. Plain values are left as they are. Every
// field is attempted; failures are returned joined as *FieldError values
// and the failed fields keep their envelope in the result.
func (s *Service) DecryptFields(ctx context.Context, record Record, fields []string, opts ...CallOption) (Record, error) {
	out := maps.Clone(record)
	if out == nil {
		out = Record{}
	}
	o := buildCallOptions(opts)

	var errs []error
	for _, field := range fields {
		value, ok := record[field]
		if !ok || !IsEnvelope(value) {
			continue
		}
		extracted, _ := ExtractContent(value)
		env, ok := extracted.(*Envelope)
		if !ok {
			errs = append(errs, &FieldError{Field: field, Err: decryptError(ErrMalformedEnvelope)})
			continue
		}
		plain, err := s.Decrypt(ctx, env, fieldOptions(o, field, env)...)
		if err != nil {
			errs = append(errs, &FieldError{Field: field, Err: err})
			continue
		}
		out[field] = plain
	}
	return out, errors.Join(errs...)
}

// fieldOptions binds the field name into the additional data. On decrypt
// the base data comes from the caller when given, otherwise from env.
func fieldOptions(o callOptions, field string, env *Envelope) []CallOption {
	base := o.additionalData
	if !o.hasAAD && env != nil {
		base = env.AdditionalData
	}
	data := maps.Clone(base)
	if data == nil {
		data = map[string]any{}
	}
	data[FieldKey] = field

	opts := []CallOption{WithAdditionalData(data)}
	if o.keyID != "" {
		opts = append(opts, WithKeyID(o.keyID))
	}
	return opts
}

// ApplyUpdate replaces the envelope in update with a new envelope sealing
// its _updateData. The original envelope must open under this keyring (with
// the expected additional data, when given) before anything is encrypted.
// The replacement is sealed under the default key.
func (s *Service) ApplyUpdate(ctx context.Context, update *EnvelopeUpdate, opts ...CallOption) (*Envelope, error) {
	if update == nil || len(update.UpdateData) == 0 || string(update.UpdateData) == "null" {
		return nil, encryptError(ErrMissingUpdateData)
	}

	ctx, span := telemetry.StartSpan(ctx, "encryption.apply_update",
		telemetry.WithAttribute("encryption.key_id", update.KeyID),
	)
	defer span.End()

	o := buildCallOptions(opts)
	if _, err := s.open(ctx, &update.Envelope, o); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	additionalData := update.AdditionalData
	if o.hasAAD {
		additionalData = o.additionalData
	}

	env, err := s.Encrypt(ctx, update.UpdateData, WithAdditionalData(additionalData))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return env, nil
}

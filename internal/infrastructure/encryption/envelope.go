package encryption

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// tagSeparator separates hex(ciphertext) from hex(tag) in Envelope.Encrypted
const tagSeparator = ":"

// UpdateDataField is the side-channel key carrying replacement plaintext
// for content the client holds only as an envelope.
const UpdateDataField = "_updateData"

// Envelope is the self-describing result of an encryption.
// It is stored as JSON in text/jsonb columns.
type Envelope struct {
	Encrypted      string         `json:"encrypted"`
	IV             string         `json:"iv"`
	KeyID          string         `json:"keyId"`
	Algorithm      string         `json:"algorithm"`
	Timestamp      time.Time      `json:"timestamp"`
	AdditionalData map[string]any `json:"additionalData,omitempty"`
}

// sealedParts is the decoded binary form of an envelope
type sealedParts struct {
	ciphertext []byte
	tag        []byte
	iv         []byte
}

// Validate checks the envelope shape without doing any cryptographic work.
func (e *Envelope) Validate() error {
	_, err := e.parts()
	return err
}

func (e *Envelope) parts() (sealedParts, error) {
	if e == nil {
		return sealedParts{}, fmt.Errorf("%w: envelope is nil", ErrMalformedEnvelope)
	}
	if e.KeyID == "" {
		return sealedParts{}, fmt.Errorf("%w: keyId is required", ErrMalformedEnvelope)
	}
	if e.IV == "" {
		return sealedParts{}, fmt.Errorf("%w: iv is required", ErrMalformedEnvelope)
	}
	if e.Encrypted == "" {
		return sealedParts{}, fmt.Errorf("%w: encrypted is required", ErrMalformedEnvelope)
	}

	ctHex, tagHex, ok := strings.Cut(e.Encrypted, tagSeparator)
	if !ok || strings.Contains(tagHex, tagSeparator) {
		return sealedParts{}, fmt.Errorf("%w: encrypted must be ciphertext:tag", ErrMalformedEnvelope)
	}

	iv, err := decodeHex("iv", e.IV)
	if err != nil {
		return sealedParts{}, err
	}
	ciphertext, err := decodeHex("ciphertext", ctHex)
	if err != nil {
		return sealedParts{}, err
	}
	tag, err := decodeHex("tag", tagHex)
	if err != nil {
		return sealedParts{}, err
	}
	if len(tag) == 0 {
		return sealedParts{}, fmt.Errorf("%w: tag is empty", ErrMalformedEnvelope)
	}

	return sealedParts{ciphertext: ciphertext, tag: tag, iv: iv}, nil
}

// decodeHex accepts lowercase hex only. Encoding always writes lowercase,
// so an uppercase digit means the stored value was altered.
func decodeHex(name, s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: %s has odd hex length", ErrMalformedEnvelope, name)
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, ok1 := fromHexChar(s[2*i])
		lo, ok2 := fromHexChar(s[2*i+1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: %s is not lowercase hex", ErrMalformedEnvelope, name)
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}

// aad is the canonical encoding of AdditionalData bound to the tag.
// encoding/json sorts map keys, so the bytes survive jsonb reformatting.
func (e *Envelope) aad() ([]byte, error) {
	return canonicalAAD(e.AdditionalData)
}

// canonicalAAD encodes data the way it reads back from storage: numbers
// pass through json.Number, so an int64 and its stored decimal text
// produce the same bytes.
func canonicalAAD(data map[string]any) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode additional data: %w", err)
	}
	var decoded map[string]any
	if err := decodeUseNumber(b, &decoded); err != nil {
		return nil, fmt.Errorf("encode additional data: %w", err)
	}
	b, err = json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("encode additional data: %w", err)
	}
	return b, nil
}

func decodeUseNumber(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dst)
}

// UnmarshalJSON decodes numbers in AdditionalData as json.Number
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type plain Envelope
	var v plain
	if err := decodeUseNumber(data, &v); err != nil {
		return err
	}
	*e = Envelope(v)
	return nil
}

// UnmarshalJSON decodes the envelope and the _updateData side channel
func (u *EnvelopeUpdate) UnmarshalJSON(data []byte) error {
	if err := u.Envelope.UnmarshalJSON(data); err != nil {
		return err
	}
	var side struct {
		UpdateData json.RawMessage `json:"_updateData"`
	}
	if err := json.Unmarshal(data, &side); err != nil {
		return err
	}
	u.UpdateData = side.UpdateData
	return nil
}

// Value implements driver.Valuer
func (e Envelope) Value() (driver.Value, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (e *Envelope) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*e = Envelope{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("%w: cannot scan %T into envelope", ErrMalformedEnvelope, src)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	*e = env
	return nil
}

// ParseEnvelope decodes and validates a stored envelope document
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// String returns the JSON form of the envelope
func (e *Envelope) String() string {
	b, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(b)
}

// Content is either plaintext or an encrypted envelope (optionally carrying
// an update). Implementations: PlainContent, *Envelope, *EnvelopeUpdate.
type Content interface {
	isContent()
}

// PlainContent is content that has not been encrypted
type PlainContent struct {
	Value any
}

// EnvelopeUpdate is an envelope returned by a client together with the new
// plaintext it wants stored in its place.
type EnvelopeUpdate struct {
	Envelope
	UpdateData json.RawMessage `json:"_updateData"`
}

func (PlainContent) isContent()    {}
func (*Envelope) isContent()       {}
func (*EnvelopeUpdate) isContent() {}

// MarshalJSON encodes the plain value itself
func (p PlainContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Value)
}

// DecodeContent classifies a JSON document. Objects carrying encrypted, iv
// and keyId become envelopes (an EnvelopeUpdate when _updateData is also
// present); anything else is PlainContent.
func DecodeContent(data []byte) (Content, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedEnvelope)
	}

	var value any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid content: %w", err)
	}

	obj, ok := value.(map[string]any)
	if !ok || !hasEnvelopeKeys(obj) {
		return PlainContent{Value: value}, nil
	}

	if _, hasUpdate := obj[UpdateDataField]; hasUpdate {
		var update EnvelopeUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		if err := update.Envelope.Validate(); err != nil {
			return nil, err
		}
		return &update, nil
	}

	return ParseEnvelope(data)
}

// ContentOf classifies an already-decoded value
func ContentOf(v any) (Content, error) {
	switch c := v.(type) {
	case Content:
		return c, nil
	case Envelope:
		return &c, nil
	case map[string]any:
		if !hasEnvelopeKeys(c) {
			return PlainContent{Value: c}, nil
		}
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		return DecodeContent(data)
	default:
		return PlainContent{Value: v}, nil
	}
}

func hasEnvelopeKeys(obj map[string]any) bool {
	for _, key := range []string{"encrypted", "iv", "keyId"} {
		if _, ok := obj[key]; !ok {
			return false
		}
	}
	return true
}

// IsEnvelope reports whether v is an envelope (typed or in JSON object form)
func IsEnvelope(v any) bool {
	switch c := v.(type) {
	case *Envelope:
		return c != nil
	case Envelope, *EnvelopeUpdate:
		return true
	case map[string]any:
		return hasEnvelopeKeys(c)
	case json.RawMessage:
		content, err := DecodeContent(c)
		if err != nil {
			return false
		}
		_, plain := content.(PlainContent)
		return !plain
	default:
		return false
	}
}

// ExtractContent returns the envelope held by v and true, or v unchanged and
// false when v is plain content.
func ExtractContent(v any) (any, bool) {
	if !IsEnvelope(v) {
		return v, false
	}
	content, err := ContentOf(v)
	if err != nil {
		return v, false
	}
	switch c := content.(type) {
	case *Envelope:
		return c, true
	case *EnvelopeUpdate:
		return &c.Envelope, true
	default:
		return v, false
	}
}

package encryption

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// keyDerivationSalt is fixed so the same secret always yields the same key.
// Changing it makes every stored envelope undecryptable.
const keyDerivationSalt = "crm-field-encryption"

// KDFParams are the scrypt cost parameters used to derive keys from secrets
type KDFParams struct {
	N int
	R int
	P int
}

// DefaultKDFParams returns the production scrypt cost parameters
func DefaultKDFParams() KDFParams {
	return KDFParams{N: 1 << 15, R: 8, P: 1}
}

// Validate checks the scrypt parameters
func (p KDFParams) Validate() error {
	switch {
	case p.N <= 1 || p.N&(p.N-1) != 0:
		return fmt.Errorf("%w: scrypt N must be a power of two greater than 1", ErrInvalidKey)
	case p.R <= 0:
		return fmt.Errorf("%w: scrypt r must be > 0", ErrInvalidKey)
	case p.P <= 0:
		return fmt.Errorf("%w: scrypt p must be > 0", ErrInvalidKey)
	default:
		return nil
	}
}

// DeriveKey derives a KeySize-byte key from secret and the fixed salt.
func DeriveKey(secret string, params KDFParams) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: secret must not be empty", ErrInvalidKey)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(secret), []byte(keyDerivationSalt), params.N, params.R, params.P, KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Keyring maps key identifiers to derived keys. Key ids compare
// case-insensitively and are held in lower case, matching how config
// loaders fold map keys.
// It is immutable after construction and safe for concurrent use.
type Keyring struct {
	keys         map[string][]byte
	defaultKeyID string
}

// NewKeyring derives one key per secret. secrets maps key id to secret and
// must contain defaultKeyID; older key ids stay available for decryption.
func NewKeyring(defaultKeyID string, secrets map[string]string, params KDFParams) (*Keyring, error) {
	if defaultKeyID == "" {
		return nil, fmt.Errorf("%w: default key id must not be empty", ErrInvalidKey)
	}

	keys := make(map[string][]byte, len(secrets))
	for keyID, secret := range secrets {
		if keyID == "" {
			return nil, fmt.Errorf("%w: key id must not be empty", ErrInvalidKey)
		}
		key, err := DeriveKey(secret, params)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", keyID, err)
		}
		if err := putKey(keys, keyID, key); err != nil {
			return nil, err
		}
	}
	return newKeyring(defaultKeyID, keys)
}

// NewKeyringFromKeys builds a keyring from already-derived keys.
func NewKeyringFromKeys(defaultKeyID string, keys map[string][]byte) (*Keyring, error) {
	copied := make(map[string][]byte, len(keys))
	for keyID, key := range keys {
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: key %s must be %d bytes", ErrInvalidKey, keyID, KeySize)
		}
		if err := putKey(copied, keyID, append([]byte(nil), key...)); err != nil {
			return nil, err
		}
	}
	return newKeyring(defaultKeyID, copied)
}

func newKeyring(defaultKeyID string, keys map[string][]byte) (*Keyring, error) {
	defaultKeyID = NormalizeKeyID(defaultKeyID)
	if _, ok := keys[defaultKeyID]; !ok {
		return nil, fmt.Errorf("%w: no key for default key id %q", ErrInvalidKey, defaultKeyID)
	}
	return &Keyring{keys: keys, defaultKeyID: defaultKeyID}, nil
}

func putKey(keys map[string][]byte, keyID string, key []byte) error {
	id := NormalizeKeyID(keyID)
	if _, dup := keys[id]; dup {
		return fmt.Errorf("%w: key id %q is configured twice", ErrInvalidKey, keyID)
	}
	keys[id] = key
	return nil
}

// NormalizeKeyID folds a key id to the form the keyring stores
func NormalizeKeyID(keyID string) string {
	return strings.ToLower(strings.TrimSpace(keyID))
}

// Key returns the key for keyID
func (k *Keyring) Key(keyID string) ([]byte, error) {
	key, ok := k.keys[NormalizeKeyID(keyID)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, keyID)
	}
	return key, nil
}

// DefaultKeyID returns the key id used for new encryptions
func (k *Keyring) DefaultKeyID() string {
	return k.defaultKeyID
}

// KeyIDs returns every key id in the keyring, sorted
func (k *Keyring) KeyIDs() []string {
	ids := make([]string, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
